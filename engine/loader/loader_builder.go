package loader

import (
	"io/fs"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
)

// LoaderBuilderOption is a function that configures a loader.
type LoaderBuilderOption func(*loader)

// WithFS is an option builder that reads model files and their external resources from fsys.
//
// Parameters:
//   - fsys: the filesystem to read from
//
// Returns:
//   - LoaderBuilderOption: a function that applies the filesystem option to a loader
func WithFS(fsys fs.FS) LoaderBuilderOption {
	return func(l *loader) {
		l.fsys = fsys
	}
}

// WithLogger is an option builder that sets the logger for load reports and skipped primitives.
//
// Parameters:
//   - log: the logger to use
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(log logger.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithMaxTextureSize is an option builder that caps the larger edge of decoded material textures.
//
// Parameters:
//   - size: the maximum edge in pixels, zero for no cap
//
// Returns:
//   - LoaderBuilderOption: a function that applies the texture cap to a loader
func WithMaxTextureSize(size int) LoaderBuilderOption {
	return func(l *loader) {
		l.maxTexture = size
	}
}
