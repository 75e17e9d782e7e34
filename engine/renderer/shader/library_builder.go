package shader

import (
	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
)

// LibraryBuilderOption is a functional option applied to a library during construction via NewLibrary.
type LibraryBuilderOption func(*library)

// WithLogger sets the logger used for cache and preload diagnostics.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - LibraryBuilderOption: a function that applies the logger option to a library
func WithLogger(l logger.Logger) LibraryBuilderOption {
	return func(lib *library) {
		if l != nil {
			lib.log = l
		}
	}
}

// WithPreloadWorkers sets the maximum number of workers Preload runs variants on.
//
// Parameters:
//   - n: the worker count, values below one are ignored
//
// Returns:
//   - LibraryBuilderOption: a function that applies the worker option to a library
func WithPreloadWorkers(n int) LibraryBuilderOption {
	return func(lib *library) {
		if n > 0 {
			lib.workers = n
		}
	}
}
