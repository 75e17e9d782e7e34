package assets

import "github.com/Carmen-Shannon/oxy-pipeline/engine/logger"

// ShaderWatcherBuilderOption is a function that configures a shaderWatcher.
type ShaderWatcherBuilderOption func(*shaderWatcher)

// WithLogger is an option builder that sets the logger for reload reports.
//
// Parameters:
//   - log: the logger to use
//
// Returns:
//   - ShaderWatcherBuilderOption: a function that applies the logger option
func WithLogger(log logger.Logger) ShaderWatcherBuilderOption {
	return func(w *shaderWatcher) {
		if log != nil {
			w.log = log
		}
	}
}

// WithOnChange is an option builder that sets the hook called after a shader file changed and its
// variants were dropped. It runs on the watcher goroutine.
//
// Parameters:
//   - fn: the hook, receiving the changed path relative to the root
//
// Returns:
//   - ShaderWatcherBuilderOption: a function that applies the hook
func WithOnChange(fn func(file string)) ShaderWatcherBuilderOption {
	return func(w *shaderWatcher) {
		w.onChange = fn
	}
}
