// Package assets watches on-disk engine assets and feeds changes back into the running renderer.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/shader"
	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned by Run after Close.
var ErrWatcherClosed = errors.New("shader watcher closed")

// ShaderWatcher reloads shader sources edited on disk. Every write, create, rename or removal of a
// .wgsl file under the root drops the library variants depending on it and invokes the change hook,
// which the engine wires to Renderer.RequestRefresh.
type ShaderWatcher interface {
	// Run processes file events until ctx is done or Close is called. Directories created under the
	// root while running are watched too.
	//
	// Parameters:
	//   - ctx: stops the watcher when cancelled
	//
	// Returns:
	//   - error: ctx.Err() on cancellation, ErrWatcherClosed after Close
	Run(ctx context.Context) error

	// Root returns the watched directory.
	//
	// Returns:
	//   - string: the absolute root path
	Root() string

	// Close stops Run and releases the underlying watcher.
	//
	// Returns:
	//   - error: an error if the watcher cannot be closed
	Close() error
}

// shaderWatcher is the implementation of the ShaderWatcher interface.
type shaderWatcher struct {
	root     string
	library  shader.Library
	watcher  *fsnotify.Watcher
	log      logger.Logger
	onChange func(file string)

	closeOnce sync.Once
	done      chan struct{}
}

var _ ShaderWatcher = &shaderWatcher{}

// NewShaderWatcher watches root and every directory below it. Paths are reported to the library
// relative to root, so the library must read from os.DirFS(root).
//
// Parameters:
//   - root: the shader source directory
//   - library: the library whose variants are invalidated
//   - options: optional builder options
//
// Returns:
//   - ShaderWatcher: the watcher, idle until Run
//   - error: an error if root cannot be resolved or watched
func NewShaderWatcher(root string, library shader.Library, options ...ShaderWatcherBuilderOption) (ShaderWatcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &shaderWatcher{
		root:    abs,
		library: library,
		watcher: fw,
		log:     logger.Nop(),
		done:    make(chan struct{}),
	}
	for _, opt := range options {
		opt(w)
	}
	if err := w.watchRecursive(abs); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *shaderWatcher) Root() string {
	return w.root
}

func (w *shaderWatcher) Run(ctx context.Context) error {
	for {
		select {
		case e, ok := <-w.watcher.Events:
			if !ok {
				return ErrWatcherClosed
			}
			w.handle(e)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			w.log.Warnf("shader watcher: %v", err)
		case <-w.done:
			return ErrWatcherClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *shaderWatcher) handle(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := w.watchRecursive(e.Name); err != nil {
				w.log.Warnf("failed to watch %s: %v", e.Name, err)
			}
			return
		}
	}
	if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !strings.EqualFold(filepath.Ext(e.Name), ".wgsl") {
		return
	}
	rel, err := filepath.Rel(w.root, e.Name)
	if err != nil {
		return
	}
	file := filepath.ToSlash(rel)
	dropped := w.library.Invalidate(file)
	w.log.Infof("shader %s changed, %d variants dropped", file, dropped)
	if w.onChange != nil {
		w.onChange(file)
	}
}

// watchRecursive adds dir and every directory below it to the watch list.
func (w *shaderWatcher) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *shaderWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
