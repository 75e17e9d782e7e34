package shader

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
)

// variant is one cached preprocessing result and the files it was built from.
type variant struct {
	shader Shader
	files  []string
}

// library is the implementation of the Library interface.
type library struct {
	mu       sync.Mutex
	fsys     fs.FS
	variants map[string]*variant

	workers int
	pool    worker.DynamicWorkerPool
	log     logger.Logger
}

// Library caches preprocessed and reflected shader variants keyed by file and macro set.
type Library interface {
	// Variant returns the shader built from file under macros, preprocessing it on first use.
	//
	// Parameters:
	//   - file: the shader path within the library's file system
	//   - macros: the predefined macro set
	//
	// Returns:
	//   - Shader: the cached or freshly built variant
	//   - error: a *Error for directive failures, or a read or reflection error
	Variant(file string, macros map[string]string) (Shader, error)

	// Preload builds the variants of every file under macros concurrently on the library's worker pool
	// and waits for them.
	//
	// Parameters:
	//   - ctx: cancels variants not yet started
	//   - files: the shader paths to build
	//   - macros: the predefined macro set
	//
	// Returns:
	//   - error: every build failure joined, or the context error
	Preload(ctx context.Context, files []string, macros map[string]string) error

	// Invalidate drops every cached variant built from file, either as the root shader or through an
	// include.
	//
	// Parameters:
	//   - file: the changed path
	//
	// Returns:
	//   - int: the number of variants dropped
	Invalidate(file string) int

	// Len returns the number of cached variants.
	//
	// Returns:
	//   - int: the cache size
	Len() int

	// Close stops the worker pool. The cache stays usable for synchronous Variant calls.
	Close()
}

var _ Library = &library{}

// NewLibrary creates a shader library reading from fsys.
//
// Parameters:
//   - fsys: the file system holding shader sources, usually Assets or an os.DirFS for hot reload
//   - options: functional options applied after the defaults
//
// Returns:
//   - Library: the library
func NewLibrary(fsys fs.FS, options ...LibraryBuilderOption) Library {
	l := &library{
		fsys:     fsys,
		variants: make(map[string]*variant),
		workers:  4,
		log:      logger.Nop(),
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// VariantKey returns the cache key of file under macros. Macro order does not matter.
func VariantKey(file string, macros map[string]string) string {
	names := make([]string, 0, len(macros))
	for name := range macros {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(file)
	for i, name := range names {
		if i == 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteByte('&')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(macros[name])
	}
	return sb.String()
}

func (l *library) Variant(file string, macros map[string]string) (Shader, error) {
	key := VariantKey(file, macros)

	l.mu.Lock()
	v, ok := l.variants[key]
	l.mu.Unlock()
	if ok {
		return v.shader, nil
	}

	data, err := fs.ReadFile(l.fsys, file)
	if err != nil {
		return nil, err
	}
	source, includes, err := NewPreProcessor(l.fsys, macros).ProcessSource(file, string(data))
	if err != nil {
		return nil, err
	}
	s, err := NewShader(key, source)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.variants[key]; ok {
		return existing.shader, nil
	}
	l.variants[key] = &variant{shader: s, files: append([]string{file}, includes...)}
	l.log.Debugf("built shader variant %s", key)
	return s, nil
}

func (l *library) Preload(ctx context.Context, files []string, macros map[string]string) error {
	if len(files) == 0 {
		return nil
	}

	l.mu.Lock()
	if l.pool == nil {
		l.pool = worker.NewDynamicWorkerPool(l.workers, len(files), time.Second)
	}
	pool := l.pool
	l.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := time.Now()
	for i, file := range files {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID:      i,
			Payload: file,
			Do: func() (any, error) {
				defer wg.Done()
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				s, err := l.Variant(file, macros)
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return s, err
			},
		})
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	l.log.Infof("preloaded %d shader variants in %s", len(files), time.Since(start).Round(time.Microsecond))
	return nil
}

func (l *library) Invalidate(file string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	dropped := 0
	for key, v := range l.variants {
		for _, f := range v.files {
			if f == file {
				delete(l.variants, key)
				dropped++
				break
			}
		}
	}
	if dropped > 0 {
		l.log.Debugf("invalidated %d shader variants depending on %s", dropped, file)
	}
	return dropped
}

func (l *library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.variants)
}

func (l *library) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pool != nil {
		l.pool.Stop()
		l.pool = nil
	}
}
