// Package engine ties a window, a scene and the frame pipeline into a running viewer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/assets"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/config"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/profiler"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/window"
)

var (
	// ErrNoWindow is returned by Run when the engine was built without a window.
	ErrNoWindow = errors.New("engine has no window")

	// ErrNoScene is returned by Run when the engine was built without a scene.
	ErrNoScene = errors.New("engine has no scene")
)

// engine implements the Engine interface.
// The window loop drives rendering on the calling goroutine; the tick loop runs on its own.
type engine struct {
	log        logger.Logger
	cfg        config.Config
	configPath string

	window   window.Window
	scene    scene.Scene
	renderer renderer.Renderer
	library  shader.Library
	watcher  assets.ShaderWatcher

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	tickRateChannel chan time.Duration
	engineTickRate  time.Duration
	tickCallback    func(deltaTime float32)
	renderCallback  func(deltaTime float32)

	renderFrameLimit time.Duration
	lastRender       time.Time

	orbitSpeed float32
	zoomSpeed  float32

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	quitOnce sync.Once
	quit     atomic.Bool
}

// Engine is the main entry point of the viewer.
// It owns the renderer for its scene, maps input to camera motion and feature toggles,
// and persists feature changes to the settings file.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Scene returns the rendered scene.
	//
	// Returns:
	//   - scene.Scene: the scene
	Scene() scene.Scene

	// Renderer returns the frame pipeline, or nil before Run creates it.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Features returns the feature flags currently requested.
	//
	// Returns:
	//   - config.Features: the normalized features
	Features() config.Features

	// SetFeatures rebuilds the passes for f and persists it when a settings path is set.
	// When the rebuild fails the previous features stay active.
	//
	// Parameters:
	//   - ctx: cancels shader preloading
	//   - f: the new feature flags
	//
	// Returns:
	//   - error: the rebuild error
	SetFeatures(ctx context.Context, f config.Features) error

	// HandleKey applies the feature toggle bound to key.
	//
	// Parameters:
	//   - ctx: cancels shader preloading
	//   - keyCode: the key code, see common.Key*
	//
	// Returns:
	//   - bool: whether the key is bound
	HandleKey(ctx context.Context, keyCode uint32) bool

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick on the tick goroutine.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame on the window goroutine.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run initializes the renderer, starts the shader watcher when hot reload is configured and
	// processes window messages until the window closes, ctx is cancelled or Quit is called.
	// Every resource is released before it returns. It must run on the goroutine that created the window.
	//
	// Parameters:
	//   - ctx: stops the engine when cancelled
	//
	// Returns:
	//   - error: ErrNoWindow, ErrNoScene or a renderer initialization error
	Run(ctx context.Context) error

	// Quit signals the engine to stop. Safe to call multiple times and from any goroutine.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		cfg:             config.Default(),
		tickRateChannel: make(chan time.Duration, 1),
		engineTickRate:  time.Second / 60,
		orbitSpeed:      0.005,
		zoomSpeed:       0.5,
	}
	for _, opt := range options {
		opt(e)
	}
	e.cfg.Features = e.cfg.Features.Normalize()
	if e.log == nil {
		e.log = logger.New(logger.Options{Prefix: "oxy", Level: common.Coalesce(e.cfg.Log.Level, "info")})
	}
	e.profiler = profiler.NewProfiler(profiler.WithLogger(e.log.With("component", "profiler")))
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Features() config.Features {
	return e.cfg.Features
}

func (e *engine) SetFeatures(ctx context.Context, f config.Features) error {
	f = f.Normalize()
	if e.renderer != nil && e.renderer.State() != renderer.StateUninitialized {
		if err := e.renderer.InitConfigRefresh(ctx, f); err != nil {
			return fmt.Errorf("failed to apply features %s: %w", f, err)
		}
	}
	e.cfg.Features = f
	e.log.Infof("features: %s", f)

	if e.configPath != "" {
		if err := config.Save(e.configPath, e.cfg); err != nil {
			e.log.Warnf("failed to persist features: %v", err)
		}
	}
	return nil
}

func (e *engine) HandleKey(ctx context.Context, keyCode uint32) bool {
	if keyCode == common.KeyF {
		if e.profilingEnabled.Load() {
			e.DisableProfiler()
		} else {
			e.EnableProfiler()
		}
		return true
	}
	f, ok := toggleFeature(e.cfg.Features, keyCode)
	if !ok {
		return false
	}
	e.log.Debugf("key %s", common.KeyName(keyCode))
	if err := e.SetFeatures(ctx, f); err != nil {
		e.log.Errorf("%v", err)
	}
	return true
}

// toggleFeature flips the flag bound to keyCode. Digits 1-8 toggle the boolean flags in declaration
// order, G switches between forward and deferred shading and 0 restores the defaults.
func toggleFeature(f config.Features, keyCode uint32) (config.Features, bool) {
	switch keyCode {
	case common.Key1:
		f.NormalMapping = !f.NormalMapping
	case common.Key2:
		f.ShadowMapping = !f.ShadowMapping
	case common.Key3:
		f.SoftShadows = !f.SoftShadows
	case common.Key4:
		f.Instancing = !f.Instancing
	case common.Key5:
		f.StaticBatching = !f.StaticBatching
	case common.Key6:
		f.ToneMapping = !f.ToneMapping
	case common.Key7:
		f.EarlyZ = !f.EarlyZ
	case common.Key8:
		f.OcclusionCulling = !f.OcclusionCulling
	case common.KeyG:
		if f.Shading == config.ShadingDeferred {
			f.Shading = config.ShadingForward
		} else {
			f.Shading = config.ShadingDeferred
		}
	case common.Key0:
		return config.DefaultFeatures(), true
	default:
		return f, false
	}
	return f, true
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect on the next tick.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	// Replace any pending update so the latest rate wins.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Run(ctx context.Context) error {
	if e.window == nil {
		return ErrNoWindow
	}
	if e.scene == nil {
		return ErrNoScene
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer e.shutdown()

	if err := e.initRenderer(ctx); err != nil {
		return err
	}
	e.scene.SetOnChange(e.renderer.RequestRefresh)
	if err := e.startWatcher(ctx); err != nil {
		return err
	}
	e.bindInput(ctx)

	e.wg.Add(1)
	go e.handleEngine(ctx)

	e.lastRender = time.Now()
	e.window.SetUpdateCallback(e.frame)
	e.window.ProcessMessages(ctx)
	return nil
}

// initRenderer creates the shader library and renderer when none was injected, and initializes the renderer.
func (e *engine) initRenderer(ctx context.Context) error {
	if e.renderer == nil {
		var fsys fs.FS = shader.Assets
		if e.cfg.Shaders.Dir != "" {
			fsys = os.DirFS(e.cfg.Shaders.Dir)
		}
		e.library = shader.NewLibrary(fsys,
			shader.WithLogger(e.log.With("component", "shaders")),
			shader.WithPreloadWorkers(common.Coalesce(e.cfg.Shaders.PreloadWorkers, 4)),
		)

		presentMode := renderer.PresentModeUncapped
		if e.cfg.Renderer.VSync {
			presentMode = renderer.PresentModeVSync
		}
		e.renderer = renderer.NewRenderer(
			e.window.Provider(e.cfg.Renderer.ForceFallbackAdapter),
			e.scene,
			e.cfg.Features,
			renderer.WithLogger(e.log),
			renderer.WithLibrary(e.library),
			renderer.WithSize(e.window.Width(), e.window.Height()),
			renderer.WithPresentMode(presentMode),
			renderer.WithShadowMapSize(common.Coalesce(e.cfg.Renderer.ShadowMapSize, 2048)),
			renderer.WithHistoryWeight(e.cfg.Renderer.HistoryWeight),
		)
	}
	if err := e.renderer.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}
	e.log.Infof("renderer ready: %s", e.renderer.Features())
	return nil
}

// startWatcher watches the on-disk shader root when hot reload is configured.
func (e *engine) startWatcher(ctx context.Context) error {
	if !e.cfg.Shaders.HotReload || e.cfg.Shaders.Dir == "" || e.library == nil {
		return nil
	}
	w, err := assets.NewShaderWatcher(e.cfg.Shaders.Dir, e.library,
		assets.WithLogger(e.log.With("component", "watcher")),
		assets.WithOnChange(func(string) { e.renderer.RequestRefresh() }),
	)
	if err != nil {
		return fmt.Errorf("failed to watch shaders: %w", err)
	}
	e.watcher = w

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, assets.ErrWatcherClosed) {
			e.log.Errorf("shader watcher stopped: %v", err)
		}
	}()
	return nil
}

// bindInput routes window events to the renderer, the scene camera and the feature toggles.
func (e *engine) bindInput(ctx context.Context) {
	e.window.SetResizeCallback(func(width, height int) {
		e.renderer.Resize(width, height)
	})
	e.window.SetDragCallback(func(dx, dy float32) {
		if cam, ok := e.scene.Camera().(camera.Camera); ok {
			cam.Orbit(-dx*e.orbitSpeed, dy*e.orbitSpeed)
		}
	})
	e.window.SetScrollCallback(func(delta float32) {
		if cam, ok := e.scene.Camera().(camera.Camera); ok {
			cam.Dolly(delta * e.zoomSpeed)
		}
	})
	e.window.SetKeyDownCallback(func(keyCode uint32) {
		e.HandleKey(ctx, keyCode)
	})
}

// frame renders one frame on the window goroutine.
func (e *engine) frame() {
	if e.quit.Load() {
		return
	}
	now := time.Now()
	dt := float32(now.Sub(e.lastRender).Seconds())
	e.lastRender = now

	if err := e.renderer.RenderOneFrame(); err != nil {
		if errors.Is(err, renderer.ErrStopped) {
			e.Quit()
			return
		}
		e.log.Debugf("frame skipped: %v", err)
	}

	if e.renderCallback != nil {
		e.renderCallback(dt)
	}
	if e.profilingEnabled.Load() {
		e.profiler.Tick()
	}

	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// handleEngine runs the fixed-rate tick loop until ctx is done, picking up rate changes from tickRateChannel.
func (e *engine) handleEngine(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// Quit stops the renderer and cancels the run context. Safe to call multiple times.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		e.quit.Store(true)
		if e.renderer != nil {
			e.renderer.Stop()
		}
		if e.cancel != nil {
			e.cancel()
		}
	})
}

// shutdown waits for the background goroutines and releases everything Run created.
func (e *engine) shutdown() {
	e.Quit()
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			e.log.Warnf("failed to close shader watcher: %v", err)
		}
	}
	e.wg.Wait()
	if e.renderer != nil {
		e.renderer.Dispose()
	}
	if e.library != nil {
		e.library.Close()
	}
	if err := e.window.Close(); err != nil {
		e.log.Warnf("failed to close window: %v", err)
	}
}
