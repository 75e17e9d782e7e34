package renderer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/config"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu sync.Mutex

	id       string
	log      logger.Logger
	provider gpu.Provider
	scene    Scene

	library     shader.Library
	ownsLibrary bool

	device  gpu.Device
	surface gpu.Surface

	width, height uint32
	presentMode   PresentMode
	clearColor    wgpu.Color
	shadowMapSize uint32
	historyWeight float32
	exposure      float32

	state          atomic.Int32
	stopped        atomic.Bool
	pendingRefresh atomic.Bool
	frame          atomic.Uint64

	requested config.Features
	features  config.Features

	layouts      map[string]pipeline.Layout
	placeholders *placeholders
	targets      *frameTargets

	sceneGroup   *uniform.BindGroup
	earlyzGroup  *uniform.BindGroup
	sceneBuffers *uniform.BufferManager
	sceneBind    gpu.BindGroup
	earlyzBind   gpu.BindGroup

	draws           []*draw
	objectBuffers   *uniform.BufferManager
	materialBuffers *uniform.BufferManager
	materialBinds   map[*uniform.BindGroup]gpu.BindGroup

	hiz         *hizPass
	shadow      *depthPass
	earlyz      *depthPass
	shading     ShadingStrategy
	composition *compositionPass
}

// Renderer drives the multi-pass frame pipeline for one scene on one surface.
//
// A Renderer moves through StateUninitialized, StateDeviceReady, StatePassesBuilt and StateRendering.
// Init acquires the device and builds every pass enabled by the requested features. Each
// RenderOneFrame then runs, in order: the Hi-Z pyramid from the previous frame's depth, the shadow
// passes, the scene uniform refresh, the early depth pass, the shading strategy and the composition
// into the surface. InitConfigRefresh swaps the feature set without reacquiring the device.
//
// The frame path is single threaded. Stop and RequestRefresh are safe to call from any goroutine and
// take effect at the top of the next frame.
type Renderer interface {
	DepthPassRenderer

	// Init acquires the device and surface, uploads the scene's meshes and materials, and builds the
	// passes for the features given to NewRenderer.
	//
	// Parameters:
	//   - ctx: cancels device acquisition and shader preloading
	//
	// Returns:
	//   - error: ErrNoAdapter or ErrNoDevice (wrapped) when acquisition fails, ErrAlreadyInitialized
	//     on a second call, or the first pass construction error
	Init(ctx context.Context) error

	// InitConfigRefresh rebuilds every pass for a new feature set. All shader variants are preloaded
	// before anything is released, so a preprocessing failure leaves the current passes intact.
	//
	// Parameters:
	//   - ctx: cancels shader preloading
	//   - features: the new feature flags, normalized before use
	//
	// Returns:
	//   - error: ErrNotReady before Init, or the first build error
	InitConfigRefresh(ctx context.Context, features config.Features) error

	// RenderOneFrame records, submits and presents one frame.
	// A frame that fails after its passes were built is logged and dropped; rendering continues with
	// the next call.
	//
	// Returns:
	//   - error: ErrStopped after Stop, or ErrNotReady when the passes are not built
	RenderOneFrame() error

	// Resize reconfigures the surface and rebuilds every size-dependent target.
	// A zero dimension is ignored so minimized windows keep their last targets.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	Resize(width, height int)

	// RequestRefresh marks the passes for a rebuild with the current features at the top of the
	// next frame.
	RequestRefresh()

	// Stop makes every later RenderOneFrame return ErrStopped.
	Stop()

	// Dispose releases every GPU object, the device and the surface, and returns the Renderer to
	// StateUninitialized.
	Dispose()

	// State returns the current lifecycle state.
	State() State

	// Features returns the normalized features the passes were last built for.
	Features() config.Features

	// Shading returns the active shading strategy, or nil before the passes are built.
	Shading() ShadingStrategy

	// Frame returns the number of frames presented since Init.
	Frame() uint64

	// Library returns the shader variant library the passes are built from.
	Library() shader.Library
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer for scene that acquires its device from provider on Init.
//
// Parameters:
//   - provider: the device and surface source
//   - scene: the scene to render
//   - features: the feature flags the passes are first built for
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the newly created Renderer, in StateUninitialized
func NewRenderer(provider gpu.Provider, scene Scene, features config.Features, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		id:            uuid.NewString(),
		log:           logger.Nop(),
		provider:      provider,
		scene:         scene,
		width:         1280,
		height:        720,
		presentMode:   PresentModeVSync,
		clearColor:    wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		shadowMapSize: 2048,
		historyWeight: 0.1,
		exposure:      1,
		requested:     features.Normalize(),
		layouts:       make(map[string]pipeline.Layout),
	}
	for _, opt := range options {
		opt(r)
	}
	if r.library == nil {
		r.library = shader.NewLibrary(shader.Assets, shader.WithLogger(r.log))
		r.ownsLibrary = true
	}
	r.log = r.log.With("renderer", r.id[:8])
	return r
}

func (r *renderer) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() != StateUninitialized {
		return ErrAlreadyInitialized
	}

	device, surface, err := r.provider.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire device: %w", err)
	}
	r.device, r.surface = device, surface

	if err := r.initDevice(); err != nil {
		r.releaseDevice()
		return err
	}
	r.state.Store(int32(StateDeviceReady))
	r.log.Infof("device ready, surface %dx%d", r.width, r.height)

	return r.refresh(ctx, r.requested)
}

// initDevice builds the resources that do not depend on the feature set.
func (r *renderer) initDevice() error {
	if err := r.surface.Configure(r.width, r.height, r.presentMode == PresentModeVSync); err != nil {
		return fmt.Errorf("failed to configure surface: %w", err)
	}
	if cam := r.scene.Camera(); cam != nil {
		cam.SetAspect(float32(r.width) / float32(r.height))
	}

	p, err := newPlaceholders(r.device)
	if err != nil {
		return err
	}
	r.placeholders = p
	return nil
}

func (r *renderer) InitConfigRefresh(ctx context.Context, features config.Features) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() == StateUninitialized {
		return ErrNotReady
	}
	return r.refresh(ctx, features)
}

// refresh preloads every variant the features need, then tears down and rebuilds the passes.
func (r *renderer) refresh(ctx context.Context, features config.Features) error {
	features = features.Normalize()
	r.requested = features
	macros := features.Macros()

	if err := r.library.Preload(ctx, shader.PassPaths(), macros); err != nil {
		return fmt.Errorf("failed to preload shaders: %w", err)
	}
	if features.ShadowMapping {
		if err := r.library.Preload(ctx, []string{shader.PathDepth}, shader.WithMacro(macros, shader.MacroShadowPass)); err != nil {
			return fmt.Errorf("failed to preload shadow shader: %w", err)
		}
	}
	if features.OcclusionCulling {
		if err := r.library.Preload(ctx, []string{shader.PathHiZ}, shader.WithMacro(macros, shader.MacroHiZCopy)); err != nil {
			return fmt.Errorf("failed to preload hi-z shader: %w", err)
		}
	}

	r.releasePasses()
	r.features = features
	if !features.ShadowMapping {
		r.releaseShadows()
	}
	if err := r.buildPasses(macros); err != nil {
		r.releasePasses()
		r.state.Store(int32(StateDeviceReady))
		return err
	}
	r.state.Store(int32(StatePassesBuilt))
	r.log.Infof("passes built: %s", features)
	return nil
}

// buildPasses builds the passes in dependency order. Targets and draws come first since every pass
// binds them; the scene groups need the shadow map and the Hi-Z pyramid; composition reads the
// shaded color target.
func (r *renderer) buildPasses(macros map[string]string) error {
	targets, err := newFrameTargets(r.device, r.width, r.height)
	if err != nil {
		return err
	}
	r.targets = targets

	if err := r.buildDraws(); err != nil {
		return fmt.Errorf("failed to build draws: %w", err)
	}

	if r.features.OcclusionCulling {
		if r.hiz, err = r.buildHiZ(macros); err != nil {
			return fmt.Errorf("failed to build hi-z pass: %w", err)
		}
	}
	if r.features.ShadowMapping {
		if r.shadow, err = r.buildShadowPass(macros); err != nil {
			return fmt.Errorf("failed to build shadow pass: %w", err)
		}
		if err := r.prepareShadows(); err != nil {
			return fmt.Errorf("failed to prepare shadow maps: %w", err)
		}
	}

	if err := r.buildSceneGroups(); err != nil {
		return fmt.Errorf("failed to build scene groups: %w", err)
	}

	if r.features.EarlyZ {
		if r.earlyz, err = r.buildEarlyZPass(macros); err != nil {
			return fmt.Errorf("failed to build early depth pass: %w", err)
		}
	}

	r.shading = newShadingStrategy(r.features.Shading)
	if err := r.shading.build(r, macros); err != nil {
		return fmt.Errorf("failed to build %s shading: %w", r.shading.Shading(), err)
	}

	if r.composition, err = r.buildComposition(macros); err != nil {
		return fmt.Errorf("failed to build composition pass: %w", err)
	}
	return nil
}

// buildSceneGroups creates group 0 of the shading passes and, with early depth, its camera-only twin.
// Both live in one shared buffer written once per frame.
func (r *renderer) buildSceneGroups() error {
	g, err := newSceneGroup()
	if err != nil {
		return err
	}
	hiz := r.placeholders.hiz.view
	if r.hiz != nil {
		hiz = r.hiz.view()
	}
	shadowMap := r.placeholders.depth.view
	if caster := r.shadowCaster(); caster != nil {
		shadowMap = caster.ShadowMap()
	}
	g.Set("shadowMap", shadowMap)
	g.Set("shadowSampler", r.placeholders.comparison)
	g.Set("hiz", hiz)
	r.sceneGroup = g

	groups := []*uniform.BindGroup{g}
	if r.features.EarlyZ {
		eg, err := newEarlyZGroup()
		if err != nil {
			return err
		}
		eg.Set("hiz", hiz)
		r.earlyzGroup = eg
		groups = append(groups, eg)
	}

	r.sceneBuffers = uniform.NewBufferManager(groupScene, groups...)
	if err := r.sceneBuffers.Create(r.device); err != nil {
		return err
	}

	layout, err := r.layout(groupScene, r.sceneGroup)
	if err != nil {
		return err
	}
	if r.sceneBind, err = r.sceneBuffers.CreateBindGroup(layout.Handle, r.sceneGroup); err != nil {
		return err
	}
	if r.earlyzGroup != nil {
		layout, err := r.layout(groupEarlyZ, r.earlyzGroup)
		if err != nil {
			return err
		}
		if r.earlyzBind, err = r.sceneBuffers.CreateBindGroup(layout.Handle, r.earlyzGroup); err != nil {
			return err
		}
	}
	return nil
}

// writeScene refreshes the camera of both scene groups, lets the scene write its lighting, adds the
// shadow caster's matrix and uploads the shared buffer.
func (r *renderer) writeScene() error {
	if cam := r.scene.Camera(); cam != nil {
		view, proj := cam.ViewMatrix(), cam.ProjMatrix()
		viewProj := proj.Mul4(view)
		w, h := float32(r.targets.width), float32(r.targets.height)
		camera := map[string]any{
			"viewProj":    viewProj,
			"view":        view,
			"invViewProj": viewProj.Inv(),
			"position":    cam.Position(),
			"near":        cam.Near(),
			"screen":      mgl32.Vec4{w, h, 1 / w, 1 / h},
		}
		r.sceneGroup.Set("camera", camera)
		if r.earlyzGroup != nil {
			r.earlyzGroup.Set("camera", camera)
		}
	}

	r.scene.ToBindGroup(r.sceneGroup)

	lighting := map[string]any{"shadowEnabled": false}
	if caster := r.shadowCaster(); caster != nil {
		lighting = map[string]any{
			"shadowEnabled":  true,
			"shadowViewProj": caster.ShadowViewProj(),
			"shadowTexel":    1 / float32(r.shadowMapSize),
		}
	}
	r.sceneGroup.Set("lighting", lighting)

	return r.sceneBuffers.WriteBuffer(r.device.Queue())
}

func (r *renderer) RenderOneFrame() error {
	if r.stopped.Load() {
		return ErrStopped
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() == StateUninitialized {
		return ErrNotReady
	}

	// A rebuild that failed after the old passes were released leaves the renderer device-ready; the
	// next requested refresh retries it with the features it was asked for.
	if r.pendingRefresh.Swap(false) {
		if err := r.refresh(context.Background(), r.rebuildFeatures()); err != nil {
			r.log.Errorf("pending refresh failed: %v", err)
		}
	}
	if s := r.State(); s != StatePassesBuilt && s != StateRendering {
		return ErrNotReady
	}

	r.state.Store(int32(StateRendering))
	if err := r.renderFrame(); err != nil {
		r.log.Warnf("frame %d dropped: %v", r.frame.Load(), err)
		return nil
	}
	r.frame.Add(1)
	return nil
}

func (r *renderer) renderFrame() error {
	if err := r.refreshDraws(); err != nil {
		return fmt.Errorf("draws: %w", err)
	}

	if r.hiz != nil {
		if err := r.submit("hiz", r.hiz.encode); err != nil {
			return fmt.Errorf("hi-z: %w", err)
		}
	}

	if r.shadow != nil {
		if err := r.renderShadows(); err != nil {
			return fmt.Errorf("shadows: %w", err)
		}
	}

	if err := r.writeScene(); err != nil {
		return fmt.Errorf("scene uniforms: %w", err)
	}

	if r.earlyz != nil {
		err := r.submit("earlyz", func(enc gpu.CommandEncoder) error {
			return r.earlyz.encode(r, enc, "earlyz", r.targets.depth.view, r.earlyzBind)
		})
		if err != nil {
			return fmt.Errorf("early depth: %w", err)
		}
	}

	if err := r.shading.onRendering(r); err != nil {
		return fmt.Errorf("%s shading: %w", r.shading.Shading(), err)
	}

	view, err := r.surface.AcquireView()
	if err != nil {
		return fmt.Errorf("failed to acquire surface image: %w", err)
	}
	err = r.submit("composition", func(enc gpu.CommandEncoder) error {
		return r.composition.encode(r, enc, view)
	})
	r.surface.Present()
	if err != nil {
		return fmt.Errorf("composition: %w", err)
	}
	r.composition.swap()
	return nil
}

// submit records one command buffer with encode and submits it.
func (r *renderer) submit(label string, encode func(gpu.CommandEncoder) error) error {
	enc, err := r.device.CreateCommandEncoder(label)
	if err != nil {
		return err
	}
	defer enc.Release()

	if err := encode(enc); err != nil {
		return err
	}
	cmd, err := enc.Finish()
	if err != nil {
		return err
	}
	defer cmd.Release()

	r.device.Queue().Submit(cmd)
	return nil
}

func (r *renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.width, r.height = uint32(width), uint32(height)
	if cam := r.scene.Camera(); cam != nil {
		cam.SetAspect(float32(width) / float32(height))
	}
	if r.State() == StateUninitialized {
		return
	}
	if err := r.surface.Configure(r.width, r.height, r.presentMode == PresentModeVSync); err != nil {
		r.log.Errorf("failed to reconfigure surface: %v", err)
		return
	}
	if err := r.refresh(context.Background(), r.rebuildFeatures()); err != nil {
		r.log.Errorf("failed to rebuild passes after resize: %v", err)
	}
}

// rebuildFeatures returns the built feature set, or the last requested one when no pass set is live.
func (r *renderer) rebuildFeatures() config.Features {
	if r.State() == StateDeviceReady {
		return r.requested
	}
	return r.features
}

func (r *renderer) RequestRefresh() {
	r.pendingRefresh.Store(true)
}

func (r *renderer) Stop() {
	r.stopped.Store(true)
}

func (r *renderer) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.releasePasses()
	r.releaseShadows()
	r.releaseDevice()
	if r.ownsLibrary {
		r.library.Close()
	}
	r.state.Store(int32(StateUninitialized))
}

// releaseShadows frees the shadow map of every light.
func (r *renderer) releaseShadows() {
	for _, l := range r.scene.Lights() {
		if l != nil {
			l.ReleaseShadow()
		}
	}
}

// releasePasses releases everything built by buildPasses. Layouts are dropped too so a rebuild sees
// the new feature set's descriptors.
func (r *renderer) releasePasses() {
	if r.composition != nil {
		r.composition.release()
		r.composition = nil
	}
	if r.shading != nil {
		r.shading.release()
		r.shading = nil
	}
	if r.earlyz != nil {
		r.earlyz.release()
		r.earlyz = nil
	}
	if r.sceneBind != nil {
		r.sceneBind.Release()
		r.sceneBind = nil
	}
	if r.earlyzBind != nil {
		r.earlyzBind.Release()
		r.earlyzBind = nil
	}
	if r.sceneBuffers != nil {
		r.sceneBuffers.Release()
		r.sceneBuffers = nil
	}
	r.sceneGroup, r.earlyzGroup = nil, nil
	if r.shadow != nil {
		r.shadow.release()
		r.shadow = nil
	}
	if r.hiz != nil {
		r.hiz.release()
		r.hiz = nil
	}
	r.releaseDraws()
	if r.targets != nil {
		r.targets.release()
		r.targets = nil
	}
	r.releaseLayouts()
}

func (r *renderer) releaseDevice() {
	if r.placeholders != nil {
		r.placeholders.release()
		r.placeholders = nil
	}
	if r.surface != nil {
		r.surface.Release()
		r.surface = nil
	}
	if r.device != nil {
		r.device.Release()
		r.device = nil
	}
}

func (r *renderer) State() State {
	return State(r.state.Load())
}

func (r *renderer) Features() config.Features {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.features
}

func (r *renderer) Shading() ShadingStrategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shading
}

func (r *renderer) Frame() uint64 {
	return r.frame.Load()
}

func (r *renderer) Library() shader.Library {
	return r.library
}
