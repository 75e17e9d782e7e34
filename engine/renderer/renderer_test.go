package renderer

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/config"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSize = 64

func minimalFeatures() config.Features {
	return config.Features{Instancing: true, Shading: config.ShadingForward}
}

func allFeatures() config.Features {
	f := config.DefaultFeatures()
	f.OcclusionCulling = true
	return f
}

func newTestScene(items ...DrawItem) (*fakeScene, *fakeLight) {
	light := &fakeLight{}
	if len(items) == 0 {
		mesh := &fakeMesh{label: "cube", indexed: true}
		items = []DrawItem{newItem(mesh, &fakeMaterial{label: "red", color: mgl32.Vec4{1, 0, 0, 1}}, 2)}
	}
	return &fakeScene{camera: &fakeCamera{}, lights: []Light{light}, items: items}, light
}

func newTestRenderer(t *testing.T, scene Scene, features config.Features, opts ...RendererBuilderOption) (*renderer, *gputest.Provider) {
	t.Helper()
	p := gputest.NewProvider()
	opts = append([]RendererBuilderOption{WithSize(testSize, testSize), WithShadowMapSize(32)}, opts...)
	r := NewRenderer(p, scene, features, opts...).(*renderer)
	t.Cleanup(r.Dispose)
	return r, p
}

func initRenderer(t *testing.T, scene Scene, features config.Features, opts ...RendererBuilderOption) (*renderer, *gputest.Provider) {
	t.Helper()
	r, p := newTestRenderer(t, scene, features, opts...)
	require.NoError(t, r.Init(context.Background()))
	return r, p
}

func submissionLabels(d *gputest.Device) []string {
	var labels []string
	for _, s := range d.Submissions() {
		labels = append(labels, s.Label)
	}
	return labels
}

// lastPass returns the first pass of the latest submission with label.
func lastPass(t *testing.T, d *gputest.Device, label string) gputest.Pass {
	t.Helper()
	subs := d.Submissions()
	for i := len(subs) - 1; i >= 0; i-- {
		if subs[i].Label == label {
			require.NotEmpty(t, subs[i].Passes)
			return subs[i].Passes[0]
		}
	}
	t.Fatalf("no submission labelled %q", label)
	return gputest.Pass{}
}

// liveTexture returns the most recent unreleased texture with label.
func liveTexture(t *testing.T, d *gputest.Device, label string) gpu.Texture {
	t.Helper()
	texs := d.Textures()
	for i := len(texs) - 1; i >= 0; i-- {
		if texs[i].Label() == label && !texs[i].Released {
			return texs[i]
		}
	}
	t.Fatalf("no live texture labelled %q", label)
	return nil
}

func TestInitBuildsPasses(t *testing.T) {
	scene, light := newTestScene()
	r, p := newTestRenderer(t, scene, config.DefaultFeatures())
	assert.Equal(t, StateUninitialized, r.State())

	require.NoError(t, r.Init(context.Background()))
	assert.Equal(t, StatePassesBuilt, r.State())
	assert.Equal(t, 1, p.Acquired)
	assert.Equal(t, 1, p.Surface.Configured)
	assert.Equal(t, config.ShadingForward, r.Shading().Shading())
	assert.Equal(t, config.DefaultFeatures().Normalize(), r.Features())
	assert.Equal(t, 1, light.prepared)
	assert.NotNil(t, r.shadow)
	assert.NotNil(t, r.earlyz)
	assert.Nil(t, r.hiz)
	assert.Equal(t, 1, scene.items[0].Mesh().(*fakeMesh).uploads)
	assert.InDelta(t, 1, scene.camera.aspect, 1e-6)

	assert.ErrorIs(t, r.Init(context.Background()), ErrAlreadyInitialized)
	assert.Equal(t, 1, p.Acquired)
}

func TestInitAcquisitionFailure(t *testing.T) {
	scene, _ := newTestScene()
	r, p := newTestRenderer(t, scene, config.DefaultFeatures())
	p.Err = gpu.ErrNoAdapter

	err := r.Init(context.Background())
	assert.ErrorIs(t, err, ErrNoAdapter)
	assert.Equal(t, StateUninitialized, r.State())
	assert.ErrorIs(t, r.RenderOneFrame(), ErrNotReady)
	assert.ErrorIs(t, r.InitConfigRefresh(context.Background(), config.DefaultFeatures()), ErrNotReady)
}

func TestInitShaderFailureStaysDeviceReady(t *testing.T) {
	scene, _ := newTestScene()
	lib := shader.NewLibrary(fstest.MapFS{})
	t.Cleanup(lib.Close)
	r, _ := newTestRenderer(t, scene, config.DefaultFeatures(), WithLibrary(lib))

	require.Error(t, r.Init(context.Background()))
	assert.Equal(t, StateDeviceReady, r.State())
	assert.ErrorIs(t, r.RenderOneFrame(), ErrNotReady)
}

func TestRenderOneFrameOrder(t *testing.T) {
	scene, light := newTestScene()
	r, p := initRenderer(t, scene, allFeatures())
	p.Device.ResetSubmissions()

	require.NoError(t, r.RenderOneFrame())
	assert.Equal(t, []string{"hiz", "shadow", "earlyz", "forward", "composition"}, submissionLabels(p.Device))
	assert.Equal(t, StateRendering, r.State())
	assert.Equal(t, uint64(1), r.Frame())
	assert.Equal(t, 1, p.Surface.Presented)
	assert.Equal(t, 1, light.rendered)
	assert.Equal(t, 1, scene.writes)

	hiz := lastPass(t, p.Device, "hiz")
	assert.True(t, hiz.Compute)
	assert.Equal(t, int(gpu.MipLevels(testSize, testSize)), hiz.Dispatches)
}

func TestHiZReadsPreviousFrameDepth(t *testing.T) {
	scene, _ := newTestScene()
	r, p := initRenderer(t, scene, allFeatures())
	d := p.Device
	depth := liveTexture(t, d, "depth")
	hiz := liveTexture(t, d, "hiz")
	top := hiz.MipLevelCount() - 1

	require.NoError(t, r.RenderOneFrame())
	first := d.Content(depth, 0)
	require.NotZero(t, first)

	require.NoError(t, r.RenderOneFrame())
	assert.Equal(t, first, d.Content(hiz, 0))
	assert.Equal(t, first, d.Content(hiz, top))
	assert.NotEqual(t, first, d.Content(depth, 0))
}

func TestDisabledPassesDoNotRun(t *testing.T) {
	scene, light := newTestScene()
	r, p := initRenderer(t, scene, minimalFeatures())
	p.Device.ResetSubmissions()

	require.NoError(t, r.RenderOneFrame())
	assert.Equal(t, []string{"forward", "composition"}, submissionLabels(p.Device))
	assert.Zero(t, p.Device.SubmissionsWithLabel("shadow"))
	assert.Zero(t, light.prepared)
	assert.Zero(t, light.rendered)
	assert.Nil(t, r.ShadowViewLayout())
	assert.ErrorIs(t, r.RenderDepthPass("x", nil, nil), ErrPassDisabled)
}

func TestConfigRefreshToDeferred(t *testing.T) {
	scene, _ := newTestScene()
	r, p := initRenderer(t, scene, config.DefaultFeatures())
	require.NoError(t, r.RenderOneFrame())

	deferred := config.DefaultFeatures()
	deferred.Shading = config.ShadingDeferred
	require.NoError(t, r.InitConfigRefresh(context.Background(), deferred))
	assert.Equal(t, StatePassesBuilt, r.State())
	assert.Equal(t, config.ShadingDeferred, r.Shading().Shading())
	assert.Equal(t, 1, p.Acquired)

	p.Device.ResetSubmissions()
	require.NoError(t, r.RenderOneFrame())
	assert.Equal(t, []string{"shadow", "earlyz", "gbuffer", "lighting", "composition"}, submissionLabels(p.Device))
	assert.Equal(t, 1, lastPass(t, p.Device, "lighting").Draws)
}

func TestConfigRefreshPreloadFailureKeepsPasses(t *testing.T) {
	assets := fstest.MapFS{}
	require.NoError(t, fs.WalkDir(shader.Assets, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(shader.Assets, path)
		if err != nil {
			return err
		}
		assets[path] = &fstest.MapFile{Data: data}
		return nil
	}))
	lib := shader.NewLibrary(assets)
	t.Cleanup(lib.Close)

	scene, _ := newTestScene()
	r, p := initRenderer(t, scene, config.DefaultFeatures(), WithLibrary(lib))
	delete(assets, shader.PathGBuffer)

	deferred := config.DefaultFeatures()
	deferred.Shading = config.ShadingDeferred
	require.Error(t, r.InitConfigRefresh(context.Background(), deferred))
	assert.Equal(t, StatePassesBuilt, r.State())
	assert.Equal(t, config.ShadingForward, r.Shading().Shading())

	p.Device.ResetSubmissions()
	require.NoError(t, r.RenderOneFrame())
	assert.Equal(t, 1, p.Device.SubmissionsWithLabel("forward"))
}

func TestCompositionPingPong(t *testing.T) {
	scene, _ := newTestScene()
	r, p := initRenderer(t, scene, minimalFeatures())
	d := p.Device
	composed := [2]gpu.Texture{liveTexture(t, d, "composed.0"), liveTexture(t, d, "composed.1")}
	assert.False(t, r.composition.primed)

	require.NoError(t, r.RenderOneFrame())
	first := d.Content(composed[0], 0)
	assert.NotZero(t, first)
	assert.Zero(t, d.Content(composed[1], 0))
	assert.Equal(t, 1, r.composition.current)
	assert.True(t, r.composition.primed)

	require.NoError(t, r.RenderOneFrame())
	assert.Equal(t, first, d.Content(composed[0], 0))
	assert.NotZero(t, d.Content(composed[1], 0))
	assert.Equal(t, 0, r.composition.current)

	require.NoError(t, r.RenderOneFrame())
	assert.NotEqual(t, first, d.Content(composed[0], 0))
	assert.Equal(t, 3, p.Surface.Presented)
}

func TestZeroInstanceDrawsSkipped(t *testing.T) {
	mesh := &fakeMesh{label: "cube"}
	mat := &fakeMaterial{label: "grey"}
	scene, _ := newTestScene(newItem(mesh, mat, 0), newItem(&fakeMesh{label: "quad"}, mat, 2))
	r, p := initRenderer(t, scene, config.DefaultFeatures())

	require.NoError(t, r.RenderOneFrame())
	for _, label := range []string{"earlyz", "forward"} {
		pass := lastPass(t, p.Device, label)
		assert.Equal(t, 1, pass.Draws, label)
		assert.Equal(t, uint32(2), pass.Instances, label)
	}
}

func TestInstancingControlsDrawCalls(t *testing.T) {
	tests := []struct {
		name       string
		instancing bool
		draws      int
	}{
		{name: "instanced", instancing: true, draws: 1},
		{name: "per instance", instancing: false, draws: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene, _ := newTestScene(newItem(&fakeMesh{label: "cube", indexed: true}, &fakeMaterial{label: "m"}, 3))
			f := minimalFeatures()
			f.Instancing = tt.instancing
			r, p := initRenderer(t, scene, f)

			require.NoError(t, r.RenderOneFrame())
			pass := lastPass(t, p.Device, "forward")
			assert.Equal(t, tt.draws, pass.Draws)
			assert.Equal(t, uint32(3), pass.Instances)
		})
	}
}

func TestStaticBatchingMergesDraws(t *testing.T) {
	mesh := &fakeMesh{label: "cube"}
	mat := &fakeMaterial{label: "m"}
	items := []DrawItem{newItem(mesh, mat, 1), newItem(mesh, mat, 2), newItem(&fakeMesh{label: "quad"}, mat, 1)}

	for _, batching := range []bool{true, false} {
		scene, _ := newTestScene(items...)
		f := minimalFeatures()
		f.StaticBatching = batching
		r, p := initRenderer(t, scene, f)

		require.NoError(t, r.RenderOneFrame())
		pass := lastPass(t, p.Device, "forward")
		assert.Equal(t, uint32(4), pass.Instances)
		if batching {
			assert.Equal(t, 2, pass.Draws)
			assert.Len(t, r.draws, 2)
		} else {
			assert.Equal(t, 3, pass.Draws)
		}
	}
	assert.Equal(t, 2, mesh.uploads)
}

func TestStaticBatch(t *testing.T) {
	a, b := &fakeMesh{label: "a"}, &fakeMesh{label: "b"}
	m1, m2 := &fakeMaterial{label: "1"}, &fakeMaterial{label: "2"}
	items := []DrawItem{
		newItem(a, m1, 1),
		newItem(b, m1, 1),
		newItem(a, m2, 1),
		newItem(a, m1, 1),
		&fakeItem{},
		nil,
	}

	batches := StaticBatch(items)
	require.Len(t, batches, 3)
	assert.Equal(t, []DrawItem{items[0], items[3]}, batches[0])
	assert.Equal(t, []DrawItem{items[1]}, batches[1])
	assert.Equal(t, []DrawItem{items[2]}, batches[2])
}

func TestBatchedDrawPremultipliesTransforms(t *testing.T) {
	mesh := &fakeMesh{label: "cube"}
	first := newItem(mesh, nil, 1)
	second := newItem(mesh, nil, 1)
	second.transform = mgl32.Translate3D(0, 5, 0)

	d := buildDrawList([]DrawItem{first, second}, true)
	require.Len(t, d, 1)
	g, err := newObjectGroup("object", d[0].capacity)
	require.NoError(t, err)
	d[0].object = g
	d[0].refresh()

	assert.True(t, d[0].batched)
	assert.Equal(t, uint32(2), d[0].instances)
	instances, ok := g.Property("instances").(*uniform.Array)
	require.True(t, ok)
	assert.Equal(t, 2, instances.Length())
	want := uniform.NewMat4(mgl32.Translate3D(0, 5, 0))
	assert.Equal(t, want.Bytes(), instances.Element(1).(*uniform.Value).Bytes())
}

func TestFrameFailureIsDropped(t *testing.T) {
	scene, light := newTestScene()
	r, p := initRenderer(t, scene, config.DefaultFeatures())
	light.fail = true
	p.Device.ResetSubmissions()

	require.NoError(t, r.RenderOneFrame())
	assert.Zero(t, r.Frame())
	assert.Zero(t, p.Device.SubmissionsWithLabel("composition"))

	light.fail = false
	require.NoError(t, r.RenderOneFrame())
	assert.Equal(t, uint64(1), r.Frame())
}

func TestRequestRefreshRebuildsAtFrameTop(t *testing.T) {
	scene, light := newTestScene()
	r, p := initRenderer(t, scene, config.DefaultFeatures())
	modules := len(p.Device.ShaderModules())

	r.RequestRefresh()
	assert.Len(t, p.Device.ShaderModules(), modules)

	require.NoError(t, r.RenderOneFrame())
	assert.Greater(t, len(p.Device.ShaderModules()), modules)
	assert.Equal(t, 2, light.prepared)
	assert.Equal(t, uint64(1), r.Frame())
}

func TestResizeRebuildsTargets(t *testing.T) {
	scene, _ := newTestScene()
	r, p := initRenderer(t, scene, allFeatures())

	r.Resize(0, 10)
	assert.Equal(t, uint32(testSize), r.targets.width)

	r.Resize(128, 32)
	assert.Equal(t, uint32(128), p.Surface.Width)
	assert.Equal(t, uint32(128), r.targets.width)
	assert.Equal(t, uint32(32), r.targets.height)
	assert.Equal(t, uint32(128), liveTexture(t, p.Device, "hiz").Width())
	assert.InDelta(t, 4, scene.camera.aspect, 1e-6)
	assert.Equal(t, StatePassesBuilt, r.State())
	require.NoError(t, r.RenderOneFrame())
}

func TestStop(t *testing.T) {
	scene, _ := newTestScene()
	r, p := initRenderer(t, scene, minimalFeatures())
	r.Stop()

	assert.ErrorIs(t, r.RenderOneFrame(), ErrStopped)
	assert.Zero(t, p.Surface.Presented)
}

func TestDisposeReleasesDevice(t *testing.T) {
	scene, light := newTestScene()
	r, p := initRenderer(t, scene, config.DefaultFeatures())
	require.NoError(t, r.RenderOneFrame())

	r.Dispose()
	assert.Equal(t, StateUninitialized, r.State())
	assert.True(t, p.Device.Released())
	assert.Nil(t, light.tex)
	assert.Nil(t, r.shading)
	assert.Empty(t, r.layouts)
}

func TestItemAddedAfterInitIsUploaded(t *testing.T) {
	scene, _ := newTestScene()
	r, p := initRenderer(t, scene, minimalFeatures())
	require.NoError(t, r.RenderOneFrame())

	late := &fakeMesh{label: "late"}
	mat := &fakeMaterial{label: "late"}
	scene.items = append(scene.items, newItem(late, mat, 1))
	r.RequestRefresh()
	p.Device.ResetSubmissions()
	require.NoError(t, r.RenderOneFrame())

	assert.Equal(t, 1, late.uploads)
	assert.NotNil(t, late.vb)
	assert.Equal(t, 1, mat.uploads)
	assert.Equal(t, 2, lastPass(t, p.Device, "forward").Draws)
}

func TestReleasedMeshIsNotDrawn(t *testing.T) {
	mesh := &fakeMesh{label: "cube"}
	scene, _ := newTestScene(newItem(mesh, nil, 1), newItem(&fakeMesh{label: "quad"}, nil, 1))
	r, p := initRenderer(t, scene, minimalFeatures())

	mesh.vb = nil
	p.Device.ResetSubmissions()
	require.NoError(t, r.RenderOneFrame())
	assert.Equal(t, 1, lastPass(t, p.Device, "forward").Draws)
}

func TestRefreshRecoversAfterFailedRebuild(t *testing.T) {
	scene, _ := newTestScene()
	r, p := initRenderer(t, scene, config.DefaultFeatures())
	require.NoError(t, r.RenderOneFrame())

	p.Device.FailModule = shader.VariantKey(shader.PathComposition, r.Features().Macros())
	r.RequestRefresh()
	assert.ErrorIs(t, r.RenderOneFrame(), ErrNotReady)
	assert.Equal(t, StateDeviceReady, r.State())

	p.Device.FailModule = ""
	assert.ErrorIs(t, r.RenderOneFrame(), ErrNotReady)

	r.RequestRefresh()
	p.Device.ResetSubmissions()
	require.NoError(t, r.RenderOneFrame())
	assert.Equal(t, StateRendering, r.State())
	assert.Equal(t, config.DefaultFeatures().Normalize(), r.Features())
	assert.Equal(t, uint64(2), r.Frame())
	assert.Equal(t, 1, p.Device.SubmissionsWithLabel("composition"))
}

func TestResizeRetriesFailedRebuild(t *testing.T) {
	scene, _ := newTestScene()
	r, p := initRenderer(t, scene, minimalFeatures())

	p.Device.FailModule = shader.VariantKey(shader.PathForward, r.Features().Macros())
	r.Resize(96, 96)
	assert.Equal(t, StateDeviceReady, r.State())

	p.Device.FailModule = ""
	r.Resize(128, 128)
	assert.Equal(t, StatePassesBuilt, r.State())
	require.NoError(t, r.RenderOneFrame())
}

func TestCompositionBufferFailureReleasesPasses(t *testing.T) {
	scene, _ := newTestScene()
	r, p := initRenderer(t, scene, config.DefaultFeatures())

	p.Device.FailBuffer = groupComposition
	r.RequestRefresh()
	assert.ErrorIs(t, r.RenderOneFrame(), ErrNotReady)
	assert.Nil(t, r.composition)
	for _, b := range p.Device.Buffers() {
		switch b.Label() {
		case groupScene, "objects", "materials":
			assert.True(t, b.Released, b.Label())
		}
	}
}

func TestDisablingShadowsReleasesShadowMaps(t *testing.T) {
	scene, light := newTestScene()
	r, p := initRenderer(t, scene, config.DefaultFeatures())
	require.NotNil(t, light.tex)
	tex := light.tex.(*gputest.Texture)

	f := config.DefaultFeatures()
	f.ShadowMapping = false
	require.NoError(t, r.InitConfigRefresh(context.Background(), f))
	assert.Nil(t, light.tex)
	assert.Nil(t, light.ShadowMap())
	assert.True(t, tex.Released)

	p.Device.ResetSubmissions()
	require.NoError(t, r.RenderOneFrame())
	assert.Zero(t, p.Device.SubmissionsWithLabel("shadow"))

	require.NoError(t, r.InitConfigRefresh(context.Background(), config.DefaultFeatures()))
	assert.NotNil(t, light.tex)
	assert.Equal(t, 2, light.prepared)
}
