package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/config"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer records the calls the engine makes. Methods the engine never calls panic through the nil embed.
type fakeRenderer struct {
	renderer.Renderer

	state      renderer.State
	refreshErr error
	frameErr   error
	refreshed  []config.Features
	frames     int
	stopped    bool
}

func (f *fakeRenderer) State() renderer.State { return f.state }

func (f *fakeRenderer) InitConfigRefresh(_ context.Context, features config.Features) error {
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.refreshed = append(f.refreshed, features)
	return nil
}

func (f *fakeRenderer) RenderOneFrame() error {
	f.frames++
	return f.frameErr
}

func (f *fakeRenderer) Stop() { f.stopped = true }

func newTestEngine(t *testing.T, r *fakeRenderer, options ...EngineBuilderOption) *engine {
	t.Helper()
	options = append([]EngineBuilderOption{WithRenderer(r), WithLogger(logger.Nop())}, options...)
	e, ok := NewEngine(options...).(*engine)
	require.True(t, ok)
	return e
}

func TestToggleFeature(t *testing.T) {
	base := config.DefaultFeatures()

	f, ok := toggleFeature(base, common.Key2)
	assert.True(t, ok)
	assert.Equal(t, !base.ShadowMapping, f.ShadowMapping)

	f, ok = toggleFeature(base, common.Key8)
	assert.True(t, ok)
	assert.Equal(t, !base.OcclusionCulling, f.OcclusionCulling)

	f, ok = toggleFeature(base, common.KeyG)
	assert.True(t, ok)
	assert.Equal(t, config.ShadingDeferred, f.Shading)
	f, _ = toggleFeature(f, common.KeyG)
	assert.Equal(t, config.ShadingForward, f.Shading)

	f, ok = toggleFeature(config.Features{}, common.Key0)
	assert.True(t, ok)
	assert.Equal(t, config.DefaultFeatures(), f)

	_, ok = toggleFeature(base, common.KeyW)
	assert.False(t, ok)
}

func TestSetFeaturesRefreshesAndPersists(t *testing.T) {
	r := &fakeRenderer{state: renderer.StateRendering}
	path := filepath.Join(t.TempDir(), "pipeline.toml")
	e := newTestEngine(t, r, WithConfigPath(path))

	f := config.DefaultFeatures()
	f.Shading = config.ShadingDeferred
	require.NoError(t, e.SetFeatures(context.Background(), f))

	require.Len(t, r.refreshed, 1)
	assert.Equal(t, f.Normalize(), r.refreshed[0])
	assert.Equal(t, f.Normalize(), e.Features())

	saved, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.ShadingDeferred, saved.Features.Shading)
}

func TestSetFeaturesKeepsPreviousOnError(t *testing.T) {
	r := &fakeRenderer{state: renderer.StatePassesBuilt, refreshErr: errors.New("preprocess failed")}
	e := newTestEngine(t, r)
	before := e.Features()

	f := before
	f.ToneMapping = !f.ToneMapping
	err := e.SetFeatures(context.Background(), f)
	assert.ErrorContains(t, err, "preprocess failed")
	assert.Equal(t, before, e.Features())
}

func TestSetFeaturesBeforeInitOnlyRecords(t *testing.T) {
	r := &fakeRenderer{state: renderer.StateUninitialized}
	e := newTestEngine(t, r)

	f := e.Features()
	f.NormalMapping = !f.NormalMapping
	require.NoError(t, e.SetFeatures(context.Background(), f))
	assert.Empty(t, r.refreshed)
	assert.Equal(t, f.Normalize(), e.Features())
}

func TestHandleKey(t *testing.T) {
	r := &fakeRenderer{state: renderer.StateRendering}
	e := newTestEngine(t, r)

	assert.True(t, e.HandleKey(context.Background(), common.Key6))
	require.Len(t, r.refreshed, 1)
	assert.Equal(t, !config.DefaultFeatures().ToneMapping, e.Features().ToneMapping)

	assert.True(t, e.HandleKey(context.Background(), common.KeyF))
	assert.True(t, e.profilingEnabled.Load())
	assert.Len(t, r.refreshed, 1)

	assert.False(t, e.HandleKey(context.Background(), common.KeyW))
}

func TestFrameQuitsWhenRendererStopped(t *testing.T) {
	r := &fakeRenderer{frameErr: renderer.ErrStopped}
	e := newTestEngine(t, r)

	e.frame()
	assert.Equal(t, 1, r.frames)
	assert.True(t, r.stopped)

	e.frame()
	assert.Equal(t, 1, r.frames)
}

func TestFrameContinuesAfterTransientError(t *testing.T) {
	r := &fakeRenderer{frameErr: renderer.ErrNotReady}
	e := newTestEngine(t, r)

	calls := 0
	e.SetRenderCallback(func(float32) { calls++ })
	e.frame()
	e.frame()
	assert.Equal(t, 2, r.frames)
	assert.Equal(t, 2, calls)
	assert.False(t, r.stopped)
}

func TestRunRequiresWindowAndScene(t *testing.T) {
	e := NewEngine(WithLogger(logger.Nop()))
	assert.ErrorIs(t, e.Run(context.Background()), ErrNoWindow)
}
