package shader

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// featureMatrix enumerates every combination of the shader-visible flags under both shading modes.
func featureMatrix() []config.Features {
	var out []config.Features
	for mask := 0; mask < 1<<7; mask++ {
		for _, shading := range []config.Shading{config.ShadingForward, config.ShadingDeferred} {
			out = append(out, config.Features{
				NormalMapping:    mask&1 != 0,
				ShadowMapping:    mask&2 != 0,
				SoftShadows:      mask&4 != 0,
				Instancing:       mask&8 != 0,
				ToneMapping:      mask&16 != 0,
				EarlyZ:           mask&32 != 0,
				OcclusionCulling: mask&64 != 0,
				Shading:          shading,
			})
		}
	}
	return out
}

func TestBuiltinShadersPreprocessUnderEveryFeatureSet(t *testing.T) {
	for _, f := range featureMatrix() {
		macros := f.Macros()
		variants := map[string]map[string]string{
			PathDepth:             macros,
			PathDepth + "#shadow": WithMacro(macros, MacroShadowPass),
			PathHiZ:               macros,
			PathHiZ + "#copy":     WithMacro(macros, MacroHiZCopy),
			PathForward:           macros,
			PathGBuffer:           macros,
			PathDeferredLighting:  macros,
			PathComposition:       macros,
		}
		for name, m := range variants {
			file, _, _ := strings.Cut(name, "#")
			out, err := NewPreProcessor(Assets, m).Process(file)
			require.NoError(t, err, "%s under %s", name, f)

			for i, line := range strings.Split(out, "\n") {
				trimmed := strings.TrimSpace(line)
				assert.False(t, strings.HasPrefix(trimmed, "#"), "%s:%d keeps directive %q under %s", name, i+1, trimmed, f)
			}
			_, err = NewShader(name, out)
			require.NoError(t, err, "%s under %s", name, f)
		}
	}
}

func TestBuiltinIncludesExpandOnce(t *testing.T) {
	macros := config.DefaultFeatures().Macros()
	out, err := NewPreProcessor(Assets, macros).Process(PathForward)
	require.NoError(t, err)

	for _, decl := range []string{"struct Camera {", "struct Surface {", "struct Object {", "struct VertexInput {", "fn shade("} {
		assert.Equal(t, 1, strings.Count(out, decl), decl)
	}
	assert.Contains(t, out, "array<PointLight, 16>")
	assert.NotContains(t, out, "MAX_POINT_LIGHTS")
}

func TestBuiltinForwardReflection(t *testing.T) {
	f := config.DefaultFeatures()
	f.OcclusionCulling = true
	out, err := NewPreProcessor(Assets, f.Macros()).Process(PathForward)
	require.NoError(t, err)
	s, err := NewShader(PathForward, out)
	require.NoError(t, err)

	assert.Equal(t, "vs_main", s.EntryPoint(ShaderTypeVertex))
	assert.Equal(t, "fs_main", s.EntryPoint(ShaderTypeFragment))

	layouts := s.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(48), layouts[0].ArrayStride)

	byName := make(map[string]Binding)
	for _, b := range s.Bindings() {
		byName[b.Name] = b
	}
	assert.Equal(t, uint64(224), byName["camera"].Entry.Buffer.MinBindingSize)
	assert.Equal(t, uint64(128), byName["lighting"].Entry.Buffer.MinBindingSize)
	assert.Equal(t, uint64(512), byName["points"].Entry.Buffer.MinBindingSize)
	assert.Equal(t, uint64(144), byName["object"].Entry.Buffer.MinBindingSize)
	assert.Equal(t, uint64(48), byName["material"].Entry.Buffer.MinBindingSize)
	assert.Contains(t, byName, "shadowMap")
	assert.Contains(t, byName, "hiz")
	assert.Equal(t, uint32(5), byName["hiz"].Binding)
}

func TestBuiltinDepthVariants(t *testing.T) {
	f := config.DefaultFeatures()
	f.OcclusionCulling = true
	macros := f.Macros()

	out, err := NewPreProcessor(Assets, macros).Process(PathDepth)
	require.NoError(t, err)
	early, err := NewShader("earlyz", out)
	require.NoError(t, err)
	assert.False(t, early.HasStage(ShaderTypeFragment))
	require.Len(t, early.Bindings(), 4)
	assert.Equal(t, "camera", early.Bindings()[0].Name)
	assert.Equal(t, "hiz", early.Bindings()[1].Name)

	out, err = NewPreProcessor(Assets, WithMacro(macros, MacroShadowPass)).Process(PathDepth)
	require.NoError(t, err)
	shadow, err := NewShader("shadow", out)
	require.NoError(t, err)
	require.Len(t, shadow.Bindings(), 3)
	assert.Equal(t, "lightViewProj", shadow.Bindings()[0].Name)
	assert.Equal(t, uint64(64), shadow.Bindings()[0].Entry.Buffer.MinBindingSize)
	assert.NotContains(t, out, "occluded")
}

func TestBuiltinHiZVariants(t *testing.T) {
	out, err := NewPreProcessor(Assets, map[string]string{MacroHiZCopy: "1"}).Process(PathHiZ)
	require.NoError(t, err)
	copyShader, err := NewShader("hiz.copy", out)
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{8, 8, 1}, copyShader.WorkgroupSize())
	assert.Equal(t, "texture_depth_2d", copyShader.Bindings()[0].Type)

	out, err = NewPreProcessor(Assets, nil).Process(PathHiZ)
	require.NoError(t, err)
	down, err := NewShader("hiz.down", out)
	require.NoError(t, err)
	assert.Equal(t, "texture_2d<f32>", down.Bindings()[0].Type)
	assert.Equal(t, "build", down.EntryPoint(ShaderTypeCompute))
}

func TestWithMacroCopies(t *testing.T) {
	in := map[string]string{"A": "1"}
	out := WithMacro(in, "B")
	assert.Equal(t, map[string]string{"A": "1", "B": "1"}, out)
	assert.Len(t, in, 1)
}
