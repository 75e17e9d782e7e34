package model

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newMaterialGroup(t *testing.T) *uniform.BindGroup {
	t.Helper()
	s, err := uniform.NewStruct(
		uniform.F("baseColor", uniform.NewVec4()),
		uniform.F("emissive", uniform.NewVec4()),
		uniform.F("metallic", uniform.NewF32()),
		uniform.F("roughness", uniform.NewF32()),
		uniform.F("normalScale", uniform.NewF32()),
		uniform.F("flags", uniform.NewU32()),
	)
	require.NoError(t, err)
	g, err := uniform.NewBindGroup("material",
		uniform.Entry{Name: "material", Binding: 0, Visibility: wgpu.ShaderStageFragment, Property: s},
		uniform.Entry{Name: "albedoMap", Binding: 1, Visibility: wgpu.ShaderStageFragment, Property: uniform.NewTexture(wgpu.TextureSampleTypeFloat)},
		uniform.Entry{Name: "normalMap", Binding: 2, Visibility: wgpu.ShaderStageFragment, Property: uniform.NewTexture(wgpu.TextureSampleTypeFloat)},
		uniform.Entry{Name: "materialSampler", Binding: 3, Visibility: wgpu.ShaderStageFragment, Property: uniform.NewSampler(wgpu.SamplerBindingTypeFiltering)},
	)
	require.NoError(t, err)
	return g
}

func TestVertexMarshalLayout(t *testing.T) {
	v := Vertex{
		Position: [3]float32{1, 2, 3},
		Normal:   [3]float32{4, 5, 6},
		UV:       [2]float32{7, 8},
		Tangent:  [4]float32{9, 10, 11, 12},
	}
	buf := make([]byte, VertexStride)
	v.Marshal(buf)

	for i := 0; i < 12; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		assert.Equal(t, float32(i+1), got, "float %d", i)
	}
}

func TestMeshUploadOnce(t *testing.T) {
	d := gputest.NewDevice()
	m := Cube("cube", 2)

	require.NoError(t, m.Upload(d))
	require.NoError(t, m.Upload(d))

	buffers := d.Buffers()
	require.Len(t, buffers, 2)
	assert.Equal(t, "cube.vertices", buffers[0].Label())
	assert.Equal(t, uint64(24*VertexStride), buffers[0].Size())
	assert.Equal(t, uint64(36*4), buffers[1].Size())
	assert.Equal(t, uint32(24), m.VertexCount())
	assert.Equal(t, uint32(36), m.IndexCount())
	assert.Equal(t, wgpu.IndexFormatUint32, m.IndexFormat())
	assert.InDelta(t, math.Sqrt(3), m.Radius(), 1e-5)
}

func TestMeshWithoutIndices(t *testing.T) {
	d := gputest.NewDevice()
	m := NewMesh("tri", []Vertex{{Position: [3]float32{1, 0, 0}}, {}, {}}, nil)

	require.NoError(t, m.Upload(d))
	assert.NotNil(t, m.VertexBuffer())
	assert.Nil(t, m.IndexBuffer())
	assert.Len(t, d.Buffers(), 1)
}

func TestEmptyMeshFailsUpload(t *testing.T) {
	err := NewMesh("empty", nil, nil).Upload(gputest.NewDevice())
	assert.ErrorIs(t, err, ErrEmptyMesh)
}

func TestMeshRelease(t *testing.T) {
	d := gputest.NewDevice()
	m := Plane("ground", 10)
	require.NoError(t, m.Upload(d))

	m.Release()
	for _, b := range d.Buffers() {
		assert.True(t, b.Released)
	}
	assert.Nil(t, m.VertexBuffer())

	require.NoError(t, m.Upload(d))
	assert.Len(t, d.Buffers(), 4)
}

func TestCubeFacesPointOutward(t *testing.T) {
	m := Cube("cube", 1)
	v, idx := m.Vertices(), m.Indices()
	for i := 0; i < len(idx); i += 3 {
		a := mgl32.Vec3(v[idx[i]].Position)
		b := mgl32.Vec3(v[idx[i+1]].Position)
		c := mgl32.Vec3(v[idx[i+2]].Position)
		n := b.Sub(a).Cross(c.Sub(a)).Normalize()
		assert.InDelta(t, 1, n.Dot(mgl32.Vec3(v[idx[i]].Normal)), 1e-5, "triangle %d", i/3)
	}
}

func TestMaterialToBindGroupWithoutTextures(t *testing.T) {
	g := newMaterialGroup(t)
	m := NewMaterial("plain", WithBaseColor(0.5, 0.25, 1, 1), WithMetallicRoughness(2, -1))

	require.NoError(t, m.Upload(gputest.NewDevice()))
	m.ToBindGroup(g)

	assert.Equal(t, uint32(0), m.Flags())
	assert.Equal(t, float32(1), m.Metallic())
	assert.Equal(t, float32(0), m.Roughness())
	assert.Nil(t, g.Property("albedoMap").(*uniform.Resource).View())
}

func TestMaterialUploadsTextures(t *testing.T) {
	d := gputest.NewDevice()
	g := newMaterialGroup(t)
	sampler := &common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeNearest,
		MinFilter:    wgpu.FilterModeNearest,
	}
	m := NewMaterial("textured",
		WithAlbedoTexture(&common.ImportedTexture{Data: pngBytes(t, 4, 2), SamplerData: sampler}),
		WithNormalTexture(&common.ImportedTexture{Data: pngBytes(t, 2, 2)}),
	)

	require.NoError(t, m.Upload(d))
	require.NoError(t, m.Upload(d))
	m.ToBindGroup(g)

	textures := d.Textures()
	require.Len(t, textures, 2)
	assert.Equal(t, "textured.albedo", textures[0].Label())
	assert.Equal(t, uint32(4), textures[0].Width())
	assert.Equal(t, wgpu.TextureFormatRGBA8UnormSrgb, textures[0].Format())
	assert.Equal(t, FlagAlbedoMap|FlagNormalMap, m.Flags())
	assert.NotNil(t, g.Property("albedoMap").(*uniform.Resource).View())
	assert.NotNil(t, g.Property("materialSampler").(*uniform.Resource).Sampler())

	m.Release()
	assert.True(t, textures[0].Released)
	assert.Equal(t, uint32(0), m.Flags())
}

func TestMaterialUploadFailsOnBadTexture(t *testing.T) {
	m := NewMaterial("broken", WithAlbedoTexture(&common.ImportedTexture{Data: []byte("not an image")}))
	assert.Error(t, m.Upload(gputest.NewDevice()))
}

func TestNewMaterialFromImported(t *testing.T) {
	m := NewMaterialFromImported(common.ImportedMaterial{
		Name:      "imported",
		BaseColor: [4]float32{0.1, 0.2, 0.3, 1},
		Metallic:  0.5,
		Roughness: 0.4,
	})
	assert.Equal(t, "imported", m.Label())
	assert.Equal(t, mgl32.Vec4{0.1, 0.2, 0.3, 1}, m.BaseColor())
	assert.Equal(t, float32(0.5), m.Metallic())
}

func TestModelDefaults(t *testing.T) {
	m := NewModel(Cube("cube", 1), NewMaterial("white"))

	assert.Equal(t, "cube", m.Name())
	assert.Equal(t, []mgl32.Mat4{mgl32.Ident4()}, m.Instances())
	assert.Equal(t, mgl32.Ident4(), m.Transform())
}

func TestModelTransformOrder(t *testing.T) {
	m := NewModel(Cube("cube", 1), nil,
		WithPosition(1, 0, 0),
		WithScale(2, 2, 2),
		WithRotation(0, math.Pi/2, 0),
	)

	p := m.Transform().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 1, p.X(), 1e-5)
	assert.InDelta(t, -2, p.Z(), 1e-5)
	assert.Nil(t, m.Material())
}

func TestModelInstances(t *testing.T) {
	m := NewModel(Cube("cube", 1), nil, WithGrid(4, 2))

	instances := m.Instances()
	require.Len(t, instances, 4)
	assert.Equal(t, mgl32.Translate3D(-1, 0, -1), instances[0])
	assert.Equal(t, mgl32.Translate3D(1, 0, 1), instances[3])

	m.SetInstances(nil)
	assert.Empty(t, m.Instances())

	m.AddInstance(mgl32.Ident4())
	assert.Len(t, m.Instances(), 1)
}
