package uniform

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32At(b []byte, off uint64) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4]))
}

func TestValueLayouts(t *testing.T) {
	cases := []struct {
		p           Property
		align, size uint64
	}{
		{NewU32(), 4, 4},
		{NewF32(), 4, 4},
		{NewVec2(), 8, 8},
		{NewVec3(), 16, 12},
		{NewVec4(), 16, 16},
		{NewMat3(), 16, 48},
		{NewMat4(), 16, 64},
	}
	for _, c := range cases {
		t.Run(c.p.Kind().String(), func(t *testing.T) {
			assert.Equal(t, c.align, c.p.Align())
			assert.Equal(t, c.size, c.p.Size())
		})
	}
}

func TestValueSetKeepsLayout(t *testing.T) {
	v := NewVec3(mgl32.Vec3{1, 2, 3})
	align, size := v.Align(), v.Size()

	v.Set(mgl32.Vec3{4, 5, 6})
	v.Set("not a vector")
	v.Set([]float32{1, 2})

	assert.Equal(t, align, v.Align())
	assert.Equal(t, size, v.Size())

	b := v.Bytes()
	assert.Equal(t, float32(4), f32At(b, 0))
	assert.Equal(t, float32(6), f32At(b, 8))
}

func TestMat3PacksColumns(t *testing.T) {
	m := NewMat3(mgl32.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9})
	b := m.Bytes()

	require.Len(t, b, 48)
	assert.Equal(t, float32(1), f32At(b, 0))
	assert.Equal(t, float32(4), f32At(b, 16))
	assert.Equal(t, float32(9), f32At(b, 40))
	assert.Equal(t, float32(0), f32At(b, 12))
}

func TestU32AcceptsIntegersAndBool(t *testing.T) {
	u := NewU32(7)
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(u.Bytes()))

	u.Set(true)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(u.Bytes()))

	u.Set(float32(3))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(u.Bytes()))
}

func TestStructLayout(t *testing.T) {
	s, err := NewStruct(
		F("a", NewVec3()),
		F("b", NewVec3()),
		F("c", NewF32()),
	)
	require.NoError(t, err)

	off, ok := s.Offset("b")
	require.True(t, ok)
	assert.Equal(t, uint64(16), off)

	off, _ = s.Offset("c")
	assert.Equal(t, uint64(28), off)
	assert.Equal(t, uint64(16), s.Align())
	assert.Equal(t, uint64(32), s.Size())
}

func TestStructLayoutIsDeterministic(t *testing.T) {
	build := func() *Struct {
		s, err := NewStruct(
			F("color", NewVec4()),
			F("roughness", NewF32()),
			F("uvScale", NewVec2()),
			F("model", NewMat4()),
		)
		require.NoError(t, err)
		return s
	}
	a, b := build(), build()

	offA, alignA, sizeA := a.ComputeLayout()
	offB, alignB, sizeB := b.ComputeLayout()
	assert.Equal(t, offA, offB)
	assert.Equal(t, alignA, alignB)
	assert.Equal(t, sizeA, sizeB)

	a.Set(map[string]any{"roughness": float32(0.5), "unknown": 1})
	offC, _, sizeC := a.ComputeLayout()
	assert.Equal(t, offA, offC)
	assert.Equal(t, sizeA, sizeC)
}

func TestStructRejectsNonResident(t *testing.T) {
	_, err := NewStruct(F("albedo", NewTexture(wgpu.TextureSampleTypeFloat)))
	assert.ErrorIs(t, err, ErrNonResidentField)

	_, err = NewStruct(F("a", NewF32()), F("a", NewF32()))
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestArrayRejects(t *testing.T) {
	_, err := NewArray(0, func() Property { return NewVec4() })
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = NewArray(2, func() Property { return NewSampler(wgpu.SamplerBindingTypeFiltering) })
	assert.ErrorIs(t, err, ErrNonResidentField)
}

func TestArrayWritesOnlyLength(t *testing.T) {
	arr, err := NewArray(4, func() Property { return NewVec4() })
	require.NoError(t, err)
	assert.Equal(t, uint64(16), arr.Stride())
	assert.Equal(t, uint64(64), arr.Size())

	arr.Set([]mgl32.Vec4{{1, 1, 1, 1}, {2, 2, 2, 2}})
	assert.Equal(t, 2, arr.Length())

	dst := make([]byte, arr.Size())
	for i := range dst {
		dst[i] = 0xAB
	}
	arr.Write(dst, 0)

	assert.Equal(t, float32(1), f32At(dst, 0))
	assert.Equal(t, float32(2), f32At(dst, 16))
	for _, b := range dst[32:] {
		assert.Equal(t, byte(0xAB), b)
	}
}

func TestArrayTruncatesAndKeepsElementsIndependent(t *testing.T) {
	arr, err := NewArray(2, func() Property { return NewF32() })
	require.NoError(t, err)

	arr.Set([]float32{1, 2, 3})
	assert.Equal(t, 2, arr.Length())
	assert.Equal(t, 2, arr.MaxLength())

	arr.Element(0).Set(float32(9))
	assert.Equal(t, float32(2), f32At(arr.Element(1).(*Value).Bytes(), 0))
}

func TestArrayOfStructs(t *testing.T) {
	arr, err := NewArray(3, func() Property {
		s, _ := NewStruct(F("position", NewVec3()), F("range", NewF32()))
		return s
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(16), arr.Stride())

	arr.Set([]map[string]any{{"range": float32(5)}, {"range": float32(6)}})
	dst := make([]byte, arr.Size())
	arr.Write(dst, 0)
	assert.Equal(t, float32(5), f32At(dst, 12))
	assert.Equal(t, float32(6), f32At(dst, 28))
}

func TestBindGroupRejectsDuplicates(t *testing.T) {
	_, err := NewBindGroup("g",
		Entry{Name: "a", Binding: 0, Property: NewF32()},
		Entry{Name: "a", Binding: 1, Property: NewF32()},
	)
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = NewBindGroup("g",
		Entry{Name: "a", Binding: 0, Property: NewF32()},
		Entry{Name: "b", Binding: 0, Property: NewF32()},
	)
	assert.ErrorIs(t, err, ErrDuplicateBinding)
}

func TestBindGroupLayoutDescriptor(t *testing.T) {
	g, err := NewBindGroup("material",
		Entry{Name: "params", Binding: 0, Visibility: wgpu.ShaderStageFragment, Property: NewVec3()},
		Entry{Name: "albedo", Binding: 1, Visibility: wgpu.ShaderStageFragment, Property: NewTexture(wgpu.TextureSampleTypeFloat)},
		Entry{Name: "linear", Binding: 2, Visibility: wgpu.ShaderStageFragment, Property: NewSampler(wgpu.SamplerBindingTypeFiltering)},
		Entry{Name: "instances", Binding: 3, Visibility: wgpu.ShaderStageVertex, Property: NewMat4(), Storage: StorageRead},
	)
	require.NoError(t, err)

	desc := g.LayoutDescriptor()
	require.Len(t, desc.Entries, 4)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, desc.Entries[0].Buffer.Type)
	assert.Equal(t, uint64(16), desc.Entries[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, desc.Entries[1].Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, desc.Entries[2].Sampler.Type)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, desc.Entries[3].Buffer.Type)
}

func TestBufferManagerOffsets(t *testing.T) {
	big, err := NewArray(18, func() Property { return NewVec4() })
	require.NoError(t, err)
	big.Set(make([]mgl32.Vec4, 18))

	frame, err := NewBindGroup("frame",
		Entry{Name: "time", Binding: 0, Property: NewF32()},
		Entry{Name: "lights", Binding: 1, Property: big},
	)
	require.NoError(t, err)
	object, err := NewBindGroup("object",
		Entry{Name: "model", Binding: 0, Property: NewMat4()},
	)
	require.NoError(t, err)

	m := NewBufferManager("shared", frame, object)

	off, _ := frame.Offset("time")
	assert.Equal(t, uint64(0), off)
	reserved, _ := frame.Reserved("time")
	assert.Equal(t, uint64(16), reserved)

	off, _ = frame.Offset("lights")
	assert.Equal(t, uint64(256), off)
	reserved, _ = frame.Reserved("lights")
	assert.Equal(t, uint64(288), reserved)

	// lights ends at byte 544, so the next entry starts at 768.
	off, _ = object.Offset("model")
	assert.Equal(t, uint64(768), off)
	assert.Equal(t, uint64(832), m.Size())
}

func TestBufferManagerNextEntryAfterPartialBlock(t *testing.T) {
	arr, err := NewArray(3, func() Property { return NewVec4() })
	require.NoError(t, err)

	pad, err := NewArray(16, func() Property { return NewVec4() })
	require.NoError(t, err)

	g, err := NewBindGroup("g",
		Entry{Name: "head", Binding: 0, Property: pad},
		Entry{Name: "tail", Binding: 1, Property: arr},
		Entry{Name: "next", Binding: 2, Property: NewF32()},
	)
	require.NoError(t, err)
	NewBufferManager("m", g)

	tail, _ := g.Offset("tail")
	reserved, _ := g.Reserved("tail")
	assert.Equal(t, uint64(256), tail)
	assert.Equal(t, uint64(48), reserved)
	assert.Equal(t, uint64(304), tail+reserved)

	next, _ := g.Offset("next")
	assert.Equal(t, uint64(512), next)
}

func TestBufferManagerOffsetsStableAcrossSet(t *testing.T) {
	g, err := NewBindGroup("g",
		Entry{Name: "a", Binding: 0, Property: NewVec3()},
		Entry{Name: "b", Binding: 1, Property: NewMat4()},
	)
	require.NoError(t, err)
	m := NewBufferManager("m", g)
	before, _ := g.Offset("b")
	size := m.Size()

	g.Set("a", mgl32.Vec3{1, 2, 3})
	g.Set("b", mgl32.Ident4())
	m.RecomputeOffsets()

	after, _ := g.Offset("b")
	assert.Equal(t, before, after)
	assert.Equal(t, size, m.Size())
}

func TestBufferManagerWriteBuffer(t *testing.T) {
	d := gputest.NewDevice()

	instances, err := NewArray(4, func() Property { return NewMat4() })
	require.NoError(t, err)

	g, err := NewBindGroup("object",
		Entry{Name: "tint", Binding: 0, Property: NewVec4(mgl32.Vec4{0.5, 0.25, 1, 1})},
		Entry{Name: "count", Binding: 1, Property: NewU32(3)},
		Entry{Name: "instances", Binding: 2, Property: instances, Storage: StorageRead},
	)
	require.NoError(t, err)
	instances.Set([]mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()})

	m := NewBufferManager("objects", g)
	require.NoError(t, m.Create(d))
	require.NoError(t, m.WriteBuffer(d.Queue()))

	shared := m.Buffer().(*gputest.Buffer)
	assert.Equal(t, 1, shared.Writes)
	assert.Equal(t, float32(0.25), f32At(shared.Data, 4))
	countOff, _ := g.Offset("count")
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(shared.Data[countOff:]))

	storage := g.StorageBuffer("instances").(*gputest.Buffer)
	assert.Equal(t, uint64(256), storage.Size())
	assert.Equal(t, 1, storage.Writes)
	assert.Equal(t, float32(1), f32At(storage.Data, 64))
	assert.Equal(t, float32(0), f32At(storage.Data, 128))
}

func TestBufferManagerBindGroup(t *testing.T) {
	d := gputest.NewDevice()

	view := NewTexture(wgpu.TextureSampleTypeFloat)
	sampler := NewSampler(wgpu.SamplerBindingTypeFiltering)

	g, err := NewBindGroup("material",
		Entry{Name: "params", Binding: 0, Property: NewVec4()},
		Entry{Name: "model", Binding: 1, Property: NewMat4(), Dynamic: true},
		Entry{Name: "albedo", Binding: 2, Property: view},
		Entry{Name: "linear", Binding: 3, Property: sampler},
	)
	require.NoError(t, err)

	tex, err := d.CreateTexture(&gpu.TextureDescriptor{
		Label:         "albedo",
		Width:         4,
		Height:        4,
		MipLevelCount: 1,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding,
	})
	require.NoError(t, err)
	tv, err := tex.CreateView(nil)
	require.NoError(t, err)
	s, err := d.CreateSampler(&wgpu.SamplerDescriptor{Label: "linear"})
	require.NoError(t, err)
	g.Set("albedo", tv)
	g.Set("linear", s)

	m := NewBufferManager("materials", g)
	_, err = m.CreateBindGroup(nil, g)
	require.Error(t, err)
	require.NoError(t, m.Create(d))

	desc := g.LayoutDescriptor()
	layout, err := d.CreateBindGroupLayout(&desc)
	require.NoError(t, err)

	bg, err := m.CreateBindGroup(layout, g)
	require.NoError(t, err)

	fake := bg.(*gputest.BindGroup)
	require.Len(t, fake.Entries, 4)
	assert.Equal(t, uint64(0), fake.Entries[0].Offset)
	assert.Equal(t, uint64(0), fake.Entries[1].Offset)
	assert.Equal(t, uint64(64), fake.Entries[1].Size)
	assert.Equal(t, tv, fake.Entries[2].TextureView)
	assert.Equal(t, s, fake.Entries[3].Sampler)

	assert.Equal(t, []uint32{256}, m.DynamicOffsets(g))
	assert.True(t, desc.Entries[1].Buffer.HasDynamicOffset)

	m.Release()
	assert.True(t, m.Buffer() == nil)
}

func TestDynamicOffsetsFollowBindingOrder(t *testing.T) {
	g, err := NewBindGroup("object",
		Entry{Name: "tint", Binding: 2, Property: NewVec4(), Dynamic: true},
		Entry{Name: "model", Binding: 0, Property: NewMat4(), Dynamic: true},
		Entry{Name: "params", Binding: 1, Property: NewVec4()},
	)
	require.NoError(t, err)

	m := NewBufferManager("objects", g)
	tint, _ := g.Offset("tint")
	model, _ := g.Offset("model")
	assert.Equal(t, uint64(0), tint)
	assert.Equal(t, uint64(256), model)
	assert.Equal(t, []uint32{256, 0}, m.DynamicOffsets(g))
}

func TestBufferManagerSkipsEmptySharedBuffer(t *testing.T) {
	d := gputest.NewDevice()
	g, err := NewBindGroup("textures",
		Entry{Name: "albedo", Binding: 0, Property: NewTexture(wgpu.TextureSampleTypeFloat)},
	)
	require.NoError(t, err)

	m := NewBufferManager("textures", g)
	assert.Equal(t, uint64(0), m.Size())
	require.NoError(t, m.Create(d))
	assert.Nil(t, m.Buffer())
	require.NoError(t, m.WriteBuffer(d.Queue()))
	assert.Empty(t, d.Buffers())
}
