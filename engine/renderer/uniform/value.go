package uniform

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// valueLayout is the WGSL uniform layout of a plain value kind.
type valueLayout struct {
	align, size uint64
	floats      int
}

var valueLayouts = map[Kind]valueLayout{
	KindU32:  {align: 4, size: 4, floats: 1},
	KindF32:  {align: 4, size: 4, floats: 1},
	KindVec2: {align: 8, size: 8, floats: 2},
	KindVec3: {align: 16, size: 12, floats: 3},
	KindVec4: {align: 16, size: 16, floats: 4},
	KindMat3: {align: 16, size: 48, floats: 9},
	KindMat4: {align: 16, size: 64, floats: 16},
}

// Value is a scalar, vector or matrix property.
type Value struct {
	kind   Kind
	layout valueLayout
	raw    [64]byte
}

var _ Property = &Value{}

func newValue(kind Kind, initial any) *Value {
	v := &Value{kind: kind, layout: valueLayouts[kind]}
	if initial != nil {
		v.Set(initial)
	}
	return v
}

// NewU32 creates a u32 property. An optional initial value is applied with Set.
func NewU32(initial ...any) *Value { return newValue(KindU32, first(initial)) }

// NewF32 creates an f32 property.
func NewF32(initial ...any) *Value { return newValue(KindF32, first(initial)) }

// NewVec2 creates a vec2<f32> property.
func NewVec2(initial ...any) *Value { return newValue(KindVec2, first(initial)) }

// NewVec3 creates a vec3<f32> property. It aligns to 16 bytes but occupies 12.
func NewVec3(initial ...any) *Value { return newValue(KindVec3, first(initial)) }

// NewVec4 creates a vec4<f32> property.
func NewVec4(initial ...any) *Value { return newValue(KindVec4, first(initial)) }

// NewMat3 creates a mat3x3<f32> property, stored as three 16-byte columns.
func NewMat3(initial ...any) *Value { return newValue(KindMat3, first(initial)) }

// NewMat4 creates a mat4x4<f32> property.
func NewMat4(initial ...any) *Value { return newValue(KindMat4, first(initial)) }

func first(values []any) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

func (v *Value) Kind() Kind    { return v.kind }
func (v *Value) Align() uint64 { return v.layout.align }
func (v *Value) Size() uint64  { return v.layout.size }

func (v *Value) Set(value any) {
	if v.kind == KindU32 {
		u, ok := toU32(value)
		if ok {
			binary.LittleEndian.PutUint32(v.raw[:4], u)
		}
		return
	}

	fs, ok := toFloats(value)
	if !ok || len(fs) != v.layout.floats {
		return
	}

	if v.kind == KindMat3 {
		for col := 0; col < 3; col++ {
			for row := 0; row < 3; row++ {
				putF32(v.raw[:], uint64(col*16+row*4), fs[col*3+row])
			}
		}
		return
	}
	for i, f := range fs {
		putF32(v.raw[:], uint64(i*4), f)
	}
}

func (v *Value) Write(dst []byte, base uint64) {
	copy(dst[base:base+v.layout.size], v.raw[:v.layout.size])
}

// Bytes returns a copy of the packed current value.
func (v *Value) Bytes() []byte {
	return append([]byte(nil), v.raw[:v.layout.size]...)
}

func putF32(dst []byte, off uint64, f float32) {
	binary.LittleEndian.PutUint32(dst[off:off+4], math.Float32bits(f))
}

func toU32(value any) (uint32, bool) {
	switch t := value.(type) {
	case uint32:
		return t, true
	case int:
		return uint32(t), true
	case int32:
		return uint32(t), true
	case uint:
		return uint32(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloats(value any) ([]float32, bool) {
	switch t := value.(type) {
	case float32:
		return []float32{t}, true
	case float64:
		return []float32{float32(t)}, true
	case mgl32.Vec2:
		return t[:], true
	case [2]float32:
		return t[:], true
	case mgl32.Vec3:
		return t[:], true
	case [3]float32:
		return t[:], true
	case mgl32.Vec4:
		return t[:], true
	case [4]float32:
		return t[:], true
	case mgl32.Mat3:
		return t[:], true
	case [9]float32:
		return t[:], true
	case mgl32.Mat4:
		return t[:], true
	case [16]float32:
		return t[:], true
	case []float32:
		return t, true
	}
	return nil, false
}
