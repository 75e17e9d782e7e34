// Package uniform computes byte layouts for shader-visible data and packs bind groups into shared
// GPU buffers.
//
// Every Property has an alignment and size fixed at construction by its kind, so layouts are a pure
// function of the declaration. Only current values change, and a value change never moves an offset.
package uniform

import (
	"errors"
	"math"
)

// Kind tags the closed set of property variants.
type Kind int

const (
	KindU32 Kind = iota
	KindF32
	KindVec2
	KindVec3
	KindVec4
	KindMat3
	KindMat4
	KindArray
	KindStruct
	KindSampler
	KindTexture
	KindStorageTexture
)

var kindNames = [...]string{
	KindU32:            "u32",
	KindF32:            "f32",
	KindVec2:           "vec2<f32>",
	KindVec3:           "vec3<f32>",
	KindVec4:           "vec4<f32>",
	KindMat3:           "mat3x3<f32>",
	KindMat4:           "mat4x4<f32>",
	KindArray:          "array",
	KindStruct:         "struct",
	KindSampler:        "sampler",
	KindTexture:        "texture",
	KindStorageTexture: "texture_storage",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// NotResident is the Size and Align reported by samplers and textures, which occupy no buffer bytes.
const NotResident = math.MaxUint64

var (
	// ErrNonResidentField is returned when a struct or array is declared with a sampler or texture member.
	ErrNonResidentField = errors.New("samplers and textures cannot be members of a buffer-resident aggregate")

	// ErrInvalidLength is returned for arrays declared with a capacity below one.
	ErrInvalidLength = errors.New("array capacity must be at least 1")

	// ErrDuplicateName is returned when two fields or entries share a name.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrDuplicateBinding is returned when two bind group entries share a binding slot.
	ErrDuplicateBinding = errors.New("duplicate binding")
)

// Property is one shader-visible datum: a scalar, vector, matrix, array, struct, sampler or texture.
type Property interface {
	// Kind returns the variant tag.
	Kind() Kind

	// Align returns the WGSL alignment in bytes, or NotResident.
	Align() uint64

	// Size returns the WGSL size in bytes, or NotResident.
	Size() uint64

	// Set replaces the current value. Values of the wrong Go type are ignored.
	//
	// Parameters:
	//   - v: the new value
	Set(v any)

	// Write copies the current value into dst at base. Non-resident properties write nothing.
	//
	// Parameters:
	//   - dst: the destination staging bytes
	//   - base: the byte offset of this property within dst
	Write(dst []byte, base uint64)
}

// Resident reports whether p occupies bytes in a buffer.
func Resident(p Property) bool {
	return p.Size() != NotResident
}

// AlignUp rounds value up to the next multiple of alignment. Alignment must be a power of two.
func AlignUp(value, alignment uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}
