package model

import (
	"encoding/binary"
	"math"
)

// VertexStride is the size in bytes of one interleaved vertex in a mesh vertex buffer.
const VertexStride = 48

// Vertex is the GPU-aligned representation of a single mesh vertex.
// Matches the VertexInput struct shared by every geometry pass.
// Size: 48 bytes, no padding.
type Vertex struct {
	Position [3]float32 // offset  0: vertex position in model space (12 bytes)
	Normal   [3]float32 // offset 12: vertex normal for lighting (12 bytes)
	UV       [2]float32 // offset 24: texture coordinate (8 bytes)
	Tangent  [4]float32 // offset 32: tangent (xyz) + handedness (w) for normal mapping (16 bytes)
}

// Marshal serializes the Vertex into dst, which must hold at least VertexStride bytes.
//
// Parameters:
//   - dst: the destination slice
func (v *Vertex) Marshal(dst []byte) {
	put := func(off int, f float32) {
		binary.LittleEndian.PutUint32(dst[off:off+4], math.Float32bits(f))
	}
	for i, f := range v.Position {
		put(i*4, f)
	}
	for i, f := range v.Normal {
		put(12+i*4, f)
	}
	for i, f := range v.UV {
		put(24+i*4, f)
	}
	for i, f := range v.Tangent {
		put(32+i*4, f)
	}
}

// marshalVertices packs vertices into one contiguous buffer.
func marshalVertices(vertices []Vertex) []byte {
	buf := make([]byte, len(vertices)*VertexStride)
	for i := range vertices {
		vertices[i].Marshal(buf[i*VertexStride:])
	}
	return buf
}

// marshalIndices packs 32-bit indices into one contiguous buffer.
func marshalIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}
