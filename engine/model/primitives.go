package model

type quad struct {
	corners [4][3]float32
	normal  [3]float32
	tangent [4]float32
}

var quadUVs = [4][2]float32{{0, 1}, {0, 0}, {1, 0}, {1, 1}}

// Cube builds a unit cube scaled by size, centered on the origin, with outward counter-clockwise faces.
//
// Parameters:
//   - label: the mesh label
//   - size: the edge length
//
// Returns:
//   - Mesh: the cube mesh
func Cube(label string, size float32) Mesh {
	h := size / 2
	faces := []quad{
		{corners: [4][3]float32{{h, -h, -h}, {h, h, -h}, {h, h, h}, {h, -h, h}}, normal: [3]float32{1, 0, 0}, tangent: [4]float32{0, 0, 1, 1}},
		{corners: [4][3]float32{{-h, -h, h}, {-h, h, h}, {-h, h, -h}, {-h, -h, -h}}, normal: [3]float32{-1, 0, 0}, tangent: [4]float32{0, 0, -1, 1}},
		{corners: [4][3]float32{{-h, h, -h}, {-h, h, h}, {h, h, h}, {h, h, -h}}, normal: [3]float32{0, 1, 0}, tangent: [4]float32{1, 0, 0, 1}},
		{corners: [4][3]float32{{-h, -h, h}, {-h, -h, -h}, {h, -h, -h}, {h, -h, h}}, normal: [3]float32{0, -1, 0}, tangent: [4]float32{1, 0, 0, 1}},
		{corners: [4][3]float32{{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h}}, normal: [3]float32{0, 0, 1}, tangent: [4]float32{1, 0, 0, 1}},
		{corners: [4][3]float32{{h, -h, -h}, {-h, -h, -h}, {-h, h, -h}, {h, h, -h}}, normal: [3]float32{0, 0, -1}, tangent: [4]float32{-1, 0, 0, 1}},
	}
	vertices, indices := buildQuads(faces)
	return NewMesh(label, vertices, indices)
}

// Plane builds a square in the XZ plane facing +Y.
//
// Parameters:
//   - label: the mesh label
//   - half: half the edge length
//
// Returns:
//   - Mesh: the plane mesh
func Plane(label string, half float32) Mesh {
	vertices, indices := buildQuads([]quad{{
		corners: [4][3]float32{{-half, 0, -half}, {-half, 0, half}, {half, 0, half}, {half, 0, -half}},
		normal:  [3]float32{0, 1, 0},
		tangent: [4]float32{1, 0, 0, 1},
	}})
	return NewMesh(label, vertices, indices)
}

func buildQuads(faces []quad) ([]Vertex, []uint32) {
	vertices := make([]Vertex, 0, len(faces)*4)
	indices := make([]uint32, 0, len(faces)*6)
	for fi, face := range faces {
		for ci, pos := range face.corners {
			vertices = append(vertices, Vertex{
				Position: pos,
				Normal:   face.normal,
				UV:       quadUVs[ci],
				Tangent:  face.tangent,
			})
		}
		base := uint32(fi * 4)
		indices = append(indices, base+0, base+1, base+2, base+0, base+2, base+3)
	}
	return vertices, indices
}
