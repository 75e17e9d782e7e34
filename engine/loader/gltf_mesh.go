package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// extractPrimitive converts one triangle primitive into interleaved vertices and a triangle list.
// Missing normals and tangents are generated from the triangles.
func (f *gltfFile) extractPrimitive(prim *gltfPrimitive) ([]model.Vertex, []uint32, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return nil, nil, fmt.Errorf("unsupported primitive mode %d", *prim.Mode)
	}
	posIndex, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, nil, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := f.readFloats(posIndex, gltfAccessorTypeVec3)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read positions: %w", err)
	}

	vertices := make([]model.Vertex, len(positions))
	for i, p := range positions {
		vertices[i].Position = [3]float32{p[0], p[1], p[2]}
		vertices[i].Tangent = [4]float32{1, 0, 0, 1}
	}

	hasNormals, err := f.fillAttribute(prim, "NORMAL", gltfAccessorTypeVec3, vertices, func(v *model.Vertex, a []float32) {
		v.Normal = [3]float32{a[0], a[1], a[2]}
	})
	if err != nil {
		return nil, nil, err
	}
	if _, err := f.fillAttribute(prim, "TEXCOORD_0", gltfAccessorTypeVec2, vertices, func(v *model.Vertex, a []float32) {
		v.UV = [2]float32{a[0], a[1]}
	}); err != nil {
		return nil, nil, err
	}
	hasTangents, err := f.fillAttribute(prim, "TANGENT", gltfAccessorTypeVec4, vertices, func(v *model.Vertex, a []float32) {
		v.Tangent = [4]float32{a[0], a[1], a[2], a[3]}
	})
	if err != nil {
		return nil, nil, err
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = f.readIndices(*prim.Indices); err != nil {
			return nil, nil, fmt.Errorf("failed to read indices: %w", err)
		}
		for _, idx := range indices {
			if int(idx) >= len(vertices) {
				return nil, nil, fmt.Errorf("index %d out of range of %d vertices", idx, len(vertices))
			}
		}
	} else {
		indices = make([]uint32, len(vertices))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	if !hasNormals {
		generateNormals(vertices, indices)
	}
	if !hasTangents && len(indices) >= 3 {
		generateTangents(vertices, indices)
	}
	return vertices, indices, nil
}

// fillAttribute copies an optional vertex attribute into vertices. It reports whether the attribute exists.
func (f *gltfFile) fillAttribute(prim *gltfPrimitive, name, accessorType string, vertices []model.Vertex, set func(*model.Vertex, []float32)) (bool, error) {
	index, ok := prim.Attributes[name]
	if !ok {
		return false, nil
	}
	values, err := f.readFloats(index, accessorType)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(values) != len(vertices) {
		return false, fmt.Errorf("%s has %d elements for %d vertices", name, len(values), len(vertices))
	}
	for i := range vertices {
		set(&vertices[i], values[i])
	}
	return true, nil
}

// generateNormals accumulates area-weighted face normals into each vertex.
func generateNormals(vertices []model.Vertex, indices []uint32) {
	acc := make([]mgl32.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		p0 := mgl32.Vec3(vertices[a].Position)
		n := mgl32.Vec3(vertices[b].Position).Sub(p0).Cross(mgl32.Vec3(vertices[c].Position).Sub(p0))
		acc[a] = acc[a].Add(n)
		acc[b] = acc[b].Add(n)
		acc[c] = acc[c].Add(n)
	}
	for i, n := range acc {
		if n.Len() == 0 {
			vertices[i].Normal = [3]float32{0, 1, 0}
			continue
		}
		vertices[i].Normal = n.Normalize()
	}
}

// generateTangents computes per-vertex tangents from UV gradients, orthonormalized against the
// normal with handedness in w.
func generateTangents(vertices []model.Vertex, indices []uint32) {
	tan := make([]mgl32.Vec3, len(vertices))
	btan := make([]mgl32.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		p0 := mgl32.Vec3(vertices[a].Position)
		e1 := mgl32.Vec3(vertices[b].Position).Sub(p0)
		e2 := mgl32.Vec3(vertices[c].Position).Sub(p0)
		uv0 := mgl32.Vec2(vertices[a].UV)
		d1 := mgl32.Vec2(vertices[b].UV).Sub(uv0)
		d2 := mgl32.Vec2(vertices[c].UV).Sub(uv0)

		det := d1.X()*d2.Y() - d2.X()*d1.Y()
		if det == 0 {
			continue
		}
		r := 1 / det
		t := e1.Mul(d2.Y()).Sub(e2.Mul(d1.Y())).Mul(r)
		bt := e2.Mul(d1.X()).Sub(e1.Mul(d2.X())).Mul(r)
		for _, v := range [3]uint32{a, b, c} {
			tan[v] = tan[v].Add(t)
			btan[v] = btan[v].Add(bt)
		}
	}

	for i := range vertices {
		n := mgl32.Vec3(vertices[i].Normal)
		ortho := tan[i].Sub(n.Mul(n.Dot(tan[i])))
		if ortho.Len() < 1e-6 {
			vertices[i].Tangent = [4]float32{1, 0, 0, 1}
			continue
		}
		ortho = ortho.Normalize()
		w := float32(1)
		if n.Cross(ortho).Dot(btan[i]) < 0 {
			w = -1
		}
		vertices[i].Tangent = [4]float32{ortho[0], ortho[1], ortho[2], w}
	}
}

// nodeMatrix returns a node's local transform.
func nodeMatrix(n *gltfNode) mgl32.Mat4 {
	if n.Matrix != nil {
		return mgl32.Mat4(*n.Matrix)
	}
	m := mgl32.Ident4()
	if n.Translation != nil {
		t := *n.Translation
		m = m.Mul4(mgl32.Translate3D(t[0], t[1], t[2]))
	}
	if n.Rotation != nil {
		r := *n.Rotation
		m = m.Mul4(mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}.Normalize().Mat4())
	}
	if n.Scale != nil {
		s := *n.Scale
		m = m.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	}
	return m
}
