package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrEmptyMesh is returned by Upload for a mesh without vertices.
var ErrEmptyMesh = errors.New("mesh has no vertices")

type mesh struct {
	mu sync.Mutex

	label    string
	vertices []Vertex
	indices  []uint32
	radius   float32

	vb gpu.Buffer
	ib gpu.Buffer
}

// Mesh is CPU-side geometry that uploads itself into GPU vertex and index buffers on first use.
// A Mesh may be shared by many models and renderers; it uploads once per device lifetime.
type Mesh interface {
	renderer.Mesh

	// Vertices returns the CPU-side vertices.
	Vertices() []Vertex

	// Indices returns the CPU-side triangle list, or nil for non-indexed meshes.
	Indices() []uint32
}

var _ Mesh = &mesh{}

// NewMesh creates a Mesh from vertices and an optional triangle index list.
// The bounding radius is the farthest vertex distance from the local origin.
//
// Parameters:
//   - label: the debug name, also used to group draws for static batching
//   - vertices: the interleaved vertices
//   - indices: the triangle list, or nil to draw vertices in order
//
// Returns:
//   - Mesh: the new mesh
func NewMesh(label string, vertices []Vertex, indices []uint32) Mesh {
	m := &mesh{label: label, vertices: vertices, indices: indices}
	for _, v := range vertices {
		m.radius = max(m.radius, mgl32.Vec3(v.Position).Len())
	}
	return m
}

func (m *mesh) Label() string {
	return m.label
}

func (m *mesh) Vertices() []Vertex {
	return m.vertices
}

func (m *mesh) Indices() []uint32 {
	return m.indices
}

func (m *mesh) Upload(device gpu.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.vb != nil {
		return nil
	}
	if len(m.vertices) == 0 {
		return fmt.Errorf("%s: %w", m.label, ErrEmptyMesh)
	}

	vertexData := marshalVertices(m.vertices)
	vb, err := device.CreateBuffer(&gpu.BufferDescriptor{
		Label: m.label + ".vertices",
		Size:  uint64(len(vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create vertex buffer %s: %w", m.label, err)
	}
	if err := device.Queue().WriteBuffer(vb, 0, vertexData); err != nil {
		vb.Release()
		return fmt.Errorf("failed to write vertex buffer %s: %w", m.label, err)
	}

	if len(m.indices) > 0 {
		indexData := marshalIndices(m.indices)
		ib, err := device.CreateBuffer(&gpu.BufferDescriptor{
			Label: m.label + ".indices",
			Size:  uint64(len(indexData)),
			Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			vb.Release()
			return fmt.Errorf("failed to create index buffer %s: %w", m.label, err)
		}
		if err := device.Queue().WriteBuffer(ib, 0, indexData); err != nil {
			vb.Release()
			ib.Release()
			return fmt.Errorf("failed to write index buffer %s: %w", m.label, err)
		}
		m.ib = ib
	}
	m.vb = vb
	return nil
}

func (m *mesh) VertexBuffer() gpu.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vb
}

func (m *mesh) IndexBuffer() gpu.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ib == nil {
		return nil
	}
	return m.ib
}

func (m *mesh) IndexFormat() wgpu.IndexFormat {
	return wgpu.IndexFormatUint32
}

func (m *mesh) VertexCount() uint32 {
	return uint32(len(m.vertices))
}

func (m *mesh) IndexCount() uint32 {
	return uint32(len(m.indices))
}

func (m *mesh) Radius() float32 {
	return m.radius
}

func (m *mesh) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vb != nil {
		m.vb.Release()
		m.vb = nil
	}
	if m.ib != nil {
		m.ib.Release()
		m.ib = nil
	}
}
