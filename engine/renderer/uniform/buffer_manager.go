package uniform

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// BindingAlignment is the offset alignment of every uniform entry in the shared buffer.
	// It matches the WebGPU minUniformBufferOffsetAlignment default.
	BindingAlignment = 256

	// SizeAlignment is the granularity of every entry's reserved range.
	SizeAlignment = 16
)

// BufferManager packs the uniform entries of several bind groups into one shared buffer and owns
// the dedicated buffers of storage entries.
//
// Offsets are assigned in bind-group-then-entry declaration order. They change only when the set
// of groups changes, never when a value changes.
type BufferManager struct {
	label   string
	groups  []*BindGroup
	size    uint64
	staging []byte

	device gpu.Device
	shared gpu.Buffer
}

// NewBufferManager creates a manager over groups and assigns their offsets.
//
// Parameters:
//   - label: the debug label of the shared buffer
//   - groups: the bind groups to pack, in order
//
// Returns:
//   - *BufferManager: the manager, without GPU buffers until Create
func NewBufferManager(label string, groups ...*BindGroup) *BufferManager {
	m := &BufferManager{label: label, groups: groups}
	m.RecomputeOffsets()
	return m
}

// AddGroup appends a group and recomputes offsets. Call Create again before the next write.
func (m *BufferManager) AddGroup(g *BindGroup) {
	m.groups = append(m.groups, g)
	m.RecomputeOffsets()
}

// Groups returns the managed groups in packing order.
func (m *BufferManager) Groups() []*BindGroup { return m.groups }

// Size returns the total byte size of the shared buffer.
func (m *BufferManager) Size() uint64 { return m.size }

// Buffer returns the shared buffer, or nil before Create or when no entry is uniform-classified.
func (m *BufferManager) Buffer() gpu.Buffer { return m.shared }

// RecomputeOffsets assigns every uniform entry an offset at the next multiple of BindingAlignment
// after the previous entry's reserved range, and a reserved size of its Size rounded up to
// SizeAlignment.
//
// Returns:
//   - uint64: the total shared buffer size
func (m *BufferManager) RecomputeOffsets() uint64 {
	var end uint64
	for _, g := range m.groups {
		for i, e := range g.entries {
			if !e.packed() {
				continue
			}
			offset := AlignUp(end, BindingAlignment)
			g.offsets[i] = offset
			g.reserved[i] = AlignUp(e.Property.Size(), SizeAlignment)
			end = offset + g.reserved[i]
		}
	}
	m.size = end
	m.staging = make([]byte, end)
	return end
}

// Create allocates the shared buffer and every storage entry's buffer on device, releasing any
// previous allocation.
//
// Parameters:
//   - device: the device to allocate on
//
// Returns:
//   - error: an error if any buffer cannot be created
func (m *BufferManager) Create(device gpu.Device) error {
	m.Release()
	m.device = device

	if m.size > 0 {
		buf, err := device.CreateBuffer(&gpu.BufferDescriptor{
			Label: m.label,
			Size:  m.size,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("uniform buffer %q: %w", m.label, err)
		}
		m.shared = buf
	}

	for _, g := range m.groups {
		for i, e := range g.entries {
			if !e.ownsBuffer() {
				continue
			}
			buf, err := device.CreateBuffer(&gpu.BufferDescriptor{
				Label: g.label + "." + e.Name,
				Size:  max(AlignUp(e.Property.Size(), SizeAlignment), SizeAlignment),
				Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
			})
			if err != nil {
				return fmt.Errorf("storage buffer %s.%s: %w", g.label, e.Name, err)
			}
			g.storage[i] = buf
		}
	}
	return nil
}

// WriteBuffer packs every group's current values and uploads them: one contiguous transfer for the
// shared buffer, then one transfer per storage entry.
//
// Parameters:
//   - queue: the queue to write through
//
// Returns:
//   - error: the first transfer error
func (m *BufferManager) WriteBuffer(queue gpu.Queue) error {
	for _, g := range m.groups {
		g.write(m.staging)
	}
	if m.shared != nil {
		if err := queue.WriteBuffer(m.shared, 0, m.staging); err != nil {
			return fmt.Errorf("write %q: %w", m.label, err)
		}
	}

	for _, g := range m.groups {
		for i, e := range g.entries {
			if !e.ownsBuffer() || g.storage[i] == nil {
				continue
			}
			data := make([]byte, g.storage[i].Size())
			e.Property.Write(data, 0)
			if err := queue.WriteBuffer(g.storage[i], 0, data); err != nil {
				return fmt.Errorf("write %s.%s: %w", g.label, e.Name, err)
			}
		}
	}
	return nil
}

// Staging returns the packed bytes of the last WriteBuffer.
func (m *BufferManager) Staging() []byte { return m.staging }

// DynamicOffsets returns the offsets of g's dynamic entries in binding order, for SetBindGroup.
//
// Parameters:
//   - g: a group owned by this manager
//
// Returns:
//   - []uint32: the dynamic offsets, nil when g has none
func (m *BufferManager) DynamicOffsets(g *BindGroup) []uint32 {
	type dyn struct {
		binding uint32
		offset  uint32
	}
	var found []dyn
	for i, e := range g.entries {
		if e.packed() && e.Dynamic {
			found = append(found, dyn{binding: e.Binding, offset: uint32(g.offsets[i])})
		}
	}
	if len(found) == 0 {
		return nil
	}
	slices.SortFunc(found, func(a, b dyn) int { return cmp.Compare(a.binding, b.binding) })
	out := make([]uint32, len(found))
	for i, d := range found {
		out[i] = d.offset
	}
	return out
}

// CreateBindGroup creates the GPU bind group of g against the shared buffer.
//
// Parameters:
//   - layout: a layout created from g.LayoutDescriptor
//   - g: a group owned by this manager
//
// Returns:
//   - gpu.BindGroup: the created bind group
//   - error: an error if Create has not run or creation fails
func (m *BufferManager) CreateBindGroup(layout gpu.BindGroupLayout, g *BindGroup) (gpu.BindGroup, error) {
	if m.device == nil {
		return nil, fmt.Errorf("bind group %q: buffer manager %q not created", g.label, m.label)
	}
	return m.device.CreateBindGroup(g.label, layout, g.Bindings(m.shared))
}

// Release frees the shared buffer and every storage buffer.
func (m *BufferManager) Release() {
	if m.shared != nil {
		m.shared.Release()
		m.shared = nil
	}
	for _, g := range m.groups {
		for i := range g.storage {
			if g.storage[i] != nil {
				g.storage[i].Release()
				g.storage[i] = nil
			}
		}
	}
}
