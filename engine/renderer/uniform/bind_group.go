package uniform

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// StorageClass selects how a buffer-resident entry is bound.
type StorageClass int

const (
	// StorageUniform entries are packed into the manager's shared uniform buffer.
	StorageUniform StorageClass = iota

	// StorageRead entries own a read-only storage buffer.
	StorageRead

	// StorageReadWrite entries own a read-write storage buffer.
	StorageReadWrite

	// StorageWrite entries own a storage buffer the shader only writes.
	StorageWrite
)

// Entry is one binding slot of a bind group.
type Entry struct {
	Name       string
	Binding    uint32
	Visibility wgpu.ShaderStage
	Property   Property
	Storage    StorageClass

	// Dynamic binds a uniform entry with a dynamic offset supplied at SetBindGroup time.
	Dynamic bool
}

// packed reports whether the entry lives in the shared uniform buffer.
func (e *Entry) packed() bool {
	return Resident(e.Property) && e.Storage == StorageUniform
}

// ownsBuffer reports whether the entry gets a dedicated storage buffer.
func (e *Entry) ownsBuffer() bool {
	return Resident(e.Property) && e.Storage != StorageUniform
}

// BindGroup is a labelled, ordered set of entries with a layout derived once at construction.
// Offsets within the shared buffer are assigned by the BufferManager that owns the group.
type BindGroup struct {
	label   string
	entries []*Entry
	index   map[string]int
	layout  wgpu.BindGroupLayoutDescriptor

	offsets  []uint64
	reserved []uint64
	storage  []gpu.Buffer
}

// NewBindGroup creates a bind group and derives its layout descriptor.
//
// Parameters:
//   - label: the debug label used for the GPU layout and group
//   - entries: the binding slots in declaration order
//
// Returns:
//   - *BindGroup: the bind group
//   - error: an error on a nil property, a repeated name or a repeated binding
func NewBindGroup(label string, entries ...Entry) (*BindGroup, error) {
	g := &BindGroup{
		label:    label,
		entries:  make([]*Entry, len(entries)),
		index:    make(map[string]int, len(entries)),
		offsets:  make([]uint64, len(entries)),
		reserved: make([]uint64, len(entries)),
		storage:  make([]gpu.Buffer, len(entries)),
	}

	bindings := make(map[uint32]bool, len(entries))
	layoutEntries := make([]wgpu.BindGroupLayoutEntry, 0, len(entries))
	for i := range entries {
		e := entries[i]
		if e.Property == nil {
			return nil, fmt.Errorf("bind group %q entry %q has no property", label, e.Name)
		}
		if _, dup := g.index[e.Name]; dup {
			return nil, fmt.Errorf("bind group %q entry %q: %w", label, e.Name, ErrDuplicateName)
		}
		if bindings[e.Binding] {
			return nil, fmt.Errorf("bind group %q binding %d: %w", label, e.Binding, ErrDuplicateBinding)
		}
		bindings[e.Binding] = true
		g.index[e.Name] = i
		g.entries[i] = &e

		layoutEntries = append(layoutEntries, layoutEntry(&e))
	}

	g.layout = wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: layoutEntries,
	}
	return g, nil
}

func layoutEntry(e *Entry) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: e.Visibility,
	}
	if r, ok := e.Property.(*Resource); ok {
		r.layoutEntry(&entry)
		return entry
	}

	switch e.Storage {
	case StorageUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.HasDynamicOffset = e.Dynamic
		entry.Buffer.MinBindingSize = AlignUp(e.Property.Size(), SizeAlignment)
	case StorageRead:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		entry.Buffer.MinBindingSize = storageMinSize(e.Property)
	case StorageReadWrite, StorageWrite:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		entry.Buffer.MinBindingSize = storageMinSize(e.Property)
	}
	return entry
}

// storageMinSize is one element for arrays, which bind as runtime-sized in WGSL, and the full size otherwise.
func storageMinSize(p Property) uint64 {
	if a, ok := p.(*Array); ok {
		return a.Stride()
	}
	return p.Size()
}

// Label returns the group label.
func (g *BindGroup) Label() string { return g.label }

// Entries returns the entries in declaration order.
func (g *BindGroup) Entries() []*Entry { return g.entries }

// LayoutDescriptor returns the layout derived at construction.
func (g *BindGroup) LayoutDescriptor() wgpu.BindGroupLayoutDescriptor { return g.layout }

// Entry returns the named entry, or nil.
func (g *BindGroup) Entry(name string) *Entry {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.entries[i]
}

// Property returns the named entry's property, or nil.
func (g *BindGroup) Property(name string) Property {
	if e := g.Entry(name); e != nil {
		return e.Property
	}
	return nil
}

// Set forwards v to the named entry's property.
//
// Returns:
//   - bool: false if no entry has that name
func (g *BindGroup) Set(name string, v any) bool {
	e := g.Entry(name)
	if e == nil {
		return false
	}
	e.Property.Set(v)
	return true
}

// Offset returns the byte offset assigned to the named entry within the shared buffer.
func (g *BindGroup) Offset(name string) (uint64, bool) {
	i, ok := g.index[name]
	if !ok || !g.entries[i].packed() {
		return 0, false
	}
	return g.offsets[i], true
}

// Reserved returns the byte range reserved for the named entry within the shared buffer.
func (g *BindGroup) Reserved(name string) (uint64, bool) {
	i, ok := g.index[name]
	if !ok || !g.entries[i].packed() {
		return 0, false
	}
	return g.reserved[i], true
}

// StorageBuffer returns the dedicated buffer of a storage entry once created.
func (g *BindGroup) StorageBuffer(name string) gpu.Buffer {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.storage[i]
}

// Bindings returns concrete bind group entries against shared using the assigned offsets.
// Dynamic entries bind at offset zero; their offsets come from BufferManager.DynamicOffsets.
//
// Parameters:
//   - shared: the buffer holding every uniform-classified entry
//
// Returns:
//   - []gpu.BindGroupEntry: one entry per binding in declaration order
func (g *BindGroup) Bindings(shared gpu.Buffer) []gpu.BindGroupEntry {
	out := make([]gpu.BindGroupEntry, 0, len(g.entries))
	for i, e := range g.entries {
		be := gpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.packed():
			be.Buffer = shared
			be.Size = g.reserved[i]
			if !e.Dynamic {
				be.Offset = g.offsets[i]
			}
		case e.ownsBuffer():
			be.Buffer = g.storage[i]
			if g.storage[i] != nil {
				be.Size = g.storage[i].Size()
			}
		default:
			r := e.Property.(*Resource)
			if r.kind == KindSampler {
				be.Sampler = r.Sampler()
			} else {
				be.TextureView = r.View()
			}
		}
		out = append(out, be)
	}
	return out
}

// write copies every packed entry's value into dst at its assigned offset.
func (g *BindGroup) write(dst []byte) {
	for i, e := range g.entries {
		if e.packed() {
			e.Property.Write(dst, g.offsets[i])
		}
	}
}
