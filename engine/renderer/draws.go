package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/go-gl/mathgl/mgl32"
)

// draw is one entry of the draw list: a mesh and material with every item folded into it.
// A statically batched draw carries several items, each instance pre-multiplied by its item transform.
type draw struct {
	label    string
	mesh     Mesh
	material Material
	items    []DrawItem
	batched  bool
	capacity int

	object       *uniform.BindGroup
	objectBind   gpu.BindGroup
	materialBind gpu.BindGroup

	instances uint32
}

type drawKey struct {
	mesh     Mesh
	material Material
}

// StaticBatch groups items sharing a mesh and a material so each group can be drawn as one instanced
// draw. Groups keep the order of their first item; items without a mesh are dropped.
//
// Parameters:
//   - items: the draw items to group
//
// Returns:
//   - [][]DrawItem: the batches
func StaticBatch(items []DrawItem) [][]DrawItem {
	var batches [][]DrawItem
	index := make(map[drawKey]int)
	for _, item := range items {
		if item == nil || item.Mesh() == nil {
			continue
		}
		key := drawKey{mesh: item.Mesh(), material: item.Material()}
		if i, ok := index[key]; ok {
			batches[i] = append(batches[i], item)
			continue
		}
		index[key] = len(batches)
		batches = append(batches, []DrawItem{item})
	}
	return batches
}

// buildDrawList turns items into draws, one per batch when batching and one per item otherwise.
func buildDrawList(items []DrawItem, batching bool) []*draw {
	var batches [][]DrawItem
	if batching {
		batches = StaticBatch(items)
	} else {
		for _, item := range items {
			if item != nil && item.Mesh() != nil {
				batches = append(batches, []DrawItem{item})
			}
		}
	}

	draws := make([]*draw, 0, len(batches))
	for i, batch := range batches {
		d := &draw{
			label:    fmt.Sprintf("draw.%d.%s", i, batch[0].Mesh().Label()),
			mesh:     batch[0].Mesh(),
			material: batch[0].Material(),
			items:    batch,
			batched:  len(batch) > 1,
		}
		for _, item := range batch {
			d.capacity += len(item.Instances())
		}
		draws = append(draws, d)
	}
	return draws
}

// refresh resolves the instance transforms of d for this frame and writes them into its object group.
func (d *draw) refresh() {
	model := mgl32.Ident4()
	var instances []mgl32.Mat4
	if d.batched {
		for _, item := range d.items {
			t := item.Transform()
			for _, inst := range item.Instances() {
				instances = append(instances, t.Mul4(inst))
			}
		}
	} else {
		model = d.items[0].Transform()
		instances = d.items[0].Instances()
	}

	d.instances = uint32(min(len(instances), max(d.capacity, 1)))
	d.object.Set("object", map[string]any{
		"model":         model,
		"normalModel":   model.Inv().Transpose(),
		"instanceCount": d.instances,
		"radius":        d.mesh.Radius(),
	})
	d.object.Set("instances", instances)
}

// uploadItems uploads the mesh and material of every draw item. Items added since the last build are
// uploaded here; already resident ones return early from Upload.
func (r *renderer) uploadItems(items []DrawItem) error {
	uploaded := make(map[any]bool)
	for _, item := range items {
		if item == nil {
			continue
		}
		if m := item.Mesh(); m != nil && !uploaded[m] {
			if err := m.Upload(r.device); err != nil {
				return fmt.Errorf("failed to upload mesh %q: %w", m.Label(), err)
			}
			uploaded[m] = true
		}
		if m := item.Material(); m != nil && !uploaded[m] {
			if err := m.Upload(r.device); err != nil {
				return fmt.Errorf("failed to upload material %q: %w", m.Label(), err)
			}
			uploaded[m] = true
		}
	}
	return nil
}

// buildDraws uploads the scene's items and rebuilds the draw list with its object and material groups
// and their GPU buffers.
func (r *renderer) buildDraws() error {
	r.releaseDraws()
	items := r.scene.DrawItems()
	if err := r.uploadItems(items); err != nil {
		return err
	}
	r.draws = buildDrawList(items, r.features.StaticBatching)

	materials := make(map[Material]*uniform.BindGroup)
	var materialOrder []Material
	var objectGroups, materialGroups []*uniform.BindGroup

	for _, d := range r.draws {
		g, err := newObjectGroup(d.label, d.capacity)
		if err != nil {
			return err
		}
		d.object = g
		objectGroups = append(objectGroups, g)

		if _, ok := materials[d.material]; ok || d.material == nil {
			continue
		}
		mg, err := newMaterialGroup(fmt.Sprintf("%s.%d", groupMaterial, len(materialOrder)))
		if err != nil {
			return err
		}
		mg.Set("albedoMap", r.placeholders.white.view)
		mg.Set("normalMap", r.placeholders.flatNormal.view)
		mg.Set("materialSampler", r.placeholders.linear)
		d.material.ToBindGroup(mg)
		materials[d.material] = mg
		materialOrder = append(materialOrder, d.material)
		materialGroups = append(materialGroups, mg)
	}

	// Draws without a material share one group holding the defaults.
	fallback, err := newMaterialGroup(groupMaterial + ".default")
	if err != nil {
		return err
	}
	fallback.Set("albedoMap", r.placeholders.white.view)
	fallback.Set("normalMap", r.placeholders.flatNormal.view)
	fallback.Set("materialSampler", r.placeholders.linear)
	materialGroups = append(materialGroups, fallback)

	r.objectBuffers = uniform.NewBufferManager("objects", objectGroups...)
	r.materialBuffers = uniform.NewBufferManager("materials", materialGroups...)
	if err := r.objectBuffers.Create(r.device); err != nil {
		return err
	}
	if err := r.materialBuffers.Create(r.device); err != nil {
		return err
	}
	if err := r.materialBuffers.WriteBuffer(r.device.Queue()); err != nil {
		return err
	}

	for _, d := range r.draws {
		l, err := r.layout(groupObject, d.object)
		if err != nil {
			return err
		}
		if d.objectBind, err = r.objectBuffers.CreateBindGroup(l.Handle, d.object); err != nil {
			return err
		}
	}

	binds := make(map[*uniform.BindGroup]gpu.BindGroup, len(materialGroups))
	for _, mg := range materialGroups {
		l, err := r.layout(groupMaterial, mg)
		if err != nil {
			return err
		}
		b, err := r.materialBuffers.CreateBindGroup(l.Handle, mg)
		if err != nil {
			return err
		}
		binds[mg] = b
	}
	for _, d := range r.draws {
		if mg, ok := materials[d.material]; ok {
			d.materialBind = binds[mg]
		} else {
			d.materialBind = binds[fallback]
		}
	}
	r.materialBinds = binds
	return nil
}

// refreshDraws resolves every draw's instances and uploads the object buffers.
func (r *renderer) refreshDraws() error {
	for _, d := range r.draws {
		d.refresh()
	}
	if r.objectBuffers == nil {
		return nil
	}
	return r.objectBuffers.WriteBuffer(r.device.Queue())
}

// encodeDraws records every draw with resolved instances into pass. Group 0 must already be bound.
// Without instancing each instance is its own draw call, offset by firstInstance.
func (r *renderer) encodeDraws(pass gpu.RenderPass, withMaterial bool) {
	for _, d := range r.draws {
		// A mesh released while still in the scene has no vertex buffer until the next rebuild.
		if d.instances == 0 || d.mesh.VertexBuffer() == nil {
			continue
		}
		pass.SetBindGroup(1, d.objectBind, nil)
		if withMaterial {
			pass.SetBindGroup(2, d.materialBind, nil)
		}
		pass.SetVertexBuffer(0, d.mesh.VertexBuffer())
		if d.mesh.IndexBuffer() != nil {
			pass.SetIndexBuffer(d.mesh.IndexBuffer(), d.mesh.IndexFormat())
		}

		if r.features.Instancing {
			drawInstances(pass, d.mesh, d.instances, 0)
			continue
		}
		for i := uint32(0); i < d.instances; i++ {
			drawInstances(pass, d.mesh, 1, i)
		}
	}
}

func drawInstances(pass gpu.RenderPass, mesh Mesh, count, first uint32) {
	if mesh.IndexBuffer() != nil {
		pass.DrawIndexed(mesh.IndexCount(), count, 0, 0, first)
		return
	}
	pass.Draw(mesh.VertexCount(), count, 0, first)
}

func (r *renderer) releaseDraws() {
	for _, b := range r.materialBinds {
		b.Release()
	}
	r.materialBinds = nil
	for _, d := range r.draws {
		if d.objectBind != nil {
			d.objectBind.Release()
		}
	}
	r.draws = nil
	if r.objectBuffers != nil {
		r.objectBuffers.Release()
		r.objectBuffers = nil
	}
	if r.materialBuffers != nil {
		r.materialBuffers.Release()
		r.materialBuffers = nil
	}
}
