// Package gputest provides a recording, in-memory implementation of the gpu device surface.
//
// Textures carry a per-mip content stamp instead of pixels. A render pass that stores an
// attachment writes a fresh stamp into the attached mip; a compute dispatch copies the stamp of
// its sampled-texture input into its storage-texture output. Stamps are applied at Submit, so
// tests can follow data through passes in submission order.
package gputest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Pass describes one encoded pass of a submission.
type Pass struct {
	Label      string
	Compute    bool
	Draws      int
	Instances  uint32
	Dispatches int
}

// Submission is one command buffer handed to Queue.Submit.
type Submission struct {
	Label  string
	Passes []Pass
}

// Provider is a gpu.Provider returning a fake device. Set Err to simulate acquisition failure.
type Provider struct {
	Device  *Device
	Surface *Surface
	Err     error

	Acquired int
}

var _ gpu.Provider = &Provider{}

// NewProvider creates a Provider with a fresh device and surface.
func NewProvider() *Provider {
	d := NewDevice()
	return &Provider{Device: d, Surface: NewSurface(d)}
}

func (p *Provider) Acquire(ctx context.Context) (gpu.Device, gpu.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	p.Acquired++
	if p.Err != nil {
		return nil, nil, p.Err
	}
	return p.Device, p.Surface, nil
}

// Device is the fake gpu.Device. All methods are safe for concurrent use.
type Device struct {
	mu sync.Mutex

	stamp       uint64
	queue       *Queue
	buffers     []*Buffer
	textures    []*Texture
	modules     []*ShaderModule
	submissions []Submission
	released    bool

	// FailModule makes CreateShaderModule return an error for this label.
	FailModule string

	// FailBuffer makes CreateBuffer return an error for this label.
	FailBuffer string
}

var _ gpu.Device = &Device{}

// NewDevice creates an empty fake device.
func NewDevice() *Device {
	d := &Device{}
	d.queue = &Queue{d: d}
	return d
}

// Submissions returns a copy of every submission so far.
func (d *Device) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Submission, len(d.submissions))
	copy(out, d.submissions)
	return out
}

// SubmissionsWithLabel counts submissions with the given label.
func (d *Device) SubmissionsWithLabel(label string) int {
	n := 0
	for _, s := range d.Submissions() {
		if s.Label == label {
			n++
		}
	}
	return n
}

// ResetSubmissions clears the submission log.
func (d *Device) ResetSubmissions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submissions = nil
}

// Buffers returns every buffer created so far.
func (d *Device) Buffers() []*Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Buffer(nil), d.buffers...)
}

// Textures returns every texture created so far.
func (d *Device) Textures() []*Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Texture(nil), d.textures...)
}

// ShaderModules returns every shader module created so far.
func (d *Device) ShaderModules() []*ShaderModule {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*ShaderModule(nil), d.modules...)
}

// Content returns the stamp currently held by a mip level of tex.
func (d *Device) Content(tex gpu.Texture, mip uint32) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return tex.(*Texture).contents[mip]
}

// Released reports whether Release was called.
func (d *Device) Released() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

func (d *Device) nextStamp() uint64 {
	d.stamp++
	return d.stamp
}

func (d *Device) Queue() gpu.Queue {
	return d.queue
}

func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer %q has zero size", desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailBuffer != "" && d.FailBuffer == desc.Label {
		return nil, fmt.Errorf("buffer %q allocation failed", desc.Label)
	}
	b := &Buffer{label: desc.Label, Usage: desc.Usage, Data: make([]byte, desc.Size)}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *Device) CreateTexture(desc *gpu.TextureDescriptor) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q has zero extent", desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &Texture{desc: *desc, contents: make([]uint64, max(desc.MipLevelCount, 1))}
	d.textures = append(d.textures, t)
	return t, nil
}

func (d *Device) CreateSampler(desc *wgpu.SamplerDescriptor) (gpu.Sampler, error) {
	return &handle{label: desc.Label}, nil
}

func (d *Device) CreateShaderModule(label, wgsl string) (gpu.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailModule != "" && d.FailModule == label {
		return nil, fmt.Errorf("shader module %q failed to compile", label)
	}
	m := &ShaderModule{Label: label, Source: wgsl}
	d.modules = append(d.modules, m)
	return m, nil
}

func (d *Device) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayout, error) {
	return &BindGroupLayout{Descriptor: *desc}, nil
}

func (d *Device) CreateBindGroup(label string, layout gpu.BindGroupLayout, entries []gpu.BindGroupEntry) (gpu.BindGroup, error) {
	l := layout.(*BindGroupLayout)
	if len(entries) != len(l.Descriptor.Entries) {
		return nil, fmt.Errorf("bind group %q: %d entries for a layout of %d", label, len(entries), len(l.Descriptor.Entries))
	}
	for _, e := range entries {
		if e.Buffer == nil && e.TextureView == nil && e.Sampler == nil {
			return nil, fmt.Errorf("bind group %q: binding %d has no resource", label, e.Binding)
		}
	}
	return &BindGroup{Label: label, Layout: l, Entries: append([]gpu.BindGroupEntry(nil), entries...)}, nil
}

func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	if desc.Vertex == nil {
		return nil, fmt.Errorf("render pipeline %q has no vertex module", desc.Label)
	}
	return &RenderPipeline{Descriptor: *desc}, nil
}

func (d *Device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	if desc.Module == nil {
		return nil, fmt.Errorf("compute pipeline %q has no module", desc.Label)
	}
	return &ComputePipeline{Descriptor: *desc}, nil
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	return &encoder{d: d, label: label}, nil
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
}

// Queue is the fake gpu.Queue.
type Queue struct {
	d *Device

	Writes int
}

func (q *Queue) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	q.d.mu.Lock()
	defer q.d.mu.Unlock()
	b := buf.(*Buffer)
	if offset+uint64(len(data)) > uint64(len(b.Data)) {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %q of %d bytes", len(data), offset, b.label, len(b.Data))
	}
	copy(b.Data[offset:], data)
	b.Writes++
	q.Writes++
	return nil
}

func (q *Queue) WriteTexture(tex gpu.Texture, data []byte, bytesPerRow uint32) error {
	q.d.mu.Lock()
	defer q.d.mu.Unlock()
	t := tex.(*Texture)
	t.contents[0] = q.d.nextStamp()
	return nil
}

func (q *Queue) Submit(cmds ...gpu.CommandBuffer) {
	q.d.mu.Lock()
	defer q.d.mu.Unlock()
	for _, c := range cmds {
		cb := c.(*commandBuffer)
		for _, op := range cb.ops {
			op()
		}
		q.d.submissions = append(q.d.submissions, Submission{Label: cb.label, Passes: cb.passes})
	}
}

// Surface is the fake gpu.Surface.
type Surface struct {
	d         *Device
	swapchain *Texture

	Width, Height uint32
	VSync         bool
	Configured    int
	Presented     int
	acquired      bool
}

var _ gpu.Surface = &Surface{}

// NewSurface creates a surface presenting from d.
func NewSurface(d *Device) *Surface {
	return &Surface{d: d}
}

func (s *Surface) Configure(width, height uint32, vsync bool) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("surface size %dx%d is empty", width, height)
	}
	s.Width, s.Height, s.VSync = width, height, vsync
	s.Configured++
	s.swapchain = &Texture{
		desc: gpu.TextureDescriptor{
			Label:  "swapchain",
			Width:  width,
			Height: height,
			Format: s.Format(),
			Usage:  wgpu.TextureUsageRenderAttachment,
		},
		contents: make([]uint64, 1),
	}
	return nil
}

func (s *Surface) Format() wgpu.TextureFormat {
	return wgpu.TextureFormatBGRA8Unorm
}

func (s *Surface) AcquireView() (gpu.TextureView, error) {
	if s.swapchain == nil {
		return nil, fmt.Errorf("surface not configured")
	}
	if s.acquired {
		return nil, fmt.Errorf("previous surface image not yet presented")
	}
	s.acquired = true
	return &TextureView{tex: s.swapchain, baseMip: 0, mipCount: 1}, nil
}

func (s *Surface) Present() {
	if !s.acquired {
		return
	}
	s.acquired = false
	s.Presented++
}

// Swapchain returns the current swapchain texture.
func (s *Surface) Swapchain() gpu.Texture {
	return s.swapchain
}

func (s *Surface) Release() {}

// Buffer is the fake gpu.Buffer. Data mirrors every WriteBuffer.
type Buffer struct {
	label    string
	Usage    wgpu.BufferUsage
	Data     []byte
	Writes   int
	Released bool
}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() uint64  { return uint64(len(b.Data)) }
func (b *Buffer) Release()      { b.Released = true }

// Texture is the fake gpu.Texture.
type Texture struct {
	desc     gpu.TextureDescriptor
	contents []uint64
	Released bool
}

func (t *Texture) Label() string              { return t.desc.Label }
func (t *Texture) Width() uint32              { return t.desc.Width }
func (t *Texture) Height() uint32             { return t.desc.Height }
func (t *Texture) MipLevelCount() uint32      { return uint32(len(t.contents)) }
func (t *Texture) Format() wgpu.TextureFormat { return t.desc.Format }
func (t *Texture) Usage() wgpu.TextureUsage   { return t.desc.Usage }
func (t *Texture) Release()                   { t.Released = true }

func (t *Texture) CreateView(desc *gpu.ViewDescriptor) (gpu.TextureView, error) {
	if desc == nil {
		return &TextureView{tex: t, baseMip: 0, mipCount: uint32(len(t.contents))}, nil
	}
	count := max(desc.MipLevelCount, 1)
	if desc.BaseMipLevel+count > uint32(len(t.contents)) {
		return nil, fmt.Errorf("view of mips [%d,%d) exceeds %q with %d mips", desc.BaseMipLevel, desc.BaseMipLevel+count, t.desc.Label, len(t.contents))
	}
	return &TextureView{tex: t, baseMip: desc.BaseMipLevel, mipCount: count}, nil
}

// TextureView is the fake gpu.TextureView.
type TextureView struct {
	tex      *Texture
	baseMip  uint32
	mipCount uint32
}

// Texture returns the viewed texture.
func (v *TextureView) Texture() *Texture { return v.tex }

// BaseMip returns the first viewed mip level.
func (v *TextureView) BaseMip() uint32 { return v.baseMip }

func (v *TextureView) Release() {}

// ShaderModule is the fake gpu.ShaderModule. Source holds the submitted WGSL.
type ShaderModule struct {
	Label  string
	Source string
}

func (m *ShaderModule) Release() {}

// BindGroupLayout is the fake gpu.BindGroupLayout.
type BindGroupLayout struct {
	Descriptor wgpu.BindGroupLayoutDescriptor
}

func (l *BindGroupLayout) Release() {}

// BindGroup is the fake gpu.BindGroup.
type BindGroup struct {
	Label   string
	Layout  *BindGroupLayout
	Entries []gpu.BindGroupEntry
}

func (g *BindGroup) Release() {}

// RenderPipeline is the fake gpu.RenderPipeline.
type RenderPipeline struct {
	Descriptor gpu.RenderPipelineDescriptor
}

func (p *RenderPipeline) Release() {}

// ComputePipeline is the fake gpu.ComputePipeline.
type ComputePipeline struct {
	Descriptor gpu.ComputePipelineDescriptor
}

func (p *ComputePipeline) Release() {}

type handle struct {
	label string
}

func (h *handle) Release() {}

type commandBuffer struct {
	label  string
	ops    []func()
	passes []Pass
}

func (c *commandBuffer) Release() {}

type encoder struct {
	d        *Device
	label    string
	ops      []func()
	passes   []Pass
	open     bool
	finished bool
}

func (e *encoder) BeginRenderPass(desc *gpu.RenderPassDescriptor) gpu.RenderPass {
	e.open = true
	e.passes = append(e.passes, Pass{Label: desc.Label})
	return &renderPass{e: e, idx: len(e.passes) - 1, desc: *desc}
}

func (e *encoder) BeginComputePass(label string) gpu.ComputePass {
	e.open = true
	e.passes = append(e.passes, Pass{Label: label, Compute: true})
	return &computePass{e: e, idx: len(e.passes) - 1}
}

func (e *encoder) Finish() (gpu.CommandBuffer, error) {
	if e.open {
		return nil, fmt.Errorf("encoder %q finished with an open pass", e.label)
	}
	if e.finished {
		return nil, fmt.Errorf("encoder %q already finished", e.label)
	}
	e.finished = true
	return &commandBuffer{label: e.label, ops: e.ops, passes: e.passes}, nil
}

func (e *encoder) Release() {}

type renderPass struct {
	e        *encoder
	idx      int
	desc     gpu.RenderPassDescriptor
	pipeline gpu.RenderPipeline
}

func (p *renderPass) SetPipeline(rp gpu.RenderPipeline)            { p.pipeline = rp }
func (p *renderPass) SetBindGroup(uint32, gpu.BindGroup, []uint32) {}
func (p *renderPass) SetVertexBuffer(uint32, gpu.Buffer)           {}
func (p *renderPass) SetIndexBuffer(gpu.Buffer, wgpu.IndexFormat)  {}

func (p *renderPass) Draw(_, instanceCount, _, _ uint32) {
	p.record(instanceCount)
}

func (p *renderPass) DrawIndexed(_, instanceCount, _ uint32, _ int32, _ uint32) {
	p.record(instanceCount)
}

func (p *renderPass) record(instances uint32) {
	p.e.passes[p.idx].Draws++
	p.e.passes[p.idx].Instances += instances
}

func (p *renderPass) End() error {
	if !p.e.open {
		return fmt.Errorf("render pass %q ended twice", p.desc.Label)
	}
	p.e.open = false
	d := p.e.d
	desc := p.desc
	p.e.ops = append(p.e.ops, func() {
		for _, c := range desc.ColorAttachments {
			if c.StoreOp != wgpu.StoreOpDiscard {
				v := c.View.(*TextureView)
				v.tex.contents[v.baseMip] = d.nextStamp()
			}
		}
		if desc.Depth != nil && desc.Depth.DepthStoreOp != wgpu.StoreOpDiscard {
			v := desc.Depth.View.(*TextureView)
			v.tex.contents[v.baseMip] = d.nextStamp()
		}
	})
	return nil
}

type computePass struct {
	e      *encoder
	idx    int
	groups map[uint32]*BindGroup
}

func (p *computePass) SetPipeline(gpu.ComputePipeline) {}

func (p *computePass) SetBindGroup(index uint32, group gpu.BindGroup, _ []uint32) {
	if p.groups == nil {
		p.groups = make(map[uint32]*BindGroup)
	}
	p.groups[index] = group.(*BindGroup)
}

func (p *computePass) DispatchWorkgroups(x, y, z uint32) {
	p.e.passes[p.idx].Dispatches++

	var src, dst *TextureView
	for _, g := range p.groups {
		for i, entry := range g.Entries {
			layout := g.Layout.Descriptor.Entries[i]
			view, ok := entry.TextureView.(*TextureView)
			if !ok {
				continue
			}
			switch {
			case layout.StorageTexture.Access != 0:
				dst = view
			case layout.Texture.SampleType != 0 && src == nil:
				src = view
			}
		}
	}
	if src == nil || dst == nil {
		return
	}
	p.e.ops = append(p.e.ops, func() {
		dst.tex.contents[dst.baseMip] = src.tex.contents[src.baseMip]
	})
}

func (p *computePass) End() error {
	if !p.e.open {
		return fmt.Errorf("compute pass ended twice")
	}
	p.e.open = false
	return nil
}
