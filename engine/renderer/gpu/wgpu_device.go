package gpu

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuProvider acquires a real WebGPU device for a platform surface.
type wgpuProvider struct {
	surfaceDescriptor    *wgpu.SurfaceDescriptor
	forceFallbackAdapter bool
}

var _ Provider = &wgpuProvider{}

// NewProvider creates a Provider backed by the native WebGPU implementation.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, typically from window.Window.SurfaceDescriptor
//   - forceFallbackAdapter: request a software adapter instead of hardware
//
// Returns:
//   - Provider: the provider
func NewProvider(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) Provider {
	return &wgpuProvider{
		surfaceDescriptor:    surfaceDescriptor,
		forceFallbackAdapter: forceFallbackAdapter,
	}
}

func (p *wgpuProvider) Acquire(ctx context.Context) (Device, Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	runtime.LockOSThread()

	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(p.surfaceDescriptor)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: p.forceFallbackAdapter,
		CompatibleSurface:    surface,
	})
	if err != nil || adapter == nil {
		surface.Release()
		instance.Release()
		return nil, nil, fmt.Errorf("%w: %v", ErrNoAdapter, err)
	}

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 4

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Pipeline Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil || device == nil {
		adapter.Release()
		surface.Release()
		instance.Release()
		return nil, nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	d := &wgpuDevice{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    &wgpuQueue{q: device.GetQueue()},
	}
	s := &wgpuSurface{
		surface: surface,
		adapter: adapter,
		device:  device,
	}
	return d, s, nil
}

type wgpuDevice struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpuQueue
}

var _ Device = &wgpuDevice{}

func (d *wgpuDevice) Queue() Queue {
	return d.queue
}

func (d *wgpuDevice) CreateBuffer(desc *BufferDescriptor) (Buffer, error) {
	b, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            desc.Usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", desc.Label, err)
	}
	return &wgpuBuffer{b: b, label: desc.Label, size: desc.Size}, nil
}

func (d *wgpuDevice) CreateTexture(desc *TextureDescriptor) (Texture, error) {
	t, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: max(desc.MipLevelCount, 1),
		SampleCount:   max(desc.SampleCount, 1),
		Dimension:     wgpu.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
	}
	return &wgpuTexture{t: t, desc: *desc}, nil
}

func (d *wgpuDevice) CreateSampler(desc *wgpu.SamplerDescriptor) (Sampler, error) {
	s, err := d.device.CreateSampler(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler %q: %w", desc.Label, err)
	}
	return &wgpuSampler{s: s}, nil
}

func (d *wgpuDevice) CreateShaderModule(label, wgsl string) (ShaderModule, error) {
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: wgsl,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader module %q: %w", label, err)
	}
	return &wgpuShaderModule{m: m}, nil
}

func (d *wgpuDevice) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error) {
	l, err := d.device.CreateBindGroupLayout(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout %q: %w", desc.Label, err)
	}
	return &wgpuBindGroupLayout{l: l}, nil
}

func (d *wgpuDevice) CreateBindGroup(label string, layout BindGroupLayout, entries []BindGroupEntry) (BindGroup, error) {
	converted := make([]wgpu.BindGroupEntry, 0, len(entries))
	for _, e := range entries {
		ce := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			ce.Buffer = e.Buffer.(*wgpuBuffer).b
			ce.Offset = e.Offset
			ce.Size = e.Size
			if ce.Size == 0 {
				ce.Size = wgpu.WholeSize
			}
		case e.TextureView != nil:
			ce.TextureView = e.TextureView.(*wgpuTextureView).v
		case e.Sampler != nil:
			ce.Sampler = e.Sampler.(*wgpuSampler).s
		default:
			return nil, fmt.Errorf("bind group %q: binding %d has no resource", label, e.Binding)
		}
		converted = append(converted, ce)
	}

	g, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  layout.(*wgpuBindGroupLayout).l,
		Entries: converted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %q: %w", label, err)
	}
	return &wgpuBindGroup{g: g}, nil
}

func (d *wgpuDevice) pipelineLayout(label string, layouts []BindGroupLayout) (*wgpu.PipelineLayout, error) {
	bgls := make([]*wgpu.BindGroupLayout, len(layouts))
	for i, l := range layouts {
		bgls[i] = l.(*wgpuBindGroupLayout).l
	}
	return d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: bgls,
	})
}

func (d *wgpuDevice) CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error) {
	layout, err := d.pipelineLayout(desc.Label, desc.Layouts)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline layout %q: %w", desc.Label, err)
	}

	var fragment *wgpu.FragmentState
	if desc.Fragment != nil {
		fragment = &wgpu.FragmentState{
			Module:     desc.Fragment.(*wgpuShaderModule).m,
			EntryPoint: desc.FragmentEntryPoint,
			Targets:    desc.Targets,
		}
	}

	p, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     desc.Vertex.(*wgpuShaderModule).m,
			EntryPoint: desc.VertexEntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Fragment:     fragment,
		Primitive:    desc.Primitive,
		DepthStencil: desc.DepthStencil,
		Multisample: wgpu.MultisampleState{
			Count: max(desc.SampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline %q: %w", desc.Label, err)
	}
	return &wgpuRenderPipeline{p: p}, nil
}

func (d *wgpuDevice) CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error) {
	layout, err := d.pipelineLayout(desc.Label, desc.Layouts)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline layout %q: %w", desc.Label, err)
	}

	p, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     desc.Module.(*wgpuShaderModule).m,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create compute pipeline %q: %w", desc.Label, err)
	}
	return &wgpuComputePipeline{p: p}, nil
}

func (d *wgpuDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	e, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder %q: %w", label, err)
	}
	return &wgpuEncoder{e: e}, nil
}

func (d *wgpuDevice) Release() {
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}

type wgpuSurface struct {
	mu      sync.Mutex
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
	format  wgpu.TextureFormat

	current     *wgpu.Texture
	currentView *wgpu.TextureView
}

var _ Surface = &wgpuSurface{}

func (s *wgpuSurface) Configure(width, height uint32, vsync bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	capabilities := s.surface.GetCapabilities(s.adapter)
	if len(capabilities.Formats) == 0 || len(capabilities.AlphaModes) == 0 {
		return fmt.Errorf("surface reports no supported formats")
	}
	s.format = capabilities.Formats[0]

	presentMode := wgpu.PresentModeImmediate
	if vsync {
		presentMode = wgpu.PresentModeFifo
	}

	s.surface.Configure(s.adapter, s.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       max(width, 1),
		Height:      max(height, 1),
		PresentMode: presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	return nil
}

func (s *wgpuSurface) Format() wgpu.TextureFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *wgpuSurface) AcquireView() (TextureView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, fmt.Errorf("previous surface image not yet presented")
	}

	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire surface texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create surface view: %w", err)
	}
	s.current = tex
	s.currentView = view
	return &wgpuTextureView{v: view}, nil
}

func (s *wgpuSurface) Present() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}
	s.surface.Present()
	s.currentView.Release()
	s.current.Release()
	s.currentView = nil
	s.current = nil
}

func (s *wgpuSurface) Release() {
	s.surface.Release()
}

type wgpuQueue struct {
	q *wgpu.Queue
}

func (q *wgpuQueue) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	return q.q.WriteBuffer(buf.(*wgpuBuffer).b, offset, data)
}

func (q *wgpuQueue) WriteTexture(tex Texture, data []byte, bytesPerRow uint32) error {
	t := tex.(*wgpuTexture)
	q.q.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.t,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  bytesPerRow,
			RowsPerImage: t.desc.Height,
		},
		&wgpu.Extent3D{
			Width:              t.desc.Width,
			Height:             t.desc.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (q *wgpuQueue) Submit(cmds ...CommandBuffer) {
	raw := make([]*wgpu.CommandBuffer, len(cmds))
	for i, c := range cmds {
		raw[i] = c.(*wgpuCommandBuffer).c
	}
	q.q.Submit(raw...)
}

type wgpuEncoder struct {
	e *wgpu.CommandEncoder
}

func (e *wgpuEncoder) BeginRenderPass(desc *RenderPassDescriptor) RenderPass {
	colors := make([]wgpu.RenderPassColorAttachment, len(desc.ColorAttachments))
	for i, c := range desc.ColorAttachments {
		colors[i] = wgpu.RenderPassColorAttachment{
			View:       c.View.(*wgpuTextureView).v,
			LoadOp:     c.LoadOp,
			StoreOp:    c.StoreOp,
			ClearValue: c.ClearValue,
		}
	}

	rp := &wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: colors,
	}
	if desc.Depth != nil {
		rp.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            desc.Depth.View.(*wgpuTextureView).v,
			DepthLoadOp:     desc.Depth.DepthLoadOp,
			DepthStoreOp:    desc.Depth.DepthStoreOp,
			DepthClearValue: desc.Depth.DepthClearValue,
		}
	}
	return &wgpuRenderPass{p: e.e.BeginRenderPass(rp)}
}

func (e *wgpuEncoder) BeginComputePass(label string) ComputePass {
	return &wgpuComputePass{p: e.e.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})}
}

func (e *wgpuEncoder) Finish() (CommandBuffer, error) {
	c, err := e.e.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish command encoder: %w", err)
	}
	return &wgpuCommandBuffer{c: c}, nil
}

func (e *wgpuEncoder) Release() {
	e.e.Release()
}

type wgpuRenderPass struct {
	p *wgpu.RenderPassEncoder
}

func (p *wgpuRenderPass) SetPipeline(rp RenderPipeline) {
	p.p.SetPipeline(rp.(*wgpuRenderPipeline).p)
}

func (p *wgpuRenderPass) SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32) {
	p.p.SetBindGroup(index, group.(*wgpuBindGroup).g, dynamicOffsets)
}

func (p *wgpuRenderPass) SetVertexBuffer(slot uint32, buf Buffer) {
	p.p.SetVertexBuffer(slot, buf.(*wgpuBuffer).b, 0, wgpu.WholeSize)
}

func (p *wgpuRenderPass) SetIndexBuffer(buf Buffer, format wgpu.IndexFormat) {
	p.p.SetIndexBuffer(buf.(*wgpuBuffer).b, format, 0, wgpu.WholeSize)
}

func (p *wgpuRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.p.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *wgpuRenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.p.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *wgpuRenderPass) End() error {
	return p.p.End()
}

type wgpuComputePass struct {
	p *wgpu.ComputePassEncoder
}

func (p *wgpuComputePass) SetPipeline(cp ComputePipeline) {
	p.p.SetPipeline(cp.(*wgpuComputePipeline).p)
}

func (p *wgpuComputePass) SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32) {
	p.p.SetBindGroup(index, group.(*wgpuBindGroup).g, dynamicOffsets)
}

func (p *wgpuComputePass) DispatchWorkgroups(x, y, z uint32) {
	p.p.DispatchWorkgroups(x, y, z)
}

func (p *wgpuComputePass) End() error {
	return p.p.End()
}

type wgpuBuffer struct {
	b     *wgpu.Buffer
	label string
	size  uint64
}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64  { return b.size }
func (b *wgpuBuffer) Release()      { b.b.Release() }

type wgpuTexture struct {
	t    *wgpu.Texture
	desc TextureDescriptor
}

func (t *wgpuTexture) Label() string              { return t.desc.Label }
func (t *wgpuTexture) Width() uint32              { return t.desc.Width }
func (t *wgpuTexture) Height() uint32             { return t.desc.Height }
func (t *wgpuTexture) MipLevelCount() uint32      { return max(t.desc.MipLevelCount, 1) }
func (t *wgpuTexture) Format() wgpu.TextureFormat { return t.desc.Format }
func (t *wgpuTexture) Release()                   { t.t.Release() }

func (t *wgpuTexture) CreateView(desc *ViewDescriptor) (TextureView, error) {
	var vd *wgpu.TextureViewDescriptor
	if desc != nil {
		vd = &wgpu.TextureViewDescriptor{
			Label:           desc.Label,
			Format:          t.desc.Format,
			Dimension:       wgpu.TextureViewDimension2D,
			BaseMipLevel:    desc.BaseMipLevel,
			MipLevelCount:   max(desc.MipLevelCount, 1),
			BaseArrayLayer:  0,
			ArrayLayerCount: 1,
		}
	}
	v, err := t.t.CreateView(vd)
	if err != nil {
		return nil, fmt.Errorf("failed to create view of %q: %w", t.desc.Label, err)
	}
	return &wgpuTextureView{v: v}, nil
}

type wgpuTextureView struct{ v *wgpu.TextureView }

func (v *wgpuTextureView) Release() { v.v.Release() }

type wgpuSampler struct{ s *wgpu.Sampler }

func (s *wgpuSampler) Release() { s.s.Release() }

type wgpuShaderModule struct{ m *wgpu.ShaderModule }

func (m *wgpuShaderModule) Release() { m.m.Release() }

type wgpuBindGroupLayout struct{ l *wgpu.BindGroupLayout }

func (l *wgpuBindGroupLayout) Release() { l.l.Release() }

type wgpuBindGroup struct{ g *wgpu.BindGroup }

func (g *wgpuBindGroup) Release() { g.g.Release() }

type wgpuRenderPipeline struct{ p *wgpu.RenderPipeline }

func (p *wgpuRenderPipeline) Release() { p.p.Release() }

type wgpuComputePipeline struct{ p *wgpu.ComputePipeline }

func (p *wgpuComputePipeline) Release() { p.p.Release() }

type wgpuCommandBuffer struct{ c *wgpu.CommandBuffer }

func (c *wgpuCommandBuffer) Release() { c.c.Release() }
