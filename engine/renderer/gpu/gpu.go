// Package gpu is the narrow device surface the renderer encodes against.
//
// The interfaces mirror the subset of the WebGPU API the frame pipeline uses. Pure-data descriptors
// (formats, usages, layout descriptors, blend and depth state) are the wgpu types themselves; only
// handles are abstracted so the pipeline can run against the recording fake in gputest.
package gpu

import (
	"context"
	"errors"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrNoAdapter is returned when no compatible GPU adapter is available.
	ErrNoAdapter = errors.New("no compatible gpu adapter")

	// ErrNoDevice is returned when the adapter refuses to create a device.
	ErrNoDevice = errors.New("failed to create gpu device")
)

// Provider acquires a device and presentation surface exactly once per renderer.
type Provider interface {
	// Acquire requests an adapter, a device and a configured surface.
	//
	// Parameters:
	//   - ctx: cancels acquisition before it starts
	//
	// Returns:
	//   - Device: the logical device
	//   - Surface: the presentation surface bound to the device
	//   - error: ErrNoAdapter or ErrNoDevice (wrapped) on failure
	Acquire(ctx context.Context) (Device, Surface, error)
}

// Device creates GPU objects and exposes the submission queue.
type Device interface {
	Queue() Queue
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	CreateTexture(desc *TextureDescriptor) (Texture, error)
	CreateSampler(desc *wgpu.SamplerDescriptor) (Sampler, error)
	CreateShaderModule(label, wgsl string) (ShaderModule, error)
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreateBindGroup(label string, layout BindGroupLayout, entries []BindGroupEntry) (BindGroup, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)
	Release()
}

// Surface is the swapchain the composition pass presents to.
type Surface interface {
	// Configure (re)creates the swapchain for the given pixel size.
	Configure(width, height uint32, vsync bool) error

	// Format is the swapchain color format chosen at the last Configure.
	Format() wgpu.TextureFormat

	// AcquireView returns a view of the next swapchain image. It stays valid until Present.
	AcquireView() (TextureView, error)

	// Present displays the acquired image and releases it.
	Present()

	Release()
}

// Queue orders buffer uploads and command submissions.
type Queue interface {
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	WriteTexture(tex Texture, data []byte, bytesPerRow uint32) error
	Submit(cmds ...CommandBuffer)
}

// Buffer is a GPU buffer handle.
type Buffer interface {
	Label() string
	Size() uint64
	Release()
}

// Texture is a GPU texture handle.
type Texture interface {
	Label() string
	Width() uint32
	Height() uint32
	MipLevelCount() uint32
	Format() wgpu.TextureFormat

	// CreateView creates a 2D view. A nil descriptor views every mip level.
	CreateView(desc *ViewDescriptor) (TextureView, error)
	Release()
}

// TextureView is a view onto a range of a texture's mip levels.
type TextureView interface {
	Release()
}

// Sampler is a GPU sampler handle.
type Sampler interface {
	Release()
}

// ShaderModule is a compiled WGSL module.
type ShaderModule interface {
	Release()
}

// BindGroupLayout is a created bind group layout.
type BindGroupLayout interface {
	Release()
}

// BindGroup is a created bind group.
type BindGroup interface {
	Release()
}

// RenderPipeline is a created render pipeline.
type RenderPipeline interface {
	Release()
}

// ComputePipeline is a created compute pipeline.
type ComputePipeline interface {
	Release()
}

// CommandBuffer is a finished, submittable command list.
type CommandBuffer interface {
	Release()
}

// CommandEncoder records passes into a command buffer.
type CommandEncoder interface {
	BeginRenderPass(desc *RenderPassDescriptor) RenderPass
	BeginComputePass(label string) ComputePass
	Finish() (CommandBuffer, error)
	Release()
}

// RenderPass records draw commands.
type RenderPass interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buf Buffer)
	SetIndexBuffer(buf Buffer, format wgpu.IndexFormat)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	End() error
}

// ComputePass records dispatches.
type ComputePass interface {
	SetPipeline(p ComputePipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	DispatchWorkgroups(x, y, z uint32)
	End() error
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage wgpu.BufferUsage
}

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	Label         string
	Width         uint32
	Height        uint32
	MipLevelCount uint32
	SampleCount   uint32
	Format        wgpu.TextureFormat
	Usage         wgpu.TextureUsage
}

// ViewDescriptor selects a mip range for a texture view.
type ViewDescriptor struct {
	Label         string
	BaseMipLevel  uint32
	MipLevelCount uint32
}

// BindGroupEntry binds one resource to a binding slot.
// Exactly one of Buffer, TextureView or Sampler is set.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Offset      uint64
	Size        uint64
	TextureView TextureView
	Sampler     Sampler
}

// RenderPipelineDescriptor describes a render pipeline.
// A nil Fragment module creates a depth-only pipeline.
type RenderPipelineDescriptor struct {
	Label              string
	Layouts            []BindGroupLayout
	Vertex             ShaderModule
	VertexEntryPoint   string
	VertexBuffers      []wgpu.VertexBufferLayout
	Fragment           ShaderModule
	FragmentEntryPoint string
	Targets            []wgpu.ColorTargetState
	Primitive          wgpu.PrimitiveState
	DepthStencil       *wgpu.DepthStencilState
	SampleCount        uint32
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label      string
	Layouts    []BindGroupLayout
	Module     ShaderModule
	EntryPoint string
}

// ColorAttachment is one color target of a render pass.
type ColorAttachment struct {
	View       TextureView
	LoadOp     wgpu.LoadOp
	StoreOp    wgpu.StoreOp
	ClearValue wgpu.Color
}

// DepthAttachment is the depth target of a render pass.
type DepthAttachment struct {
	View            TextureView
	DepthLoadOp     wgpu.LoadOp
	DepthStoreOp    wgpu.StoreOp
	DepthClearValue float32
}

// RenderPassDescriptor describes the attachments of a render pass.
type RenderPassDescriptor struct {
	Label            string
	ColorAttachments []ColorAttachment
	Depth            *DepthAttachment
}

// MipLevels returns the full mip chain length for a width x height texture.
func MipLevels(width, height uint32) uint32 {
	dim := max(width, height)
	levels := uint32(0)
	for dim > 0 {
		levels++
		dim >>= 1
	}
	return max(levels, 1)
}
