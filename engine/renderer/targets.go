package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Target formats.
const (
	DepthFormat    = wgpu.TextureFormatDepth32Float
	ColorFormat    = wgpu.TextureFormatRGBA16Float
	HiZFormat      = wgpu.TextureFormatR32Float
	AlbedoFormat   = wgpu.TextureFormatRGBA8Unorm
	NormalFormat   = wgpu.TextureFormatRGBA16Float
	MaterialFormat = wgpu.TextureFormatRGBA8Unorm
)

// target is a texture with a view over all of its mips.
type target struct {
	tex  gpu.Texture
	view gpu.TextureView
}

func newTarget(device gpu.Device, label string, width, height, mips uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (target, error) {
	tex, err := device.CreateTexture(&gpu.TextureDescriptor{
		Label:         label,
		Width:         width,
		Height:        height,
		MipLevelCount: max(mips, 1),
		SampleCount:   1,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return target{}, fmt.Errorf("target %q: %w", label, err)
	}
	view, err := tex.CreateView(&gpu.ViewDescriptor{Label: label, MipLevelCount: max(mips, 1)})
	if err != nil {
		tex.Release()
		return target{}, fmt.Errorf("target %q: %w", label, err)
	}
	return target{tex: tex, view: view}, nil
}

func (t *target) release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

// frameTargets are the size-dependent attachments every configuration uses: the depth buffer, the
// shaded color target, and the two ping-ponged composition targets.
type frameTargets struct {
	width, height uint32

	depth    target
	color    target
	composed [2]target
}

func newFrameTargets(device gpu.Device, width, height uint32) (*frameTargets, error) {
	t := &frameTargets{width: width, height: height}
	var err error

	t.depth, err = newTarget(device, "depth", width, height, 1, DepthFormat,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding)
	if err != nil {
		return nil, err
	}
	t.color, err = newTarget(device, "scene.color", width, height, 1, ColorFormat,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding)
	if err != nil {
		t.release()
		return nil, err
	}
	for i := range t.composed {
		t.composed[i], err = newTarget(device, fmt.Sprintf("composed.%d", i), width, height, 1, ColorFormat,
			wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding)
		if err != nil {
			t.release()
			return nil, err
		}
	}
	return t, nil
}

func (t *frameTargets) release() {
	t.depth.release()
	t.color.release()
	for i := range t.composed {
		t.composed[i].release()
	}
}

// placeholders are 1x1 stand-ins bound where a disabled feature leaves a binding without a resource,
// plus the shared samplers.
type placeholders struct {
	white      target
	flatNormal target
	depth      target
	hiz        target

	linear     gpu.Sampler
	comparison gpu.Sampler
}

func newPlaceholders(device gpu.Device) (*placeholders, error) {
	p := &placeholders{}
	var err error
	defer func() {
		if err != nil {
			p.release()
		}
	}()

	sampled := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if p.white, err = newTarget(device, "placeholder.white", 1, 1, 1, wgpu.TextureFormatRGBA8Unorm, sampled); err != nil {
		return nil, err
	}
	if p.flatNormal, err = newTarget(device, "placeholder.normal", 1, 1, 1, wgpu.TextureFormatRGBA8Unorm, sampled); err != nil {
		return nil, err
	}
	if p.depth, err = newTarget(device, "placeholder.depth", 1, 1, 1, DepthFormat,
		wgpu.TextureUsageTextureBinding|wgpu.TextureUsageRenderAttachment); err != nil {
		return nil, err
	}
	if p.hiz, err = newTarget(device, "placeholder.hiz", 1, 1, 1, HiZFormat, sampled); err != nil {
		return nil, err
	}

	queue := device.Queue()
	if err = queue.WriteTexture(p.white.tex, []byte{255, 255, 255, 255}, 4); err != nil {
		return nil, fmt.Errorf("placeholder.white: %w", err)
	}
	if err = queue.WriteTexture(p.flatNormal.tex, []byte{128, 128, 255, 255}, 4); err != nil {
		return nil, fmt.Errorf("placeholder.normal: %w", err)
	}

	if p.linear, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Linear Sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}); err != nil {
		return nil, err
	}
	if p.comparison, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Shadow Comparison Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		Compare:       wgpu.CompareFunctionLess,
		MaxAnisotropy: 1,
	}); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *placeholders) release() {
	p.white.release()
	p.flatNormal.release()
	p.depth.release()
	p.hiz.release()
	if p.linear != nil {
		p.linear.Release()
		p.linear = nil
	}
	if p.comparison != nil {
		p.comparison.Release()
		p.comparison = nil
	}
}
