// Package common contains plain data types shared by the loader, the model package and the engine.
package common

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrNoTextureSource is returned by Decode when a texture has neither bytes nor a path.
	ErrNoTextureSource = errors.New("texture has neither data nor path")
)

// SamplerStagingData is sampler state read out of a model file, pending GPU creation.
type SamplerStagingData struct {
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	MagFilter, MinFilter                     wgpu.FilterMode
	MipmapFilter                             wgpu.MipmapFilterMode
	LodMinClamp, LodMaxClamp                 float32
	// Compare is undefined for color samplers.
	Compare       wgpu.CompareFunction
	MaxAnisotropy uint16
}

// ImportedMaterial is the PBR description of a material read from a model file.
type ImportedMaterial struct {
	Name string

	// BaseColor is linear RGBA albedo.
	BaseColor [4]float32

	Metallic  float32
	Roughness float32

	// Emissive is linear RGB. Zero means the material emits nothing.
	Emissive [3]float32

	// Textures are nil when the file does not reference them.
	DiffuseTexture           *ImportedTexture
	NormalTexture            *ImportedTexture
	MetallicRoughnessTexture *ImportedTexture
}

// ImportedTexture is an encoded image referenced by a material.
// Embedded images (data URIs, GLB chunks, buffer views) carry their bytes in Data; otherwise Path names
// a file on disk.
type ImportedTexture struct {
	Name     string
	Path     string
	Data     []byte
	MimeType string

	// Width and Height are filled in by Decode.
	Width  int
	Height int

	// MaxSize caps the larger edge of the decoded image. Larger images are resampled down keeping
	// their aspect ratio. Zero keeps the source size.
	MaxSize int

	// SamplerData overrides the default linear/repeat sampler when non-nil.
	SamplerData *SamplerStagingData
}

// Decode decodes the texture to tightly packed RGBA8 rows, resampling to MaxSize when set.
// PNG, JPEG, BMP, TIFF and WebP are recognized.
//
// Returns:
//   - []byte: raw RGBA pixel data (4 bytes per pixel, row-major order)
//   - uint32: texture width in pixels
//   - uint32: texture height in pixels
//   - error: ErrNoTextureSource, or the open or decode failure
func (t *ImportedTexture) Decode() ([]byte, uint32, uint32, error) {
	if t == nil {
		return nil, 0, 0, ErrNoTextureSource
	}

	var img image.Image
	var err error

	if len(t.Data) > 0 {
		img, _, err = image.Decode(bytes.NewReader(t.Data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to decode embedded image: %w", err)
		}
	} else if t.Path != "" {
		file, fileErr := os.Open(t.Path)
		if fileErr != nil {
			return nil, 0, 0, fmt.Errorf("failed to open texture file %s: %w", t.Path, fileErr)
		}
		defer file.Close()

		img, _, err = image.Decode(file)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to decode texture file %s: %w", t.Path, err)
		}
	} else {
		return nil, 0, 0, ErrNoTextureSource
	}

	bounds := img.Bounds()
	width, height := fitSize(bounds.Dx(), bounds.Dy(), t.MaxSize)

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(rgba, rgba.Bounds(), img, bounds, draw.Src, nil)
	}

	t.Width = width
	t.Height = height

	return rgba.Pix, uint32(width), uint32(height), nil
}

// fitSize scales width and height down so neither exceeds limit, keeping at least one pixel.
func fitSize(width, height, limit int) (int, int) {
	if limit <= 0 || (width <= limit && height <= limit) {
		return width, height
	}
	if width >= height {
		return limit, max(height*limit/width, 1)
	}
	return max(width*limit/height, 1), limit
}
