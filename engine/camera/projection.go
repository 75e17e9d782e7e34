package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Projection maps view space to clip space. It is closed: a camera projects with either
// Perspective or Orthographic.
type Projection interface {
	// Matrix returns the view to clip transform for a surface aspect ratio.
	//
	// Parameters:
	//   - aspect: surface width divided by height
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	Matrix(aspect float32) mgl32.Mat4

	// NearPlane returns the near clipping distance.
	NearPlane() float32

	// FarPlane returns the far clipping distance.
	FarPlane() float32

	projection()
}

// zeroToOne remaps clip z from [-w, w] to [0, w], the WebGPU depth range.
var zeroToOne = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

var (
	_ Projection = Perspective{}
	_ Projection = Orthographic{}
)

// Perspective is a symmetric perspective frustum.
type Perspective struct {
	// FovY is the vertical field of view in radians.
	FovY float32
	Near float32
	Far  float32
}

func (p Perspective) Matrix(aspect float32) mgl32.Mat4 {
	return zeroToOne.Mul4(mgl32.Perspective(p.FovY, aspect, p.Near, p.Far))
}

func (p Perspective) NearPlane() float32 { return p.Near }
func (p Perspective) FarPlane() float32  { return p.Far }
func (Perspective) projection()          {}

// Orthographic is a box projection of a fixed vertical extent. The horizontal extent follows
// the aspect ratio.
type Orthographic struct {
	// Height is the vertical extent of the view volume in world units.
	Height float32
	Near   float32
	Far    float32
}

func (o Orthographic) Matrix(aspect float32) mgl32.Mat4 {
	h := o.Height / 2
	w := h * aspect
	return zeroToOne.Mul4(mgl32.Ortho(-w, w, -h, h, o.Near, o.Far))
}

func (o Orthographic) NearPlane() float32 { return o.Near }
func (o Orthographic) FarPlane() float32  { return o.Far }
func (Orthographic) projection()          {}
