package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// maxElevation keeps orbiting short of the poles, where the view basis degenerates.
const maxElevation = math32.Pi/2 - 0.01

type cameraImpl struct {
	mu sync.Mutex

	position mgl32.Vec3
	target   mgl32.Vec3
	up       mgl32.Vec3

	projection Projection
	aspect     float32

	view     mgl32.Mat4
	proj     mgl32.Mat4
	viewProj mgl32.Mat4
}

// Camera defines the interface for the camera system.
// The camera looks from a position at a target and projects with a Projection. Matrices are
// recomputed on every mutation so reads are always consistent with the last setter.
type Camera interface {
	renderer.Camera

	// Target returns the world-space point the camera looks at.
	Target() mgl32.Vec3

	// Up returns the camera's up vector.
	Up() mgl32.Vec3

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// Projection returns the current projection.
	Projection() Projection

	// ViewProjMatrix returns the combined view-projection matrix.
	ViewProjMatrix() mgl32.Mat4

	// SetPosition moves the eye.
	//
	// Parameters:
	//   - position: the world-space eye position
	SetPosition(position mgl32.Vec3)

	// LookAt points the camera at a world-space target.
	//
	// Parameters:
	//   - target: the point to look at
	LookAt(target mgl32.Vec3)

	// SetUp sets the camera's up vector.
	//
	// Parameters:
	//   - up: the up vector
	SetUp(up mgl32.Vec3)

	// SetProjection replaces the projection. A nil projection is ignored.
	//
	// Parameters:
	//   - p: the new projection
	SetProjection(p Projection)

	// Orbit rotates the eye around the target, keeping its distance.
	//
	// Parameters:
	//   - yaw: rotation around the world Y axis in radians
	//   - pitch: change of elevation in radians, clamped short of the poles
	Orbit(yaw, pitch float32)

	// Dolly moves the eye along the view direction, never past the target.
	//
	// Parameters:
	//   - distance: world units towards the target; negative moves away
	Dolly(distance float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera at (0, 0, 5) looking at the origin with a 45 degree perspective.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		position:   mgl32.Vec3{0, 0, 5},
		up:         mgl32.Vec3{0, 1, 0},
		projection: Perspective{FovY: mgl32.DegToRad(45), Near: 0.1, Far: 100},
		aspect:     1,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Target() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection.NearPlane()
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection.FarPlane()
}

func (c *cameraImpl) Projection() Projection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *cameraImpl) ProjMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proj
}

func (c *cameraImpl) ViewProjMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProj
}

func (c *cameraImpl) SetPosition(position mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = position
	c.updateMatrices()
}

func (c *cameraImpl) LookAt(target mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
	c.updateMatrices()
}

func (c *cameraImpl) SetUp(up mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = up
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetProjection(p Projection) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projection = p
	c.updateMatrices()
}

func (c *cameraImpl) Orbit(yaw, pitch float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	offset := c.position.Sub(c.target)
	radius := offset.Len()
	if radius == 0 {
		return
	}
	azimuth := math32.Atan2(offset.X(), offset.Z()) + yaw
	elevation := math32.Asin(offset.Y()/radius) + pitch
	elevation = max(-maxElevation, min(maxElevation, elevation))

	cosE := math32.Cos(elevation)
	c.position = c.target.Add(mgl32.Vec3{
		radius * cosE * math32.Sin(azimuth),
		radius * math32.Sin(elevation),
		radius * cosE * math32.Cos(azimuth),
	})
	c.updateMatrices()
}

func (c *cameraImpl) Dolly(distance float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	offset := c.target.Sub(c.position)
	length := offset.Len()
	if length == 0 {
		return
	}
	distance = min(distance, length-c.projection.NearPlane())
	c.position = c.position.Add(offset.Mul(distance / length))
	c.updateMatrices()
}

// updateMatrices recalculates the view, projection and view-projection matrices.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.view = mgl32.LookAtV(c.position, c.target, c.up)
	c.proj = c.projection.Matrix(c.aspect)
	c.viewProj = c.proj.Mul4(c.view)
}
