package light

import (
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun or moon. It is the only type that casts shadows.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// Attenuates with distance up to a configurable range.
	LightTypePoint
)

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	label      string
	lightType  LightType
	position   mgl32.Vec3
	direction  mgl32.Vec3
	color      mgl32.Vec3
	intensity  float32
	lightRange float32
	enabled    bool

	castsShadows bool
	shadowCenter mgl32.Vec3
	shadowExtent float32
	shadowNear   float32
	shadowFar    float32
	shadow       *shadowMap
}

// Light defines the interface for a light source in the scene.
//
// Lights are scene-level entities that contribute to shading. A directional light that casts
// shadows owns a depth map and renders it through the renderer's depth pass once per frame.
// Point lights only contribute to the point light array of the scene uniform.
type Light interface {
	renderer.Light

	// Label returns the debug name of the light, used for its GPU resources.
	Label() string

	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type (directional or point)
	Type() LightType

	// Position returns the world-space position of the light.
	// Meaningless for directional lights.
	Position() mgl32.Vec3

	// Direction returns the normalized direction the light travels in.
	// Meaningless for point lights.
	Direction() mgl32.Vec3

	// Color returns the RGB color of the light.
	Color() mgl32.Vec3

	// Intensity returns the scalar intensity multiplier for the light.
	Intensity() float32

	// Range returns the attenuation cutoff distance of a point light.
	Range() float32

	// Enabled returns whether this light contributes to shading.
	Enabled() bool

	// SetPosition sets the world-space position.
	//
	// Parameters:
	//   - x, y, z: world-space coordinates
	SetPosition(x, y, z float32)

	// SetDirection sets the light direction. The direction is normalized; a zero vector is ignored.
	//
	// Parameters:
	//   - x, y, z: direction components
	SetDirection(x, y, z float32)

	// SetColor sets the RGB color.
	//
	// Parameters:
	//   - r, g, b: color components
	SetColor(r, g, b float32)

	// SetIntensity sets the scalar intensity multiplier.
	//
	// Parameters:
	//   - intensity: the intensity value
	SetIntensity(intensity float32)

	// SetEnabled toggles the light's contribution.
	//
	// Parameters:
	//   - enabled: true to enable the light
	SetEnabled(enabled bool)

	// SetCastsShadows toggles shadow casting. Only directional lights can cast shadows.
	// The change takes effect at the renderer's next config refresh.
	//
	// Parameters:
	//   - castsShadows: true to cast shadows
	SetCastsShadows(castsShadows bool)

	// SetShadowCenter sets the world-space point the shadow frustum is centered on.
	//
	// Parameters:
	//   - x, y, z: world-space coordinates
	SetShadowCenter(x, y, z float32)
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the given type with default properties.
//
// Parameters:
//   - lightType: the kind of light source
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: the newly created light
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		label:        "light." + uuid.NewString()[:8],
		lightType:    lightType,
		direction:    mgl32.Vec3{0, -1, 0},
		color:        mgl32.Vec3{1, 1, 1},
		intensity:    1.0,
		lightRange:   10.0,
		enabled:      true,
		shadowExtent: DefaultShadowHalfExtent,
		shadowNear:   DefaultShadowNear,
		shadowFar:    DefaultShadowFar,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Label() string {
	return l.label
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() mgl32.Vec3 {
	return l.position
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	return l.direction
}

func (l *lightImpl) Color() mgl32.Vec3 {
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	return l.intensity
}

func (l *lightImpl) Range() float32 {
	return l.lightRange
}

func (l *lightImpl) Enabled() bool {
	return l.enabled
}

func (l *lightImpl) SetPosition(x, y, z float32) {
	l.position = mgl32.Vec3{x, y, z}
}

func (l *lightImpl) SetDirection(x, y, z float32) {
	if d, ok := normalize(mgl32.Vec3{x, y, z}); ok {
		l.direction = d
	}
}

func (l *lightImpl) SetColor(r, g, b float32) {
	l.color = mgl32.Vec3{r, g, b}
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.intensity = intensity
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.enabled = enabled
}

func (l *lightImpl) SetCastsShadows(castsShadows bool) {
	l.castsShadows = castsShadows
}

func (l *lightImpl) SetShadowCenter(x, y, z float32) {
	l.shadowCenter = mgl32.Vec3{x, y, z}
}

func (l *lightImpl) CastsShadow() bool {
	return l.lightType == LightTypeDirectional && l.castsShadows && l.enabled
}

func (l *lightImpl) PrepareShadow(r renderer.DepthPassRenderer) error {
	if !l.CastsShadow() {
		l.ReleaseShadow()
		return nil
	}
	if l.shadow == nil {
		l.shadow = &shadowMap{label: l.label + ".shadow"}
	}
	return l.shadow.prepare(r)
}

func (l *lightImpl) RenderShadow(r renderer.DepthPassRenderer) error {
	if l.shadow == nil || l.shadow.view == nil {
		return nil
	}
	viewProj := directionalViewProj(l.direction, l.shadowCenter, l.shadowExtent, l.shadowNear, l.shadowFar, r.ShadowMapSize())
	return l.shadow.render(r, viewProj)
}

func (l *lightImpl) ShadowMap() gpu.TextureView {
	if l.shadow == nil || l.shadow.view == nil {
		return nil
	}
	return l.shadow.view
}

func (l *lightImpl) ShadowViewProj() mgl32.Mat4 {
	if l.shadow == nil {
		return mgl32.Ident4()
	}
	return l.shadow.viewProj
}

func (l *lightImpl) ReleaseShadow() {
	if l.shadow != nil {
		l.shadow.release()
	}
}

func normalize(v mgl32.Vec3) (mgl32.Vec3, bool) {
	if v.Len() == 0 {
		return v, false
	}
	return v.Normalize(), true
}
