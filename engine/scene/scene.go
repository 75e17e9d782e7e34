// Package scene groups a camera, lights and draw items into the renderer's per-frame input.
package scene

import (
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/light"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/go-gl/mathgl/mgl32"
)

// Scene represents a renderable collection of draw items lit by a set of lights and viewed through a camera.
// It implements renderer.Scene. Structural changes (items, lights, camera) invoke the change hook so the
// owner can schedule a renderer refresh.
type Scene interface {
	renderer.Scene

	// Name returns the scene name.
	//
	// Returns:
	//   - string: the name of the scene
	Name() string

	// SetName sets the scene name.
	//
	// Parameters:
	//   - name: the name to set
	SetName(name string)

	// SetCamera replaces the active camera.
	//
	// Parameters:
	//   - cam: the camera to view the scene through
	SetCamera(cam camera.Camera)

	// AddLight appends a light. Adding a light that is already present does nothing.
	//
	// Parameters:
	//   - l: the light to add
	AddLight(l light.Light)

	// RemoveLight removes a light and releases its shadow map.
	//
	// Parameters:
	//   - l: the light to remove
	RemoveLight(l light.Light)

	// Sun returns the directional light written into the sun uniform: the first enabled directional
	// light that casts a shadow, otherwise the first enabled directional light, otherwise nil.
	//
	// Returns:
	//   - light.Light: the sun, or nil
	Sun() light.Light

	// PointLights returns the enabled point lights written to the scene group, capped at renderer.MaxPointLights.
	//
	// Returns:
	//   - []light.Light: the point lights in insertion order
	PointLights() []light.Light

	// AmbientColor returns the ambient term with intensity premultiplied into rgb.
	//
	// Returns:
	//   - mgl32.Vec4: the ambient color
	AmbientColor() mgl32.Vec4

	// SetAmbientColor sets the ambient light.
	//
	// Parameters:
	//   - r, g, b: the ambient color
	//   - intensity: the multiplier applied to the color
	SetAmbientColor(r, g, b, intensity float32)

	// Add inserts a draw item and returns its id.
	//
	// Parameters:
	//   - item: the draw item
	//
	// Returns:
	//   - uint64: the id assigned to the item
	Add(item renderer.DrawItem) uint64

	// Get returns the draw item with the given id, or nil.
	//
	// Parameters:
	//   - id: the item id
	//
	// Returns:
	//   - renderer.DrawItem: the item, or nil
	Get(id uint64) renderer.DrawItem

	// Remove deletes the draw item with the given id. GPU resources stay with the caller.
	//
	// Parameters:
	//   - id: the item id
	Remove(id uint64)

	// Count returns the number of draw items.
	//
	// Returns:
	//   - int: the item count
	Count() int

	// Clear removes every draw item and light. Shadow maps of removed lights are released.
	Clear()

	// SetOnChange replaces the hook called after items, lights or the camera change.
	//
	// Parameters:
	//   - fn: the hook, or nil to disable it
	SetOnChange(fn func())
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu sync.RWMutex

	name    string
	camera  camera.Camera
	lights  []light.Light
	ambient mgl32.Vec4

	items  map[uint64]renderer.DrawItem
	order  []uint64
	nextID uint64

	onChange func()
}

var _ Scene = &scene{}

// NewScene creates a new Scene viewed through cam.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the camera to view the scene through
//   - options: optional builder options
//
// Returns:
//   - Scene: the new scene
func NewScene(name string, cam camera.Camera, options ...SceneBuilderOption) Scene {
	s := &scene{
		name:    name,
		camera:  cam,
		ambient: mgl32.Vec4{0.05, 0.05, 0.05, 1},
		items:   make(map[uint64]renderer.DrawItem),
		nextID:  1,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *scene) changed() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Camera() renderer.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.camera == nil {
		return nil
	}
	return s.camera
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	s.camera = cam
	s.mu.Unlock()
	s.changed()
}

func (s *scene) AddLight(l light.Light) {
	if l == nil {
		return
	}
	s.mu.Lock()
	if slices.Contains(s.lights, l) {
		s.mu.Unlock()
		return
	}
	s.lights = append(s.lights, l)
	s.mu.Unlock()
	s.changed()
}

func (s *scene) RemoveLight(l light.Light) {
	s.mu.Lock()
	i := slices.Index(s.lights, l)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.lights = slices.Delete(s.lights, i, i+1)
	s.mu.Unlock()
	l.ReleaseShadow()
	s.changed()
}

func (s *scene) Lights() []renderer.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]renderer.Light, len(s.lights))
	for i, l := range s.lights {
		out[i] = l
	}
	return out
}

func (s *scene) Sun() light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sun()
}

func (s *scene) sun() light.Light {
	var first light.Light
	for _, l := range s.lights {
		if l.Type() != light.LightTypeDirectional || !l.Enabled() {
			continue
		}
		if l.CastsShadow() {
			return l
		}
		if first == nil {
			first = l
		}
	}
	return first
}

func (s *scene) PointLights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pointLights()
}

func (s *scene) pointLights() []light.Light {
	var points []light.Light
	for _, l := range s.lights {
		if l.Type() != light.LightTypePoint || !l.Enabled() {
			continue
		}
		if len(points) == renderer.MaxPointLights {
			break
		}
		points = append(points, l)
	}
	return points
}

func (s *scene) AmbientColor() mgl32.Vec4 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambient
}

func (s *scene) SetAmbientColor(r, g, b, intensity float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambient = mgl32.Vec4{r * intensity, g * intensity, b * intensity, 1}
}

func (s *scene) Add(item renderer.DrawItem) uint64 {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.items[id] = item
	s.order = append(s.order, id)
	s.mu.Unlock()
	s.changed()
	return id
}

func (s *scene) Get(id uint64) renderer.DrawItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[id]
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	if _, ok := s.items[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.items, id)
	s.order = slices.DeleteFunc(s.order, func(v uint64) bool { return v == id })
	s.mu.Unlock()
	s.changed()
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *scene) Clear() {
	s.mu.Lock()
	lights := s.lights
	s.lights = nil
	s.items = make(map[uint64]renderer.DrawItem)
	s.order = nil
	s.mu.Unlock()
	for _, l := range lights {
		l.ReleaseShadow()
	}
	s.changed()
}

func (s *scene) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *scene) DrawItems() []renderer.DrawItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]renderer.DrawItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

func (s *scene) ToBindGroup(g *uniform.BindGroup) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lighting := light.SunUniform(s.sun())
	lighting["ambient"] = s.ambient

	points := s.pointLights()
	lighting["pointCount"] = uint32(len(points))
	g.Set("lighting", lighting)

	elems := make([]map[string]any, len(points))
	for i, p := range points {
		elems[i] = light.PointUniform(p)
	}
	g.Set("points", elems)
}
