package shader

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies a pipeline stage a shader module provides an entry point for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex indicates a @vertex entry point.
	ShaderTypeVertex

	// ShaderTypeFragment indicates a @fragment entry point.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	}
	return "unknown"
}

func (t ShaderType) stage() wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		return wgpu.ShaderStageCompute
	}
	return wgpu.ShaderStageNone
}

// shader is the implementation of the Shader interface.
type shader struct {
	key           string
	source        string
	entryPoints   map[ShaderType]string
	vertexLayouts []wgpu.VertexBufferLayout
	workgroupSize [3]uint32
	bindings      []Binding
}

// Shader is one preprocessed WGSL variant together with what can be read back from its text: the
// entry point of each stage, vertex input layouts, the compute workgroup size and every resource
// declaration.
type Shader interface {
	// Key retrieves the cache key of this variant.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the preprocessed WGSL source.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// EntryPoint returns the entry point function name of a stage.
	//
	// Parameters:
	//   - t: the stage to look up
	//
	// Returns:
	//   - string: the function name, or "" if the shader has no entry point for t
	EntryPoint(t ShaderType) string

	// HasStage reports whether the shader provides an entry point for t.
	//
	// Parameters:
	//   - t: the stage to look up
	//
	// Returns:
	//   - bool: true if an entry point exists
	HasStage(t ShaderType) bool

	// VertexLayouts returns one buffer layout per struct parameter of the vertex entry point, in
	// parameter order.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the vertex buffer layouts, nil if the shader has no vertex input struct
	VertexLayouts() []wgpu.VertexBufferLayout

	// WorkgroupSize returns the @workgroup_size of a compute shader, [1, 1, 1] when unspecified
	// and [0, 0, 0] for shaders without a compute stage.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Bindings returns every @group/@binding declaration sorted by group and binding.
	//
	// Returns:
	//   - []Binding: the declarations
	Bindings() []Binding

	// CheckLayout verifies that a bind group layout provides every binding the shader declares for
	// group, with a compatible resource type and enough bytes.
	//
	// Parameters:
	//   - group: the bind group index
	//   - desc: the layout the group will be created with
	//
	// Returns:
	//   - error: an error wrapping ErrLayoutMismatch for the first unsatisfied declaration
	CheckLayout(group uint32, desc wgpu.BindGroupLayoutDescriptor) error
}

var _ Shader = &shader{}

// NewShader reflects a preprocessed WGSL source.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and GPU labels
//   - source: preprocessed WGSL text
//
// Returns:
//   - Shader: the reflected shader
//   - error: an error if the source declares no entry point
func NewShader(key, source string) (Shader, error) {
	cleaned := stripComments(source)
	s := &shader{
		key:         key,
		source:      source,
		entryPoints: make(map[ShaderType]string, 3),
	}

	var visibility wgpu.ShaderStage
	for _, t := range []ShaderType{ShaderTypeVertex, ShaderTypeFragment, ShaderTypeCompute} {
		if name := parseEntryPoint(cleaned, t); name != "" {
			s.entryPoints[t] = name
			visibility |= t.stage()
		}
	}
	if len(s.entryPoints) == 0 {
		return nil, fmt.Errorf("shader %q declares no entry point", key)
	}

	structs := parseStructs(cleaned)
	if s.HasStage(ShaderTypeVertex) {
		s.vertexLayouts = parseVertexLayouts(structs, entryParams(cleaned, s.entryPoints[ShaderTypeVertex]))
	}
	if s.HasStage(ShaderTypeCompute) {
		s.workgroupSize = parseWorkgroupSize(cleaned)
	}
	s.bindings = parseBindings(cleaned, structs, visibility)
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint(t ShaderType) string {
	return s.entryPoints[t]
}

func (s *shader) HasStage(t ShaderType) bool {
	_, ok := s.entryPoints[t]
	return ok
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workgroupSize
}

func (s *shader) Bindings() []Binding {
	return s.bindings
}

func (s *shader) CheckLayout(group uint32, desc wgpu.BindGroupLayoutDescriptor) error {
	byBinding := make(map[uint32]wgpu.BindGroupLayoutEntry, len(desc.Entries))
	for _, e := range desc.Entries {
		byBinding[e.Binding] = e
	}
	for _, b := range s.bindings {
		if b.Group != group {
			continue
		}
		entry, ok := byBinding[b.Binding]
		if !ok {
			return fmt.Errorf("shader %q @group(%d) @binding(%d) %s: missing from layout %q: %w", s.key, b.Group, b.Binding, b.Name, desc.Label, ErrLayoutMismatch)
		}
		if err := checkBinding(b, entry); err != nil {
			return fmt.Errorf("shader %q: %w", s.key, err)
		}
	}
	return nil
}
