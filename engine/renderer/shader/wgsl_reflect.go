package shader

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrLayoutMismatch is returned when a shader declares a binding that a bind group layout cannot satisfy.
var ErrLayoutMismatch = errors.New("shader binding does not match bind group layout")

var (
	structRegex        = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex      = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRegex       = regexp.MustCompile(`@builtin\(\w+\)`)
	fieldRegex         = regexp.MustCompile(`(\w+)\s*:\s*(.+)$`)
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)
	bindingRegex       = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	entryRegexes = map[ShaderType]*regexp.Regexp{
		ShaderTypeVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderTypeFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		ShaderTypeCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}
)

// Binding is one @group/@binding declaration found in a shader.
type Binding struct {
	Group   uint32
	Binding uint32
	Name    string
	Type    string

	// Entry is the layout entry the declaration requires. MinBindingSize is set for buffers whose
	// type size could be resolved.
	Entry wgpu.BindGroupLayoutEntry
}

// stripComments removes // and nested /* */ comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			pair := source[i : i+2]
			switch {
			case pair == "/*":
				depth++
				i++
				continue
			case pair == "*/" && depth > 0:
				depth--
				i++
				continue
			case pair == "//" && depth == 0:
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

func parseStructs(source string) []wgslStruct {
	matches := structRegex.FindAllStringSubmatch(source, -1)
	out := make([]wgslStruct, 0, len(matches))
	for _, m := range matches {
		s := wgslStruct{name: m[1]}
		for _, member := range splitMembers(m[2]) {
			member = strings.TrimSpace(member)
			if member == "" {
				continue
			}
			f := wgslField{location: -1, builtin: builtinRegex.MatchString(member)}
			if loc := locationRegex.FindStringSubmatch(member); loc != nil {
				f.location, _ = strconv.Atoi(loc[1])
			}
			fm := fieldRegex.FindStringSubmatch(stripAttributes(member))
			if fm == nil {
				continue
			}
			f.name, f.typeName = fm[1], strings.TrimSpace(fm[2])
			s.fields = append(s.fields, f)
		}
		out = append(out, s)
	}
	return out
}

// stripAttributes drops leading @attr(...) and @attr tokens from a struct member.
func stripAttributes(member string) string {
	for {
		member = strings.TrimSpace(member)
		if !strings.HasPrefix(member, "@") {
			return member
		}
		end := strings.IndexAny(member, " \t\n(")
		if end < 0 {
			return ""
		}
		if member[end] == '(' {
			closing := strings.IndexByte(member, ')')
			if closing < 0 {
				return ""
			}
			end = closing + 1
		}
		member = member[end:]
	}
}

// splitMembers splits a struct body at commas outside angle brackets.
func splitMembers(body string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, body[start:])
}

// parseEntryPoint returns the name of the first function marked for the given stage, or "".
func parseEntryPoint(source string, stage ShaderType) string {
	re, ok := entryRegexes[stage]
	if !ok {
		return ""
	}
	if m := re.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	return ""
}

// parseWorkgroupSize returns the @workgroup_size dimensions, defaulting omitted ones to 1.
func parseWorkgroupSize(source string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	m := workgroupSizeRegex.FindStringSubmatch(source)
	if m == nil {
		return size
	}
	for i := 0; i < 3; i++ {
		if v, err := strconv.ParseUint(m[i+1], 10, 32); err == nil {
			size[i] = uint32(v)
		}
	}
	return size
}

// entryParams returns the parameter list of function name, or "" if it is not declared.
func entryParams(source, name string) string {
	re := regexp.MustCompile(`\bfn\s+` + regexp.QuoteMeta(name) + `\s*\(`)
	loc := re.FindStringIndex(source)
	if loc == nil {
		return ""
	}
	depth := 1
	for i := loc[1]; i < len(source); i++ {
		switch source[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return source[loc[1]:i]
			}
		}
	}
	return ""
}

// parseVertexLayouts builds one vertex buffer layout per struct parameter of the vertex entry point,
// in parameter order. A struct qualifies when it has @location members and no @builtin member;
// structs holding types without a vertex format are skipped.
func parseVertexLayouts(structs []wgslStruct, params string) []wgpu.VertexBufferLayout {
	byName := make(map[string]wgslStruct, len(structs))
	for _, s := range structs {
		byName[s.name] = s
	}

	var out []wgpu.VertexBufferLayout
	for _, param := range splitMembers(params) {
		fm := fieldRegex.FindStringSubmatch(stripAttributes(param))
		if fm == nil {
			continue
		}
		s, ok := byName[strings.TrimSpace(fm[2])]
		if !ok {
			continue
		}
		if layout, ok := vertexLayout(s); ok {
			out = append(out, layout)
		}
	}
	return out
}

func vertexLayout(s wgslStruct) (wgpu.VertexBufferLayout, bool) {
	located := false
	for _, f := range s.fields {
		if f.builtin {
			return wgpu.VertexBufferLayout{}, false
		}
		located = located || f.location >= 0
	}
	if !located {
		return wgpu.VertexBufferLayout{}, false
	}

	attrs := make([]wgpu.VertexAttribute, 0, len(s.fields))
	var offset uint64
	for _, f := range s.fields {
		vf, known := vertexFormats[f.typeName]
		if !known {
			return wgpu.VertexBufferLayout{}, false
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         vf.format,
			Offset:         offset,
			ShaderLocation: uint32(f.location),
		})
		offset += vf.size
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, true
}

// parseBindings lists every resource declaration sorted by group then binding.
func parseBindings(source string, structs []wgslStruct, visibility wgpu.ShaderStage) []Binding {
	sizes := structLayouts(structs)
	var out []Binding
	for _, m := range bindingRegex.FindAllStringSubmatch(source, -1) {
		group, _ := strconv.ParseUint(m[1], 10, 32)
		binding, _ := strconv.ParseUint(m[2], 10, 32)
		addressSpace := strings.TrimSpace(m[3])
		typeName := strings.TrimSpace(m[5])

		entry := layoutEntryFor(uint32(binding), visibility, addressSpace, typeName)
		if addressSpace != "" {
			if l, ok := layoutOf(typeName, sizes); ok {
				entry.Buffer.MinBindingSize = l.size
			}
		}
		out = append(out, Binding{
			Group:   uint32(group),
			Binding: uint32(binding),
			Name:    m[4],
			Type:    typeName,
			Entry:   entry,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Binding < out[j].Binding
	})
	return out
}

// checkBinding reports why entry cannot back the shader declaration b, or nil when it can.
func checkBinding(b Binding, entry wgpu.BindGroupLayoutEntry) error {
	want := b.Entry
	mismatch := func(format string, args ...any) error {
		return fmt.Errorf("@group(%d) @binding(%d) %s: %s: %w", b.Group, b.Binding, b.Name, fmt.Sprintf(format, args...), ErrLayoutMismatch)
	}

	switch {
	case want.Buffer.Type != wgpu.BufferBindingTypeUndefined:
		if entry.Buffer.Type != want.Buffer.Type {
			return mismatch("buffer binding type %v, layout has %v", want.Buffer.Type, entry.Buffer.Type)
		}
		if want.Buffer.MinBindingSize > 0 && entry.Buffer.MinBindingSize > 0 && entry.Buffer.MinBindingSize < want.Buffer.MinBindingSize {
			return mismatch("needs %d bytes, layout binds %d", want.Buffer.MinBindingSize, entry.Buffer.MinBindingSize)
		}
	case want.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
		comparison := want.Sampler.Type == wgpu.SamplerBindingTypeComparison
		if entry.Sampler.Type == wgpu.SamplerBindingTypeUndefined || (entry.Sampler.Type == wgpu.SamplerBindingTypeComparison) != comparison {
			return mismatch("sampler kind differs from layout")
		}
	case want.StorageTexture.Access != 0:
		if entry.StorageTexture.Format != want.StorageTexture.Format {
			return mismatch("storage texture format %v, layout has %v", want.StorageTexture.Format, entry.StorageTexture.Format)
		}
	case want.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
		got := entry.Texture.SampleType
		if got == wgpu.TextureSampleTypeUnfilterableFloat {
			got = wgpu.TextureSampleTypeFloat
		}
		if got != want.Texture.SampleType {
			return mismatch("texture sample type %v, layout has %v", want.Texture.SampleType, entry.Texture.SampleType)
		}
	}
	return nil
}
