package uniform

import (
	"fmt"
)

// Field is one named member of a Struct.
type Field struct {
	Name     string
	Property Property
}

// F is shorthand for a Field literal.
func F(name string, p Property) Field {
	return Field{Name: name, Property: p}
}

// Struct is an ordered set of named, buffer-resident fields.
type Struct struct {
	fields  []Field
	index   map[string]int
	offsets []uint64
	align   uint64
	size    uint64
}

var _ Property = &Struct{}

// NewStruct creates a struct property and computes its layout.
//
// Parameters:
//   - fields: the members in declaration order
//
// Returns:
//   - *Struct: the struct
//   - error: ErrNonResidentField if a member is a sampler or texture, ErrDuplicateName on a repeated name
func NewStruct(fields ...Field) (*Struct, error) {
	s := &Struct{
		fields: fields,
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if !Resident(f.Property) {
			return nil, fmt.Errorf("struct field %q (%s): %w", f.Name, f.Property.Kind(), ErrNonResidentField)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("struct field %q: %w", f.Name, ErrDuplicateName)
		}
		s.index[f.Name] = i
	}
	s.offsets, s.align, s.size = s.ComputeLayout()
	return s, nil
}

// ComputeLayout walks the fields in declaration order, aligning each one, and rounds the end offset
// up to the struct alignment. The result depends only on the declaration.
//
// Returns:
//   - []uint64: the offset of each field
//   - uint64: the struct alignment (maximum field alignment)
//   - uint64: the struct size
func (s *Struct) ComputeLayout() ([]uint64, uint64, uint64) {
	offsets := make([]uint64, len(s.fields))
	var offset, align uint64 = 0, 1
	for i, f := range s.fields {
		a := f.Property.Align()
		offset = AlignUp(offset, a)
		offsets[i] = offset
		offset += f.Property.Size()
		align = max(align, a)
	}
	return offsets, align, AlignUp(offset, align)
}

func (s *Struct) Kind() Kind    { return KindStruct }
func (s *Struct) Align() uint64 { return s.align }
func (s *Struct) Size() uint64  { return s.size }

// Offset returns the byte offset of the named field.
func (s *Struct) Offset(name string) (uint64, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return s.offsets[i], true
}

// Field returns the named field's property, or nil.
func (s *Struct) Field(name string) Property {
	i, ok := s.index[name]
	if !ok {
		return nil
	}
	return s.fields[i].Property
}

// Set forwards each map entry to the field of the same name. Unknown names are ignored.
func (s *Struct) Set(v any) {
	m, ok := v.(map[string]any)
	if !ok {
		return
	}
	for name, value := range m {
		if i, ok := s.index[name]; ok {
			s.fields[i].Property.Set(value)
		}
	}
}

func (s *Struct) Write(dst []byte, base uint64) {
	for i, f := range s.fields {
		f.Property.Write(dst, base+s.offsets[i])
	}
}
