package uniform

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Array is a fixed-capacity array property with a logical length.
// The buffer reservation always covers MaxLength elements; Write touches only the first Length.
type Array struct {
	elems  []Property
	length int
	align  uint64
	stride uint64
}

var _ Property = &Array{}

// NewArray creates an array of maxLength independent elements built by factory.
// Every element comes from its own factory call, so elements never share state.
//
// Parameters:
//   - maxLength: the fixed capacity, at least 1
//   - factory: builds one element; every call must return the same kind and shape
//
// Returns:
//   - *Array: the array, with Length 0
//   - error: ErrInvalidLength or ErrNonResidentField
func NewArray(maxLength int, factory func() Property) (*Array, error) {
	if maxLength < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, maxLength)
	}
	elems := make([]Property, maxLength)
	for i := range elems {
		elems[i] = factory()
		if !Resident(elems[i]) {
			return nil, fmt.Errorf("array element %d (%s): %w", i, elems[i].Kind(), ErrNonResidentField)
		}
	}
	align := elems[0].Align()
	return &Array{
		elems:  elems,
		align:  align,
		stride: AlignUp(elems[0].Size(), align),
	}, nil
}

func (a *Array) Kind() Kind    { return KindArray }
func (a *Array) Align() uint64 { return a.align }
func (a *Array) Size() uint64  { return a.stride * uint64(len(a.elems)) }

// Stride returns the byte distance between consecutive elements.
func (a *Array) Stride() uint64 { return a.stride }

// Length returns the number of logically valid elements.
func (a *Array) Length() int { return a.length }

// MaxLength returns the fixed capacity.
func (a *Array) MaxLength() int { return len(a.elems) }

// Element returns element i, which may be beyond Length.
func (a *Array) Element(i int) Property { return a.elems[i] }

// Set assigns elements by index and sets Length to the number assigned, truncated to MaxLength.
// Accepted inputs are []any, []map[string]any, []mgl32.Mat4, []mgl32.Vec4 and []float32.
func (a *Array) Set(v any) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []map[string]any:
		items = make([]any, len(t))
		for i := range t {
			items[i] = t[i]
		}
	case []mgl32.Mat4:
		items = make([]any, len(t))
		for i := range t {
			items[i] = t[i]
		}
	case []mgl32.Vec4:
		items = make([]any, len(t))
		for i := range t {
			items[i] = t[i]
		}
	case []float32:
		items = make([]any, len(t))
		for i := range t {
			items[i] = t[i]
		}
	default:
		return
	}

	n := min(len(items), len(a.elems))
	for i := 0; i < n; i++ {
		a.elems[i].Set(items[i])
	}
	a.length = n
}

func (a *Array) Write(dst []byte, base uint64) {
	for i := 0; i < a.length; i++ {
		a.elems[i].Write(dst, base+uint64(i)*a.stride)
	}
}
