// Package stack holds ordered sequences of pixel planes. An ImageStack keeps
// every plane resident; a VirtualStack resolves planes on demand from files
// or a generator. Both satisfy Stack, and Open picks one at open time.
//
// Slice numbers are 1-based throughout. Structural mutation is not
// synchronized: callers serialize AddSlice, InsertSlice, DeleteSlice and
// SetPlane against each other and against reads of an ImageStack.
package stack

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"pixelstack/pkg/hyperstack"
	"pixelstack/pkg/pixel"
)

var (
	// ErrRange indicates a slice number outside the stack.
	ErrRange = hyperstack.ErrRange

	// ErrIndex indicates a voxel coordinate outside the stack.
	ErrIndex = pixel.ErrIndex

	// ErrArgument indicates a nil, empty or wrongly typed pixel array.
	ErrArgument = pixel.ErrArgument

	// ErrUnsupportedKind indicates a buffer type no plane can hold.
	ErrUnsupportedKind = pixel.ErrUnsupportedKind

	// ErrNoImages indicates a directory without any openable image.
	ErrNoImages = errors.New("pixelstack: no images found")
)

// Stack is the capability shared by resident and virtual stacks.
type Stack interface {
	Size() int
	Width() int
	Height() int
	Kind() pixel.Kind

	// Plane returns slice n. Virtual stacks resolve fresh content on every
	// call, so no identity is guaranteed across calls.
	Plane(n int) (*pixel.Plane, error)
	SetPlane(n int, p *pixel.Plane) error
	Label(n int) (string, error)
	SetLabel(n int, label string) error
	DeleteSlice(n int) error

	// Voxel is 0-based in x, y and z.
	Voxel(x, y, z int) (float64, error)
	SetVoxel(x, y, z int, v float64) error

	DisplayRange() (min, max float64)
	IsVirtual() bool

	// AddViewer and RemoveViewer maintain the count of images displaying
	// the stack, returning the new count. Buffers are released when it
	// drops to zero.
	AddViewer() int
	RemoveViewer() int
}

func rangeError(n, size int) error {
	return fmt.Errorf("%w: slice %d not in [1,%d]", ErrRange, n, size)
}

// initialCapacity is the slot count of a new stack; capacity doubles from
// there.
const initialCapacity = 25

// ensureCapacity returns slots with room for n entries, doubling the
// capacity as needed. len(slots) is the capacity.
func ensureCapacity[T any](slots []T, n int) []T {
	if n <= len(slots) {
		return slots
	}
	c := len(slots) * 2
	if c == 0 {
		c = initialCapacity
	}
	for c < n {
		c *= 2
	}
	grown := make([]T, c)
	copy(grown, slots)
	return grown
}

// maxShortLabel caps the length of labels derived from file metadata.
const maxShortLabel = 60

// ShortLabel shortens a slice label for display: text after the first
// newline is dropped, a three-letter file extension is stripped unless it
// ends in a digit, and the result is capped at 60 characters. A label that
// starts with a newline has no short form.
func ShortLabel(label string) string {
	if i := strings.IndexByte(label, '\n'); i == 0 {
		return ""
	} else if i > 0 {
		label = label[:i]
	}
	label = strings.TrimRight(label, "\r")
	if n := len(label); n > 4 && label[n-4] == '.' && !unicode.IsDigit(rune(label[n-1])) {
		label = label[:n-4]
	}
	if r := []rune(label); len(r) > maxShortLabel {
		label = string(r[:maxShortLabel])
	}
	return label
}
