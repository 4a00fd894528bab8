// Package pixel implements the typed sample buffer behind every image slice.
//
// A Plane is a tagged variant: a Kind plus exactly one owned buffer of
// width*height samples. All conversions between kinds are exhaustive matches
// on (from, to) rather than type switches scattered over callers.
package pixel

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"

	"pixelstack/pkg/lut"
)

var (
	// ErrArgument indicates a nil, empty or wrongly sized pixel array.
	ErrArgument = errors.New("pixelstack: invalid pixel array")

	// ErrUnsupportedKind indicates a buffer type or kind the planes cannot hold.
	ErrUnsupportedKind = errors.New("pixelstack: unsupported sample kind")

	// ErrIndex indicates a sample coordinate outside the plane.
	ErrIndex = errors.New("pixelstack: coordinate out of bounds")
)

// Kind identifies the sample type of a plane. The zero Kind is unset.
type Kind int

const (
	UInt8 Kind = iota + 1
	UInt16
	Float32
	PackedRGB32
)

func (k Kind) String() string {
	switch k {
	case UInt8:
		return "8-bit"
	case UInt16:
		return "16-bit"
	case Float32:
		return "32-bit"
	case PackedRGB32:
		return "RGB"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the four sample kinds.
func (k Kind) Valid() bool {
	return k >= UInt8 && k <= PackedRGB32
}

// BitDepth returns 8, 16, 32 or 24 (RGB).
func (k Kind) BitDepth() int {
	switch k {
	case UInt8:
		return 8
	case UInt16:
		return 16
	case Float32:
		return 32
	case PackedRGB32:
		return 24
	}
	return 0
}

// KindForBitDepth maps a bit depth back to its Kind.
func KindForBitDepth(depth int) (Kind, error) {
	switch depth {
	case 8:
		return UInt8, nil
	case 16:
		return UInt16, nil
	case 32:
		return Float32, nil
	case 24:
		return PackedRGB32, nil
	}
	return 0, fmt.Errorf("%w: bit depth %d", ErrUnsupportedKind, depth)
}

// MaxValue is the largest representable sample for integer kinds, and
// +Inf for Float32.
func (k Kind) MaxValue() float64 {
	switch k {
	case UInt8:
		return 255
	case UInt16:
		return 65535
	case PackedRGB32:
		return 0xffffff
	}
	return math.Inf(1)
}

// Plane holds width*height samples of a single Kind together with the
// display range and colour table used to render it.
type Plane struct {
	kind   Kind
	width  int
	height int

	u8  []uint8
	u16 []uint16
	f32 []float32
	rgb []uint32

	min, max float64
	lut      *lut.LUT
}

// New allocates a blank plane.
func New(kind Kind, width, height int) (*Plane, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrArgument, width, height)
	}
	p := &Plane{kind: kind, width: width, height: height}
	n := width * height
	switch kind {
	case UInt8:
		p.u8 = make([]uint8, n)
	case UInt16:
		p.u16 = make([]uint16, n)
	case Float32:
		p.f32 = make([]float32, n)
	case PackedRGB32:
		p.rgb = make([]uint32, n)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKind, kind)
	}
	p.defaultRange()
	return p, nil
}

// FromPixels wraps an existing buffer without copying. Accepted buffer types
// are []uint8, []uint16, []float32 and []uint32 (packed 0xRRGGBB).
func FromPixels(width, height int, pixels any) (*Plane, error) {
	if pixels == nil {
		return nil, fmt.Errorf("%w: nil", ErrArgument)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrArgument, width, height)
	}
	n := width * height
	p := &Plane{width: width, height: height}
	var got int
	switch v := pixels.(type) {
	case []uint8:
		p.kind, p.u8, got = UInt8, v, len(v)
	case []uint16:
		p.kind, p.u16, got = UInt16, v, len(v)
	case []float32:
		p.kind, p.f32, got = Float32, v, len(v)
	case []uint32:
		p.kind, p.rgb, got = PackedRGB32, v, len(v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKind, pixels)
	}
	if got == 0 || got != n {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrArgument, got, n)
	}
	p.ResetDisplayRange()
	return p, nil
}

func (p *Plane) Kind() Kind    { return p.kind }
func (p *Plane) Width() int    { return p.width }
func (p *Plane) Height() int   { return p.height }
func (p *Plane) Len() int      { return p.width * p.height }
func (p *Plane) BitDepth() int { return p.kind.BitDepth() }

// Bytes returns the backing buffer of a UInt8 plane, nil for other kinds.
func (p *Plane) Bytes() []uint8 { return p.u8 }

// Shorts returns the backing buffer of a UInt16 plane.
func (p *Plane) Shorts() []uint16 { return p.u16 }

// Floats returns the backing buffer of a Float32 plane.
func (p *Plane) Floats() []float32 { return p.f32 }

// RGB returns the backing buffer of a PackedRGB32 plane.
func (p *Plane) RGB() []uint32 { return p.rgb }

// Pixels returns the backing buffer as the type FromPixels accepts.
func (p *Plane) Pixels() any {
	switch p.kind {
	case UInt8:
		return p.u8
	case UInt16:
		return p.u16
	case Float32:
		return p.f32
	case PackedRGB32:
		return p.rgb
	}
	return nil
}

// SameSize reports whether q has the same spatial dimensions.
func (p *Plane) SameSize(q *Plane) bool {
	return p.width == q.width && p.height == q.height
}

// LUT returns the colour table, nil meaning grayscale.
func (p *Plane) LUT() *lut.LUT { return p.lut }

// SetLUT replaces the colour table.
func (p *Plane) SetLUT(l *lut.LUT) { p.lut = l }

// DisplayRange returns the sample values mapped to the ends of the LUT.
func (p *Plane) DisplayRange() (min, max float64) { return p.min, p.max }

// SetDisplayRange sets the sample values mapped to the ends of the LUT.
func (p *Plane) SetDisplayRange(min, max float64) {
	p.min, p.max = min, max
}

// ResetDisplayRange sets the display range to 0-255 for 8-bit and RGB planes
// and to the data range otherwise.
func (p *Plane) ResetDisplayRange() {
	switch p.kind {
	case UInt8, PackedRGB32:
		p.min, p.max = 0, 255
	default:
		p.min, p.max = p.dataRange()
	}
}

func (p *Plane) defaultRange() {
	switch p.kind {
	case UInt8, PackedRGB32:
		p.min, p.max = 0, 255
	default:
		p.min, p.max = 0, 0
	}
}

// dataRange finds the smallest and largest sample, ignoring NaN.
func (p *Plane) dataRange() (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	switch p.kind {
	case UInt8:
		for _, v := range p.u8 {
			min = math.Min(min, float64(v))
			max = math.Max(max, float64(v))
		}
	case UInt16:
		for _, v := range p.u16 {
			min = math.Min(min, float64(v))
			max = math.Max(max, float64(v))
		}
	case Float32:
		for _, v := range p.f32 {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				continue
			}
			min = math.Min(min, f)
			max = math.Max(max, f)
		}
	case PackedRGB32:
		return 0, 255
	}
	if min > max {
		return 0, 0
	}
	return min, max
}

// ValueAt returns sample i. RGB samples are returned as the packed value.
func (p *Plane) ValueAt(i int) float64 {
	switch p.kind {
	case UInt8:
		return float64(p.u8[i])
	case UInt16:
		return float64(p.u16[i])
	case Float32:
		return float64(p.f32[i])
	case PackedRGB32:
		return float64(p.rgb[i] & 0xffffff)
	}
	return 0
}

// SetValueAt stores v at sample i, clamped into the kind's range and rounded
// for integer kinds.
func (p *Plane) SetValueAt(i int, v float64) {
	switch p.kind {
	case UInt8:
		p.u8[i] = uint8(clamp(v, 0, 255) + 0.5)
	case UInt16:
		p.u16[i] = uint16(clamp(v, 0, 65535) + 0.5)
	case Float32:
		p.f32[i] = float32(v)
	case PackedRGB32:
		p.rgb[i] = uint32(clamp(v, 0, 0xffffff))
	}
}

// Value returns the sample at (x, y).
func (p *Plane) Value(x, y int) (float64, error) {
	if !p.inBounds(x, y) {
		return 0, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrIndex, x, y, p.width, p.height)
	}
	return p.ValueAt(y*p.width + x), nil
}

// SetValue stores v at (x, y); see SetValueAt.
func (p *Plane) SetValue(x, y int, v float64) error {
	if !p.inBounds(x, y) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrIndex, x, y, p.width, p.height)
	}
	p.SetValueAt(y*p.width+x, v)
	return nil
}

func (p *Plane) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < p.width && y < p.height
}

// Duplicate returns a deep copy.
func (p *Plane) Duplicate() *Plane {
	q := *p
	switch p.kind {
	case UInt8:
		q.u8 = append([]uint8(nil), p.u8...)
	case UInt16:
		q.u16 = append([]uint16(nil), p.u16...)
	case Float32:
		q.f32 = append([]float32(nil), p.f32...)
	case PackedRGB32:
		q.rgb = append([]uint32(nil), p.rgb...)
	}
	return &q
}

// Insert copies src into p with its top-left corner at (x, y), clipping to
// p. Both planes must share a kind.
func (p *Plane) Insert(src *Plane, x, y int) error {
	if src.kind != p.kind {
		return fmt.Errorf("%w: insert %v into %v", ErrArgument, src.kind, p.kind)
	}
	for sy := 0; sy < src.height; sy++ {
		dy := y + sy
		if dy < 0 || dy >= p.height {
			continue
		}
		x0, x1 := 0, src.width
		if x < 0 {
			x0 = -x
		}
		if x+x1 > p.width {
			x1 = p.width - x
		}
		if x0 >= x1 {
			continue
		}
		s := sy*src.width + x0
		d := dy*p.width + x + x0
		n := x1 - x0
		switch p.kind {
		case UInt8:
			copy(p.u8[d:d+n], src.u8[s:s+n])
		case UInt16:
			copy(p.u16[d:d+n], src.u16[s:s+n])
		case Float32:
			copy(p.f32[d:d+n], src.f32[s:s+n])
		case PackedRGB32:
			copy(p.rgb[d:d+n], src.rgb[s:s+n])
		}
	}
	return nil
}

// Pad returns a blank width x height plane with p inserted at the origin.
// No scaling is done; samples outside the new size are dropped.
func (p *Plane) Pad(width, height int) (*Plane, error) {
	q, err := New(p.kind, width, height)
	if err != nil {
		return nil, err
	}
	if err := q.Insert(p, 0, 0); err != nil {
		return nil, err
	}
	q.min, q.max, q.lut = p.min, p.max, p.lut
	return q, nil
}

// Invert flips every sample within its range: 255-v, 65535-v, min+max-v
// for float, per component for RGB.
func (p *Plane) Invert() {
	switch p.kind {
	case UInt8:
		for i, v := range p.u8 {
			p.u8[i] = 255 - v
		}
	case UInt16:
		for i, v := range p.u16 {
			p.u16[i] = 65535 - v
		}
	case Float32:
		lo, hi := float32(p.min), float32(p.max)
		for i, v := range p.f32 {
			p.f32[i] = lo + hi - v
		}
	case PackedRGB32:
		for i, v := range p.rgb {
			p.rgb[i] = (^v) & 0xffffff
		}
	}
}

// Fill sets every sample to v.
func (p *Plane) Fill(v float64) {
	for i := 0; i < p.Len(); i++ {
		p.SetValueAt(i, v)
	}
}

func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
