// Package hyperstack maps between the linear 1-based plane index of a stack
// and a (channel, slice, frame) position. Planes are stored channel-major:
// the channel varies fastest, then the z-slice, then the time frame.
package hyperstack

import (
	"errors"
	"fmt"
)

// ErrRange indicates an index outside [1, Channels*Slices*Frames].
var ErrRange = errors.New("pixelstack: index out of range")

// Dimensions is the (channels, slices, frames) shape of a hyperstack.
type Dimensions struct {
	Channels int `yaml:"channels"`
	Slices   int `yaml:"slices"`
	Frames   int `yaml:"frames"`
}

// Position is a 1-based hyperstack coordinate.
type Position struct {
	Channel int
	Slice   int
	Frame   int
}

func (p Position) String() string {
	return fmt.Sprintf("c=%d, z=%d, t=%d", p.Channel, p.Slice, p.Frame)
}

// Flat returns the dimensions of a plain z-stack of size planes.
func Flat(size int) Dimensions {
	return Dimensions{Channels: 1, Slices: size, Frames: 1}
}

// Size returns Channels*Slices*Frames.
func (d Dimensions) Size() int {
	return d.Channels * d.Slices * d.Frames
}

// IsHyperstack reports whether more than one axis is non-unit.
func (d Dimensions) IsHyperstack() bool {
	n := 0
	for _, v := range []int{d.Channels, d.Slices, d.Frames} {
		if v > 1 {
			n++
		}
	}
	return n > 1
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%dx%d", d.Channels, d.Slices, d.Frames)
}

// IndexToPosition converts a 1-based plane index to its position.
func (d Dimensions) IndexToPosition(n int) (Position, error) {
	if d.Channels < 1 || d.Slices < 1 || d.Frames < 1 || n < 1 || n > d.Size() {
		return Position{}, fmt.Errorf("%w: %d not in [1,%d]", ErrRange, n, d.Size())
	}
	i := n - 1
	return Position{
		Channel: i%d.Channels + 1,
		Slice:   (i/d.Channels)%d.Slices + 1,
		Frame:   (i/(d.Channels*d.Slices))%d.Frames + 1,
	}, nil
}

// PositionToIndex converts a position to its 1-based plane index. Each
// coordinate is clamped into its axis first, so transient out-of-range
// values from an interactive control still address a real plane.
func (d Dimensions) PositionToIndex(channel, slice, frame int) int {
	channel = clampAxis(channel, d.Channels)
	slice = clampAxis(slice, d.Slices)
	frame = clampAxis(frame, d.Frames)
	return (frame-1)*d.Channels*d.Slices + (slice-1)*d.Channels + channel
}

// Clamp returns p with each coordinate clamped into its axis.
func (d Dimensions) Clamp(p Position) Position {
	return Position{
		Channel: clampAxis(p.Channel, d.Channels),
		Slice:   clampAxis(p.Slice, d.Slices),
		Frame:   clampAxis(p.Frame, d.Frames),
	}
}

func clampAxis(v, n int) int {
	if n < 1 {
		n = 1
	}
	if v < 1 {
		return 1
	}
	if v > n {
		return n
	}
	return v
}

// Verify repairs d against the number of planes physically present and
// reports whether anything changed.
//
// A stack declared with one slice and exactly one other non-unit axis has that
// axis reinterpreted as spanning every plane. Whatever remains inconsistent
// after that collapses to a flat z-stack (1, physicalSize, 1).
func (d Dimensions) Verify(physicalSize int) (Dimensions, bool) {
	v := d
	if v.Slices == 1 {
		switch {
		case v.Channels > 1 && v.Frames == 1:
			v.Channels = physicalSize
		case v.Frames > 1 && v.Channels == 1:
			v.Frames = physicalSize
		}
	}
	if v.Channels < 1 || v.Slices < 1 || v.Frames < 1 || v.Size() != physicalSize {
		v = Flat(physicalSize)
	}
	return v, v != d
}
