// Package lut provides the lookup tables that map 8-bit sample intensities to
// display colours. It supplies the grayscale identity table and the tinted
// per-channel tables used when channels are blended into one RGB view.
package lut

import (
	"fmt"
	"image/color"
)

// LUT maps an intensity index in 0-255 to an RGB triple.
type LUT struct {
	R, G, B [256]uint8
}

// Grayscale returns the identity table.
func Grayscale() *LUT {
	l := &LUT{}
	for i := 0; i < 256; i++ {
		l.R[i] = uint8(i)
		l.G[i] = uint8(i)
		l.B[i] = uint8(i)
	}
	return l
}

// FromColor returns a table that scales linearly from black at index 0 to c
// at index 255.
func FromColor(c color.RGBA) *LUT {
	l := &LUT{}
	for i := 0; i < 256; i++ {
		l.R[i] = uint8(i * int(c.R) / 255)
		l.G[i] = uint8(i * int(c.G) / 255)
		l.B[i] = uint8(i * int(c.B) / 255)
	}
	return l
}

// Color returns the colour at index i.
func (l *LUT) Color(i uint8) color.RGBA {
	return color.RGBA{R: l.R[i], G: l.G[i], B: l.B[i], A: 0xff}
}

// Base returns the colour of the top entry, which is the tint a channel LUT
// was built from.
func (l *LUT) Base() color.RGBA {
	return l.Color(255)
}

// IsGrayscale reports whether every entry has R == G == B == index.
func (l *LUT) IsGrayscale() bool {
	for i := 0; i < 256; i++ {
		if l.R[i] != uint8(i) || l.G[i] != uint8(i) || l.B[i] != uint8(i) {
			return false
		}
	}
	return true
}

// IsPrimary reports whether only one of the R, G, B components is ever
// non-zero, returning the component (0, 1 or 2).
func (l *LUT) IsPrimary() (int, bool) {
	used := [3]bool{}
	for i := 0; i < 256; i++ {
		used[0] = used[0] || l.R[i] != 0
		used[1] = used[1] || l.G[i] != 0
		used[2] = used[2] || l.B[i] != 0
	}
	component, count := -1, 0
	for c, u := range used {
		if u {
			component = c
			count++
		}
	}
	return component, count == 1
}

// Inverted returns a copy of the table with the entries reversed.
func (l *LUT) Inverted() *LUT {
	inv := &LUT{}
	for i := 0; i < 256; i++ {
		inv.R[i] = l.R[255-i]
		inv.G[i] = l.G[255-i]
		inv.B[i] = l.B[255-i]
	}
	return inv
}

// Palette converts the table into a color.Palette, for use with
// image.Paletted.
func (l *LUT) Palette() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = l.Color(uint8(i))
	}
	return p
}

// Named colours of the default channel palette.
var (
	Red     = color.RGBA{R: 255, A: 255}
	Green   = color.RGBA{G: 255, A: 255}
	Blue    = color.RGBA{B: 255, A: 255}
	White   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Cyan    = color.RGBA{G: 255, B: 255, A: 255}
	Magenta = color.RGBA{R: 255, B: 255, A: 255}
	Yellow  = color.RGBA{R: 255, G: 255, A: 255}
)

// DefaultPalette is the channel colour order.
var DefaultPalette = []color.RGBA{Red, Green, Blue, White, Cyan, Magenta, Yellow}

var colorNames = map[string]color.RGBA{
	"red":     Red,
	"green":   Green,
	"blue":    Blue,
	"white":   White,
	"gray":    White,
	"grey":    White,
	"cyan":    Cyan,
	"magenta": Magenta,
	"yellow":  Yellow,
}

// ParseColor resolves a palette colour name.
func ParseColor(name string) (color.RGBA, error) {
	c, ok := colorNames[name]
	if !ok {
		return color.RGBA{}, fmt.Errorf("unknown channel colour %q", name)
	}
	return c, nil
}

// ParsePalette resolves a list of colour names. An empty list yields
// DefaultPalette.
func ParsePalette(names []string) ([]color.RGBA, error) {
	if len(names) == 0 {
		return DefaultPalette, nil
	}
	palette := make([]color.RGBA, len(names))
	for i, name := range names {
		c, err := ParseColor(name)
		if err != nil {
			return nil, err
		}
		palette[i] = c
	}
	return palette, nil
}

// ForChannel returns the tinted table for a 0-based channel number, cycling
// through palette. A nil or empty palette means DefaultPalette.
func ForChannel(channel int, palette []color.RGBA) *LUT {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	if channel < 0 {
		channel = 0
	}
	return FromColor(palette[channel%len(palette)])
}
