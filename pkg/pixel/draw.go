package pixel

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ColorModel implements image.Image.
func (p *Plane) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (p *Plane) Bounds() image.Rectangle { return image.Rect(0, 0, p.width, p.height) }

// At renders the sample at (x, y) through the plane's display range and LUT.
func (p *Plane) At(x, y int) color.Color {
	if !p.inBounds(x, y) {
		return color.RGBA{}
	}
	i := y*p.width + x
	if p.kind == PackedRGB32 {
		c := p.rgb[i]
		return color.RGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: 0xff}
	}
	v := p.Index(i, p.min, p.max)
	if p.lut == nil {
		return color.RGBA{R: v, G: v, B: v, A: 0xff}
	}
	return p.lut.Color(v)
}

// Set implements draw.Image. Gray kinds store the colour's luminance mapped
// back through the display range.
func (p *Plane) Set(x, y int, c color.Color) {
	if !p.inBounds(x, y) {
		return
	}
	i := y*p.width + x
	switch p.kind {
	case UInt8:
		p.u8[i] = color.GrayModel.Convert(c).(color.Gray).Y
	case UInt16:
		p.u16[i] = color.Gray16Model.Convert(c).(color.Gray16).Y
	case Float32:
		g := float64(color.Gray16Model.Convert(c).(color.Gray16).Y) / 65535
		p.f32[i] = float32(p.min + g*(p.max-p.min))
	case PackedRGB32:
		r, g, b, _ := c.RGBA()
		p.rgb[i] = (r>>8)<<16 | (g>>8)<<8 | b>>8
	}
}

// lineHeight is the advance of basicfont.Face7x13.
const lineHeight = 13

// DrawString rasterizes text with its first baseline at (x, y), writing
// value into every covered sample. Newlines start a new line.
func (p *Plane) DrawString(text string, x, y int, value float64) {
	mask := image.NewAlpha(p.Bounds())
	d := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: basicfont.Face7x13,
	}
	for n, line := range strings.Split(text, "\n") {
		d.Dot = fixed.P(x, y+n*lineHeight)
		d.DrawString(line)
	}
	for i, a := range mask.Pix {
		if a >= 0x80 {
			p.SetValueAt(i, value)
		}
	}
}

// MeasureString returns the advance width of text in pixels.
func MeasureString(text string) int {
	return font.MeasureString(basicfont.Face7x13, text).Ceil()
}
