package pixel

import (
	"fmt"
	"math"
)

// Convert returns the plane converted to kind to. When the kinds already
// match the receiver itself is returned. Narrowing conversions scale through
// the plane's display range; widening conversions copy sample values.
func (p *Plane) Convert(to Kind) (*Plane, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKind, to)
	}
	if to == p.kind {
		return p, nil
	}
	switch p.kind {
	case UInt8:
		switch to {
		case UInt16, Float32:
			return p.widen(to), nil
		case PackedRGB32:
			return p.toRGB(), nil
		}
	case UInt16:
		switch to {
		case UInt8:
			return p.toByte(), nil
		case Float32:
			return p.widen(to), nil
		case PackedRGB32:
			return p.toByte().toRGB(), nil
		}
	case Float32:
		switch to {
		case UInt8:
			return p.toByte(), nil
		case UInt16:
			return p.floatToShort(), nil
		case PackedRGB32:
			return p.toByte().toRGB(), nil
		}
	case PackedRGB32:
		gray := p.rgbToByte()
		if to == UInt8 {
			return gray, nil
		}
		return gray.widen(to), nil
	}
	return nil, fmt.Errorf("%w: %v to %v", ErrUnsupportedKind, p.kind, to)
}

// widen copies integer samples into a 16-bit or float plane, keeping the
// display range.
func (p *Plane) widen(to Kind) *Plane {
	q, _ := New(to, p.width, p.height)
	for i := 0; i < p.Len(); i++ {
		q.SetValueAt(i, p.ValueAt(i))
	}
	q.min, q.max, q.lut = p.min, p.max, p.lut
	return q
}

func (p *Plane) toByte() *Plane {
	q, _ := New(UInt8, p.width, p.height)
	p.IndexInto(q.u8, p.min, p.max)
	q.lut = p.lut
	return q
}

func (p *Plane) floatToShort() *Plane {
	q, _ := New(UInt16, p.width, p.height)
	scale := 0.0
	if p.max > p.min {
		scale = 65535 / (p.max - p.min)
	}
	for i, v := range p.f32 {
		q.u16[i] = uint16(clamp((float64(v)-p.min)*scale+0.5, 0, 65535))
	}
	q.lut = p.lut
	q.ResetDisplayRange()
	return q
}

// toRGB renders an 8-bit plane through its LUT.
func (p *Plane) toRGB() *Plane {
	q, _ := New(PackedRGB32, p.width, p.height)
	idx := make([]uint8, p.Len())
	p.IndexInto(idx, p.min, p.max)
	for i, v := range idx {
		if p.lut == nil {
			g := uint32(v)
			q.rgb[i] = g<<16 | g<<8 | g
			continue
		}
		q.rgb[i] = uint32(p.lut.R[v])<<16 | uint32(p.lut.G[v])<<8 | uint32(p.lut.B[v])
	}
	return q
}

func (p *Plane) rgbToByte() *Plane {
	q, _ := New(UInt8, p.width, p.height)
	for i, c := range p.rgb {
		q.u8[i] = luminance(c)
	}
	return q
}

// luminance is the unweighted mean of the R, G and B components.
func luminance(c uint32) uint8 {
	r := (c >> 16) & 0xff
	g := (c >> 8) & 0xff
	b := c & 0xff
	return uint8((r + g + b) / 3)
}

// Index maps sample i to an intensity in 0-255 through the display range
// [min, max]. RGB samples map to their luminance.
func (p *Plane) Index(i int, min, max float64) uint8 {
	switch p.kind {
	case UInt8:
		return intIndex(float64(p.u8[i]), min, max)
	case UInt16:
		return intIndex(float64(p.u16[i]), min, max)
	case Float32:
		return floatIndex(float64(p.f32[i]), min, floatScale(min, max))
	case PackedRGB32:
		return luminance(p.rgb[i])
	}
	return 0
}

// IndexInto maps every sample through [min, max] into dst, which must hold
// at least Len() entries. It does not allocate.
func (p *Plane) IndexInto(dst []uint8, min, max float64) {
	switch p.kind {
	case UInt8:
		if min == 0 && max == 255 {
			copy(dst, p.u8)
			return
		}
		for i, v := range p.u8 {
			dst[i] = intIndex(float64(v), min, max)
		}
	case UInt16:
		for i, v := range p.u16 {
			dst[i] = intIndex(float64(v), min, max)
		}
	case Float32:
		scale := floatScale(min, max)
		for i, v := range p.f32 {
			dst[i] = floatIndex(float64(v), min, scale)
		}
	case PackedRGB32:
		for i, c := range p.rgb {
			dst[i] = luminance(c)
		}
	}
}

// intIndex uses 256 bins over the max-min+1 integer values in range.
func intIndex(v, min, max float64) uint8 {
	v -= min
	if v < 0 {
		v = 0
	}
	span := max - min + 1
	if span < 1 {
		span = 1
	}
	iv := int(v*256/span + 0.5)
	if iv > 255 {
		iv = 255
	}
	return uint8(iv)
}

func floatScale(min, max float64) float64 {
	if max <= min {
		return 0
	}
	return 255 / (max - min)
}

func floatIndex(v, min, scale float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(clamp((v-min)*scale+0.5, 0, 255))
}
