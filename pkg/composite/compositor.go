// Package composite blends the channel planes of a hyperstack into one RGB
// image. Each channel is mapped through its display range to an 8-bit
// intensity and then through its LUT; in Composite mode the active channels
// are summed with per-component saturation.
//
// The output image and the per-channel intensity buffers are allocated when
// the compositor is (re)built and reused by every Update.
package composite

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"pixelstack/pkg/hyperstack"
	"pixelstack/pkg/lut"
	"pixelstack/pkg/stack"
)

// Mode selects how channels are shown.
type Mode int

const (
	// Composite blends every active channel.
	Composite Mode = iota
	// Color shows the current channel through its own LUT.
	Color
	// Grayscale shows the current channel through a grayscale LUT.
	Grayscale
)

func (m Mode) String() string {
	switch m {
	case Composite:
		return "composite"
	case Color:
		return "color"
	case Grayscale:
		return "grayscale"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode resolves a mode name. The empty string means Composite.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "composite":
		return Composite, nil
	case "color", "colour":
		return Color, nil
	case "grayscale", "greyscale", "gray", "grey":
		return Grayscale, nil
	}
	return 0, fmt.Errorf("unknown display mode %q", s)
}

// Notifier is told when the output image has been updated in place.
type Notifier interface {
	PixelsChanged()
}

type channel struct {
	lut      *lut.LUT
	primary  int // sole non-zero LUT component, -1 when mixed
	min, max float64
	active   bool
	dirty    bool
	custom   bool // LUT set explicitly, kept across palette changes
	index    []uint8
}

func (ch *channel) setLUT(l *lut.LUT) {
	ch.lut = l
	ch.primary = -1
	if c, ok := l.IsPrimary(); ok {
		ch.primary = c
	}
}

// Compositor renders one position of a multichannel stack. It is
// single-owner: calls must not overlap.
type Compositor struct {
	src     stack.Stack
	dims    hyperstack.Dimensions
	pos     hyperstack.Position
	mode    Mode
	palette []color.RGBA

	channels      []channel
	img           *image.RGBA
	width, height int
	gray          *lut.LUT

	// built is set once the buffer holds a full blend; only then can a
	// single channel be patched into it.
	built bool

	notifier Notifier
}

// New returns a compositor over src laid out as dims, positioned at the
// first channel, slice and frame. dims is repaired against the stack size.
func New(src stack.Stack, dims hyperstack.Dimensions) *Compositor {
	dims, _ = dims.Verify(src.Size())
	c := &Compositor{
		src:  src,
		dims: dims,
		pos:  hyperstack.Position{Channel: 1, Slice: 1, Frame: 1},
		gray: lut.Grayscale(),
	}
	c.Rebuild()
	return c
}

// SetNotifier sets the receiver of update notifications.
func (c *Compositor) SetNotifier(n Notifier) { c.notifier = n }

// SetPalette replaces the channel colours for channels without an explicit
// LUT. Display ranges and active flags are kept.
func (c *Compositor) SetPalette(p []color.RGBA) {
	c.palette = p
	for i := range c.channels {
		cs := &c.channels[i]
		if cs.custom {
			continue
		}
		cs.setLUT(lut.ForChannel(i, p))
		cs.dirty = true
	}
}

func (c *Compositor) Mode() Mode                        { return c.mode }
func (c *Compositor) Dimensions() hyperstack.Dimensions { return c.dims }
func (c *Compositor) Position() hyperstack.Position     { return c.pos }

// Image returns the output buffer. It stays the same image until the next
// rebuild.
func (c *Compositor) Image() *image.RGBA { return c.img }

// SetMode switches the display mode.
func (c *Compositor) SetMode(m Mode) {
	if m == c.mode {
		return
	}
	c.mode = m
	c.invalidateAll()
}

// SetPosition moves to a clamped position. Moving in z or t invalidates
// every channel.
func (c *Compositor) SetPosition(channel, slice, frame int) {
	p := c.dims.Clamp(hyperstack.Position{Channel: channel, Slice: slice, Frame: frame})
	if p.Slice != c.pos.Slice || p.Frame != c.pos.Frame {
		c.invalidateAll()
	}
	c.pos = p
}

// SetChannel selects the current channel (1-based).
func (c *Compositor) SetChannel(ch int) {
	c.SetPosition(ch, c.pos.Slice, c.pos.Frame)
}

// Channel returns the current channel (1-based).
func (c *Compositor) Channel() int { return c.pos.Channel }

func (c *Compositor) channel(ch int) (*channel, error) {
	if ch < 1 || ch > len(c.channels) {
		return nil, fmt.Errorf("%w: channel %d not in [1,%d]", stack.ErrRange, ch, len(c.channels))
	}
	return &c.channels[ch-1], nil
}

// SetChannelLUT replaces the LUT of channel ch. A nil LUT returns the channel
// to its palette colour.
func (c *Compositor) SetChannelLUT(ch int, l *lut.LUT) error {
	cs, err := c.channel(ch)
	if err != nil {
		return err
	}
	cs.custom = l != nil
	if l == nil {
		l = lut.ForChannel(ch-1, c.palette)
	}
	cs.setLUT(l)
	cs.dirty = true
	return nil
}

// ChannelLUT returns the LUT of channel ch. A channel tinted white reports a
// grayscale LUT.
func (c *Compositor) ChannelLUT(ch int) (*lut.LUT, error) {
	cs, err := c.channel(ch)
	if err != nil {
		return nil, err
	}
	if cs.lut.Base() == lut.White {
		return c.gray, nil
	}
	return cs.lut, nil
}

// SetDisplayRange sets the range mapped to intensities 0-255 for channel ch.
func (c *Compositor) SetDisplayRange(ch int, min, max float64) error {
	cs, err := c.channel(ch)
	if err != nil {
		return err
	}
	cs.min, cs.max = min, max
	cs.dirty = true
	return nil
}

// DisplayRange returns the display range of channel ch.
func (c *Compositor) DisplayRange(ch int) (min, max float64, err error) {
	cs, err := c.channel(ch)
	if err != nil {
		return 0, 0, err
	}
	return cs.min, cs.max, nil
}

// SetActive includes or excludes channel ch from the Composite blend.
func (c *Compositor) SetActive(ch int, active bool) error {
	cs, err := c.channel(ch)
	if err != nil {
		return err
	}
	if cs.active != active {
		cs.active = active
		cs.dirty = true
	}
	return nil
}

// Active reports whether channel ch is blended.
func (c *Compositor) Active(ch int) bool {
	cs, err := c.channel(ch)
	return err == nil && cs.active
}

// Invalidate marks channel ch as changed, so its pixels are read again on
// the next Update. Out of range channels are ignored.
func (c *Compositor) Invalidate(ch int) {
	if cs, err := c.channel(ch); err == nil {
		cs.dirty = true
	}
}

func (c *Compositor) invalidateAll() {
	for i := range c.channels {
		c.channels[i].dirty = true
	}
}

// SetDimensions lays the stack out as dims, repaired against its size, and
// rebuilds when the channel count changes.
func (c *Compositor) SetDimensions(dims hyperstack.Dimensions) {
	dims, _ = dims.Verify(c.src.Size())
	if dims == c.dims {
		return
	}
	c.dims = dims
	c.pos = dims.Clamp(c.pos)
	if len(c.channels) != dims.Channels {
		c.Rebuild()
		return
	}
	c.invalidateAll()
}

// SetStack replaces the source stack and rebuilds.
func (c *Compositor) SetStack(src stack.Stack, dims hyperstack.Dimensions) {
	c.src = src
	c.dims, _ = dims.Verify(src.Size())
	c.pos = c.dims.Clamp(c.pos)
	c.Rebuild()
}

// Rebuild reallocates the output and per-channel buffers for the current
// dimensions and plane size. Settings of channels that still exist are
// kept; new channels take their palette colour and the display range of
// their plane at the current position.
func (c *Compositor) Rebuild() {
	c.width, c.height = c.src.Width(), c.src.Height()
	c.img = image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	c.built = false
	n := c.width * c.height

	old := c.channels
	c.channels = make([]channel, c.dims.Channels)
	for i := range c.channels {
		cs := &c.channels[i]
		cs.index = make([]uint8, n)
		cs.dirty = true
		if i < len(old) && old[i].lut != nil {
			cs.setLUT(old[i].lut)
			cs.min, cs.max, cs.active = old[i].min, old[i].max, old[i].active
			cs.custom = old[i].custom
			continue
		}
		cs.setLUT(lut.ForChannel(i, c.palette))
		cs.active = true
		if p, err := c.src.Plane(c.dims.PositionToIndex(i+1, c.pos.Slice, c.pos.Frame)); err == nil {
			cs.min, cs.max = p.DisplayRange()
		} else {
			cs.min, cs.max = c.src.DisplayRange()
		}
	}
}

// consistent reports whether the channel state still matches the stack.
func (c *Compositor) consistent() bool {
	return c.dims.Size() == c.src.Size() &&
		len(c.channels) == c.dims.Channels &&
		c.pos.Channel >= 1 && c.pos.Channel <= len(c.channels) &&
		c.width == c.src.Width() && c.height == c.src.Height()
}

// grab maps the plane of channel i (0-based) at the current slice and frame
// into its intensity buffer.
func (c *Compositor) grab(i int) error {
	cs := &c.channels[i]
	p, err := c.src.Plane(c.dims.PositionToIndex(i+1, c.pos.Slice, c.pos.Frame))
	if err != nil {
		return err
	}
	p.IndexInto(cs.index, cs.min, cs.max)
	cs.dirty = false
	return nil
}

// Update brings the output image up to date and notifies the Notifier.
// State that no longer matches the stack is rebuilt first and the current
// channel returns to 1.
func (c *Compositor) Update() error {
	if !c.consistent() {
		if c.dims.Size() != c.src.Size() {
			c.dims, _ = c.dims.Verify(c.src.Size())
		}
		c.pos.Channel = 1
		c.pos = c.dims.Clamp(c.pos)
		c.Rebuild()
	}

	var err error
	switch {
	case c.mode != Composite:
		err = c.single()
	case c.fastPath():
		err = c.patch()
	default:
		err = c.blend()
	}
	if err != nil {
		return err
	}
	if c.notifier != nil {
		c.notifier.PixelsChanged()
	}
	return nil
}

// fastPath reports whether the current channel alone changed and can be
// written into its own component without disturbing other channels.
func (c *Compositor) fastPath() bool {
	if !c.built {
		return false
	}
	cur := c.pos.Channel - 1
	if cur > 2 || len(c.channels) > 3 {
		return false
	}
	cs := &c.channels[cur]
	if !cs.dirty || !cs.active || cs.primary != cur {
		return false
	}
	for i := range c.channels {
		if i == cur {
			continue
		}
		other := &c.channels[i]
		if other.dirty || (other.active && (other.primary == cur || other.primary < 0)) {
			return false
		}
	}
	return true
}

func component(l *lut.LUT, k int) *[256]uint8 {
	switch k {
	case 0:
		return &l.R
	case 1:
		return &l.G
	}
	return &l.B
}

func (c *Compositor) patch() error {
	cur := c.pos.Channel - 1
	if err := c.grab(cur); err != nil {
		return err
	}
	table := component(c.channels[cur].lut, cur)
	pix := c.img.Pix
	for i, v := range c.channels[cur].index {
		pix[4*i+cur] = table[v]
	}
	return nil
}

func (c *Compositor) blend() error {
	for i := range c.channels {
		if c.channels[i].dirty {
			if err := c.grab(i); err != nil {
				return err
			}
		}
	}

	pix := c.img.Pix
	first := true
	for i := range c.channels {
		cs := &c.channels[i]
		if !cs.active {
			continue
		}
		l := cs.lut
		if first {
			for j, v := range cs.index {
				o := 4 * j
				pix[o], pix[o+1], pix[o+2], pix[o+3] = l.R[v], l.G[v], l.B[v], 0xff
			}
			first = false
			continue
		}
		for j, v := range cs.index {
			o := 4 * j
			pix[o] = addSaturated(pix[o], l.R[v])
			pix[o+1] = addSaturated(pix[o+1], l.G[v])
			pix[o+2] = addSaturated(pix[o+2], l.B[v])
		}
	}
	if first {
		for o := 0; o < len(pix); o += 4 {
			pix[o], pix[o+1], pix[o+2], pix[o+3] = 0, 0, 0, 0xff
		}
	}
	c.built = true
	return nil
}

// single renders the current channel alone.
func (c *Compositor) single() error {
	cur := c.pos.Channel - 1
	cs := &c.channels[cur]
	if cs.dirty {
		if err := c.grab(cur); err != nil {
			return err
		}
	}
	l := cs.lut
	if c.mode == Grayscale {
		l = c.gray
	}
	pix := c.img.Pix
	for j, v := range cs.index {
		o := 4 * j
		pix[o], pix[o+1], pix[o+2], pix[o+3] = l.R[v], l.G[v], l.B[v], 0xff
	}
	// The buffer no longer holds a blend.
	c.built = false
	c.invalidateAll()
	cs.dirty = false
	return nil
}

func addSaturated(a, b uint8) uint8 {
	s := uint16(a) + uint16(b)
	if s > 0xff {
		return 0xff
	}
	return uint8(s)
}
