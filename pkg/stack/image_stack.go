package stack

import (
	"fmt"
	"math"
	"sync/atomic"

	"pixelstack/internal/models"
	"pixelstack/pkg/lut"
	"pixelstack/pkg/pixel"
)

// Calibration maps raw sample values to calibrated ones.
type Calibration struct {
	// Table is indexed by the raw sample value.
	Table []float64
	Unit  string
}

// Value returns the calibrated value of raw, or raw itself when it falls
// outside the table.
func (c *Calibration) Value(raw float64) float64 {
	if c == nil || len(c.Table) == 0 {
		return raw
	}
	i := int(raw)
	if i < 0 || i >= len(c.Table) {
		return raw
	}
	return c.Table[i]
}

// ImageStack keeps every plane resident. Slots may be empty (sparse); an
// empty slot reads as a blank plane of the stack kind.
type ImageStack struct {
	width, height int
	kind          pixel.Kind

	// planes and labels have len == capacity; the first n slots are in use.
	planes []*pixel.Plane
	labels []string
	n      int

	colorModel  *lut.LUT
	min, max    float64
	calibration *Calibration

	viewers atomic.Int32
}

// NewImageStack returns an empty stack. Zero dimensions are taken from the
// first slice added.
func NewImageStack(width, height int) *ImageStack {
	return &ImageStack{width: width, height: height}
}

// NewSparseImageStack returns a stack of size empty slots.
func NewSparseImageStack(width, height, size int) *ImageStack {
	s := NewImageStack(width, height)
	s.planes = ensureCapacity(s.planes, size)
	s.labels = ensureCapacity(s.labels, size)
	s.n = size
	return s
}

func (s *ImageStack) Size() int        { return s.n }
func (s *ImageStack) Width() int       { return s.width }
func (s *ImageStack) Height() int      { return s.height }
func (s *ImageStack) IsVirtual() bool  { return false }
func (s *ImageStack) Capacity() int    { return len(s.planes) }
func (s *ImageStack) Kind() pixel.Kind { return s.kind }

// prepare converts p to the stack kind and pads it to the stack size. It
// does not modify the stack.
func (s *ImageStack) prepare(p *pixel.Plane) (*pixel.Plane, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil plane", ErrArgument)
	}
	if s.kind != 0 {
		converted, err := p.Convert(s.kind)
		if err != nil {
			return nil, err
		}
		p = converted
	}
	if s.width != 0 && s.height != 0 && (p.Width() != s.width || p.Height() != s.height) {
		padded, err := p.Pad(s.width, s.height)
		if err != nil {
			return nil, err
		}
		p = padded
	}
	return p, nil
}

// adopt lets the first slice fix the stack's kind, size, colour model and
// display range.
func (s *ImageStack) adopt(p *pixel.Plane) {
	if s.width == 0 || s.height == 0 {
		s.width, s.height = p.Width(), p.Height()
	}
	if s.kind == 0 {
		s.kind = p.Kind()
		s.colorModel = p.LUT()
		s.min, s.max = p.DisplayRange()
	}
}

// AddSlice appends a plane, converting it to the stack kind and padding it
// at the origin when its size differs.
func (s *ImageStack) AddSlice(label string, p *pixel.Plane) error {
	return s.InsertSlice(label, p, s.n+1)
}

// AddPixels appends a raw pixel array; see pixel.FromPixels for the
// accepted types.
func (s *ImageStack) AddPixels(label string, pixels any) error {
	w, h := s.width, s.height
	if w == 0 || h == 0 {
		return fmt.Errorf("%w: stack dimensions unset", ErrArgument)
	}
	p, err := pixel.FromPixels(w, h, pixels)
	if err != nil {
		return err
	}
	return s.AddSlice(label, p)
}

// InsertSlice inserts a plane so it becomes slice position. Position 0 also
// inserts at the front and Size()+1 appends.
func (s *ImageStack) InsertSlice(label string, p *pixel.Plane, position int) error {
	if position < 0 || position > s.n+1 {
		return rangeError(position, s.n+1)
	}
	if s.n == 0 {
		if p == nil {
			return fmt.Errorf("%w: nil plane", ErrArgument)
		}
		s.adopt(p)
	}
	p, err := s.prepare(p)
	if err != nil {
		return err
	}
	if position == 0 {
		position = 1
	}

	s.planes = ensureCapacity(s.planes, s.n+1)
	s.labels = ensureCapacity(s.labels, s.n+1)
	i := position - 1
	copy(s.planes[i+1:s.n+1], s.planes[i:s.n])
	copy(s.labels[i+1:s.n+1], s.labels[i:s.n])
	s.planes[i] = p
	s.labels[i] = label
	s.n++
	return nil
}

// DeleteSlice removes slice n, shifting later slices down. Capacity is kept.
func (s *ImageStack) DeleteSlice(n int) error {
	if n < 1 || n > s.n {
		return rangeError(n, s.n)
	}
	copy(s.planes[n-1:s.n-1], s.planes[n:s.n])
	copy(s.labels[n-1:s.n-1], s.labels[n:s.n])
	s.n--
	s.planes[s.n] = nil
	s.labels[s.n] = ""
	return nil
}

// DeleteLastSlice removes the last slice, if any.
func (s *ImageStack) DeleteLastSlice() {
	if s.n > 0 {
		_ = s.DeleteSlice(s.n)
	}
}

// Trim shrinks the capacity to the current size.
func (s *ImageStack) Trim() {
	s.planes = append([]*pixel.Plane(nil), s.planes[:s.n]...)
	s.labels = append([]string(nil), s.labels[:s.n]...)
}

// Plane returns slice n. The plane is shared with the stack, except for an
// empty slot, which reads as a fresh blank plane and stays empty.
func (s *ImageStack) Plane(n int) (*pixel.Plane, error) {
	if n < 1 || n > s.n {
		return nil, rangeError(n, s.n)
	}
	if p := s.planes[n-1]; p != nil {
		return p, nil
	}
	return s.blank()
}

func (s *ImageStack) blank() (*pixel.Plane, error) {
	kind := s.kind
	if kind == 0 {
		kind = pixel.UInt8
	}
	p, err := pixel.New(kind, s.width, s.height)
	if err != nil {
		return nil, err
	}
	p.SetLUT(s.colorModel)
	return p, nil
}

// SetPlane replaces slice n, converting and padding like AddSlice.
func (s *ImageStack) SetPlane(n int, p *pixel.Plane) error {
	if n < 1 || n > s.n {
		return rangeError(n, s.n)
	}
	if s.kind == 0 && p != nil {
		s.adopt(p)
	}
	p, err := s.prepare(p)
	if err != nil {
		return err
	}
	s.planes[n-1] = p
	return nil
}

// Pixels returns the backing buffer of slice n.
func (s *ImageStack) Pixels(n int) (any, error) {
	p, err := s.Plane(n)
	if err != nil {
		return nil, err
	}
	return p.Pixels(), nil
}

// SetPixels replaces the buffer of slice n. The array must match the stack
// size and, once fixed, the stack kind; nothing changes on failure.
func (s *ImageStack) SetPixels(n int, pixels any) error {
	if n < 1 || n > s.n {
		return rangeError(n, s.n)
	}
	p, err := pixel.FromPixels(s.width, s.height, pixels)
	if err != nil {
		return err
	}
	if s.kind != 0 && p.Kind() != s.kind {
		return fmt.Errorf("%w: %v pixels in a %v stack", ErrArgument, p.Kind(), s.kind)
	}
	if old := s.planes[n-1]; old != nil {
		p.SetDisplayRange(old.DisplayRange())
		p.SetLUT(old.LUT())
	}
	return s.SetPlane(n, p)
}

// Label returns the label of slice n.
func (s *ImageStack) Label(n int) (string, error) {
	if n < 1 || n > s.n {
		return "", rangeError(n, s.n)
	}
	return s.labels[n-1], nil
}

// ShortLabel returns the display form of the label of slice n.
func (s *ImageStack) ShortLabel(n int) (string, error) {
	l, err := s.Label(n)
	if err != nil {
		return "", err
	}
	return ShortLabel(l), nil
}

// SetLabel sets the label of slice n.
func (s *ImageStack) SetLabel(n int, label string) error {
	if n < 1 || n > s.n {
		return rangeError(n, s.n)
	}
	s.labels[n-1] = label
	return nil
}

// Labels returns a copy of all slice labels.
func (s *ImageStack) Labels() []string {
	return append([]string(nil), s.labels[:s.n]...)
}

func (s *ImageStack) checkVoxel(x, y, z int) error {
	if x < 0 || y < 0 || z < 0 || x >= s.width || y >= s.height || z >= s.n {
		return fmt.Errorf("%w: voxel (%d,%d,%d) in %dx%dx%d", ErrIndex, x, y, z, s.width, s.height, s.n)
	}
	return nil
}

// Voxel returns the sample at 0-based (x, y, z).
func (s *ImageStack) Voxel(x, y, z int) (float64, error) {
	if err := s.checkVoxel(x, y, z); err != nil {
		return 0, err
	}
	p := s.planes[z]
	if p == nil {
		return 0, nil
	}
	return p.ValueAt(y*s.width + x), nil
}

// SetVoxel stores v at 0-based (x, y, z), clamped into the stack kind's
// range. Writing into an empty slot fills it with a blank plane first.
func (s *ImageStack) SetVoxel(x, y, z int, v float64) error {
	if err := s.checkVoxel(x, y, z); err != nil {
		return err
	}
	p := s.planes[z]
	if p == nil {
		var err error
		if p, err = s.blank(); err != nil {
			return err
		}
		s.planes[z] = p
	}
	p.SetValueAt(y*s.width+x, v)
	return nil
}

// ColorModel returns the stack LUT, nil meaning grayscale.
func (s *ImageStack) ColorModel() *lut.LUT { return s.colorModel }

// SetColorModel replaces the stack LUT.
func (s *ImageStack) SetColorModel(l *lut.LUT) { s.colorModel = l }

// DisplayRange returns the cached display range.
func (s *ImageStack) DisplayRange() (min, max float64) { return s.min, s.max }

// SetDisplayRange replaces the cached display range.
func (s *ImageStack) SetDisplayRange(min, max float64) { s.min, s.max = min, max }

// ResetDisplayRange recomputes the display range over every resident plane.
// 8-bit and RGB stacks always reset to 0-255.
func (s *ImageStack) ResetDisplayRange() {
	if s.kind == pixel.UInt8 || s.kind == pixel.PackedRGB32 {
		s.min, s.max = 0, 255
		return
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range s.planes[:s.n] {
		if p == nil {
			continue
		}
		st := p.Statistics()
		if st.Count == 0 {
			continue
		}
		lo = math.Min(lo, st.Min)
		hi = math.Max(hi, st.Max)
	}
	if lo > hi {
		lo, hi = 0, 0
	}
	s.min, s.max = lo, hi
}

// Calibration returns the calibration table, or nil.
func (s *ImageStack) Calibration() *Calibration { return s.calibration }

// SetCalibration replaces the calibration table.
func (s *ImageStack) SetCalibration(c *Calibration) { s.calibration = c }

// IsRGB reports whether the stack is an 8-bit red/green/blue decomposition.
func (s *ImageStack) IsRGB() bool {
	return s.isDecomposed(pixel.UInt8, "Red")
}

// IsHSB reports whether the stack is an 8-bit hue/saturation/brightness
// decomposition.
func (s *ImageStack) IsHSB() bool {
	return s.isDecomposed(pixel.UInt8, "Hue")
}

// IsLab reports whether the stack is an L*a*b* decomposition. Lab planes are
// stored as floats.
func (s *ImageStack) IsLab() bool {
	return s.isDecomposed(pixel.Float32, "L*")
}

func (s *ImageStack) isDecomposed(kind pixel.Kind, first string) bool {
	return s.n == 3 && s.kind == kind && s.labels[0] == first
}

// Info describes the stack for persistence collaborators.
func (s *ImageStack) Info() models.StackInfo {
	info := models.StackInfo{
		Width:      s.width,
		Height:     s.height,
		Planes:     s.n,
		DisplayMin: s.min,
		DisplayMax: s.max,
		SliceInfo:  make([]models.SliceInfo, s.n),
	}
	for i := 0; i < s.n; i++ {
		depth := s.kind.BitDepth()
		if p := s.planes[i]; p != nil {
			depth = p.BitDepth()
		}
		info.SliceInfo[i] = models.SliceInfo{Index: i + 1, Label: s.labels[i], BitDepth: depth}
	}
	if c := s.calibration; c != nil {
		info.Calibration = &models.Calibration{
			Min:   c.Value(s.min),
			Max:   c.Value(s.max),
			Unit:  c.Unit,
			Table: c.Table,
		}
	}
	return info
}

// AddViewer increments the viewer count.
func (s *ImageStack) AddViewer() int {
	return int(s.viewers.Add(1))
}

// RemoveViewer decrements the viewer count, releasing every plane when it
// reaches zero.
func (s *ImageStack) RemoveViewer() int {
	n := s.viewers.Add(-1)
	if n <= 0 {
		s.viewers.Store(0)
		s.release()
		return 0
	}
	return int(n)
}

func (s *ImageStack) release() {
	s.planes = nil
	s.labels = nil
	s.n = 0
}
