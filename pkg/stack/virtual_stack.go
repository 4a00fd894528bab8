package stack

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"pixelstack/pkg/hyperstack"
	"pixelstack/pkg/pixel"
)

// PositionSource reports the hyperstack position of a slice of a displayed
// image. Generated planes are labelled with it.
type PositionSource interface {
	PositionOf(n int) (hyperstack.Position, bool)
}

// GeneratorOptions controls synthesized planes.
type GeneratorOptions struct {
	// Fill writes an incrementing test pattern (sample i holds i, wrapping
	// at the kind's range).
	Fill bool

	// Delay is slept after every plane is generated.
	Delay time.Duration
}

// VirtualStack resolves planes on demand from files in a directory or from
// a generator. Its declared size is independent of any materialized data,
// and every Plane call returns a freshly allocated plane, so concurrent reads
// are safe.
type VirtualStack struct {
	width, height int
	kind          pixel.Kind

	dir    string
	opener Opener

	// names and labels have len == capacity; the first n slots are in use.
	names  []string
	labels []string
	n      int
	mu     sync.Mutex // guards labels

	table     []int
	generator *GeneratorOptions
	positions PositionSource

	min, max float64
	failures atomic.Int64
	viewers  atomic.Int32
	logger   *log.Logger
}

// NewVirtualStack returns an empty path-backed stack of planes read from dir
// through opener and converted to bitDepth.
func NewVirtualStack(width, height, bitDepth int, dir string, opener Opener) (*VirtualStack, error) {
	if opener == nil {
		return nil, fmt.Errorf("%w: nil opener", ErrArgument)
	}
	s, err := newVirtual(width, height, bitDepth)
	if err != nil {
		return nil, err
	}
	s.dir, s.opener = dir, opener
	return s, nil
}

// NewGeneratedStack returns a stack of size synthesized planes.
func NewGeneratedStack(width, height, bitDepth, size int, opts GeneratorOptions) (*VirtualStack, error) {
	s, err := newVirtual(width, height, bitDepth)
	if err != nil {
		return nil, err
	}
	s.generator = &opts
	s.names = ensureCapacity(s.names, size)
	s.labels = ensureCapacity(s.labels, size)
	s.n = size
	return s, nil
}

func newVirtual(width, height, bitDepth int) (*VirtualStack, error) {
	kind, err := pixel.KindForBitDepth(bitDepth)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrArgument, width, height)
	}
	s := &VirtualStack{
		width:  width,
		height: height,
		kind:   kind,
		logger: log.New(io.Discard, "", 0),
	}
	switch kind {
	case pixel.UInt16:
		s.max = 65535
	case pixel.Float32:
		s.max = 1
	default:
		s.max = 255
	}
	return s, nil
}

func (s *VirtualStack) Size() int        { return s.n }
func (s *VirtualStack) Width() int       { return s.width }
func (s *VirtualStack) Height() int      { return s.height }
func (s *VirtualStack) Kind() pixel.Kind { return s.kind }
func (s *VirtualStack) BitDepth() int    { return s.kind.BitDepth() }
func (s *VirtualStack) IsVirtual() bool  { return true }
func (s *VirtualStack) Directory() string {
	return s.dir
}

// SetLogger directs messages about recovered load failures to l.
func (s *VirtualStack) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	s.logger = l
}

// Attach sets the source used to label generated planes with their
// position. A nil source detaches.
func (s *VirtualStack) Attach(src PositionSource) { s.positions = src }

// SetIndexTable installs a translation from slice number to the stored
// slice number, for files whose planes are not in CZT order. Every entry
// must lie in [1, Size()]; nil removes the table.
func (s *VirtualStack) SetIndexTable(table []int) error {
	if table == nil {
		s.table = nil
		return nil
	}
	if len(table) != s.n {
		return fmt.Errorf("%w: index table of %d entries for %d slices", ErrArgument, len(table), s.n)
	}
	for _, v := range table {
		if v < 1 || v > s.n {
			return rangeError(v, s.n)
		}
	}
	s.table = append([]int(nil), table...)
	return nil
}

// translate maps slice n through the index table.
func (s *VirtualStack) translate(n int) (int, error) {
	if n < 1 || n > s.n {
		return 0, rangeError(n, s.n)
	}
	if s.table != nil {
		return s.table[n-1], nil
	}
	return n, nil
}

// AddSlice appends a file name. Generated stacks grow by one blank slot.
func (s *VirtualStack) AddSlice(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = ensureCapacity(s.names, s.n+1)
	s.labels = ensureCapacity(s.labels, s.n+1)
	s.names[s.n] = name
	s.labels[s.n] = ""
	s.n++
	s.table = nil
}

// DeleteSlice removes slice n from the name and label lists.
func (s *VirtualStack) DeleteSlice(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > s.n {
		return rangeError(n, s.n)
	}
	copy(s.names[n-1:s.n-1], s.names[n:s.n])
	copy(s.labels[n-1:s.n-1], s.labels[n:s.n])
	s.n--
	s.names[s.n] = ""
	s.labels[s.n] = ""
	s.table = nil
	return nil
}

// FileName returns the file name of slice n.
func (s *VirtualStack) FileName(n int) (string, error) {
	i, err := s.translate(n)
	if err != nil {
		return "", err
	}
	return s.names[i-1], nil
}

// Plane resolves slice n. Files that cannot be read yield an inverted 8-bit
// placeholder with the error drawn in, converted like any other plane; the
// failure is counted and logged but never returned.
func (s *VirtualStack) Plane(n int) (*pixel.Plane, error) {
	i, err := s.translate(n)
	if err != nil {
		return nil, err
	}
	if s.generator != nil {
		return s.generate(n)
	}

	var p *pixel.Plane
	loaded, err := open(s.opener, s.dir, s.names[i-1])
	if err != nil {
		s.failures.Add(1)
		s.logger.Printf("Warning: %v", err)
		if p, err = s.errorPlane(err); err != nil {
			return nil, err
		}
	} else {
		p = loaded.Plane
		if loaded.Info != "" {
			s.mu.Lock()
			s.labels[i-1] = loaded.Info
			s.mu.Unlock()
		}
	}

	if p.Kind() != s.kind {
		if p, err = p.Convert(s.kind); err != nil {
			return nil, err
		}
	}
	if p.Width() != s.width || p.Height() != s.height {
		if p, err = p.Pad(s.width, s.height); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *VirtualStack) errorPlane(cause error) (*pixel.Plane, error) {
	p, err := pixel.New(pixel.UInt8, s.width, s.height)
	if err != nil {
		return nil, err
	}
	p.Invert()
	p.DrawString(cause.Error(), 10, 20, 0)
	return p, nil
}

func (s *VirtualStack) generate(n int) (*pixel.Plane, error) {
	p, err := pixel.New(s.kind, s.width, s.height)
	if err != nil {
		return nil, err
	}
	if s.generator.Fill {
		fillPattern(p)
	}
	if s.positions != nil {
		if pos, ok := s.positions.PositionOf(n); ok {
			p.DrawString(pos.String(), 5, 20, s.labelValue())
		}
	}
	p.SetDisplayRange(s.min, s.max)
	if s.generator.Delay > 0 {
		time.Sleep(s.generator.Delay)
	}
	return p, nil
}

// labelValue is the brightest sample of the stack kind.
func (s *VirtualStack) labelValue() float64 {
	if s.kind == pixel.Float32 {
		return s.max
	}
	return s.kind.MaxValue()
}

func fillPattern(p *pixel.Plane) {
	switch p.Kind() {
	case pixel.UInt8:
		for i := range p.Bytes() {
			p.Bytes()[i] = uint8(i)
		}
	case pixel.UInt16:
		for i := range p.Shorts() {
			p.Shorts()[i] = uint16(i)
		}
	case pixel.Float32:
		for i := range p.Floats() {
			p.Floats()[i] = float32(i)
		}
	case pixel.PackedRGB32:
		for i := range p.RGB() {
			p.RGB()[i] = uint32(i) & 0xffffff
		}
	}
}

// SetPlane is a no-op: a virtual stack has no resident buffer to replace.
func (s *VirtualStack) SetPlane(n int, p *pixel.Plane) error { return nil }

// SetPixels is a no-op.
func (s *VirtualStack) SetPixels(n int, pixels any) error { return nil }

// SetVoxel is a no-op.
func (s *VirtualStack) SetVoxel(x, y, z int, v float64) error { return nil }

// Voxel resolves slice z+1 and reads one sample from it.
func (s *VirtualStack) Voxel(x, y, z int) (float64, error) {
	if x < 0 || y < 0 || z < 0 || x >= s.width || y >= s.height || z >= s.n {
		return 0, fmt.Errorf("%w: voxel (%d,%d,%d) in %dx%dx%d", ErrIndex, x, y, z, s.width, s.height, s.n)
	}
	p, err := s.Plane(z + 1)
	if err != nil {
		return 0, err
	}
	return p.ValueAt(y*s.width + x), nil
}

// Label returns the label of slice n: the short form of metadata text from
// the last successful load, or else the file name.
func (s *VirtualStack) Label(n int) (string, error) {
	i, err := s.translate(n)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l := s.labels[i-1]; l != "" {
		if short := ShortLabel(l); short != "" {
			return short, nil
		}
	}
	return s.names[i-1], nil
}

// SetLabel replaces the label of slice n.
func (s *VirtualStack) SetLabel(n int, label string) error {
	i, err := s.translate(n)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.labels[i-1] = label
	s.mu.Unlock()
	return nil
}

// DisplayRange returns the range given to generated planes: 0-255 for 8-bit
// and RGB, 0-65535 for 16-bit and 0-1 for float stacks unless changed.
func (s *VirtualStack) DisplayRange() (min, max float64) { return s.min, s.max }

// SetDisplayRange replaces the range applied to generated planes.
func (s *VirtualStack) SetDisplayRange(min, max float64) { s.min, s.max = min, max }

// LoadFailures returns how many loads fell back to a placeholder plane.
func (s *VirtualStack) LoadFailures() int { return int(s.failures.Load()) }

func (s *VirtualStack) AddViewer() int { return int(s.viewers.Add(1)) }

// RemoveViewer decrements the viewer count and detaches the position source
// when it reaches zero.
func (s *VirtualStack) RemoveViewer() int {
	n := s.viewers.Add(-1)
	if n <= 0 {
		s.viewers.Store(0)
		s.positions = nil
		return 0
	}
	return int(n)
}
