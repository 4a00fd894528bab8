package visualization

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"pixelstack/pkg/composite"
	"pixelstack/pkg/config"
	"pixelstack/pkg/hyperstack"
	"pixelstack/pkg/lut"
	"pixelstack/pkg/pixel"
	"pixelstack/pkg/stack"
)

// Surface is the display that shows a viewer's rendered image.
type Surface interface {
	// PlaneChanged is called after the rendered pixels changed.
	PlaneChanged()

	// DimensionsChanged is called after the hyperstack layout changed.
	DimensionsChanged()
}

// attachable is implemented by stacks that label generated planes with the
// position of the image showing them.
type attachable interface {
	Attach(src stack.PositionSource)
}

// Viewer is the image that owns a stack while it is displayed: it holds the
// hyperstack layout and current position, and renders single-channel stacks
// directly and multichannel stacks through a compositor.
type Viewer struct {
	title string
	stack stack.Stack

	dims hyperstack.Dimensions
	pos  hyperstack.Position

	mode       composite.Mode
	palette    []color.RGBA
	compositor *composite.Compositor

	surface     Surface
	jpegQuality int
	workers     int
	closed      bool
}

// NewViewer creates a viewer of s laid out as a flat z-stack. The stack's
// viewer count is incremented until Close.
func NewViewer(title string, s stack.Stack) *Viewer {
	v := &Viewer{
		title:       title,
		jpegQuality: 90,
		workers:     runtime.NumCPU(),
	}
	v.attach(s)
	v.dims = hyperstack.Flat(s.Size())
	v.pos = hyperstack.Position{Channel: 1, Slice: 1, Frame: 1}
	return v
}

func (v *Viewer) attach(s stack.Stack) {
	v.stack = s
	s.AddViewer()
	if a, ok := s.(attachable); ok {
		a.Attach(v)
	}
}

func (v *Viewer) detach() {
	if a, ok := v.stack.(attachable); ok {
		a.Attach(nil)
	}
	v.stack.RemoveViewer()
}

// Configure applies the composite and output sections of cfg.
func (v *Viewer) Configure(cfg *config.Config) error {
	mode, err := composite.ParseMode(cfg.Composite.Mode)
	if err != nil {
		return err
	}
	palette, err := lut.ParsePalette(cfg.Composite.Palette)
	if err != nil {
		return err
	}
	v.jpegQuality = cfg.Output.JPEGQuality
	if cfg.Processing.NumCores > 0 {
		v.workers = cfg.Processing.NumCores
	}
	v.palette = palette
	if v.compositor != nil {
		v.compositor.SetPalette(palette)
	}
	v.SetMode(mode)
	return nil
}

func (v *Viewer) Title() string                     { return v.title }
func (v *Viewer) Stack() stack.Stack                { return v.stack }
func (v *Viewer) Dimensions() hyperstack.Dimensions { return v.dims }
func (v *Viewer) Position() hyperstack.Position     { return v.pos }
func (v *Viewer) Mode() composite.Mode              { return v.mode }

// Compositor returns the compositor of a multichannel image, or nil.
func (v *Viewer) Compositor() *composite.Compositor { return v.compositor }

// SetSurface sets the display notified of changes.
func (v *Viewer) SetSurface(s Surface) { v.surface = s }

// PositionOf reports the position of slice n under the current layout.
func (v *Viewer) PositionOf(n int) (hyperstack.Position, bool) {
	p, err := v.dims.IndexToPosition(n)
	return p, err == nil
}

// PixelsChanged forwards compositor updates to the surface.
func (v *Viewer) PixelsChanged() {
	if v.surface != nil {
		v.surface.PlaneChanged()
	}
}

// SetDimensions lays the stack out as channels x slices x frames. A layout
// that does not match the stack size is repaired.
func (v *Viewer) SetDimensions(channels, slices, frames int) {
	d := hyperstack.Dimensions{Channels: channels, Slices: slices, Frames: frames}
	v.dims, _ = d.Verify(v.stack.Size())
	v.pos = v.dims.Clamp(v.pos)
	v.syncCompositor()
	if v.surface != nil {
		v.surface.DimensionsChanged()
	}
}

// syncCompositor creates, resizes or drops the compositor to match the
// channel count.
func (v *Viewer) syncCompositor() {
	if v.dims.Channels <= 1 {
		v.compositor = nil
		return
	}
	if v.compositor == nil {
		v.compositor = composite.New(v.stack, v.dims)
		v.compositor.SetNotifier(v)
		if v.palette != nil {
			v.compositor.SetPalette(v.palette)
		}
		v.compositor.SetMode(v.mode)
	} else {
		v.compositor.SetDimensions(v.dims)
	}
	v.compositor.SetPosition(v.pos.Channel, v.pos.Slice, v.pos.Frame)
}

// SetPosition moves to a position, clamping each coordinate into its axis.
func (v *Viewer) SetPosition(channel, slice, frame int) {
	v.pos = v.dims.Clamp(hyperstack.Position{Channel: channel, Slice: slice, Frame: frame})
	if v.compositor != nil {
		v.compositor.SetPosition(v.pos.Channel, v.pos.Slice, v.pos.Frame)
	}
}

// CurrentIndex returns the 1-based stack index of the current position.
func (v *Viewer) CurrentIndex() int {
	return v.dims.PositionToIndex(v.pos.Channel, v.pos.Slice, v.pos.Frame)
}

// SetMode switches how a multichannel image is displayed.
func (v *Viewer) SetMode(m composite.Mode) {
	v.mode = m
	if v.compositor != nil {
		v.compositor.SetMode(m)
	}
}

// Render returns the image at the current position. Single-channel images
// return the current plane itself; multichannel images return the
// compositor's buffer, which is updated in place on every call.
func (v *Viewer) Render() (image.Image, error) {
	if v.closed {
		return nil, fmt.Errorf("viewer %q is closed", v.title)
	}
	if v.compositor == nil {
		return v.renderPlane()
	}
	if err := v.compositor.Update(); err != nil {
		return nil, err
	}
	// The compositor may have repaired its layout.
	v.dims = v.compositor.Dimensions()
	v.pos = v.compositor.Position()
	if v.dims.Channels <= 1 {
		v.compositor = nil
		if v.surface != nil {
			v.surface.DimensionsChanged()
		}
		return v.renderPlane()
	}
	return v.compositor.Image(), nil
}

func (v *Viewer) renderPlane() (image.Image, error) {
	p, err := v.stack.Plane(v.CurrentIndex())
	if err != nil {
		return nil, err
	}
	v.PixelsChanged()
	return p, nil
}

// SetStack replaces the displayed stack, moving the viewer reference to it.
// The current layout is kept when it fits the new stack.
func (v *Viewer) SetStack(s stack.Stack) {
	if s == v.stack {
		return
	}
	v.detach()
	v.attach(s)
	v.dims, _ = v.dims.Verify(s.Size())
	v.pos = v.dims.Clamp(v.pos)
	if v.compositor != nil && v.dims.Channels > 1 {
		v.compositor.SetStack(s, v.dims)
		v.compositor.SetPosition(v.pos.Channel, v.pos.Slice, v.pos.Frame)
	} else {
		v.compositor = nil
		v.syncCompositor()
	}
	if v.surface != nil {
		v.surface.DimensionsChanged()
	}
}

// Close drops the viewer's reference to its stack. A stack nobody views
// releases its buffers.
func (v *Viewer) Close() {
	if v.closed {
		return
	}
	v.closed = true
	v.compositor = nil
	v.detach()
}

// ExtractSlice extracts an orthogonal slice through the current channel and
// frame. Axis z returns a copy of plane position (0-based); x and y reslice
// the z-stack along the YZ and XZ planes.
func (v *Viewer) ExtractSlice(axis string, position int) (*pixel.Plane, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	width, height, depth := v.stack.Width(), v.stack.Height(), v.dims.Slices
	c, t := v.pos.Channel, v.pos.Frame
	planeAt := func(z int) (*pixel.Plane, error) {
		return v.stack.Plane(v.dims.PositionToIndex(c, z+1, t))
	}

	switch strings.ToLower(axis) {
	case "z":
		if position >= depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, depth)
		}
		p, err := planeAt(position)
		if err != nil {
			return nil, err
		}
		return p.Duplicate(), nil

	case "x":
		// Extract slice along YZ plane
		if position >= width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, width)
		}
		out, err := pixel.New(v.stack.Kind(), depth, height)
		if err != nil {
			return nil, err
		}
		for z := 0; z < depth; z++ {
			p, err := planeAt(z)
			if err != nil {
				return nil, err
			}
			for y := 0; y < height; y++ {
				out.SetValueAt(y*depth+z, p.ValueAt(y*width+position))
			}
		}
		out.SetDisplayRange(v.stack.DisplayRange())
		return out, nil

	case "y":
		// Extract slice along XZ plane
		if position >= height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, height)
		}
		out, err := pixel.New(v.stack.Kind(), width, depth)
		if err != nil {
			return nil, err
		}
		for z := 0; z < depth; z++ {
			p, err := planeAt(z)
			if err != nil {
				return nil, err
			}
			for x := 0; x < width; x++ {
				out.SetValueAt(z*width+x, p.ValueAt(position*width+x))
			}
		}
		out.SetDisplayRange(v.stack.DisplayRange())
		return out, nil
	}
	return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// ExtractRegion copies the sub-volume of sizeX x sizeY x sizeZ voxels
// starting at 0-based (startX, startY, startZ) from the current channel and
// frame into a new resident stack.
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) (*stack.ImageStack, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	width := v.stack.Width()
	if startX+sizeX > width || startY+sizeY > v.stack.Height() || startZ+sizeZ > v.dims.Slices {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	out := stack.NewImageStack(sizeX, sizeY)
	for z := 0; z < sizeZ; z++ {
		n := v.dims.PositionToIndex(v.pos.Channel, startZ+z+1, v.pos.Frame)
		src, err := v.stack.Plane(n)
		if err != nil {
			return nil, err
		}
		dst, err := pixel.New(src.Kind(), sizeX, sizeY)
		if err != nil {
			return nil, err
		}
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				dst.SetValueAt(y*sizeX+x, src.ValueAt((startY+y)*width+startX+x))
			}
		}
		dst.SetDisplayRange(src.DisplayRange())
		dst.SetLUT(src.LUT())
		label, _ := v.stack.Label(n)
		if err := out.AddSlice(label, dst); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SaveSnapshot renders the current position and writes it to filename as
// PNG, JPEG or GIF by extension.
func (v *Viewer) SaveSnapshot(filename string) error {
	img, err := v.Render()
	if err != nil {
		return err
	}
	return v.SaveSlice(img, filename)
}

// SaveSlice saves an image in the format named by the file extension.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	encode, err := v.encoder(filepath.Ext(filename))
	if err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (v *Viewer) encoder(ext string) (func(*os.File, image.Image) error, error) {
	switch strings.ToLower(ext) {
	case ".png":
		return func(f *os.File, img image.Image) error { return png.Encode(f, img) }, nil
	case ".jpg", ".jpeg":
		q := v.jpegQuality
		return func(f *os.File, img image.Image) error {
			return jpeg.Encode(f, img, &jpeg.Options{Quality: q})
		}, nil
	case ".gif":
		return func(f *os.File, img image.Image) error { return gif.Encode(f, img, nil) }, nil
	}
	return nil, fmt.Errorf("unsupported snapshot format %q", ext)
}

// SaveSliceSequence renders every slice (axis z) or frame (axis t) at the
// current channel and writes one image per step into outputDir. Rendering is
// sequential; files are encoded in parallel. The position is restored
// afterwards.
func (v *Viewer) SaveSliceSequence(axis, outputDir, format string) error {
	var steps int
	switch strings.ToLower(axis) {
	case "z":
		steps = v.dims.Slices
	case "t":
		steps = v.dims.Frames
	default:
		return fmt.Errorf("invalid axis: %s (must be z or t)", axis)
	}
	if format == "" {
		format = "png"
	}
	ext := "." + strings.ToLower(format)
	if _, err := v.encoder(ext); err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	saved := v.pos
	defer v.SetPosition(saved.Channel, saved.Slice, saved.Frame)

	g := new(errgroup.Group)
	g.SetLimit(v.workers)
	for i := 1; i <= steps; i++ {
		if strings.EqualFold(axis, "z") {
			v.SetPosition(saved.Channel, i, saved.Frame)
		} else {
			v.SetPosition(saved.Channel, saved.Slice, i)
		}
		img, err := v.Render()
		if err != nil {
			return errors.Join(err, g.Wait())
		}
		// The rendered buffer is reused by the next step.
		frame := image.NewRGBA(img.Bounds())
		draw.Draw(frame, frame.Bounds(), img, img.Bounds().Min, draw.Src)

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d%s", strings.ToLower(axis), i, ext))
		g.Go(func() error {
			return v.SaveSlice(frame, filename)
		})
	}
	return g.Wait()
}
