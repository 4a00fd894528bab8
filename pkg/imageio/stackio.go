package imageio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"pixelstack/internal/models"
	"pixelstack/pkg/hyperstack"
	"pixelstack/pkg/pixel"
	"pixelstack/pkg/stack"
)

// ManifestName is the file describing a saved stack.
const ManifestName = "stack.yaml"

// SaveOptions configures Save.
type SaveOptions struct {
	// Dimensions is recorded in the manifest when set.
	Dimensions hyperstack.Dimensions

	// Workers bounds the number of planes encoded at once. Zero means one
	// per CPU.
	Workers int
}

// describer is implemented by stacks that can describe themselves for
// persistence.
type describer interface {
	Info() models.StackInfo
}

// Describe returns the persistence descriptor of s.
func Describe(s stack.Stack) models.StackInfo {
	if d, ok := s.(describer); ok {
		return d.Info()
	}
	min, max := s.DisplayRange()
	info := models.StackInfo{
		Width:      s.Width(),
		Height:     s.Height(),
		Planes:     s.Size(),
		DisplayMin: min,
		DisplayMax: max,
		SliceInfo:  make([]models.SliceInfo, s.Size()),
	}
	for i := range info.SliceInfo {
		label, _ := s.Label(i + 1)
		info.SliceInfo[i] = models.SliceInfo{Index: i + 1, Label: label, BitDepth: s.Kind().BitDepth()}
	}
	return info
}

// Save writes every plane of s into dir, plus the manifest. Integer and RGB
// planes are written as PNG; float planes as little-endian raw float32.
// Planes are read in order and encoded in parallel.
func Save(dir string, s stack.Stack, opts SaveOptions) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	info := Describe(s)
	if d := opts.Dimensions; d.Size() == s.Size() && d.Size() > 0 {
		info.Channels, info.Slices, info.Frames = d.Channels, d.Slices, d.Frames
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for n := 1; n <= s.Size(); n++ {
		p, err := s.Plane(n)
		if err != nil {
			return errors.Join(err, g.Wait())
		}
		ext := ".png"
		if p.Kind() == pixel.Float32 {
			ext = ".f32"
		}
		name := fmt.Sprintf("slice_%03d%s", n, ext)
		info.SliceInfo[n-1].Filename = name
		info.SliceInfo[n-1].BitDepth = p.BitDepth()

		path := filepath.Join(dir, name)
		g.Go(func() error {
			if err := writePlane(path, p); err != nil {
				return fmt.Errorf("failed to write %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	data, err := yaml.Marshal(&info)
	if err != nil {
		return fmt.Errorf("error marshaling manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestName), data, 0644)
}

func writePlane(path string, p *pixel.Plane) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if p.Kind() == pixel.Float32 {
		err = binary.Write(w, binary.LittleEndian, p.Floats())
	} else {
		err = png.Encode(w, ToImage(p))
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ToImage copies an integer or RGB plane into the matching standard image
// type, keeping raw sample values. Float planes are rendered through their
// display range.
func ToImage(p *pixel.Plane) image.Image {
	w, h := p.Width(), p.Height()
	r := image.Rect(0, 0, w, h)
	switch p.Kind() {
	case pixel.UInt8:
		img := image.NewGray(r)
		copy(img.Pix, p.Bytes())
		return img
	case pixel.UInt16:
		img := image.NewGray16(r)
		for i, v := range p.Shorts() {
			img.Pix[2*i] = uint8(v >> 8)
			img.Pix[2*i+1] = uint8(v)
		}
		return img
	case pixel.PackedRGB32:
		img := image.NewRGBA(r)
		for i, c := range p.RGB() {
			img.Pix[4*i] = uint8(c >> 16)
			img.Pix[4*i+1] = uint8(c >> 8)
			img.Pix[4*i+2] = uint8(c)
			img.Pix[4*i+3] = 0xff
		}
		return img
	}
	return p
}

// Load reads a stack written by Save. The returned dimensions are those in
// the manifest, or a flat layout when none were recorded.
func Load(dir string) (*stack.ImageStack, hyperstack.Dimensions, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, hyperstack.Dimensions{}, fmt.Errorf("error reading manifest: %w", err)
	}
	var info models.StackInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, hyperstack.Dimensions{}, fmt.Errorf("error parsing manifest: %w", err)
	}
	if info.Width <= 0 || info.Height <= 0 || len(info.SliceInfo) != info.Planes {
		return nil, hyperstack.Dimensions{}, fmt.Errorf("%w: manifest describes %dx%d with %d of %d slices",
			stack.ErrArgument, info.Width, info.Height, len(info.SliceInfo), info.Planes)
	}

	s := stack.NewImageStack(info.Width, info.Height)
	for _, si := range info.SliceInfo {
		p, err := readPlane(filepath.Join(dir, si.Filename), info.Width, info.Height)
		if err != nil {
			return nil, hyperstack.Dimensions{}, fmt.Errorf("failed to load image %s: %w", si.Filename, err)
		}
		p.SetDisplayRange(info.DisplayMin, info.DisplayMax)
		if err := s.AddSlice(si.Label, p); err != nil {
			return nil, hyperstack.Dimensions{}, err
		}
	}
	s.SetDisplayRange(info.DisplayMin, info.DisplayMax)
	if c := info.Calibration; c != nil && len(c.Table) > 0 {
		s.SetCalibration(&stack.Calibration{Table: c.Table, Unit: c.Unit})
	}

	dims := hyperstack.Dimensions{Channels: info.Channels, Slices: info.Slices, Frames: info.Frames}
	dims, _ = dims.Verify(s.Size())
	return s, dims, nil
}

func readPlane(path string, width, height int) (*pixel.Plane, error) {
	if !strings.EqualFold(filepath.Ext(path), ".f32") {
		loaded, err := FileOpener{}.OpenPlane(path, filepath.Base(path))
		if err != nil {
			return nil, err
		}
		return loaded.Plane, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	px := make([]float32, width*height)
	if err := binary.Read(bufio.NewReader(f), binary.LittleEndian, px); err != nil {
		return nil, err
	}
	return pixel.FromPixels(width, height, px)
}
