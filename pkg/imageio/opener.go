// Package imageio reads planes from common image files and writes whole
// stacks to a directory of planes described by a YAML manifest.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff" // register TIFF decoder

	"pixelstack/pkg/pixel"
	"pixelstack/pkg/stack"
)

// Extensions lists the file extensions FileOpener can decode.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff"}

// FileOpener decodes PNG, JPEG, GIF and TIFF files into planes. Raw float
// planes written by Save (.f32) need the size from the manifest and are read
// by Load instead.
type FileOpener struct{}

var _ stack.Opener = FileOpener{}

// OpenPlane implements stack.Opener.
func (FileOpener) OpenPlane(path, name string) (*stack.Loaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	p, err := FromImage(img)
	if err != nil {
		return nil, err
	}
	info, err := readInfo(path)
	if err != nil {
		return nil, err
	}
	return &stack.Loaded{Plane: p, BitDepth: p.BitDepth(), Info: info}, nil
}

// InfoSuffix names the optional text file holding a plane's metadata: the
// info of a.png is read from a.png.txt. Its first line becomes the slice
// label.
const InfoSuffix = ".txt"

func readInfo(path string) (string, error) {
	data, err := os.ReadFile(path + InfoSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read info for %s: %w", filepath.Base(path), err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// FromImage converts a decoded image into a plane: 8-bit and 16-bit gray
// images keep their depth, paletted images with an all-gray palette become
// 8-bit, and everything else becomes packed RGB.
func FromImage(img image.Image) (*pixel.Plane, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch m := img.(type) {
	case *image.Gray:
		px := make([]uint8, w*h)
		for y := 0; y < h; y++ {
			off := m.PixOffset(b.Min.X, b.Min.Y+y)
			copy(px[y*w:(y+1)*w], m.Pix[off:off+w])
		}
		return pixel.FromPixels(w, h, px)

	case *image.Gray16:
		px := make([]uint16, w*h)
		for y := 0; y < h; y++ {
			row := m.Pix[m.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				px[y*w+x] = uint16(row[2*x])<<8 | uint16(row[2*x+1])
			}
		}
		return pixel.FromPixels(w, h, px)

	case *image.Paletted:
		if grayPalette(m.Palette) {
			px := make([]uint8, w*h)
			for y := 0; y < h; y++ {
				off := m.PixOffset(b.Min.X, b.Min.Y+y)
				for x := 0; x < w; x++ {
					r, _, _, _ := m.Palette[m.Pix[off+x]].RGBA()
					px[y*w+x] = uint8(r >> 8)
				}
			}
			return pixel.FromPixels(w, h, px)
		}
	}

	px := make([]uint32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			px[y*w+x] = uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
		}
	}
	return pixel.FromPixels(w, h, px)
}

func grayPalette(p color.Palette) bool {
	for _, c := range p {
		r, g, b, _ := c.RGBA()
		if r != g || g != b {
			return false
		}
	}
	return true
}
