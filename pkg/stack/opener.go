package stack

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"pixelstack/pkg/pixel"
)

// Loaded is a plane read from disk.
type Loaded struct {
	Plane *pixel.Plane

	// BitDepth is the depth the file was stored at.
	BitDepth int

	// Info is metadata text found in the file, empty when there was none.
	Info string
}

// Opener reads a single plane from a file. Implementations run silently:
// failures are returned, never presented to a user.
type Opener interface {
	OpenPlane(path, name string) (*Loaded, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path, name string) (*Loaded, error)

func (f OpenerFunc) OpenPlane(path, name string) (*Loaded, error) { return f(path, name) }

// IOFailure records a plane that could not be loaded.
type IOFailure struct {
	Path string
	Err  error
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("error opening %s: %v", e.Path, e.Err)
}

func (e *IOFailure) Unwrap() error { return e.Err }

// open calls the opener and normalizes every failure, including a nil
// result, into an *IOFailure.
func open(o Opener, dir, name string) (*Loaded, error) {
	path := filepath.Join(dir, name)
	loaded, err := o.OpenPlane(path, name)
	if err != nil {
		return nil, &IOFailure{Path: path, Err: err}
	}
	if loaded == nil || loaded.Plane == nil {
		return nil, &IOFailure{Path: path, Err: fmt.Errorf("no pixel data")}
	}
	return loaded, nil
}

// Options configures Open.
type Options struct {
	// Virtual selects a VirtualStack instead of loading every plane.
	Virtual bool

	// Extensions lists the accepted file extensions, lower case with the
	// leading dot.
	Extensions []string
}

// ListImages returns the names of the files in dir with an accepted
// extension, ordered by the number embedded in each name.
func ListImages(dir string, extensions []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	accept := map[string]bool{}
	for _, ext := range extensions {
		accept[strings.ToLower(ext)] = true
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if accept[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	sort.SliceStable(names, func(i, j int) bool {
		ni, nj := extractNumber(names[i]), extractNumber(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})
	return names, nil
}

// extractNumber extracts the digits of a filename as one number.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() > 0 {
		if num, err := strconv.Atoi(digits.String()); err == nil {
			return num
		}
	}
	return 0
}

// Open builds a stack from the image files in dir. A virtual stack takes its
// dimensions and bit depth from the first file; a resident stack loads every
// file now and fails on the first one that cannot be read.
func Open(dir string, opener Opener, opts Options) (Stack, error) {
	names, err := ListImages(dir, opts.Extensions)
	if err != nil {
		return nil, err
	}

	if opts.Virtual {
		first, err := open(opener, dir, names[0])
		if err != nil {
			return nil, err
		}
		depth := first.BitDepth
		if depth == 0 {
			depth = first.Plane.BitDepth()
		}
		vs, err := NewVirtualStack(first.Plane.Width(), first.Plane.Height(), depth, dir, opener)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			vs.AddSlice(name)
		}
		return vs, nil
	}

	s := NewImageStack(0, 0)
	for _, name := range names {
		loaded, err := open(opener, dir, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}
		label := name
		if short := ShortLabel(loaded.Info); short != "" {
			label = short
		}
		if err := s.AddSlice(label, loaded.Plane); err != nil {
			return nil, fmt.Errorf("failed to add image %s: %w", name, err)
		}
	}
	return s, nil
}
