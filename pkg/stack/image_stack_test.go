package stack

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pixelstack/pkg/lut"
	"pixelstack/pkg/pixel"
)

// createTestPlane creates a plane whose samples all equal value
func createTestPlane(t *testing.T, kind pixel.Kind, width, height int, value float64) *pixel.Plane {
	t.Helper()
	p, err := pixel.New(kind, width, height)
	if err != nil {
		t.Fatalf("Failed to create plane: %v", err)
	}
	p.Fill(value)
	p.ResetDisplayRange()
	return p
}

// createTestStack creates an 8-bit stack where slice i holds the value i
func createTestStack(t *testing.T, size int) *ImageStack {
	t.Helper()
	s := NewImageStack(4, 3)
	for i := 1; i <= size; i++ {
		if err := s.AddSlice(fmt.Sprintf("slice-%d", i), createTestPlane(t, pixel.UInt8, 4, 3, float64(i))); err != nil {
			t.Fatalf("AddSlice %d failed: %v", i, err)
		}
	}
	return s
}

func firstSample(t *testing.T, s Stack, n int) float64 {
	t.Helper()
	p, err := s.Plane(n)
	if err != nil {
		t.Fatalf("Plane(%d) failed: %v", n, err)
	}
	return p.ValueAt(0)
}

func TestFirstSliceEstablishesStack(t *testing.T) {
	s := NewImageStack(0, 0)
	p := createTestPlane(t, pixel.UInt16, 5, 2, 1000)
	p.SetDisplayRange(10, 2000)
	p.SetLUT(lut.ForChannel(1, nil))

	if err := s.AddSlice("first", p); err != nil {
		t.Fatalf("AddSlice failed: %v", err)
	}
	if s.Width() != 5 || s.Height() != 2 {
		t.Errorf("Expected 5x2, got %dx%d", s.Width(), s.Height())
	}
	if s.Kind() != pixel.UInt16 {
		t.Errorf("Expected 16-bit stack, got %v", s.Kind())
	}
	if min, max := s.DisplayRange(); min != 10 || max != 2000 {
		t.Errorf("Expected display range 10-2000, got %v-%v", min, max)
	}
	if s.ColorModel() != p.LUT() {
		t.Error("Expected the first slice's LUT as colour model")
	}
}

func TestAddSliceThenPlane(t *testing.T) {
	s := createTestStack(t, 2)
	p := createTestPlane(t, pixel.UInt8, 4, 3, 77)
	if err := s.AddSlice("new", p); err != nil {
		t.Fatal(err)
	}
	got, err := s.Plane(s.Size())
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind() != pixel.UInt8 {
		t.Errorf("Expected 8-bit, got %v", got.Kind())
	}
	if diff := cmp.Diff(p.Bytes(), got.Bytes()); diff != "" {
		t.Errorf("Plane content mismatch (-want +got):\n%s", diff)
	}
}

func TestAddSliceConvertsToStackKind(t *testing.T) {
	s := createTestStack(t, 1)
	wide := createTestPlane(t, pixel.Float32, 4, 3, 0.5)
	wide.SetDisplayRange(0, 1)
	if err := s.AddSlice("float", wide); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Plane(2)
	if got.Kind() != pixel.UInt8 {
		t.Fatalf("Expected conversion to 8-bit, got %v", got.Kind())
	}
	if v := got.ValueAt(0); v != 128 {
		t.Errorf("Expected 128, got %v", v)
	}
}

func TestAddSlicePadsAtOrigin(t *testing.T) {
	s := createTestStack(t, 1)
	small := createTestPlane(t, pixel.UInt8, 2, 2, 9)
	if err := s.AddSlice("small", small); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Plane(2)
	want := []uint8{
		9, 9, 0, 0,
		9, 9, 0, 0,
		0, 0, 0, 0,
	}
	if diff := cmp.Diff(want, got.Bytes()); diff != "" {
		t.Errorf("Padded plane mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertSlice(t *testing.T) {
	s := createTestStack(t, 3)

	if err := s.InsertSlice("front", createTestPlane(t, pixel.UInt8, 4, 3, 50), 0); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertSlice("middle", createTestPlane(t, pixel.UInt8, 4, 3, 60), 3); err != nil {
		t.Fatal(err)
	}
	want := []string{"front", "slice-1", "middle", "slice-2", "slice-3"}
	if diff := cmp.Diff(want, s.Labels()); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
	if v := firstSample(t, s, 3); v != 60 {
		t.Errorf("Expected inserted plane at slice 3, got value %v", v)
	}
	if err := s.InsertSlice("bad", createTestPlane(t, pixel.UInt8, 4, 3, 1), 7); !errors.Is(err, ErrRange) {
		t.Errorf("Expected ErrRange, got %v", err)
	}
}

func TestCapacityDoubles(t *testing.T) {
	s := createTestStack(t, initialCapacity)
	if s.Capacity() != initialCapacity {
		t.Fatalf("Expected capacity %d, got %d", initialCapacity, s.Capacity())
	}
	s.AddSlice("one more", createTestPlane(t, pixel.UInt8, 4, 3, 1))
	if s.Capacity() != 2*initialCapacity {
		t.Errorf("Expected capacity %d, got %d", 2*initialCapacity, s.Capacity())
	}
	s.DeleteSlice(1)
	if s.Capacity() != 2*initialCapacity {
		t.Errorf("Delete shrank capacity to %d", s.Capacity())
	}
	s.Trim()
	if s.Capacity() != s.Size() {
		t.Errorf("Expected trimmed capacity %d, got %d", s.Size(), s.Capacity())
	}
}

func TestDeleteSliceShiftsDown(t *testing.T) {
	s := createTestStack(t, 4)
	if err := s.DeleteSlice(2); err != nil {
		t.Fatalf("DeleteSlice failed: %v", err)
	}
	if s.Size() != 3 {
		t.Fatalf("Expected 3 slices, got %d", s.Size())
	}
	label, _ := s.Label(2)
	if label != "slice-3" {
		t.Errorf("Expected label slice-3, got %q", label)
	}
	for n, want := range map[int]float64{1: 1, 2: 3, 3: 4} {
		if v := firstSample(t, s, n); v != want {
			t.Errorf("Slice %d holds %v, expected %v", n, v, want)
		}
	}
	for _, n := range []int{0, 4} {
		if err := s.DeleteSlice(n); !errors.Is(err, ErrRange) {
			t.Errorf("DeleteSlice(%d): expected ErrRange, got %v", n, err)
		}
	}
}

func TestPlaneRange(t *testing.T) {
	s := createTestStack(t, 2)
	for _, n := range []int{0, 3} {
		if _, err := s.Plane(n); !errors.Is(err, ErrRange) {
			t.Errorf("Plane(%d): expected ErrRange, got %v", n, err)
		}
		if err := s.SetPlane(n, createTestPlane(t, pixel.UInt8, 4, 3, 0)); !errors.Is(err, ErrRange) {
			t.Errorf("SetPlane(%d): expected ErrRange, got %v", n, err)
		}
		if _, err := s.Label(n); !errors.Is(err, ErrRange) {
			t.Errorf("Label(%d): expected ErrRange, got %v", n, err)
		}
	}
}

func TestSetPixelsValidatesFirst(t *testing.T) {
	s := createTestStack(t, 2)
	before, _ := s.Plane(1)

	for name, pixels := range map[string]any{
		"nil":        nil,
		"empty":      []uint8{},
		"short":      make([]uint8, 5),
		"wrong kind": make([]uint16, 12),
		"bad type":   make([]string, 12),
	} {
		if err := s.SetPixels(1, pixels); err == nil {
			t.Errorf("%s: expected an error", name)
		}
		if after, _ := s.Plane(1); after != before {
			t.Errorf("%s: plane changed after a failed SetPixels", name)
		}
	}

	if err := s.SetPixels(1, make([]string, 12)); !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("Expected ErrUnsupportedKind, got %v", err)
	}
	if err := s.SetPixels(1, nil); !errors.Is(err, ErrArgument) {
		t.Errorf("Expected ErrArgument, got %v", err)
	}

	pixels := make([]uint8, 12)
	pixels[0] = 200
	if err := s.SetPixels(1, pixels); err != nil {
		t.Fatalf("SetPixels failed: %v", err)
	}
	if v := firstSample(t, s, 1); v != 200 {
		t.Errorf("Expected 200, got %v", v)
	}
}

func TestVoxelAccess(t *testing.T) {
	s := NewImageStack(3, 2)
	s.AddSlice("a", createTestPlane(t, pixel.UInt16, 3, 2, 0))
	s.AddSlice("b", createTestPlane(t, pixel.UInt16, 3, 2, 0))

	if err := s.SetVoxel(2, 1, 1, 70000); err != nil {
		t.Fatalf("SetVoxel failed: %v", err)
	}
	v, err := s.Voxel(2, 1, 1)
	if err != nil {
		t.Fatalf("Voxel failed: %v", err)
	}
	if v != 65535 {
		t.Errorf("Expected clamped 65535, got %v", v)
	}

	for _, c := range [][3]int{{3, 0, 0}, {0, 2, 0}, {0, 0, 2}, {-1, 0, 0}} {
		if _, err := s.Voxel(c[0], c[1], c[2]); !errors.Is(err, ErrIndex) {
			t.Errorf("Voxel%v: expected ErrIndex, got %v", c, err)
		}
		if err := s.SetVoxel(c[0], c[1], c[2], 1); !errors.Is(err, ErrIndex) {
			t.Errorf("SetVoxel%v: expected ErrIndex, got %v", c, err)
		}
	}
}

func TestSparseStack(t *testing.T) {
	s := NewSparseImageStack(2, 2, 3)
	if s.Size() != 3 {
		t.Fatalf("Expected 3 slots, got %d", s.Size())
	}
	p, err := s.Plane(2)
	if err != nil {
		t.Fatalf("Plane on empty slot failed: %v", err)
	}
	if p.Kind() != pixel.UInt8 || p.Len() != 4 {
		t.Errorf("Expected a blank 2x2 8-bit plane, got %v with %d samples", p.Kind(), p.Len())
	}
	if err := s.SetPlane(1, createTestPlane(t, pixel.UInt16, 2, 2, 5)); err != nil {
		t.Fatal(err)
	}
	if s.Kind() != pixel.UInt16 {
		t.Errorf("Expected the first plane set to fix the kind, got %v", s.Kind())
	}
}

func TestSparseReadsLeaveSlotEmpty(t *testing.T) {
	s := NewSparseImageStack(4, 4, 2)

	var wg sync.WaitGroup
	planes := make([]*pixel.Plane, 8)
	for i := range planes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.Plane(1)
			if err != nil {
				t.Errorf("Plane on empty slot failed: %v", err)
				return
			}
			planes[i] = p
		}(i)
	}
	wg.Wait()

	for i, p := range planes {
		if p == nil || p.Len() != 16 {
			t.Fatalf("Reader %d got no blank plane", i)
		}
	}
	if planes[0] == planes[1] {
		t.Error("Expected each read of an empty slot to return its own plane")
	}
	if v, err := s.Voxel(1, 1, 0); err != nil || v != 0 {
		t.Errorf("Expected empty voxel 0, got %v (%v)", v, err)
	}

	// Writes fill the slot and later reads share it.
	if err := s.SetVoxel(1, 1, 0, 9); err != nil {
		t.Fatal(err)
	}
	first, _ := s.Plane(1)
	second, _ := s.Plane(1)
	if first != second {
		t.Error("Expected a written slot to be shared")
	}
	if v, _ := s.Voxel(1, 1, 0); v != 9 {
		t.Errorf("Expected 9, got %v", v)
	}
	if p, _ := s.Plane(2); p.ValueAt(5) != 0 {
		t.Error("Expected the untouched slot to stay blank")
	}
}

func TestDecomposedColorStacks(t *testing.T) {
	build := func(kind pixel.Kind, labels ...string) *ImageStack {
		s := NewImageStack(2, 2)
		for _, l := range labels {
			s.AddSlice(l, createTestPlane(t, kind, 2, 2, 0))
		}
		return s
	}

	if !build(pixel.UInt8, "Red", "Green", "Blue").IsRGB() {
		t.Error("Expected an RGB stack")
	}
	if build(pixel.UInt16, "Red", "Green", "Blue").IsRGB() {
		t.Error("A 16-bit stack is not an RGB decomposition")
	}
	if !build(pixel.UInt8, "Hue", "Saturation", "Brightness").IsHSB() {
		t.Error("Expected an HSB stack")
	}
	if !build(pixel.Float32, "L*", "a*", "b*").IsLab() {
		t.Error("Expected a Lab stack")
	}
	if build(pixel.UInt8, "Red", "Green").IsRGB() {
		t.Error("Two slices are not an RGB decomposition")
	}
}

func TestResetDisplayRange(t *testing.T) {
	s := NewImageStack(2, 1)
	a, _ := pixel.FromPixels(2, 1, []uint16{100, 200})
	b, _ := pixel.FromPixels(2, 1, []uint16{50, 150})
	s.AddSlice("a", a)
	s.AddSlice("b", b)
	s.ResetDisplayRange()
	if min, max := s.DisplayRange(); min != 50 || max != 200 {
		t.Errorf("Expected 50-200, got %v-%v", min, max)
	}
}

func TestInfoAndCalibration(t *testing.T) {
	s := createTestStack(t, 2)
	table := make([]float64, 256)
	for i := range table {
		table[i] = float64(i) * 0.5
	}
	s.SetCalibration(&Calibration{Table: table, Unit: "mg"})

	info := s.Info()
	if info.Planes != 2 || info.Width != 4 || info.Height != 3 {
		t.Errorf("Unexpected info %+v", info)
	}
	if info.SliceInfo[1].Label != "slice-2" || info.SliceInfo[1].BitDepth != 8 {
		t.Errorf("Unexpected slice info %+v", info.SliceInfo[1])
	}
	if info.Calibration == nil || info.Calibration.Max != 127.5 || info.Calibration.Unit != "mg" {
		t.Errorf("Unexpected calibration %+v", info.Calibration)
	}
}

func TestViewerReleasesPlanes(t *testing.T) {
	s := createTestStack(t, 3)
	s.AddViewer()
	s.AddViewer()
	if n := s.RemoveViewer(); n != 1 {
		t.Fatalf("Expected 1 viewer, got %d", n)
	}
	if s.Size() != 3 {
		t.Fatalf("Planes released while still viewed")
	}
	if n := s.RemoveViewer(); n != 0 {
		t.Fatalf("Expected 0 viewers, got %d", n)
	}
	if s.Size() != 0 {
		t.Errorf("Expected planes to be released, %d remain", s.Size())
	}
}

func TestShortLabel(t *testing.T) {
	long := ""
	for i := 0; i < 70; i++ {
		long += "x"
	}
	tests := map[string]string{
		"image.tif":             "image",
		"image.tif\nmore info":  "image",
		"\nstarts with newline": "",
		"frame.001":             "frame.001",
		"no extension":          "no extension",
		long:                    long[:60],
	}
	for in, want := range tests {
		if got := ShortLabel(in); got != want {
			t.Errorf("ShortLabel(%q) = %q, expected %q", in, got, want)
		}
	}
}
