package stack

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pixelstack/pkg/pixel"
)

func writeEmptyFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}
}

func TestListImagesOrdersNumerically(t *testing.T) {
	dir := t.TempDir()
	writeEmptyFiles(t, dir, "slice10.png", "slice2.PNG", "slice1.png", ".hidden.png", "notes.txt")
	os.Mkdir(filepath.Join(dir, "sub.png"), 0755)

	names, err := ListImages(dir, []string{".png"})
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	want := []string{"slice1.png", "slice2.PNG", "slice10.png"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestListImagesEmpty(t *testing.T) {
	dir := t.TempDir()
	writeEmptyFiles(t, dir, "notes.txt")
	if _, err := ListImages(dir, []string{".png"}); !errors.Is(err, ErrNoImages) {
		t.Errorf("Expected ErrNoImages, got %v", err)
	}
	if _, err := ListImages(filepath.Join(dir, "absent"), []string{".png"}); err == nil {
		t.Error("Expected an error for a missing directory")
	}
}

func TestOpenResident(t *testing.T) {
	dir := t.TempDir()
	writeEmptyFiles(t, dir, "a1.png", "a2.png")
	opener := newFakeOpener(t, "a1.png", "a2.png")
	opener.infos["a2.png"] = "second.tif"

	s, err := Open(dir, opener, Options{Extensions: []string{".png"}})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.IsVirtual() {
		t.Fatal("Expected a resident stack")
	}
	if s.Size() != 2 || s.Width() != 4 || s.Height() != 3 {
		t.Errorf("Unexpected stack %dx%dx%d", s.Width(), s.Height(), s.Size())
	}
	for n, want := range map[int]string{1: "a1.png", 2: "second"} {
		if l, _ := s.Label(n); l != want {
			t.Errorf("Label(%d) = %q, expected %q", n, l, want)
		}
	}
}

func TestOpenResidentFailure(t *testing.T) {
	dir := t.TempDir()
	writeEmptyFiles(t, dir, "a1.png", "a2.png")
	opener := newFakeOpener(t, "a1.png")

	_, err := Open(dir, opener, Options{Extensions: []string{".png"}})
	var failure *IOFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected an IOFailure, got %v", err)
	}
	if failure.Path != filepath.Join(dir, "a2.png") {
		t.Errorf("Unexpected failure path %s", failure.Path)
	}
}

func TestOpenVirtual(t *testing.T) {
	dir := t.TempDir()
	writeEmptyFiles(t, dir, "a1.png", "a2.png", "a3.png")
	opener := newFakeOpener(t, "a1.png", "a2.png", "a3.png")

	s, err := Open(dir, opener, Options{Virtual: true, Extensions: []string{".png"}})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	vs, ok := s.(*VirtualStack)
	if !ok {
		t.Fatalf("Expected a *VirtualStack, got %T", s)
	}
	if vs.Size() != 3 || vs.Kind() != pixel.UInt8 || vs.Directory() != dir {
		t.Errorf("Unexpected virtual stack: size %d kind %v dir %s", vs.Size(), vs.Kind(), vs.Directory())
	}
	if opener.calls != 1 {
		t.Errorf("Expected only the first file to be read, got %d loads", opener.calls)
	}
}

func TestOpenerNilResult(t *testing.T) {
	o := OpenerFunc(func(path, name string) (*Loaded, error) { return nil, nil })
	_, err := open(o, "dir", "x.png")
	var failure *IOFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected an IOFailure, got %v", err)
	}
}
