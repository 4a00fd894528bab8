package hyperstack

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIndexToPositionChannelFastest(t *testing.T) {
	d := Dimensions{Channels: 2, Slices: 3, Frames: 4}
	tests := []struct {
		n    int
		want Position
	}{
		{1, Position{1, 1, 1}},
		{2, Position{2, 1, 1}},
		{3, Position{1, 2, 1}},
		{6, Position{2, 3, 1}},
		{7, Position{1, 1, 2}},
		{24, Position{2, 3, 4}},
	}
	for _, tt := range tests {
		got, err := d.IndexToPosition(tt.n)
		if err != nil {
			t.Fatalf("IndexToPosition(%d) failed: %v", tt.n, err)
		}
		if got != tt.want {
			t.Errorf("IndexToPosition(%d) = %v, expected %v", tt.n, got, tt.want)
		}
	}
}

func TestIndexToPositionRange(t *testing.T) {
	d := Dimensions{Channels: 2, Slices: 3, Frames: 4}
	for _, n := range []int{0, -1, 25} {
		if _, err := d.IndexToPosition(n); !errors.Is(err, ErrRange) {
			t.Errorf("IndexToPosition(%d): expected ErrRange, got %v", n, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, d := range []Dimensions{
		{1, 1, 1}, {3, 1, 1}, {1, 7, 1}, {1, 1, 5}, {2, 3, 4}, {4, 5, 3},
	} {
		for n := 1; n <= d.Size(); n++ {
			p, err := d.IndexToPosition(n)
			if err != nil {
				t.Fatalf("%v: IndexToPosition(%d) failed: %v", d, n, err)
			}
			if got := d.PositionToIndex(p.Channel, p.Slice, p.Frame); got != n {
				t.Errorf("%v: round trip of %d gave %d", d, n, got)
			}
		}
	}
}

func TestPositionToIndexClamps(t *testing.T) {
	d := Dimensions{Channels: 2, Slices: 3, Frames: 4}
	if got := d.PositionToIndex(0, 0, 0); got != 1 {
		t.Errorf("Expected 1, got %d", got)
	}
	if got := d.PositionToIndex(9, 9, 9); got != 24 {
		t.Errorf("Expected 24, got %d", got)
	}
	if got := d.PositionToIndex(2, -3, 2); got != 8 {
		t.Errorf("Expected 8, got %d", got)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name     string
		in       Dimensions
		physical int
		want     Dimensions
		changed  bool
	}{
		{"consistent", Dimensions{2, 3, 4}, 24, Dimensions{2, 3, 4}, false},
		{"mismatch collapses", Dimensions{2, 3, 4}, 12, Dimensions{1, 12, 1}, true},
		{"stray channels", Dimensions{2, 1, 1}, 12, Dimensions{12, 1, 1}, true},
		// The stray axis is reinterpreted before a mismatch collapses.
		{"stray channels before collapse", Dimensions{2, 1, 1}, 6, Dimensions{6, 1, 1}, true},
		{"stray frames", Dimensions{1, 1, 3}, 7, Dimensions{1, 1, 7}, true},
		{"two stray axes collapse", Dimensions{2, 1, 2}, 12, Dimensions{1, 12, 1}, true},
		{"flat grows", Dimensions{1, 5, 1}, 6, Dimensions{1, 6, 1}, true},
		{"zero axis", Dimensions{0, 4, 1}, 4, Dimensions{1, 4, 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := tt.in.Verify(tt.physical)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Verify mismatch (-want +got):\n%s", diff)
			}
			if changed != tt.changed {
				t.Errorf("Expected changed=%v, got %v", tt.changed, changed)
			}

			again, changed := got.Verify(tt.physical)
			if changed || again != got {
				t.Errorf("Verify is not idempotent: %v then %v", got, again)
			}
		})
	}
}

func TestOrderTable(t *testing.T) {
	d := Dimensions{Channels: 2, Slices: 3, Frames: 1}

	native, err := OrderTable(CZT, d)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5, 6}, native); diff != "" {
		t.Errorf("CZT table mismatch (-want +got):\n%s", diff)
	}

	// ZCT stores all slices of channel 1, then all of channel 2.
	zct, err := OrderTable(ZCT, d)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 4, 2, 5, 3, 6}, zct); diff != "" {
		t.Errorf("ZCT table mismatch (-want +got):\n%s", diff)
	}

	if _, err := OrderTable("QQQ", d); err == nil {
		t.Error("Expected an error for an unknown order")
	}
}

func TestParseOrder(t *testing.T) {
	for in, want := range map[string]Order{"xyczt": CZT, "ztc": ZTC, " TZC ": TZC, "": CZT} {
		got, err := ParseOrder(in)
		if err != nil || got != want {
			t.Errorf("ParseOrder(%q) = %q, %v; expected %q", in, got, err, want)
		}
	}
}
