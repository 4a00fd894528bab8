package hyperstack

import (
	"fmt"
	"strings"
)

// Order names the axis sequence of planes as stored on disk, fastest axis
// first. CZT is the native order.
type Order string

const (
	CZT Order = "CZT"
	CTZ Order = "CTZ"
	ZCT Order = "ZCT"
	ZTC Order = "ZTC"
	TCZ Order = "TCZ"
	TZC Order = "TZC"
)

// ParseOrder accepts the order names case-insensitively, with or without a
// leading "xy".
func ParseOrder(s string) (Order, error) {
	o := Order(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "XY"))
	switch o {
	case CZT, CTZ, ZCT, ZTC, TCZ, TZC:
		return o, nil
	case "":
		return CZT, nil
	}
	return "", fmt.Errorf("unknown dimension order %q", s)
}

// OrderTable builds the index-translation table that maps a native CZT plane
// index n to the 1-based on-disk index table[n-1] for planes stored in order.
func OrderTable(order Order, d Dimensions) ([]int, error) {
	if _, err := ParseOrder(string(order)); err != nil {
		return nil, err
	}
	if order == "" {
		order = CZT
	}
	sizes := map[byte]int{'C': d.Channels, 'Z': d.Slices, 'T': d.Frames}
	strides := map[byte]int{}
	stride := 1
	for i := 0; i < len(order); i++ {
		axis := order[i]
		strides[axis] = stride
		stride *= sizes[axis]
	}

	table := make([]int, d.Size())
	for n := 1; n <= d.Size(); n++ {
		p, err := d.IndexToPosition(n)
		if err != nil {
			return nil, err
		}
		table[n-1] = (p.Channel-1)*strides['C'] + (p.Slice-1)*strides['Z'] + (p.Frame-1)*strides['T'] + 1
	}
	return table, nil
}
