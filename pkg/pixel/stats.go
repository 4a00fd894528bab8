package pixel

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistics summarizes the samples of a plane. RGB planes are measured on
// their luminance.
type Statistics struct {
	Min, Max     float64
	Mean, StdDev float64
	Count        int
}

// Statistics computes min, max, mean and standard deviation over every
// finite sample.
func (p *Plane) Statistics() Statistics {
	values := make([]float64, 0, p.Len())
	for i := 0; i < p.Len(); i++ {
		var v float64
		if p.kind == PackedRGB32 {
			v = float64(luminance(p.rgb[i]))
		} else {
			v = p.ValueAt(i)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return Statistics{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return Statistics{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
		Count:  len(values),
	}
}
