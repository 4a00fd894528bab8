package models

// SliceInfo describes one plane of a stack for persistence
type SliceInfo struct {
	// Index is the 1-based position of this slice in the stack
	Index int `yaml:"index"`

	// Label is the slice label, empty when none was set
	Label string `yaml:"label,omitempty"`

	// BitDepth is the sample kind of the plane: 8, 16, 32 or 24 (RGB)
	BitDepth int `yaml:"bitDepth"`

	// Filename is the file the plane was written to or read from
	Filename string `yaml:"filename,omitempty"`
}

// Calibration is the calibrated value range of a stack
type Calibration struct {
	// Min and Max are the calibrated values of the display range ends
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`

	// Unit names the calibrated value unit
	Unit string `yaml:"unit,omitempty"`

	// Table maps raw sample values to calibrated values, when present
	Table []float64 `yaml:"table,omitempty,flow"`
}

// StackInfo is everything a persistence collaborator needs to write a stack
// and read it back
type StackInfo struct {
	// Width and Height are the plane dimensions in pixels
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Planes is the number of slices
	Planes int `yaml:"planes"`

	// Channels, Slices and Frames are the hyperstack dimensions, zero when unknown
	Channels int `yaml:"channels,omitempty"`
	Slices   int `yaml:"slices,omitempty"`
	Frames   int `yaml:"frames,omitempty"`

	// DisplayMin and DisplayMax are the raw display range
	DisplayMin float64 `yaml:"displayMin"`
	DisplayMax float64 `yaml:"displayMax"`

	// Calibration is the optional calibrated range
	Calibration *Calibration `yaml:"calibration,omitempty"`

	// SliceInfo holds one entry per plane in order
	SliceInfo []SliceInfo `yaml:"sliceInfo"`
}
