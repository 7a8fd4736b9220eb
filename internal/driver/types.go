package driver

// Identity describes one camera's fixed capabilities. Produced by
// Enumerate and Describe; immutable once returned.
type Identity struct {
	// ID is the backend-assigned camera identifier (0, 1, ...).
	ID int

	// Name is the display name, typically the sensor model.
	Name string

	// MaxWidth and MaxHeight are the full sensor resolution in pixels.
	MaxWidth  int
	MaxHeight int

	// IsColor is true for Bayer colour sensors.
	IsColor bool

	// BayerPattern is the colour filter layout ("RGGB", ...), empty for mono.
	BayerPattern string

	// SupportedBins lists the binning modes the sensor accepts (1 = none).
	SupportedBins []int

	// Controls maps control name to its descriptor.
	Controls map[string]ControlDescriptor
}

// HasControl reports whether the identity carries a descriptor for name.
func (id Identity) HasControl(name string) bool {
	_, ok := id.Controls[name]
	return ok
}

// ControlDescriptor defines the valid range and capabilities of one
// named camera control.
type ControlDescriptor struct {
	Name          string
	Min           int
	Max           int
	Default       int
	AutoSupported bool
	Writable      bool
	Description   string
}

// InRange reports whether value is within the descriptor's bounds.
func (d ControlDescriptor) InRange(value int) bool {
	return value >= d.Min && value <= d.Max
}

// ControlValue is the current state of one control.
type ControlValue struct {
	Value int
	Auto  bool
}
