package twin

import "github.com/argusobs/telescope-core/internal/driver"

// CameraSpec defines one simulated camera body.
type CameraSpec struct {
	Name          string
	MaxWidth      int
	MaxHeight     int
	IsColor       bool
	BayerPattern  string
	SupportedBins []int
}

// DefaultCameras returns the stock two-camera bench: a wide-field finder
// and a main imaging camera, matching the sensors the controller's
// dual-exposure alignment was designed around.
func DefaultCameras() map[int]CameraSpec {
	return map[int]CameraSpec{
		0: {
			Name:          "TC120MC (Finder - All-Sky)",
			MaxWidth:      1280,
			MaxHeight:     960,
			IsColor:       true,
			BayerPattern:  "RGGB",
			SupportedBins: []int{1, 2},
		},
		1: {
			Name:          "TC482MC (Main - Through Optics)",
			MaxWidth:      1920,
			MaxHeight:     1080,
			IsColor:       true,
			BayerPattern:  "RGGB",
			SupportedBins: []int{1, 2, 4},
		},
	}
}

// defaultControls returns the control table for a simulated camera.
// Temperature is the one read-only control; auto mode follows writability.
func defaultControls() map[string]driver.ControlDescriptor {
	desc := func(name string, max, def int, writable bool, description string) driver.ControlDescriptor {
		return driver.ControlDescriptor{
			Name:          name,
			Min:           0,
			Max:           max,
			Default:       def,
			AutoSupported: writable,
			Writable:      writable,
			Description:   description,
		}
	}

	return map[string]driver.ControlDescriptor{
		"Gain":          desc("Gain", 600, 50, true, "Sensor analogue gain"),
		"Exposure":      desc("Exposure", 60_000_000, 100_000, true, "Exposure time in microseconds"),
		"WB_R":          desc("WB_R", 99, 52, true, "White balance, red channel"),
		"WB_B":          desc("WB_B", 99, 95, true, "White balance, blue channel"),
		"Gamma":         desc("Gamma", 100, 50, true, "Gamma correction"),
		"Brightness":    desc("Brightness", 100, 50, true, "Target brightness offset"),
		"Offset":        desc("Offset", 100, 0, true, "ADC offset"),
		"BandWidth":     desc("BandWidth", 100, 80, true, "USB bandwidth percentage"),
		"Flip":          desc("Flip", 3, 0, true, "Image flip mode"),
		"HighSpeedMode": desc("HighSpeedMode", 1, 0, true, "High speed readout"),
		"Temperature":   desc("Temperature", 1000, 250, false, "Sensor temperature in 0.1 degC"),
	}
}

// identityFor builds the driver identity for a camera spec.
func identityFor(id int, spec CameraSpec) driver.Identity {
	bins := spec.SupportedBins
	if len(bins) == 0 {
		bins = []int{1}
	}
	return driver.Identity{
		ID:            id,
		Name:          spec.Name,
		MaxWidth:      spec.MaxWidth,
		MaxHeight:     spec.MaxHeight,
		IsColor:       spec.IsColor,
		BayerPattern:  spec.BayerPattern,
		SupportedBins: append([]int(nil), bins...),
		Controls:      defaultControls(),
	}
}
