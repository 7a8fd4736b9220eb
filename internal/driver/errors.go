package driver

import "errors"

// Domain errors for camera backends.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownDevice is returned when a camera ID is not present on the bus
	// or in the backend's configuration.
	ErrUnknownDevice = errors.New("driver: unknown device")

	// ErrUnknownControl is returned when a control name is not in the
	// session's descriptor map.
	ErrUnknownControl = errors.New("driver: unknown control")

	// ErrControlOutOfRange is returned when a control write is outside the
	// descriptor's min/max bounds. The control's stored value is unchanged.
	ErrControlOutOfRange = errors.New("driver: control value out of range")

	// ErrControlReadOnly is returned when writing a control whose descriptor
	// is not writable (e.g. sensor temperature).
	ErrControlReadOnly = errors.New("driver: control is read-only")

	// ErrExposureOutOfRange is returned when an exposure request is outside
	// the sanity bounds [MinExposureUs, MaxExposureUs].
	ErrExposureOutOfRange = errors.New("driver: exposure out of range")

	// ErrDeviceGone is returned when the underlying device has vanished
	// mid-operation (USB bump, cable pull). This is the only error class
	// that makes the camera layer attempt recovery.
	ErrDeviceGone = errors.New("driver: device gone")

	// ErrEncodeFailed is returned when a captured frame cannot be encoded.
	ErrEncodeFailed = errors.New("driver: image encode failed")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("driver: session closed")
)
