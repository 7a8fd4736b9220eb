package driver

import "context"

// Exposure sanity bounds in microseconds. One microsecond to one hour;
// anything outside is a request error, not a hardware limit.
const (
	MinExposureUs int64 = 1
	MaxExposureUs int64 = 3_600_000_000
)

// ValidExposure reports whether exposureUs is within the sanity bounds.
func ValidExposure(exposureUs int64) bool {
	return exposureUs >= MinExposureUs && exposureUs <= MaxExposureUs
}

// Driver is the discovery and connection contract a camera backend
// implements. Implementations must be safe for concurrent use; the
// registry calls Enumerate from recovery paths while sessions are live.
type Driver interface {
	// Enumerate returns the cameras currently reachable, keyed by camera ID.
	// An empty map is a valid result (no cameras attached).
	Enumerate() (map[int]Identity, error)

	// Open claims exclusive access to one camera and returns a live session.
	// Returns ErrUnknownDevice if the ID is not reachable.
	Open(id int) (Session, error)
}

// Session is one opened camera. A session supports at most one exposure in
// flight; callers serialise capture operations. Close releases the device
// and is safe to call more than once.
type Session interface {
	// Describe returns the camera's identity and capabilities.
	Describe() (Identity, error)

	// ListControls returns the control descriptor map for this camera.
	ListControls() (map[string]ControlDescriptor, error)

	// SetControl writes a named control and returns the value actually
	// applied (hardware may clamp or engage auto mode).
	SetControl(name string, value int) (ControlValue, error)

	// GetControl reads the current value of a named control.
	GetControl(name string) (ControlValue, error)

	// Expose performs a timed exposure and returns the encoded frame.
	// Blocks for the duration of the exposure; ctx cancellation aborts it.
	Expose(ctx context.Context, exposureUs int64) ([]byte, error)

	// AbortExposure stops an in-flight exposure. Best effort; no-op when
	// nothing is exposing.
	AbortExposure() error

	// Close releases the device. Idempotent.
	Close() error
}
