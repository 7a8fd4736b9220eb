package camera

import (
	"time"

	"github.com/argusobs/telescope-core/internal/driver"
)

// State is the camera lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateCapturing
	StateStreaming
	StateRecovering
)

// String returns the lowercase state name used in logs and events.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateCapturing:
		return "capturing"
	case StateStreaming:
		return "streaming"
	case StateRecovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// Config holds per-camera construction settings.
type Config struct {
	// ID is the physical camera identifier used with the driver.
	ID int

	// Name is a friendly name for logs and events. Defaults to the
	// driver-reported identity name on connect.
	Name string

	// DefaultGain is applied on connect. Defaults to 50.
	DefaultGain int

	// DefaultExposureUs is applied on connect. Defaults to 100_000.
	DefaultExposureUs int64
}

// withDefaults fills zero-valued settings.
func (c Config) withDefaults() Config {
	if c.DefaultGain == 0 {
		c.DefaultGain = 50
	}
	if c.DefaultExposureUs == 0 {
		c.DefaultExposureUs = 100_000
	}
	return c
}

// FormatJPEG is the only encoding the in-repo backend produces. The
// encoded payload is opaque to this layer either way.
const FormatJPEG = "jpeg"

// CaptureOptions selects per-capture overrides. Zero ExposureUs and nil
// Gain fall back to the camera's current settings.
type CaptureOptions struct {
	// ExposureUs overrides the exposure time in microseconds. 0 means
	// the camera's current exposure setting.
	ExposureUs int64

	// Gain overrides the gain. nil means the current gain setting.
	Gain *int

	// ApplyOverlay burns the configured overlay into the frame. Ignored
	// when no overlay is configured or the renderer is the null renderer.
	ApplyOverlay bool

	// Format names the requested output encoding. Defaults to FormatJPEG.
	Format string
}

// CaptureResult is one captured frame. Owned exclusively by the caller
// once returned; immutable after construction.
type CaptureResult struct {
	Data           []byte
	Timestamp      time.Time
	ExposureUs     int64
	Gain           int
	Width          int
	Height         int
	Format         string
	OverlayApplied bool
	Metadata       map[string]string
}

// StreamFrame is a CaptureResult plus its position in the stream.
type StreamFrame struct {
	CaptureResult

	// Sequence increases monotonically per stream, starting at 0.
	Sequence uint64
}

// Identity re-exports the driver identity type for callers that only
// import this package.
type Identity = driver.Identity
