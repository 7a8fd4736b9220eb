package twin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/argusobs/telescope-core/internal/driver"
)

// Source selects where simulated exposures get their pixels from.
type Source string

const (
	SourceSynthetic Source = "synthetic"
	SourceFile      Source = "file"
	SourceDirectory Source = "directory"
)

// Clock abstracts time for exposure simulation. Satisfied by the camera
// package's clock implementations.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration)
}

// systemClock is the default real-time clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Logger is the optional logging interface used by the twin.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config controls twin behaviour.
type Config struct {
	// Source selects the image source. Defaults to SourceSynthetic.
	Source Source

	// Path is the image file (SourceFile) or directory (SourceDirectory).
	Path string

	// NoCycle stops a directory source at its last frame instead of
	// looping back to the first. Directories loop by default.
	NoCycle bool

	// Watch enables an fsnotify watcher on the directory so frames added
	// or removed after open join or leave the cycle.
	Watch bool

	// SimulateExposure makes Expose block for the requested duration via
	// the injected clock. Off by default so the test suite runs at full
	// speed; turn on when exercising timing behaviour end to end.
	SimulateExposure bool

	// Clock is used for exposure simulation. Defaults to the system clock.
	Clock Clock

	// Cameras overrides the simulated camera set. Defaults to
	// DefaultCameras().
	Cameras map[int]CameraSpec

	// Logger receives twin diagnostics. Defaults to a no-op logger.
	Logger Logger
}

// Twin is a driver.Driver backed by simulation.
type Twin struct {
	cfg     Config
	cameras map[int]CameraSpec
	clock   Clock
	logger  Logger
}

// Compile-time contract check.
var _ driver.Driver = (*Twin)(nil)

// New creates a twin backend. Zero-value Config simulates the default
// two-camera bench with synthetic patterns.
func New(cfg Config) *Twin {
	if cfg.Source == "" {
		cfg.Source = SourceSynthetic
	}
	cameras := cfg.Cameras
	if cameras == nil {
		cameras = DefaultCameras()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	t := &Twin{
		cfg:     cfg,
		cameras: cameras,
		clock:   clock,
		logger:  logger,
	}
	t.logger.Info("digital twin driver initialised",
		"source", string(cfg.Source),
		"cameras", len(cameras),
	)
	return t
}

// NewFileBacked creates a twin whose cameras replay a single image file.
func NewFileBacked(path string) *Twin {
	return New(Config{Source: SourceFile, Path: path})
}

// NewDirectoryBacked creates a twin whose cameras cycle through the
// images of a directory in sorted order.
func NewDirectoryBacked(dir string) *Twin {
	return New(Config{Source: SourceDirectory, Path: dir})
}

// Enumerate returns the configured simulated cameras.
func (t *Twin) Enumerate() (map[int]driver.Identity, error) {
	out := make(map[int]driver.Identity, len(t.cameras))
	for id, spec := range t.cameras {
		out[id] = identityFor(id, spec)
	}
	t.logger.Debug("enumerated simulated cameras", "count", len(out))
	return out, nil
}

// Open creates a session on one simulated camera.
func (t *Twin) Open(id int) (driver.Session, error) {
	spec, ok := t.cameras[id]
	if !ok {
		return nil, fmt.Errorf("%w: camera %d", driver.ErrUnknownDevice, id)
	}

	s := &session{
		twin:     t,
		id:       id,
		identity: identityFor(id, spec),
		controls: make(map[string]driver.ControlValue),
	}
	for name, desc := range s.identity.Controls {
		s.controls[name] = driver.ControlValue{Value: desc.Default}
	}

	src, err := newImageSource(t.cfg, spec, t.logger)
	if err != nil {
		// Source trouble degrades to synthetic rather than failing open;
		// the original twin behaves the same way.
		t.logger.Warn("image source unavailable, using synthetic", "camera_id", id, "error", err)
		src = newSyntheticSource(spec)
	}
	s.source = src

	t.logger.Info("opened simulated camera", "camera_id", id, "name", spec.Name)
	return s, nil
}

// session is one opened simulated camera.
type session struct {
	twin     *Twin
	id       int
	identity driver.Identity
	source   imageSource

	mu       sync.Mutex
	controls map[string]driver.ControlValue
	closed   bool
	aborted  bool
}

var _ driver.Session = (*session)(nil)

func (s *session) Describe() (driver.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return driver.Identity{}, driver.ErrSessionClosed
	}
	return s.identity, nil
}

func (s *session) ListControls() (map[string]driver.ControlDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, driver.ErrSessionClosed
	}
	out := make(map[string]driver.ControlDescriptor, len(s.identity.Controls))
	for name, desc := range s.identity.Controls {
		out[name] = desc
	}
	return out, nil
}

func (s *session) SetControl(name string, value int) (driver.ControlValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return driver.ControlValue{}, driver.ErrSessionClosed
	}
	desc, ok := s.identity.Controls[name]
	if !ok {
		return driver.ControlValue{}, fmt.Errorf("%w: %q", driver.ErrUnknownControl, name)
	}
	if !desc.Writable {
		return driver.ControlValue{}, fmt.Errorf("%w: %q", driver.ErrControlReadOnly, name)
	}
	if !desc.InRange(value) {
		return driver.ControlValue{}, fmt.Errorf("%w: %s=%d (valid %d..%d)",
			driver.ErrControlOutOfRange, name, value, desc.Min, desc.Max)
	}
	cv := driver.ControlValue{Value: value}
	s.controls[name] = cv
	return cv, nil
}

func (s *session) GetControl(name string) (driver.ControlValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return driver.ControlValue{}, driver.ErrSessionClosed
	}
	cv, ok := s.controls[name]
	if !ok {
		return driver.ControlValue{}, fmt.Errorf("%w: %q", driver.ErrUnknownControl, name)
	}
	return cv, nil
}

// Expose produces one encoded frame from the configured image source.
// With SimulateExposure on it blocks for the exposure duration first.
func (s *session) Expose(ctx context.Context, exposureUs int64) ([]byte, error) {
	if !driver.ValidExposure(exposureUs) {
		return nil, fmt.Errorf("%w: %d us (valid %d..%d)",
			driver.ErrExposureOutOfRange, exposureUs, driver.MinExposureUs, driver.MaxExposureUs)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, driver.ErrSessionClosed
	}
	s.aborted = false
	gain := s.controls["Gain"].Value
	s.mu.Unlock()

	if s.twin.cfg.SimulateExposure {
		s.twin.clock.Sleep(ctx, time.Duration(exposureUs)*time.Microsecond)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.mu.Lock()
		aborted := s.aborted
		s.mu.Unlock()
		if aborted {
			return nil, fmt.Errorf("%w: exposure aborted", driver.ErrDeviceGone)
		}
	}

	start := s.twin.clock.Now()
	data, err := s.source.capture(captureParams{exposureUs: exposureUs, gain: gain})
	if err != nil {
		return nil, err
	}

	s.twin.logger.Debug("simulated capture complete",
		"camera_id", s.id,
		"exposure_us", exposureUs,
		"bytes", len(data),
		"elapsed_ms", s.twin.clock.Now().Sub(start).Milliseconds(),
	)
	return data, nil
}

func (s *session) AbortExposure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return driver.ErrSessionClosed
	}
	s.aborted = true
	return nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.source.close()
	s.twin.logger.Debug("closed simulated camera", "camera_id", s.id)
	return nil
}
