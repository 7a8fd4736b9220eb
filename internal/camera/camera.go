package camera

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/argusobs/telescope-core/internal/driver"
)

// Camera wraps one driver session in a connection lifecycle with bounded
// recovery. All methods are safe for concurrent use, but captures are
// serialised: a second capture while one is in flight fails with ErrBusy
// rather than queueing.
type Camera struct {
	driver driver.Driver
	cfg    Config

	logger   Logger
	clock    Clock
	renderer Renderer
	recovery RecoveryStrategy
	hooks    Hooks

	mu         sync.Mutex
	state      State
	session    driver.Session
	identity   *driver.Identity
	overlay    *OverlayConfig
	gain       int
	exposureUs int64
	sessionTag string
	stream     *Stream

	stats *statsCollector
}

// New creates a camera bound to one driver device. The camera starts
// disconnected; nothing touches the driver until Connect.
func New(drv driver.Driver, cfg Config) *Camera {
	return &Camera{
		driver:   drv,
		cfg:      cfg.withDefaults(),
		logger:   noopLogger{},
		clock:    SystemClock{},
		renderer: NullRenderer{},
		recovery: NullRecoveryStrategy{},
		stats:    newStatsCollector(),
	}
}

// SetLogger installs a logger. Call before first use.
func (c *Camera) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetClock installs a clock. Call before first use.
func (c *Camera) SetClock(clock Clock) {
	if clock != nil {
		c.clock = clock
	}
}

// SetRenderer installs an overlay renderer. Call before first use.
func (c *Camera) SetRenderer(r Renderer) {
	if r != nil {
		c.renderer = r
	}
}

// SetRecovery installs a recovery strategy. Call before first use.
func (c *Camera) SetRecovery(r RecoveryStrategy) {
	if r != nil {
		c.recovery = r
	}
}

// SetHooks installs event callbacks. Call before first use. Callbacks
// must not call back into the camera.
func (c *Camera) SetHooks(h Hooks) {
	c.hooks = h
}

// SetDefaults overrides the gain and exposure applied on connect. Zero
// values keep the current defaults. Call before Connect.
func (c *Camera) SetDefaults(gain int, exposureUs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gain != 0 {
		c.cfg.DefaultGain = gain
	}
	if exposureUs != 0 {
		c.cfg.DefaultExposureUs = exposureUs
	}
}

// ID returns the driver device identifier this camera is bound to.
func (c *Camera) ID() int { return c.cfg.ID }

// Name returns the configured friendly name, falling back to the
// driver-reported name once connected.
func (c *Camera) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nameLocked()
}

func (c *Camera) nameLocked() string {
	if c.cfg.Name != "" {
		return c.cfg.Name
	}
	if c.identity != nil {
		return c.identity.Name
	}
	return "camera-" + strconv.Itoa(c.cfg.ID)
}

// SetSessionTag attributes subsequent events to a caller-defined
// session. An empty tag clears the attribution.
func (c *Camera) SetSessionTag(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionTag = tag
}

// SetOverlay configures the overlay burned into frames that ask for it.
// nil disables the overlay.
func (c *Camera) SetOverlay(cfg *OverlayConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg == nil {
		c.overlay = nil
		return
	}
	cp := *cfg
	c.overlay = &cp
}

// State returns the current lifecycle state.
func (c *Camera) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the camera holds a live session.
func (c *Camera) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// IsStreaming reports whether a stream is active.
func (c *Camera) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Identity returns the driver identity captured on connect. The second
// return is false while disconnected.
func (c *Camera) Identity() (driver.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return driver.Identity{}, false
	}
	return *c.identity, true
}

// Settings returns the current exposure and gain. These track the
// configured defaults, SetControl calls and per-capture overrides.
func (c *Camera) Settings() (exposureUs int64, gain int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exposureUs, c.gain
}

// Stats returns a snapshot of capture statistics. Counters survive
// disconnects and recoveries.
func (c *Camera) Stats() CaptureStats {
	return c.stats.snapshot()
}

func (c *Camera) eventInfoLocked() EventInfo {
	return EventInfo{
		CameraID:   c.cfg.ID,
		CameraName: c.nameLocked(),
		SessionTag: c.sessionTag,
		Timestamp:  c.clock.Now().UTC(),
	}
}

func (c *Camera) eventInfo() EventInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eventInfoLocked()
}

// Connect opens the driver session, reads the device identity and
// applies the configured default controls. Connecting a connected
// camera fails with ErrAlreadyConnected.
func (c *Camera) Connect() (driver.Identity, error) {
	c.mu.Lock()
	identity, err := c.connectLocked()
	var info EventInfo
	if err == nil {
		info = c.eventInfoLocked()
	}
	c.mu.Unlock()

	if err != nil {
		c.hooks.fireError(ErrorEvent{EventInfo: c.eventInfo(), Op: "connect", Err: err})
		return driver.Identity{}, err
	}
	c.logger.Info("camera connected",
		"camera_id", c.cfg.ID,
		"name", identity.Name,
		"resolution", fmt.Sprintf("%dx%d", identity.MaxWidth, identity.MaxHeight))
	c.hooks.fireConnect(ConnectEvent{EventInfo: info, Identity: identity})
	return identity, nil
}

// connectLocked opens and initialises the session. Caller holds mu.
func (c *Camera) connectLocked() (driver.Identity, error) {
	if c.session != nil {
		return driver.Identity{}, ErrAlreadyConnected
	}

	sess, err := c.driver.Open(c.cfg.ID)
	if err != nil {
		return driver.Identity{}, fmt.Errorf("opening camera %d: %w", c.cfg.ID, err)
	}

	identity, err := sess.Describe()
	if err != nil {
		sess.Close()
		return driver.Identity{}, fmt.Errorf("describing camera %d: %w", c.cfg.ID, err)
	}
	if identity.Controls == nil {
		controls, err := sess.ListControls()
		if err != nil {
			sess.Close()
			return driver.Identity{}, fmt.Errorf("listing controls for camera %d: %w", c.cfg.ID, err)
		}
		identity.Controls = controls
	}

	gain := c.cfg.DefaultGain
	exposure := c.cfg.DefaultExposureUs
	if identity.HasControl("Gain") {
		if _, err := sess.SetControl("Gain", gain); err != nil {
			sess.Close()
			return driver.Identity{}, fmt.Errorf("applying default gain on camera %d: %w", c.cfg.ID, err)
		}
	}
	if identity.HasControl("Exposure") {
		if _, err := sess.SetControl("Exposure", int(exposure)); err != nil {
			sess.Close()
			return driver.Identity{}, fmt.Errorf("applying default exposure on camera %d: %w", c.cfg.ID, err)
		}
	}

	c.session = sess
	c.identity = &identity
	c.gain = gain
	c.exposureUs = exposure
	c.state = StateConnected
	return identity, nil
}

// Disconnect releases the driver session. Disconnecting a disconnected
// camera is a no-op. An active stream is stopped first.
func (c *Camera) Disconnect() error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil
	}
	if c.stream != nil {
		c.stream.markStopped()
		c.stream = nil
	}
	sess := c.session
	c.session = nil
	c.identity = nil
	c.state = StateDisconnected
	info := c.eventInfoLocked()
	c.mu.Unlock()

	if err := sess.Close(); err != nil {
		c.logger.Warn("error closing camera session", "camera_id", c.cfg.ID, "error", err)
	}
	c.logger.Info("camera disconnected", "camera_id", c.cfg.ID)
	c.hooks.fireDisconnect(DisconnectEvent{EventInfo: info})
	return nil
}

// Capture takes one exposure and returns the encoded frame. Options
// override exposure and gain for this capture only when the values
// differ from the camera's current settings; the overrides become the
// new current settings. A disconnect-class driver failure triggers one
// recovery attempt and one retry before the call fails.
func (c *Camera) Capture(ctx context.Context, opts CaptureOptions) (*CaptureResult, error) {
	c.mu.Lock()
	switch {
	case c.session == nil:
		c.mu.Unlock()
		return nil, ErrNotConnected
	case c.state == StateStreaming:
		c.mu.Unlock()
		return nil, ErrStreamActive
	case c.state != StateConnected:
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.state = StateCapturing
	c.mu.Unlock()

	result, err := c.exposeWithRecovery(ctx, opts, StateCapturing)

	c.mu.Lock()
	if c.state == StateCapturing {
		c.state = StateConnected
	}
	c.mu.Unlock()
	return result, err
}

// CaptureRaw is Capture without overlay rendering, regardless of the
// camera's overlay configuration.
func (c *Camera) CaptureRaw(ctx context.Context, opts CaptureOptions) (*CaptureResult, error) {
	opts.ApplyOverlay = false
	return c.Capture(ctx, opts)
}

// exposeWithRecovery runs one capture, recovering once from a
// disconnect-class failure. resume is the state restored after a
// successful reconnect (capturing or streaming).
func (c *Camera) exposeWithRecovery(ctx context.Context, opts CaptureOptions, resume State) (*CaptureResult, error) {
	result, err := c.captureOnce(ctx, opts)
	if err == nil {
		return result, nil
	}
	if !isDeviceGone(err) {
		c.stats.recordFailure()
		c.hooks.fireError(ErrorEvent{EventInfo: c.eventInfo(), Op: "capture", Err: err})
		return nil, err
	}

	c.logger.Warn("camera vanished mid-capture, attempting recovery",
		"camera_id", c.cfg.ID, "error", err)
	if recoverErr := c.recoverSession(resume); recoverErr != nil {
		c.stats.recordFailure()
		failure := fmt.Errorf("%w: %w", ErrDisconnected, err)
		c.hooks.fireError(ErrorEvent{EventInfo: c.eventInfo(), Op: "capture", Err: failure})
		return nil, failure
	}

	result, retryErr := c.captureOnce(ctx, opts)
	if retryErr != nil {
		c.stats.recordFailure()
		if isDeviceGone(retryErr) {
			c.dropSession()
			retryErr = fmt.Errorf("%w: %w", ErrDisconnected, retryErr)
		}
		c.hooks.fireError(ErrorEvent{EventInfo: c.eventInfo(), Op: "capture", Err: retryErr})
		return nil, retryErr
	}
	return result, nil
}

// captureOnce applies pending control overrides, exposes, and builds
// the result. No recovery; errors come back verbatim for the caller to
// classify.
func (c *Camera) captureOnce(ctx context.Context, opts CaptureOptions) (*CaptureResult, error) {
	c.mu.Lock()
	sess := c.session
	if sess == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	identity := *c.identity
	overlay := c.overlay

	exposureUs := c.exposureUs
	if opts.ExposureUs != 0 {
		exposureUs = opts.ExposureUs
	}
	gain := c.gain
	if opts.Gain != nil {
		gain = *opts.Gain
	}
	setExposure := exposureUs != c.exposureUs
	setGain := gain != c.gain
	c.mu.Unlock()

	if !driver.ValidExposure(exposureUs) {
		return nil, fmt.Errorf("%w: %d us", driver.ErrExposureOutOfRange, exposureUs)
	}

	if setGain {
		if _, err := c.applyControl(sess, identity, "Gain", gain); err != nil {
			return nil, err
		}
	}
	if setExposure {
		if _, err := c.applyControl(sess, identity, "Exposure", int(exposureUs)); err != nil {
			return nil, err
		}
	}

	start := c.clock.Now()
	data, err := sess.Expose(ctx, exposureUs)
	if err != nil {
		return nil, fmt.Errorf("exposing camera %d: %w", c.cfg.ID, err)
	}
	duration := c.clock.Now().Sub(start)

	c.mu.Lock()
	if c.session == sess {
		c.gain = gain
		c.exposureUs = exposureUs
	}
	info := c.eventInfoLocked()
	c.mu.Unlock()

	result := &CaptureResult{
		Data:       data,
		Timestamp:  info.Timestamp,
		ExposureUs: exposureUs,
		Gain:       gain,
		Width:      identity.MaxWidth,
		Height:     identity.MaxHeight,
		Format:     FormatJPEG,
		Metadata: map[string]string{
			"camera_id":   strconv.Itoa(c.cfg.ID),
			"camera_name": info.CameraName,
		},
	}
	if info.SessionTag != "" {
		result.Metadata["session_tag"] = info.SessionTag
	}
	if opts.Format != "" {
		result.Format = opts.Format
	}

	if opts.ApplyOverlay && overlay != nil {
		rendered, err := c.renderer.Render(data, *overlay, identity)
		if err != nil {
			// Overlay is cosmetic. Deliver the raw frame.
			c.logger.Warn("overlay rendering failed, returning raw frame",
				"camera_id", c.cfg.ID, "error", err)
		} else {
			result.Data = rendered
			result.OverlayApplied = true
		}
	}

	c.stats.recordCapture(duration)
	c.hooks.fireCapture(CaptureEvent{
		EventInfo:      info,
		ExposureUs:     exposureUs,
		Gain:           gain,
		Bytes:          len(result.Data),
		Duration:       duration,
		OverlayApplied: result.OverlayApplied,
	})
	return result, nil
}

// applyControl pre-validates against the identity descriptor so that
// caller mistakes surface without a driver round trip.
func (c *Camera) applyControl(sess driver.Session, identity driver.Identity, name string, value int) (driver.ControlValue, error) {
	desc, ok := identity.Controls[name]
	if !ok {
		return driver.ControlValue{}, fmt.Errorf("%w: %s", driver.ErrUnknownControl, name)
	}
	if !desc.Writable {
		return driver.ControlValue{}, fmt.Errorf("%w: %s", driver.ErrControlReadOnly, name)
	}
	if !desc.InRange(value) {
		return driver.ControlValue{}, fmt.Errorf("%w: %s=%d (range %d..%d)",
			driver.ErrControlOutOfRange, name, value, desc.Min, desc.Max)
	}
	applied, err := sess.SetControl(name, value)
	if err != nil {
		return driver.ControlValue{}, fmt.Errorf("setting %s on camera %d: %w", name, c.cfg.ID, err)
	}
	return applied, nil
}

// recoverSession consults the recovery strategy and reconnects. On
// success the camera is back in resume state with a fresh session; on
// failure it is disconnected.
func (c *Camera) recoverSession(resume State) error {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.identity = nil
	c.state = StateRecovering
	c.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
	c.stats.recordRecovery()

	recovered := c.recovery.AttemptRecovery(c.cfg.ID)
	if recovered {
		c.mu.Lock()
		_, err := c.connectLocked()
		if err == nil {
			c.state = resume
		} else {
			c.state = StateDisconnected
			c.releaseStreamLocked()
			recovered = false
		}
		c.mu.Unlock()
		if err != nil {
			c.logger.Error("camera recovery reconnect failed", "camera_id", c.cfg.ID, "error", err)
		}
	} else {
		c.mu.Lock()
		c.state = StateDisconnected
		c.releaseStreamLocked()
		c.mu.Unlock()
	}

	c.hooks.fireRecovery(RecoveryEvent{EventInfo: c.eventInfo(), Recovered: recovered})
	if !recovered {
		c.logger.Error("camera recovery failed, now disconnected", "camera_id", c.cfg.ID)
		return ErrDisconnected
	}
	c.logger.Info("camera recovered", "camera_id", c.cfg.ID)
	return nil
}

// releaseStreamLocked stops and detaches an active stream so a later
// reconnect can start a fresh one. Callers hold c.mu.
func (c *Camera) releaseStreamLocked() {
	if c.stream != nil {
		c.stream.markStopped()
		c.stream = nil
	}
}

// dropSession force-disconnects after an unrecoverable failure.
func (c *Camera) dropSession() {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.identity = nil
	c.releaseStreamLocked()
	c.state = StateDisconnected
	c.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}

// SetControl validates and applies one named control. The value must be
// writable and within the descriptor's range; validation failures leave
// the device untouched.
func (c *Camera) SetControl(name string, value int) (driver.ControlValue, error) {
	c.mu.Lock()
	sess := c.session
	if sess == nil {
		c.mu.Unlock()
		return driver.ControlValue{}, ErrNotConnected
	}
	identity := *c.identity
	c.mu.Unlock()

	applied, err := c.applyControl(sess, identity, name, value)
	if err != nil {
		c.hooks.fireError(ErrorEvent{EventInfo: c.eventInfo(), Op: "set_control", Err: err})
		return driver.ControlValue{}, err
	}

	c.mu.Lock()
	if c.session == sess {
		switch name {
		case "Gain":
			c.gain = applied.Value
		case "Exposure":
			c.exposureUs = int64(applied.Value)
		}
	}
	c.mu.Unlock()

	c.logger.Debug("control set", "camera_id", c.cfg.ID, "control", name, "value", applied.Value)
	return applied, nil
}

// GetControl reads one named control from the device.
func (c *Camera) GetControl(name string) (driver.ControlValue, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return driver.ControlValue{}, ErrNotConnected
	}

	value, err := sess.GetControl(name)
	if err != nil {
		err = fmt.Errorf("reading %s on camera %d: %w", name, c.cfg.ID, err)
		c.hooks.fireError(ErrorEvent{EventInfo: c.eventInfo(), Op: "get_control", Err: err})
		return driver.ControlValue{}, err
	}
	return value, nil
}

// isDeviceGone classifies driver failures that mean the hardware
// vanished rather than the request being wrong.
func isDeviceGone(err error) bool {
	return errors.Is(err, driver.ErrDeviceGone) || errors.Is(err, driver.ErrSessionClosed)
}
