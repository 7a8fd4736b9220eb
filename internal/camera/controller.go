package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/argusobs/telescope-core/internal/driver"
)

// Timing quality thresholds for synchronized captures, measured as the
// absolute offset between the two exposure midpoints.
const (
	TimingGood       = 50 * time.Millisecond
	TimingAcceptable = 200 * time.Millisecond
	TimingPoor       = 500 * time.Millisecond
)

// Role names one leg of a synchronized capture.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// SyncCaptureError attributes a failed synchronized capture to the leg
// that failed. Unwrap exposes the underlying camera error.
type SyncCaptureError struct {
	Role Role
	Name string
	Err  error
}

func (e *SyncCaptureError) Error() string {
	return fmt.Sprintf("sync capture %s leg (%s): %v", e.Role, e.Name, e.Err)
}

func (e *SyncCaptureError) Unwrap() error { return e.Err }

// SyncCaptureConfig selects the two cameras and their per-leg options
// for a synchronized capture.
type SyncCaptureConfig struct {
	Primary   string
	Secondary string

	PrimaryOptions   CaptureOptions
	SecondaryOptions CaptureOptions
}

// SyncLeg is one camera's contribution to a synchronized capture.
type SyncLeg struct {
	Role       Role
	Name       string
	Result     *CaptureResult
	StartedAt  time.Time
	ExposureUs int64
}

// midpoint returns the instant halfway through the exposure.
func (l SyncLeg) midpoint() time.Time {
	return l.StartedAt.Add(time.Duration(l.ExposureUs/2) * time.Microsecond)
}

// SyncCaptureResult is a completed synchronized capture.
type SyncCaptureResult struct {
	Primary   SyncLeg
	Secondary SyncLeg

	// DelayUs is the start offset that was applied to the secondary
	// exposure so the two midpoints coincide. Clamped to zero when the
	// secondary exposure is at least as long as the primary; its window
	// then covers the primary's and alignment is approximate.
	DelayUs int64
}

// TimingError is the measured offset between the two exposure
// midpoints. Zero is perfect alignment.
func (r *SyncCaptureResult) TimingError() time.Duration {
	d := r.Primary.midpoint().Sub(r.Secondary.midpoint())
	if d < 0 {
		d = -d
	}
	return d
}

// TimingErrorMs is TimingError in fractional milliseconds.
func (r *SyncCaptureResult) TimingErrorMs() float64 {
	return float64(r.TimingError()) / float64(time.Millisecond)
}

// TimingQuality rates the alignment: "good" under 50ms, "acceptable"
// under 200ms, "poor" under 500ms, "bad" beyond.
func (r *SyncCaptureResult) TimingQuality() string {
	switch err := r.TimingError(); {
	case err < TimingGood:
		return "good"
	case err < TimingAcceptable:
		return "acceptable"
	case err < TimingPoor:
		return "poor"
	default:
		return "bad"
	}
}

// Controller coordinates a small named set of cameras, typically a
// finder and a main imager, and captures from pairs of them with
// aligned exposure midpoints.
type Controller struct {
	logger Logger
	clock  Clock

	mu      sync.Mutex
	cameras map[string]*Camera
	order   []string
}

// NewController creates an empty controller.
func NewController() *Controller {
	return &Controller{
		logger:  noopLogger{},
		clock:   SystemClock{},
		cameras: make(map[string]*Camera),
	}
}

// SetLogger installs a logger. Call before first use.
func (c *Controller) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetClock installs a clock. Call before first use.
func (c *Controller) SetClock(clock Clock) {
	if clock != nil {
		c.clock = clock
	}
}

// Add registers a camera under a name. Registering a taken name fails
// with ErrCameraExists unless overwrite is set.
func (c *Controller) Add(name string, cam *Camera, overwrite bool) error {
	if name == "" {
		return fmt.Errorf("camera: controller name must not be empty")
	}
	if cam == nil {
		return fmt.Errorf("camera: controller camera must not be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.cameras[name]; taken {
		if !overwrite {
			return fmt.Errorf("%w: %q", ErrCameraExists, name)
		}
	} else {
		c.order = append(c.order, name)
	}
	c.cameras[name] = cam
	c.logger.Debug("controller camera added", "name", name, "camera_id", cam.ID())
	return nil
}

// Remove unregisters a name. The camera itself is left untouched;
// lifecycle stays with the registry. Returns false for unknown names.
func (c *Controller) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cameras[name]; !ok {
		return false
	}
	delete(c.cameras, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the camera registered under name.
func (c *Controller) Get(name string) (*Camera, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cam, ok := c.cameras[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCameraNotFound, name)
	}
	return cam, nil
}

// Names returns the registered names in registration order.
func (c *Controller) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// CalculateSyncTiming returns the delay in microseconds to apply to
// the start of the shorter exposure so both exposure midpoints
// coincide. A shorter first argument yields zero delay rather than a
// negative one.
func CalculateSyncTiming(longExposureUs, shortExposureUs int64) (int64, error) {
	if !driver.ValidExposure(longExposureUs) {
		return 0, fmt.Errorf("%w: %d us", driver.ErrExposureOutOfRange, longExposureUs)
	}
	if !driver.ValidExposure(shortExposureUs) {
		return 0, fmt.Errorf("%w: %d us", driver.ErrExposureOutOfRange, shortExposureUs)
	}

	delay := (longExposureUs - shortExposureUs) / 2
	if delay < 0 {
		delay = 0
	}
	return delay, nil
}

// SyncCapture exposes two cameras with their exposure midpoints
// aligned: both legs start together, except a shorter secondary
// exposure is delayed by half the exposure difference. A secondary at
// least as long as the primary starts undelayed. Legs run concurrently;
// the first failure cancels the other leg and is reported with its
// role.
func (c *Controller) SyncCapture(ctx context.Context, cfg SyncCaptureConfig) (*SyncCaptureResult, error) {
	primary, err := c.Get(cfg.Primary)
	if err != nil {
		return nil, err
	}
	secondary, err := c.Get(cfg.Secondary)
	if err != nil {
		return nil, err
	}
	if primary == secondary {
		return nil, fmt.Errorf("camera: sync capture needs two distinct cameras, got %q twice", cfg.Primary)
	}

	primaryExp := effectiveExposure(primary, cfg.PrimaryOptions)
	secondaryExp := effectiveExposure(secondary, cfg.SecondaryOptions)

	delayUs, err := CalculateSyncTiming(primaryExp, secondaryExp)
	if err != nil {
		return nil, err
	}

	c.logger.Info("sync capture starting",
		"primary", cfg.Primary, "primary_exposure_us", primaryExp,
		"secondary", cfg.Secondary, "secondary_exposure_us", secondaryExp,
		"delay_us", delayUs)

	result := &SyncCaptureResult{DelayUs: delayUs}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(c.captureLeg(gctx, &result.Primary, RolePrimary, cfg.Primary, primary, cfg.PrimaryOptions, 0))
	g.Go(c.captureLeg(gctx, &result.Secondary, RoleSecondary, cfg.Secondary, secondary, cfg.SecondaryOptions, delayUs))
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Info("sync capture complete",
		"timing_error_ms", result.TimingErrorMs(),
		"quality", result.TimingQuality())
	return result, nil
}

// captureLeg builds the goroutine body for one leg: optional start
// delay, then a single capture attributed to the leg's role on failure.
func (c *Controller) captureLeg(ctx context.Context, leg *SyncLeg, role Role, name string, cam *Camera, opts CaptureOptions, delayUs int64) func() error {
	return func() error {
		if delayUs > 0 {
			c.clock.Sleep(ctx, time.Duration(delayUs)*time.Microsecond)
		}
		if err := ctx.Err(); err != nil {
			return &SyncCaptureError{Role: role, Name: name, Err: err}
		}

		leg.Role = role
		leg.Name = name
		leg.ExposureUs = effectiveExposure(cam, opts)
		leg.StartedAt = c.clock.Now()

		res, err := cam.Capture(ctx, opts)
		if err != nil {
			return &SyncCaptureError{Role: role, Name: name, Err: err}
		}
		leg.Result = res
		return nil
	}
}

// effectiveExposure resolves the exposure a capture with opts will use.
func effectiveExposure(cam *Camera, opts CaptureOptions) int64 {
	if opts.ExposureUs != 0 {
		return opts.ExposureUs
	}
	exposureUs, _ := cam.Settings()
	return exposureUs
}
