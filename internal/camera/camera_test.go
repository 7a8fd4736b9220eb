package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/argusobs/telescope-core/internal/driver"
)

// mockDriver is an in-memory driver backend for tests. Each Open
// creates a fresh mockSession; the most recent one is kept for
// fault injection.
type mockDriver struct {
	mu          sync.Mutex
	identities  map[int]driver.Identity
	openErr     error
	enumErr     error
	enumCalls   int
	openCalls   int
	lastSession *mockSession

	// bornBroken is copied into every new session's exposeErr, for
	// faults that must survive a reconnect.
	bornBroken error
}

func newMockDriver(ids ...int) *mockDriver {
	identities := make(map[int]driver.Identity, len(ids))
	for _, id := range ids {
		identities[id] = testIdentity(id)
	}
	return &mockDriver{identities: identities}
}

func (d *mockDriver) Enumerate() (map[int]driver.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumCalls++
	if d.enumErr != nil {
		return nil, d.enumErr
	}
	out := make(map[int]driver.Identity, len(d.identities))
	for id, identity := range d.identities {
		out[id] = identity
	}
	return out, nil
}

func (d *mockDriver) Open(id int) (driver.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openCalls++
	if d.openErr != nil {
		return nil, d.openErr
	}
	identity, ok := d.identities[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", driver.ErrUnknownDevice, id)
	}
	sess := &mockSession{
		identity:  identity,
		values:    map[string]int{"Gain": 50, "Exposure": 100_000, "Temperature": 250},
		data:      []byte("frame"),
		exposeErr: d.bornBroken,
	}
	d.lastSession = sess
	return sess, nil
}

func (d *mockDriver) session() *mockSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSession
}

type mockSession struct {
	mu        sync.Mutex
	identity  driver.Identity
	values    map[string]int
	data      []byte
	exposeErr error
	setCalls  []string
	exposures []int64
	closed    bool
}

func (s *mockSession) Describe() (driver.Identity, error) {
	return s.identity, nil
}

func (s *mockSession) ListControls() (map[string]driver.ControlDescriptor, error) {
	return s.identity.Controls, nil
}

func (s *mockSession) SetControl(name string, value int) (driver.ControlValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identity.Controls[name]; !ok {
		return driver.ControlValue{}, fmt.Errorf("%w: %s", driver.ErrUnknownControl, name)
	}
	s.values[name] = value
	s.setCalls = append(s.setCalls, fmt.Sprintf("%s=%d", name, value))
	return driver.ControlValue{Value: value}, nil
}

func (s *mockSession) GetControl(name string) (driver.ControlValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	if !ok {
		return driver.ControlValue{}, fmt.Errorf("%w: %s", driver.ErrUnknownControl, name)
	}
	return driver.ControlValue{Value: v}, nil
}

func (s *mockSession) Expose(_ context.Context, exposureUs int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, driver.ErrSessionClosed
	}
	if s.exposeErr != nil {
		return nil, s.exposeErr
	}
	s.exposures = append(s.exposures, exposureUs)
	return s.data, nil
}

func (s *mockSession) AbortExposure() error { return nil }

func (s *mockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockSession) failNextExposures(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exposeErr = err
}

func testIdentity(id int) driver.Identity {
	return driver.Identity{
		ID:        id,
		Name:      fmt.Sprintf("MockCam %d", id),
		MaxWidth:  1280,
		MaxHeight: 960,
		IsColor:   true,
		Controls: map[string]driver.ControlDescriptor{
			"Gain":        {Name: "Gain", Min: 0, Max: 600, Default: 50, Writable: true},
			"Exposure":    {Name: "Exposure", Min: 1, Max: 60_000_000, Default: 100_000, Writable: true},
			"Temperature": {Name: "Temperature", Min: 0, Max: 1000, Default: 250},
		},
	}
}

// fakeClock advances instantly on Sleep so pacing tests never block.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) sleptTotal() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.sleeps {
		total += d
	}
	return total
}

func newTestCamera(t *testing.T, drv *mockDriver, id int) *Camera {
	t.Helper()
	cam := New(drv, Config{ID: id})
	cam.SetClock(newFakeClock())
	return cam
}

func TestConnectLifecycle(t *testing.T) {
	drv := newMockDriver(0)
	cam := newTestCamera(t, drv, 0)

	if cam.State() != StateDisconnected {
		t.Fatalf("expected disconnected before connect, got %s", cam.State())
	}

	identity, err := cam.Connect()
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if identity.Name != "MockCam 0" {
		t.Errorf("expected identity name MockCam 0, got %q", identity.Name)
	}
	if cam.State() != StateConnected {
		t.Errorf("expected connected state, got %s", cam.State())
	}
	if _, ok := cam.Identity(); !ok {
		t.Error("expected identity to be available after connect")
	}

	if _, err := cam.Connect(); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("expected ErrAlreadyConnected on double connect, got %v", err)
	}

	if err := cam.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if cam.State() != StateDisconnected {
		t.Errorf("expected disconnected state, got %s", cam.State())
	}
	if !drv.session().closed {
		t.Error("expected driver session to be closed")
	}

	// Second disconnect is a no-op.
	if err := cam.Disconnect(); err != nil {
		t.Errorf("expected idempotent disconnect, got %v", err)
	}
}

func TestConnectAppliesDefaults(t *testing.T) {
	drv := newMockDriver(0)
	cam := New(drv, Config{ID: 0, DefaultGain: 120, DefaultExposureUs: 5_000})
	cam.SetClock(newFakeClock())

	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	sess := drv.session()
	if got := sess.values["Gain"]; got != 120 {
		t.Errorf("expected default gain 120 applied, got %d", got)
	}
	if got := sess.values["Exposure"]; got != 5_000 {
		t.Errorf("expected default exposure 5000 applied, got %d", got)
	}
	exposureUs, gain := cam.Settings()
	if exposureUs != 5_000 || gain != 120 {
		t.Errorf("expected settings (5000, 120), got (%d, %d)", exposureUs, gain)
	}
}

func TestSetDefaultsBeforeConnect(t *testing.T) {
	drv := newMockDriver(0)
	cam := New(drv, Config{ID: 0})
	cam.SetClock(newFakeClock())
	cam.SetDefaults(200, 8_000)

	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	sess := drv.session()
	if got := sess.values["Gain"]; got != 200 {
		t.Errorf("expected overridden gain 200 applied, got %d", got)
	}
	if got := sess.values["Exposure"]; got != 8_000 {
		t.Errorf("expected overridden exposure 8000 applied, got %d", got)
	}

	// Zero values keep the current defaults
	cam2 := New(drv, Config{ID: 0, DefaultGain: 75})
	cam2.SetDefaults(0, 0)
	if cam2.cfg.DefaultGain != 75 || cam2.cfg.DefaultExposureUs != 100_000 {
		t.Errorf("zero SetDefaults changed config: gain=%d exposure=%d",
			cam2.cfg.DefaultGain, cam2.cfg.DefaultExposureUs)
	}
}

func TestCaptureRequiresConnection(t *testing.T) {
	cam := newTestCamera(t, newMockDriver(0), 0)
	if _, err := cam.Capture(context.Background(), CaptureOptions{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestCaptureOverridesBecomeCurrent(t *testing.T) {
	drv := newMockDriver(0)
	cam := newTestCamera(t, drv, 0)
	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	gain := 200
	result, err := cam.Capture(context.Background(), CaptureOptions{ExposureUs: 2_000_000, Gain: &gain})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if result.ExposureUs != 2_000_000 || result.Gain != 200 {
		t.Errorf("expected result to report overrides, got exposure=%d gain=%d",
			result.ExposureUs, result.Gain)
	}

	exposureUs, g := cam.Settings()
	if exposureUs != 2_000_000 || g != 200 {
		t.Errorf("expected overrides to stick as (2000000, 200), got (%d, %d)", exposureUs, g)
	}

	// A second capture with no overrides reuses the settings without
	// another SetControl round trip.
	before := len(drv.session().setCalls)
	if _, err := cam.Capture(context.Background(), CaptureOptions{}); err != nil {
		t.Fatalf("second Capture failed: %v", err)
	}
	if after := len(drv.session().setCalls); after != before {
		t.Errorf("expected no control writes for unchanged settings, got %d new", after-before)
	}
}

func TestCaptureRejectsInvalidExposure(t *testing.T) {
	cam := newTestCamera(t, newMockDriver(0), 0)
	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, err := cam.Capture(context.Background(), CaptureOptions{ExposureUs: -5}); !errors.Is(err, driver.ErrExposureOutOfRange) {
		t.Fatalf("expected ErrExposureOutOfRange, got %v", err)
	}
}

type recordingRenderer struct {
	calls int
	err   error
}

func (r *recordingRenderer) Render(data []byte, _ OverlayConfig, _ driver.Identity) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return append([]byte("overlay:"), data...), nil
}

func TestCaptureOverlay(t *testing.T) {
	drv := newMockDriver(0)
	cam := newTestCamera(t, drv, 0)
	renderer := &recordingRenderer{}
	cam.SetRenderer(renderer)
	cam.SetOverlay(&OverlayConfig{Crosshair: true})
	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	result, err := cam.Capture(context.Background(), CaptureOptions{ApplyOverlay: true})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if !result.OverlayApplied {
		t.Error("expected overlay applied")
	}
	if string(result.Data) != "overlay:frame" {
		t.Errorf("expected rendered frame, got %q", result.Data)
	}

	// CaptureRaw never renders, whatever the options say.
	raw, err := cam.CaptureRaw(context.Background(), CaptureOptions{ApplyOverlay: true})
	if err != nil {
		t.Fatalf("CaptureRaw failed: %v", err)
	}
	if raw.OverlayApplied || string(raw.Data) != "frame" {
		t.Errorf("expected raw frame without overlay, got applied=%v data=%q",
			raw.OverlayApplied, raw.Data)
	}
	if renderer.calls != 1 {
		t.Errorf("expected exactly one render call, got %d", renderer.calls)
	}
}

func TestCaptureOverlayFailureDeliversRawFrame(t *testing.T) {
	drv := newMockDriver(0)
	cam := newTestCamera(t, drv, 0)
	cam.SetRenderer(&recordingRenderer{err: errors.New("decode boom")})
	cam.SetOverlay(&OverlayConfig{Crosshair: true})
	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	result, err := cam.Capture(context.Background(), CaptureOptions{ApplyOverlay: true})
	if err != nil {
		t.Fatalf("expected capture to survive overlay failure, got %v", err)
	}
	if result.OverlayApplied {
		t.Error("expected OverlayApplied=false after render failure")
	}
	if string(result.Data) != "frame" {
		t.Errorf("expected raw frame, got %q", result.Data)
	}
}

func TestRecoveryRetriesOnce(t *testing.T) {
	drv := newMockDriver(0)
	cam := newTestCamera(t, drv, 0)
	attempts := 0
	cam.SetRecovery(RecoveryFunc(func(id int) bool {
		attempts++
		return true
	}))
	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	drv.session().failNextExposures(driver.ErrDeviceGone)

	result, err := cam.Capture(context.Background(), CaptureOptions{})
	if err != nil {
		t.Fatalf("expected recovered capture to succeed, got %v", err)
	}
	if string(result.Data) != "frame" {
		t.Errorf("unexpected frame data %q", result.Data)
	}
	if attempts != 1 {
		t.Errorf("expected one recovery attempt, got %d", attempts)
	}
	if cam.State() != StateConnected {
		t.Errorf("expected connected after recovery, got %s", cam.State())
	}
	if drv.openCalls != 2 {
		t.Errorf("expected a reconnect (2 opens), got %d", drv.openCalls)
	}

	stats := cam.Stats()
	if stats.Recoveries != 1 {
		t.Errorf("expected 1 recovery in stats, got %d", stats.Recoveries)
	}
}

func TestRecoveryDeclinedDisconnects(t *testing.T) {
	drv := newMockDriver(0)
	cam := newTestCamera(t, drv, 0)
	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	drv.session().failNextExposures(driver.ErrDeviceGone)

	_, err := cam.Capture(context.Background(), CaptureOptions{})
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
	if !errors.Is(err, driver.ErrDeviceGone) {
		t.Errorf("expected original driver error preserved in chain, got %v", err)
	}
	if cam.State() != StateDisconnected {
		t.Errorf("expected disconnected after declined recovery, got %s", cam.State())
	}

	// Fails fast until reconnected.
	if _, err := cam.Capture(context.Background(), CaptureOptions{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after disconnect, got %v", err)
	}
	if _, err := cam.Connect(); err != nil {
		t.Errorf("expected reconnect to succeed, got %v", err)
	}
}

func TestRecoveryRetryDoesNotRecurse(t *testing.T) {
	drv := newMockDriver(0)
	cam := newTestCamera(t, drv, 0)
	cam.SetRecovery(RecoveryFunc(func(int) bool {
		// Break the reconnected session too, so the retry fails the
		// same way.
		drv.mu.Lock()
		drv.bornBroken = driver.ErrDeviceGone
		drv.mu.Unlock()
		return true
	}))
	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	drv.session().failNextExposures(driver.ErrDeviceGone)

	_, err := cam.Capture(context.Background(), CaptureOptions{})
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected after failed retry, got %v", err)
	}
	if cam.State() != StateDisconnected {
		t.Errorf("expected disconnected, got %s", cam.State())
	}
	// The retry must not trigger a second recovery round: exactly one
	// reconnect after the initial connect.
	if drv.openCalls != 2 {
		t.Errorf("expected 2 opens (connect plus one recovery reconnect), got %d", drv.openCalls)
	}
}

func TestSetControlValidation(t *testing.T) {
	drv := newMockDriver(0)
	cam := newTestCamera(t, drv, 0)

	if _, err := cam.SetControl("Gain", 100); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	tests := []struct {
		name    string
		control string
		value   int
		wantErr error
	}{
		{"unknown control", "Sharpness", 5, driver.ErrUnknownControl},
		{"read-only control", "Temperature", 100, driver.ErrControlReadOnly},
		{"below range", "Gain", -1, driver.ErrControlOutOfRange},
		{"above range", "Gain", 601, driver.ErrControlOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(drv.session().setCalls)
			if _, err := cam.SetControl(tt.control, tt.value); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if after := len(drv.session().setCalls); after != before {
				t.Errorf("validation failure must not reach the driver, got %d writes", after-before)
			}
		})
	}

	applied, err := cam.SetControl("Gain", 300)
	if err != nil {
		t.Fatalf("SetControl failed: %v", err)
	}
	if applied.Value != 300 {
		t.Errorf("expected applied value 300, got %d", applied.Value)
	}
	if _, gain := cam.Settings(); gain != 300 {
		t.Errorf("expected tracked gain 300, got %d", gain)
	}
}

func TestGetControl(t *testing.T) {
	drv := newMockDriver(0)
	cam := newTestCamera(t, drv, 0)
	if _, err := cam.GetControl("Gain"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	value, err := cam.GetControl("Temperature")
	if err != nil {
		t.Fatalf("GetControl failed: %v", err)
	}
	if value.Value != 250 {
		t.Errorf("expected temperature 250, got %d", value.Value)
	}
	if _, err := cam.GetControl("Sharpness"); !errors.Is(err, driver.ErrUnknownControl) {
		t.Errorf("expected ErrUnknownControl, got %v", err)
	}
}

func TestHooksFire(t *testing.T) {
	drv := newMockDriver(0)
	cam := newTestCamera(t, drv, 0)
	cam.SetSessionTag("session-42")

	var mu sync.Mutex
	var connects, disconnects, captures, errs int
	var captureTag string
	cam.SetHooks(Hooks{
		OnConnect:    func(ConnectEvent) { mu.Lock(); connects++; mu.Unlock() },
		OnDisconnect: func(DisconnectEvent) { mu.Lock(); disconnects++; mu.Unlock() },
		OnCapture: func(ev CaptureEvent) {
			mu.Lock()
			captures++
			captureTag = ev.SessionTag
			mu.Unlock()
		},
		OnError: func(ErrorEvent) { mu.Lock(); errs++; mu.Unlock() },
	})

	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, err := cam.Capture(context.Background(), CaptureOptions{}); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if _, err := cam.SetControl("Gain", 9999); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if err := cam.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if connects != 1 || disconnects != 1 || captures != 1 || errs != 1 {
		t.Errorf("unexpected event counts: connect=%d disconnect=%d capture=%d error=%d",
			connects, disconnects, captures, errs)
	}
	if captureTag != "session-42" {
		t.Errorf("expected capture event tagged session-42, got %q", captureTag)
	}
}

func TestSessionTagStampsCaptureMetadata(t *testing.T) {
	drv := newMockDriver(0)
	cam := newTestCamera(t, drv, 0)
	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	cam.SetSessionTag("m31-run-4")

	result, err := cam.Capture(context.Background(), CaptureOptions{})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if got := result.Metadata["session_tag"]; got != "m31-run-4" {
		t.Errorf("expected metadata session_tag m31-run-4, got %q", got)
	}

	cam.SetSessionTag("")
	result, err = cam.Capture(context.Background(), CaptureOptions{})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if _, ok := result.Metadata["session_tag"]; ok {
		t.Error("expected no session_tag after clearing the tag")
	}
}

func TestStatsTracksOutcomes(t *testing.T) {
	drv := newMockDriver(0)
	cam := newTestCamera(t, drv, 0)
	if _, err := cam.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := cam.Capture(context.Background(), CaptureOptions{}); err != nil {
			t.Fatalf("Capture %d failed: %v", i, err)
		}
	}
	drv.session().failNextExposures(driver.ErrDeviceGone)
	if _, err := cam.Capture(context.Background(), CaptureOptions{}); err == nil {
		t.Fatal("expected capture failure")
	}

	stats := cam.Stats()
	if stats.Captures != 3 {
		t.Errorf("expected 3 captures, got %d", stats.Captures)
	}
	if stats.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", stats.Failures)
	}
	want := 0.75
	if stats.SuccessRate != want {
		t.Errorf("expected success rate %v, got %v", want, stats.SuccessRate)
	}
}
