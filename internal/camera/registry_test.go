package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/argusobs/telescope-core/internal/driver"
)

func TestRegistryReturnsSameInstance(t *testing.T) {
	drv := newMockDriver(0, 1)
	reg := NewRegistry(drv)

	first, err := reg.Get(0, GetOptions{Name: "finder"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := reg.Get(0, GetOptions{Name: "ignored on second get"})
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if first != second {
		t.Fatal("expected the same camera instance for the same id")
	}
	if first.Name() != "finder" {
		t.Errorf("expected first name to stick, got %q", first.Name())
	}

	other, err := reg.Get(1, GetOptions{})
	if err != nil {
		t.Fatalf("Get(1) failed: %v", err)
	}
	if other == first {
		t.Error("expected distinct instances for distinct ids")
	}
}

func TestRegistryUnknownID(t *testing.T) {
	drv := newMockDriver(0)
	reg := NewRegistry(drv)

	if _, err := reg.Get(7, GetOptions{}); !errors.Is(err, ErrCameraNotFound) {
		t.Fatalf("expected ErrCameraNotFound, got %v", err)
	}
	// The miss forces a refreshed scan before giving up.
	if drv.enumCalls != 2 {
		t.Errorf("expected cached scan plus one refresh, got %d scans", drv.enumCalls)
	}
}

func TestRegistryDiscoverCaching(t *testing.T) {
	drv := newMockDriver(0, 1)
	reg := NewRegistry(drv)

	found, err := reg.Discover(false)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 cameras, got %d", len(found))
	}
	if _, err := reg.Discover(false); err != nil {
		t.Fatalf("cached Discover failed: %v", err)
	}
	if drv.enumCalls != 1 {
		t.Errorf("expected one driver scan for cached discovery, got %d", drv.enumCalls)
	}

	// A device attached later is only visible after a refresh.
	drv.mu.Lock()
	drv.identities[2] = testIdentity(2)
	drv.mu.Unlock()

	found, err = reg.Discover(false)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("expected stale cache of 2, got %d", len(found))
	}
	found, err = reg.Discover(true)
	if err != nil {
		t.Fatalf("refresh Discover failed: %v", err)
	}
	if len(found) != 3 {
		t.Errorf("expected 3 after refresh, got %d", len(found))
	}
}

func TestRegistryAutoConnect(t *testing.T) {
	drv := newMockDriver(0)
	reg := NewRegistry(drv)

	cam, err := reg.Get(0, GetOptions{AutoConnect: true})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !cam.IsConnected() {
		t.Fatal("expected auto-connected camera")
	}
	// Already connected: no second Open.
	if _, err := reg.Get(0, GetOptions{AutoConnect: true}); err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if drv.openCalls != 1 {
		t.Errorf("expected one driver open, got %d", drv.openCalls)
	}
}

func TestRegistryRemove(t *testing.T) {
	drv := newMockDriver(0)
	reg := NewRegistry(drv)

	cam, err := reg.Get(0, GetOptions{AutoConnect: true})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	removed, err := reg.Remove(0)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed != cam {
		t.Error("expected Remove to return the evicted camera")
	}
	if cam.IsConnected() {
		t.Error("expected removed camera to be disconnected")
	}
	if _, err := reg.Remove(0); !errors.Is(err, ErrCameraNotFound) {
		t.Errorf("expected ErrCameraNotFound for an unknown id, got %v", err)
	}

	fresh, err := reg.Get(0, GetOptions{})
	if err != nil {
		t.Fatalf("Get after remove failed: %v", err)
	}
	if fresh == cam {
		t.Error("expected a fresh instance after removal")
	}
}

func TestRegistryClearAndShutdown(t *testing.T) {
	drv := newMockDriver(0, 1)
	reg := NewRegistry(drv)

	for id := 0; id < 2; id++ {
		if _, err := reg.Get(id, GetOptions{AutoConnect: true}); err != nil {
			t.Fatalf("Get(%d) failed: %v", id, err)
		}
	}
	cams := reg.Cameras()
	if len(cams) != 2 {
		t.Fatalf("expected 2 cameras, got %d", len(cams))
	}

	reg.Clear()
	for _, cam := range cams {
		if cam.IsConnected() {
			t.Errorf("expected camera %d disconnected after clear", cam.ID())
		}
	}
	if got := reg.Cameras(); len(got) != 0 {
		t.Errorf("expected empty registry after clear, got %d", len(got))
	}

	// Registry is reusable after clear; shutdown behaves the same.
	if _, err := reg.Get(0, GetOptions{}); err != nil {
		t.Fatalf("Get after clear failed: %v", err)
	}
	reg.Shutdown()
	if got := reg.Cameras(); len(got) != 0 {
		t.Errorf("expected empty registry after shutdown, got %d", len(got))
	}
}

func TestRegistryRecoveryStrategy(t *testing.T) {
	drv := newMockDriver(0)
	reg := NewRegistry(drv)

	cam, err := reg.Get(0, GetOptions{AutoConnect: true})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Device vanishes mid-capture but is still on the bus: the
	// registry strategy re-scans, finds it, and the capture succeeds.
	drv.session().failNextExposures(driver.ErrDeviceGone)
	if _, err := cam.Capture(context.Background(), CaptureOptions{}); err != nil {
		t.Fatalf("expected registry-driven recovery, got %v", err)
	}

	// Device truly gone: the refreshed scan misses it and the capture
	// fails disconnected.
	drv.mu.Lock()
	delete(drv.identities, 0)
	drv.mu.Unlock()
	drv.session().failNextExposures(driver.ErrDeviceGone)

	if _, err := cam.Capture(context.Background(), CaptureOptions{}); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected for a missing device, got %v", err)
	}
}

func TestRegistryConfigureHook(t *testing.T) {
	drv := newMockDriver(0)
	reg := NewRegistry(drv)

	var configured []int
	reg.SetConfigure(func(cam *Camera) {
		configured = append(configured, cam.ID())
		cam.SetOverlay(&OverlayConfig{Crosshair: true})
	})

	if _, err := reg.Get(0, GetOptions{}); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := reg.Get(0, GetOptions{}); err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if len(configured) != 1 || configured[0] != 0 {
		t.Errorf("expected configure to run once for id 0, got %v", configured)
	}
}

func TestRegistryConcurrentAutoConnect(t *testing.T) {
	drv := newMockDriver(0)
	reg := NewRegistry(drv)

	const goroutines = 8
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := reg.Get(0, GetOptions{AutoConnect: true}); err != nil {
				errs <- fmt.Errorf("goroutine %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	cam, err := reg.Get(0, GetOptions{})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !cam.IsConnected() {
		t.Fatal("expected camera connected after concurrent auto-connects")
	}
	if drv.openCalls != 1 {
		t.Errorf("expected one driver open, got %d", drv.openCalls)
	}
}

func TestRegistryConcurrentGet(t *testing.T) {
	drv := newMockDriver(0)
	reg := NewRegistry(drv)

	const goroutines = 16
	cams := make([]*Camera, goroutines)
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cam, err := reg.Get(0, GetOptions{})
			if err != nil {
				errs <- fmt.Errorf("goroutine %d: %w", i, err)
				return
			}
			cams[i] = cam
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	for i := 1; i < goroutines; i++ {
		if cams[i] != cams[0] {
			t.Fatal("expected every goroutine to get the same instance")
		}
	}
}
