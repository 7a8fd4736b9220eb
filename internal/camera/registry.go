package camera

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/argusobs/telescope-core/internal/driver"
)

// Registry hands out one Camera per physical device id. Repeated Get
// calls with the same id return the same instance, so device state
// (session, settings, statistics) is never split across duplicates.
type Registry struct {
	driver driver.Driver
	logger Logger
	clock  Clock

	mu         sync.Mutex
	cameras    map[int]*Camera
	discovered map[int]driver.Identity

	// configure shapes each camera before first use. Optional.
	configure func(*Camera)
}

// NewRegistry creates a registry over one driver backend.
func NewRegistry(drv driver.Driver) *Registry {
	return &Registry{
		driver:  drv,
		logger:  noopLogger{},
		clock:   SystemClock{},
		cameras: make(map[int]*Camera),
	}
}

// SetLogger installs a logger, passed down to cameras the registry
// creates. Call before first use.
func (r *Registry) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetClock installs a clock, passed down to cameras the registry
// creates. Call before first use.
func (r *Registry) SetClock(clock Clock) {
	if clock != nil {
		r.clock = clock
	}
}

// SetConfigure installs a callback run once on each camera the registry
// creates, before it is returned or connected. Use it to wire hooks,
// renderers and overlays. Call before first use.
func (r *Registry) SetConfigure(fn func(*Camera)) {
	r.configure = fn
}

// GetOptions shape camera creation on first Get for an id.
type GetOptions struct {
	// Name is the friendly name given to a newly created camera.
	// Ignored when the camera already exists.
	Name string

	// AutoConnect connects the camera before returning it. Existing
	// connected cameras are returned as-is.
	AutoConnect bool
}

// Discover enumerates attached devices. Results are cached; pass
// refresh to ask the driver again, which also picks up devices that
// appeared after the first scan.
func (r *Registry) Discover(refresh bool) (map[int]driver.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discoverLocked(refresh)
}

func (r *Registry) discoverLocked(refresh bool) (map[int]driver.Identity, error) {
	if r.discovered == nil || refresh {
		found, err := r.driver.Enumerate()
		if err != nil {
			return nil, fmt.Errorf("enumerating cameras: %w", err)
		}
		r.discovered = found
		r.logger.Debug("camera discovery", "count", len(found), "refresh", refresh)
	}

	out := make(map[int]driver.Identity, len(r.discovered))
	for id, identity := range r.discovered {
		out[id] = identity
	}
	return out, nil
}

// Get returns the camera for id, creating it on first use. Unknown ids
// fail with ErrCameraNotFound; a refreshed discovery runs first when
// the id is not in the cached scan.
func (r *Registry) Get(id int, opts GetOptions) (*Camera, error) {
	r.mu.Lock()
	cam, ok := r.cameras[id]
	if !ok {
		discovered, err := r.discoverLocked(false)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		if _, known := discovered[id]; !known {
			discovered, err = r.discoverLocked(true)
			if err != nil {
				r.mu.Unlock()
				return nil, err
			}
		}
		if _, known := discovered[id]; !known {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: camera id %d", ErrCameraNotFound, id)
		}

		cam = New(r.driver, Config{ID: id, Name: opts.Name})
		cam.SetLogger(r.logger)
		cam.SetClock(r.clock)
		cam.SetRecovery(r.recoveryStrategy())
		if r.configure != nil {
			r.configure(cam)
		}
		r.cameras[id] = cam
		r.logger.Info("camera registered", "camera_id", id, "name", cam.Name())
	}
	r.mu.Unlock()

	if opts.AutoConnect && !cam.IsConnected() {
		// A concurrent Get can win the connect between the check and
		// the call; the camera is connected either way.
		if _, err := cam.Connect(); err != nil && !errors.Is(err, ErrAlreadyConnected) {
			return nil, err
		}
	}
	return cam, nil
}

// recoveryStrategy re-scans the bus and reports whether the device is
// visible again. Cameras the registry creates use it to decide whether
// a mid-operation disconnect is worth one reconnect attempt.
func (r *Registry) recoveryStrategy() RecoveryStrategy {
	return RecoveryFunc(func(id int) bool {
		found, err := r.Discover(true)
		if err != nil {
			r.logger.Warn("recovery discovery failed", "camera_id", id, "error", err)
			return false
		}
		_, ok := found[id]
		return ok
	})
}

// Cameras returns the registered cameras in id order.
func (r *Registry) Cameras() []*Camera {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int, 0, len(r.cameras))
	for id := range r.cameras {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]*Camera, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.cameras[id])
	}
	return out
}

// Remove disconnects and evicts one camera, returning the evicted
// instance. Unknown ids fail with ErrCameraNotFound. The next Get for
// the id creates a fresh instance.
func (r *Registry) Remove(id int) (*Camera, error) {
	r.mu.Lock()
	cam, ok := r.cameras[id]
	if ok {
		delete(r.cameras, id)
	}
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: camera id %d", ErrCameraNotFound, id)
	}

	if err := cam.Disconnect(); err != nil {
		r.logger.Warn("error disconnecting camera on removal",
			"camera_id", id, "error", err)
	}
	r.logger.Info("camera removed", "camera_id", id)
	return cam, nil
}

// Clear disconnects and evicts every camera and drops the discovery
// cache. The registry is reusable afterwards.
func (r *Registry) Clear() {
	r.mu.Lock()
	cams := make([]*Camera, 0, len(r.cameras))
	for _, cam := range r.cameras {
		cams = append(cams, cam)
	}
	r.cameras = make(map[int]*Camera)
	r.discovered = nil
	r.mu.Unlock()

	for _, cam := range cams {
		if err := cam.Disconnect(); err != nil {
			r.logger.Warn("error disconnecting camera during clear",
				"camera_id", cam.ID(), "error", err)
		}
	}
	r.logger.Info("camera registry cleared", "count", len(cams))
}

// Shutdown releases every camera. Alias of Clear with shutdown logging,
// called on service teardown.
func (r *Registry) Shutdown() {
	r.logger.Info("camera registry shutting down")
	r.Clear()
}
