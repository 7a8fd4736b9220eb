// Package camera provides the hardware-agnostic capture layer for the
// telescope core.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                         camera package                            │
//	│                                                                   │
//	│  ┌────────────────┐   ┌────────────────┐   ┌──────────────────┐  │
//	│  │    Registry    │   │     Camera     │   │    Controller    │  │
//	│  │ (registry.go)  │──▶│  (camera.go)   │◀──│ (controller.go)  │  │
//	│  │                │   │                │   │                  │  │
//	│  │ • discovery    │   │ • state machine│   │ • named cameras  │  │
//	│  │ • singleton/id │   │ • capture/stream│  │ • sync capture   │  │
//	│  │ • bulk teardown│   │ • recovery     │   │ • timing error   │  │
//	│  └────────────────┘   └────────────────┘   └──────────────────┘  │
//	│           │                    │                                  │
//	└───────────│────────────────────│──────────────────────────────────┘
//	            ▼                    ▼
//	   driver.Driver          driver.Session
//	   (twin or vendor binding behind the protocol)
//
// A Camera wraps one driver session with a connection/capture/streaming
// state machine, pluggable overlay rendering, an injected clock, and a
// bounded disconnect-recovery policy. The Registry guarantees at most one
// live Camera per physical identifier. The Controller composes named
// Cameras and performs the synchronized dual-exposure capture used for
// optical alignment: a short secondary exposure temporally centred inside
// a long primary exposure.
//
// # Lifecycle
//
//	disconnected → connected → (capturing | streaming) → connected → disconnected
//
// with a recovering sub-state entered only from a failed capture or
// stream. Recovery is a single bounded retry: the injected strategy
// decides whether the device is worth another connect, and the original
// operation is retried exactly once.
//
// # Dependency injection
//
// Clock, overlay Renderer, RecoveryStrategy, Hooks, and Logger are all
// small interfaces with no-op defaults, so the whole package is
// deterministically testable without hardware or real sleeping.
package camera
