package camera

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Stream is a pull-based frame source. The caller drives the rate by
// calling Next; the stream paces calls down to the configured cap. One
// stream per camera; a second Stream call fails with ErrStreamActive.
type Stream struct {
	cam      *Camera
	opts     CaptureOptions
	interval time.Duration

	mu      sync.Mutex
	seq     uint64
	last    time.Time
	stopped bool
}

// Stream starts a stream on a connected camera. maxFPS caps the frame
// rate; Next blocks to hold it. Captures are rejected while the stream
// is active.
func (c *Camera) Stream(opts CaptureOptions, maxFPS float64) (*Stream, error) {
	if maxFPS <= 0 {
		return nil, fmt.Errorf("camera: max fps must be positive, got %v", maxFPS)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.session == nil:
		return nil, ErrNotConnected
	case c.stream != nil || c.state == StateStreaming:
		return nil, ErrStreamActive
	case c.state != StateConnected:
		return nil, ErrBusy
	}

	s := &Stream{
		cam:      c,
		opts:     opts,
		interval: time.Duration(float64(time.Second) / maxFPS),
	}
	c.stream = s
	c.state = StateStreaming
	c.logger.Debug("stream started", "camera_id", c.cfg.ID, "max_fps", maxFPS)
	return s, nil
}

// StopStream stops the active stream, if any. The camera returns to the
// connected state.
func (c *Camera) StopStream() {
	c.mu.Lock()
	s := c.stream
	c.mu.Unlock()
	if s != nil {
		s.Stop()
	}
}

// Next blocks until the pacing interval has elapsed since the previous
// frame, captures, and returns the frame. Returns ErrStreamStopped once
// the stream is stopped and ctx.Err() when the context ends first.
func (s *Stream) Next(ctx context.Context) (*StreamFrame, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStreamStopped
	}
	last := s.last
	s.mu.Unlock()

	if !last.IsZero() {
		if wait := s.interval - s.cam.clock.Now().Sub(last); wait > 0 {
			s.cam.clock.Sleep(ctx, wait)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStreamStopped
	}
	s.last = s.cam.clock.Now()
	s.mu.Unlock()

	result, err := s.cam.exposeWithRecovery(ctx, s.opts, StateStreaming)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	seq := s.seq
	s.seq++
	s.mu.Unlock()

	frame := &StreamFrame{CaptureResult: *result, Sequence: seq}
	s.cam.hooks.fireStreamFrame(StreamFrameEvent{
		EventInfo: s.cam.eventInfo(),
		Sequence:  seq,
		Bytes:     len(frame.Data),
	})
	return frame, nil
}

// Stop ends the stream. Idempotent. The camera stays connected; only
// the streaming state is released.
func (s *Stream) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	c := s.cam
	c.mu.Lock()
	if c.stream == s {
		c.stream = nil
		if c.state == StateStreaming {
			c.state = StateConnected
		}
	}
	c.mu.Unlock()
	c.logger.Debug("stream stopped", "camera_id", c.cfg.ID)
}

// markStopped flags the stream stopped without touching camera state.
// Called with the camera mutex held during disconnect.
func (s *Stream) markStopped() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
