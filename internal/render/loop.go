// SPDX-License-Identifier: MIT
package render

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"lumen/internal/log"
)

var logger = log.Component("render")

// DefaultFPS is the display cadence when none is configured.
const DefaultFPS = 60

// Sink receives every rendered frame. Transports and the clip recorder
// implement it.
type Sink interface {
	Send(data any) error
}

// Loop drives a Renderer at a fixed frame rate and fans frames out to sinks.
type Loop struct {
	renderer *Renderer
	interval time.Duration

	mu    sync.RWMutex
	sinks map[Sink]struct{}

	latest atomic.Pointer[Frame]
	frames atomic.Uint64
}

// NewLoop returns a loop rendering fps frames per second.
func NewLoop(r *Renderer, fps int) *Loop {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Loop{
		renderer: r,
		interval: time.Second / time.Duration(fps),
		sinks:    make(map[Sink]struct{}),
	}
}

// AddSink registers s for subsequent frames.
func (l *Loop) AddSink(s Sink) {
	l.mu.Lock()
	l.sinks[s] = struct{}{}
	l.mu.Unlock()
}

// RemoveSink stops delivering frames to s.
func (l *Loop) RemoveSink(s Sink) {
	l.mu.Lock()
	delete(l.sinks, s)
	l.mu.Unlock()
}

// Interval returns the frame period.
func (l *Loop) Interval() time.Duration { return l.interval }

// Frames returns the number of frames rendered so far.
func (l *Loop) Frames() uint64 { return l.frames.Load() }

// LatestFrame returns the most recent frame, if any has been rendered.
func (l *Loop) LatestFrame() (Frame, bool) {
	f := l.latest.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// Step renders a single frame at now and delivers it.
func (l *Loop) Step(now time.Time) Frame {
	f := l.renderer.Frame(now)
	l.latest.Store(&f)
	l.frames.Add(1)

	l.mu.RLock()
	sinks := make([]Sink, 0, len(l.sinks))
	for s := range l.sinks {
		sinks = append(sinks, s)
	}
	l.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Send(f); err != nil {
			logger.Warnf("frame %d: sink %T: %v", f.Seq, s, err)
		}
	}
	return f
}

// Run renders frames until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	logger.Infof("render loop started at %v per frame", l.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("render loop stopped after %d frames", l.frames.Load())
			return ctx.Err()
		case now := <-ticker.C:
			l.Step(now)
		}
	}
}
