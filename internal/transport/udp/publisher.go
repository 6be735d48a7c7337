// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"lumen/internal/render"
)

// FrameProvider yields the most recent rendered frame.
type FrameProvider interface {
	LatestFrame() (render.Frame, bool)
}

// Publisher periodically packs the latest uniform block and sends it over
// UDP. It runs in a separate goroutine managed by Start and Stop.
type Publisher struct {
	sender   *Sender
	frames   FrameProvider
	interval time.Duration

	ticker   *time.Ticker   // Triggers packet sending.
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Stop logic runs once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine in Stop.
	mu       sync.Mutex     // Protects ticker and doneChan.

	sequenceNum uint32
	lastSeq     uint64 // Frame sequence of the last packet sent.
	sent        uint64

	packetBuffer *bytes.Buffer
}

// NewPublisher creates a Publisher. An interval <= 0 defaults to 16ms.
func NewPublisher(interval time.Duration, sender *Sender, frames FrameProvider) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	if frames == nil {
		return nil, fmt.Errorf("udp publisher: frame provider cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		logger.Warnf("invalid interval, defaulting to %s", interval)
	}
	logger.Infof("publishing %d uniforms every %s", render.UniformCount, interval)

	return &Publisher{
		sender:       sender,
		frames:       frames,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start begins the periodic publishing process. Calling Start on a running
// publisher is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it. It is
// safe to call Stop multiple times.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	logger.Infof("publisher stopped after %d packets", p.sent)
	return nil
}

// publish sends the latest frame unless it was already sent. Frames are
// produced at display rate; a slower or faster ticker simply samples them.
func (p *Publisher) publish() {
	f, ok := p.frames.LatestFrame()
	if !ok || f.Seq == p.lastSeq {
		return
	}

	p.sequenceNum++
	if err := Encode(p.packetBuffer, p.sequenceNum, f.Timestamp, f.Uniforms[:]); err != nil {
		logger.Errorf("packing frame %d: %v", f.Seq, err)
		return
	}
	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		return
	}
	p.lastSeq = f.Seq
	p.sent++
}

// Close stops the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*Publisher)(nil)
