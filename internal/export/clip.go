// SPDX-License-Identifier: MIT
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"lumen/internal/render"
)

// Clip length bounds in seconds.
const (
	MinClipSeconds = 10
	MaxClipSeconds = 60
)

// ErrClipActive is returned when a clip is requested while one is running.
var ErrClipActive = errors.New("clip already recording")

// Player is the playback surface a clip needs.
type Player interface {
	StartRecording(path string, bitDepth int) error
	StopRecording() (int, error)
	Paused() bool
	Pause()
	Resume()
	Position() float64
	Seek(seconds float64)
}

// FrameBus delivers rendered frames to sinks.
type FrameBus interface {
	AddSink(render.Sink)
	RemoveSink(render.Sink)
}

// ClipResult describes a finished clip.
type ClipResult struct {
	AudioPath   string        `json:"audioPath"`
	FramesPath  string        `json:"framesPath"`
	Start       float64       `json:"start"` // Playback seconds where the clip began.
	Duration    time.Duration `json:"duration"`
	AudioFrames int           `json:"audioFrames"`
	Frames      int           `json:"frames"`
}

// Clipper records fixed-length clips of the played audio and the uniform
// stream. One clip runs at a time.
type Clipper struct {
	dir      string
	bitDepth int
	player   Player
	bus      FrameBus

	// after is replaced in tests.
	after func(time.Duration) <-chan time.Time

	mu     sync.Mutex
	active *Clip
}

// NewClipper returns a Clipper writing to dir.
func NewClipper(dir string, bitDepth int, player Player, bus FrameBus) *Clipper {
	return &Clipper{
		dir:      dir,
		bitDepth: bitDepth,
		player:   player,
		bus:      bus,
		after:    time.After,
	}
}

// Active reports whether a clip is being recorded.
func (c *Clipper) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Clip is a recording in progress.
type Clip struct {
	done   chan struct{}
	stop   chan struct{}
	once   sync.Once
	result ClipResult
	err    error
}

// Done is closed when the clip has been written.
func (c *Clip) Done() <-chan struct{} { return c.done }

// Stop ends the clip early.
func (c *Clip) Stop() { c.once.Do(func() { close(c.stop) }) }

// Paths returns the files the clip is written to. They are fixed when the clip
// starts.
func (c *Clip) Paths() (audio, frames string) { return c.result.AudioPath, c.result.FramesPath }

// Result waits for the clip and returns what was written.
func (c *Clip) Result() (ClipResult, error) {
	<-c.done
	return c.result, c.err
}

// Start records seconds of playback from the current position, clamped to
// [MinClipSeconds, MaxClipSeconds]. Playback is resumed for the clip if it
// was paused, and the pause state and position are restored afterwards.
func (c *Clipper) Start(ctx context.Context, seconds float64) (*Clip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return nil, ErrClipActive
	}

	seconds = max(MinClipSeconds, min(MaxClipSeconds, seconds))
	duration := time.Duration(seconds * float64(time.Second))

	now := time.Now()
	audioPath, err := fileName(c.dir, "clip", ".wav", now)
	if err != nil {
		return nil, err
	}
	framesPath := strings.TrimSuffix(audioPath, ".wav") + ".jsonl"

	sink, err := newFrameWriter(framesPath, now)
	if err != nil {
		return nil, err
	}
	if err := c.player.StartRecording(audioPath, c.bitDepth); err != nil {
		sink.close()
		os.Remove(framesPath)
		return nil, fmt.Errorf("start clip audio: %w", err)
	}

	wasPlaying := !c.player.Paused()
	start := c.player.Position()
	c.bus.AddSink(sink)
	if !wasPlaying {
		c.player.Resume()
	}

	clip := &Clip{
		done: make(chan struct{}),
		stop: make(chan struct{}),
		result: ClipResult{
			AudioPath:  audioPath,
			FramesPath: framesPath,
			Start:      start,
			Duration:   duration,
		},
	}
	c.active = clip
	logger.Infof("recording %v clip from %.2fs to %s", duration, start, audioPath)

	timer := c.after(duration)
	go func() {
		select {
		case <-timer:
		case <-clip.stop:
		case <-ctx.Done():
		}
		c.finish(clip, sink, wasPlaying, start)
	}()
	return clip, nil
}

func (c *Clipper) finish(clip *Clip, sink *frameWriter, wasPlaying bool, start float64) {
	c.bus.RemoveSink(sink)
	audioFrames, audioErr := c.player.StopRecording()
	frames, framesErr := sink.close()

	if !wasPlaying {
		c.player.Pause()
		c.player.Seek(start)
	}

	clip.result.AudioFrames = audioFrames
	clip.result.Frames = frames
	clip.err = errors.Join(audioErr, framesErr)

	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()

	if clip.err != nil {
		logger.Errorf("clip %s: %v", clip.result.AudioPath, clip.err)
	} else {
		logger.Infof("clip saved: %s (%d audio frames), %s (%d frames)",
			clip.result.AudioPath, audioFrames, clip.result.FramesPath, frames)
	}
	close(clip.done)
}

// frameLine is one JSONL record of a clip.
type frameLine struct {
	Seq      uint64          `json:"seq"`
	T        float64         `json:"t"` // Seconds since the clip started.
	Position float64         `json:"position"`
	Paused   bool            `json:"paused"`
	Uniforms render.Uniforms `json:"uniforms"`
	Palette  [3]string       `json:"palette"`
}

// frameWriter is a render.Sink writing frames as JSON lines.
type frameWriter struct {
	mu    sync.Mutex
	file  *os.File
	buf   *bufio.Writer
	enc   *json.Encoder
	start time.Time
	count int
	err   error
}

func newFrameWriter(path string, start time.Time) (*frameWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create clip frames: %w", err)
	}
	buf := bufio.NewWriter(file)
	return &frameWriter{file: file, buf: buf, enc: json.NewEncoder(buf), start: start}, nil
}

// Send implements render.Sink.
func (w *frameWriter) Send(data any) error {
	f, ok := data.(render.Frame)
	if !ok {
		return fmt.Errorf("unexpected %T", data)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil || w.err != nil {
		return w.err
	}
	w.err = w.enc.Encode(frameLine{
		Seq:      f.Seq,
		T:        f.Timestamp.Sub(w.start).Seconds(),
		Position: f.Position,
		Paused:   f.Paused,
		Uniforms: f.Uniforms,
		Palette:  f.Palette,
	})
	if w.err == nil {
		w.count++
	}
	return w.err
}

func (w *frameWriter) close() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return w.count, w.err
	}
	err := errors.Join(w.err, w.buf.Flush(), w.file.Close())
	w.file = nil
	return w.count, err
}
