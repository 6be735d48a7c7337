// SPDX-License-Identifier: MIT
/*
Package audio plays a decoded track and drives the analysis chain at the
audio cadence.

Each block of FramesPerBuffer samples is copied to the output stream, run
through feature extraction and onset detection, and handed to the signal
conditioner with the block's start position. A headless clock can stand in
for the output device.

Thread Safety:
  - The conditioner and analysis processors are only touched by the audio
    goroutine (PortAudio callback or headless clock).
  - Seeks requested from other goroutines are handed over through an atomic
    and applied before the next block.
  - Pause, volume, position and recording state are atomics.
*/
package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"lumen/internal/analysis"
	"lumen/internal/conditioner"
	"lumen/internal/config"
	"lumen/internal/decode"
	"lumen/internal/log"

	"github.com/gordonklaus/portaudio"
)

var logger = log.Component("audio")

// OutputChannels is the channel count of the playback stream. The mono
// track is duplicated across them.
const OutputChannels = 2

const noSeek = -1

// endSignal is closed once per loaded track.
type endSignal struct {
	ch   chan struct{}
	once sync.Once
}

// Engine plays one track at a time.
type Engine struct {
	cfg         config.AudioConfig
	analysisCfg config.AnalysisConfig
	blockSize   int

	cond     *conditioner.Conditioner
	features *analysis.FeatureExtractor
	onsets   *analysis.OnsetDetector
	track    atomic.Pointer[decode.Track]

	pos    atomic.Int64 // Sample index of the next block.
	seekTo atomic.Int64 // Pending seek target in samples, or noSeek.
	paused atomic.Bool
	ended  atomic.Bool
	volume level
	peak   level
	rec    atomic.Pointer[recorder]

	block      []float32 // Mono scratch block, audio goroutine only.
	scratchOut []float32 // Interleaved output filled by Step.

	end atomic.Pointer[endSignal]

	mu        sync.Mutex // Guards the stream and clock.
	stream    *portaudio.Stream
	clockStop chan struct{}
	clockWG   sync.WaitGroup
}

// NewEngine prepares playback of track and wires the analysis chain into
// cond. Nothing runs until Start.
func NewEngine(cfg *config.Config, track *decode.Track, cond *conditioner.Conditioner) (*Engine, error) {
	if track == nil {
		return nil, errors.New("no track")
	}
	if cond == nil {
		return nil, errors.New("no conditioner")
	}

	e := &Engine{
		cfg:         cfg.Audio,
		analysisCfg: cfg.Analysis,
		blockSize:   cfg.Audio.FramesPerBuffer,
		cond:        cond,
		block:       make([]float32, cfg.Audio.FramesPerBuffer),
		scratchOut:  make([]float32, cfg.Audio.FramesPerBuffer*OutputChannels),
	}
	e.volume.store(cfg.Audio.Volume)
	e.seekTo.Store(noSeek)
	if err := e.install(track); err != nil {
		return nil, err
	}
	return e, nil
}

// install swaps in a track and a matching analysis chain. The audio
// goroutine must not be running.
func (e *Engine) install(track *decode.Track) error {
	window, err := analysis.ParseWindowFunc(e.analysisCfg.Window)
	if err != nil {
		return err
	}
	sr := float64(track.SampleRate)

	features, err := analysis.NewFeatureExtractor(analysis.FeatureConfig{
		FrameSize:    e.blockSize,
		SampleRate:   sr,
		Window:       window,
		MelBands:     e.analysisCfg.MelBands,
		Coefficients: e.analysisCfg.Coefficients,
	})
	if err != nil {
		return fmt.Errorf("feature extractor: %w", err)
	}
	onsets, err := analysis.NewOnsetDetector(analysis.OnsetConfig{
		FrameSize:   e.blockSize,
		SampleRate:  sr,
		Window:      window,
		Threshold:   e.analysisCfg.OnsetThreshold,
		SilenceDB:   e.analysisCfg.SilenceDB,
		MinInterval: e.analysisCfg.MinOnsetGap,
		History:     e.analysisCfg.AdaptiveWindow,
	})
	if err != nil {
		return fmt.Errorf("onset detector: %w", err)
	}

	e.features = features
	e.onsets = onsets
	e.track.Store(track)
	e.pos.Store(0)
	e.seekTo.Store(noSeek)
	e.ended.Store(false)

	e.end.Store(&endSignal{ch: make(chan struct{})})

	e.cond.Load()
	logger.Infof("loaded %q: %.1fs at %d Hz", track.Name, track.Seconds(), track.SampleRate)
	return nil
}

// Track returns the current track.
func (e *Engine) Track() *decode.Track { return e.track.Load() }

// SampleRate returns the current track's sample rate.
func (e *Engine) SampleRate() int { return e.track.Load().SampleRate }

// BlockDuration is the playback time covered by one block.
func (e *Engine) BlockDuration() time.Duration {
	return time.Duration(float64(e.blockSize) / float64(e.SampleRate()) * float64(time.Second))
}

// Start begins playback on the configured output device, or on a headless
// clock when the configuration asks for one.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream != nil || e.clockStop != nil {
		return errors.New("engine already started")
	}
	if e.cfg.Headless {
		e.startClock()
		return nil
	}
	return e.startStream()
}

func (e *Engine) startStream() error {
	device, err := OutputDevice(e.cfg.OutputDevice)
	if err != nil {
		return err
	}
	latency := device.DefaultHighOutputLatency
	if e.cfg.LowLatency {
		latency = device.DefaultLowOutputLatency
	}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Channels: OutputChannels,
			Device:   device,
			Latency:  latency,
		},
		FramesPerBuffer: e.blockSize,
		SampleRate:      float64(e.SampleRate()),
	}

	stream, err := portaudio.OpenStream(params, e.processOutputStream)
	if err != nil {
		return fmt.Errorf("open output stream on %s: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start output stream: %w", err)
	}
	e.stream = stream
	logger.Infof("playing on %s (%d frames, %v latency)", device.Name, e.blockSize, latency)
	return nil
}

func (e *Engine) startClock() {
	stop := make(chan struct{})
	e.clockStop = stop
	interval := e.BlockDuration()

	e.clockWG.Add(1)
	go func() {
		defer e.clockWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		out := make([]float32, e.blockSize*OutputChannels)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.process(out)
			}
		}
	}()
	logger.Infof("headless clock running, one block every %v", interval)
}

// stop halts the stream or clock. e.mu must be held.
func (e *Engine) stop() error {
	if e.clockStop != nil {
		close(e.clockStop)
		e.clockStop = nil
		e.clockWG.Wait()
	}
	if e.stream != nil {
		stream := e.stream
		e.stream = nil
		if err := stream.Stop(); err != nil {
			stream.Close()
			return err
		}
		return stream.Close()
	}
	return nil
}

// processOutputStream is the PortAudio callback.
func (e *Engine) processOutputStream(out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	e.process(out)
}

// Step processes one block synchronously and returns whether audio was
// produced. It must not be called while the engine is started.
func (e *Engine) Step() bool {
	return e.process(e.scratchOut)
}

// process fills out with the next interleaved block and runs the analysis
// chain on it.
func (e *Engine) process(out []float32) bool {
	if s := e.seekTo.Swap(noSeek); s != noSeek {
		e.pos.Store(s)
		e.ended.Store(false)
		e.cond.Reset()
		e.onsets.Reset()
	}

	if e.paused.Load() || e.ended.Load() {
		clear(out)
		e.peak.store(0)
		return false
	}

	track := e.track.Load()
	start := e.pos.Load()
	n := copy(e.block, track.Samples[min(int(start), len(track.Samples)):])
	clear(e.block[n:])
	e.pos.Store(start + int64(n))

	scaleInterleaved(out, e.block[:n], len(out)/max(1, e.blockSize), float32(e.volume.load()))
	e.peak.store(float64(peakOf(e.block[:n])))

	now := float64(start) / float64(track.SampleRate)
	e.cond.OnFeatureFrame(e.features.Extract(e.block))
	e.cond.OnOnsetFrame(e.block, e.onsets.Detect(e.block), now)
	e.record(e.block[:n])

	if int(start)+n >= len(track.Samples) {
		e.finish()
	}
	return n > 0
}

func (e *Engine) finish() {
	if e.ended.Swap(true) {
		return
	}
	sig := e.end.Load()
	sig.once.Do(func() { close(sig.ch) })
	logger.Infof("end of track")
}

// Done is closed when the current track has played to the end. A Load
// installs a new channel.
func (e *Engine) Done() <-chan struct{} { return e.end.Load().ch }

// Pause silences output and stops analysis. The conditioner keeps its state.
func (e *Engine) Pause() {
	if !e.paused.Swap(true) {
		logger.Debugf("paused at %.2fs", e.Position())
	}
}

// Resume continues playback after Pause.
func (e *Engine) Resume() {
	if e.paused.Swap(false) {
		logger.Debugf("resumed at %.2fs", e.Position())
	}
}

// TogglePause flips the paused state and returns the new state.
func (e *Engine) TogglePause() bool {
	for {
		p := e.paused.Load()
		if e.paused.CompareAndSwap(p, !p) {
			return !p
		}
	}
}

// Paused reports whether playback is paused.
func (e *Engine) Paused() bool { return e.paused.Load() }

// Ended reports whether the current track has played to the end.
func (e *Engine) Ended() bool { return e.ended.Load() }

// Seek moves playback to seconds, clamped to the track. The conditioner and
// onset detector are reset on the audio goroutine before the next block.
func (e *Engine) Seek(seconds float64) {
	track := e.track.Load()
	s := int64(seconds * float64(track.SampleRate))
	s = max(0, min(s, int64(len(track.Samples))))
	e.seekTo.Store(s)
	logger.Debugf("seek to %.2fs", float64(s)/float64(track.SampleRate))
}

// Position returns the playback position in seconds, including a pending seek.
func (e *Engine) Position() float64 {
	track := e.track.Load()
	s := e.seekTo.Load()
	if s == noSeek {
		s = e.pos.Load()
	}
	return float64(s) / float64(track.SampleRate)
}

// Duration returns the length of the current track.
func (e *Engine) Duration() time.Duration { return e.track.Load().Duration }

// Load replaces the track. A running stream is torn down and reopened at the
// new track's sample rate. The conditioner is fully reset for the new track.
func (e *Engine) Load(track *decode.Track) error {
	if track == nil {
		return errors.New("no track")
	}
	e.mu.Lock()
	wasClock := e.clockStop != nil
	wasStream := e.stream != nil
	if err := e.stop(); err != nil {
		logger.Warnf("stopping stream for load: %v", err)
	}
	e.mu.Unlock()

	if err := e.install(track); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case wasClock:
		e.startClock()
	case wasStream:
		return e.startStream()
	}
	return nil
}

// Close stops recording and playback.
func (e *Engine) Close() error {
	_, recErr := e.StopRecording()

	e.mu.Lock()
	err := e.stop()
	e.mu.Unlock()

	return errors.Join(recErr, err)
}
