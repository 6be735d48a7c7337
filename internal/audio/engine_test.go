// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"lumen/internal/conditioner"
	"lumen/internal/config"
	"lumen/internal/decode"
	"lumen/internal/params"
	"lumen/pkg/utils"
)

const (
	testSampleRate = 44100
	testFrameSize  = 512
)

func newTestEngine(t *testing.T, seconds float64) (*Engine, *conditioner.Conditioner, *params.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.Audio.FramesPerBuffer = testFrameSize

	n := int(seconds * testSampleRate)
	track := decode.FromSamples("clicks", testSampleRate, utils.GenerateClickTrack(n, testSampleRate/2, 0, 1))
	store := params.NewStore()
	cond := conditioner.New(store)

	e, err := NewEngine(&cfg, track, cond)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, cond, store
}

func TestNewEngine_Validation(t *testing.T) {
	cfg := config.Default()
	track := decode.FromSamples("x", testSampleRate, make([]float32, 1024))
	if _, err := NewEngine(&cfg, nil, conditioner.New(nil)); err == nil {
		t.Error("nil track accepted")
	}
	if _, err := NewEngine(&cfg, track, nil); err == nil {
		t.Error("nil conditioner accepted")
	}
	cfg.Analysis.Window = "Triangle"
	if _, err := NewEngine(&cfg, track, conditioner.New(nil)); err == nil {
		t.Error("unknown window accepted")
	}
}

func TestStep_AdvancesAndPublishes(t *testing.T) {
	e, cond, store := newTestEngine(t, 2)

	for range 10 {
		if !e.Step() {
			t.Fatal("Step() produced no audio")
		}
	}
	wantPos := float64(10*testFrameSize) / testSampleRate
	if math.Abs(e.Position()-wantPos) > 1e-9 {
		t.Errorf("Position() = %v, want %v", e.Position(), wantPos)
	}
	if cond.WarmupFrames() != 10 {
		t.Errorf("WarmupFrames() = %d, want 10", cond.WarmupFrames())
	}
	latest := store.Latest()
	lastStart := float64(9*testFrameSize) / testSampleRate
	if math.Abs(latest.Position-lastStart) > 1e-9 || latest.Phase != params.Warming {
		t.Errorf("published position %v phase %v", latest.Position, latest.Phase)
	}
	if e.Peak() <= 0 {
		t.Error("Peak() = 0 after playing clicks")
	}
}

func TestStep_WritesScaledOutput(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.FramesPerBuffer = testFrameSize
	samples := make([]float32, 4*testFrameSize)
	for i := range samples {
		samples[i] = 0.5
	}
	e, err := NewEngine(&cfg, decode.FromSamples("dc", testSampleRate, samples), conditioner.New(nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	e.SetVolume(0.5)

	if !e.Step() {
		t.Fatal("Step() produced no audio")
	}
	if len(e.scratchOut) != testFrameSize*OutputChannels {
		t.Fatalf("len(scratchOut) = %d, want %d", len(e.scratchOut), testFrameSize*OutputChannels)
	}
	for i, v := range e.scratchOut {
		if v != 0.25 {
			t.Fatalf("scratchOut[%d] = %v, want 0.25", i, v)
		}
	}

	e.Pause()
	e.Step()
	for i, v := range e.scratchOut {
		if v != 0 {
			t.Fatalf("scratchOut[%d] = %v while paused, want 0", i, v)
		}
	}
}

func TestPause_HoldsPositionAndConditioner(t *testing.T) {
	e, cond, _ := newTestEngine(t, 2)
	e.Step()
	e.Pause()
	if !e.Paused() {
		t.Fatal("Paused() = false")
	}

	pos := e.Position()
	for range 5 {
		if e.Step() {
			t.Fatal("Step() produced audio while paused")
		}
	}
	if e.Position() != pos || cond.WarmupFrames() != 1 {
		t.Errorf("position %v warmup %d changed while paused", e.Position(), cond.WarmupFrames())
	}
	if e.Peak() != 0 {
		t.Errorf("Peak() = %v while paused", e.Peak())
	}

	e.Resume()
	if !e.Step() || cond.WarmupFrames() != 2 {
		t.Errorf("resume did not continue processing")
	}
	if got := e.TogglePause(); !got || !e.Paused() {
		t.Errorf("TogglePause() = %v", got)
	}
}

func TestSeek_ResetsConditionerOnNextBlock(t *testing.T) {
	e, cond, _ := newTestEngine(t, 3)
	for range 100 {
		e.Step()
	}
	if cond.WarmupFrames() != 100 {
		t.Fatalf("WarmupFrames() = %d", cond.WarmupFrames())
	}

	e.Seek(1.0)
	if e.Position() != 1.0 {
		t.Errorf("Position() with pending seek = %v, want 1", e.Position())
	}
	// The reset waits for the audio goroutine.
	if cond.WarmupFrames() != 100 {
		t.Errorf("conditioner touched outside the audio cadence")
	}

	e.Step()
	if cond.WarmupFrames() != 1 {
		t.Errorf("WarmupFrames() after seek = %d, want 1", cond.WarmupFrames())
	}
	if cond.Profile().Mean == 0 {
		t.Error("profile not refilled by the first block after seek")
	}
	want := 1.0 + float64(testFrameSize)/testSampleRate
	if math.Abs(e.Position()-want) > 1e-4 {
		t.Errorf("Position() = %v, want %v", e.Position(), want)
	}
}

func TestSeek_Clamps(t *testing.T) {
	e, _, _ := newTestEngine(t, 1)
	e.Seek(-3)
	if e.Position() != 0 {
		t.Errorf("Position() = %v, want 0", e.Position())
	}
	e.Seek(100)
	if math.Abs(e.Position()-e.Track().Seconds()) > 1e-9 {
		t.Errorf("Position() = %v, want %v", e.Position(), e.Track().Seconds())
	}
}

func TestEndOfTrack(t *testing.T) {
	e, _, _ := newTestEngine(t, 0.1)
	blocks := 0
	for e.Step() {
		blocks++
		if blocks > 100 {
			t.Fatal("track never ended")
		}
	}
	select {
	case <-e.Done():
	default:
		t.Fatal("Done() not closed at end of track")
	}
	if !e.Ended() || e.Step() {
		t.Error("engine kept playing past the end")
	}
	want := int(math.Ceil(0.1 * testSampleRate / testFrameSize))
	if blocks != want {
		t.Errorf("played %d blocks, want %d", blocks, want)
	}
}

func TestLoad_ResetsForNewTrack(t *testing.T) {
	e, cond, _ := newTestEngine(t, 0.05)
	for e.Step() {
	}
	oldDone := e.Done()

	next := decode.FromSamples("next", 48000, utils.GenerateSineWave(48000, 48000, 440, 0.5))
	if err := e.Load(next); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if e.SampleRate() != 48000 || e.Position() != 0 || e.Ended() {
		t.Errorf("after Load: rate %d pos %v ended %v", e.SampleRate(), e.Position(), e.Ended())
	}
	if cond.WarmupFrames() != 0 || cond.Tempo() != params.DefaultTempo {
		t.Errorf("conditioner not reset: warmup %d tempo %v", cond.WarmupFrames(), cond.Tempo())
	}
	select {
	case <-e.Done():
		t.Error("Done() of the new track already closed")
	default:
	}
	select {
	case <-oldDone:
	default:
		t.Error("Done() of the old track reopened")
	}
	if !e.Step() {
		t.Error("Step() after Load produced nothing")
	}
	if err := e.Load(nil); err == nil {
		t.Error("Load(nil) succeeded")
	}
}

func TestHeadlessClock(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Headless = true
	cfg.Audio.FramesPerBuffer = 256
	track := decode.FromSamples("tone", 8000, utils.GenerateSineWave(8000, 8000, 440, 0.5))
	e, err := NewEngine(&cfg, track, conditioner.New(nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := e.Start(); err == nil {
		t.Error("second Start() succeeded")
	}

	deadline := time.Now().Add(2 * time.Second)
	for e.Position() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("headless clock never advanced")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	pos := e.Position()
	time.Sleep(3 * e.BlockDuration())
	if e.Position() != pos {
		t.Error("clock still running after Close")
	}
}

func TestRecording(t *testing.T) {
	e, _, _ := newTestEngine(t, 1)
	path := filepath.Join(t.TempDir(), "clip.wav")

	if err := e.StartRecording(path, 12); err == nil {
		t.Error("bit depth 12 accepted")
	}
	if err := e.StartRecording(path, 16); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if err := e.StartRecording(path, 16); err == nil {
		t.Error("second StartRecording() succeeded")
	}
	if !e.Recording() {
		t.Error("Recording() = false")
	}

	for range 10 {
		e.Step()
	}
	frames, err := e.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording() error = %v", err)
	}
	if frames != 10*testFrameSize {
		t.Errorf("frames = %d, want %d", frames, 10*testFrameSize)
	}
	if n, err := e.StopRecording(); n != 0 || err != nil {
		t.Errorf("second StopRecording() = %d, %v", n, err)
	}

	track, err := decode.File(path)
	if err != nil {
		t.Fatalf("decode recording: %v", err)
	}
	if track.SampleRate != testSampleRate || len(track.Samples) != frames {
		t.Errorf("recording has %d samples at %d Hz", len(track.Samples), track.SampleRate)
	}
}

func TestRecording_SkipsPausedBlocks(t *testing.T) {
	e, _, _ := newTestEngine(t, 1)
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := e.StartRecording(path, 16); err != nil {
		t.Fatal(err)
	}
	e.Step()
	e.Pause()
	e.Step()
	e.Step()
	frames, err := e.StopRecording()
	if err != nil {
		t.Fatal(err)
	}
	if frames != testFrameSize {
		t.Errorf("frames = %d, want %d", frames, testFrameSize)
	}
}
