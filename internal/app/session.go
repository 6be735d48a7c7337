// SPDX-License-Identifier: MIT

// Package app wires a playing track through analysis, conditioning and
// rendering out to the configured transports, and exposes the actions the
// terminal UI and network clients trigger.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lumen/internal/audio"
	"lumen/internal/conditioner"
	"lumen/internal/config"
	"lumen/internal/controls"
	"lumen/internal/decode"
	"lumen/internal/export"
	"lumen/internal/log"
	"lumen/internal/params"
	"lumen/internal/render"
	"lumen/internal/transport"
	"lumen/internal/transport/udp"
)

var logger = log.Component("app")

// SeekStep is the distance of one scrub step in seconds.
const SeekStep = 5.0

// Status is a point-in-time view of playback.
type Status struct {
	Track    string       `json:"track"`
	Position float64      `json:"position"`
	Duration float64      `json:"duration"`
	Paused   bool         `json:"paused"`
	Phase    params.Phase `json:"phase"`
	Tempo    float64      `json:"tempo"`
}

// Session owns one playback pipeline and its outputs.
type Session struct {
	cfg      *config.Config
	params   *params.Store
	controls *controls.Store
	cond     *conditioner.Conditioner
	engine   *audio.Engine
	renderer *render.Renderer
	loop     *render.Loop
	clipper  *export.Clipper

	transports []transport.Transport
	ws         *transport.WebSocketTransport
	sender     *udp.Sender
	publisher  *udp.Publisher

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	loopWG  sync.WaitGroup
	clip    *export.Clip
	started bool
}

// New builds the pipeline for track. Nothing plays until Start.
func New(cfg *config.Config, track *decode.Track) (*Session, error) {
	initial := controls.Defaults()
	if cfg.Render.Controls != "" {
		c, err := controls.LoadFile(cfg.Render.Controls)
		if err != nil {
			return nil, err
		}
		initial = c
	}
	seed := cfg.Render.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Session{
		cfg:      cfg,
		params:   params.NewStore(),
		controls: controls.NewStore(initial, seed),
		ctx:      context.Background(),
	}
	s.cond = conditioner.New(s.params)

	engine, err := audio.NewEngine(cfg, track, s.cond)
	if err != nil {
		return nil, fmt.Errorf("failed to create playback engine: %w", err)
	}
	s.engine = engine
	if cfg.Render.RandomizeOnLoad {
		s.controls.Randomize()
	}

	s.renderer = render.NewRenderer(s.params, s.controls, engine, render.Config{
		Width:  cfg.Render.Width,
		Height: cfg.Render.Height,
	})
	s.loop = render.NewLoop(s.renderer, cfg.Render.TargetFPS)
	s.clipper = export.NewClipper(cfg.Export.OutputDir, cfg.Export.BitDepth, engine, s.loop)
	return s, nil
}

// Start opens the transports, starts playback and the render loop. Any
// transport that cannot be opened fails the start.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("session already started")
	}

	if err := s.openTransports(); err != nil {
		s.closeTransports()
		return err
	}
	if err := s.engine.Start(); err != nil {
		s.closeTransports()
		return fmt.Errorf("failed to start playback: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.loopWG.Add(1)
	go func() {
		defer s.loopWG.Done()
		if err := s.loop.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnf("render loop: %v", err)
		}
	}()
	s.started = true
	logger.Infof("playing %q (%.1fs)", s.engine.Track().Name, s.engine.Track().Seconds())
	return nil
}

func (s *Session) openTransports() error {
	t := s.cfg.Transport
	if t.WSEnabled {
		ws, err := transport.NewWebSocketTransport(t.WSAddr, s.HandleCommand)
		if err != nil {
			return fmt.Errorf("failed to start websocket transport: %w", err)
		}
		s.ws = ws
		s.addTransport(ws)
	}
	if t.UDPEnabled {
		sender, err := udp.NewSender(t.UDPTargetAddress)
		if err != nil {
			return fmt.Errorf("failed to open udp sender: %w", err)
		}
		s.sender = sender
		pub, err := udp.NewPublisher(t.UDPSendInterval, sender, s.loop)
		if err != nil {
			return fmt.Errorf("failed to create udp publisher: %w", err)
		}
		s.publisher = pub
		pub.Start()
	}
	if t.LogFrames {
		s.addTransport(transport.NewLoggingTransport(transport.DefaultLogEvery))
	}
	return nil
}

func (s *Session) addTransport(t transport.Transport) {
	s.transports = append(s.transports, t)
	s.loop.AddSink(t)
}

func (s *Session) closeTransports() error {
	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
		s.publisher = nil
	}
	if s.sender != nil {
		errs = append(errs, s.sender.Close())
		s.sender = nil
	}
	for _, t := range s.transports {
		s.loop.RemoveSink(t)
		errs = append(errs, t.Close())
	}
	s.transports = nil
	s.ws = nil
	return errors.Join(errs...)
}

// Done is closed when the current track has played to the end.
func (s *Session) Done() <-chan struct{} { return s.engine.Done() }

// Wait blocks until ctx is cancelled or the track ends.
func (s *Session) Wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.Done():
		logger.Infof("playback finished")
	}
}

// Close finishes any clip in progress, stops the render loop and playback and
// closes the transports.
func (s *Session) Close() error {
	s.mu.Lock()
	clip := s.clip
	s.mu.Unlock()
	if clip != nil {
		clip.Stop()
		<-clip.Done()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.loopWG.Wait()
	}
	err := s.closeTransports()
	s.started = false
	return errors.Join(err, s.engine.Close())
}

// WebSocketAddr returns the address the websocket transport listens on, or
// "" when it is disabled.
func (s *Session) WebSocketAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ws == nil {
		return ""
	}
	return s.ws.Addr()
}

// Latest returns the newest conditioned parameters.
func (s *Session) Latest() params.VisualParameters { return s.params.Latest() }

// Controls returns the current controls.
func (s *Session) Controls() controls.Controls { return s.controls.Get() }

// LatestFrame returns the last rendered frame.
func (s *Session) LatestFrame() (render.Frame, bool) { return s.loop.LatestFrame() }

func (s *Session) Paused() bool                 { return s.engine.Paused() }
func (s *Session) TogglePause() bool            { return s.engine.TogglePause() }
func (s *Session) Position() float64            { return s.engine.Position() }
func (s *Session) Duration() time.Duration      { return s.engine.Duration() }
func (s *Session) Peak() float64                { return s.engine.Peak() }
func (s *Session) SampleRate() float64          { return float64(s.engine.SampleRate()) }
func (s *Session) Recording() bool              { return s.clipper.Active() }
func (s *Session) Randomize() controls.Controls { return s.controls.Randomize() }

// SeekBy scrubs relative to the current position.
func (s *Session) SeekBy(delta float64) { s.engine.Seek(s.engine.Position() + delta) }

// Status reports the playback state.
func (s *Session) Status() Status {
	p := s.params.Latest()
	return Status{
		Track:    s.engine.Track().Name,
		Position: s.engine.Position(),
		Duration: s.engine.Duration().Seconds(),
		Paused:   s.engine.Paused(),
		Phase:    p.Phase,
		Tempo:    p.Tempo,
	}
}

// Load decodes path and switches playback to it.
func (s *Session) Load(path string) error {
	track, err := decode.File(path)
	if err != nil {
		return err
	}
	if err := s.engine.Load(track); err != nil {
		return fmt.Errorf("failed to load %q: %w", path, err)
	}
	if s.cfg.Render.RandomizeOnLoad {
		s.controls.Randomize()
	}
	return nil
}

// Snapshot writes the latest frame as a preview PNG.
func (s *Session) Snapshot() (string, error) {
	f, ok := s.loop.LatestFrame()
	if !ok {
		return "", errors.New("no frame rendered yet")
	}
	return export.SnapshotPNG(s.cfg.Export.OutputDir, f, s.cfg.Render.PreviewWidth, s.cfg.Render.PreviewHeight)
}

// Plot writes the waveform and spectrum of the latest block.
func (s *Session) Plot() (string, error) {
	return export.PlotPNG(s.cfg.Export.OutputDir, s.params.Latest(), s.SampleRate(), time.Now())
}

// Record starts a clip of seconds, or the configured length when seconds is
// not positive, and returns the audio file it writes.
func (s *Session) Record(seconds float64) (string, error) {
	if seconds <= 0 {
		seconds = s.cfg.Export.ClipSeconds
	}
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	clip, err := s.clipper.Start(ctx, seconds)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.clip = clip
	s.mu.Unlock()

	path, _ := clip.Paths()
	return path, nil
}

// HandleCommand executes a client command and returns the reply payload.
func (s *Session) HandleCommand(cmd transport.Command) (any, error) {
	switch cmd.Type {
	case transport.CmdControls:
		if err := s.controls.Merge(cmd.Controls); err != nil {
			return nil, err
		}
		return s.controls.Get(), nil
	case transport.CmdRandomize:
		return s.Randomize(), nil
	case transport.CmdPause:
		s.engine.Pause()
		return s.Status(), nil
	case transport.CmdResume:
		s.engine.Resume()
		return s.Status(), nil
	case transport.CmdSeek:
		s.engine.Seek(cmd.Seconds)
		return s.Status(), nil
	case transport.CmdSnapshot:
		path, err := s.Snapshot()
		if err != nil {
			return nil, err
		}
		return map[string]string{"path": path}, nil
	case transport.CmdRecord:
		path, err := s.Record(cmd.Seconds)
		if err != nil {
			return nil, err
		}
		return map[string]string{"path": path}, nil
	}
	return nil, fmt.Errorf("unknown command type %q", cmd.Type)
}
