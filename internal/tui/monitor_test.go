package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"lumen/internal/analysis"
	"lumen/internal/app"
	"lumen/internal/controls"
	"lumen/internal/params"

	tea "github.com/charmbracelet/bubbletea"
)

type fakePlayer struct {
	latest     params.VisualParameters
	paused     bool
	seeks      []float64
	randomized int
	recordErr  error
}

func (f *fakePlayer) Status() app.Status {
	return app.Status{Track: "song.wav", Position: 65, Duration: 180, Paused: f.paused, Phase: f.latest.Phase}
}

func (f *fakePlayer) Latest() params.VisualParameters { return f.latest }
func (f *fakePlayer) Peak() float64                   { return 0.5 }
func (f *fakePlayer) SampleRate() float64             { return 44100 }
func (f *fakePlayer) Recording() bool                 { return false }
func (f *fakePlayer) TogglePause() bool               { f.paused = !f.paused; return f.paused }
func (f *fakePlayer) SeekBy(delta float64)            { f.seeks = append(f.seeks, delta) }
func (f *fakePlayer) Randomize() controls.Controls    { f.randomized++; return controls.Defaults() }
func (f *fakePlayer) Snapshot() (string, error)       { return "captures/frame_1.png", nil }
func (f *fakePlayer) Plot() (string, error)           { return "captures/analysis_1.png", nil }
func (f *fakePlayer) Record(float64) (string, error)  { return "", f.recordErr }

func press(t *testing.T, m MonitorModel, k tea.KeyMsg) (MonitorModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(MonitorModel), cmd
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestMonitorKeys(t *testing.T) {
	p := &fakePlayer{}
	m := NewMonitorModel(p, time.Millisecond, nil)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !p.paused || m.message != "paused" {
		t.Errorf("space: paused=%v message=%q", p.paused, m.message)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if len(p.seeks) != 2 || p.seeks[0] != -app.SeekStep || p.seeks[1] != app.SeekStep {
		t.Errorf("seeks = %v, want [-%v %v]", p.seeks, app.SeekStep, app.SeekStep)
	}

	m, _ = press(t, m, runes("r"))
	if p.randomized != 1 {
		t.Errorf("randomized %d times, want 1", p.randomized)
	}

	_, cmd := press(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestMonitorActions(t *testing.T) {
	p := &fakePlayer{recordErr: errors.New("clip already in progress")}
	m := NewMonitorModel(p, time.Millisecond, nil)

	tests := []struct {
		key  string
		want string
	}{
		{"s", "frame_1.png"},
		{"p", "analysis_1.png"},
		{"c", "clip already in progress"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, cmd := press(t, m, runes(tt.key))
			if cmd == nil {
				t.Fatal("no command")
			}
			next, _ := m.Update(cmd())
			got := next.(MonitorModel).message
			if !strings.Contains(got, tt.want) {
				t.Errorf("message = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestMonitorBeatFlash(t *testing.T) {
	p := &fakePlayer{}
	m := NewMonitorModel(p, time.Millisecond, nil)

	p.latest = params.VisualParameters{Tempo: 120, LastBeat: 1.0}
	next, _ := m.Update(tickMsg(time.Now()))
	m = next.(MonitorModel)
	if m.flash != flashTicks {
		t.Fatalf("flash = %d after a new beat, want %d", m.flash, flashTicks)
	}

	for range flashTicks {
		next, _ = m.Update(tickMsg(time.Now()))
		m = next.(MonitorModel)
	}
	if m.flash != 0 {
		t.Errorf("flash = %d after %d quiet ticks, want 0", m.flash, flashTicks)
	}
}

func TestMonitorView(t *testing.T) {
	p := &fakePlayer{latest: params.VisualParameters{
		Tempo:    128,
		Energy:   0.75,
		Phase:    params.Tracking,
		Waveform: []float32{0, 0.5, -1, 0.25},
		Features: &analysis.FeatureFrame{AmplitudeSpectrum: make([]float64, 257)},
	}}
	m := NewMonitorModel(p, time.Millisecond, nil)
	next, _ := m.Update(tickMsg(time.Now()))
	view := next.(MonitorModel).View()

	for _, want := range []string{"song.wav", "1:05 / 3:00", "tracking", "128.0 bpm", "energy", "bass", "treble"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestMonitorQuitsWhenDone(t *testing.T) {
	done := make(chan struct{})
	close(done)
	cmd := waitDone(done)
	next, quit := NewMonitorModel(&fakePlayer{}, 0, done).Update(cmd())
	if !next.(MonitorModel).finished {
		t.Error("model not marked finished")
	}
	if _, ok := quit().(tea.QuitMsg); !ok {
		t.Error("done did not quit")
	}
	if waitDone(nil) != nil {
		t.Error("waitDone(nil) should return no command")
	}
}

func TestSparkline(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		width   int
		want    string
	}{
		{"empty", nil, 3, "▁▁▁"},
		{"silence", []float32{0, 0}, 2, "▁▁"},
		{"full scale", []float32{1, -1}, 2, "██"},
		{"bucket peak", []float32{0, -1, 0, 0}, 2, "█▁"},
		{"wider than data", []float32{1}, 4, "█"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sparkline(tt.samples, tt.width); got != tt.want {
				t.Errorf("sparkline() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClock(t *testing.T) {
	if got := clock(125.9); got != "2:05" {
		t.Errorf("clock(125.9) = %q", got)
	}
	if got := clock(-3); got != "0:00" {
		t.Errorf("clock(-3) = %q", got)
	}
}
