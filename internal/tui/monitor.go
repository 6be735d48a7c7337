package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"lumen/internal/analysis"
	"lumen/internal/app"
	"lumen/internal/controls"
	"lumen/internal/params"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultRefresh is how often the monitor redraws.
const DefaultRefresh = 50 * time.Millisecond

const (
	labelWidth   = 8
	meterWidth   = 32
	flashTicks   = 4
	sparkWidth   = 64
	minViewWidth = 48
)

var (
	meterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5C5C5C"))
	recStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4F4F")).Bold(true)
	flashStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1A1A1A")).Background(lipgloss.Color("#F25D94")).Bold(true)
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Player is what the monitor drives.
type Player interface {
	Latest() params.VisualParameters
	Status() app.Status
	Peak() float64
	SampleRate() float64
	Recording() bool
	TogglePause() bool
	SeekBy(delta float64)
	Randomize() controls.Controls
	Snapshot() (string, error)
	Plot() (string, error)
	Record(seconds float64) (string, error)
}

type monitorKeys struct {
	Pause     key.Binding
	Back      key.Binding
	Forward   key.Binding
	Randomize key.Binding
	Snapshot  key.Binding
	Plot      key.Binding
	Clip      key.Binding
	Quit      key.Binding
}

func (k monitorKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Back, k.Forward, k.Randomize, k.Snapshot, k.Plot, k.Clip, k.Quit}
}

func (k monitorKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

func newMonitorKeys() monitorKeys {
	return monitorKeys{
		Pause:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause")),
		Back:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "-5s")),
		Forward:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "+5s")),
		Randomize: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "randomize")),
		Snapshot:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "snapshot")),
		Plot:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "plot")),
		Clip:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clip")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type tickMsg time.Time

type actionMsg struct {
	text string
	err  error
}

type doneMsg struct{}

// MonitorModel shows the conditioned parameters live and maps keys onto
// playback and export actions.
type MonitorModel struct {
	player  Player
	refresh time.Duration
	done    <-chan struct{}
	keys    monitorKeys
	help    help.Model
	width   int

	status    app.Status
	latest    params.VisualParameters
	bands     []analysis.BandLevel
	peak      float64
	recording bool
	lastBeat  float64
	flash     int
	message   string
	finished  bool
}

// NewMonitorModel returns a monitor for player. done, if not nil, ends the
// program when closed.
func NewMonitorModel(player Player, refresh time.Duration, done <-chan struct{}) MonitorModel {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return MonitorModel{
		player:  player,
		refresh: refresh,
		done:    done,
		keys:    newMonitorKeys(),
		help:    help.New(),
		width:   80,
	}
}

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitDone(done <-chan struct{}) tea.Cmd {
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		<-done
		return doneMsg{}
	}
}

// Init starts the refresh ticker.
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.tick(), waitDone(m.done))
}

// Update handles refresh ticks, action results and keys.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tickMsg:
		m.refreshState()
		return m, m.tick()

	case doneMsg:
		m.finished = true
		return m, tea.Quit

	case actionMsg:
		if msg.err != nil {
			m.message = "error: " + msg.err.Error()
		} else {
			m.message = msg.text
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m MonitorModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.player
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Pause):
		if p.TogglePause() {
			m.message = "paused"
		} else {
			m.message = "playing"
		}
	case key.Matches(msg, m.keys.Back):
		p.SeekBy(-app.SeekStep)
	case key.Matches(msg, m.keys.Forward):
		p.SeekBy(app.SeekStep)
	case key.Matches(msg, m.keys.Randomize):
		p.Randomize()
		m.message = "controls randomized"
	case key.Matches(msg, m.keys.Snapshot):
		return m, runAction("snapshot", p.Snapshot)
	case key.Matches(msg, m.keys.Plot):
		return m, runAction("plot", p.Plot)
	case key.Matches(msg, m.keys.Clip):
		return m, runAction("recording clip", func() (string, error) { return p.Record(0) })
	}
	return m, nil
}

// runAction runs a file-writing action off the update loop.
func runAction(what string, fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		path, err := fn()
		if err != nil {
			return actionMsg{err: fmt.Errorf("%s: %w", what, err)}
		}
		return actionMsg{text: what + " → " + path}
	}
}

func (m *MonitorModel) refreshState() {
	m.status = m.player.Status()
	m.latest = m.player.Latest()
	m.peak = m.player.Peak()
	m.recording = m.player.Recording()

	if m.latest.Features != nil {
		m.bands = analysis.BandLevels(m.latest.Features.AmplitudeSpectrum, m.player.SampleRate(), analysis.DefaultBands)
	} else {
		m.bands = nil
	}

	if m.flash > 0 {
		m.flash--
	}
	if m.latest.LastBeat > 0 && m.latest.LastBeat != m.lastBeat {
		m.flash = flashTicks
	}
	m.lastBeat = m.latest.LastBeat
}

// View renders the monitor.
func (m MonitorModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("lumen · " + m.status.Track))
	sb.WriteString("\n\n")

	state := "▶ playing"
	if m.status.Paused {
		state = "⏸ paused"
	}
	line := fmt.Sprintf("%s  %s / %s  %s", state,
		clock(m.status.Position), clock(m.status.Duration), m.status.Phase)
	if m.recording {
		line += "  " + recStyle.Render("● REC")
	}
	sb.WriteString(infoStyle.Render(line))
	sb.WriteString("\n\n")

	beat := dimStyle.Render(" beat ")
	if m.flash > 0 {
		beat = flashStyle.Render(" beat ")
	}
	sb.WriteString(fmt.Sprintf("%-*s %6.1f bpm  %s\n", labelWidth, "tempo", m.latest.Tempo, beat))
	sb.WriteString(m.meter("energy", m.latest.Energy))
	sb.WriteString(m.meter("tone", m.latest.Tone))
	sb.WriteString(m.meter("low", m.latest.LowBand))
	sb.WriteString(m.meter("peak", m.peak))
	sb.WriteString(fmt.Sprintf("%-*s %+6.2f\n", labelWidth, "z", m.latest.LoudnessZ))
	sb.WriteString("\n")

	for _, b := range m.bands {
		sb.WriteString(m.meter(b.Name, b.Level))
	}
	if len(m.bands) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString(meterStyle.Render(sparkline(m.latest.Waveform, min(sparkWidth, max(minViewWidth, m.width)-2))))
	sb.WriteString("\n\n")

	if m.finished {
		sb.WriteString(highlightStyle.Render("playback finished"))
		sb.WriteString("\n")
	} else if m.message != "" {
		sb.WriteString(highlightStyle.Render(m.message))
		sb.WriteString("\n")
	}
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m MonitorModel) meter(label string, v float64) string {
	v = math.Max(0, math.Min(1, v))
	filled := int(math.Round(v * meterWidth))
	bar := meterStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", meterWidth-filled))
	return fmt.Sprintf("%-*s %s %.2f\n", labelWidth, label, bar, v)
}

// sparkline draws samples in [-1, 1] as width block characters, taking the
// peak magnitude of each bucket.
func sparkline(samples []float32, width int) string {
	if len(samples) == 0 || width <= 0 {
		return strings.Repeat(string(sparkRunes[0]), max(width, 0))
	}
	width = min(width, len(samples))
	out := make([]rune, width)
	for i := range out {
		lo := i * len(samples) / width
		hi := (i + 1) * len(samples) / width
		var peak float64
		for _, s := range samples[lo:hi] {
			peak = math.Max(peak, math.Abs(float64(s)))
		}
		idx := int(math.Min(1, peak) * float64(len(sparkRunes)-1))
		out[i] = sparkRunes[idx]
	}
	return string(out)
}

func clock(seconds float64) string {
	s := int(math.Max(0, seconds))
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// RunMonitor runs the monitor until the user quits or done is closed.
func RunMonitor(player Player, done <-chan struct{}) error {
	p := tea.NewProgram(NewMonitorModel(player, DefaultRefresh, done), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
