// Package tui is the controller side view of a profiling session: it polls
// snapshots of the session on a tick and renders the class and method
// inventories while the agent keeps registering.
package tui

import (
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mabhi256/jprof/internal/session"
	"github.com/mabhi256/jprof/utils"
)

type TabType int

const (
	TabClasses TabType = iota
	TabMethods
	TabSession
)

func (t TabType) String() string {
	switch t {
	case TabClasses:
		return "Classes"
	case TabMethods:
		return "Methods"
	case TabSession:
		return "Session"
	default:
		return "Unknown"
	}
}

func GetAllTabs() []TabType {
	return []TabType{TabClasses, TabMethods, TabSession}
}

const (
	historySize  = 120
	chartHeight  = 4
	pageLines    = 10
	defaultTitle = "session"
)

// Snapshotter is anything that can hand out isolated session copies.
type Snapshotter interface {
	Snapshot() session.Snapshot
}

type Config struct {
	Title    string
	Interval time.Duration
	// Progress reports events applied so far; optional.
	Progress func() int64
}

type TickMsg time.Time

// IngestDoneMsg tells the view the event stream has been drained, or failed.
type IngestDoneMsg struct {
	Err error
}

type Model struct {
	src  Snapshotter
	cfg  Config
	help help.Model

	width  int
	height int

	activeTab       TabType
	scrollPositions map[TabType]int
	invokedOnly     bool

	snap       session.Snapshot
	history    []float64
	chart      sparkline.Model
	lastUpdate time.Time
	startTime  time.Time

	done      bool
	ingestErr error
}

func New(src Snapshotter, cfg Config) *Model {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}

	return &Model{
		src:             src,
		cfg:             cfg,
		help:            help.New(),
		scrollPositions: make(map[TabType]int),
		chart:           sparkline.New(historySize, chartHeight),
		startTime:       time.Now(),
	}
}

func (m *Model) Init() tea.Cmd {
	return triggerImmediateTick()
}

func triggerImmediateTick() tea.Cmd {
	return func() tea.Msg {
		return TickMsg(time.Now())
	}
}

func (m *Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.cfg.Interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizeChart()
		return m, nil

	case TickMsg:
		m.refresh(time.Time(msg))
		return m, m.scheduleTick()

	case IngestDoneMsg:
		m.done = true
		m.ingestErr = msg.Err
		m.refresh(time.Now())
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Tab):
		m.activeTab = utils.GetNextEnum(m.activeTab, TabSession)
	case key.Matches(msg, keys.PrevTab):
		m.activeTab = utils.GetPrevEnum(m.activeTab, TabSession)
	case key.Matches(msg, keys.Up):
		m.scrollUp(1)
	case key.Matches(msg, keys.Down):
		m.scrollDown(1)
	case key.Matches(msg, keys.PageUp):
		m.scrollUp(pageLines)
	case key.Matches(msg, keys.PageDown):
		m.scrollDown(pageLines)
	case key.Matches(msg, keys.Invoked):
		m.invokedOnly = !m.invokedOnly
		m.scrollPositions[TabMethods] = 0
	case key.Matches(msg, keys.Refresh):
		m.refresh(time.Now())
	}
	return m, nil
}

// refresh takes a new snapshot and records the method count for the chart.
func (m *Model) refresh(now time.Time) {
	m.snap = m.src.Snapshot()
	m.lastUpdate = now

	m.history = append(m.history, float64(m.snap.RealMethods()))
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
	m.chart.Push(m.history[len(m.history)-1])
}

func (m *Model) resizeChart() {
	w := max(min(m.width-4, historySize), 10)
	m.chart = sparkline.New(w, chartHeight)
	for _, v := range m.history {
		m.chart.Push(v)
	}
}

// Snapshot returns the last snapshot the view rendered.
func (m *Model) Snapshot() session.Snapshot {
	return m.snap
}
