package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jprof/internal/session"
	"github.com/mabhi256/jprof/internal/testutil"
)

func newSession(t *testing.T) *session.Status {
	t.Helper()
	s := session.New(testutil.NewTestLogger(t))

	_, err := s.RegisterAllocatedClasses("java.lang.String", "java.util.HashMap")
	require.NoError(t, err)
	require.NoError(t, s.RecordAllocations(0, 12))
	require.NoError(t, s.RecordAllocations(1, 3))

	_, err = s.RegisterInstrumentedMethodBatch(session.MethodBatch{
		Classes:          []string{"com.acme.Foo"},
		LoaderIDs:        []int{1},
		MethodCounts:     []int{2},
		MethodNames:      []string{"run", "stop"},
		MethodSignatures: []string{"()V", "(Z)V"},
	})
	require.NoError(t, err)
	require.NoError(t, s.MarkMethodInvoked(1))
	return s
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(t *testing.T, src Snapshotter) *Model {
	t.Helper()
	m := New(src, Config{Title: "test"})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.Update(TickMsg(time.Now()))
	return m
}

func TestTickTakesSnapshot(t *testing.T) {
	s := newSession(t)
	m := sized(t, s)

	assert.Equal(t, 2, m.Snapshot().RealMethods())
	assert.Len(t, m.history, 1)

	_, err := s.RegisterInstrumentedMethod("com.acme.Bar", 1, "go", "()V")
	require.NoError(t, err)

	_, cmd := m.Update(TickMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Equal(t, 3, m.Snapshot().RealMethods())
	assert.Equal(t, []float64{2, 3}, m.history)
}

func TestTabCycling(t *testing.T) {
	m := sized(t, newSession(t))
	require.Equal(t, TabClasses, m.activeTab)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabMethods, m.activeTab)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabClasses, m.activeTab)

	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, TabSession, m.activeTab)
}

func TestQuit(t *testing.T) {
	m := sized(t, newSession(t))
	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestViewRendersTabs(t *testing.T) {
	m := sized(t, newSession(t))

	view := m.View()
	assert.Contains(t, view, "java.lang.String")
	assert.Contains(t, view, "Ingesting")

	m.activeTab = TabMethods
	view = m.View()
	assert.Contains(t, view, "com.acme.Foo")
	assert.Contains(t, view, "stop")

	m.Update(keyMsg("i"))
	assert.NotContains(t, m.View(), "stop")

	m.activeTab = TabSession
	assert.Contains(t, m.View(), m.Snapshot().SessionID)
}

func TestIngestDone(t *testing.T) {
	m := sized(t, newSession(t))

	m.Update(IngestDoneMsg{})
	assert.Contains(t, m.View(), "Drained")

	m.Update(IngestDoneMsg{Err: errors.New("event 7: boom")})
	view := m.View()
	assert.Contains(t, view, "Ingest failed")
	assert.Contains(t, view, "boom")
}

func TestRenderEmpty(t *testing.T) {
	var snap session.Snapshot
	assert.Contains(t, RenderClasses(snap, 80), "No classes")
	assert.Contains(t, RenderMethods(snap, 80, false), "No methods")
	assert.Contains(t, RenderSummary(snap), "Classes")
}

func TestScrollingClamps(t *testing.T) {
	m := New(newSession(t), Config{})
	content := "a\nb\nc\nd\ne\nf"

	m.scrollDown(100)
	out := m.applyScrolling(content, 3)
	assert.Contains(t, out, "d")
	assert.Equal(t, 3, m.scrollPositions[m.activeTab])

	m.scrollUp(100)
	assert.Equal(t, 0, m.scrollPositions[m.activeTab])
	assert.Equal(t, content, m.applyScrolling(content, 10))
}
