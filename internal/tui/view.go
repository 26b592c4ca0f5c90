package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/jprof/internal/session"
	"github.com/mabhi256/jprof/utils"
)

const keyWidth = 26

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := m.renderHeader()
	tabBar := m.renderTabBar()
	helpView := m.help.View(keys)

	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(tabBar) - lipgloss.Height(helpView)
	contentHeight = max(contentHeight, 1)

	scrolled := m.applyScrolling(m.renderActiveTab(), contentHeight)
	content := lipgloss.NewStyle().Height(contentHeight).Render(scrolled)

	return lipgloss.JoinVertical(lipgloss.Left, header, tabBar, content, helpView)
}

func (m *Model) renderHeader() string {
	headerLine := fmt.Sprintf("🔍 jprof watch - %s • %s", m.cfg.Title, m.getStatus())
	separatorLine := strings.Repeat("─", m.width)

	return lipgloss.JoinVertical(lipgloss.Left,
		HeaderStyle.Width(m.width).Render(headerLine),
		MutedStyle.Render(separatorLine),
	)
}

func (m *Model) getStatus() string {
	uptime := utils.FormatDuration(time.Since(m.startTime))

	switch {
	case m.ingestErr != nil:
		return CriticalStyle.Render("🔴 Ingest failed")
	case m.done:
		return GoodStyle.Render(fmt.Sprintf("✅ Drained • %s", uptime))
	}

	status := fmt.Sprintf("🟢 Ingesting • %s", uptime)
	if m.cfg.Progress != nil {
		status += fmt.Sprintf(" • %d events", m.cfg.Progress())
	}
	return GoodStyle.Render(status)
}

func (m *Model) renderTabBar() string {
	var tabs []string
	for _, tab := range GetAllTabs() {
		if tab == m.activeTab {
			tabs = append(tabs, TabActiveStyle.Render(tab.String()))
		} else {
			tabs = append(tabs, TabInactiveStyle.Render(tab.String()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderActiveTab() string {
	var body string
	switch m.activeTab {
	case TabClasses:
		body = RenderClasses(m.snap, m.width)
	case TabMethods:
		body = m.renderMethodsTab()
	case TabSession:
		body = RenderSummary(m.snap)
	default:
		body = CriticalStyle.Render("Unknown tab")
	}

	if m.ingestErr != nil {
		body = ErrorStyle.Render(m.ingestErr.Error()) + "\n" + body
	}
	return body
}

func (m *Model) renderMethodsTab() string {
	m.chart.Draw()
	chart := BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		InfoStyle.Render(fmt.Sprintf("Instrumented methods: %d", m.snap.RealMethods())),
		m.chart.View(),
	))
	return lipgloss.JoinVertical(lipgloss.Left, chart, RenderMethods(m.snap, m.width, m.invokedOnly))
}

// RenderClasses lists allocated classes with their instance counts, largest
// first.
func RenderClasses(snap session.Snapshot, width int) string {
	if snap.NInstrClasses == 0 {
		return MutedStyle.Render("No classes registered")
	}

	ids := make([]int, snap.NInstrClasses)
	peak := 0
	for i := range ids {
		ids[i] = i
		peak = max(peak, snap.AllocatedInstances[i])
	}
	slices.SortStableFunc(ids, func(a, b int) int {
		return snap.AllocatedInstances[b] - snap.AllocatedInstances[a]
	})

	nameWidth := max(min(width/2, 60), 20)
	barWidth := max(width-nameWidth-24, 4)

	var b strings.Builder
	b.WriteString(InfoStyle.Render(fmt.Sprintf("%-6s %-*s %10s", "ID", nameWidth, "Class", "Instances")))
	b.WriteString("\n")
	for _, id := range ids {
		name := snap.ClassNames[id]
		if name == "" {
			name = "<unnamed>"
		}
		count := snap.AllocatedInstances[id]
		ratio := 0.0
		if peak > 0 {
			ratio = float64(count) / float64(peak)
		}
		fmt.Fprintf(&b, "%-6d %-*s %10d %s\n",
			id, nameWidth, TruncateString(name, nameWidth), count,
			ProgressBar(ratio, barWidth, InfoColor))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// RenderMethods lists real methods grouped by class.
func RenderMethods(snap session.Snapshot, width int, invokedOnly bool) string {
	if snap.RealMethods() == 0 {
		return MutedStyle.Render("No methods instrumented")
	}

	groups := snap.MethodsByClass()
	classes := make([]string, 0, len(groups))
	for class, ids := range groups {
		if invokedOnly && !slices.ContainsFunc(ids, func(id int) bool { return snap.MethodInvoked[id] }) {
			continue
		}
		classes = append(classes, class)
	}
	slices.SortFunc(classes, func(a, b string) int {
		return groups[a][0] - groups[b][0]
	})

	sigWidth := max(width-50, 10)

	var b strings.Builder
	for _, class := range classes {
		b.WriteString(TextStyle.Bold(true).Render(class))
		b.WriteString("\n")
		for _, id := range groups[class] {
			invoked := snap.MethodInvoked[id]
			if invokedOnly && !invoked {
				continue
			}
			mark := MutedStyle.Render("·")
			if invoked {
				mark = GoodStyle.Render("✓")
			}
			fmt.Fprintf(&b, "  %s %5d %s%s %s\n",
				mark, id,
				snap.MethodNames[id],
				MutedStyle.Render(TruncateString(snap.MethodSignatures[id], sigWidth)),
				MutedStyle.Render(fmt.Sprintf("[loader %d]", snap.LoaderIDs[id])))
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// RenderSummary renders the scalar part of a session and the inventory
// totals.
func RenderSummary(snap session.Snapshot) string {
	kv := func(k, v string) string { return FormatKeyValue(k, v, keyWidth) }
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}

	invoked := snap.InvokedCount()
	ratio := 0.0
	if n := snap.RealMethods(); n > 0 {
		ratio = float64(invoked) / float64(n)
	}

	lines := []string{
		kv("Session", snap.SessionID),
		kv("Target running", fmt.Sprintf("%t", snap.TargetAppRunning)),
		"",
		kv("Absolute timer", onOff(snap.AbsoluteTimerOn)),
		kv("Thread CPU timer", onOff(snap.ThreadCPUTimerOn)),
		kv("Two timestamps", fmt.Sprintf("%t", snap.AbsoluteTimerOn && snap.ThreadCPUTimerOn)),
		kv("Instrumentation", fmt.Sprintf("%s (%s)", snap.Instrumentation.Type, snap.Instrumentation.Scheme)),
		"",
		kv("Classes", fmt.Sprintf("%d", snap.NInstrClasses)),
		kv("Methods", fmt.Sprintf("%d", snap.RealMethods())),
		kv("Invoked", fmt.Sprintf("%d %s", invoked, ProgressBar(ratio, 20, GoodColor))),
	}

	t := snap.Target
	if t.JDKVersion != "" || t.JavaCommand != "" {
		lines = append(lines, "",
			kv("JDK", strings.TrimSpace(t.JDKVersion+" "+t.FullJDKVersion)),
			kv("OS", t.OSName),
			kv("Command", t.JavaCommand),
			kv("Max heap", utils.MemorySize(t.MaxHeapSize).String()),
			kv("Attached", fmt.Sprintf("%t", t.RunningInAttachedMode)),
		)
		if start := t.StartupTime(); !start.IsZero() {
			lines = append(lines, kv("Started", start.Format(time.DateTime)))
		}
	}

	return strings.Join(lines, "\n")
}
