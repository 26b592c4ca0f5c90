package tui

import (
	"fmt"
	"strings"
)

func (m *Model) applyScrolling(content string, viewportHeight int) string {
	lines := strings.Split(content, "\n")
	totalLines := len(lines)

	if totalLines <= viewportHeight {
		return content
	}

	scrollPos := m.scrollPositions[m.activeTab]

	maxScroll := totalLines - viewportHeight
	scrollPos = min(max(scrollPos, 0), maxScroll)
	m.scrollPositions[m.activeTab] = scrollPos

	endPos := scrollPos + viewportHeight
	visibleLines := lines[scrollPos:endPos]

	// last visible line becomes the scroll indicator
	if len(visibleLines) > 0 {
		visibleLines[len(visibleLines)-1] = fmt.Sprintf("%s (Line %d-%d of %d) %s",
			MutedStyle.Render("▲"),
			scrollPos+1,
			endPos,
			totalLines,
			MutedStyle.Render("▼"))
	}

	return strings.Join(visibleLines, "\n")
}

func (m *Model) scrollUp(lines int) {
	m.scrollPositions[m.activeTab] = max(m.scrollPositions[m.activeTab]-lines, 0)
}

// scrollDown is clamped later by applyScrolling.
func (m *Model) scrollDown(lines int) {
	m.scrollPositions[m.activeTab] += lines
}
