package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/CrowderSoup/collab-board/board"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("221")).Padding(0, 1)
	fullStyle   = headerStyle.Foreground(lipgloss.Color("203"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	cardStyle   = lipgloss.NewStyle().Padding(0, 1)
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingLeft(3)
	panelStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
)

var priorityColors = map[board.Priority]lipgloss.Color{
	board.PriorityHigh:   lipgloss.Color("203"),
	board.PriorityMedium: lipgloss.Color("221"),
	board.PriorityLow:    lipgloss.Color("114"),
}

// renderBoard draws one bordered column per list, cards in position order.
func renderBoard(snap board.Snapshot, width int) string {
	if len(snap.Lists) == 0 {
		return titleStyle.Render(snap.Board.Name) + "\n" + emptyStyle.Render("No lists")
	}

	columnWidth := max(24, (width-4)/max(1, len(snap.Lists)))
	columns := make([]string, 0, len(snap.Lists))
	for _, l := range snap.Lists {
		cards := snap.Cards(l.ID)

		header := l.Name
		style := headerStyle
		if l.WIPLimit != nil {
			header = fmt.Sprintf("%s (%d/%d)", l.Name, len(cards), *l.WIPLimit)
			if len(cards) >= *l.WIPLimit {
				style = fullStyle
			}
		}
		rows := []string{style.Width(columnWidth - 2).Render(header)}

		if len(cards) == 0 {
			rows = append(rows, emptyStyle.Render("(empty)"))
		}
		for _, c := range cards {
			marker := lipgloss.NewStyle().Foreground(priorityColors[c.Priority]).Render("●")
			rows = append(rows, cardStyle.Render(marker+" "+truncate(c.Title, columnWidth-6)))
			if c.DueDate != nil {
				rows = append(rows, metaStyle.Render("due "+c.DueDate.Format("2006-01-02")))
			}
		}

		columns = append(columns, panelStyle.Width(columnWidth).Render(strings.Join(rows, "\n")))
	}

	return titleStyle.Render(snap.Board.Name) + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, columns...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n < 4 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
