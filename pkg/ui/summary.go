package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// SummaryRow is one page of a batch
type SummaryRow struct {
	PageURL   string
	Title     string
	Succeeded int
	Attempted int
	Status    string
	Duration  time.Duration
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = cellStyle.Foreground(lipgloss.Color("2"))
	failStyle   = cellStyle.Foreground(lipgloss.Color("1"))
)

// Status labels used in the summary table
const (
	StatusOK        = "ok"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RenderSummary renders batch results as a bordered table
func RenderSummary(rows []SummaryRow) string {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			truncate(r.PageURL, 48),
			truncate(r.Title, 32),
			fmt.Sprintf("%d/%d", r.Succeeded, r.Attempted),
			r.Status,
			FormatDuration(r.Duration),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("PAGE", "TITLE", "FILES", "STATUS", "TIME").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 3 && row >= 0 && row < len(rows) {
				switch rows[row].Status {
				case StatusOK:
					return okStyle
				case StatusFailed:
					return failStyle
				}
			}
			return cellStyle
		})
	return t.Render()
}

// StatusOf classifies a page result for the summary
func StatusOf(succeeded, attempted int, err error, cancelled bool) string {
	switch {
	case cancelled:
		return StatusCancelled
	case err != nil && succeeded == 0:
		return StatusFailed
	case succeeded < attempted:
		return StatusPartial
	default:
		return StatusOK
	}
}
