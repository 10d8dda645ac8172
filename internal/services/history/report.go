package history

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/mcoot/rollcall/internal/model"
)

// ReportChunkSize is the number of participants per report message
const ReportChunkSize = 5

var reportWidths = [7]int{20, 10, 10, 12, 9, 9, 12}

// InscriptionBand returns the color marker for a sign-up percentage
func InscriptionBand(pct float64) string {
	switch {
	case pct >= 90:
		return "🔵"
	case pct >= 60:
		return "🟢"
	case pct >= 40:
		return "🟡"
	case pct >= 20:
		return "🟠"
	default:
		return "🔴"
	}
}

// AbsenceBand returns the color marker for an absence percentage
func AbsenceBand(pct float64) string {
	switch {
	case pct <= 10:
		return "🔵"
	case pct <= 39:
		return "🟢"
	case pct <= 59:
		return "🟡"
	case pct <= 79:
		return "🟠"
	default:
		return "🔴"
	}
}

// BuildReport renders stats as a sequence of messages of at most
// ReportChunkSize rows each, every one carrying the table header
func BuildReport(title string, stats []*model.PlayerStats, totalSessions int64) []model.Message {
	if len(stats) == 0 {
		return []model.Message{{
			Title: title,
			Lines: []string{"No participants recorded yet."},
		}}
	}

	header := []string{
		fmt.Sprintf("📋 Total sessions played: %d", totalSessions),
		"",
		reportRow("Name", "Signed up", "Connected", "Disconnected", "% Signup", "% Absent", "Last played"),
		strings.Repeat("─", lo.Sum(reportWidths[:])+len(reportWidths)*3-3),
	}

	chunks := lo.Chunk(stats, ReportChunkSize)
	messages := make([]model.Message, 0, len(chunks))
	for _, chunk := range chunks {
		lines := append([]string{}, header...)
		for _, st := range chunk {
			lines = append(lines, statsRow(st))
		}
		messages = append(messages, model.Message{Title: title, Lines: lines})
	}
	return messages
}

func statsRow(st *model.PlayerStats) string {
	name := st.DisplayName
	if name == "" {
		name = string(st.ParticipantID)
	}
	last := st.LastPlayedDate
	if last == "" {
		last = model.NeverPlayed
	}
	return reportRow(
		name,
		fmt.Sprint(st.TotalSignups),
		fmt.Sprint(st.TotalConnected),
		fmt.Sprint(st.TotalDisconnected),
		fmt.Sprintf("%s %.2f%%", InscriptionBand(st.ConnectedPct), st.ConnectedPct),
		fmt.Sprintf("%s %.2f%%", AbsenceBand(st.AbsencePct), st.AbsencePct),
		last,
	)
}

func reportRow(cols ...string) string {
	cells := make([]string, len(cols))
	for i, col := range cols {
		if i == 0 {
			cells[i] = fmt.Sprintf("%-*s", reportWidths[i], col)
		} else {
			cells[i] = fmt.Sprintf("%*s", reportWidths[i], col)
		}
	}
	return strings.Join(cells, " | ")
}
