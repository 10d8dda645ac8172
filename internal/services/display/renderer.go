package display

import (
	"fmt"
	"time"

	"github.com/mcoot/rollcall/internal/model"
)

// DateLayout is how session dates are shown in footers
const DateLayout = "15:04 02-01-2006"

const (
	MainTitle    = "📋 Roster"
	ReserveTitle = "📝 Reserves"

	ColumnHeader = "#️⃣ Nº | 👤 Name | 🔹 Status"

	ConnectedLabel    = "🟢 Connected"
	DisconnectedLabel = "🔴 Disconnected"

	ClosedLabel = "⛔ Roster closed"

	nameWidth = 20
)

// Rendered holds the main list and, when the roster overflows its
// capacity, the reserve list
type Rendered struct {
	Main    model.Message
	Reserve *model.Message
}

// RenderLive renders an open roster with the time left before auto-close
func RenderLive(snap model.RosterSnapshot, now time.Time) Rendered {
	return render(snap.Entries, snap.Capacity, liveHeadline(snap, now), now)
}

// RenderClosed renders the final state of a roster that is being closed
func RenderClosed(snap model.RosterSnapshot, now time.Time) Rendered {
	return render(snap.Entries, snap.Capacity, ClosedLabel, now)
}

// RenderHistorical renders a past session for replay
func RenderHistorical(rec *model.SessionRecord) Rendered {
	return render(rec.Entries, rec.Capacity, ClosedLabel, rec.ClosedAt)
}

func liveHeadline(snap model.RosterSnapshot, now time.Time) string {
	if snap.ClosesAt.IsZero() {
		return "⏳ Closing time unavailable"
	}
	remaining := snap.ClosesAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	secs := int(remaining / time.Second)
	return fmt.Sprintf("⏳ Roster closes in %dm %ds", secs/60, secs%60)
}

func render(entries []model.Entry, capacity int, headline string, date time.Time) Rendered {
	snap := model.RosterSnapshot{Entries: entries, Capacity: capacity}
	main, reserve := snap.Split()

	out := Rendered{
		Main: model.Message{
			Title: MainTitle,
			Lines: renderLines(main, 1),
		},
	}
	if len(reserve) > 0 {
		out.Reserve = &model.Message{
			Title: ReserveTitle,
			Lines: renderLines(reserve, len(main)+1),
		}
	}

	connected, disconnected := snap.Counts()
	out.Main.Footer = fmt.Sprintf("%s\n📅 Session date: %s\n🟢 Connected: %d | 🔴 Disconnected: %d",
		headline, date.Format(DateLayout), connected, disconnected)
	return out
}

func renderLines(entries []model.Entry, firstNumber int) []string {
	if len(entries) == 0 {
		return []string{"N/A"}
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, ColumnHeader)
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%2d | %-*s | %s", firstNumber+i, nameWidth, e.Name, StatusLabel(e.Status)))
	}
	return lines
}

// StatusLabel returns the marker and word shown for a status
func StatusLabel(status model.Status) string {
	if status == model.StatusConnected {
		return ConnectedLabel
	}
	return DisconnectedLabel
}
