package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcoot/rollcall/internal/api/response"
	"github.com/mcoot/rollcall/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to stdout
func NewOutput(format string) *Output {
	return &Output{format: format, w: os.Stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.AuthResponse:
		o.printAuth(v)
	case response.Roster:
		o.printRoster(v)
	case response.AddResult:
		o.printAddResult(v)
	case response.InputResult:
		fmt.Fprintf(o.w, "Delivered to %d waiting command(s)\n", v.Delivered)
	case response.Presence:
		o.printPresence(v)
	case response.History:
		o.printHistory(v)
	case response.Published:
		fmt.Fprintf(o.w, "Published %d message(s)\n", v.Published)
	case response.Stats:
		o.printStats(v)
	case response.Board:
		o.printBoard(v)
	case response.Participants:
		o.printParticipants(v)
	case response.Health:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
		fmt.Fprintf(o.w, "Roster: %s (%d entries)\n", v.Roster, v.Entries)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printAuth(a response.AuthResponse) {
	fmt.Fprintf(o.w, "Logged in as %s\n", a.Username)
	fmt.Fprintf(o.w, "Expires: %s\n", a.ExpiresAt.Format("2006-01-02 15:04"))
}

func (o *Output) printEntries(entries []response.Entry) {
	for _, e := range entries {
		marker := "🔴"
		if e.Status == string(model.StatusConnected) {
			marker = "🟢"
		}
		fmt.Fprintf(o.w, "  %2d. %s %s\n", e.Position, e.Name, marker)
	}
}

func (o *Output) printRoster(r response.Roster) {
	fmt.Fprintf(o.w, "State: %s\n", r.State)
	fmt.Fprintf(o.w, "Capacity: %d\n", r.Capacity)
	if r.State == string(model.RosterStateClosed) {
		return
	}
	if r.OpenedAt != nil {
		fmt.Fprintf(o.w, "Opened: %s\n", r.OpenedAt.Format("2006-01-02 15:04"))
	}
	if r.ClosesAt != nil {
		fmt.Fprintf(o.w, "Closes: %s\n", r.ClosesAt.Format("2006-01-02 15:04"))
	}
	if r.Finalizing {
		fmt.Fprintln(o.w, "Closing now")
	}
	fmt.Fprintf(o.w, "Main (%d/%d):\n", len(r.Main), r.Capacity)
	o.printEntries(r.Main)
	if len(r.Reserve) > 0 {
		fmt.Fprintf(o.w, "Reserve (%d):\n", len(r.Reserve))
		o.printEntries(r.Reserve)
	}
	fmt.Fprintf(o.w, "Connected: %d | Disconnected: %d\n", r.Connected, r.Disconnected)
}

func (o *Output) printAddResult(a response.AddResult) {
	if a.Added {
		fmt.Fprintf(o.w, "Added %s\n", a.Name)
	} else {
		fmt.Fprintf(o.w, "%s is already on the roster\n", a.Name)
	}
}

func (o *Output) printPresence(p response.Presence) {
	if len(p.Present) == 0 {
		fmt.Fprintln(o.w, "Nobody is present")
		return
	}
	fmt.Fprintf(o.w, "Present (%d): %s\n", len(p.Present), strings.Join(p.Present, ", "))
}

func (o *Output) printHistory(h response.History) {
	if len(h.Sessions) == 0 {
		fmt.Fprintln(o.w, "No sessions yet")
		return
	}
	for _, s := range h.Sessions {
		fmt.Fprintf(o.w, "#%d %s (%d main, %d reserve)\n",
			s.Seq, s.ClosedAt.Format("2006-01-02 15:04"), len(s.Main), len(s.Reserve))
	}
}

func (o *Output) printStats(s response.Stats) {
	fmt.Fprintf(o.w, "Sessions: %d\n", s.TotalSessions)
	for _, p := range s.Players {
		fmt.Fprintf(o.w, "  %-20s signups %3d  connected %5.1f%%  absent %5.1f%%  last %s\n",
			p.DisplayName, p.TotalSignups, p.ConnectedPct, p.AbsencePct, p.LastPlayedDate)
	}
}

func (o *Output) printBoard(b response.Board) {
	fmt.Fprintf(o.w, "Channel: %s\n", b.Channel)
	for _, m := range b.Messages {
		fmt.Fprintln(o.w)
		if m.Message.Title != "" {
			fmt.Fprintln(o.w, m.Message.Title)
		}
		for _, line := range m.Message.Lines {
			fmt.Fprintln(o.w, line)
		}
		if m.Message.Footer != "" {
			fmt.Fprintln(o.w, m.Message.Footer)
		}
	}
}

func (o *Output) printParticipants(p response.Participants) {
	for _, part := range p.Participants {
		roles := make([]string, len(part.Roles))
		for i, r := range part.Roles {
			roles[i] = string(r)
		}
		fmt.Fprintf(o.w, "  %-10s %-20s %s\n", part.ID, part.DisplayName, strings.Join(roles, ","))
	}
}
