package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	neturl "net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/rollcall/internal/model"
)

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events <channel>",
		Short: "Follow a display channel as it changes",
		Long: `Stream a display channel from the board.

The messages currently shown arrive first, then every change:
  - message-created: a message was posted
  - message-updated: a message was edited in place
  - message-deleted: a message was removed

With -o json each change is printed as one JSON line. Press Ctrl+C to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return followChannel(ctx, args[0], cmd.OutOrStdout())
		},
	}
}

func followChannel(ctx context.Context, channel string, w io.Writer) error {
	resp, err := client.Stream(ctx, "/api/v1/events?channel="+neturl.QueryEscape(channel))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	jsonOutput := cfg.Output == "json"
	if !jsonOutput {
		_, _ = fmt.Fprintf(w, "Following #%s\n", channel)
	}

	err = readEvents(resp.Body, func(name, data string) {
		var event model.BoardEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			if cfg.Verbose {
				_, _ = fmt.Fprintf(w, "skipping %s event: %v\n", name, err)
			}
			return
		}
		if jsonOutput {
			line, _ := json.Marshal(event)
			_, _ = fmt.Fprintln(w, string(line))
			return
		}
		printBoardEvent(w, event)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}
	return nil
}

// readEvents parses a text/event-stream body, calling fn once per complete
// event. Multi-line data is joined with newlines.
func readEvents(r io.Reader, fn func(name, data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if name != "" {
				fn(name, strings.Join(data, "\n"))
			}
			name, data = "", nil
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return scanner.Err()
}

func printBoardEvent(w io.Writer, event model.BoardEvent) {
	bm := event.Message
	stamp := bm.UpdatedAt.Local().Format("15:04:05")

	switch event.Type {
	case model.EventMessageDeleted:
		_, _ = fmt.Fprintf(w, "[%s] removed %s\n", stamp, bm.Ref)
		return
	case model.EventMessageUpdated:
		_, _ = fmt.Fprintf(w, "[%s] edited %s\n", stamp, bm.Ref)
	default:
		_, _ = fmt.Fprintf(w, "[%s] posted %s\n", stamp, bm.Ref)
	}

	if bm.Message.Title != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", bm.Message.Title)
	}
	for _, line := range bm.Message.Lines {
		_, _ = fmt.Fprintf(w, "  %s\n", line)
	}
	if bm.Message.Footer != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", bm.Message.Footer)
	}
}
