package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/rollcall/internal/api/response"
)

// deliveryTimeout bounds how long lines wait for a roster command to
// start listening
const deliveryTimeout = 10 * time.Second

func newSayCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "say <text>",
		Short: "Answer a waiting roster command",
		Long: `Send one coordinator message to the server. Roster commands that
collect names (open, add, cancel, finish) read these messages.

Use "\n" inside the text, or quote a multi-line string, to send several
names in one batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.ReplaceAll(args[0], `\n`, "\n")

			var result response.InputResult
			var err error
			if wait {
				result, err = deliver(text)
			} else {
				err = client.Post("/api/v1/input", map[string]string{"text": text}, &result)
			}
			if err != nil {
				return err
			}

			if cfg.Output == "json" {
				NewOutput(cfg.Output).Print(result)
			}
			if err := checkDelivered(result); err != nil {
				return err
			}
			if cfg.Output != "json" {
				NewOutput(cfg.Output).Print(result)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Retry until a roster command is listening")

	return cmd
}

// ErrNotDelivered means no roster command was listening when a message
// was sent, so the server dropped it
var ErrNotDelivered = errors.New("nothing is waiting for input; the message was dropped (retry with --wait)")

func checkDelivered(result response.InputResult) error {
	if result.Delivered == 0 {
		return ErrNotDelivered
	}
	return nil
}

// deliver posts text until a collector receives it
func deliver(text string) (response.InputResult, error) {
	deadline := time.Now().Add(deliveryTimeout)
	for {
		var result response.InputResult
		if err := client.Post("/api/v1/input", map[string]string{"text": text}, &result); err != nil {
			return result, err
		}
		if result.Delivered > 0 {
			return result, nil
		}
		if time.Now().After(deadline) {
			return result, errors.New("no roster command is waiting for input")
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// readBatch reads names from path, or stdin when path is "-"
func readBatch(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read names: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}
