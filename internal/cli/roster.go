package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mcoot/rollcall/internal/api/response"
)

func newRosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Roster lifecycle commands",
	}

	cmd.AddCommand(newRosterShowCmd())
	cmd.AddCommand(newRosterOpenCmd())
	cmd.AddCommand(newRosterAddCmd())
	cmd.AddCommand(newRosterCancelCmd())
	cmd.AddCommand(newRosterFinishCmd())
	cmd.AddCommand(newRosterCapacityCmd())

	return cmd
}

func newRosterShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Roster
			if err := client.Get("/api/v1/roster", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newRosterOpenCmd() *cobra.Command {
	var file, endToken string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a new roster",
		Long: `Open a new roster. The server then waits for the names; send them
with "rollcall say" and finish with the end token, or pass --file to send
a prepared list (one name per line, "-" for stdin) and close the input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startCollecting("/api/v1/roster/open", nil, file, endToken)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "File with one name per line (- for stdin)")
	cmd.Flags().StringVar(&endToken, "end-token", "FIN", "Token that ends the input")

	return cmd
}

func newRosterAddCmd() *cobra.Command {
	var file, endToken, auto string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add entries to the open roster",
		Long: `Add entries to the open roster. With --auto the name is added at
once as connected; otherwise names are collected like "roster open".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if auto != "" {
				var result response.AddResult
				req := map[string]string{"mode": "automatic", "name": auto}
				if err := client.Post("/api/v1/roster/add", req, &result); err != nil {
					return err
				}
				NewOutput(cfg.Output).Print(result)
				return nil
			}
			return startCollecting("/api/v1/roster/add", map[string]string{"mode": "manual"}, file, endToken)
		},
	}

	cmd.Flags().StringVar(&auto, "auto", "", "Add this name directly as connected")
	cmd.Flags().StringVarP(&file, "file", "f", "", "File with one name per line (- for stdin)")
	cmd.Flags().StringVar(&endToken, "end-token", "FIN", "Token that ends the input")

	return cmd
}

func newRosterCancelCmd() *cobra.Command {
	return newConfirmedCmd("cancel", "Cancel the open roster without saving it", "/api/v1/roster/cancel")
}

func newRosterFinishCmd() *cobra.Command {
	return newConfirmedCmd("finish", "Close the open roster now and save it", "/api/v1/roster/finish")
}

// newConfirmedCmd builds a command the server asks the coordinator to confirm
func newConfirmedCmd(use, short, path string) *cobra.Command {
	var yes bool
	var confirmToken string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			var accepted response.Accepted
			if err := client.Post(path, nil, &accepted); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			if !yes {
				out.PrintMessage(fmt.Sprintf("Waiting for confirmation: run `rollcall say %s`", confirmToken))
				return nil
			}
			if _, err := deliver(confirmToken); err != nil {
				return err
			}
			out.PrintMessage(fmt.Sprintf("Roster %s confirmed", use))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm immediately")
	cmd.Flags().StringVar(&confirmToken, "confirm-token", "CONFIRMAR", "Token the server expects as confirmation")

	return cmd
}

func newRosterCapacityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capacity <n>",
		Short: "Set the number of main slots for the next roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("capacity must be a number: %w", err)
			}

			var result response.Roster
			if err := client.Put("/api/v1/roster/capacity", map[string]int{"capacity": n}, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

// startCollecting starts a collecting command and, when file is set,
// feeds it the names followed by the end token
func startCollecting(path string, body any, file, endToken string) error {
	var batch string
	if file != "" {
		var err error
		if batch, err = readBatch(file); err != nil {
			return err
		}
	}

	var accepted response.Accepted
	if err := client.Post(path, body, &accepted); err != nil {
		return err
	}

	out := NewOutput(cfg.Output)
	if file == "" {
		out.PrintMessage(fmt.Sprintf("Server is waiting for names: send them with `rollcall say`, then `rollcall say %s`", endToken))
		return nil
	}

	if batch != "" {
		if _, err := deliver(batch); err != nil {
			return err
		}
	}
	if _, err := deliver(endToken); err != nil {
		return err
	}

	var roster response.Roster
	if err := client.Get("/api/v1/roster", &roster); err != nil {
		return err
	}
	out.Print(roster)
	return nil
}
