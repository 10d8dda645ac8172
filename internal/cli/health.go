package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/rollcall/internal/api/response"
	"github.com/mcoot/rollcall/internal/model"
)

func newHealthCmd() *cobra.Command {
	var requireOpen bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the server and report the roster state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Health
			if err := client.Get("/api/v1/health", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return checkRosterOpen(result, requireOpen)
		},
	}

	cmd.Flags().BoolVar(&requireOpen, "require-open", false, "Exit non-zero unless a roster is open")

	return cmd
}

func checkRosterOpen(h response.Health, required bool) error {
	if required && h.Roster != string(model.RosterStateOpen) {
		return fmt.Errorf("no roster is open (roster is %s)", h.Roster)
	}
	return nil
}
