package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/rollcall/internal/api/response"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List closed rosters",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.History
			if err := client.Get("/api/v1/history", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "publish",
		Short: "Replay every closed roster on the history channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Published
			if err := client.Post("/api/v1/history/publish", nil, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	})

	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show attendance statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Stats
			if err := client.Get("/api/v1/stats", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "publish",
		Short: "Republish the attendance report on the stats channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post("/api/v1/stats/publish", nil, nil); err != nil {
				return err
			}
			NewOutput(cfg.Output).PrintMessage("Attendance report published")
			return nil
		},
	})

	return cmd
}
