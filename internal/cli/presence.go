package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/rollcall/internal/api/request"
	"github.com/mcoot/rollcall/internal/api/response"
)

func newPresenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presence",
		Short: "Report and inspect presence",
	}

	cmd.AddCommand(newPresenceListCmd())
	cmd.AddCommand(newPresenceJoinCmd())
	cmd.AddCommand(newPresenceLeaveCmd())

	return cmd
}

func newPresenceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List everyone currently present",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Presence
			if err := client.Get("/api/v1/presence", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newPresenceJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <name> <channel>",
		Short: "Report that a participant joined or moved to a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.PresenceRequest{Name: args[0], ChannelID: args[1], Present: true}
			if err := client.Post("/api/v1/presence", req, nil); err != nil {
				return err
			}
			NewOutput(cfg.Output).PrintMessage(args[0] + " joined " + args[1])
			return nil
		},
	}
}

func newPresenceLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <name>",
		Short: "Report that a participant left",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.PresenceRequest{Name: args[0], Present: false}
			if err := client.Post("/api/v1/presence", req, nil); err != nil {
				return err
			}
			NewOutput(cfg.Output).PrintMessage(args[0] + " left")
			return nil
		},
	}
}
