package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/rollcall/internal/api/request"
	"github.com/mcoot/rollcall/internal/api/response"
	"github.com/mcoot/rollcall/internal/model"
)

func newParticipantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants",
		Short: "List the participant directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Participants
			if err := client.Get("/api/v1/participants", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.AddCommand(newParticipantSetCmd())

	return cmd
}

func newParticipantSetCmd() *cobra.Command {
	var name, username string
	var roles []string

	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Add or update a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.UpsertParticipantRequest{
				Username:    username,
				DisplayName: name,
				Roles:       roles,
			}

			var result model.Participant
			if err := client.Put("/api/v1/participants/"+url.PathEscape(args[0]), req, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).PrintMessage(fmt.Sprintf("Saved %s (%s)", result.DisplayName, result.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name shown on the roster (required)")
	cmd.Flags().StringVar(&username, "username", "", "Account username")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role held by the participant (repeatable)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
