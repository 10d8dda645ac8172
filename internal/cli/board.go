package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/rollcall/internal/api/response"
)

func newBoardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "board <channel>",
		Short: "Show the messages on a display channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/board/" + url.PathEscape(args[0])
			if limit > 0 {
				path += fmt.Sprintf("?limit=%d", limit)
			}

			var result response.Board
			if err := client.Get(path, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Show only the last n messages")

	return cmd
}
