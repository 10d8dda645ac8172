package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/rollcall/internal/api/response"
	"github.com/mcoot/rollcall/internal/services/auth"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Coordinator authentication",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthHashCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a coordinator and save the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"username": user, "password": pass}
			var result response.AuthResponse

			if err := client.Post("/api/v1/auth/login", req, &result); err != nil {
				return err
			}

			if err := cfg.SaveToken(result.SessionToken); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "username", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "password", "", "Password (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session and forget the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post("/api/v1/auth/logout", nil, nil); err != nil {
				return err
			}
			if err := cfg.ClearToken(); err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}
			NewOutput(cfg.Output).PrintMessage("Logged out")
			return nil
		},
	}
}

// newAuthHashCmd prints the bcrypt hash of a secret for the server config
func newAuthHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [secret]",
		Short: "Print the bcrypt hash of a password or API token",
		Long:  "Print the bcrypt hash of a password or API token. Without an argument the secret is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret string
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read secret: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}
			if secret == "" {
				return fmt.Errorf("secret must not be empty")
			}

			hash, err := auth.HashSecret(secret)
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}
