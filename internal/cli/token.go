package cli

import (
	"errors"
	"fmt"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/services"
	"github.com/spf13/cobra"
)

func NewTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <owner>",
		Short: "Issue a sync server token for an owner",
		Long:  "Issue a bearer token signed with the server's JWT secret. Put it in REMOTE_TOKEN on every device that syncs as this owner.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Server.JWTSecret == "" {
				return errors.New("JWT_SECRET is not configured")
			}

			tokens := services.NewTokenService(cfg.Server.JWTSecret, cfg.Server.JWTIssuer, cfg.Server.TokenTTL)
			token, err := tokens.GenerateToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
