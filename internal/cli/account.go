package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/comitanigiacomo/kanso-organizer/internal/adapters/remote"
	"github.com/comitanigiacomo/kanso-organizer/internal/logging"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func NewAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Register on the sync server and log in",
	}
	cmd.PersistentFlags().String("password", "", "account password (read from stdin when empty)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "register <email>",
			Short: "Create a sync server account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, password, err := accountClient(cmd)
				if err != nil {
					return err
				}

				account, err := client.Register(cmd.Context(), args[0], password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", account.Email, account.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "login <email>",
			Short: "Print a sync token for an account",
			Long:  "Print a sync token for an account. Put it in REMOTE_TOKEN on this device.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, password, err := accountClient(cmd)
				if err != nil {
					return err
				}

				res, err := client.Login(cmd.Context(), args[0], password)
				if err != nil {
					return err
				}
				if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
					data, err := json.Marshal(res)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Token)
				return nil
			},
		},
	)
	return cmd
}

func accountClient(cmd *cobra.Command) (*remote.Client, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	if cfg.Remote.URL == "" {
		return nil, "", errNoRemote
	}

	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return nil, "", fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return nil, "", errors.New("a password is required")
	}

	return remote.NewClient(remote.ClientConfig{BaseURL: cfg.Remote.URL}, logging.New("remote")), password, nil
}
