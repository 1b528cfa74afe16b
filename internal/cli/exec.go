package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/commands"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func NewExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [command-json]",
		Short: "Execute a structured {entity, action, params} command",
		Long: `Execute a structured command, for example:

  organizer exec '{"entity":"habit","action":"complete","params":{"id":"...","date":"yesterday"}}'

Use "-" to read the command from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, _ := cmd.Flags().GetBool("list")
			if list {
				return listCommands(cmd)
			}
			if len(args) == 0 {
				return errors.New("a command document is required")
			}

			raw := []byte(args[0])
			if args[0] == "-" {
				var err error
				if raw, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}

			var command commands.Command
			if err := json.Unmarshal(raw, &command); err != nil {
				return fmt.Errorf("invalid command document: %w", err)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.executor.Execute(cmd.Context(), command)
			if res.OK {
				a.afterMutation(cmd)
			}

			if err := a.printJSON(cmd, res); err != nil {
				return err
			}
			if !res.OK {
				return errors.New(res.Message)
			}
			return nil
		},
	}
	cmd.Flags().Bool("list", false, "list the supported commands")
	return cmd
}

func listCommands(cmd *cobra.Command) error {
	exec := commands.NewExecutor(nil, nil, nil, zerolog.Nop())
	names := exec.Commands()
	sort.Strings(names)
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
	return nil
}

func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the most recent executed commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			records, err := a.store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return a.printJSON(cmd, records)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tCOMMAND\tOK\tMESSAGE")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s.%s\t%t\t%s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Entity, r.Action, r.OK, r.Message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "number of records to show (0 for all)")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
