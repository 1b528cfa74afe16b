package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/services"
	"github.com/spf13/cobra"
)

func NewJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Write and read journal entries",
	}
	cmd.AddCommand(newJournalAddCmd(), newJournalListCmd(), newJournalRmCmd())
	return cmd
}

func newJournalAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a journal entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			title, _ := cmd.Flags().GetString("title")
			mood, _ := cmd.Flags().GetInt("mood")
			tags, _ := cmd.Flags().GetStringSlice("tags")
			dateFlag, _ := cmd.Flags().GetString("date")

			date := time.Now()
			if dateFlag != "" {
				if date, err = domain.ParseDate(dateFlag, time.Local); err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}

			entry, err := a.org.AddJournalEntry(cmd.Context(), services.JournalInput{
				Date:    date,
				Title:   title,
				Content: strings.Join(args, " "),
				Mood:    mood,
				Tags:    tags,
			})
			if err != nil {
				return err
			}
			a.afterMutation(cmd)

			if a.jsonMode {
				return a.printJSON(cmd, entry)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Journal entry %s saved for %s\n", entry.ID, entry.Date)
			return nil
		},
	}
	cmd.Flags().String("title", "", "entry title")
	cmd.Flags().Int("mood", 0, "mood from 1 to 5")
	cmd.Flags().StringSlice("tags", nil, "comma separated tags")
	cmd.Flags().String("date", "", "entry date, YYYY-MM-DD (default today)")
	return cmd
}

func newJournalListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries := a.org.ListJournal()
			if a.jsonMode {
				return a.printJSON(cmd, entries)
			}
			for _, e := range entries {
				title := e.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n    %s\n", e.Date, e.ID, title, e.Content)
			}
			return nil
		},
	}
}

func newJournalRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.org.DeleteJournalEntry(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.afterMutation(cmd)
			fmt.Fprintln(cmd.OutOrStdout(), "Journal entry deleted")
			return nil
		},
	}
}
