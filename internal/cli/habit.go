package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/services"
	"github.com/spf13/cobra"
)

func NewHabitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habit",
		Short: "Manage habits and record completions",
	}

	cmd.AddCommand(
		newHabitAddCmd(),
		newHabitListCmd(),
		newHabitDoneCmd(),
		newHabitUpdateCmd(),
		newHabitRmCmd(),
	)
	return cmd
}

func addHabitFlags(cmd *cobra.Command) {
	cmd.Flags().Int("weight", 0, "importance from 1 to 10 (default 1)")
	cmd.Flags().IntSlice("weekdays", nil, "eligible weekdays, 0=Sunday..6=Saturday (default every day)")
	cmd.Flags().String("description", "", "habit description")
	cmd.Flags().String("color", "", "display color")
}

func habitInputFromFlags(cmd *cobra.Command, name string) services.HabitInput {
	weight, _ := cmd.Flags().GetInt("weight")
	weekdays, _ := cmd.Flags().GetIntSlice("weekdays")
	description, _ := cmd.Flags().GetString("description")
	color, _ := cmd.Flags().GetString("color")
	return services.HabitInput{
		Name:        name,
		Description: description,
		Color:       color,
		Weight:      weight,
		Weekdays:    weekdays,
	}
}

func newHabitAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a habit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			habit, err := a.org.CreateHabit(cmd.Context(), habitInputFromFlags(cmd, strings.Join(args, " ")))
			if err != nil {
				return err
			}
			a.afterMutation(cmd)

			if a.jsonMode {
				return a.printJSON(cmd, habit)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created habit %s (%s)\n", habit.Name, habit.ID)
			return nil
		},
	}
	addHabitFlags(cmd)
	return cmd
}

func newHabitUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id> <name>",
		Short: "Replace the definition of a habit",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			habit, err := a.org.UpdateHabit(cmd.Context(), args[0], habitInputFromFlags(cmd, strings.Join(args[1:], " ")))
			if err != nil {
				return err
			}
			a.afterMutation(cmd)

			if a.jsonMode {
				return a.printJSON(cmd, habit)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated habit %s\n", habit.Name)
			return nil
		},
	}
	addHabitFlags(cmd)
	return cmd
}

func newHabitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List habits with their current streak",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			habits := a.org.ListHabits()
			if a.jsonMode {
				return a.printJSON(cmd, habits)
			}
			if len(habits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No habits yet")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tWEIGHT\tSTREAK\tLAST")
			for _, h := range habits {
				last := "-"
				if h.LastCompleted != nil {
					last = *h.LastCompleted
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", h.ID, h.Name, h.Weight, h.Streak, last)
			}
			return w.Flush()
		},
	}
}

func newHabitDoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Record the outcome of a habit for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			dateFlag, _ := cmd.Flags().GetString("date")
			status, _ := cmd.Flags().GetString("status")
			justification, _ := cmd.Flags().GetString("justification")

			date := time.Now()
			if dateFlag != "" {
				if date, err = domain.ParseDate(dateFlag, time.Local); err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}

			c, err := a.org.CompleteHabit(cmd.Context(), args[0], date, domain.CompletionStatus(status), justification)
			if err != nil {
				return err
			}
			a.afterMutation(cmd)

			habit, err := a.org.GetHabit(args[0])
			if err != nil {
				return err
			}
			if a.jsonMode {
				return a.printJSON(cmd, map[string]any{"completion": c, "habit": habit})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s on %s, streak %d\n", habit.Name, c.Status, c.Date, habit.Streak)
			return nil
		},
	}
	cmd.Flags().String("date", "", "day of the outcome, YYYY-MM-DD (default today)")
	cmd.Flags().String("status", string(domain.StatusCompleted), "completed, justified or not_completed")
	cmd.Flags().String("justification", "", "reason for a justified day")
	return cmd
}

func newHabitRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a habit and its completions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.org.DeleteHabit(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.afterMutation(cmd)
			fmt.Fprintln(cmd.OutOrStdout(), "Habit deleted")
			return nil
		},
	}
}
