package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/adapters/remote"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/logging"
	"github.com/spf13/cobra"
)

var errNoRemote = errors.New("no sync server configured (set REMOTE_URL or remote.url)")

func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull the remote copy if newer, then push pending changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.remote == nil {
				return errNoRemote
			}

			force, _ := cmd.Flags().GetBool("force-pull")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			var pulled bool
			if force {
				pulled, err = a.org.ForcePull(cmd.Context())
			} else {
				pulled, err = a.org.Pull(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("pull: %w", err)
			}

			delivered := a.settle(cmd.Context(), timeout)
			report := syncReport{
				Pulled:      pulled,
				Delivered:   delivered,
				Status:      a.org.SyncStatus(),
				Pending:     len(a.org.PendingEntries()),
				DeadLetters: len(a.org.DeadLetters()),
				LastUpdated: a.org.LastUpdated(),
			}
			if a.jsonMode {
				return a.printJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			if pulled {
				fmt.Fprintln(out, "Applied the remote copy")
			} else {
				fmt.Fprintln(out, "Local copy is up to date")
			}
			if delivered {
				fmt.Fprintln(out, "All changes pushed")
			} else {
				fmt.Fprintf(out, "%d snapshot(s) still pending\n", report.Pending)
			}
			if report.DeadLetters > 0 {
				fmt.Fprintf(out, "%d snapshot(s) failed permanently, see 'organizer status'\n", report.DeadLetters)
			}
			return nil
		},
	}
	cmd.Flags().Bool("force-pull", false, "replace local data with the remote copy regardless of timestamps")
	cmd.Flags().Duration("timeout", 30*time.Second, "how long to wait for pending changes to be pushed")
	return cmd
}

type syncReport struct {
	Pulled      bool              `json:"pulled"`
	Delivered   bool              `json:"delivered"`
	Status      domain.SyncStatus `json:"status"`
	Pending     int               `json:"pending"`
	DeadLetters int               `json:"deadLetters"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

type statusReport struct {
	Remote      string             `json:"remote,omitempty"`
	Status      domain.SyncStatus  `json:"status"`
	Pending     int                `json:"pending"`
	DeadLetters int                `json:"deadLetters"`
	LastUpdated time.Time          `json:"lastUpdated"`
	Habits      int                `json:"habits"`
	Today       *domain.DailyStats `json:"today,omitempty"`
}

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync health and today's progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if clearDead, _ := cmd.Flags().GetBool("clear-dead-letters"); clearDead {
				if err := a.org.ClearDeadLetters(cmd.Context()); err != nil {
					return err
				}
			}

			now := time.Now()
			report := statusReport{
				Status:      a.org.SyncStatus(),
				Pending:     len(a.org.PendingEntries()),
				DeadLetters: len(a.org.DeadLetters()),
				LastUpdated: a.org.LastUpdated(),
				Habits:      len(a.org.ListHabits()),
			}
			if a.remote != nil {
				report.Remote = a.cfg.Remote.URL
			}
			if chart, ok := a.org.MonthlyChart(domain.MonthKey(now)); ok {
				if day, ok := chart.Day(domain.DateKey(now)); ok {
					report.Today = &day
				}
			}

			if a.jsonMode {
				return a.printJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			remoteLabel := "local only"
			if report.Remote != "" {
				remoteLabel = report.Remote
			}
			fmt.Fprintf(out, "Remote:        %s\n", remoteLabel)
			fmt.Fprintf(out, "Sync:          %s (%d pending, %d failed)\n", report.Status, report.Pending, report.DeadLetters)
			if !report.LastUpdated.IsZero() {
				fmt.Fprintf(out, "Last updated:  %s\n", report.LastUpdated.Local().Format(time.RFC1123))
			}
			fmt.Fprintf(out, "Habits:        %d\n", report.Habits)
			if report.Today != nil {
				fmt.Fprintf(out, "Today:         %d/%d completed (%d%%)\n",
					report.Today.CompletedHabits, report.Today.TotalHabits, report.Today.Percentage)
			}
			return nil
		},
	}
	cmd.Flags().Bool("clear-dead-letters", false, "forget snapshots that failed permanently")
	return cmd
}

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine: midnight rollups, polling and realtime updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			hidden, _ := cmd.Flags().GetBool("background")
			a.org.SetVisible(!hidden)
			a.org.Start()

			events, unsubscribe := a.org.Subscribe()
			defer unsubscribe()

			if a.remote != nil {
				listener := remote.NewPushListener(remote.PushConfig{
					BaseURL:        a.cfg.Remote.URL,
					Token:          a.cfg.Remote.Token,
					Key:            a.cfg.Remote.Key,
					ReconnectDelay: a.cfg.Sync.PushReconnectDelay,
					OnConnectionChange: func(connected bool) {
						a.logger.Info().Bool("online", connected).Msg("[REALTIME] Connectivity changed")
						a.org.SetOnline(connected)
					},
				}, func(ctx context.Context) {
					if _, err := a.org.ForcePull(ctx); err != nil {
						a.logger.Warn().Err(err).Msg("[REALTIME] Forced pull failed")
					}
				}, logging.New("realtime"))

				go func() {
					if err := listener.Run(ctx); err != nil {
						a.logger.Error().Err(err).Msg("[REALTIME] Listener stopped")
					}
				}()
			}

			a.logger.Info().Str("store", a.cfg.Local.Path).Bool("remote", a.remote != nil).Msg("Engine running")
			for {
				select {
				case <-ctx.Done():
					a.org.Stop()
					shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					a.settle(shutdown, 5*time.Second)
					cancel()
					a.logger.Info().Msg("Engine stopped")
					return nil
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					a.logger.Info().Str("type", string(ev.Type)).Str("source", ev.Source).
						Str("status", string(ev.Status)).Msg("Event")
				}
			}
		},
	}
	cmd.Flags().Bool("background", false, "poll at the slower background pace")
	return cmd
}
