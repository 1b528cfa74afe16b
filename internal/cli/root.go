// Package cli implements the organizer command line: a local-first client
// that keeps its data in a local store and mirrors it to a sync server when
// one is configured.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/adapters/remote"
	"github.com/comitanigiacomo/kanso-organizer/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-organizer/internal/clock"
	"github.com/comitanigiacomo/kanso-organizer/internal/config"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/commands"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/services"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/workers"
	"github.com/comitanigiacomo/kanso-organizer/internal/logging"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const AppName = "organizer"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Kanso organizer - local-first habits, journal and more",
		Long:          "Kanso organizer keeps habits, journal, body metrics, finance and study data in a local store and syncs it to a kanso sync server when one is configured.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("config", "", "path to a kanso.yaml config file")
	cmd.PersistentFlags().String("local-path", "", "override the local store path")
	cmd.PersistentFlags().String("local-driver", "", "override the local store driver (sqlite or badger)")
	cmd.PersistentFlags().Bool("offline", false, "do not contact the sync server")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")

	cmd.AddCommand(
		NewHabitCmd(),
		NewJournalCmd(),
		NewExecCmd(),
		NewAuditCmd(),
		NewExportCmd(),
		NewImportCmd(),
		NewResetCmd(),
		NewSyncCmd(),
		NewStatusCmd(),
		NewRunCmd(),
		NewTokenCmd(),
		NewAccountCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}

type localStore interface {
	domain.KeyValueStore
	domain.AuditLog
	Close() error
}

// app holds what a command needs for one invocation.
type app struct {
	cfg      *config.Config
	store    localStore
	org      *services.Organizer
	executor *commands.Executor
	remote   *remote.Client
	jsonMode bool
	logger   zerolog.Logger
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		os.Setenv(config.ConfigPathEnvVar, path)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	driver, _ := cmd.Flags().GetString("local-driver")
	path, _ := cmd.Flags().GetString("local-path")
	if driver != "" && driver != cfg.Local.Driver {
		cfg.Local.Driver = driver
		if path == "" {
			if path, err = config.DefaultLocalPath(driver); err != nil {
				return nil, err
			}
		}
	}
	if path != "" {
		cfg.Local.Path = path
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, nil
}

func openLocalStore(cfg config.LocalConfig) (localStore, error) {
	switch cfg.Driver {
	case "badger":
		return repository.OpenBadgerLocalStore(cfg.Path)
	default:
		return repository.OpenSQLiteLocalStore(cfg.Path)
	}
}

func organizerConfig(cfg *config.Config) services.OrganizerConfig {
	return services.OrganizerConfig{
		RemoteKey: cfg.Remote.Key,
		Queue: workers.SyncQueueConfig{
			MaxRetries: cfg.Sync.MaxRetries,
			RetryDelay: cfg.Sync.RetryDelay,
		},
		Poller: workers.PollerConfig{
			Interval:         cfg.Sync.PollInterval,
			HiddenInterval:   cfg.Sync.HiddenPollInterval,
			MaxInterval:      cfg.Sync.MaxPollInterval,
			FailureThreshold: cfg.Sync.FailureThreshold,
		},
	}
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	store, err := openLocalStore(cfg.Local)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	a := &app{cfg: cfg, store: store, logger: logging.New("organizer")}
	a.jsonMode, _ = cmd.Flags().GetBool("json")

	offline, _ := cmd.Flags().GetBool("offline")
	var remoteStore domain.RemoteStore
	if cfg.Remote.URL != "" && !offline {
		a.remote = remote.NewClient(remote.ClientConfig{
			BaseURL: cfg.Remote.URL,
			Token:   cfg.Remote.Token,
		}, logging.New("remote"))
		remoteStore = a.remote
	}

	a.org = services.NewOrganizer(store, remoteStore, clock.System{}, organizerConfig(cfg), a.logger)
	if err := a.org.Open(cmd.Context()); err != nil {
		store.Close()
		return nil, fmt.Errorf("open organizer: %w", err)
	}
	a.executor = commands.NewExecutor(a.org, store, clock.System{}, logging.New("commands"))
	return a, nil
}

func (a *app) Close() error {
	a.org.Close()
	return a.store.Close()
}

// settle waits for pending snapshots to reach the remote store, up to
// timeout. It reports whether the queue ended up empty.
func (a *app) settle(ctx context.Context, timeout time.Duration) bool {
	if a.remote == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		a.org.ForceSync(ctx)
		if len(a.org.PendingEntries()) == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// afterMutation gives a freshly queued snapshot a short chance to sync.
func (a *app) afterMutation(cmd *cobra.Command) {
	if !a.settle(cmd.Context(), 5*time.Second) && !a.jsonMode {
		fmt.Fprintln(cmd.ErrOrStderr(), "saved locally; sync pending")
	}
}

func (a *app) printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
