package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"reminder_relay/internal/app"
	"reminder_relay/internal/domain/push"
	"reminder_relay/internal/domain/reminder"
	"reminder_relay/internal/infra/config"
	idb "reminder_relay/internal/infra/database"
	"reminder_relay/internal/infra/health"
	"reminder_relay/internal/infra/logger"
	"reminder_relay/internal/infra/ntfy"
	"reminder_relay/internal/infra/pgnotify"
	"reminder_relay/internal/infra/scheduler"
	"reminder_relay/internal/infra/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	serve := newServeCommand()
	cmd := &cobra.Command{
		Use:           "reminder-relay",
		Short:         "Relay task reminders from PostgreSQL notifications to ntfy",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.AddCommand(serve)
	cmd.AddCommand(newInitDBCommand())
	cmd.AddCommand(newInstallTriggerCommand())
	cmd.AddCommand(newHistoryCommand())
	return cmd
}

// loadConfig loads configuration and initializes the logger.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	return cfg, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the change listener, the due scanner and the health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.Component("main")
			log.WithFields(logrus.Fields{
				"environment": cfg.Environment,
				"sqlite_path": cfg.SQLitePath,
				"channel":     cfg.NotifyChannel,
			}).Info("Configuration loaded")

			db, err := idb.NewSQLiteConnection(cfg.SQLitePath)
			if err != nil {
				return fmt.Errorf("could not open reminder store: %w", err)
			}
			defer db.Close()
			log.Info("SQLite database initialized.")
			repo := idb.NewSQLiteReminderRepository(db)

			notifier, err := buildNotifier(cfg)
			if err != nil {
				return err
			}

			openSource := func(ctx context.Context) (reminder.ChangeSource, error) {
				src, err := pgnotify.Open(ctx, cfg.PostgresDSN(), cfg.NotifyChannel, cfg.ListenerPingInterval, logger.Component("pgnotify"))
				if err != nil {
					return nil, err
				}
				return src, nil
			}
			listener := app.NewListener(repo, openSource, logger.Component("listener"))
			dispatcher := app.NewDispatcher(repo, notifier, logger.Component("dispatcher"))
			dueScheduler := scheduler.NewDueScheduler(dispatcher, logger.Component("scheduler"), cfg.ScanInterval)

			if cfg.LogLevel != "debug" && cfg.LogLevel != "trace" {
				gin.SetMode(gin.ReleaseMode)
			}
			healthServer := health.NewServer(cfg.HTTPAddr, logger.Component("health"))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info("Application setup complete. Listener and scheduler are starting...")
			err = app.NewSupervisor(logger.Component("supervisor")).
				Add("listener", listener).
				Add("scheduler", dueScheduler).
				Add("health", healthServer).
				Run(ctx)
			if err != nil {
				return err
			}
			log.Info("Application shut down gracefully.")
			return nil
		},
	}
}

// buildNotifier returns ntfy alone, or ntfy fanned out with Telegram when configured.
func buildNotifier(cfg *config.AppConfig) (push.Notifier, error) {
	ntfyClient := ntfy.New(cfg.NtfyURL, cfg.NtfyTags, cfg.NtfyClick, cfg.NtfyTimeout)
	if !cfg.TelegramEnabled() {
		return ntfyClient, nil
	}
	tg, err := telegram.NewTelebotNotifier(cfg.TelegramToken, cfg.TelegramChatID, "", cfg.NtfyTimeout)
	if err != nil {
		return nil, err
	}
	logger.Component("main").WithField("chat_id", cfg.TelegramChatID).Info("Telegram delivery enabled")
	return push.Fanout{ntfyClient, tg}, nil
}

func newInitDBCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the local reminder store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := idb.NewSQLiteConnection(cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "SQLite database initialized at %s\n", cfg.SQLitePath)
			return nil
		},
	}
}

func newInstallTriggerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install-trigger",
		Short: "Install the PostgreSQL trigger that publishes reminder changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := idb.NewPostgresConnection(cfg.PostgresDSN())
			if err != nil {
				return fmt.Errorf("could not connect to database: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := idb.InstallChangeTrigger(ctx, db, cfg.NotifyChannel); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trigger installed, changes are published on %s\n", cfg.NotifyChannel)
			return nil
		},
	}
}

func newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently processed reminders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := idb.NewSQLiteConnection(cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()

			archived, err := idb.NewSQLiteReminderRepository(db).ListArchived(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), archived)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 for all)")
	return cmd
}

func writeHistory(out io.Writer, archived []*reminder.ArchivedReminder) error {
	if len(archived) == 0 {
		_, err := fmt.Fprintln(out, "No processed reminders yet.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTASK\tREMINDER\tMOVED AT\tDESCRIPTION")
	for _, a := range archived {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.TaskName,
			a.ReminderTime.Format(time.RFC3339), a.MovedAt.Format(time.RFC3339), a.Description)
	}
	return tw.Flush()
}
