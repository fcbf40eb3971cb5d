package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"planningsprite/internal/app"
	"planningsprite/internal/config"
	"planningsprite/internal/ics"
	appLog "planningsprite/internal/log"
	"planningsprite/internal/web"
	"planningsprite/internal/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the planner API, push change notifications over a websocket,
refresh calendar subscriptions and write periodic ICS snapshots.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().Bool("no-sync", false, "skip the initial subscription sync")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.Listen = v
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	appLog.Info("planningsprite starting",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"horizon_days", cfg.HorizonDays,
		"subscriptions", len(cfg.Subscriptions),
		"gemini_model", cfg.Gemini.Model,
		"export_path", cfg.Export.Path,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Close()

	session, err := newSession(cfg, hub)
	if err != nil {
		return err
	}

	syncer := newSyncer(cfg, session, loc)
	sched := app.NewScheduler(ctx, loc)
	if err := registerJobs(sched, cfg, session, syncer); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if noSync, _ := cmd.Flags().GetBool("no-sync"); !noSync && syncer != nil {
		go func() { _, _ = syncer.SyncAll(ctx) }()
	}

	srv := web.NewServer(session, web.Options{
		Hub:       hub,
		Syncer:    syncer,
		BasicAuth: cfg.BasicAuth,
	})
	if err := srv.ListenAndServe(ctx, cfg.Listen); err != nil {
		appLog.Error("HTTP server failed", err)
		return err
	}
	appLog.Info("planningsprite exiting")
	return nil
}

func newSyncer(cfg *config.Config, session *app.Session, loc *time.Location) *app.Syncer {
	if len(cfg.Subscriptions) == 0 {
		return nil
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			cacheDir = filepath.Join(dir, "planningsprite")
		}
	}
	subs := make([]ics.Subscription, 0, len(cfg.Subscriptions))
	for _, s := range cfg.Subscriptions {
		subs = append(subs, s.Subscription())
	}
	return app.NewSyncer(session,
		ics.NewFetcher(cacheDir, 30*time.Second),
		ics.NewDocumentParser(time.Now, loc, cfg.HorizonDays),
		subs)
}

func registerJobs(sched *app.Scheduler, cfg *config.Config, session *app.Session, syncer *app.Syncer) error {
	if syncer != nil {
		err := sched.Add("refresh", cfg.RefreshCron, func(ctx context.Context) error {
			_, err := syncer.SyncAll(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}
	if cfg.Export.Path != "" {
		path := cfg.Export.Path
		err := sched.Add("export", cfg.Export.Cron, func(context.Context) error {
			return session.ExportTo(path)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
