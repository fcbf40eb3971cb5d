// Package cmd holds the planningsprite command line.
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"planningsprite/internal/app"
	"planningsprite/internal/config"
	"planningsprite/internal/gemini"
	"planningsprite/internal/ics"
	appLog "planningsprite/internal/log"
	"planningsprite/internal/store"
	"planningsprite/internal/tasks"
)

var rootCmd = &cobra.Command{
	Use:   "planningsprite",
	Short: "Weekly planner with constraint-checked AI scheduling",
	Long: `Planning Sprite keeps a weekly calendar and a task backlog, asks a
language model for candidate schedules that respect your availability
template, and merges the one you pick after checking it locally.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "planningsprite.yaml", "config file (created with defaults if missing)")
	rootCmd.PersistentFlags().StringSlice("env", nil, ".env files to load (default .env)")
}

// loadConfig reads the config file named by --config, applies the
// environment and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFiles, _ := cmd.Flags().GetStringSlice("env")

	cfg, err := config.Load(path)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		appLog.Warn("could not write default config, continuing with defaults", "path", path, "error", err.Error())
	}
	cfg.LoadEnv(envFiles...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// newSession wires a session from cfg. The Gemini client is attached only
// when an API key is present; without one, scheduling and non-calendar
// imports report that they are not configured.
func newSession(cfg *config.Config, notifier app.Notifier) (*app.Session, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	constraints, err := cfg.Constraints()
	if err != nil {
		return nil, err
	}
	gc, err := cfg.GridConfig()
	if err != nil {
		return nil, err
	}

	chain := app.ParserChain{Local: ics.NewDocumentParser(time.Now, loc, cfg.HorizonDays)}
	opts := []app.Option{
		app.WithGrid(gc),
		app.WithHorizonDays(cfg.HorizonDays),
	}
	if cfg.Gemini.APIKey != "" {
		client := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, loc)
		client.Endpoint = cfg.Gemini.Endpoint
		client.HTTP.Timeout = time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second
		chain.Remote = client
		opts = append(opts, app.WithPlanner(client))
	} else {
		appLog.Warn("no Gemini API key, plan generation and document import are disabled", "env", config.EnvGeminiAPIKey)
	}
	opts = append(opts, app.WithParser(chain))
	if notifier != nil {
		opts = append(opts, app.WithNotifier(notifier))
	}

	st := store.New(store.WithRecurrenceCounts(cfg.Recurrence))
	return app.NewSession(st, tasks.New(), constraints, opts...), nil
}

// output opens path for writing, or returns stdout for "" and "-".
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
