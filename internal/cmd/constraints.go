package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"planningsprite/internal/plan"
)

var constraintsCmd = &cobra.Command{
	Use:   "constraints",
	Short: "Print the per-date availability sent to the planner",
	RunE:  runConstraints,
}

func init() {
	constraintsCmd.Flags().String("date", "", "first date, YYYY-MM-DD (default today)")
	constraintsCmd.Flags().Int("days", 0, "number of dates (default horizon_days)")
	constraintsCmd.Flags().Bool("text", false, "print the prompt lines instead of JSON")
	rootCmd.AddCommand(constraintsCmd)
}

func runConstraints(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	c, err := cfg.Constraints()
	if err != nil {
		return err
	}

	from := time.Now().In(loc)
	if v, _ := cmd.Flags().GetString("date"); v != "" {
		if from, err = time.ParseInLocation("2006-01-02", v, loc); err != nil {
			return fmt.Errorf("--date: %w", err)
		}
	}
	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		days = cfg.HorizonDays
	}

	req := plan.BuildRequest(nil, nil, c, from, days)
	out := cmd.OutOrStdout()
	if text, _ := cmd.Flags().GetBool("text"); text {
		for _, w := range req.Windows {
			fmt.Fprintln(out, w.String())
		}
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(req.Constraints)
}
