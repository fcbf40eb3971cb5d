package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"planningsprite/internal/ics"
	"planningsprite/internal/plan"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Normalize an ICS file into the export format",
	Long: `Read a calendar file, expand its recurring events over the configured
horizon and write them as a Planning Sprite export.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("from", "", "input .ics file (required)")
	exportCmd.Flags().StringP("out", "o", "-", "output file, - for stdout")
	_ = exportCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	from, _ := cmd.Flags().GetString("from")
	body, err := os.ReadFile(from)
	if err != nil {
		return err
	}

	now := time.Now()
	parser := ics.NewDocumentParser(func() time.Time { return now }, loc, cfg.HorizonDays)
	doc, err := parser.ParseDocument(cmd.Context(), body, "text/calendar")
	if err != nil {
		return fmt.Errorf("parse %s: %w", from, err)
	}
	events, err := plan.ImportEvents(doc, "file", uuid.NewString)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("out")
	w, closeFn, err := output(cmd, path)
	if err != nil {
		return err
	}
	if err := ics.Export(w, events, now); err != nil {
		_ = closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), doc.Summary)
	return nil
}
