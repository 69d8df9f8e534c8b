package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/voltpipe/voltpipe/internal/config"
	"github.com/voltpipe/voltpipe/internal/journal"
	"github.com/voltpipe/voltpipe/internal/printer"
)

var historyRunID string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the journal record of a pipeline run",
	Long: `Show the journal record of a pipeline run: stage statuses, timings,
and which datasets were registered in the catalog. Defaults to the most
recent run; use --run to inspect an older one.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "Run id to inspect (default: most recent)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return printer.Error("Invalid configuration", err.Error(), nil)
	}
	if cfg.Journal.Addr == "" {
		return printer.Error("Run journal not configured",
			"No journal address is set, so runs are not being recorded.",
			[]string{"Set journal.addr in the configuration file"})
	}

	jc := journal.NewClient(&redis.Options{Addr: cfg.Journal.Addr})
	defer jc.Close()

	runID := historyRunID
	if runID == "" {
		runID, err = jc.LastRunID(ctx)
		if errors.Is(err, redis.Nil) {
			return printer.Error("No runs recorded",
				"The journal has no run entries yet.",
				[]string{"Run 'voltpipe run' first"})
		}
		if err != nil {
			return printer.Error("Run journal unreachable", err.Error(), nil)
		}
	}

	rec, err := jc.GetRun(ctx, runID)
	if errors.Is(err, redis.Nil) {
		return printer.Error("Unknown run",
			fmt.Sprintf("The journal has no record of run %s.", runID),
			nil)
	}
	if err != nil {
		return printer.Error("Run journal unreachable", err.Error(), nil)
	}

	printer.Info("Run %s (%s)\n", rec.ID, rec.Status)
	if !rec.Started.IsZero() {
		printer.Info("Started:  %s\n", rec.Started.Format("2006-01-02 15:04:05 MST"))
	}
	if !rec.Finished.IsZero() {
		printer.Info("Finished: %s (%s)\n",
			rec.Finished.Format("2006-01-02 15:04:05 MST"),
			rec.Finished.Sub(rec.Started).Round(time.Millisecond))
	}

	printer.Info("\nStages:\n")
	for _, s := range rec.Stages {
		printer.StageStatus(s.Name, s.Status)
		if s.Error != "" {
			printer.Printf("      %s\n", s.Error)
		}
	}

	if len(rec.Registrations) > 0 {
		printer.Info("\nCatalog registrations:\n")
		for table, outcome := range rec.Registrations {
			printer.Printf("  %-35s %s\n", table, outcome)
		}
	}

	return nil
}
