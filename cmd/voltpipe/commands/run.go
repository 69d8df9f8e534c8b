package commands

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/voltpipe/voltpipe/internal/catalog"
	"github.com/voltpipe/voltpipe/internal/config"
	"github.com/voltpipe/voltpipe/internal/journal"
	"github.com/voltpipe/voltpipe/internal/lake"
	"github.com/voltpipe/voltpipe/internal/mirror"
	"github.com/voltpipe/voltpipe/internal/oracle"
	"github.com/voltpipe/voltpipe/internal/pipeline"
	"github.com/voltpipe/voltpipe/internal/printer"
	"github.com/voltpipe/voltpipe/internal/stages"
)

var (
	runSamples int
	runSeed    int64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the full analytics pipeline",
	Long: `Execute every pipeline stage in dependency order:

  1. weather_data             generate telemetry and land it in the lake
  2. trained_model            fit the price predictor on the fresh batch
  3. trading_decision         oracle (or fallback) decision, dual-persisted
  4. external_catalogs        recreate the engine's external catalogs
  5. multi_catalog_analytics  materialize the cross-catalog analytics table

Independent stages run concurrently. A stage whose dependency failed is
skipped; the rest of the pipeline still completes.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().IntVar(&runSamples, "samples", 0, "Override the telemetry sample count")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "Seed for deterministic generation (0 = random)")
	rootCmd.AddCommand(runCmd)
}

// journalObserver wires the Redis journal into a run. It captures the run
// id from RunStarted so registration outcomes can be recorded under it.
// RunStarted fires before any stage goroutine starts, so the capture is
// safe to read from report.
type journalObserver struct {
	*journal.Client
	runID string
}

func (o *journalObserver) RunStarted(runID string, stageNames []string) {
	o.runID = runID
	o.Client.RunStarted(runID, stageNames)
}

func (o *journalObserver) report(table string, outcome catalog.Outcome) {
	o.Client.Reporter(o.runID)(table, outcome)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return printer.Error("Invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Check %s and fix the reported option", configPath)})
	}
	if runSamples > 0 {
		cfg.Samples = runSamples
	}

	// The journal is optional and best-effort: an unreachable Redis only
	// costs the run record, never the run.
	var obs pipeline.Observer
	var reporter catalog.Reporter
	if cfg.Journal.Addr != "" {
		jo := &journalObserver{Client: journal.NewClient(&redis.Options{Addr: cfg.Journal.Addr})}
		defer jo.Close()
		if err := jo.Ping(ctx); err != nil {
			printer.Warning("Run journal unavailable at %s: %v\n", cfg.Journal.Addr, err)
		} else {
			obs = jo
			reporter = jo.report
		}
	}

	mirrorClient, err := mirror.Open(mirror.Config{
		Host:     cfg.Mirror.Host,
		Port:     cfg.Mirror.Port,
		User:     cfg.Mirror.User,
		Password: cfg.Mirror.Password,
		Database: cfg.Mirror.Database,
	})
	if err != nil {
		return printer.Error("Cannot configure relational mirror",
			err.Error(),
			[]string{"Check the mirror section of the configuration"})
	}
	defer mirrorClient.Close()

	lakeClient := lake.NewClient(cfg.Storage.Account, cfg.Storage.Container, cfg.Storage.Root)
	registrar := catalog.NewRegistrar(
		catalog.NewGatewayClient(cfg.MetastoreBaseURL()),
		cfg.Storage.Container, cfg.Storage.Account, reporter)
	oracleClient := oracle.NewClient(cfg.OracleBaseURL(), cfg.Oracle.Model, cfg.Oracle.Timeout)

	// With an explicit seed each stage gets its own deterministic stream;
	// otherwise the stages seed themselves from the clock.
	var weatherRng, modelRng, decisionRng *rand.Rand
	if runSeed != 0 {
		weatherRng = rand.New(rand.NewSource(runSeed))
		modelRng = rand.New(rand.NewSource(runSeed + 1))
		decisionRng = rand.New(rand.NewSource(runSeed + 2))
	}

	g, err := stages.BuildGraph(
		stages.NewWeather(lakeClient, registrar, cfg.Samples, weatherRng),
		stages.NewModel(modelRng),
		stages.NewDecision(oracleClient, lakeClient, registrar, mirrorClient, decisionRng, nil),
		stages.NewCatalogs(mirrorClient, stages.CatalogsConfig{
			MetastoreURI:   cfg.MetastoreThriftURI(),
			StorageAccount: cfg.Storage.Account,
			StorageKey:     cfg.Storage.Key,
			MetaDBUser:     cfg.MetaDB.User,
			MetaDBPassword: cfg.MetaDB.Password,
			MetaDBJDBCURI:  cfg.MetaDB.JDBCURI,
		}),
		stages.NewAnalytics(mirrorClient, cfg.Mirror.Database),
	)
	if err != nil {
		return printer.Error("Invalid pipeline definition", err.Error(), nil)
	}

	printer.Step("Starting pipeline run (%d samples)\n", cfg.Samples)
	res := g.Run(ctx, obs)

	printer.Info("\nRun %s\n", res.ID)
	for _, name := range g.Stages() {
		printer.StageStatus(name, string(res.Statuses[name]))
	}

	if artifact, ok := res.Artifact(stages.StageDecision); ok {
		out := artifact.(stages.Outcome)
		printer.Info("\nDecision: trade=%v, predicted price $%.2f/MWh (source: %s)\n",
			out.ShouldTrade, out.PredictedPrice, out.Source)
	}

	if res.Failed() {
		failed := res.StagesWithStatus(g, pipeline.StatusFailed)
		var details []string
		for _, name := range failed {
			details = append(details, fmt.Sprintf("%s: %v", name, res.Errs[name]))
		}
		if skipped := res.StagesWithStatus(g, pipeline.StatusSkipped); len(skipped) > 0 {
			details = append(details, "skipped: "+strings.Join(skipped, ", "))
		}
		return printer.Error("Pipeline run failed",
			strings.Join(details, "\n"),
			[]string{"Check connectivity to the lake, mirror, and catalog services"})
	}

	printer.Success("Pipeline completed\n")
	return nil
}
