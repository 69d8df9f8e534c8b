package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/voltpipe/voltpipe/internal/pipeline"
	"github.com/voltpipe/voltpipe/internal/printer"
	"github.com/voltpipe/voltpipe/internal/stages"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the stage execution order without running anything",
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

// planStages builds the stage definitions with no live clients; only the
// names and dependencies matter here.
func planStages() []pipeline.Stage {
	return []pipeline.Stage{
		stages.NewWeather(nil, nil, 1, nil).Stage(),
		stages.NewModel(nil).Stage(),
		stages.NewDecision(nil, nil, nil, nil, nil, nil).Stage(),
		stages.NewCatalogs(nil, stages.CatalogsConfig{}).Stage(),
		stages.NewAnalytics(nil, "").Stage(),
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	defs := planStages()
	g, err := pipeline.NewGraph(defs...)
	if err != nil {
		return printer.Error("Invalid pipeline definition", err.Error(), nil)
	}

	order := g.TopoOrder()

	deps := make(map[string][]string, len(defs))
	for _, s := range defs {
		deps[s.Name] = s.Deps
	}

	printer.Info("Execution order:\n")
	for i, name := range order {
		if len(deps[name]) == 0 {
			printer.Printf("  %d. %s\n", i+1, name)
			continue
		}
		printer.Printf("  %d. %-25s (after %s)\n", i+1, name, strings.Join(deps[name], ", "))
	}
	return nil
}
