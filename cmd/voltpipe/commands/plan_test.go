package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltpipe/voltpipe/internal/pipeline"
	"github.com/voltpipe/voltpipe/internal/stages"
)

func TestPlanStagesFormValidGraph(t *testing.T) {
	defs := planStages()
	require.Len(t, defs, 5)

	g, err := pipeline.NewGraph(defs...)
	require.NoError(t, err)

	order := g.TopoOrder()
	require.Len(t, order, 5)

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	for _, s := range defs {
		for _, dep := range s.Deps {
			assert.Less(t, pos[dep], pos[s.Name], "%s must run after %s", s.Name, dep)
		}
	}

	// Telemetry always comes first; the federated join always comes last.
	assert.Equal(t, stages.StageWeather, order[0])
	assert.Equal(t, stages.StageAnalytics, order[len(order)-1])
}
