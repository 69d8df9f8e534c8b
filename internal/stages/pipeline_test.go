package stages

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltpipe/voltpipe/internal/oracle"
	"github.com/voltpipe/voltpipe/internal/pipeline"
	"github.com/voltpipe/voltpipe/internal/table"
)

// Full pipeline with in-memory infrastructure and the oracle forced down,
// so the run exercises the fallback path end to end.
func TestPipelineEndToEnd(t *testing.T) {
	lake := newFakeLake()
	registrar := newFakeRegistrar()
	store := &fakeStore{}
	sql := &fakeSQL{catalogs: []string{"default_catalog", "hive_catalog", "postgres_catalog"}, count: 1}
	gen := &fakeOracle{result: oracle.Result{Kind: oracle.TransportError, Err: errors.New("oracle down")}}

	rng := rand.New(rand.NewSource(11))
	g, err := BuildGraph(
		NewWeather(lake, registrar, 50, rng),
		NewModel(rand.New(rand.NewSource(12))),
		NewDecision(gen, lake, registrar, store, rand.New(rand.NewSource(13)), nil),
		NewCatalogs(sql, testCatalogsConfig()),
		NewAnalytics(sql, "energy_trading"),
	)
	require.NoError(t, err)

	res := g.Run(context.Background(), nil)
	require.False(t, res.Failed(), "pipeline failed: %v", res.Errs)
	for name, st := range res.Statuses {
		assert.Equal(t, pipeline.StatusSucceeded, st, "stage %s", name)
	}

	// Telemetry and the decision event both landed in the lake.
	assert.Len(t, lake.frames(weatherDataset), 1)
	assert.Len(t, lake.frames(decisionDataset), 1)

	// One mirrored decision, consistent with the fallback rule.
	require.Len(t, store.inserts, 1)
	artifact, ok := res.Artifact(StageDecision)
	require.True(t, ok)
	out := artifact.(Outcome)
	assert.Equal(t, SourceFallback, out.Source)
	assert.Equal(t, out.PredictedPrice > 50, out.ShouldTrade)
	assert.Equal(t, out.ShouldTrade, store.inserts[0].trade)

	// Both datasets were registered in the catalog.
	require.Len(t, registrar.requests, 2)

	// The analytics table was rebuilt through the federated engine.
	assert.True(t, sql.executed("INSERT INTO energy_trading.decision_weather_analytics"))
}

// Five telemetry rows, oracle down: the decision must follow the price
// rule and land one matching record in each store.
func TestPipelineTinyBatchOracleDown(t *testing.T) {
	lake := newFakeLake()
	store := &fakeStore{}
	gen := &fakeOracle{result: oracle.Result{Kind: oracle.Timeout, Err: errors.New("deadline exceeded")}}

	frame, err := table.NewFrame(
		table.Column{Name: "temperature", Kind: table.Float},
		table.Column{Name: "humidity", Kind: table.Float},
		table.Column{Name: "wind_speed", Kind: table.Float},
		table.Column{Name: "energy_price", Kind: table.Float},
	)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(21))
	for i := 0; i < 5; i++ {
		temp := 10 + rng.Float64()*25
		hum := 30 + rng.Float64()*60
		wind := rng.Float64() * 20
		price := 30 + 1.5*temp - 0.8*wind
		require.NoError(t, frame.AppendRow(temp, hum, wind, price))
	}

	decision := NewDecision(gen, lake, newFakeRegistrar(), store, rand.New(rand.NewSource(22)), nil)
	g, err := pipeline.NewGraph(
		stubStage(StageWeather, nil, frame),
		NewModel(rand.New(rand.NewSource(23))).Stage(),
		decision.Stage(),
	)
	require.NoError(t, err)

	res := g.Run(context.Background(), nil)
	require.False(t, res.Failed(), "run failed: %v", res.Errs)

	artifact, ok := res.Artifact(StageDecision)
	require.True(t, ok)
	out := artifact.(Outcome)
	assert.Equal(t, SourceFallback, out.Source)
	assert.Equal(t, out.PredictedPrice > 50, out.ShouldTrade)

	// One record per store, with matching price to two decimals.
	require.Len(t, store.inserts, 1)
	assert.InDelta(t, out.PredictedPrice, store.inserts[0].price, 0.005)

	frames := lake.frames(decisionDataset)
	require.Len(t, frames, 1)
	stored, err := frames[0].Float(0, "predicted_price")
	require.NoError(t, err)
	assert.InDelta(t, out.PredictedPrice, stored, 0.005)
}

func TestPipelineWeatherFailureSkipsDependents(t *testing.T) {
	lake := newFakeLake()
	lake.failAppend = errors.New("storage unreachable")
	store := &fakeStore{}
	sql := &fakeSQL{catalogs: []string{"hive_catalog", "postgres_catalog"}}
	gen := &fakeOracle{result: oracle.Result{Kind: oracle.Success, Text: "yes"}}

	g, err := BuildGraph(
		NewWeather(lake, newFakeRegistrar(), 10, rand.New(rand.NewSource(1))),
		NewModel(rand.New(rand.NewSource(2))),
		NewDecision(gen, lake, newFakeRegistrar(), store, rand.New(rand.NewSource(3)), nil),
		NewCatalogs(sql, testCatalogsConfig()),
		NewAnalytics(sql, "energy_trading"),
	)
	require.NoError(t, err)

	res := g.Run(context.Background(), nil)
	require.True(t, res.Failed())

	assert.Equal(t, pipeline.StatusFailed, res.Statuses[StageWeather])
	for _, name := range []string{StageModel, StageDecision, StageCatalogs, StageAnalytics} {
		assert.Equal(t, pipeline.StatusSkipped, res.Statuses[name], "stage %s", name)
	}

	// Skipped stages produced no side effects.
	assert.Empty(t, store.inserts)
	assert.Empty(t, sql.execs)
}
