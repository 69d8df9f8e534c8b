package stages

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/voltpipe/voltpipe/internal/catalog"
	"github.com/voltpipe/voltpipe/internal/oracle"
	"github.com/voltpipe/voltpipe/internal/pipeline"
	"github.com/voltpipe/voltpipe/internal/table"
)

const (
	decisionDataset   = "trading_decisions"
	decisionNamespace = "analytics"

	// marketBaseline anchors the prompt's price-deviation signal.
	marketBaseline = 55.0
	// fallbackThreshold drives the rule-based decision when the oracle
	// is unavailable: trade iff the predicted price exceeds it.
	fallbackThreshold = 50.0
)

// Source records which branch produced a decision.
type Source string

const (
	SourceOracle   Source = "oracle"
	SourceFallback Source = "fallback"
)

// Outcome is the decision stage's artifact.
type Outcome struct {
	PredictedPrice float64
	ShouldTrade    bool
	Source         Source
}

// Decision predicts the energy price, asks the oracle whether to trade
// (falling back to the price rule), and persists the result to both the
// lake and the relational mirror.
type Decision struct {
	oracle    OracleGenerator
	lake      LakeWriter
	registrar Registrar
	store     DecisionStore
	rng       *rand.Rand
	now       func() time.Time
}

// NewDecision creates the decision stage. A nil rng seeds from the clock;
// a nil now uses time.Now.
func NewDecision(gen OracleGenerator, lake LakeWriter, registrar Registrar, store DecisionStore, rng *rand.Rand, now func() time.Time) *Decision {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Decision{oracle: gen, lake: lake, registrar: registrar, store: store, rng: rng, now: now}
}

// Stage returns the pipeline stage definition.
func (d *Decision) Stage() pipeline.Stage {
	return pipeline.Stage{
		Name: StageDecision,
		Deps: []string{StageWeather, StageModel},
		Fn:   d.run,
	}
}

func (d *Decision) run(ctx context.Context, in *pipeline.Inputs) (any, error) {
	weatherArtifact, err := in.Artifact(StageWeather)
	if err != nil {
		return nil, err
	}
	frame, ok := weatherArtifact.(*table.Frame)
	if !ok {
		return nil, fmt.Errorf("weather artifact has unexpected type %T", weatherArtifact)
	}

	modelArtifact, err := in.Artifact(StageModel)
	if err != nil {
		return nil, err
	}
	predictor, ok := modelArtifact.(Predictor)
	if !ok {
		return nil, fmt.Errorf("model artifact has unexpected type %T", modelArtifact)
	}

	features := d.latestFeatures(frame)

	predicted, err := predictor.Predict(features)
	if err != nil {
		return nil, fmt.Errorf("predictor failed: %w", err)
	}
	log.Printf("[Decision] Predicted energy price: $%.2f/MWh", predicted)

	shouldTrade, source := d.decide(ctx, features, predicted)

	// Dual persistence: both targets are attempted regardless of the
	// other's outcome. The two stores are eventually-consistent mirrors
	// of the same event, not a transaction, and a persistence failure
	// never suppresses the stage's output.
	d.persistToLake(ctx, predicted, shouldTrade)
	d.persistToMirror(ctx, predicted, shouldTrade)

	return Outcome{PredictedPrice: predicted, ShouldTrade: shouldTrade, Source: source}, nil
}

// latestFeatures takes the most recent telemetry row, or samples demo
// values within fixed domain ranges when the frame is too small.
func (d *Decision) latestFeatures(frame *table.Frame) map[string]float64 {
	if frame.NumRows() > 1 {
		row, err := frame.Latest()
		if err == nil {
			return map[string]float64{
				"temperature": row["temperature"].(float64),
				"humidity":    row["humidity"].(float64),
				"wind_speed":  row["wind_speed"].(float64),
			}
		}
	}

	features := map[string]float64{
		"temperature": d.uniform(15, 30),
		"humidity":    d.uniform(40, 80),
		"wind_speed":  d.uniform(1, 15),
	}
	log.Printf("[Decision] Using generated test data: temp=%.1f°C, humidity=%.1f%%, wind=%.1fm/s",
		features["temperature"], features["humidity"], features["wind_speed"])
	return features
}

// decide consults the oracle; any non-success outcome falls back to the
// price rule. The fallback is a defined branch of normal operation, not a
// degraded mode.
func (d *Decision) decide(ctx context.Context, features map[string]float64, predicted float64) (bool, Source) {
	res := d.oracle.Generate(ctx, d.buildPrompt(features, predicted))
	if res.Kind == oracle.Success {
		shouldTrade := oracle.ShouldTrade(res.Text)
		preview := res.Text
		if len(preview) > 100 {
			preview = preview[:100]
		}
		log.Printf("[Decision] Oracle says: %s", preview)
		return shouldTrade, SourceOracle
	}

	log.Printf("[Decision] Oracle unavailable (%s): %v. Using rule-based fallback.", res.Kind, res.Err)
	shouldTrade := predicted > fallbackThreshold
	log.Printf("[Decision] Fallback decision: trade=%v", shouldTrade)
	return shouldTrade, SourceFallback
}

// buildPrompt describes current conditions, a jittered 6-hour forecast,
// and the predicted price's deviation from the market baseline.
func (d *Decision) buildPrompt(features map[string]float64, predicted float64) string {
	now := d.now()
	forecastTime := now.Add(6 * time.Hour)

	forecastTemp := features["temperature"] + d.rng.NormFloat64()*2
	forecastHumidity := features["humidity"] + d.rng.NormFloat64()*5
	forecastWind := features["wind_speed"] + d.rng.NormFloat64()*2

	priceDiff := predicted - marketBaseline

	return fmt.Sprintf(`You are an AI energy trading analyst. Analyze the following data and decide whether to execute a trade:

CURRENT CONDITIONS (%s):
- Temperature: %.1f°C
- Humidity: %.1f%%
- Wind Speed: %.1f m/s
- ML Predicted Price: $%.2f/MWh (vs market baseline $%.2f/MWh = %+.2f difference)

6-HOUR FORECAST (%s):
- Temperature: %.1f°C
- Humidity: %.1f%%
- Wind Speed: %.1f m/s

ENERGY MARKET ANALYSIS:
- High temperatures often increase AC usage and energy demand, raising prices
- High wind speeds can provide renewable energy, lowering prices
- Price significantly above/below baseline indicates a strong trading signal

TRADING DECISION: Based on current weather conditions, price prediction, and forecast, should we execute an energy trade?

Consider weather impacts on supply/demand, forecast trends, and risk factors. Respond with only "yes" or "no".`,
		now.Format("2006-01-02 15:04"),
		features["temperature"], features["humidity"], features["wind_speed"],
		predicted, marketBaseline, priceDiff,
		forecastTime.Format("2006-01-02 15:04"),
		forecastTemp, forecastHumidity, forecastWind)
}

// persistToLake appends the decision event and registers the dataset.
// Failures are logged; the mirror write still proceeds.
func (d *Decision) persistToLake(ctx context.Context, predicted float64, shouldTrade bool) {
	frame, err := table.NewFrame(
		table.Column{Name: "timestamp", Kind: table.Time},
		table.Column{Name: "predicted_price", Kind: table.Float},
		table.Column{Name: "decision", Kind: table.Bool},
	)
	if err == nil {
		err = frame.AppendRow(d.now(), predicted, shouldTrade)
	}
	if err == nil {
		err = d.lake.Append(decisionDataset, frame)
	}
	if err != nil {
		log.Printf("[Decision] Lake write failed: %v. Decision not stored in lakehouse.", err)
		return
	}

	d.registrar.Register(ctx, catalog.RegisterRequest{
		Namespace: decisionNamespace,
		Table:     decisionDataset,
		Columns: []catalog.FieldSchema{
			{Name: "timestamp", Type: "timestamp", Comment: "Decision timestamp"},
			{Name: "predicted_price", Type: "double", Comment: "Predicted energy price"},
			{Name: "decision", Type: "boolean", Comment: "Trading decision"},
		},
		Location: d.lake.LocationURI(decisionDataset),
	})
}

// persistToMirror inserts the decision event with its surrogate key.
// Failures are logged; they do not suppress the stage output.
func (d *Decision) persistToMirror(ctx context.Context, predicted float64, shouldTrade bool) {
	if err := d.store.EnsureSchema(ctx); err != nil {
		log.Printf("[Decision] Mirror schema setup failed: %v. Decision not mirrored.", err)
		return
	}
	if _, err := d.store.InsertDecision(ctx, d.now(), predicted, shouldTrade); err != nil {
		log.Printf("[Decision] Mirror write failed: %v. Decision not mirrored.", err)
	}
}

func (d *Decision) uniform(lo, hi float64) float64 {
	return lo + d.rng.Float64()*(hi-lo)
}
