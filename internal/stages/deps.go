// Package stages defines the concrete pipeline: synthetic weather
// telemetry, a trained price predictor, the oracle-backed trading decision
// with dual persistence, external catalog bootstrap, and the federated
// analytics materialization. Stage names double as artifact names.
package stages

import (
	"context"
	"time"

	"github.com/voltpipe/voltpipe/internal/catalog"
	"github.com/voltpipe/voltpipe/internal/oracle"
	"github.com/voltpipe/voltpipe/internal/table"
)

// Stage names, used as dependency references and artifact keys.
const (
	StageWeather   = "weather_data"
	StageModel     = "trained_model"
	StageDecision  = "trading_decision"
	StageCatalogs  = "external_catalogs"
	StageAnalytics = "multi_catalog_analytics"
)

// LakeWriter is the slice of the lake client the stages need.
type LakeWriter interface {
	Append(dataset string, f *table.Frame) error
	LocationURI(dataset string) string
}

// Registrar declares datasets in the metadata catalog.
type Registrar interface {
	Register(ctx context.Context, req catalog.RegisterRequest) catalog.Outcome
}

// DecisionStore is the slice of the mirror client the decision stage needs.
type DecisionStore interface {
	EnsureSchema(ctx context.Context) error
	InsertDecision(ctx context.Context, ts time.Time, predictedPrice float64, decision bool) (int64, error)
}

// SQLRunner executes statements against the federated query engine.
type SQLRunner interface {
	Exec(ctx context.Context, query string, args ...any) error
	QueryStrings(ctx context.Context, query string, args ...any) ([]string, error)
	QueryCount(ctx context.Context, query string, args ...any) (int64, error)
}

// OracleGenerator produces the reasoning signal for the decision stage.
type OracleGenerator interface {
	Generate(ctx context.Context, prompt string) oracle.Result
}
