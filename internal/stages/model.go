package stages

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/voltpipe/voltpipe/internal/pipeline"
	"github.com/voltpipe/voltpipe/internal/table"
)

// featureColumns is the model's input order. The target is energy_price.
var featureColumns = []string{"temperature", "humidity", "wind_speed"}

const targetColumn = "energy_price"

// Predictor produces a single scalar forecast from named numeric features.
// The scheduler treats predictors as opaque artifact values.
type Predictor interface {
	Predict(features map[string]float64) (float64, error)
}

// LinearModel is an ordinary-least-squares fit of the target on the
// feature columns plus an intercept.
type LinearModel struct {
	Intercept    float64
	Coefficients map[string]float64
}

// Predict implements Predictor.
func (m *LinearModel) Predict(features map[string]float64) (float64, error) {
	out := m.Intercept
	for name, coef := range m.Coefficients {
		v, ok := features[name]
		if !ok {
			return 0, fmt.Errorf("missing feature %q", name)
		}
		out += coef * v
	}
	return out, nil
}

// Model trains the price predictor from the weather artifact.
type Model struct {
	rng *rand.Rand
}

// NewModel creates the training stage. A nil rng seeds from the clock.
func NewModel(rng *rand.Rand) *Model {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Model{rng: rng}
}

// Stage returns the pipeline stage definition.
func (m *Model) Stage() pipeline.Stage {
	return pipeline.Stage{Name: StageModel, Deps: []string{StageWeather}, Fn: m.run}
}

func (m *Model) run(ctx context.Context, in *pipeline.Inputs) (any, error) {
	artifact, err := in.Artifact(StageWeather)
	if err != nil {
		return nil, err
	}
	frame, ok := artifact.(*table.Frame)
	if !ok {
		return nil, fmt.Errorf("weather artifact has unexpected type %T", artifact)
	}

	model, score, err := m.train(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}

	log.Printf("[Model] Trained with R² score %.4f on %d samples", score, frame.NumRows())
	return model, nil
}

// train fits the model on an 80/20 train/test split and reports the
// R² score on the held-out rows.
func (m *Model) train(frame *table.Frame) (*LinearModel, float64, error) {
	n := frame.NumRows()
	if n < len(featureColumns)+1 {
		return nil, 0, fmt.Errorf("need at least %d rows, got %d", len(featureColumns)+1, n)
	}

	perm := m.rng.Perm(n)
	testSize := n / 5
	trainIdx := perm[testSize:]
	testIdx := perm[:testSize]

	model, err := fitOLS(frame, trainIdx)
	if err != nil {
		return nil, 0, err
	}

	scoreIdx := testIdx
	if len(scoreIdx) == 0 {
		scoreIdx = trainIdx
	}
	score, err := rSquared(frame, scoreIdx, model)
	if err != nil {
		return nil, 0, err
	}

	return model, score, nil
}

// fitOLS solves the normal system via QR factorization.
func fitOLS(frame *table.Frame, rows []int) (*LinearModel, error) {
	k := len(featureColumns)
	x := mat.NewDense(len(rows), k+1, nil)
	y := mat.NewDense(len(rows), 1, nil)

	for i, r := range rows {
		x.Set(i, 0, 1.0)
		for j, col := range featureColumns {
			v, err := frame.Float(r, col)
			if err != nil {
				return nil, err
			}
			x.Set(i, j+1, v)
		}
		target, err := frame.Float(r, targetColumn)
		if err != nil {
			return nil, err
		}
		y.Set(i, 0, target)
	}

	var qr mat.QR
	qr.Factorize(x)

	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, y); err != nil {
		return nil, fmt.Errorf("least-squares solve failed: %w", err)
	}

	model := &LinearModel{
		Intercept:    beta.At(0, 0),
		Coefficients: make(map[string]float64, k),
	}
	for j, col := range featureColumns {
		model.Coefficients[col] = beta.At(j+1, 0)
	}
	return model, nil
}

func rSquared(frame *table.Frame, rows []int, model *LinearModel) (float64, error) {
	var sum float64
	for _, r := range rows {
		v, err := frame.Float(r, targetColumn)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	mean := sum / float64(len(rows))

	var ssRes, ssTot float64
	for _, r := range rows {
		actual, err := frame.Float(r, targetColumn)
		if err != nil {
			return 0, err
		}
		features := make(map[string]float64, len(featureColumns))
		for _, col := range featureColumns {
			v, err := frame.Float(r, col)
			if err != nil {
				return 0, err
			}
			features[col] = v
		}
		predicted, err := model.Predict(features)
		if err != nil {
			return 0, err
		}
		ssRes += (actual - predicted) * (actual - predicted)
		ssTot += (actual - mean) * (actual - mean)
	}

	if ssTot == 0 {
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}
