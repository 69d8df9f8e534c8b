package stages

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/voltpipe/voltpipe/internal/catalog"
	"github.com/voltpipe/voltpipe/internal/pipeline"
	"github.com/voltpipe/voltpipe/internal/table"
)

const (
	weatherDataset   = "weather"
	weatherNamespace = "raw_data"
	weatherTable     = "weather"
)

// weatherPattern shapes one batch of synthetic telemetry. Each run picks a
// pattern at random so successive batches have visibly different
// distributions.
type weatherPattern struct {
	name                      string
	tempMean, tempStd         float64
	humidityMean, humidityStd float64
	windMean, windStd         float64
	priceBase                 float64
}

// Weather generates synthetic weather telemetry, appends it to the lake,
// and registers the dataset in the catalog.
type Weather struct {
	lake      LakeWriter
	registrar Registrar
	samples   int
	rng       *rand.Rand
}

// NewWeather creates the weather stage. A nil rng seeds from the clock.
func NewWeather(lake LakeWriter, registrar Registrar, samples int, rng *rand.Rand) *Weather {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Weather{lake: lake, registrar: registrar, samples: samples, rng: rng}
}

// Stage returns the pipeline stage definition.
func (w *Weather) Stage() pipeline.Stage {
	return pipeline.Stage{Name: StageWeather, Fn: w.run}
}

func (w *Weather) run(ctx context.Context, in *pipeline.Inputs) (any, error) {
	frame, err := w.generate()
	if err != nil {
		return nil, err
	}

	// A failed telemetry write is a hard error: downstream stages must
	// never train or decide against data that was silently dropped.
	if err := w.lake.Append(weatherDataset, frame); err != nil {
		return nil, fmt.Errorf("failed to write weather data: %w", err)
	}

	w.registrar.Register(ctx, catalog.RegisterRequest{
		Namespace: weatherNamespace,
		Table:     weatherTable,
		Columns: []catalog.FieldSchema{
			{Name: "temperature", Type: "double", Comment: "Temperature in Celsius"},
			{Name: "humidity", Type: "double", Comment: "Humidity percentage"},
			{Name: "wind_speed", Type: "double", Comment: "Wind speed in m/s"},
			{Name: "energy_price", Type: "double", Comment: "Energy price"},
		},
		Location: w.lake.LocationURI(weatherDataset),
	})

	return frame, nil
}

// generate produces the synthetic batch with pattern-dependent
// distributions, clipped to physical ranges.
func (w *Weather) generate() (*table.Frame, error) {
	pattern := w.pickPattern()
	log.Printf("[Weather] Generating %s pattern, %d samples", pattern.name, w.samples)

	frame, err := table.NewFrame(
		table.Column{Name: "temperature", Kind: table.Float},
		table.Column{Name: "humidity", Kind: table.Float},
		table.Column{Name: "wind_speed", Kind: table.Float},
		table.Column{Name: "energy_price", Kind: table.Float},
	)
	if err != nil {
		return nil, err
	}

	tempEffect := w.uniform(1.5, 3.5)
	windEffect := w.uniform(-2.0, -0.5)
	humidityEffect := w.uniform(-0.3, 0.3)

	for i := 0; i < w.samples; i++ {
		temp := clip(w.normal(pattern.tempMean, pattern.tempStd), -10, 50)
		humidity := clip(w.normal(pattern.humidityMean, pattern.humidityStd), 10, 100)
		wind := clip(w.normal(pattern.windMean, pattern.windStd), 0, 35)

		price := pattern.priceBase +
			(temp-20)*tempEffect +
			wind*windEffect +
			(humidity-50)*humidityEffect +
			w.normal(0, 15)
		price = clip(price, 20, 200)

		if err := frame.AppendRow(temp, humidity, wind, price); err != nil {
			return nil, err
		}
	}

	return frame, nil
}

func (w *Weather) pickPattern() weatherPattern {
	patterns := []weatherPattern{
		{name: "winter", tempMean: 5, tempStd: 8, humidityMean: 75, humidityStd: 15, windMean: 15, windStd: 8, priceBase: 90},
		{name: "spring", tempMean: 18, tempStd: 7, humidityMean: 60, humidityStd: 18, windMean: 12, windStd: 6, priceBase: 60},
		{name: "summer", tempMean: 32, tempStd: 6, humidityMean: 45, humidityStd: 20, windMean: 8, windStd: 5, priceBase: 110},
		{name: "fall", tempMean: 15, tempStd: 8, humidityMean: 68, humidityStd: 17, windMean: 13, windStd: 7, priceBase: 70},
	}
	idx := w.rng.Intn(len(patterns) + 1)
	if idx < len(patterns) {
		return patterns[idx]
	}
	// Extreme pattern: everything drawn fresh.
	return weatherPattern{
		name:         "extreme",
		tempMean:     w.uniform(-5, 45),
		tempStd:      12,
		humidityMean: w.uniform(20, 90),
		humidityStd:  25,
		windMean:     w.uniform(5, 25),
		windStd:      10,
		priceBase:    w.uniform(40, 150),
	}
}

func (w *Weather) normal(mean, std float64) float64 {
	return mean + w.rng.NormFloat64()*std
}

func (w *Weather) uniform(lo, hi float64) float64 {
	return lo + w.rng.Float64()*(hi-lo)
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
