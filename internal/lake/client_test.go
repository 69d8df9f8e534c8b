package lake

import (
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltpipe/voltpipe/internal/table"
)

type readingRow struct {
	Temperature float64 `parquet:"temperature"`
	Humidity    float64 `parquet:"humidity"`
}

func newTestFrame(t *testing.T, rows ...[2]float64) *table.Frame {
	f, err := table.NewFrame(
		table.Column{Name: "temperature", Kind: table.Float},
		table.Column{Name: "humidity", Kind: table.Float},
	)
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, f.AppendRow(r[0], r[1]))
	}
	return f
}

func TestClient_LocationURI(t *testing.T) {
	c := NewClient("acct", "weather-data", t.TempDir())
	assert.Equal(t,
		"abfss://weather-data@acct.dfs.core.windows.net/weather",
		c.LocationURI("weather"))
}

func TestClient_AppendWritesPartFiles(t *testing.T) {
	c := NewClient("acct", "weather-data", t.TempDir())

	require.NoError(t, c.Append("weather", newTestFrame(t, [2]float64{18.5, 60.0})))
	require.NoError(t, c.Append("weather", newTestFrame(t, [2]float64{22.0, 48.0})))

	parts, err := c.PartFiles("weather")
	require.NoError(t, err)
	assert.Len(t, parts, 2)

	// Part file names are uuid-based, so collect across both parts.
	var temps []float64
	for _, part := range parts {
		rows, err := parquet.ReadFile[readingRow](part)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		temps = append(temps, rows[0].Temperature)
	}
	assert.ElementsMatch(t, []float64{18.5, 22.0}, temps)
}

func TestClient_OverwriteReplacesDataset(t *testing.T) {
	c := NewClient("acct", "weather-data", t.TempDir())

	require.NoError(t, c.Append("weather", newTestFrame(t, [2]float64{18.5, 60.0})))
	require.NoError(t, c.Append("weather", newTestFrame(t, [2]float64{19.5, 61.0})))
	require.NoError(t, c.Overwrite("weather", newTestFrame(t, [2]float64{30.0, 40.0})))

	parts, err := c.PartFiles("weather")
	require.NoError(t, err)
	require.Len(t, parts, 1)

	rows, err := parquet.ReadFile[readingRow](parts[0])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 30.0, rows[0].Temperature, 1e-9)
}

func TestClient_WriteFailureIsHardError(t *testing.T) {
	// Root under a path that cannot be created.
	c := NewClient("acct", "weather-data", "/proc/definitely/not/writable")
	err := c.Append("weather", newTestFrame(t, [2]float64{18.5, 60.0}))
	assert.Error(t, err)
}
