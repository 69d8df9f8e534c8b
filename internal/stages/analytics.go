package stages

import (
	"context"
	"fmt"
	"log"

	"github.com/voltpipe/voltpipe/internal/pipeline"
)

const analyticsTable = "decision_weather_analytics"

// Analytics materializes a native table joining the decision mirror, the
// lake's weather dataset, and the metastore's own tables through a single
// federated query.
type Analytics struct {
	sql      SQLRunner
	database string
}

func NewAnalytics(sql SQLRunner, database string) *Analytics {
	return &Analytics{sql: sql, database: database}
}

// Stage returns the pipeline stage definition.
func (a *Analytics) Stage() pipeline.Stage {
	return pipeline.Stage{
		Name: StageAnalytics,
		Deps: []string{StageDecision, StageWeather, StageCatalogs},
		Fn:   a.run,
	}
}

func (a *Analytics) run(ctx context.Context, in *pipeline.Inputs) (any, error) {
	qualified := a.database + "." + analyticsTable

	if err := a.sql.Exec(ctx, "DROP TABLE IF EXISTS "+qualified); err != nil {
		return nil, fmt.Errorf("failed to drop analytics table: %w", err)
	}
	if err := a.sql.Exec(ctx, a.createTableSQL(qualified)); err != nil {
		return nil, fmt.Errorf("failed to create analytics table: %w", err)
	}
	if err := a.sql.Exec(ctx, a.insertSQL(qualified)); err != nil {
		return nil, fmt.Errorf("failed to populate analytics table: %w", err)
	}

	count, err := a.sql.QueryCount(ctx, "SELECT COUNT(*) FROM "+qualified)
	if err != nil {
		return nil, fmt.Errorf("failed to count analytics rows: %w", err)
	}
	log.Printf("[Analytics] Materialized %d rows in %s", count, qualified)

	return count, nil
}

func (a *Analytics) createTableSQL(qualified string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    decision_id BIGINT,
    predicted_price FLOAT,
    decision BOOLEAN,
    decision_timestamp DATETIME,
    avg_temperature DOUBLE,
    avg_humidity DOUBLE,
    avg_wind_speed DOUBLE,
    avg_energy_price DOUBLE,
    weather_sample_count BIGINT,
    hive_db_count INT,
    hive_table_count INT
) ENGINE=OLAP
DUPLICATE KEY(decision_id)
DISTRIBUTED BY HASH(decision_id) BUCKETS 4
PROPERTIES (
    "replication_num" = "1"
)`, qualified)
}

// insertSQL joins three catalogs in one statement: the native decision
// mirror, the lake's weather dataset through the hive catalog, and the
// metastore's DBS/TBLS through the jdbc catalog. Scalar COUNT subqueries
// keep the jdbc side to point lookups.
func (a *Analytics) insertSQL(qualified string) string {
	return fmt.Sprintf(`INSERT INTO %s
WITH weather_stats AS (
    SELECT
        AVG(temperature) as avg_temp,
        AVG(humidity) as avg_hum,
        AVG(wind_speed) as avg_wind,
        AVG(energy_price) as avg_price,
        COUNT(*) as sample_count
    FROM %s.raw_data.weather
),
hive_metadata AS (
    SELECT
        (SELECT COUNT(*) FROM %s.public.DBS) as db_count,
        (SELECT COUNT(*) FROM %s.public.TBLS) as table_count
)
SELECT
    td.id as decision_id,
    td.predicted_price,
    td.decision,
    td.timestamp as decision_timestamp,
    ws.avg_temp,
    ws.avg_hum,
    ws.avg_wind,
    ws.avg_price,
    ws.sample_count,
    hm.db_count,
    hm.table_count
FROM default_catalog.%s.trading_decisions td
CROSS JOIN weather_stats ws
CROSS JOIN hive_metadata hm
ORDER BY td.timestamp DESC
LIMIT 100`, qualified, hiveCatalogName, postgresCatalogName, postgresCatalogName, a.database)
}
