package stages

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/voltpipe/voltpipe/internal/pipeline"
)

const (
	hiveCatalogName     = "hive_catalog"
	postgresCatalogName = "postgres_catalog"

	postgresDriverURL   = "https://repo1.maven.org/maven2/org/postgresql/postgresql/42.3.3/postgresql-42.3.3.jar"
	postgresDriverClass = "org.postgresql.Driver"
)

// CatalogsConfig carries the connection details baked into the external
// catalog definitions.
type CatalogsConfig struct {
	MetastoreURI   string // thrift://host:port
	StorageAccount string
	StorageKey     string

	// Metastore's backing relational store, exposed as its own catalog.
	MetaDBUser     string
	MetaDBPassword string
	MetaDBJDBCURI  string
}

// Catalogs recreates the query engine's external catalogs so federated
// queries can reach the lake and the metastore's own tables.
type Catalogs struct {
	sql SQLRunner
	cfg CatalogsConfig
}

func NewCatalogs(sql SQLRunner, cfg CatalogsConfig) *Catalogs {
	return &Catalogs{sql: sql, cfg: cfg}
}

// Stage returns the pipeline stage definition. The weather dependency
// guarantees the lake dataset exists before the catalog exposing it.
func (c *Catalogs) Stage() pipeline.Stage {
	return pipeline.Stage{Name: StageCatalogs, Deps: []string{StageWeather}, Fn: c.run}
}

func (c *Catalogs) run(ctx context.Context, in *pipeline.Inputs) (any, error) {
	if err := c.recreate(ctx, hiveCatalogName, c.hiveCatalogSQL()); err != nil {
		return nil, err
	}
	if err := c.recreate(ctx, postgresCatalogName, c.postgresCatalogSQL()); err != nil {
		return nil, err
	}

	names, err := c.sql.QueryStrings(ctx, "SHOW CATALOGS")
	if err != nil {
		return nil, fmt.Errorf("failed to list catalogs: %w", err)
	}
	log.Printf("[Catalogs] Available catalogs: %s", strings.Join(names, ", "))

	for _, want := range []string{hiveCatalogName, postgresCatalogName} {
		found := false
		for _, got := range names {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("catalog %q missing after creation", want)
		}
	}

	return names, nil
}

// recreate drops and recreates a catalog so stale connection properties
// never survive a config change.
func (c *Catalogs) recreate(ctx context.Context, name, createSQL string) error {
	if err := c.sql.Exec(ctx, fmt.Sprintf("DROP CATALOG IF EXISTS %s", name)); err != nil {
		return fmt.Errorf("failed to drop catalog %s: %w", name, err)
	}
	if err := c.sql.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create catalog %s: %w", name, err)
	}
	log.Printf("[Catalogs] Created external catalog %q", name)
	return nil
}

func (c *Catalogs) hiveCatalogSQL() string {
	return fmt.Sprintf(`CREATE EXTERNAL CATALOG %s
PROPERTIES (
    "type" = "hive",
    "hive.metastore.type" = "hive",
    "hive.metastore.uris" = "%s",
    "azure.adls2.storage_account" = "%s",
    "azure.adls2.shared_key" = "%s"
)`, hiveCatalogName, c.cfg.MetastoreURI, c.cfg.StorageAccount, c.cfg.StorageKey)
}

func (c *Catalogs) postgresCatalogSQL() string {
	return fmt.Sprintf(`CREATE EXTERNAL CATALOG %s
PROPERTIES (
    "type" = "jdbc",
    "user" = "%s",
    "password" = "%s",
    "jdbc_uri" = "%s",
    "driver_url" = "%s",
    "driver_class" = "%s"
)`, postgresCatalogName, c.cfg.MetaDBUser, c.cfg.MetaDBPassword, c.cfg.MetaDBJDBCURI,
		postgresDriverURL, postgresDriverClass)
}
