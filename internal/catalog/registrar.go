package catalog

import (
	"context"
	"fmt"
	"log"
)

// Parquet storage identifiers recorded with every registered table.
const (
	parquetInputFormat  = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetInputFormat"
	parquetOutputFormat = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetOutputFormat"
	parquetSerLib       = "org.apache.hadoop.hive.ql.io.parquet.serde.ParquetHiveSerDe"

	tableOwner = "voltpipe"
)

// Outcome classifies the result of a Register call. All outcomes are
// successes from the caller's point of view.
type Outcome string

const (
	// OutcomeRegistered: the table did not exist and was created.
	OutcomeRegistered Outcome = "registered"
	// OutcomeAlreadyRegistered: the table existed and drop was not
	// requested. Repeated registration is an expected no-op.
	OutcomeAlreadyRegistered Outcome = "already-registered"
	// OutcomeReplaced: the table existed and was dropped then recreated.
	OutcomeReplaced Outcome = "replaced"
	// OutcomeUnregistered: the catalog service was unreachable. The
	// dataset is written and readable by path but not discoverable.
	OutcomeUnregistered Outcome = "unregistered"
)

// RegisterRequest names a dataset to declare in the catalog.
type RegisterRequest struct {
	Namespace    string
	Table        string
	Columns      []FieldSchema
	Location     string
	DropIfExists bool
}

// Reporter receives registration outcomes for observability. May be nil.
type Reporter func(table string, outcome Outcome)

// Registrar idempotently declares namespaces and tables in the catalog.
type Registrar struct {
	svc       Service
	container string
	account   string
	report    Reporter
}

// NewRegistrar creates a registrar over the given metastore service.
// container and account feed derived namespace location URIs.
func NewRegistrar(svc Service, container, account string, report Reporter) *Registrar {
	return &Registrar{svc: svc, container: container, account: account, report: report}
}

// Register ensures the namespace and table exist in the catalog.
//
// Connectivity failures never propagate as errors: registration is a
// discoverability convenience, not a correctness requirement for the data,
// so a failed call is logged and reported as OutcomeUnregistered.
func (r *Registrar) Register(ctx context.Context, req RegisterRequest) Outcome {
	outcome := r.register(ctx, req)
	if r.report != nil {
		r.report(req.Namespace+"."+req.Table, outcome)
	}
	return outcome
}

func (r *Registrar) register(ctx context.Context, req RegisterRequest) Outcome {
	if err := r.ensureNamespace(ctx, req.Namespace); err != nil {
		log.Printf("[Registrar] Could not register %s.%s: %v; dataset remains readable at %s",
			req.Namespace, req.Table, err, req.Location)
		return OutcomeUnregistered
	}

	existing, err := r.svc.GetTable(ctx, req.Namespace, req.Table)
	switch {
	case err != nil && !IsNotFound(err):
		log.Printf("[Registrar] Could not register %s.%s: %v; dataset remains readable at %s",
			req.Namespace, req.Table, err, req.Location)
		return OutcomeUnregistered

	case existing != nil && !req.DropIfExists:
		log.Printf("[Registrar] Table %s.%s already registered", req.Namespace, req.Table)
		return OutcomeAlreadyRegistered

	case existing != nil && req.DropIfExists:
		log.Printf("[Registrar] Table %s.%s exists, dropping it", req.Namespace, req.Table)
		if err := r.svc.DropTable(ctx, req.Namespace, req.Table); err != nil {
			log.Printf("[Registrar] Could not drop %s.%s: %v", req.Namespace, req.Table, err)
			return OutcomeUnregistered
		}
		if err := r.createTable(ctx, req); err != nil {
			log.Printf("[Registrar] Could not recreate %s.%s: %v", req.Namespace, req.Table, err)
			return OutcomeUnregistered
		}
		log.Printf("[Registrar] Replaced table %s.%s at %s", req.Namespace, req.Table, req.Location)
		return OutcomeReplaced
	}

	if err := r.createTable(ctx, req); err != nil {
		log.Printf("[Registrar] Could not register %s.%s: %v; dataset remains readable at %s",
			req.Namespace, req.Table, err, req.Location)
		return OutcomeUnregistered
	}
	log.Printf("[Registrar] Registered table %s.%s at %s", req.Namespace, req.Table, req.Location)
	return OutcomeRegistered
}

// ensureNamespace creates the namespace if it is absent. Lookup-then-create
// is inherently racy, so "already exists" on create counts as success.
func (r *Registrar) ensureNamespace(ctx context.Context, namespace string) error {
	_, err := r.svc.GetDatabase(ctx, namespace)
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return fmt.Errorf("failed to look up namespace %q: %w", namespace, err)
	}

	log.Printf("[Registrar] Creating namespace %q", namespace)
	db := &Database{
		Name:        namespace,
		Description: fmt.Sprintf("Database for %s tables", namespace),
		LocationURI: r.namespaceLocation(namespace),
	}
	if err := r.svc.CreateDatabase(ctx, db); err != nil {
		if isAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("failed to create namespace %q: %w", namespace, err)
	}
	return nil
}

func (r *Registrar) createTable(ctx context.Context, req RegisterRequest) error {
	table := &Table{
		Name:      req.Table,
		DBName:    req.Namespace,
		Owner:     tableOwner,
		TableType: "EXTERNAL_TABLE",
		Parameters: map[string]string{
			"EXTERNAL": "TRUE",
		},
		SD: StorageDescriptor{
			Cols:         req.Columns,
			Location:     req.Location,
			InputFormat:  parquetInputFormat,
			OutputFormat: parquetOutputFormat,
			SerLib:       parquetSerLib,
		},
	}
	return r.svc.CreateTable(ctx, table)
}

func (r *Registrar) namespaceLocation(namespace string) string {
	return fmt.Sprintf("abfss://%s@%s.dfs.core.windows.net/%s", r.container, r.account, namespace)
}
