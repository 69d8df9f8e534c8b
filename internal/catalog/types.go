// Package catalog registers externally-stored datasets in a shared metadata
// catalog so the federated query engine can discover them. Registration is
// idempotent and degrades to a logged no-op when the catalog service is
// unreachable: the data stays readable by direct path either way.
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Service implementations when a database or
// table does not exist. ErrAlreadyExists is returned by create calls that
// lost a create race. Any other error is a connectivity failure.
var (
	ErrNotFound      = errors.New("catalog: not found")
	ErrAlreadyExists = errors.New("catalog: already exists")
)

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func isAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// FieldSchema is one column of a registered table. The type string is
// passed through to the catalog uninterpreted.
type FieldSchema struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Comment string `json:"comment"`
}

// StorageDescriptor carries the physical layout of a registered table.
type StorageDescriptor struct {
	Cols         []FieldSchema `json:"cols"`
	Location     string        `json:"location"`
	InputFormat  string        `json:"inputFormat"`
	OutputFormat string        `json:"outputFormat"`
	SerLib       string        `json:"serializationLib"`
}

// Database is a catalog namespace.
type Database struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LocationURI string `json:"locationUri"`
}

// Table is a catalog entry mapping a logical name to physical storage.
type Table struct {
	Name       string            `json:"tableName"`
	DBName     string            `json:"dbName"`
	Owner      string            `json:"owner"`
	TableType  string            `json:"tableType"`
	Parameters map[string]string `json:"parameters"`
	SD         StorageDescriptor `json:"sd"`
}

// Service is the metastore RPC surface the registrar needs. Implementations
// must return ErrNotFound (possibly wrapped) for missing objects.
type Service interface {
	GetDatabase(ctx context.Context, name string) (*Database, error)
	CreateDatabase(ctx context.Context, db *Database) error
	GetTable(ctx context.Context, dbName, tableName string) (*Table, error)
	CreateTable(ctx context.Context, table *Table) error
	DropTable(ctx context.Context, dbName, tableName string) error
}
