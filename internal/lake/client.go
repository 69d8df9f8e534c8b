// Package lake writes tabular artifacts as parquet part files under
// location-addressed dataset directories. There are no transactions and no
// rollback; every write failure is a hard error for the caller to handle.
// Reading the data back is the federated query engine's job, not ours.
package lake

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/voltpipe/voltpipe/internal/table"
)

// Mode selects between appending a new part file and replacing the dataset.
type Mode string

const (
	ModeAppend    Mode = "append"
	ModeOverwrite Mode = "overwrite"
)

// Client writes datasets beneath a local root directory (the storage
// gateway mount) while rendering abfss-style URIs for catalog registration.
type Client struct {
	account   string
	container string
	root      string
}

// NewClient creates a lake client. root is the local directory datasets are
// written under; account and container shape the registered location URIs.
func NewClient(account, container, root string) *Client {
	return &Client{account: account, container: container, root: root}
}

// LocationURI returns the catalog-facing URI for a dataset name.
func (c *Client) LocationURI(dataset string) string {
	return fmt.Sprintf("abfss://%s@%s.dfs.core.windows.net/%s", c.container, c.account, dataset)
}

// Append writes the frame as a new part file under the dataset directory.
func (c *Client) Append(dataset string, f *table.Frame) error {
	return c.write(dataset, f, ModeAppend)
}

// Overwrite replaces the dataset with the frame's contents.
func (c *Client) Overwrite(dataset string, f *table.Frame) error {
	return c.write(dataset, f, ModeOverwrite)
}

func (c *Client) write(dataset string, f *table.Frame, mode Mode) error {
	dir := filepath.Join(c.root, dataset)

	if mode == ModeOverwrite {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clear dataset %q: %w", dataset, err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory %q: %w", dir, err)
	}

	schema, err := frameSchema(dataset, f)
	if err != nil {
		return err
	}

	part := filepath.Join(dir, fmt.Sprintf("part-%s.parquet", uuid.New().String()))
	file, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("failed to create part file: %w", err)
	}

	w := parquet.NewGenericWriter[map[string]any](file, schema)

	rows := make([]map[string]any, 0, f.NumRows())
	for i := 0; i < f.NumRows(); i++ {
		row, err := f.Row(i)
		if err != nil {
			file.Close()
			return err
		}
		rows = append(rows, row)
	}

	if _, err := w.Write(rows); err != nil {
		file.Close()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close part file: %w", err)
	}

	log.Printf("[Lake] Wrote %d rows to %s (%s)", f.NumRows(), part, mode)
	return nil
}

// frameSchema maps the frame's column layout to a parquet schema.
func frameSchema(name string, f *table.Frame) (*parquet.Schema, error) {
	group := parquet.Group{}
	for _, col := range f.Columns() {
		switch col.Kind {
		case table.Float:
			group[col.Name] = parquet.Leaf(parquet.DoubleType)
		case table.Bool:
			group[col.Name] = parquet.Leaf(parquet.BooleanType)
		case table.String:
			group[col.Name] = parquet.String()
		case table.Time:
			group[col.Name] = parquet.Timestamp(parquet.Millisecond)
		default:
			return nil, fmt.Errorf("column %s has unsupported kind", col.Name)
		}
	}
	return parquet.NewSchema(name, group), nil
}

// PartFiles lists the part files currently present for a dataset.
// Intended for diagnostics and tests, not for query paths.
func (c *Client) PartFiles(dataset string) ([]string, error) {
	pattern := filepath.Join(c.root, dataset, "part-*.parquet")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list part files: %w", err)
	}
	return matches, nil
}
