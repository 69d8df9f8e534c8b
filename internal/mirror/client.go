// Package mirror talks to the relational mirror (a StarRocks cluster over
// the MySQL wire protocol). It holds the one mandatory lock in the system:
// decision inserts compute a max-plus-one surrogate key, and that
// read-modify-write must be serialized.
package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config carries mirror connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Client executes DDL/DML against the mirror. Connectivity errors are hard
// errors; the caller decides whether they fail a stage.
type Client struct {
	db       *sql.DB
	database string

	// mu serializes the read-max-then-insert sequence in InsertDecision.
	// The store has no native sequence, so without this two concurrent
	// writers can observe the same max and collide.
	mu sync.Mutex
}

// Open creates a client from config. The connection is established lazily;
// use Ping to verify connectivity.
func Open(cfg Config) (*Client, error) {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.ParseTime = true
	mc.Timeout = 10 * time.Second

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("failed to build mirror connector: %w", err)
	}

	return &Client{db: sql.OpenDB(connector), database: cfg.Database}, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB, database string) *Client {
	return &Client{db: db, database: database}
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping verifies mirror connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// EnsureSchema creates the mirror database and decisions table if absent.
// Both statements are idempotent.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx,
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", c.database)); err != nil {
		return fmt.Errorf("failed to create mirror database: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.trading_decisions (
	id BIGINT,
	timestamp DATETIME,
	predicted_price FLOAT,
	decision BOOLEAN
) ENGINE=OLAP
DUPLICATE KEY(id, timestamp)
DISTRIBUTED BY HASH(id) BUCKETS 10
PROPERTIES("replication_num" = "1")`, c.database)

	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create decisions table: %w", err)
	}
	return nil
}

// InsertDecision appends one decision event and returns its surrogate key.
// The key is computed as max(id)+1 under the client mutex, so concurrent
// callers through the same client never collide.
func (c *Client) InsertDecision(ctx context.Context, ts time.Time, predictedPrice float64, decision bool) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var nextID int64
	row := c.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT IFNULL(MAX(id), 0) + 1 FROM %s.trading_decisions", c.database))
	if err := row.Scan(&nextID); err != nil {
		return 0, fmt.Errorf("failed to compute next decision id: %w", err)
	}

	_, err := c.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s.trading_decisions (id, timestamp, predicted_price, decision) VALUES (?, ?, ?, ?)", c.database),
		nextID, ts, predictedPrice, decision)
	if err != nil {
		return 0, fmt.Errorf("failed to insert decision: %w", err)
	}

	log.Printf("[Mirror] Stored decision id=%d price=%.2f trade=%v", nextID, predictedPrice, decision)
	return nextID, nil
}

// Exec runs an arbitrary statement against the mirror. Used by the external
// catalog and analytics stages.
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mirror statement failed: %w", err)
	}
	return nil
}

// QueryStrings runs a query and returns the first column of every row as
// strings. Good enough for SHOW CATALOGS style probes.
func (c *Client) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mirror query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read columns: %w", err)
		}
		values := make([]any, len(cols))
		var first sql.NullString
		values[0] = &first
		for i := 1; i < len(values); i++ {
			values[i] = new(sql.RawBytes)
		}
		if err := rows.Scan(values...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, first.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mirror query failed: %w", err)
	}
	return out, nil
}

// QueryCount runs a single-value COUNT style query.
func (c *Client) QueryCount(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("mirror count query failed: %w", err)
	}
	return n, nil
}
