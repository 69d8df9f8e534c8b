// Package journal records run and stage lifecycle events in Redis so that
// operators can see, after the fact, which stages ran, which failed, and
// which written datasets never made it into the catalog. The journal is
// pure observability: every write here is best-effort and a journal
// failure never fails a run.
package journal

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voltpipe/voltpipe/internal/catalog"
	"github.com/voltpipe/voltpipe/internal/pipeline"
)

// RunRecord is a run's journal entry.
type RunRecord struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	Started       time.Time         `json:"started"`
	Finished      time.Time         `json:"finished"`
	Stages        []StageRecord     `json:"stages"`
	Registrations map[string]string `json:"registrations"` // table -> outcome
}

// StageRecord is one stage's journal entry within a run.
type StageRecord struct {
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Error    string    `json:"error,omitempty"`
}

// Client writes and reads the run ledger. It implements pipeline.Observer.
// The client is safe for concurrent use.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a journal client.
func NewClient(redisOpts *redis.Options) *Client {
	return &Client{rdb: redis.NewClient(redisOpts)}
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful before a run to decide whether
// journaling is available at all.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// RunStarted implements pipeline.Observer.
func (c *Client) RunStarted(runID string, stages []string) {
	ctx, cancel := opCtx()
	defer cancel()

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, RunKey(runID), map[string]any{
		"status":  "running",
		"started": time.Now().UTC().Format(time.RFC3339Nano),
	})
	for _, s := range stages {
		pipe.RPush(ctx, StagesKey(runID), s)
		pipe.HSet(ctx, StageKey(runID, s), "status", string(pipeline.StatusPending))
	}
	pipe.Set(ctx, LastRunKey(), runID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		c.warn("run_started", runID, err)
		return
	}
	c.publish(ctx, "run_started", runID, "")
}

// StageStarted implements pipeline.Observer.
func (c *Client) StageStarted(runID, stage string) {
	ctx, cancel := opCtx()
	defer cancel()

	err := c.rdb.HSet(ctx, StageKey(runID, stage), map[string]any{
		"status":  string(pipeline.StatusRunning),
		"started": time.Now().UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		c.warn("stage_started", runID, err)
		return
	}
	c.publish(ctx, "stage_started", runID, stage)
}

// StageFinished implements pipeline.Observer.
func (c *Client) StageFinished(runID, stage string, status pipeline.Status, stageErr error) {
	ctx, cancel := opCtx()
	defer cancel()

	fields := map[string]any{
		"status":   string(status),
		"finished": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if stageErr != nil {
		fields["error"] = stageErr.Error()
	}
	if err := c.rdb.HSet(ctx, StageKey(runID, stage), fields).Err(); err != nil {
		c.warn("stage_finished", runID, err)
		return
	}
	c.publish(ctx, "stage_finished", runID, stage)
}

// RunFinished implements pipeline.Observer.
func (c *Client) RunFinished(runID string, failed bool) {
	ctx, cancel := opCtx()
	defer cancel()

	status := "completed"
	if failed {
		status = "failed"
	}
	err := c.rdb.HSet(ctx, RunKey(runID), map[string]any{
		"status":   status,
		"finished": time.Now().UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		c.warn("run_finished", runID, err)
		return
	}
	c.publish(ctx, "run_finished", runID, "")
}

// Reporter returns a catalog.Reporter that records registration outcomes
// for the given run, making "written but unregistered" datasets visible
// after the fact.
func (c *Client) Reporter(runID string) catalog.Reporter {
	return func(table string, outcome catalog.Outcome) {
		ctx, cancel := opCtx()
		defer cancel()
		if err := c.rdb.HSet(ctx, RegistrationsKey(runID), table, string(outcome)).Err(); err != nil {
			c.warn("registration", runID, err)
		}
	}
}

// LastRunID returns the id of the most recent run, or redis.Nil if none.
func (c *Client) LastRunID(ctx context.Context) (string, error) {
	return c.rdb.Get(ctx, LastRunKey()).Result()
}

// GetRun reads a run record, including its stage and registration entries.
func (c *Client) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	runHash, err := c.rdb.HGetAll(ctx, RunKey(runID)).Result()
	if err != nil {
		return nil, err
	}
	if len(runHash) == 0 {
		return nil, redis.Nil
	}

	rec := &RunRecord{
		ID:            runID,
		Status:        runHash["status"],
		Started:       parseTime(runHash["started"]),
		Finished:      parseTime(runHash["finished"]),
		Registrations: map[string]string{},
	}

	stageNames, err := c.rdb.LRange(ctx, StagesKey(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	for _, name := range stageNames {
		stageHash, err := c.rdb.HGetAll(ctx, StageKey(runID, name)).Result()
		if err != nil {
			return nil, err
		}
		rec.Stages = append(rec.Stages, StageRecord{
			Name:     name,
			Status:   stageHash["status"],
			Started:  parseTime(stageHash["started"]),
			Finished: parseTime(stageHash["finished"]),
			Error:    stageHash["error"],
		})
	}

	regs, err := c.rdb.HGetAll(ctx, RegistrationsKey(runID)).Result()
	if err != nil {
		return nil, err
	}
	for table, outcome := range regs {
		rec.Registrations[table] = outcome
	}

	return rec, nil
}

// publish emits a JSON event on the run events channel. Best-effort.
func (c *Client) publish(ctx context.Context, event, runID, stage string) {
	payload, err := json.Marshal(map[string]string{
		"event":     event,
		"run_id":    runID,
		"stage":     stage,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := c.rdb.Publish(ctx, RunEventsChannel(), payload).Err(); err != nil {
		c.warn(event, runID, err)
	}
}

func (c *Client) warn(op, runID string, err error) {
	log.Printf("[Journal] %s for run %s not recorded: %v", op, runID, err)
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
