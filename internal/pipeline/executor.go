package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunResult is the outcome of one execution of the full stage graph.
type RunResult struct {
	ID        string
	Statuses  map[string]Status
	Errs      map[string]error
	artifacts map[string]any
}

// Artifact returns the artifact of a succeeded stage.
func (r *RunResult) Artifact(name string) (any, bool) {
	a, ok := r.artifacts[name]
	return a, ok
}

// Failed reports whether any stage failed.
func (r *RunResult) Failed() bool {
	for _, st := range r.Statuses {
		if st == StatusFailed {
			return true
		}
	}
	return false
}

// StagesWithStatus returns the names of stages in the given state,
// in definition order.
func (r *RunResult) StagesWithStatus(g *Graph, want Status) []string {
	var out []string
	for _, name := range g.Stages() {
		if r.Statuses[name] == want {
			out = append(out, name)
		}
	}
	return out
}

// slot holds one stage's per-run state. The result and status fields are
// written exactly once, before done is closed; readers must wait on done
// first, which gives the release/acquire ordering dependents rely on.
type slot struct {
	done   chan struct{}
	status Status
	result any
	err    error
}

// Run executes the graph once. Every stage runs in its own goroutine and
// starts only after all of its dependencies have succeeded. Stages whose
// dependencies failed or were skipped finish as skipped. Independent
// in-flight stages are allowed to complete even when another stage fails.
func (g *Graph) Run(ctx context.Context, obs Observer) *RunResult {
	runID := uuid.New().String()

	slots := make([]*slot, len(g.stages))
	for i := range slots {
		slots[i] = &slot{done: make(chan struct{}), status: StatusPending}
	}

	if obs != nil {
		obs.RunStarted(runID, g.Stages())
	}
	logEvent("run_started", map[string]any{"run_id": runID, "stages": len(g.stages)})

	var wg sync.WaitGroup
	for i := range g.stages {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g.runStage(ctx, runID, i, slots, obs)
		}(i)
	}
	wg.Wait()

	result := &RunResult{
		ID:        runID,
		Statuses:  make(map[string]Status, len(g.stages)),
		Errs:      make(map[string]error),
		artifacts: make(map[string]any),
	}
	for i, s := range g.stages {
		result.Statuses[s.Name] = slots[i].status
		if slots[i].err != nil {
			result.Errs[s.Name] = slots[i].err
		}
		if slots[i].status == StatusSucceeded {
			result.artifacts[s.Name] = slots[i].result
		}
	}

	if obs != nil {
		obs.RunFinished(runID, result.Failed())
	}
	logEvent("run_finished", map[string]any{"run_id": runID, "failed": result.Failed()})

	return result
}

// runStage waits for the stage's dependencies, then executes it.
// The slot is finalized exactly once via finish, which closes done.
func (g *Graph) runStage(ctx context.Context, runID string, i int, slots []*slot, obs Observer) {
	s := g.stages[i]
	sl := slots[i]

	finish := func(status Status, result any, err error) {
		sl.status = status
		sl.result = result
		sl.err = err
		close(sl.done)
		if obs != nil {
			obs.StageFinished(runID, s.Name, status, err)
		}
	}

	// Wait for every dependency to reach a terminal state.
	for _, j := range g.incoming[i] {
		select {
		case <-slots[j].done:
		case <-ctx.Done():
			finish(StatusFailed, nil, fmt.Errorf("stage %q cancelled: %w", s.Name, ctx.Err()))
			return
		}
		if slots[j].status != StatusSucceeded {
			log.Printf("[Scheduler] Skipping stage %q: dependency %q ended %s",
				s.Name, g.stages[j].Name, slots[j].status)
			finish(StatusSkipped, nil, nil)
			return
		}
	}

	if ctx.Err() != nil {
		finish(StatusFailed, nil, fmt.Errorf("stage %q cancelled: %w", s.Name, ctx.Err()))
		return
	}

	inputs := &Inputs{artifacts: make(map[string]any, len(s.Deps))}
	for _, j := range g.incoming[i] {
		inputs.artifacts[g.stages[j].Name] = slots[j].result
	}

	sl.status = StatusRunning
	if obs != nil {
		obs.StageStarted(runID, s.Name)
	}
	logEvent("stage_started", map[string]any{"run_id": runID, "stage": s.Name})

	start := time.Now()
	result, err := s.Fn(ctx, inputs)
	elapsed := time.Since(start)

	if err != nil {
		log.Printf("[Scheduler] Stage %q failed after %s: %v", s.Name, elapsed.Round(time.Millisecond), err)
		finish(StatusFailed, nil, err)
		return
	}

	logEvent("stage_succeeded", map[string]any{
		"run_id":     runID,
		"stage":      s.Name,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	finish(StatusSucceeded, result, nil)
}

// logEvent logs a structured event in JSON format.
func logEvent(eventType string, data map[string]any) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "scheduler"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Scheduler] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
