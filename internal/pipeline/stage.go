// Package pipeline implements the coordination layer: a static DAG of named
// stages executed once per run, with artifacts handed from producers to
// dependents only after the producer has succeeded.
package pipeline

import (
	"context"
	"fmt"
)

// Status is the lifecycle state of a stage within a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusSkipped marks stages not executed because a transitive
	// dependency failed. Never reported as succeeded.
	StatusSkipped Status = "skipped-due-to-dependency-failure"
)

// StageFunc is the work of a stage: a function from completed dependency
// artifacts to one produced artifact. It must not retain or mutate its
// inputs after returning.
type StageFunc func(ctx context.Context, in *Inputs) (any, error)

// Stage is one named unit of pipeline work.
type Stage struct {
	Name string
	Deps []string
	Fn   StageFunc
}

// Inputs gives a stage read-only access to the artifacts of its declared
// dependencies. Only declared dependencies are visible.
type Inputs struct {
	artifacts map[string]any
}

// Artifact returns the artifact produced by the named dependency.
func (in *Inputs) Artifact(name string) (any, error) {
	a, ok := in.artifacts[name]
	if !ok {
		return nil, fmt.Errorf("artifact %q is not a declared dependency of this stage", name)
	}
	return a, nil
}

// Observer receives run and stage lifecycle notifications. Implementations
// must be safe for concurrent use; a nil Observer disables notification.
type Observer interface {
	RunStarted(runID string, stages []string)
	StageStarted(runID, stage string)
	StageFinished(runID, stage string, status Status, err error)
	RunFinished(runID string, failed bool)
}
