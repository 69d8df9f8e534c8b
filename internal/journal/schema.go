package journal

import "fmt"

// Redis key pattern helpers
//
// All keys and channels live under the voltpipe: prefix so the journal can
// share a Redis server with other tooling.
//
// Key pattern: voltpipe:run:{run_id}[...]
// Channel pattern: voltpipe:run_events

// RunKey returns the Redis key for a run record hash.
// Pattern: voltpipe:run:{run_id}
func RunKey(runID string) string {
	return fmt.Sprintf("voltpipe:run:%s", runID)
}

// StageKey returns the Redis key for a stage record hash.
// Pattern: voltpipe:run:{run_id}:stage:{stage}
func StageKey(runID, stage string) string {
	return fmt.Sprintf("voltpipe:run:%s:stage:%s", runID, stage)
}

// StagesKey returns the Redis key for the set of stage names in a run.
// Pattern: voltpipe:run:{run_id}:stages
func StagesKey(runID string) string {
	return fmt.Sprintf("voltpipe:run:%s:stages", runID)
}

// RegistrationsKey returns the Redis key for a run's dataset registration
// outcomes hash (table -> outcome).
// Pattern: voltpipe:run:{run_id}:registrations
func RegistrationsKey(runID string) string {
	return fmt.Sprintf("voltpipe:run:%s:registrations", runID)
}

// LastRunKey returns the Redis key holding the most recent run id.
func LastRunKey() string {
	return "voltpipe:last_run"
}

// RunEventsChannel returns the Pub/Sub channel for run lifecycle events.
func RunEventsChannel() string {
	return "voltpipe:run_events"
}
