package stages

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/voltpipe/voltpipe/internal/catalog"
	"github.com/voltpipe/voltpipe/internal/oracle"
	"github.com/voltpipe/voltpipe/internal/table"
)

// Shared in-memory fakes for the stage tests.

type fakeLake struct {
	mu         sync.Mutex
	appends    map[string][]*table.Frame
	failAppend error
}

func newFakeLake() *fakeLake {
	return &fakeLake{appends: make(map[string][]*table.Frame)}
}

func (f *fakeLake) Append(dataset string, frame *table.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppend != nil {
		return f.failAppend
	}
	f.appends[dataset] = append(f.appends[dataset], frame)
	return nil
}

func (f *fakeLake) LocationURI(dataset string) string {
	return "abfss://weather-data@testaccount.dfs.core.windows.net/" + dataset
}

func (f *fakeLake) frames(dataset string) []*table.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appends[dataset]
}

type fakeRegistrar struct {
	mu       sync.Mutex
	requests []catalog.RegisterRequest
	outcome  catalog.Outcome
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{outcome: catalog.OutcomeRegistered}
}

func (f *fakeRegistrar) Register(ctx context.Context, req catalog.RegisterRequest) catalog.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.outcome
}

type storedDecision struct {
	ts    time.Time
	price float64
	trade bool
}

type fakeStore struct {
	mu        sync.Mutex
	inserts   []storedDecision
	schemaErr error
	insertErr error
	ensured   int
}

func (f *fakeStore) EnsureSchema(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured++
	return f.schemaErr
}

func (f *fakeStore) InsertDecision(ctx context.Context, ts time.Time, price float64, decision bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserts = append(f.inserts, storedDecision{ts: ts, price: price, trade: decision})
	return int64(len(f.inserts)), nil
}

type fakeSQL struct {
	mu       sync.Mutex
	execs    []string
	catalogs []string
	count    int64
	failOn   string
	failErr  error
}

func (f *fakeSQL) Exec(ctx context.Context, query string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && strings.Contains(query, f.failOn) {
		return f.failErr
	}
	f.execs = append(f.execs, query)
	return nil
}

func (f *fakeSQL) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && strings.Contains(query, f.failOn) {
		return nil, f.failErr
	}
	return f.catalogs, nil
}

func (f *fakeSQL) QueryCount(ctx context.Context, query string, args ...any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && strings.Contains(query, f.failOn) {
		return 0, f.failErr
	}
	return f.count, nil
}

func (f *fakeSQL) executed(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.execs {
		if strings.Contains(q, substr) {
			return true
		}
	}
	return false
}

type fakeOracle struct {
	mu      sync.Mutex
	result  oracle.Result
	prompts []string
}

func (f *fakeOracle) Generate(ctx context.Context, prompt string) oracle.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.result
}
