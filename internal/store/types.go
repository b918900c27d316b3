package store

import (
	"fmt"
	"time"
)

// RunConfig holds the parameters a benchmark run was invoked with.
type RunConfig struct {
	GroupSize int    `json:"groupSize"`
	Strategy  string `json:"strategy"` // radixk, reduce
	NumTiles  int    `json:"numTiles"`
	MagicK    int    `json:"magicK,omitempty"`
}

// BenchmarkRecord is the persisted result of one compositing benchmark
// run: the configuration it was invoked with, the wall-clock time it
// took, and a pointer to the per-round trace file internal/trace wrote
// alongside it.
type BenchmarkRecord struct {
	// RunID is the unique identifier for this benchmark run.
	RunID string `json:"runId"`

	// Config holds the run's configuration (group size, strategy, tiles).
	Config RunConfig `json:"config"`

	// WallMicros is the total wall-clock duration of the run, in
	// microseconds.
	WallMicros int64 `json:"wallMicros"`

	// Rounds is the number of radix-k rounds executed (0 for reduce
	// strategy runs, which do not have rounds).
	Rounds int `json:"rounds"`

	// TracePath is the filesystem path to the round-trace.jsonl file
	// internal/trace wrote for this run, if tracing was enabled.
	TracePath string `json:"tracePath,omitempty"`

	// Timestamp records when this benchmark run completed.
	Timestamp time.Time `json:"timestamp"`
}

// BenchmarkInfo is the metadata-only projection of a BenchmarkRecord,
// used for listing runs without loading trace paths.
type BenchmarkInfo struct {
	RunID      string    `json:"runId"`
	GroupSize  int       `json:"groupSize"`
	Strategy   string    `json:"strategy"`
	NumTiles   int       `json:"numTiles"`
	WallMicros int64     `json:"wallMicros"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewBenchmarkRecord creates a record from the observed outcome of a run.
func NewBenchmarkRecord(runID string, config RunConfig, wallMicros int64, rounds int, tracePath string) *BenchmarkRecord {
	return &BenchmarkRecord{
		RunID:      runID,
		Config:     config,
		WallMicros: wallMicros,
		Rounds:     rounds,
		TracePath:  tracePath,
		Timestamp:  time.Now(),
	}
}

// ToInfo converts a full BenchmarkRecord to BenchmarkInfo (metadata only).
func (r *BenchmarkRecord) ToInfo() BenchmarkInfo {
	return BenchmarkInfo{
		RunID:      r.RunID,
		GroupSize:  r.Config.GroupSize,
		Strategy:   r.Config.Strategy,
		NumTiles:   r.Config.NumTiles,
		WallMicros: r.WallMicros,
		Timestamp:  r.Timestamp,
	}
}

// Validate checks that the record has the fields a completed run must
// carry.
func (r *BenchmarkRecord) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if r.Config.GroupSize <= 0 {
		return &ValidationError{Field: "Config.GroupSize", Reason: "must be positive"}
	}
	if r.Config.Strategy == "" {
		return &ValidationError{Field: "Config.Strategy", Reason: "cannot be empty"}
	}
	if r.Config.NumTiles <= 0 {
		return &ValidationError{Field: "Config.NumTiles", Reason: "must be positive"}
	}
	if r.WallMicros < 0 {
		return &ValidationError{Field: "WallMicros", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a benchmark record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}
