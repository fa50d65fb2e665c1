package foresttune

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

//////
// Const, vars, types.
//////

// Checkpoint is the persisted form of a tuning run: the complete evaluation
// log plus the loop metadata needed for an exact resume. Written after every
// evaluation, removed on successful completion, retained on failure.
type Checkpoint struct {
	// RunID identifies the originating run, so a resumed log can always be
	// traced back to the run that started it.
	RunID string `json:"runId"`

	// CreatedAt is when the run started; UpdatedAt is the last write.
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Task, MeasureID, Minimize and TunedParameters pin down what the log
	// means, so a checkpoint is interpretable without the originating Config.
	Task            Task     `json:"task"`
	MeasureID       string   `json:"measureId"`
	Minimize        bool     `json:"minimize"`
	TunedParameters []string `json:"tunedParameters"`

	// Iterations is the total evaluation budget; Remaining counts the
	// evaluations still owed; NextIndex is the sequence index the next
	// observation will take.
	Iterations int `json:"iterations"`
	Remaining  int `json:"remaining"`
	NextIndex  int `json:"nextIndex"`

	// Seed reproduces the design and the infill search.
	Seed int64 `json:"seed"`

	// Log is the append-only evaluation log, the single source of truth for
	// the optimization state.
	Log []Observation `json:"log"`
}

// checkpointStore owns the checkpoint file. Exactly one writer exists per
// run; each write goes to a temp file, is synced, and is renamed into place,
// so a reader after a crash always observes a consistent prefix of the run.
type checkpointStore struct {
	path string
}

//////
// Exported functionalities.
//////

// LoadCheckpoint reads a persisted checkpoint. Useful for post-mortem
// inspection of a failed run; the tuner uses it internally for resume.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	return (&checkpointStore{path: path}).load()
}

//////
// Methods.
//////

// exists reports whether a checkpoint file is present.
func (s *checkpointStore) exists() bool {
	_, err := os.Stat(s.path)

	return err == nil
}

// save atomically persists the checkpoint: write to a temp file in the same
// directory, fsync, rename over the target.
func (s *checkpointStore) save(cp *Checkpoint) error {
	cp.UpdatedAt = now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return &CheckpointIOError{Path: s.path, Op: "write", Err: err}
	}

	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &CheckpointIOError{Path: s.path, Op: "write", Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return &CheckpointIOError{Path: s.path, Op: "write", Err: err}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return &CheckpointIOError{Path: s.path, Op: "write", Err: err}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return &CheckpointIOError{Path: s.path, Op: "write", Err: err}
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())

		return &CheckpointIOError{Path: s.path, Op: "write", Err: err}
	}

	return nil
}

// load reads and decodes the checkpoint file.
func (s *checkpointStore) load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &CheckpointIOError{Path: s.path, Op: "read", Err: err}
	}

	var cp Checkpoint

	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, &CheckpointIOError{Path: s.path, Op: "read", Err: err}
	}

	if len(cp.Log) != cp.NextIndex {
		return nil, &CheckpointIOError{Path: s.path, Op: "read", Err: errors.New("log length does not match next sequence index")}
	}

	return &cp, nil
}

// clear removes the checkpoint file. A missing file is not an error.
func (s *checkpointStore) clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &CheckpointIOError{Path: s.path, Op: "remove", Err: err}
	}

	return nil
}

//////
// Factory.
//////

// newCheckpoint stamps a fresh checkpoint shell for one run.
func newCheckpoint(cfg Config, measure Measure, tuned []string) *Checkpoint {
	return &Checkpoint{
		RunID:           uuid.NewString(),
		CreatedAt:       now(),
		Task:            cfg.Task,
		MeasureID:       measure.ID(),
		Minimize:        measure.Minimize(),
		TunedParameters: tuned,
		Iterations:      cfg.Iterations,
		Remaining:       cfg.Iterations,
		Seed:            cfg.Seed,
	}
}
