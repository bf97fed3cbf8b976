package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/camrelay/internal/capture"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusStopped RunStatus = "stopped"
	// RunStatusFailed marks a run that never produced a frame, usually
	// because the device could not be opened.
	RunStatusFailed RunStatus = "failed"
	// RunStatusInterrupted marks a run the process never saw finish.
	RunStatusInterrupted RunStatus = "interrupted"
)

// Run is one capture run as seen through heartbeats.
type Run struct {
	ID         string             `json:"id"`
	Resolution capture.Resolution `json:"resolution"`
	StartedAt  time.Time          `json:"started_at"`
	StoppedAt  *time.Time         `json:"stopped_at,omitempty"`
	Frames     uint32             `json:"frames"`
	Errors     uint32             `json:"errors"`
	Status     RunStatus          `json:"status"`
}

// RunRepository provides access to run history.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Create inserts a new run.
func (r *RunRepository) Create(run *Run) error {
	_, err := r.db.Exec(
		`INSERT INTO runs (id, width, height, started_at, stopped_at, frames, errors, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Resolution.Width, run.Resolution.Height, run.StartedAt,
		nullTime(run.StoppedAt), run.Frames, run.Errors, string(run.Status),
	)
	return err
}

// Update stores the counters, status and stop time of an existing run.
func (r *RunRepository) Update(run *Run) error {
	result, err := r.db.Exec(
		`UPDATE runs SET frames = ?, errors = ?, status = ?, stopped_at = ?
		 WHERE id = ?`,
		run.Frames, run.Errors, string(run.Status), nullTime(run.StoppedAt), run.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(
		`SELECT id, width, height, started_at, stopped_at, frames, errors, status
		 FROM runs WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs first. A limit of zero or less returns
// every run.
func (r *RunRepository) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, width, height, started_at, stopped_at, frames, errors, status
		 FROM runs ORDER BY julianday(started_at) DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// MarkInterrupted closes out runs left in the running state by a previous
// process and returns how many were changed.
func (r *RunRepository) MarkInterrupted() (int64, error) {
	result, err := r.db.Exec(
		`UPDATE runs SET status = ? WHERE status = ?`,
		string(RunStatusInterrupted), string(RunStatusRunning),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var stopped sql.NullTime
	var status string

	err := row.Scan(&run.ID, &run.Resolution.Width, &run.Resolution.Height,
		&run.StartedAt, &stopped, &run.Frames, &run.Errors, &status)
	if err != nil {
		return nil, err
	}

	if stopped.Valid {
		t := stopped.Time
		run.StoppedAt = &t
	}
	run.Status = RunStatus(status)
	return run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
