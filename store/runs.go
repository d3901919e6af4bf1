package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-attendance/occupancy"
	"github.com/pkg/errors"
)

// Run is one processed image and its attendance outcome.
type Run struct {
	ID         string           `json:"id"`
	Image      string           `json:"image"`
	CreatedAt  time.Time        `json:"created_at"`
	Rows       int              `json:"rows"`
	Cols       int              `json:"cols"`
	Policy     string           `json:"policy"`
	Cutoff     float32          `json:"cutoff"`
	Persons    int              `json:"persons"`
	Tables     int              `json:"tables"`
	Unassigned int              `json:"unassigned"`
	Report     occupancy.Report `json:"report"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Image string
	Since time.Time
	Limit int
}

// InsertRun stores a run and one row per seat of its matrix in a single transaction.
// A run without ID gets one from NewRunID.
//
// Arguments:
//   - run: The run to store.
//
// Returns:
//   - string: The run ID.
//   - error: An error if the transaction fails.
func (d *DB) InsertRun(run *Run) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	// Timestamps are stored as text and compared as strings, so keep one zone.
	run.CreatedAt = run.CreatedAt.UTC()

	tx, err := d.db.Begin()
	if err != nil {
		return "", errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	r := run.Report
	_, err = tx.Exec(`
		INSERT INTO runs (id, image, created_at, grid_rows, grid_cols, policy, cutoff, person_count, table_count,
			unassigned, total_seats, present, absent, percentage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Image, run.CreatedAt, run.Rows, run.Cols, run.Policy, run.Cutoff, run.Persons,
		run.Tables, run.Unassigned, r.TotalSeats, r.Present, r.Absent, r.Percentage)
	if err != nil {
		return "", errors.Wrap(err, "failed to insert run")
	}

	stmt, err := tx.Prepare(`INSERT INTO seats (run_id, seat_row, seat_col, status) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", errors.Wrap(err, "failed to prepare seat statement")
	}
	defer stmt.Close()

	for row, cols := range r.Matrix {
		for col, v := range cols {
			status := occupancy.StatusAbsent
			if v == 1 {
				status = occupancy.StatusPresent
			}
			if _, err := stmt.Exec(run.ID, row, col, string(status)); err != nil {
				return "", errors.Wrap(err, "failed to insert seat")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "failed to commit transaction")
	}
	return run.ID, nil
}

// GetRun retrieves a run with its matrix. It returns nil, nil when no run has id.
func (d *DB) GetRun(id string) (*Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	run, err := scanRun(d.db.QueryRow(`
		SELECT id, image, created_at, grid_rows, grid_cols, policy, cutoff, person_count, table_count,
			unassigned, total_seats, present, absent, percentage
		FROM runs WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query run")
	}

	if err := d.loadMatrix(run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs matching filter, newest first, without their matrices.
func (d *DB) ListRuns(filter RunFilter) ([]Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	query := `
		SELECT id, image, created_at, grid_rows, grid_cols, policy, cutoff, person_count, table_count,
			unassigned, total_seats, present, absent, percentage
		FROM runs
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Image != "" {
		query += " AND image = ?"
		args = append(args, filter.Image)
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, *run)
	}
	return runs, errors.Wrap(rows.Err(), "failed to iterate runs")
}

// DeleteRun removes a run and its seats.
func (d *DB) DeleteRun(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	return errors.Wrap(err, "failed to delete run")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	err := s.Scan(&run.ID, &run.Image, &run.CreatedAt, &run.Rows, &run.Cols, &run.Policy,
		&run.Cutoff, &run.Persons, &run.Tables, &run.Unassigned, &run.Report.TotalSeats,
		&run.Report.Present, &run.Report.Absent, &run.Report.Percentage)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// loadMatrix rebuilds the attendance matrix of run from its seat rows.
func (d *DB) loadMatrix(run *Run) error {
	rows, err := d.db.Query(`SELECT seat_row, seat_col, status FROM seats WHERE run_id = ?`, run.ID)
	if err != nil {
		return errors.Wrap(err, "failed to query seats")
	}
	defer rows.Close()

	matrix := make(occupancy.Matrix, run.Rows)
	for r := range matrix {
		matrix[r] = make([]int, run.Cols)
	}
	for rows.Next() {
		var row, col int
		var status string
		if err := rows.Scan(&row, &col, &status); err != nil {
			return errors.Wrap(err, "failed to scan seat")
		}
		if row >= 0 && row < run.Rows && col >= 0 && col < run.Cols && status == string(occupancy.StatusPresent) {
			matrix[row][col] = 1
		}
	}
	run.Report.Matrix = matrix
	return errors.Wrap(rows.Err(), "failed to iterate seats")
}
