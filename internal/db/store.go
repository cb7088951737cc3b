package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chriserin/bddgen/internal/testcase"
)

// ErrRunNotFound is returned when a run ID (or any run at all) is missing.
var ErrRunNotFound = errors.New("run not found")

// Run is one pipeline invocation.
type Run struct {
	ID        string
	Source    string
	State     string
	Progress  int
	Stories   int
	Degraded  int
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Feature is a rendered feature file stored with its run.
type Feature struct {
	RunID     string
	Path      string
	Mode      string
	Content   string
	Steps     int
	CreatedAt time.Time
}

// Store is the run store backed by an open database.
type Store struct {
	db *sql.DB
}

func NewStore(sqlDB *sql.DB) *Store {
	return &Store{db: sqlDB}
}

func (s *Store) CreateRun(id, source, state string) error {
	_, err := s.db.Exec(`INSERT INTO runs (id, source, state) VALUES (?, ?, ?)`, id, source, state)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// UpdateRun records the run's current state and progress.
func (s *Store) UpdateRun(id, state string, progress int, errMsg string) error {
	res, err := s.db.Exec(`
		UPDATE runs
		SET state = ?, progress = ?, error = ?, updated_at = CAST(strftime('%s', 'now') AS INTEGER)
		WHERE id = ?`, state, progress, errMsg, id)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// SaveTestCases replaces the records stored for a run.
func (s *Store) SaveTestCases(runID string, stories int, records []testcase.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM test_cases WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clearing test cases: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO test_cases (run_id, position, story_id, title, seq, description, steps, results)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	degraded := 0
	for i, r := range records {
		if r.FailedSoft() {
			degraded++
		}
		if _, err := stmt.Exec(runID, i, r.StoryID, r.Title, r.Seq, r.Description, r.StepText(), r.ResultText()); err != nil {
			return fmt.Errorf("inserting test case %d: %w", i+1, err)
		}
	}
	if _, err := tx.Exec(`UPDATE runs SET stories = ?, degraded = ? WHERE id = ?`, stories, degraded, runID); err != nil {
		return fmt.Errorf("updating run counts: %w", err)
	}
	return tx.Commit()
}

// TestCases returns a run's records in their original order.
func (s *Store) TestCases(runID string) ([]testcase.Record, error) {
	rows, err := s.db.Query(`
		SELECT story_id, title, seq, description, steps, results
		FROM test_cases
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying test cases: %w", err)
	}
	defer rows.Close()

	var records []testcase.Record
	for rows.Next() {
		var r testcase.Record
		var steps, results string
		if err := rows.Scan(&r.StoryID, &r.Title, &r.Seq, &r.Description, &steps, &results); err != nil {
			return nil, fmt.Errorf("scanning test case: %w", err)
		}
		r.Steps = splitNonEmpty(steps)
		r.Results = splitNonEmpty(results)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) SaveFeature(runID, path, mode, content string, steps int) error {
	_, err := s.db.Exec(`INSERT INTO features (run_id, path, mode, content, steps) VALUES (?, ?, ?, ?, ?)`,
		runID, path, mode, content, steps)
	if err != nil {
		return fmt.Errorf("inserting feature: %w", err)
	}
	return nil
}

// LatestFeature returns the most recent feature rendered for a run.
func (s *Store) LatestFeature(runID string) (Feature, error) {
	var f Feature
	var created int64
	err := s.db.QueryRow(`
		SELECT run_id, path, mode, content, steps, created_at
		FROM features
		WHERE run_id = ?
		ORDER BY id DESC LIMIT 1`, runID).Scan(&f.RunID, &f.Path, &f.Mode, &f.Content, &f.Steps, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return f, fmt.Errorf("no feature rendered for run %s", runID)
	}
	if err != nil {
		return f, fmt.Errorf("querying feature: %w", err)
	}
	f.CreatedAt = time.Unix(created, 0)
	return f, nil
}

const runColumns = `id, source, state, progress, stories, degraded, error, created_at, updated_at`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	var created, updated int64
	err := row.Scan(&r.ID, &r.Source, &r.State, &r.Progress, &r.Stories, &r.Degraded, &r.Error, &created, &updated)
	r.CreatedAt = time.Unix(created, 0)
	r.UpdatedAt = time.Unix(updated, 0)
	return r, err
}

// Run looks up a run by ID. A unique ID prefix is accepted.
func (s *Store) Run(id string) (Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`,
		id, id+"%", id)
	if err != nil {
		return Run{}, fmt.Errorf("querying run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return Run{}, fmt.Errorf("scanning run: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch {
	case len(found) == 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(found) > 1 && found[0].ID != id:
		return Run{}, fmt.Errorf("run ID %q is ambiguous", id)
	}
	return found[0], nil
}

// LatestRun returns the most recently created run that has stored test cases.
func (s *Store) LatestRun() (Run, error) {
	r, err := scanRun(s.db.QueryRow(`
		SELECT ` + runColumns + ` FROM runs
		WHERE EXISTS (SELECT 1 FROM test_cases t WHERE t.run_id = runs.id)
		ORDER BY created_at DESC, rowid DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrRunNotFound
	}
	if err != nil {
		return r, fmt.Errorf("querying latest run: %w", err)
	}
	return r, nil
}

// Runs returns up to limit runs, newest first.
func (s *Store) Runs(limit int) ([]Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
