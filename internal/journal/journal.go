// Package journal keeps a SQLite record of import runs: which sections were
// imported how, and which Canvas entities each run created. Nothing is rolled
// back on failure, so the journal is what an operator reads to clean up.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"sisimport/internal/logging"
)

// Outcome is how a section ended.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeOverlay Outcome = "overlay"
	OutcomeReset   Outcome = "reset"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// EntityKind names a created Canvas resource.
type EntityKind string

const (
	EntityCourse          EntityKind = "course"
	EntityAssignmentGroup EntityKind = "assignment_group"
	EntityAssignment      EntityKind = "assignment"
	EntityPage            EntityKind = "page"
)

// SectionRecord is the outcome of one section.
type SectionRecord struct {
	SectionID   int
	Label       string
	Outcome     Outcome
	CourseID    int
	Groups      int
	Assignments int
	Pages       int
	Error       string
}

// Recorder receives pipeline events. *Run implements it.
type Recorder interface {
	Entity(ctx context.Context, sectionID int, kind EntityKind, canvasID int, name string) error
	Section(ctx context.Context, rec SectionRecord) error
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	snapshot_path TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT
);
CREATE TABLE IF NOT EXISTS sections (
	run_id           TEXT NOT NULL REFERENCES runs(id),
	section_id       INTEGER NOT NULL,
	label            TEXT NOT NULL,
	outcome          TEXT NOT NULL,
	course_id        INTEGER,
	group_count      INTEGER NOT NULL DEFAULT 0,
	assignment_count INTEGER NOT NULL DEFAULT 0,
	page_count       INTEGER NOT NULL DEFAULT 0,
	error            TEXT,
	recorded_at      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entities (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	section_id INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	canvas_id  INTEGER NOT NULL,
	name       TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sections_run ON sections(run_id);
CREATE INDEX IF NOT EXISTS idx_entities_run ON entities(run_id, section_id);
`

// Journal is an open journal database.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Journal, error) {
	timer := logging.StartTimer(logging.CategoryJournal, "journal.Open")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.JournalDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	logging.JournalDebug("journal open at %s", path)
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) stamp() string { return j.now().UTC().Format(time.RFC3339Nano) }

// Run is one import run in the journal.
type Run struct {
	ID string
	j  *Journal
}

var _ Recorder = (*Run)(nil)

// BeginRun starts a run for the snapshot at snapshotPath.
func (j *Journal) BeginRun(ctx context.Context, snapshotPath string) (*Run, error) {
	id := uuid.NewString()
	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, snapshot_path, started_at) VALUES (?, ?, ?)`,
		id, snapshotPath, j.stamp()); err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	logging.Journal("run %s started for %s", id, snapshotPath)
	return &Run{ID: id, j: j}, nil
}

// Entity records a created Canvas resource.
func (r *Run) Entity(ctx context.Context, sectionID int, kind EntityKind, canvasID int, name string) error {
	_, err := r.j.db.ExecContext(ctx,
		`INSERT INTO entities (run_id, section_id, kind, canvas_id, name, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, sectionID, string(kind), canvasID, name, r.j.stamp())
	if err != nil {
		return fmt.Errorf("record %s %d: %w", kind, canvasID, err)
	}
	return nil
}

// Section records a section outcome.
func (r *Run) Section(ctx context.Context, rec SectionRecord) error {
	var errText sql.NullString
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}
	var courseID sql.NullInt64
	if rec.CourseID != 0 {
		courseID = sql.NullInt64{Int64: int64(rec.CourseID), Valid: true}
	}
	_, err := r.j.db.ExecContext(ctx,
		`INSERT INTO sections (run_id, section_id, label, outcome, course_id, group_count, assignment_count, page_count, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, rec.SectionID, rec.Label, string(rec.Outcome), courseID, rec.Groups, rec.Assignments, rec.Pages, errText, r.j.stamp())
	if err != nil {
		return fmt.Errorf("record section %d: %w", rec.SectionID, err)
	}
	return nil
}

// Finish marks the run finished.
func (r *Run) Finish(ctx context.Context) error {
	if _, err := r.j.db.ExecContext(ctx, `UPDATE runs SET finished_at = ? WHERE id = ?`, r.j.stamp(), r.ID); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	logging.Journal("run %s finished", r.ID)
	return nil
}

// RunInfo summarizes a journaled run.
type RunInfo struct {
	ID           string
	SnapshotPath string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Sections     int
	Failed       int
}

// Runs returns the most recent runs, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]RunInfo, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT r.id, r.snapshot_path, r.started_at, r.finished_at,
		       COUNT(s.section_id),
		       COALESCE(SUM(CASE WHEN s.outcome = 'failed' THEN 1 ELSE 0 END), 0)
		FROM runs r LEFT JOIN sections s ON s.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var started string
		var finished sql.NullString
		if err := rows.Scan(&info.ID, &info.SnapshotPath, &started, &finished, &info.Sections, &info.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if info.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %s: bad started_at: %w", info.ID, err)
		}
		if finished.Valid {
			t, err := time.Parse(time.RFC3339Nano, finished.String)
			if err != nil {
				return nil, fmt.Errorf("run %s: bad finished_at: %w", info.ID, err)
			}
			info.FinishedAt = &t
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Sections returns the section records of a run in recording order.
func (j *Journal) Sections(ctx context.Context, runID string) ([]SectionRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT section_id, label, outcome, COALESCE(course_id, 0), group_count, assignment_count, page_count, COALESCE(error, '')
		FROM sections WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	var out []SectionRecord
	for rows.Next() {
		var rec SectionRecord
		var outcome string
		if err := rows.Scan(&rec.SectionID, &rec.Label, &outcome, &rec.CourseID, &rec.Groups, &rec.Assignments, &rec.Pages, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		rec.Outcome = Outcome(outcome)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EntityRecord is a created Canvas resource.
type EntityRecord struct {
	SectionID int
	Kind      EntityKind
	CanvasID  int
	Name      string
}

// Entities returns the resources a run created, in creation order.
func (j *Journal) Entities(ctx context.Context, runID string) ([]EntityRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT section_id, kind, canvas_id, COALESCE(name, '')
		FROM entities WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var out []EntityRecord
	for rows.Next() {
		var rec EntityRecord
		var kind string
		if err := rows.Scan(&rec.SectionID, &kind, &rec.CanvasID, &rec.Name); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		rec.Kind = EntityKind(kind)
		out = append(out, rec)
	}
	return out, rows.Err()
}
