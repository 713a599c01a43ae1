// Package oneroster resolves where a section lands in Canvas: its SIS course
// id, the sub-account of its department and the SIS term it belongs to. It
// reads three CSV exports: all terms, department to account map, and courses
// with departments.
package oneroster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"sisimport/internal/logging"
	"sisimport/internal/snapshot"
)

// LookupError reports a section that cannot be placed, or an unreadable CSV.
type LookupError struct {
	Kind string // "terms", "department", "account", ...
	Key  string
	Err  error
}

func (e *LookupError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s lookup %q: %v", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("%s lookup: %v", e.Kind, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// ErrNotFound is wrapped by LookupError when a key has no row.
var ErrNotFound = errors.New("not found")

// Paths locates the three CSV exports.
type Paths struct {
	Terms                  string
	DepartmentAccountMap   string
	CoursesWithDepartments string
}

// Lookups holds the parsed CSV tables.
type Lookups struct {
	terms       map[string]string // title|schoolYear -> sourcedId
	accounts    map[string]int    // department -> Canvas account id
	departments map[string]string // course title -> department
}

// Load parses all three CSV files.
func Load(p Paths) (*Lookups, error) {
	l := &Lookups{
		terms:       make(map[string]string),
		accounts:    make(map[string]int),
		departments: make(map[string]string),
	}

	if err := readTable(p.Terms, "terms", []string{"sourcedId", "title", "schoolYear"}, func(row map[string]string) error {
		l.terms[termKey(row["title"], row["schoolYear"])] = row["sourcedId"]
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readTable(p.DepartmentAccountMap, "department account map", []string{"department", "account_id"}, func(row map[string]string) error {
		id, err := strconv.Atoi(row["account_id"])
		if err != nil {
			return fmt.Errorf("account_id %q: %w", row["account_id"], err)
		}
		l.accounts[normalize(row["department"])] = id
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readTable(p.CoursesWithDepartments, "courses with departments", []string{"course", "department"}, func(row map[string]string) error {
		l.departments[normalize(row["course"])] = row["department"]
		return nil
	}); err != nil {
		return nil, err
	}

	logging.Roster("Loaded %d terms, %d department accounts, %d course departments",
		len(l.terms), len(l.accounts), len(l.departments))
	return l, nil
}

// SISCourseID is the external id used to detect an existing Canvas course.
func (l *Lookups) SISCourseID(s snapshot.Section) string {
	return strconv.Itoa(s.SectionInfo.ID)
}

// Department returns the department the section's course belongs to.
func (l *Lookups) Department(s snapshot.Section) (string, error) {
	dept, ok := l.departments[normalize(s.SectionInfo.GroupName)]
	if !ok {
		return "", &LookupError{Kind: "department", Key: s.SectionInfo.GroupName, Err: ErrNotFound}
	}
	return dept, nil
}

// AccountID returns the Canvas sub-account a new course is created under.
func (l *Lookups) AccountID(s snapshot.Section) (int, error) {
	dept, err := l.Department(s)
	if err != nil {
		return 0, err
	}
	id, ok := l.accounts[normalize(dept)]
	if !ok {
		return 0, &LookupError{Kind: "account", Key: dept, Err: ErrNotFound}
	}
	return id, nil
}

// TermID returns the SIS term id for the section, or "" when the term file
// has no matching row. Canvas then places the course in the default term.
func (l *Lookups) TermID(s snapshot.Section) string {
	id, ok := l.terms[termKey(s.SectionInfo.Duration, s.SectionInfo.SchoolYear)]
	if !ok {
		logging.RosterWarn("No term for %q %q (section %d)", s.SectionInfo.Duration, s.SectionInfo.SchoolYear, s.SectionInfo.ID)
		return ""
	}
	return id
}

func termKey(title, schoolYear string) string {
	return normalize(title) + "|" + strings.ReplaceAll(normalize(schoolYear), " ", "")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// readTable streams a CSV with a header row, handing each row to fn keyed by
// column name. Header names are matched case-insensitively.
func readTable(path, kind string, required []string, fn func(map[string]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return &LookupError{Kind: kind, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return &LookupError{Kind: kind, Err: fmt.Errorf("read header of %s: %w", path, err)}
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[normalize(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	cols := make(map[string]int, len(required))
	for _, name := range required {
		i, ok := index[normalize(name)]
		if !ok {
			return &LookupError{Kind: kind, Err: fmt.Errorf("%s: missing column %q", path, name)}
		}
		cols[name] = i
	}

	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return &LookupError{Kind: kind, Err: fmt.Errorf("%s line %d: %w", path, line, err)}
		}
		row := make(map[string]string, len(cols))
		for name, i := range cols {
			if i < len(rec) {
				row[name] = strings.TrimSpace(rec[i])
			}
		}
		if err := fn(row); err != nil {
			return &LookupError{Kind: kind, Err: fmt.Errorf("%s line %d: %w", path, line, err)}
		}
	}
}
