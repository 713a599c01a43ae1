// Package hydrate merges a section's assignment roster with its per-marking-period
// gradebook into one unified record per roster entry, ordered by due date.
package hydrate

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"sisimport/internal/logging"
	"sisimport/internal/snapshot"
)

// ErrUnmatched is the cause carried by UnmatchedAssignmentError.
var ErrUnmatched = errors.New("no gradebook entry")

// Options control hydration.
type Options struct {
	// IgnoreErrors logs unmatched and invalid roster entries instead of failing.
	IgnoreErrors bool
	// Location is used for due dates that carry no offset. Nil means time.Local.
	Location *time.Location
}

// Assignment is the unified record: the roster entry with ExtraCredit and
// IncCumGrade cleared, overlaid with the first matching gradebook entry.
type Assignment struct {
	snapshot.RosterAssignment

	// Due is the parsed due date.
	Due time.Time
	// Matched reports whether a gradebook entry was overlaid.
	Matched bool
	// MarkingPeriodID is the marking period of the overlaid entry, zero when unmatched.
	MarkingPeriodID int
}

// UnmatchedAssignmentError reports a roster entry without a gradebook counterpart.
type UnmatchedAssignmentError struct {
	SectionID    int
	AssignmentID int
	Name         string
}

func (e *UnmatchedAssignmentError) Error() string {
	return fmt.Sprintf("section %d: assignment %d (%q): %v", e.SectionID, e.AssignmentID, e.Name, ErrUnmatched)
}

func (e *UnmatchedAssignmentError) Unwrap() error { return ErrUnmatched }

// InvalidAssignmentError reports a roster entry that could not be turned into
// a unified record.
type InvalidAssignmentError struct {
	SectionID    int
	AssignmentID int
	Err          error
}

func (e *InvalidAssignmentError) Error() string {
	return fmt.Sprintf("section %d: assignment %d: %v", e.SectionID, e.AssignmentID, e.Err)
}

func (e *InvalidAssignmentError) Unwrap() error { return e.Err }

type gradebookEntry struct {
	snapshot.GradebookAssignment
	markingPeriodID int
}

// index maps assignment id to its first gradebook entry, walking marking
// periods in snapshot order.
func index(periods []snapshot.MarkingPeriod) map[int]gradebookEntry {
	idx := make(map[int]gradebookEntry)
	for _, mp := range periods {
		for _, ga := range mp.Gradebook.Assignments {
			if _, seen := idx[ga.AssignmentID]; seen {
				continue
			}
			idx[ga.AssignmentID] = gradebookEntry{GradebookAssignment: ga, markingPeriodID: mp.MarkingPeriodID}
		}
	}
	return idx
}

// Hydrate returns the section's unified assignments sorted ascending by due
// date. Entries with equal due dates keep roster order.
func Hydrate(section snapshot.Section, opts Options) ([]Assignment, error) {
	sectionID := section.SectionInfo.ID
	idx := index(section.Gradebook)

	out := make([]Assignment, 0, len(section.Assignments))
	for _, roster := range section.Assignments {
		a := Assignment{RosterAssignment: roster}
		a.ExtraCredit = nil
		a.IncCumGrade = nil

		if entry, ok := idx[roster.ID]; ok {
			overlay(&a, entry)
		} else {
			err := &UnmatchedAssignmentError{SectionID: sectionID, AssignmentID: roster.ID, Name: roster.ShortDescription}
			if !opts.IgnoreErrors {
				return nil, err
			}
			logging.HydrateWarn("%v (kept without gradebook overlay)", err)
		}

		due, err := snapshot.ParseDueDate(a.DueDate, opts.Location)
		if err != nil {
			invalid := &InvalidAssignmentError{SectionID: sectionID, AssignmentID: roster.ID, Err: err}
			if !opts.IgnoreErrors {
				return nil, invalid
			}
			logging.HydrateWarn("%v (dropped)", invalid)
			continue
		}
		a.Due = due
		out = append(out, a)
	}

	slices.SortStableFunc(out, func(x, y Assignment) int {
		return x.Due.Compare(y.Due)
	})
	logging.HydrateDebug("section %d: %d of %d assignments hydrated", sectionID, len(out), len(section.Assignments))
	return out, nil
}

func overlay(a *Assignment, entry gradebookEntry) {
	a.Matched = true
	a.MarkingPeriodID = entry.markingPeriodID
	if entry.ShortDescription != nil {
		a.ShortDescription = *entry.ShortDescription
	}
	if entry.DueDate != nil {
		a.DueDate = *entry.DueDate
	}
	if entry.AssignmentType != nil {
		a.Type = *entry.AssignmentType
	}
	if entry.MaxPoints != nil {
		points := *entry.MaxPoints
		a.MaxPoints = &points
	}
	if entry.PublishInd != nil {
		a.PublishInd = *entry.PublishInd
	}
}

// Types returns the distinct non-empty assignment types in first-seen order.
func Types(assignments []Assignment) []string {
	seen := make(map[string]bool)
	var types []string
	for _, a := range assignments {
		if a.Type == "" || seen[a.Type] {
			continue
		}
		seen[a.Type] = true
		types = append(types, a.Type)
	}
	return types
}
