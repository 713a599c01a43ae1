// Package importer drives a snapshot batch into Canvas one section at a time:
// find or create the course, settle duplicates with the operator, then create
// assignment groups, assignments and pages in a fixed order.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sisimport/internal/canvas"
	"sisimport/internal/duplicate"
	"sisimport/internal/files"
	"sisimport/internal/hydrate"
	"sisimport/internal/journal"
	"sisimport/internal/logging"
	"sisimport/internal/mapper"
	"sisimport/internal/snapshot"
)

// BulletinBoardTitle is the title of the front page built from a section's bulletin board.
const BulletinBoardTitle = "Bulletin Board"

// Lookups places a section in Canvas. *oneroster.Lookups implements it.
type Lookups interface {
	SISCourseID(s snapshot.Section) string
	AccountID(s snapshot.Section) (int, error)
	TermID(s snapshot.Section) string
}

// DuplicateResolver settles an existing course. *duplicate.Resolver implements it.
type DuplicateResolver interface {
	Resolve(ctx context.Context, course *canvas.Course, section snapshot.Section, params canvas.CourseParams) (*canvas.Course, duplicate.Action, error)
}

// Options are the run-wide switches.
type Options struct {
	IgnoreErrors bool
	Location     *time.Location
}

// Importer imports sections. Files and Journal are optional.
type Importer struct {
	Client     canvas.Client
	Lookups    Lookups
	Duplicates DuplicateResolver
	Files      *files.Resolver
	Journal    journal.Recorder
	Options    Options
}

// Run imports sections strictly in order. Per-section failures are logged and
// recorded; the returned error is set only for failures that stop the run:
// unmatched or invalid assignments (unless ignored), unresolvable files, and
// cancellation. Nothing created before a failure is rolled back.
func (im *Importer) Run(ctx context.Context, sections []snapshot.Section) (Summary, error) {
	timer := logging.StartTimer(logging.CategoryImport, "import run")
	defer timer.StopWithInfo()

	var summary Summary
	for _, section := range sections {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result, err := im.importSection(ctx, section)
		if err != nil {
			result.Outcome = journal.OutcomeFailed
			result.Err = err
		}
		summary.Sections = append(summary.Sections, result)
		im.recordSection(ctx, result)

		if err == nil {
			logging.Import("section %s: %s course %d (%d groups, %d assignments, %d pages)",
				result.Label, result.Outcome, result.CourseID, result.Groups, result.Assignments, result.Pages)
			continue
		}
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if Fatal(err) {
			logging.ImportError("section %s: %v (stopping)", result.Label, err)
			return summary, err
		}
		logging.ImportError("section %s: %v", result.Label, err)
	}
	return summary, nil
}

// Fatal reports whether err stops the whole run rather than one section.
func Fatal(err error) bool {
	var unmatched *hydrate.UnmatchedAssignmentError
	var invalid *hydrate.InvalidAssignmentError
	var unresolved *files.ResolutionError
	return errors.As(err, &unmatched) ||
		errors.As(err, &invalid) ||
		errors.As(err, &unresolved)
}

func (im *Importer) fileResolver() *files.Resolver {
	if im.Files == nil {
		return &files.Resolver{}
	}
	return im.Files
}

func (im *Importer) importSection(ctx context.Context, section snapshot.Section) (SectionResult, error) {
	result := SectionResult{SectionID: section.SectionInfo.ID, Label: section.Label()}

	sisID := im.Lookups.SISCourseID(section)
	existing, err := im.Client.FindCourse(ctx, sisID)
	if err != nil {
		return result, err
	}

	params := mapper.Course(section, sisID, im.Lookups.TermID(section))
	var course *canvas.Course
	if existing != nil {
		logging.ImportDebug("section %s: course %d already has sis_course_id %s", result.Label, existing.ID, sisID)
		resolved, action, err := im.Duplicates.Resolve(ctx, existing, section, params)
		if err != nil {
			result.CourseID = existing.ID
			return result, err
		}
		switch action {
		case duplicate.Skip:
			result.Outcome = journal.OutcomeSkipped
			result.CourseID = existing.ID
			return result, nil
		case duplicate.Reset:
			result.Outcome = journal.OutcomeReset
		default:
			result.Outcome = journal.OutcomeOverlay
		}
		course = resolved
	} else {
		accountID, err := im.Lookups.AccountID(section)
		if err != nil {
			return result, err
		}
		course, err = im.Client.CreateCourse(ctx, accountID, params)
		if err != nil {
			return result, err
		}
		result.Outcome = journal.OutcomeCreated
		im.recordEntity(ctx, result.SectionID, journal.EntityCourse, course.ID, course.Name)
	}
	result.CourseID = course.ID

	if err := im.importAssignments(ctx, section, course, &result); err != nil {
		return result, err
	}
	if err := im.importPages(ctx, section, course, &result); err != nil {
		return result, err
	}
	return result, nil
}

func (im *Importer) importAssignments(ctx context.Context, section snapshot.Section, course *canvas.Course, result *SectionResult) error {
	assignments, err := hydrate.Hydrate(section, hydrate.Options{
		IgnoreErrors: im.Options.IgnoreErrors,
		Location:     im.Options.Location,
	})
	if err != nil {
		return err
	}

	groups := make(map[string]int)
	for _, name := range hydrate.Types(assignments) {
		group, err := im.Client.CreateAssignmentGroup(ctx, course, mapper.AssignmentGroup(name))
		if err != nil {
			return err
		}
		groups[name] = group.ID
		result.Groups++
		im.recordEntity(ctx, result.SectionID, journal.EntityAssignmentGroup, group.ID, name)
	}

	resolver := im.fileResolver()
	for i, a := range assignments {
		if mapper.HasMarkup(a.ShortDescription) {
			logging.ImportWarn("section %s: assignment %d name contains markup: %q", result.Label, a.ID, a.ShortDescription)
		}
		refs, err := resolver.Upload(ctx, course, a.DownloadItems)
		if err != nil {
			return err
		}
		created, err := im.Client.CreateAssignment(ctx, course, mapper.Assignment(mapper.AssignmentInput{
			Course:     course,
			Groups:     groups,
			Assignment: a,
			Position:   i,
			Files:      refs,
		}))
		if err != nil {
			return err
		}
		result.Assignments++
		im.recordEntity(ctx, result.SectionID, journal.EntityAssignment, created.ID, a.ShortDescription)
	}
	return nil
}

func (im *Importer) importPages(ctx context.Context, section snapshot.Section, course *canvas.Course, result *SectionResult) error {
	if len(section.BulletinBoard) > 0 {
		if err := im.createPage(ctx, course, result, BulletinBoardTitle, section.BulletinBoard, 0, true); err != nil {
			return err
		}
	}
	for _, topic := range section.Topics {
		if err := im.createPage(ctx, course, result, topic.Name, topic.Content, topic.Layout, false); err != nil {
			return err
		}
	}
	return nil
}

func (im *Importer) createPage(ctx context.Context, course *canvas.Course, result *SectionResult, title string, blocks []snapshot.Block, layout int, front bool) error {
	resolved, err := im.fileResolver().ResolveBlocks(ctx, course, blocks)
	if err != nil {
		return err
	}
	args, err := mapper.Page(mapper.PageInput{
		Course:    course,
		Title:     title,
		Blocks:    resolved,
		Layout:    layout,
		FrontPage: front,
	})
	if err != nil {
		return err
	}
	page, err := im.Client.CreatePage(ctx, course, args)
	if err != nil {
		return err
	}
	result.Pages++
	im.recordEntity(ctx, result.SectionID, journal.EntityPage, page.PageID, title)
	return nil
}

func (im *Importer) recordEntity(ctx context.Context, sectionID int, kind journal.EntityKind, id int, name string) {
	if im.Journal == nil {
		return
	}
	if err := im.Journal.Entity(ctx, sectionID, kind, id, name); err != nil {
		logging.JournalWarn("%v", err)
	}
}

func (im *Importer) recordSection(ctx context.Context, r SectionResult) {
	if im.Journal == nil {
		return
	}
	rec := journal.SectionRecord{
		SectionID:   r.SectionID,
		Label:       r.Label,
		Outcome:     r.Outcome,
		CourseID:    r.CourseID,
		Groups:      r.Groups,
		Assignments: r.Assignments,
		Pages:       r.Pages,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	// Record even when the run was cancelled mid-section.
	if err := im.Journal.Section(context.WithoutCancel(ctx), rec); err != nil {
		logging.JournalWarn("%v", err)
	}
}

// SectionResult is the outcome of one section.
type SectionResult struct {
	SectionID   int
	Label       string
	Outcome     journal.Outcome
	CourseID    int
	Groups      int
	Assignments int
	Pages       int
	Err         error
}

// Summary collects section results in processing order.
type Summary struct {
	Sections []SectionResult
}

// Count returns how many sections ended with outcome.
func (s Summary) Count(outcome journal.Outcome) int {
	n := 0
	for _, r := range s.Sections {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

// Totals returns the created group, assignment and page counts.
func (s Summary) Totals() (groups, assignments, pages int) {
	for _, r := range s.Sections {
		groups += r.Groups
		assignments += r.Assignments
		pages += r.Pages
	}
	return groups, assignments, pages
}

func (r SectionResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s: %v", r.Label, r.Outcome, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Label, r.Outcome)
}
