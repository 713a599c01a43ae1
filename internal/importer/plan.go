package importer

import (
	"sisimport/internal/canvas"
	"sisimport/internal/files"
	"sisimport/internal/hydrate"
	"sisimport/internal/mapper"
	"sisimport/internal/snapshot"
)

// PlannedAssignment is an assignment as it would be created.
type PlannedAssignment struct {
	Group string
	Args  canvas.AssignmentParams
}

// SectionPlan is what Run would send to Canvas for one section, assuming the
// course does not exist yet.
type SectionPlan struct {
	SectionID   int
	Label       string
	AccountID   int
	Course      canvas.CourseParams
	Groups      []string
	Assignments []PlannedAssignment
	Pages       []string
	Warnings    []string
	Err         error
}

// Plan maps every section without calling Canvas or uploading files. Problems
// that would stop or fail a real run are reported on the section plan.
func (im *Importer) Plan(sections []snapshot.Section) []SectionPlan {
	plans := make([]SectionPlan, 0, len(sections))
	for _, section := range sections {
		plans = append(plans, im.planSection(section))
	}
	return plans
}

func (im *Importer) planSection(section snapshot.Section) SectionPlan {
	plan := SectionPlan{SectionID: section.SectionInfo.ID, Label: section.Label()}

	sisID := im.Lookups.SISCourseID(section)
	termID := im.Lookups.TermID(section)
	plan.Course = mapper.Course(section, sisID, termID)
	if termID == "" {
		plan.Warnings = append(plan.Warnings, "term not found; course will use the default term")
	}
	accountID, err := im.Lookups.AccountID(section)
	if err != nil {
		plan.Err = err
		return plan
	}
	plan.AccountID = accountID

	assignments, err := hydrate.Hydrate(section, hydrate.Options{
		IgnoreErrors: im.Options.IgnoreErrors,
		Location:     im.Options.Location,
	})
	if err != nil {
		plan.Err = err
		return plan
	}

	plan.Groups = hydrate.Types(assignments)
	for i, a := range assignments {
		if mapper.HasMarkup(a.ShortDescription) {
			plan.Warnings = append(plan.Warnings, "assignment name contains markup: "+a.ShortDescription)
		}
		plan.Assignments = append(plan.Assignments, PlannedAssignment{
			Group: a.Type,
			Args: mapper.Assignment(mapper.AssignmentInput{
				Assignment: a,
				Position:   i,
			}),
		})
	}

	if len(section.BulletinBoard) > 0 {
		plan.Pages = append(plan.Pages, BulletinBoardTitle)
	}
	for _, topic := range section.Topics {
		plan.Pages = append(plan.Pages, topic.Name)
	}
	if im.Files != nil && im.Files.Enabled {
		plan.Warnings = append(plan.Warnings, missingFiles(im.Files, section)...)
	}
	return plan
}

// missingFiles lists download items a real run could not resolve.
func missingFiles(r *files.Resolver, section snapshot.Section) []string {
	var items []snapshot.DownloadItem
	for _, a := range section.Assignments {
		items = append(items, a.DownloadItems...)
	}
	for _, b := range section.BulletinBoard {
		items = append(items, b.Downloads...)
	}
	for _, t := range section.Topics {
		for _, b := range t.Content {
			items = append(items, b.Downloads...)
		}
	}
	var out []string
	for _, item := range items {
		if _, err := r.Path(item); err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}
