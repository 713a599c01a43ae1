package importer

import (
	"fmt"
	"strings"

	"sisimport/internal/journal"
)

// Markdown renders the summary as a markdown report.
func (s Summary) Markdown() string {
	var b strings.Builder
	groups, assignments, pages := s.Totals()
	fmt.Fprintf(&b, "# Import summary\n\n")
	fmt.Fprintf(&b, "%d sections: %d created, %d overlaid, %d reset, %d skipped, %d failed.\n\n",
		len(s.Sections),
		s.Count(journal.OutcomeCreated),
		s.Count(journal.OutcomeOverlay),
		s.Count(journal.OutcomeReset),
		s.Count(journal.OutcomeSkipped),
		s.Count(journal.OutcomeFailed))
	fmt.Fprintf(&b, "Created %d assignment groups, %d assignments and %d pages.\n\n", groups, assignments, pages)

	if len(s.Sections) == 0 {
		return b.String()
	}
	b.WriteString("| Section | Outcome | Course | Groups | Assignments | Pages |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, r := range s.Sections {
		course := "-"
		if r.CourseID != 0 {
			course = fmt.Sprintf("%d", r.CourseID)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %d |\n",
			cell(r.Label), r.Outcome, course, r.Groups, r.Assignments, r.Pages)
	}

	var failures []SectionResult
	for _, r := range s.Sections {
		if r.Err != nil {
			failures = append(failures, r)
		}
	}
	if len(failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, r := range failures {
			fmt.Fprintf(&b, "- **%s**: %s\n", cell(r.Label), cell(r.Err.Error()))
		}
	}
	return b.String()
}

// PlanMarkdown renders a dry-run plan as a markdown report.
func PlanMarkdown(plans []SectionPlan) string {
	var b strings.Builder
	b.WriteString("# Import plan\n")
	for _, p := range plans {
		fmt.Fprintf(&b, "\n## %s\n\n", cell(p.Label))
		fmt.Fprintf(&b, "- SIS course id: `%s`\n", p.Course.SISCourseID)
		if p.Err != nil {
			fmt.Fprintf(&b, "- **Error**: %s\n", cell(p.Err.Error()))
			continue
		}
		fmt.Fprintf(&b, "- Account: %d\n", p.AccountID)
		if p.Course.TermID != "" {
			fmt.Fprintf(&b, "- Term: `%s`\n", p.Course.TermID)
		}
		if len(p.Groups) > 0 {
			fmt.Fprintf(&b, "- Assignment groups: %s\n", cell(strings.Join(p.Groups, ", ")))
		}
		if len(p.Pages) > 0 {
			fmt.Fprintf(&b, "- Pages: %s\n", cell(strings.Join(p.Pages, ", ")))
		}
		for _, w := range p.Warnings {
			fmt.Fprintf(&b, "- Warning: %s\n", cell(w))
		}
		if len(p.Assignments) == 0 {
			continue
		}
		b.WriteString("\n| # | Assignment | Group | Due | Points |\n|---|---|---|---|---|\n")
		for _, a := range p.Assignments {
			points := "-"
			if a.Args.PointsPossible != nil {
				points = fmt.Sprintf("%g", *a.Args.PointsPossible)
			}
			group := a.Group
			if group == "" {
				group = "-"
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n", a.Args.Position, cell(a.Args.Name), cell(group), a.Args.DueAt, points)
		}
	}
	return b.String()
}

// cell keeps a value from breaking a markdown table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
