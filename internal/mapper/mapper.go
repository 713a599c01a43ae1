// Package mapper translates snapshot records into Canvas create and update
// arguments. Everything here is pure: uploads happen before mapping, in the
// files package.
package mapper

import (
	"strings"

	"golang.org/x/net/html"

	"sisimport/internal/canvas"
	"sisimport/internal/files"
	"sisimport/internal/hydrate"
	"sisimport/internal/snapshot"
)

// TermPrefix is how Canvas addresses a term by its SIS id.
const TermPrefix = "sis_term_id:"

const (
	SubmissionOnPaper      = "on_paper"
	SubmissionOnlineUpload = "online_upload"
)

// dueLayout is ISO 8601 in UTC with millisecond precision.
const dueLayout = "2006-01-02T15:04:05.000Z"

// Course maps a section to course creation arguments. termID may be empty
// when the section's term could not be resolved.
func Course(section snapshot.Section, sisCourseID, termID string) canvas.CourseParams {
	info := section.SectionInfo
	code := info.Identifier
	if code == "" {
		code = info.GroupName
	}
	reactivate := true
	params := canvas.CourseParams{
		Name:                  info.GroupName,
		CourseCode:            code,
		SISCourseID:           sisCourseID,
		EnableSISReactivation: &reactivate,
	}
	if termID != "" {
		params.TermID = TermPrefix + termID
	}
	return params
}

// ForUpdate strips the fields Canvas must not receive when updating an
// existing course: the SIS id and the reactivation flag.
func ForUpdate(params canvas.CourseParams) canvas.CourseParams {
	params.SISCourseID = ""
	params.EnableSISReactivation = nil
	return params
}

// AssignmentGroup maps an assignment type to group creation arguments.
func AssignmentGroup(name string) canvas.AssignmentGroupParams {
	return canvas.AssignmentGroupParams{Name: name}
}

// AssignmentInput is everything needed to map one unified assignment.
type AssignmentInput struct {
	Course     *canvas.Course
	Groups     map[string]int
	Assignment hydrate.Assignment
	Position   int
	// Files are the uploaded download items, in DownloadItems order.
	Files []files.Ref
}

// Assignment maps a unified assignment to creation arguments.
func Assignment(in AssignmentInput) canvas.AssignmentParams {
	a := in.Assignment
	params := canvas.AssignmentParams{
		Name:            a.ShortDescription,
		Position:        in.Position,
		Description:     "<div>" + a.LongDescription + "</div>" + linkList(a.LinkItems) + fileList(in.Files),
		Published:       a.PublishInd,
		SubmissionTypes: []string{},
	}
	if !a.Due.IsZero() {
		params.DueAt = a.Due.UTC().Format(dueLayout)
	}
	if id, ok := in.Groups[a.Type]; ok && a.Type != "" {
		params.AssignmentGroupID = &id
	}
	if a.OnPaperSubmission {
		params.SubmissionTypes = append(params.SubmissionTypes, SubmissionOnPaper)
	}
	if a.DropboxInd {
		params.SubmissionTypes = append(params.SubmissionTypes, SubmissionOnlineUpload)
	}
	if a.MaxPoints != nil && *a.MaxPoints > 0 {
		points := *a.MaxPoints
		params.PointsPossible = &points
	} else {
		omit, hide := true, true
		params.OmitFromFinalGrade = &omit
		params.HideInGradebook = &hide
	}
	return params
}

func linkList(items []snapshot.LinkItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<dl>")
	for _, item := range items {
		b.WriteString(`<dt><a href="` + item.URL + `">` + item.ShortDescription + `</a></dt>`)
	}
	b.WriteString("</dl>")
	return b.String()
}

func fileList(refs []files.Ref) string {
	if len(refs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<dl>")
	for _, ref := range refs {
		b.WriteString("<dt>" + ref.Link() + "</dt><dd>" + ref.Label + "</dd>")
	}
	b.WriteString("</dl>")
	return strings.ReplaceAll(b.String(), "<dd></dd>", "")
}

// HasMarkup reports whether s contains HTML tags or character references.
// Assignment names are sent verbatim; callers use this only to warn.
func HasMarkup(s string) bool {
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken, html.CommentToken:
			return true
		case html.TextToken:
			raw := string(z.Raw())
			if strings.Contains(raw, "&") && string(z.Text()) != raw {
				return true
			}
		}
	}
}
