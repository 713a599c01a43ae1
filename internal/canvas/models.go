// Package canvas is the Canvas LMS side of the import: resource models, the
// argument shapes sent on create/update, and the Client the pipeline calls.
package canvas

import (
	"encoding/json"
	"fmt"
)

// Course is a Canvas course.
type Course struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	CourseCode    string `json:"course_code,omitempty"`
	SISCourseID   string `json:"sis_course_id,omitempty"`
	AccountID     int    `json:"account_id,omitempty"`
	WorkflowState string `json:"workflow_state,omitempty"`
}

// AssignmentGroup is a Canvas assignment group.
type AssignmentGroup struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position,omitempty"`
}

// Assignment is a Canvas assignment.
type Assignment struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Position          int    `json:"position"`
	AssignmentGroupID int    `json:"assignment_group_id,omitempty"`
	HTMLURL           string `json:"html_url,omitempty"`
}

// Page is a Canvas wiki page.
type Page struct {
	PageID    int    `json:"page_id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	FrontPage bool   `json:"front_page"`
	Published bool   `json:"published"`
}

// File is an uploaded Canvas file.
type File struct {
	ID          int    `json:"id"`
	DisplayName string `json:"display_name"`
	Filename    string `json:"filename"`
	URL         string `json:"url,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// CourseParams are the create/update arguments for a course. On the wire the
// course fields nest under "course" and enable_sis_reactivation stays top level.
// Empty fields are omitted entirely, which is how an update leaves the SIS id alone.
type CourseParams struct {
	Name                  string
	CourseCode            string
	SISCourseID           string
	TermID                string
	EnableSISReactivation *bool
}

type courseFields struct {
	Name        string `json:"name,omitempty"`
	CourseCode  string `json:"course_code,omitempty"`
	SISCourseID string `json:"sis_course_id,omitempty"`
	TermID      string `json:"term_id,omitempty"`
}

// MarshalJSON encodes the Canvas request body.
func (p CourseParams) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Course                courseFields `json:"course"`
		EnableSISReactivation *bool        `json:"enable_sis_reactivation,omitempty"`
	}{
		Course: courseFields{
			Name:        p.Name,
			CourseCode:  p.CourseCode,
			SISCourseID: p.SISCourseID,
			TermID:      p.TermID,
		},
		EnableSISReactivation: p.EnableSISReactivation,
	})
}

// AssignmentGroupParams are the create arguments for an assignment group.
type AssignmentGroupParams struct {
	Name     string `json:"name"`
	Position int    `json:"position,omitempty"`
}

// AssignmentParams are the create arguments for an assignment.
type AssignmentParams struct {
	Name               string   `json:"name"`
	Position           int      `json:"position"`
	DueAt              string   `json:"due_at,omitempty"`
	Description        string   `json:"description"`
	Published          bool     `json:"published"`
	AssignmentGroupID  *int     `json:"assignment_group_id,omitempty"`
	SubmissionTypes    []string `json:"submission_types"`
	PointsPossible     *float64 `json:"points_possible,omitempty"`
	OmitFromFinalGrade *bool    `json:"omit_from_final_grade,omitempty"`
	HideInGradebook    *bool    `json:"hide_in_gradebook,omitempty"`
}

// MarshalJSON nests the fields under "assignment".
func (p AssignmentParams) MarshalJSON() ([]byte, error) {
	type fields AssignmentParams
	return json.Marshal(struct {
		Assignment fields `json:"assignment"`
	}{fields(p)})
}

// PageParams are the create arguments for a wiki page.
type PageParams struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Published bool   `json:"published"`
	FrontPage bool   `json:"front_page"`
}

// MarshalJSON nests the fields under "wiki_page".
func (p PageParams) MarshalJSON() ([]byte, error) {
	type fields PageParams
	return json.Marshal(struct {
		WikiPage fields `json:"wiki_page"`
	}{fields(p)})
}

// FileParams are the upload notification arguments for a course file.
// Size and ContentType are filled in by the client from the local file.
type FileParams struct {
	Name             string `json:"name"`
	Size             int64  `json:"size"`
	ContentType      string `json:"content_type,omitempty"`
	ParentFolderPath string `json:"parent_folder_path,omitempty"`
	OnDuplicate      string `json:"on_duplicate,omitempty"`
}

// OperationError reports a failed Canvas call.
type OperationError struct {
	Op       string
	CourseID int
	Err      error
}

func (e *OperationError) Error() string {
	if e.CourseID != 0 {
		return fmt.Sprintf("canvas %s (course %d): %v", e.Op, e.CourseID, e.Err)
	}
	return fmt.Sprintf("canvas %s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// APIError is a non-2xx Canvas response.
type APIError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Status, e.Body)
}
