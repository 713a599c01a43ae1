package canvas

import (
	"context"
	"net/url"
)

// Client is the subset of the Canvas REST API the import pipeline drives.
type Client interface {
	// FindCourse returns nil, nil when no course carries the SIS id.
	FindCourse(ctx context.Context, sisCourseID string) (*Course, error)
	CreateCourse(ctx context.Context, accountID int, args CourseParams) (*Course, error)
	UpdateCourse(ctx context.Context, course *Course, args CourseParams) (*Course, error)
	ResetCourseContent(ctx context.Context, course *Course) (*Course, error)
	CreateAssignmentGroup(ctx context.Context, course *Course, args AssignmentGroupParams) (*AssignmentGroup, error)
	CreateAssignment(ctx context.Context, course *Course, args AssignmentParams) (*Assignment, error)
	CreatePage(ctx context.Context, course *Course, args PageParams) (*Page, error)
	UploadFile(ctx context.Context, course *Course, localPath string, args FileParams) (*File, error)
	// ResourceURL resolves a UI path such as /courses/12 against the instance.
	ResourceURL(path string) *url.URL
}
