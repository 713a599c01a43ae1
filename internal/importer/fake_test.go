package importer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"sisimport/internal/canvas"
	"sisimport/internal/duplicate"
	"sisimport/internal/journal"
	"sisimport/internal/snapshot"
)

// fakeClient is an in-memory canvas.Client that records every call.
type fakeClient struct {
	mu      sync.Mutex
	nextID  int
	courses map[string]*canvas.Course

	calls       []string
	created     []canvas.CourseParams
	updates     []canvas.CourseParams
	groups      []canvas.AssignmentGroupParams
	assignments []canvas.AssignmentParams
	pages       []canvas.PageParams
	uploads     []string

	failCreateCourse map[string]error
	failAssignment   string
}

var _ canvas.Client = (*fakeClient)(nil)

func newFakeClient(existing ...*canvas.Course) *fakeClient {
	c := &fakeClient{nextID: 1000, courses: make(map[string]*canvas.Course)}
	for _, course := range existing {
		c.courses[course.SISCourseID] = course
	}
	return c
}

func (c *fakeClient) id() int {
	c.nextID++
	return c.nextID
}

func (c *fakeClient) record(format string, args ...any) {
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *fakeClient) FindCourse(ctx context.Context, sisCourseID string) (*canvas.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("FindCourse %s", sisCourseID)
	if sisCourseID == "lookup-error" {
		return nil, &canvas.OperationError{Op: "find course", Err: errors.New("503")}
	}
	return c.courses[sisCourseID], nil
}

func (c *fakeClient) CreateCourse(ctx context.Context, accountID int, args canvas.CourseParams) (*canvas.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("CreateCourse %d %s", accountID, args.SISCourseID)
	if err := c.failCreateCourse[args.SISCourseID]; err != nil {
		return nil, &canvas.OperationError{Op: "create course", Err: err}
	}
	c.created = append(c.created, args)
	course := &canvas.Course{ID: c.id(), Name: args.Name, SISCourseID: args.SISCourseID, AccountID: accountID}
	c.courses[args.SISCourseID] = course
	return course, nil
}

func (c *fakeClient) UpdateCourse(ctx context.Context, course *canvas.Course, args canvas.CourseParams) (*canvas.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("UpdateCourse %d", course.ID)
	c.updates = append(c.updates, args)
	updated := *course
	updated.Name = args.Name
	return &updated, nil
}

func (c *fakeClient) ResetCourseContent(ctx context.Context, course *canvas.Course) (*canvas.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("ResetCourseContent %d", course.ID)
	reset := *course
	reset.ID = c.id()
	return &reset, nil
}

func (c *fakeClient) CreateAssignmentGroup(ctx context.Context, course *canvas.Course, args canvas.AssignmentGroupParams) (*canvas.AssignmentGroup, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("CreateAssignmentGroup %d %s", course.ID, args.Name)
	c.groups = append(c.groups, args)
	return &canvas.AssignmentGroup{ID: c.id(), Name: args.Name}, nil
}

func (c *fakeClient) CreateAssignment(ctx context.Context, course *canvas.Course, args canvas.AssignmentParams) (*canvas.Assignment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("CreateAssignment %d %s @%d", course.ID, args.Name, args.Position)
	if args.Name == c.failAssignment {
		return nil, &canvas.OperationError{Op: "create assignment", CourseID: course.ID, Err: errors.New("422")}
	}
	c.assignments = append(c.assignments, args)
	return &canvas.Assignment{ID: c.id(), Name: args.Name, Position: args.Position}, nil
}

func (c *fakeClient) CreatePage(ctx context.Context, course *canvas.Course, args canvas.PageParams) (*canvas.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("CreatePage %d %s", course.ID, args.Title)
	c.pages = append(c.pages, args)
	return &canvas.Page{PageID: c.id(), Title: args.Title, FrontPage: args.FrontPage, Published: args.Published}, nil
}

func (c *fakeClient) UploadFile(ctx context.Context, course *canvas.Course, localPath string, args canvas.FileParams) (*canvas.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads = append(c.uploads, localPath)
	return &canvas.File{ID: c.id(), DisplayName: args.Name}, nil
}

func (c *fakeClient) ResourceURL(path string) *url.URL {
	return &url.URL{Scheme: "https", Host: "canvas.example.com", Path: path}
}

// countCalls returns how many recorded calls start with prefix.
func (c *fakeClient) countCalls(prefix string) int {
	n := 0
	for _, call := range c.calls {
		if len(call) >= len(prefix) && call[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type fakeLookups struct {
	accounts map[int]int
	terms    map[int]string
}

func (l *fakeLookups) SISCourseID(s snapshot.Section) string {
	return fmt.Sprintf("%d", s.SectionInfo.ID)
}

func (l *fakeLookups) AccountID(s snapshot.Section) (int, error) {
	id, ok := l.accounts[s.SectionInfo.ID]
	if !ok {
		return 0, fmt.Errorf("no account for section %d", s.SectionInfo.ID)
	}
	return id, nil
}

func (l *fakeLookups) TermID(s snapshot.Section) string {
	return l.terms[s.SectionInfo.ID]
}

type scriptedPrompt struct {
	answers []duplicate.Action
	asked   int
}

func (p *scriptedPrompt) Select(ctx context.Context, message string, choices []string) (string, error) {
	if p.asked >= len(p.answers) {
		return "", errors.New("cancelled")
	}
	a := p.answers[p.asked]
	p.asked++
	return a.Label(), nil
}

type memoryJournal struct {
	entities []journal.EntityKind
	sections []journal.SectionRecord
}

func (j *memoryJournal) Entity(ctx context.Context, sectionID int, kind journal.EntityKind, canvasID int, name string) error {
	j.entities = append(j.entities, kind)
	return nil
}

func (j *memoryJournal) Section(ctx context.Context, rec journal.SectionRecord) error {
	j.sections = append(j.sections, rec)
	return nil
}
