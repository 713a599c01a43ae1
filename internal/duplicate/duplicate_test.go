package duplicate

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sisimport/internal/canvas"
	"sisimport/internal/mapper"
	"sisimport/internal/snapshot"
)

type scriptedPrompt struct {
	answers  []string
	err      error
	messages []string
	choices  [][]string
}

func (p *scriptedPrompt) Select(ctx context.Context, message string, choices []string) (string, error) {
	p.messages = append(p.messages, message)
	p.choices = append(p.choices, choices)
	if p.err != nil {
		return "", p.err
	}
	if len(p.answers) == 0 {
		return "", errors.New("no more answers")
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

type recordingOpener struct {
	opened []string
	err    error
}

func (o *recordingOpener) Open(u string) error {
	o.opened = append(o.opened, u)
	return o.err
}

type fakeClient struct {
	resets   []int
	updates  []canvas.CourseParams
	resetErr error
}

func (c *fakeClient) ResetCourseContent(ctx context.Context, course *canvas.Course) (*canvas.Course, error) {
	c.resets = append(c.resets, course.ID)
	if c.resetErr != nil {
		return nil, &canvas.OperationError{Op: "reset course content", CourseID: course.ID, Err: c.resetErr}
	}
	return &canvas.Course{ID: course.ID + 1000, Name: course.Name, SISCourseID: course.SISCourseID}, nil
}

func (c *fakeClient) UpdateCourse(ctx context.Context, course *canvas.Course, args canvas.CourseParams) (*canvas.Course, error) {
	c.updates = append(c.updates, args)
	return &canvas.Course{ID: course.ID, Name: args.Name, SISCourseID: course.SISCourseID}, nil
}

func (c *fakeClient) ResourceURL(path string) *url.URL {
	return &url.URL{Scheme: "https", Host: "canvas.example.com", Path: path}
}

var (
	existing = &canvas.Course{ID: 7, Name: "Biology", SISCourseID: "42"}
	section  = snapshot.Section{SectionInfo: snapshot.SectionInfo{ID: 42, GroupName: "Biology", Identifier: "BIO-1"}}
	params   = mapper.Course(section, "42", "T1")
)

func allLabels() []string {
	out := make([]string, len(Actions))
	for i, a := range Actions {
		out[i] = a.Label()
	}
	return out
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions {
		got, err := ParseAction(a.Label())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
	_, err := ParseAction("delete everything")
	assert.ErrorIs(t, err, ErrUnknownChoice)
	assert.Equal(t, "inspect", Inspect.String())
}

func TestResolve_Overlay(t *testing.T) {
	prompt := &scriptedPrompt{answers: []string{Overlay.Label()}}
	client := &fakeClient{}
	r := &Resolver{Client: client, Prompt: prompt}

	course, action, err := r.Resolve(context.Background(), existing, section, params)
	require.NoError(t, err)
	assert.Equal(t, Overlay, action)
	assert.Same(t, existing, course)
	assert.Empty(t, client.resets)
	assert.Empty(t, client.updates)
	assert.Equal(t, []string{"A course named Biology with sis_course_id 42 already exists in Canvas."}, prompt.messages)
	assert.Equal(t, allLabels(), prompt.choices[0])
}

func TestResolve_Reset(t *testing.T) {
	prompt := &scriptedPrompt{answers: []string{Reset.Label()}}
	client := &fakeClient{}
	r := &Resolver{Client: client, Prompt: prompt}

	course, action, err := r.Resolve(context.Background(), existing, section, params)
	require.NoError(t, err)
	assert.Equal(t, Reset, action)
	assert.Equal(t, []int{7}, client.resets)
	require.Len(t, client.updates, 1)
	assert.Empty(t, client.updates[0].SISCourseID)
	assert.Nil(t, client.updates[0].EnableSISReactivation)
	assert.Equal(t, "Biology", client.updates[0].Name)
	assert.Equal(t, 1007, course.ID)
}

func TestResolve_ResetFailure(t *testing.T) {
	prompt := &scriptedPrompt{answers: []string{Reset.Label()}}
	client := &fakeClient{resetErr: errors.New("forbidden")}
	r := &Resolver{Client: client, Prompt: prompt}

	course, _, err := r.Resolve(context.Background(), existing, section, params)
	assert.Nil(t, course)
	var opErr *canvas.OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Empty(t, client.updates)
}

func TestResolve_Skip(t *testing.T) {
	r := &Resolver{Client: &fakeClient{}, Prompt: &scriptedPrompt{answers: []string{Skip.Label()}}}
	course, action, err := r.Resolve(context.Background(), existing, section, params)
	require.NoError(t, err)
	assert.Equal(t, Skip, action)
	assert.Nil(t, course)
}

func TestResolve_InspectThenDecide(t *testing.T) {
	prompt := &scriptedPrompt{answers: []string{Inspect.Label(), Skip.Label()}}
	opener := &recordingOpener{}
	r := &Resolver{Client: &fakeClient{}, Prompt: prompt, Opener: opener}

	course, action, err := r.Resolve(context.Background(), existing, section, params)
	require.NoError(t, err)
	assert.Equal(t, Skip, action)
	assert.Nil(t, course)
	assert.Equal(t, []string{"https://canvas.example.com/courses/7"}, opener.opened)

	require.Len(t, prompt.messages, 2)
	assert.Equal(t, "How would you like to proceed?", prompt.messages[1])
	assert.Equal(t, []string{Overlay.Label(), Reset.Label(), Skip.Label()}, prompt.choices[1])
}

func TestResolve_InspectOpenFailureStillPrompts(t *testing.T) {
	prompt := &scriptedPrompt{answers: []string{Inspect.Label(), Overlay.Label()}}
	r := &Resolver{Client: &fakeClient{}, Prompt: prompt, Opener: &recordingOpener{err: errors.New("no browser")}}

	_, action, err := r.Resolve(context.Background(), existing, section, params)
	require.NoError(t, err)
	assert.Equal(t, Overlay, action)
}

func TestResolve_InspectOfferedOnce(t *testing.T) {
	prompt := &scriptedPrompt{answers: []string{Inspect.Label(), Inspect.Label()}}
	r := &Resolver{Client: &fakeClient{}, Prompt: prompt, Opener: &recordingOpener{}}

	_, _, err := r.Resolve(context.Background(), existing, section, params)
	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.ErrorIs(t, err, ErrUnknownChoice)
	assert.Len(t, prompt.messages, 2)
}

func TestResolve_Cancelled(t *testing.T) {
	r := &Resolver{Client: &fakeClient{}, Prompt: &scriptedPrompt{err: context.Canceled}}
	course, _, err := r.Resolve(context.Background(), existing, section, params)
	assert.Nil(t, course)
	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, 7, resErr.CourseID)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_UnknownChoice(t *testing.T) {
	r := &Resolver{Client: &fakeClient{}, Prompt: &scriptedPrompt{answers: []string{"burn it down"}}}
	_, _, err := r.Resolve(context.Background(), existing, section, params)
	assert.ErrorIs(t, err, ErrUnknownChoice)
}
