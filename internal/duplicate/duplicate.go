// Package duplicate decides what to do with a Canvas course that already
// carries a section's SIS id. The operator picks from a menu; inspecting the
// course opens it and asks again without offering inspection a second time.
package duplicate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"

	"sisimport/internal/canvas"
	"sisimport/internal/logging"
	"sisimport/internal/mapper"
	"sisimport/internal/snapshot"
)

// Action is an operator decision for an existing course.
type Action int

const (
	// Overlay reuses the existing course as is.
	Overlay Action = iota
	// Reset clears the course content and updates it from the snapshot.
	Reset
	// Inspect opens the course in a browser, then asks again.
	Inspect
	// Skip imports nothing for the section.
	Skip
)

// Actions is the menu in display order.
var Actions = []Action{Overlay, Reset, Inspect, Skip}

var labels = map[Action]string{
	Overlay: "overlay existing content with snapshot",
	Reset:   "reset content and replace with snapshot",
	Inspect: "open in browser to examine",
	Skip:    "skip",
}

// Label is the menu text for the action.
func (a Action) Label() string {
	if l, ok := labels[a]; ok {
		return l
	}
	return fmt.Sprintf("action(%d)", int(a))
}

func (a Action) String() string {
	switch a {
	case Overlay:
		return "overlay"
	case Reset:
		return "reset"
	case Inspect:
		return "inspect"
	case Skip:
		return "skip"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ErrUnknownChoice means the prompt returned a label that is not on the menu.
var ErrUnknownChoice = errors.New("unknown choice")

// ParseAction maps a menu label back to its action.
func ParseAction(label string) (Action, error) {
	for a, l := range labels {
		if l == label {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownChoice, label)
}

// Selector asks the operator to pick one of choices.
type Selector interface {
	Select(ctx context.Context, message string, choices []string) (string, error)
}

// Opener shows a URL to the operator.
type Opener interface {
	Open(url string) error
}

// Client is the part of canvas.Client resolution needs.
type Client interface {
	ResetCourseContent(ctx context.Context, course *canvas.Course) (*canvas.Course, error)
	UpdateCourse(ctx context.Context, course *canvas.Course, args canvas.CourseParams) (*canvas.Course, error)
	ResourceURL(path string) *url.URL
}

// ResolutionError reports a cancelled or invalid operator selection.
type ResolutionError struct {
	CourseID int
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve duplicate course %d: %v", e.CourseID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolver runs the duplicate-course menu.
type Resolver struct {
	Client Client
	Prompt Selector
	Opener Opener
}

// Resolve asks the operator how to treat course, an existing course matching
// section. params are the freshly mapped creation arguments for the section.
// A nil course with a nil error means the section is skipped.
func (r *Resolver) Resolve(ctx context.Context, course *canvas.Course, section snapshot.Section, params canvas.CourseParams) (*canvas.Course, Action, error) {
	remaining := slices.Clone(Actions)
	message := fmt.Sprintf("A course named %s with sis_course_id %s already exists in Canvas.", course.Name, course.SISCourseID)

	for {
		choices := make([]string, len(remaining))
		for i, a := range remaining {
			choices[i] = a.Label()
		}
		choice, err := r.Prompt.Select(ctx, message, choices)
		if err != nil {
			return nil, 0, &ResolutionError{CourseID: course.ID, Err: err}
		}
		action, err := ParseAction(choice)
		if err != nil || !slices.Contains(remaining, action) {
			return nil, 0, &ResolutionError{CourseID: course.ID, Err: fmt.Errorf("%w: %q", ErrUnknownChoice, choice)}
		}
		logging.DuplicateDebug("section %s: operator chose %s for course %d", section.Label(), action, course.ID)

		switch action {
		case Overlay:
			logging.Duplicate("overlaying snapshot onto course %d", course.ID)
			return course, Overlay, nil

		case Reset:
			reset, err := r.Client.ResetCourseContent(ctx, course)
			if err != nil {
				return nil, Reset, err
			}
			updated, err := r.Client.UpdateCourse(ctx, reset, mapper.ForUpdate(params))
			if err != nil {
				return nil, Reset, err
			}
			logging.Duplicate("reset course %d and replaced it as course %d", course.ID, updated.ID)
			return updated, Reset, nil

		case Inspect:
			target := r.Client.ResourceURL(fmt.Sprintf("/courses/%d", course.ID)).String()
			if r.Opener == nil {
				logging.Duplicate("inspect course at %s", target)
			} else if err := r.Opener.Open(target); err != nil {
				logging.DuplicateWarn("could not open %s: %v", target, err)
			}
			remaining = slices.DeleteFunc(remaining, func(a Action) bool { return a == Inspect })
			message = "How would you like to proceed?"

		case Skip:
			logging.Duplicate("skipping section %s (course %d exists)", section.Label(), course.ID)
			return nil, Skip, nil
		}
	}
}
