package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sisimport/internal/logging"
)

const maxErrorBody = 512

// HTTPClient talks to a Canvas instance over its REST API with a bearer token.
type HTTPClient struct {
	base   *url.URL
	token  string
	http   *http.Client
	upload *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for instanceURL. A zero timeout means none.
func NewHTTPClient(instanceURL, token string, timeout time.Duration) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(instanceURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid canvas instance url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid canvas instance url %q", instanceURL)
	}
	return &HTTPClient{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: timeout},
		// Upload targets may redirect to the confirm endpoint, which needs the token.
		upload: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// ResourceURL resolves path against the instance URL.
func (c *HTTPClient) ResourceURL(path string) *url.URL {
	return c.base.ResolveReference(&url.URL{Path: path})
}

func (c *HTTPClient) apiURL(format string, args ...any) string {
	return c.ResourceURL("/api/v1" + fmt.Sprintf(format, args...)).String()
}

// FindCourse looks the course up by SIS id.
func (c *HTTPClient) FindCourse(ctx context.Context, sisCourseID string) (*Course, error) {
	var course Course
	err := c.do(ctx, http.MethodGet, c.apiURL("/courses/sis_course_id:%s", sisCourseID), nil, &course)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &OperationError{Op: "find course", Err: err}
	}
	return &course, nil
}

// CreateCourse creates a course under accountID.
func (c *HTTPClient) CreateCourse(ctx context.Context, accountID int, args CourseParams) (*Course, error) {
	var course Course
	if err := c.do(ctx, http.MethodPost, c.apiURL("/accounts/%d/courses", accountID), args, &course); err != nil {
		return nil, &OperationError{Op: "create course", Err: err}
	}
	return &course, nil
}

func (c *HTTPClient) UpdateCourse(ctx context.Context, course *Course, args CourseParams) (*Course, error) {
	var updated Course
	if err := c.do(ctx, http.MethodPut, c.apiURL("/courses/%d", course.ID), args, &updated); err != nil {
		return nil, &OperationError{Op: "update course", CourseID: course.ID, Err: err}
	}
	return &updated, nil
}

// ResetCourseContent discards all course content. Canvas answers with the
// replacement course, which keeps the SIS id but has a new Canvas id.
func (c *HTTPClient) ResetCourseContent(ctx context.Context, course *Course) (*Course, error) {
	var reset Course
	if err := c.do(ctx, http.MethodPost, c.apiURL("/courses/%d/reset_content", course.ID), nil, &reset); err != nil {
		return nil, &OperationError{Op: "reset course content", CourseID: course.ID, Err: err}
	}
	return &reset, nil
}

func (c *HTTPClient) CreateAssignmentGroup(ctx context.Context, course *Course, args AssignmentGroupParams) (*AssignmentGroup, error) {
	var group AssignmentGroup
	if err := c.do(ctx, http.MethodPost, c.apiURL("/courses/%d/assignment_groups", course.ID), args, &group); err != nil {
		return nil, &OperationError{Op: "create assignment group", CourseID: course.ID, Err: err}
	}
	return &group, nil
}

func (c *HTTPClient) CreateAssignment(ctx context.Context, course *Course, args AssignmentParams) (*Assignment, error) {
	var assignment Assignment
	if err := c.do(ctx, http.MethodPost, c.apiURL("/courses/%d/assignments", course.ID), args, &assignment); err != nil {
		return nil, &OperationError{Op: "create assignment", CourseID: course.ID, Err: err}
	}
	return &assignment, nil
}

func (c *HTTPClient) CreatePage(ctx context.Context, course *Course, args PageParams) (*Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodPost, c.apiURL("/courses/%d/pages", course.ID), args, &page); err != nil {
		return nil, &OperationError{Op: "create page", CourseID: course.ID, Err: err}
	}
	return &page, nil
}

type uploadTarget struct {
	UploadURL    string            `json:"upload_url"`
	UploadParams map[string]string `json:"upload_params"`
}

// UploadFile runs the Canvas upload flow: announce the file, post the bytes
// to the returned target, then follow the confirmation redirect if any.
func (c *HTTPClient) UploadFile(ctx context.Context, course *Course, localPath string, args FileParams) (*File, error) {
	opErr := func(err error) error {
		return &OperationError{Op: "upload file", CourseID: course.ID, Err: err}
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return nil, opErr(err)
	}
	if args.Name == "" {
		args.Name = filepath.Base(localPath)
	}
	args.Size = int64(len(content))
	if args.ContentType == "" {
		args.ContentType = mime.TypeByExtension(filepath.Ext(localPath))
		if args.ContentType == "" {
			args.ContentType = "application/octet-stream"
		}
	}

	var target uploadTarget
	if err := c.do(ctx, http.MethodPost, c.apiURL("/courses/%d/files", course.ID), args, &target); err != nil {
		return nil, opErr(fmt.Errorf("announce: %w", err))
	}
	if target.UploadURL == "" {
		return nil, opErr(errors.New("announce: no upload_url in response"))
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for key, value := range target.UploadParams {
		if err := form.WriteField(key, value); err != nil {
			return nil, opErr(err)
		}
	}
	part, err := form.CreateFormFile("file", args.Name)
	if err != nil {
		return nil, opErr(err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, opErr(err)
	}
	if err := form.Close(); err != nil {
		return nil, opErr(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.UploadURL, &body)
	if err != nil {
		return nil, opErr(err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := c.upload.Do(req)
	if err != nil {
		return nil, opErr(fmt.Errorf("upload: %w", err))
	}
	defer resp.Body.Close()

	var file File
	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		location, err := resp.Location()
		if err != nil {
			return nil, opErr(fmt.Errorf("upload: redirect: %w", err))
		}
		if err := c.do(ctx, http.MethodGet, location.String(), nil, &file); err != nil {
			return nil, opErr(fmt.Errorf("confirm: %w", err))
		}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
			return nil, opErr(fmt.Errorf("upload: decode response: %w", err))
		}
	default:
		return nil, opErr(fmt.Errorf("upload: %w", readAPIError(resp)))
	}
	logging.CanvasDebug("uploaded %s as file %d in course %d", localPath, file.ID, course.ID)
	return &file, nil
}

func (c *HTTPClient) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	timer := logging.StartTimer(logging.CategoryCanvas, method+" "+req.URL.Path)
	resp, err := c.http.Do(req)
	timer.StopWithThreshold(5 * time.Second)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, req.URL.Path, err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Method: resp.Request.Method,
		URL:    resp.Request.URL.Redacted(),
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(snippet)),
	}
}
