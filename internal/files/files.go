// Package files resolves snapshot download items to local files, uploads them
// into the target course and renders the inline Canvas file links.
package files

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"sisimport/internal/canvas"
	"sisimport/internal/logging"
	"sisimport/internal/snapshot"
)

const (
	// FolderPath is the course folder uploaded files are placed in.
	FolderPath = "snapshot"
	// OnDuplicate keeps both copies when a file of the same name exists.
	OnDuplicate = "rename"

	defaultConcurrency = 4
)

// ErrNoLocalPath means the snapshot tool recorded no local copy of the item.
var ErrNoLocalPath = errors.New("no local path")

// Uploader is the file transport. canvas.Client satisfies it.
type Uploader interface {
	UploadFile(ctx context.Context, course *canvas.Course, localPath string, args canvas.FileParams) (*canvas.File, error)
}

// ResolutionError reports a download item that could not be resolved or uploaded.
// It is never downgraded by ignore-errors handling.
type ResolutionError struct {
	Item string
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("file %q (%s): %v", e.Item, e.Path, e.Err)
	}
	return fmt.Sprintf("file %q: %v", e.Item, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Ref identifies an uploaded file well enough to link it inline.
type Ref struct {
	ID       int
	Filename string
	Label    string
	CourseID int
}

// Link returns the inline Canvas file link for the ref.
func (r Ref) Link() string {
	return fmt.Sprintf(
		`<a class="instructure_file_link inline_disabled" title="%[1]s" href="/courses/%[2]d/files/%[3]d?wrap=1" target="_blank" rel="noopener" data-api-endpoint="/api/v1/courses/%[2]d/files/%[3]d" data-api-returntype="File">%[1]s</a>`,
		r.Filename, r.CourseID, r.ID,
	)
}

// ResolvedBlock is a page body block whose downloads have been uploaded.
// Files is aligned with Block.Downloads, or nil when file handling is disabled.
type ResolvedBlock struct {
	snapshot.Block
	Files []Ref
}

// Resolver uploads snapshot files. Root is the directory the snapshot's local
// paths are relative to.
type Resolver struct {
	Uploader    Uploader
	Root        string
	Enabled     bool
	Concurrency int
}

func itemName(item snapshot.DownloadItem) string {
	switch {
	case item.FriendlyFileName != "":
		return item.FriendlyFileName
	case item.DownloadURL.LocalPath != "":
		return filepath.Base(item.DownloadURL.LocalPath)
	default:
		return item.DownloadURL.URL
	}
}

// Path returns the absolute local path of item under Root.
func (r *Resolver) Path(item snapshot.DownloadItem) (string, error) {
	local := item.DownloadURL.LocalPath
	if local == "" {
		return "", &ResolutionError{Item: itemName(item), Err: ErrNoLocalPath}
	}
	path := filepath.Join(r.Root, filepath.FromSlash(strings.TrimPrefix(local, "/")))
	info, err := os.Stat(path)
	if err != nil {
		return "", &ResolutionError{Item: itemName(item), Path: path, Err: err}
	}
	if info.IsDir() {
		return "", &ResolutionError{Item: itemName(item), Path: path, Err: errors.New("is a directory")}
	}
	return path, nil
}

// Upload resolves and uploads items concurrently and returns one Ref per item
// in input order. A disabled resolver uploads nothing and returns nil.
func (r *Resolver) Upload(ctx context.Context, course *canvas.Course, items []snapshot.DownloadItem) ([]Ref, error) {
	if !r.Enabled || len(items) == 0 {
		return nil, nil
	}

	// Resolve everything first so a missing file uploads nothing.
	paths := make([]string, len(items))
	for i, item := range items {
		path, err := r.Path(item)
		if err != nil {
			return nil, err
		}
		paths[i] = path
	}

	limit := r.Concurrency
	if limit < 1 {
		limit = defaultConcurrency
	}
	refs := make([]Ref, len(items))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, item := range items {
		eg.Go(func() error {
			name := itemName(item)
			file, err := r.Uploader.UploadFile(egCtx, course, paths[i], canvas.FileParams{
				Name:             name,
				ParentFolderPath: FolderPath,
				OnDuplicate:      OnDuplicate,
			})
			if err != nil {
				return &ResolutionError{Item: name, Path: paths[i], Err: err}
			}
			filename := file.DisplayName
			if filename == "" {
				filename = name
			}
			refs[i] = Ref{ID: file.ID, Filename: filename, Label: item.ShortDescription, CourseID: course.ID}
			logging.FilesDebug("uploaded %s as file %d", paths[i], file.ID)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logging.FilesError("upload into course %d failed: %v", course.ID, err)
		return nil, err
	}
	logging.Files("uploaded %d files into course %d", len(refs), course.ID)
	return refs, nil
}

// ResolveBlocks uploads the downloads of every block at once and attaches the
// refs to their blocks.
func (r *Resolver) ResolveBlocks(ctx context.Context, course *canvas.Course, blocks []snapshot.Block) ([]ResolvedBlock, error) {
	var all []snapshot.DownloadItem
	for _, b := range blocks {
		all = append(all, b.Downloads...)
	}
	refs, err := r.Upload(ctx, course, all)
	if err != nil {
		return nil, err
	}

	resolved := make([]ResolvedBlock, len(blocks))
	offset := 0
	for i, b := range blocks {
		resolved[i] = ResolvedBlock{Block: b}
		if refs != nil && len(b.Downloads) > 0 {
			resolved[i].Files = refs[offset : offset+len(b.Downloads)]
		}
		offset += len(b.Downloads)
	}
	return resolved, nil
}
