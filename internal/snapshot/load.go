package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"sisimport/internal/logging"
)

// ErrNotAList is returned (wrapped in LoadError) when the batch is not a JSON array.
var ErrNotAList = errors.New("snapshot batch is not a list of sections")

// LoadError reports an unreadable or malformed snapshot batch.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load snapshot %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads a snapshot batch: a JSON array of sections.
func Load(path string) ([]Section, error) {
	timer := logging.StartTimer(logging.CategorySnapshot, "Load")
	defer timer.Stop()

	if path == "" {
		return nil, &LoadError{Path: path, Err: errors.New("no snapshot path given")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &LoadError{Path: path, Err: ErrNotAList}
	}

	var sections []Section
	if err := json.Unmarshal(trimmed, &sections); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	logging.Snapshot("Loaded %d section snapshot(s) from %s", len(sections), path)
	return sections, nil
}
