// Package snapshot holds the legacy SIS export model: one Section per course
// section, each carrying its assignment roster, per-marking-period gradebook,
// and supplementary topic/bulletin board content.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Section is one course section's worth of roster and gradebook data.
type Section struct {
	SectionInfo   SectionInfo        `json:"SectionInfo"`
	Assignments   []RosterAssignment `json:"Assignments"`
	Gradebook     []MarkingPeriod    `json:"Gradebook"`
	Topics        []Topic            `json:"Topics,omitempty"`
	BulletinBoard []Block            `json:"BulletinBoard,omitempty"`
}

// SectionInfo identifies the section in the legacy SIS.
type SectionInfo struct {
	ID         int    `json:"Id"`
	GroupName  string `json:"GroupName"`
	Identifier string `json:"Identifier,omitempty"`
	Teacher    string `json:"Teacher,omitempty"`
	Duration   string `json:"Duration,omitempty"`
	SchoolYear string `json:"SchoolYear,omitempty"`
}

// Label returns a human-readable name for logs and prompts.
func (s Section) Label() string {
	if s.SectionInfo.Identifier != "" {
		return fmt.Sprintf("%s (%s)", s.SectionInfo.GroupName, s.SectionInfo.Identifier)
	}
	return s.SectionInfo.GroupName
}

// RosterAssignment is the authoritative assignment record from the section roster.
type RosterAssignment struct {
	ID                int            `json:"id"`
	ShortDescription  string         `json:"ShortDescription"`
	LongDescription   string         `json:"LongDescription,omitempty"`
	DueDate           string         `json:"DueDate"`
	Type              string         `json:"type,omitempty"`
	MaxPoints         *float64       `json:"MaxPoints,omitempty"`
	PublishInd        bool           `json:"PublishInd"`
	OnPaperSubmission bool           `json:"OnPaperSubmission,omitempty"`
	DropboxInd        bool           `json:"DropboxInd,omitempty"`
	ExtraCredit       *bool          `json:"ExtraCredit,omitempty"`
	IncCumGrade       *bool          `json:"IncCumGrade,omitempty"`
	LinkItems         []LinkItem     `json:"LinkItems,omitempty"`
	DownloadItems     []DownloadItem `json:"DownloadItems,omitempty"`
}

// MarkingPeriod groups the gradebook entries of one grading period.
type MarkingPeriod struct {
	MarkingPeriodID   int       `json:"MarkingPeriodId"`
	MarkingPeriodName string    `json:"MarkingPeriodName,omitempty"`
	Gradebook         Gradebook `json:"gradebook"`
}

// Gradebook is the assignment list of one marking period.
type Gradebook struct {
	Assignments []GradebookAssignment `json:"Assignments"`
}

// GradebookAssignment carries per-marking-period overrides keyed by the
// roster assignment id. Nil fields are not present in the gradebook export.
type GradebookAssignment struct {
	AssignmentID     int      `json:"AssignmentId"`
	ShortDescription *string  `json:"ShortDescription,omitempty"`
	DueDate          *string  `json:"DueDate,omitempty"`
	AssignmentType   *string  `json:"AssignmentType,omitempty"`
	MaxPoints        *float64 `json:"MaxPoints,omitempty"`
	PublishInd       *bool    `json:"PublishInd,omitempty"`
}

// LinkItem is an external link attached to an assignment or block.
type LinkItem struct {
	ShortDescription string `json:"ShortDescription"`
	URL              string `json:"UrlDisplay"`
}

// DownloadItem is a downloadable file attached to an assignment or block.
type DownloadItem struct {
	ShortDescription string       `json:"ShortDescription,omitempty"`
	FriendlyFileName string       `json:"FriendlyFileName,omitempty"`
	DownloadURL      AnnotatedURL `json:"DownloadUrl"`
}

// AnnotatedURL is a remote URL that the snapshot tool downloaded, annotated
// with the local copy's path relative to the snapshot root.
type AnnotatedURL struct {
	URL       string `json:"url,omitempty"`
	LocalPath string `json:"localPath,omitempty"`
}

// UnmarshalJSON accepts both the annotated object and a bare URL string
// (files the snapshot tool did not download).
func (u *AnnotatedURL) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("download url: %w", err)
		}
		*u = AnnotatedURL{URL: s}
		return nil
	}
	type plain AnnotatedURL
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = AnnotatedURL(p)
	return nil
}

// Topic is a supplementary content page.
type Topic struct {
	Name    string  `json:"Name"`
	Layout  int     `json:"LayoutId,omitempty"`
	Content []Block `json:"Content,omitempty"`
}

// Block is one ordered piece of page body content.
type Block struct {
	Kind      string         `json:"ContentType,omitempty"`
	Title     string         `json:"Title,omitempty"`
	HTML      string         `json:"Html,omitempty"`
	Links     []LinkItem     `json:"Links,omitempty"`
	Downloads []DownloadItem `json:"Downloads,omitempty"`
}
