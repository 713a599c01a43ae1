package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sisimport/internal/config"
	"sisimport/internal/journal"
)

const snapshotBatch = `[
  {
    "SectionInfo": {"Id": 101, "GroupName": "Algebra II", "Identifier": "B", "Duration": "Full Year", "SchoolYear": "2025 - 2026"},
    "Assignments": [
      {"id": 1, "ShortDescription": "Problem Set 1", "DueDate": "2025-09-10T00:00:00", "type": "Homework"}
    ],
    "Gradebook": [
      {"MarkingPeriodId": 7, "gradebook": {"Assignments": [{"AssignmentId": 1, "MaxPoints": 20}]}}
    ]
  }
]`

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	if !slices.Contains(args, "--config") {
		args = append(args, "--config", filepath.Join(t.TempDir(), "none.yaml"))
	}
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "sis-import dev\n", out)
}

func TestPlanCmd(t *testing.T) {
	dir := t.TempDir()
	snap := write(t, dir, "snapshot.json", snapshotBatch)
	terms := write(t, dir, "terms.csv", "sourcedId,title,type,schoolYear\nT-FY-26,Full Year,schoolYear,2025 - 2026\n")
	accounts := write(t, dir, "accounts.csv", "Department,Account_ID\nMathematics,104\n")
	courses := write(t, dir, "courses.csv", "course,department\nAlgebra II,Mathematics\n")

	out, err := execute(t, "plan", snap, "--raw", "--no-files",
		"--terms-path", terms,
		"--department-account-map-path", accounts,
		"--courses-with-departments-path", courses)
	require.NoError(t, err)

	assert.Contains(t, out, "# Import plan")
	assert.Contains(t, out, "## Algebra II (B)")
	assert.Contains(t, out, "- Account: 104")
	assert.Contains(t, out, "`sis_term_id:T-FY-26`")
	assert.Contains(t, out, "Problem Set 1")
	assert.False(t, cfg.Files)
	assert.Equal(t, snap, cfg.SnapshotPath)
}

func TestPlanCmd_MissingLookups(t *testing.T) {
	snap := write(t, t.TempDir(), "snapshot.json", snapshotBatch)
	missing := filepath.Join(t.TempDir(), "missing.csv")

	_, err := execute(t, "plan", snap, "--raw",
		"--terms-path", missing,
		"--department-account-map-path", missing,
		"--courses-with-departments-path", missing)
	require.Error(t, err)
}

func TestHistoryCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	out, err := execute(t, "history", "--journal", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	ctx := context.Background()
	j, err := journal.Open(path)
	require.NoError(t, err)
	run, err := j.BeginRun(ctx, "/data/snapshot.json")
	require.NoError(t, err)
	require.NoError(t, run.Entity(ctx, 101, journal.EntityCourse, 11, "Algebra II"))
	require.NoError(t, run.Section(ctx, journal.SectionRecord{SectionID: 101, Label: "Algebra II (B)", Outcome: journal.OutcomeCreated, CourseID: 11}))
	require.NoError(t, run.Finish(ctx))
	require.NoError(t, j.Close())

	out, err = execute(t, "history", "--journal", path)
	require.NoError(t, err)
	assert.Contains(t, out, run.ID)
	assert.Contains(t, out, "1 sections, 0 failed")

	out, err = execute(t, "history", run.ID, "--journal", path)
	require.NoError(t, err)
	assert.Contains(t, out, "created  Algebra II (B) (course 11)")
	assert.Contains(t, out, "Created: 1 course, 0 assignment_group, 0 assignment, 0 page")
}

func TestConfigInitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "sis-import.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default config to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "upload_concurrency: 4")
	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.UploadConcurrency)
	assert.Equal(t, "system", loaded.Browser.Mode)

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)
	configForce = false
}
