package oneroster

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sisimport/internal/snapshot"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func fixture(t *testing.T) Paths {
	dir := t.TempDir()
	return Paths{
		Terms: writeCSV(t, dir, "terms.csv", "\ufeffsourcedId,title,type,schoolYear\n"+
			"T-FY-26,Full Year,schoolYear,2025 - 2026\n"+
			"T-S1-26,Semester 1,semester,2025 - 2026\n"),
		DepartmentAccountMap: writeCSV(t, dir, "accounts.csv", "Department,Account_ID\n"+
			"Mathematics,104\n"+
			"Science,105\n"),
		CoursesWithDepartments: writeCSV(t, dir, "courses.csv", "course,department\n"+
			"Algebra II,Mathematics\n"+
			"Chemistry,Science\n"+
			"Orphan,Nowhere\n"),
	}
}

func section(name, duration, year string) snapshot.Section {
	return snapshot.Section{SectionInfo: snapshot.SectionInfo{ID: 9001, GroupName: name, Duration: duration, SchoolYear: year}}
}

func TestLookups(t *testing.T) {
	l, err := Load(fixture(t))
	require.NoError(t, err)

	s := section("algebra ii", "Full Year", "2025-2026")
	assert.Equal(t, "9001", l.SISCourseID(s))
	assert.Equal(t, "T-FY-26", l.TermID(s))

	id, err := l.AccountID(s)
	require.NoError(t, err)
	assert.Equal(t, 104, id)
}

func TestLookups_Misses(t *testing.T) {
	l, err := Load(fixture(t))
	require.NoError(t, err)

	assert.Equal(t, "", l.TermID(section("Chemistry", "Trimester 3", "2025 - 2026")))

	_, err = l.AccountID(section("Underwater Basket Weaving", "", ""))
	var le *LookupError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "department", le.Kind)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.AccountID(section("Orphan", "", ""))
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "account", le.Kind)
	assert.Equal(t, "Nowhere", le.Key)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		p := fixture(t)
		p.Terms = filepath.Join(t.TempDir(), "missing.csv")
		_, err := Load(p)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("missing column", func(t *testing.T) {
		p := fixture(t)
		p.DepartmentAccountMap = writeCSV(t, t.TempDir(), "a.csv", "department,canvas\nMath,1\n")
		_, err := Load(p)
		assert.ErrorContains(t, err, `missing column "account_id"`)
	})

	t.Run("bad account id", func(t *testing.T) {
		p := fixture(t)
		p.DepartmentAccountMap = writeCSV(t, t.TempDir(), "a.csv", "department,account_id\nMath,one\n")
		_, err := Load(p)
		assert.ErrorContains(t, err, "line 2")
	})
}
