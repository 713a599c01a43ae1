package hydrate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"sisimport/internal/logging"
	"sisimport/internal/snapshot"
)

func ptr[T any](v T) *T { return &v }

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })
	return logs
}

func testSection() snapshot.Section {
	return snapshot.Section{
		SectionInfo: snapshot.SectionInfo{ID: 101, GroupName: "Biology"},
		Assignments: []snapshot.RosterAssignment{
			{ID: 1, ShortDescription: "Lab report", DueDate: "2024-03-10T09:00:00", Type: "Lab", ExtraCredit: ptr(true), IncCumGrade: ptr(false)},
			{ID: 2, ShortDescription: "Reading", DueDate: "2024-03-01T09:00:00", Type: "Homework"},
			{ID: 3, ShortDescription: "Quiz", DueDate: "2024-03-05T09:00:00", Type: "Homework", MaxPoints: ptr(10.0)},
		},
		Gradebook: []snapshot.MarkingPeriod{
			{MarkingPeriodID: 1, Gradebook: snapshot.Gradebook{Assignments: []snapshot.GradebookAssignment{
				{AssignmentID: 3, MaxPoints: ptr(25.0), PublishInd: ptr(true)},
				{AssignmentID: 2},
			}}},
			{MarkingPeriodID: 2, Gradebook: snapshot.Gradebook{Assignments: []snapshot.GradebookAssignment{
				{AssignmentID: 3, MaxPoints: ptr(99.0)},
				{AssignmentID: 1, AssignmentType: ptr("Lab Work"), ShortDescription: ptr("Lab report (final)")},
			}}},
		},
	}
}

func TestHydrate_SortsByDueDate(t *testing.T) {
	got, err := Hydrate(testSection(), Options{Location: time.UTC})
	require.NoError(t, err)
	require.Len(t, got, 3)

	ids := []int{got[0].ID, got[1].ID, got[2].ID}
	assert.Equal(t, []int{2, 3, 1}, ids)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Due.Before(got[i-1].Due))
	}
}

func TestHydrate_FirstMatchWins(t *testing.T) {
	got, err := Hydrate(testSection(), Options{Location: time.UTC})
	require.NoError(t, err)

	quiz := got[1]
	require.Equal(t, 3, quiz.ID)
	assert.True(t, quiz.Matched)
	assert.Equal(t, 1, quiz.MarkingPeriodID)
	require.NotNil(t, quiz.MaxPoints)
	assert.Equal(t, 25.0, *quiz.MaxPoints)
	assert.True(t, quiz.PublishInd)
}

func TestHydrate_OverlayAndClearedFlags(t *testing.T) {
	got, err := Hydrate(testSection(), Options{Location: time.UTC})
	require.NoError(t, err)

	lab := got[2]
	assert.Equal(t, "Lab report (final)", lab.ShortDescription)
	assert.Equal(t, "Lab Work", lab.Type)
	assert.Equal(t, 2, lab.MarkingPeriodID)
	for _, a := range got {
		assert.Nil(t, a.ExtraCredit, "assignment %d", a.ID)
		assert.Nil(t, a.IncCumGrade, "assignment %d", a.ID)
	}

	reading := got[0]
	assert.Equal(t, "Reading", reading.ShortDescription)
	assert.Equal(t, "Homework", reading.Type)
	assert.Nil(t, reading.MaxPoints)
}

func TestHydrate_DoesNotMutateInput(t *testing.T) {
	section := testSection()
	_, err := Hydrate(section, Options{Location: time.UTC})
	require.NoError(t, err)
	require.NotNil(t, section.Assignments[0].ExtraCredit)
	assert.Equal(t, "Lab report", section.Assignments[0].ShortDescription)
}

func TestHydrate_OverlayDueDateReorders(t *testing.T) {
	section := testSection()
	section.Gradebook[0].Gradebook.Assignments[1].DueDate = ptr("2024-04-01T09:00:00")

	got, err := Hydrate(section, Options{Location: time.UTC})
	require.NoError(t, err)
	assert.Equal(t, 2, got[2].ID)
}

func TestHydrate_StableForEqualDates(t *testing.T) {
	section := snapshot.Section{SectionInfo: snapshot.SectionInfo{ID: 7}}
	for id := 1; id <= 5; id++ {
		section.Assignments = append(section.Assignments, snapshot.RosterAssignment{ID: id, DueDate: "2024-01-01"})
		section.Gradebook = append(section.Gradebook, snapshot.MarkingPeriod{
			Gradebook: snapshot.Gradebook{Assignments: []snapshot.GradebookAssignment{{AssignmentID: id}}},
		})
	}

	got, err := Hydrate(section, Options{})
	require.NoError(t, err)
	for i, a := range got {
		assert.Equal(t, i+1, a.ID)
	}
}

func TestHydrate_Unmatched(t *testing.T) {
	section := testSection()
	section.Assignments = append(section.Assignments, snapshot.RosterAssignment{
		ID: 9, ShortDescription: "Orphan", DueDate: "2024-02-01", ExtraCredit: ptr(true),
	})

	t.Run("fatal", func(t *testing.T) {
		_, err := Hydrate(section, Options{Location: time.UTC})
		var unmatched *UnmatchedAssignmentError
		require.True(t, errors.As(err, &unmatched))
		assert.Equal(t, 9, unmatched.AssignmentID)
		assert.Equal(t, 101, unmatched.SectionID)
		assert.ErrorIs(t, err, ErrUnmatched)
	})

	t.Run("ignored", func(t *testing.T) {
		logs := observe(t)
		got, err := Hydrate(section, Options{IgnoreErrors: true, Location: time.UTC})
		require.NoError(t, err)
		require.Len(t, got, 4)

		orphan := got[0]
		assert.Equal(t, 9, orphan.ID)
		assert.False(t, orphan.Matched)
		assert.Nil(t, orphan.ExtraCredit)
		assert.Nil(t, orphan.IncCumGrade)

		warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
		require.Len(t, warnings, 1)
		assert.Equal(t, "hydrate", warnings[0].LoggerName)
		assert.Contains(t, warnings[0].Message, "Orphan")
	})
}

func TestHydrate_InvalidDueDate(t *testing.T) {
	section := testSection()
	section.Assignments[1].DueDate = "someday"

	_, err := Hydrate(section, Options{Location: time.UTC})
	var invalid *InvalidAssignmentError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 2, invalid.AssignmentID)

	logs := observe(t)
	got, err := Hydrate(section, Options{IgnoreErrors: true, Location: time.UTC})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestTypes(t *testing.T) {
	assignments := []Assignment{
		{RosterAssignment: snapshot.RosterAssignment{Type: "Homework"}},
		{RosterAssignment: snapshot.RosterAssignment{Type: ""}},
		{RosterAssignment: snapshot.RosterAssignment{Type: "Lab"}},
		{RosterAssignment: snapshot.RosterAssignment{Type: "Homework"}},
	}
	assert.Equal(t, []string{"Homework", "Lab"}, Types(assignments))
	assert.Nil(t, Types(nil))
}
