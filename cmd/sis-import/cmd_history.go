package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sisimport/internal/journal"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List journaled runs, or the sections and entities of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.Journal.Path == "" {
		return errors.New("no journal configured (set journal.path or --journal)")
	}
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		runs, err := j.Runs(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}
		for _, r := range runs {
			finished := "unfinished"
			if r.FinishedAt != nil {
				finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
			}
			fmt.Fprintf(out, "%s  %s  %-10s  %d sections, %d failed  %s\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), finished, r.Sections, r.Failed, r.SnapshotPath)
		}
		return nil
	}

	runID := args[0]
	sections, err := j.Sections(ctx, runID)
	if err != nil {
		return err
	}
	if len(sections) == 0 {
		return fmt.Errorf("no sections recorded for run %s", runID)
	}
	for _, s := range sections {
		line := fmt.Sprintf("%-8s %s", s.Outcome, s.Label)
		if s.CourseID != 0 {
			line += fmt.Sprintf(" (course %d)", s.CourseID)
		}
		if s.Error != "" {
			line += ": " + s.Error
		}
		fmt.Fprintln(out, line)
	}

	entities, err := j.Entities(ctx, runID)
	if err != nil {
		return err
	}
	counts := map[journal.EntityKind]int{}
	for _, e := range entities {
		counts[e.Kind]++
	}
	parts := make([]string, 0, 4)
	for _, k := range []journal.EntityKind{journal.EntityCourse, journal.EntityAssignmentGroup, journal.EntityAssignment, journal.EntityPage} {
		parts = append(parts, fmt.Sprintf("%d %s", counts[k], k))
	}
	fmt.Fprintf(out, "Created: %s\n", strings.Join(parts, ", "))
	return nil
}
