package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sisimport/cmd/sis-import/ui"
	"sisimport/internal/files"
	"sisimport/internal/importer"
)

var planRaw bool

var planCmd = &cobra.Command{
	Use:   "plan [snapshot-path]",
	Short: "Show what an import would create, without calling Canvas",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planRaw, "raw", false, "Print markdown instead of rendering it")
}

func runPlan(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	sections, lookups, err := loadInputs(cfg)
	if err != nil {
		return err
	}

	im := &importer.Importer{
		Lookups: lookups,
		Files:   &files.Resolver{Root: cfg.SnapshotRoot(), Enabled: cfg.Files},
		Options: importer.Options{IgnoreErrors: cfg.IgnoreErrors, Location: loc},
	}
	plans := im.Plan(sections)

	md := importer.PlanMarkdown(plans)
	if planRaw {
		fmt.Fprint(cmd.OutOrStdout(), md)
	} else {
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderMarkdown(md, 100))
	}

	failed := 0
	for _, p := range plans {
		if p.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sections cannot be imported", failed, len(plans))
	}
	return nil
}
