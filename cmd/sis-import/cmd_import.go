package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sisimport/cmd/sis-import/ui"
	"sisimport/internal/browser"
	"sisimport/internal/canvas"
	"sisimport/internal/config"
	"sisimport/internal/duplicate"
	"sisimport/internal/files"
	"sisimport/internal/importer"
	"sisimport/internal/journal"
	"sisimport/internal/logging"
	"sisimport/internal/oneroster"
	"sisimport/internal/snapshot"
)

func lookupPaths(c *config.Config) oneroster.Paths {
	return oneroster.Paths{
		Terms:                  c.Lookups.TermsPath,
		DepartmentAccountMap:   c.Lookups.DepartmentAccountMapPath,
		CoursesWithDepartments: c.Lookups.CoursesWithDepartmentsPath,
	}
}

// loadInputs reads the snapshot batch and the lookup tables. Either failing
// aborts before any section is processed.
func loadInputs(c *config.Config) ([]snapshot.Section, *oneroster.Lookups, error) {
	sections, err := snapshot.Load(c.SnapshotPath)
	if err != nil {
		return nil, nil, err
	}
	lookups, err := oneroster.Load(lookupPaths(c))
	if err != nil {
		return nil, nil, err
	}
	return sections, lookups, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateImport(); err != nil {
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

	client, err := canvas.NewHTTPClient(cfg.Canvas.InstanceURL, cfg.Canvas.AccessToken, cfg.GetCanvasTimeout())
	if err != nil {
		return err
	}

	opener, err := browser.New(cfg.Browser)
	if err != nil {
		return err
	}
	defer opener.Close()

	im := &importer.Importer{
		Client:  client,
		Lookups: lookups,
		Duplicates: &duplicate.Resolver{
			Client: client,
			Prompt: ui.NewSelector(os.Stdin, os.Stderr),
			Opener: opener,
		},
		Files: &files.Resolver{
			Uploader:    client,
			Root:        cfg.SnapshotRoot(),
			Enabled:     cfg.Files,
			Concurrency: cfg.UploadConcurrency,
		},
		Options: importer.Options{IgnoreErrors: cfg.IgnoreErrors, Location: loc},
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		run, err := j.BeginRun(ctx, cfg.SnapshotPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := run.Finish(context.WithoutCancel(ctx)); err != nil {
				logging.JournalWarn("%v", err)
			}
		}()
		im.Journal = run
	}

	logging.Boot("Importing %d sections from %s into %s", len(sections), cfg.SnapshotPath, cfg.Canvas.InstanceURL)
	summary, runErr := im.Run(ctx, sections)
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderMarkdown(summary.Markdown(), 100))
	return runErr
}
