package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sisimport/internal/config"
	"sisimport/internal/logging"
)

var version = "dev"

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

var (
	// Global flags
	configPath   string
	verbose      bool
	logFile      string
	uploadFiles  bool
	noFiles      bool
	ignoreErrors bool
	blackbaudID  string
	canvasURL    string
	termsPath    string
	accountsPath string
	coursesPath  string
	journalPath  string

	// Loaded by PersistentPreRunE
	cfg *config.Config
)

// rootCmd imports a snapshot batch when given a path.
var rootCmd = &cobra.Command{
	Use:   "sis-import [snapshot-path]",
	Short: "Import SIS course snapshots into Canvas",
	Long: `sis-import reads a batch of course-section snapshots exported from the
legacy SIS and rebuilds each section as a Canvas course: the course itself,
one assignment group per assignment type, the assignments, and content pages
built from the section's bulletin board and topics.

Existing courses (matched by sis_course_id) are never touched without asking.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] != "" {
			return nil
		}
		c, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}
		cfg = c

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		return logging.Initialize(logging.Options{
			Level:      level,
			File:       cfg.Logging.File,
			JSONFormat: cfg.Logging.JSON,
			Categories: cfg.Logging.Categories,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runImport,
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the sis-import version",
	Annotations: map[string]string{skipConfig: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "sis-import", version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "sis-import.yaml", "Config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&logFile, "log-file", "", "Also write logs to this rotated file")
	pf.BoolVar(&uploadFiles, "files", true, "Upload file attachments and link them")
	pf.BoolVar(&noFiles, "no-files", false, "Do not upload file attachments")
	pf.BoolVar(&ignoreErrors, "ignore-errors", false, "Log unmatched assignments instead of halting")
	pf.StringVar(&blackbaudID, "blackbaud-instance-id", "", "Legacy SIS instance id")
	pf.StringVar(&canvasURL, "canvas-instance-url", "", "Canvas base URL")
	pf.StringVar(&termsPath, "terms-path", "", "OneRoster terms CSV")
	pf.StringVar(&accountsPath, "department-account-map-path", "", "Department to account CSV")
	pf.StringVar(&coursesPath, "courses-with-departments-path", "", "Course to department CSV")
	pf.StringVar(&journalPath, "journal", "", "SQLite run journal (empty disables)")

	rootCmd.AddCommand(versionCmd, planCmd, historyCmd, configCmd)
}

// loadConfig layers .env, the config file, the environment and changed flags.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	str := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	str("log-file", &c.Logging.File, logFile)
	str("blackbaud-instance-id", &c.Blackbaud.InstanceID, blackbaudID)
	str("canvas-instance-url", &c.Canvas.InstanceURL, canvasURL)
	str("terms-path", &c.Lookups.TermsPath, termsPath)
	str("department-account-map-path", &c.Lookups.DepartmentAccountMapPath, accountsPath)
	str("courses-with-departments-path", &c.Lookups.CoursesWithDepartmentsPath, coursesPath)
	str("journal", &c.Journal.Path, journalPath)

	if flags.Changed("files") {
		c.Files = uploadFiles
	}
	if flags.Changed("no-files") && noFiles {
		c.Files = false
	}
	if flags.Changed("ignore-errors") {
		c.IgnoreErrors = ignoreErrors
	}
	if len(args) > 0 {
		c.SnapshotPath = args[0]
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
