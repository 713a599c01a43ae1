// Package logging provides categorized logging for sis-import backed by zap.
// Console output goes to stderr; an optional log file is rotated by lumberjack.
// Categories can be switched off individually from the config file.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, configuration
	CategorySnapshot  Category = "snapshot"  // Snapshot batch loading
	CategoryRoster    Category = "oneroster" // CSV lookups (terms, departments, accounts)
	CategoryHydrate   Category = "hydrate"   // Roster + gradebook merge
	CategoryMapper    Category = "mapper"    // Canvas argument building
	CategoryFiles     Category = "files"     // Local file resolution and upload
	CategoryCanvas    Category = "canvas"    // Canvas API calls
	CategoryDuplicate Category = "duplicate" // Duplicate course resolution
	CategoryImport    Category = "import"    // Section orchestration
	CategoryJournal   Category = "journal"   // Run journal persistence
)

// Options configures the logging backend.
type Options struct {
	Level      string          // debug, info, warn, error
	File       string          // optional rotated log file
	JSONFormat bool            // JSON encoding for the log file
	Categories map[string]bool // nil = all enabled
	Console    io.Writer       // defaults to os.Stderr
}

// Logger writes printf-style messages for one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
	rotator    *lumberjack.Logger
)

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Initialize builds the zap core from opts and installs it.
// Should be called once at startup, before any section is processed.
func Initialize(opts Options) error {
	level := parseLevel(opts.Level)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(console), level),
	}

	var rot *lumberjack.Logger
	if opts.File != "" {
		rot = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		var enc zapcore.Encoder
		if opts.JSONFormat {
			enc = zapcore.NewJSONEncoder(fileCfg)
		} else {
			enc = zapcore.NewConsoleEncoder(fileCfg)
		}
		// The file always records debug output so a failed run can be replayed.
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rot), zapcore.DebugLevel))
	}

	install(zap.New(zapcore.NewTee(cores...)), opts.Categories, rot)
	Get(CategoryBoot).Debug("logging initialized (level=%s, file=%q, json=%v)", level, opts.File, opts.JSONFormat)
	return nil
}

// SetLogger replaces the backing zap logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	install(l, nil, nil)
}

func install(l *zap.Logger, cats map[string]bool, rot *lumberjack.Logger) {
	mu.Lock()
	defer mu.Unlock()
	_ = base.Sync()
	if rotator != nil {
		_ = rotator.Close()
	}
	base = l
	categories = cats
	rotator = rot
	loggers = make(map[Category]*Logger)
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true // Enable by default if not specified
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	var l *Logger
	if categoryEnabledLocked(category) {
		l = &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	} else {
		l = &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a logger that attaches the given key-value pairs to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Sync flushes buffered entries and closes the rotated log file (call at shutdown).
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	_ = base.Sync()
	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func Snapshot(format string, args ...interface{})      { Get(CategorySnapshot).Info(format, args...) }
func SnapshotDebug(format string, args ...interface{}) { Get(CategorySnapshot).Debug(format, args...) }

func Roster(format string, args ...interface{})      { Get(CategoryRoster).Info(format, args...) }
func RosterDebug(format string, args ...interface{}) { Get(CategoryRoster).Debug(format, args...) }
func RosterWarn(format string, args ...interface{})  { Get(CategoryRoster).Warn(format, args...) }

func Hydrate(format string, args ...interface{})      { Get(CategoryHydrate).Info(format, args...) }
func HydrateDebug(format string, args ...interface{}) { Get(CategoryHydrate).Debug(format, args...) }
func HydrateWarn(format string, args ...interface{})  { Get(CategoryHydrate).Warn(format, args...) }

func MapperDebug(format string, args ...interface{}) { Get(CategoryMapper).Debug(format, args...) }
func MapperWarn(format string, args ...interface{})  { Get(CategoryMapper).Warn(format, args...) }

func Files(format string, args ...interface{})      { Get(CategoryFiles).Info(format, args...) }
func FilesDebug(format string, args ...interface{}) { Get(CategoryFiles).Debug(format, args...) }
func FilesError(format string, args ...interface{}) { Get(CategoryFiles).Error(format, args...) }

func Canvas(format string, args ...interface{})      { Get(CategoryCanvas).Info(format, args...) }
func CanvasDebug(format string, args ...interface{}) { Get(CategoryCanvas).Debug(format, args...) }
func CanvasWarn(format string, args ...interface{})  { Get(CategoryCanvas).Warn(format, args...) }

func Duplicate(format string, args ...interface{})      { Get(CategoryDuplicate).Info(format, args...) }
func DuplicateDebug(format string, args ...interface{}) { Get(CategoryDuplicate).Debug(format, args...) }
func DuplicateWarn(format string, args ...interface{})  { Get(CategoryDuplicate).Warn(format, args...) }

func Import(format string, args ...interface{})      { Get(CategoryImport).Info(format, args...) }
func ImportDebug(format string, args ...interface{}) { Get(CategoryImport).Debug(format, args...) }
func ImportWarn(format string, args ...interface{})  { Get(CategoryImport).Warn(format, args...) }
func ImportError(format string, args ...interface{}) { Get(CategoryImport).Error(format, args...) }

func Journal(format string, args ...interface{})      { Get(CategoryJournal).Info(format, args...) }
func JournalDebug(format string, args ...interface{}) { Get(CategoryJournal).Debug(format, args...) }
func JournalWarn(format string, args ...interface{})  { Get(CategoryJournal).Warn(format, args...) }

// =============================================================================
// TIMERS
// =============================================================================

// Timer measures an operation for a category.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
