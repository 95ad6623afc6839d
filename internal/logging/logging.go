// Package logging builds the logrus logger shared by all quizctl commands.
//
// Without a logging configuration file the logger writes human-readable
// text to stderr at info level. When the file named by LOG_CFG (default
// logging.json) exists it is parsed as JSONC and may select a level, a
// format, and per-day info and error log files:
//
//	{
//	  // debug, info, warn or error
//	  "level": "info",
//	  "format": "json",
//	  "dir": "logs",
//	  "info_file": "info.log",
//	  "error_file": "errors.log"
//	}
//
// Log files are created under <dir>/<YYYY-MM-DD>/ so each day starts a new
// set of files.
package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/jsonc"
)

// FileConfig is the structure of the logging configuration file.
type FileConfig struct {
	Level     string `json:"level"`
	Format    string `json:"format"`
	Dir       string `json:"dir"`
	InfoFile  string `json:"info_file"`
	ErrorFile string `json:"error_file"`
}

// Options configure New.
type Options struct {
	// ConfigPath is the JSONC logging configuration file. A missing file
	// falls back to the defaults.
	ConfigPath string

	// Output receives console log lines. Defaults to os.Stderr.
	Output io.Writer

	// Verbose forces debug level regardless of the file.
	Verbose bool

	// Now is used to name the dated log folder. Defaults to time.Now.
	Now func() time.Time
}

// Logger is a logrus logger that owns the log files it writes to.
type Logger struct {
	*logrus.Logger
	files []*os.File
}

// Close flushes and closes the log files. The console output is left open.
func (l *Logger) Close() error {
	var errs []error
	for _, f := range l.files {
		errs = append(errs, f.Close())
	}
	l.files = nil
	return errors.Join(errs...)
}

// LoadFileConfig reads and parses a JSONC logging configuration file. It
// returns (nil, nil) when the file does not exist.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read logging config %s: %w", path, err)
	}

	var fc FileConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &fc); err != nil {
		return nil, fmt.Errorf("parse logging config %s: %w", path, err)
	}
	return &fc, nil
}

// New builds a Logger from opts.
func New(opts Options) (*Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	logger := &Logger{Logger: base}

	var fc *FileConfig
	if opts.ConfigPath != "" {
		var err error
		fc, err = LoadFileConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	if fc != nil {
		if err := logger.apply(fc, now()); err != nil {
			_ = logger.Close()
			return nil, err
		}
	}

	if opts.Verbose {
		base.SetLevel(logrus.DebugLevel)
	}
	return logger, nil
}

func (l *Logger) apply(fc *FileConfig, now time.Time) error {
	if fc.Level != "" {
		level, err := logrus.ParseLevel(fc.Level)
		if err != nil {
			return fmt.Errorf("logging config: %w", err)
		}
		l.SetLevel(level)
	}

	switch strings.ToLower(fc.Format) {
	case "", "text":
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("logging config: unknown format %q (valid: text, json)", fc.Format)
	}

	if fc.InfoFile == "" && fc.ErrorFile == "" {
		return nil
	}

	folder, err := datedFolder(fc.Dir, now)
	if err != nil {
		return err
	}

	if fc.InfoFile != "" {
		f, err := l.open(filepath.Join(folder, fc.InfoFile))
		if err != nil {
			return err
		}
		l.AddHook(&fileHook{w: f, levels: levelsUpTo(logrus.InfoLevel)})
	}
	if fc.ErrorFile != "" {
		f, err := l.open(filepath.Join(folder, fc.ErrorFile))
		if err != nil {
			return err
		}
		l.AddHook(&fileHook{w: f, levels: levelsUpTo(logrus.ErrorLevel)})
	}
	return nil
}

func (l *Logger) open(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.files = append(l.files, f)
	return f, nil
}

// datedFolder returns <dir>/<YYYY-MM-DD>, creating it if needed.
func datedFolder(dir string, now time.Time) (string, error) {
	if dir == "" {
		dir = "logs"
	}
	folder := filepath.Join(dir, now.Format("2006-01-02"))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create log folder: %w", err)
	}
	return folder, nil
}

// levelsUpTo returns every level at least as severe as max.
func levelsUpTo(max logrus.Level) []logrus.Level {
	var levels []logrus.Level
	for _, level := range logrus.AllLevels {
		if level <= max {
			levels = append(levels, level)
		}
	}
	return levels
}

// fileHook copies entries of the selected levels into a file, using the
// logger's own formatter.
type fileHook struct {
	w      io.Writer
	levels []logrus.Level
}

func (h *fileHook) Levels() []logrus.Level {
	return h.levels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}
