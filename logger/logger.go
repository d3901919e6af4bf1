// Package logger - Structured logging for the attendance pipeline.
package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields is an alias so callers need not import logrus.
type Fields = logrus.Fields

// Options controls where and how much is logged.
type Options struct {
	// Level is a logrus level name such as "info" or "debug".
	Level string
	// Dir enables a rotated log file in this directory when not empty.
	Dir string
	// Env disables the log file when set to "test".
	Env string
	// Output replaces stderr, mainly for tests.
	Output io.Writer
}

// New builds a logger writing to stderr and, optionally, a rotated file.
//
// Arguments:
//   - opts: The logging options.
//
// Returns:
//   - *logrus.Logger: The configured logger.
//   - error: An error if the level is unknown.
func New(opts Options) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", opts.Level)
		}
		level = parsed
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&formatter.Formatter{
		NoColors:        opts.Output != nil,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, s[len(s)-1])
		},
	})

	var out io.Writer = os.Stderr
	if opts.Output != nil {
		out = opts.Output
	}
	writers := []io.Writer{out}

	if opts.Dir != "" && opts.Env != "test" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, fmt.Sprintf("attendance-%s.log", time.Now().Format("2006-01-02"))),
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	log.SetOutput(io.MultiWriter(writers...))
	log.SetReportCaller(true)

	return log, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
