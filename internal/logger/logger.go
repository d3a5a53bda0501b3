// Package logger configures the process-wide logrus logger.  Production
// deployments log JSON to a rotated file; development logs text to stderr.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how log lines are written.
type Options struct {
	Env   string // "prod" switches to the JSON formatter
	Level string // logrus level name, defaults to info
	File  string // optional path; when set, output is tee'd into a rotated file
}

// OptionsFromEnv reads LOG_LEVEL and LOG_FILE.
func OptionsFromEnv(env string) Options {
	return Options{Env: env, Level: os.Getenv("LOG_LEVEL"), File: os.Getenv("LOG_FILE")}
}

// New builds a logger from opts.  An unknown level falls back to info.
func New(opts Options) *logrus.Logger {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	if strings.EqualFold(opts.Env, "prod") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	var out io.Writer = os.Stderr
	if opts.File != "" {
		out = io.MultiWriter(os.Stderr, Rotating(opts.File))
	}
	l.SetOutput(out)
	return l
}

// Rotating returns a size-rotated writer for path.
func Rotating(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
}

// Discard returns a logger that drops everything; tests use it.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
