package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var std = newLogger(os.Stdout)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "message"},
	})
	return l
}

// SetOutput redirects all log lines to w.
func SetOutput(w io.Writer) { std.SetOutput(w) }

// SetLevel sets the minimum level ("debug", "info", "warn", "error").
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.SetLevel(lvl)
	return nil
}

func Log(level, msg string, fields map[string]any) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	std.WithFields(logrus.Fields(fields)).Log(lvl, msg)
}

func Debug(msg string, fields map[string]any) { Log("debug", msg, fields) }
func Info(msg string, fields map[string]any)  { Log("info", msg, fields) }
func Warn(msg string, fields map[string]any)  { Log("warn", msg, fields) }
func Error(msg string, fields map[string]any) { Log("error", msg, fields) }
