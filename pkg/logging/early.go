package logging

import (
	"fmt"
	"io"
	"os"
)

// EarlyLog writes plain lines to stderr before the structured logger is
// configured, for example when the config file cannot be read.
type EarlyLog struct {
	w io.Writer
}

func NewEarlyLog() *EarlyLog {
	return &EarlyLog{w: os.Stderr}
}

func (l *EarlyLog) Error(msg string, args ...interface{}) {
	l.printf("error", msg, args...)
}

func (l *EarlyLog) printf(level, msg string, args ...interface{}) {
	fmt.Fprintf(l.w, "msgmon: %s: %s\n", level, fmt.Sprintf(msg, args...))
}
