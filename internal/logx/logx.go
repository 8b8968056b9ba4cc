// Package logx builds the logrus logger shared by the binaries.
package logx

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// New returns a logger writing to stderr. format "text" gives the human
// readable formatter, anything else JSON. An unknown level falls back to info.
func New(level, format string) *log.Logger {
	return newTo(os.Stderr, level, format)
}

func newTo(w io.Writer, level, format string) *log.Logger {
	l := log.New()
	l.SetOutput(w)
	if strings.EqualFold(format, "text") {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&log.JSONFormatter{})
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}
