package logging

import (
	stdlog "log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// SetVerbosity sets the global V-level for every logger returned by New.
func SetVerbosity(v int) int {
	return stdr.SetVerbosity(v)
}

// New returns a named logger writing to stderr.
func New(name string) logr.Logger {
	return stdr.New(stdlog.New(os.Stderr, "", stdlog.LstdFlags|stdlog.Lshortfile)).WithName(name)
}
