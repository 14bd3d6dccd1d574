// Package logging configures the process-wide structured logger.
//
// Grounded on charmbracelet/log, which is listed in the teacher's go.mod
// but never wired into any teacher source file; wired here to back
// cwdaemon's -y/--verbosity and -f/--debugfile flags (spec.md §6.2),
// matching the CWDAEMON_VERBOSITY_* levels of
// _examples/original_source/src/cwdaemon.h.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Verbosity mirrors the single-letter levels accepted by -y|--verbosity:
// n (none), e (error), w (warn), i (info), d (debug).
type Verbosity int

const (
	VerbosityNone Verbosity = iota
	VerbosityError
	VerbosityWarn
	VerbosityInfo
	VerbosityDebug
)

// ParseVerbosity accepts the single-letter codes used on the command line.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n":
		return VerbosityNone, nil
	case "e":
		return VerbosityError, nil
	case "w":
		return VerbosityWarn, nil
	case "i":
		return VerbosityInfo, nil
	case "d":
		return VerbosityDebug, nil
	default:
		return 0, fmt.Errorf("invalid verbosity %q, expected one of n|e|w|i|d", s)
	}
}

// Bump raises verbosity by one level, matching the original's -i shorthand
// (cwdaemon_parse_command_line treats repeated -i as additive).
func (v Verbosity) Bump() Verbosity {
	if v >= VerbosityDebug {
		return VerbosityDebug
	}
	return v + 1
}

func (v Verbosity) logLevel() log.Level {
	switch v {
	case VerbosityNone:
		return log.FatalLevel + 1 // effectively silent
	case VerbosityError:
		return log.ErrorLevel
	case VerbosityWarn:
		return log.WarnLevel
	case VerbosityInfo:
		return log.InfoLevel
	case VerbosityDebug:
		return log.DebugLevel
	default:
		return log.InfoLevel
	}
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

// New opens the debug file target ("stdout", "stderr", or a path, per
// -f|--debugfile) and returns a logger set to verbosity v. The caller owns
// closing the returned io.Closer if dest is a regular file.
func New(verbosity Verbosity, dest string) (*log.Logger, io.Closer, error) {
	var w io.Writer
	var closer io.Closer = noopCloser{}

	switch dest {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(dest, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening debug file %q: %w", dest, err)
		}
		w = f
		closer = f
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "cwdaemon",
	})
	logger.SetLevel(verbosity.logLevel())
	return logger, closer, nil
}
