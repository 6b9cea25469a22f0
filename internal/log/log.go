// Package log builds the logrus logger shared by every command.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LevelEnv overrides the level chosen from flags.
const LevelEnv = "ENVPACK_LOG_LEVEL"

// NewLogger returns a new logger writing human-readable lines to out.
func NewLogger(out io.Writer, verbose, quiet bool, version string) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(getLogLevel(verbose, quiet))
	log.Formatter = &logrus.TextFormatter{
		DisableTimestamp: !verbose,
		FullTimestamp:    true,
	}

	entry := logrus.NewEntry(log)
	if verbose {
		entry = entry.WithField("version", version)
	}
	return entry
}

func getLogLevel(verbose, quiet bool) logrus.Level {
	if strLevel := os.Getenv(LevelEnv); strLevel != "" {
		if level, err := logrus.ParseLevel(strLevel); err == nil {
			return level
		}
	}
	switch {
	case verbose:
		return logrus.DebugLevel
	case quiet:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}
