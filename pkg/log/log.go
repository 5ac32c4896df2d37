// Package log provides the process-wide logrus logger constructor,
// grounded on the teacher's pkg/log.InitLogs call sites (e.g.
// cmd/flightctl-api/main.go's log.InitLogs(cfg.Service.LogLevel)).
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// InitLogs builds a text-formatted logrus.Logger writing to stderr. With
// no argument it defaults to "info"; an unparseable level also falls back
// to "info" rather than failing process startup over a typo in config.
func InitLogs(level ...string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl := logrus.InfoLevel
	if len(level) > 0 && level[0] != "" {
		if parsed, err := logrus.ParseLevel(level[0]); err == nil {
			lvl = parsed
		}
	}
	logger.SetLevel(lvl)

	return logger
}
