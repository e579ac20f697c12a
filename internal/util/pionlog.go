package util

import (
	"fmt"

	"github.com/pion/logging"
)

// PionLoggerFactory routes pion's internal logging through pterm. Pion info
// output is demoted to debug; trace output is discarded.
type PionLoggerFactory struct{}

var _ logging.LoggerFactory = PionLoggerFactory{}

func (PionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return pionLogger{prefix: "pion/" + scope + ": "}
}

type pionLogger struct {
	prefix string
}

func (l pionLogger) Trace(msg string) {}

func (l pionLogger) Tracef(format string, args ...interface{}) {}

func (l pionLogger) Debug(msg string) {
	LogDebug("%s%s", l.prefix, msg)
}

func (l pionLogger) Debugf(format string, args ...interface{}) {
	LogDebug("%s%s", l.prefix, fmt.Sprintf(format, args...))
}

func (l pionLogger) Info(msg string) {
	LogDebug("%s%s", l.prefix, msg)
}

func (l pionLogger) Infof(format string, args ...interface{}) {
	LogDebug("%s%s", l.prefix, fmt.Sprintf(format, args...))
}

func (l pionLogger) Warn(msg string) {
	LogWarning("%s%s", l.prefix, msg)
}

func (l pionLogger) Warnf(format string, args ...interface{}) {
	LogWarning("%s%s", l.prefix, fmt.Sprintf(format, args...))
}

func (l pionLogger) Error(msg string) {
	LogError("%s%s", l.prefix, msg)
}

func (l pionLogger) Errorf(format string, args ...interface{}) {
	LogError("%s%s", l.prefix, fmt.Sprintf(format, args...))
}
