package etw

import (
	"io"

	"github.com/phuslu/log"
)

// logger is the package logger. Silent unless the embedding application
// installs one through SetLogger.
var logger = log.Logger{
	Level:  log.PanicLevel,
	Writer: &log.IOWriter{Writer: io.Discard},
}

// SetLogger routes the package's internal logging to the given logger.
// Call it before starting sessions or traces; it is not synchronized with
// running pumps.
func SetLogger(l *log.Logger) {
	logger = *l
	logger.Context = log.NewContext(l.Context).Str("module", "etw").Value()
}
