package log

import (
	"io"
	"os"

	"github.com/op/go-logging"
)

// Verbosity steps. Default shows run progress, Verbose adds per-stage
// detail and Trace adds block dispatch messages.
const (
	Default = iota
	Verbose
	Trace
)

var format = logging.MustStringFormatter(
	`%{color}%{time:15:04:05.000} %{module} %{level:.4s}%{color:reset} %{message}`,
)

var leveledBackend logging.LeveledBackend

// Logger is the subset of the leveled logging surface the simulator and
// the CLI actually emit.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})

	Notice(v ...interface{})
	Noticef(format string, v ...interface{})

	Warning(v ...interface{})
	Warningf(format string, v ...interface{})

	Errorf(format string, v ...interface{})
}

// Create a new named logger.
func New(name string) Logger {
	return logging.MustGetLogger(name)
}

// Override the backend output sink. The sink starts at the Default
// verbosity step.
func SetSink(sink io.Writer) {
	backend := logging.NewLogBackend(sink, "", 0)
	leveledBackend = logging.AddModuleLevel(logging.NewBackendFormatter(backend, format))
	leveledBackend.SetLevel(logging.NOTICE, "")
	logging.SetBackend(leveledBackend)
}

// Set the verbosity step for all loggers.
func SetVerbosity(step int) {
	switch {
	case step >= Trace:
		leveledBackend.SetLevel(logging.DEBUG, "")
	case step == Verbose:
		leveledBackend.SetLevel(logging.INFO, "")
	default:
		leveledBackend.SetLevel(logging.NOTICE, "")
	}
}

func init() {
	SetSink(os.Stdout)
}
