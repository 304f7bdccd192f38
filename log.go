package art

import goLog "log"

// Logger is the sparse logging seam this package calls into. By
// default logging is disabled; wire a Logger with SetLogger to observe
// the events the tree emits, which are the failures of its best-effort
// arena byte accounting (header, orphan list and layer cells).
type Logger interface {
	Logf(format string, a ...interface{})
}

type dummyLogger struct{}

func (l *dummyLogger) Logf(format string, a ...interface{}) {}

type stdlibLogger struct{}

func (l *stdlibLogger) Logf(format string, a ...interface{}) { goLog.Printf(format, a...) }

var log Logger = &dummyLogger{}

// EnableLogging routes this package's log output to the standard
// library log package. For more control, use SetLogger.
func EnableLogging() {
	SetLogger(&stdlibLogger{})
}

// SetLogger installs logger as the destination for this package's log
// output. Passing nil disables logging.
func SetLogger(logger Logger) {
	if logger == nil {
		log = &dummyLogger{}
		return
	}
	log = logger
}
