package macs2

import "github.com/grailbio/base/log"

// Logger receives the wrapper's progress and failure messages
type Logger interface {
	Printf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// BaseLogger forwards to github.com/grailbio/base/log. Debug output is only
// emitted when Verbose is set or the process log level is at Debug.
type BaseLogger struct {
	Verbose bool
}

func (l BaseLogger) Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

func (l BaseLogger) Errorf(format string, args ...interface{}) {
	log.Error.Printf(format, args...)
}

func (l BaseLogger) Debugf(format string, args ...interface{}) {
	if l.Verbose {
		log.Printf(format, args...)
		return
	}
	log.Debug.Printf(format, args...)
}

func loggerOrDefault(l Logger) Logger {
	if l == nil {
		return BaseLogger{}
	}
	return l
}
