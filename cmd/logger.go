package main

import (
	"fmt"
	"log"
)

// stdLogger adapts the process loggers to the Infof/Errorf interface used by
// the billing packages.
type stdLogger struct {
	infoLog  *log.Logger
	errorLog *log.Logger
}

func newStdLogger(infoLog, errorLog *log.Logger) stdLogger {
	return stdLogger{infoLog: infoLog, errorLog: errorLog}
}

func (l stdLogger) Infof(format string, args ...interface{}) {
	l.infoLog.Printf(format, args...)
}

func (l stdLogger) Errorf(format string, args ...interface{}) {
	_ = l.errorLog.Output(2, fmt.Sprintf(format, args...))
}
