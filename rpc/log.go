package rpc

import "log"

// Logger receives a connection's diagnostic output: decode failures,
// per-message handler errors, capability-table pressure. Infof is
// advisory; Errorf reports a condition that lost or degraded a
// message.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// stdLogger is the default Logger: everything goes to the standard
// log package, the behavior connections have when no ConnLog option
// is given.
type stdLogger struct{}

func (stdLogger) Infof(format string, args ...interface{})  { log.Printf(format, args...) }
func (stdLogger) Errorf(format string, args ...interface{}) { log.Printf(format, args...) }
