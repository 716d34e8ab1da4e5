// Package logtransport wraps a transport.Transport so that every
// frame read or written is logged, mirroring the wire-logging
// transport decorator used in the teacher's own test suite.
package logtransport

import (
	"context"
	"log"

	"github.com/kasvtv/capnp-rpc-engine/transport"
)

// New wraps t so that reads and writes are logged through logger. A
// nil logger falls back to the standard library's default logger.
func New(logger *log.Logger, t transport.Transport) transport.Transport {
	if logger == nil {
		logger = log.Default()
	}
	return &logging{logger: logger, t: t}
}

type logging struct {
	logger *log.Logger
	t      transport.Transport
}

func (l *logging) StartRead(ctx context.Context, onData transport.OnData) error {
	return l.t.StartRead(ctx, func(data []byte) {
		l.logger.Printf("rpc: read %d bytes", len(data))
		onData(data)
	})
}

func (l *logging) QueueWrite(ctx context.Context, data []byte, onDone transport.OnDone) {
	l.logger.Printf("rpc: write %d bytes", len(data))
	l.t.QueueWrite(ctx, data, onDone)
}

func (l *logging) Close() error {
	l.logger.Printf("rpc: closing transport")
	return l.t.Close()
}

func (l *logging) IsClosing() bool            { return l.t.IsClosing() }
func (l *logging) ClearHandlers()             { l.t.ClearHandlers() }
func (l *logging) AbandonPendingWrites()      { l.t.AbandonPendingWrites() }
func (l *logging) SetCloseHandler(onClose transport.OnClose) {
	l.t.SetCloseHandler(func(err error) {
		l.logger.Printf("rpc: transport closed: %v", err)
		onClose(err)
	})
}
