package eventlog

import (
	"context"
	"sync"

	"zonewatch/internal/logger"
	"zonewatch/internal/metrics"
	"zonewatch/internal/model"
	"zonewatch/internal/repository"
)

// EventLogger appends LogRecords to every configured sink on a single
// background writer. Append only takes a lock and never waits for I/O.
// Records reach each sink in exactly the order Append was called.
type EventLogger struct {
	sinks  []repository.RecordSink
	logger *logger.Logger

	pending []model.LogRecord
	closed  bool
	mu      sync.Mutex

	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// New starts the writer goroutine.
func New(sinks []repository.RecordSink, logger *logger.Logger) *EventLogger {
	l := &EventLogger{
		sinks:  sinks,
		logger: logger,
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Append queues one record. Records appended after Close are dropped.
func (l *EventLogger) Append(rec model.LogRecord) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.Warning("Event log closed - dropping %s record", rec.Class)
		metrics.RecordTaskDropped("log_record")
		return
	}
	l.pending = append(l.pending, rec)
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Pending returns how many records wait for the writer.
func (l *EventLogger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Close stops accepting records and flushes what is queued, giving up when
// ctx is done.
func (l *EventLogger) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.stop)

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		l.logger.Warning("Event log flush timed out - %d record(s) not written", l.Pending())
		return ctx.Err()
	}
}

func (l *EventLogger) run() {
	defer close(l.done)

	for {
		select {
		case <-l.signal:
			l.flush()
		case <-l.stop:
			l.flush()
			return
		}
	}
}

func (l *EventLogger) flush() {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	for _, sink := range l.sinks {
		err := sink.AppendBatch(batch)
		metrics.RecordLogRecords(sink.Name(), len(batch), err)
		if err != nil {
			err = &model.TransientIOError{Op: "append records", Path: sink.Name(), Err: err}
			l.logger.Error("Event log: %v (%d record(s) lost)", err, len(batch))
		}
	}
}
