package eventlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonewatch/internal/logger"
	"zonewatch/internal/model"
	"zonewatch/internal/repository"
)

type memorySink struct {
	name    string
	mu      sync.Mutex
	records []model.LogRecord
	batches int
	err     error
	delay   time.Duration
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) AppendBatch(records []model.LogRecord) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *memorySink) classes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Class
	}
	return out
}

func TestAppend_PreservesOrderAcrossSinks(t *testing.T) {
	a := &memorySink{name: "a"}
	b := &memorySink{name: "b"}
	l := New([]repository.RecordSink{a, b}, logger.Discard())

	want := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		class := fmt.Sprintf("obj-%03d", i)
		want = append(want, class)
		l.Append(model.LogRecord{Class: class})
	}

	require.NoError(t, l.Close(context.Background()))
	assert.Equal(t, want, a.classes())
	assert.Equal(t, want, b.classes())
	assert.Zero(t, l.Pending())
}

func TestAppend_ConcurrentWritersAreSerialized(t *testing.T) {
	sink := &memorySink{name: "mem"}
	l := New([]repository.RecordSink{sink}, logger.Discard())

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Append(model.LogRecord{Class: fmt.Sprintf("w%d-%02d", w, i)})
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, l.Close(context.Background()))

	got := sink.classes()
	require.Len(t, got, 400)

	// Each writer's own records stay in its call order.
	last := map[byte]string{}
	for _, c := range got {
		prev, ok := last[c[1]]
		if ok {
			assert.Less(t, prev, c)
		}
		last[c[1]] = c
	}
}

func TestAppend_NeverBlocksOnSlowSink(t *testing.T) {
	sink := &memorySink{name: "slow", delay: 100 * time.Millisecond}
	l := New([]repository.RecordSink{sink}, logger.Discard())

	start := time.Now()
	for i := 0; i < 50; i++ {
		l.Append(model.LogRecord{Class: "person"})
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, l.Close(context.Background()))
	assert.Len(t, sink.classes(), 50)
}

func TestAppend_SinkFailureIsContained(t *testing.T) {
	var logs bytes.Buffer
	bad := &memorySink{name: "bad", err: errors.New("disk full")}
	good := &memorySink{name: "good"}
	l := New([]repository.RecordSink{bad, good}, logger.New(&logs))

	l.Append(model.LogRecord{Class: "person"})
	require.NoError(t, l.Close(context.Background()))

	assert.Equal(t, []string{"person"}, good.classes())
	assert.Contains(t, logs.String(), "disk full")
}

func TestClose_DropsLateRecordsAndTimesOut(t *testing.T) {
	sink := &memorySink{name: "slow", delay: 200 * time.Millisecond}
	l := New([]repository.RecordSink{sink}, logger.Discard())
	l.Append(model.LogRecord{Class: "person"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Close(ctx), context.DeadlineExceeded)

	l.Append(model.LogRecord{Class: "late"})
	assert.NoError(t, l.Close(context.Background()))

	assert.Eventually(t, func() bool { return len(sink.classes()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"person"}, sink.classes())
}
