// Package persistence buffers execution-log writes so evaluation latency
// never waits on SQLite. Log persistence is fire-and-forget: failed batches
// are counted and logged, never surfaced to the evaluation path.
package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"stratbox/pkg/db"
)

// LogSink batches execution-log inserts.
type LogSink struct {
	db          *db.Database
	buffer      []db.ExecutionLog
	mu          sync.Mutex
	maxSize     int
	flushIntval time.Duration
	done        chan struct{}
	wg          sync.WaitGroup
	log         zerolog.Logger

	totalWrites  uint64
	totalBatches uint64
	totalErrors  uint64
}

// NewLogSink creates a sink that flushes at maxSize entries or every
// interval, whichever comes first.
func NewLogSink(database *db.Database, maxSize int, interval time.Duration, log zerolog.Logger) *LogSink {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	s := &LogSink{
		db:          database,
		buffer:      make([]db.ExecutionLog, 0, maxSize),
		maxSize:     maxSize,
		flushIntval: interval,
		done:        make(chan struct{}),
		log:         log,
	}

	s.wg.Add(1)
	go s.backgroundFlush()
	return s
}

// Write queues one log entry. Never blocks on the database.
func (s *LogSink) Write(entry db.ExecutionLog) {
	atomic.AddUint64(&s.totalWrites, 1)

	s.mu.Lock()
	s.buffer = append(s.buffer, entry)
	shouldFlush := len(s.buffer) >= s.maxSize
	s.mu.Unlock()

	if shouldFlush {
		s.Flush()
	}
}

// Flush writes all buffered entries in one transaction. Errors are swallowed
// by design; they must not affect the evaluation result.
func (s *LogSink) Flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]db.ExecutionLog, 0, s.maxSize)
	s.mu.Unlock()

	atomic.AddUint64(&s.totalBatches, 1)

	tx, err := s.db.DB.Begin()
	if err != nil {
		atomic.AddUint64(&s.totalErrors, 1)
		s.log.Warn().Err(err).Int("entries", len(batch)).Msg("log sink: begin failed, dropping batch")
		return
	}
	for _, entry := range batch {
		if _, err := tx.Exec(`
			INSERT INTO execution_logs (strategy_id, level, message, data)
			VALUES (?, ?, ?, ?)
		`, entry.StrategyID, entry.Level, entry.Message, entry.Data); err != nil {
			atomic.AddUint64(&s.totalErrors, 1)
			s.log.Warn().Err(err).Str("strategy", entry.StrategyID).Msg("log sink: insert failed")
		}
	}
	if err := tx.Commit(); err != nil {
		atomic.AddUint64(&s.totalErrors, 1)
		s.log.Warn().Err(err).Msg("log sink: commit failed")
	}
}

func (s *LogSink) backgroundFlush() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushIntval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-s.done:
			s.Flush()
			return
		}
	}
}

// Close drains the buffer and stops the background flusher.
func (s *LogSink) Close(ctx context.Context) {
	close(s.done)
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		s.log.Warn().Msg("log sink: close timed out")
	}
}

// Stats returns write/batch/error counters.
func (s *LogSink) Stats() (writes, batches, errors uint64) {
	return atomic.LoadUint64(&s.totalWrites), atomic.LoadUint64(&s.totalBatches), atomic.LoadUint64(&s.totalErrors)
}
