package adaptor

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SinkFunc adapts a function to Sink.
type SinkFunc func(rec Record)

// Write implements Sink.
func (f SinkFunc) Write(rec Record) {
	f(rec)
}

// MemorySink keeps every record in memory. It is safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// Write implements Sink.
func (m *MemorySink) Write(rec Record) {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
}

// Records returns a copy of the records written so far.
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Reset drops every record.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
}

// SlogSink writes records at debug level to l.
func SlogSink(l *slog.Logger) Sink {
	return SinkFunc(func(rec Record) {
		l.LogAttrs(context.Background(), slog.LevelDebug, "memory "+rec.Op.String(),
			slog.String("addr", "0x"+strconv.FormatUint(uint64(rec.Addr), 16)),
			slog.Int("size", rec.Size),
			slog.String("stream", rec.Stream.String()),
			slog.Time("time", rec.Time),
		)
	})
}

// ZapSink writes records at debug level to l.
func ZapSink(l *zap.Logger) Sink {
	return SinkFunc(func(rec Record) {
		l.Debug("memory "+rec.Op.String(),
			zap.Uintptr("addr", rec.Addr),
			zap.Int("size", rec.Size),
			zap.Stringer("stream", rec.Stream),
			zap.Time("time", rec.Time),
		)
	})
}

// CSVSink writes one "Time,Action,Pointer,Size,Stream" row per record,
// flushing after each one. A header row is written first.
type CSVSink struct {
	mu  sync.Mutex
	w   *csv.Writer
	err error
}

// NewCSVSink returns a sink writing to w.
func NewCSVSink(w io.Writer) *CSVSink {
	s := &CSVSink{w: csv.NewWriter(w)}
	s.write([]string{"Time", "Action", "Pointer", "Size", "Stream"})
	return s
}

// Write implements Sink.
func (s *CSVSink) Write(rec Record) {
	s.write([]string{
		rec.Time.Format(time.RFC3339Nano),
		rec.Op.String(),
		"0x" + strconv.FormatUint(uint64(rec.Addr), 16),
		strconv.Itoa(rec.Size),
		rec.Stream.String(),
	})
}

// Err returns the first write error, if any.
func (s *CSVSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *CSVSink) write(row []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if err := s.w.Write(row); err != nil {
		s.err = err
		return
	}
	s.w.Flush()
	s.err = s.w.Error()
}
