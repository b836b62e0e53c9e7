package adaptor

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

func Test_Logging_Records(t *testing.T) {
	mock := clock.NewMock()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.Set(start)

	sink := &MemorySink{}
	l := NewLogging(mr.NewHostBackingWithCapacity(4096), sink, &LoggingOptions{Clock: mock})
	s := stream.New()

	blk, err := l.Allocate(1000, s)
	require.NoError(t, err)
	mock.Add(time.Second)
	_, err = l.Allocate(1<<20, s)
	require.ErrorIs(t, err, mr.ErrOutOfMemory, "the logged outcome is the upstream outcome")
	mock.Add(time.Second)
	require.NoError(t, l.Deallocate(blk, s))

	want := []Record{
		{Op: OpAllocate, Addr: blk.Addr(), Size: 1000, Stream: s, Time: start},
		{Op: OpAllocateFailure, Size: 1 << 20, Stream: s, Time: start.Add(time.Second)},
		{Op: OpDeallocate, Addr: blk.Addr(), Size: 1000, Stream: s, Time: start.Add(2 * time.Second)},
	}
	require.Equal(t, want, sink.Records())

	sink.Reset()
	require.Empty(t, sink.Records())
}

func Test_Logging_SinkFunc(t *testing.T) {
	var ops []Op
	l := NewLogging(mr.NewHostBackingWithCapacity(4096), SinkFunc(func(r Record) {
		ops = append(ops, r.Op)
	}), nil)

	blk, err := l.Allocate(256, stream.Default)
	require.NoError(t, err)
	require.NoError(t, l.Deallocate(blk, stream.Default))
	require.Equal(t, []Op{OpAllocate, OpDeallocate}, ops)
	require.Equal(t, "allocate failure", OpAllocateFailure.String())
}

func Test_Logging_ZapSink(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLogging(mr.NewHostBackingWithCapacity(4096), ZapSink(zap.New(core)), nil)

	blk, err := l.Allocate(256, stream.Default)
	require.NoError(t, err)
	require.NoError(t, l.Deallocate(blk, stream.Default))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "memory allocate", entries[0].Message)
	assert.Equal(t, "memory free", entries[1].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(256), fields["size"])
	assert.Equal(t, "default", fields["stream"])
}

func Test_Logging_SlogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := stream.New()
	l := NewLogging(mr.NewHostBackingWithCapacity(4096), SlogSink(logger), nil)

	blk, err := l.Allocate(512, s)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "memory allocate", rec["msg"])
	assert.Equal(t, float64(512), rec["size"])
	assert.Equal(t, s.String(), rec["stream"])
	assert.True(t, strings.HasPrefix(rec["addr"].(string), "0x"))
	require.NoError(t, l.Deallocate(blk, s))
}

func Test_Logging_CSVSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewCSVSink(&buf)
	mock := clock.NewMock()
	l := NewLogging(mr.NewHostBackingWithCapacity(4096), sink, &LoggingOptions{Clock: mock})

	blk, err := l.Allocate(256, stream.Default)
	require.NoError(t, err)
	require.NoError(t, l.Deallocate(blk, stream.Default))
	require.NoError(t, sink.Err())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Time,Action,Pointer,Size,Stream", lines[0])
	assert.Contains(t, lines[1], ",allocate,0x")
	assert.True(t, strings.HasSuffix(lines[2], ",256,default"))
}
