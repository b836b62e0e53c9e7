package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitEnabled(t *testing.T) {
	saved := L
	t.Cleanup(func() { L = saved })

	var buf bytes.Buffer
	Init(Options{Enabled: true, Output: &buf, Level: slog.LevelDebug})
	L.Debug("grow", "bytes", 4096)
	require.Contains(t, buf.String(), "bytes=4096")
}

func TestInitDisabled(t *testing.T) {
	saved := L
	t.Cleanup(func() { L = saved })

	Init(Options{})
	require.False(t, L.Enabled(t.Context(), slog.LevelError))
}

func TestOr(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	require.Same(t, custom, Or(custom))
	require.Same(t, L, Or(nil))
}
