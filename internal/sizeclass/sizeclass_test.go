package sizeclass

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTable_BoundariesAscending(t *testing.T) {
	for _, cfg := range []Config{ConfigFineGrained, ConfigBalanced, ConfigCoarse} {
		t.Run(cfg.Name, func(t *testing.T) {
			table := NewTable(cfg)
			require.Positive(t, table.NumClasses())
			b := table.Boundaries()
			for i := 1; i < len(b); i++ {
				require.Greater(t, b[i], b[i-1], "boundary %d", i)
			}
			require.GreaterOrEqual(t, b[len(b)-1], cfg.MediumMax-1)
			require.Equal(t, cfg.Name, table.String())
		})
	}
}

func TestTable_Class(t *testing.T) {
	table := NewTable(ConfigCoarse)
	// Coarse: 256..1023 linear by 256 -> [511, 767, 1023], then x4 -> 4095, 16383, ...
	require.Equal(t, []int{511, 767, 1023}, table.Boundaries()[:3])

	tests := []struct {
		size int
		want int
	}{
		{1, 0},
		{256, 0},
		{511, 0},
		{512, 1},
		{1023, 2},
		{1024, 3},
		{4095, 3},
		{4096, 4},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, table.Class(tt.size), "Class(%d)", tt.size)
	}
	require.Equal(t, table.NumClasses(), table.Class(1<<30), "huge sizes go to the large list")
}

func TestTable_Progress(t *testing.T) {
	table := NewTable(Config{Name: "flat", SmallMin: 256, SmallMax: 256, MediumMax: 260, GrowthFactor: 1.0})
	require.Equal(t, []int{256, 257, 258, 259}, table.Boundaries())
}
