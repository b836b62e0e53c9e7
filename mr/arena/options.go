package arena

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pbnjay/memory"

	"github.com/joshuapare/rmmkit/internal/align"
	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// Defaults.
const (
	DefaultSuperblockSize    = 1 << 20
	DefaultGrowthSuperblocks = 8
	DefaultSweepInterval     = 64

	// MinSuperblockSize is the smallest accepted superblock.
	MinSuperblockSize = 4 << 10
)

// Options configures an arena resource. Nil uses the defaults.
type Options struct {
	// SuperblockSize is the unit handed to stream contexts. It must be a
	// multiple of mr.Alignment no smaller than MinSuperblockSize.
	SuperblockSize int

	// InitialSize is reserved from upstream at construction, rounded up to
	// whole superblocks. Zero defers reservation to the first allocation.
	InitialSize int

	// MaximumSize caps the bytes reserved from upstream. Zero uses the
	// host's total physical memory.
	MaximumSize int

	// GrowthSuperblocks is the minimum number of superblocks reserved per
	// upstream request.
	GrowthSuperblocks int

	// SweepInterval is the number of deallocations between automatic sweeps.
	SweepInterval int

	// Tracker gates cross-stream reuse. Nil uses stream.Immediate.
	Tracker stream.Tracker

	// Logger receives growth and sweep records.
	Logger *slog.Logger
}

type resolved struct {
	superblockSize    int
	initialSize       int
	maximumSize       int
	growthSuperblocks int
	sweepInterval     int
	tracker           stream.Tracker
	logger            *slog.Logger
}

func (o *Options) resolve() (resolved, error) {
	if o == nil {
		o = &Options{}
	}
	r := resolved{
		superblockSize:    o.SuperblockSize,
		maximumSize:       o.MaximumSize,
		growthSuperblocks: o.GrowthSuperblocks,
		sweepInterval:     o.SweepInterval,
		tracker:           o.Tracker,
		logger:            o.Logger,
	}
	if o.InitialSize < 0 || o.MaximumSize < 0 || o.GrowthSuperblocks < 0 || o.SweepInterval < 0 {
		return r, fmt.Errorf("%w: arena options must not be negative", mr.ErrConfiguration)
	}
	if r.superblockSize == 0 {
		r.superblockSize = DefaultSuperblockSize
	}
	if r.superblockSize < MinSuperblockSize || !align.IsAligned(r.superblockSize, mr.Alignment) {
		return r, fmt.Errorf("%w: superblock size %d must be a multiple of %d and at least %d",
			mr.ErrConfiguration, r.superblockSize, mr.Alignment, MinSuperblockSize)
	}
	if r.maximumSize == 0 {
		total := memory.TotalMemory()
		if total == 0 || total > math.MaxInt {
			r.maximumSize = math.MaxInt
		} else {
			r.maximumSize = int(total)
		}
	}
	// Whole superblocks only.
	r.maximumSize -= r.maximumSize % r.superblockSize
	if o.InitialSize > r.maximumSize {
		return r, fmt.Errorf("%w: arena initial size %d exceeds maximum %d", mr.ErrConfiguration, o.InitialSize, r.maximumSize)
	}
	r.initialSize = r.roundUp(o.InitialSize)
	if r.growthSuperblocks == 0 {
		r.growthSuperblocks = DefaultGrowthSuperblocks
	}
	if r.sweepInterval == 0 {
		r.sweepInterval = DefaultSweepInterval
	}
	if r.tracker == nil {
		r.tracker = stream.Immediate{}
	}
	return r, nil
}

// roundUp rounds n up to whole superblocks.
func (r resolved) roundUp(n int) int {
	if rem := n % r.superblockSize; rem != 0 {
		n += r.superblockSize - rem
	}
	return n
}
