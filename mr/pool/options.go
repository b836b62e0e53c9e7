package pool

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pbnjay/memory"

	"github.com/joshuapare/rmmkit/internal/align"
	"github.com/joshuapare/rmmkit/internal/sizeclass"
	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// DefaultGrowthFactor makes each growth chunk as large as the pool already
// is, doubling it.
const DefaultGrowthFactor = 1.0

// Options configures a pool resource. The zero value (or nil) grows lazily,
// up to the host's physical memory, with immediate stream semantics.
type Options struct {
	// InitialSize is reserved from upstream at construction, on the default
	// stream. Zero defers the first reservation to the first allocation.
	InitialSize int

	// MaximumSize caps the total bytes the pool reserves from upstream.
	// Zero uses the host's total physical memory.
	MaximumSize int

	// GrowthFactor sizes growth chunks as max(request, factor*PoolSize()).
	// Zero uses DefaultGrowthFactor.
	GrowthFactor float64

	// Tracker records free events and answers whether cross-stream reuse is
	// safe. Nil uses stream.Immediate.
	Tracker stream.Tracker

	// SizeClasses segregates each stream's free list. Nil uses
	// sizeclass.DefaultConfig.
	SizeClasses *sizeclass.Config

	// Logger receives growth and release records. Nil uses the package-wide
	// debug logger.
	Logger *slog.Logger
}

// DefaultInitialSize returns half of the host's currently free memory,
// aligned down to mr.Alignment. Use it for a pool that should claim its
// working set up front.
func DefaultInitialSize() int {
	return align.Down(int(memory.FreeMemory()/2), mr.Alignment)
}

// defaultMaximumSize is the host's total memory, or MaxInt when unknown.
func defaultMaximumSize() int {
	total := memory.TotalMemory()
	if total == 0 || total > math.MaxInt {
		return align.Down(math.MaxInt, mr.Alignment)
	}
	return align.Down(int(total), mr.Alignment)
}

// resolved is Options after defaults and validation.
type resolved struct {
	initialSize  int
	maximumSize  int
	growthFactor float64
	tracker      stream.Tracker
	sizeClasses  sizeclass.Config
	logger       *slog.Logger
}

func (o *Options) resolve() (resolved, error) {
	if o == nil {
		o = &Options{}
	}
	r := resolved{
		initialSize:  mr.AlignSize(o.InitialSize),
		maximumSize:  align.Down(o.MaximumSize, mr.Alignment),
		growthFactor: o.GrowthFactor,
		tracker:      o.Tracker,
		sizeClasses:  sizeclass.DefaultConfig,
		logger:       o.Logger,
	}
	if o.InitialSize < 0 || o.MaximumSize < 0 {
		return r, fmt.Errorf("%w: pool sizes must not be negative", mr.ErrConfiguration)
	}
	if o.GrowthFactor < 0 {
		return r, fmt.Errorf("%w: pool growth factor %v must not be negative", mr.ErrConfiguration, o.GrowthFactor)
	}
	if r.maximumSize == 0 {
		r.maximumSize = defaultMaximumSize()
	}
	if r.initialSize > r.maximumSize {
		return r, fmt.Errorf("%w: pool initial size %d exceeds maximum %d", mr.ErrConfiguration, r.initialSize, r.maximumSize)
	}
	if r.growthFactor == 0 {
		r.growthFactor = DefaultGrowthFactor
	}
	if r.tracker == nil {
		r.tracker = stream.Immediate{}
	}
	if o.SizeClasses != nil {
		r.sizeClasses = *o.SizeClasses
	}
	return r, nil
}
