// Package sizeclass computes size-class boundary tables: linear steps for
// small sizes followed by geometric growth up to a large-size cutoff.
// The pool resource segregates free lists by class and the binning resource
// can derive its bins from the same tables.
package sizeclass

import "math"

// Config defines the size class strategy.
type Config struct {
	// Name for this configuration (for benchmarking)
	Name string

	// Small sizes (linear increments)
	SmallMin       int // Smallest class boundary
	SmallMax       int // End of the linear range
	SmallIncrement int // Step between linear classes

	// Medium sizes (geometric growth)
	MediumMax    int     // Sizes at or above this go to the large list
	GrowthFactor float64 // Ratio between consecutive medium classes
}

// Predefined configurations. Sizes are multiples of the 256-byte allocation
// alignment, so the linear range starts there.
var (
	// ConfigFineGrained: many buckets, suited to varied workloads.
	ConfigFineGrained = Config{
		Name:           "FineGrained",
		SmallMin:       256,
		SmallMax:       8 << 10,
		SmallIncrement: 256,
		MediumMax:      64 << 20,
		GrowthFactor:   1.5,
	}

	// ConfigBalanced: balance between list count and granularity.
	ConfigBalanced = Config{
		Name:           "Balanced",
		SmallMin:       256,
		SmallMax:       4 << 10,
		SmallIncrement: 512,
		MediumMax:      16 << 20,
		GrowthFactor:   2.0,
	}

	// ConfigCoarse: few buckets, cheaper bookkeeping, more internal waste.
	ConfigCoarse = Config{
		Name:           "Coarse",
		SmallMin:       256,
		SmallMax:       1 << 10,
		SmallIncrement: 256,
		MediumMax:      4 << 20,
		GrowthFactor:   4.0,
	}

	// DefaultConfig is used when none is specified.
	DefaultConfig = ConfigBalanced
)

// Table holds computed size class boundaries.
type Table struct {
	config     Config
	boundaries []int // Inclusive upper bound for each size class
}

// NewTable computes size class boundaries from config.
func NewTable(config Config) *Table {
	table := &Table{
		config:     config,
		boundaries: make([]int, 0, 64),
	}

	// Phase 1: small sizes (linear increments)
	if config.SmallIncrement > 0 {
		for size := config.SmallMin; size < config.SmallMax; size += config.SmallIncrement {
			table.boundaries = append(table.boundaries, size+config.SmallIncrement-1)
		}
	}

	// Phase 2: medium sizes (geometric growth)
	if config.SmallMax < config.MediumMax {
		size := config.SmallMax
		for size < config.MediumMax {
			next := int(math.Ceil(float64(size) * config.GrowthFactor))
			if next <= size {
				next = size + 1 // Ensure progress
			}
			table.boundaries = append(table.boundaries, next-1)
			size = next
		}
	}

	return table
}

// Class returns the size class index for size.
// Returns NumClasses() for sizes beyond every boundary (the large list).
func (t *Table) Class(size int) int {
	lo, hi := 0, len(t.boundaries)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if size <= t.boundaries[mid] {
			if mid == 0 || size > t.boundaries[mid-1] {
				return mid
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return len(t.boundaries)
}

// Boundary returns the inclusive upper bound of class c.
func (t *Table) Boundary(c int) int {
	return t.boundaries[c]
}

// Boundaries returns a copy of every class upper bound in ascending order.
func (t *Table) Boundaries() []int {
	out := make([]int, len(t.boundaries))
	copy(out, t.boundaries)
	return out
}

// NumClasses returns the number of size classes (excluding the large list).
func (t *Table) NumClasses() int {
	return len(t.boundaries)
}

func (t *Table) String() string {
	return t.config.Name
}
