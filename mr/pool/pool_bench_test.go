package pool

import (
	"testing"

	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// BenchmarkPool_AllocFree measures a same-stream allocate/free round trip.
func BenchmarkPool_AllocFree(b *testing.B) {
	p, err := New(mr.NewHostBackingWithCapacity(256<<20), &Options{InitialSize: 16 << 20})
	if err != nil {
		b.Fatal(err)
	}
	defer p.Release()
	s := stream.New()

	b.ResetTimer()
	b.ReportAllocs()

	for i := range b.N {
		size := 256 + (i%64)*128
		blk, err := p.Allocate(size, s)
		if err != nil {
			b.Fatal(err)
		}
		if err := p.Deallocate(blk, s); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkPool_Window keeps a sliding window of live blocks so frees
// exercise coalescing.
func BenchmarkPool_Window(b *testing.B) {
	p, err := New(mr.NewHostBackingWithCapacity(256<<20), &Options{InitialSize: 32 << 20})
	if err != nil {
		b.Fatal(err)
	}
	defer p.Release()
	s := stream.New()

	const window = 128
	live := make([]mr.Block, 0, window)

	b.ResetTimer()
	b.ReportAllocs()

	for i := range b.N {
		if len(live) == window {
			if err := p.Deallocate(live[0], s); err != nil {
				b.Fatal(err)
			}
			live = live[1:]
		}
		blk, err := p.Allocate(512+(i%32)*1024, s)
		if err != nil {
			b.Fatal(err)
		}
		live = append(live, blk)
	}
	b.StopTimer()
	for _, blk := range live {
		_ = p.Deallocate(blk, s)
	}
}

// BenchmarkPool_Init compares construction with and without an initial chunk.
func BenchmarkPool_Init(b *testing.B) {
	b.Run("Empty", func(b *testing.B) {
		b.ReportAllocs()
		for range b.N {
			p, _ := New(mr.NewHostBacking(), &Options{InitialSize: 0})
			p.Release()
		}
	})

	b.Run("1MiB", func(b *testing.B) {
		b.ReportAllocs()
		for range b.N {
			p, _ := New(mr.NewHostBacking(), &Options{InitialSize: 1 << 20})
			p.Release()
		}
	})
}
