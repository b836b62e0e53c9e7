package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/mr/adaptor"
	"github.com/joshuapare/rmmkit/mr/arena"
	"github.com/joshuapare/rmmkit/mr/binning"
	"github.com/joshuapare/rmmkit/mr/fixedsize"
	"github.com/joshuapare/rmmkit/mr/pool"
	"github.com/joshuapare/rmmkit/stream"
)

var (
	benchResource string
	benchSize     int
	benchCount    int
	benchStreams  int
	benchWindow   int
	benchLimit    int64
	benchLog      bool
	benchMmap     bool
	benchSeed     uint64
)

func init() {
	cmd := newBenchCmd()
	cmd.Flags().StringVar(&benchResource, "resource", "pool", "Resource under test: pool, arena, binning or backing")
	cmd.Flags().IntVar(&benchSize, "size", 4096, "Largest allocation size in bytes")
	cmd.Flags().IntVar(&benchCount, "count", 10000, "Allocations per stream")
	cmd.Flags().IntVar(&benchStreams, "streams", 4, "Number of concurrent streams")
	cmd.Flags().IntVar(&benchWindow, "window", 32, "Live allocations kept per stream")
	cmd.Flags().Int64Var(&benchLimit, "limit", 0, "Outstanding byte limit (0 for none)")
	cmd.Flags().BoolVar(&benchLog, "log", false, "Log every call to stderr")
	cmd.Flags().BoolVar(&benchMmap, "mmap", false, "Back the chain with anonymous mappings")
	cmd.Flags().Uint64Var(&benchSeed, "seed", 1, "Random seed for allocation sizes")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic multi-stream workload",
		Long: `The bench command builds backing -> resource -> limiting -> statistics ->
logging -> thread-safe, then runs one goroutine per stream allocating
random sizes and freeing the oldest block once its window is full.
Streams are synchronized periodically so freed blocks become reusable
across streams.

Example:
  rmmctl bench --resource arena --streams 8 --count 50000
  rmmctl bench --resource binning --size 65536 --limit 104857600 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench()
		},
	}
	return cmd
}

// BenchResult is the outcome of one bench run.
type BenchResult struct {
	Resource    string
	Streams     int
	Allocations int
	Failures    int64
	Duration    time.Duration
	OpsPerSec   float64
	Stats       adaptor.Snapshot
}

func runBench() error {
	if benchSize <= 0 || benchCount <= 0 || benchStreams <= 0 || benchWindow <= 0 {
		return fmt.Errorf("size, count, streams and window must be positive")
	}

	sim := stream.NewSimulator()
	chain, stats, release, err := buildChain(sim)
	if err != nil {
		return err
	}

	printVerbose("Running %d streams x %d allocations on %s\n", benchStreams, benchCount, benchResource)

	failures := make([]int64, benchStreams)
	start := time.Now()
	var g errgroup.Group
	for i := 0; i < benchStreams; i++ {
		s := stream.New()
		rng := rand.New(rand.NewPCG(benchSeed, uint64(i)))
		g.Go(func() error {
			n, err := runStream(chain, sim, s, rng)
			failures[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := release(); err != nil {
		return fmt.Errorf("release resource: %w", err)
	}

	res := BenchResult{
		Resource:    benchResource,
		Streams:     benchStreams,
		Allocations: benchStreams * benchCount,
		Duration:    elapsed,
		Stats:       stats.Snapshot(),
	}
	if elapsed > 0 {
		res.OpsPerSec = float64(2*benchStreams*benchCount) / elapsed.Seconds()
	}
	for _, n := range failures {
		res.Failures += n
	}

	if jsonOut {
		return printJSON(res)
	}
	printInfo("resource:    %s\n", res.Resource)
	printInfo("streams:     %d\n", res.Streams)
	printInfo("allocations: %d (%d rejected)\n", res.Allocations, res.Failures)
	printInfo("duration:    %s (%.0f ops/s)\n", res.Duration.Round(time.Microsecond), res.OpsPerSec)
	printInfo("%s\n", res.Stats)
	return nil
}

// runStream drives one stream and returns the number of rejected allocations.
func runStream(r mr.Resource, sim *stream.Simulator, s stream.Stream, rng *rand.Rand) (int64, error) {
	var failures int64
	window := make([]mr.Block, 0, benchWindow)
	for i := 0; i < benchCount; i++ {
		if len(window) == benchWindow {
			if err := r.Deallocate(window[0], s); err != nil {
				return failures, err
			}
			window = append(window[:0], window[1:]...)
		}
		size := benchSize/2 + rng.IntN(benchSize/2+1)
		blk, err := r.Allocate(size, s)
		if err != nil {
			failures++
			continue
		}
		window = append(window, blk)
		sim.Enqueue(s)
		if i%benchWindow == 0 {
			sim.Synchronize(s)
		}
	}
	for _, blk := range window {
		if err := r.Deallocate(blk, s); err != nil {
			return failures, err
		}
	}
	sim.Synchronize(s)
	return failures, nil
}

// buildChain assembles the resource chain and returns its outermost
// resource, the statistics adaptor and a release function.
func buildChain(sim *stream.Simulator) (mr.Resource, *adaptor.Statistics, func() error, error) {
	backing := mr.NewHostBacking()
	if benchMmap {
		backing = mr.NewMmapBacking()
	}

	var (
		base    mr.Resource
		release = func() error { return nil }
	)
	switch benchResource {
	case "backing":
		base = backing
	case "pool":
		p, err := pool.New(backing, &pool.Options{InitialSize: 64 << 20, Tracker: sim})
		if err != nil {
			return nil, nil, nil, err
		}
		base, release = p, p.Release
	case "arena":
		a, err := arena.New(backing, &arena.Options{Tracker: sim})
		if err != nil {
			return nil, nil, nil, err
		}
		base, release = a, a.Release
	case "binning":
		p, err := pool.New(backing, &pool.Options{Tracker: sim})
		if err != nil {
			return nil, nil, nil, err
		}
		b, err := binning.New(p,
			binning.WithBinOptions(&fixedsize.Options{Tracker: sim}),
			binning.WithPowerOfTwoBins(8, 14))
		if err != nil {
			return nil, nil, nil, err
		}
		base = b
		release = func() error {
			if err := b.Release(); err != nil {
				return err
			}
			return p.Release()
		}
	default:
		return nil, nil, nil, fmt.Errorf("unknown resource %q", benchResource)
	}

	r := base
	if benchLimit > 0 {
		r = adaptor.NewLimiting(r, benchLimit, nil)
	}
	stats := adaptor.NewStatistics(r)
	r = stats
	if benchLog {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		r = adaptor.NewLogging(r, adaptor.SlogSink(logger), nil)
	}
	return adaptor.NewThreadSafe(r), stats, release, nil
}
