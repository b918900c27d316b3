package main

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/cwbudde/sparsecompose/internal/arena"
	"github.com/cwbudde/sparsecompose/internal/diag"
	"github.com/cwbudde/sparsecompose/internal/factor"
	"github.com/cwbudde/sparsecompose/internal/radixk"
	"github.com/cwbudde/sparsecompose/internal/reduce"
	"github.com/cwbudde/sparsecompose/internal/registry"
	"github.com/cwbudde/sparsecompose/internal/sparseimage"
	"github.com/cwbudde/sparsecompose/internal/trace"
	"github.com/cwbudde/sparsecompose/internal/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	groupSize     int
	strategy      string
	numTiles      int
	magicK        int
	pixelsPerProc int
	tracePath     string
	cpuProfile    string
	memProfile    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single-shot compositing benchmark",
	Long:  `Composites a synthetic image across a simulated group of worker processes and reports timing.`,
	RunE:  runCompositing,
}

func init() {
	runCmd.Flags().IntVar(&groupSize, "group", 8, "Number of compose-group processes")
	runCmd.Flags().StringVar(&strategy, "strategy", "radixk", "Compositing strategy: radixk, reduce")
	runCmd.Flags().IntVar(&numTiles, "tiles", 1, "Number of tiles (reduce strategy only)")
	runCmd.Flags().IntVar(&magicK, "magic-k", factor.DefaultMagicK, "Magic-k factorization hint (radixk strategy only)")
	runCmd.Flags().IntVar(&pixelsPerProc, "pixels", 4096, "Synthetic pixels contributed per process")
	runCmd.Flags().StringVar(&tracePath, "trace-dir", "", "Directory to write a round-trace.jsonl under (empty disables tracing)")

	runCmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	runCmd.Flags().StringVar(&memProfile, "memprofile", "", "Write memory profile to file")

	rootCmd.AddCommand(runCmd)
}

func runCompositing(cmd *cobra.Command, args []string) error {
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		slog.Info("CPU profiling enabled", "output", cpuProfile)
	}

	slog.Info("starting compositing run", "strategy", strategy, "group", groupSize, "tiles", numTiles)

	var tw *trace.Writer
	if tracePath != "" {
		runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
		var err error
		tw, err = trace.NewWriter(tracePath, runID)
		if err != nil {
			return fmt.Errorf("failed to create trace writer: %w", err)
		}
		defer tw.Close()
	}

	start := time.Now()
	var rounds int
	var err error

	switch strategy {
	case "radixk":
		rounds, err = runRadixKOnce(tw)
	case "reduce":
		err = runReduceOnce()
	default:
		return fmt.Errorf("unknown strategy: %s", strategy)
	}
	if err != nil {
		return fmt.Errorf("compositing run failed: %w", err)
	}

	elapsed := time.Since(start)

	slog.Info("compositing run complete",
		"elapsed", elapsed,
		"rounds", rounds,
		"group", groupSize,
	)
	fmt.Printf("Composited %d processes (%s strategy) in %s, %d round(s)\n", groupSize, strategy, elapsed, rounds)

	if memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			return fmt.Errorf("failed to create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
		slog.Info("memory profile written", "output", memProfile)
	}

	return nil
}

func runRadixKOnce(tw *trace.Writer) (int, error) {
	g := groupSize
	fabric := transport.NewFabric()
	composeGroup := make([]int, g)
	for i := range composeGroup {
		composeGroup[i] = i
	}

	k := magicK
	if k < 2 {
		k = factor.DefaultMagicK
	}
	kArray, err := factor.Factorize(g, k)
	if err != nil {
		return 0, err
	}

	eg := new(errgroup.Group)
	for i := 0; i < g; i++ {
		rank := i
		eg.Go(func() error {
			reg := registry.New()
			reg.SetInt(registry.MagicK, k)
			reg.SetInt(registry.NumProcesses, g)
			reg.SetInt(registry.Rank, rank)

			input := syntheticOpaqueImage(pixelsPerProc, byte(rank))
			result := radixk.Compose(diag.Default, reg, fabric.Participant(rank), arena.New(), composeGroup, rank, input)

			if rank == 0 && tw != nil {
				for round, radix := range kArray {
					tw.Write(trace.Entry{
						Round:      round,
						Radix:      radix,
						Composites: radix - 1,
						Timestamp:  time.Now(),
					})
				}
			}

			slog.Info("radixk compose complete",
				"rank", rank, "piece_pixels", result.Image.NumPixels, "piece_offset", result.PieceOffset)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return len(kArray), err
	}
	return len(kArray), nil
}

func runReduceOnce() error {
	g := groupSize
	tiles := numTiles
	if tiles < 1 {
		tiles = 1
	}

	contribCounts := make([]int, tiles)
	for t := range contribCounts {
		contribCounts[t] = g
	}
	displayNodes := make([]int, tiles)
	for t := range displayNodes {
		displayNodes[t] = t * g / tiles
	}
	masks := make([][]bool, g)
	for n := range masks {
		masks[n] = make([]bool, tiles)
		for t := range masks[n] {
			masks[n][t] = true
		}
	}

	fabric := transport.NewFabric()

	eg := new(errgroup.Group)
	for i := 0; i < g; i++ {
		rank := i
		eg.Go(func() error {
			reg := registry.New()
			reg.SetInt(registry.NumProcesses, g)
			reg.SetInt(registry.Rank, rank)
			reg.SetInt(registry.NumTiles, tiles)
			reg.SetInt(registry.TileMaxWidth, pixelsPerProc)
			reg.SetInt(registry.TileMaxHeight, 1)
			reg.SetIntArray(registry.TileContribCounts, contribCounts)
			reg.SetIntArray(registry.DisplayNodes, displayNodes)
			reg.SetBoolMatrix(registry.AllContainedTilesMasks, masks)

			contributions := make(map[int]*sparseimage.Image)
			for t := 0; t < tiles; t++ {
				contributions[t] = syntheticOpaqueImage(pixelsPerProc, byte(rank))
			}

			results := reduce.Compose(diag.Default, reg, fabric.Participant(rank), arena.New(), rank,
				sparseimage.ColorRGBAUByte, sparseimage.DepthNone, contributions)

			for _, res := range results {
				slog.Info("reduce compose tile collected",
					"rank", rank, "tile", res.Tile, "color_bytes", len(res.Result.Color))
			}

			return nil
		})
	}

	return eg.Wait()
}

// syntheticOpaqueImage hand-assembles a fully-active RGBA image directly
// in its wire format, the same pattern internal/radixk and
// internal/collect's tests use.
func syntheticOpaqueImage(n int, shade byte) *sparseimage.Image {
	payload := make([]byte, n*4)
	for i := 0; i < n; i++ {
		payload[i*4+0] = shade
		payload[i*4+1] = shade
		payload[i*4+2] = shade
		payload[i*4+3] = 255
	}
	buf := make([]byte, 7*4+2*4+len(payload))
	put := func(off, v int) {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(v))
	}
	put(0, n)
	put(4, n)
	put(8, n)
	put(12, 1) // ColorRGBAUByte
	put(16, 0) // DepthNone
	put(20, 2) // numRuns
	put(24, len(payload))
	put(28, 0)
	put(32, n)
	copy(buf[36:], payload)
	return sparseimage.UnpackageFromReceive(buf)
}
