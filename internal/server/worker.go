package server

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/sparsecompose/internal/arena"
	"github.com/cwbudde/sparsecompose/internal/diag"
	"github.com/cwbudde/sparsecompose/internal/factor"
	"github.com/cwbudde/sparsecompose/internal/radixk"
	"github.com/cwbudde/sparsecompose/internal/reduce"
	"github.com/cwbudde/sparsecompose/internal/registry"
	"github.com/cwbudde/sparsecompose/internal/sparseimage"
	"github.com/cwbudde/sparsecompose/internal/store"
	"github.com/cwbudde/sparsecompose/internal/trace"
	"github.com/cwbudde/sparsecompose/internal/transport"
	"golang.org/x/sync/errgroup"
)

// benchmarkPixelsPerProcess is the synthetic image size each process
// contributes; a fixed size keeps benchmark runs comparable across
// group sizes.
const benchmarkPixelsPerProcess = 256

// runJob drives one compositing benchmark run in the background,
// mirroring the teacher's runJob: advance a job through pending ->
// running -> completed/failed, broadcasting progress as it goes.
func runJob(ctx context.Context, jm *JobManager, tstore store.Store, baseDir, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}

	slog.Info("starting benchmark run", "job_id", jobID, "group_size", job.Config.GroupSize, "strategy", job.Config.Strategy)

	tw, err := trace.NewWriter(baseDir, jobID)
	if err != nil {
		slog.Warn("failed to create trace writer", "job_id", jobID, "error", err)
	}

	start := time.Now()
	var rounds int
	var runErr error

	switch job.Config.Strategy {
	case "radixk":
		rounds, runErr = runRadixKBenchmark(ctx, jm, tw, job)
	case "reduce":
		runErr = runReduceBenchmark(ctx, jm, job)
	default:
		runErr = fmt.Errorf("unknown strategy: %s", job.Config.Strategy)
	}

	elapsed := time.Since(start)

	if tw != nil {
		if err := tw.Close(); err != nil {
			slog.Warn("failed to close trace writer", "job_id", jobID, "error", err)
		}
	}

	if runErr != nil {
		markJobFailed(jm, jobID, runErr)
		return runErr
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.WallMicros = elapsed.Microseconds()
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	if tstore != nil {
		tracePath := ""
		if tw != nil {
			tracePath = tw.Path()
		}
		record := store.NewBenchmarkRecord(jobID, job.Config, elapsed.Microseconds(), rounds, tracePath)
		if err := tstore.SaveRecord(jobID, record); err != nil {
			slog.Warn("failed to save benchmark record", "job_id", jobID, "error", err)
		}
	}

	slog.Info("benchmark run completed", "job_id", jobID, "elapsed", elapsed, "rounds", rounds)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateCompleted,
		Round:     rounds,
		Timestamp: time.Now(),
	})

	return nil
}

// runRadixKBenchmark composes G synthetic images of
// benchmarkPixelsPerProcess pixels each, one per goroutine, using the
// radix-k strategy, tracing round telemetry as it goes.
func runRadixKBenchmark(ctx context.Context, jm *JobManager, tw *trace.Writer, job *Job) (int, error) {
	g := job.Config.GroupSize
	fabric := transport.NewFabric()
	composeGroup := make([]int, g)
	for i := range composeGroup {
		composeGroup[i] = i
	}

	magicK := job.Config.MagicK
	if magicK < 2 {
		magicK = factor.DefaultMagicK
	}
	kArray, err := factor.Factorize(g, magicK)
	if err != nil {
		return 0, fmt.Errorf("failed to factorize group size %d: %w", g, err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for i := 0; i < g; i++ {
		rank := i
		eg.Go(func() error {
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			default:
			}

			reg := registry.New()
			reg.SetInt(registry.MagicK, magicK)
			reg.SetInt(registry.NumProcesses, g)
			reg.SetInt(registry.Rank, rank)

			input := syntheticOpaqueImage(benchmarkPixelsPerProcess, byte(rank))
			result := radixk.Compose(diag.Default, reg, fabric.Participant(rank), arena.New(), composeGroup, rank, input)

			if rank == 0 {
				for round, k := range kArray {
					if tw != nil {
						tw.Write(trace.Entry{
							Round:      round,
							Radix:      k,
							Composites: k - 1,
							Timestamp:  time.Now(),
						})
					}
					jm.broadcaster.Broadcast(ProgressEvent{
						JobID:     job.ID,
						State:     StateRunning,
						Round:     round + 1,
						Timestamp: time.Now(),
					})
					jm.UpdateJob(job.ID, func(j *Job) {
						j.Round = round + 1
						j.Composites += k - 1
					})
				}
			}

			slog.Debug("radixk compose complete",
				"job_id", job.ID, "rank", rank, "piece_pixels", result.Image.NumPixels, "piece_offset", result.PieceOffset)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return len(kArray), err
	}
	return len(kArray), nil
}

// runReduceBenchmark splits the compose group's processes evenly across
// job.Config.NumTiles tiles, every process contributing to every tile,
// and drives reduce.Compose once per rank to allocate, assign, delegate
// a single-image composite, and collect each tile it displays.
func runReduceBenchmark(ctx context.Context, jm *JobManager, job *Job) error {
	g := job.Config.GroupSize
	numTiles := job.Config.NumTiles
	if numTiles < 1 {
		numTiles = 1
	}

	contribCounts := make([]int, numTiles)
	for t := range contribCounts {
		contribCounts[t] = g
	}
	displayNodes := make([]int, numTiles)
	for t := range displayNodes {
		displayNodes[t] = t * g / numTiles
	}
	masks := make([][]bool, g)
	for n := range masks {
		masks[n] = make([]bool, numTiles)
		for t := range masks[n] {
			masks[n][t] = true
		}
	}

	fabric := transport.NewFabric()

	eg, egCtx := errgroup.WithContext(ctx)
	for i := 0; i < g; i++ {
		rank := i
		eg.Go(func() error {
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			default:
			}

			reg := registry.New()
			reg.SetInt(registry.NumProcesses, g)
			reg.SetInt(registry.Rank, rank)
			reg.SetInt(registry.NumTiles, numTiles)
			reg.SetInt(registry.TileMaxWidth, benchmarkPixelsPerProcess)
			reg.SetInt(registry.TileMaxHeight, 1)
			reg.SetIntArray(registry.TileContribCounts, contribCounts)
			reg.SetIntArray(registry.DisplayNodes, displayNodes)
			reg.SetBoolMatrix(registry.AllContainedTilesMasks, masks)

			contributions := make(map[int]*sparseimage.Image)
			for t := 0; t < numTiles; t++ {
				contributions[t] = syntheticOpaqueImage(benchmarkPixelsPerProcess, byte(rank))
			}

			results := reduce.Compose(diag.Default, reg, fabric.Participant(rank), arena.New(), rank,
				sparseimage.ColorRGBAUByte, sparseimage.DepthNone, contributions)

			for _, res := range results {
				slog.Debug("reduce compose tile collected",
					"job_id", job.ID, "rank", rank, "tile", res.Tile, "color_bytes", len(res.Result.Color))
			}

			if rank == displayNodes[0] {
				jm.UpdateJob(job.ID, func(j *Job) { j.Round = 1 })
				jm.broadcaster.Broadcast(ProgressEvent{
					JobID:     job.ID,
					State:     StateRunning,
					Round:     1,
					Timestamp: time.Now(),
				})
			}

			return nil
		})
	}

	return eg.Wait()
}

// syntheticOpaqueImage hand-assembles a fully-active RGBA image directly
// in its wire format, the same pattern internal/radixk and
// internal/collect's tests use, since constructing an Image otherwise
// requires the package's private pixel/encode machinery.
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

// markJobFailed marks a job as failed with an error message.
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("benchmark run failed", "job_id", jobID, "error", err)
}
