// Package pipeline drives the full window schedule to completion: query
// build, remote fetch and index computation per window, under a bounded
// worker pool with per-window failure containment.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/urbanveg/vcover/internal/compute"
	"github.com/urbanveg/vcover/internal/config"
	"github.com/urbanveg/vcover/internal/imagery"
	"github.com/urbanveg/vcover/internal/metrics"
	"github.com/urbanveg/vcover/internal/raster"
	"github.com/urbanveg/vcover/internal/schedule"
)

// Status classifies one window's outcome. Anything but StatusOK yields a
// masked sentinel band downstream; none of them aborts the run.
type Status string

const (
	StatusOK           Status = "ok"
	StatusNoImages     Status = "no_images"
	StatusFetchError   Status = "fetch_error"
	StatusComputeError Status = "compute_error"
)

// Fetcher is the slice of the imagery client the coordinator needs.
// Retry/backoff of transient failures lives behind this boundary.
type Fetcher interface {
	QueryCollection(ctx context.Context, spec imagery.QuerySpec) (*imagery.Composite, error)
}

// WindowResult is the immutable outcome of one window task. It is written
// exactly once by its producing task; downstream consumers only read it.
type WindowResult struct {
	Window schedule.Window
	Status Status
	Err    error

	SourceImageCount int
	SourceImageIDs   []string // service return order

	// Observed whole-scene cloud cover over the candidate set.
	CloudMin  float64
	CloudMax  float64
	CloudMean float64

	NDVI  *raster.Grid // present iff Status == ok
	VC    *raster.Grid // present iff Status == ok
	Stats compute.Stats

	ProcessedAt time.Time
	Elapsed     time.Duration
}

// Coordinator fans the window schedule out over a bounded worker pool.
type Coordinator struct {
	cfg     config.Config
	fetcher Fetcher
	region  json.RawMessage
}

func New(cfg config.Config, fetcher Fetcher, region json.RawMessage) *Coordinator {
	return &Coordinator{cfg: cfg, fetcher: fetcher, region: region}
}

// Run processes every window and returns one result per window, ordered by
// window index. At most cfg.MaxWorkers windows are in flight at a time;
// tasks are independent and may finish in any order. Each result occupies
// the slot matching its schedule position, so the returned sequence is
// sorted regardless of completion order.
func (c *Coordinator) Run(ctx context.Context, windows []schedule.Window) []WindowResult {
	log.Printf("pipeline: processing %d windows with %d workers", len(windows), c.cfg.MaxWorkers)
	start := time.Now()

	results := make([]WindowResult, len(windows))
	sem := make(chan struct{}, c.cfg.MaxWorkers)
	var wg sync.WaitGroup

	for i, w := range windows {
		wg.Add(1)
		sem <- struct{}{}
		go func(slot int, w schedule.Window) {
			defer wg.Done()
			defer func() { <-sem }()
			results[slot] = c.processWindow(ctx, w)
		}(i, w)
	}
	wg.Wait()

	for _, r := range results {
		metrics.WindowsProcessed.WithLabelValues(string(r.Status)).Inc()
		switch r.Status {
		case StatusOK:
			log.Printf("pipeline: window %d (%s): %d images, %.1f%% cover",
				r.Window.Index, r.Window.Label(), r.SourceImageCount, r.Stats.CoverFraction*100)
		case StatusNoImages:
			log.Printf("pipeline: window %d (%s): no images", r.Window.Index, r.Window.Label())
		default:
			log.Printf("pipeline: window %d (%s): %s: %v", r.Window.Index, r.Window.Label(), r.Status, r.Err)
		}
	}
	log.Printf("pipeline: completed in %.1fs", time.Since(start).Seconds())
	return results
}

func (c *Coordinator) processWindow(ctx context.Context, w schedule.Window) WindowResult {
	start := time.Now()
	res := WindowResult{Window: w, ProcessedAt: start.UTC()}
	defer func() { res.Elapsed = time.Since(start) }()

	spec := imagery.BuildQuery(w, c.cfg, c.region)
	comp, err := c.fetcher.QueryCollection(ctx, spec)
	if err != nil {
		if errors.Is(err, imagery.ErrMalformed) {
			res.Status, res.Err = StatusComputeError, err
		} else {
			res.Status, res.Err = StatusFetchError, err
		}
		return res
	}

	res.SourceImageCount = len(comp.ImageIDs)
	res.SourceImageIDs = comp.ImageIDs
	res.CloudMin, res.CloudMax, res.CloudMean = cloudStats(comp.SceneCloudCover)

	// An empty candidate set is a recorded outcome, never retried.
	if len(comp.ImageIDs) == 0 {
		res.Status = StatusNoImages
		return res
	}

	if comp.Red == nil || comp.NIR == nil {
		res.Status = StatusComputeError
		res.Err = errors.New("composite missing reflectance bands")
		return res
	}

	ndvi, err := compute.NDVI(comp.Red, comp.NIR)
	if err != nil {
		res.Status, res.Err = StatusComputeError, err
		return res
	}
	vc := compute.Threshold(ndvi, c.cfg.NDVIThreshold)

	res.Status = StatusOK
	res.NDVI = ndvi
	res.VC = vc
	res.Stats = compute.Summarize(ndvi, vc)
	return res
}

func cloudStats(cover []float64) (min, max, mean float64) {
	if len(cover) == 0 {
		return 0, 0, 0
	}
	min, max = cover[0], cover[0]
	var sum float64
	for _, v := range cover {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, max, sum / float64(len(cover))
}
