// Package run executes one full compositing run: schedule, parallel
// acquisition, assembly, artifact writing, ledger and history recording.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/urbanveg/vcover/internal/assemble"
	"github.com/urbanveg/vcover/internal/config"
	"github.com/urbanveg/vcover/internal/ledger"
	"github.com/urbanveg/vcover/internal/metrics"
	"github.com/urbanveg/vcover/internal/pipeline"
	"github.com/urbanveg/vcover/internal/publish"
	"github.com/urbanveg/vcover/internal/rasterio"
	"github.com/urbanveg/vcover/internal/schedule"
	"github.com/urbanveg/vcover/internal/store"
)

// Options wires a run's collaborators. Store and Publisher are optional;
// everything else is required.
type Options struct {
	Config    config.Config
	Fetcher   pipeline.Fetcher
	Region    json.RawMessage
	Store     *store.Store
	Publisher *publish.FTPPublisher
}

// Summary reports what a run did. Artifact paths are in write order.
type Summary struct {
	Results      []pipeline.WindowResult
	Records      []ledger.Record
	Artifacts    []string
	MetadataPath string
	OK           int
	NoImages     int
	Failed       int
	Elapsed      time.Duration
}

// Execute drives the run to completion. Window-level failures are
// contained and reflected in the summary; the returned error covers only
// configuration and artifact I/O failures. Every scheduled window gets a
// ledger record even when artifacts fail to write.
func Execute(ctx context.Context, opts Options) (*Summary, error) {
	cfg := opts.Config
	started := time.Now()

	windows, err := cfg.Plan()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputPath, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	results := pipeline.New(cfg, opts.Fetcher, opts.Region).Run(ctx, windows)

	sum := &Summary{Results: results}
	for _, r := range results {
		switch r.Status {
		case pipeline.StatusOK:
			sum.OK++
		case pipeline.StatusNoImages:
			sum.NoImages++
		default:
			sum.Failed++
		}
	}

	// Artifact failures accumulate: one bad write must not stop the
	// remaining artifacts or the ledger.
	var errs *multierror.Error

	if cfg.Mode == schedule.ModeBiweekly {
		sum.Artifacts, err = writeBiweekly(results, cfg)
	} else {
		sum.Artifacts, err = writeMonthly(results, cfg)
	}
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	sum.Records = ledger.Build(results, cfg)
	sum.MetadataPath = filepath.Join(cfg.OutputPath, metadataName(cfg))
	if err := ledger.WriteCSV(sum.MetadataPath, sum.Records); err != nil {
		errs = multierror.Append(errs, err)
	} else {
		log.Printf("run: wrote %d metadata records to %s", len(sum.Records), sum.MetadataPath)
	}

	sum.Elapsed = time.Since(started)
	metrics.RunDuration.Observe(sum.Elapsed.Seconds())

	if opts.Store != nil {
		runRow := store.RunFromResults(cfg, results, started, time.Now())
		if _, err := opts.Store.RecordRun(runRow, cfg, sum.Records); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("record run: %w", err))
		}
	}

	if opts.Publisher != nil && len(sum.Artifacts) > 0 {
		paths := append([]string(nil), sum.Artifacts...)
		paths = append(paths, sum.MetadataPath)
		if err := opts.Publisher.Upload(paths); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("publish: %w", err))
		} else {
			log.Printf("run: published %d files", len(paths))
		}
	}

	log.Printf("run: %d ok, %d no images, %d failed in %.1fs",
		sum.OK, sum.NoImages, sum.Failed, sum.Elapsed.Seconds())
	return sum, errs.ErrorOrNil()
}

func writeBiweekly(results []pipeline.WindowResult, cfg config.Config) ([]string, error) {
	composites, err := assemble.Biweekly(results, cfg)
	if errors.Is(err, assemble.ErrNoData) {
		log.Printf("run: no window produced data, skipping raster artifacts")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var errs *multierror.Error
	var paths []string
	for i := range composites {
		comp := &composites[i]
		name := fmt.Sprintf("%d_BiWeekly_VC_%s.tif", cfg.Year, comp.Label)
		if cfg.ExportNDVI {
			name = fmt.Sprintf("%d_BiWeekly_VC_NDVI_%s.tif", cfg.Year, comp.Label)
		}
		p, err := writeArtifact(comp, cfg, name)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		paths = append(paths, p)
	}
	return paths, errs.ErrorOrNil()
}

func writeMonthly(results []pipeline.WindowResult, cfg config.Config) ([]string, error) {
	comp, err := assemble.Monthly(results, cfg)
	if errors.Is(err, assemble.ErrNoData) {
		log.Printf("run: no window produced data, skipping raster artifacts")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	prefix := "VC"
	if cfg.ExportNDVI {
		prefix = "VC_NDVI"
	}
	name := fmt.Sprintf("%s_Annual_%d_thr_%s_%02d_%02d.tif",
		prefix, cfg.Year, thresholdLabel(cfg.NDVIThreshold), cfg.StartMonth, cfg.EndMonth)
	p, err := writeArtifact(comp, cfg, name)
	if err != nil {
		return nil, err
	}
	return []string{p}, nil
}

func writeArtifact(comp *assemble.Composite, cfg config.Config, name string) (string, error) {
	path := filepath.Join(cfg.OutputPath, name)
	if err := rasterio.WriteGeoTIFF(path, comp); err != nil {
		return "", err
	}
	log.Printf("run: wrote %s (%d bands)", path, len(comp.Bands))

	if cfg.Quicklooks {
		ql := strings.TrimSuffix(path, ".tif") + ".png"
		if err := rasterio.WriteQuicklook(ql, comp); err != nil {
			// Quicklooks are previews; losing one is not an artifact failure.
			log.Printf("run: quicklook failed: %v", err)
		}
	}
	return path, nil
}

func metadataName(cfg config.Config) string {
	base := "Monthly"
	if cfg.Mode == schedule.ModeBiweekly {
		base = "BiWeekly"
	}
	if cfg.ExportNDVI {
		return fmt.Sprintf("%d_%s_VC_NDVI_Metadata.csv", cfg.Year, base)
	}
	return fmt.Sprintf("%d_%s_VC_Metadata.csv", cfg.Year, base)
}

// thresholdLabel renders the threshold for filenames: 0.15 -> "0_15".
func thresholdLabel(t float64) string {
	return strings.ReplaceAll(fmt.Sprintf("%g", t), ".", "_")
}
