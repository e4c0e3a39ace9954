// Package ledger is the authoritative record of a run: one row per
// scheduled window regardless of outcome, serialized once at completion.
package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urbanveg/vcover/internal/config"
	"github.com/urbanveg/vcover/internal/pipeline"
)

// Quality flags recorded alongside a window's status.
const (
	FlagMasked      = "masked"       // window contributes a sentinel band
	FlagLowCoverage = "low_coverage" // under half the pixels carry data
)

// maxSourceIDs caps the source-image list in a record; the full candidate
// set can run to hundreds of scene ids per window.
const maxSourceIDs = 10

// Record is one ledger row. Dates are formatted; the ledger is a flat
// artifact for spreadsheets and joins, not an interchange format.
type Record struct {
	WindowIndex      int
	Mode             string
	Label            string
	PeriodStart      string
	PeriodEnd        string
	AcquisitionStart string
	AcquisitionEnd   string
	ImageCount       int
	SourceImages     string
	CloudCoverMax    int
	CloudMin         float64
	CloudMax         float64
	CloudMean        float64
	NDVIThreshold    float64
	Status           string
	QualityFlags     string
	ValidFraction    float64
	CoverFraction    float64
	NDVIMean         float64
	ProcessedAt      string
}

// FromResult derives the record for one window result. The semantic period
// is the unpadded window; the acquisition range is what was actually
// searched.
func FromResult(r pipeline.WindowResult, cfg config.Config) Record {
	rec := Record{
		WindowIndex:      r.Window.Index,
		Mode:             string(r.Window.Mode),
		Label:            r.Window.Label(),
		PeriodStart:      r.Window.Start.Format("2006-01-02"),
		PeriodEnd:        r.Window.End.Format("2006-01-02"),
		AcquisitionStart: r.Window.PaddedStart.Format("2006-01-02"),
		AcquisitionEnd:   r.Window.PaddedEnd.Format("2006-01-02"),
		ImageCount:       r.SourceImageCount,
		SourceImages:     truncateIDs(r.SourceImageIDs),
		CloudCoverMax:    cfg.CloudCoverMax,
		CloudMin:         r.CloudMin,
		CloudMax:         r.CloudMax,
		CloudMean:        r.CloudMean,
		NDVIThreshold:    cfg.NDVIThreshold,
		Status:           string(r.Status),
		ValidFraction:    r.Stats.ValidFraction,
		CoverFraction:    r.Stats.CoverFraction,
		NDVIMean:         r.Stats.NDVIMean,
		ProcessedAt:      r.ProcessedAt.Format("2006-01-02 15:04:05"),
	}

	var flags []string
	if r.Status != pipeline.StatusOK {
		flags = append(flags, FlagMasked)
	} else if r.Stats.ValidFraction < 0.5 {
		flags = append(flags, FlagLowCoverage)
	}
	rec.QualityFlags = strings.Join(flags, ";")
	return rec
}

// Build produces the full record sequence from sorted window results.
func Build(results []pipeline.WindowResult, cfg config.Config) []Record {
	records := make([]Record, len(results))
	for i, r := range results {
		records[i] = FromResult(r, cfg)
	}
	return records
}

func truncateIDs(ids []string) string {
	if len(ids) <= maxSourceIDs {
		return strings.Join(ids, ", ")
	}
	return strings.Join(ids[:maxSourceIDs], ", ") + "..."
}

var csvHeader = []string{
	"Window_Index", "Mode", "Label",
	"Period_Start", "Period_End", "Acquisition_Start", "Acquisition_End",
	"Image_Count", "Source_Images",
	"Cloud_Cover_Max", "Cloud_Min", "Cloud_Max", "Cloud_Mean",
	"NDVI_Threshold", "Status", "Quality_Flags",
	"Valid_Fraction", "Cover_Fraction", "NDVI_Mean", "Processing_Date",
}

// WriteCSV serializes the ledger exactly once, at run completion. Failure
// is an artifact-level IO error; already-written rasters are unaffected.
func WriteCSV(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			strconv.Itoa(rec.WindowIndex), rec.Mode, rec.Label,
			rec.PeriodStart, rec.PeriodEnd, rec.AcquisitionStart, rec.AcquisitionEnd,
			strconv.Itoa(rec.ImageCount), rec.SourceImages,
			strconv.Itoa(rec.CloudCoverMax),
			formatFloat(rec.CloudMin), formatFloat(rec.CloudMax), formatFloat(rec.CloudMean),
			formatFloat(rec.NDVIThreshold), rec.Status, rec.QualityFlags,
			formatFloat(rec.ValidFraction), formatFloat(rec.CoverFraction), formatFloat(rec.NDVIMean),
			rec.ProcessedAt,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", rec.WindowIndex, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush metadata file: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
