package assemble

import (
	"errors"
	"testing"

	"github.com/urbanveg/vcover/internal/config"
	"github.com/urbanveg/vcover/internal/pipeline"
	"github.com/urbanveg/vcover/internal/raster"
	"github.com/urbanveg/vcover/internal/schedule"
)

func okResult(w schedule.Window) pipeline.WindowResult {
	vc := raster.New(2, 2)
	ndvi := raster.New(2, 2)
	for i := range vc.Data {
		vc.Set(i, 1)
		ndvi.Set(i, 0.5)
	}
	return pipeline.WindowResult{Window: w, Status: pipeline.StatusOK, VC: vc, NDVI: ndvi}
}

func failedResult(w schedule.Window, status pipeline.Status) pipeline.WindowResult {
	return pipeline.WindowResult{Window: w, Status: status}
}

func monthlyResults(t *testing.T, year, start, end int) []pipeline.WindowResult {
	t.Helper()
	windows, err := schedule.Monthly(year, start, end)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	results := make([]pipeline.WindowResult, len(windows))
	for i, w := range windows {
		results[i] = okResult(w)
	}
	return results
}

func TestMonthlyBandCountEqualsScheduledWindows(t *testing.T) {
	results := monthlyResults(t, 2024, 4, 9)

	cfg := config.Default(schedule.ModeMonthly)
	comp, err := Monthly(results, cfg)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if len(comp.Bands) != 6 {
		t.Errorf("len(Bands) = %d, want 6", len(comp.Bands))
	}

	cfg.ExportNDVI = true
	comp, err = Monthly(results, cfg)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if len(comp.Bands) != 12 {
		t.Errorf("len(Bands) with NDVI = %d, want 12", len(comp.Bands))
	}
	// Interleaved: VC then NDVI per window, non-decreasing window index.
	for i := 0; i < len(comp.Bands); i += 2 {
		if comp.Bands[i].WindowIndex != comp.Bands[i+1].WindowIndex {
			t.Errorf("bands %d,%d belong to different windows", i, i+1)
		}
		if i > 0 && comp.Bands[i].WindowIndex <= comp.Bands[i-1].WindowIndex {
			t.Errorf("band %d window index not increasing", i)
		}
	}
	if comp.Bands[0].Name != "2024-04_vc" || comp.Bands[1].Name != "2024-04_ndvi" {
		t.Errorf("band names = %q, %q", comp.Bands[0].Name, comp.Bands[1].Name)
	}
}

func TestMonthlySentinelBand(t *testing.T) {
	results := monthlyResults(t, 2024, 4, 9)
	results[2] = failedResult(results[2].Window, pipeline.StatusFetchError)

	comp, err := Monthly(results, config.Default(schedule.ModeMonthly))
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if len(comp.Bands) != 6 {
		t.Fatalf("len(Bands) = %d, want 6: failed windows must keep their slot", len(comp.Bands))
	}

	sentinel := comp.Bands[2].Grid
	if sentinel == nil {
		t.Fatal("failed window has nil grid")
	}
	if sentinel.Width != 2 || sentinel.Height != 2 {
		t.Errorf("sentinel shape %dx%d, want 2x2 from sibling windows", sentinel.Width, sentinel.Height)
	}
	if sentinel.ValidFraction() != 0 {
		t.Error("sentinel band has valid pixels, want fully masked")
	}
	if comp.Bands[2].WindowIndex != 6 {
		t.Errorf("sentinel WindowIndex = %d, want 6", comp.Bands[2].WindowIndex)
	}
}

func TestMonthlyAllFailed(t *testing.T) {
	results := monthlyResults(t, 2024, 4, 6)
	for i := range results {
		results[i] = failedResult(results[i].Window, pipeline.StatusNoImages)
	}
	_, err := Monthly(results, config.Default(schedule.ModeMonthly))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func biweeklyResults(t *testing.T, months int) []pipeline.WindowResult {
	t.Helper()
	windows, err := schedule.Biweekly(2025, months, 21)
	if err != nil {
		t.Fatalf("Biweekly: %v", err)
	}
	results := make([]pipeline.WindowResult, len(windows))
	for i, w := range windows {
		results[i] = okResult(w)
	}
	return results
}

func TestBiweeklyOneArtifactPerPair(t *testing.T) {
	results := biweeklyResults(t, 2)

	cfg := config.Default(schedule.ModeBiweekly)
	artifacts, err := Biweekly(results, cfg)
	if err != nil {
		t.Fatalf("Biweekly: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("len(artifacts) = %d, want 2 for two months", len(artifacts))
	}
	for i, label := range []string{"01_02", "03_04"} {
		if artifacts[i].Label != label {
			t.Errorf("artifact %d label = %q, want %q", i, artifacts[i].Label, label)
		}
		if len(artifacts[i].Bands) != 2 {
			t.Errorf("artifact %d band count = %d, want 2", i, len(artifacts[i].Bands))
		}
	}

	cfg.ExportNDVI = true
	artifacts, err = Biweekly(results, cfg)
	if err != nil {
		t.Fatalf("Biweekly: %v", err)
	}
	if len(artifacts[0].Bands) != 4 {
		t.Errorf("len(Bands) with NDVI = %d, want 4", len(artifacts[0].Bands))
	}
}

func TestBiweeklyPairWithBothWindowsFailed(t *testing.T) {
	results := biweeklyResults(t, 2)
	results[0] = failedResult(results[0].Window, pipeline.StatusFetchError)
	results[1] = failedResult(results[1].Window, pipeline.StatusNoImages)

	// Pair 01_02 entirely failed, 03_04 fine; the failed pair still gets
	// full band cardinality, shaped from sibling windows.
	artifacts, err := Biweekly(results, config.Default(schedule.ModeBiweekly))
	if err != nil {
		t.Fatalf("Biweekly: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("len(artifacts) = %d, want 2", len(artifacts))
	}
	for _, b := range artifacts[0].Bands {
		if b.Grid.ValidFraction() != 0 {
			t.Errorf("band %s of failed pair has valid pixels", b.Name)
		}
	}
	if len(artifacts[0].Bands) != 2 {
		t.Errorf("failed pair band count = %d, want 2", len(artifacts[0].Bands))
	}
}

func TestBiweeklyAllFailed(t *testing.T) {
	results := biweeklyResults(t, 1)
	for i := range results {
		results[i] = failedResult(results[i].Window, pipeline.StatusFetchError)
	}
	_, err := Biweekly(results, config.Default(schedule.ModeBiweekly))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}
