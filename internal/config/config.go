package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/urbanveg/vcover/internal/schedule"
)

// ErrInvalid marks configuration-level failures. They are fatal: a run
// aborts on them before any window task starts.
var ErrInvalid = errors.New("invalid configuration")

// Defaults shared by both modes. Cloud cover differs per mode because
// bi-weekly windows have fewer candidate scenes and tolerate hazier ones.
const (
	DefaultNDVIThreshold        = 0.15
	DefaultCloudCoverBiweekly   = 40
	DefaultCloudCoverMonthly    = 15
	DefaultAcquisitionWindow    = 21
	DefaultMaxWorkers           = 4
	DefaultCRS                  = "EPSG:32638"
	DefaultScale                = 10
	DefaultDType                = "float32"
	DefaultCollection           = "COPERNICUS/S2_HARMONIZED"
	DefaultCloudProbabilityMax  = 40
)

// Config is the immutable per-run configuration. It is constructed once by
// the CLI layer and passed by value to every component; nothing mutates it
// after Validate.
type Config struct {
	Mode schedule.Mode
	Year int

	// Bi-weekly: process this many months starting January.
	Months int
	// Monthly: process [StartMonth, EndMonth].
	StartMonth int
	EndMonth   int

	NDVIThreshold       float64
	CloudCoverMax       int // whole-scene cloud cover ceiling, percent
	CloudProbabilityMax int // per-pixel mask threshold, percent
	AcquisitionWindow   int // days of padding, bi-weekly only
	MaxWorkers          int
	ExportNDVI          bool

	Collection string
	MetroAsset string
	AOIAsset   string

	CRS        string
	Scale      int
	DType      string
	OutputPath string

	Quicklooks bool
}

// Default returns the documented defaults for a mode. Callers override
// individual fields before Validate; an option not supplied keeps its
// default.
func Default(mode schedule.Mode) Config {
	cfg := Config{
		Mode:                mode,
		Year:                2025,
		Months:              12,
		StartMonth:          1,
		EndMonth:            12,
		NDVIThreshold:       DefaultNDVIThreshold,
		CloudProbabilityMax: DefaultCloudProbabilityMax,
		AcquisitionWindow:   DefaultAcquisitionWindow,
		MaxWorkers:          DefaultMaxWorkers,
		Collection:          DefaultCollection,
		CRS:                 DefaultCRS,
		Scale:               DefaultScale,
		DType:               DefaultDType,
		OutputPath:          "output",
	}
	if mode == schedule.ModeBiweekly {
		cfg.CloudCoverMax = DefaultCloudCoverBiweekly
	} else {
		cfg.CloudCoverMax = DefaultCloudCoverMonthly
	}
	return cfg
}

// Validate checks every option against its documented range. It runs
// before authentication and scheduling so a bad run fails fast.
func (c Config) Validate() error {
	switch c.Mode {
	case schedule.ModeBiweekly, schedule.ModeMonthly:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalid, c.Mode)
	}
	if c.Year <= 0 {
		return fmt.Errorf("%w: year %d", ErrInvalid, c.Year)
	}
	if c.Mode == schedule.ModeBiweekly {
		if c.Months < 1 || c.Months > 12 {
			return fmt.Errorf("%w: months %d not in 1-12", ErrInvalid, c.Months)
		}
	} else {
		if c.StartMonth < 1 || c.StartMonth > 12 || c.EndMonth < 1 || c.EndMonth > 12 {
			return fmt.Errorf("%w: month range %d-%d not in 1-12", ErrInvalid, c.StartMonth, c.EndMonth)
		}
		if c.StartMonth > c.EndMonth {
			return fmt.Errorf("%w: start month %d after end month %d", ErrInvalid, c.StartMonth, c.EndMonth)
		}
	}
	if c.NDVIThreshold < -1 || c.NDVIThreshold > 1 {
		return fmt.Errorf("%w: ndvi threshold %g not in [-1, 1]", ErrInvalid, c.NDVIThreshold)
	}
	if c.CloudCoverMax < 0 || c.CloudCoverMax > 100 {
		return fmt.Errorf("%w: cloud cover max %d not in 0-100", ErrInvalid, c.CloudCoverMax)
	}
	if c.CloudProbabilityMax < 0 || c.CloudProbabilityMax > 100 {
		return fmt.Errorf("%w: cloud probability max %d not in 0-100", ErrInvalid, c.CloudProbabilityMax)
	}
	if c.AcquisitionWindow < 0 {
		return fmt.Errorf("%w: acquisition window %d days", ErrInvalid, c.AcquisitionWindow)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("%w: max workers %d", ErrInvalid, c.MaxWorkers)
	}
	if c.Scale <= 0 {
		return fmt.Errorf("%w: scale %d meters", ErrInvalid, c.Scale)
	}
	if c.DType != "float32" {
		return fmt.Errorf("%w: unsupported dtype %q", ErrInvalid, c.DType)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalid)
	}
	if c.MetroAsset == "" {
		return fmt.Errorf("%w: metro asset required", ErrInvalid)
	}
	if _, err := c.EPSGCode(); err != nil {
		return err
	}
	return nil
}

// Plan builds the run's window schedule from the validated configuration.
func (c Config) Plan() ([]schedule.Window, error) {
	var (
		windows []schedule.Window
		err     error
	)
	if c.Mode == schedule.ModeBiweekly {
		windows, err = schedule.Biweekly(c.Year, c.Months, c.AcquisitionWindow)
	} else {
		windows, err = schedule.Monthly(c.Year, c.StartMonth, c.EndMonth)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return windows, nil
}

// EPSGCode parses the numeric code out of the configured CRS.
func (c Config) EPSGCode() (int, error) {
	s, ok := strings.CutPrefix(c.CRS, "EPSG:")
	if !ok {
		return 0, fmt.Errorf("%w: crs %q must be EPSG:<code>", ErrInvalid, c.CRS)
	}
	code, err := strconv.Atoi(s)
	if err != nil || code <= 0 {
		return 0, fmt.Errorf("%w: crs %q must be EPSG:<code>", ErrInvalid, c.CRS)
	}
	return code, nil
}

// WindowCount reports how many windows the configuration schedules,
// without building them.
func (c Config) WindowCount() int {
	if c.Mode == schedule.ModeBiweekly {
		return c.Months * 2
	}
	return c.EndMonth - c.StartMonth + 1
}
