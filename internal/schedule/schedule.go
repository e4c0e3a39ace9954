package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange reports a schedule request that cannot produce a valid
// sequence of windows. It is a configuration-level failure: nothing is
// fetched when planning fails.
var ErrInvalidRange = errors.New("invalid range")

// Mode selects the temporal partitioning of a year.
type Mode string

const (
	ModeBiweekly Mode = "biweekly"
	ModeMonthly  Mode = "monthly"
)

// Window is one acquisition period. Start and End are inclusive calendar
// dates (UTC midnight); EndExclusive gives the half-open upper bound used
// for date-range queries. PaddedStart/PaddedEnd widen the candidate search
// in bi-weekly mode; the unpadded bounds remain the semantic period.
type Window struct {
	Mode        Mode
	Index       int // ordinal position in the year: 1..24 bi-weekly, 1..12 monthly
	Start       time.Time
	End         time.Time
	PaddedStart time.Time
	PaddedEnd   time.Time
}

// EndExclusive returns the day after End.
func (w Window) EndExclusive() time.Time {
	return w.End.AddDate(0, 0, 1)
}

// PaddedEndExclusive returns the day after PaddedEnd.
func (w Window) PaddedEndExclusive() time.Time {
	return w.PaddedEnd.AddDate(0, 0, 1)
}

// Label names the window for band naming and metadata. Bi-weekly windows
// are labelled by their start date, monthly windows by year-month, matching
// the band names in the output rasters.
func (w Window) Label() string {
	if w.Mode == ModeMonthly {
		return w.Start.Format("2006-01")
	}
	return w.Start.Format("2006-01-02")
}

// Biweekly plans two windows per calendar month for the first `months`
// months of `year`: days 1-15 and 16 through end of month. Each window's
// padded bounds extend `padDays` days on both sides to admit more candidate
// scenes; the unpadded bounds are what the window means.
func Biweekly(year, months, padDays int) ([]Window, error) {
	if year <= 0 {
		return nil, fmt.Errorf("%w: year %d", ErrInvalidRange, year)
	}
	if months < 1 || months > 12 {
		return nil, fmt.Errorf("%w: months %d not in 1-12", ErrInvalidRange, months)
	}
	if padDays < 0 {
		return nil, fmt.Errorf("%w: acquisition window %d days", ErrInvalidRange, padDays)
	}

	windows := make([]Window, 0, months*2)
	for m := 1; m <= months; m++ {
		first := time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		mid := time.Date(year, time.Month(m), 15, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1) // end of month, leap-aware

		for half, bounds := range [][2]time.Time{{first, mid}, {mid.AddDate(0, 0, 1), last}} {
			w := Window{
				Mode:        ModeBiweekly,
				Index:       (m-1)*2 + half + 1,
				Start:       bounds[0],
				End:         bounds[1],
				PaddedStart: bounds[0].AddDate(0, 0, -padDays),
				PaddedEnd:   bounds[1].AddDate(0, 0, padDays),
			}
			windows = append(windows, w)
		}
	}
	return windows, nil
}

// Monthly plans one window per calendar month in [startMonth, endMonth].
// Monthly windows carry no acquisition padding.
func Monthly(year, startMonth, endMonth int) ([]Window, error) {
	if year <= 0 {
		return nil, fmt.Errorf("%w: year %d", ErrInvalidRange, year)
	}
	if startMonth < 1 || startMonth > 12 || endMonth < 1 || endMonth > 12 {
		return nil, fmt.Errorf("%w: months %d-%d not in 1-12", ErrInvalidRange, startMonth, endMonth)
	}
	if startMonth > endMonth {
		return nil, fmt.Errorf("%w: start month %d after end month %d", ErrInvalidRange, startMonth, endMonth)
	}

	windows := make([]Window, 0, endMonth-startMonth+1)
	for m := startMonth; m <= endMonth; m++ {
		first := time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		windows = append(windows, Window{
			Mode:        ModeMonthly,
			Index:       m,
			Start:       first,
			End:         last,
			PaddedStart: first,
			PaddedEnd:   last,
		})
	}
	return windows, nil
}

// Pair groups two consecutive bi-weekly windows into one output artifact.
type Pair struct {
	Label   string // e.g. "01_02" for windows 1 and 2
	Windows [2]Window
}

// Pairs groups an ordered bi-weekly window sequence two per artifact.
// The sequence length is always even because Biweekly emits whole months.
func Pairs(windows []Window) []Pair {
	pairs := make([]Pair, 0, len(windows)/2)
	for i := 0; i+1 < len(windows); i += 2 {
		a, b := windows[i], windows[i+1]
		pairs = append(pairs, Pair{
			Label:   fmt.Sprintf("%02d_%02d", a.Index, b.Index),
			Windows: [2]Window{a, b},
		})
	}
	return pairs
}
