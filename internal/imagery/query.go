package imagery

import (
	"encoding/json"

	"github.com/urbanveg/vcover/internal/config"
	"github.com/urbanveg/vcover/internal/schedule"
)

// Band names requested from the collection. Red and near-infrared feed the
// index computation; the cloud-probability band drives server-side masking.
const (
	BandRed       = "B4"
	BandNIR       = "B8"
	BandCloudProb = "MSK_CLDPRB"
)

// QuerySpec is the immutable filter/mask/reduce request for one temporal
// window. Identical configuration and window always produce an identical
// spec; it is passed by value to the remote fetch and never reused.
type QuerySpec struct {
	Collection string `json:"collection"`

	// Half-open candidate date range. For bi-weekly windows these are the
	// padded bounds; the unpadded window stays the semantic period and is
	// recorded in metadata, not here.
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`

	Region json.RawMessage `json:"region"`

	// Whole-scene candidate filter and per-pixel mask rule, both applied
	// server-side before the composite reduction.
	CloudCoverMax       int    `json:"cloudCoverMax"`
	MaskBand            string `json:"maskBand"`
	CloudProbabilityMax int    `json:"cloudProbabilityMax"`

	Bands   []string `json:"bands"`
	Reducer string   `json:"reducer"`

	CRS   string `json:"crs"`
	Scale int    `json:"scale"`
	DType string `json:"dtype"`
}

// BuildQuery derives the QuerySpec for one window from the active
// configuration and a resolved region geometry.
func BuildQuery(w schedule.Window, cfg config.Config, region json.RawMessage) QuerySpec {
	return QuerySpec{
		Collection:          cfg.Collection,
		StartDate:           w.PaddedStart.Format("2006-01-02"),
		EndDate:             w.PaddedEndExclusive().Format("2006-01-02"),
		Region:              region,
		CloudCoverMax:       cfg.CloudCoverMax,
		MaskBand:            BandCloudProb,
		CloudProbabilityMax: cfg.CloudProbabilityMax,
		Bands:               []string{BandRed, BandNIR},
		Reducer:             "median",
		CRS:                 cfg.CRS,
		Scale:               cfg.Scale,
		DType:               cfg.DType,
	}
}
