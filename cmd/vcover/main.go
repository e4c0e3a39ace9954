package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	_ "modernc.org/sqlite"

	"github.com/urbanveg/vcover/internal/config"
	"github.com/urbanveg/vcover/internal/imagery"
	"github.com/urbanveg/vcover/internal/metrics"
	"github.com/urbanveg/vcover/internal/publish"
	"github.com/urbanveg/vcover/internal/run"
	"github.com/urbanveg/vcover/internal/schedule"
	"github.com/urbanveg/vcover/internal/store"
)

// Globals are shared by every subcommand. Credentials and endpoints come
// from flags, the environment, or a .env file, in that order.
type Globals struct {
	Endpoint       string `env:"VCOVER_ENDPOINT" default:"https://imagery.example.com" help:"Imagery service base URL."`
	ServiceAccount string `env:"VCOVER_SERVICE_ACCOUNT" help:"Service account email."`
	KeyFile        string `env:"VCOVER_KEY_FILE" help:"Path to the service account key file."`
	DB             string `env:"VCOVER_DB" default:"data/vcover.db" help:"Path to the run-history SQLite database."`
	MetricsAddr    string `env:"VCOVER_METRICS_ADDR" help:"Serve Prometheus metrics on this address while running."`
	Publish        string `env:"VCOVER_PUBLISH" help:"FTP URL to upload artifacts to after the run."`
}

// acquisitionFlags are the options both processing modes share.
type acquisitionFlags struct {
	NDVIThreshold     float64 `default:"0.15" help:"Vegetation threshold applied to NDVI."`
	CloudProbability  int     `name:"cloud-probability-max" default:"40" help:"Per-pixel cloud probability mask ceiling, percent."`
	MaxWorkers        int     `default:"4" help:"Concurrent acquisition tasks."`
	ExportNDVI        bool    `help:"Interleave an NDVI band after each VC band."`
	MetroAsset        string  `env:"VCOVER_METRO_ASSET" help:"Asset id of the metropolitan region geometry."`
	AOIAsset          string  `env:"VCOVER_AOI_ASSET" help:"Optional asset id overriding the region of interest."`
	Collection        string  `default:"COPERNICUS/S2_HARMONIZED" help:"Source image collection."`
	CRS               string  `default:"EPSG:32638" help:"Output coordinate reference system."`
	Scale             int     `default:"10" help:"Output resolution in meters."`
	DType             string  `default:"float32" help:"Output pixel type."`
	OutputPath        string  `default:"output" help:"Directory for rasters and metadata."`
	Quicklooks        bool    `help:"Write a PNG preview next to each raster."`
}

func (f acquisitionFlags) apply(cfg *config.Config) {
	cfg.NDVIThreshold = f.NDVIThreshold
	cfg.CloudProbabilityMax = f.CloudProbability
	cfg.MaxWorkers = f.MaxWorkers
	cfg.ExportNDVI = f.ExportNDVI
	cfg.MetroAsset = f.MetroAsset
	cfg.AOIAsset = f.AOIAsset
	cfg.Collection = f.Collection
	cfg.CRS = f.CRS
	cfg.Scale = f.Scale
	cfg.DType = f.DType
	cfg.OutputPath = f.OutputPath
	cfg.Quicklooks = f.Quicklooks
}

// BiweeklyCmd processes two windows per month, days 1-15 and 16 to end of
// month, for the first N months of the year.
type BiweeklyCmd struct {
	Year              int `default:"2025" help:"Year to process."`
	Months            int `default:"12" help:"Number of months to process, starting January."`
	CloudCoverMax     int `default:"40" help:"Whole-scene cloud cover ceiling, percent."`
	AcquisitionWindow int `default:"21" help:"Days of candidate-search padding on each side of a window."`
	acquisitionFlags
}

func (c *BiweeklyCmd) Run(g *Globals) error {
	cfg := config.Default(schedule.ModeBiweekly)
	cfg.Year = c.Year
	cfg.Months = c.Months
	cfg.CloudCoverMax = c.CloudCoverMax
	cfg.AcquisitionWindow = c.AcquisitionWindow
	c.acquisitionFlags.apply(&cfg)
	return execute(g, cfg)
}

// MonthlyCmd processes one window per calendar month in a range.
type MonthlyCmd struct {
	Year          int `default:"2025" help:"Year to process."`
	StartMonth    int `default:"1" help:"First month of the range."`
	EndMonth      int `default:"12" help:"Last month of the range."`
	CloudCoverMax int `default:"15" help:"Whole-scene cloud cover ceiling, percent."`
	acquisitionFlags
}

func (c *MonthlyCmd) Run(g *Globals) error {
	cfg := config.Default(schedule.ModeMonthly)
	cfg.Year = c.Year
	cfg.StartMonth = c.StartMonth
	cfg.EndMonth = c.EndMonth
	cfg.CloudCoverMax = c.CloudCoverMax
	c.acquisitionFlags.apply(&cfg)
	return execute(g, cfg)
}

// HistoryCmd lists recent runs from the history database.
type HistoryCmd struct {
	Limit int `default:"10" help:"Number of runs to show."`
}

func (c *HistoryCmd) Run(g *Globals) error {
	st, db, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := st.RecentRuns(c.Limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tYEAR\tMONTHS\tSTARTED\tWINDOWS\tOK\tNO IMAGES\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%d\t%02d-%02d\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.Mode, r.Year, r.StartMonth, r.EndMonth,
			r.StartedAt.Format("2006-01-02 15:04"),
			r.WindowsTotal, r.WindowsOK, r.WindowsNoImages, r.WindowsFailed)
	}
	return w.Flush()
}

func execute(g *Globals, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if g.ServiceAccount == "" || g.KeyFile == "" {
		return fmt.Errorf("%w: service account and key file required", config.ErrInvalid)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := imagery.NewClient(g.Endpoint)
	if err := client.Authenticate(ctx, g.ServiceAccount, g.KeyFile); err != nil {
		return err
	}

	asset := cfg.MetroAsset
	if cfg.AOIAsset != "" {
		asset = cfg.AOIAsset
	}
	region, err := client.ResolveRegion(ctx, asset)
	if err != nil {
		return err
	}

	st, db, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	var publisher *publish.FTPPublisher
	if g.Publish != "" {
		publisher, err = publish.NewFTP(g.Publish)
		if err != nil {
			return err
		}
	}

	if g.MetricsAddr != "" {
		go metrics.Serve(ctx, g.MetricsAddr)
	}

	log.Printf("vcover: %s run, year %d, %d windows, %d workers",
		cfg.Mode, cfg.Year, cfg.WindowCount(), cfg.MaxWorkers)

	sum, err := run.Execute(ctx, run.Options{
		Config:    cfg,
		Fetcher:   client,
		Region:    region,
		Store:     st,
		Publisher: publisher,
	})
	if err != nil {
		return err
	}

	// Window-level failures are part of a normal run; they are already in
	// the summary and the ledger. The process only fails on fatal errors.
	fmt.Printf("%d windows: %d ok, %d no images, %d failed\n",
		len(sum.Results), sum.OK, sum.NoImages, sum.Failed)
	for _, p := range sum.Artifacts {
		fmt.Println(p)
	}
	fmt.Println(sum.MetadataPath)
	return nil
}

func openStore(path string) (*store.Store, *sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, db, nil
}

var cli struct {
	Globals

	Biweekly BiweeklyCmd `cmd:"" help:"Produce bi-weekly vegetation cover composites."`
	Monthly  MonthlyCmd  `cmd:"" help:"Produce monthly vegetation cover composites."`
	History  HistoryCmd  `cmd:"" help:"List recent runs."`
}

func main() {
	k := kong.Parse(&cli,
		kong.Name("vcover"),
		kong.Description("Vegetation cover compositing from cloud-filtered satellite imagery."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)
	if err := k.Run(&cli.Globals); err != nil {
		log.Fatalf("vcover: %v", err)
	}
}
