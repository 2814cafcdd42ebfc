package bmrs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seenimoa/bmrs/internal/planner"
	"github.com/seenimoa/bmrs/internal/report"
	"github.com/seenimoa/bmrs/pkg/models"
)

// Result is the outcome of one download run.
type Result struct {
	RunID   string
	Report  report.Descriptor
	Windows []report.Window
	Table   *models.Table
	Elapsed time.Duration
}

// Downloader plans and fetches a report in one call.
type Downloader struct {
	planner *planner.Planner
	client  *Client
	log     zerolog.Logger
}

// NewDownloader combines a planner and a client.
func NewDownloader(p *planner.Planner, c *Client, log zerolog.Logger) *Downloader {
	return &Downloader{planner: p, client: c, log: log}
}

// Planner returns the downloader's planner.
func (d *Downloader) Planner() *planner.Planner { return d.planner }

// Download plans name over params and fetches every window.
func (d *Downloader) Download(ctx context.Context, name string, params report.Params) (*Result, error) {
	return d.run(ctx, name, func(desc report.Descriptor) ([]report.Window, error) {
		return d.planner.PlanStyle(desc.Name, desc.Style, params)
	}, "")
}

// DownloadDates is Download for a pair of YYYY-MM-DD dates, translated into
// the report's period style.
func (d *Downloader) DownloadDates(ctx context.Context, name, start, end string) (*Result, error) {
	return d.run(ctx, name, func(desc report.Descriptor) ([]report.Window, error) {
		params, err := planner.ParseDates(desc.Style, start, end)
		if err != nil {
			return nil, err
		}
		return d.planner.PlanStyle(desc.Name, desc.Style, params)
	}, "")
}

// DownloadToFile is Download followed by an atomic CSV write to path.
func (d *Downloader) DownloadToFile(ctx context.Context, name string, params report.Params, path string) (*Result, error) {
	return d.run(ctx, name, func(desc report.Descriptor) ([]report.Window, error) {
		return d.planner.PlanStyle(desc.Name, desc.Style, params)
	}, path)
}

// DownloadDatesToFile is DownloadDates followed by an atomic CSV write to path.
func (d *Downloader) DownloadDatesToFile(ctx context.Context, name, start, end, path string) (*Result, error) {
	return d.run(ctx, name, func(desc report.Descriptor) ([]report.Window, error) {
		params, err := planner.ParseDates(desc.Style, start, end)
		if err != nil {
			return nil, err
		}
		return d.planner.PlanStyle(desc.Name, desc.Style, params)
	}, path)
}

func (d *Downloader) run(ctx context.Context, name string, plan func(report.Descriptor) ([]report.Window, error), path string) (*Result, error) {
	desc, err := d.planner.Catalog().Lookup(name)
	if err != nil {
		return nil, err
	}
	windows, err := plan(desc)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.NewString(), Report: desc, Windows: windows}
	log := d.log.With().Str("run_id", res.RunID).Str("report", desc.Name).Logger()
	log.Info().
		Str("style", desc.Style.String()).
		Int("windows", len(windows)).
		Int("concurrency", d.client.Concurrency()).
		Msg("download started")

	start := time.Now()
	var t *models.Table
	if path != "" {
		t, err = d.client.FetchAllToFile(ctx, windows, path)
	} else {
		t, err = d.client.FetchAll(ctx, windows)
	}
	res.Elapsed = time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", res.Elapsed).Msg("download failed")
		return nil, err
	}
	res.Table = t

	log.Info().Int("rows", t.Len()).Dur("elapsed", res.Elapsed).Msg("download finished")
	return res, nil
}
