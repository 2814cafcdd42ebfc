package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seenimoa/bmrs/internal/report"
	"github.com/seenimoa/bmrs/internal/sink"
)

// --- Fetch Command ---

func (a *app) fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download a report over a date range",
		Long: `Download a report over a date range and emit it as one CSV table.

Dates are YYYY-MM-DD and are translated into the report's period style
(settlement dates, months, ISO weeks, years or date-times).

Examples:
  bmrs fetch -r B1770 -s 2021-01-01 -e 2021-01-07 -o prices.csv
  bmrs fetch -r B0640 -s 2021-01-01 -e 2021-03-31 --concurrency 4
  bmrs fetch -r B1630 -s 2021-01-01 -e 2021-01-31 -q --sink postgres`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("report-name")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			outfile, _ := cmd.Flags().GetString("outfile")
			flagKey, _ := cmd.Flags().GetString("api-key")
			sinkKind, _ := cmd.Flags().GetString("sink")
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			for _, f := range []struct{ param, value string }{
				{"report-name", name}, {"start", start}, {"end", end},
			} {
				if strings.TrimSpace(f.value) == "" {
					return &report.InvalidParameterError{Param: f.param, Reason: "required"}
				}
			}
			if strings.EqualFold(sinkKind, sink.KindFile) {
				sinkKind = ""
			}

			key, err := a.apiKey(flagKey)
			if err != nil {
				return err
			}
			log := a.logger()
			d, err := a.newDownloader(key, concurrency, log)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			res, err := d.DownloadDates(ctx, name, start, end)
			if err != nil {
				return err
			}
			target := sink.Target{Report: res.Report.Name, RunID: res.RunID}

			if outfile != "" {
				where, err := (&sink.File{Path: outfile}).Write(ctx, target, res.Table)
				if err != nil {
					return fmt.Errorf("write %s: %w", outfile, err)
				}
				log.Info().Str("run_id", res.RunID).Str("path", where).Int("rows", res.Table.Len()).Msg("report written")
			}

			if sinkKind != "" {
				s, err := sink.Open(ctx, sinkKind, sink.Options{
					PostgresDSN:    a.cfg.Sinks.Postgres.DSN,
					PostgresSchema: a.cfg.Sinks.Postgres.Schema,
					S3Bucket:       a.cfg.Sinks.S3.Bucket,
					S3Region:       a.cfg.Sinks.S3.Region,
					S3Prefix:       a.cfg.Sinks.S3.Prefix,
				})
				if err != nil {
					return fmt.Errorf("open %s sink: %w", sinkKind, err)
				}
				defer s.Close()

				where, err := s.Write(ctx, target, res.Table)
				if err != nil {
					return fmt.Errorf("write %s sink: %w", sinkKind, err)
				}
				log.Info().Str("run_id", res.RunID).Str("sink", sinkKind).Str("location", where).Msg("stored")
			}

			if outfile == "" && sinkKind == "" && !a.quiet {
				return res.Table.WriteCSV(a.stdout)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("report-name", "r", "", "report name, e.g. B1770")
	f.StringP("start", "s", "", "first day of the range (YYYY-MM-DD)")
	f.StringP("end", "e", "", "last day of the range (YYYY-MM-DD), inclusive")
	f.BoolP("quiet", "q", false, "suppress logging, error messages and stdout output")
	f.StringP("outfile", "o", "", "write CSV to this file atomically; a directory gets <REPORT>_<run_id>.csv")
	f.StringP("api-key", "k", "", "BMRS API key (default from config or credentials file)")
	f.String("sink", "", "additional destination: postgres or s3")
	f.Int("concurrency", 0, "windows fetched at once (default from config)")
	return cmd
}

// --- Reports Command ---

func (a *app) reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List the supported reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := report.DefaultCatalog()
			list := catalog.List()
			if style, _ := cmd.Flags().GetString("style"); style != "" {
				ps, err := report.ParsePeriodStyle(style)
				if err != nil {
					return &report.InvalidParameterError{Param: "style", Value: style, Reason: err.Error()}
				}
				list = catalog.ByStyle(ps)
			}
			for _, d := range list {
				fmt.Fprintf(a.stdout, "%-7s %-11s %s\n", d.Name, d.Style, d.Description)
			}
			return nil
		},
	}
	cmd.Flags().String("style", "", "only list reports of this period style")
	return cmd
}

// --- Plan Command ---

func (a *app) planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the request windows a fetch would issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("report-name")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")

			p, err := a.newPlanner()
			if err != nil {
				return err
			}
			windows, err := p.PlanDates(name, start, end)
			if err != nil {
				return err
			}
			for i, w := range windows {
				from, to := w.Labels()
				fmt.Fprintf(a.stdout, "%4d  %-20s %-20s %s\n", i+1, from, to, w.Values().Encode())
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringP("report-name", "r", "", "report name, e.g. B1770")
	f.StringP("start", "s", "", "first day of the range (YYYY-MM-DD)")
	f.StringP("end", "e", "", "last day of the range (YYYY-MM-DD), inclusive")
	return cmd
}
