package bmrs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/bmrs/internal/infra"
	"github.com/seenimoa/bmrs/internal/report"
	"github.com/seenimoa/bmrs/internal/sink"
	"github.com/seenimoa/bmrs/pkg/models"
)

// FetchWindow issues the GET for one window and parses the response. Any
// failure is returned as a *report.FetchError naming w.
func (c *Client) FetchWindow(ctx context.Context, w report.Window) (*models.Table, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &report.FetchError{Window: w, Err: fmt.Errorf("rate limit: %w", err)}
	}

	u := c.WindowURL(w)
	start := time.Now()
	body, status, err := infra.DoGet(ctx, c.http, u, nil, apiKeyParam)
	if err != nil {
		c.log.Debug().Str("window", w.String()).Int("status", status).Err(err).Msg("window request failed")
		var he *infra.ErrHTTP
		if errors.As(err, &he) {
			status = he.StatusCode
		}
		return nil, &report.FetchError{Window: w, StatusCode: status, Err: err}
	}

	t, err := ParseBody(body)
	if err != nil {
		return nil, &report.FetchError{Window: w, StatusCode: status, Err: err}
	}
	c.log.Debug().
		Str("window", w.String()).
		Str("url", redacted(u)).
		Int("rows", t.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("window fetched")
	return t, nil
}

// Progress describes one completed window of a FetchAll call.
type Progress struct {
	Index  int
	Total  int
	Window report.Window
	Rows   int
}

type progressKey struct{}

// WithProgress returns a context under which FetchAll calls fn after each
// window is fetched. With concurrency above one, fn is called from several
// goroutines and completion order may differ from window order.
func WithProgress(ctx context.Context, fn func(Progress)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// FetchAll fetches every window and concatenates the rows in window order.
// Up to Concurrency windows are in flight at once; the result is the same
// as fetching them one after another. The first failure aborts the whole
// call and nothing assembled so far is returned.
func (c *Client) FetchAll(ctx context.Context, windows []report.Window) (*models.Table, error) {
	parts := make([]*models.Table, len(windows))
	progress, _ := ctx.Value(progressKey{}).(func(Progress))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, w := range windows {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			t, err := c.FetchWindow(gctx, w)
			if err != nil {
				return err
			}
			parts[i] = t
			if progress != nil {
				progress(Progress{Index: i, Total: len(windows), Window: w, Rows: t.Len()})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return assemble(windows, parts)
}

// assemble concatenates parts in order. Windows without columns contribute
// nothing; every other window must share the first window's columns.
func assemble(windows []report.Window, parts []*models.Table) (*models.Table, error) {
	out := &models.Table{}
	for i, part := range parts {
		if part == nil || len(part.Columns) == 0 {
			continue
		}
		if len(out.Columns) > 0 && !out.SameColumns(part.Columns) {
			return nil, &report.FetchError{
				Window: windows[i],
				Err: fmt.Errorf("%w: got [%s], want [%s]", ErrHeaderMismatch,
					strings.Join(part.Columns, ","), strings.Join(out.Columns, ",")),
			}
		}
		if err := out.AppendTable(part); err != nil {
			return nil, &report.FetchError{Window: windows[i], Err: err}
		}
	}
	return out, nil
}

// FetchAllToFile fetches every window and writes the assembled table to path
// as CSV. The file is replaced atomically and only once every window has
// succeeded; on failure path is left untouched.
func (c *Client) FetchAllToFile(ctx context.Context, windows []report.Window, path string) (*models.Table, error) {
	t, err := c.FetchAll(ctx, windows)
	if err != nil {
		return nil, err
	}
	if err := sink.WriteFileAtomic(path, t.WriteCSV); err != nil {
		return nil, err
	}
	c.log.Info().Str("path", path).Int("rows", t.Len()).Msg("report written")
	return t, nil
}
