// Package sink persists an assembled report table: to a CSV file, a
// PostgreSQL table or an S3 object. Every sink writes all rows or none.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/seenimoa/bmrs/pkg/models"
)

// ErrUnknownSink is returned by Open for an unrecognised sink kind.
var ErrUnknownSink = errors.New("unknown sink")

// Sink kinds accepted by Open.
const (
	KindFile     = "file"
	KindPostgres = "postgres"
	KindS3       = "s3"
)

// Target identifies what is being written.
type Target struct {
	Report string
	RunID  string
}

// Sink stores a table and returns a description of where it went.
type Sink interface {
	Write(ctx context.Context, target Target, t *models.Table) (string, error)
	Close() error
}

// Options carries the settings of every sink kind; each kind reads its own.
type Options struct {
	Path string

	PostgresDSN    string
	PostgresSchema string

	S3Bucket string
	S3Region string
	S3Prefix string
}

// Open creates the sink of the given kind.
func Open(ctx context.Context, kind string, opts Options) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindFile, "":
		if opts.Path == "" {
			return nil, fmt.Errorf("file sink: no path")
		}
		return &File{Path: opts.Path}, nil
	case KindPostgres:
		return OpenPostgres(opts.PostgresDSN, opts.PostgresSchema)
	case KindS3:
		return OpenS3(ctx, opts.S3Bucket, opts.S3Region, opts.S3Prefix)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSink, kind)
}
