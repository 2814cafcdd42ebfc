package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/seenimoa/bmrs/pkg/models"
)

// File writes a table as CSV to Path. If Path is an existing directory the
// file is named after the report and run.
type File struct {
	Path string
}

var _ Sink = (*File)(nil)

// Write implements Sink.
func (f *File) Write(ctx context.Context, target Target, t *models.Table) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest := f.Path
	if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
		name := target.Report
		if target.RunID != "" {
			name += "_" + target.RunID
		}
		dest = filepath.Join(dest, name+".csv")
	}
	if err := WriteFileAtomic(dest, t.WriteCSV); err != nil {
		return "", err
	}
	return dest, nil
}

// Close implements Sink.
func (f *File) Close() error { return nil }

// WriteFileAtomic writes the output of write to a temporary file next to
// dest and renames it over dest once it is complete and synced. If write
// fails, dest is not touched and the temporary file is removed.
func WriteFileAtomic(dest string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	_ = os.Chmod(tmpPath, 0o644)

	bw := bufio.NewWriterSize(tmp, 64*1024)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("replace %s: %w", dest, err)
	}
	_ = syncDir(dir)
	return nil
}

// syncDir best-effort fsyncs dir to persist the rename.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
