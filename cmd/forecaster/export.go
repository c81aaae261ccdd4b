package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/HatiCode/ticketcast/pkg/models"
	"github.com/HatiCode/ticketcast/pkg/series"
)

// CSVExporter writes forecasts as a CSV table with an unnamed date index
// column and an integer count column.
//
// Path "-" writes to Stdout. Otherwise the table is written to a temporary
// file next to Path and renamed into place, so readers never see a partial
// table.
type CSVExporter struct {
	Path   string
	Column string
	Stdout io.Writer
	logger *slog.Logger
}

// NewCSVExporter creates an exporter writing to path.
func NewCSVExporter(path, column string, logger *slog.Logger) *CSVExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVExporter{Path: path, Column: column, Stdout: os.Stdout, logger: logger}
}

// Export implements Exporter.
func (e *CSVExporter) Export(ctx context.Context, f models.Forecast) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if e.Path == "-" {
		return f.WriteCSV(e.Stdout, e.Column)
	}

	if err := writeFileAtomic(e.Path, func(w io.Writer) error {
		return f.WriteCSV(w, e.Column)
	}); err != nil {
		return err
	}

	e.logger.Info("exported forecast", "path", e.Path, "rows", f.Len())
	return nil
}

// outputMode is the permission of exported tables. CreateTemp uses 0600.
const outputMode os.FileMode = 0o644

// writeFileAtomic writes path through a temporary file in the same directory.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(outputMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// cleanTable reads the raw table at in, forward-fills missing counts, fills
// calendar gaps and writes the cleaned table to out.
func cleanTable(ctx context.Context, in, out string, opts series.Options, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts.FillMissing = true
	ds, err := series.LoadFile(in, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", in, err)
	}

	filled := series.FillGaps(ds)

	if err := writeFileAtomic(out, func(w io.Writer) error {
		return series.WriteCSV(w, filled, opts.DateColumn, opts.ValueColumn)
	}); err != nil {
		return err
	}

	logger.Info("cleaned table",
		"input", in,
		"output", out,
		"rows", ds.Len(),
		"output_rows", filled.Len(),
	)
	return nil
}
