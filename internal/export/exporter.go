// Package export writes whole database tables to .xlsx spreadsheets.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"

	"github.com/wolfman30/clinic-booking-bot/internal/storage"
	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

// TableSource reads a complete table snapshot.
type TableSource interface {
	DumpTable(ctx context.Context, table string) (storage.Table, error)
}

// Archiver keeps a copy of each generated file somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, table, path string) error
}

// Result describes one export run. Empty is set when the table had no rows;
// in that case no file is written and Path is blank.
type Result struct {
	Table string
	Path  string
	Rows  int
	Empty bool
}

// Exporter regenerates <dir>/<table>.xlsx on every call. Runs for the same
// table are serialized, and the file is swapped in with a rename so readers
// never see a partial workbook.
type Exporter struct {
	source   TableSource
	dir      string
	archiver Archiver
	logger   *logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewExporter creates an exporter writing into dir. archiver may be nil.
func NewExporter(source TableSource, dir string, archiver Archiver, logger *logging.Logger) *Exporter {
	if source == nil {
		panic("export: table source required")
	}
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Exporter{
		source:   source,
		dir:      dir,
		archiver: archiver,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (e *Exporter) tableLock(table string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[table]
	if !ok {
		l = &sync.Mutex{}
		e.locks[table] = l
	}
	return l
}

// FilePath returns where the export for table is written.
func (e *Exporter) FilePath(table string) string {
	return filepath.Join(e.dir, table+".xlsx")
}

// ExportUsers exports the users table.
func (e *Exporter) ExportUsers(ctx context.Context) (Result, error) {
	return e.Export(ctx, storage.TableUsers)
}

// ExportHospitals exports the hospitals table.
func (e *Exporter) ExportHospitals(ctx context.Context) (Result, error) {
	return e.Export(ctx, storage.TableHospitals)
}

// ExportDoctors exports the doctors table.
func (e *Exporter) ExportDoctors(ctx context.Context) (Result, error) {
	return e.Export(ctx, storage.TableDoctors)
}

// ExportBookings exports the bookings table.
func (e *Exporter) ExportBookings(ctx context.Context) (Result, error) {
	return e.Export(ctx, storage.TableBookings)
}

// Export dumps table and writes it as a single-sheet workbook with a header
// row of column names. An empty table is a no-op, not an error.
func (e *Exporter) Export(ctx context.Context, table string) (Result, error) {
	l := e.tableLock(table)
	l.Lock()
	defer l.Unlock()

	snapshot, err := e.source.DumpTable(ctx, table)
	if err != nil {
		return Result{}, fmt.Errorf("export: read %s: %w", table, err)
	}
	if len(snapshot.Rows) == 0 {
		e.logger.Info("export skipped, table is empty", "table", table)
		return Result{Table: table, Empty: true}, nil
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("export: create dir: %w", err)
	}
	path := e.FilePath(table)
	if err := e.replaceWorkbook(path, table, snapshot); err != nil {
		return Result{}, err
	}
	e.logger.Info("export written", "table", table, "path", path, "rows", len(snapshot.Rows))

	if e.archiver != nil {
		if err := e.archiver.Archive(ctx, table, path); err != nil {
			e.logger.Warn("export archive failed", "table", table, "error", err)
		}
	}
	return Result{Table: table, Path: path, Rows: len(snapshot.Rows)}, nil
}

// replaceWorkbook writes a temp file next to path and renames it over the
// previous export.
func (e *Exporter) replaceWorkbook(path, table string, snapshot storage.Table) error {
	tmp, err := os.CreateTemp(e.dir, "."+table+"-*.xlsx")
	if err != nil {
		return fmt.Errorf("export: temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := writeWorkbook(tmpPath, table, snapshot); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("export: replace %s: %w", path, err)
	}
	return nil
}

func writeWorkbook(path, sheet string, snapshot storage.Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("export: name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("export: stream writer: %w", err)
	}

	header := make([]any, len(snapshot.Columns))
	for i, c := range snapshot.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	for i, row := range snapshot.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: cell name: %w", err)
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = cellValue(v)
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("export: write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}

// cellValue converts driver values into something excelize renders sensibly.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	case pgtype.Time:
		if !t.Valid {
			return ""
		}
		d := time.Duration(t.Microseconds) * time.Microsecond
		return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	case []byte:
		return string(t)
	default:
		return v
	}
}
