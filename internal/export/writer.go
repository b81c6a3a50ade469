package export

import (
	"encoding/csv"
	"os"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trackops/exportd/internal/domain"
)

// FileWriter serializes row sets to durable storage.
type FileWriter struct{}

// WriteTabular writes rows to path in the requested format. An empty row
// set still yields a valid file so a completed job always has something to
// download.
func (FileWriter) WriteTabular(path string, rows []*domain.Row, format domain.Format) error {
	switch format {
	case domain.FormatCSV:
		return writeCSV(path, rows)
	case domain.FormatXLSX:
		return writeXLSX(path, rows)
	default:
		return errors.Wrapf(domain.ErrValidation, "unsupported export format %q", format)
	}
}

func writeCSV(path string, rows []*domain.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(rows) == 0 {
		_ = w.Write([]string{"no records"})
		w.Flush()
		return errors.Wrap(w.Error(), "write csv")
	}
	header := rows[0].Columns()
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, r := range rows {
		if err := w.Write(r.Values(header)); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "write csv")
}

func writeXLSX(path string, rows []*domain.Row) error {
	wb := excelize.NewFile()
	defer wb.Close()

	sheet := wb.GetSheetName(0)
	if len(rows) == 0 {
		if err := wb.SetCellValue(sheet, "A1", "no records"); err != nil {
			return errors.Wrap(err, "write xlsx")
		}
		return errors.Wrap(wb.SaveAs(path), "save xlsx")
	}

	header := rows[0].Columns()
	if err := wb.SetSheetRow(sheet, "A1", toCells(header)); err != nil {
		return errors.Wrap(err, "write xlsx header")
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "write xlsx row")
		}
		if err := wb.SetSheetRow(sheet, cell, toCells(r.Values(header))); err != nil {
			return errors.Wrap(err, "write xlsx row")
		}
	}
	return errors.Wrap(wb.SaveAs(path), "save xlsx")
}

func toCells(vals []string) *[]any {
	cells := make([]any, len(vals))
	for i, v := range vals {
		cells[i] = v
	}
	return &cells
}
