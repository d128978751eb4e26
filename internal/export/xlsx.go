// Package export persists a finished codebook as a spreadsheet artifact.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/codebook-cli/internal/model"
)

// header is the fixed column layout of every sheet. No index column.
var header = []string{"Theme", "Coding", "Verbatim"}

// WriteCodebook writes one workbook with a sheet per codebook entry, in
// insertion order. Each sheet gets the header row followed by the document's
// rows. Refuses an empty codebook rather than producing a sheetless file.
func WriteCodebook(path string, cb *model.Codebook) error {
	if cb.Len() == 0 {
		return eris.New("export: empty codebook, nothing to write")
	}

	f := xlsx.NewFile()
	for _, sheetID := range cb.SheetIDs() {
		table, _ := cb.Get(sheetID)
		if err := addSheet(f, sheetID, table); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}

	zap.L().Info("export: codebook written",
		zap.String("path", path),
		zap.Int("sheets", cb.Len()),
	)
	return nil
}

func addSheet(f *xlsx.File, sheetID string, table model.Table) error {
	sheet, err := f.AddSheet(sheetID)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %q", sheetID)
	}

	headerRow := sheet.AddRow()
	for _, h := range header {
		headerRow.AddCell().SetString(h)
	}

	for _, row := range table {
		r := sheet.AddRow()
		r.AddCell().SetString(row.Theme)
		r.AddCell().SetString(row.Coding)
		r.AddCell().SetString(row.Verbatim)
	}

	return nil
}
