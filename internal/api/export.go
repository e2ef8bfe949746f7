package api

import (
	"fmt"
	"io"
	"net/http"

	"airsupport/internal/models"

	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	tables, err := s.exporter.Export(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="reservations.xlsx"`)
	if err := WriteWorkbook(w, tables); err != nil {
		s.logger.Error().Err(err).Msg("failed to write reservations workbook")
	}
}

// WriteWorkbook renders one sheet per reservation kind, header row first.
func WriteWorkbook(out io.Writer, tables []*models.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	const defaultSheet = "Sheet1"
	for i, table := range tables {
		sheet := string(table.Kind)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}

		header := make([]any, len(table.Columns))
		for j, col := range table.Columns {
			header[j] = col
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return err
		}
		if len(table.Columns) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(table.Columns), 1)
			if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
				return err
			}
		}

		for j, row := range table.Rows {
			cell, _ := excelize.CoordinatesToCellName(1, j+2)
			values := row
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return err
			}
		}
	}

	_, err = f.WriteTo(out)
	return err
}
