package services

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpupo63/diary-backend/models"
)

const accessLogSheet = "Access logs"

// WriteAccessLogsXLSX writes logs as a single-sheet workbook to w.
func WriteAccessLogsXLSX(w io.Writer, logs []models.AccessLog) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), accessLogSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	headers := []string{"Timestamp", "IP address", "User agent", "Referer", "User"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(accessLogSheet, cell, h); err != nil {
			return err
		}
	}

	for i, l := range logs {
		referer := ""
		if l.Referer != nil {
			referer = *l.Referer
		}
		row := []interface{}{
			l.Timestamp.UTC().Format(time.RFC3339),
			l.IPAddress,
			l.UserAgent,
			referer,
			l.Visitor(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(accessLogSheet, cell, &row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(accessLogSheet, "A", "A", 22)
	_ = f.SetColWidth(accessLogSheet, "B", "B", 16)
	_ = f.SetColWidth(accessLogSheet, "C", "C", 50)
	_ = f.SetColWidth(accessLogSheet, "D", "D", 40)
	_ = f.SetColWidth(accessLogSheet, "E", "E", 28)

	return f.Write(w)
}
