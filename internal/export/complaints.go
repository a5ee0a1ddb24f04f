// Package export renders complaint listings as Excel workbooks.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/civicreport/civic-server/internal/models"
)

// SheetName is the worksheet holding the complaint rows.
const SheetName = "Complaints"

// Header is the column order of the export.
var Header = []string{
	"Public ID", "Title", "Category", "Status", "Priority", "Assigned Level",
	"State", "District", "Block", "Village", "Address",
	"Escalations", "Created At", "Last Escalation", "Resolved At",
}

var columnWidths = []float64{18, 36, 16, 14, 10, 14, 18, 18, 18, 18, 40, 12, 20, 20, 20}

// Complaints writes items to a workbook and returns the xlsx bytes.
func Complaints(items []models.Complaint, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(SheetName); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	if index, err := f.GetSheetIndex(SheetName); err == nil {
		f.SetActiveSheet(index)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, title := range Header {
		if err := setCell(f, col+1, 1, title); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}
	for i, width := range columnWidths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, name, name, width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i := range items {
		c := &items[i]
		row := []any{
			c.PublicID, c.Title, c.Category, string(c.Status), string(c.Priority), string(c.AssignedLevel),
			c.AdministrativeLocation.State, c.AdministrativeLocation.District,
			c.AdministrativeLocation.Block, c.AdministrativeLocation.Village, c.Address,
			len(c.EscalationHistory), formatTime(&c.CreatedAt), formatTime(c.LastEscalationDate),
			formatTime(c.ActualResolutionTime),
		}
		for col, value := range row {
			if err := setCell(f, col+1, i+2, value); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Complaint export",
		Created: generatedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, fmt.Errorf("set document properties: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
