// Package export renders the duty calendar as a spreadsheet or a printable
// PDF, the way the garden posts it on the shed door.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/nutricomm/kebun-gizi/internal/rotation"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts "xlsx" or "pdf", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want xlsx or pdf)", s)
	}
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Calendar is the input of both renderers.
type Calendar struct {
	GardenID    string
	GeneratedAt time.Time
	Days        []rotation.Assignment
}

// Render dispatches to the renderer for f.
func Render(f Format, cal Calendar) ([]byte, error) {
	switch f {
	case FormatXLSX:
		return BuildCalendarXLSX(cal)
	case FormatPDF:
		return BuildCalendarPDF(cal)
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

// Filename is the suggested download name, e.g. jadwal-KBG001-2025-03-10.pdf.
func Filename(f Format, cal Calendar) string {
	start := cal.GeneratedAt
	if len(cal.Days) > 0 {
		start = cal.Days[0].Date
	}
	garden := cal.GardenID
	if garden == "" {
		garden = "kebun"
	}
	return fmt.Sprintf("jadwal-%s-%s.%s", garden, start.Format(time.DateOnly), f)
}

const (
	summarySheet  = "summary"
	scheduleSheet = "schedule"
)

// BuildCalendarXLSX renders the calendar as a two-sheet workbook.
func BuildCalendarXLSX(cal Calendar) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(scheduleSheet); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}

	_ = f.SetCellValue(summarySheet, "A1", "Duty Calendar")
	_ = f.SetCellValue(summarySheet, "A3", "Garden")
	_ = f.SetCellValue(summarySheet, "B3", cal.GardenID)
	_ = f.SetCellValue(summarySheet, "A4", "Generated")
	_ = f.SetCellValue(summarySheet, "B4", cal.GeneratedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Days")
	_ = f.SetCellValue(summarySheet, "B5", len(cal.Days))
	if len(cal.Days) > 0 {
		_ = f.SetCellValue(summarySheet, "A6", "From")
		_ = f.SetCellValue(summarySheet, "B6", cal.Days[0].DateString())
		_ = f.SetCellValue(summarySheet, "A7", "To")
		_ = f.SetCellValue(summarySheet, "B7", cal.Days[len(cal.Days)-1].DateString())
	}

	headers := []string{"Date", "Day", "Slot", "Participant", "Name", "Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(scheduleSheet, cell, h)
	}
	for i, a := range cal.Days {
		row := i + 2
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("A%d", row), a.DateString())
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("B%d", row), a.Date.Weekday().String())
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("C%d", row), a.Slot)
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("D%d", row), a.ParticipantID)
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("E%d", row), a.DisplayName)
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("F%d", row), a.Status.String())
	}
	_ = f.SetColWidth(scheduleSheet, "A", "A", 12)
	_ = f.SetColWidth(scheduleSheet, "E", "E", 24)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildCalendarPDF renders the calendar as a one-table A4 document.
func BuildCalendarPDF(cal Calendar) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, "Duty Calendar")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Garden: %s", cal.GardenID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", cal.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	widths := []float64{28, 28, 14, 30, 60, 20}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range []string{"Date", "Day", "Slot", "Participant", "Name", "Status"} {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, a := range cal.Days {
		fill := a.Status == rotation.StatusToday
		if fill {
			pdf.SetFont("Arial", "B", 10)
			pdf.SetFillColor(220, 240, 220)
		} else {
			pdf.SetFont("Arial", "", 10)
		}
		pdf.CellFormat(widths[0], 6, a.DateString(), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(widths[1], 6, a.Date.Weekday().String(), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[2], 6, fmt.Sprintf("%d", a.Slot), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(widths[3], 6, tr(a.ParticipantID), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[4], 6, tr(a.DisplayName), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[5], 6, a.Status.String(), "1", 0, "C", fill, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
