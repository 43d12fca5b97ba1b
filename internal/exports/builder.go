package exports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/tealeg/xlsx/v2"
)

var reportHeader = []string{
	"Enquiry Number", "Enquiry Type", "Status", "School", "Academic Year",
	"Grade", "Student Name", "Student DOB", "Parent Name", "Parent Phone",
	"Parent Email", "Current Stage", "Created At",
}

func (r SourceRow) cells() []string {
	return []string{
		r.EnquiryNumber, r.EnquiryType, r.Status, r.School, r.AcademicYear,
		r.Grade, r.StudentName, r.StudentDOB, r.ParentName, r.ParentPhone,
		r.ParentEmail, r.CurrentStage, r.CreatedAt.Format(time.RFC3339),
	}
}

// buildFile renders the report in the requested format and returns the
// content with its MIME type.
func buildFile(format string, rows []SourceRow) (*bytes.Buffer, string, error) {
	switch format {
	case FormatCSV:
		return buildCSV(rows)
	case FormatXLSX:
		return buildXLSX(rows)
	default:
		return nil, "", fmt.Errorf("unknown export format %q", format)
	}
}

func buildCSV(rows []SourceRow) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(reportHeader); err != nil {
		return nil, "", err
	}
	for _, row := range rows {
		if err := w.Write(row.cells()); err != nil {
			return nil, "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}
	return &buf, "text/csv", nil
}

func buildXLSX(rows []SourceRow) (*bytes.Buffer, string, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Enquiries")
	if err != nil {
		return nil, "", err
	}

	headerRow := sheet.AddRow()
	for _, title := range reportHeader {
		cell := headerRow.AddCell()
		cell.Value = title
	}
	for _, row := range rows {
		sheetRow := sheet.AddRow()
		for _, value := range row.cells() {
			cell := sheetRow.AddCell()
			cell.Value = value
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, "", err
	}
	return &buf, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
}
