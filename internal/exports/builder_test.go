package exports

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/tealeg/xlsx/v2"
)

func sampleRows() []SourceRow {
	return []SourceRow{
		{
			EnquiryNumber: "ENQ-000001",
			EnquiryType:   "New Admission",
			Status:        "Open",
			School:        "City Campus",
			AcademicYear:  "2026-27",
			Grade:         "Grade 5",
			StudentName:   "Ishaan Mehta",
			StudentDOB:    "2016-04-12",
			ParentName:    "Arun Mehta",
			ParentPhone:   "+919812345670",
			ParentEmail:   "arun@example.com",
			CurrentStage:  "Counselling",
			CreatedAt:     time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			EnquiryNumber: "ENQ-000002",
			EnquiryType:   "Transfer",
			Status:        "Closed",
			StudentName:   "Meera Rao, Jr.",
		},
	}
}

func TestBuildCSV(t *testing.T) {
	buf, mime, err := buildFile(FormatCSV, sampleRows())
	if err != nil {
		t.Fatalf("buildFile: %v", err)
	}
	if mime != "text/csv" {
		t.Errorf("mime = %q", mime)
	}

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("record count = %d, want header + 2 rows", len(records))
	}
	if records[0][0] != "Enquiry Number" {
		t.Errorf("header[0] = %q", records[0][0])
	}
	if records[1][0] != "ENQ-000001" || records[1][11] != "Counselling" {
		t.Errorf("row 1 = %v", records[1])
	}
	// Commas in values must survive the round trip.
	if records[2][6] != "Meera Rao, Jr." {
		t.Errorf("student name = %q", records[2][6])
	}
}

func TestBuildXLSX(t *testing.T) {
	buf, mime, err := buildFile(FormatXLSX, sampleRows())
	if err != nil {
		t.Fatalf("buildFile: %v", err)
	}
	if mime != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("mime = %q", mime)
	}

	file, err := xlsx.OpenBinary(buf.Bytes())
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	if len(file.Sheets) != 1 || file.Sheets[0].Name != "Enquiries" {
		t.Fatalf("unexpected sheet layout")
	}
	sheet := file.Sheets[0]
	if len(sheet.Rows) != 3 {
		t.Fatalf("row count = %d, want header + 2 rows", len(sheet.Rows))
	}
	if got := sheet.Rows[1].Cells[0].Value; got != "ENQ-000001" {
		t.Errorf("first data cell = %q", got)
	}
}

func TestBuildFileUnknownFormat(t *testing.T) {
	if _, _, err := buildFile("pdf", nil); err == nil {
		t.Error("expected error for unknown format")
	}
}
