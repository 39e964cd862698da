package importer

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

// buildSheet writes rows into an in-memory xlsx workbook.
func buildSheet(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return &buf
}

func TestParseCompanies(t *testing.T) {
	buf := buildSheet(t, [][]interface{}{
		{"Name", "Recruiter_Message", "Website"},
		{"Acme", "We loved your profile", "acme.example"},
		{"", "", ""}, // blank row should be skipped
		{"Globex", "", "globex.example"},
	})

	companies, err := ParseCompanies(buf)
	if err != nil {
		t.Fatalf("ParseCompanies() error = %v", err)
	}

	if len(companies) != 2 {
		t.Fatalf("expected 2 companies, got %d", len(companies))
	}
	if companies[0].Name != "Acme" {
		t.Errorf("expected first company Acme, got %q", companies[0].Name)
	}
	if companies[0].RecruiterMessage != "We loved your profile" {
		t.Errorf("recruiter_message column not mapped, got %q", companies[0].RecruiterMessage)
	}
	if string(companies[0].Details) != `{"website":"acme.example"}` {
		t.Errorf("extra column not folded into details, got %s", companies[0].Details)
	}
	if companies[1].Name != "Globex" {
		t.Errorf("expected second company Globex, got %q", companies[1].Name)
	}
}

func TestParseCompanies_MissingNameColumn(t *testing.T) {
	buf := buildSheet(t, [][]interface{}{
		{"Title", "Notes"},
		{"Acme", "hello"},
	})

	if _, err := ParseCompanies(buf); err == nil {
		t.Fatal("expected error for spreadsheet without a name column")
	}
}

func TestParseCompanies_NoDataRows(t *testing.T) {
	buf := buildSheet(t, [][]interface{}{
		{"Name"},
	})

	if _, err := ParseCompanies(buf); err == nil {
		t.Fatal("expected error for spreadsheet without data rows")
	}
}
