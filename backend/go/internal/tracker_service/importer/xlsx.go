package importer

import (
	"JobPilot/backend/go/pkg/models"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

// ParseCompanies reads an xlsx spreadsheet and turns its rows into companies.
// The first row is a header; a "name" column is required, every other column
// is either mapped onto a known field (recruiter_message) or folded into the
// free-form details map.
func ParseCompanies(r io.Reader) ([]models.Company, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet '%s': %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("spreadsheet has no data rows")
	}

	header := make([]string, len(rows[0]))
	nameCol := -1
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
		if header[i] == "name" || header[i] == "company" {
			nameCol = i
		}
	}
	if nameCol == -1 {
		return nil, fmt.Errorf("spreadsheet is missing a 'name' column")
	}

	var companies []models.Company
	for rowIdx, row := range rows[1:] {
		name := cell(row, nameCol)
		if name == "" {
			continue // blank rows are common in exported sheets
		}

		company := models.Company{Name: name}
		details := map[string]string{}
		for i, key := range header {
			if i == nameCol || key == "" {
				continue
			}
			value := cell(row, i)
			if value == "" {
				continue
			}
			if key == "recruiter_message" {
				company.RecruiterMessage = value
			} else {
				details[key] = value
			}
		}
		if len(details) > 0 {
			b, err := json.Marshal(details)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", rowIdx+2, err)
			}
			company.Details = datatypes.JSON(b)
		}
		companies = append(companies, company)
	}

	if len(companies) == 0 {
		return nil, fmt.Errorf("spreadsheet contained no usable rows")
	}
	return companies, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
