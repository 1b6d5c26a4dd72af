// Package export writes assessment records as CSV, XLSX or JSON for the
// admin dashboard and the export command.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/360EntSecGroup-Skylar/excelize"

	"vein-assessment/internal/assessment"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// FormatFor parses a format name. An empty name means CSV.
func FormatFor(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format '%s': format must be csv, xlsx or json", name)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv"
	}
}

func (f Format) Extension() string { return "." + string(f) }

var symptomHeaders = map[string]string{
	assessment.KeySpiderVeins:       "Spider Veins",
	assessment.KeyPainAndHeaviness:  "Pain & Heaviness",
	assessment.KeyBulgingVeins:      "Bulging Veins",
	assessment.KeySkinDiscoloration: "Skin Discoloration",
	assessment.KeyUlcers:            "Ulcers",
	assessment.KeyDuration:          "Duration",
	assessment.KeyLongHours:         "Long Hours Standing/Sitting",
	assessment.KeyDVTHistory:        "DVT History",
	assessment.KeyFamilyHistory:     "Family History",
	assessment.KeyVisibleVeins:      "Visible Veins",
	assessment.KeyPreviousTreatment: "Previous Treatment",
}

// Header returns the column titles shared by CSV and XLSX.
func Header() []string {
	h := []string{"Date", "Patient", "Age", "City", "Variant", "Severity Level", "Stage", "Urgency"}
	for _, k := range assessment.RecordSymptomKeys() {
		h = append(h, symptomHeaders[k])
	}
	return append(h,
		"Previous Treatments", "Existing Conditions", "Medications",
		"Risk Level", "Photo Analyzed", "AI Confidence", "Image Confidence", "Recommendation",
	)
}

// Row flattens one record in Header order.
func Row(rec assessment.AssessmentRecord) []string {
	row := []string{
		rec.CreatedAt.Format("2006-01-02 15:04"),
		textCell(rec.PatientName),
		strconv.Itoa(rec.PatientAge),
		textCell(rec.PatientLocation),
		string(rec.Variant),
		strconv.Itoa(int(rec.SeverityLevel)),
		rec.StageTitle,
		rec.Urgency,
	}
	for _, k := range assessment.RecordSymptomKeys() {
		row = append(row, rec.Symptom(k))
	}
	photo := "No"
	if rec.PhotoAnalyzed {
		photo = "Yes"
	}
	return append(row,
		strings.Join(rec.PreviousTreatments, "; "),
		strings.Join(rec.ExistingConditions, "; "),
		strings.Join(rec.Medications, "; "),
		string(rec.RiskLevel),
		photo,
		strconv.FormatFloat(rec.AIConfidence, 'f', 2, 64),
		strconv.FormatFloat(rec.ImageAnalysisConfidence, 'f', 2, 64),
		rec.Recommendation,
	)
}

// Write encodes records in the given format.
func Write(w io.Writer, f Format, recs []assessment.AssessmentRecord) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, recs)
	case FormatXLSX:
		return writeXLSX(w, recs)
	case FormatJSON:
		return writeJSON(w, recs)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func writeJSON(w io.Writer, recs []assessment.AssessmentRecord) error {
	if recs == nil {
		recs = []assessment.AssessmentRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, recs []assessment.AssessmentRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range recs {
		if err := cw.Write(Row(rec)); err != nil {
			return fmt.Errorf("failed to write CSV row %s: %w", rec.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

const sheetName = "Assessments"

func writeXLSX(w io.Writer, recs []assessment.AssessmentRecord) error {
	file := excelize.NewFile()
	idx := file.NewSheet(sheetName)
	file.DeleteSheet("Sheet1")
	file.SetActiveSheet(idx)

	for col, title := range Header() {
		file.SetCellValue(sheetName, cell(col, 1), title)
	}
	for i, rec := range recs {
		appendRow(file, i+2, rec)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write XLSX: %w", err)
	}
	return nil
}

// appendRow writes numeric columns as numbers so the sheet can be sorted.
func appendRow(file *excelize.File, rowNum int, rec assessment.AssessmentRecord) {
	for col, v := range Row(rec) {
		file.SetCellValue(sheetName, cell(col, rowNum), v)
	}
	file.SetCellValue(sheetName, cell(2, rowNum), rec.PatientAge)
	file.SetCellValue(sheetName, cell(5, rowNum), int(rec.SeverityLevel))
}

// textCell keeps patient-typed text from being read as a spreadsheet formula.
func textCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

func cell(col, row int) string {
	return fmt.Sprintf("%s%d", excelize.ToAlphaString(col), row)
}
