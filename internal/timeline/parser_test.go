package timeline

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"lesion-report/internal/errs"
	"lesion-report/internal/logging"
)

func testParser() *Parser {
	return NewParser(nil, logging.NewNop())
}

func TestParseRowsOrdersByDate(t *testing.T) {
	rows := [][]string{
		{"Patient ID", "Accession Number", "Study Date", "Lesion size (mm)", "Pseudo report"},
		{"P001", "300.0", "2024-06-01", "16.0", "REPORT. Larger."},
		{"P001", "100", "2023-01-15", "10.0", "REPORT. Baseline."},
		{"P001", "200", "", "12.0", ""},
	}

	exams, warnings, err := testParser().ParseRows(rows)
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if len(exams) != 3 {
		t.Fatalf("got %d exams, want 3", len(exams))
	}

	// Dated rows ascend; the undated row is appended last.
	if exams[0].AccessionNumber != "100" || exams[1].AccessionNumber != "300" || exams[2].AccessionNumber != "200" {
		t.Errorf("unexpected order: %s, %s, %s",
			exams[0].AccessionNumber, exams[1].AccessionNumber, exams[2].AccessionNumber)
	}
	if exams[2].StudyDate != nil {
		t.Errorf("undated row should have nil study_date")
	}
	// The empty-date cell must not warn; only unparsable non-empty cells do.
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestParseRowsAccessionFloatArtifact(t *testing.T) {
	rows := [][]string{
		{"patient", "accession", "date", "lesion mm"},
		{"P002", "123456.0", "2024-01-01", "8"},
	}
	exams, _, err := testParser().ParseRows(rows)
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if exams[0].AccessionNumber != "123456" {
		t.Errorf("accession = %q, want \"123456\"", exams[0].AccessionNumber)
	}
}

func TestParseRowsMissingRequiredColumn(t *testing.T) {
	rows := [][]string{
		{"Accession", "Date", "Report"},
		{"100", "2024-01-01", "REPORT. text"},
	}
	_, _, err := testParser().ParseRows(rows)

	var se *errs.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
	if se.Field != ColPatientID {
		t.Errorf("SchemaError field = %q, want %q", se.Field, ColPatientID)
	}
}

func TestParseRowsMergesLesionColumns(t *testing.T) {
	rows := [][]string{
		{"patient id", "taille lesion 1 (mm)", "taille lesion 2 (mm)"},
		{"P003", "12.5", "14.3, 12.5"},
	}
	exams, _, err := testParser().ParseRows(rows)
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	want := []float64{12.5, 14.3}
	if !reflect.DeepEqual(exams[0].LesionSizesMM, want) {
		t.Errorf("lesion sizes = %v, want %v", exams[0].LesionSizesMM, want)
	}
}

func TestParseRowsWarnsOnBadToken(t *testing.T) {
	rows := [][]string{
		{"patient", "lesion size"},
		{"P004", "10.0, 1.2.3"},
	}
	exams, warnings, err := testParser().ParseRows(rows)
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if !reflect.DeepEqual(exams[0].LesionSizesMM, []float64{10.0}) {
		t.Errorf("lesion sizes = %v, want [10]", exams[0].LesionSizesMM)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
}

func TestParserCustomAliases(t *testing.T) {
	p := NewParser(map[string][]string{ColPatientID: {"subject code"}}, logging.NewNop())
	rows := [][]string{
		{"Subject Code", "lesion mm"},
		{"S-1", "9"},
	}
	exams, _, err := p.ParseRows(rows)
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if exams[0].PatientID != "S-1" {
		t.Errorf("patient id = %q, want \"S-1\"", exams[0].PatientID)
	}
}

func TestParseDateFormats(t *testing.T) {
	tests := []struct {
		raw  string
		want string // empty means nil
	}{
		{"2023-01-15", "2023-01-15"},
		{"2023-01-15 10:30:00", "2023-01-15"},
		{"15/01/2023", "2023-01-15"},
		{"20230115", "2023-01-15"},
		{"15.01.2023", "2023-01-15"},
		// excelize display styles for date-typed cells.
		{"1/2/23", "2023-01-02"},
		{"1/2/2023", "2023-01-02"},
		{"12/25/2023", "2023-12-25"},
		{"1-2-23", "2023-01-02"},
		{"", ""},
		{"not a date", ""},
		{"2023", ""},
	}

	for _, tt := range tests {
		got := parseDate(tt.raw)
		if tt.want == "" {
			if got != nil {
				t.Errorf("parseDate(%q) = %q, want nil", tt.raw, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("parseDate(%q) = %v, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseRowsDisplayStyleDate(t *testing.T) {
	rows := [][]string{
		{"patient", "date", "lesion mm"},
		{"P006", "7/1/23", "16.0"},
		{"P006", "1/1/23", "10.0"},
	}
	exams, _, err := testParser().ParseRows(rows)
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if exams[0].StudyDate == nil || *exams[0].StudyDate != "2023-01-01" {
		t.Errorf("first exam date = %v, want 2023-01-01", exams[0].StudyDate)
	}
	if exams[1].StudyDate == nil || *exams[1].StudyDate != "2023-07-01" {
		t.Errorf("second exam date = %v, want 2023-07-01", exams[1].StudyDate)
	}
}

func TestParseFileMissingVersusCorrupt(t *testing.T) {
	_, _, err := testParser().ParseFile(filepath.Join(t.TempDir(), "absent.xlsx"))
	var nf *errs.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("missing workbook: err = %v, want NotFoundError", err)
	}

	// A present-but-unreadable workbook must not claim the file is missing.
	corrupt := filepath.Join(t.TempDir(), "corrupt.xlsx")
	if werr := os.WriteFile(corrupt, []byte("not a zip archive"), 0644); werr != nil {
		t.Fatal(werr)
	}
	_, _, err = testParser().ParseFile(corrupt)
	if err == nil {
		t.Fatal("corrupt workbook should fail to parse")
	}
	if errors.As(err, &nf) {
		t.Errorf("corrupt workbook reported as NotFoundError: %v", err)
	}
}

func TestExamRecordJSONRoundTrip(t *testing.T) {
	rows := [][]string{
		{"patient", "accession", "date", "lesion mm", "report"},
		{"P005", "42", "2023-05-20", "10.0, 16.5", "CLINICAL INFORMATION. foo REPORT. bar"},
	}
	exams, _, err := testParser().ParseRows(rows)
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}

	data, err := json.Marshal(exams)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back []ExamRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(exams, back) {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", back, exams)
	}
	if back[0].ReportSections.StudyTechnique != nil {
		t.Error("nil section must survive the round trip as nil")
	}
}
