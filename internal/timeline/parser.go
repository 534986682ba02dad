package timeline

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"lesion-report/internal/errs"
)

// Built-in alias keywords per canonical column. Matching is fuzzy: headers
// are lowercased and stripped of separators, then checked for keyword
// containment. The table can be extended through configuration.
var defaultAliases = map[string][]string{
	ColPatientID:       {"patientid", "patient"},
	ColAccessionNumber: {"accessionnumber", "accession"},
	ColStudyDate:       {"studydate", "date", "datum"},
	ColLesionSizeMM:    {"lesion", "size", "mesure", "taille", "mm"},
	ColReportText:      {"clinical", "pseudo", "report", "compte", "rendu"},
}

// requiredColumns must resolve or parsing fails with a SchemaError. The
// other canonical columns are optional.
var requiredColumns = []string{ColPatientID, ColLesionSizeMM}

// Zero-padded layouts are tried first so day-first padded dates keep their
// meaning; the trailing non-padded forms cover how excelize renders
// date-typed cells (default m/d/yy display style).
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2006/01/02",
	"20060102",
	"02.01.2006",
	"1/2/2006",
	"1/2/06",
	"1-2-06",
}

// Parser turns tabular exam rows into an ordered ExamRecord sequence.
type Parser struct {
	aliases map[string][]string
	log     *logrus.Logger
}

// NewParser builds a parser. extraAliases entries are appended to the
// built-in alias table per canonical column.
func NewParser(extraAliases map[string][]string, log *logrus.Logger) *Parser {
	aliases := make(map[string][]string, len(defaultAliases))
	for canonical, kws := range defaultAliases {
		aliases[canonical] = append([]string{}, kws...)
	}
	for canonical, kws := range extraAliases {
		for _, kw := range kws {
			aliases[canonical] = append(aliases[canonical], normalizeHeader(kw))
		}
	}
	return &Parser{aliases: aliases, log: log}
}

// ParseFile reads the timeline sheet from an xlsx file. The sheet defaults
// to the one named "timeline" (case-insensitive) and falls back to the
// first sheet in the workbook.
func (p *Parser) ParseFile(path string) ([]ExamRecord, []errs.Warning, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, nil, errs.NewNotFoundError(path)
		}
		return nil, nil, fmt.Errorf("could not open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := ""
	for _, name := range f.GetSheetList() {
		if strings.EqualFold(name, "timeline") {
			sheet = name
			break
		}
	}
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, nil, fmt.Errorf("workbook has no sheets: %s", path)
		}
		sheet = list[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read sheet %q: %w", sheet, err)
	}

	p.log.WithFields(logrus.Fields{"path": path, "sheet": sheet, "rows": len(rows)}).
		Info("parsing timeline spreadsheet")

	return p.ParseRows(rows)
}

// ParseRows parses header+data rows into exam records, ordered by study
// date ascending; rows without a parseable date keep their source order and
// are appended after the dated ones.
func (p *Parser) ParseRows(rows [][]string) ([]ExamRecord, []errs.Warning, error) {
	// Drop fully empty rows up front.
	var cleaned [][]string
	for _, row := range rows {
		if !rowEmpty(row) {
			cleaned = append(cleaned, row)
		}
	}
	if len(cleaned) < 2 {
		return nil, nil, fmt.Errorf("no data rows found (need a header row plus at least one exam row)")
	}

	header := cleaned[0]
	cols, err := p.resolveColumns(header)
	if err != nil {
		return nil, nil, err
	}

	var warnings []errs.Warning
	var exams []ExamRecord
	for i, row := range cleaned[1:] {
		exam, ws := p.rowToExam(row, cols, i+1)
		warnings = append(warnings, ws...)
		exams = append(exams, exam)
	}

	// Stable sort keeps source order for equal dates and for undated rows.
	dated := make([]ExamRecord, 0, len(exams))
	undated := make([]ExamRecord, 0)
	for _, e := range exams {
		if e.StudyDate != nil {
			dated = append(dated, e)
		} else {
			undated = append(undated, e)
		}
	}
	sort.SliceStable(dated, func(a, b int) bool {
		return *dated[a].StudyDate < *dated[b].StudyDate
	})
	return append(dated, undated...), warnings, nil
}

// columnMap maps canonical fields to header indexes. lesionCols may name
// several columns; their parsed sizes are merged.
type columnMap struct {
	patientID  int
	accession  int
	date       int
	report     int
	lesionCols []int
}

func (p *Parser) resolveColumns(header []string) (*columnMap, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}

	findFirst := func(canonical string) int {
		for i, h := range normalized {
			for _, kw := range p.aliases[canonical] {
				if kw != "" && strings.Contains(h, kw) {
					return i
				}
			}
		}
		return -1
	}
	findAll := func(canonical string) []int {
		var out []int
		for i, h := range normalized {
			for _, kw := range p.aliases[canonical] {
				if kw != "" && strings.Contains(h, kw) {
					out = append(out, i)
					break
				}
			}
		}
		return out
	}

	cols := &columnMap{
		patientID:  findFirst(ColPatientID),
		accession:  findFirst(ColAccessionNumber),
		date:       findFirst(ColStudyDate),
		report:     findFirst(ColReportText),
		lesionCols: findAll(ColLesionSizeMM),
	}

	for _, required := range requiredColumns {
		switch required {
		case ColPatientID:
			if cols.patientID < 0 {
				return nil, errs.NewSchemaError(ColPatientID)
			}
		case ColLesionSizeMM:
			if len(cols.lesionCols) == 0 {
				return nil, errs.NewSchemaError(ColLesionSizeMM)
			}
		}
	}
	return cols, nil
}

func (p *Parser) rowToExam(row []string, cols *columnMap, rowNum int) (ExamRecord, []errs.Warning) {
	var warnings []errs.Warning

	var sizes []float64
	for _, ci := range cols.lesionCols {
		parsed, dropped := ParseLesionSizes(cell(row, ci))
		sizes = append(sizes, parsed...)
		for _, token := range dropped {
			warnings = append(warnings, errs.Warning{
				Stage:   "timeline",
				Message: fmt.Sprintf("row %d: dropped unparsable lesion token %q", rowNum, token),
			})
		}
	}

	raw := strings.TrimSpace(cell(row, cols.report))
	exam := ExamRecord{
		PatientID:       strings.TrimSpace(cell(row, cols.patientID)),
		AccessionNumber: cleanAccession(cell(row, cols.accession)),
		StudyDate:       parseDate(cell(row, cols.date)),
		LesionSizesMM:   dedupeSorted(sizes),
		ReportRaw:       raw,
		ReportSections:  SplitSections(raw),
	}

	if exam.StudyDate == nil && strings.TrimSpace(cell(row, cols.date)) != "" {
		warnings = append(warnings, errs.Warning{
			Stage:   "timeline",
			Message: fmt.Sprintf("row %d: unparsable study date %q", rowNum, cell(row, cols.date)),
		})
	}
	return exam, warnings
}

// normalizeHeader lowercases and strips separators for fuzzy matching.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "/", "", "-", "").Replace(s)
}

// cleanAccession strips the trailing ".0" that appears when Excel stores an
// accession number as a float.
func cleanAccession(s string) string {
	s = strings.TrimSpace(s)
	if v, ok := strings.CutSuffix(s, ".0"); ok && isDigits(strings.TrimPrefix(v, "-")) {
		return v
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseDate normalizes any recognized date value to ISO-8601 (YYYY-MM-DD).
func parseDate(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			iso := t.Format("2006-01-02")
			return &iso
		}
	}
	return nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
