// Package timeline parses spreadsheet exam history into an ordered sequence
// of exam records with lesion measurements and split report sections.
package timeline

// Sections holds the four canonical free-text report sections. A nil field
// means the marker was never found in the source text; an empty section is
// also stored as nil so "absent" and "present but empty" cannot be confused.
type Sections struct {
	ClinicalInformation *string `json:"clinical_information"`
	StudyTechnique      *string `json:"study_technique"`
	Report              *string `json:"report"`
	Conclusions         *string `json:"conclusions"`
}

// ExamRecord is one exam row from the timeline spreadsheet. Records are
// immutable after parse.
type ExamRecord struct {
	PatientID       string    `json:"patient_id"`
	AccessionNumber string    `json:"accession_number"`
	StudyDate       *string   `json:"study_date"`
	LesionSizesMM   []float64 `json:"lesion_sizes_mm"`
	ReportRaw       string    `json:"report_raw"`
	ReportSections  Sections  `json:"report_sections"`
}

// Canonical column names resolved by the fuzzy header matcher.
const (
	ColPatientID       = "patient_id"
	ColAccessionNumber = "accession_number"
	ColStudyDate       = "study_date"
	ColLesionSizeMM    = "lesion_size_mm"
	ColReportText      = "report_text"
)
