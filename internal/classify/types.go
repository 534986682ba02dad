// Package classify implements the deterministic RECIST-like longitudinal
// classification: lesion deltas between baseline and latest exam, an overall
// status with audit evidence, and KPI aggregates. Identical inputs always
// yield identical output; nothing here is probabilistic.
package classify

import (
	"lesion-report/internal/dicomseries"
)

// Status is the overall or per-lesion classification outcome.
type Status string

const (
	StatusProgression Status = "progression"
	StatusResponse    Status = "response"
	StatusStable      Status = "stable"
	StatusUnknown     Status = "unknown"

	// LesionStatusNew marks a lesion index present on only one side of the
	// comparison. It never participates in the overall decision.
	LesionStatusNew = "new"
)

// Machine-readable reasons for an unknown overall status.
const (
	ReasonNoTimeline       = "no_timeline"
	ReasonInsufficientData = "insufficient_data"
	ReasonRecistRules      = "recist_rules"
)

// LesionDelta is the change of one lesion between baseline and latest exam.
// Alignment is positional: lesion index i at baseline is compared only to
// lesion index i at the latest exam. This is a documented limitation
// inherited from the source data model, not lesion tracking by identity.
type LesionDelta struct {
	LesionIndex int      `json:"lesion_index"`
	BaselineMM  *float64 `json:"baseline_mm"`
	LastMM      *float64 `json:"last_mm"`
	DeltaMM     *float64 `json:"delta_mm"`
	DeltaPct    *float64 `json:"delta_pct"`
	Status      string   `json:"status"`
	Note        string   `json:"note,omitempty"`
}

// ExamRef points at the baseline or latest exam used for comparison.
type ExamRef struct {
	Index           int       `json:"index"`
	Date            *string   `json:"date"`
	LesionSizesMM   []float64 `json:"lesion_sizes_mm"`
	AccessionNumber string    `json:"accession_number"`
}

// ThresholdValues echoes the exact thresholds applied, for audit.
type ThresholdValues struct {
	ProgressionPct   float64 `json:"progression_pct"`
	ProgressionAbsMM float64 `json:"progression_abs_mm"`
	ResponsePct      float64 `json:"response_pct"`
}

// Evidence records what drove the status decision.
type Evidence struct {
	RuleApplied         string          `json:"rule_applied"`
	ProgressionTriggers []int           `json:"progression_triggers"`
	ResponseTriggers    []int           `json:"response_triggers"`
	Thresholds          ThresholdValues `json:"thresholds"`
}

// KPI aggregates are computed alongside and independently of the status
// decision.
type KPI struct {
	SumDiametersBaselineMM   *float64 `json:"sum_diameters_baseline_mm"`
	SumDiametersCurrentMM    *float64 `json:"sum_diameters_current_mm"`
	SumDiametersDeltaPct     *float64 `json:"sum_diameters_delta_pct"`
	DominantLesionBaselineMM *float64 `json:"dominant_lesion_baseline_mm"`
	DominantLesionCurrentMM  *float64 `json:"dominant_lesion_current_mm"`
	DominantLesionDeltaPct   *float64 `json:"dominant_lesion_delta_pct"`
	LesionCountBaseline      int      `json:"lesion_count_baseline"`
	LesionCountCurrent       int      `json:"lesion_count_current"`
	LesionCountDelta         int      `json:"lesion_count_delta"`
	GrowthRateMMPerDay       *float64 `json:"growth_rate_mm_per_day"`
	DataCompletenessScore    float64  `json:"data_completeness_score"`
}

// Imaging describes the resolved series geometry.
type Imaging struct {
	InputKind         string     `json:"input_kind"`
	NSlices           int        `json:"n_slices"`
	VolumeShape       []int      `json:"volume_shape"`
	SpacingMM         []*float64 `json:"spacing_mm"` // [z, y, x], nil where unavailable
	SeriesInstanceUID *string    `json:"series_instance_uid"`
	SortingKeyUsed    string     `json:"sorting_key_used"`
	Is3D              bool       `json:"is_3d"`
}

// DicomBlock carries the resolved metadata and pixel statistics.
type DicomBlock struct {
	Metadata   dicomseries.Metadata   `json:"metadata"`
	ImageStats dicomseries.PixelStats `json:"image_stats"`
}

// AnalysisResult is the single structured record describing lesion
// evolution for one case. It is a pure function of its inputs.
type AnalysisResult struct {
	CaseID            string        `json:"case_id"`
	PatientID         string        `json:"patient_id"`
	ExamCount         int           `json:"exam_count"`
	FirstExamDate     *string       `json:"first_exam_date"`
	LastExamDate      *string       `json:"last_exam_date"`
	TimeDeltaDays     *int          `json:"time_delta_days"`
	BaselineExam      *ExamRef      `json:"baseline_exam"`
	LastExam          *ExamRef      `json:"last_exam"`
	OverallStatus     Status        `json:"overall_status"`
	StatusReason      string        `json:"status_reason"`
	StatusExplanation string        `json:"status_explanation"`
	Evidence          Evidence      `json:"evidence"`
	LesionDeltas      []LesionDelta `json:"lesion_deltas"`
	KPI               KPI           `json:"kpi"`
	Dicom             *DicomBlock   `json:"dicom,omitempty"`
	Imaging           *Imaging      `json:"imaging,omitempty"`
	Warnings          []string      `json:"warnings"`

	// Narrative fields filled by the optional enrichment collaborator.
	LatestStudyTechnique *string `json:"latest_study_technique,omitempty"`
	LatestReport         *string `json:"latest_report,omitempty"`
	LatestConclusions    *string `json:"latest_conclusions,omitempty"`
	LLMEnriched          bool    `json:"llm_enriched,omitempty"`
}
