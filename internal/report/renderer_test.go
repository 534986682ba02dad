package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lesion-report/internal/classify"
	"lesion-report/internal/config"
	"lesion-report/internal/logging"
	"lesion-report/internal/timeline"
)

func strp(s string) *string { return &s }

func analyze(t *testing.T, exams []timeline.ExamRecord) *classify.AnalysisResult {
	t.Helper()
	return classify.NewEngine(config.DefaultThresholds(), logging.NewNop()).Analyze("CASE_R1", exams, nil)
}

func TestRenderProgressionReport(t *testing.T) {
	exams := []timeline.ExamRecord{
		{
			PatientID:     "P1",
			StudyDate:     strp("2023-01-01"),
			LesionSizesMM: []float64{10.0},
			ReportSections: timeline.Sections{
				ClinicalInformation: strp("Follow-up of pulmonary nodule."),
			},
		},
		{
			PatientID:     "P1",
			StudyDate:     strp("2023-07-01"),
			LesionSizesMM: []float64{16.0},
			ReportSections: timeline.Sections{
				Report:      strp("Nodule in the right upper lobe has enlarged."),
				Conclusions: strp("Findings consistent with progression."),
			},
		},
	}

	out, err := Render(exams, analyze(t, exams))
	require.NoError(t, err)

	assert.Contains(t, out, "# Lesion Evolution Report: CASE_R1")
	assert.Contains(t, out, "**PROGRESSION**")
	assert.Contains(t, out, "| 0 | 10 | 16 | 6 | 60 | progression |")
	assert.Contains(t, out, "Follow-up of pulmonary nodule.")
	assert.Contains(t, out, "Findings consistent with progression.")
	// No exam carried a technique section.
	assert.Contains(t, out, "## Study Technique\n\nN/A")
}

func TestRenderLatestSectionWins(t *testing.T) {
	exams := []timeline.ExamRecord{
		{StudyDate: strp("2023-01-01"), LesionSizesMM: []float64{10},
			ReportSections: timeline.Sections{Conclusions: strp("old conclusion")}},
		{StudyDate: strp("2023-07-01"), LesionSizesMM: []float64{10.5},
			ReportSections: timeline.Sections{Conclusions: strp("new conclusion")}},
	}

	out, err := Render(exams, analyze(t, exams))
	require.NoError(t, err)
	assert.Contains(t, out, "new conclusion")
	assert.NotContains(t, out, "old conclusion")
}

func TestRenderEnrichmentFillsGapsOnly(t *testing.T) {
	exams := []timeline.ExamRecord{
		{StudyDate: strp("2023-01-01"), LesionSizesMM: []float64{10},
			ReportSections: timeline.Sections{Report: strp("human report")}},
		{StudyDate: strp("2023-07-01"), LesionSizesMM: []float64{10.2}},
	}

	result := analyze(t, exams)
	result.LatestStudyTechnique = strp("CT chest with contrast.")
	result.LatestReport = strp("machine report")
	result.LLMEnriched = true

	out, err := Render(exams, result)
	require.NoError(t, err)

	// Enrichment supplies the missing technique but must not displace the
	// section the timeline already had.
	assert.Contains(t, out, "CT chest with contrast.")
	assert.Contains(t, out, "human report")
	assert.NotContains(t, out, "machine report")
	assert.Contains(t, out, "reviewed by a radiologist")
}

func TestRenderNoTimeline(t *testing.T) {
	result := analyze(t, nil)

	out, err := Render(nil, result)
	require.NoError(t, err)
	assert.Contains(t, out, "**UNKNOWN**")
	assert.Contains(t, out, "no_timeline")
	assert.Contains(t, out, "## Conclusions\n\nN/A")
}
