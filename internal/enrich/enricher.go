package enrich

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"lesion-report/internal/classify"
)

// Enricher coordinates the optional narrative pass.
type Enricher struct {
	client Client
	log    *logrus.Logger
}

// NewEnricher returns an Enricher, or nil when no client is configured.
// A nil Enricher is valid and does nothing.
func NewEnricher(client Client, log *logrus.Logger) *Enricher {
	if client == nil {
		return nil
	}
	return &Enricher{client: client, log: log}
}

// Enrich fills the narrative fields of result that are still empty. It never
// returns an error: on any failure the result is left untouched and the
// failure is logged.
func (e *Enricher) Enrich(ctx context.Context, result *classify.AnalysisResult) {
	if e == nil || result == nil {
		return
	}

	summary, err := caseSummary(result)
	if err != nil {
		e.log.WithError(err).Warn("enrichment skipped: could not build case summary")
		return
	}

	narrative, err := e.client.Narrative(ctx, summary)
	if err != nil {
		e.log.WithError(err).Warn("enrichment skipped: narrative request failed")
		return
	}

	applied := false
	if result.LatestStudyTechnique == nil && narrative.StudyTechnique != "" {
		result.LatestStudyTechnique = &narrative.StudyTechnique
		applied = true
	}
	if result.LatestReport == nil && narrative.PreliminaryFindings != "" {
		result.LatestReport = &narrative.PreliminaryFindings
		applied = true
	}
	if result.LatestConclusions == nil && narrative.Conclusions != "" {
		result.LatestConclusions = &narrative.Conclusions
		applied = true
	}
	if applied {
		result.LLMEnriched = true
		e.log.Info("analysis enriched with model narrative")
	}
}

// caseSummary serializes the facts the model may describe. Numeric results
// and the classification are included read-only context; the model never
// gets to change them.
func caseSummary(result *classify.AnalysisResult) (string, error) {
	summary := map[string]interface{}{
		"case_id":        result.CaseID,
		"patient_id":     result.PatientID,
		"exam_count":     result.ExamCount,
		"overall_status": result.OverallStatus,
		"lesion_deltas":  result.LesionDeltas,
		"kpi":            result.KPI,
	}
	if result.Dicom != nil {
		summary["dicom_metadata"] = result.Dicom.Metadata
		summary["image_stats"] = result.Dicom.ImageStats
	}
	if result.Imaging != nil {
		summary["imaging"] = result.Imaging
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
