package classify

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"lesion-report/internal/config"
	"lesion-report/internal/dicomseries"
	"lesion-report/internal/timeline"
)

// Engine applies the RECIST-like rules. Thresholds are fixed at
// construction; the engine keeps no other state.
type Engine struct {
	thresholds config.Thresholds
	log        *logrus.Logger
}

// NewEngine builds an engine with the given thresholds.
func NewEngine(t config.Thresholds, log *logrus.Logger) *Engine {
	return &Engine{thresholds: t, log: log}
}

// Analyze reconciles the timeline and/or resolved DICOM series into one
// AnalysisResult. Either source may be nil, but not a useful comparison:
// fewer than two exams with lesion measurements yields an unknown status.
func (e *Engine) Analyze(caseID string, exams []timeline.ExamRecord, series *dicomseries.Series) *AnalysisResult {
	result := &AnalysisResult{
		CaseID:        caseID,
		OverallStatus: StatusUnknown,
		Evidence: Evidence{
			ProgressionTriggers: []int{},
			ResponseTriggers:    []int{},
			Thresholds: ThresholdValues{
				ProgressionPct:   e.thresholds.ProgressionPct,
				ProgressionAbsMM: e.thresholds.ProgressionAbsMM,
				ResponsePct:      e.thresholds.ResponsePct,
			},
		},
		LesionDeltas: []LesionDelta{},
		Warnings:     []string{},
	}

	if series != nil {
		result.PatientID = series.Metadata.PatientID
		result.Dicom = &DicomBlock{Metadata: series.Metadata, ImageStats: series.Stats}
		result.Imaging = buildImaging(series)
	}

	if len(exams) == 0 {
		result.StatusReason = ReasonNoTimeline
		if series != nil {
			result.StatusExplanation = fmt.Sprintf(
				"Imaging analyzed (%d slice(s)); no exam history available for temporal comparison.",
				len(series.Slices))
			result.KPI.DataCompletenessScore = round1(series.Stats.DataConsistencyScore * 100)
		} else {
			result.StatusExplanation = "No exam history or imaging input available."
		}
		result.Evidence.RuleApplied = "unknown: no comparative timeline available"
		return result
	}

	e.analyzeTimeline(result, exams)
	return result
}

func (e *Engine) analyzeTimeline(result *AnalysisResult, exams []timeline.ExamRecord) {
	if result.PatientID == "" {
		for _, exam := range exams {
			if exam.PatientID != "" {
				result.PatientID = exam.PatientID
				break
			}
		}
	}

	result.ExamCount = len(exams)
	for _, exam := range exams {
		if exam.StudyDate != nil {
			if result.FirstExamDate == nil {
				result.FirstExamDate = exam.StudyDate
			}
			result.LastExamDate = exam.StudyDate
		}
	}
	result.TimeDeltaDays = daysBetween(result.FirstExamDate, result.LastExamDate)
	result.KPI.DataCompletenessScore = completenessScore(exams)

	// Baseline = earliest exam with measurements, latest = most recent.
	baselineIdx, lastIdx := -1, -1
	for i, exam := range exams {
		if len(exam.LesionSizesMM) == 0 {
			continue
		}
		if baselineIdx < 0 {
			baselineIdx = i
		}
		lastIdx = i
	}

	if baselineIdx < 0 || baselineIdx == lastIdx {
		result.StatusReason = ReasonInsufficientData
		result.StatusExplanation = "Fewer than two exams carry lesion measurements; no comparison is possible."
		result.Evidence.RuleApplied = "unknown: fewer than two exams have lesion measurements"
		return
	}

	baseline, last := exams[baselineIdx], exams[lastIdx]
	result.BaselineExam = &ExamRef{
		Index:           baselineIdx,
		Date:            baseline.StudyDate,
		LesionSizesMM:   baseline.LesionSizesMM,
		AccessionNumber: baseline.AccessionNumber,
	}
	result.LastExam = &ExamRef{
		Index:           lastIdx,
		Date:            last.StudyDate,
		LesionSizesMM:   last.LesionSizesMM,
		AccessionNumber: last.AccessionNumber,
	}

	result.LesionDeltas = e.lesionDeltas(baseline.LesionSizesMM, last.LesionSizesMM)
	e.overallStatus(result)
	e.kpis(result, baseline.LesionSizesMM, last.LesionSizesMM)

	e.log.WithFields(logrus.Fields{
		"case_id": result.CaseID,
		"status":  result.OverallStatus,
		"deltas":  len(result.LesionDeltas),
	}).Info("classification complete")
}

// lesionDeltas compares baseline and latest sizes position by position.
// Indices present on only one side become non-comparable "new" entries.
func (e *Engine) lesionDeltas(baseline, last []float64) []LesionDelta {
	n := len(baseline)
	if len(last) > n {
		n = len(last)
	}

	deltas := make([]LesionDelta, 0, n)
	for i := 0; i < n; i++ {
		d := LesionDelta{LesionIndex: i}
		if i < len(baseline) {
			v := baseline[i]
			d.BaselineMM = &v
		}
		if i < len(last) {
			v := last[i]
			d.LastMM = &v
		}

		switch {
		case d.BaselineMM == nil:
			d.Status = LesionStatusNew
			d.Note = "new lesion, absent at baseline"
		case d.LastMM == nil:
			d.Status = LesionStatusNew
			d.Note = "lesion absent at last exam"
		default:
			dm := round2(*d.LastMM - *d.BaselineMM)
			d.DeltaMM = &dm
			if *d.BaselineMM > 0 {
				dp := round1((*d.LastMM - *d.BaselineMM) / *d.BaselineMM * 100)
				d.DeltaPct = &dp
			}
			d.Status = string(e.lesionStatus(d.DeltaMM, d.DeltaPct))
		}
		deltas = append(deltas, d)
	}
	return deltas
}

// lesionStatus classifies a single comparable lesion. Progression requires
// both the percentage and the absolute increase; a zero baseline (nil
// delta_pct) can therefore never classify as progression or response.
func (e *Engine) lesionStatus(deltaMM, deltaPct *float64) Status {
	if deltaMM == nil || deltaPct == nil {
		return StatusStable
	}
	if *deltaMM >= e.thresholds.ProgressionAbsMM && *deltaPct >= e.thresholds.ProgressionPct {
		return StatusProgression
	}
	if *deltaPct <= -e.thresholds.ResponsePct {
		return StatusResponse
	}
	return StatusStable
}

// overallStatus applies the fixed precedence: progression beats response
// beats stable. This ordering is clinical-safety policy.
func (e *Engine) overallStatus(result *AnalysisResult) {
	var progIdx, respIdx []int
	compared := 0
	for _, d := range result.LesionDeltas {
		switch d.Status {
		case string(StatusProgression):
			progIdx = append(progIdx, d.LesionIndex)
			compared++
		case string(StatusResponse):
			respIdx = append(respIdx, d.LesionIndex)
			compared++
		case string(StatusStable):
			compared++
		}
	}
	if progIdx != nil {
		result.Evidence.ProgressionTriggers = progIdx
	}
	if respIdx != nil {
		result.Evidence.ResponseTriggers = respIdx
	}

	t := e.thresholds
	switch {
	case len(progIdx) > 0:
		result.OverallStatus = StatusProgression
		result.StatusReason = ReasonRecistRules
		result.StatusExplanation = fmt.Sprintf(
			"At least one lesion increased by >=%.1f%% and >=%.1f mm.", t.ProgressionPct, t.ProgressionAbsMM)
		result.Evidence.RuleApplied = fmt.Sprintf(
			"progression: lesion(s) %v increased >= %.1f%% AND >= %.1f mm", progIdx, t.ProgressionPct, t.ProgressionAbsMM)
	case len(respIdx) > 0:
		result.OverallStatus = StatusResponse
		result.StatusReason = ReasonRecistRules
		result.StatusExplanation = fmt.Sprintf(
			"At least one lesion decreased by >=%.1f%%.", t.ResponsePct)
		result.Evidence.RuleApplied = fmt.Sprintf(
			"response: lesion(s) %v decreased >= %.1f%%", respIdx, t.ResponsePct)
	case compared > 0:
		result.OverallStatus = StatusStable
		result.StatusReason = ReasonRecistRules
		result.StatusExplanation = "No lesion met the progression or response criteria."
		result.Evidence.RuleApplied = "stable: no progression or response criteria met"
	default:
		result.OverallStatus = StatusUnknown
		result.StatusReason = ReasonInsufficientData
		result.StatusExplanation = "No positionally comparable lesion measurements between baseline and latest exam."
		result.Evidence.RuleApplied = "unknown: no lesion measurements available for comparison"
	}
}

func (e *Engine) kpis(result *AnalysisResult, baseline, last []float64) {
	sumBase := sumDiameters(baseline)
	sumCurr := sumDiameters(last)
	domBase := dominantLesion(baseline)
	domCurr := dominantLesion(last)

	result.KPI.SumDiametersBaselineMM = sumBase
	result.KPI.SumDiametersCurrentMM = sumCurr
	result.KPI.SumDiametersDeltaPct = pctDelta(sumBase, sumCurr)
	result.KPI.DominantLesionBaselineMM = domBase
	result.KPI.DominantLesionCurrentMM = domCurr
	result.KPI.DominantLesionDeltaPct = pctDelta(domBase, domCurr)
	result.KPI.LesionCountBaseline = len(baseline)
	result.KPI.LesionCountCurrent = len(last)
	result.KPI.LesionCountDelta = len(last) - len(baseline)
	result.KPI.GrowthRateMMPerDay = growthRate(domBase, domCurr, result.TimeDeltaDays)
}

func buildImaging(series *dicomseries.Series) *Imaging {
	rows, cols := 0, 0
	if len(series.Stats.Shape) >= 2 {
		rows = series.Stats.Shape[len(series.Stats.Shape)-2]
		cols = series.Stats.Shape[len(series.Stats.Shape)-1]
	}

	spacing := make([]*float64, 3)
	spacing[0] = series.ZSpacingMM
	if ps := series.Metadata.PixelSpacing; len(ps) >= 2 {
		y, x := round4(ps[0]), round4(ps[1])
		spacing[1], spacing[2] = &y, &x
	}

	img := &Imaging{
		InputKind:      series.InputKind,
		NSlices:        len(series.Slices),
		VolumeShape:    []int{len(series.Slices), rows, cols},
		SpacingMM:      spacing,
		SortingKeyUsed: series.SortingKey,
		Is3D:           series.Is3D,
	}
	if series.SeriesInstanceUID != "" {
		uid := series.SeriesInstanceUID
		img.SeriesInstanceUID = &uid
	}
	return img
}

// completenessScore measures timeline completeness 0-100: one point per
// exam for each of study date, lesion sizes, and any non-empty section.
func completenessScore(exams []timeline.ExamRecord) float64 {
	if len(exams) == 0 {
		return 0
	}
	total := 0
	for _, exam := range exams {
		if exam.StudyDate != nil {
			total++
		}
		if len(exam.LesionSizesMM) > 0 {
			total++
		}
		s := exam.ReportSections
		if s.ClinicalInformation != nil || s.StudyTechnique != nil || s.Report != nil || s.Conclusions != nil {
			total++
		}
	}
	return round1(float64(total) / float64(len(exams)*3) * 100)
}

func sumDiameters(sizes []float64) *float64 {
	if len(sizes) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range sizes {
		sum += v
	}
	r := round2(sum)
	return &r
}

func dominantLesion(sizes []float64) *float64 {
	if len(sizes) == 0 {
		return nil
	}
	max := sizes[0]
	for _, v := range sizes[1:] {
		if v > max {
			max = v
		}
	}
	return &max
}

func pctDelta(baseline, current *float64) *float64 {
	if baseline == nil || current == nil || *baseline == 0 {
		return nil
	}
	r := round1((*current - *baseline) / *baseline * 100)
	return &r
}

// growthRate is the dominant-lesion change in mm/day; nil without a time
// span (same-day exams included).
func growthRate(domBaseline, domCurrent *float64, days *int) *float64 {
	if domBaseline == nil || domCurrent == nil || days == nil || *days == 0 {
		return nil
	}
	r := round4((*domCurrent - *domBaseline) / float64(*days))
	return &r
}

func daysBetween(first, last *string) *int {
	if first == nil || last == nil {
		return nil
	}
	t1, err1 := time.Parse("2006-01-02", *first)
	t2, err2 := time.Parse("2006-01-02", *last)
	if err1 != nil || err2 != nil {
		return nil
	}
	days := int(t2.Sub(t1).Hours() / 24)
	return &days
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
