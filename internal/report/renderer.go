// Package report renders the human-readable Markdown companion to the
// structured analysis document.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"lesion-report/internal/classify"
	"lesion-report/internal/timeline"
)

//go:embed report.md.tmpl
var reportTemplate string

type templateData struct {
	Analysis            *classify.AnalysisResult
	ClinicalInformation string
	StudyTechnique      string
	Report              string
	Conclusions         string
}

var funcs = template.FuncMap{
	"upper": func(v interface{}) string { return strings.ToUpper(fmt.Sprint(v)) },
	"deref": func(v *int) int {
		if v == nil {
			return 0
		}
		return *v
	},
	"strOrNA": func(v *string) string {
		if v == nil || *v == "" {
			return "N/A"
		}
		return *v
	},
	"orNA": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "N/A"
		}
		return s
	},
	"num": func(v *float64) string {
		if v == nil {
			return "N/A"
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	},
	"ints": func(v []int) string {
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, "x")
	},
}

var tmpl = template.Must(template.New("report").Funcs(funcs).Parse(reportTemplate))

// Render produces the Markdown report for one case. Narrative sections are
// taken from the most recent exam that carries them; enrichment output on
// the analysis fills only the sections the timeline never provided.
func Render(exams []timeline.ExamRecord, analysis *classify.AnalysisResult) (string, error) {
	data := templateData{Analysis: analysis}
	data.ClinicalInformation = latestSection(exams, func(s timeline.Sections) *string { return s.ClinicalInformation })
	data.StudyTechnique = latestSection(exams, func(s timeline.Sections) *string { return s.StudyTechnique })
	data.Report = latestSection(exams, func(s timeline.Sections) *string { return s.Report })
	data.Conclusions = latestSection(exams, func(s timeline.Sections) *string { return s.Conclusions })

	if data.StudyTechnique == "" && analysis.LatestStudyTechnique != nil {
		data.StudyTechnique = *analysis.LatestStudyTechnique
	}
	if data.Report == "" && analysis.LatestReport != nil {
		data.Report = *analysis.LatestReport
	}
	if data.Conclusions == "" && analysis.LatestConclusions != nil {
		data.Conclusions = *analysis.LatestConclusions
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}

// latestSection walks the exams in chronological order and keeps the last
// non-empty value the picker finds.
func latestSection(exams []timeline.ExamRecord, pick func(timeline.Sections) *string) string {
	out := ""
	for _, e := range exams {
		if v := pick(e.ReportSections); v != nil && strings.TrimSpace(*v) != "" {
			out = *v
		}
	}
	return out
}
