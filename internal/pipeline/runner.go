// Package pipeline wires the stages together: DICOM resolution, timeline
// parsing, classification, optional narrative enrichment, schema
// validation, and output writing. Validation runs before anything is
// written; a fatal error at any stage produces no output files.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lesion-report/internal/classify"
	"lesion-report/internal/config"
	"lesion-report/internal/dicomseries"
	"lesion-report/internal/enrich"
	"lesion-report/internal/report"
	"lesion-report/internal/schema"
	"lesion-report/internal/timeline"
)

// Options selects the inputs and outputs of one pipeline run.
type Options struct {
	DicomPath    string // file or directory, optional
	ExcelPath    string // timeline spreadsheet, optional
	CaseID       string // generated when empty
	OutDir       string // no files are written when empty
	SkipValidate bool   // bypass the schema gate (debugging only)
}

// Outputs describes a completed run.
type Outputs struct {
	Analysis     *classify.AnalysisResult
	Exams        []timeline.ExamRecord
	Report       string
	AnalysisPath string
	TimelinePath string
	ReportPath   string
}

// Runner owns one configured instance of every pipeline stage.
type Runner struct {
	cfg      *config.Config
	log      *logrus.Logger
	parser   *timeline.Parser
	resolver *dicomseries.Resolver
	engine   *classify.Engine
	gate     *schema.Gate
	enricher *enrich.Enricher
}

// NewRunner builds a Runner from configuration. The enricher is only
// active when an API key is configured.
func NewRunner(cfg *config.Config, log *logrus.Logger) (*Runner, error) {
	gate, err := schema.NewGate()
	if err != nil {
		return nil, err
	}

	var enricher *enrich.Enricher
	if cfg.OpenAIAPIKey != "" {
		client := enrich.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		enricher = enrich.NewEnricher(client, log)
	}

	return &Runner{
		cfg:      cfg,
		log:      log,
		parser:   timeline.NewParser(cfg.ColumnAliases, log),
		resolver: dicomseries.NewResolver(cfg.MaxSampleSlices, log),
		engine:   classify.NewEngine(cfg.Thresholds, log),
		gate:     gate,
		enricher: enricher,
	}, nil
}

// Run executes the full pipeline for one case.
func (r *Runner) Run(ctx context.Context, opts Options) (*Outputs, error) {
	if opts.DicomPath == "" && opts.ExcelPath == "" {
		return nil, fmt.Errorf("at least one input is required: a DICOM path or a timeline spreadsheet")
	}
	caseID := opts.CaseID
	if caseID == "" {
		caseID = "case-" + uuid.NewString()[:8]
	}
	log := r.log.WithField("case_id", caseID)
	collector := NewCollector()

	var series *dicomseries.Series
	if opts.DicomPath != "" {
		s, warns, err := r.resolver.Resolve(opts.DicomPath)
		if err != nil {
			return nil, err
		}
		collector.Extend(warns)
		series = s
		log.WithFields(logrus.Fields{
			"input_kind": s.InputKind,
			"n_slices":   len(s.Slices),
			"series_uid": s.SeriesInstanceUID,
		}).Info("dicom input resolved")
	}

	var exams []timeline.ExamRecord
	if opts.ExcelPath != "" {
		parsed, warns, err := r.parser.ParseFile(opts.ExcelPath)
		if err != nil {
			return nil, err
		}
		collector.Extend(warns)
		exams = parsed
		log.WithField("exam_count", len(exams)).Info("timeline parsed")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analysis := r.engine.Analyze(caseID, exams, series)
	analysis.Warnings = append(analysis.Warnings, collector.Strings()...)

	r.enricher.Enrich(ctx, analysis)

	if !opts.SkipValidate {
		if err := r.gate.Validate(analysis); err != nil {
			return nil, fmt.Errorf("analysis failed schema validation: %w", err)
		}
	}

	rendered, err := report.Render(exams, analysis)
	if err != nil {
		return nil, err
	}

	out := &Outputs{Analysis: analysis, Exams: exams, Report: rendered}
	if opts.OutDir != "" {
		if err := r.writeOutputs(out, opts.OutDir); err != nil {
			return nil, err
		}
	}
	log.WithField("status", analysis.OverallStatus).Info("pipeline complete")
	return out, nil
}

// writeOutputs persists the three artifacts. It runs only after the schema
// gate has passed.
func (r *Runner) writeOutputs(out *Outputs, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create output directory %s: %w", dir, err)
	}

	analysisJSON, err := json.MarshalIndent(out.Analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}
	out.AnalysisPath = filepath.Join(dir, "analysis.json")
	if err := os.WriteFile(out.AnalysisPath, append(analysisJSON, '\n'), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", out.AnalysisPath, err)
	}

	if out.Exams != nil {
		timelineJSON, err := json.MarshalIndent(out.Exams, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding timeline: %w", err)
		}
		out.TimelinePath = filepath.Join(dir, "timeline.json")
		if err := os.WriteFile(out.TimelinePath, append(timelineJSON, '\n'), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", out.TimelinePath, err)
		}
	}

	out.ReportPath = filepath.Join(dir, "final_report.md")
	md := out.Report
	if !strings.HasSuffix(md, "\n") {
		md += "\n"
	}
	if err := os.WriteFile(out.ReportPath, []byte(md), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", out.ReportPath, err)
	}
	return nil
}
