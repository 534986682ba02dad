package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"lesion-report/internal/classify"
	"lesion-report/internal/config"
	"lesion-report/internal/errs"
	"lesion-report/internal/logging"
)

func testConfig() *config.Config {
	return &config.Config{
		Thresholds:      config.DefaultThresholds(),
		MaxSampleSlices: 16,
		ColumnAliases:   map[string][]string{},
	}
}

func testRunner(t *testing.T) *Runner {
	t.Helper()
	r, err := NewRunner(testConfig(), logging.NewNop())
	require.NoError(t, err)
	return r
}

// writeTimelineXLSX builds a minimal spreadsheet the parser accepts.
func writeTimelineXLSX(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}

	path := filepath.Join(t.TempDir(), "timeline.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestRunRequiresAnInput(t *testing.T) {
	_, err := testRunner(t).Run(context.Background(), Options{CaseID: "C1"})
	require.Error(t, err)
}

func TestRunTimelineOnly(t *testing.T) {
	xlsx := writeTimelineXLSX(t, [][]interface{}{
		{"patient_id", "study_date", "lesion_size_mm", "report_text"},
		{"P1", "2023-01-01", "10.0", "CLINICAL INFORMATION. Nodule follow-up. CONCLUSIONS. Stable."},
		{"P1", "2023-07-01", "16.0", "CONCLUSIONS. Significant growth."},
	})
	outDir := t.TempDir()

	out, err := testRunner(t).Run(context.Background(), Options{
		ExcelPath: xlsx,
		CaseID:    "CASE_P1",
		OutDir:    outDir,
	})
	require.NoError(t, err)

	assert.Equal(t, classify.StatusProgression, out.Analysis.OverallStatus)
	assert.Equal(t, "P1", out.Analysis.PatientID)
	assert.Equal(t, 2, out.Analysis.ExamCount)
	assert.Contains(t, out.Report, "Significant growth.")

	// All three artifacts land in the output directory.
	raw, err := os.ReadFile(filepath.Join(outDir, "analysis.json"))
	require.NoError(t, err)
	var onDisk classify.AnalysisResult
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "CASE_P1", onDisk.CaseID)

	_, err = os.Stat(filepath.Join(outDir, "timeline.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "final_report.md"))
	assert.NoError(t, err)
}

func TestRunGeneratesCaseID(t *testing.T) {
	xlsx := writeTimelineXLSX(t, [][]interface{}{
		{"patient_id", "lesion_size_mm"},
		{"P2", "12.0"},
	})

	out, err := testRunner(t).Run(context.Background(), Options{ExcelPath: xlsx})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Analysis.CaseID)
}

func TestRunFatalErrorWritesNothing(t *testing.T) {
	outDir := t.TempDir()

	_, err := testRunner(t).Run(context.Background(), Options{
		DicomPath: filepath.Join(outDir, "does-not-exist"),
		OutDir:    outDir,
	})
	var nf *errs.NotFoundError
	require.ErrorAs(t, err, &nf)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a failed run must not leave partial output")
}

func TestRunMissingRequiredColumnIsFatal(t *testing.T) {
	xlsx := writeTimelineXLSX(t, [][]interface{}{
		{"patient_id", "study_date"},
		{"P3", "2023-01-01"},
	})
	outDir := t.TempDir()

	_, err := testRunner(t).Run(context.Background(), Options{ExcelPath: xlsx, OutDir: outDir})
	var se *errs.SchemaError
	require.ErrorAs(t, err, &se)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunPropagatesParserWarnings(t *testing.T) {
	xlsx := writeTimelineXLSX(t, [][]interface{}{
		{"patient_id", "study_date", "lesion_size_mm"},
		{"P4", "2023-01-01", "10.0, not-a-number"},
		{"P4", "2023-07-01", "10.5"},
	})

	out, err := testRunner(t).Run(context.Background(), Options{ExcelPath: xlsx})
	require.NoError(t, err)
	require.NotEmpty(t, out.Analysis.Warnings)
}

func TestCollectorOrderAndCount(t *testing.T) {
	c := NewCollector()
	c.Add("dicom", "skipped %s", "a.dcm")
	c.Extend([]errs.Warning{{Stage: "timeline", Message: "bad token"}})

	assert.Equal(t, 2, c.Count())
	got := c.Strings()
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "dicom")
	assert.Contains(t, got[1], "timeline")
}
