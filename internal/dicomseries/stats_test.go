package dicomseries

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"

	"lesion-report/internal/logging"
)

func nativeFrame(rows, cols, bits int, pixels []int) *frame.Frame {
	data := make([][]int, len(pixels))
	for i, p := range pixels {
		data[i] = []int{p}
	}
	return &frame.Frame{
		NativeData: frame.NativeFrame{
			Rows:          rows,
			Cols:          cols,
			BitsPerSample: bits,
			Data:          data,
		},
	}
}

func TestFramePixelsDecodesNativeFrame(t *testing.T) {
	info := dicom.PixelDataInfo{
		Frames: []*frame.Frame{nativeFrame(2, 2, 16, []int{0, 10, 20, 30})},
	}

	rows, cols, bits, values, err := framePixels(info)
	if err != nil {
		t.Fatalf("framePixels: %v", err)
	}
	if rows != 2 || cols != 2 || bits != 16 {
		t.Errorf("geometry = %dx%d/%d bits, want 2x2/16", rows, cols, bits)
	}
	want := []float64{0, 10, 20, 30}
	if len(values) != len(want) {
		t.Fatalf("decoded %d values, want %d", len(values), len(want))
	}
	for i, v := range want {
		if values[i] != v {
			t.Errorf("value %d = %v, want %v", i, values[i], v)
		}
	}
}

func TestFramePixelsRejectsEncapsulated(t *testing.T) {
	info := dicom.PixelDataInfo{
		Frames: []*frame.Frame{{Encapsulated: true}},
	}
	if _, _, _, _, err := framePixels(info); err == nil {
		t.Fatal("encapsulated frame should not decode")
	}
}

func TestFramePixelsRejectsEmpty(t *testing.T) {
	if _, _, _, _, err := framePixels(dicom.PixelDataInfo{}); err == nil {
		t.Fatal("PixelDataInfo without frames should not decode")
	}
}

func TestComputeStatsAllUndecodableFails(t *testing.T) {
	dir := t.TempDir()

	// A present-but-corrupt object and a missing one: each must be excluded
	// with its own warning, and with nothing left the stats must fail.
	corrupt := filepath.Join(dir, "corrupt.dcm")
	if err := os.WriteFile(corrupt, make([]byte, 200), 0644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.dcm")

	series := &Series{
		InputKind: "series",
		Slices: []SliceMeta{
			{Path: corrupt},
			{Path: missing},
		},
	}

	r := NewResolver(16, logging.NewNop())
	_, warnings, err := r.computeStats(series)
	if err == nil {
		t.Fatal("computeStats should fail when no sampled slice decodes")
	}
	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want one per excluded slice: %v", len(warnings), warnings)
	}
	for _, w := range warnings {
		if w.Stage != "dicom" || !strings.Contains(w.Message, "excluded slice from statistics") {
			t.Errorf("unexpected warning: %v", w)
		}
	}
}
