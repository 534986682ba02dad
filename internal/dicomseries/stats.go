package dicomseries

import (
	"fmt"
	"math"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"lesion-report/internal/errs"
)

// PixelStats summarizes sampled pixel data for the selected series.
type PixelStats struct {
	Shape                []int   `json:"shape"`
	DType                string  `json:"dtype"`
	Min                  float64 `json:"min"`
	Max                  float64 `json:"max"`
	Mean                 float64 `json:"mean"`
	Std                  float64 `json:"std"`
	DataConsistencyScore float64 `json:"data_consistency_score"`
	SampledSlices        int     `json:"sampled_slices"`
}

// computeStats samples at most maxSample slices evenly across the sorted
// sequence and aggregates min/max/mean/std over their pixel values. A slice
// whose pixel data cannot be decoded is excluded with a warning; the stats
// fail only when no sampled slice is decodable.
func (r *Resolver) computeStats(series *Series) (PixelStats, []errs.Warning, error) {
	paths := samplePaths(series.Slices, r.maxSample)

	var warnings []errs.Warning
	var (
		count      int64
		sum, sumSq float64
		mn         = math.Inf(1)
		mx         = math.Inf(-1)
		rows, cols int
		bits       int
		decoded    int
	)

	for _, path := range paths {
		obj, err := ReadObject(path)
		if err != nil {
			warnings = append(warnings, errs.Warning{
				Stage:   "dicom",
				Message: fmt.Sprintf("excluded slice from statistics (%s): %v", path, err),
			})
			continue
		}

		frameRows, frameCols, frameBits, values, err := nativePixels(obj)
		if err != nil {
			warnings = append(warnings, errs.Warning{
				Stage:   "dicom",
				Message: fmt.Sprintf("excluded slice from statistics (%s): %v", path, err),
			})
			continue
		}

		if decoded == 0 {
			rows, cols, bits = frameRows, frameCols, frameBits
		}
		decoded++
		for _, v := range values {
			count++
			sum += v
			sumSq += v * v
			if v < mn {
				mn = v
			}
			if v > mx {
				mx = v
			}
		}
	}

	if decoded == 0 || count == 0 {
		return PixelStats{}, warnings, fmt.Errorf("could not decode pixel data from any sampled slice")
	}

	mean := sum / float64(count)
	variance := sumSq/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)

	shape := []int{rows, cols}
	if series.InputKind == "series" {
		shape = []int{len(series.Slices), rows, cols}
	}

	stats := PixelStats{
		Shape:         shape,
		DType:         dtypeForBits(bits),
		Min:           round4(mn),
		Max:           round4(mx),
		Mean:          round4(mean),
		Std:           round4(std),
		SampledSlices: decoded,
	}
	stats.DataConsistencyScore = consistencyScore(series, stats, count)
	return stats, warnings, nil
}

// nativePixels decodes a native (non-encapsulated) pixel data element into
// a flat value slice, using the first sample per pixel.
func nativePixels(o *Object) (rows, cols, bits int, values []float64, err error) {
	elem, err := o.Data.FindElementByTag(tag.PixelData)
	if err != nil {
		return 0, 0, 0, nil, fmt.Errorf("no PixelData element")
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return 0, 0, 0, nil, fmt.Errorf("PixelData holds no frames")
	}
	return framePixels(info)
}

func framePixels(info dicom.PixelDataInfo) (rows, cols, bits int, values []float64, err error) {
	if len(info.Frames) == 0 {
		return 0, 0, 0, nil, fmt.Errorf("PixelData holds no frames")
	}

	for _, fr := range info.Frames {
		if fr.Encapsulated || fr.NativeData.Data == nil {
			return 0, 0, 0, nil, fmt.Errorf("frame has no decodable native pixel data")
		}
		if rows == 0 {
			rows, cols, bits = fr.NativeData.Rows, fr.NativeData.Cols, fr.NativeData.BitsPerSample
		}
		for _, px := range fr.NativeData.Data {
			if len(px) > 0 {
				values = append(values, float64(px[0]))
			}
		}
	}
	if len(values) == 0 {
		return 0, 0, 0, nil, fmt.Errorf("empty pixel data")
	}
	return rows, cols, bits, values, nil
}

// samplePaths picks at most max slice paths evenly spaced across the
// sorted sequence.
func samplePaths(slices []SliceMeta, max int) []string {
	n := len(slices)
	if n <= max {
		out := make([]string, n)
		for i, sl := range slices {
			out[i] = sl.Path
		}
		return out
	}
	step := float64(n) / float64(max)
	out := make([]string, 0, max)
	for i := 0; i < max; i++ {
		out = append(out, slices[int(float64(i)*step)].Path)
	}
	return out
}

// consistencyScore summarizes spacing/shape uniformity and basic signal
// plausibility in [0,1]. Penalties mirror the quality gates used downstream:
// flat or narrow value ranges, tiny images, and near-constant data lower
// the base score; spacing or shape drift across the sample lowers the
// blended score.
func consistencyScore(series *Series, stats PixelStats, pixelCount int64) float64 {
	base := 1.0
	if stats.Max <= stats.Min {
		base -= 0.4
	} else if stats.Max-stats.Min < 10 {
		base -= 0.2
	}
	if pixelCount < 64*64 {
		base -= 0.2
	}
	if stats.Std < 1.0 {
		base -= 0.2
	}

	score := base*0.7 + metadataCompleteness(series.Metadata)*0.3
	if !uniformSpacing(series.Slices) {
		score -= 0.15
	}
	if !uniformShape(series.Slices) {
		score -= 0.15
	}
	return round3(clamp01(score))
}

func uniformSpacing(slices []SliceMeta) bool {
	var ref []float64
	for _, sl := range slices {
		if len(sl.PixelSpacing) < 2 {
			continue
		}
		if ref == nil {
			ref = sl.PixelSpacing
			continue
		}
		if math.Abs(sl.PixelSpacing[0]-ref[0]) > 1e-6 || math.Abs(sl.PixelSpacing[1]-ref[1]) > 1e-6 {
			return false
		}
	}
	return true
}

func uniformShape(slices []SliceMeta) bool {
	refRows, refCols := 0, 0
	for _, sl := range slices {
		if sl.Rows == 0 && sl.Cols == 0 {
			continue
		}
		if refRows == 0 && refCols == 0 {
			refRows, refCols = sl.Rows, sl.Cols
			continue
		}
		if sl.Rows != refRows || sl.Cols != refCols {
			return false
		}
	}
	return true
}

func dtypeForBits(bits int) string {
	switch {
	case bits <= 8:
		return "uint8"
	case bits <= 16:
		return "uint16"
	default:
		return "uint32"
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
