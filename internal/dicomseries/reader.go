// Package dicomseries resolves a file or directory of DICOM objects into
// one selected series with ordered slices, geometric metadata, and sampled
// pixel statistics. Source objects are read-only and never mutated.
package dicomseries

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Object wraps a parsed DICOM dataset for easier access
type Object struct {
	Data dicom.Dataset
	Path string
}

// ReadObject reads a DICOM file including pixel data.
func ReadObject(path string) (*Object, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}

	ds, err := dicom.Parse(file, info.Size(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}

	return &Object{Data: ds, Path: path}, nil
}

// ReadObjectMetadata reads only the metadata (no pixel data).
func ReadObjectMetadata(path string) (*Object, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}

	ds, err := dicom.Parse(file, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}

	return &Object{Data: ds, Path: path}, nil
}

// String returns a string value for a tag, or empty string if not found.
func (o *Object) String(t tag.Tag) string {
	elem, err := o.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return ""
	}

	val := elem.Value.GetValue()
	switch v := val.(type) {
	case []string:
		if len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
	case string:
		return strings.TrimSpace(v)
	case []int:
		if len(v) > 0 {
			return strconv.Itoa(v[0])
		}
	}
	return ""
}

// Int returns an integer value for a tag.
func (o *Object) Int(t tag.Tag) (int, bool) {
	elem, err := o.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return 0, false
	}

	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], true
		}
	case int:
		return v, true
	case []string:
		if len(v) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(v[0])); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// Floats returns all numeric values for a tag. DICOM decimal strings (DS)
// arrive as []string and are parsed individually.
func (o *Object) Floats(t tag.Tag) []float64 {
	elem, err := o.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return nil
	}

	switch v := elem.Value.GetValue().(type) {
	case []float64:
		return append([]float64{}, v...)
	case []string:
		var out []float64
		for _, s := range v {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				out = append(out, f)
			}
		}
		return out
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out
	}
	return nil
}

// Float returns the first numeric value for a tag.
func (o *Object) Float(t tag.Tag) (float64, bool) {
	vals := o.Floats(t)
	if len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}
