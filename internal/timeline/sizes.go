package timeline

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sizeSeparators = regexp.MustCompile(`[,;|/\\]+`)
	trailingUnits  = regexp.MustCompile(`[a-zA-Z°]+$`)
)

// ParseLesionSizes parses a raw cell value into lesion sizes in mm.
// Accepts a single number or a delimiter-separated list (comma, semicolon,
// newline, slash, whitespace). Trailing units like "mm" are stripped.
// Unparsable tokens are dropped, not fatal; each dropped token is returned
// so the caller can record a warning. The result is sorted ascending.
func ParseLesionSizes(raw string) (sizes []float64, dropped []string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, nil
	}

	// Excel Alt+Enter cells contain \r\n or \n.
	text = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(text)
	normalized := sizeSeparators.ReplaceAllString(text, " ")

	for _, token := range strings.Fields(normalized) {
		clean := strings.Trim(trailingUnits.ReplaceAllString(token, ""), " .")
		if clean == "" {
			continue
		}
		v, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			dropped = append(dropped, token)
			continue
		}
		sizes = append(sizes, v)
	}

	sort.Float64s(sizes)
	return sizes, dropped
}

// dedupeSorted merges size lists collected from several columns into one
// sorted list without duplicates.
func dedupeSorted(sizes []float64) []float64 {
	if len(sizes) == 0 {
		return nil
	}
	sort.Float64s(sizes)
	out := sizes[:1]
	for _, v := range sizes[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
