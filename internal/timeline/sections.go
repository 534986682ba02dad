package timeline

import (
	"regexp"
	"strings"
)

// Section markers are matched case-insensitively; the trailing period is
// optional so "CONCLUSIONS" and "CONCLUSIONS." both work.
var sectionPatterns = []struct {
	key     string
	pattern *regexp.Regexp
}{
	{"clinical_information", regexp.MustCompile(`(?i)CLINICAL\s+INFORMATION\.?`)},
	{"study_technique", regexp.MustCompile(`(?i)STUDY\s+TECHNIQUE\.?`)},
	{"report", regexp.MustCompile(`(?i)REPORT\.?`)},
	{"conclusions", regexp.MustCompile(`(?i)CONCLUSIONS?\.?`)},
}

type markerHit struct {
	start int
	end   int
	key   string
}

// SplitSections splits a raw pseudo-report into its labelled sections.
// Content between a marker and the next recognized marker (or end of text)
// is assigned to that marker's section, trimmed. A marker that never occurs
// yields a nil section.
func SplitSections(text string) Sections {
	var out Sections

	text = strings.TrimSpace(text)
	if text == "" {
		return out
	}

	var found []markerHit
	for _, sp := range sectionPatterns {
		if loc := sp.pattern.FindStringIndex(text); loc != nil {
			found = append(found, markerHit{start: loc[0], end: loc[1], key: sp.key})
		}
	}
	if len(found) == 0 {
		return out
	}

	// Order by position of occurrence in the text.
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].start < found[j-1].start; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}

	for i, hit := range found {
		end := len(text)
		if i+1 < len(found) {
			end = found[i+1].start
		}
		content := strings.TrimSpace(text[hit.end:end])
		if content == "" {
			continue
		}
		c := content
		switch hit.key {
		case "clinical_information":
			out.ClinicalInformation = &c
		case "study_technique":
			out.StudyTechnique = &c
		case "report":
			out.Report = &c
		case "conclusions":
			out.Conclusions = &c
		}
	}

	return out
}
