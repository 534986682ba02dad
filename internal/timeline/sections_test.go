package timeline

import (
	"testing"
)

func TestSplitSectionsAllPresent(t *testing.T) {
	text := "CLINICAL INFORMATION. History of smoking. " +
		"STUDY TECHNIQUE. CT without contrast. " +
		"REPORT. Nodule in right upper lobe. " +
		"CONCLUSIONS. Follow-up in 3 months."

	got := SplitSections(text)

	checks := []struct {
		name string
		val  *string
		want string
	}{
		{"clinical_information", got.ClinicalInformation, "History of smoking."},
		{"study_technique", got.StudyTechnique, "CT without contrast."},
		{"report", got.Report, "Nodule in right upper lobe."},
		{"conclusions", got.Conclusions, "Follow-up in 3 months."},
	}
	for _, c := range checks {
		if c.val == nil {
			t.Fatalf("%s = nil, want %q", c.name, c.want)
		}
		if *c.val != c.want {
			t.Errorf("%s = %q, want %q", c.name, *c.val, c.want)
		}
	}
}

func TestSplitSectionsMissingMarkers(t *testing.T) {
	got := SplitSections("CLINICAL INFORMATION. foo REPORT. bar")

	if got.StudyTechnique != nil {
		t.Errorf("study_technique = %q, want nil", *got.StudyTechnique)
	}
	if got.Conclusions != nil {
		t.Errorf("conclusions = %q, want nil", *got.Conclusions)
	}
	if got.ClinicalInformation == nil || *got.ClinicalInformation != "foo" {
		t.Errorf("clinical_information = %v, want \"foo\"", got.ClinicalInformation)
	}
	if got.Report == nil || *got.Report != "bar" {
		t.Errorf("report = %v, want \"bar\"", got.Report)
	}
}

func TestSplitSectionsCaseAndPeriodInsensitive(t *testing.T) {
	got := SplitSections("clinical information no trailing period conclusions done")

	if got.ClinicalInformation == nil || *got.ClinicalInformation != "no trailing period" {
		t.Errorf("clinical_information = %v, want \"no trailing period\"", got.ClinicalInformation)
	}
	if got.Conclusions == nil || *got.Conclusions != "done" {
		t.Errorf("conclusions = %v, want \"done\"", got.Conclusions)
	}
}

func TestSplitSectionsEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "no markers here at all"} {
		got := SplitSections(text)
		if got.ClinicalInformation != nil || got.StudyTechnique != nil ||
			got.Report != nil || got.Conclusions != nil {
			t.Errorf("SplitSections(%q) should yield all-nil sections", text)
		}
	}
}

func TestSplitSectionsEmptySectionIsNil(t *testing.T) {
	// "present but empty" must not produce an empty string.
	got := SplitSections("REPORT. CONCLUSIONS. something")
	if got.Report != nil {
		t.Errorf("report = %q, want nil for empty section", *got.Report)
	}
	if got.Conclusions == nil || *got.Conclusions != "something" {
		t.Errorf("conclusions = %v, want \"something\"", got.Conclusions)
	}
}
