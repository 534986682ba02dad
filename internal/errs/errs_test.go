package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found", NewNotFoundError("/x"), true},
		{"rejected modality", NewRejectedModalityError("/x", "SR", "1.2"), true},
		{"schema", NewSchemaError("patient_id"), true},
		{"validation", NewValidationError([]string{"case_id: required"}), true},
		{"wrapped", fmt.Errorf("resolving: %w", NewNotFoundError("/x")), true},
		{"plain", errors.New("disk full"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRejectedModalityErrorMentionsSOPClass(t *testing.T) {
	err := NewRejectedModalityError("/x/seg.dcm", "SEG", "1.2.840.10008.5.1.4.1.1.66.4")
	msg := err.Error()
	if msg == "" || !errors.As(error(err), new(*RejectedModalityError)) {
		t.Fatal("error must be its own type")
	}
	for _, want := range []string{"SEG", "1.2.840.10008.5.1.4.1.1.66.4", "/x/seg.dcm"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q should contain %q", msg, want)
		}
	}
}

func TestWarningString(t *testing.T) {
	w := Warning{Stage: "timeline", Message: "row 3: dropped token"}
	if got := w.String(); got != "[timeline] row 3: dropped token" {
		t.Errorf("String() = %q", got)
	}
}
