package tts

import (
	"fmt"
	"strings"
	"testing"
)

// recordingTB captures failures instead of failing the enclosing test.
type recordingTB struct {
	testing.TB
	errors []string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func TestAssertRecovered_ReportsOneFailurePerLine(t *testing.T) {
	rec := &recordingTB{TB: t}
	got := FitResult{Method: WLF{C1: 10, C2: 90}, Quality: FitQuality{RSquared: 1}}

	AssertRecovered(rec, got, DefaultWLF, DefaultAssertionConfig())

	if len(rec.errors) != 1 {
		t.Fatalf("Expected 1 failure report, got %d: %q", len(rec.errors), rec.errors)
	}
	msg := rec.errors[0]
	if strings.Contains(msg, "[") {
		t.Errorf("Failure report prints a slice: %q", msg)
	}
	lines := strings.Split(msg, "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "  C1:") || !strings.HasPrefix(lines[2], "  C2:") {
		t.Errorf("Expected header plus C1 and C2 lines, got %q", lines)
	}
}
