package moderation

import (
	"strings"
	"testing"
)

func TestEscalationCompose(t *testing.T) {
	esc := NewEscalation(Thresholds{Low: 3, Mid: 5, High: 8})
	base := "Your prompt was flagged: minors, violence"
	tests := []struct {
		count int
		want  string
	}{
		{count: 0, want: base},
		{count: 1, want: base},
		{count: 3, want: base},
		{count: 4, want: base + ". " + suffixReviewWarning},
		{count: 5, want: base + ". " + suffixReviewWarning},
		{count: 6, want: base + ". " + suffixSentForReview},
		{count: 8, want: base + ". " + suffixSentForReview},
		{count: 9, want: base + ". " + suffixMuted},
		{count: 100, want: base + ". " + suffixMuted},
	}
	for _, tc := range tests {
		if got := esc.Compose(tc.count, []string{"minors", "violence"}); got != tc.want {
			t.Fatalf("Compose(%d) = %q, want %q", tc.count, got, tc.want)
		}
	}
}

func TestEscalationIsMonotonic(t *testing.T) {
	esc := NewEscalation(DefaultThresholds())
	rank := map[string]int{"": 0, suffixReviewWarning: 1, suffixSentForReview: 2, suffixMuted: 3}
	prev := 0
	for count := 0; count <= 20; count++ {
		msg := esc.Compose(count, []string{"x"})
		level := 0
		for suffix, r := range rank {
			if suffix != "" && strings.HasSuffix(msg, suffix) {
				level = r
			}
		}
		if level < prev {
			t.Fatalf("escalation dropped at count %d: %q", count, msg)
		}
		prev = level
	}
}

func TestEscalationTableIsAdditive(t *testing.T) {
	esc := NewEscalationTable([]Tier{
		{Threshold: 1, Suffix: "first"},
		{Threshold: 10, Suffix: "banned"},
		{Threshold: 5, Suffix: "second"},
	})
	if got := esc.Compose(11, []string{"x"}); !strings.HasSuffix(got, "banned") {
		t.Fatalf("Compose(11) = %q, want banned tier", got)
	}
	if got := esc.Compose(6, []string{"x"}); !strings.HasSuffix(got, "second") {
		t.Fatalf("Compose(6) = %q, want second tier", got)
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("default thresholds invalid: %v", err)
	}
	for _, th := range []Thresholds{{Low: 3, Mid: 3, High: 8}, {Low: 5, Mid: 4, High: 8}, {Low: -1, Mid: 2, High: 3}} {
		if err := th.Validate(); err == nil {
			t.Fatalf("expected %+v to be rejected", th)
		}
	}
}
