package moderation

import (
	"fmt"
	"sort"
	"strings"
)

// Tier adds Suffix to the rejection message once a user's blocked-attempt
// count exceeds Threshold.
type Tier struct {
	Threshold int
	Suffix    string
}

// Escalation is an ordered tier table. Compose evaluates it from the highest
// threshold down and applies the first tier the count exceeds.
type Escalation struct {
	tiers []Tier
}

const (
	suffixReviewWarning = "If you continue to attempt blocked prompts, your account will be sent for review."
	suffixSentForReview = "Your account has been sent for review. If you continue to attempt blocked prompts, your generation permissions will be revoked."
	suffixMuted         = "Your account has been muted."
)

// Thresholds holds the three escalation boundaries, low < mid < high.
type Thresholds struct {
	Low  int
	Mid  int
	High int
}

// DefaultThresholds are the blocked-attempt counts used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 3, Mid: 5, High: 8}
}

// Validate ensures the thresholds are strictly increasing.
func (t Thresholds) Validate() error {
	if t.Low < 0 || t.Low >= t.Mid || t.Mid >= t.High {
		return fmt.Errorf("moderation: thresholds must satisfy 0 <= low < mid < high (got %d/%d/%d)", t.Low, t.Mid, t.High)
	}
	return nil
}

// NewEscalation builds the standard warn/review/mute table.
func NewEscalation(t Thresholds) *Escalation {
	return NewEscalationTable([]Tier{
		{Threshold: t.Low, Suffix: suffixReviewWarning},
		{Threshold: t.Mid, Suffix: suffixSentForReview},
		{Threshold: t.High, Suffix: suffixMuted},
	})
}

// NewEscalationTable builds a table from arbitrary tiers.
func NewEscalationTable(tiers []Tier) *Escalation {
	sorted := append([]Tier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Threshold > sorted[j].Threshold })
	return &Escalation{tiers: sorted}
}

// Compose builds the user-facing rejection for count blocked attempts,
// including the current one.
func (e *Escalation) Compose(count int, reasons []string) string {
	message := "Your prompt was flagged: " + strings.Join(reasons, ", ")
	for _, tier := range e.tiers {
		if count > tier.Threshold {
			return message + ". " + tier.Suffix
		}
	}
	return message
}
