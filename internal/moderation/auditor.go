package moderation

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// PolicyCategory groups banned-term patterns under the name reported to users.
type PolicyCategory struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

// Policy is the banned-term table evaluated by the Auditor, in order.
type Policy struct {
	Categories []PolicyCategory `yaml:"categories"`
}

// AuditResult is the outcome of a local prompt audit.
type AuditResult struct {
	Blocked bool
	Reasons []string
}

// DefaultPolicy is used when no policy file is configured.
func DefaultPolicy() Policy {
	return Policy{Categories: []PolicyCategory{
		{
			Name: "prompt injection",
			Patterns: []string{
				`\bignore\s+(all\s+)?(the\s+)?(previous\s+|prior\s+|above\s+)?instructions\b`,
				`\bdisregard\s+(all\s+)?(previous\s+|prior\s+)?(instructions|rules)\b`,
			},
		},
		{
			Name: "minors",
			Patterns: []string{
				`\b(child|children|kid|kids|toddler|underage|preteen|minor)\b.*\b(nude|naked|nsfw|sexual|explicit)\b`,
				`\b(nude|naked|nsfw|sexual|explicit)\b.*\b(child|children|kid|kids|toddler|underage|preteen|minor)\b`,
			},
		},
		{
			Name: "non-consensual content",
			Patterns: []string{
				`\b(rape|raping|non[\s-]?consensual)\b`,
			},
		},
	}}
}

// LoadPolicy reads a YAML policy table from path.
func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("moderation: read policy: %w", err)
	}
	var policy Policy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("moderation: decode policy: %w", err)
	}
	if len(policy.Categories) == 0 {
		return Policy{}, fmt.Errorf("moderation: policy %s has no categories", path)
	}
	return policy, nil
}

type compiledCategory struct {
	name     string
	patterns []*regexp.Regexp
}

// Auditor checks raw prompt text against a static policy. It performs no I/O
// and is safe for concurrent use.
type Auditor struct {
	categories []compiledCategory
}

// NewAuditor compiles the policy. Patterns are matched case-insensitively
// against NFKC-folded text.
func NewAuditor(policy Policy) (*Auditor, error) {
	a := &Auditor{}
	for _, cat := range policy.Categories {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return nil, fmt.Errorf("moderation: policy category without name")
		}
		cc := compiledCategory{name: name}
		for _, pattern := range cat.Patterns {
			re, err := regexp.Compile("(?is)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("moderation: category %q: %w", name, err)
			}
			cc.patterns = append(cc.patterns, re)
		}
		a.categories = append(a.categories, cc)
	}
	return a, nil
}

// MustNewAuditor panics if the policy does not compile.
func MustNewAuditor(policy Policy) *Auditor {
	a, err := NewAuditor(policy)
	if err != nil {
		panic(err)
	}
	return a
}

// Audit returns the matched category names in policy order.
func (a *Auditor) Audit(prompt string) AuditResult {
	text := a.normalize(prompt)
	if text == "" {
		return AuditResult{}
	}
	var reasons []string
	for _, cat := range a.categories {
		for _, re := range cat.patterns {
			if re.MatchString(text) {
				reasons = append(reasons, cat.name)
				break
			}
		}
	}
	return AuditResult{Blocked: len(reasons) > 0, Reasons: reasons}
}

func (a *Auditor) normalize(prompt string) string {
	// Casers are stateful and must not be shared across goroutines.
	text := cases.Fold().String(norm.NFKC.String(prompt))
	return strings.Join(strings.Fields(text), " ")
}
