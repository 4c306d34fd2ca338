package domain

// ModerationSource names the screening stage that produced an outcome.
type ModerationSource string

const (
	ModerationSourceRegex    ModerationSource = "regex"
	ModerationSourceExternal ModerationSource = "external"
)

// ModerationOutcome is the transient result of screening one prompt.
type ModerationOutcome struct {
	Blocked bool
	Reasons []string
	Source  ModerationSource
}
