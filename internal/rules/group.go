package rules

// Group is an ordered rule-group with its own short-circuit policy.
type Group struct {
	ID                 string
	Name               string
	Category           string
	StopOnFirstFailure bool
	RuleIDs            []string
}
