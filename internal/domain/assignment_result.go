package domain

// Outcome reasons reported when a ticket is not assigned.
const (
	ReasonAlreadyAssigned = "Already assigned"
	ReasonNoRules         = "No assignment rules configured"
	ReasonNoMatch         = "No matching rule found an available agent"
)

// AssignmentResult is returned by every Assign call.
type AssignmentResult struct {
	Assigned  bool
	AgentID   string
	AgentName string
	RuleID    string
	RuleName  string
	RuleType  RuleType
	Reason    string
}

// RuleTrace records how one rule fared during evaluation.
type RuleTrace struct {
	RuleID   string
	RuleName string
	RuleType RuleType
	Priority int
	Matched  bool
	Agent    *Agent
	Error    string
}

// PreviewResult is the read-only evaluation of the rule chain for a ticket.
type PreviewResult struct {
	Results    []RuleTrace
	FirstMatch *RuleTrace
	Reason     string
}
