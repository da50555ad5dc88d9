package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// PreviewRequest payload. Exactly one of TicketID or Ticket is required.
type PreviewRequest struct {
	TicketID string          `json:"ticket_id"`
	Ticket   *TicketSnapshot `json:"ticket"`
}

// TicketSnapshot is an unsaved ticket to preview routing for.
type TicketSnapshot struct {
	ID       string `json:"id"`
	Category string `json:"category"`
}

// AssignmentResponse mirrors domain.AssignmentResult.
type AssignmentResponse struct {
	Assigned  bool            `json:"assigned"`
	AgentID   string          `json:"agent_id,omitempty"`
	AgentName string          `json:"agent_name,omitempty"`
	RuleID    string          `json:"rule_id,omitempty"`
	RuleName  string          `json:"rule_name,omitempty"`
	RuleType  domain.RuleType `json:"rule_type,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// AgentSummary is the agent view embedded in previews.
type AgentSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Department  string `json:"department"`
	CurrentLoad int    `json:"current_load"`
}

// RuleTraceResponse describes one evaluated rule.
type RuleTraceResponse struct {
	RuleID   string          `json:"rule_id"`
	RuleName string          `json:"rule_name"`
	RuleType domain.RuleType `json:"rule_type"`
	Priority int             `json:"priority"`
	Matched  bool            `json:"matched"`
	Agent    *AgentSummary   `json:"agent,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// PreviewResponse mirrors domain.PreviewResult.
type PreviewResponse struct {
	Results    []RuleTraceResponse `json:"results"`
	FirstMatch *RuleTraceResponse  `json:"first_match,omitempty"`
	Reason     string              `json:"reason,omitempty"`
}

// RuleResponse describes a configured rule. Supported is false for rule types the
// engine skips.
type RuleResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	RuleType  domain.RuleType `json:"rule_type"`
	Priority  int             `json:"priority"`
	Enabled   bool            `json:"enabled"`
	Supported bool            `json:"supported"`
	Config    json.RawMessage `json:"config,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewAssignmentResponse converts a domain result.
func NewAssignmentResponse(result *domain.AssignmentResult) AssignmentResponse {
	return AssignmentResponse{
		Assigned:  result.Assigned,
		AgentID:   result.AgentID,
		AgentName: result.AgentName,
		RuleID:    result.RuleID,
		RuleName:  result.RuleName,
		RuleType:  result.RuleType,
		Reason:    result.Reason,
	}
}

// NewPreviewResponse converts a domain preview.
func NewPreviewResponse(result *domain.PreviewResult) PreviewResponse {
	resp := PreviewResponse{
		Results: make([]RuleTraceResponse, 0, len(result.Results)),
		Reason:  result.Reason,
	}
	for _, trace := range result.Results {
		resp.Results = append(resp.Results, newRuleTraceResponse(trace))
	}
	if result.FirstMatch != nil {
		first := newRuleTraceResponse(*result.FirstMatch)
		resp.FirstMatch = &first
	}
	return resp
}

// NewRuleResponse converts a rule.
func NewRuleResponse(rule domain.AssignmentRule) RuleResponse {
	resp := RuleResponse{
		ID:        rule.ID,
		Name:      rule.Name,
		RuleType:  rule.Type,
		Priority:  rule.Priority,
		Enabled:   rule.Enabled,
		Supported: rule.Type.Known(),
		CreatedAt: rule.CreatedAt,
	}
	if json.Valid(rule.Config) {
		resp.Config = rule.Config
	}
	return resp
}

func newRuleTraceResponse(trace domain.RuleTrace) RuleTraceResponse {
	resp := RuleTraceResponse{
		RuleID:   trace.RuleID,
		RuleName: trace.RuleName,
		RuleType: trace.RuleType,
		Priority: trace.Priority,
		Matched:  trace.Matched,
		Error:    trace.Error,
	}
	if trace.Agent != nil {
		resp.Agent = &AgentSummary{
			ID:          trace.Agent.ID,
			Name:        trace.Agent.Name,
			Department:  trace.Agent.Department,
			CurrentLoad: trace.Agent.CurrentLoad,
		}
	}
	return resp
}
