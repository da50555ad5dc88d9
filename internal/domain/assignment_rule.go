package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// RuleType selects the strategy a rule runs.
type RuleType string

const (
	RuleTypeRoundRobin      RuleType = "round_robin"
	RuleTypeLoadBased       RuleType = "load_based"
	RuleTypeDepartmentMatch RuleType = "department_match"
	RuleTypeSkillMatch      RuleType = "skill_match"
)

// DefaultMaxLoad caps agents that have no max load of their own.
const DefaultMaxLoad = 999

// Known reports whether the engine has a strategy for t.
func (t RuleType) Known() bool {
	switch t {
	case RuleTypeRoundRobin, RuleTypeLoadBased, RuleTypeDepartmentMatch, RuleTypeSkillMatch:
		return true
	}
	return false
}

// AssignmentRule is an operator-configured, prioritized strategy.
// Lower priority values are evaluated first.
type AssignmentRule struct {
	ID        string
	Name      string
	Type      RuleType
	Priority  int
	Enabled   bool
	Config    json.RawMessage
	CreatedAt time.Time
}

// RuleConfig is the typed parameter set of one rule type.
type RuleConfig interface {
	RuleType() RuleType
}

// RoundRobinConfig has no parameters; the ring is derived from agent creation order.
type RoundRobinConfig struct{}

// LoadBasedConfig parameters.
type LoadBasedConfig struct {
	DefaultMaxLoad int `json:"default_max_load"`
}

// DepartmentMatchConfig parameters.
type DepartmentMatchConfig struct {
	DefaultCategory string `json:"default_category"`
}

// SkillMatchConfig parameters.
type SkillMatchConfig struct {
	DefaultCategory string `json:"default_category"`
	DefaultMaxLoad  int    `json:"default_max_load"`
}

func (RoundRobinConfig) RuleType() RuleType      { return RuleTypeRoundRobin }
func (LoadBasedConfig) RuleType() RuleType       { return RuleTypeLoadBased }
func (DepartmentMatchConfig) RuleType() RuleType { return RuleTypeDepartmentMatch }
func (SkillMatchConfig) RuleType() RuleType      { return RuleTypeSkillMatch }

// ConfigDefaults fills unset rule parameters.
type ConfigDefaults struct {
	Category string
	MaxLoad  int
}

// ParseRuleConfig decodes raw into the typed config for ruleType, applying defaults.
// On a decode error it still returns the defaulted config alongside the error so
// callers can keep going.
func ParseRuleConfig(ruleType RuleType, raw json.RawMessage, defaults ConfigDefaults) (RuleConfig, error) {
	if defaults.MaxLoad <= 0 {
		defaults.MaxLoad = DefaultMaxLoad
	}
	switch ruleType {
	case RuleTypeRoundRobin:
		var cfg RoundRobinConfig
		return cfg, decodeConfig(raw, &cfg)
	case RuleTypeLoadBased:
		var cfg LoadBasedConfig
		err := decodeConfig(raw, &cfg)
		if err != nil {
			cfg = LoadBasedConfig{}
		}
		if cfg.DefaultMaxLoad <= 0 {
			cfg.DefaultMaxLoad = defaults.MaxLoad
		}
		return cfg, err
	case RuleTypeDepartmentMatch:
		var cfg DepartmentMatchConfig
		err := decodeConfig(raw, &cfg)
		if err != nil {
			cfg = DepartmentMatchConfig{}
		}
		if cfg.DefaultCategory == "" {
			cfg.DefaultCategory = defaults.Category
		}
		return cfg, err
	case RuleTypeSkillMatch:
		var cfg SkillMatchConfig
		err := decodeConfig(raw, &cfg)
		if err != nil {
			cfg = SkillMatchConfig{}
		}
		if cfg.DefaultCategory == "" {
			cfg.DefaultCategory = defaults.Category
		}
		if cfg.DefaultMaxLoad <= 0 {
			cfg.DefaultMaxLoad = defaults.MaxLoad
		}
		return cfg, err
	}
	return nil, fmt.Errorf("unknown rule type %q", ruleType)
}

func decodeConfig(raw json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return fmt.Errorf("decode rule config: %w", err)
	}
	return nil
}
