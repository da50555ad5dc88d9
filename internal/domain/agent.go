package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// PresenceStatus reports whether an agent can take work right now.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

// Agent models a support agent eligible to receive tickets.
type Agent struct {
	ID          string
	Name        string
	IsActive    bool
	Presence    PresenceStatus
	Department  string
	Skills      []string
	MaxLoad     int
	CurrentLoad int
	CreatedAt   time.Time
}

// EffectiveMaxLoad returns the agent cap, or fallback when the agent has none.
func (a Agent) EffectiveMaxLoad(fallback int) int {
	if a.MaxLoad > 0 {
		return a.MaxLoad
	}
	return fallback
}

// HasSkill reports whether the agent carries the given category tag.
func (a Agent) HasSkill(tag string) bool {
	for _, skill := range a.Skills {
		if strings.EqualFold(skill, tag) {
			return true
		}
	}
	return false
}

// ParseSkills decodes a stored JSON skill list. Malformed input yields no skills.
func ParseSkills(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var skills []string
	if err := json.Unmarshal([]byte(raw), &skills); err != nil {
		return nil
	}
	out := skills[:0]
	for _, s := range skills {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
