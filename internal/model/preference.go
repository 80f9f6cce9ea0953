package model

import (
	"encoding/json"
	"time"
)

// AdaptiveRule is a style preference learned from the user's own phrasing,
// scored so repeated instructions outrank one-offs.
type AdaptiveRule struct {
	Rule      string    `json:"rule"`
	Score     int       `json:"score"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPreference holds the per-user style tiers: explicit rules the user has
// locked in, and adaptive memory captured from queries.
type UserPreference struct {
	UserID        string    `gorm:"primaryKey;size:64" json:"user_id"`
	ExplicitRules string    `gorm:"type:text" json:"-"`
	AdaptiveRules string    `gorm:"type:text" json:"-"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *UserPreference) ExplicitRuleList() []string {
	return decodeStringList(p.ExplicitRules)
}

func (p *UserPreference) SetExplicitRuleList(rules []string) {
	p.ExplicitRules = encodeStringList(rules)
}

func (p *UserPreference) AdaptiveRuleList() []AdaptiveRule {
	if p.AdaptiveRules == "" {
		return nil
	}
	var rules []AdaptiveRule
	_ = json.Unmarshal([]byte(p.AdaptiveRules), &rules)
	return rules
}

func (p *UserPreference) SetAdaptiveRuleList(rules []AdaptiveRule) {
	b, _ := json.Marshal(rules)
	p.AdaptiveRules = string(b)
}

// GlobalStyle is a single-row table with admin-set rules applied to everyone.
type GlobalStyle struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Rules     string    `gorm:"type:text" json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (g *GlobalStyle) RuleList() []string {
	return decodeStringList(g.Rules)
}

func (g *GlobalStyle) SetRuleList(rules []string) {
	g.Rules = encodeStringList(rules)
}
