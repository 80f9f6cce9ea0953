// Package style manages writing-style rules in three tiers: admin-set
// global rules, explicit personal rules the user has locked in, and
// adaptive memory captured from the user's own query phrasing.
package style

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"grundbank/internal/model"
	"grundbank/internal/repository"
)

const (
	maxExtractedRules = 8
	maxExplicitRules  = 12
	maxAdaptiveRules  = 20
	maxRuleLength     = 180

	minAdaptiveScore = 1
	maxAdaptiveScore = 12
)

var instructionKeywords = []string{
	"använd", "undvik", "skriv", "strukturera", "prioritera", "fokusera",
	"håll", "rubrik", "rubriker", "punktlista", "punktlistor", "källhänvisning",
	"kort", "kortfattat", "lång", "utförlig", "detaljerad", "ton", "formell",
	"saklig", "sammanfatta", "svenska",
}

var leadingFillerRe = regexp.MustCompile(`(?i)^(kan du|jag vill att du|jag vill|från och med nu|framöver)\s+`)

// NormalizeRule collapses whitespace, strips conversational lead-ins,
// bounds the length and gives the rule sentence form.
func NormalizeRule(text string) string {
	rule := strings.Join(strings.Fields(text), " ")
	if rule == "" {
		return ""
	}
	rule = leadingFillerRe.ReplaceAllString(rule, "")
	rule = strings.Trim(rule, " -:;,.")
	if rule == "" {
		return ""
	}
	runes := []rune(rule)
	if len(runes) > maxRuleLength {
		rule = strings.TrimRight(string(runes[:maxRuleLength]), " ") + "..."
	}
	if !strings.HasSuffix(rule, ".") {
		rule += "."
	}
	runes = []rune(rule)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

// ExtractExplicitRules picks instruction-like sentences out of a query.
// Only sentences carrying a known instruction keyword survive.
func ExtractExplicitRules(text string) []string {
	if text == "" {
		return nil
	}
	var rules []string
	seen := make(map[string]bool)
	for _, candidate := range splitSentences(text) {
		s := strings.Join(strings.Fields(candidate), " ")
		if len([]rune(s)) < 12 {
			continue
		}
		lower := strings.ToLower(s)
		matched := false
		for _, k := range instructionKeywords {
			if strings.Contains(lower, k) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		norm := NormalizeRule(s)
		if norm == "" || seen[strings.ToLower(norm)] {
			continue
		}
		seen[strings.ToLower(norm)] = true
		rules = append(rules, norm)
		if len(rules) >= maxExtractedRules {
			break
		}
	}
	return rules
}

// splitSentences breaks on newlines and after sentence-ending punctuation
// followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
		var current strings.Builder
		runes := []rune(line)
		for i := 0; i < len(runes); i++ {
			current.WriteRune(runes[i])
			terminal := runes[i] == '.' || runes[i] == '!' || runes[i] == '?'
			if terminal && i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\t') {
				out = append(out, current.String())
				current.Reset()
			}
		}
		if current.Len() > 0 {
			out = append(out, current.String())
		}
	}
	return out
}

// MergeAdaptiveRules folds new rules into the existing adaptive memory:
// repeated rules gain score, new rules start at 3, and the result is ranked
// by score then recency and capped.
func MergeAdaptiveRules(existing []model.AdaptiveRule, newRules []string, cap int) []model.AdaptiveRule {
	if cap <= 0 {
		cap = maxAdaptiveRules
	}
	now := time.Now()
	merged := make(map[string]model.AdaptiveRule)
	var order []string

	for _, item := range existing {
		rule := NormalizeRule(item.Rule)
		if rule == "" {
			continue
		}
		key := strings.ToLower(rule)
		score := item.Score
		if score < minAdaptiveScore {
			score = minAdaptiveScore
		}
		if score > maxAdaptiveScore {
			score = maxAdaptiveScore
		}
		source := item.Source
		if source == "" {
			source = "auto"
		}
		if _, ok := merged[key]; !ok {
			order = append(order, key)
		}
		merged[key] = model.AdaptiveRule{Rule: rule, Score: score, Source: source, UpdatedAt: item.UpdatedAt}
	}

	for _, rule := range newRules {
		key := strings.ToLower(rule)
		if item, ok := merged[key]; ok {
			item.Score = item.Score + 2
			if item.Score > maxAdaptiveScore {
				item.Score = maxAdaptiveScore
			}
			item.UpdatedAt = now
			merged[key] = item
		} else {
			order = append(order, key)
			merged[key] = model.AdaptiveRule{Rule: rule, Score: 3, Source: "auto", UpdatedAt: now}
		}
	}

	ranked := make([]model.AdaptiveRule, 0, len(order))
	for _, key := range order {
		ranked = append(ranked, merged[key])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].UpdatedAt.After(ranked[j].UpdatedAt)
	})
	if len(ranked) > cap {
		ranked = ranked[:cap]
	}
	return ranked
}

type Service struct {
	prefs *repository.PreferenceRepository
}

func NewService(prefs *repository.PreferenceRepository) *Service {
	return &Service{prefs: prefs}
}

// CapturePreferences extracts instruction-like sentences from a query and
// merges them into the user's adaptive memory. A query with no instruction
// content leaves the memory untouched.
func (s *Service) CapturePreferences(userID, text, source string) ([]model.AdaptiveRule, error) {
	newRules := ExtractExplicitRules(text)
	if len(newRules) == 0 {
		return nil, nil
	}
	pref, err := s.prefs.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		pref = &model.UserPreference{UserID: userID}
	}
	merged := MergeAdaptiveRules(pref.AdaptiveRuleList(), newRules, maxAdaptiveRules)
	for i := range merged {
		if merged[i].Source == "auto" {
			merged[i].Source = source
		}
	}
	pref.SetAdaptiveRuleList(merged)
	if err := s.prefs.Upsert(pref); err != nil {
		return nil, err
	}
	return merged, nil
}

// SetPersonalRules replaces the user's locked personal rules.
func (s *Service) SetPersonalRules(userID string, rules []string) ([]string, error) {
	var cleaned []string
	seen := make(map[string]bool)
	for _, rule := range rules {
		norm := NormalizeRule(rule)
		if norm == "" || seen[strings.ToLower(norm)] {
			continue
		}
		seen[strings.ToLower(norm)] = true
		cleaned = append(cleaned, norm)
		if len(cleaned) >= maxExplicitRules {
			break
		}
	}
	pref, err := s.prefs.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		pref = &model.UserPreference{UserID: userID}
	}
	pref.SetExplicitRuleList(cleaned)
	if err := s.prefs.Upsert(pref); err != nil {
		return nil, err
	}
	return cleaned, nil
}

func (s *Service) SetGlobalRules(rules []string) error {
	return s.prefs.SetGlobalStyle(rules)
}

// CombinedRules collects the tiers for one user. Adaptive rules are ranked
// by score and recency, capped at 8 and require score >= 2 so one-off
// phrasings never steer generation.
type CombinedRules struct {
	Global   []string
	Explicit []string
	Adaptive []string
}

func (s *Service) Combined(userID string) (*CombinedRules, error) {
	out := &CombinedRules{}

	global, err := s.prefs.GetGlobalStyle()
	if err != nil {
		return nil, err
	}
	if global != nil {
		out.Global = global.RuleList()
	}

	pref, err := s.prefs.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if pref != nil {
		out.Explicit = pref.ExplicitRuleList()
		adaptive := pref.AdaptiveRuleList()
		sort.SliceStable(adaptive, func(i, j int) bool {
			if adaptive[i].Score != adaptive[j].Score {
				return adaptive[i].Score > adaptive[j].Score
			}
			return adaptive[i].UpdatedAt.After(adaptive[j].UpdatedAt)
		})
		if len(adaptive) > 8 {
			adaptive = adaptive[:8]
		}
		for _, item := range adaptive {
			if item.Score >= 2 {
				out.Adaptive = append(out.Adaptive, item.Rule)
			}
		}
	}
	return out, nil
}

// PromptBlock renders the tiers as the style block injected into the system
// prompt. Empty tiers are skipped; an empty result means no block at all.
func (r *CombinedRules) PromptBlock() string {
	if r == nil {
		return ""
	}
	var chunks []string
	if len(r.Global) > 0 {
		chunks = append(chunks, "GLOBALA STILREGLER (gäller alla):\n- "+strings.Join(r.Global, "\n- "))
	}
	if len(r.Explicit) > 0 {
		chunks = append(chunks, "DINA LÅSTA PERSONLIGA REGLER:\n- "+strings.Join(r.Explicit, "\n- "))
	}
	if len(r.Adaptive) > 0 {
		adaptive := r.Adaptive
		if len(adaptive) > 6 {
			adaptive = adaptive[:6]
		}
		chunks = append(chunks, "DINA SENASTE ARBETSPREFERENSER (adaptivt minne):\n- "+strings.Join(adaptive, "\n- "))
	}
	return strings.Join(chunks, "\n\n")
}
