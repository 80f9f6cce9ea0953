package style

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grundbank/internal/model"
)

func TestNormalizeRule(t *testing.T) {
	assert.Equal(t, "Skriv alltid i punktlistor.", NormalizeRule("kan du skriv alltid i punktlistor"))
	assert.Equal(t, "Undvik passiv form.", NormalizeRule("  undvik   passiv form.  "))
	assert.Equal(t, "Håll en formell ton.", NormalizeRule("jag vill att du håll en formell ton,"))
	assert.Empty(t, NormalizeRule("   "))
	assert.Empty(t, NormalizeRule(" - ,. "))
}

func TestNormalizeRuleCapsLength(t *testing.T) {
	rule := NormalizeRule(strings.Repeat("x", 400))
	assert.LessOrEqual(t, len([]rune(rule)), maxRuleLength+3)
	assert.True(t, strings.HasSuffix(rule, "..."))
}

func TestExtractExplicitRules(t *testing.T) {
	text := "Använd alltid korta stycken framöver. Vad gäller för bygglov här? Skriv på enkel svenska."
	rules := ExtractExplicitRules(text)
	require.Len(t, rules, 2)
	assert.Equal(t, "Använd alltid korta stycken framöver.", rules[0])
	assert.Equal(t, "Skriv på enkel svenska.", rules[1])
}

func TestExtractExplicitRulesSkipsShortAndDuplicates(t *testing.T) {
	text := "Använd fel.\nAnvänd alltid punktlistor i svar. Använd alltid punktlistor i svar."
	rules := ExtractExplicitRules(text)
	require.Len(t, rules, 1)
	assert.Equal(t, "Använd alltid punktlistor i svar.", rules[0])

	assert.Empty(t, ExtractExplicitRules(""))
	assert.Empty(t, ExtractExplicitRules("Hur hög är byggnaden enligt detaljplanen?"))
}

func TestExtractExplicitRulesCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		sb.WriteString("Använd rubriknivå ")
		sb.WriteString(strings.Repeat("a", i+1))
		sb.WriteString(" i alla svar.\n")
	}
	assert.Len(t, ExtractExplicitRules(sb.String()), maxExtractedRules)
}

func TestSplitSentences(t *testing.T) {
	out := splitSentences("Första meningen. Andra meningen!\nTredje raden")
	require.Len(t, out, 3)
	assert.Equal(t, "Första meningen.", out[0])
	assert.Equal(t, " Andra meningen!", out[1])
	assert.Equal(t, "Tredje raden", out[2])
}

func TestMergeAdaptiveRulesScoresRepeats(t *testing.T) {
	old := time.Now().Add(-time.Hour)
	existing := []model.AdaptiveRule{
		{Rule: "Skriv kortfattat.", Score: 3, Source: "auto", UpdatedAt: old},
	}
	merged := MergeAdaptiveRules(existing, []string{"Skriv kortfattat.", "Använd saklig ton."}, 0)
	require.Len(t, merged, 2)
	// The repeated rule gains score and ranks first.
	assert.Equal(t, "Skriv kortfattat.", merged[0].Rule)
	assert.Equal(t, 5, merged[0].Score)
	assert.True(t, merged[0].UpdatedAt.After(old))
	assert.Equal(t, "Använd saklig ton.", merged[1].Rule)
	assert.Equal(t, 3, merged[1].Score)
	assert.Equal(t, "auto", merged[1].Source)
}

func TestMergeAdaptiveRulesClampsAndCaps(t *testing.T) {
	existing := []model.AdaptiveRule{
		{Rule: "Sammanfatta alltid först.", Score: 99},
		{Rule: "", Score: 5},
	}
	merged := MergeAdaptiveRules(existing, nil, 0)
	require.Len(t, merged, 1)
	assert.Equal(t, maxAdaptiveScore, merged[0].Score)
	assert.Equal(t, "auto", merged[0].Source)

	var rules []string
	for i := 0; i < 6; i++ {
		rules = append(rules, "Använd ton "+strings.Repeat("a", i+1)+".")
	}
	capped := MergeAdaptiveRules(nil, rules, 4)
	assert.Len(t, capped, 4)
}
