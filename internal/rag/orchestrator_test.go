package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"grundbank/internal/config"
	"grundbank/internal/model"
)

func TestParseOutlineHeadings(t *testing.T) {
	outline := `# Planbeskrivning (300 ord)
Inledande brödtext som inte är rubrik.
## Bakgrund (800 ord)
## Miljökonsekvenser
#### Djup rubrik (100 ord)
##
`
	headings := parseOutlineHeadings(outline)
	require.Len(t, headings, 4)
	assert.Equal(t, outlineHeading{Level: 1, Title: "Planbeskrivning"}, headings[0])
	assert.Equal(t, outlineHeading{Level: 2, Title: "Bakgrund"}, headings[1])
	assert.Equal(t, outlineHeading{Level: 2, Title: "Miljökonsekvenser"}, headings[2])
	// Level clamps at 3, annotation suffix stripped.
	assert.Equal(t, outlineHeading{Level: 3, Title: "Djup rubrik"}, headings[3])
}

func TestParseOutlineHeadingsEmptyOutline(t *testing.T) {
	assert.Empty(t, parseOutlineHeadings("Ingen disposition alls, bara text."))
}

func TestStripRepeatedHeading(t *testing.T) {
	body := "## Bakgrund\nKommunen antog planen 2019."
	assert.Equal(t, "Kommunen antog planen 2019.", stripRepeatedHeading(body, "Bakgrund"))

	other := "## Annat avsnitt\nText."
	assert.Equal(t, other, stripRepeatedHeading(other, "Bakgrund"))

	plain := "Brödtext utan rubrik."
	assert.Equal(t, plain, stripRepeatedHeading(plain, "Bakgrund"))

	colon := "# Bakgrund:\nText."
	assert.Equal(t, "Text.", stripRepeatedHeading(colon, "Bakgrund"))
}

func TestTailRunes(t *testing.T) {
	assert.Equal(t, "kort", tailRunes("kort", 100))
	assert.Equal(t, "äö", tailRunes("åäö", 2))
}

func newModelTestService(llm config.LLMConfig) *Service {
	return &Service{llmCfg: llm, logger: zap.NewNop()}
}

func TestResolveModelsGlobalDefault(t *testing.T) {
	svc := newModelTestService(config.LLMConfig{
		DefaultModel:  "stor-modell",
		FallbackModel: "reserv-modell",
		AllowedModels: "stor-modell, reserv-modell, snabb-haiku",
	})
	choice := svc.resolveModels(&model.Assistant{})
	assert.Equal(t, "stor-modell", choice.Primary)
	assert.Equal(t, "reserv-modell", choice.Fallback)
	assert.Equal(t, "global", choice.Source)
}

func TestResolveModelsAssistantOverride(t *testing.T) {
	llm := config.LLMConfig{
		DefaultModel:           "stor-modell",
		FallbackModel:          "reserv-modell",
		AllowedModels:          "stor-modell,reserv-modell,snabb-haiku",
		AllowAssistantOverride: true,
	}
	svc := newModelTestService(llm)

	choice := svc.resolveModels(&model.Assistant{ModelPreference: "snabb-haiku"})
	assert.Equal(t, "snabb-haiku", choice.Primary)
	assert.Equal(t, "assistant", choice.Source)

	// Preferences outside the allow-list are ignored.
	choice = svc.resolveModels(&model.Assistant{ModelPreference: "okänd-modell"})
	assert.Equal(t, "stor-modell", choice.Primary)
	assert.Equal(t, "global", choice.Source)
}

func TestResolveModelsOverrideDisabled(t *testing.T) {
	svc := newModelTestService(config.LLMConfig{
		DefaultModel:  "stor-modell",
		FallbackModel: "reserv-modell",
		AllowedModels: "stor-modell,reserv-modell",
	})
	choice := svc.resolveModels(&model.Assistant{ModelPreference: "reserv-modell"})
	assert.Equal(t, "stor-modell", choice.Primary)
}

func TestResolveModelsDistinctFallback(t *testing.T) {
	svc := newModelTestService(config.LLMConfig{
		DefaultModel:  "enda-modell",
		FallbackModel: "enda-modell",
		AllowedModels: "enda-modell,andra-modell",
	})
	choice := svc.resolveModels(nil)
	assert.Equal(t, "enda-modell", choice.Primary)
	assert.Equal(t, "andra-modell", choice.Fallback)
}

func TestPickFastModel(t *testing.T) {
	choice := ModelChoice{
		Primary:  "stor-modell",
		Fallback: "reserv-modell",
		Allowed:  []string{"stor-modell", "reserv-modell", "snabb-haiku"},
	}
	fast := choice.pickFastModel()
	assert.Equal(t, "snabb-haiku", fast.Primary)
	assert.Equal(t, "fast_mode", fast.Source)

	// Already a fast-class model: unchanged.
	already := ModelChoice{Primary: "snabb-haiku", Allowed: []string{"snabb-haiku"}}
	assert.Equal(t, "snabb-haiku", already.pickFastModel().Primary)
}

func TestPickFastModelFallsBackToFallback(t *testing.T) {
	choice := ModelChoice{
		Primary:  "stor-modell",
		Fallback: "reserv-modell",
		Allowed:  []string{"stor-modell", "reserv-modell"},
	}
	fast := choice.pickFastModel()
	assert.Equal(t, "reserv-modell", fast.Primary)
}

func TestSanitizeModel(t *testing.T) {
	allowed := []string{"a", "b"}
	assert.Equal(t, "a", sanitizeModel(" a ", allowed, "b"))
	assert.Equal(t, "b", sanitizeModel("c", allowed, "b"))
}

func TestGenerateStrategySelection(t *testing.T) {
	// Selection is pure mode-plan logic; exercised via the plan fields.
	longform := genInput{Mode: ModePlan{Mode: ModeLongform, UseOutline: true}}
	assert.True(t, longform.Mode.UseOutline && longform.Mode.Mode == ModeLongform)

	standardOutline := genInput{Mode: ModePlan{Mode: ModeStandard, UseOutline: true}}
	assert.True(t, standardOutline.Mode.UseOutline)
	assert.NotEqual(t, ModeLongform, standardOutline.Mode.Mode)
}

func TestContinuityExcerptBounded(t *testing.T) {
	written := strings.Repeat("avsnittstext ", 500)
	tail := tailRunes(written, continuityExcerptChars)
	assert.Len(t, []rune(tail), continuityExcerptChars)
	assert.True(t, strings.HasSuffix(written, tail))
}
