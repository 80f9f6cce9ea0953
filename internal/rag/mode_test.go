package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseMode(t *testing.T) {
	assert.Equal(t, ResponseFast, ParseResponseMode("fast"))
	assert.Equal(t, ResponseDeep, ParseResponseMode(" DEEP "))
	assert.Equal(t, ResponseAuto, ParseResponseMode("turbo"))
	assert.Equal(t, ResponseAuto, ParseResponseMode(""))
}

func TestKForPriorityStaircase(t *testing.T) {
	baseK := 10
	assert.Equal(t, 10, KForPriority(100, baseK))
	assert.Equal(t, 10, KForPriority(85, baseK))
	assert.Equal(t, 8, KForPriority(84, baseK))
	assert.Equal(t, 8, KForPriority(70, baseK))
	assert.Equal(t, 6, KForPriority(69, baseK))
	assert.Equal(t, 6, KForPriority(50, baseK))
	assert.Equal(t, 4, KForPriority(49, baseK))
	assert.Equal(t, 4, KForPriority(0, baseK))
}

func TestKForPriorityFloors(t *testing.T) {
	// Small baseK never drops a mid-priority library below its floor.
	assert.Equal(t, 6, KForPriority(70, 4))
	assert.Equal(t, 4, KForPriority(50, 4))
	assert.Equal(t, 2, KForPriority(10, 4))
}

func TestInferTargetWords(t *testing.T) {
	assert.Equal(t, 800, InferTargetWords("skriv cirka 800 ord om buller", 0, 0, false))
	assert.Equal(t, 300, InferTargetWords("nå", 0, 100, false))
	assert.Equal(t, 2000, InferTargetWords("", 0, 2000, false))
	assert.Equal(t, 1350, InferTargetWords("skriv 3 sidor", 0, 0, false))
	assert.Equal(t, 600, InferTargetWords("skriv 1 sidor", 0, 0, false))
	assert.Equal(t, 2250, InferTargetWords("", 5, 0, false))
	assert.Equal(t, longformDefaultWords, InferTargetWords("ge mig en utförlig analys", 0, 0, false))
	assert.Equal(t, 0, InferTargetWords("vad gäller här?", 0, 0, false))
}

func TestIsSimpleQuery(t *testing.T) {
	assert.True(t, IsSimpleQuery("Vad är ett planbesked?"))
	assert.True(t, IsSimpleQuery("Finns det bullerkrav?"))
	assert.False(t, IsSimpleQuery("Analysera konsekvenserna av detaljplanen"))
	assert.False(t, IsSimpleQuery(strings.Repeat("långa frågor ", 20)))
	assert.False(t, IsSimpleQuery(""))
}

func TestResolveModeShortQuestion(t *testing.T) {
	plan := ResolveMode(ResponseAuto, "Vad är ett planbesked?", 0, 0, false, false)
	assert.Equal(t, ModeSimple, plan.Mode)
	assert.Equal(t, simpleTargetWords, plan.TargetWords)
	assert.False(t, plan.UseOutline)
	assert.Equal(t, 4, plan.BaseK(0, false))
	assert.Equal(t, 12, MaxTotalSources(plan.BaseK(0, false)))
}

func TestResolveModeExplicitWordTarget(t *testing.T) {
	plan := ResolveMode(ResponseAuto, "Skriv en rapport", 0, 5000, false, false)
	require.Equal(t, ModeLongform, plan.Mode)
	assert.Equal(t, 5000, plan.TargetWords)
	assert.True(t, plan.UseOutline)
	assert.Equal(t, 18, plan.BaseK(0, false))
}

func TestResolveModeFastWinsOverLongVocabulary(t *testing.T) {
	plan := ResolveMode(ResponseFast, "ge en utförlig genomgång", 0, 0, false, false)
	assert.Equal(t, ModeSimple, plan.Mode)
	assert.False(t, plan.UseOutline)
}

func TestResolveModeDeepForcesLongform(t *testing.T) {
	plan := ResolveMode(ResponseDeep, "Vad gäller?", 0, 0, false, false)
	assert.Equal(t, ModeLongform, plan.Mode)
	assert.Equal(t, longformDefaultWords, plan.TargetWords)
	assert.True(t, plan.UseOutline)
}

func TestResolveModeTemplateBlocksSimple(t *testing.T) {
	plan := ResolveMode(ResponseAuto, "Vad är ett planbesked?", 0, 0, false, true)
	assert.Equal(t, ModeStandard, plan.Mode)
	assert.True(t, plan.UseOutline)
	assert.Equal(t, 15, plan.BaseK(0, true))
}

func TestMaxSnippetLen(t *testing.T) {
	assert.Equal(t, 700, ModePlan{Mode: ModeSimple}.MaxSnippetLen())
	assert.Equal(t, 1200, ModePlan{Mode: ModeStandard}.MaxSnippetLen())
	assert.Equal(t, 1600, ModePlan{Mode: ModeLongform}.MaxSnippetLen())
}

func TestLengthInstructionTiers(t *testing.T) {
	assert.Contains(t, LengthInstruction(2500), "2500")
	assert.Contains(t, LengthInstruction(1400), "1400")
	assert.Contains(t, LengthInstruction(800), "underrubriker")
	assert.Contains(t, LengthInstruction(0), "Anpassa längden")
}
