package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"grundbank/internal/model"
)

func TestCitationInstruction(t *testing.T) {
	enabled := citationInstruction(true, []string{"S1", "S2"})
	assert.Contains(t, enabled, "[Sx]")
	assert.Contains(t, enabled, "S1, S2")
	assert.Contains(t, enabled, "ALDRIG filnamn")

	empty := citationInstruction(true, nil)
	assert.Contains(t, empty, "inga")

	disabled := citationInstruction(false, []string{"S1"})
	assert.Equal(t, "Använd INTE källhänvisningar i texten.", disabled)
}

func TestLibraryPriorityPolicy(t *testing.T) {
	plan := []PlanEntry{
		{Name: "Underlag", Type: model.LibraryInput, Priority: 90, PrioritySource: PriorityFromAssistant},
		{Name: "Bakgrund", Type: model.LibraryBackground, Priority: 50, PrioritySource: PriorityFromLibrary},
	}
	policy := libraryPriorityPolicy(plan)
	assert.Contains(t, policy, "Underlag (INPUT), prioritet 90 (assistent)")
	assert.Contains(t, policy, "Bakgrund (BACKGROUND), prioritet 50")
	assert.NotContains(t, policy, "Bakgrund (BACKGROUND), prioritet 50 (assistent)")

	assert.Equal(t, "Ingen explicit biblioteksviktning tillgänglig.", libraryPriorityPolicy(nil))
}

func TestLibraryPriorityPolicyCapsLines(t *testing.T) {
	var plan []PlanEntry
	for i := 0; i < 20; i++ {
		plan = append(plan, PlanEntry{Name: "B", Type: model.LibraryBackground, Priority: 50})
	}
	policy := libraryPriorityPolicy(plan)
	assert.Equal(t, maxPriorityPolicyLines, strings.Count(policy, "- B"))
}

func TestBuildSystemPromptCore(t *testing.T) {
	prompt := buildSystemPrompt(promptInput{
		Persona:       "Du är en planhandläggare.",
		StyleBlock:    "GLOBALA STILREGLER (gäller alla):\n- Skriv klarspråk.",
		ShowCitations: true,
		AllowList:     []string{"S1"},
		Mode:          ModePlan{Mode: ModeStandard},
		ContextText:   "KÄLLA S1 (test):\nInnehåll.",
		Plan:          []PlanEntry{{Name: "Underlag", Type: model.LibraryInput, Priority: 90}},
	})
	assert.Contains(t, prompt, "Du är en planhandläggare.")
	assert.Contains(t, prompt, "GROUNDING OCH SANNING")
	assert.Contains(t, prompt, "Skriv klarspråk.")
	assert.Contains(t, prompt, "KÄLLA S1")
	assert.Contains(t, prompt, "BIBLIOTEKSHIERARKI")
	assert.Contains(t, prompt, "[INPUT] eller [ATTACHMENT_INLINE]")
	assert.Contains(t, prompt, "BILDFÖRSLAG ÄR AVSTÄNGT")
	assert.NotContains(t, prompt, "SNABBLÄGE")
}

func TestBuildSystemPromptSimpleMode(t *testing.T) {
	prompt := buildSystemPrompt(promptInput{
		Persona: "Persona.",
		Mode:    ModePlan{Mode: ModeSimple, TargetWords: simpleTargetWords},
	})
	assert.Contains(t, prompt, "SNABBLÄGE")
}

func TestBuildSystemPromptImageSuggestions(t *testing.T) {
	prompt := buildSystemPrompt(promptInput{
		Persona:       "Persona.",
		Mode:          ModePlan{Mode: ModeStandard},
		SuggestImages: true,
	})
	assert.Contains(t, prompt, "BILDFÖRSLAG:")
}

func TestHistoryTextWindowsAndTruncates(t *testing.T) {
	var messages []model.ConversationMessage
	for i := 0; i < 30; i++ {
		messages = append(messages, model.ConversationMessage{
			Role:    model.RoleUser,
			Content: strings.Repeat("a", 600),
		})
	}
	text := historyText(messages)
	lines := strings.Split(text, "\n")
	assert.Len(t, lines, maxHistoryMessages)
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(line, "..."))
		assert.LessOrEqual(t, len([]rune(line)), maxHistorySnippet+len("user: ")+3)
	}
}

func TestBuildUserPromptDefaults(t *testing.T) {
	prompt := buildUserPrompt("", "", "Skriv en sammanfattning", "Persona", 0)
	assert.Contains(t, prompt, "Inget utkast än.")
	assert.Contains(t, prompt, "Skriv en sammanfattning")
	assert.NotContains(t, prompt, "Längdmål")

	withTarget := buildUserPrompt("Utkast.", "user: hej", "Utöka", "Persona", 800)
	assert.Contains(t, withTarget, "Längdmål: cirka 800 ord.")
	assert.Contains(t, withTarget, "Utkast.")
}

func TestImageContextBlock(t *testing.T) {
	assert.Empty(t, imageContextBlock(nil))

	images := []model.MatchedImage{
		{Description: "Karta över planområdet", SourceDocument: "plan.pdf", Page: 3, SectionHints: []string{"Planområdet"}},
	}
	block := imageContextBlock(images)
	assert.Contains(t, block, "RELEVANTA BILDER")
	assert.Contains(t, block, "plan.pdf, sida 3")

	var many []model.MatchedImage
	for i := 0; i < 10; i++ {
		many = append(many, model.MatchedImage{Description: "bild", SourceDocument: "d.pdf"})
	}
	assert.Equal(t, maxImageContextLines, strings.Count(imageContextBlock(many), "\n- [BILD:"))
}
