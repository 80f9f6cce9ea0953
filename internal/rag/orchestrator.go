package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"grundbank/internal/ai"
	"grundbank/internal/model"
)

// ProgressFunc receives advisory progress events: stage, percentage 0-100,
// human message and optional partial text. It must never block generation;
// callers that need buffering own it themselves.
type ProgressFunc func(stage string, progress int, message string, partial string)

func (s *Service) emit(cb ProgressFunc, stage string, progress int, message, partial string) {
	if cb == nil {
		return
	}
	cb(stage, progress, message, partial)
}

// ModelChoice is the resolved model pair for one request.
type ModelChoice struct {
	Primary  string
	Fallback string
	Source   string
	Allowed  []string
}

func sanitizeModel(modelID string, allowed []string, fallback string) string {
	m := strings.TrimSpace(modelID)
	for _, a := range allowed {
		if m == a {
			return m
		}
	}
	return fallback
}

// resolveModels picks the primary model (global default, or the assistant's
// preference when overrides are allowed and the preference is allow-listed)
// and a distinct fallback from the allowed set.
func (s *Service) resolveModels(assistant *model.Assistant) ModelChoice {
	allowed := s.llmCfg.AllowedModelList()

	global := sanitizeModel(s.llmCfg.DefaultModel, allowed, allowed[0])
	fallback := sanitizeModel(s.llmCfg.FallbackModel, allowed, global)

	choice := ModelChoice{Primary: global, Fallback: fallback, Source: "global", Allowed: allowed}

	if s.llmCfg.AllowAssistantOverride && assistant != nil {
		pref := strings.TrimSpace(assistant.ModelPreference)
		if pref != "" {
			for _, a := range allowed {
				if pref == a {
					choice.Primary = pref
					choice.Source = "assistant"
					break
				}
			}
		}
	}

	if choice.Primary == choice.Fallback {
		for _, a := range allowed {
			if a != choice.Primary {
				choice.Fallback = a
				break
			}
		}
	}
	return choice
}

var fastModelMarkers = []string{"haiku", "mini", "flash"}

// pickFastModel swaps the primary for the fastest model class present in
// the allowed set; used by simple mode.
func (c ModelChoice) pickFastModel() ModelChoice {
	lower := strings.ToLower(c.Primary)
	for _, marker := range fastModelMarkers {
		if strings.Contains(lower, marker) {
			return c
		}
	}
	for _, marker := range fastModelMarkers {
		for _, m := range c.Allowed {
			if strings.Contains(strings.ToLower(m), marker) {
				c.Primary = m
				c.Source = "fast_mode"
				return c
			}
		}
	}
	if c.Fallback != "" {
		c.Primary = c.Fallback
		c.Source = "fast_mode"
	}
	return c
}

// invokeWithFallback runs one logical model call: primary once, and on any
// provider error exactly one retry against the fallback model. Temperature
// is always zero.
func (s *Service) invokeWithFallback(ctx context.Context, system, user string, maxTokens int, mc ModelChoice) (string, error) {
	messages := []ai.ChatMessage{ai.SystemMessage(system), ai.UserMessage(user)}

	out, err := s.client.Complete(ctx, s.chatCfg, messages, ai.CompleteOptions{
		Model:       mc.Primary,
		MaxTokens:   maxTokens,
		Temperature: 0,
	})
	if err == nil {
		return out, nil
	}
	s.logger.Warn("primary model failed, retrying with fallback",
		zap.String("primary", mc.Primary),
		zap.String("fallback", mc.Fallback),
		zap.Error(err))

	out, err = s.client.Complete(ctx, s.chatCfg, messages, ai.CompleteOptions{
		Model:       mc.Fallback,
		MaxTokens:   maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("model call failed on both %s and %s: %w", mc.Primary, mc.Fallback, err)
	}
	return out, nil
}

type outlineHeading struct {
	Level int
	Title string
}

var wordTargetSuffixRe = regexp.MustCompile(`(?i)\(\s*\d+\s*ord\s*\)\s*$`)

// parseOutlineHeadings extracts markdown headings from an outline, dropping
// per-heading word-target annotations and clamping levels to 1..3.
func parseOutlineHeadings(outline string) []outlineHeading {
	var headings []outlineHeading
	for _, line := range strings.Split(outline, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		level := 0
		for level < len(line) && line[level] == '#' {
			level++
		}
		title := strings.TrimSpace(line[level:])
		title = strings.TrimSpace(wordTargetSuffixRe.ReplaceAllString(title, ""))
		if title == "" {
			continue
		}
		if level < 1 {
			level = 1
		}
		if level > 3 {
			level = 3
		}
		headings = append(headings, outlineHeading{Level: level, Title: title})
	}
	return headings
}

const (
	maxTokensSimple   = 1200
	maxTokensStandard = 4096
	maxTokensOutline  = 2200
	maxTokensSection  = 2200

	// continuityExcerptChars bounds the trailing already-written text each
	// section call sees. A fixed window regardless of section count.
	continuityExcerptChars = 1200

	minSectionWords = 220
)

// generate runs the strategy selected by the mode plan and returns the raw
// draft before verification.
func (s *Service) generate(ctx context.Context, in genInput) (string, error) {
	switch {
	case in.Mode.UseOutline && in.Mode.Mode == ModeLongform:
		return s.generatePerSection(ctx, in)
	case in.Mode.UseOutline:
		return s.generateOutlineFill(ctx, in)
	default:
		return s.generateDirect(ctx, in)
	}
}

type genInput struct {
	SystemPrompt string
	Query        string
	CurrentDraft string
	History      string
	Persona      string
	Mode         ModePlan
	Models       ModelChoice
	Progress     ProgressFunc
}

func (s *Service) generateDirect(ctx context.Context, in genInput) (string, error) {
	maxTokens := maxTokensStandard
	if in.Mode.Mode == ModeSimple {
		maxTokens = maxTokensSimple
	}
	user := buildUserPrompt(in.CurrentDraft, in.History, in.Query, in.Persona, in.Mode.TargetWords)
	return s.invokeWithFallback(ctx, in.SystemPrompt, user, maxTokens, in.Models)
}

func (s *Service) generateOutlineFill(ctx context.Context, in genInput) (string, error) {
	outlineUser := fmt.Sprintf(`Skapa först en tydlig DISPOSITION för dokumentet.
Följ strukturen i mallens rubriker om de finns. Returnera endast dispositionen i markdown med rubriker (#, ##, ###).

Fråga/instruktion:
%s
`, in.Query)
	outline, err := s.invokeWithFallback(ctx, in.SystemPrompt, outlineUser, 1800, in.Models)
	if err != nil {
		return "", err
	}
	s.emit(in.Progress, "outline", 45, "Disposition klar.", outline)

	draft := in.CurrentDraft
	if draft == "" {
		draft = "Inget utkast än. Skapa ett nytt dokument baserat på källmaterialet."
	}
	lengthLine := ""
	if in.Mode.TargetWords > 0 {
		lengthLine = fmt.Sprintf("Sikta på cirka %d ord totalt.", in.Mode.TargetWords)
	}
	fillUser := fmt.Sprintf(`Här är dispositionen:
%s

Fyll nu dispositionen med fullständig text baserat på källmaterialet.
Använd källhänvisningar där det behövs och följ mallens struktur och ton.
%s

Utkast/kontext:
%s

Dialoghistorik:
%s

Ny instruktion:
%s

Returnera hela dokumentet i markdown.`, outline, lengthLine, draft, in.History, in.Query)

	return s.invokeWithFallback(ctx, in.SystemPrompt, fillUser, maxTokensStandard, in.Models)
}

// generatePerSection is the long-form strategy: outline with word targets,
// then one call per heading carrying a compact recap, a bounded trailing
// excerpt for continuity, and the completed-title list to suppress repeats.
func (s *Service) generatePerSection(ctx context.Context, in genInput) (string, error) {
	targetWords := in.Mode.TargetWords
	if targetWords <= 0 {
		targetWords = longformDefaultWords
	}

	outlineUser := fmt.Sprintf(`Skapa en disposition med rubriker (#, ##).
Målet är cirka %d ord totalt. Ange ordmål per rubrik i parentes, t.ex. "## Bakgrund (800 ord)".
Följ mallstrukturen om den finns.
Returnera ENDAST dispositionen i markdown.

Fråga/instruktion:
%s
`, targetWords, in.Query)
	outline, err := s.invokeWithFallback(ctx, in.SystemPrompt, outlineUser, maxTokensOutline, in.Models)
	if err != nil {
		return "", err
	}
	s.emit(in.Progress, "outline", 40, "Disposition klar.", outline)

	headings := parseOutlineHeadings(outline)
	if len(headings) == 0 {
		// Degenerate outline: one full-document call at the same target.
		fallbackUser := fmt.Sprintf(`Skriv ett sammanhängande dokument med tydliga rubriker i markdown.
Sikta på cirka %d ord.
Följ mallstrukturen om den finns och använd källhänvisningar när det behövs.

Fråga/instruktion:
%s
`, targetWords, in.Query)
		return s.invokeWithFallback(ctx, in.SystemPrompt, fallbackUser, maxTokensStandard, in.Models)
	}

	perSection := targetWords / len(headings)
	if perSection < minSectionWords {
		perSection = minSectionWords
	}

	var sections []string
	var doneTitles []string
	for idx, heading := range headings {
		done := "Inga"
		if len(doneTitles) > 0 {
			done = strings.Join(doneTitles, ", ")
		}
		continuity := ""
		if len(sections) > 0 {
			tail := tailRunes(strings.Join(sections, "\n\n"), continuityExcerptChars)
			continuity = fmt.Sprintf("\nSenast skrivna text (för kontinuitet, upprepa inte):\n%s\n", tail)
		}
		sectionUser := fmt.Sprintf(`Skriv avsnitt %d av %d: '%s'.
Sikta på cirka %d ord.
Bygg vidare på tidigare avsnitt utan upprepningar.
Redan skrivna rubriker: %s.
%sAnvänd källhänvisningar där det behövs. Återge INTE instruktionstext.
Skriv inte rubriken igen i löptexten.
`, idx+1, len(headings), heading.Title, perSection, done, continuity)

		body, err := s.invokeWithFallback(ctx, in.SystemPrompt, sectionUser, maxTokensSection, in.Models)
		if err != nil {
			return "", err
		}
		body = stripRepeatedHeading(strings.TrimSpace(body), heading.Title)

		sections = append(sections, strings.Repeat("#", heading.Level)+" "+heading.Title+"\n"+body)
		doneTitles = append(doneTitles, heading.Title)

		progress := 40 + (idx+1)*40/len(headings)
		s.emit(in.Progress, "section", progress,
			fmt.Sprintf("Avsnitt %d av %d klart: %s", idx+1, len(headings), heading.Title),
			strings.Join(sections, "\n\n"))
	}
	return strings.Join(sections, "\n\n"), nil
}

// stripRepeatedHeading removes a leading markdown heading that duplicates
// the section title the orchestrator is about to write itself.
func stripRepeatedHeading(body, title string) string {
	if !strings.HasPrefix(body, "#") {
		return body
	}
	firstLine, rest, _ := strings.Cut(body, "\n")
	normalized := strings.ToLower(strings.TrimRight(strings.TrimSpace(strings.TrimLeft(firstLine, "#")), ":"))
	want := strings.ToLower(strings.TrimRight(title, ":"))
	if normalized == want {
		return strings.TrimSpace(rest)
	}
	return body
}

func tailRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[len(runes)-max:])
}
