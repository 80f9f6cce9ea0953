package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	maxBriefExcerptRunes = 600
	maxVerifySections    = 12
	maxTokensVerify      = 4096
)

// sourceBriefs renders the compact per-source fact sheet the verifier
// checks the draft against.
func sourceBriefs(sources []Source) string {
	var b strings.Builder
	for _, src := range sources {
		b.WriteString(fmt.Sprintf("%s | %s | sida %d | %s (%s, prio %d)\n",
			src.Ref, src.Filename, src.Page, src.LibraryName, src.Type, src.LibraryPriority))
		b.WriteString(truncateRunes(src.Content, maxBriefExcerptRunes))
		b.WriteString("\n---\n")
	}
	return b.String()
}

const verifySystemPrompt = `Du är en noggrann faktagranskare.
Du får ett UTKAST och en lista över KÄLLOR med ID:n (S1, S2, ...).
Skriv om utkastet så att:
- Varje sakpåstående stöds av någon av källorna och avslutas med rätt käll-ID i formatet [Sx].
- Påståenden som saknar stöd i källorna stryks eller formuleras om som osäkra.
- Inga nya fakta, siffror, namn eller datum tillkommer.
- Befintliga korrekta hänvisningar, rubriker, struktur, ton och längd behålls.
Returnera ENDAST den omskrivna texten i markdown, utan kommentarer om granskningen.`

// verifyGrounding runs one rewrite pass over the draft against the source
// briefs. Long-form drafts are verified section by section to keep each
// call within the model's output window. Verification is best effort: any
// model failure returns the pre-verification draft unchanged.
func (s *Service) verifyGrounding(ctx context.Context, query, draft string, sources []Source, mode ModePlan, mc ModelChoice) string {
	if strings.TrimSpace(draft) == "" || len(sources) == 0 {
		return draft
	}
	briefs := sourceBriefs(sources)

	if mode.Mode != ModeLongform {
		out, err := s.verifyOnce(ctx, query, draft, briefs, mc)
		if err != nil {
			s.logger.Warn("grounding verification failed, keeping draft", zap.Error(err))
			return draft
		}
		return out
	}

	sections := splitTopSections(draft)
	if len(sections) <= 1 || len(sections) > maxVerifySections {
		out, err := s.verifyOnce(ctx, query, draft, briefs, mc)
		if err != nil {
			s.logger.Warn("grounding verification failed, keeping draft", zap.Error(err))
			return draft
		}
		return out
	}

	verified := make([]string, 0, len(sections))
	for i, section := range sections {
		out, err := s.verifyOnce(ctx, query, section, briefs, mc)
		if err != nil {
			s.logger.Warn("section verification failed, keeping section",
				zap.Int("section", i+1), zap.Error(err))
			out = section
		}
		verified = append(verified, strings.TrimSpace(out))
	}
	return strings.Join(verified, "\n\n")
}

func (s *Service) verifyOnce(ctx context.Context, query, draft, briefs string, mc ModelChoice) (string, error) {
	user := fmt.Sprintf(`FRÅGA/INSTRUKTION:
%s

KÄLLOR:
%s

UTKAST:
%s`, query, briefs, draft)

	out, err := s.invokeWithFallback(ctx, verifySystemPrompt, user, maxTokensVerify, mc)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return draft, nil
	}
	return out, nil
}

// splitTopSections splits a markdown document at H1/H2 headings, keeping
// each heading with its body. Text before the first heading becomes its own
// section.
func splitTopSections(text string) []string {
	lines := strings.Split(text, "\n")
	var sections []string
	var current []string
	flush := func() {
		if joined := strings.TrimSpace(strings.Join(current, "\n")); joined != "" {
			sections = append(sections, joined)
		}
		current = current[:0]
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ") {
			flush()
		}
		current = append(current, line)
	}
	flush()
	return sections
}
