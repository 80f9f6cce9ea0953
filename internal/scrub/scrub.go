// Package scrub removes person names from document text before indexing,
// replacing each distinct name with a stable document card identifier so the
// text stays coherent for retrieval.
package scrub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"grundbank/internal/ai"
)

// ErrNotConfigured aborts ingestion for scrub-enabled libraries: indexing
// unscrubbed text would defeat the point of enabling the scrub.
var ErrNotConfigured = errors.New("scrub model saknas: GDPR-namntvätt kan inte köras")

const defaultCardPrefix = "DOKUMENTKORT"

// Finding records one replaced name and how often it occurred.
type Finding struct {
	Type        string `json:"type"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Occurrences int    `json:"occurrences"`
}

type Scrubber struct {
	client     *ai.OpenAICompatibleClient
	chatCfg    ai.ChatConfig
	model      string
	cardPrefix string
	logger     *zap.Logger
}

// New returns a scrubber bound to the given extraction model. An empty model
// leaves the scrubber unconfigured; callers must check IsConfigured before
// relying on it.
func New(client *ai.OpenAICompatibleClient, chatCfg ai.ChatConfig, model, cardPrefix string, logger *zap.Logger) *Scrubber {
	if cardPrefix == "" {
		cardPrefix = defaultCardPrefix
	}
	return &Scrubber{
		client:     client,
		chatCfg:    chatCfg,
		model:      model,
		cardPrefix: cardPrefix,
		logger:     logger,
	}
}

func (s *Scrubber) IsConfigured() bool {
	return s != nil && s.client != nil && s.model != ""
}

const namePrompt = `Identifiera ENDAST personnamn i texten nedan.
Regler:
- Returnera endast fulla namn på personer (för- och efternamn när möjligt).
- Ta INTE med organisationer, myndigheter, platsnamn, adresser, e-post, telefonnummer eller personnummer.
- Ta INTE med roller/titlar om de står utan namn.
- Om inga personnamn finns: returnera tom lista.

Svara ENBART som JSON-objekt med format:
{
  "names": ["Förnamn Efternamn", "Anna Karlsson"]
}

TEXT:
%s`

// PersonNames extracts person names from text via the scrub model, filtered
// through the plausibility heuristics and deduplicated in order.
func (s *Scrubber) PersonNames(ctx context.Context, text string) ([]string, error) {
	if !s.IsConfigured() {
		return nil, ErrNotConfigured
	}
	content, err := s.client.Complete(ctx, s.chatCfg,
		[]ai.ChatMessage{ai.UserMessage(fmt.Sprintf(namePrompt, text))},
		ai.CompleteOptions{Model: s.model, Temperature: 0},
	)
	if err != nil {
		return nil, fmt.Errorf("name extraction failed: %w", err)
	}

	var payload struct {
		Names []string `json:"names"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &payload); err != nil {
		return nil, fmt.Errorf("name extraction returned invalid JSON: %w", err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, raw := range payload.Names {
		n := strings.Join(strings.Fields(raw), " ")
		if len([]rune(n)) < 2 || !LooksLikePersonName(n) {
			continue
		}
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, n)
	}
	return names, nil
}

// ScrubPersonNames replaces every extracted name with a card identifier.
// existingMap carries lowercase name to card assignments from earlier pages
// of the same document so a name always maps to the same card.
func (s *Scrubber) ScrubPersonNames(ctx context.Context, text string, existingMap map[string]string) (string, []Finding, map[string]string, error) {
	nameMap := make(map[string]string, len(existingMap))
	for k, v := range existingMap {
		nameMap[k] = v
	}
	if text == "" {
		return text, nil, nameMap, nil
	}
	if !s.IsConfigured() {
		return "", nil, nil, ErrNotConfigured
	}

	names, err := s.PersonNames(ctx, text)
	if err != nil {
		return "", nil, nil, err
	}
	// Longer names first so "Erik Svensson" is consumed before "Erik".
	sort.SliceStable(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	scrubbed := text
	var findings []Finding
	for _, name := range names {
		key := strings.ToLower(name)
		card, ok := nameMap[key]
		if !ok {
			card = fmt.Sprintf("[%s_%04d]", s.cardPrefix, len(nameMap)+1)
			nameMap[key] = card
		}
		var count int
		scrubbed, count = replaceExactName(scrubbed, name, card)
		if count > 0 {
			findings = append(findings, Finding{
				Type:        "PERSON_NAME",
				Original:    name,
				Replacement: card,
				Occurrences: count,
			})
		}
	}
	if s.logger != nil && len(findings) > 0 {
		s.logger.Debug("scrubbed person names",
			zap.Int("names", len(findings)),
			zap.Int("cards", len(nameMap)))
	}
	return scrubbed, findings, nameMap, nil
}

var blockedNameTerms = []string{
	"ab", "aktiebolag", "kommun", "region", "myndighet",
	"stadsbyggnadskontoret", "länsstyrelsen", "förvaltningen",
	"trafikverket", "stockholms stad", "sverige",
}

// LooksLikePersonName filters the model output down to plausible person
// names: 2 to 4 words, no digits or addresses, no known organization terms,
// no all-caps acronyms.
func LooksLikePersonName(name string) bool {
	n := strings.Join(strings.Fields(name), " ")
	if n == "" || strings.Contains(n, "@") {
		return false
	}
	if strings.ContainsFunc(n, unicode.IsDigit) {
		return false
	}
	low := strings.ToLower(n)
	for _, term := range blockedNameTerms {
		if strings.Contains(low, term) {
			return false
		}
	}
	parts := strings.Fields(n)
	if len(parts) < 2 || len(parts) > 4 {
		return false
	}
	for _, p := range parts {
		stripped := strings.Trim(p, ".,;:()[]{}")
		runes := []rune(stripped)
		if len(runes) < 2 {
			return false
		}
		if len(runes) > 2 && isAllUpper(stripped) {
			return false
		}
	}
	return true
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// replaceExactName substitutes whole-word occurrences of name, checking the
// runes adjacent to each match so partial matches inside longer words are
// left alone.
func replaceExactName(text, name, replacement string) (string, int) {
	if name == "" {
		return text, 0
	}
	var out strings.Builder
	count := 0
	rest := text
	for {
		idx := strings.Index(rest, name)
		if idx < 0 {
			out.WriteString(rest)
			break
		}
		before := rest[:idx]
		after := rest[idx+len(name):]

		boundaryBefore := true
		if before != "" {
			runes := []rune(before)
			boundaryBefore = !isWordRune(runes[len(runes)-1])
		}
		boundaryAfter := true
		if after != "" {
			r := []rune(after)[0]
			boundaryAfter = !isWordRune(r)
		}

		out.WriteString(before)
		if boundaryBefore && boundaryAfter {
			out.WriteString(replacement)
			count++
		} else {
			out.WriteString(name)
		}
		rest = after
	}
	return out.String(), count
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
