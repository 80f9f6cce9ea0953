package rag

import (
	"regexp"
	"strings"
)

var (
	// Any bracketed group carrying at least one Sx token, covering both the
	// canonical [S3] form and loose phrasings like [Källa: plan.pdf, S3].
	bracketCitationRe = regexp.MustCompile(`\[[^\[\]]*?\bS\d+\b[^\[\]]*?\]`)

	// Parenthesized token lists like (S3) or (S1, S4).
	parenCitationRe = regexp.MustCompile(`\(\s*S\d+(?:\s*[,;/]\s*S\d+)*\s*\)`)

	sourceTokenRe = regexp.MustCompile(`\bS\d+\b`)

	spaceBeforePunctRe = regexp.MustCompile(`[ \t]+([.,;:!?])`)
	multiSpaceRe       = regexp.MustCompile(`[ \t]{2,}`)
)

// EnforceCitations is the last gate before an answer leaves the pipeline.
// It rewrites every citation-looking construct to the canonical bracketed
// form, drops tokens outside the allow-list, and returns the number of
// valid citations that survived. When citations are enabled, the allow-list
// is non-empty and nothing survived, the fixed refusal replaces the text.
func EnforceCitations(text string, allowList []string, enabled bool) (string, int) {
	out, valid := normalizeCitations(text, allowList, enabled)
	if enabled && len(allowList) > 0 && valid == 0 {
		return RefusalAnswer, 0
	}
	return out, valid
}

// normalizeCitations does the rewriting and filtering without the refusal
// gate, for callers that enforce a block instead of a whole answer.
func normalizeCitations(text string, allowList []string, enabled bool) (string, int) {
	allowed := make(map[string]bool, len(allowList))
	for _, ref := range allowList {
		allowed[strings.ToUpper(strings.TrimSpace(ref))] = true
	}

	valid := 0
	rewrite := func(group string) string {
		tokens := sourceTokenRe.FindAllString(group, -1)
		var keep []string
		seen := map[string]bool{}
		for _, tok := range tokens {
			tok = strings.ToUpper(tok)
			if !enabled || !allowed[tok] || seen[tok] {
				continue
			}
			seen[tok] = true
			keep = append(keep, "["+tok+"]")
		}
		valid += len(keep)
		return strings.Join(keep, "")
	}

	out := bracketCitationRe.ReplaceAllStringFunc(text, rewrite)
	out = parenCitationRe.ReplaceAllStringFunc(out, rewrite)
	out = normalizeBareTokens(out, allowed, enabled, &valid)

	out = spaceBeforePunctRe.ReplaceAllString(out, "$1")
	out = multiSpaceRe.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)

	return out, valid
}

// normalizeBareTokens wraps loose allow-listed Sx tokens in brackets and
// deletes loose tokens outside the list. Tokens already bracketed by the
// earlier passes are left alone.
func normalizeBareTokens(text string, allowed map[string]bool, enabled bool, valid *int) string {
	matches := sourceTokenRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	prev := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		b.WriteString(text[prev:start])
		prev = end

		bracketed := start > 0 && text[start-1] == '[' && end < len(text) && text[end] == ']'
		if bracketed {
			b.WriteString(text[start:end])
			continue
		}
		tok := strings.ToUpper(text[start:end])
		if enabled && allowed[tok] {
			b.WriteString("[" + tok + "]")
			*valid++
		}
		// Disallowed loose tokens are dropped.
	}
	b.WriteString(text[prev:])
	return b.String()
}
