package rag

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ResponseMode is what the caller requests; the planner resolves it to a
// Mode before any retrieval or generation happens.
type ResponseMode string

const (
	ResponseAuto     ResponseMode = "auto"
	ResponseFast     ResponseMode = "fast"
	ResponseStandard ResponseMode = "standard"
	ResponseDeep     ResponseMode = "deep"
)

func ParseResponseMode(raw string) ResponseMode {
	switch ResponseMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ResponseFast, ResponseStandard, ResponseDeep:
		return ResponseMode(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return ResponseAuto
	}
}

// Mode is the resolved generation mode that drives retrieval depth, prompt
// shape and the orchestrator strategy.
type Mode int

const (
	ModeSimple Mode = iota
	ModeStandard
	ModeLongform
)

func (m Mode) String() string {
	switch m {
	case ModeSimple:
		return "simple"
	case ModeLongform:
		return "longform"
	default:
		return "standard"
	}
}

const (
	wordsPerPage         = 450
	longformDefaultWords = 1500
	longformWordCutoff   = 1200
	simpleTargetWords    = 220
)

var longformTerms = []string{
	"utförlig", "utförligt", "detaljerad", "detaljerat", "djupgående",
	"långt svar", "lång text", "sammanhängande text", "hela dokumentet",
	"fullständig", "fördjupad", "notebooklm",
}

// WantsLongform reports whether the query vocabulary or an explicit flag
// asks for an in-depth answer.
func WantsLongform(query string, longformFlag bool) bool {
	if longformFlag {
		return true
	}
	lower := strings.ToLower(query)
	for _, term := range longformTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

var (
	wordsTargetRe = regexp.MustCompile(`(\d{3,5})\s*ord`)
	pagesTargetRe = regexp.MustCompile(`(\d+)\s*sidor`)
)

// InferTargetWords resolves the target word count with precedence: explicit
// words > "N ord" in text > pages (explicit or "N sidor") x 450 > longform
// default. Returns 0 when no target applies.
func InferTargetWords(query string, targetPages, targetWords int, longformFlag bool) int {
	if targetWords > 0 {
		if targetWords < 300 {
			return 300
		}
		return targetWords
	}
	lower := strings.ToLower(query)
	if m := wordsTargetRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 300 {
			n = 300
		}
		return n
	}
	if targetPages > 0 {
		n := targetPages * wordsPerPage
		if n < 600 {
			n = 600
		}
		return n
	}
	if m := pagesTargetRe.FindStringSubmatch(lower); m != nil {
		pages, _ := strconv.Atoi(m[1])
		n := pages * wordsPerPage
		if n < 600 {
			n = 600
		}
		return n
	}
	if WantsLongform(lower, longformFlag) {
		return longformDefaultWords
	}
	return 0
}

// LengthInstruction phrases the length target for the system prompt.
func LengthInstruction(targetWords int) string {
	switch {
	case targetWords >= 2200:
		return fmt.Sprintf("Sikta på cirka %d ord. Skriv djupt och sammanhängande, med tydlig rubrikstruktur.", targetWords)
	case targetWords >= 1200:
		return fmt.Sprintf("Sikta på cirka %d ord. Ge ett genomarbetat och välstrukturerat svar.", targetWords)
	case targetWords >= 700:
		return fmt.Sprintf("Sikta på cirka %d ord och använd flera underrubriker.", targetWords)
	default:
		return "Anpassa längden efter uppgiften. Om användaren ber om kort svar: prioritera precision före längd."
	}
}

var complexSignals = []string{
	"utred", "analysera", "jämför", "fullständig", "fördjup", "lång", "utförlig",
	"disposition", "konsekvens", "samrådsredogörelse", "planbeskrivning",
}

var questionSignals = []string{
	"vad", "vem", "var", "när", "hur", "kan du", "finns", "är det",
}

// IsSimpleQuery classifies short, question-like queries that can take the
// direct fast path.
func IsSimpleQuery(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	if len([]rune(q)) > 110 {
		return false
	}
	for _, s := range complexSignals {
		if strings.Contains(q, s) {
			return false
		}
	}
	for _, s := range questionSignals {
		if strings.Contains(q, s) {
			return true
		}
	}
	return len(strings.Fields(q)) <= 12
}

// ModePlan is the resolved mode bundle the rest of the pipeline consumes.
type ModePlan struct {
	Requested   ResponseMode
	Mode        Mode
	TargetWords int
	UseOutline  bool
}

// ResolveMode applies the full mode decision tree: explicit fast/deep win,
// auto classifies simple queries, long-form is forced by vocabulary or a
// target of at least 1200 words.
func ResolveMode(requested ResponseMode, query string, targetPages, targetWords int, longformFlag, hasTemplate bool) ModePlan {
	words := InferTargetWords(query, targetPages, targetWords, longformFlag)
	longform := WantsLongform(query, longformFlag) || words >= longformWordCutoff
	if requested == ResponseDeep {
		longform = true
	}
	simple := requested == ResponseFast ||
		(requested == ResponseAuto && IsSimpleQuery(query) && !hasTemplate && !longform)

	plan := ModePlan{Requested: requested, TargetWords: words}
	switch {
	case simple:
		plan.Mode = ModeSimple
		if plan.TargetWords == 0 {
			plan.TargetWords = simpleTargetWords
		}
	case longform:
		plan.Mode = ModeLongform
		if plan.TargetWords == 0 {
			plan.TargetWords = longformDefaultWords
		}
	default:
		plan.Mode = ModeStandard
	}

	plan.UseOutline = !simple && (hasTemplate ||
		len([]rune(query)) > 180 ||
		strings.Contains(strings.ToLower(query), "disposition") ||
		longform ||
		words >= 900)
	return plan
}

// BaseK is the retrieval depth for a priority >= 85 library.
func (p ModePlan) BaseK(targetPages int, hasTemplate bool) int {
	switch {
	case p.Mode == ModeSimple:
		return 4
	case p.Mode == ModeLongform && p.TargetWords >= 2000:
		return 18
	case p.Mode == ModeLongform || (targetPages > 0 && targetPages >= 5) || hasTemplate:
		return 15
	default:
		return 10
	}
}

// MaxTotalSources is the global per-request source cap: three full-depth
// libraries' worth of sources.
func MaxTotalSources(baseK int) int {
	return 3 * baseK
}

// MaxSnippetLen bounds each source's content in the prompt context.
func (p ModePlan) MaxSnippetLen() int {
	switch p.Mode {
	case ModeSimple:
		return 700
	case ModeLongform:
		return 1600
	default:
		return 1200
	}
}

// KForPriority is the priority-to-depth staircase.
func KForPriority(priority, baseK int) int {
	switch {
	case priority >= 85:
		return baseK
	case priority >= 70:
		return maxInt(6, baseK-2)
	case priority >= 50:
		return maxInt(4, baseK-4)
	default:
		return maxInt(2, baseK-6)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
