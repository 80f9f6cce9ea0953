package ingest

import (
	"regexp"
	"sort"
	"strings"
)

var imageStopwords = map[string]bool{
	"och": true, "att": true, "det": true, "som": true, "med": true,
	"för": true, "eller": true, "den": true, "detta": true, "denna": true,
	"från": true, "till": true, "har": true, "kan": true, "ska": true,
	"inte": true, "vid": true, "över": true, "under": true, "samt": true,
	"ochså": true, "också": true, "inom": true, "utan": true, "där": true,
	"här": true, "per": true, "en": true, "ett": true, "av": true,
	"the": true, "and": true, "with": true, "for": true, "from": true,
	"this": true, "that": true, "into": true, "over": true,
	"image": true, "figure": true, "page": true, "karta": true,
	"bild": true, "figur": true, "diagram": true,
}

type sectionHint struct {
	triggers []string
	hint     string
}

var imageSectionHints = []sectionHint{
	{[]string{"buller", "noise", "ljud", "decibel", "db(a)"}, "Miljökonsekvenser / Buller"},
	{[]string{"trafik", "väg", "gata", "parkering", "mobilitet", "flöde"}, "Trafik och mobilitet"},
	{[]string{"dagvatten", "drän", "regn", "översvämning", "vatten", "flödesväg"}, "Vatten och dagvatten"},
	{[]string{"risk", "farligt", "säkerhet", "olycka", "explosion", "brand"}, "Risk och säkerhet"},
	{[]string{"geoteknik", "jord", "stabilitet", "sättningar", "berg"}, "Geotekniska förutsättningar"},
	{[]string{"natur", "ekologi", "habitat", "träd", "grön", "art"}, "Naturmiljö och ekologi"},
	{[]string{"kultur", "fornlämning", "miljö", "bevarande", "historisk"}, "Kulturmiljö"},
	{[]string{"sol", "skugga", "ljus", "vind", "klimat"}, "Klimat, sol och skuggning"},
}

// GenericSectionHint is used when no trigger matches.
const GenericSectionHint = "Placera i närmast relevanta sakavsnitt med bildförklaring"

const (
	maxImageTags        = 10
	maxImageHints       = 4
	maxPageTextForTags  = 1800
	maxContextExcerpt   = 420
)

var imageTokenRe = regexp.MustCompile(`[a-z0-9åäö\-]{3,}`)

func tokenizeImageText(text string) []string {
	return imageTokenRe.FindAllString(strings.ToLower(text), -1)
}

func normalizeSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ExtractImageTags picks searchable tags for one image from its description
// and the surrounding page text. Domain trigger words rank before plain
// frequency so a noise map tags "buller" before filler words.
func ExtractImageTags(description, pageText string) []string {
	desc := normalizeSpace(description)
	page := normalizeSpace(pageText)
	if runes := []rune(page); len(runes) > maxPageTextForTags {
		page = string(runes[:maxPageTextForTags])
	}
	tokens := tokenizeImageText(desc + " " + page)

	counts := make(map[string]int)
	for _, token := range tokens {
		if imageStopwords[token] {
			continue
		}
		if isAllDigits(token) {
			continue
		}
		counts[token]++
	}

	var domainWords []string
	seenDomain := make(map[string]bool)
	for _, hint := range imageSectionHints {
		for _, term := range hint.triggers {
			if counts[term] > 0 && !seenDomain[term] {
				seenDomain[term] = true
				domainWords = append(domainWords, term)
			}
		}
	}

	type termCount struct {
		term  string
		count int
	}
	ranked := make([]termCount, 0, len(counts))
	for term, count := range counts {
		ranked = append(ranked, termCount{term, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].term < ranked[j].term
	})

	tags := make([]string, 0, maxImageTags)
	inTags := make(map[string]bool)
	for _, term := range domainWords {
		tags = append(tags, term)
		inTags[term] = true
		if len(tags) >= maxImageTags {
			return tags
		}
	}
	for _, tc := range ranked {
		if inTags[tc.term] {
			continue
		}
		tags = append(tags, tc.term)
		if len(tags) >= maxImageTags {
			break
		}
	}
	return tags
}

// InferSectionHints maps an image to likely report sections via trigger
// words in its tags, description and page text.
func InferSectionHints(tags []string, description, pageText string) []string {
	blob := strings.ToLower(strings.Join(tags, " ") + " " + description + " " + pageText)
	var hints []string
	for _, h := range imageSectionHints {
		for _, trigger := range h.triggers {
			if strings.Contains(blob, trigger) {
				hints = append(hints, h.hint)
				break
			}
		}
	}
	if len(hints) == 0 {
		hints = append(hints, GenericSectionHint)
	}
	if len(hints) > maxImageHints {
		hints = hints[:maxImageHints]
	}
	return hints
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
