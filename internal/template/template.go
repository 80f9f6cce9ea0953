// Package template parses .docx structure templates into an ordered section
// outline with per-section writing instructions, and renders the outline as
// a prompt block the generator must follow.
package template

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"grundbank/internal/pkg/docxextract"
)

const (
	maxSectionInstructions = 6
	maxGlobalInstructions  = 12
	maxInstructionLength   = 280
)

type Section struct {
	Title        string   `json:"title"`
	Level        int      `json:"level"`
	Instructions []string `json:"instructions"`
}

type Structure struct {
	Sections           []Section `json:"sections"`
	GlobalInstructions []string  `json:"global_instructions"`
}

// ParseFile reads a .docx template from disk.
func ParseFile(path string) (*Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template failed: %w", err)
	}
	return Parse(data)
}

// Parse walks the template paragraphs in order: headings open sections,
// instruction-looking paragraphs attach to the open section, instruction
// paragraphs before the first heading become global.
func Parse(data []byte) (*Structure, error) {
	paragraphs, err := docxextract.ExtractParagraphs(data)
	if err != nil {
		return nil, fmt.Errorf("parse template failed: %w", err)
	}

	var sections []Section
	var global []string
	var current *Section

	for _, para := range paragraphs {
		text := strings.TrimSpace(para.Text)
		if text == "" {
			continue
		}
		if isHeading(para, text) {
			if current != nil {
				sections = append(sections, *current)
			}
			current = &Section{
				Title: normalizeHeadingTitle(text),
				Level: headingLevel(para, text),
			}
			continue
		}
		if !isInstruction(para, text) {
			continue
		}
		instr := truncate(text, maxInstructionLength)
		if current != nil {
			if len(current.Instructions) < maxSectionInstructions {
				current.Instructions = append(current.Instructions, instr)
			}
		} else if len(global) < maxGlobalInstructions {
			global = append(global, instr)
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}

	// TOC-only heading blocks should not drive generation.
	filtered := make([]Section, 0, len(sections))
	for _, sec := range sections {
		title := strings.TrimSpace(sec.Title)
		if title == "" {
			continue
		}
		low := strings.ToLower(title)
		if low == "innehåll" || low == "contents" {
			continue
		}
		sec.Title = title
		filtered = append(filtered, sec)
	}
	return &Structure{Sections: filtered, GlobalInstructions: global}, nil
}

var (
	headingPrefixRe = regexp.MustCompile(`(?i)^(rubrik|underrubrik|rubruk|heading)\s*:`)
	headingTitleRe  = regexp.MustCompile(`(?i)^(rubrik|underrubrik|rubruk|heading)\s*:\s*`)
	styleLevelRe    = regexp.MustCompile(`(?i)(heading|rubrik)\s*([1-9])`)
)

func isHeading(para docxextract.Paragraph, text string) bool {
	style := strings.ToLower(para.Style)
	for _, token := range []string{"heading", "rubrik", "huvudrubrik", "underrubrik"} {
		if strings.Contains(style, token) {
			return true
		}
	}
	return headingPrefixRe.MatchString(text)
}

func normalizeHeadingTitle(raw string) string {
	title := headingTitleRe.ReplaceAllString(strings.TrimSpace(raw), "")
	return strings.Join(strings.Fields(title), " ")
}

func headingLevel(para docxextract.Paragraph, text string) int {
	style := strings.ToLower(para.Style)
	if m := styleLevelRe.FindStringSubmatch(style); m != nil {
		return int(m[2][0] - '0')
	}
	if strings.Contains(style, "huvudrubrik") {
		return 1
	}
	if strings.Contains(style, "underrubrik") {
		return 3
	}
	switch {
	case strings.HasPrefix(text, "### "):
		return 3
	case strings.HasPrefix(text, "## "):
		return 2
	case strings.HasPrefix(text, "# "):
		return 1
	}
	return 2
}

var placeholderExact = map[string]bool{
	"text":                  true,
	"kursiv text":           true,
	"alternativt":           true,
	"slut":                  true,
	"ingen text direkt här": true,
}

var placeholderXRe = regexp.MustCompile(`^x{2,}$`)

func isPlaceholderText(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return placeholderExact[lower] || placeholderXRe.MatchString(lower)
}

var guidanceMarkers = []string{
	"ska ", "bör ", "använd", "ange", "redovisa", "beskriv", "fyll i",
	"kom ihåg", "ta bort", "stryk", "rubriken", "här redovisas",
	"här skrivs", "under denna rubrik",
}

func looksLikeGuidance(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range guidanceMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

var instructionKeywords = []string{
	"instruktion", "skriv", "fyll i", "ange", "beskriv", "exempel",
	"kommentar", "här skriver", "todo", "tbd", "placeholder",
}

func isInstruction(para docxextract.Paragraph, text string) bool {
	if text == "" {
		return false
	}
	if isPlaceholderText(text) {
		return true
	}
	lower := strings.ToLower(text)
	for _, k := range instructionKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
		return true
	}
	if strings.Contains(text, "{") && strings.Contains(text, "}") {
		return true
	}
	style := strings.ToLower(para.Style)
	for _, token := range []string{"instruktion", "kommentar", "note", "svarstext"} {
		if strings.Contains(style, token) {
			return true
		}
	}
	return looksLikeGuidance(text)
}

// BuildPrompt renders the structure as the prompt block that pins section
// order and heading names during generation. Returns "" for an empty
// structure.
func (s *Structure) BuildPrompt() string {
	if s == nil {
		return ""
	}
	if len(s.Sections) == 0 {
		if len(s.GlobalInstructions) == 0 {
			return ""
		}
		return "GLOBALA MALLINSTRUKTIONER:\n- " + strings.Join(s.GlobalInstructions, "\n- ")
	}

	lines := []string{"STRUKTURMALL (följ rubrikerna i denna ordning och använd rubriknamnen):"}
	for _, sec := range s.Sections {
		level := sec.Level
		if level < 1 {
			level = 1
		}
		if level > 4 {
			level = 4
		}
		lines = append(lines, strings.Repeat("#", level)+" "+sec.Title)
	}
	if len(s.GlobalInstructions) > 0 {
		lines = append(lines, "", "GLOBALA MALLINSTRUKTIONER (gäller hela texten):")
		for _, instr := range s.GlobalInstructions {
			lines = append(lines, "- "+instr)
		}
	}
	lines = append(lines, "", "INSTRUKTIONER PER RUBRIK (ska INTE återges ordagrant i svaret):")
	for _, sec := range s.Sections {
		if len(sec.Instructions) == 0 {
			continue
		}
		lines = append(lines, "RUBRIK: "+sec.Title)
		for _, instr := range sec.Instructions {
			lines = append(lines, "  - "+instr)
		}
	}
	lines = append(lines, "",
		"Skriv aldrig ut hjälpord som 'Rubrik:', 'Underrubrik:', 'Text', 'Kursiv text' i slutresultatet.")
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
