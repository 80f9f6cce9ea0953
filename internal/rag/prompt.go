package rag

import (
	"fmt"
	"strings"

	"grundbank/internal/model"
)

const maxPriorityPolicyLines = 12

// promptInput bundles everything the system prompt is assembled from.
type promptInput struct {
	Persona           string
	StyleBlock        string
	ShowCitations     bool
	AllowList         []string
	Mode              ModePlan
	ContextText       string
	ImageContext      string
	TemplateStructure string
	Plan              []PlanEntry
	SuggestImages     bool
}

// citationInstruction encodes the citation contract: bracketed allow-listed
// tokens only, attached at clause end, never fabricated, never filenames.
func citationInstruction(show bool, allowList []string) string {
	if !show {
		return "Använd INTE källhänvisningar i texten."
	}
	enumeration := "inga"
	if len(allowList) > 0 {
		enumeration = strings.Join(allowList, ", ")
	}
	return "KÄLLHÄNVISNINGAR ÄR OBLIGATORISKA:\n" +
		"- Varje sakpåstående avslutas med en källhänvisning i formatet [Sx] där Sx är ett käll-ID från listan nedan.\n" +
		"- Exempel: [S3]. Flera källor skrivs som [S1][S4].\n" +
		"- Hitta ALDRIG på egna käll-ID:n. Skriv ALDRIG filnamn eller sidnummer i hänvisningen, endast käll-ID.\n" +
		"- Tillåtna käll-ID:n för detta svar: " + enumeration + "."
}

// libraryPriorityPolicy renders the plan as ranked bullet lines for the
// prompt's conflict-resolution rule.
func libraryPriorityPolicy(plan []PlanEntry) string {
	if len(plan) == 0 {
		return "Ingen explicit biblioteksviktning tillgänglig."
	}
	var lines []string
	for i, lib := range plan {
		if i >= maxPriorityPolicyLines {
			break
		}
		suffix := ""
		if lib.PrioritySource == PriorityFromAssistant {
			suffix = " (assistent)"
		}
		lines = append(lines, fmt.Sprintf("- %s (%s), prioritet %d%s", lib.Name, lib.Type, lib.Priority, suffix))
	}
	return "BIBLIOTEKSPRIORITERING (högre värde = mer styrande vid konflikt):\n" + strings.Join(lines, "\n")
}

// buildSystemPrompt assembles the full Swedish system prompt: grounding
// rules, style tiers, citation contract, response architecture, length
// target, library hierarchy and the reference material itself.
func buildSystemPrompt(in promptInput) string {
	var b strings.Builder

	b.WriteString("DIN IDENTITET OCH KÄRNINSTRUKTION:\n")
	b.WriteString(in.Persona)
	b.WriteString("\n\nGROUNDING OCH SANNING (KRITISKT):\n")
	b.WriteString("- Du får endast använda information som finns i de tillhandahållna REFERENSMATERIALEN nedan.\n")
	b.WriteString("- Om du inte hittar svaret i källorna, säg: \"Jag hittar tyvärr ingen information om detta i källmaterialet.\"\n")
	b.WriteString("- HITTA ALDRIG PÅ FAKTA, SIFFROR, NAMN ELLER DATUM.\n")
	b.WriteString("- Skapa ALDRIG källhänvisningar till käll-ID:n som inte finns i listan.\n")
	b.WriteString("- Om en källa är otydlig, redovisa osäkerheten istället för att gissa.\n")

	b.WriteString("\nSTIL OCH FORMATERING:\n")
	if in.StyleBlock != "" {
		b.WriteString(in.StyleBlock)
		b.WriteString("\n")
	}
	b.WriteString(citationInstruction(in.ShowCitations, in.AllowList))
	b.WriteString("\n")
	b.WriteString("IMPORTANT: Om du redigerar ett befintligt utkast, behåll dess grundläggande struktur.\n")
	b.WriteString("IMPORTANT: Om malltexten innehåller instruktioner eller fasta formuleringar, upprepa dem inte. Fyll endast i saklig text där det behövs.\n")
	b.WriteString("ANVÄND MARKDOWN (# för rubriker, - för listor) för att strukturera ditt svar så att det kan formateras korrekt vid export.\n")
	if in.SuggestImages {
		b.WriteString("OM RELEVANTA BILDER FINNS: föreslå diskret placering i texten med rader i formatet [BILDFÖRSLAG: vad som ska visas | källa | sida | sektion]. Använd max 3 bildförslag och placera dem under relevanta rubriker.\n")
	} else {
		b.WriteString("BILDFÖRSLAG ÄR AVSTÄNGT FÖR DETTA SVAR.\n")
	}

	b.WriteString("\nSVARSARKITEKTUR:\n")
	b.WriteString("- Tänk igenom svaret först och skriv sedan ett sammanhållet, genomarbetat svar.\n")
	b.WriteString("- Inled med en tydlig H1-rubrik och en kort sammanfattning (2-5 meningar).\n")
	b.WriteString("- Följ upp med flera H2/H3-rubriker i logisk ordning.\n")
	b.WriteString("- Använd punktlistor där det förbättrar läsbarheten.\n")
	b.WriteString("- Om svaret är långt: behåll röd tråd, undvik upprepningar och avsluta med tydligt ställningstagande/fortsatt arbete.\n")
	b.WriteString("- Skriv aldrig ut hjälpord från mallar som \"Rubrik:\", \"Underrubrik:\", \"Text\" eller \"Kursiv text\".\n")
	if in.Mode.Mode == ModeSimple {
		b.WriteString("SNABBLÄGE: Ge ett kort, direkt och korrekt svar. Undvik onödig utfyllnad. Max cirka 220 ord om inte användaren ber om mer.\n")
	}

	b.WriteString("\nLÄNGDMÅL:\n")
	b.WriteString(LengthInstruction(in.Mode.TargetWords))
	b.WriteString("\n")

	b.WriteString("\nBIBLIOTEKSHIERARKI:\n")
	b.WriteString(libraryPriorityPolicy(in.Plan))
	b.WriteString("\nVid motstridiga uppgifter: prioritera källor med högre biblioteksvärde, om inte användarens bifogade [INPUT]/[ATTACHMENT_INLINE] tydligt ska väga tyngre i frågan.\n")

	b.WriteString("\nREFERENSMATERIAL (Använd detta för att hämta fakta):\n")
	b.WriteString(in.ContextText)
	if in.ImageContext != "" {
		b.WriteString("\n")
		b.WriteString(in.ImageContext)
	}
	if in.TemplateStructure != "" {
		b.WriteString("\n\n")
		b.WriteString(in.TemplateStructure)
	}

	b.WriteString("\n\nVIKTIGT: Om materialet ovan innehåller texter märkta som [INPUT] eller [ATTACHMENT_INLINE], betrakta dem som primära källor (användarens egna bifogade filer).\n")
	return b.String()
}

const maxHistoryMessages = 20
const maxHistorySnippet = 500

// historyText renders the trailing conversation window for the user prompt.
func historyText(messages []model.ConversationMessage) string {
	start := 0
	if len(messages) > maxHistoryMessages {
		start = len(messages) - maxHistoryMessages
	}
	var lines []string
	for _, m := range messages[start:] {
		content := m.Content
		if runes := []rune(content); len(runes) > maxHistorySnippet {
			content = string(runes[:maxHistorySnippet]) + "..."
		}
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, content))
	}
	return strings.Join(lines, "\n")
}

// buildUserPrompt renders the main user turn for the direct strategy.
func buildUserPrompt(currentDraft, history, query, persona string, targetWords int) string {
	draft := currentDraft
	if draft == "" {
		draft = "Inget utkast än. Skapa ett nytt dokument baserat på källmaterialet."
	}
	lengthLine := ""
	if targetWords > 0 {
		lengthLine = fmt.Sprintf("\nLängdmål: cirka %d ord.\n", targetWords)
	}
	return fmt.Sprintf(`Här är det aktuella utkastet eller kontexten:
%s

Dialoghistorik:
%s

Min nya instruktion till dig:
%s
%s
Uppdatera texten enligt instruktionen och returnera hela det uppdaterade dokumentet. Kom ihåg att följa din kärninstruktion (%s):`,
		draft, history, query, lengthLine, persona)
}

const maxImageContextLines = 4

// imageContextBlock lists retrieved images so the model can propose
// placements without seeing the pixels.
func imageContextBlock(images []model.MatchedImage) string {
	if len(images) == 0 {
		return ""
	}
	var lines []string
	for i, img := range images {
		if i >= maxImageContextLines {
			break
		}
		desc := img.Description
		if runes := []rune(desc); len(runes) > 90 {
			desc = string(runes[:90])
		}
		lines = append(lines, fmt.Sprintf("- [BILD: %s...] (Källa: %s, sida %d, sektionstips: %s)",
			desc, img.SourceDocument, img.Page, strings.Join(img.SectionHints, ", ")))
	}
	return "\n\nRELEVANTA BILDER TILLGÄNGLIGA (kan bäddas in i export):\n" + strings.Join(lines, "\n")
}
