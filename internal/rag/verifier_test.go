package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grundbank/internal/model"
)

func TestSplitTopSections(t *testing.T) {
	doc := `Inledning före första rubriken.

# Planbeskrivning
Text ett.

## Bakgrund
Text två.

### Underrubrik hålls ihop med sin H2
Text tre.

## Slutsats
Text fyra.`

	sections := splitTopSections(doc)
	require.Len(t, sections, 4)
	assert.Equal(t, "Inledning före första rubriken.", sections[0])
	assert.Contains(t, sections[1], "# Planbeskrivning")
	assert.Contains(t, sections[2], "### Underrubrik")
	assert.Contains(t, sections[3], "## Slutsats")
}

func TestSplitTopSectionsNoHeadings(t *testing.T) {
	sections := splitTopSections("Bara brödtext.\nPå två rader.")
	require.Len(t, sections, 1)
}

func TestSourceBriefs(t *testing.T) {
	briefs := sourceBriefs([]Source{
		{
			Ref:             "S1",
			Filename:        "plan.pdf",
			Page:            4,
			LibraryName:     "Underlag",
			Type:            model.LibraryInput,
			LibraryPriority: 90,
			Content:         "Planen vann laga kraft 2021.",
		},
	})
	assert.Contains(t, briefs, "S1 | plan.pdf | sida 4")
	assert.Contains(t, briefs, "Underlag (INPUT, prio 90)")
	assert.Contains(t, briefs, "Planen vann laga kraft 2021.")
}

func TestSourceBriefsCapsExcerpts(t *testing.T) {
	long := make([]rune, 2000)
	for i := range long {
		long[i] = 'x'
	}
	briefs := sourceBriefs([]Source{{Ref: "S1", Content: string(long)}})
	// Header line plus capped excerpt plus separator.
	assert.Less(t, len([]rune(briefs)), 800)
}
