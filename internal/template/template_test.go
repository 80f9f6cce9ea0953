package template

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const templateDocumentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Skriv alltid på klarspråk.</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Bakgrund</w:t></w:r></w:p>
    <w:p><w:r><w:t>Här redovisas planens bakgrund.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Text</w:t></w:r></w:p>
    <w:p><w:r><w:t>Detaljplanen vann laga kraft 2019.</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="Rubrik2"/></w:pPr><w:r><w:t>Planområdet</w:t></w:r></w:p>
    <w:p><w:r><w:t>Beskriv områdets avgränsning.</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Innehåll</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestParseTemplate(t *testing.T) {
	structure, err := Parse(buildDocx(t, templateDocumentXML))
	require.NoError(t, err)

	require.Len(t, structure.GlobalInstructions, 1)
	assert.Equal(t, "Skriv alltid på klarspråk.", structure.GlobalInstructions[0])

	// The TOC heading is dropped.
	require.Len(t, structure.Sections, 2)

	bakgrund := structure.Sections[0]
	assert.Equal(t, "Bakgrund", bakgrund.Title)
	assert.Equal(t, 1, bakgrund.Level)
	// Prose without guidance markers is not treated as an instruction.
	assert.Equal(t, []string{"Här redovisas planens bakgrund.", "Text"}, bakgrund.Instructions)

	planomrade := structure.Sections[1]
	assert.Equal(t, "Planområdet", planomrade.Title)
	assert.Equal(t, 2, planomrade.Level)
	assert.Equal(t, []string{"Beskriv områdets avgränsning."}, planomrade.Instructions)
}

func TestParseTextPrefixHeadings(t *testing.T) {
	const doc = `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Rubrik: Sammanfattning</w:t></w:r></w:p>
    <w:p><w:r><w:t>Ange de viktigaste slutsatserna.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	structure, err := Parse(buildDocx(t, doc))
	require.NoError(t, err)
	require.Len(t, structure.Sections, 1)
	assert.Equal(t, "Sammanfattning", structure.Sections[0].Title)
	assert.Equal(t, 2, structure.Sections[0].Level)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("inte en docx"))
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	structure := &Structure{
		Sections: []Section{
			{Title: "Bakgrund", Level: 1, Instructions: []string{"Beskriv syftet."}},
			{Title: "Planområdet", Level: 2},
		},
		GlobalInstructions: []string{"Skriv på klarspråk."},
	}
	prompt := structure.BuildPrompt()
	assert.Contains(t, prompt, "STRUKTURMALL")
	assert.Contains(t, prompt, "# Bakgrund")
	assert.Contains(t, prompt, "## Planområdet")
	assert.Contains(t, prompt, "GLOBALA MALLINSTRUKTIONER")
	assert.Contains(t, prompt, "- Skriv på klarspråk.")
	assert.Contains(t, prompt, "RUBRIK: Bakgrund")
	assert.Contains(t, prompt, "  - Beskriv syftet.")
	assert.NotContains(t, prompt, "RUBRIK: Planområdet")
}

func TestBuildPromptEmpty(t *testing.T) {
	assert.Empty(t, (&Structure{}).BuildPrompt())
	var nilStructure *Structure
	assert.Empty(t, nilStructure.BuildPrompt())

	onlyGlobal := &Structure{GlobalInstructions: []string{"Skriv kort."}}
	assert.Equal(t, "GLOBALA MALLINSTRUKTIONER:\n- Skriv kort.", onlyGlobal.BuildPrompt())
}
