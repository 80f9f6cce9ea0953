package docxextract

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

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Bak</w:t></w:r><w:r><w:t>grund</w:t></w:r></w:p>
    <w:p><w:r><w:t>  Brödtext här.  </w:t></w:r></w:p>
    <w:p/>
    <w:p><w:pPr><w:pStyle w:val="Rubrik2"/></w:pPr><w:r><w:t>Planområdet</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestExtractParagraphs(t *testing.T) {
	paragraphs, err := ExtractParagraphs(buildDocx(t, sampleDocumentXML))
	require.NoError(t, err)
	require.Len(t, paragraphs, 4)

	// Run text is concatenated and trimmed.
	assert.Equal(t, "Bakgrund", paragraphs[0].Text)
	assert.Equal(t, "Heading1", paragraphs[0].Style)
	assert.Equal(t, "Brödtext här.", paragraphs[1].Text)
	assert.Empty(t, paragraphs[1].Style)
	assert.Empty(t, paragraphs[2].Text)
	assert.Equal(t, "Rubrik2", paragraphs[3].Style)
}

func TestParagraphHeadingHelpers(t *testing.T) {
	h1 := Paragraph{Style: "Heading1"}
	assert.True(t, h1.IsHeading())
	assert.Equal(t, 1, h1.HeadingLevel())

	r2 := Paragraph{Style: "Rubrik2"}
	assert.True(t, r2.IsHeading())
	assert.Equal(t, 2, r2.HeadingLevel())

	body := Paragraph{Style: "Normal"}
	assert.False(t, body.IsHeading())
	assert.Zero(t, body.HeadingLevel())
}

func TestExtractParagraphsMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = ExtractParagraphs(buf.Bytes())
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestExtractParagraphsRejectsGarbage(t *testing.T) {
	_, err := ExtractParagraphs([]byte("inte en zipfil"))
	assert.Error(t, err)
}
