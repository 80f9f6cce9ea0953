package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractImageTagsDomainWordsFirst(t *testing.T) {
	description := "Bullerkarta med buller längs vägen"
	pageText := "Utredningen redovisar buller och trafik i planområdet. Trafik ökar."

	tags := ExtractImageTags(description, pageText)
	require.NotEmpty(t, tags)
	assert.Equal(t, "buller", tags[0])
	assert.Contains(t, tags, "trafik")
	assert.LessOrEqual(t, len(tags), 10)
}

func TestExtractImageTagsFiltersStopwordsAndDigits(t *testing.T) {
	tags := ExtractImageTags("en bild av det och 2024", "det som har och 12345")
	assert.NotContains(t, tags, "och")
	assert.NotContains(t, tags, "det")
	assert.NotContains(t, tags, "bild")
	assert.NotContains(t, tags, "2024")
	assert.NotContains(t, tags, "12345")
}

func TestExtractImageTagsFrequencyOrder(t *testing.T) {
	tags := ExtractImageTags("", "parkhus parkhus parkhus gårdsmiljö gårdsmiljö entré")
	require.GreaterOrEqual(t, len(tags), 3)
	assert.Equal(t, "parkhus", tags[0])
	assert.Equal(t, "gårdsmiljö", tags[1])
}

func TestInferSectionHints(t *testing.T) {
	hints := InferSectionHints([]string{"buller"}, "Bullerkarta", "nivåer längs järnvägen")
	assert.Contains(t, hints, "Miljökonsekvenser / Buller")

	hints = InferSectionHints(nil, "dagvattenflöden vid skyfall", "")
	assert.Contains(t, hints, "Vatten och dagvatten")
}

func TestInferSectionHintsGenericFallback(t *testing.T) {
	hints := InferSectionHints(nil, "abstrakt illustration", "")
	require.Len(t, hints, 1)
	assert.Equal(t, GenericSectionHint, hints[0])
}

func TestInferSectionHintsCap(t *testing.T) {
	blob := "buller trafik dagvatten risk geoteknik natur kultur sol"
	hints := InferSectionHints(nil, blob, "")
	assert.Len(t, hints, 4)
}
