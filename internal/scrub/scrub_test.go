package scrub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooksLikePersonName(t *testing.T) {
	assert.True(t, LooksLikePersonName("Anna Karlsson"))
	assert.True(t, LooksLikePersonName("Erik  Svensson  Berg"))

	assert.False(t, LooksLikePersonName(""))
	assert.False(t, LooksLikePersonName("Anna"))
	assert.False(t, LooksLikePersonName("Anna Karlsson Berg Lind Ek"))
	assert.False(t, LooksLikePersonName("anna@example.se"))
	assert.False(t, LooksLikePersonName("Anna Karlsson 1975"))
	assert.False(t, LooksLikePersonName("Uppsala Kommun"))
	assert.False(t, LooksLikePersonName("Svensson AB"))
	assert.False(t, LooksLikePersonName("ABC Holding"))
	assert.False(t, LooksLikePersonName("A Karlsson"))
}

func TestIsAllUpper(t *testing.T) {
	assert.True(t, isAllUpper("ABC"))
	assert.True(t, isAllUpper("ÅÄÖ"))
	assert.False(t, isAllUpper("Abc"))
	assert.False(t, isAllUpper("123"))
}

func TestReplaceExactName(t *testing.T) {
	out, count := replaceExactName(
		"Anna Karlsson bor här. Anna Karlsson, tel saknas.",
		"Anna Karlsson", "[DOKUMENTKORT_0001]")
	assert.Equal(t, 2, count)
	assert.Equal(t, "[DOKUMENTKORT_0001] bor här. [DOKUMENTKORT_0001], tel saknas.", out)
}

func TestReplaceExactNameRespectsWordBoundaries(t *testing.T) {
	out, count := replaceExactName("Eriksgatan korsar vägen där Erik bor.", "Erik", "[X]")
	assert.Equal(t, 1, count)
	assert.Equal(t, "Eriksgatan korsar vägen där [X] bor.", out)

	out, count = replaceExactName("ingen träff", "Erik", "[X]")
	assert.Zero(t, count)
	assert.Equal(t, "ingen träff", out)

	out, count = replaceExactName("text", "", "[X]")
	assert.Zero(t, count)
	assert.Equal(t, "text", out)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"names": []}`, stripCodeFence("```json\n{\"names\": []}\n```"))
	assert.Equal(t, `{"names": []}`, stripCodeFence("```\n{\"names\": []}\n```"))
	assert.Equal(t, `{"names": []}`, stripCodeFence(`{"names": []}`))
}
