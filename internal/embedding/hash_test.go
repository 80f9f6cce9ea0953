package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProviderDeterministic(t *testing.T) {
	p := NewHashProvider(384)
	a, err := p.EmbedQuery(context.Background(), "detaljplan för kvarteret")
	require.NoError(t, err)
	b, err := p.EmbedQuery(context.Background(), "detaljplan för kvarteret")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 384)
}

func TestHashProviderDistinguishesTexts(t *testing.T) {
	p := NewHashProvider(128)
	a, _ := p.EmbedQuery(context.Background(), "buller vid järnvägen")
	b, _ := p.EmbedQuery(context.Background(), "dagvatten i parken")
	assert.NotEqual(t, a, b)
}

func TestHashProviderNormalized(t *testing.T) {
	p := NewHashProvider(64)
	vec, err := p.EmbedQuery(context.Background(), "normaliserad vektor")
	require.NoError(t, err)
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 0.01)
}

func TestHashProviderEmbedDocuments(t *testing.T) {
	p := NewHashProvider(64)
	vecs, err := p.EmbedDocuments(context.Background(), []string{"första", "andra"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	single, _ := p.EmbedQuery(context.Background(), "första")
	assert.Equal(t, single, vecs[0])
}
