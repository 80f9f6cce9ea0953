package embedding

import (
	"context"

	"grundbank/internal/ai"
)

// RemoteProvider calls an OpenAI-compatible /embeddings endpoint.
type RemoteProvider struct {
	client *ai.OpenAICompatibleClient
	cfg    ai.EmbeddingConfig
}

func NewRemoteProvider(client *ai.OpenAICompatibleClient, cfg ai.EmbeddingConfig) *RemoteProvider {
	return &RemoteProvider{client: client, cfg: cfg}
}

func (p *RemoteProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return p.client.Embed(ctx, p.cfg, text)
}

func (p *RemoteProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return p.client.EmbedBatch(ctx, p.cfg, texts)
}
