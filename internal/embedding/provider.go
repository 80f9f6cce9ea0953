// Package embedding turns text into fixed-dimension vectors. Three variants
// sit behind one interface: a remote OpenAI-compatible API, a local ONNX
// model, and a deterministic offline hash. The variant is chosen by explicit
// configuration, never by runtime type inspection.
package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"grundbank/internal/ai"
	"grundbank/internal/config"
)

type Provider interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider builds the configured provider, wrapped so that a remote or
// local failure degrades to the deterministic hash variant instead of
// failing indexing or retrieval outright.
func NewProvider(cfg *config.Config, client *ai.OpenAICompatibleClient, logger *zap.Logger) (Provider, error) {
	dim := cfg.Embedding.Dim
	if dim <= 0 {
		dim = 384
	}
	hash := NewHashProvider(dim)

	switch cfg.Embedding.Provider {
	case "hash", "":
		return hash, nil
	case "remote":
		remote := NewRemoteProvider(client, ai.EmbeddingConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.Embedding.Model,
		})
		return NewFallbackProvider(remote, hash, logger), nil
	case "local":
		local, err := NewLocalProvider(cfg.Embedding.Model, cfg.Embedding.CacheDir)
		if err != nil {
			return nil, err
		}
		return NewFallbackProvider(local, hash, logger), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

// FallbackProvider tries the primary provider and falls back to the
// secondary on any error, so an unavailable embedding service never
// hard-fails the pipeline.
type FallbackProvider struct {
	primary   Provider
	secondary Provider
	logger    *zap.Logger
}

func NewFallbackProvider(primary, secondary Provider, logger *zap.Logger) *FallbackProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackProvider{primary: primary, secondary: secondary, logger: logger}
}

func (p *FallbackProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.primary.EmbedQuery(ctx, text)
	if err == nil {
		return vec, nil
	}
	p.logger.Warn("primary embedding failed, using offline fallback", zap.Error(err))
	return p.secondary.EmbedQuery(ctx, text)
}

func (p *FallbackProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := p.primary.EmbedDocuments(ctx, texts)
	if err == nil {
		return vecs, nil
	}
	p.logger.Warn("primary batch embedding failed, using offline fallback", zap.Error(err))
	return p.secondary.EmbedDocuments(ctx, texts)
}
