package embedding

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

var localModelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// LocalProvider runs a local ONNX embedding model via fastembed, so the
// service can index and retrieve without any remote embedding API.
type LocalProvider struct {
	mu    sync.Mutex
	model *fastembed.FlagEmbedding
}

func NewLocalProvider(modelName, cacheDir string) (*LocalProvider, error) {
	model, ok := localModelMapping[modelName]
	if !ok {
		return nil, fmt.Errorf("unsupported local embedding model %q", modelName)
	}
	if cacheDir == "" {
		cacheDir = "local_cache/models"
	}
	showProgress := false
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            512,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("init local embedding model failed: %w", err)
	}
	return &LocalProvider{model: flag}, nil
}

func (p *LocalProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	vec, err := p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("local query embedding failed: %w", err)
	}
	return vec, nil
}

func (p *LocalProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	vecs, err := p.model.Embed(texts, 32)
	if err != nil {
		return nil, fmt.Errorf("local batch embedding failed: %w", err)
	}
	return vecs, nil
}
