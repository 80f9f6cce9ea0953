// Package vision turns extracted raster images into searchable Swedish text
// descriptions. The LLM describer sends the image to a multimodal chat
// model; the ONNX describer runs a local classifier and phrases its top
// labels; the noop describer disables image interpretation entirely.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"

	"grundbank/internal/ai"
	"grundbank/internal/config"
)

// DescriptionUnavailable is indexed verbatim when a describer fails on one
// image, so the asset still exists and the failure is visible.
const DescriptionUnavailable = "Kunde inte tolka bilden."

type Describer interface {
	// Describe returns a text description of the JPEG or PNG image bytes.
	Describe(ctx context.Context, imageData []byte) (string, error)
	Enabled() bool
}

// NewDescriber selects the describer backend from configuration.
func NewDescriber(cfg config.VisionConfig, chatCfg ai.ChatConfig, client *ai.OpenAICompatibleClient, logger *zap.Logger) (Describer, error) {
	switch cfg.Provider {
	case "llm":
		return NewLLMDescriber(client, chatCfg, cfg.Model, logger), nil
	case "onnx":
		return NewONNXDescriber(cfg.ONNXModelPath, cfg.ONNXLabelsPath, cfg.ONNXSharedLibPath, cfg.TopK), nil
	case "off", "":
		return NoopDescriber{}, nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.Provider)
	}
}

type NoopDescriber struct{}

func (NoopDescriber) Describe(context.Context, []byte) (string, error) {
	return "", nil
}

func (NoopDescriber) Enabled() bool { return false }

const describeInstruction = "Describe this image in detail for a document management system. Focus on text, charts, or important visual features. Use Swedish."

// LLMDescriber sends the image to a multimodal chat model.
type LLMDescriber struct {
	client *ai.OpenAICompatibleClient
	cfg    ai.ChatConfig
	model  string
	logger *zap.Logger
}

func NewLLMDescriber(client *ai.OpenAICompatibleClient, cfg ai.ChatConfig, model string, logger *zap.Logger) *LLMDescriber {
	return &LLMDescriber{client: client, cfg: cfg, model: model, logger: logger}
}

func (d *LLMDescriber) Enabled() bool {
	return d.client != nil && d.model != ""
}

func (d *LLMDescriber) Describe(ctx context.Context, imageData []byte) (string, error) {
	if !d.Enabled() {
		return "", nil
	}
	encoded := base64.StdEncoding.EncodeToString(imageData)
	desc, err := d.client.DescribeImage(ctx, d.cfg, d.model, describeInstruction, encoded)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("vision describe failed", zap.Error(err))
		}
		return DescriptionUnavailable, nil
	}
	return desc, nil
}
