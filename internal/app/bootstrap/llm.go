package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/agentx-dm-platform/internal/config"
	"github.com/wolfman30/agentx-dm-platform/internal/llm"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

// LLM providers selectable through LLM_PROVIDER.
const (
	ProviderGateway = "gateway"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// LLMClients bundles the completion client with the optional document
// transcriber used for scanned PDFs and unknown file types.
type LLMClients struct {
	Client      llm.Client
	Transcriber llm.DocumentTranscriber
	closers     []func() error
}

// Close releases provider connections.
func (c *LLMClients) Close() error {
	var first error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BuildLLMClients wires the configured provider. A Gemini key, when present,
// also enables document transcription regardless of the chat provider.
func BuildLLMClients(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*LLMClients, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	out := &LLMClients{}
	var gemini *llm.GeminiClient
	if cfg.GeminiAPIKey != "" {
		g, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		gemini = g
		out.Transcriber = g
		out.closers = append(out.closers, g.Close)
	}

	switch cfg.LLMProvider {
	case ProviderGateway, ProviderOpenAI, "":
		client, err := llm.NewOpenAIClient(cfg.LLMGatewayAPIKey, cfg.LLMGatewayURL, cfg.LLMModel)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out.Client = client
	case ProviderGemini:
		if gemini == nil {
			return nil, fmt.Errorf("bootstrap: GEMINI_API_KEY is required for provider %q", cfg.LLMProvider)
		}
		out.Client = gemini
	case ProviderBedrock:
		if cfg.BedrockModelID == "" {
			_ = out.Close()
			return nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for provider %q", cfg.LLMProvider)
		}
		out.Client = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	default:
		_ = out.Close()
		return nil, fmt.Errorf("bootstrap: unknown LLM provider %q", cfg.LLMProvider)
	}

	logger.Info("llm client configured",
		"provider", cfg.LLMProvider,
		"model", cfg.LLMModel,
		"transcription", out.Transcriber != nil,
	)
	return out, nil
}
