package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/conversation"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const memoryQueueBuffer = 256

// BuildPhrasingClient returns the text-generation client selected by
// PHRASING_PROVIDER, or nil when phrasing is disabled. A Gemini primary falls
// back to Bedrock when a Bedrock model is also configured.
func BuildPhrasingClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.LLMClient, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	noop := func() {}

	switch provider := strings.ToLower(strings.TrimSpace(cfg.PhrasingProvider)); provider {
	case "", "none":
		logger.Info("phrasing disabled; replies use canned text")
		return nil, noop, nil
	case "bedrock":
		client, err := buildBedrockClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("phrasing provider configured", "provider", provider, "model", cfg.BedrockModelID)
		return client, noop, nil
	case "gemini":
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		closeGemini := func() {
			if err := gemini.Close(); err != nil {
				logger.Warn("failed to close gemini client", "error", err)
			}
		}
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			logger.Info("phrasing provider configured", "provider", provider, "model", cfg.GeminiModelID)
			return gemini, closeGemini, nil
		}
		bedrock, err := buildBedrockClient(ctx, cfg)
		if err != nil {
			closeGemini()
			return nil, nil, err
		}
		logger.Info("phrasing provider configured", "provider", provider, "model", cfg.GeminiModelID, "fallback_model", cfg.BedrockModelID)
		return conversation.NewFallbackLLMClient(gemini, bedrock, logger), closeGemini, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown phrasing provider %q", provider)
	}
}

func buildBedrockClient(ctx context.Context, cfg *appconfig.Config) (*conversation.BedrockLLMClient, error) {
	if strings.TrimSpace(cfg.BedrockModelID) == "" {
		return nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for bedrock phrasing")
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	return conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), nil
}

// BuildQueue returns the job queue shared by the publisher and the worker.
// A nil queue means async jobs are disabled.
func BuildQueue(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.Queue, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.UseMemoryQueue {
		logger.Info("using in-memory conversation queue")
		return conversation.NewMemoryQueue(memoryQueueBuffer), nil
	}
	if strings.TrimSpace(cfg.ConversationQueueURL) == "" {
		logger.Warn("no conversation queue configured; async jobs disabled")
		return nil, nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	logger.Info("using SQS conversation queue", "queue_url", cfg.ConversationQueueURL)
	return conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL), nil
}
