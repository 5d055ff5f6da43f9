package conversation

import (
	"context"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// FallbackLLMClient tries primary first and secondary when primary errors.
type FallbackLLMClient struct {
	primary   LLMClient
	secondary LLMClient
	logger    *logging.Logger
}

// NewFallbackLLMClient chains two providers. secondary may be nil.
func NewFallbackLLMClient(primary, secondary LLMClient, logger *logging.Logger) *FallbackLLMClient {
	if primary == nil {
		panic("conversation: primary llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{primary: primary, secondary: secondary, logger: logger}
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil || c.secondary == nil {
		return resp, err
	}
	c.logger.Warn("primary llm failed, trying secondary", "error", err)

	resp, secondaryErr := c.secondary.Complete(ctx, req)
	if secondaryErr != nil {
		c.logger.Error("secondary llm failed", "primary_error", err, "secondary_error", secondaryErr)
		return LLMResponse{}, secondaryErr
	}
	return resp, nil
}
