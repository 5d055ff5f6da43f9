package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

type fakeConverse struct {
	in  *bedrockruntime.ConverseInput
	out *bedrockruntime.ConverseOutput
	err error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.in = in
	return f.out, f.err
}

func converseText(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(40),
			OutputTokens: aws.Int32(12),
			TotalTokens:  aws.Int32(52),
		},
	}
}

func TestBedrockClientBuildsConverseRequest(t *testing.T) {
	api := &fakeConverse{out: converseText(" Ji, kal 5 baje. ")}
	client := NewBedrockLLMClient(api, "anthropic.default")

	resp, err := client.Complete(context.Background(), LLMRequest{
		System: []string{"be brief", " "},
		Messages: []ChatMessage{
			{Role: ChatRoleSystem, Content: "extra rule"},
			{Role: ChatRoleUser, Content: "kal 5 pm"},
			{Role: ChatRoleAssistant, Content: ""},
		},
		MaxTokens:   300,
		Temperature: 0.4,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ji, kal 5 baje.", resp.Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, TokenUsage{InputTokens: 40, OutputTokens: 12, TotalTokens: 52}, resp.Usage)

	assert.Equal(t, "anthropic.default", aws.ToString(api.in.ModelId))
	assert.Len(t, api.in.System, 2)
	require.Len(t, api.in.Messages, 1)
	assert.Equal(t, brtypes.ConversationRoleUser, api.in.Messages[0].Role)
	require.NotNil(t, api.in.InferenceConfig)
	assert.Equal(t, int32(300), aws.ToInt32(api.in.InferenceConfig.MaxTokens))
	assert.Equal(t, float32(0.4), aws.ToFloat32(api.in.InferenceConfig.Temperature))
}

func TestBedrockClientRequestModelOverrides(t *testing.T) {
	api := &fakeConverse{out: converseText("ok")}
	_, err := NewBedrockLLMClient(api, "default").Complete(context.Background(), LLMRequest{
		Model:       "override",
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
		Temperature: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, "override", aws.ToString(api.in.ModelId))
	assert.Nil(t, api.in.InferenceConfig)
}

func TestBedrockClientErrors(t *testing.T) {
	msgs := []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}

	_, err := NewBedrockLLMClient(&fakeConverse{}, "").Complete(context.Background(), LLMRequest{Messages: msgs})
	assert.Error(t, err)

	boom := errors.New("throttled")
	_, err = NewBedrockLLMClient(&fakeConverse{err: boom}, "m").Complete(context.Background(), LLMRequest{Messages: msgs})
	assert.ErrorIs(t, err, boom)

	_, err = NewBedrockLLMClient(&fakeConverse{out: converseText("  ")}, "m").Complete(context.Background(), LLMRequest{Messages: msgs})
	assert.Error(t, err)

	_, err = NewBedrockLLMClient(&fakeConverse{out: converseText("x")}, "m").Complete(context.Background(), LLMRequest{
		Messages: []ChatMessage{{Role: "tool", Content: "x"}},
	})
	assert.Error(t, err)
}

func TestFallbackClient(t *testing.T) {
	ctx := context.Background()
	req := LLMRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}}

	primary := &stubLLM{text: "primary"}
	secondary := &stubLLM{text: "secondary"}
	resp, err := NewFallbackLLMClient(primary, secondary, logging.Discard()).Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)

	primary.err = errors.New("down")
	resp, err = NewFallbackLLMClient(primary, secondary, logging.Discard()).Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "secondary", resp.Text)

	secondary.err = errors.New("also down")
	_, err = NewFallbackLLMClient(primary, secondary, logging.Discard()).Complete(ctx, req)
	assert.EqualError(t, err, "also down")

	_, err = NewFallbackLLMClient(primary, nil, logging.Discard()).Complete(ctx, req)
	assert.EqualError(t, err, "down")

	assert.Panics(t, func() { NewFallbackLLMClient(nil, secondary, nil) })
}
