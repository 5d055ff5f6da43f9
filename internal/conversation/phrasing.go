package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const (
	defaultPhrasingTimeout = 8 * time.Second
	phrasingMaxTokens      = 300
	phrasingTemperature    = 0.4
)

const receptionistPrompt = `You are a WhatsApp receptionist for a medical clinic in Pakistan.
Rewrite the draft reply in a short, warm WhatsApp tone. Roman Urdu mixed with English is welcome.
Never change, add or drop dates, times, names or numbers. Ask for at most one thing.
Reply with the message text only.`

// Prompt describes one reply. Canned is a complete reply on its own; Facts
// are substrings a rephrased reply must still contain.
type Prompt struct {
	Instruction string
	Canned      string
	Facts       []string
}

// Phraser renders replies through an optional LLM and falls back to the
// canned text on error, timeout, empty output or a dropped fact.
type Phraser struct {
	client  LLMClient
	model   string
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.ConversationMetrics
}

type PhraserOption func(*Phraser)

func WithPhrasingTimeout(d time.Duration) PhraserOption {
	return func(p *Phraser) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithPhrasingModel(model string) PhraserOption {
	return func(p *Phraser) {
		p.model = model
	}
}

func WithPhrasingLogger(logger *logging.Logger) PhraserOption {
	return func(p *Phraser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithPhrasingMetrics(m *metrics.ConversationMetrics) PhraserOption {
	return func(p *Phraser) {
		p.metrics = m
	}
}

// NewPhraser builds a Phraser. A nil client always yields canned text.
func NewPhraser(client LLMClient, opts ...PhraserOption) *Phraser {
	p := &Phraser{
		client:  client,
		timeout: defaultPhrasingTimeout,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Phrase returns the reply text for prompt given the patient's message.
func (p *Phraser) Phrase(ctx context.Context, prompt Prompt, userText string) string {
	if p == nil || p.client == nil {
		return prompt.Canned
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	system := []string{receptionistPrompt}
	if prompt.Instruction != "" {
		system = append(system, "Task: "+prompt.Instruction)
	}
	var user strings.Builder
	user.WriteString("Patient wrote: ")
	user.WriteString(userText)
	user.WriteString("\n\nDraft reply:\n")
	user.WriteString(prompt.Canned)

	resp, err := p.client.Complete(ctx, LLMRequest{
		Model:       p.model,
		System:      system,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: user.String()}},
		MaxTokens:   phrasingMaxTokens,
		Temperature: phrasingTemperature,
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return p.fallback(prompt, "timeout", err)
	case err != nil:
		return p.fallback(prompt, "error", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return p.fallback(prompt, "empty", nil)
	}
	for _, fact := range prompt.Facts {
		if fact != "" && !strings.Contains(text, fact) {
			return p.fallback(prompt, "missing_fact", nil)
		}
	}
	return text
}

func (p *Phraser) fallback(prompt Prompt, reason string, err error) string {
	p.metrics.ObservePhrasingFallback(reason)
	if err != nil {
		p.logger.Warn("phrasing failed, using canned reply", "reason", reason, "error", err)
	} else {
		p.logger.Debug("phrasing rejected, using canned reply", "reason", reason)
	}
	return prompt.Canned
}
