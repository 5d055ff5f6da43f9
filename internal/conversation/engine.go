package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/scheduling"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const defaultHistoryLimit = 20

// Scheduler is the slice of the scheduling core the dialog needs.
// *scheduling.Service satisfies it.
type Scheduler interface {
	Now() time.Time
	Clinician(ctx context.Context, clinicianID string) (*scheduling.Clinician, error)
	Calendar(ctx context.Context, clinicianID string) (scheduling.Calendar, error)
	RemainingSlots(ctx context.Context, clinicianID string, day time.Time) ([]scheduling.Slot, error)
	Book(ctx context.Context, req scheduling.BookingRequest) (*scheduling.Appointment, error)
	Cancel(ctx context.Context, clinicianID, appointmentID string) (*scheduling.Appointment, error)
	NextForPatient(ctx context.Context, clinicianID, phone string) (*scheduling.Appointment, error)
}

// Turn is the outcome of one inbound message.
type Turn struct {
	Reply       string
	State       State
	Appointment *scheduling.Appointment
}

// Engine runs the booking dialog. It holds no per-conversation state; every
// turn loads the session, advances it and writes it back.
type Engine struct {
	sessions     SessionStore
	scheduler    Scheduler
	phraser      *Phraser
	archive      TranscriptArchive
	logger       *logging.Logger
	metrics      *metrics.ConversationMetrics
	tracer       trace.Tracer
	sessionTTL   time.Duration
	historyLimit int
}

type EngineOption func(*Engine)

func WithPhraser(p *Phraser) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.phraser = p
		}
	}
}

func WithTranscriptArchive(a TranscriptArchive) EngineOption {
	return func(e *Engine) {
		e.archive = a
	}
}

func WithEngineLogger(logger *logging.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithEngineMetrics(m *metrics.ConversationMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithSessionTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		if ttl > 0 {
			e.sessionTTL = ttl
		}
	}
}

func WithHistoryLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.historyLimit = n
		}
	}
}

func NewEngine(sessions SessionStore, scheduler Scheduler, opts ...EngineOption) *Engine {
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if scheduler == nil {
		panic("conversation: scheduler cannot be nil")
	}
	e := &Engine{
		sessions:     sessions,
		scheduler:    scheduler,
		phraser:      NewPhraser(nil),
		logger:       logging.Default(),
		tracer:       otel.Tracer("clinicbook.internal.conversation"),
		sessionTTL:   defaultSessionTTL,
		historyLimit: defaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessMessage handles one inbound message and returns the reply text. On an
// infrastructure failure the reply is a generic apology, the session is left
// as it was before the message, and the error is returned.
func (e *Engine) ProcessMessage(ctx context.Context, contact, clinicianID, text string) (string, error) {
	turn, err := e.Handle(ctx, contact, clinicianID, text)
	return turn.Reply, err
}

// Handle is ProcessMessage with the resulting dialog state.
func (e *Engine) Handle(ctx context.Context, contact, clinicianID, text string) (Turn, error) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "conversation.turn")
	defer span.End()
	span.SetAttributes(attribute.String("clinician_id", clinicianID))

	contact = strings.TrimSpace(contact)
	text = strings.TrimSpace(text)
	if contact == "" || clinicianID == "" {
		return Turn{Reply: apologyReply}, errors.New("conversation: contact and clinician are required")
	}
	key := SessionKey(clinicianID, contact)
	log := e.logger.With("clinician_id", clinicianID, "contact", contact)

	session, err := e.sessions.Get(ctx, key)
	if err != nil {
		return e.failed(span, log, StateAwaitingName, started, err)
	}
	if session == nil {
		session = &Session{Draft: NameStep{}}
	}
	if session.Draft == nil {
		session.Draft = NameStep{}
	}
	before := session.Draft.State()

	clinician, err := e.scheduler.Clinician(ctx, clinicianID)
	if err != nil {
		if scheduling.IsNotFound(err) {
			return e.reset(ctx, log, key, started)
		}
		return e.failed(span, log, before, started, err)
	}

	t := &turn{
		engine:    e,
		clinician: clinician,
		loc:       clinician.Location(),
		contact:   contact,
		text:      text,
		norm:      normalizeReply(text),
	}
	t.now = e.scheduler.Now().In(t.loc)

	res, err := t.advance(ctx, session.Draft)
	if err != nil {
		if scheduling.IsNotFound(err) && scheduling.ReasonOf(err) == scheduling.ReasonClinicianNotFound {
			return e.reset(ctx, log, key, started)
		}
		return e.failed(span, log, before, started, err)
	}

	reply := e.phraser.Phrase(ctx, res.prompt, text)
	session.Draft = res.draft
	session.UpdatedAt = t.now.UTC()
	session.appendHistory(e.historyLimit,
		ChatMessage{Role: ChatRoleUser, Content: text},
		ChatMessage{Role: ChatRoleAssistant, Content: reply},
	)

	outcome := "ok"
	if err := e.sessions.Put(ctx, key, session, e.sessionTTL); err != nil {
		// The turn's effects (a booking, a cancellation) already happened; the
		// reply stays truthful and the next turn starts from the old draft.
		span.RecordError(err)
		log.Error("failed to save session", "error", err)
		outcome = "session_write_failed"
	}
	e.archiveTurn(ctx, log, key, clinicianID, contact, text, reply, res.state)

	e.metrics.ObserveTurn(string(res.state), outcome, time.Since(started).Seconds())
	log.Info("conversation turn", "from_state", before, "state", res.state)
	return Turn{Reply: reply, State: res.state, Appointment: res.appointment}, nil
}

func (e *Engine) failed(span trace.Span, log *logging.Logger, state State, started time.Time, err error) (Turn, error) {
	span.RecordError(err)
	log.Error("conversation turn failed", "state", state, "error", err)
	e.metrics.ObserveTurn(string(state), "error", time.Since(started).Seconds())
	return Turn{Reply: apologyReply, State: state}, fmt.Errorf("conversation: %w", err)
}

func (e *Engine) reset(ctx context.Context, log *logging.Logger, key string, started time.Time) (Turn, error) {
	if err := e.sessions.Delete(ctx, key); err != nil {
		log.Warn("failed to delete session", "error", err)
	}
	log.Info("clinician not found, session reset")
	e.metrics.ObserveTurn(string(StateAwaitingName), "not_found", time.Since(started).Seconds())
	return Turn{Reply: clinicianNotFoundReply, State: StateAwaitingName}, nil
}

func (e *Engine) archiveTurn(ctx context.Context, log *logging.Logger, key, clinicianID, contact, text, reply string, state State) {
	if e.archive == nil {
		return
	}
	err := e.archive.Append(ctx, TranscriptEntry{
		SessionKey:  key,
		ClinicianID: clinicianID,
		Contact:     contact,
		UserText:    text,
		Reply:       reply,
		State:       state,
	})
	if err != nil {
		log.Warn("failed to archive transcript", "error", err)
	}
}
