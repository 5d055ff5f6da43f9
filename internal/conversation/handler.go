package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/scheduling"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// JobPublisher enqueues inbound messages. *Publisher satisfies it.
type JobPublisher interface {
	Enqueue(ctx context.Context, job MessageJob) (MessageJob, error)
}

// Handler wires HTTP requests to the conversation engine.
type Handler struct {
	turns     TurnHandler
	publisher JobPublisher
	logger    *logging.Logger
}

// NewHandler creates a conversation handler. publisher may be nil, in which
// case the jobs endpoint answers 503.
func NewHandler(turns TurnHandler, publisher JobPublisher, logger *logging.Logger) *Handler {
	if turns == nil {
		panic("conversation: turn handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{turns: turns, publisher: publisher, logger: logger}
}

// MessageRequest is the body of both conversation endpoints.
type MessageRequest struct {
	Contact string `json:"contact"`
	Message string `json:"message"`
}

// MessageResponse is returned by the synchronous endpoint.
type MessageResponse struct {
	Reply       string                  `json:"reply"`
	State       State                   `json:"state"`
	Appointment *scheduling.Appointment `json:"appointment,omitempty"`
}

// JobResponse acknowledges an enqueued message.
type JobResponse struct {
	JobID string `json:"job_id"`
}

// Message handles POST /conversations/{clinicianID}/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	clinicianID := chi.URLParam(r, "clinicianID")
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	turn, err := h.turns.Handle(r.Context(), req.Contact, clinicianID, req.Message)
	resp := MessageResponse{Reply: turn.Reply, State: turn.State, Appointment: turn.Appointment}
	if err != nil {
		h.logger.Error("failed to process message", "error", err, "clinician_id", clinicianID)
		h.writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Enqueue handles POST /conversations/{clinicianID}/jobs.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		http.Error(w, "Async processing is not configured", http.StatusServiceUnavailable)
		return
	}
	clinicianID := chi.URLParam(r, "clinicianID")
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	job, err := h.publisher.Enqueue(r.Context(), MessageJob{
		Contact:     req.Contact,
		ClinicianID: clinicianID,
		Message:     req.Message,
	})
	if err != nil {
		h.logger.Error("failed to enqueue message", "error", err, "clinician_id", clinicianID)
		http.Error(w, "Failed to enqueue message", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusAccepted, JobResponse{JobID: job.ID})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (MessageRequest, bool) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return MessageRequest{}, false
	}
	if strings.TrimSpace(req.Contact) == "" || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "contact and message are required", http.StatusBadRequest)
		return MessageRequest{}, false
	}
	return req, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
