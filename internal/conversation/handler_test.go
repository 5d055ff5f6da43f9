package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

type stubPublisher struct {
	job MessageJob
	err error
}

func (p *stubPublisher) Enqueue(_ context.Context, job MessageJob) (MessageJob, error) {
	if p.err != nil {
		return MessageJob{}, p.err
	}
	p.job = job
	job.ID = "job-42"
	return job, nil
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/conversations/{clinicianID}/messages", h.Message)
	r.Post("/conversations/{clinicianID}/jobs", h.Enqueue)
	return r
}

func post(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerMessageRunsTurn(t *testing.T) {
	f := newEngineFixture(t)
	router := newTestRouter(NewHandler(f.engine, nil, logging.Discard()))

	rec := post(t, router, "/conversations/dr-sana/messages", `{"contact":"+923001234567","message":"Ayesha"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StateAwaitingDate, resp.State)
	assert.Contains(t, resp.Reply, "Ayesha")
	assert.Nil(t, resp.Appointment)
}

func TestHandlerMessageFailureReturnsApology(t *testing.T) {
	turns := &stubTurns{turn: Turn{Reply: apologyReply, State: StateAwaitingDate}, err: errors.New("redis down")}
	router := newTestRouter(NewHandler(turns, nil, logging.Discard()))

	rec := post(t, router, "/conversations/dr-sana/messages", `{"contact":"+923001234567","message":"kal"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apologyReply, resp.Reply)
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	router := newTestRouter(NewHandler(&stubTurns{}, &stubPublisher{}, logging.Discard()))

	for _, body := range []string{`{`, `{"contact":"","message":"hi"}`, `{"contact":"+92300","message":"  "}`} {
		assert.Equal(t, http.StatusBadRequest, post(t, router, "/conversations/dr-sana/messages", body).Code, body)
		assert.Equal(t, http.StatusBadRequest, post(t, router, "/conversations/dr-sana/jobs", body).Code, body)
	}
}

func TestHandlerEnqueue(t *testing.T) {
	publisher := &stubPublisher{}
	router := newTestRouter(NewHandler(&stubTurns{}, publisher, logging.Discard()))

	rec := post(t, router, "/conversations/dr-sana/jobs", `{"contact":"+923001234567","message":"kal"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-42", resp.JobID)
	assert.Equal(t, MessageJob{Contact: "+923001234567", ClinicianID: "dr-sana", Message: "kal"}, publisher.job)
}

func TestHandlerEnqueueFailures(t *testing.T) {
	body := `{"contact":"+923001234567","message":"kal"}`

	rec := post(t, newTestRouter(NewHandler(&stubTurns{}, nil, logging.Discard())), "/conversations/dr-sana/jobs", body)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = post(t, newTestRouter(NewHandler(&stubTurns{}, &stubPublisher{err: errors.New("sqs down")}, logging.Discard())), "/conversations/dr-sana/jobs", body)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
