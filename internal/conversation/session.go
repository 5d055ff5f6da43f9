package conversation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-booking/internal/scheduling"
)

// State is the dialog position reported after a turn.
type State string

const (
	StateAwaitingName               State = "awaiting_name"
	StateAwaitingDate               State = "awaiting_date"
	StateAwaitingTime               State = "awaiting_time"
	StateSuggestingAlternative      State = "suggesting_alternative"
	StateAwaitingConfirmation       State = "awaiting_confirmation"
	StateAwaitingCancelConfirmation State = "awaiting_cancel_confirmation"
	StateBooked                     State = "booked"
	StateCancelled                  State = "cancelled"
)

// Draft is the in-progress booking. Each step type carries exactly the fields
// that are known at that point of the dialog.
type Draft interface {
	State() State
	step() string
}

// NameStep waits for the patient's name.
type NameStep struct {
	Prompted bool `json:"prompted,omitempty"`
}

// DateStep waits for a date.
type DateStep struct {
	PatientName string `json:"patient_name"`
}

// TimeStep waits for a time on Date, a clinician-local calendar day stored as
// midnight UTC. A non-empty Offered list means alternatives were presented and
// Selected is the slot an affirmative reply accepts.
type TimeStep struct {
	PatientName string            `json:"patient_name"`
	Date        time.Time         `json:"date"`
	Offered     []scheduling.Slot `json:"offered,omitempty"`
	Selected    *scheduling.Slot  `json:"selected,omitempty"`
}

// ConfirmStep waits for YES/NO on a chosen start.
type ConfirmStep struct {
	PatientName string    `json:"patient_name"`
	Date        time.Time `json:"date"`
	Start       time.Time `json:"start"`
}

// CancelStep waits for YES/NO on cancelling an existing appointment.
type CancelStep struct {
	AppointmentID string    `json:"appointment_id"`
	Start         time.Time `json:"start"`
}

func (NameStep) State() State    { return StateAwaitingName }
func (DateStep) State() State    { return StateAwaitingDate }
func (ConfirmStep) State() State { return StateAwaitingConfirmation }
func (CancelStep) State() State  { return StateAwaitingCancelConfirmation }

func (t TimeStep) State() State {
	if len(t.Offered) > 0 {
		return StateSuggestingAlternative
	}
	return StateAwaitingTime
}

func (NameStep) step() string    { return "name" }
func (DateStep) step() string    { return "date" }
func (TimeStep) step() string    { return "time" }
func (ConfirmStep) step() string { return "confirm" }
func (CancelStep) step() string  { return "cancel" }

// Session is the per-contact dialog record held in the session store.
type Session struct {
	History   []ChatMessage
	Draft     Draft
	UpdatedAt time.Time
}

type sessionWire struct {
	History   []ChatMessage   `json:"history"`
	Step      string          `json:"step"`
	Draft     json.RawMessage `json:"draft"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s Session) MarshalJSON() ([]byte, error) {
	draft := s.Draft
	if draft == nil {
		draft = NameStep{}
	}
	raw, err := json.Marshal(draft)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sessionWire{
		History:   s.History,
		Step:      draft.step(),
		Draft:     raw,
		UpdatedAt: s.UpdatedAt,
	})
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var wire sessionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	draft, err := decodeDraft(wire.Step, wire.Draft)
	if err != nil {
		return err
	}
	s.History = wire.History
	s.Draft = draft
	s.UpdatedAt = wire.UpdatedAt
	return nil
}

func decodeDraft(step string, raw json.RawMessage) (Draft, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	var (
		draft Draft
		err   error
	)
	switch step {
	case "", "name":
		var d NameStep
		err = json.Unmarshal(raw, &d)
		draft = d
	case "date":
		var d DateStep
		err = json.Unmarshal(raw, &d)
		draft = d
	case "time":
		var d TimeStep
		err = json.Unmarshal(raw, &d)
		draft = d
	case "confirm":
		var d ConfirmStep
		err = json.Unmarshal(raw, &d)
		draft = d
	case "cancel":
		var d CancelStep
		err = json.Unmarshal(raw, &d)
		draft = d
	default:
		return nil, fmt.Errorf("conversation: unknown draft step %q", step)
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: decode %s draft: %w", step, err)
	}
	return draft, nil
}

// SessionKey scopes a session to one contact talking to one clinician.
func SessionKey(clinicianID, contact string) string {
	return fmt.Sprintf("session:%s:%s", clinicianID, contact)
}

func (s *Session) appendHistory(limit int, msgs ...ChatMessage) {
	s.History = append(s.History, msgs...)
	if limit > 0 && len(s.History) > limit {
		s.History = append([]ChatMessage(nil), s.History[len(s.History)-limit:]...)
	}
}
