package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TranscriptEntry is one user message and the reply it produced.
type TranscriptEntry struct {
	SessionKey  string
	ClinicianID string
	Contact     string
	UserText    string
	Reply       string
	State       State
	At          time.Time
}

// TranscriptArchive keeps a durable copy of dialog turns. Failures never
// affect the dialog.
type TranscriptArchive interface {
	Append(ctx context.Context, entry TranscriptEntry) error
}

// SQLTranscriptArchive writes turns to conversation_messages.
type SQLTranscriptArchive struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLTranscriptArchive(db *sql.DB) *SQLTranscriptArchive {
	if db == nil {
		panic("conversation: sql db cannot be nil")
	}
	return &SQLTranscriptArchive{db: db, now: time.Now}
}

const insertTranscriptMessage = `
	INSERT INTO conversation_messages (id, session_key, clinician_id, contact, role, content, state, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// Append stores the user message and the reply in one transaction. The reply
// is stamped a microsecond later so ordering by created_at is stable.
func (a *SQLTranscriptArchive) Append(ctx context.Context, entry TranscriptEntry) error {
	at := entry.At
	if at.IsZero() {
		at = a.now()
	}
	at = at.UTC()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation: begin transcript: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows := []struct {
		role    ChatRole
		content string
		at      time.Time
	}{
		{ChatRoleUser, entry.UserText, at},
		{ChatRoleAssistant, entry.Reply, at.Add(time.Microsecond)},
	}
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, insertTranscriptMessage,
			uuid.NewString(), entry.SessionKey, entry.ClinicianID, entry.Contact,
			string(row.role), row.content, string(entry.State), row.at,
		); err != nil {
			return fmt.Errorf("conversation: archive %s message: %w", row.role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conversation: commit transcript: %w", err)
	}
	return nil
}
