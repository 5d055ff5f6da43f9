package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLTranscriptArchiveAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 10, 14, 5, 30, 0, 0, time.UTC)
	key := SessionKey(testClinicianID, testContact)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO conversation_messages").
		WithArgs(sqlmock.AnyArg(), key, testClinicianID, testContact, "user", "kal", "awaiting_time", at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO conversation_messages").
		WithArgs(sqlmock.AnyArg(), key, testClinicianID, testContact, "assistant", "What time?", "awaiting_time", at.Add(time.Microsecond)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = NewSQLTranscriptArchive(db).Append(context.Background(), TranscriptEntry{
		SessionKey:  key,
		ClinicianID: testClinicianID,
		Contact:     testContact,
		UserText:    "kal",
		Reply:       "What time?",
		State:       StateAwaitingTime,
		At:          at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTranscriptArchiveRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	archive := NewSQLTranscriptArchive(db)
	archive.now = func() time.Time { return time.Date(2026, 10, 14, 5, 30, 0, 0, time.UTC) }

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO conversation_messages").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO conversation_messages").
		WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	err = archive.Append(context.Background(), TranscriptEntry{
		SessionKey: "session:k", ClinicianID: testClinicianID, Contact: testContact, UserText: "hi", Reply: "hello",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assistant")
	assert.NoError(t, mock.ExpectationsWereMet())
}
