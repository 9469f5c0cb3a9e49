package redact_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alwitt/caseward/db"
	"github.com/alwitt/caseward/models"
	"github.com/alwitt/caseward/redact"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestDBAuditSink(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	// Create a unique temporary DB file for this test
	testDB := fmt.Sprintf("/tmp/caseward_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	persistence, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)
	assert.Nil(persistence.RunSQLInTransaction(utCtx, db.DefineTables))

	uut := redact.NewDBAuditSink(persistence)

	needID := uuid.NewString()

	// Case 0: submitted events are durably recorded
	assert.Nil(uut.Submit(utCtx, models.AccessEventAudit{
		EventType: models.AccessEventTypeRedacted,
		NeedID:    needID,
	}))

	err = persistence.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entries, err := dbClient.ListAccessEvents(ctx, db.AccessEventQueryFilter{
			TargetNeedID: &needID,
		})
		if err != nil {
			return err
		}
		assert.Len(entries, 1)
		assert.Equal(models.AccessEventTypeRedacted, entries[0].EventType)
		assert.NotEmpty(entries[0].ID)
		return nil
	})
	assert.Nil(err)

	// Case 1: invalid events are rejected, not silently dropped
	err = uut.Submit(utCtx, models.AccessEventAudit{
		EventType: "NOT_AN_EVENT",
		NeedID:    needID,
	})
	assert.Error(err)
}

func TestAsyncAuditSink(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	// Case 0: parameters are checked
	{
		_, err := redact.NewAsyncAuditSink(utCtx, redact.AsyncAuditSinkParams{})
		assert.Error(err)
	}

	// Case 1: every accepted event reaches the wrapped sink by Close
	{
		recorder := &utRecordingSink{}
		uut, err := redact.NewAsyncAuditSink(utCtx, redact.AsyncAuditSinkParams{
			Next: recorder, QueueDepth: 16,
		})
		assert.Nil(err)

		needID := uuid.NewString()
		for idx := 0; idx < 8; idx++ {
			assert.Nil(uut.Submit(utCtx, models.AccessEventAudit{
				EventType: models.AccessEventTypeRedacted,
				NeedID:    needID,
			}))
		}
		uut.Close()

		assert.Len(recorder.recorded(), 8)
	}

	// Case 2: wrapped sink failures reach the escalation callback
	{
		failures := make(chan models.AccessEventAudit, 4)
		uut, err := redact.NewAsyncAuditSink(utCtx, redact.AsyncAuditSinkParams{
			Next:       &utFailingSink{},
			QueueDepth: 4,
			OnFailure: func(event models.AccessEventAudit, _ error) {
				failures <- event
			},
		})
		assert.Nil(err)

		needID := uuid.NewString()
		assert.Nil(uut.Submit(utCtx, models.AccessEventAudit{
			EventType: models.AccessEventTypeFull,
			NeedID:    needID,
		}))
		uut.Close()

		escalated := <-failures
		assert.Equal(needID, escalated.NeedID)
	}
}
