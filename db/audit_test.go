package db_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alwitt/caseward/db"
	"github.com/alwitt/caseward/models"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

// TestDBAccessEventRecording verifies `Database.RecordAccessEvent` and
// `Database.ListAccessEvents`.
func TestDBAccessEventRecording(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	// Create a unique temporary DB file for this test
	testDB := fmt.Sprintf("/tmp/caseward_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	uut, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)
	assert.Nil(uut.RunSQLInTransaction(utCtx, db.DefineTables))

	needID1 := uuid.NewString()
	needID2 := uuid.NewString()
	actorID := uuid.NewString()

	disclosureMeta, err := json.Marshal(&models.AccessEventDisclosureRelated{
		Full: true, FieldCount: 2,
	})
	assert.Nil(err)
	claimMeta, err := json.Marshal(&models.AccessEventClaimRelated{
		OrgID: uuid.NewString(),
	})
	assert.Nil(err)

	// Case 0: record events against two different needs
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		if _, err := dbClient.RecordAccessEvent(ctx, models.AccessEventAudit{
			EventType: models.AccessEventTypeFull,
			NeedID:    needID1,
			ActorID:   &actorID,
			Metadata:  disclosureMeta,
		}); err != nil {
			return err
		}
		if _, err := dbClient.RecordAccessEvent(ctx, models.AccessEventAudit{
			EventType: models.AccessEventTypeClaimSucceeded,
			NeedID:    needID1,
			ActorID:   &actorID,
			Metadata:  claimMeta,
		}); err != nil {
			return err
		}
		_, err := dbClient.RecordAccessEvent(ctx, models.AccessEventAudit{
			EventType: models.AccessEventTypeRedacted,
			NeedID:    needID2,
			Metadata:  disclosureMeta,
		})
		return err
	})
	assert.Nil(err)

	// Case 1: invalid event type is rejected
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		_, err := dbClient.RecordAccessEvent(ctx, models.AccessEventAudit{
			EventType: "SOMETHING_ELSE",
			NeedID:    needID1,
		})
		assert.Error(err)
		return nil
	})
	assert.Nil(err)

	// Case 2: filter by need
	err = uut.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entries, err := dbClient.ListAccessEvents(ctx, db.AccessEventQueryFilter{
			TargetNeedID: &needID1,
		})
		if err != nil {
			return err
		}
		assert.Len(entries, 2)
		return nil
	})
	assert.Nil(err)

	// Case 3: filter by event type
	err = uut.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entries, err := dbClient.ListAccessEvents(ctx, db.AccessEventQueryFilter{
			EventTypes: []models.AccessEventTypeENUMType{
				models.AccessEventTypeFull, models.AccessEventTypeRedacted,
			},
		})
		if err != nil {
			return err
		}
		assert.Len(entries, 2)
		return nil
	})
	assert.Nil(err)

	// Case 4: filter by actor
	err = uut.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entries, err := dbClient.ListAccessEvents(ctx, db.AccessEventQueryFilter{
			TargetActorID: &actorID,
		})
		if err != nil {
			return err
		}
		assert.Len(entries, 2)
		return nil
	})
	assert.Nil(err)

	// Case 5: time window filters
	err = uut.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		future := time.Now().UTC().Add(time.Hour)
		past := time.Now().UTC().Add(-time.Hour)

		entries, err := dbClient.ListAccessEvents(ctx, db.AccessEventQueryFilter{
			EventsBefore: &future,
		})
		if err != nil {
			return err
		}
		assert.Len(entries, 3)

		entries, err = dbClient.ListAccessEvents(ctx, db.AccessEventQueryFilter{
			EventsBefore: &past,
		})
		if err != nil {
			return err
		}
		assert.Empty(entries)

		entries, err = dbClient.ListAccessEvents(ctx, db.AccessEventQueryFilter{
			EventsAfter: &past, EventsBefore: &future,
		})
		if err != nil {
			return err
		}
		assert.Len(entries, 3)

		entries, err = dbClient.ListAccessEvents(ctx, db.AccessEventQueryFilter{
			EventsAfter: &future,
		})
		if err != nil {
			return err
		}
		assert.Empty(entries)
		return nil
	})
	assert.Nil(err)

	// Case 6: metadata round trips through the stored entry
	checker := validator.New()
	assert.Nil(models.RegisterWithValidator(checker))
	err = uut.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entries, err := dbClient.ListAccessEvents(ctx, db.AccessEventQueryFilter{
			EventTypes: []models.AccessEventTypeENUMType{models.AccessEventTypeClaimSucceeded},
		})
		if err != nil {
			return err
		}
		assert.Len(entries, 1)

		parsed, err := entries[0].ParseMetadata(checker)
		if err != nil {
			return err
		}
		asClaim, ok := parsed.(models.AccessEventClaimRelated)
		assert.True(ok)
		assert.NotEmpty(asClaim.OrgID)
		return nil
	})
	assert.Nil(err)
}
