package casework

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alwitt/caseward/access"
	"github.com/alwitt/caseward/db"
	"github.com/alwitt/caseward/models"
	"github.com/alwitt/caseward/redact"
	"github.com/apex/log"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
)

/*
ClaimNeed attempt to claim an unassigned need for the requestor's organization

	@param ctx context.Context - execution context
	@param needID string - need ID
	@param requestor models.Requestor - the acting identity
	@returns claim outcome, and the need entry when it exists
*/
func (c *caseCoordinator) ClaimNeed(
	ctx context.Context, needID string, requestor models.Requestor,
) (ClaimOutcomeENUMType, models.Need, error) {
	var needEntry models.Need
	if dbErr := c.persistence.UseDatabase(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			needEntry, err = dbClient.GetNeed(dbCtx, needID)
			return err
		},
	); dbErr != nil {
		// Absence and storage failure are reported identically to the caller,
		// but the underlying cause still belongs in the log
		log.WithError(dbErr).WithFields(c.LogTags).
			WithField("need_id", needID).
			Debug("Need fetch for claim failed")
		return ClaimOutcomeNotFound, models.Need{}, nil
	}

	if c.decider.Decide(ctx, needEntry, requestor, access.ActionClaim) != access.VerdictAllowed {
		if err := c.recordClaimEvent(
			ctx, nil, needID, requestor, models.AccessEventTypeClaimDenied,
		); err != nil {
			return "", models.Need{}, err
		}
		return ClaimOutcomeDenied, needEntry, nil
	}

	// The decision above is advisory only; the conditional write below is
	// what makes concurrent claims safe. The success audit event commits in
	// the same transaction, so an assignment can never be recorded without
	// its audit trail.
	var outcome db.AssignOutcomeENUMType
	var updated models.Need
	if dbErr := c.persistence.UseDatabaseInTransaction(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			outcome, updated, err = dbClient.AssignNeedToOrg(
				dbCtx, needID, *requestor.OrgID, time.Now().UTC(),
			)
			if err != nil {
				return err
			}
			if outcome == db.AssignOutcomeAssigned {
				return c.recordClaimEvent(
					dbCtx, dbClient, needID, requestor, models.AccessEventTypeClaimSucceeded,
				)
			}
			return nil
		},
	); dbErr != nil {
		return "", models.Need{}, fmt.Errorf("failed to claim need %s [%w]", needID, dbErr)
	}

	switch outcome {
	case db.AssignOutcomeAssigned:
		return ClaimOutcomeClaimed, updated, nil

	case db.AssignOutcomeAlreadyAssigned:
		log.WithFields(c.LogTags).
			WithField("need_id", needID).
			WithField("org_id", *requestor.OrgID).
			Info("Claim lost to concurrent assignment")
		return ClaimOutcomeConflict, updated, nil

	case db.AssignOutcomeNotFound:
		return ClaimOutcomeNotFound, models.Need{}, nil
	}

	return "", models.Need{}, fmt.Errorf("unexpected assignment outcome '%s'", outcome)
}

// recordClaimEvent record one claim audit event. With an active DB session the
// event joins that session's transaction; otherwise it is written in its own.
func (c *caseCoordinator) recordClaimEvent(
	ctx context.Context,
	activeDBClient db.Database,
	needID string,
	requestor models.Requestor,
	eventType models.AccessEventTypeENUMType,
) error {
	related := models.AccessEventClaimRelated{}
	if requestor.OrgID != nil {
		related.OrgID = *requestor.OrgID
	}
	metadata, _ := json.Marshal(&related)

	event := models.AccessEventAudit{
		ID:         ulid.Make().String(),
		EventType:  eventType,
		NeedID:     needID,
		ActorID:    &requestor.ID,
		ActorRole:  (*string)(&requestor.Role),
		SourceAddr: requestor.RemoteAddr,
		Metadata:   datatypes.JSON(metadata),
	}

	if err := db.ActiveSessionWrapper(
		ctx, activeDBClient, c.persistence,
		func(dbCtx context.Context, dbClient db.Database) error {
			_, err := dbClient.RecordAccessEvent(dbCtx, event)
			return err
		},
	); err != nil {
		log.WithError(err).WithFields(c.LogTags).
			WithField("need_id", needID).
			WithField("event_type", eventType).
			Error("Claim audit submission failed")
		return fmt.Errorf("claim on need %s not recorded [%w]", needID, redact.ErrAuditEmitFailure)
	}

	return nil
}
