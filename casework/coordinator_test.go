package casework_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alwitt/caseward/access"
	"github.com/alwitt/caseward/casework"
	"github.com/alwitt/caseward/db"
	"github.com/alwitt/caseward/encryption"
	"github.com/alwitt/caseward/models"
	"github.com/alwitt/caseward/redact"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

// utCoordinatorStack the coordinator together with the handles the tests
// need to arrange fixtures and inspect results
type utCoordinatorStack struct {
	coordinator casework.CaseCoordinator
	persistence db.Client
	cipher      encryption.FieldCipher
}

func utDefineCoordinatorStack(t *testing.T, ctx context.Context) utCoordinatorStack {
	assert := assert.New(t)

	// Create a unique temporary DB file for this test
	testDB := fmt.Sprintf("/tmp/caseward_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	persistence, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)
	assert.Nil(persistence.RunSQLInTransaction(ctx, db.DefineTables))

	cipher, err := encryption.NewFieldCipher(ctx, encryption.FieldCipherParams{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
	})
	assert.Nil(err)

	verifier, coverage := access.NewDBOrgDirectory(persistence)
	decider := access.NewDecider(verifier, coverage)
	sink := redact.NewDBAuditSink(persistence)
	engine := redact.NewEngine(decider, cipher, sink)

	return utCoordinatorStack{
		coordinator: casework.NewCaseCoordinator(persistence, cipher, decider, engine),
		persistence: persistence,
		cipher:      cipher,
	}
}

// utDefineVerifiedOrg create an organization, verify it, and declare coverage
func utDefineVerifiedOrg(
	t *testing.T, ctx context.Context, stack utCoordinatorStack, category, country string,
) models.Organization {
	assert := assert.New(t)

	var org models.Organization
	err := stack.persistence.UseDatabaseInTransaction(
		ctx, func(ctx context.Context, dbClient db.Database) error {
			var err error
			if org, err = dbClient.DefineNewOrganization(ctx, uuid.NewString()); err != nil {
				return err
			}
			if org, err = dbClient.SetOrganizationTrustStatus(
				ctx, org.ID, models.OrgTrustStatusVerified,
			); err != nil {
				return err
			}
			_, err = dbClient.DefineOrgServiceArea(ctx, org.ID, category, country)
			return err
		},
	)
	assert.Nil(err)
	return org
}

func utTestSubmission() casework.NeedSubmission {
	return casework.NeedSubmission{
		CreatedByID: uuid.NewString(),
		Category:    "shelter",
		Country:     "SN",
		Region:      "Dakar, Plateau",
		City:        "Dakar",
		Urgency:     models.NeedUrgencyHigh,
	}
}

func utListClaimEvents(
	t *testing.T,
	ctx context.Context,
	stack utCoordinatorStack,
	needID string,
	eventType models.AccessEventTypeENUMType,
) []models.AccessEventAudit {
	assert := assert.New(t)

	var entries []models.AccessEventAudit
	err := stack.persistence.UseDatabase(
		ctx, func(ctx context.Context, dbClient db.Database) error {
			var err error
			entries, err = dbClient.ListAccessEvents(ctx, db.AccessEventQueryFilter{
				TargetNeedID: &needID,
				EventTypes:   []models.AccessEventTypeENUMType{eventType},
			})
			return err
		},
	)
	assert.Nil(err)
	return entries
}

func TestCaseCoordinatorIntakeAndDisclosure(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	stack := utDefineCoordinatorStack(t, utCtx)

	// Case 0: submit a need carrying personal fields
	fullName := "Amara K."
	phone := "+221-77-000-0000"
	submission := utTestSubmission()
	submission.PersonalFields = &casework.PersonalFieldValues{
		FullName: &fullName, Phone: &phone,
	}
	need, err := stack.coordinator.SubmitNeed(utCtx, submission)
	assert.Nil(err)
	assert.Equal(models.NeedStatusNew, need.Status)

	// The stored personal fields are ciphertext, never the supplied values
	err = stack.persistence.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		personal, err := dbClient.GetNeedPersonalData(ctx, need.ID)
		if err != nil {
			return err
		}
		assert.NotNil(personal)
		assert.NotNil(personal.EncFullName)
		assert.NotEqual(fullName, *personal.EncFullName)
		assert.NotNil(personal.EncPhone)
		assert.NotEqual(phone, *personal.EncPhone)
		return nil
	})
	assert.Nil(err)

	// Case 1: the submitter sees the full view back, decrypted
	submitter := models.Requestor{
		ID: submission.CreatedByID, Role: models.RequestorRoleFieldAgent,
	}
	view, err := stack.coordinator.GetNeedForRequestor(utCtx, need.ID, submitter)
	assert.Nil(err)
	asFull, ok := view.(models.FullNeedView)
	assert.True(ok)
	assert.NotNil(asFull.FullName)
	assert.Equal(fullName, *asFull.FullName)

	// Case 2: an unrelated requestor sees the minimal view
	stranger := models.Requestor{ID: uuid.NewString(), Role: models.RequestorRoleBeneficiary}
	view, err = stack.coordinator.GetNeedForRequestor(utCtx, need.ID, stranger)
	assert.Nil(err)
	asMinimal, ok := view.(models.MinimalNeedView)
	assert.True(ok)
	assert.Equal("Dakar", asMinimal.Region)

	// Case 3: unknown needs surface as not found
	_, err = stack.coordinator.GetNeedForRequestor(utCtx, uuid.NewString(), submitter)
	assert.ErrorIs(err, casework.ErrNeedNotFound)

	// Case 4: list output is always minimal
	views, err := stack.coordinator.ListNeedsForRequestor(utCtx, db.NeedQueryFilter{})
	assert.Nil(err)
	assert.Len(views, 1)
	assert.Equal(need.ID, views[0].NeedID)

	// Case 5: submissions with empty personal values record no personal entry
	emptyValue := ""
	submission = utTestSubmission()
	submission.PersonalFields = &casework.PersonalFieldValues{FullName: &emptyValue}
	other, err := stack.coordinator.SubmitNeed(utCtx, submission)
	assert.Nil(err)
	err = stack.persistence.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		personal, err := dbClient.GetNeedPersonalData(ctx, other.ID)
		if err != nil {
			return err
		}
		assert.Nil(personal)
		return nil
	})
	assert.Nil(err)
}

func TestCaseCoordinatorClaimFlow(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	stack := utDefineCoordinatorStack(t, utCtx)

	org1 := utDefineVerifiedOrg(t, utCtx, stack, "shelter", "SN")
	org2 := utDefineVerifiedOrg(t, utCtx, stack, "shelter", "SN")

	need, err := stack.coordinator.SubmitNeed(utCtx, utTestSubmission())
	assert.Nil(err)

	staff1 := models.Requestor{
		ID: uuid.NewString(), Role: models.RequestorRoleOrgStaff, OrgID: &org1.ID,
	}
	staff2 := models.Requestor{
		ID: uuid.NewString(), Role: models.RequestorRoleOrgStaff, OrgID: &org2.ID,
	}

	// Case 0: requestors without claiming rights are denied and audited
	stranger := models.Requestor{ID: uuid.NewString(), Role: models.RequestorRoleBeneficiary}
	outcome, _, err := stack.coordinator.ClaimNeed(utCtx, need.ID, stranger)
	assert.Nil(err)
	assert.Equal(casework.ClaimOutcomeDenied, outcome)
	assert.Len(
		utListClaimEvents(t, utCtx, stack, need.ID, models.AccessEventTypeClaimDenied), 1,
	)

	// Case 1: eligible staff claims successfully and the claim is audited
	outcome, claimed, err := stack.coordinator.ClaimNeed(utCtx, need.ID, staff1)
	assert.Nil(err)
	assert.Equal(casework.ClaimOutcomeClaimed, outcome)
	assert.NotNil(claimed.AssignedOrgID)
	assert.Equal(org1.ID, *claimed.AssignedOrgID)
	assert.Equal(models.NeedStatusAssigned, claimed.Status)
	assert.Len(
		utListClaimEvents(t, utCtx, stack, need.ID, models.AccessEventTypeClaimSucceeded), 1,
	)

	// Case 2: a later claim by another organization is denied, and the
	// assignment is unchanged
	outcome, after, err := stack.coordinator.ClaimNeed(utCtx, need.ID, staff2)
	assert.Nil(err)
	assert.Equal(casework.ClaimOutcomeDenied, outcome)
	assert.NotNil(after.AssignedOrgID)
	assert.Equal(org1.ID, *after.AssignedOrgID)

	// Case 3: claims on unknown needs report NOT_FOUND
	outcome, _, err = stack.coordinator.ClaimNeed(utCtx, uuid.NewString(), staff1)
	assert.Nil(err)
	assert.Equal(casework.ClaimOutcomeNotFound, outcome)

	// Case 4: a rejected need stays closed, eligible staff can not claim it
	admin := models.Requestor{ID: uuid.NewString(), Role: models.RequestorRoleAdmin}
	rejected, err := stack.coordinator.SubmitNeed(utCtx, utTestSubmission())
	assert.Nil(err)
	_, err = stack.coordinator.UpdateNeedStatus(
		utCtx, rejected.ID, models.NeedStatusRejected, admin,
	)
	assert.Nil(err)

	outcome, _, err = stack.coordinator.ClaimNeed(utCtx, rejected.ID, staff2)
	assert.Nil(err)
	assert.Equal(casework.ClaimOutcomeDenied, outcome)
	err = stack.persistence.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entry, err := dbClient.GetNeed(ctx, rejected.ID)
		if err != nil {
			return err
		}
		assert.Equal(models.NeedStatusRejected, entry.Status)
		assert.Nil(entry.AssignedOrgID)
		return nil
	})
	assert.Nil(err)
}

func TestCaseCoordinatorConcurrentClaims(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	stack := utDefineCoordinatorStack(t, utCtx)

	org1 := utDefineVerifiedOrg(t, utCtx, stack, "shelter", "SN")
	org2 := utDefineVerifiedOrg(t, utCtx, stack, "shelter", "SN")

	need, err := stack.coordinator.SubmitNeed(utCtx, utTestSubmission())
	assert.Nil(err)

	requestors := []models.Requestor{
		{ID: uuid.NewString(), Role: models.RequestorRoleOrgStaff, OrgID: &org1.ID},
		{ID: uuid.NewString(), Role: models.RequestorRoleOrgStaff, OrgID: &org2.ID},
	}

	// Both organizations race for the same need
	outcomes := make([]casework.ClaimOutcomeENUMType, len(requestors))
	errs := make([]error, len(requestors))
	wg := sync.WaitGroup{}
	for idx, requestor := range requestors {
		wg.Add(1)
		go func(idx int, requestor models.Requestor) {
			defer wg.Done()
			outcomes[idx], _, errs[idx] = stack.coordinator.ClaimNeed(utCtx, need.ID, requestor)
		}(idx, requestor)
	}
	wg.Wait()

	assert.Nil(errs[0])
	assert.Nil(errs[1])

	// Exactly one winner; the loser observed either the conditional write
	// conflict or the refreshed assignment
	claims := map[casework.ClaimOutcomeENUMType]int{}
	for _, outcome := range outcomes {
		claims[outcome]++
	}
	assert.Equal(1, claims[casework.ClaimOutcomeClaimed])
	assert.Equal(1, claims[casework.ClaimOutcomeConflict]+claims[casework.ClaimOutcomeDenied])

	// The stored assignment matches the winner
	err = stack.persistence.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entry, err := dbClient.GetNeed(ctx, need.ID)
		if err != nil {
			return err
		}
		assert.NotNil(entry.AssignedOrgID)
		winner := 0
		if outcomes[1] == casework.ClaimOutcomeClaimed {
			winner = 1
		}
		assert.Equal(*requestors[winner].OrgID, *entry.AssignedOrgID)
		return nil
	})
	assert.Nil(err)

	// Exactly one CLAIM_SUCCEEDED event on record
	assert.Len(
		utListClaimEvents(t, utCtx, stack, need.ID, models.AccessEventTypeClaimSucceeded), 1,
	)
}

func TestCaseCoordinatorStatusUpdates(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	stack := utDefineCoordinatorStack(t, utCtx)

	org := utDefineVerifiedOrg(t, utCtx, stack, "shelter", "SN")

	need, err := stack.coordinator.SubmitNeed(utCtx, utTestSubmission())
	assert.Nil(err)

	staff := models.Requestor{
		ID: uuid.NewString(), Role: models.RequestorRoleOrgStaff, OrgID: &org.ID,
	}

	// Case 0: nobody updates an unassigned need except an admin
	_, err = stack.coordinator.UpdateNeedStatus(
		utCtx, need.ID, models.NeedStatusInProgress, staff,
	)
	assert.ErrorIs(err, casework.ErrActionDenied)

	outcome, _, err := stack.coordinator.ClaimNeed(utCtx, need.ID, staff)
	assert.Nil(err)
	assert.Equal(casework.ClaimOutcomeClaimed, outcome)

	// Case 1: staff of the assigned organization walks the lifecycle
	updated, err := stack.coordinator.UpdateNeedStatus(
		utCtx, need.ID, models.NeedStatusInProgress, staff,
	)
	assert.Nil(err)
	assert.Equal(models.NeedStatusInProgress, updated.Status)

	updated, err = stack.coordinator.UpdateNeedStatus(
		utCtx, need.ID, models.NeedStatusResolved, staff,
	)
	assert.Nil(err)
	assert.Equal(models.NeedStatusResolved, updated.Status)
	assert.NotNil(updated.ResolvedAt)

	// Case 2: the submitter can not mutate status
	submitter := models.Requestor{
		ID: need.CreatedByID, Role: models.RequestorRoleFieldAgent,
	}
	_, err = stack.coordinator.UpdateNeedStatus(
		utCtx, need.ID, models.NeedStatusInProgress, submitter,
	)
	assert.ErrorIs(err, casework.ErrActionDenied)

	// Case 3: unknown needs surface as not found
	_, err = stack.coordinator.UpdateNeedStatus(
		utCtx, uuid.NewString(), models.NeedStatusInProgress, staff,
	)
	assert.ErrorIs(err, casework.ErrNeedNotFound)
}
