// Package casework - case intake and coordination workflows
package casework

import (
	"context"
	"errors"
	"fmt"

	"github.com/alwitt/caseward/access"
	"github.com/alwitt/caseward/db"
	"github.com/alwitt/caseward/encryption"
	"github.com/alwitt/caseward/models"
	"github.com/alwitt/caseward/redact"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
)

// ErrNeedNotFound the requested need does not exist.
//
// The boundary layer must present this identically to an access denial so
// record existence can not be probed.
var ErrNeedNotFound = errors.New("need not found")

// ErrActionDenied the requestor may not perform the requested mutation
var ErrActionDenied = errors.New("action denied")

// ClaimOutcomeENUMType outcome of a claim attempt ENUM value type
type ClaimOutcomeENUMType string

const (
	// ClaimOutcomeClaimed the need is now assigned to the requestor's organization
	ClaimOutcomeClaimed ClaimOutcomeENUMType = "CLAIMED"
	// ClaimOutcomeDenied the claim was denied by the access decision
	ClaimOutcomeDenied ClaimOutcomeENUMType = "DENIED"
	// ClaimOutcomeConflict another organization claimed the need first
	ClaimOutcomeConflict ClaimOutcomeENUMType = "CONFLICT"
	// ClaimOutcomeNotFound the need does not exist
	ClaimOutcomeNotFound ClaimOutcomeENUMType = "NOT_FOUND"
)

// PersonalFieldValues plaintext personal field values supplied at intake.
//
// Each field is independently optional; nil and empty values are treated as
// absent and never reach the encryption boundary.
type PersonalFieldValues struct {
	FullName      *string
	Phone         *string
	Email         *string
	ExactLocation *string
	Notes         *string
}

// NeedSubmission parameters for submitting a new need
type NeedSubmission struct {
	// CreatedByID identity of the submitter
	CreatedByID string `validate:"required"`
	// Category assistance category
	Category string `validate:"required"`
	// Country coarse location country
	Country string `validate:"required"`
	// Region coarse location region
	Region string `validate:"required"`
	// City coarse location city
	City string
	// Urgency need urgency tier
	Urgency models.NeedUrgencyENUMType `validate:"required,need_urgency"`
	// HasMinors minors present in the affected household
	HasMinors bool
	// HasDisability a household member has a disability
	HasDisability bool
	// HasMedicalNeeds a household member has acute medical needs
	HasMedicalNeeds bool
	// HasElderly elderly household members present
	HasElderly bool
	// PersonalFields plaintext personal fields, if any
	PersonalFields *PersonalFieldValues `validate:"-"`
}

/*
CaseCoordinator coordinates need intake, disclosure, claiming, and lifecycle
updates between field submitters and aid organizations.
*/
type CaseCoordinator interface {
	/*
		SubmitNeed record a new need, encrypting any supplied personal fields

		The need entry and its encrypted personal fields entry are created in
		one transaction.

			@param ctx context.Context - execution context
			@param submission NeedSubmission - the new need
			@returns the need entry
	*/
	SubmitNeed(ctx context.Context, submission NeedSubmission) (models.Need, error)

	/*
		GetNeedForRequestor fetch one need and build the view the requestor
		may see

			@param ctx context.Context - execution context
			@param needID string - need ID
			@param requestor models.Requestor - the acting identity
			@returns the view appropriate for the requestor
	*/
	GetNeedForRequestor(
		ctx context.Context, needID string, requestor models.Requestor,
	) (models.NeedView, error)

	/*
		ListNeedsForRequestor list needs as redacted views

		List output is always minimal regardless of the requestor's privileges.

			@param ctx context.Context - execution context
			@param filters db.NeedQueryFilter - entry listing filter
			@returns redacted views
	*/
	ListNeedsForRequestor(
		ctx context.Context, filters db.NeedQueryFilter,
	) ([]models.MinimalNeedView, error)

	/*
		ClaimNeed attempt to claim an unassigned need for the requestor's
		organization

		The assignment itself is one conditional write; concurrent claims on
		the same need resolve to exactly one winner, the loser observing a
		CONFLICT outcome.

			@param ctx context.Context - execution context
			@param needID string - need ID
			@param requestor models.Requestor - the acting identity
			@returns claim outcome, and the need entry when it exists
	*/
	ClaimNeed(
		ctx context.Context, needID string, requestor models.Requestor,
	) (ClaimOutcomeENUMType, models.Need, error)

	/*
		UpdateNeedStatus transition a need to a new lifecycle status on behalf
		of a requestor

			@param ctx context.Context - execution context
			@param needID string - need ID
			@param newStatus models.NeedStatusENUMType - the new status
			@param requestor models.Requestor - the acting identity
			@returns the updated need entry
	*/
	UpdateNeedStatus(
		ctx context.Context,
		needID string,
		newStatus models.NeedStatusENUMType,
		requestor models.Requestor,
	) (models.Need, error)
}

// caseCoordinator implements CaseCoordinator
type caseCoordinator struct {
	goutils.Component

	persistence db.Client

	cipher encryption.FieldCipher

	decider access.Decider

	engine redact.Engine
}

/*
NewCaseCoordinator define new case coordinator

Disclosure audit events flow through the engine's sink; claim audit events
are written directly so a successful claim commits atomically with its audit
entry.

	@param persistence db.Client - persistence layer client
	@param cipher encryption.FieldCipher - personal field encryption boundary
	@param decider access.Decider - access decision function
	@param engine redact.Engine - redaction and disclosure engine
	@returns coordinator instance
*/
func NewCaseCoordinator(
	persistence db.Client,
	cipher encryption.FieldCipher,
	decider access.Decider,
	engine redact.Engine,
) CaseCoordinator {
	logTags := log.Fields{"module": "casework", "component": "case-coordinator"}

	return &caseCoordinator{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence: persistence,
		cipher:      cipher,
		decider:     decider,
		engine:      engine,
	}
}

/*
SubmitNeed record a new need, encrypting any supplied personal fields

	@param ctx context.Context - execution context
	@param submission NeedSubmission - the new need
	@returns the need entry
*/
func (c *caseCoordinator) SubmitNeed(
	ctx context.Context, submission NeedSubmission,
) (models.Need, error) {
	encryptedFields, err := c.encryptPersonalFields(ctx, submission.PersonalFields)
	if err != nil {
		return models.Need{}, fmt.Errorf("failed to protect personal fields [%w]", err)
	}

	var needEntry models.Need
	if dbErr := c.persistence.UseDatabaseInTransaction(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			needEntry, _, err = dbClient.DefineNewNeed(dbCtx, db.NewNeedParams{
				CreatedByID:     submission.CreatedByID,
				Category:        submission.Category,
				Country:         submission.Country,
				Region:          submission.Region,
				City:            submission.City,
				Urgency:         submission.Urgency,
				HasMinors:       submission.HasMinors,
				HasDisability:   submission.HasDisability,
				HasMedicalNeeds: submission.HasMedicalNeeds,
				HasElderly:      submission.HasElderly,
				PersonalFields:  encryptedFields,
			})
			return err
		},
	); dbErr != nil {
		return models.Need{}, fmt.Errorf("failed to record new need [%w]", dbErr)
	}

	return needEntry, nil
}

// encryptPersonalFields encrypt each supplied personal field. Nil and empty
// values stay absent.
func (c *caseCoordinator) encryptPersonalFields(
	ctx context.Context, values *PersonalFieldValues,
) (*db.EncryptedPersonalFields, error) {
	if values == nil {
		return nil, nil
	}

	result := &db.EncryptedPersonalFields{}
	fields := []struct {
		src *string
		dst **string
	}{
		{values.FullName, &result.FullName},
		{values.Phone, &result.Phone},
		{values.Email, &result.Email},
		{values.ExactLocation, &result.ExactLocation},
		{values.Notes, &result.Notes},
	}

	supplied := false
	for _, field := range fields {
		if field.src == nil || *field.src == "" {
			continue
		}
		cipherText, err := c.cipher.EncryptField(ctx, *field.src)
		if err != nil {
			return nil, err
		}
		*field.dst = &cipherText
		supplied = true
	}

	if !supplied {
		return nil, nil
	}
	return result, nil
}

/*
GetNeedForRequestor fetch one need and build the view the requestor may see

	@param ctx context.Context - execution context
	@param needID string - need ID
	@param requestor models.Requestor - the acting identity
	@returns the view appropriate for the requestor
*/
func (c *caseCoordinator) GetNeedForRequestor(
	ctx context.Context, needID string, requestor models.Requestor,
) (models.NeedView, error) {
	var needEntry models.Need
	var personalEntry *models.NeedPersonalData

	if dbErr := c.persistence.UseDatabase(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			needEntry, err = dbClient.GetNeed(dbCtx, needID)
			if err != nil {
				return err
			}
			personalEntry, err = dbClient.GetNeedPersonalData(dbCtx, needID)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("need %s unavailable [%w]", needID, ErrNeedNotFound)
	}

	return c.engine.FilterOne(ctx, needEntry, personalEntry, requestor)
}

/*
ListNeedsForRequestor list needs as redacted views

	@param ctx context.Context - execution context
	@param filters db.NeedQueryFilter - entry listing filter
	@returns redacted views
*/
func (c *caseCoordinator) ListNeedsForRequestor(
	ctx context.Context, filters db.NeedQueryFilter,
) ([]models.MinimalNeedView, error) {
	var needEntries []models.Need
	if dbErr := c.persistence.UseDatabase(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			needEntries, err = dbClient.ListNeeds(dbCtx, filters)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to list needs [%w]", dbErr)
	}

	return c.engine.FilterMany(ctx, needEntries), nil
}

/*
UpdateNeedStatus transition a need to a new lifecycle status on behalf of a
requestor

	@param ctx context.Context - execution context
	@param needID string - need ID
	@param newStatus models.NeedStatusENUMType - the new status
	@param requestor models.Requestor - the acting identity
	@returns the updated need entry
*/
func (c *caseCoordinator) UpdateNeedStatus(
	ctx context.Context,
	needID string,
	newStatus models.NeedStatusENUMType,
	requestor models.Requestor,
) (models.Need, error) {
	var needEntry models.Need
	if dbErr := c.persistence.UseDatabase(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			needEntry, err = dbClient.GetNeed(dbCtx, needID)
			return err
		},
	); dbErr != nil {
		return models.Need{}, fmt.Errorf("need %s unavailable [%w]", needID, ErrNeedNotFound)
	}

	if c.decider.Decide(ctx, needEntry, requestor, access.ActionUpdate) != access.VerdictAllowed {
		return models.Need{}, fmt.Errorf(
			"status change of need %s rejected [%w]", needID, ErrActionDenied,
		)
	}

	var updated models.Need
	if dbErr := c.persistence.UseDatabaseInTransaction(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			updated, err = dbClient.UpdateNeedStatus(dbCtx, needID, newStatus)
			return err
		},
	); dbErr != nil {
		return models.Need{}, fmt.Errorf("failed to update need %s status [%w]", needID, dbErr)
	}

	return updated, nil
}
