package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/caseward/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CommonListEntryQueryFilter common query filter when listing data entries
type CommonListEntryQueryFilter struct {
	Limit  *int
	Offset *int
}

// AccessEventQueryFilter access event query filter conditions
type AccessEventQueryFilter struct {
	CommonListEntryQueryFilter
	// EventTypes the specific event types to query for
	EventTypes []models.AccessEventTypeENUMType
	// TargetNeedID fetch only events concerning this need
	TargetNeedID *string
	// TargetActorID fetch only events recorded against this actor
	TargetActorID *string
	// EventsAfter filter for events after this timestamp
	EventsAfter *time.Time
	// EventsBefore filter for events before this timestamp
	EventsBefore *time.Time
}

// NeedQueryFilter need query filter conditions
type NeedQueryFilter struct {
	CommonListEntryQueryFilter
	// TargetStatus the specific lifecycle statuses to query for
	TargetStatus []models.NeedStatusENUMType
	// TargetCountry filter for needs in this country
	TargetCountry *string
	// TargetCategory filter for needs of this category
	TargetCategory *string
	// TargetAssignedOrgID filter for needs assigned to this organization
	TargetAssignedOrgID *string
	// Unclaimed filter for needs with no assigned organization
	Unclaimed bool
}

// AssignOutcomeENUMType outcome of a conditional need assignment ENUM value type
type AssignOutcomeENUMType string

const (
	// AssignOutcomeAssigned the assignment was recorded
	AssignOutcomeAssigned AssignOutcomeENUMType = "ASSIGNED"
	// AssignOutcomeAlreadyAssigned the need was not claimable, either another
	// organization already holds the assignment or the need left the NEW status
	AssignOutcomeAlreadyAssigned AssignOutcomeENUMType = "ALREADY_ASSIGNED"
	// AssignOutcomeNotFound the need does not exist
	AssignOutcomeNotFound AssignOutcomeENUMType = "NOT_FOUND"
)

// EncryptedPersonalFields already-encrypted personal field values for insertion.
//
// Encryption happens above this layer; the persistence layer only ever sees
// ciphertext.
type EncryptedPersonalFields struct {
	FullName      *string
	Phone         *string
	Email         *string
	ExactLocation *string
	Notes         *string
}

// NewNeedParams parameters for defining a new need
type NewNeedParams struct {
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
	// PersonalFields encrypted personal fields to store alongside, if any
	PersonalFields *EncryptedPersonalFields `validate:"-"`
}

// Database the database handle to interacting with the data base
type Database interface {
	// ------------------------------------------------------------------------------------
	// Needs

	/*
		DefineNewNeed define new need, together with its encrypted personal fields
		entry when personal data was supplied

			@param ctx context.Context - execution context
			@param params NewNeedParams - new need parameters
			@returns the need entry, and the personal data entry if one was created
	*/
	DefineNewNeed(
		ctx context.Context, params NewNeedParams,
	) (models.Need, *models.NeedPersonalData, error)

	/*
		GetNeed fetch a need by ID

			@param ctx context.Context - execution context
			@param needID string - need ID
			@returns need entry
	*/
	GetNeed(ctx context.Context, needID string) (models.Need, error)

	/*
		GetNeedPersonalData fetch the encrypted personal fields entry of a need

			@param ctx context.Context - execution context
			@param needID string - need ID
			@returns the entry, or nil if the need never had personal data
	*/
	GetNeedPersonalData(ctx context.Context, needID string) (*models.NeedPersonalData, error)

	/*
		ListNeeds list needs

			@param ctx context.Context - execution context
			@param filters NeedQueryFilter - entry listing filter
			@return list of needs
	*/
	ListNeeds(ctx context.Context, filters NeedQueryFilter) ([]models.Need, error)

	/*
		UpdateNeedStatus transition a need to a new lifecycle status

			@param ctx context.Context - execution context
			@param needID string - need ID
			@param newStatus models.NeedStatusENUMType - the new status
			@returns the updated need entry
	*/
	UpdateNeedStatus(
		ctx context.Context, needID string, newStatus models.NeedStatusENUMType,
	) (models.Need, error)

	/*
		AssignNeedToOrg conditionally assign a need to an organization

		The write only succeeds when the need is still NEW and no organization
		holds the assignment; concurrent claim attempts resolve to exactly one
		winner, and a need in a terminal status can never re-enter ASSIGNED
		through this path.

			@param ctx context.Context - execution context
			@param needID string - need ID
			@param orgID string - the claiming organization
			@param timestamp time.Time - assignment timestamp
			@returns assignment outcome, and the need entry when it exists
	*/
	AssignNeedToOrg(
		ctx context.Context, needID string, orgID string, timestamp time.Time,
	) (AssignOutcomeENUMType, models.Need, error)

	// ------------------------------------------------------------------------------------
	// Organizations

	/*
		DefineNewOrganization define new organization

			@param ctx context.Context - execution context
			@param name string - organization name
			@returns organization entry
	*/
	DefineNewOrganization(ctx context.Context, name string) (models.Organization, error)

	/*
		GetOrganization fetch an organization by ID

			@param ctx context.Context - execution context
			@param orgID string - organization ID
			@returns organization entry
	*/
	GetOrganization(ctx context.Context, orgID string) (models.Organization, error)

	/*
		SetOrganizationTrustStatus transition an organization to a new trust status

			@param ctx context.Context - execution context
			@param orgID string - organization ID
			@param newStatus models.OrgTrustStatusENUMType - the new trust status
			@returns the updated organization entry
	*/
	SetOrganizationTrustStatus(
		ctx context.Context, orgID string, newStatus models.OrgTrustStatusENUMType,
	) (models.Organization, error)

	/*
		DefineOrgServiceArea declare one coverage entry for an organization

			@param ctx context.Context - execution context
			@param orgID string - organization ID
			@param category string - assistance category covered
			@param country string - country covered
			@returns service area entry
	*/
	DefineOrgServiceArea(
		ctx context.Context, orgID string, category string, country string,
	) (models.OrgServiceArea, error)

	/*
		OrgServiceAreaCovers whether an organization declared coverage matching
		a category and country

			@param ctx context.Context - execution context
			@param orgID string - organization ID
			@param category string - assistance category
			@param country string - country
			@returns whether a matching coverage entry exists
	*/
	OrgServiceAreaCovers(
		ctx context.Context, orgID string, category string, country string,
	) (bool, error)

	// ------------------------------------------------------------------------------------
	// Access audit events

	/*
		RecordAccessEvent persist one access audit event

			@param ctx context.Context - execution context
			@param event models.AccessEventAudit - the event to record
			@returns the recorded entry
	*/
	RecordAccessEvent(
		ctx context.Context, event models.AccessEventAudit,
	) (models.AccessEventAudit, error)

	/*
		ListAccessEvents list recorded access audit events

			@param ctx context.Context - execution context
			@param filters AccessEventQueryFilter - entry listing filter
			@return list of access events
	*/
	ListAccessEvents(
		ctx context.Context, filters AccessEventQueryFilter,
	) ([]models.AccessEventAudit, error)
}

// databaseImpl implements Database
type databaseImpl struct {
	goutils.Component
	db        *gorm.DB
	validator *validator.Validate
}

// newDatabase define a new database client
func newDatabase(_ context.Context, sqlClient *gorm.DB) (Database, error) {
	logTags := log.Fields{"package": "caseward", "module": "db", "component": "db-client"}

	instance := &databaseImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		db:        sqlClient,
		validator: validator.New(),
	}

	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}

	return instance, nil
}
