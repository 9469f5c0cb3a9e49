package models

import (
	"fmt"
	"time"
)

// OrgTrustStatusENUMType organization trust status ENUM value type
type OrgTrustStatusENUMType string

const (
	// OrgTrustStatusPending organization registered but not yet vetted
	OrgTrustStatusPending OrgTrustStatusENUMType = "PENDING"
	// OrgTrustStatusVerified organization vetted and approved
	OrgTrustStatusVerified OrgTrustStatusENUMType = "VERIFIED"
	// OrgTrustStatusSuspended organization trust revoked
	OrgTrustStatusSuspended OrgTrustStatusENUMType = "SUSPENDED"
)

// Organization an aid organization registered with the system
type Organization struct {
	// ID organization ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// Name organization display name
	Name string `json:"name" gorm:"column:name;not null;unique" validate:"required"`

	// TrustStatus the organization trust status
	TrustStatus OrgTrustStatusENUMType `json:"trust_status" gorm:"column:trust_status;not null" validate:"required,org_trust_status"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateNextState verify can transition to new trust status
func (o *Organization) ValidateNextState(newStatus OrgTrustStatusENUMType) error {
	statesWithTransitions := map[OrgTrustStatusENUMType]map[OrgTrustStatusENUMType]bool{
		OrgTrustStatusPending: {
			OrgTrustStatusPending:   true,
			OrgTrustStatusVerified:  true,
			OrgTrustStatusSuspended: true,
		},
		OrgTrustStatusVerified: {
			OrgTrustStatusVerified:  true,
			OrgTrustStatusSuspended: true,
		},
		OrgTrustStatusSuspended: {
			OrgTrustStatusSuspended: true,
			OrgTrustStatusVerified:  true,
		},
	}

	availableNextStates, ok := statesWithTransitions[o.TrustStatus]
	if !ok {
		return fmt.Errorf("organization can't transition out of state '%s'", o.TrustStatus)
	}

	if _, ok := availableNextStates[newStatus]; !ok {
		return fmt.Errorf(
			"organization can't transition from '%s' to '%s'", o.TrustStatus, newStatus,
		)
	}

	return nil
}

// OrgServiceArea one declared coverage entry of an organization.
//
// An organization may claim a need only when one of its service area entries
// matches the need's category and country.
type OrgServiceArea struct {
	// ID service area entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`

	// OrgID the owning organization
	OrgID string `json:"org_id" gorm:"column:org_id;not null" validate:"required,uuid_rfc4122"`

	// Category the assistance category covered
	Category string `json:"category" gorm:"column:category;not null" validate:"required"`

	// Country the country covered
	Country string `json:"country" gorm:"column:country;not null" validate:"required"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}
