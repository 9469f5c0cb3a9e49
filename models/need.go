// Package models - system data models
package models

import (
	"fmt"
	"strings"
	"time"
)

// NeedStatusENUMType need lifecycle status ENUM value type
type NeedStatusENUMType string

const (
	// NeedStatusNew need submitted, no organization assigned yet
	NeedStatusNew NeedStatusENUMType = "NEW"
	// NeedStatusAssigned need claimed by an organization
	NeedStatusAssigned NeedStatusENUMType = "ASSIGNED"
	// NeedStatusInProgress assigned organization is actively working the need
	NeedStatusInProgress NeedStatusENUMType = "IN_PROGRESS"
	// NeedStatusResolved need resolved. Terminal.
	NeedStatusResolved NeedStatusENUMType = "RESOLVED"
	// NeedStatusRejected need rejected. Terminal.
	NeedStatusRejected NeedStatusENUMType = "REJECTED"
)

// NeedUrgencyENUMType need urgency tier ENUM value type
type NeedUrgencyENUMType string

const (
	// NeedUrgencyLow low urgency
	NeedUrgencyLow NeedUrgencyENUMType = "LOW"
	// NeedUrgencyMedium medium urgency
	NeedUrgencyMedium NeedUrgencyENUMType = "MEDIUM"
	// NeedUrgencyHigh high urgency
	NeedUrgencyHigh NeedUrgencyENUMType = "HIGH"
	// NeedUrgencyCritical critical urgency
	NeedUrgencyCritical NeedUrgencyENUMType = "CRITICAL"
)

// Need one assistance request tracked by the system
type Need struct {
	// ID need ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// CreatedByID identity of the submitter who created this need
	CreatedByID string `json:"created_by_id" gorm:"column:created_by_id;not null" validate:"required"`

	// Status need lifecycle status
	Status NeedStatusENUMType `json:"status" gorm:"column:status;not null" validate:"required,need_status"`

	// Category assistance category
	Category string `json:"category" gorm:"column:category;not null" validate:"required"`

	// Country coarse location country
	Country string `json:"country" gorm:"column:country;not null" validate:"required"`
	// Region coarse location region. May carry comma separated sub-district detail.
	Region string `json:"region" gorm:"column:region;not null" validate:"required"`
	// City coarse location city
	City string `json:"city" gorm:"column:city"`

	// Urgency need urgency tier
	Urgency NeedUrgencyENUMType `json:"urgency" gorm:"column:urgency;not null" validate:"required,need_urgency"`

	// HasMinors minors are present in the affected household
	HasMinors bool `json:"has_minors" gorm:"column:has_minors"`
	// HasDisability a household member has a disability
	HasDisability bool `json:"has_disability" gorm:"column:has_disability"`
	// HasMedicalNeeds a household member has acute medical needs
	HasMedicalNeeds bool `json:"has_medical_needs" gorm:"column:has_medical_needs"`
	// HasElderly elderly household members are present
	HasElderly bool `json:"has_elderly" gorm:"column:has_elderly"`

	// AssignedOrgID the organization currently assigned to this need, if any
	AssignedOrgID *string `json:"assigned_org_id,omitempty" gorm:"column:assigned_org_id;default:null"`
	// AssignedAt timestamp of the assignment
	AssignedAt *time.Time `json:"assigned_at,omitempty" gorm:"column:assigned_at;default:null"`
	// ResolvedAt timestamp of resolution
	ResolvedAt *time.Time `json:"resolved_at,omitempty" gorm:"column:resolved_at;default:null"`
	// ClosedAt timestamp the need reached a terminal status
	ClosedAt *time.Time `json:"closed_at,omitempty" gorm:"column:closed_at;default:null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateNextState verify can transition to new status
func (n *Need) ValidateNextState(newStatus NeedStatusENUMType) error {
	statesWithTransitions := map[NeedStatusENUMType]map[NeedStatusENUMType]bool{
		NeedStatusNew: {
			NeedStatusNew:      true,
			NeedStatusAssigned: true,
			NeedStatusRejected: true,
		},
		NeedStatusAssigned: {
			NeedStatusAssigned:   true,
			NeedStatusInProgress: true,
			NeedStatusRejected:   true,
		},
		NeedStatusInProgress: {
			NeedStatusInProgress: true,
			NeedStatusResolved:   true,
		},
	}

	availableNextStates, ok := statesWithTransitions[n.Status]
	if !ok {
		return fmt.Errorf("need can't transition out of state '%s'", n.Status)
	}

	if _, ok := availableNextStates[newStatus]; !ok {
		return fmt.Errorf("need can't transition from '%s' to '%s'", n.Status, newStatus)
	}

	return nil
}

// Claimed whether an organization currently holds the assignment on this need.
//
// Assignment is the controlling predicate for access decisions, not the status
// label; once set the assignment is monotonic within this system.
func (n *Need) Claimed() bool {
	return n.AssignedOrgID != nil && *n.AssignedOrgID != ""
}

// HasVulnerabilityFactors whether any of the vulnerability flags is set
func (n *Need) HasVulnerabilityFactors() bool {
	return n.HasMinors || n.HasDisability || n.HasMedicalNeeds || n.HasElderly
}

// GeneralizedRegion the coarse region with sub-district detail stripped.
//
// Only the first comma delimited segment of the stored region survives.
func (n *Need) GeneralizedRegion() string {
	region, _, _ := strings.Cut(n.Region, ",")
	return strings.TrimSpace(region)
}

// NeedPersonalData the encrypted personal fields attached to one need.
//
// At most one entry exists per need. Each field is independently optional; a
// nil field means that value was never submitted. Absence of the whole entry
// means no personal data was ever submitted for the need.
type NeedPersonalData struct {
	// ID personal data entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`

	// NeedID the parent need
	NeedID string `json:"need_id" gorm:"column:need_id;not null;unique" validate:"required,uuid_rfc4122"`

	// EncFullName encrypted beneficiary full name
	EncFullName *string `json:"enc_full_name,omitempty" gorm:"column:enc_full_name;default:null"`
	// EncPhone encrypted contact phone number
	EncPhone *string `json:"enc_phone,omitempty" gorm:"column:enc_phone;default:null"`
	// EncEmail encrypted contact email
	EncEmail *string `json:"enc_email,omitempty" gorm:"column:enc_email;default:null"`
	// EncExactLocation encrypted exact location
	EncExactLocation *string `json:"enc_exact_location,omitempty" gorm:"column:enc_exact_location;default:null"`
	// EncNotes encrypted free-form notes
	EncNotes *string `json:"enc_notes,omitempty" gorm:"column:enc_notes;default:null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// Empty whether no personal field carries a value
func (p *NeedPersonalData) Empty() bool {
	return p.EncFullName == nil &&
		p.EncPhone == nil &&
		p.EncEmail == nil &&
		p.EncExactLocation == nil &&
		p.EncNotes == nil
}
