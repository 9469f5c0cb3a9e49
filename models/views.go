package models

import "time"

// NeedView one response shape produced by the disclosure engine
type NeedView interface {
	// FullDisclosure whether this view carries restricted fields
	FullDisclosure() bool
}

// MinimalNeedView the redacted response shape of one need.
//
// Carries no personal data, no creator identity, and no assignment identity.
// This is a distinct value type from FullNeedView so a construction path can
// not accidentally leak a restricted field into it.
type MinimalNeedView struct {
	// NeedID need ID
	NeedID string `json:"need_id"`
	// Status need lifecycle status
	Status NeedStatusENUMType `json:"status"`
	// Category assistance category
	Category string `json:"category"`
	// Country coarse location country
	Country string `json:"country"`
	// Region generalized region, sub-district detail stripped
	Region string `json:"region"`
	// Urgency need urgency tier
	Urgency NeedUrgencyENUMType `json:"urgency"`
	// Claimed whether an organization currently holds the assignment
	Claimed bool `json:"claimed"`
	// VulnerabilityFactors whether any vulnerability flag is set. The
	// individual flags are never exposed here.
	VulnerabilityFactors bool `json:"vulnerability_factors"`
	// CreatedAt need creation timestamp
	CreatedAt time.Time `json:"created_at"`
}

// FullDisclosure implement NeedView
func (v MinimalNeedView) FullDisclosure() bool { return false }

// NewMinimalNeedView build the redacted view of a need
func NewMinimalNeedView(need Need) MinimalNeedView {
	return MinimalNeedView{
		NeedID:               need.ID,
		Status:               need.Status,
		Category:             need.Category,
		Country:              need.Country,
		Region:               need.GeneralizedRegion(),
		Urgency:              need.Urgency,
		Claimed:              need.Claimed(),
		VulnerabilityFactors: need.HasVulnerabilityFactors(),
		CreatedAt:            need.CreatedAt,
	}
}

// FullNeedView the unredacted response shape of one need.
//
// Only ever constructed after the access decision allowed the View action.
// Personal fields absent in storage stay nil here.
type FullNeedView struct {
	MinimalNeedView

	// FullRegion the stored region including sub-district detail
	FullRegion string `json:"full_region"`
	// City coarse location city
	City string `json:"city"`

	// CreatedByID identity of the submitter who created the need
	CreatedByID string `json:"created_by_id"`

	// AssignedOrgID the organization currently assigned, if any
	AssignedOrgID *string `json:"assigned_org_id,omitempty"`
	// AssignedAt assignment timestamp
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
	// ResolvedAt resolution timestamp
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	// FullName decrypted beneficiary full name
	FullName *string `json:"full_name,omitempty"`
	// Phone decrypted contact phone number
	Phone *string `json:"phone,omitempty"`
	// Email decrypted contact email
	Email *string `json:"email,omitempty"`
	// ExactLocation decrypted exact location
	ExactLocation *string `json:"exact_location,omitempty"`
	// Notes decrypted free-form notes
	Notes *string `json:"notes,omitempty"`
}

// FullDisclosure implement NeedView
func (v FullNeedView) FullDisclosure() bool { return true }
