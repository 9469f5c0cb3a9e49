package models

// RequestorRoleENUMType requestor role ENUM value type.
//
// The role union is closed; every decision site switches over it exhaustively
// so a new role forces review of each switch.
type RequestorRoleENUMType string

const (
	// RequestorRoleBeneficiary lowest privilege tier, may only submit and view own needs
	RequestorRoleBeneficiary RequestorRoleENUMType = "BENEFICIARY"
	// RequestorRoleFieldAgent field submitter recording needs on behalf of others
	RequestorRoleFieldAgent RequestorRoleENUMType = "FIELD_AGENT"
	// RequestorRoleOrgStaff staff member of an aid organization
	RequestorRoleOrgStaff RequestorRoleENUMType = "ORG_STAFF"
	// RequestorRoleAdmin system administrator
	RequestorRoleAdmin RequestorRoleENUMType = "ADMIN"
)

// Requestor the identity attached to one inbound request.
//
// Supplied fresh per request by the surrounding service and never persisted
// by this system.
type Requestor struct {
	// ID requestor identity
	ID string `json:"id" validate:"required"`

	// Role requestor role
	Role RequestorRoleENUMType `json:"role" validate:"required,requestor_role"`

	// OrgID organization affiliation, if any
	OrgID *string `json:"org_id,omitempty"`

	// RemoteAddr originating network address, if known. Only used for audit.
	RemoteAddr *string `json:"remote_addr,omitempty"`
}

// MemberOf whether the requestor is affiliated with the given organization
func (r *Requestor) MemberOf(orgID string) bool {
	return r.OrgID != nil && *r.OrgID == orgID
}
