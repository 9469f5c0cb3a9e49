package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// AccessEventTypeENUMType access event type ENUM value type
type AccessEventTypeENUMType string

const (
	// AccessEventTypeFull a requestor received the full view of a need
	AccessEventTypeFull AccessEventTypeENUMType = "ACCESS_FULL"

	// AccessEventTypeRedacted a requestor received the redacted view of a need
	AccessEventTypeRedacted AccessEventTypeENUMType = "ACCESS_REDACTED"

	// AccessEventTypeSensitiveFields decrypted personal fields were disclosed
	AccessEventTypeSensitiveFields AccessEventTypeENUMType = "SENSITIVE_FIELDS_ACCESSED"

	// AccessEventTypeClaimSucceeded an organization claimed a need
	AccessEventTypeClaimSucceeded AccessEventTypeENUMType = "CLAIM_SUCCEEDED"

	// AccessEventTypeClaimDenied a claim attempt was denied
	AccessEventTypeClaimDenied AccessEventTypeENUMType = "CLAIM_DENIED"

	// AccessEventTypeDecryptFailed stored ciphertext failed authentication, potential tampering
	AccessEventTypeDecryptFailed AccessEventTypeENUMType = "DECRYPT_FAILED"
)

// AccessEventAudit recording of one disclosure or claim decision.
//
// These entries form the compliance audit trail; every full disclosure of a
// need must leave exactly one ACCESS_FULL entry behind.
type AccessEventAudit struct {
	// ID audit entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`

	// EventType access event type
	EventType AccessEventTypeENUMType `json:"type" gorm:"column:type;not null" validate:"required,access_event_type"`

	// NeedID the need the event concerns
	NeedID string `json:"need_id" gorm:"column:need_id;not null" validate:"required,uuid_rfc4122"`

	// ActorID the acting identity. Nil for system initiated actions.
	ActorID *string `json:"actor_id,omitempty" gorm:"column:actor_id;default:null"`
	// ActorRole the acting identity's role, if known
	ActorRole *string `json:"actor_role,omitempty" gorm:"column:actor_role;default:null"`

	// SourceAddr originating network address, if known
	SourceAddr *string `json:"source_addr,omitempty" gorm:"column:source_addr;default:null"`

	// Metadata metadata relating to the event. Must never contain personal data.
	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"column:metadata;default:null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseMetadata parse the metadata based on the event type
func (a AccessEventAudit) ParseMetadata(validator *validator.Validate) (interface{}, error) {
	switch a.EventType {
	// Disclosure related audit events
	case AccessEventTypeFull:
		fallthrough
	case AccessEventTypeRedacted:
		fallthrough
	case AccessEventTypeSensitiveFields:
		var parsed AccessEventDisclosureRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("access event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	// Claim related audit events
	case AccessEventTypeClaimSucceeded:
		fallthrough
	case AccessEventTypeClaimDenied:
		var parsed AccessEventClaimRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("access event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	// Tamper signal audit events
	case AccessEventTypeDecryptFailed:
		var parsed AccessEventDecryptFailureRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("access event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)
	}
	return nil, nil
}

// AccessEventDisclosureRelated access event metadata related to need disclosure
type AccessEventDisclosureRelated struct {
	// Full whether the full view was disclosed
	Full bool `json:"full"`
	// FieldCount the number of personal fields decrypted for the disclosure
	FieldCount int `json:"field_count"`
}

// AccessEventClaimRelated access event metadata related to claim attempts
type AccessEventClaimRelated struct {
	// OrgID the organization attempting the claim, when the requestor had one
	OrgID string `json:"org_id,omitempty" validate:"omitempty,uuid_rfc4122"`
}

// AccessEventDecryptFailureRelated access event metadata related to decryption failures
type AccessEventDecryptFailureRelated struct {
	// Field the personal field whose ciphertext failed authentication
	Field string `json:"field" validate:"required"`
}
