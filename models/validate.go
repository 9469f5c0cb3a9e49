package models

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

/*
RegisterWithValidator register with the validator this custom validation support

	@param v *validator.Validate - the validator to register against
	@return whether successful
*/
func RegisterWithValidator(v *validator.Validate) error {
	if err := v.RegisterValidation(
		"need_status", validateNeedStatusType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"need_urgency", validateNeedUrgencyType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"org_trust_status", validateOrgTrustStatusType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"requestor_role", validateRequestorRoleType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"access_event_type", validateAccessEventType,
	); err != nil {
		return err
	}

	return nil
}

func validateNeedStatusType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch NeedStatusENUMType(fl.Field().String()) {
	case NeedStatusNew:
		fallthrough
	case NeedStatusAssigned:
		fallthrough
	case NeedStatusInProgress:
		fallthrough
	case NeedStatusResolved:
		fallthrough
	case NeedStatusRejected:
		return true
	}
	return false
}

func validateNeedUrgencyType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch NeedUrgencyENUMType(fl.Field().String()) {
	case NeedUrgencyLow:
		fallthrough
	case NeedUrgencyMedium:
		fallthrough
	case NeedUrgencyHigh:
		fallthrough
	case NeedUrgencyCritical:
		return true
	}
	return false
}

func validateOrgTrustStatusType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch OrgTrustStatusENUMType(fl.Field().String()) {
	case OrgTrustStatusPending:
		fallthrough
	case OrgTrustStatusVerified:
		fallthrough
	case OrgTrustStatusSuspended:
		return true
	}
	return false
}

func validateRequestorRoleType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch RequestorRoleENUMType(fl.Field().String()) {
	case RequestorRoleBeneficiary:
		fallthrough
	case RequestorRoleFieldAgent:
		fallthrough
	case RequestorRoleOrgStaff:
		fallthrough
	case RequestorRoleAdmin:
		return true
	}
	return false
}

func validateAccessEventType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch AccessEventTypeENUMType(fl.Field().String()) {
	case AccessEventTypeFull:
		fallthrough
	case AccessEventTypeRedacted:
		fallthrough
	case AccessEventTypeSensitiveFields:
		fallthrough
	case AccessEventTypeClaimSucceeded:
		fallthrough
	case AccessEventTypeClaimDenied:
		fallthrough
	case AccessEventTypeDecryptFailed:
		return true
	}
	return false
}
