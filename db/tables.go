package db

import "github.com/alwitt/caseward/models"

// --------------------------------------------------------------------------------------
// Access audit events

// AccessEventAuditDBEntry access audit event DB entry
type AccessEventAuditDBEntry struct {
	models.AccessEventAudit
}

// TableName hard code table name
func (AccessEventAuditDBEntry) TableName() string {
	return "access_audit_events"
}

// --------------------------------------------------------------------------------------
// Needs

// NeedDBEntry need DB entry
type NeedDBEntry struct {
	models.Need
}

// TableName hard code table name
func (NeedDBEntry) TableName() string {
	return "needs"
}

// NeedPersonalDataDBEntry encrypted personal fields DB entry
type NeedPersonalDataDBEntry struct {
	models.NeedPersonalData
	Need NeedDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:NeedID" validate:"-"`
}

// TableName hard code table name
func (NeedPersonalDataDBEntry) TableName() string {
	return "need_personal_data"
}

// --------------------------------------------------------------------------------------
// Organizations

// OrganizationDBEntry organization DB entry
type OrganizationDBEntry struct {
	models.Organization
}

// TableName hard code table name
func (OrganizationDBEntry) TableName() string {
	return "organizations"
}

// OrgServiceAreaDBEntry organization service area DB entry
type OrgServiceAreaDBEntry struct {
	models.OrgServiceArea
	Org OrganizationDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:OrgID" validate:"-"`
}

// TableName hard code table name
func (OrgServiceAreaDBEntry) TableName() string {
	return "org_service_areas"
}
