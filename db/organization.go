package db

import (
	"context"
	"fmt"

	"github.com/alwitt/caseward/models"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ======================================================================================
// Organizations

/*
DefineNewOrganization define new organization

New organizations start in the PENDING trust status and gain access rights
only once vetted.

	@param ctx context.Context - execution context
	@param name string - organization name
	@returns organization entry
*/
func (d *databaseImpl) DefineNewOrganization(
	_ context.Context, name string,
) (models.Organization, error) {
	newEntry := OrganizationDBEntry{
		Organization: models.Organization{
			ID:          uuid.NewString(),
			Name:        name,
			TrustStatus: models.OrgTrustStatusPending,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Organization{}, fmt.Errorf(
			"new organization '%s' is not valid [%w]", name, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Organization{}, fmt.Errorf(
			"new organization '%s' failed insert [%w]", name, tmp.Error,
		)
	}

	return newEntry.Organization, nil
}

// getOrganizationEntry find an organization by ID
func (d *databaseImpl) getOrganizationEntry(orgID string) (OrganizationDBEntry, error) {
	var entry OrganizationDBEntry
	err := d.db.Where("id = ?", orgID).First(&entry).Error
	return entry, err
}

/*
GetOrganization fetch an organization by ID

	@param ctx context.Context - execution context
	@param orgID string - organization ID
	@returns organization entry
*/
func (d *databaseImpl) GetOrganization(
	_ context.Context, orgID string,
) (models.Organization, error) {
	entry, err := d.getOrganizationEntry(orgID)
	if err != nil {
		return models.Organization{}, fmt.Errorf("failed to fetch organization %s [%w]", orgID, err)
	}

	return entry.Organization, nil
}

/*
SetOrganizationTrustStatus transition an organization to a new trust status

	@param ctx context.Context - execution context
	@param orgID string - organization ID
	@param newStatus models.OrgTrustStatusENUMType - the new trust status
	@returns the updated organization entry
*/
func (d *databaseImpl) SetOrganizationTrustStatus(
	_ context.Context, orgID string, newStatus models.OrgTrustStatusENUMType,
) (models.Organization, error) {
	entry, err := d.getOrganizationEntry(orgID)
	if err != nil {
		return models.Organization{}, fmt.Errorf("failed to fetch organization %s [%w]", orgID, err)
	}

	if err := entry.ValidateNextState(newStatus); err != nil {
		return models.Organization{}, fmt.Errorf(
			"organization %s trust status change rejected [%w]", orgID, err,
		)
	}

	entry.TrustStatus = newStatus
	if err := d.validator.Struct(&entry); err != nil {
		return models.Organization{}, fmt.Errorf(
			"updated organization %s entry is not valid [%w]", orgID, err,
		)
	}

	if tmp := d.db.Save(&entry); tmp.Error != nil {
		return models.Organization{}, fmt.Errorf(
			"organization %s trust status update failed [%w]", orgID, tmp.Error,
		)
	}

	return entry.Organization, nil
}

/*
DefineOrgServiceArea declare one coverage entry for an organization

	@param ctx context.Context - execution context
	@param orgID string - organization ID
	@param category string - assistance category covered
	@param country string - country covered
	@returns service area entry
*/
func (d *databaseImpl) DefineOrgServiceArea(
	_ context.Context, orgID string, category string, country string,
) (models.OrgServiceArea, error) {
	newEntry := OrgServiceAreaDBEntry{
		OrgServiceArea: models.OrgServiceArea{
			ID:       ulid.Make().String(),
			OrgID:    orgID,
			Category: category,
			Country:  country,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.OrgServiceArea{}, fmt.Errorf(
			"new service area for organization %s is not valid [%w]", orgID, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.OrgServiceArea{}, fmt.Errorf(
			"new service area for organization %s failed insert [%w]", orgID, tmp.Error,
		)
	}

	return newEntry.OrgServiceArea, nil
}

/*
OrgServiceAreaCovers whether an organization declared coverage matching a
category and country

	@param ctx context.Context - execution context
	@param orgID string - organization ID
	@param category string - assistance category
	@param country string - country
	@returns whether a matching coverage entry exists
*/
func (d *databaseImpl) OrgServiceAreaCovers(
	_ context.Context, orgID string, category string, country string,
) (bool, error) {
	var count int64
	tmp := d.db.Model(&OrgServiceAreaDBEntry{}).
		Where("org_id = ? AND category = ? AND country = ?", orgID, category, country).
		Count(&count)
	if tmp.Error != nil {
		return false, fmt.Errorf(
			"failed to query service areas of organization %s [%w]", orgID, tmp.Error,
		)
	}

	return count > 0, nil
}
