// Package db - persistence layer
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alwitt/caseward/models"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// ======================================================================================
// Needs

/*
DefineNewNeed define new need, together with its encrypted personal fields
entry when personal data was supplied

	@param ctx context.Context - execution context
	@param params NewNeedParams - new need parameters
	@returns the need entry, and the personal data entry if one was created
*/
func (d *databaseImpl) DefineNewNeed(
	_ context.Context, params NewNeedParams,
) (models.Need, *models.NeedPersonalData, error) {
	if err := d.validator.Struct(&params); err != nil {
		return models.Need{}, nil, fmt.Errorf("new need parameters are not valid [%w]", err)
	}

	newEntry := NeedDBEntry{
		Need: models.Need{
			ID:              uuid.NewString(),
			CreatedByID:     params.CreatedByID,
			Status:          models.NeedStatusNew,
			Category:        params.Category,
			Country:         params.Country,
			Region:          params.Region,
			City:            params.City,
			Urgency:         params.Urgency,
			HasMinors:       params.HasMinors,
			HasDisability:   params.HasDisability,
			HasMedicalNeeds: params.HasMedicalNeeds,
			HasElderly:      params.HasElderly,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Need{}, nil, fmt.Errorf("new need entry is not valid [%w]", err)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Need{}, nil, fmt.Errorf("new need entry failed insert [%w]", tmp.Error)
	}

	// Attach the encrypted personal fields entry in the same transaction
	if params.PersonalFields == nil {
		return newEntry.Need, nil, nil
	}
	personalEntry := NeedPersonalDataDBEntry{
		NeedPersonalData: models.NeedPersonalData{
			ID:               ulid.Make().String(),
			NeedID:           newEntry.ID,
			EncFullName:      params.PersonalFields.FullName,
			EncPhone:         params.PersonalFields.Phone,
			EncEmail:         params.PersonalFields.Email,
			EncExactLocation: params.PersonalFields.ExactLocation,
			EncNotes:         params.PersonalFields.Notes,
		},
	}
	if personalEntry.Empty() {
		// No field carried a value, so record nothing
		return newEntry.Need, nil, nil
	}

	if err := d.validator.Struct(&personalEntry); err != nil {
		return models.Need{}, nil, fmt.Errorf(
			"personal data entry for need %s is not valid [%w]", newEntry.ID, err,
		)
	}

	if tmp := d.db.Create(&personalEntry); tmp.Error != nil {
		return models.Need{}, nil, fmt.Errorf(
			"personal data entry for need %s failed insert [%w]", newEntry.ID, tmp.Error,
		)
	}

	return newEntry.Need, &personalEntry.NeedPersonalData, nil
}

// getNeedEntry find a need by ID
func (d *databaseImpl) getNeedEntry(needID string) (NeedDBEntry, error) {
	var entry NeedDBEntry
	err := d.db.Where("id = ?", needID).First(&entry).Error
	return entry, err
}

/*
GetNeed fetch a need by ID

	@param ctx context.Context - execution context
	@param needID string - need ID
	@returns need entry
*/
func (d *databaseImpl) GetNeed(_ context.Context, needID string) (models.Need, error) {
	entry, err := d.getNeedEntry(needID)
	if err != nil {
		return models.Need{}, fmt.Errorf("failed to fetch need %s [%w]", needID, err)
	}

	return entry.Need, nil
}

/*
GetNeedPersonalData fetch the encrypted personal fields entry of a need

	@param ctx context.Context - execution context
	@param needID string - need ID
	@returns the entry, or nil if the need never had personal data
*/
func (d *databaseImpl) GetNeedPersonalData(
	_ context.Context, needID string,
) (*models.NeedPersonalData, error) {
	var entries []NeedPersonalDataDBEntry
	if tmp := d.db.Where("need_id = ?", needID).Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf(
			"failed to fetch personal data of need %s [%w]", needID, tmp.Error,
		)
	}

	// Absence is a normal state, not an error
	if len(entries) == 0 {
		return nil, nil
	}

	return &entries[0].NeedPersonalData, nil
}

/*
ListNeeds list needs

	@param ctx context.Context - execution context
	@param filters NeedQueryFilter - entry listing filter
	@return list of needs
*/
func (d *databaseImpl) ListNeeds(
	_ context.Context, filters NeedQueryFilter,
) ([]models.Need, error) {
	query := d.db.Model(&NeedDBEntry{})

	if len(filters.TargetStatus) > 0 {
		query = query.Where("status in ?", filters.TargetStatus)
	}
	if filters.TargetCountry != nil {
		query = query.Where("country = ?", *filters.TargetCountry)
	}
	if filters.TargetCategory != nil {
		query = query.Where("category = ?", *filters.TargetCategory)
	}
	if filters.TargetAssignedOrgID != nil {
		query = query.Where("assigned_org_id = ?", *filters.TargetAssignedOrgID)
	}
	if filters.Unclaimed {
		query = query.Where("assigned_org_id IS NULL")
	}

	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}

	query = query.Order("created_at desc")

	var entries []NeedDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list needs [%w]", tmp.Error)
	}

	result := []models.Need{}
	for _, entry := range entries {
		result = append(result, entry.Need)
	}

	return result, nil
}

/*
UpdateNeedStatus transition a need to a new lifecycle status

	@param ctx context.Context - execution context
	@param needID string - need ID
	@param newStatus models.NeedStatusENUMType - the new status
	@returns the updated need entry
*/
func (d *databaseImpl) UpdateNeedStatus(
	_ context.Context, needID string, newStatus models.NeedStatusENUMType,
) (models.Need, error) {
	entry, err := d.getNeedEntry(needID)
	if err != nil {
		return models.Need{}, fmt.Errorf("failed to fetch need %s [%w]", needID, err)
	}

	if err := entry.ValidateNextState(newStatus); err != nil {
		return models.Need{}, fmt.Errorf(
			"need %s status change rejected [%w]", needID, err,
		)
	}

	now := time.Now().UTC()
	entry.Status = newStatus
	switch newStatus {
	case models.NeedStatusResolved:
		entry.ResolvedAt = &now
		entry.ClosedAt = &now
	case models.NeedStatusRejected:
		entry.ClosedAt = &now
	case models.NeedStatusNew, models.NeedStatusAssigned, models.NeedStatusInProgress:
	}

	if err := d.validator.Struct(&entry); err != nil {
		return models.Need{}, fmt.Errorf("updated need %s entry is not valid [%w]", needID, err)
	}

	if tmp := d.db.Save(&entry); tmp.Error != nil {
		return models.Need{}, fmt.Errorf("need %s status update failed [%w]", needID, tmp.Error)
	}

	return entry.Need, nil
}

/*
AssignNeedToOrg conditionally assign a need to an organization

The write only succeeds when the need is still NEW and no organization holds
the assignment; concurrent claim attempts resolve to exactly one winner, and
a need in a terminal status can never re-enter ASSIGNED through this path.

	@param ctx context.Context - execution context
	@param needID string - need ID
	@param orgID string - the claiming organization
	@param timestamp time.Time - assignment timestamp
	@returns assignment outcome, and the need entry when it exists
*/
func (d *databaseImpl) AssignNeedToOrg(
	_ context.Context, needID string, orgID string, timestamp time.Time,
) (AssignOutcomeENUMType, models.Need, error) {
	// Single conditional update; both the assignment guard and the lifecycle
	// guard are enforced by the store, not by a prior read.
	tmp := d.db.Model(&NeedDBEntry{}).
		Where("id = ? AND assigned_org_id IS NULL AND status = ?", needID, models.NeedStatusNew).
		Updates(map[string]interface{}{
			"assigned_org_id": orgID,
			"assigned_at":     timestamp,
			"status":          models.NeedStatusAssigned,
		})
	if tmp.Error != nil {
		return "", models.Need{}, fmt.Errorf(
			"conditional assignment of need %s failed [%w]", needID, tmp.Error,
		)
	}

	entry, err := d.getNeedEntry(needID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AssignOutcomeNotFound, models.Need{}, nil
		}
		return "", models.Need{}, fmt.Errorf("failed to fetch need %s [%w]", needID, err)
	}

	if tmp.RowsAffected == 1 {
		return AssignOutcomeAssigned, entry.Need, nil
	}

	return AssignOutcomeAlreadyAssigned, entry.Need, nil
}
