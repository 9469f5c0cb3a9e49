package db

import (
	"context"
	"fmt"

	"github.com/alwitt/caseward/models"
	"github.com/oklog/ulid/v2"
)

// ======================================================================================
// Access audit events

/*
RecordAccessEvent persist one access audit event

	@param ctx context.Context - execution context
	@param event models.AccessEventAudit - the event to record
	@returns the recorded entry
*/
func (d *databaseImpl) RecordAccessEvent(
	_ context.Context, event models.AccessEventAudit,
) (models.AccessEventAudit, error) {
	newEntry := AccessEventAuditDBEntry{AccessEventAudit: event}
	if newEntry.ID == "" {
		newEntry.ID = ulid.Make().String()
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.AccessEventAudit{}, fmt.Errorf(
			"new access event '%s' entry is not valid [%w]", event.EventType, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.AccessEventAudit{}, fmt.Errorf(
			"new access event '%s' insert failed [%w]", event.EventType, tmp.Error,
		)
	}

	return newEntry.AccessEventAudit, nil
}

/*
ListAccessEvents list recorded access audit events

	@param ctx context.Context - execution context
	@param filters AccessEventQueryFilter - entry listing filter
	@return list of access events
*/
func (d *databaseImpl) ListAccessEvents(
	_ context.Context, filters AccessEventQueryFilter,
) ([]models.AccessEventAudit, error) {
	query := d.db.Model(&AccessEventAuditDBEntry{})

	if len(filters.EventTypes) > 0 {
		query = query.Where("type in ?", filters.EventTypes)
	}
	if filters.TargetNeedID != nil {
		query = query.Where("need_id = ?", *filters.TargetNeedID)
	}
	if filters.TargetActorID != nil {
		query = query.Where("actor_id = ?", *filters.TargetActorID)
	}

	if filters.EventsAfter != nil {
		query = query.Where("created_at >= ?", *filters.EventsAfter)
	}
	if filters.EventsBefore != nil {
		query = query.Where("created_at <= ?", *filters.EventsBefore)
	}

	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}

	query = query.Order("created_at")

	var entries []AccessEventAuditDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list recorded access events [%w]", tmp.Error)
	}

	result := []models.AccessEventAudit{}
	for _, entry := range entries {
		result = append(result, entry.AccessEventAudit)
	}

	return result, nil
}
