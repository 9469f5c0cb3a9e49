// Package redact - authorization gated redaction and disclosure engine
package redact

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alwitt/caseward/access"
	"github.com/alwitt/caseward/encryption"
	"github.com/alwitt/caseward/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
)

/*
Engine the redaction and disclosure engine.

Given one loaded need and its optional encrypted personal fields, the engine
consults the access decision, decrypts personal fields only on the allowed
path, and records the disclosure before the response is handed back. It is
read-only with respect to domain data and write-only with respect to audit
events.
*/
type Engine interface {
	/*
		FilterOne build the response view of one need for a requestor

		Returns the full view only when the access decision allows the View
		action; otherwise the redacted view. Exactly one access audit event is
		recorded per call before the view is returned.

			@param ctx context.Context - execution context
			@param need models.Need - the need
			@param personal *models.NeedPersonalData - the encrypted personal
			    fields entry, or nil when the need never had personal data
			@param requestor models.Requestor - the acting identity
			@returns the view appropriate for the requestor
	*/
	FilterOne(
		ctx context.Context,
		need models.Need,
		personal *models.NeedPersonalData,
		requestor models.Requestor,
	) (models.NeedView, error)

	/*
		FilterMany build the redacted views of a list of needs

		List output is always minimal, independent of the requestor's
		privileges, and records no audit events. Bulk access anomaly detection
		belongs to the surrounding service.

			@param ctx context.Context - execution context
			@param needs []models.Need - the needs, in response order
			@returns redacted views, in input order
	*/
	FilterMany(ctx context.Context, needs []models.Need) []models.MinimalNeedView
}

// engineImpl implements Engine
type engineImpl struct {
	goutils.Component

	decider access.Decider
	cipher  encryption.FieldCipher
	sink    AuditSink
}

/*
NewEngine define new redaction and disclosure engine

	@param decider access.Decider - access decision function
	@param cipher encryption.FieldCipher - personal field encryption boundary
	@param sink AuditSink - access audit sink
	@returns engine instance
*/
func NewEngine(decider access.Decider, cipher encryption.FieldCipher, sink AuditSink) Engine {
	logTags := log.Fields{"module": "redact", "component": "disclosure-engine"}

	return &engineImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		decider: decider,
		cipher:  cipher,
		sink:    sink,
	}
}

/*
FilterOne build the response view of one need for a requestor

	@param ctx context.Context - execution context
	@param need models.Need - the need
	@param personal *models.NeedPersonalData - the encrypted personal fields
	    entry, or nil when the need never had personal data
	@param requestor models.Requestor - the acting identity
	@returns the view appropriate for the requestor
*/
func (e *engineImpl) FilterOne(
	ctx context.Context,
	need models.Need,
	personal *models.NeedPersonalData,
	requestor models.Requestor,
) (models.NeedView, error) {
	verdict := e.decider.Decide(ctx, need, requestor, access.ActionView)

	if verdict != access.VerdictAllowed {
		view := models.NewMinimalNeedView(need)
		if err := e.submitDisclosureEvent(
			ctx, need, requestor, models.AccessEventTypeRedacted, 0,
		); err != nil {
			return nil, err
		}
		return view, nil
	}

	view := models.FullNeedView{
		MinimalNeedView: models.NewMinimalNeedView(need),
		FullRegion:      need.Region,
		City:            need.City,
		CreatedByID:     need.CreatedByID,
		AssignedOrgID:   need.AssignedOrgID,
		AssignedAt:      need.AssignedAt,
		ResolvedAt:      need.ResolvedAt,
	}

	// Decrypt each personal field individually; a field absent in storage
	// stays absent in the view.
	decrypted := 0
	if personal != nil {
		fields := []struct {
			name string
			enc  *string
			dst  **string
		}{
			{"full_name", personal.EncFullName, &view.FullName},
			{"phone", personal.EncPhone, &view.Phone},
			{"email", personal.EncEmail, &view.Email},
			{"exact_location", personal.EncExactLocation, &view.ExactLocation},
			{"notes", personal.EncNotes, &view.Notes},
		}
		for _, field := range fields {
			if field.enc == nil {
				continue
			}
			plainText, err := e.cipher.DecryptField(ctx, *field.enc)
			if err != nil {
				// Potential tamper signal; record it, then fail hard rather
				// than return a partially decrypted view
				if auditErr := e.submitDecryptFailureEvent(
					ctx, need, requestor, field.name,
				); auditErr != nil {
					log.WithError(auditErr).WithFields(e.LogTags).
						WithField("need_id", need.ID).
						Error("Failed to record decryption failure event")
				}
				return nil, fmt.Errorf(
					"personal field of need %s unreadable [%w]", need.ID, err,
				)
			}
			*field.dst = &plainText
			decrypted++
		}
	}

	if err := e.submitDisclosureEvent(
		ctx, need, requestor, models.AccessEventTypeFull, decrypted,
	); err != nil {
		return nil, err
	}

	// Seeing the record and seeing personal data are separate facts for
	// compliance reporting
	if decrypted > 0 {
		if err := e.submitDisclosureEvent(
			ctx, need, requestor, models.AccessEventTypeSensitiveFields, decrypted,
		); err != nil {
			return nil, err
		}
	}

	return view, nil
}

/*
FilterMany build the redacted views of a list of needs

	@param ctx context.Context - execution context
	@param needs []models.Need - the needs, in response order
	@returns redacted views, in input order
*/
func (e *engineImpl) FilterMany(
	_ context.Context, needs []models.Need,
) []models.MinimalNeedView {
	// Intentionally not routed through FilterOne: list output is minimal by
	// construction, with no access decision to get wrong.
	result := make([]models.MinimalNeedView, 0, len(needs))
	for _, need := range needs {
		result = append(result, models.NewMinimalNeedView(need))
	}
	return result
}

// submitDisclosureEvent record one disclosure audit event
func (e *engineImpl) submitDisclosureEvent(
	ctx context.Context,
	need models.Need,
	requestor models.Requestor,
	eventType models.AccessEventTypeENUMType,
	fieldCount int,
) error {
	metadata, _ := json.Marshal(&models.AccessEventDisclosureRelated{
		Full:       eventType != models.AccessEventTypeRedacted,
		FieldCount: fieldCount,
	})

	event := models.AccessEventAudit{
		ID:         ulid.Make().String(),
		EventType:  eventType,
		NeedID:     need.ID,
		ActorID:    &requestor.ID,
		ActorRole:  (*string)(&requestor.Role),
		SourceAddr: requestor.RemoteAddr,
		Metadata:   datatypes.JSON(metadata),
	}

	if err := e.sink.Submit(ctx, event); err != nil {
		log.WithError(err).WithFields(e.LogTags).
			WithField("need_id", need.ID).
			WithField("event_type", eventType).
			Error("Access audit submission failed")
		return fmt.Errorf("disclosure of need %s not recorded [%w]", need.ID, ErrAuditEmitFailure)
	}

	return nil
}

// submitDecryptFailureEvent record one decryption failure audit event
func (e *engineImpl) submitDecryptFailureEvent(
	ctx context.Context, need models.Need, requestor models.Requestor, fieldName string,
) error {
	metadata, _ := json.Marshal(&models.AccessEventDecryptFailureRelated{Field: fieldName})

	event := models.AccessEventAudit{
		ID:         ulid.Make().String(),
		EventType:  models.AccessEventTypeDecryptFailed,
		NeedID:     need.ID,
		ActorID:    &requestor.ID,
		ActorRole:  (*string)(&requestor.Role),
		SourceAddr: requestor.RemoteAddr,
		Metadata:   datatypes.JSON(metadata),
	}

	return e.sink.Submit(ctx, event)
}
