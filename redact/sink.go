package redact

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alwitt/caseward/db"
	"github.com/alwitt/caseward/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
)

// ErrAuditEmitFailure an access audit event could not be durably recorded.
//
// An unaudited disclosure is a compliance gap, not a missing log line; this
// error must reach operational alerting.
var ErrAuditEmitFailure = errors.New("access audit event could not be recorded")

/*
AuditSink accepts access audit events for durable recording.

Fire-and-forget from the caller's perspective, but a sink must never silently
drop an event; failures surface either through the Submit error or through
the sink's own escalation path.
*/
type AuditSink interface {
	/*
		Submit hand one access audit event to the sink

			@param ctx context.Context - execution context
			@param event models.AccessEventAudit - the event to record
	*/
	Submit(ctx context.Context, event models.AccessEventAudit) error
}

// dbAuditSink implements AuditSink against the persistence layer
type dbAuditSink struct {
	goutils.Component

	persistence db.Client
}

/*
NewDBAuditSink define a persistence backed audit sink

Events are written synchronously in their own transaction.

	@param persistence db.Client - persistence layer client
	@returns sink instance
*/
func NewDBAuditSink(persistence db.Client) AuditSink {
	logTags := log.Fields{"module": "redact", "component": "db-audit-sink"}

	return &dbAuditSink{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence: persistence,
	}
}

/*
Submit hand one access audit event to the sink

	@param ctx context.Context - execution context
	@param event models.AccessEventAudit - the event to record
*/
func (s *dbAuditSink) Submit(ctx context.Context, event models.AccessEventAudit) error {
	if dbErr := s.persistence.UseDatabaseInTransaction(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			_, err := dbClient.RecordAccessEvent(dbCtx, event)
			return err
		},
	); dbErr != nil {
		return fmt.Errorf("failed to record access event '%s' [%w]", event.EventType, dbErr)
	}

	return nil
}

// AsyncAuditSink an audit sink that records events without blocking the
// disclosure path
type AsyncAuditSink interface {
	AuditSink

	// Close stop accepting events and drain the pending queue
	Close()
}

// asyncAuditSink implements AsyncAuditSink by dispatching to a wrapped sink
// from a worker goroutine
type asyncAuditSink struct {
	goutils.Component

	next AuditSink

	events chan models.AccessEventAudit

	// onFailure invoked when the wrapped sink rejects an event
	onFailure func(models.AccessEventAudit, error)

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// AsyncAuditSinkParams async audit sink init parameters
type AsyncAuditSinkParams struct {
	// Next the sink performing the durable writes
	Next AuditSink `validate:"required"`
	// QueueDepth pending event buffer size
	QueueDepth int `validate:"required,gt=0"`
	// OnFailure optional escalation callback for events the wrapped sink
	// rejected. The failure is always logged regardless.
	OnFailure func(models.AccessEventAudit, error)
}

/*
NewAsyncAuditSink define an audit sink that records events without blocking
the disclosure path.

Submit only fails when the pending queue is full; write failures in the
worker are escalated through the error log and the failure callback.

	@param ctx context.Context - execution context
	@param params AsyncAuditSinkParams - sink parameters
	@returns sink instance. Call Close to drain on shutdown.
*/
func NewAsyncAuditSink(_ context.Context, params AsyncAuditSinkParams) (AsyncAuditSink, error) {
	if params.Next == nil || params.QueueDepth <= 0 {
		return nil, fmt.Errorf("invalid async audit sink parameters")
	}

	logTags := log.Fields{"module": "redact", "component": "async-audit-sink"}

	instance := &asyncAuditSink{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		next:      params.Next,
		events:    make(chan models.AccessEventAudit, params.QueueDepth),
		onFailure: params.OnFailure,
	}

	instance.wg.Add(1)
	go instance.worker()

	return instance, nil
}

/*
Submit hand one access audit event to the sink

	@param ctx context.Context - execution context
	@param event models.AccessEventAudit - the event to record
*/
func (s *asyncAuditSink) Submit(_ context.Context, event models.AccessEventAudit) error {
	select {
	case s.events <- event:
		return nil
	default:
		return fmt.Errorf(
			"audit event queue full, '%s' not accepted [%w]", event.EventType, ErrAuditEmitFailure,
		)
	}
}

// Close stop accepting events and drain the pending queue
func (s *asyncAuditSink) Close() {
	s.stopOnce.Do(func() {
		close(s.events)
	})
	s.wg.Wait()
}

// worker drain the event queue into the wrapped sink
func (s *asyncAuditSink) worker() {
	defer s.wg.Done()

	for event := range s.events {
		if err := s.next.Submit(context.Background(), event); err != nil {
			log.WithError(err).WithFields(s.LogTags).
				WithField("event_type", event.EventType).
				WithField("need_id", event.NeedID).
				Error("Access audit event lost")
			if s.onFailure != nil {
				s.onFailure(event, err)
			}
		}
	}
}
