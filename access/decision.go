// Package access - access control decisions over needs
package access

import (
	"context"

	"github.com/alwitt/caseward/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
)

// ActionENUMType requested action ENUM value type.
//
// The action union is closed; Decide switches over it exhaustively so a new
// action forces review of the decision logic.
type ActionENUMType string

const (
	// ActionView view one need
	ActionView ActionENUMType = "VIEW"
	// ActionClaim claim an unassigned need for an organization
	ActionClaim ActionENUMType = "CLAIM"
	// ActionUpdate mutate the lifecycle status of a need
	ActionUpdate ActionENUMType = "UPDATE"
)

// VerdictENUMType access decision ENUM value type
type VerdictENUMType string

const (
	// VerdictAllowed the action is allowed
	VerdictAllowed VerdictENUMType = "ALLOWED"
	// VerdictDenied the action is denied
	VerdictDenied VerdictENUMType = "DENIED"
)

/*
Decider the access decision function.

Decide is a pure function of the need, the requestor, and the desired action;
it never returns an error. Denial is a normal outcome, not a failure. Every
lookup it depends on fails closed.
*/
type Decider interface {
	/*
		Decide whether a requestor may perform an action on a need

			@param ctx context.Context - execution context
			@param need models.Need - the need under decision
			@param requestor models.Requestor - the acting identity
			@param action ActionENUMType - the desired action
			@returns the verdict
	*/
	Decide(
		ctx context.Context,
		need models.Need,
		requestor models.Requestor,
		action ActionENUMType,
	) VerdictENUMType
}

// decider implements Decider
type decider struct {
	goutils.Component

	verifier OrgVerifier
	coverage ServiceAreaLookup
}

/*
NewDecider define new access decider

	@param verifier OrgVerifier - organization verification oracle
	@param coverage ServiceAreaLookup - organization service area lookup
	@returns decider instance
*/
func NewDecider(verifier OrgVerifier, coverage ServiceAreaLookup) Decider {
	logTags := log.Fields{"module": "access", "component": "decider"}

	return &decider{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		verifier: verifier,
		coverage: coverage,
	}
}

/*
Decide whether a requestor may perform an action on a need

	@param ctx context.Context - execution context
	@param need models.Need - the need under decision
	@param requestor models.Requestor - the acting identity
	@param action ActionENUMType - the desired action
	@returns the verdict
*/
func (d *decider) Decide(
	ctx context.Context,
	need models.Need,
	requestor models.Requestor,
	action ActionENUMType,
) VerdictENUMType {
	switch action {
	case ActionView:
		return d.decideView(ctx, need, requestor)
	case ActionClaim:
		return d.decideClaim(ctx, need, requestor)
	case ActionUpdate:
		return d.decideUpdate(ctx, need, requestor)
	}
	return VerdictDenied
}

// decideView view decision. Admin short-circuit first, then ownership, then
// the organization assignment checks, so the verification oracle is only
// consulted when cheaper rules did not settle the outcome.
func (d *decider) decideView(
	ctx context.Context, need models.Need, requestor models.Requestor,
) VerdictENUMType {
	if requestor.Role == models.RequestorRoleAdmin {
		return VerdictAllowed
	}

	if requestor.ID == need.CreatedByID {
		return VerdictAllowed
	}

	if requestor.Role == models.RequestorRoleOrgStaff &&
		need.Claimed() &&
		requestor.MemberOf(*need.AssignedOrgID) &&
		d.verifier.IsVerified(ctx, *need.AssignedOrgID) {
		return VerdictAllowed
	}

	return VerdictDenied
}

// decideClaim claim decision. The highest stakes decision: a successful claim
// grants the whole organization future view access. The verdict here is only
// advisory; the persistence layer re-validates the assignment guard inside
// the conditional write.
func (d *decider) decideClaim(
	ctx context.Context, need models.Need, requestor models.Requestor,
) VerdictENUMType {
	if requestor.Role != models.RequestorRoleOrgStaff {
		return VerdictDenied
	}
	if requestor.OrgID == nil {
		return VerdictDenied
	}
	if need.Claimed() {
		return VerdictDenied
	}
	// A claim is also a lifecycle transition; a case in a terminal status
	// stays closed even when it was never assigned.
	if err := need.ValidateNextState(models.NeedStatusAssigned); err != nil {
		return VerdictDenied
	}
	if !d.verifier.IsVerified(ctx, *requestor.OrgID) {
		return VerdictDenied
	}
	if !d.coverage.Covers(ctx, *requestor.OrgID, need.Category, need.Country) {
		return VerdictDenied
	}

	return VerdictAllowed
}

// decideUpdate update decision
func (d *decider) decideUpdate(
	ctx context.Context, need models.Need, requestor models.Requestor,
) VerdictENUMType {
	if requestor.Role == models.RequestorRoleAdmin {
		return VerdictAllowed
	}

	if requestor.Role == models.RequestorRoleOrgStaff &&
		need.Claimed() &&
		requestor.MemberOf(*need.AssignedOrgID) &&
		d.verifier.IsVerified(ctx, *need.AssignedOrgID) {
		return VerdictAllowed
	}

	return VerdictDenied
}
