package access

import (
	"context"

	"github.com/alwitt/caseward/db"
	"github.com/alwitt/caseward/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
)

/*
OrgVerifier the organization verification oracle.

Answers whether an organization's trust status is currently VERIFIED. A
missing organization or a lookup failure answers false; absence fails closed,
never errors.
*/
type OrgVerifier interface {
	/*
		IsVerified whether the organization is verified

			@param ctx context.Context - execution context
			@param orgID string - organization ID
			@returns whether the trust status is VERIFIED
	*/
	IsVerified(ctx context.Context, orgID string) bool
}

/*
ServiceAreaLookup answers whether an organization declared coverage matching
a need's category and country. Lookup failures answer false.
*/
type ServiceAreaLookup interface {
	/*
		Covers whether the organization covers a category and country

			@param ctx context.Context - execution context
			@param orgID string - organization ID
			@param category string - assistance category
			@param country string - country
			@returns whether matching coverage exists
	*/
	Covers(ctx context.Context, orgID string, category string, country string) bool
}

// dbOrgDirectory implements OrgVerifier and ServiceAreaLookup over the
// organization store
type dbOrgDirectory struct {
	goutils.Component

	persistence db.Client
}

/*
NewDBOrgDirectory define a persistence backed organization verification oracle
and service area lookup

	@param persistence db.Client - persistence layer client
	@returns directory instance usable as both OrgVerifier and ServiceAreaLookup
*/
func NewDBOrgDirectory(persistence db.Client) (OrgVerifier, ServiceAreaLookup) {
	logTags := log.Fields{"module": "access", "component": "org-directory"}

	instance := &dbOrgDirectory{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence: persistence,
	}

	return instance, instance
}

/*
IsVerified whether the organization is verified

	@param ctx context.Context - execution context
	@param orgID string - organization ID
	@returns whether the trust status is VERIFIED
*/
func (o *dbOrgDirectory) IsVerified(ctx context.Context, orgID string) bool {
	var entry models.Organization
	if dbErr := o.persistence.UseDatabase(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			entry, err = dbClient.GetOrganization(dbCtx, orgID)
			return err
		},
	); dbErr != nil {
		// Unknown organizations and lookup failures both fail closed
		log.WithError(dbErr).WithFields(o.LogTags).
			WithField("org_id", orgID).
			Debug("Organization verification lookup failed")
		return false
	}

	return entry.TrustStatus == models.OrgTrustStatusVerified
}

/*
Covers whether the organization covers a category and country

	@param ctx context.Context - execution context
	@param orgID string - organization ID
	@param category string - assistance category
	@param country string - country
	@returns whether matching coverage exists
*/
func (o *dbOrgDirectory) Covers(
	ctx context.Context, orgID string, category string, country string,
) bool {
	covered := false
	if dbErr := o.persistence.UseDatabase(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			covered, err = dbClient.OrgServiceAreaCovers(dbCtx, orgID, category, country)
			return err
		},
	); dbErr != nil {
		log.WithError(dbErr).WithFields(o.LogTags).
			WithField("org_id", orgID).
			Debug("Service area lookup failed")
		return false
	}

	return covered
}
