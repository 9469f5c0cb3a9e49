// Package caseward - humanitarian aid case coordination with protected personal data
package caseward

import (
	"context"
	"fmt"

	"github.com/alwitt/caseward/access"
	"github.com/alwitt/caseward/casework"
	"github.com/alwitt/caseward/db"
	"github.com/alwitt/caseward/encryption"
	"github.com/alwitt/caseward/redact"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

/*
NewCaseCoordinator initialize a case coordinator instance.

Each instance is backed by a SQL database; two instances using the same
database are essentially copies of each other.

	@param ctx context.Context - execution context
	@param dbDialector gorm.Dialector - GORM dialector
	@param dbLogLevel logger.LogLevel - SQL log level
	@param fieldSecret []byte - symmetric secret protecting personal fields
	@returns new coordinator instance
*/
func NewCaseCoordinator(
	ctx context.Context,
	dbDialector gorm.Dialector,
	dbLogLevel logger.LogLevel,
	fieldSecret []byte,
) (casework.CaseCoordinator, error) {
	// Prepare persistence
	persistence, err := db.NewConnection(dbDialector, dbLogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialized persistence client [%w]", err)
	}

	// Prepare the personal field encryption boundary
	cipher, err := encryption.NewFieldCipher(ctx, encryption.FieldCipherParams{
		Secret: fieldSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialized field cipher [%w]", err)
	}

	// Prepare access decision support
	verifier, coverage := access.NewDBOrgDirectory(persistence)
	decider := access.NewDecider(verifier, coverage)

	// Prepare the disclosure engine
	sink := redact.NewDBAuditSink(persistence)
	engine := redact.NewEngine(decider, cipher, sink)

	return casework.NewCaseCoordinator(persistence, cipher, decider, engine), nil
}
