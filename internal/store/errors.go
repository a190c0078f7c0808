package store

import (
	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
)

var (
	// ErrNotFound indicates no project has the requested id.
	ErrNotFound = errors.NotFoundError("project").Build()

	// ErrAlreadyExists indicates a project with the same name is registered.
	ErrAlreadyExists = errors.NewError(errors.CategoryAlreadyExists, "project name already registered").Warning().Build()

	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.PersistenceError("could not open project database").Fatal().Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be created.
	ErrInitializeSchemaFailed = errors.PersistenceError("failed to initialize database schema").Fatal().Build()
)

func persistenceErr(op string, cause error) error {
	return errors.PersistenceError(op).WithCause(cause).Build()
}
