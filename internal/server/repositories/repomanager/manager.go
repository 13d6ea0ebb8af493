// Package repomanager exposes the repository factory used by the service
// layer. Repositories are constructed per call around a DBTX so the same
// factory serves both plain connections and transactions.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dkovalev0/ciphertalk/internal/dbx"
	"github.com/dkovalev0/ciphertalk/internal/server/repositories/contacts"
	"github.com/dkovalev0/ciphertalk/internal/server/repositories/groups"
	"github.com/dkovalev0/ciphertalk/internal/server/repositories/messages"
	"github.com/dkovalev0/ciphertalk/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Contacts(db dbx.DBTX) contacts.Repository
	Groups(db dbx.DBTX) groups.Repository
	Messages(db dbx.DBTX) messages.Repository
}
