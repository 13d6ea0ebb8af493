// Package contacts provides the PostgreSQL-backed repository for directed
// contact edges.
package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dkovalev0/ciphertalk/internal/common"
	"github.com/dkovalev0/ciphertalk/internal/dbx"
	"github.com/dkovalev0/ciphertalk/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a contact edge. The (owner_id, contact_user_id) pair is
// UNIQUE at the store layer, so a concurrent duplicate insert surfaces as
// common.ErrorAlreadyExists instead of a second physical row; the service
// turns that into a re-read of the existing edge.
func (r *PostgresRepository) Create(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	query := `
		INSERT INTO contacts (owner_id, contact_user_id, alias)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		contact.OwnerID, contact.ContactUserID, contact.Alias).
		Scan(&contact.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return contact, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, contactUserID int64) (*models.Contact, error) {
	query := `
		SELECT id, owner_id, contact_user_id, alias FROM contacts
		WHERE owner_id = $1 AND contact_user_id = $2
	`
	contact := &models.Contact{}
	err := r.db.QueryRowContext(ctx, query, ownerID, contactUserID).
		Scan(&contact.ID, &contact.OwnerID, &contact.ContactUserID, &contact.Alias)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return contact, nil
}

// ListByOwner returns all edges owned by ownerID in creation order.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Contact, error) {
	query := `
		SELECT id, owner_id, contact_user_id, alias FROM contacts
		WHERE owner_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Contact
	for rows.Next() {
		contact := &models.Contact{}
		if err := rows.Scan(&contact.ID, &contact.OwnerID, &contact.ContactUserID, &contact.Alias); err != nil {
			return nil, err
		}
		result = append(result, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
