// Package messages provides the PostgreSQL-backed repository for the
// append-only message log. Payload columns are stored untouched; the tagged
// Address union is split into the two nullable recipient columns here and
// nowhere else.
package messages

import (
	"context"
	"database/sql"
	"fmt"

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

// Create persists a message. Exactly one of recipient_id/group_id is set,
// derived from the Address kind; the table CHECK constraint backs this up.
func (r *PostgresRepository) Create(ctx context.Context, message *models.Message) (*models.Message, error) {
	var recipientID, groupID sql.NullInt64
	switch message.To.Kind {
	case models.AddressUser:
		recipientID = sql.NullInt64{Int64: message.To.ID, Valid: true}
	case models.AddressGroup:
		groupID = sql.NullInt64{Int64: message.To.ID, Valid: true}
	default:
		return nil, common.ErrInvalidAddress
	}

	query := `
		INSERT INTO messages (sender_id, recipient_id, group_id, content_blob, nonce, algorithm, is_file)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, sent_at
	`
	err := r.db.QueryRowContext(ctx, query,
		message.SenderID, recipientID, groupID,
		message.Blob, message.Nonce, message.Algorithm, message.IsFile).
		Scan(&message.ID, &message.SentAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return message, nil
}

// SenderIDsTo returns the distinct senders of direct messages addressed to
// recipientID. Group traffic never appears here.
func (r *PostgresRepository) SenderIDsTo(ctx context.Context, recipientID int64) ([]int64, error) {
	query := `SELECT DISTINCT sender_id FROM messages WHERE recipient_id = $1`
	return r.queryIDs(ctx, query, recipientID)
}

// RecipientIDsFrom returns the distinct direct recipients of messages sent
// by senderID. Group-addressed messages are excluded by the IS NOT NULL
// filter.
func (r *PostgresRepository) RecipientIDsFrom(ctx context.Context, senderID int64) ([]int64, error) {
	query := `SELECT DISTINCT recipient_id FROM messages WHERE sender_id = $1 AND recipient_id IS NOT NULL`
	return r.queryIDs(ctx, query, senderID)
}

func (r *PostgresRepository) queryIDs(ctx context.Context, query string, arg int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
