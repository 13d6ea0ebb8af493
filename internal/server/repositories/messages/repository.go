package messages

import (
	"context"

	"github.com/dkovalev0/ciphertalk/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, message *models.Message) (*models.Message, error)
	SenderIDsTo(ctx context.Context, recipientID int64) ([]int64, error)
	RecipientIDsFrom(ctx context.Context, senderID int64) ([]int64, error)
}
