package contacts

import (
	"context"

	"github.com/dkovalev0/ciphertalk/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	Get(ctx context.Context, ownerID, contactUserID int64) (*models.Contact, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Contact, error)
}
