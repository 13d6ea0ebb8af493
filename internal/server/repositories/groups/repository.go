package groups

import (
	"context"

	"github.com/dkovalev0/ciphertalk/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, group *models.Group) (*models.Group, error)
	AddMember(ctx context.Context, groupID, userID int64) error
	ListByMember(ctx context.Context, userID int64) ([]*models.Group, error)
	ListMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
}
