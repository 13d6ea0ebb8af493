package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/dkovalev0/ciphertalk/internal/common"
	"github.com/dkovalev0/ciphertalk/internal/dbx"
	"github.com/dkovalev0/ciphertalk/internal/logging"
	"github.com/dkovalev0/ciphertalk/internal/server/models"
	"github.com/dkovalev0/ciphertalk/internal/server/repositories/repomanager"
)

// RelationshipService owns the social graph: contacts, groups and
// membership, plus the username rename that completes onboarding.
type RelationshipService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewRelationshipService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *RelationshipService {
	return &RelationshipService{db: db, repomanager: m, log: log.With("module", "relationships")}
}

// AddContact resolves targetUsername and records a directed edge from
// ownerID. An unknown username is a normal miss and returns (nil, nil).
// The call is idempotent: an existing edge is returned unchanged, including
// when a concurrent call wins the insert race (the UNIQUE constraint turns
// the duplicate into a re-read). The alias defaults to the target's username
// at call time and is not re-synced on later renames.
func (s *RelationshipService) AddContact(ctx context.Context, ownerID int64, targetUsername string) (*models.Contact, error) {
	target, err := s.repomanager.Users(s.db).GetByUsername(ctx, targetUsername)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolving contact username: %w", err)
	}

	repo := s.repomanager.Contacts(s.db)

	existing, err := repo.Get(ctx, ownerID, target.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("checking existing contact: %w", err)
	}

	created, err := repo.Create(ctx, &models.Contact{
		OwnerID:       ownerID,
		ContactUserID: target.ID,
		Alias:         target.Username,
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		return repo.Get(ctx, ownerID, target.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating contact: %w", err)
	}

	return created, nil
}

// ListContacts returns every edge owned by userID in creation order.
func (s *RelationshipService) ListContacts(ctx context.Context, userID int64) ([]*models.Contact, error) {
	return s.repomanager.Contacts(s.db).ListByOwner(ctx, userID)
}

// CreateGroup creates the group with adminID as its admin and first member,
// then adds every resolvable invited username. Usernames that do not resolve
// are skipped; one bad invite never fails the call. The group row and all
// membership rows commit in a single transaction. Duplicate invite names are
// collapsed before resolution.
func (s *RelationshipService) CreateGroup(ctx context.Context, adminID int64, name string, memberUsernames []string) (*models.Group, error) {
	var group *models.Group

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		groupRepo := s.repomanager.Groups(tx)
		userRepo := s.repomanager.Users(tx)

		var err error
		group, err = groupRepo.Create(ctx, &models.Group{Name: name, AdminID: adminID})
		if err != nil {
			return fmt.Errorf("creating group: %w", err)
		}

		if err := groupRepo.AddMember(ctx, group.ID, adminID); err != nil {
			return fmt.Errorf("adding admin membership: %w", err)
		}

		for _, username := range lo.Uniq(memberUsernames) {
			member, err := userRepo.GetByUsername(ctx, username)
			if errors.Is(err, common.ErrorNotFound) {
				s.log.Debug(ctx, "skipping unresolvable invite", "group_id", group.ID, "username", username)
				continue
			}
			if err != nil {
				return fmt.Errorf("resolving invite %q: %w", username, err)
			}
			if err := groupRepo.AddMember(ctx, group.ID, member.ID); err != nil {
				return fmt.Errorf("adding member %d: %w", member.ID, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return group, nil
}

// ListUserGroups returns all groups where userID holds a membership row.
func (s *RelationshipService) ListUserGroups(ctx context.Context, userID int64) ([]*models.Group, error) {
	return s.repomanager.Groups(s.db).ListByMember(ctx, userID)
}

// ListGroupMemberIDs returns the group roster as plain identifiers.
func (s *RelationshipService) ListGroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	return s.repomanager.Groups(s.db).ListMemberIDs(ctx, groupID)
}

// RenameUser updates the display name and marks onboarding finished.
// Returns (nil, nil) when the user id does not exist.
func (s *RelationshipService) RenameUser(ctx context.Context, userID int64, newUsername string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).UpdateUsername(ctx, userID, newUsername)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("renaming user %d: %w", userID, err)
	}
	return user, nil
}
