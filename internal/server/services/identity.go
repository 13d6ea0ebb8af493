// Package services implements the application services of the ciphertalk
// server: identity resolution, the relationship graph, the message log, and
// conversation derivation. Services own no state beyond their dependencies;
// each public method is a self-contained request/response unit.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkovalev0/ciphertalk/internal/common"
	"github.com/dkovalev0/ciphertalk/internal/server/auth"
	"github.com/dkovalev0/ciphertalk/internal/server/config"
	"github.com/dkovalev0/ciphertalk/internal/server/models"
	"github.com/dkovalev0/ciphertalk/internal/server/repositories/repomanager"
)

// IdentityService verifies bearer tokens, resolves them to live user rows,
// and handles the identity-provider handoff after an external login.
type IdentityService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *IdentityService {
	return &IdentityService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// Resolve verifies the token and loads the user row it names. An invalid or
// expired token maps to common.ErrorUnauthorized ("log in again"); a valid
// token naming a user that no longer exists maps to common.ErrorNotFound
// ("account gone"); the two must stay distinguishable at the transport
// boundary. The returned row is always freshly loaded, never cached.
func (s *IdentityService) Resolve(ctx context.Context, token string) (*models.User, error) {
	claims, err := auth.Verify(token, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("loading user %d: %w", claims.UserID, err)
	}

	return user, nil
}

// HandoffLogin completes an external identity-provider login. The caller has
// already verified (email, displayName, pictureURL) with the provider; this
// method looks the user up by email, creates the row on first login
// (username defaulted from the display name, setup not complete), and issues
// a token keyed on the user's id and username.
func (s *IdentityService) HandoffLogin(ctx context.Context, email, displayName, pictureURL string) (*models.User, string, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		user, err = repo.Create(ctx, &models.User{
			Email:    email,
			Username: displayName,
			Picture:  pictureURL,
			IsSetup:  false,
		})
		if errors.Is(err, common.ErrorAlreadyExists) {
			// Lost a first-login race; the row exists now.
			user, err = repo.GetByEmail(ctx, email)
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("resolving account for %s: %w", email, err)
	}

	token, err := auth.Issue(user.Username, user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	return user, token, nil
}

// IssueToken mints a fresh token for an already-resolved user, e.g. after a
// rename so the subject matches the new username.
func (s *IdentityService) IssueToken(user *models.User) (string, error) {
	return auth.Issue(user.Username, user.ID, s.jwtSecret, s.accessTokenValidityDuration)
}
