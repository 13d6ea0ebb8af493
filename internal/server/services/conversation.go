package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/samber/lo"

	"github.com/dkovalev0/ciphertalk/internal/server/models"
	"github.com/dkovalev0/ciphertalk/internal/server/repositories/repomanager"
)

// ConversationService derives each user's set of active chat partners from
// message history plus explicit contacts.
type ConversationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewConversationService(db *sql.DB, m repomanager.RepositoryManager) *ConversationService {
	return &ConversationService{db: db, repomanager: m}
}

// ActivePartners returns everyone userID has an active or potential 1:1
// conversation with: senders of direct messages to the user, direct
// recipients of the user's messages, and explicit contact targets, minus the
// user themself. Group traffic contributes nothing here; group visibility
// comes from group listings instead. The result has set semantics; callers
// must not rely on order. An empty id set short-circuits without a lookup.
func (s *ConversationService) ActivePartners(ctx context.Context, userID int64) ([]*models.User, error) {
	messageRepo := s.repomanager.Messages(s.db)

	senders, err := messageRepo.SenderIDsTo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("collecting senders: %w", err)
	}

	recipients, err := messageRepo.RecipientIDsFrom(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("collecting recipients: %w", err)
	}

	contactEdges, err := s.repomanager.Contacts(s.db).ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("collecting contacts: %w", err)
	}

	ids := append(append(senders, recipients...),
		lo.Map(contactEdges, func(c *models.Contact, _ int) int64 { return c.ContactUserID })...)

	ids = lo.Reject(lo.Uniq(ids), func(id int64, _ int) bool { return id == userID })

	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	return s.repomanager.Users(s.db).GetByIDs(ctx, ids)
}
