package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/dkovalev0/ciphertalk/internal/common"
	"github.com/dkovalev0/ciphertalk/internal/dbx"
	"github.com/dkovalev0/ciphertalk/internal/server/models"
	"github.com/dkovalev0/ciphertalk/internal/server/repositories/contacts"
	"github.com/dkovalev0/ciphertalk/internal/server/repositories/groups"
	"github.com/dkovalev0/ciphertalk/internal/server/repositories/messages"
	"github.com/dkovalev0/ciphertalk/internal/server/repositories/users"
)

// In-memory repositories backing service tests. The fake manager hands out
// the same instances regardless of the DBTX, so transactional code paths can
// run against a sqlmock *sql.DB that only expects Begin/Commit.

type fakeUserRepo struct {
	nextID int64
	byID   map[int64]*models.User

	getByIDsCalls int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, byID: map[int64]*models.User{}}
}

func (f *fakeUserRepo) add(u *models.User) *models.User {
	u.ID = f.nextID
	f.nextID++
	f.byID[u.ID] = u
	return u
}

func (f *fakeUserRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	return f.add(u), nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var found *models.User
	for _, u := range f.byID {
		if u.Username == username && (found == nil || u.ID < found.ID) {
			found = u
		}
	}
	if found == nil {
		return nil, common.ErrorNotFound
	}
	return found, nil
}

func (f *fakeUserRepo) GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	f.getByIDsCalls++
	var result []*models.User
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

func (f *fakeUserRepo) UpdateUsername(ctx context.Context, id int64, username string) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Username = username
	u.IsSetup = true
	return u, nil
}

type fakeContactRepo struct {
	nextID int64
	edges  []*models.Contact

	createErr error // injected once, then cleared
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{nextID: 1}
}

func (f *fakeContactRepo) Create(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return nil, err
	}
	for _, e := range f.edges {
		if e.OwnerID == c.OwnerID && e.ContactUserID == c.ContactUserID {
			return nil, common.ErrorAlreadyExists
		}
	}
	c.ID = f.nextID
	f.nextID++
	f.edges = append(f.edges, c)
	return c, nil
}

func (f *fakeContactRepo) Get(ctx context.Context, ownerID, contactUserID int64) (*models.Contact, error) {
	for _, e := range f.edges {
		if e.OwnerID == ownerID && e.ContactUserID == contactUserID {
			return e, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeContactRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Contact, error) {
	var result []*models.Contact
	for _, e := range f.edges {
		if e.OwnerID == ownerID {
			result = append(result, e)
		}
	}
	return result, nil
}

type fakeGroupRepo struct {
	nextID  int64
	groups  map[int64]*models.Group
	members map[int64][]int64
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{nextID: 1, groups: map[int64]*models.Group{}, members: map[int64][]int64{}}
}

func (f *fakeGroupRepo) Create(ctx context.Context, g *models.Group) (*models.Group, error) {
	g.ID = f.nextID
	f.nextID++
	f.groups[g.ID] = g
	return g, nil
}

func (f *fakeGroupRepo) AddMember(ctx context.Context, groupID, userID int64) error {
	for _, id := range f.members[groupID] {
		if id == userID {
			return nil
		}
	}
	f.members[groupID] = append(f.members[groupID], userID)
	return nil
}

func (f *fakeGroupRepo) ListByMember(ctx context.Context, userID int64) ([]*models.Group, error) {
	var result []*models.Group
	for groupID, ids := range f.members {
		for _, id := range ids {
			if id == userID {
				result = append(result, f.groups[groupID])
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeGroupRepo) ListMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	return f.members[groupID], nil
}

type fakeMessageRepo struct {
	nextID   int64
	messages []*models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{nextID: 1}
}

func (f *fakeMessageRepo) Create(ctx context.Context, m *models.Message) (*models.Message, error) {
	if !m.To.Kind.Valid() {
		return nil, common.ErrInvalidAddress
	}
	m.ID = f.nextID
	f.nextID++
	f.messages = append(f.messages, m)
	return m, nil
}

func (f *fakeMessageRepo) SenderIDsTo(ctx context.Context, recipientID int64) ([]int64, error) {
	seen := map[int64]bool{}
	var ids []int64
	for _, m := range f.messages {
		if m.To.Kind == models.AddressUser && m.To.ID == recipientID && !seen[m.SenderID] {
			seen[m.SenderID] = true
			ids = append(ids, m.SenderID)
		}
	}
	return ids, nil
}

func (f *fakeMessageRepo) RecipientIDsFrom(ctx context.Context, senderID int64) ([]int64, error) {
	seen := map[int64]bool{}
	var ids []int64
	for _, m := range f.messages {
		if m.SenderID == senderID && m.To.Kind == models.AddressUser && !seen[m.To.ID] {
			seen[m.To.ID] = true
			ids = append(ids, m.To.ID)
		}
	}
	return ids, nil
}

type fakeRepoManager struct {
	users    *fakeUserRepo
	contacts *fakeContactRepo
	groups   *fakeGroupRepo
	messages *fakeMessageRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:    newFakeUserRepo(),
		contacts: newFakeContactRepo(),
		groups:   newFakeGroupRepo(),
		messages: newFakeMessageRepo(),
	}
}

func (f *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (f *fakeRepoManager) Users(db dbx.DBTX) users.Repository       { return f.users }
func (f *fakeRepoManager) Contacts(db dbx.DBTX) contacts.Repository { return f.contacts }
func (f *fakeRepoManager) Groups(db dbx.DBTX) groups.Repository     { return f.groups }
func (f *fakeRepoManager) Messages(db dbx.DBTX) messages.Repository { return f.messages }

func usernames(list []*models.User) string {
	names := make([]string, 0, len(list))
	for _, u := range list {
		names = append(names, u.Username)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
