package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkovalev0/ciphertalk/internal/common"
	"github.com/dkovalev0/ciphertalk/internal/logging"
	"github.com/dkovalev0/ciphertalk/internal/server/models"
	"github.com/dkovalev0/ciphertalk/internal/server/services"
)

type stubIdentity struct {
	users  map[string]*models.User // token -> user
	tokens map[string]string       // email -> token
}

func (s *stubIdentity) Resolve(ctx context.Context, token string) (*models.User, error) {
	u, ok := s.users[token]
	if !ok {
		return nil, fmt.Errorf("%w: bad token", common.ErrorUnauthorized)
	}
	if u == nil {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (s *stubIdentity) HandoffLogin(ctx context.Context, email, displayName, pictureURL string) (*models.User, string, error) {
	u := &models.User{ID: 1, Email: email, Username: displayName, Picture: pictureURL}
	return u, s.tokens[email], nil
}

func (s *stubIdentity) IssueToken(user *models.User) (string, error) {
	return "fresh-token", nil
}

type stubRelationships struct {
	contact   *models.Contact
	contacts  []*models.Contact
	group     *models.Group
	groups    []*models.Group
	memberIDs []int64
	renamed   *models.User

	gotGroupName    string
	gotGroupInvites []string
}

func (s *stubRelationships) AddContact(ctx context.Context, ownerID int64, targetUsername string) (*models.Contact, error) {
	return s.contact, nil
}

func (s *stubRelationships) ListContacts(ctx context.Context, userID int64) ([]*models.Contact, error) {
	return s.contacts, nil
}

func (s *stubRelationships) CreateGroup(ctx context.Context, adminID int64, name string, memberUsernames []string) (*models.Group, error) {
	s.gotGroupName = name
	s.gotGroupInvites = memberUsernames
	return s.group, nil
}

func (s *stubRelationships) ListUserGroups(ctx context.Context, userID int64) ([]*models.Group, error) {
	return s.groups, nil
}

func (s *stubRelationships) ListGroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	return s.memberIDs, nil
}

func (s *stubRelationships) RenameUser(ctx context.Context, userID int64, newUsername string) (*models.User, error) {
	return s.renamed, nil
}

type stubMessages struct {
	sendErr error
	lastTo  models.Address
}

func (s *stubMessages) Send(ctx context.Context, senderID int64, to models.Address, payload services.Payload, isFile bool) (*models.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.lastTo = to
	return &models.Message{
		ID: 10, SenderID: senderID, To: to,
		Blob: payload.Blob, Nonce: payload.Nonce, Algorithm: payload.Algorithm, IsFile: isFile,
	}, nil
}

func (s *stubMessages) PresignUpload(ctx context.Context) (string, string, error) {
	return "attachments/k", "https://s3.test/put/k", nil
}

func (s *stubMessages) PresignDownload(ctx context.Context, key string) (string, error) {
	return "https://s3.test/get/" + key, nil
}

type stubConversations struct {
	partners []*models.User
}

func (s *stubConversations) ActivePartners(ctx context.Context, userID int64) ([]*models.User, error) {
	return s.partners, nil
}

type fixture struct {
	identity      *stubIdentity
	relationships *stubRelationships
	messages      *stubMessages
	conversations *stubConversations
	mux           *http.ServeMux
}

func newFixture() *fixture {
	f := &fixture{
		identity: &stubIdentity{
			users:  map[string]*models.User{"alice-token": {ID: 1, Email: "alice@example.com", Username: "alice", IsSetup: true}},
			tokens: map[string]string{},
		},
		relationships: &stubRelationships{},
		messages:      &stubMessages{},
		conversations: &stubConversations{},
	}
	h := slog.NewJSONHandler(&bytes.Buffer{}, nil)
	log := logging.NewSlogLogger(slog.New(h))
	f.mux = NewServer(f.identity, f.relationships, f.messages, f.conversations, log).Routes()
	return f
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRequireAuth(t *testing.T) {
	f := newFixture()
	f.identity.users["stale-token"] = nil // valid token, account deleted

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"invalid token", "garbage", http.StatusUnauthorized},
		{"deleted account", "stale-token", http.StatusNotFound},
		{"valid token", "alice-token", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/users/me", tc.token, "")
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestHandleHandoff(t *testing.T) {
	f := newFixture()
	f.identity.tokens["bob@example.com"] = "bob-token"

	rec := f.do(t, http.MethodPost, "/api/auth/handoff", "",
		`{"email":"bob@example.com","display_name":"Bob"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[struct {
		User  userResponse `json:"user"`
		Token string       `json:"token"`
	}](t, rec)
	if resp.Token != "bob-token" {
		t.Errorf("token = %q", resp.Token)
	}
	if resp.User.Email != "bob@example.com" {
		t.Errorf("user = %+v", resp.User)
	}
}

func TestHandleHandoffRejectsBadInput(t *testing.T) {
	f := newFixture()

	for name, body := range map[string]string{
		"malformed json": `{`,
		"bad email":      `{"email":"not-an-email","display_name":"Bob"}`,
		"missing name":   `{"email":"bob@example.com"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/auth/handoff", "", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	if rec := f.do(t, http.MethodGet, "/api/auth/handoff", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestHandleMeRename(t *testing.T) {
	f := newFixture()
	f.relationships.renamed = &models.User{ID: 1, Email: "alice@example.com", Username: "alice2", IsSetup: true}

	rec := f.do(t, http.MethodPut, "/api/users/me", "alice-token", `{"username":"alice2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[struct {
		User  userResponse `json:"user"`
		Token string       `json:"token"`
	}](t, rec)
	if resp.User.Username != "alice2" {
		t.Errorf("username = %q", resp.User.Username)
	}
	// The subject changed, so a fresh token rides along.
	if resp.Token != "fresh-token" {
		t.Errorf("token = %q", resp.Token)
	}
}

func TestHandleContacts(t *testing.T) {
	f := newFixture()
	f.relationships.contact = &models.Contact{ID: 3, OwnerID: 1, ContactUserID: 2, Alias: "bob"}

	rec := f.do(t, http.MethodPost, "/api/contacts", "alice-token", `{"username":"bob"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[contactResponse](t, rec)
	if resp.ContactUserID != 2 || resp.Alias != "bob" {
		t.Errorf("contact = %+v", resp)
	}
}

func TestHandleContactsUnknownUsername(t *testing.T) {
	f := newFixture() // stub returns a nil contact

	rec := f.do(t, http.MethodPost, "/api/contacts", "alice-token", `{"username":"nobody"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleGroupsCreate(t *testing.T) {
	f := newFixture()
	f.relationships.group = &models.Group{ID: 5, Name: "book club", AdminID: 1}

	rec := f.do(t, http.MethodPost, "/api/groups", "alice-token",
		`{"name":"book club","members":["bob","carol"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if f.relationships.gotGroupName != "book club" {
		t.Errorf("name passed = %q", f.relationships.gotGroupName)
	}
	if len(f.relationships.gotGroupInvites) != 2 {
		t.Errorf("invites passed = %v", f.relationships.gotGroupInvites)
	}
}

func TestHandleGroupMembers(t *testing.T) {
	f := newFixture()
	f.relationships.memberIDs = []int64{1, 2}

	rec := f.do(t, http.MethodGet, "/api/groups/5/members", "alice-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[map[string][]int64](t, rec)
	if got := resp["member_ids"]; len(got) != 2 {
		t.Errorf("member_ids = %v", got)
	}
}

func TestHandleGroupMembersForbiddenForOutsiders(t *testing.T) {
	f := newFixture()
	f.relationships.memberIDs = []int64{2, 3} // caller (id 1) not on the roster

	rec := f.do(t, http.MethodGet, "/api/groups/5/members", "alice-token", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestHandleGroupMembersBadID(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/groups/abc/members", "alice-token", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleMessagesSend(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/messages", "alice-token",
		`{"to":{"kind":"group","id":7},"blob":"Y2lwaGVy","nonce":"bm9uY2U=","algorithm":"ChaCha20"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[messageResponse](t, rec)
	if resp.To.Kind != "group" || resp.To.ID != 7 {
		t.Errorf("address round trip failed: %+v", resp.To)
	}
	if resp.SenderID != 1 {
		t.Errorf("sender_id = %d", resp.SenderID)
	}
	if f.messages.lastTo.Kind != models.AddressGroup {
		t.Errorf("service saw kind %v", f.messages.lastTo.Kind)
	}
}

func TestHandleMessagesRejectsBadAddress(t *testing.T) {
	f := newFixture()

	for name, body := range map[string]string{
		"unknown kind": `{"to":{"kind":"broadcast","id":7},"blob":"x","nonce":"y","algorithm":"AES"}`,
		"zero id":      `{"to":{"kind":"user","id":0},"blob":"x","nonce":"y","algorithm":"AES"}`,
		"missing nonce": `{"to":{"kind":"user","id":2},"blob":"x","algorithm":"AES"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/messages", "alice-token", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

// The blob is opaque to the server: even an empty one passes the edge
// untouched.
func TestHandleMessagesAcceptsEmptyBlob(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/messages", "alice-token",
		`{"to":{"kind":"user","id":2},"blob":"","nonce":"bm9uY2U=","algorithm":"AES"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[messageResponse](t, rec)
	if resp.Blob != "" {
		t.Errorf("blob = %q, want empty string preserved", resp.Blob)
	}
}

func TestHandleMessagesRecipientNotFound(t *testing.T) {
	f := newFixture()
	f.messages.sendErr = common.ErrorNotFound

	rec := f.do(t, http.MethodPost, "/api/messages", "alice-token",
		`{"to":{"kind":"user","id":99},"blob":"x","nonce":"y","algorithm":"AES"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleActiveChats(t *testing.T) {
	f := newFixture()
	f.conversations.partners = []*models.User{
		{ID: 2, Username: "bob"},
		{ID: 3, Username: "carol"},
	}

	rec := f.do(t, http.MethodGet, "/api/chats/active", "alice-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[[]userResponse](t, rec)
	if len(resp) != 2 {
		t.Errorf("partners = %+v", resp)
	}
}

func TestHandleFileURLs(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/files/upload-url", "alice-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	up := decodeBody[map[string]string](t, rec)
	if up["key"] == "" || up["url"] == "" {
		t.Errorf("upload response = %v", up)
	}

	rec = f.do(t, http.MethodGet, "/api/files/download-url?key="+up["key"], "alice-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d, body %s", rec.Code, rec.Body.String())
	}
	down := decodeBody[map[string]string](t, rec)
	if down["url"] != "https://s3.test/get/"+up["key"] {
		t.Errorf("download url = %q", down["url"])
	}

	rec = f.do(t, http.MethodGet, "/api/files/download-url", "alice-token", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing key status = %d, want 400", rec.Code)
	}
}
