// Package httpapi exposes the messaging services over a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dkovalev0/ciphertalk/internal/common"
	"github.com/dkovalev0/ciphertalk/internal/logging"
	"github.com/dkovalev0/ciphertalk/internal/server/models"
	"github.com/dkovalev0/ciphertalk/internal/server/services"
)

var validate = validator.New()

// The server depends on narrow views of the service layer so handler tests
// can substitute stubs.

type IdentityService interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
	HandoffLogin(ctx context.Context, email, displayName, pictureURL string) (*models.User, string, error)
	IssueToken(user *models.User) (string, error)
}

type RelationshipService interface {
	AddContact(ctx context.Context, ownerID int64, targetUsername string) (*models.Contact, error)
	ListContacts(ctx context.Context, userID int64) ([]*models.Contact, error)
	CreateGroup(ctx context.Context, adminID int64, name string, memberUsernames []string) (*models.Group, error)
	ListUserGroups(ctx context.Context, userID int64) ([]*models.Group, error)
	ListGroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	RenameUser(ctx context.Context, userID int64, newUsername string) (*models.User, error)
}

type MessageService interface {
	Send(ctx context.Context, senderID int64, to models.Address, payload services.Payload, isFile bool) (*models.Message, error)
	PresignUpload(ctx context.Context) (key string, url string, err error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

type ConversationService interface {
	ActivePartners(ctx context.Context, userID int64) ([]*models.User, error)
}

type Server struct {
	identity      IdentityService
	relationships RelationshipService
	messages      MessageService
	conversations ConversationService
	log           logging.Logger
}

func NewServer(identity IdentityService, relationships RelationshipService,
	messages MessageService, conversations ConversationService, log logging.Logger) *Server {
	return &Server{
		identity:      identity,
		relationships: relationships,
		messages:      messages,
		conversations: conversations,
		log:           log.With("module", "httpapi"),
	}
}

// Routes wires every endpoint onto a fresh mux. Everything except the
// identity handoff requires a bearer token.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/handoff", s.HandleHandoff)
	mux.HandleFunc("/api/users/me", s.RequireAuth(s.HandleMe))
	mux.HandleFunc("/api/contacts", s.RequireAuth(s.HandleContacts))
	mux.HandleFunc("/api/groups", s.RequireAuth(s.HandleGroups))
	mux.HandleFunc("/api/groups/", s.RequireAuth(s.HandleGroupSubroutes))
	mux.HandleFunc("/api/messages", s.RequireAuth(s.HandleMessages))
	mux.HandleFunc("/api/chats/active", s.RequireAuth(s.HandleActiveChats))
	mux.HandleFunc("/api/files/upload-url", s.RequireAuth(s.HandleUploadURL))
	mux.HandleFunc("/api/files/download-url", s.RequireAuth(s.HandleDownloadURL))
	return mux
}

// Logging wraps a handler with per-request structured logging.
func Logging(log logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info(r.Context(), "request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}

// RequireAuth resolves the bearer token to a live user row before calling
// next. An invalid token and a valid token for a deleted account map to
// different statuses so clients know whether to re-login or reset state.
func (s *Server) RequireAuth(next func(http.ResponseWriter, *http.Request, *models.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.identity.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				writeError(w, http.StatusNotFound, "account no longer exists")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	}
}

func extractToken(r *http.Request) string {
	auth := r.Header.Get(common.AuthorizationHeaderName)
	if strings.HasPrefix(auth, common.BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(auth, common.BearerPrefix))
	}
	return ""
}

// decodeValid decodes the JSON body into v and runs struct validation.
func decodeValid(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return validate.Struct(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
