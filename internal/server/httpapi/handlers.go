package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dkovalev0/ciphertalk/internal/common"
	"github.com/dkovalev0/ciphertalk/internal/server/models"
	"github.com/dkovalev0/ciphertalk/internal/server/services"
)

// HandleHandoff finishes an external identity-provider login and returns the
// user row plus a bearer token. The provider verification happened upstream;
// this endpoint trusts its inputs the way the reverse proxy forwards them.
func (s *Server) HandleHandoff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req handoffRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid input")
		return
	}
	user, token, err := s.identity.HandoffLogin(r.Context(), req.Email, req.DisplayName, req.Picture)
	if err != nil {
		s.log.Error(r.Context(), "handoff failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  toUserResponse(user),
		"token": token,
	})
}

// HandleMe returns the caller's own row on GET and renames on PUT. A rename
// also re-issues the token so its subject matches the new username.
func (s *Server) HandleMe(w http.ResponseWriter, r *http.Request, user *models.User) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, toUserResponse(user))
	case http.MethodPut:
		var req renameRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid input")
			return
		}
		renamed, err := s.relationships.RenameUser(r.Context(), user.ID, req.Username)
		if err != nil {
			s.log.Error(r.Context(), "rename failed", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "rename failed")
			return
		}
		if renamed == nil {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		token, err := s.identity.IssueToken(renamed)
		if err != nil {
			s.log.Error(r.Context(), "token refresh failed", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "rename failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":  toUserResponse(renamed),
			"token": token,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) HandleContacts(w http.ResponseWriter, r *http.Request, user *models.User) {
	switch r.Method {
	case http.MethodGet:
		contacts, err := s.relationships.ListContacts(r.Context(), user.ID)
		if err != nil {
			s.log.Error(r.Context(), "listing contacts failed", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "list failed")
			return
		}
		resp := make([]contactResponse, 0, len(contacts))
		for _, c := range contacts {
			resp = append(resp, toContactResponse(c))
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var req addContactRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid input")
			return
		}
		contact, err := s.relationships.AddContact(r.Context(), user.ID, req.Username)
		if err != nil {
			s.log.Error(r.Context(), "adding contact failed", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "add failed")
			return
		}
		if contact == nil {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeJSON(w, http.StatusCreated, toContactResponse(contact))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) HandleGroups(w http.ResponseWriter, r *http.Request, user *models.User) {
	switch r.Method {
	case http.MethodGet:
		groups, err := s.relationships.ListUserGroups(r.Context(), user.ID)
		if err != nil {
			s.log.Error(r.Context(), "listing groups failed", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "list failed")
			return
		}
		resp := make([]groupResponse, 0, len(groups))
		for _, g := range groups {
			resp = append(resp, toGroupResponse(g))
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var req createGroupRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid input")
			return
		}
		group, err := s.relationships.CreateGroup(r.Context(), user.ID, req.Name, req.Members)
		if err != nil {
			s.log.Error(r.Context(), "creating group failed", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "create failed")
			return
		}
		writeJSON(w, http.StatusCreated, toGroupResponse(group))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// HandleGroupSubroutes serves /api/groups/{id}/members.
func (s *Server) HandleGroupSubroutes(w http.ResponseWriter, r *http.Request, user *models.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/groups/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != "members" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	groupID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return
	}

	memberIDs, err := s.relationships.ListGroupMemberIDs(r.Context(), groupID)
	if err != nil {
		s.log.Error(r.Context(), "listing members failed", "group_id", groupID, "error", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}

	// Rosters are visible to members only.
	isMember := false
	for _, id := range memberIDs {
		if id == user.ID {
			isMember = true
			break
		}
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	writeJSON(w, http.StatusOK, map[string][]int64{"member_ids": memberIDs})
}

func (s *Server) HandleMessages(w http.ResponseWriter, r *http.Request, user *models.User) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req sendMessageRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid input")
		return
	}
	to, ok := parseAddress(req.To)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address kind")
		return
	}

	payload := services.Payload{Blob: req.Blob, Nonce: req.Nonce, Algorithm: req.Algorithm}
	message, err := s.messages.Send(r.Context(), user.ID, to, payload, req.IsFile)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidAddress):
			writeError(w, http.StatusBadRequest, "invalid address")
		case errors.Is(err, common.ErrorNotFound):
			writeError(w, http.StatusNotFound, "recipient not found")
		default:
			s.log.Error(r.Context(), "sending message failed", "sender_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "send failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(message))
}

func (s *Server) HandleActiveChats(w http.ResponseWriter, r *http.Request, user *models.User) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	partners, err := s.conversations.ActivePartners(r.Context(), user.ID)
	if err != nil {
		s.log.Error(r.Context(), "deriving active chats failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	resp := make([]userResponse, 0, len(partners))
	for _, p := range partners {
		resp = append(resp, toUserResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) HandleUploadURL(w http.ResponseWriter, r *http.Request, user *models.User) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	key, url, err := s.messages.PresignUpload(r.Context())
	if err != nil {
		s.log.Error(r.Context(), "presigning upload failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "presign failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "url": url})
}

func (s *Server) HandleDownloadURL(w http.ResponseWriter, r *http.Request, user *models.User) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing key")
		return
	}
	url, err := s.messages.PresignDownload(r.Context(), key)
	if err != nil {
		s.log.Error(r.Context(), "presigning download failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "presign failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
