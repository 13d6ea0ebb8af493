package httpapi

import (
	"time"

	"github.com/dkovalev0/ciphertalk/internal/server/models"
)

type handoffRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,max=128"`
	Picture     string `json:"picture" validate:"omitempty,url"`
}

type renameRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
}

type addContactRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

type createGroupRequest struct {
	Name    string   `json:"name" validate:"required,max=128"`
	Members []string `json:"members" validate:"dive,required,max=64"`
}

type addressRequest struct {
	Kind string `json:"kind" validate:"required,oneof=user group"`
	ID   int64  `json:"id" validate:"required,gt=0"`
}

// Blob carries opaque ciphertext and is deliberately unvalidated: the server
// never inspects its content or length.
type sendMessageRequest struct {
	To        addressRequest `json:"to"`
	Blob      string         `json:"blob"`
	Nonce     string         `json:"nonce" validate:"required"`
	Algorithm string         `json:"algorithm" validate:"required,max=32"`
	IsFile    bool           `json:"is_file"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Picture  string `json:"picture,omitempty"`
	IsSetup  bool   `json:"is_setup"`
}

type contactResponse struct {
	ID            int64  `json:"id"`
	ContactUserID int64  `json:"contact_user_id"`
	Alias         string `json:"alias"`
}

type groupResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	AdminID   int64     `json:"admin_id"`
	CreatedAt time.Time `json:"created_at"`
}

type addressResponse struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

type messageResponse struct {
	ID        int64           `json:"id"`
	SenderID  int64           `json:"sender_id"`
	To        addressResponse `json:"to"`
	Blob      string          `json:"blob"`
	Nonce     string          `json:"nonce"`
	Algorithm string          `json:"algorithm"`
	IsFile    bool            `json:"is_file"`
	SentAt    time.Time       `json:"sent_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		Picture:  u.Picture,
		IsSetup:  u.IsSetup,
	}
}

func toContactResponse(c *models.Contact) contactResponse {
	return contactResponse{ID: c.ID, ContactUserID: c.ContactUserID, Alias: c.Alias}
}

func toGroupResponse(g *models.Group) groupResponse {
	return groupResponse{ID: g.ID, Name: g.Name, AdminID: g.AdminID, CreatedAt: g.CreatedAt}
}

func toMessageResponse(m *models.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		SenderID:  m.SenderID,
		To:        addressResponse{Kind: m.To.Kind.String(), ID: m.To.ID},
		Blob:      m.Blob,
		Nonce:     m.Nonce,
		Algorithm: m.Algorithm,
		IsFile:    m.IsFile,
		SentAt:    m.SentAt,
	}
}

func parseAddress(a addressRequest) (models.Address, bool) {
	switch a.Kind {
	case "user":
		return models.Address{Kind: models.AddressUser, ID: a.ID}, true
	case "group":
		return models.Address{Kind: models.AddressGroup, ID: a.ID}, true
	default:
		return models.Address{}, false
	}
}
