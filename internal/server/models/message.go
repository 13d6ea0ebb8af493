package models

import "time"

// AddressKind selects whether a message targets a single user or a group.
type AddressKind int

const (
	AddressUser AddressKind = iota + 1
	AddressGroup
)

func (k AddressKind) String() string {
	switch k {
	case AddressUser:
		return "user"
	case AddressGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the two defined kinds.
func (k AddressKind) Valid() bool {
	return k == AddressUser || k == AddressGroup
}

// Address is the tagged union of message targets. Keeping the variant in the
// type system means a message can never be both user- and group-addressed;
// the two nullable recipient columns exist only at the SQL boundary.
type Address struct {
	Kind AddressKind
	ID   int64
}

// Message is an addressed, opaque payload. The server treats Blob, Nonce and
// Algorithm as uninterpreted strings; addressing is fixed at creation.
type Message struct {
	ID        int64
	SenderID  int64
	To        Address
	Blob      string // encoded ciphertext
	Nonce     string // nonce or IV, depending on the client algorithm
	Algorithm string // e.g. "AES", "ChaCha20"; open set, not validated
	IsFile    bool
	SentAt    time.Time
}
