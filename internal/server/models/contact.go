package models

// Contact is a directed "owner added this user" edge. At most one row exists
// per (owner, target) pair; the constraint lives in the contacts table.
type Contact struct {
	ID            int64
	OwnerID       int64
	ContactUserID int64
	Alias         string // defaults to the target's username at creation time
}
