// Package models holds the persisted entity types of the ciphertalk server.
// Entities reference each other by id only; relationships are resolved by
// repository lookups, never by embedded object graphs.
package models

import "time"

// User is an identity record anchored to the provider-verified email.
// Email is immutable after creation; Username may change (see
// RelationshipService.RenameUser), and every change marks setup complete.
type User struct {
	ID        int64
	Email     string
	Username  string
	Picture   string // optional avatar reference, empty when unset
	IsSetup   bool
	CreatedAt time.Time
}
