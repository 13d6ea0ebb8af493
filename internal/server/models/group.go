package models

import "time"

// Group is a named collection with exactly one admin (its creator). The
// admin always holds a membership row, inserted at creation time.
type Group struct {
	ID        int64
	Name      string
	AdminID   int64
	CreatedAt time.Time
}

// GroupMember is a membership edge. A user appears at most once per group.
type GroupMember struct {
	ID      int64
	GroupID int64
	UserID  int64
}
