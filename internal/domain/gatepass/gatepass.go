package gatepass

import (
	"errors"
	"time"
)

type Purpose string

const (
	PurposeEntry Purpose = "entry"
	PurposeExit  Purpose = "exit"
)

// ExitValidity is the fixed lifetime of every exit pass.
const ExitValidity = 15 * time.Minute

// MaxExpirationMinutes caps an entry pass at one year.
const MaxExpirationMinutes = 366 * 24 * 60

// VisitorToken is a gate pass. ID is the human-typed code and doubles as the primary key.
type VisitorToken struct {
	ID           string    `json:"token_id" bson:"_id"`
	VisitorName  string    `json:"visitor_name" bson:"visitor_name"`
	VisitorPhone string    `json:"visitor_phone" bson:"visitor_phone"`
	ResidentID   string    `json:"resident_id" bson:"resident_id"`
	ExpiresAt    time.Time `json:"expires_at" bson:"expires_at"`
	IsActive     bool      `json:"is_active" bson:"is_active"`
	Purpose      Purpose   `json:"purpose" bson:"purpose"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// Store-level errors. ErrNotFound covers missing, inactive and foreign passes alike.
var (
	ErrNotFound    = errors.New("token not found or already invalidated")
	ErrDuplicateID = errors.New("token id already exists")
	ErrInvalid     = errors.New("invalid gate pass value")
)

// Usable reports whether the pass may be honoured at the gate at instant now.
func (t VisitorToken) Usable(now time.Time) bool {
	return t.IsActive && !now.After(t.ExpiresAt)
}

// Expired ignores the active flag on purpose: validation reports expiry for any record it finds.
func (t VisitorToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func NewEntry(id, residentID, visitorName, visitorPhone string, validFor time.Duration, now time.Time) VisitorToken {
	return VisitorToken{
		ID:           id,
		VisitorName:  visitorName,
		VisitorPhone: visitorPhone,
		ResidentID:   residentID,
		ExpiresAt:    now.Add(validFor),
		IsActive:     true,
		Purpose:      PurposeEntry,
		CreatedAt:    now,
	}
}

// NewExit derives an exit pass from source. The caller owns the new pass.
func NewExit(id string, source VisitorToken, residentID string, now time.Time) VisitorToken {
	return VisitorToken{
		ID:           id,
		VisitorName:  source.VisitorName,
		VisitorPhone: source.VisitorPhone,
		ResidentID:   residentID,
		ExpiresAt:    now.Add(ExitValidity),
		IsActive:     true,
		Purpose:      PurposeExit,
		CreatedAt:    now,
	}
}
