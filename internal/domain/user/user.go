package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleVisitor  Role = "Visitor"
	RoleResident Role = "Resident"
	RoleAdmin    Role = "Admin"
	RoleSecurity Role = "Security"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleVisitor, RoleResident, RoleAdmin, RoleSecurity:
		return true
	default:
		return false
	}
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	FullName     string    `json:"fullname" bson:"fullname"`
	Phone        string    `json:"phone" bson:"phone"`
	PasswordHash string    `json:"-" bson:"password_hash"` // never expose hash in JSON
	Role         Role      `json:"status" bson:"status"`
	IsActive     bool      `json:"is_active" bson:"is_active"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// Identity is what downstream components know about an authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

type NewUserInput struct {
	Email        string
	FullName     string
	Phone        string
	PasswordHash string
	Role         Role
}

func New(in NewUserInput) User {
	now := time.Now().UTC()

	role := in.Role
	if role == "" {
		role = RoleVisitor
	}

	return User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(in.Email),
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: in.PasswordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PendingRegistration never hits storage; it travels inside a signed claim
// until the recipient proves the mailbox and picks a password.
type PendingRegistration struct {
	Email     string    `json:"email"`
	FullName  string    `json:"fullname"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"status"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
	ClaimID   string    `json:"-"`
}
