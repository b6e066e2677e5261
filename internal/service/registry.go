package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/estategate/internal/domain/gatepass"
	"github.com/geocoder89/estategate/internal/domain/user"
	"github.com/geocoder89/estategate/internal/utils"
	"go.opentelemetry.io/otel/attribute"
)

// VisitorTokenStore is the registry's view of storage.
type VisitorTokenStore interface {
	Create(ctx context.Context, t gatepass.VisitorToken) error
	FindActiveByID(ctx context.Context, id string) (gatepass.VisitorToken, error)
	FindActiveByResident(ctx context.Context, residentID string) ([]gatepass.VisitorToken, error)
	BulkDeactivateByResident(ctx context.Context, residentID string) (int64, error)
	// ReplaceWithExit deactivates the active pass sourceID owned by residentID and
	// inserts exit in one step. gatepass.ErrNotFound if the source no longer qualifies.
	ReplaceWithExit(ctx context.Context, sourceID, residentID string, exit gatepass.VisitorToken) error
}

// PassRecorder receives lifecycle counts; observability.Prom implements it.
type PassRecorder interface {
	PassIssued(purpose string)
	PassValidated(result string)
}

const maxCodeAttempts = 5

var (
	issuerRoles    = []user.Role{user.RoleResident, user.RoleAdmin}
	validatorRoles = []user.Role{user.RoleSecurity}
)

type EntryRequest struct {
	VisitorName       string
	VisitorPhone      string
	ExpirationMinutes int
}

// IssuedPass is what a resident gets back: the code and a spoken-style lifetime.
type IssuedPass struct {
	TokenID   string
	ExpiresIn string
	ExpiresAt time.Time
}

type PassDetails struct {
	VisitorName  string
	VisitorPhone string
	ExpiresAt    time.Time
	Purpose      gatepass.Purpose
}

type Registry struct {
	tokens  VisitorTokenStore
	newCode gatepass.CodeGenerator
	now     func() time.Time
	metrics PassRecorder
	log     *slog.Logger
}

type RegistryOption func(*Registry)

func WithCodeGenerator(gen gatepass.CodeGenerator) RegistryOption {
	return func(r *Registry) { r.newCode = gen }
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithPassRecorder(rec PassRecorder) RegistryOption {
	return func(r *Registry) { r.metrics = rec }
}

func WithRegistryLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

func NewRegistry(tokens VisitorTokenStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		tokens:  tokens,
		newCode: gatepass.RandomCode,
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GenerateEntry retires every active pass of the caller, then mints a fresh entry pass.
// The two steps are not atomic; two concurrent calls from one resident may both survive.
func (r *Registry) GenerateEntry(ctx context.Context, caller user.Identity, req EntryRequest) (pass IssuedPass, err error) {
	ctx, span := startSpan(ctx, "gatepass.generate_entry", attribute.String("resident.id", caller.UserID))
	defer endSpan(span, &err)

	if !caller.Role.In(issuerRoles...) {
		return IssuedPass{}, ErrForbidden
	}

	name := strings.TrimSpace(req.VisitorName)
	phone := strings.TrimSpace(req.VisitorPhone)

	if utils.AnyBlank(name, phone) {
		return IssuedPass{}, fmt.Errorf("%w: missing required fields", ErrValidation)
	}
	if req.ExpirationMinutes <= 0 || req.ExpirationMinutes > gatepass.MaxExpirationMinutes {
		return IssuedPass{}, fmt.Errorf("%w: invalid expiration value", ErrValidation)
	}

	retired, err := r.tokens.BulkDeactivateByResident(ctx, caller.UserID)
	if err != nil {
		return IssuedPass{}, fmt.Errorf("deactivate previous passes: %w", err)
	}

	validFor := time.Duration(req.ExpirationMinutes) * time.Minute

	tok, err := r.insertWithFreshCode(ctx, func(code string) (gatepass.VisitorToken, error) {
		t := gatepass.NewEntry(code, caller.UserID, name, phone, validFor, r.now())
		return t, r.tokens.Create(ctx, t)
	})
	if err != nil {
		return IssuedPass{}, err
	}

	r.recordIssued(gatepass.PurposeEntry)
	r.log.InfoContext(ctx, "gate pass issued",
		"purpose", gatepass.PurposeEntry,
		"resident_id", caller.UserID,
		"retired", retired,
		"expires_at", tok.ExpiresAt,
	)

	return IssuedPass{
		TokenID:   tok.ID,
		ExpiresIn: utils.FormatTimespan(validFor),
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

// Validate is read-only: an expired pass is reported, never flipped.
func (r *Registry) Validate(ctx context.Context, caller user.Identity, tokenID string) (details PassDetails, err error) {
	ctx, span := startSpan(ctx, "gatepass.validate")
	defer endSpan(span, &err)

	if !caller.Role.In(validatorRoles...) {
		return PassDetails{}, ErrForbidden
	}

	tok, err := r.tokens.FindActiveByID(ctx, normalizeCode(tokenID))
	if err != nil {
		if errors.Is(err, gatepass.ErrNotFound) {
			r.recordValidated("not_found")
			return PassDetails{}, ErrNotFound
		}
		return PassDetails{}, fmt.Errorf("lookup pass: %w", err)
	}

	if tok.Expired(r.now()) {
		r.recordValidated("expired")
		return PassDetails{}, ErrExpired
	}

	r.recordValidated("valid")

	return PassDetails{
		VisitorName:  tok.VisitorName,
		VisitorPhone: tok.VisitorPhone,
		ExpiresAt:    tok.ExpiresAt,
		Purpose:      tok.Purpose,
	}, nil
}

// GenerateExit converts one of the caller's active passes into a 15 minute exit pass.
// A pass owned by someone else is reported exactly like a missing one.
func (r *Registry) GenerateExit(ctx context.Context, caller user.Identity, tokenID string) (pass IssuedPass, err error) {
	ctx, span := startSpan(ctx, "gatepass.generate_exit", attribute.String("resident.id", caller.UserID))
	defer endSpan(span, &err)

	if !caller.Role.In(issuerRoles...) {
		return IssuedPass{}, ErrForbidden
	}

	source, err := r.tokens.FindActiveByID(ctx, normalizeCode(tokenID))
	if err != nil {
		if errors.Is(err, gatepass.ErrNotFound) {
			return IssuedPass{}, ErrNotFound
		}
		return IssuedPass{}, fmt.Errorf("lookup pass: %w", err)
	}
	if source.ResidentID != caller.UserID {
		return IssuedPass{}, ErrNotFound
	}

	exit, err := r.insertWithFreshCode(ctx, func(code string) (gatepass.VisitorToken, error) {
		t := gatepass.NewExit(code, source, caller.UserID, r.now())
		return t, r.tokens.ReplaceWithExit(ctx, source.ID, caller.UserID, t)
	})
	if err != nil {
		if errors.Is(err, gatepass.ErrNotFound) {
			return IssuedPass{}, ErrNotFound
		}
		return IssuedPass{}, err
	}

	r.recordIssued(gatepass.PurposeExit)
	r.log.InfoContext(ctx, "gate pass issued",
		"purpose", gatepass.PurposeExit,
		"resident_id", caller.UserID,
		"source_id", source.ID,
		"expires_at", exit.ExpiresAt,
	)

	return IssuedPass{
		TokenID:   exit.ID,
		ExpiresIn: utils.FormatTimespan(gatepass.ExitValidity),
		ExpiresAt: exit.ExpiresAt,
	}, nil
}

// Active lists the caller's currently active passes, expired ones included.
func (r *Registry) Active(ctx context.Context, caller user.Identity) (out []gatepass.VisitorToken, err error) {
	ctx, span := startSpan(ctx, "gatepass.active")
	defer endSpan(span, &err)

	if !caller.Role.In(issuerRoles...) {
		return nil, ErrForbidden
	}

	out, err = r.tokens.FindActiveByResident(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list active passes: %w", err)
	}
	return out, nil
}

// insertWithFreshCode retries insert with a new code while the store reports a collision.
func (r *Registry) insertWithFreshCode(ctx context.Context, insert func(code string) (gatepass.VisitorToken, error)) (gatepass.VisitorToken, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return gatepass.VisitorToken{}, fmt.Errorf("generate pass code: %w", err)
		}

		tok, err := insert(code)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, gatepass.ErrDuplicateID) {
			return gatepass.VisitorToken{}, err
		}

		r.log.WarnContext(ctx, "gate pass code collision, retrying", "attempt", attempt)
	}
	return gatepass.VisitorToken{}, ErrCodeUnavailable
}

func (r *Registry) recordIssued(purpose gatepass.Purpose) {
	if r.metrics != nil {
		r.metrics.PassIssued(string(purpose))
	}
}

func (r *Registry) recordValidated(result string) {
	if r.metrics != nil {
		r.metrics.PassValidated(result)
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
