package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/estategate/internal/auth"
	"github.com/geocoder89/estategate/internal/cache"
	"github.com/geocoder89/estategate/internal/domain/user"
	"github.com/geocoder89/estategate/internal/notifications"
	"github.com/geocoder89/estategate/internal/security"
	"github.com/geocoder89/estategate/internal/utils"
	"go.opentelemetry.io/otel/attribute"
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	// Create returns user.ErrEmailTaken when the email is already stored.
	Create(ctx context.Context, u user.User) error
}

// ClaimLedger records redeemed registration claims. MarkRedeemed reports false on reuse.
type ClaimLedger interface {
	MarkRedeemed(ctx context.Context, claimID string, until time.Time) (bool, error)
}

const verificationSubject = "Verify Your Email"

type AccountsConfig struct {
	FrontendURL    string
	MailFrom       string
	LoginAccessTTL time.Duration
}

type Accounts struct {
	users    UserStore
	tokens   *auth.Manager
	mailer   notifications.Notifier
	ledger   ClaimLedger
	cfg      AccountsConfig
	userByID *cache.Cache[user.User]
	log      *slog.Logger
}

type AccountsOption func(*Accounts)

func WithClaimLedger(l ClaimLedger) AccountsOption {
	return func(a *Accounts) { a.ledger = l }
}

func WithUserCache(c *cache.Cache[user.User]) AccountsOption {
	return func(a *Accounts) { a.userByID = c }
}

func WithAccountsLogger(log *slog.Logger) AccountsOption {
	return func(a *Accounts) { a.log = log }
}

func NewAccounts(users UserStore, tokens *auth.Manager, mailer notifications.Notifier, cfg AccountsConfig, opts ...AccountsOption) *Accounts {
	if cfg.LoginAccessTTL <= 0 {
		cfg.LoginAccessTTL = 24 * time.Hour
	}

	a := &Accounts{
		users:  users,
		tokens: tokens,
		mailer: mailer,
		cfg:    cfg,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type RegisterInput struct {
	FullName string
	Email    string
	Phone    string
	Role     string
}

// Credentials is the session pair handed to a caller after verify or login.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Register signs the pending registration into a claim and mails the verification link.
// On delivery failure the claim is still returned alongside an ErrDelivery error.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (claim string, pending user.PendingRegistration, err error) {
	ctx, span := startSpan(ctx, "accounts.register")
	defer endSpan(span, &err)

	fullName := strings.TrimSpace(in.FullName)
	email := user.NormalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)

	if utils.AnyBlank(fullName, email, phone) {
		return "", user.PendingRegistration{}, fmt.Errorf("%w: missing required fields", ErrValidation)
	}

	role := user.Role(utils.FirstNonEmpty(strings.TrimSpace(in.Role), string(user.RoleVisitor)))
	if !role.IsValid() {
		return "", user.PendingRegistration{}, fmt.Errorf("%w: unknown status %q", ErrValidation, role)
	}

	claim, pending, err = a.tokens.IssueRegistrationClaim(user.PendingRegistration{
		Email:    email,
		FullName: fullName,
		Phone:    phone,
		Role:     role,
	})
	if err != nil {
		return "", user.PendingRegistration{}, fmt.Errorf("issue registration claim: %w", err)
	}

	link := a.cfg.FrontendURL + "/api/auth/verify/" + claim
	a.log.DebugContext(ctx, "verification link issued", "email", email, "link", link)

	sendErr := a.mailer.Send(ctx, notifications.Message{
		Subject: verificationSubject,
		Body:    "Click this link to verify your email: " + link,
		From:    a.cfg.MailFrom,
		To:      []string{email},
	})
	if sendErr != nil {
		a.log.ErrorContext(ctx, "verification email failed", "email", email, "err", sendErr)
		return claim, pending, fmt.Errorf("%w: %v", ErrDelivery, sendErr)
	}

	return claim, pending, nil
}

// Verify redeems a registration claim. Checks run in a fixed order: claim validity,
// email conflict, password presence.
func (a *Accounts) Verify(ctx context.Context, claim, password string) (creds Credentials, err error) {
	ctx, span := startSpan(ctx, "accounts.verify")
	defer endSpan(span, &err)

	pending, err := a.tokens.ParseRegistrationClaim(claim)
	if err != nil {
		if errors.Is(err, auth.ErrClaimExpired) {
			return Credentials{}, ErrClaimExpired
		}
		return Credentials{}, ErrClaimInvalid
	}

	span.SetAttributes(attribute.String("claim.id", pending.ClaimID))

	_, err = a.users.GetByEmail(ctx, pending.Email)
	switch {
	case err == nil:
		return Credentials{}, ErrConflict
	case !errors.Is(err, user.ErrNotFound):
		return Credentials{}, fmt.Errorf("lookup user: %w", err)
	}

	if password == "" {
		return Credentials{}, fmt.Errorf("%w: password is required for verification", ErrValidation)
	}

	if a.ledger != nil && pending.ClaimID != "" {
		fresh, err := a.ledger.MarkRedeemed(ctx, pending.ClaimID, pending.ExpiresAt)
		if err != nil {
			return Credentials{}, fmt.Errorf("record claim redemption: %w", err)
		}
		if !fresh {
			return Credentials{}, ErrConflict
		}
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return Credentials{}, fmt.Errorf("hash password: %w", err)
	}

	u := user.New(user.NewUserInput{
		Email:        pending.Email,
		FullName:     pending.FullName,
		Phone:        pending.Phone,
		PasswordHash: hash,
		Role:         pending.Role,
	})

	if err := a.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return Credentials{}, ErrConflict
		}
		return Credentials{}, fmt.Errorf("create user: %w", err)
	}

	a.log.InfoContext(ctx, "user verified", "user_id", u.ID, "role", u.Role)

	access, err := a.tokens.GenerateAccessToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		return Credentials{}, fmt.Errorf("issue access token: %w", err)
	}

	return a.withRefresh(u, access)
}

// Login issues a pair whose access credential lives for the longer login window.
func (a *Accounts) Login(ctx context.Context, email, password string) (creds Credentials, err error) {
	ctx, span := startSpan(ctx, "accounts.login")
	defer endSpan(span, &err)

	u, err := a.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Credentials{}, ErrAuth
		}
		return Credentials{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := security.CheckPassword(u.PasswordHash, password); err != nil {
		return Credentials{}, ErrAuth
	}
	if !u.IsActive {
		return Credentials{}, ErrAuth
	}

	access, err := a.tokens.GenerateAccessTokenTTL(u.ID, u.Email, string(u.Role), a.cfg.LoginAccessTTL)
	if err != nil {
		return Credentials{}, fmt.Errorf("issue access token: %w", err)
	}

	return a.withRefresh(u, access)
}

// Refresh exchanges a refresh credential for a new access credential.
func (a *Accounts) Refresh(ctx context.Context, refreshToken string) (access string, err error) {
	ctx, span := startSpan(ctx, "accounts.refresh")
	defer endSpan(span, &err)

	claims, err := a.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", ErrAuth
	}

	u, err := a.activeUser(ctx, claims.UserID)
	if err != nil {
		return "", err
	}

	access, err = a.tokens.GenerateAccessTokenTTL(u.ID, u.Email, string(u.Role), a.cfg.LoginAccessTTL)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return access, nil
}

// Authenticate resolves an access credential to the caller identity, using the stored
// role rather than the one baked into the token.
func (a *Accounts) Authenticate(ctx context.Context, accessToken string) (id user.Identity, err error) {
	claims, err := a.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return user.Identity{}, ErrUnauthenticated
	}

	u, err := a.activeUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrAuth) {
			return user.Identity{}, ErrUnauthenticated
		}
		return user.Identity{}, err
	}
	return u.Identity(), nil
}

func (a *Accounts) Me(ctx context.Context, caller user.Identity) (user.User, error) {
	u, err := a.users.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUnauthenticated
		}
		return user.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

func (a *Accounts) activeUser(ctx context.Context, userID string) (user.User, error) {
	if a.userByID != nil {
		if u, ok := a.userByID.Get(userID); ok {
			return u, nil
		}
	}

	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrAuth
		}
		return user.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		return user.User{}, ErrAuth
	}

	if a.userByID != nil {
		a.userByID.Set(userID, u)
	}
	return u, nil
}

func (a *Accounts) withRefresh(u user.User, access string) (Credentials, error) {
	refresh, _, _, err := a.tokens.GenerateRefreshToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		return Credentials{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}
