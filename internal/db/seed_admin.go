package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/estategate/internal/config"
	"github.com/geocoder89/estategate/internal/domain/user"
	"github.com/geocoder89/estategate/internal/security"
)

// UserWriter is the slice of a user store the seed needs; every store driver satisfies it.
type UserWriter interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) error
}

// EnsureAdminUser creates the bootstrap account from config when it is configured and absent.
func EnsureAdminUser(ctx context.Context, users UserWriter, cfg config.Config, log *slog.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	_, err := users.GetByEmail(ctx, user.NormalizeEmail(cfg.AdminEmail))

	if err == nil {
		return nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	role := user.Role(cfg.AdminRole)
	if !role.IsValid() {
		return fmt.Errorf("admin seed: unknown role %q", cfg.AdminRole)
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	u := user.New(user.NewUserInput{
		Email:        cfg.AdminEmail,
		FullName:     cfg.AdminName,
		Phone:        "-",
		PasswordHash: hash,
		Role:         role,
	})

	if err := users.Create(ctx, u); err != nil && !errors.Is(err, user.ErrEmailTaken) {
		return err
	}

	log.Info("bootstrap account ensured", "email", u.Email, "role", u.Role)
	return nil
}
