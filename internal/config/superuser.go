package config

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SuperuserStore is satisfied by users.UsersRepository.
type SuperuserStore interface {
	EnsureSuperuser(ctx context.Context, username, email, passwordHash string) (bool, error)
}

// CreateDefaultAdmin makes sure the ADMIN_* account exists. It reports whether it was created.
// Nothing is created while ADMIN_PASSWORD is unset.
func CreateDefaultAdmin(ctx context.Context, cfg *Config, users SuperuserStore) (bool, error) {
	if cfg.AdminPassword == "" {
		return false, nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}

	created, err := users.EnsureSuperuser(ctx, cfg.AdminUsername, cfg.AdminEmail, string(hashedPassword))
	if err != nil {
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}
	return created, nil
}
