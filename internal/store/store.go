// Package store provides learner profile persistence.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/writepal/internal/domain"
	"github.com/containerd/errdefs"
)

// Repository defines the interface for persisting learner profiles.
type Repository interface {
	// GetProfile retrieves a profile with its submission history.
	// It returns nil, nil when the learner is unknown.
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)

	// UpsertProfile creates or replaces a profile. A non-empty History
	// replaces the stored history.
	UpsertProfile(ctx context.Context, profile *domain.Profile) error

	// AppendSubmission adds one essay to the learner's history, creating an
	// empty profile first when needed.
	AppendSubmission(ctx context.Context, userID string, sub domain.Submission) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the configured backend.
func Open(driver, sqlitePath, postgresURL string) (Repository, error) {
	switch strings.ToLower(driver) {
	case DriverSQLite, "":
		return NewSQLite(sqlitePath)
	case DriverPostgres:
		return NewPostgres(postgresURL)
	default:
		return nil, fmt.Errorf("unknown database driver %q: %w", driver, errdefs.ErrInvalidArgument)
	}
}

// SeedDemo stores the demo learner's profile unless it already exists.
func SeedDemo(ctx context.Context, repo Repository, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	existing, err := repo.GetProfile(ctx, domain.DemoUserID)
	if err != nil {
		return fmt.Errorf("check demo profile: %w", err)
	}
	if existing != nil {
		return nil
	}
	demo := domain.DemoProfile()
	if err := repo.UpsertProfile(ctx, &demo); err != nil {
		return fmt.Errorf("seed demo profile: %w", err)
	}
	logger.Info("Seeded demo profile", "user_id", demo.UserID)
	return nil
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required: %w", errdefs.ErrInvalidArgument)
	}
	return nil
}
