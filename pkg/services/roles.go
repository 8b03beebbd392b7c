package services

import (
	"context"
	"log/slog"

	"github.com/craftdesk/flowline/pkg/persistence"
)

// Roles manages the flat role vocabulary referenced by transition and
// approval rules.
type Roles struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewRoles creates the role service.
func NewRoles(p persistence.Persistence, logger *slog.Logger) *Roles {
	return &Roles{
		persistence: p,
		logger:      logger.With("module", "role_service"),
	}
}

// List returns every known role name.
func (s *Roles) List(ctx context.Context) ([]string, error) {
	return s.persistence.RoleRepository().List(ctx)
}

// Add inserts a role name into the vocabulary.
func (s *Roles) Add(ctx context.Context, name string) error {
	if name == "" {
		return NewValidationError("Add", "EMPTY_ROLE", "role name is required", ErrInvalidRequest)
	}

	if err := s.persistence.RoleRepository().Add(ctx, name); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Role added", "role", name)

	return nil
}

// Remove deletes a role name. Definitions referencing the role keep working;
// the vocabulary only drives editor suggestions.
func (s *Roles) Remove(ctx context.Context, name string) error {
	if err := s.persistence.RoleRepository().Remove(ctx, name); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Role removed", "role", name)

	return nil
}
