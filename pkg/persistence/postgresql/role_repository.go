package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/craftdesk/flowline/pkg/persistence"
)

// RoleRepository maintains the role vocabulary in a plain table.
type RoleRepository struct {
	db *sql.DB
}

// List returns every known role name in alphabetical order.
func (rr *RoleRepository) List(ctx context.Context) ([]string, error) {
	rows, err := rr.db.QueryContext(ctx, `SELECT name FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]string, 0)

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}

		roles = append(roles, name)
	}

	return roles, rows.Err()
}

// Add inserts a role name into the vocabulary.
func (rr *RoleRepository) Add(ctx context.Context, name string) error {
	_, err := rr.db.ExecContext(ctx, `INSERT INTO roles (name) VALUES ($1)`, name)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return persistence.ErrRoleExists
		}

		return fmt.Errorf("failed to add role %s: %w", name, err)
	}

	return nil
}

// Remove deletes a role name from the vocabulary.
func (rr *RoleRepository) Remove(ctx context.Context, name string) error {
	result, err := rr.db.ExecContext(ctx, `DELETE FROM roles WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to remove role %s: %w", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check remove result for role %s: %w", name, err)
	}

	if affected == 0 {
		return persistence.ErrRoleNotFound
	}

	return nil
}
