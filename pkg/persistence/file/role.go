package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/craftdesk/flowline/pkg/persistence"
)

// RoleRepository stores the flat role vocabulary in <root>/roles.json.
type RoleRepository struct {
	root string
	mu   sync.Mutex
}

// NewRoleRepository creates a file-backed role repository.
func NewRoleRepository(root string) *RoleRepository {
	return &RoleRepository{root: root}
}

func (rr *RoleRepository) path() string {
	return filepath.Join(rr.root, "roles.json")
}

// List returns the role vocabulary in insertion order.
func (rr *RoleRepository) List(_ context.Context) ([]string, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	return rr.read()
}

// Add appends a role name. Duplicates fail with ErrRoleExists.
func (rr *RoleRepository) Add(_ context.Context, name string) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	roles, err := rr.read()
	if err != nil {
		return err
	}

	if slices.Contains(roles, name) {
		return fmt.Errorf("role %q: %w", name, persistence.ErrRoleExists)
	}

	return rr.write(append(roles, name))
}

// Remove deletes a role name from the vocabulary.
func (rr *RoleRepository) Remove(_ context.Context, name string) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	roles, err := rr.read()
	if err != nil {
		return err
	}

	if !slices.Contains(roles, name) {
		return fmt.Errorf("role %q: %w", name, persistence.ErrRoleNotFound)
	}

	return rr.write(slices.DeleteFunc(roles, func(r string) bool { return r == name }))
}

func (rr *RoleRepository) read() ([]string, error) {
	data, err := os.ReadFile(rr.path())
	if os.IsNotExist(err) {
		return []string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}

	var roles []string
	if err := json.Unmarshal(data, &roles); err != nil {
		return nil, fmt.Errorf("failed to decode roles: %w", err)
	}

	return roles, nil
}

func (rr *RoleRepository) write(roles []string) error {
	if err := os.MkdirAll(rr.root, 0o755); err != nil {
		return fmt.Errorf("failed to create root directory: %w", err)
	}

	data, err := json.MarshalIndent(roles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode roles: %w", err)
	}

	if err := os.WriteFile(rr.path(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write roles: %w", err)
	}

	return nil
}
