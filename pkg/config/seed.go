// Package config provides seed configuration loading for bootstrap.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/persistence"
	"github.com/craftdesk/flowline/pkg/workflow"
)

// SeedFile is the structure of the optional seed YAML file. It provisions
// the role vocabulary and initial workflow definitions on first boot.
type SeedFile struct {
	Roles       []string         `yaml:"roles"`
	Definitions []map[string]any `yaml:"definitions"`

	// Activate names the definition ID the "active" alias should point at
	// after seeding. Empty leaves the alias untouched.
	Activate string `yaml:"activate"`
}

// LoadSeedFile parses a seed YAML file.
func LoadSeedFile(filepath string) (*SeedFile, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", filepath, err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", filepath, err)
	}

	return &seed, nil
}

// Apply provisions the seed into persistence. Seeding is idempotent: roles
// and definitions that already exist are left as they are, so a restart with
// the same file never clobbers live edits.
func (s *SeedFile) Apply(ctx context.Context, logger *slog.Logger, p persistence.Persistence) error {
	for _, role := range s.Roles {
		err := p.RoleRepository().Add(ctx, role)
		if err != nil && !errors.Is(err, persistence.ErrRoleExists) {
			return fmt.Errorf("failed to seed role %s: %w", role, err)
		}
	}

	for _, doc := range s.Definitions {
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode seed definition: %w", err)
		}

		if err := models.ValidateDefinitionDocument(raw); err != nil {
			return fmt.Errorf("invalid seed definition: %w", err)
		}

		var def models.WorkflowDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			return fmt.Errorf("failed to decode seed definition: %w", err)
		}

		if err := workflow.ValidateDefinition(&def); err != nil {
			return fmt.Errorf("invalid seed definition %s: %w", def.ID, err)
		}

		if _, err := p.DefinitionRepository().GetByID(ctx, def.ID); err == nil {
			logger.InfoContext(ctx, "Seed definition already present", "definition_id", def.ID)

			continue
		} else if !errors.Is(err, persistence.ErrDefinitionNotFound) {
			return fmt.Errorf("failed to check seed definition %s: %w", def.ID, err)
		}

		def.Version = 0

		saved, err := p.DefinitionRepository().Save(ctx, &def)
		if err != nil {
			return fmt.Errorf("failed to seed definition %s: %w", def.ID, err)
		}

		logger.InfoContext(ctx, "Seed definition created", "definition_id", saved.ID, "name", saved.Name)
	}

	if s.Activate != "" {
		if err := s.activate(ctx, logger, p); err != nil {
			return err
		}
	}

	return nil
}

// activate points the alias at the configured definition unless an alias
// already exists. An operator-made activation always wins over the seed.
func (s *SeedFile) activate(ctx context.Context, logger *slog.Logger, p persistence.Persistence) error {
	_, err := p.DefinitionRepository().ActiveAlias(ctx)
	if err == nil {
		return nil
	}

	if !errors.Is(err, persistence.ErrDefinitionNotFound) {
		return fmt.Errorf("failed to check active alias: %w", err)
	}

	alias, err := p.DefinitionRepository().SetActive(ctx, s.Activate, 0)
	if err != nil {
		return fmt.Errorf("failed to activate seed definition %s: %w", s.Activate, err)
	}

	logger.InfoContext(ctx, "Seed definition activated", "definition_id", alias.TargetID)

	return nil
}
