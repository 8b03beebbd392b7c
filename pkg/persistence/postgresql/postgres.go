// Package postgresql provides PostgreSQL persistence for definitions,
// projects, revisions, roles and document records.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"

	"github.com/craftdesk/flowline/pkg/persistence"
	"github.com/craftdesk/flowline/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	definitionRepo *DefinitionRepository
	projectRepo    *ProjectRepository
	revisionRepo   *RevisionRepository
	roleRepo       *RoleRepository
	documentRepo   *DocumentRepository
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		definitionRepo: &DefinitionRepository{db: database},
		projectRepo:    &ProjectRepository{db: database},
		revisionRepo:   &RevisionRepository{db: database},
		roleRepo:       &RoleRepository{db: database},
		documentRepo:   &DocumentRepository{db: database},
	}, nil
}

// DefinitionRepository returns the definition repository.
func (p *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return p.definitionRepo
}

// ProjectRepository returns the project repository.
func (p *Persistence) ProjectRepository() persistence.ProjectRepository {
	return p.projectRepo
}

// RevisionRepository returns the revision repository.
func (p *Persistence) RevisionRepository() persistence.RevisionRepository {
	return p.revisionRepo
}

// RoleRepository returns the role repository.
func (p *Persistence) RoleRepository() persistence.RoleRepository {
	return p.roleRepo
}

// DocumentRepository returns the document repository.
func (p *Persistence) DocumentRepository() persistence.DocumentRepository {
	return p.documentRepo
}

// HealthCheck pings the database.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the connection pool.
func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}
