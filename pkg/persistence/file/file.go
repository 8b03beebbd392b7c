// Package file provides file-based persistence for definitions, projects,
// revisions, roles and document records. It backs local development and
// tests; production deployments use the postgresql package.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/craftdesk/flowline/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root           string
	definitionRepo *DefinitionRepository
	projectRepo    *ProjectRepository
	revisionRepo   *RevisionRepository
	roleRepo       *RoleRepository
	documentRepo   *DocumentRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" scheme prefix is accepted and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		definitionRepo: NewDefinitionRepository(cleanRoot),
		projectRepo:    NewProjectRepository(cleanRoot),
		revisionRepo:   NewRevisionRepository(cleanRoot),
		roleRepo:       NewRoleRepository(cleanRoot),
		documentRepo:   NewDocumentRepository(cleanRoot),
	}
}

// DefinitionRepository returns the definition repository.
func (fp *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return fp.definitionRepo
}

// ProjectRepository returns the project repository.
func (fp *Persistence) ProjectRepository() persistence.ProjectRepository {
	return fp.projectRepo
}

// RevisionRepository returns the revision repository.
func (fp *Persistence) RevisionRepository() persistence.RevisionRepository {
	return fp.revisionRepo
}

// RoleRepository returns the role repository.
func (fp *Persistence) RoleRepository() persistence.RoleRepository {
	return fp.roleRepo
}

// DocumentRepository returns the document repository.
func (fp *Persistence) DocumentRepository() persistence.DocumentRepository {
	return fp.documentRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file persistence there is none.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
