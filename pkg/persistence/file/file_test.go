package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/persistence"
	"github.com/craftdesk/flowline/pkg/testutil"
)

func TestDefinitionSaveIncrementsVersion(t *testing.T) {
	p := NewPersistence(t.TempDir())
	defs := p.DefinitionRepository()

	def := testutil.CreateTestDefinition()

	saved, err := defs.Save(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)

	saved, err = defs.Save(context.Background(), saved)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)
}

func TestDefinitionSaveStaleVersionConflicts(t *testing.T) {
	p := NewPersistence(t.TempDir())
	defs := p.DefinitionRepository()

	def := testutil.CreateTestDefinition()

	first, err := defs.Save(context.Background(), def)
	require.NoError(t, err)

	// Two editors read version 1; the second save must lose.
	winner := first.Clone()
	winner.Name = "Winner"
	_, err = defs.Save(context.Background(), winner)
	require.NoError(t, err)

	loser := first.Clone()
	loser.Name = "Loser"
	_, err = defs.Save(context.Background(), loser)
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)

	stored, err := defs.GetByID(context.Background(), def.ID)
	require.NoError(t, err)
	assert.Equal(t, "Winner", stored.Name)
}

func TestDefinitionGetUnknown(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.DefinitionRepository().GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrDefinitionNotFound)
}

func TestActiveAliasLifecycle(t *testing.T) {
	p := NewPersistence(t.TempDir())
	defs := p.DefinitionRepository()
	ctx := context.Background()

	_, err := defs.ActiveAlias(ctx)
	assert.ErrorIs(t, err, persistence.ErrDefinitionNotFound, "no alias before first activation")

	defA, err := defs.Save(ctx, testutil.CreateTestDefinition())
	require.NoError(t, err)
	defB, err := defs.Save(ctx, testutil.CreateTestDefinition())
	require.NoError(t, err)

	alias, err := defs.SetActive(ctx, defA.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, alias.Version)

	resolved, err := defs.GetByID(ctx, models.ActiveDefinitionAlias)
	require.NoError(t, err)
	assert.Equal(t, defA.ID, resolved.ID)

	// Re-pointing with a stale alias version loses.
	_, err = defs.SetActive(ctx, defB.ID, 0)
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)

	alias, err = defs.SetActive(ctx, defB.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, alias.Version)

	resolved, err = defs.GetByID(ctx, models.ActiveDefinitionAlias)
	require.NoError(t, err)
	assert.Equal(t, defB.ID, resolved.ID)
}

func TestSetActiveUnknownTarget(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.DefinitionRepository().SetActive(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, persistence.ErrDefinitionNotFound)
}

func TestDefinitionListSkipsAlias(t *testing.T) {
	p := NewPersistence(t.TempDir())
	defs := p.DefinitionRepository()
	ctx := context.Background()

	saved, err := defs.Save(ctx, testutil.CreateTestDefinition())
	require.NoError(t, err)

	_, err = defs.SetActive(ctx, saved.ID, 0)
	require.NoError(t, err)

	summaries, err := defs.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, saved.ID, summaries[0].ID)
}

func TestProjectRoundTrip(t *testing.T) {
	p := NewPersistence(t.TempDir())
	projects := p.ProjectRepository()
	ctx := context.Background()

	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def)

	require.NoError(t, projects.Save(ctx, project))

	loaded, err := projects.GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.Name, loaded.Name)
	assert.Equal(t, project.CurrentStageID, loaded.CurrentStageID)

	require.NoError(t, projects.Delete(ctx, project.ID))

	_, err = projects.GetByID(ctx, project.ID)
	assert.ErrorIs(t, err, persistence.ErrProjectNotFound)
}

func TestRevisionImmutability(t *testing.T) {
	p := NewPersistence(t.TempDir())
	revisions := p.RevisionRepository()
	ctx := context.Background()

	revision := &models.Revision{
		ID:             "rev-1",
		ProjectID:      "proj-1",
		RevisionNumber: 1,
		SnapshotJSON:   []byte(`{}`),
	}

	require.NoError(t, revisions.Save(ctx, revision))

	err := revisions.Save(ctx, revision)
	assert.Error(t, err, "a stored revision can never be overwritten")
}

func TestRevisionListAndGet(t *testing.T) {
	p := NewPersistence(t.TempDir())
	revisions := p.RevisionRepository()
	ctx := context.Background()

	for n := 1; n <= 3; n++ {
		require.NoError(t, revisions.Save(ctx, &models.Revision{
			ID:             "rev-" + string(rune('0'+n)),
			ProjectID:      "proj-1",
			RevisionNumber: n,
			SnapshotJSON:   []byte(`{}`),
		}))
	}

	listed, err := revisions.ListByProject(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, 1, listed[0].RevisionNumber)
	assert.Equal(t, 3, listed[2].RevisionNumber)

	second, err := revisions.GetByNumber(ctx, "proj-1", 2)
	require.NoError(t, err)
	assert.Equal(t, "rev-2", second.ID)

	_, err = revisions.GetByNumber(ctx, "proj-1", 9)
	assert.ErrorIs(t, err, persistence.ErrRevisionNotFound)

	empty, err := revisions.ListByProject(ctx, "proj-2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRoleVocabulary(t *testing.T) {
	p := NewPersistence(t.TempDir())
	roles := p.RoleRepository()
	ctx := context.Background()

	require.NoError(t, roles.Add(ctx, "designer"))
	require.NoError(t, roles.Add(ctx, "client"))

	assert.ErrorIs(t, roles.Add(ctx, "designer"), persistence.ErrRoleExists)

	listed, err := roles.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"designer", "client"}, listed)

	require.NoError(t, roles.Remove(ctx, "client"))
	assert.ErrorIs(t, roles.Remove(ctx, "client"), persistence.ErrRoleNotFound)
}

func TestDocumentCounts(t *testing.T) {
	p := NewPersistence(t.TempDir())
	docs := p.DocumentRepository()
	ctx := context.Background()

	require.NoError(t, docs.Record(ctx, "proj-1", "PURCHASE_ORDER", "purchase order", "po.pdf"))
	require.NoError(t, docs.Record(ctx, "proj-1", "PURCHASE_ORDER", "purchase order", "po-2.pdf"))
	require.NoError(t, docs.Record(ctx, "proj-1", "PURCHASE_ORDER", "quote", "quote.pdf"))

	count, err := docs.CountDocuments(ctx, "proj-1", "PURCHASE_ORDER", "purchase order")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = docs.CountDocuments(ctx, "proj-1", "CONCEPT", "purchase order")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = docs.CountDocuments(ctx, "proj-2", "PURCHASE_ORDER", "purchase order")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestHealthCheck(t *testing.T) {
	dir := t.TempDir()
	p := NewPersistence(dir)

	assert.NoError(t, p.HealthCheck(context.Background()))
	assert.NoError(t, p.Close(context.Background()))
}
