package postgresql

// migrations maps schema versions to the DDL that introduces them.
// Definitions and projects are stored as JSONB documents: the engine owns
// their shape and the database only needs identity, versioning and a few
// query columns.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_definitions (
				id         TEXT PRIMARY KEY,
				version    INTEGER NOT NULL,
				name       TEXT NOT NULL,
				document   JSONB NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_by TEXT NOT NULL DEFAULT ''
			);

			CREATE TABLE IF NOT EXISTS workflow_active_alias (
				singleton  BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
				target_id  TEXT NOT NULL REFERENCES workflow_definitions(id),
				version    INTEGER NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS projects (
				id         TEXT PRIMARY KEY,
				document   JSONB NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS project_revisions (
				id              TEXT PRIMARY KEY,
				project_id      TEXT NOT NULL,
				revision_number INTEGER NOT NULL,
				document        JSONB NOT NULL,
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (project_id, revision_number)
			);

			CREATE INDEX IF NOT EXISTS idx_project_revisions_project
				ON project_revisions (project_id, revision_number);

			CREATE TABLE IF NOT EXISTS roles (
				name       TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS project_documents (
				id          BIGSERIAL PRIMARY KEY,
				project_id  TEXT NOT NULL,
				stage_id    TEXT NOT NULL,
				label       TEXT NOT NULL,
				filename    TEXT NOT NULL,
				uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_project_documents_count
				ON project_documents (project_id, stage_id, label);
		`,
	}
}
