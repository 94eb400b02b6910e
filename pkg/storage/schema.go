package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Timestamps are stored as fixed-width UTC text so they sort and compare
// lexically on every backend.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS policies (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    template_code TEXT NOT NULL,
    status TEXT NOT NULL,
    revision BIGINT NOT NULL,
    current_version INTEGER NOT NULL DEFAULT 0,
    next_review_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    document TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_policies_org ON policies(organization_id)`,
	`CREATE INDEX IF NOT EXISTS idx_policies_status ON policies(status)`,
	`CREATE INDEX IF NOT EXISTS idx_policies_review ON policies(next_review_at)`,

	`CREATE TABLE IF NOT EXISTS policy_versions (
    id TEXT PRIMARY KEY,
    policy_id TEXT NOT NULL REFERENCES policies(id),
    number INTEGER NOT NULL,
    status TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    published_by TEXT NOT NULL,
    created_at TEXT NOT NULL,
    published_at TEXT NOT NULL,
    document TEXT NOT NULL,
    UNIQUE (policy_id, number)
)`,

	`CREATE TABLE IF NOT EXISTS enhancement_jobs (
    id TEXT PRIMARY KEY,
    policy_id TEXT NOT NULL,
    revision BIGINT NOT NULL,
    status TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON enhancement_jobs(status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_policy ON enhancement_jobs(policy_id)`,

	`CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
)`,
}

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, ?)
ON CONFLICT (version) DO NOTHING`

const getSchemaVersion = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`
