package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ledgerline/policyforge/pkg/policy"
)

// Dialect names the SQL flavour a SQLStore speaks.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewSQLStore wraps an open database and creates the schema.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With("component", "storage."+string(dialect)),
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return s.fail("create_schema", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(insertSchemaVersion), SchemaVersion, formatTime(time.Now())); err != nil {
		return s.fail("insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, getSchemaVersion).Scan(&version); err != nil {
		return s.fail("get_schema_version", err)
	}
	if version != SchemaVersion {
		return s.fail("schema_version_mismatch", fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

func (s *SQLStore) fail(op string, err error) error {
	return newStorageError(string(s.dialect), op, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// isConflict reports whether err is a uniqueness or lock failure from any of
// the supported drivers.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"unique constraint", "duplicate key", "database is locked", "sqlite_busy", "40001"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// withTx runs fn in a transaction, rolling back on error.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreatePolicy implements Store.
func (s *SQLStore) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	p.Revision = 1
	doc, err := json.Marshal(p)
	if err != nil {
		return s.fail("marshal_policy", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO policies (id, organization_id, template_code, status, revision, current_version,
			next_review_at, created_at, updated_at, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.OrganizationID, p.TemplateCode, string(p.Status), p.Revision, p.CurrentVersion,
		nullableTime(p.NextReviewAt), formatTime(p.CreatedAt), formatTime(p.UpdatedAt), string(doc),
	)
	if err != nil {
		if isConflict(err) {
			return fmt.Errorf("policy %s: %w", p.ID, ErrAlreadyExists)
		}
		return s.fail("create_policy", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*policy.Policy, error) {
	var (
		revision       int64
		currentVersion int
		doc            string
	)
	if err := row.Scan(&revision, &currentVersion, &doc); err != nil {
		return nil, err
	}
	var p policy.Policy
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("decode policy document: %w", err)
	}
	p.Revision = revision
	p.CurrentVersion = currentVersion
	return &p, nil
}

const selectPolicy = `SELECT revision, current_version, document FROM policies`

// GetPolicy implements Store.
func (s *SQLStore) GetPolicy(ctx context.Context, id string) (*policy.Policy, error) {
	return s.getPolicy(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) getPolicy(ctx context.Context, q queryer, id string) (*policy.Policy, error) {
	p, err := scanPolicy(q.QueryRowContext(ctx, s.rebind(selectPolicy+` WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, s.fail("get_policy", err)
	}
	return p, nil
}

// ListPolicies implements Store.
func (s *SQLStore) ListPolicies(ctx context.Context, filter PolicyFilter) ([]*policy.Policy, error) {
	var (
		where []string
		args  []any
	)
	if filter.OrganizationID != "" {
		where = append(where, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.TemplateCode != "" {
		where = append(where, "template_code = ?")
		args = append(args, filter.TemplateCode)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.ReviewDueBefore != nil {
		where = append(where, "next_review_at IS NOT NULL AND next_review_at <= ?")
		args = append(args, formatTime(*filter.ReviewDueBefore))
	}

	query := selectPolicy
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, s.fail("list_policies", err)
	}
	defer rows.Close()

	var out []*policy.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, s.fail("list_policies", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list_policies", err)
	}
	return out, nil
}

// writePolicy stores p's document if the row is still at expectedRevision and
// bumps the revision when bump is set.
func (s *SQLStore) writePolicy(ctx context.Context, tx *sql.Tx, p *policy.Policy, expectedRevision int64, bump bool) error {
	newRevision := expectedRevision
	if bump {
		newRevision++
	}
	saved := p.Revision
	p.Revision = newRevision
	doc, err := json.Marshal(p)
	if err != nil {
		p.Revision = saved
		return s.fail("marshal_policy", err)
	}

	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE policies SET organization_id = ?, template_code = ?, status = ?, revision = ?,
			next_review_at = ?, updated_at = ?, document = ?
		WHERE id = ? AND revision = ?`),
		p.OrganizationID, p.TemplateCode, string(p.Status), newRevision,
		nullableTime(p.NextReviewAt), formatTime(p.UpdatedAt), string(doc),
		p.ID, expectedRevision,
	)
	if err != nil {
		p.Revision = saved
		return s.fail("update_policy", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		p.Revision = saved
		return s.fail("update_policy", err)
	}
	if n == 0 {
		p.Revision = saved
		var exists int
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM policies WHERE id = ?`), p.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("policy %s: %w", p.ID, ErrNotFound)
		}
		return fmt.Errorf("policy %s expected revision %d: %w", p.ID, expectedRevision, ErrRevisionConflict)
	}
	return nil
}

// UpdatePolicy implements Store.
func (s *SQLStore) UpdatePolicy(ctx context.Context, p *policy.Policy, expectedRevision int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current int
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT current_version FROM policies WHERE id = ?`), p.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("policy %s: %w", p.ID, ErrNotFound)
		}
		if err != nil {
			return s.fail("update_policy", err)
		}
		p.CurrentVersion = current
		return s.writePolicy(ctx, tx, p, expectedRevision, true)
	})
}

// SetEnhancementState implements Store.
func (s *SQLStore) SetEnhancementState(ctx context.Context, policyID string, state *policy.EnhancementState) error {
	// Retried because a concurrent revision bump invalidates the read.
	for attempt := 0; attempt < 5; attempt++ {
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			p, err := s.getPolicy(ctx, tx, policyID)
			if err != nil {
				return err
			}
			p.Enhancement = state
			return s.writePolicy(ctx, tx, p, p.Revision, false)
		})
		if !errors.Is(err, ErrRevisionConflict) {
			return err
		}
	}
	return fmt.Errorf("policy %s: set enhancement state: %w", policyID, ErrRevisionConflict)
}

// ApplyEnhancement implements Store.
func (s *SQLStore) ApplyEnhancement(ctx context.Context, policyID string, expectedRevision int64, bodies map[string]string, state *policy.EnhancementState) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getPolicy(ctx, tx, policyID)
		if err != nil {
			return err
		}
		if p.Revision != expectedRevision {
			return fmt.Errorf("policy %s at revision %d, expected %d: %w", policyID, p.Revision, expectedRevision, ErrRevisionConflict)
		}
		applyBodies(p, bodies)
		if state != nil {
			p.Enhancement = state
		}
		return s.writePolicy(ctx, tx, p, expectedRevision, true)
	})
}

// InsertVersion implements Store.
func (s *SQLStore) InsertVersion(ctx context.Context, v *policy.Version) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return s.fail("marshal_version", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM policies WHERE id = ?`), v.PolicyID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("policy %s: %w", v.PolicyID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		var latest int
		if err := tx.QueryRowContext(ctx, s.rebind(
			`SELECT COALESCE(MAX(number), 0) FROM policy_versions WHERE policy_id = ?`), v.PolicyID).Scan(&latest); err != nil {
			return err
		}
		if v.Number != latest+1 {
			return fmt.Errorf("policy %s version %d, next is %d: %w", v.PolicyID, v.Number, latest+1, ErrVersionConflict)
		}

		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO policy_versions (id, policy_id, number, status, content_hash, published_by,
				created_at, published_at, document)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			v.ID, v.PolicyID, v.Number, string(v.Status), v.ContentHash, v.PublishedBy,
			formatTime(v.CreatedAt), formatTime(v.PublishedAt), string(doc),
		); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE policies SET current_version = ?, revision = revision + 1, updated_at = ?
			WHERE id = ?`),
			v.Number, formatTime(v.PublishedAt), v.PolicyID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("policy %s: %w", v.PolicyID, ErrNotFound)
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrNotFound):
		return err
	case isConflict(err):
		return fmt.Errorf("policy %s version %d: %v: %w", v.PolicyID, v.Number, err, ErrVersionConflict)
	default:
		return s.fail("insert_version", err)
	}
}

func scanVersion(row rowScanner) (*policy.Version, error) {
	var doc string
	if err := row.Scan(&doc); err != nil {
		return nil, err
	}
	var v policy.Version
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return nil, fmt.Errorf("decode version document: %w", err)
	}
	return &v, nil
}

// GetVersion implements Store.
func (s *SQLStore) GetVersion(ctx context.Context, policyID string, number int) (*policy.Version, error) {
	v, err := scanVersion(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT document FROM policy_versions WHERE policy_id = ? AND number = ?`), policyID, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy %s version %d: %w", policyID, number, ErrNotFound)
	}
	if err != nil {
		return nil, s.fail("get_version", err)
	}
	return v, nil
}

// ListVersions implements Store.
func (s *SQLStore) ListVersions(ctx context.Context, policyID string) ([]*policy.Version, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT document FROM policy_versions WHERE policy_id = ? ORDER BY number`), policyID)
	if err != nil {
		return nil, s.fail("list_versions", err)
	}
	defer rows.Close()

	out := []*policy.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, s.fail("list_versions", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list_versions", err)
	}
	return out, nil
}

// LatestVersionNumber implements Store.
func (s *SQLStore) LatestVersionNumber(ctx context.Context, policyID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COALESCE(MAX(number), 0) FROM policy_versions WHERE policy_id = ?`), policyID).Scan(&n); err != nil {
		return 0, s.fail("latest_version", err)
	}
	return n, nil
}

const selectJob = `SELECT id, policy_id, revision, status, attempts, error, created_at, updated_at FROM enhancement_jobs`

func scanJob(row rowScanner) (*policy.EnhancementJob, error) {
	var (
		j                policy.EnhancementJob
		status           string
		created, updated string
	)
	if err := row.Scan(&j.ID, &j.PolicyID, &j.Revision, &status, &j.Attempts, &j.Error, &created, &updated); err != nil {
		return nil, err
	}
	j.Status = policy.JobStatus(status)
	var err error
	if j.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if j.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &j, nil
}

// EnqueueJob implements Store.
func (s *SQLStore) EnqueueJob(ctx context.Context, job *policy.EnhancementJob) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO enhancement_jobs (id, policy_id, revision, status, attempts, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		job.ID, job.PolicyID, job.Revision, string(job.Status), job.Attempts, job.Error,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		if isConflict(err) {
			return fmt.Errorf("job %s: %w", job.ID, ErrAlreadyExists)
		}
		return s.fail("enqueue_job", err)
	}
	return nil
}

// ClaimJob implements Store.
func (s *SQLStore) ClaimJob(ctx context.Context, now time.Time) (*policy.EnhancementJob, error) {
	var claimed *policy.EnhancementJob
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, s.rebind(
			`SELECT id FROM enhancement_jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`),
			string(policy.JobPending)).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE enhancement_jobs SET status = ?, attempts = attempts + 1, updated_at = ?
			WHERE id = ? AND status = ?`),
			string(policy.JobRunning), formatTime(now), id, string(policy.JobPending))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		claimed, err = scanJob(tx.QueryRowContext(ctx, s.rebind(selectJob+` WHERE id = ?`), id))
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail("claim_job", err)
	}
	return claimed, nil
}

// UpdateJob implements Store.
func (s *SQLStore) UpdateJob(ctx context.Context, job *policy.EnhancementJob) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE enhancement_jobs SET status = ?, attempts = ?, error = ?, updated_at = ?
		WHERE id = ?`),
		string(job.Status), job.Attempts, job.Error, formatTime(job.UpdatedAt), job.ID,
	)
	if err != nil {
		return s.fail("update_job", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", job.ID, ErrNotFound)
	}
	return nil
}

// GetJob implements Store.
func (s *SQLStore) GetJob(ctx context.Context, id string) (*policy.EnhancementJob, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, s.rebind(selectJob+` WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, s.fail("get_job", err)
	}
	return j, nil
}

// ListJobs implements Store.
func (s *SQLStore) ListJobs(ctx context.Context, filter JobFilter) ([]*policy.EnhancementJob, error) {
	var (
		where []string
		args  []any
	)
	if filter.PolicyID != "" {
		where = append(where, "policy_id = ?")
		args = append(args, filter.PolicyID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.UpdatedBefore != nil {
		where = append(where, "updated_at < ?")
		args = append(args, formatTime(*filter.UpdatedBefore))
	}
	query := selectJob
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, s.fail("list_jobs", err)
	}
	defer rows.Close()

	var out []*policy.EnhancementJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, s.fail("list_jobs", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list_jobs", err)
	}
	return out, nil
}

// Ping implements Store.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
