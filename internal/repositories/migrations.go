package repositories

import (
	"fmt"
	"strings"
)

type migration struct {
	version    int
	statements []string
}

// {{pk}}, {{ts}} and {{big}} are expanded per driver.
var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS jurisdictions (
				id {{pk}},
				name TEXT NOT NULL,
				days INTEGER NOT NULL DEFAULT 20,
				appeals_allowed BOOLEAN NOT NULL DEFAULT FALSE
			)`,
			`CREATE TABLE IF NOT EXISTS agencies (
				id {{pk}},
				name TEXT NOT NULL,
				jurisdiction_id {{big}} NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				email TEXT NOT NULL DEFAULT '',
				fax TEXT NOT NULL DEFAULT '',
				address TEXT NOT NULL DEFAULT '',
				portal_url TEXT NOT NULL DEFAULT '',
				stale BOOLEAN NOT NULL DEFAULT FALSE,
				created_at {{ts}} NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS users (
				id {{pk}},
				username TEXT NOT NULL UNIQUE,
				email TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL DEFAULT '',
				role_id INTEGER NOT NULL DEFAULT 10,
				agency_id {{big}},
				requests_remaining INTEGER NOT NULL DEFAULT 0,
				can_embargo BOOLEAN NOT NULL DEFAULT FALSE,
				can_embargo_perm BOOLEAN NOT NULL DEFAULT FALSE,
				created_at {{ts}} NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS requests (
				id {{pk}},
				title TEXT NOT NULL,
				body TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				user_id {{big}} NOT NULL,
				agency_id {{big}} NOT NULL,
				jurisdiction_id {{big}} NOT NULL,
				parent_id {{big}},
				date_created {{ts}} NOT NULL,
				date_submitted {{ts}},
				date_due {{ts}},
				date_done {{ts}},
				date_estimate {{ts}},
				embargo BOOLEAN NOT NULL DEFAULT FALSE,
				permanent_embargo BOOLEAN NOT NULL DEFAULT FALSE,
				date_embargo {{ts}},
				tracking_id TEXT NOT NULL DEFAULT '',
				price_cents {{big}} NOT NULL DEFAULT 0,
				noindex BOOLEAN NOT NULL DEFAULT FALSE,
				access_key TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_requests_user ON requests (user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_requests_agency ON requests (agency_id)`,
			`CREATE TABLE IF NOT EXISTS request_access (
				request_id {{big}} NOT NULL,
				user_id {{big}} NOT NULL,
				level TEXT NOT NULL,
				PRIMARY KEY (request_id, user_id)
			)`,
			`CREATE TABLE IF NOT EXISTS communications (
				id {{pk}},
				request_id {{big}},
				direction TEXT NOT NULL,
				from_user_id {{big}},
				to_user_id {{big}},
				subject TEXT NOT NULL DEFAULT '',
				body TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'pending',
				channel TEXT NOT NULL,
				address TEXT NOT NULL DEFAULT '',
				receipt TEXT NOT NULL DEFAULT '',
				thanks BOOLEAN NOT NULL DEFAULT FALSE,
				appeal BOOLEAN NOT NULL DEFAULT FALSE,
				sent_at {{ts}} NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_comms_request ON communications (request_id)`,
			`CREATE INDEX IF NOT EXISTS idx_comms_receipt ON communications (receipt)`,
			`CREATE TABLE IF NOT EXISTS files (
				id {{pk}},
				communication_id {{big}} NOT NULL,
				name TEXT NOT NULL,
				path TEXT NOT NULL,
				size {{big}} NOT NULL DEFAULT 0,
				mime_type TEXT NOT NULL DEFAULT '',
				created_at {{ts}} NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS appeals (
				id {{pk}},
				communication_id {{big}} NOT NULL,
				created_at {{ts}} NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS tasks (
				id {{pk}},
				kind TEXT NOT NULL,
				resolved BOOLEAN NOT NULL DEFAULT FALSE,
				assigned_id {{big}},
				resolved_by_id {{big}},
				date_done {{ts}},
				created_by_id {{big}},
				created_at {{ts}} NOT NULL,
				request_id {{big}},
				communication_id {{big}},
				agency_id {{big}},
				payload TEXT NOT NULL DEFAULT '{}'
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_open ON tasks (resolved, kind)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS crowdfunds (
				id {{pk}},
				request_id {{big}} NOT NULL,
				name TEXT NOT NULL,
				amount_required_cents {{big}} NOT NULL,
				amount_raised_cents {{big}} NOT NULL DEFAULT 0,
				date_due {{ts}},
				closed BOOLEAN NOT NULL DEFAULT FALSE,
				created_at {{ts}} NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS crowdfund_payments (
				id {{pk}},
				crowdfund_id {{big}} NOT NULL,
				user_id {{big}},
				amount_cents {{big}} NOT NULL,
				visible BOOLEAN NOT NULL DEFAULT FALSE,
				created_at {{ts}} NOT NULL
			)`,
		},
	},
	{
		version: 3,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS notes (
				id {{pk}},
				request_id {{big}} NOT NULL,
				user_id {{big}} NOT NULL,
				note TEXT NOT NULL,
				created_at {{ts}} NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_notes_request ON notes (request_id)`,
		},
	},
}

func expandDDL(driver, stmt string) string {
	var r *strings.Replacer
	if driver == "postgres" {
		r = strings.NewReplacer("{{pk}}", "BIGSERIAL PRIMARY KEY", "{{ts}}", "TIMESTAMPTZ", "{{big}}", "BIGINT")
	} else {
		r = strings.NewReplacer("{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{ts}}", "DATETIME", "{{big}}", "INTEGER")
	}
	return r.Replace(stmt)
}

// migrate applies outstanding migrations in order, each in its own
// transaction, and records the version reached.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_version: %w", err)
	}
	current := 0
	if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.Beginx()
		if err != nil {
			return err
		}
		for _, stmt := range m.statements {
			if _, err := tx.Exec(expandDDL(s.driver, stmt)); err != nil {
				tx.Rollback()
				return fmt.Errorf("applying migration v%d: %w", m.version, err)
			}
		}
		if _, err := tx.Exec(tx.Rebind("INSERT INTO schema_version (version) VALUES (?)"), m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion reports the highest applied migration.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.Get(&v, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	return v, err
}
