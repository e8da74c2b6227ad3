package sqlite

import (
	"database/sql"
	"embed"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"

	"github.com/basakesin/mri-defacing-platform/internal/infra/logging"
)

var logger = logging.NewPackageLogger("sqlite")

//go:embed migrations/*.up.sql
var migrations embed.FS

const schemaMigrationsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER NOT NULL PRIMARY KEY,
	name       TEXT    NOT NULL,
	applied_at TEXT    NOT NULL DEFAULT (datetime('now'))
)`

// migration is one embedded NNN_name.up.sql file.
type migration struct {
	version int
	name    string
	body    string
}

// MigrateUp applies pending migrations in version order, one transaction each.
// Applied versions are tracked in schema_migrations and skipped on later runs.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(schemaMigrationsDDL); err != nil {
		return errors.Wrap(err, "migrate: create schema_migrations")
	}

	pending, err := embeddedMigrations()
	if err != nil {
		return err
	}
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if _, done := applied[m.version]; done {
			continue
		}
		if err := apply(db, m); err != nil {
			return errors.Wrapf(err, "migrate: apply %s", m.name)
		}
		logger.KV(xlog.INFO, "status", "migrated", "version", m.version, "name", m.name)
	}
	return nil
}

// MigrationVersion returns the highest applied version, or 0 on a fresh database.
func MigrationVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(schemaMigrationsDDL); err != nil {
		return 0, errors.Wrap(err, "migrate: create schema_migrations")
	}
	var version int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, errors.Wrap(err, "migrate: query version")
	}
	return version, nil
}

func embeddedMigrations() ([]migration, error) {
	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return nil, errors.Wrap(err, "migrate: list files")
	}

	out := make([]migration, 0, len(names))
	seen := make(map[int]string, len(names))
	for _, p := range names {
		name := path.Base(p)
		version, err := parseVersion(name)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, errors.Newf("migrate: %s and %s share version %d", prev, name, version)
		}
		seen[version] = name

		body, err := migrations.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "migrate: read %s", name)
		}
		out = append(out, migration{version: version, name: name, body: string(body)})
	}

	slices.SortFunc(out, func(a, b migration) int { return a.version - b.version })
	return out, nil
}

// parseVersion reads the numeric prefix: "002_job_indexes.up.sql" -> 2.
func parseVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, errors.Newf("migrate: %s has no NNN_ prefix", name)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, errors.Newf("migrate: %s has an invalid version prefix", name)
	}
	return v, nil
}

func appliedVersions(db *sql.DB) (map[int]struct{}, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, errors.Wrap(err, "migrate: read applied versions")
	}
	defer rows.Close()

	applied := make(map[int]struct{})
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "migrate: scan version")
		}
		applied[v] = struct{}{}
	}
	return applied, errors.Wrap(rows.Err(), "migrate: read applied versions")
}

func apply(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after Commit
	}()

	if _, err := tx.Exec(m.body); err != nil {
		return errors.Wrap(err, "exec")
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
		return errors.Wrap(err, "record")
	}
	return errors.Wrap(tx.Commit(), "commit")
}
