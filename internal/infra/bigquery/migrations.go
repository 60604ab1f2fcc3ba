package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-importer/internal/logger"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationPattern matches files such as 0001_create_categories.sql.
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is a single migration file with placeholders already replaced.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// MigrationResult reports what Up did with one migration.
type MigrationResult struct {
	Migration Migration
	Applied   bool // false when it had been applied before
}

// Migrator applies the embedded migrations to a dataset and records them in
// schema_migrations.
type Migrator struct {
	client    *bigquery.Client
	ref       datasetRef
	appliedBy string
	source    fs.FS
}

// NewMigrator returns a migrator using the embedded migration files.
func NewMigrator(client *bigquery.Client, projectID, datasetID, appliedBy string) *Migrator {
	sub, _ := fs.Sub(migrationsFS, "migrations")
	return &Migrator{
		client:    client,
		ref:       datasetRef{projectID: projectID, datasetID: datasetID},
		appliedBy: appliedBy,
		source:    sub,
	}
}

// Up applies pending migrations in version order.
func (m *Migrator) Up(ctx context.Context) ([]MigrationResult, error) {
	log := logger.FromContext(ctx)

	migrations, err := ReadMigrations(m.source, m.ref.projectID, m.ref.datasetID)
	if err != nil {
		return nil, fmt.Errorf("Up: %w", err)
	}
	if len(migrations) == 0 {
		return nil, nil
	}

	// The first migration creates schema_migrations itself.
	if err := m.run(ctx, migrations[0].SQL); err != nil {
		return nil, fmt.Errorf("Up: ensure schema_migrations: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("Up: %w", err)
	}

	results := make([]MigrationResult, 0, len(migrations))
	for _, mig := range migrations {
		if prev, ok := applied[mig.Version]; ok {
			if prev.Checksum != "" && prev.Checksum != mig.Checksum {
				log.Warn().Int("version", mig.Version).Str("name", mig.Name).Msg("applied migration has changed since it ran")
			}
			results = append(results, MigrationResult{Migration: mig})
			continue
		}

		log.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("applying migration")
		if err := m.run(ctx, mig.SQL); err != nil {
			return results, fmt.Errorf("Up: migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		if err := m.record(ctx, mig); err != nil {
			return results, fmt.Errorf("Up: record %04d_%s: %w", mig.Version, mig.Name, err)
		}
		results = append(results, MigrationResult{Migration: mig, Applied: true})
	}
	return results, nil
}

// ReadMigrations loads migration files from fsys sorted by version. Files not
// matching the NNNN_name.sql pattern are ignored. The checksum is taken over
// the file content before placeholders are replaced, so the same migration has
// the same checksum in every project.
func ReadMigrations(fsys fs.FS, projectID, datasetID string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("ReadMigrations: reading directory: %w", err)
	}

	var out []Migration
	seen := map[int]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(e.Name())
		if !ok {
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("ReadMigrations: version %04d used by %s and %s", version, other, e.Name())
		}
		seen[version] = e.Name()

		content, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("ReadMigrations: reading %s: %w", e.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		out = append(out, Migration{
			Version:  version,
			Name:     name,
			Filename: e.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func parseMigrationFilename(filename string) (int, string, bool) {
	matches := migrationPattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

func (m *Migrator) applied(ctx context.Context) (map[int]AppliedMigration, error) {
	q := m.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, m.ref.table("schema_migrations")))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	out := map[int]AppliedMigration{}
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}
		out[int(row.Version)] = AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		}
	}
	return out, nil
}

func (m *Migrator) record(ctx context.Context, mig Migration) error {
	q := m.client.Query(fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, m.ref.table("schema_migrations")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: mig.Version},
		{Name: "name", Value: mig.Name},
		{Name: "checksum", Value: mig.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	}
	return runQuery(ctx, q)
}

func (m *Migrator) run(ctx context.Context, sql string) error {
	return runQuery(ctx, m.client.Query(sql))
}

func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
