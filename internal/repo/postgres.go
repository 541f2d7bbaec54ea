package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/nvictor/jiraiya/internal/config"
	"github.com/nvictor/jiraiya/internal/domain"
)

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
	db  *DB
	log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

const storiesSchema = `
	CREATE TABLE IF NOT EXISTS stories(
		id           text PRIMARY KEY,
		title        text NOT NULL,
		completed_at timestamptz NOT NULL,
		outcome      text NOT NULL,
		epic_title   text NOT NULL,
		is_resolved  boolean NOT NULL DEFAULT false
	)`

func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		storiesSchema,
		`CREATE TABLE IF NOT EXISTS outcomes(
			id       uuid PRIMARY KEY,
			name     text NOT NULL UNIQUE,
			keywords text[] NOT NULL DEFAULT '{}',
			color    text NOT NULL,
			position int NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS epic_descriptions(
			epic_title  text PRIMARY KEY,
			description text NOT NULL,
			updated_at  timestamptz NOT NULL DEFAULT now()
		)`,
	}
	for _, q := range stmts {
		if _, err := r.db.Pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
	return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	if !ok && err == nil {
		return errors.New("advisory unlock returned false")
	}
	return err
}

// ---- Stories ----

func (r *Repository) FetchStories(ctx context.Context) ([]domain.Story, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, title, completed_at, outcome, epic_title, is_resolved FROM stories`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Story
	for rows.Next() {
		var s domain.Story
		if err := rows.Scan(&s.ID, &s.Title, &s.CompletedAt, &s.Outcome, &s.EpicTitle, &s.IsResolved); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReplaceStories swaps the whole story set in one transaction: readers
// see either the old set or the new one, never a partial write.
func (r *Repository) ReplaceStories(ctx context.Context, stories []domain.Story) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM stories`); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	const q = `INSERT INTO stories(id, title, completed_at, outcome, epic_title, is_resolved)
		VALUES($1,$2,$3,$4,$5,$6)`
	for _, s := range stories {
		batch.Queue(q, s.ID, s.Title, s.CompletedAt, s.Outcome, s.EpicTitle, s.IsResolved)
	}
	br := tx.SendBatch(ctx, batch)
	for range stories {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Reset drops and recreates the stories table.
func (r *Repository) Reset(ctx context.Context) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS stories`); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, storiesSchema); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ---- Outcomes ----

func (r *Repository) ListOutcomes(ctx context.Context) ([]domain.Outcome, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id::text, name, keywords, color FROM outcomes ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		if err := rows.Scan(&o.ID, &o.Name, &o.Keywords, &o.Color); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ReplaceOutcomes stores the configured outcome list, preserving its
// order. Missing IDs are minted here.
func (r *Repository) ReplaceOutcomes(ctx context.Context, outcomes []domain.Outcome) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM outcomes`); err != nil {
		return err
	}
	const q = `INSERT INTO outcomes(id, name, keywords, color, position) VALUES($1,$2,$3,$4,$5)`
	for i, o := range outcomes {
		id := o.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.Exec(ctx, q, id, o.Name, o.Keywords, o.Color, i); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// SeedDefaultOutcomes installs the starter set when none are configured.
func (r *Repository) SeedDefaultOutcomes(ctx context.Context) error {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM outcomes`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return r.ReplaceOutcomes(ctx, domain.SeedOutcomes())
}

// ---- Epic description cache ----

func (r *Repository) GetEpicDescription(ctx context.Context, title string) (string, bool, error) {
	var desc string
	err := r.db.Pool.QueryRow(ctx, `SELECT description FROM epic_descriptions WHERE epic_title=$1`, title).Scan(&desc)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return desc, true, nil
}

// SetEpicDescription upserts; last writer wins.
func (r *Repository) SetEpicDescription(ctx context.Context, title, description string) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO epic_descriptions(epic_title, description, updated_at)
		VALUES($1,$2,now())
		ON CONFLICT (epic_title) DO UPDATE SET description=EXCLUDED.description, updated_at=now()`, title, description)
	return err
}

func (r *Repository) ListEpicDescriptions(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT epic_title, description FROM epic_descriptions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var title, desc string
		if err := rows.Scan(&title, &desc); err != nil {
			return nil, err
		}
		out[title] = desc
	}
	return out, rows.Err()
}
