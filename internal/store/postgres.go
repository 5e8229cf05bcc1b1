// Package store persists decoded IGDB catalogue records in PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/catalog"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS igdb_platforms (
	igdb_id      BIGINT PRIMARY KEY,
	name         TEXT NOT NULL,
	abbreviation TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS igdb_genres (
	igdb_id    BIGINT PRIMARY KEY,
	name       TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS igdb_companies (
	igdb_id       BIGINT PRIMARY KEY,
	name          TEXT NOT NULL,
	logo_image_id TEXT,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS igdb_games (
	igdb_id            BIGINT PRIMARY KEY,
	name               TEXT NOT NULL,
	summary            TEXT NOT NULL DEFAULT '',
	cover_image_id     TEXT,
	first_release_date TIMESTAMPTZ,
	developer_ids      BIGINT[] NOT NULL DEFAULT '{}',
	publisher_ids      BIGINT[] NOT NULL DEFAULT '{}',
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS igdb_game_genres (
	game_id  BIGINT NOT NULL REFERENCES igdb_games (igdb_id) ON DELETE CASCADE,
	genre_id BIGINT NOT NULL,
	PRIMARY KEY (game_id, genre_id)
);

CREATE TABLE IF NOT EXISTS igdb_game_platforms (
	game_id     BIGINT NOT NULL REFERENCES igdb_games (igdb_id) ON DELETE CASCADE,
	platform_id BIGINT NOT NULL,
	PRIMARY KEY (game_id, platform_id)
);

CREATE TABLE IF NOT EXISTS igdb_game_companies (
	game_id             BIGINT NOT NULL REFERENCES igdb_games (igdb_id) ON DELETE CASCADE,
	involved_company_id BIGINT NOT NULL,
	company_id          BIGINT NOT NULL,
	developer           BOOLEAN NOT NULL,
	publisher           BOOLEAN NOT NULL,
	PRIMARY KEY (game_id, involved_company_id)
);`

const (
	upsertPlatformSQL = `
		INSERT INTO igdb_platforms (igdb_id, name, abbreviation, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (igdb_id) DO UPDATE SET
			name = EXCLUDED.name,
			abbreviation = EXCLUDED.abbreviation,
			updated_at = now()`

	upsertGenreSQL = `
		INSERT INTO igdb_genres (igdb_id, name, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (igdb_id) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = now()`

	upsertCompanySQL = `
		INSERT INTO igdb_companies (igdb_id, name, logo_image_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (igdb_id) DO UPDATE SET
			name = EXCLUDED.name,
			logo_image_id = EXCLUDED.logo_image_id,
			updated_at = now()`

	upsertGameSQL = `
		INSERT INTO igdb_games (igdb_id, name, summary, cover_image_id, first_release_date,
			developer_ids, publisher_ids, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (igdb_id) DO UPDATE SET
			name = EXCLUDED.name,
			summary = EXCLUDED.summary,
			cover_image_id = EXCLUDED.cover_image_id,
			first_release_date = EXCLUDED.first_release_date,
			developer_ids = EXCLUDED.developer_ids,
			publisher_ids = EXCLUDED.publisher_ids,
			updated_at = now()`

	clearGameGenresSQL    = `DELETE FROM igdb_game_genres WHERE game_id = $1`
	clearGamePlatformsSQL = `DELETE FROM igdb_game_platforms WHERE game_id = $1`
	clearGameCompaniesSQL = `DELETE FROM igdb_game_companies WHERE game_id = $1`

	linkGameGenreSQL = `
		INSERT INTO igdb_game_genres (game_id, genre_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	linkGamePlatformSQL = `
		INSERT INTO igdb_game_platforms (game_id, platform_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	linkGameCompanySQL = `
		INSERT INTO igdb_game_companies (game_id, involved_company_id, company_id, developer, publisher)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (game_id, involved_company_id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			developer = EXCLUDED.developer,
			publisher = EXCLUDED.publisher`
)

// Postgres is the catalogue sink backed by a pgx connection pool.
type Postgres struct {
	db     *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgres wraps an open pool.
func NewPostgres(db *pgxpool.Pool, logger zerolog.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

// Connect opens a pool for dsn and checks that the database answers.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the catalogue tables if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Upsert writes objects in one transaction, replacing existing rows with
// the same IGDB id. A game's genre, platform and company links are replaced
// as a whole. It returns the number of records written.
func (s *Postgres) Upsert(ctx context.Context, objects []catalog.Object) (int, error) {
	if len(objects) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, o := range objects {
		if err := queueObject(batch, o); err != nil {
			return 0, err
		}
	}

	start := time.Now()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("upsert statement %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}

	s.logger.Debug().
		Str("resource", objects[0].Kind().String()).
		Int("items", len(objects)).
		Int("statements", batch.Len()).
		Dur("duration", time.Since(start)).
		Msg("Upserted records")

	return len(objects), nil
}

// queueObject appends the statements writing o to batch.
func queueObject(batch *pgx.Batch, o catalog.Object) error {
	switch v := o.(type) {
	case catalog.Platform:
		batch.Queue(upsertPlatformSQL, v.ID, v.Name, v.Abbreviation)
	case catalog.Genre:
		batch.Queue(upsertGenreSQL, v.ID, v.Name)
	case catalog.Company:
		batch.Queue(upsertCompanySQL, v.ID, v.Name, imageID(v.Logo))
	case catalog.Game:
		var released *time.Time
		if t, ok := v.ReleaseDate(); ok {
			released = &t
		}
		batch.Queue(upsertGameSQL, v.ID, v.Name, v.Summary, imageID(v.Cover), released,
			v.Developers(), v.Publishers())

		batch.Queue(clearGameGenresSQL, v.ID)
		for _, id := range v.GenreIDs {
			batch.Queue(linkGameGenreSQL, v.ID, id)
		}
		batch.Queue(clearGamePlatformsSQL, v.ID)
		for _, id := range v.PlatformIDs {
			batch.Queue(linkGamePlatformSQL, v.ID, id)
		}
		batch.Queue(clearGameCompaniesSQL, v.ID)
		for _, ic := range v.InvolvedCompanies {
			batch.Queue(linkGameCompanySQL, v.ID, ic.ID, ic.CompanyID, ic.IsDeveloper, ic.IsPublisher)
		}
	default:
		return fmt.Errorf("upsert: unsupported record type %T", o)
	}
	return nil
}

func imageID(img *catalog.Image) *string {
	if img == nil {
		return nil
	}
	id := img.ImageID
	return &id
}

// tableFor returns the table holding records of kind.
func tableFor(kind catalog.ResourceKind) (string, error) {
	switch kind {
	case catalog.KindPlatforms:
		return "igdb_platforms", nil
	case catalog.KindGenres:
		return "igdb_genres", nil
	case catalog.KindCompanies:
		return "igdb_companies", nil
	case catalog.KindGames:
		return "igdb_games", nil
	default:
		return "", &catalog.UnknownResourceKindError{Kind: kind}
	}
}

// Count returns the number of stored records of kind.
func (s *Postgres) Count(ctx context.Context, kind catalog.ResourceKind) (int, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return count, nil
}
