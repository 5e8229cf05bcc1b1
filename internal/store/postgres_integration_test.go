//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/catalog"
)

// setupPostgres starts a PostgreSQL container and returns a pool.
func setupPostgres(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "igdb",
			"POSTGRES_PASSWORD": "igdb",
			"POSTGRES_DB":       "igdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://igdb:igdb@%s:%s/igdb?sslmode=disable", host, port.Port())
	db, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to Postgres: %v", err)
	}

	cleanup := func() {
		db.Close()
		container.Terminate(ctx)
	}

	return db, cleanup
}

func TestPostgres_Integration_UpsertAndCount(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	s := NewPostgres(db, zerolog.Nop())
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx), "EnsureSchema must be idempotent")

	n, err := s.Upsert(ctx, []catalog.Object{
		catalog.Platform{ID: 6, Name: "PC", Abbreviation: "PC"},
		catalog.Platform{ID: 48, Name: "PlayStation 4", Abbreviation: "PS4"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same ids again, as produced by overlapping batches.
	_, err = s.Upsert(ctx, []catalog.Object{
		catalog.Platform{ID: 6, Name: "PC (Microsoft Windows)", Abbreviation: "PC"},
		catalog.Platform{ID: 6, Name: "PC (Microsoft Windows)", Abbreviation: "PC"},
	})
	require.NoError(t, err)

	count, err := s.Count(ctx, catalog.KindPlatforms)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var name string
	require.NoError(t, db.QueryRow(ctx, "SELECT name FROM igdb_platforms WHERE igdb_id = 6").Scan(&name))
	assert.Equal(t, "PC (Microsoft Windows)", name)
}

func TestPostgres_Integration_GameLinksReplaced(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	s := NewPostgres(db, zerolog.Nop())
	require.NoError(t, s.EnsureSchema(ctx))

	released := int64(1431993600)
	game := catalog.Game{
		ID:               1942,
		Name:             "The Witcher 3: Wild Hunt",
		Cover:            &catalog.Image{ID: 89386, ImageID: "co1wyy"},
		FirstReleaseDate: &released,
		GenreIDs:         []int64{12, 31},
		PlatformIDs:      []int64{6, 48},
		InvolvedCompanies: []catalog.InvolvedCompany{
			{ID: 1, CompanyID: 908, IsDeveloper: true},
			{ID: 2, CompanyID: 908, IsPublisher: true},
		},
	}
	_, err := s.Upsert(ctx, []catalog.Object{game})
	require.NoError(t, err)

	game.GenreIDs = []int64{12}
	game.InvolvedCompanies = game.InvolvedCompanies[:1]
	_, err = s.Upsert(ctx, []catalog.Object{game})
	require.NoError(t, err)

	var genres, platforms, companies int
	require.NoError(t, db.QueryRow(ctx, "SELECT COUNT(*) FROM igdb_game_genres WHERE game_id = 1942").Scan(&genres))
	require.NoError(t, db.QueryRow(ctx, "SELECT COUNT(*) FROM igdb_game_platforms WHERE game_id = 1942").Scan(&platforms))
	require.NoError(t, db.QueryRow(ctx, "SELECT COUNT(*) FROM igdb_game_companies WHERE game_id = 1942").Scan(&companies))
	assert.Equal(t, 1, genres)
	assert.Equal(t, 2, platforms)
	assert.Equal(t, 1, companies)

	var cover string
	var releasedAt time.Time
	require.NoError(t, db.QueryRow(ctx, "SELECT cover_image_id, first_release_date FROM igdb_games WHERE igdb_id = 1942").Scan(&cover, &releasedAt))
	assert.Equal(t, "co1wyy", cover)
	assert.True(t, releasedAt.Equal(time.Unix(released, 0)))

	var developers, publishers []int64
	require.NoError(t, db.QueryRow(ctx, "SELECT developer_ids, publisher_ids FROM igdb_games WHERE igdb_id = 1942").Scan(&developers, &publishers))
	assert.Equal(t, []int64{908}, developers)
	assert.Empty(t, publishers)
}

func TestPostgres_Integration_UnsupportedRecordRollsBack(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	s := NewPostgres(db, zerolog.Nop())
	require.NoError(t, s.EnsureSchema(ctx))

	_, err := s.Upsert(ctx, []catalog.Object{
		catalog.Genre{ID: 1, Name: "Genre"},
		nil,
	})
	require.Error(t, err)

	count, err := s.Count(ctx, catalog.KindGenres)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
