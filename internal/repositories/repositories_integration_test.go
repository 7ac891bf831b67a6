//go:build integration

package repositories

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/catalog"
	"github.com/Itqan-community/itqan-cms/internal/database"
	"github.com/Itqan-community/itqan-cms/internal/models"
	"github.com/Itqan-community/itqan-cms/internal/session"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *database.DB

// TestMain starts one PostgreSQL container for the package and applies the
// embedded migrations.
func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("itqan"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		slog.Error("failed to start postgres container", "error", err)
		os.Exit(1)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		slog.Error("failed to get connection string", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		slog.Error("failed to create pool", "error", err)
		os.Exit(1)
	}

	goose.SetLogger(goose.NopLogger())
	testDB = database.FromPool(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := testDB.Migrate(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		slog.Error("failed to migrate", "error", err)
		os.Exit(1)
	}

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

var _ session.Store = (*SessionRepository)(nil)
var _ session.Expirer = (*SessionRepository)(nil)
var _ catalog.Source = (*AssetRepository)(nil)

func TestSessionRepository_Items(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(testDB, time.Hour)

	_, ok, err := repo.GetItem(ctx, "sid-items", session.KeyUser)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetItem(ctx, "sid-items", session.KeyUser, `{"id":"1"}`))
	require.NoError(t, repo.SetItem(ctx, "sid-items", session.KeyUser, `{"id":"2"}`))
	require.NoError(t, repo.SetItem(ctx, "sid-items", session.KeyProfileCompleted, session.ProfileCompletedFlag))

	v, ok, err := repo.GetItem(ctx, "sid-items", session.KeyUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"2"}`, v)

	require.NoError(t, repo.RemoveItem(ctx, "sid-items", session.KeyUser))
	_, ok, err = repo.GetItem(ctx, "sid-items", session.KeyUser)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Clear(ctx, "sid-items"))
	_, ok, err = repo.GetItem(ctx, "sid-items", session.KeyProfileCompleted)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	expired := NewSessionRepository(testDB, -time.Minute)
	live := NewSessionRepository(testDB, time.Hour)

	require.NoError(t, expired.SetItem(ctx, "sid-old", session.KeyUser, "a"))
	require.NoError(t, live.SetItem(ctx, "sid-new", session.KeyUser, "b"))

	_, ok, err := live.GetItem(ctx, "sid-old", session.KeyUser)
	require.NoError(t, err)
	assert.False(t, ok, "expired items are not returned")

	n, err := live.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	_, ok, err = live.GetItem(ctx, "sid-new", session.KeyUser)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAssetRepository_MatchesStaticSource(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(testDB)
	static := catalog.NewMockSource()

	filters := []catalog.Filter{
		{},
		{Facets: map[catalog.Facet][]string{catalog.FacetCategories: {"quran"}}},
		{Facets: map[catalog.Facet][]string{catalog.FacetLanguages: {"en", "ur"}, catalog.FacetFormats: {"json"}}},
		{Search: "tanzil"},
		{Search: "100%"},
	}

	for _, filter := range filters {
		want, err := static.Search(ctx, filter, 0, 4)
		require.NoError(t, err)
		got, err := repo.Search(ctx, filter, 0, 4)
		require.NoError(t, err)

		assert.Equal(t, want.Total, got.Total)
		assert.Equal(t, ids(want.Assets), ids(got.Assets))
		assert.Equal(t, want.Counts, got.Counts)
	}
}

func TestAssetRepository_PastLastPage(t *testing.T) {
	page, err := NewAssetRepository(testDB).Search(context.Background(), catalog.Filter{}, 100, 10)

	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Empty(t, page.Assets)
}

func TestAssetRepository_Get(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(testDB)

	a, err := repo.Get(ctx, "asset-husary-mp3")
	require.NoError(t, err)
	assert.Equal(t, "EveryAyah", a.Publisher.Name)
	assert.Equal(t, "assets/recitations/husary.zip", a.StorageKey)
	assert.True(t, a.Access.RequiresApproval)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAssetRepository_Labels(t *testing.T) {
	labels, err := NewAssetRepository(testDB).Labels(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Tafsir", labels[catalog.FacetCategories]["tafsir"].En)
	assert.Equal(t, "العربية", labels[catalog.FacetLanguages]["ar"].Ar)
}

func ids(assets []models.Asset) []string {
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.ID)
	}
	return out
}
