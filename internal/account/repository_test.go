package account_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/giftstream/giftstream/internal/account"
	"github.com/giftstream/giftstream/internal/infra"
	"github.com/giftstream/giftstream/internal/migrations"
)

// testDatabaseEnv points the Postgres half of the repository tests at a
// scratch database. Without it only the memory repository runs.
const testDatabaseEnv = "GIFTSTREAM_TEST_DATABASE_URL"

func repositories(t *testing.T) map[string]account.Repository {
	t.Helper()
	repos := map[string]account.Repository{"memory": account.NewMemoryRepository()}

	dsn := os.Getenv(testDatabaseEnv)
	if dsn == "" {
		return repos
	}
	require.NoError(t, migrations.Up(dsn))
	pool, err := infra.NewPostgresPool(context.Background(), dsn, "giftstream-account-test")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	repos["postgres"] = account.NewPostgresRepository(pool)
	return repos
}

func TestRepositoryReferrer(t *testing.T) {
	for name, repo := range repositories(t) {
		repo := repo
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := account.NewService(repo)

			root, err := svc.Register(ctx, account.RegisterInput{DisplayName: "root"})
			require.NoError(t, err)
			child, err := svc.Register(ctx, account.RegisterInput{DisplayName: "child", ReferrerID: root.ID})
			require.NoError(t, err)

			referrer, err := repo.Referrer(ctx, child.ID)
			require.NoError(t, err)
			require.Equal(t, root.ID, referrer)

			referrer, err = repo.Referrer(ctx, root.ID)
			require.NoError(t, err)
			require.Empty(t, referrer)

			_, err = repo.Referrer(ctx, uuid.NewString())
			require.ErrorIs(t, err, account.ErrNotFound)

			_, err = repo.Referrer(ctx, "not-an-id")
			require.ErrorIs(t, err, account.ErrNotFound)
		})
	}
}
