package infra

import (
	"context"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestConnectWithoutURLs(t *testing.T) {
	b, err := Connect(context.Background(), "", "", "giftstream")
	require.NoError(t, err)
	require.Nil(t, b.DB)
	require.Nil(t, b.Cache)
	require.NoError(t, b.Close())
}

func TestConnectRedisOnly(t *testing.T) {
	mr := miniredis.RunT(t)

	b, err := Connect(context.Background(), "", "redis://"+mr.Addr(), "giftstream")
	require.NoError(t, err)
	require.NotNil(t, b.Cache)
	require.NoError(t, b.Cache.Set(context.Background(), "k", "v", 0).Err())
	require.NoError(t, b.Close())
}

func TestNewRedisClientRejectsBadInput(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "", "x")
	require.Error(t, err)

	_, err = NewRedisClient(context.Background(), "not a url", "x")
	require.ErrorContains(t, err, "parse redis url")
}

func TestNewPostgresPoolRejectsBadInput(t *testing.T) {
	_, err := NewPostgresPool(context.Background(), "", "x")
	require.Error(t, err)

	_, err = NewPostgresPool(context.Background(), "postgres://%zz", "x")
	require.ErrorContains(t, err, "parse postgres config")
}

func TestPgErrorClassification(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("insert: %w", &pgconn.PgError{Code: code})
	}
	require.True(t, IsUniqueViolation(wrap("23505")))
	require.True(t, IsCheckViolation(wrap("23514")))
	require.True(t, IsForeignKeyViolation(wrap("23503")))
	require.False(t, IsUniqueViolation(wrap("23514")))
	require.False(t, IsUniqueViolation(fmt.Errorf("plain")))
}
