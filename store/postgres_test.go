package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Postgres tests run only against a disposable database named by
// AUCTIONEER_TEST_POSTGRES_DSN. Every table is truncated between subtests.
func setupTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("AUCTIONEER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AUCTIONEER_TEST_POSTGRES_DSN not set")
	}

	s, err := NewPostgresStore(&PostgresConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.db.ExecContext(context.Background(),
		`TRUNCATE audit_log, bids, lots, bidders RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return s
}

func TestPostgresStore_Ledger(t *testing.T) {
	runLedgerSuite(t, func(t *testing.T) Store {
		return setupTestPostgres(t)
	})
}

func TestPostgresStore_Audit(t *testing.T) {
	s := setupTestPostgres(t)
	ctx := context.Background()

	f, err := ParseFixtures([]byte(testFixtures))
	require.NoError(t, err)
	require.NoError(t, f.Apply(ctx, s))

	_, err = s.ReverseLot(ctx, 1, 1)
	require.NoError(t, err)

	var (
		action  string
		actorID int64
	)
	err = s.db.QueryRowContext(ctx, `SELECT action, actor_id FROM audit_log ORDER BY id DESC LIMIT 1`).Scan(&action, &actorID)
	require.NoError(t, err)
	require.Equal(t, "ITEM_UNSOLD", action)
	require.Equal(t, int64(1), actorID)
}

func TestPostgresConfig_ConnectionString(t *testing.T) {
	c := &PostgresConfig{Host: "db", Port: 5432, User: "auction", Password: "pw", Database: "auction"}
	require.Equal(t, "host=db port=5432 user=auction password=pw dbname=auction sslmode=disable", c.ConnectionString())

	c.DSN = "postgres://auction@db/auction"
	require.Equal(t, "postgres://auction@db/auction", c.ConnectionString())
}
