package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *PostgresRepository {
	if testing.Short() {
		t.Skip("skipping testcontainers-based test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "../../migrations/orders",
	}

	repo, err := NewPostgresRepository(creds)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.RunMigrations(creds))
	return repo
}

func TestPostgresRepository_CreateAndGet(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	o := testOrder()
	require.NoError(t, repo.CreateOrder(ctx, o))

	got, err := repo.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Number, got.Number)
	assert.Equal(t, o.Amount, got.Amount)
	assert.Equal(t, o.Items, got.Items)
	assert.Equal(t, o.ShippingAddress, got.ShippingAddress)
}

func TestPostgresRepository_DuplicateIdempotencyKey(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	o := testOrder()
	require.NoError(t, repo.CreateOrder(ctx, o))

	dup := testOrder()
	dup.IdempotencyKey = o.IdempotencyKey
	assert.ErrorIs(t, repo.CreateOrder(ctx, dup), ErrDuplicateOrder)

	// Submit resolves the duplicate to the original record.
	accepted, err := repo.Submit(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, o.ID, accepted.ID)
}

func TestPostgresRepository_ListOrdersByEmail(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	first := testOrder()
	second := testOrder()
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	other := testOrder()
	other.CustomerEmail = "other@example.com"

	require.NoError(t, repo.CreateOrder(ctx, first))
	require.NoError(t, repo.CreateOrder(ctx, second))
	require.NoError(t, repo.CreateOrder(ctx, other))

	orders, err := repo.ListOrdersByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)

	_, err = repo.GetOrderByIdempotencyKey(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
