package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// Repository defines the durable order record operations. Consumers
// define this interface, not the Postgres implementation.
type Repository interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	ListOrdersByEmail(ctx context.Context, email string) ([]*domain.Order, error)
	Close() error
}

// PostgresRepository is the self-hosted order sink backend used by the
// orders worker. It also satisfies Sink directly for single-binary
// deployments that skip the hosted backend.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(cred *Credentials) (*PostgresRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, o *domain.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	query := `INSERT INTO orders (id, number, idempotency_key, customer_email, amount, currency, status, items, shipping_address, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		o.ID,
		o.Number,
		o.IdempotencyKey,
		o.CustomerEmail,
		o.Amount,
		o.Currency,
		o.Status,
		itemsJSON,
		addressJSON,
		o.CreatedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

// Submit makes the repository usable as a Sink: duplicate idempotency
// keys resolve to the order placed by the earlier attempt.
func (r *PostgresRepository) Submit(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	err := r.CreateOrder(ctx, o)
	if errors.Is(err, ErrDuplicateOrder) {
		return r.GetOrderByIdempotencyKey(ctx, o.IdempotencyKey)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := selectOrders + ` WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	query := selectOrders + ` WHERE idempotency_key = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, key))
}

func (r *PostgresRepository) ListOrdersByEmail(ctx context.Context, email string) ([]*domain.Order, error) {
	query := selectOrders + ` WHERE customer_email = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("query orders by email: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

const selectOrders = `SELECT id, number, idempotency_key, customer_email, amount, currency, status, items, shipping_address, created_at
          FROM orders`

func (r *PostgresRepository) scanOne(row *sql.Row) (*domain.Order, error) {
	o, err := scanOrder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func scanOrder(scan func(dest ...any) error) (*domain.Order, error) {
	var o domain.Order
	var itemsJSON, addressJSON []byte
	err := scan(
		&o.ID,
		&o.Number,
		&o.IdempotencyKey,
		&o.CustomerEmail,
		&o.Amount,
		&o.Currency,
		&o.Status,
		&itemsJSON,
		&addressJSON,
		&o.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan order row: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}

	return &o, nil
}
