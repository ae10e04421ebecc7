package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/domain"
	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, customer_name, email, phone, address, city, pincode,
	total_amount, payment_id, intent_id, items, status, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	sslMode := cred.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName,
		sslMode)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Repository{db: db}, nil
}

// NewRepositoryFromDB wraps an existing handle.
func NewRepositoryFromDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RunMigrations(cred *Credentials) error {
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

// CreateOrder inserts the order and its OrderPaid outbox event atomically.
// A second order for the same payment id yields domain.ErrDuplicatePayment.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.OrderRecord) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	itemsJSON, err := json.Marshal(order.LineItems)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	payload, err := json.Marshal(OrderEvent{
		OrderID:     order.ID,
		PaymentID:   order.PaymentReference,
		UserID:      order.UserID,
		Email:       order.Email,
		TotalAmount: order.TotalAmount,
		Currency:    domain.CurrencyINR,
		Status:      order.Status,
		Items:       order.LineItems,
		OccurredAt:  now,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, insertErr := tx.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.CustomerName,
		order.Email,
		order.Phone,
		order.Address,
		order.City,
		order.Pincode,
		order.TotalAmount,
		order.PaymentReference,
		order.IntentID,
		itemsJSON,
		order.Status,
		now,
		now)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrDuplicatePayment
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}

	if err := insertEvent(ctx, tx, order.ID, EventOrderPaid, payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*domain.OrderRecord, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) GetOrderByPayment(ctx context.Context, paymentRef string) (*domain.OrderRecord, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, paymentRef))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by payment: %w", err)
	}
	return order, nil
}

// ListOrders returns newest orders first. Query matches name or phone.
func (r *Repository) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.OrderRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("(customer_name ILIKE $%d OR phone ILIKE $%d)", len(args), len(args)))
	}
	if email := strings.TrimSpace(filter.Email); email != "" {
		args = append(args, email)
		where = append(where, fmt.Sprintf("LOWER(email) = LOWER($%d)", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []*domain.OrderRecord
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		out = append(out, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// UpdateOrderStatus moves an order one step forward and records the change in the outbox.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var (
		current   domain.OrderStatus
		paymentID string
		userID    string
		email     string
		total     decimal.Decimal
	)
	err = tx.QueryRowContext(ctx,
		`SELECT status, payment_id, user_id, email, total_amount FROM orders WHERE id = $1 FOR UPDATE`, id).
		Scan(&current, &paymentID, &userID, &email, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("query order status: %w", err)
	}

	if !current.CanTransitionTo(status) {
		return &apperrors.InvalidStateTransitionError{From: current.String(), To: status.String()}
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`, status, now, id); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	payload, err := json.Marshal(OrderEvent{
		OrderID:     id,
		PaymentID:   paymentID,
		UserID:      userID,
		Email:       email,
		TotalAmount: total,
		Currency:    domain.CurrencyINR,
		Status:      status,
		OccurredAt:  now,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	if err := insertEvent(ctx, tx, id, EventOrderStatusChanged, payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// Revenue sums every recorded order and counts them.
func (r *Repository) Revenue(ctx context.Context) (decimal.Decimal, int, error) {
	var (
		total decimal.Decimal
		count int
	)
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_amount), 0), COUNT(*) FROM orders`).Scan(&total, &count)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("query revenue: %w", err)
	}
	return total, count, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events WHERE processed_at IS NULL ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		ev.Payload = payload
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func insertEvent(ctx context.Context, tx *sql.Tx, aggregateID, eventType string, payload []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		aggregateID, eventType, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.OrderRecord, error) {
	var order domain.OrderRecord
	var itemsJSON []byte
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.CustomerName,
		&order.Email,
		&order.Phone,
		&order.Address,
		&order.City,
		&order.Pincode,
		&order.TotalAmount,
		&order.PaymentReference,
		&order.IntentID,
		&itemsJSON,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &order.LineItems); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}
