package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrPositionNotFound        = errors.New("position not found")
	ErrProductionOrderNotFound = errors.New("production order not found")
	ErrStandardProductNotFound = errors.New("standard product not found")
	ErrCustomerNotFound        = errors.New("customer not found")

	// ErrCustomerInUse means orders still reference the customer.
	ErrCustomerInUse = errors.New("customer still has orders")

	// ErrSequenceTaken means another production order claimed the same
	// (position, sequence number) pair first.
	ErrSequenceTaken = errors.New("production order sequence number already taken")

	// ErrStaleStatus means the row no longer had the expected status when
	// the conditional update ran.
	ErrStaleStatus = errors.New("status changed concurrently")
)

type Repository interface {
	CreateCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	UpdateCustomer(ctx context.Context, c *Customer) error
	DeleteCustomer(ctx context.Context, id uuid.UUID) error

	CreateOrder(ctx context.Context, o *Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]Order, error)
	ListOrdersWithPositionStatus(ctx context.Context, status PositionStatus) ([]Order, error)

	GetPosition(ctx context.Context, id uuid.UUID) (*Position, error)
	GetPositionByKey(ctx context.Context, orderNumber string, posNumber int) (*Position, error)
	UpdatePositionStatus(ctx context.Context, id uuid.UUID, from, to PositionStatus) error

	CreateProductionOrder(ctx context.Context, po *ProductionOrder) error
	GetProductionOrderByKey(ctx context.Context, key Key) (*ProductionOrder, error)
	ListProductionOrdersByPosition(ctx context.Context, positionID uuid.UUID) ([]ProductionOrder, error)
	UpdateProductionOrderStatus(ctx context.Context, id uuid.UUID, from, to ProductionOrderStatus) error

	CreateStandardProduct(ctx context.Context, p *StandardProduct) error
	GetStandardProduct(ctx context.Context, id uuid.UUID) (*StandardProduct, error)
	ListStandardProducts(ctx context.Context, query string) ([]StandardProduct, error)
	UpdateStandardProduct(ctx context.Context, p *StandardProduct) error
	DeleteStandardProduct(ctx context.Context, id uuid.UUID) error
	AdjustAmountInProduction(ctx context.Context, id uuid.UUID, delta int) error

	CreateComplaint(ctx context.Context, c *Complaint) error
	ListComplaints(ctx context.Context, filter ComplaintFilter) ([]Complaint, error)
}

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// withTx runs fn in a transaction, committing on success and rolling back on
// error or panic.
func (r *postgresRepository) withTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: %s: failed to begin transaction: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Str("op", op).Msg("Panic recovered in transaction, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("op", op).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Str("op", op).Msg("Failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error().Err(commitErr).Str("op", op).Msg("Failed to commit transaction")
			err = fmt.Errorf("repository: %s: failed to commit transaction: %w", op, commitErr)
		}
	}()

	return fn(tx)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.UniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

func newID() (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to generate id: %w", err)
	}
	return id, nil
}
