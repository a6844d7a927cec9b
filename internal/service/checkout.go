package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/cartify/internal/models"
	"github.com/Skotchmaster/cartify/internal/repo"
	"github.com/Skotchmaster/cartify/pkg/db"
	"github.com/Skotchmaster/cartify/pkg/events"
	"github.com/Skotchmaster/cartify/pkg/idempotency"
	"github.com/Skotchmaster/cartify/pkg/logging"
	"github.com/Skotchmaster/cartify/pkg/metrics"
)

const (
	StatePending    = "pending"
	StateValidating = "validating"
	StateReserving  = "reserving"
	StateCommitted  = "committed"
	StateAborted    = "aborted"
)

const maxBackoff = time.Second

// CheckoutTx is one checkout transaction. Every Begin is ended by Commit or Rollback.
type CheckoutTx interface {
	CartLines(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	DeleteCartLines(ctx context.Context, userID uuid.UUID, lineIDs []uuid.UUID) (int64, error)
	Commit() error
	Rollback() error
}

type CheckoutStore interface {
	BeginCheckout(ctx context.Context) (CheckoutTx, error)
}

type OrderLookup interface {
	GetOrder(ctx context.Context, userID, id uuid.UUID) (*models.Order, error)
}

// GormCheckoutStore adapts the repository to CheckoutStore.
type GormCheckoutStore struct {
	Repo *repo.GormRepo
}

func (s GormCheckoutStore) BeginCheckout(ctx context.Context) (CheckoutTx, error) {
	tx, err := s.Repo.BeginCheckout(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

type CheckoutConfig struct {
	TxTimeout   time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		TxTimeout:   5 * time.Second,
		MaxAttempts: 3,
		Backoff:     20 * time.Millisecond,
	}
}

type CheckoutEngine struct {
	Store  CheckoutStore
	Orders OrderLookup
	// Idem is optional. Without it CheckoutWithKey ignores the key.
	Idem    idempotency.Store
	Events  events.Publisher
	Metrics *metrics.Metrics
	Config  CheckoutConfig
}

func NewCheckoutEngine(r *repo.GormRepo, cfg CheckoutConfig) *CheckoutEngine {
	return &CheckoutEngine{
		Store:  GormCheckoutStore{Repo: r},
		Orders: r,
		Config: cfg,
	}
}

// Checkout converts the user's cart into an order. Only conflicts are retried.
func (e *CheckoutEngine) Checkout(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "checkout", "user_id", userID)
	start := time.Now()

	attempts := e.Config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		order *models.Order
		err   error
		state string
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		order, state, err = e.attempt(ctx, userID)
		e.Metrics.CheckoutAttempt(state, reasonOf(err))
		if err == nil || !errors.Is(err, ErrConflict) || attempt == attempts {
			break
		}

		wait := e.backoff(attempt)
		l.Info("checkout conflict, retrying", "attempt", attempt, "backoff", wait, "error", err)
		e.Metrics.CheckoutRetry()
		if werr := sleepCtx(ctx, wait); werr != nil {
			err = werr
			break
		}
	}
	e.Metrics.CheckoutDone(state, time.Since(start))

	if err != nil {
		l.Warn("checkout_aborted", "state", state, "reason", reasonOf(err), "error", err)
		return nil, err
	}

	l.Info("checkout committed", "order_id", order.ID, "items", len(order.Items), "total", order.Total())
	events.Emit(ctx, e.Events, events.TopicOrder, userID.String(), events.Event{
		Type:   "order_created",
		UserID: userID.String(),
		Data: map[string]any{
			"order_id": order.ID,
			"items":    len(order.Items),
			"total":    order.Total(),
		},
	})
	return order, nil
}

// CheckoutWithKey replays the order of a completed key and refuses a key that is still in flight.
func (e *CheckoutEngine) CheckoutWithKey(ctx context.Context, userID uuid.UUID, key string) (*models.Order, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || e.Idem == nil {
		order, err := e.Checkout(ctx, userID)
		return order, false, err
	}

	l := logging.FromContext(ctx).With("svc", "checkout", "user_id", userID, "idempotency_key", key)
	scoped := userID.String() + ":" + key

	prev, err := e.Idem.Reserve(ctx, scoped)
	if errors.Is(err, idempotency.ErrInFlight) {
		return nil, false, fmt.Errorf("checkout with this key is in progress: %w", ErrConflict)
	}
	if err != nil {
		return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if prev != "" {
		id, err := uuid.Parse(prev)
		if err != nil {
			return nil, false, fmt.Errorf("stored order id %q: %w", prev, err)
		}
		order, err := e.Orders.GetOrder(ctx, userID, id)
		if err != nil {
			return nil, false, storageErr("order", err)
		}
		return order, true, nil
	}

	order, err := e.Checkout(ctx, userID)
	if err != nil {
		if rerr := e.Idem.Release(context.WithoutCancel(ctx), scoped); rerr != nil {
			l.Warn("idempotency_release_error", "error", rerr)
		}
		return nil, false, err
	}
	if cerr := e.Idem.Complete(context.WithoutCancel(ctx), scoped, order.ID.String()); cerr != nil {
		l.Warn("idempotency_complete_error", "order_id", order.ID, "error", cerr)
	}
	return order, false, nil
}

func (e *CheckoutEngine) attempt(ctx context.Context, userID uuid.UUID) (*models.Order, string, error) {
	state := StatePending

	txCtx := ctx
	if e.Config.TxTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, e.Config.TxTimeout)
		defer cancel()
	}

	tx, err := e.Store.BeginCheckout(txCtx)
	if err != nil {
		return nil, StateAborted, e.classify(ctx, txCtx, "begin checkout", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rerr := tx.Rollback(); rerr != nil {
				logging.FromContext(ctx).Warn("checkout_rollback_error", "user_id", userID, "state", state, "error", rerr)
			}
		}
	}()

	abort := func(what string, err error) (*models.Order, string, error) {
		return nil, StateAborted, e.classify(ctx, txCtx, what, err)
	}

	lines, err := tx.CartLines(txCtx, userID)
	if err != nil {
		return abort("load cart", err)
	}
	if len(lines) == 0 {
		return nil, StateAborted, fmt.Errorf("user %s: %w", userID, ErrEmptyCart)
	}

	state = StateValidating
	ids := make([]uuid.UUID, len(lines))
	for i, ln := range lines {
		ids[i] = ln.ProductID
	}
	products, err := tx.LockProducts(txCtx, ids)
	if err != nil {
		return abort("lock products", err)
	}

	order := &models.Order{UserID: userID, Items: make([]models.OrderItem, 0, len(lines))}
	for i, ln := range lines {
		p, ok := products[ln.ProductID]
		if !ok {
			return nil, StateAborted, fmt.Errorf("product %s: %w", ln.ProductID, ErrNotFound)
		}
		if ln.Quantity > p.Stock {
			return nil, StateAborted, &InsufficientStockError{ProductID: p.ID, Available: p.Stock}
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   p.ID,
			Line:        i + 1,
			ProductName: p.Name,
			Quantity:    ln.Quantity,
			Price:       p.Price,
		})
	}

	state = StateReserving
	if err := tx.CreateOrder(txCtx, order); err != nil {
		return abort("create order", err)
	}
	for _, ln := range lines {
		ok, err := tx.DecrementStock(txCtx, ln.ProductID, ln.Quantity)
		if err != nil {
			return abort("decrement stock", err)
		}
		if !ok {
			return nil, StateAborted, fmt.Errorf("stock of product %s changed concurrently: %w", ln.ProductID, ErrConflict)
		}
	}

	lineIDs := make([]uuid.UUID, len(lines))
	for i, ln := range lines {
		lineIDs[i] = ln.ID
	}
	n, err := tx.DeleteCartLines(txCtx, userID, lineIDs)
	if err != nil {
		return abort("clear cart", err)
	}
	if n != int64(len(lines)) {
		return nil, StateAborted, fmt.Errorf("cart changed during checkout, removed %d of %d lines: %w", n, len(lines), ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return abort("commit", err)
	}
	committed = true
	return order, StateCommitted, nil
}

// classify maps a storage failure to a service error. A canceled caller context passes through.
func (e *CheckoutEngine) classify(ctx, txCtx context.Context, what string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", what, ctxErr)
	}
	if errors.Is(txCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: transaction exceeded %s: %w", what, e.Config.TxTimeout, ErrTimeout)
	}
	if db.IsRetryable(err) {
		return fmt.Errorf("%s: %w: %v", what, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// backoff doubles per attempt with up to 50% jitter, capped at maxBackoff.
func (e *CheckoutEngine) backoff(attempt int) time.Duration {
	base := e.Config.Backoff
	if base <= 0 {
		return 0
	}
	d := base << (attempt - 1)
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	return d/2 + rand.N(d/2+1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func reasonOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
