package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cartify/internal/models"
)

// CheckoutTx is one checkout transaction. The caller owns its boundaries:
// every BeginCheckout is followed by Commit or Rollback.
type CheckoutTx struct {
	tx   *gorm.DB
	done bool
}

func (r *GormRepo) BeginCheckout(ctx context.Context) (*CheckoutTx, error) {
	tx := r.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &CheckoutTx{tx: tx}, nil
}

// CartLines locks and returns the user's cart lines in insertion order.
func (t *CheckoutTx) CartLines(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var lines []models.CartItem
	if err := forUpdate(t.tx.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// LockProducts takes row locks in ascending id order so concurrent checkouts cannot deadlock each other.
func (t *CheckoutTx) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []models.Product
	if err := forUpdate(t.tx.WithContext(ctx)).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (t *CheckoutTx) CreateOrder(ctx context.Context, order *models.Order) error {
	return t.tx.WithContext(ctx).Create(order).Error
}

// DecrementStock reports false when the stock >= qty guard did not hold.
func (t *CheckoutTx) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := t.tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (t *CheckoutTx) DeleteCartLines(ctx context.Context, userID uuid.UUID, lineIDs []uuid.UUID) (int64, error) {
	if len(lineIDs) == 0 {
		return 0, nil
	}
	res := t.tx.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, lineIDs).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (t *CheckoutTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	return t.tx.Commit().Error
}

// Rollback is a no-op after Commit or a previous Rollback.
func (t *CheckoutTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
