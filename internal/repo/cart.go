package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cartify/internal/models"
)

func (r *GormRepo) GetCart(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// LockCartLineByProduct returns gorm.ErrRecordNotFound when the user has no line for the product.
func (r *GormRepo) LockCartLineByProduct(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := forUpdate(r.DB.WithContext(ctx)).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) LockCartLine(ctx context.Context, userID, lineID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := forUpdate(r.DB.WithContext(ctx)).
		Where("id = ? AND user_id = ?", lineID, userID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) CreateCartLine(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Create(item).Error
}

// SetCartQuantity expects item to be locked by the surrounding transaction.
func (r *GormRepo) SetCartQuantity(ctx context.Context, item *models.CartItem, qty int) error {
	now := time.Now().UTC()
	if err := r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", item.ID, item.UserID).
		UpdateColumns(map[string]any{"quantity": qty, "updated_at": now}).Error; err != nil {
		return err
	}
	item.Quantity = qty
	item.UpdatedAt = now
	return nil
}

func (r *GormRepo) DeleteCartLine(ctx context.Context, userID, lineID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ? AND user_id = ?", lineID, userID).First(&item).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", item.ID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) DeleteAllFromCart(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
