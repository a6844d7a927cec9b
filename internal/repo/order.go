package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cartify/internal/models"
)

func itemsInLineOrder(db *gorm.DB) *gorm.DB {
	return db.Order("line ASC")
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uuid.UUID, offset, limit int) (int64, []models.Order, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items", itemsInLineOrder).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, userID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items", itemsInLineOrder).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// DeleteOrder removes the order with its items. Stock is left as is.
func (r *GormRepo) DeleteOrder(ctx context.Context, userID, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := forUpdate(tx).Where("id = ? AND user_id = ?", id, userID).First(&order).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", order.ID).Delete(&models.Order{}).Error
	})
}
