package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cartify/internal/models"
	"github.com/Skotchmaster/cartify/internal/transport"
)

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Product
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) GetProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Product
	if err := r.DB.WithContext(ctx).Order("created_at ASC, id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) error {
	return r.DB.WithContext(ctx).Create(prod).Error
}

func (r *GormRepo) PatchProduct(ctx context.Context, id uuid.UUID, req transport.PatchProductRequest) (*models.Product, error) {
	var prod models.Product
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", id).First(&prod).Error; err != nil {
			return err
		}

		if req.Name != nil {
			prod.Name = *req.Name
		}
		if req.Description != nil {
			prod.Description = *req.Description
		}
		if req.ImageURL != nil {
			prod.ImageURL = *req.ImageURL
		}
		if req.Category != nil {
			prod.Category = *req.Category
		}
		if req.Brand != nil {
			prod.Brand = *req.Brand
		}
		if req.Price != nil {
			prod.Price = *req.Price
		}
		if req.Stock != nil {
			prod.Stock = *req.Stock
		}

		return tx.Save(&prod).Error
	})
	if err != nil {
		return nil, err
	}
	return &prod, nil
}

// DeleteProduct removes the product and the cart lines pointing at it in one transaction.
// Products referenced by order items are kept.
func (r *GormRepo) DeleteProduct(ctx context.Context, id uuid.UUID) (int64, error) {
	var cartLines int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prod models.Product
		if err := forUpdate(tx).Where("id = ?", id).First(&prod).Error; err != nil {
			return err
		}

		var refs int64
		if err := tx.Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return ErrReferenced
		}

		res := tx.Where("product_id = ?", id).Delete(&models.CartItem{})
		if res.Error != nil {
			return res.Error
		}
		cartLines = res.RowsAffected

		res = tx.Where("id = ?", id).Delete(&models.Product{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return cartLines, err
}

// Restock adds delta to stock. The range guard on stock + delta lives in the statement itself.
func (r *GormRepo) Restock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error) {
	var prod models.Product
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("id = ? AND stock + ? BETWEEN 0 AND ?", id, delta, models.MaxStock).
			UpdateColumns(map[string]any{
				"stock":      gorm.Expr("stock + ?", delta),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Where("id = ?", id).First(&prod).Error; err != nil {
				return err
			}
			return ErrGuardFailed
		}
		return tx.Where("id = ?", id).First(&prod).Error
	})
	if err != nil {
		return nil, err
	}
	return &prod, nil
}

// SearchProducts is the database fallback used when no search index is configured.
func (r *GormRepo) SearchProducts(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	like := "%" + strings.ToLower(q) + "%"
	where := "LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(category) LIKE ? OR LOWER(brand) LIKE ?"

	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where(where, like, like, like, like).
		Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Product, 0, limit)
	if err := r.DB.WithContext(ctx).
		Where(where, like, like, like, like).
		Order("name ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}
