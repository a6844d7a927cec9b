package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cartify/internal/models"
	"github.com/Skotchmaster/cartify/internal/repo"
	"github.com/Skotchmaster/cartify/internal/transport"
	"github.com/Skotchmaster/cartify/pkg/events"
)

// CartService mutates cart lines. Its stock checks are advisory; checkout re-validates under locks.
type CartService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.CartItem, error) {
	if qty < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", ErrInvalidArgument)
	}
	if productID == uuid.Nil {
		return nil, fmt.Errorf("product id is required: %w", ErrInvalidArgument)
	}

	var line *models.CartItem
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.GetUserByID(ctx, userID); err != nil {
			return storageErr("user", err)
		}
		prod, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return storageErr("product", err)
		}

		existing, err := tx.LockCartLineByProduct(ctx, userID, productID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if qty > prod.Stock {
				return outOfStock(prod, qty)
			}
			line = &models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}
			if err := tx.CreateCartLine(ctx, line); err != nil {
				return storageErr("cart line", err)
			}
			return nil
		case err != nil:
			return storageErr("cart line", err)
		}

		if qty > prod.Stock-existing.Quantity {
			return fmt.Errorf("adding %d to line of %d: %w", qty, existing.Quantity, outOfStock(prod, qty))
		}
		if err := tx.SetCartQuantity(ctx, existing, existing.Quantity+qty); err != nil {
			return storageErr("cart line", err)
		}
		line = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, "cart_item_added", line)
	return line, nil
}

func (s *CartService) SetQuantity(ctx context.Context, userID, lineID uuid.UUID, qty int) (*models.CartItem, error) {
	if qty < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", ErrInvalidArgument)
	}

	var line *models.CartItem
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		item, err := tx.LockCartLine(ctx, userID, lineID)
		if err != nil {
			return storageErr("cart line", err)
		}
		prod, err := tx.GetProduct(ctx, item.ProductID)
		if err != nil {
			return storageErr("product", err)
		}
		if qty > prod.Stock {
			return outOfStock(prod, qty)
		}
		if err := tx.SetCartQuantity(ctx, item, qty); err != nil {
			return storageErr("cart line", err)
		}
		line = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, "cart_quantity_set", line)
	return line, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, lineID uuid.UUID) (*models.CartItem, error) {
	item, err := s.Repo.DeleteCartLine(ctx, userID, lineID)
	if err != nil {
		return nil, storageErr("cart line", err)
	}

	s.emit(ctx, "cart_item_removed", item)
	return item, nil
}

// ListCart joins every line with the current product. A line whose product is gone fails the read.
func (s *CartService) ListCart(ctx context.Context, userID uuid.UUID) (*transport.CartView, error) {
	lines, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, storageErr("cart", err)
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.Repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, storageErr("cart", err)
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	view := &transport.CartView{
		UserID: userID,
		Items:  make([]transport.CartLine, 0, len(lines)),
		Total:  decimal.Zero,
	}
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s in cart: %w", l.ProductID, ErrNotFound)
		}
		sub := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		view.Items = append(view.Items, transport.CartLine{
			ID:        l.ID,
			ProductID: l.ProductID,
			Name:      p.Name,
			ImageURL:  p.ImageURL,
			Price:     p.Price,
			Stock:     p.Stock,
			Quantity:  l.Quantity,
			Subtotal:  sub,
			CreatedAt: l.CreatedAt,
		})
		view.Total = view.Total.Add(sub)
	}
	return view, nil
}

func (s *CartService) ClearCart(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.Repo.DeleteAllFromCart(ctx, userID)
	if err != nil {
		return 0, storageErr("cart", err)
	}

	events.Emit(ctx, s.Events, events.TopicCart, userID.String(), events.Event{
		Type:   "cart_cleared",
		UserID: userID.String(),
		Data:   map[string]any{"removed": n},
	})
	return n, nil
}

func (s *CartService) emit(ctx context.Context, typ string, line *models.CartItem) {
	events.Emit(ctx, s.Events, events.TopicCart, line.UserID.String(), events.Event{
		Type:   typ,
		UserID: line.UserID.String(),
		Data: map[string]any{
			"line_id":    line.ID,
			"product_id": line.ProductID,
			"quantity":   line.Quantity,
		},
	})
}

func outOfStock(p *models.Product, want int) error {
	return fmt.Errorf("product %s: requested %d, %d in stock: %w", p.ID, want, p.Stock, ErrOutOfStock)
}
