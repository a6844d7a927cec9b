package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Skotchmaster/cartify/internal/models"
	"github.com/Skotchmaster/cartify/internal/repo"
	"github.com/Skotchmaster/cartify/pkg/events"
)

type OrderService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, offset, limit int) (int64, []models.Order, error) {
	total, orders, err := s.Repo.ListOrders(ctx, userID, offset, limit)
	if err != nil {
		return 0, nil, storageErr("list orders", err)
	}
	return total, orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, userID, id uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, userID, id)
	if err != nil {
		return nil, storageErr("order", err)
	}
	return order, nil
}

// DeleteOrder drops the order and its items. Stock is not returned.
func (s *OrderService) DeleteOrder(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.Repo.DeleteOrder(ctx, userID, id); err != nil {
		return storageErr("order", err)
	}

	events.Emit(ctx, s.Events, events.TopicOrder, userID.String(), events.Event{
		Type:   "order_deleted",
		UserID: userID.String(),
		Data:   map[string]any{"order_id": id},
	})
	return nil
}
