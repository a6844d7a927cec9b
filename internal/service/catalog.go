package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/cartify/internal/models"
	"github.com/Skotchmaster/cartify/internal/repo"
	"github.com/Skotchmaster/cartify/internal/transport"
	"github.com/Skotchmaster/cartify/pkg/events"
	"github.com/Skotchmaster/cartify/pkg/logging"
	"github.com/Skotchmaster/cartify/pkg/search"
)

type CatalogService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
	// Index is optional. Without it search falls back to the database.
	Index search.Index
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	prod, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, storageErr("product", err)
	}
	return prod, nil
}

func (s *CatalogService) GetProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	total, items, err := s.Repo.GetProducts(ctx, offset, limit)
	if err != nil {
		return 0, nil, storageErr("list products", err)
	}
	return total, items, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	prod := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Category:    req.Category,
		Brand:       req.Brand,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := prod.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if err := s.Repo.CreateProduct(ctx, prod); err != nil {
		return nil, storageErr("product", err)
	}

	s.indexProduct(ctx, prod)
	s.emit(ctx, "product_created", prod)
	return prod, nil
}

func (s *CatalogService) PatchProduct(ctx context.Context, id uuid.UUID, req transport.PatchProductRequest) (*models.Product, error) {
	if req.Price != nil {
		if err := models.ValidatePrice(*req.Price); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	if req.Stock != nil && (*req.Stock < 0 || *req.Stock > models.MaxStock) {
		return nil, fmt.Errorf("stock must be between 0 and %d: %w", models.MaxStock, ErrInvalidArgument)
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, fmt.Errorf("product name is required: %w", ErrInvalidArgument)
	}

	prod, err := s.Repo.PatchProduct(ctx, id, req)
	if err != nil {
		return nil, storageErr("product", err)
	}

	s.indexProduct(ctx, prod)
	s.emit(ctx, "product_updated", prod)
	return prod, nil
}

// DeleteProduct refuses while order items reference the product and drops its cart lines.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	l := logging.FromContext(ctx).With("svc", "catalog.delete_product", "product_id", id)

	cartLines, err := s.Repo.DeleteProduct(ctx, id)
	if err != nil {
		return storageErr("product", err)
	}
	if cartLines > 0 {
		l.Info("cart lines removed with product", "count", cartLines)
	}

	if s.Index != nil {
		if err := s.Index.Delete(ctx, id.String()); err != nil {
			l.Warn("search_index_error", "reason", "cannot delete document", "error", err)
		}
	}
	events.Emit(ctx, s.Events, events.TopicProduct, id.String(), events.Event{
		Type: "product_deleted",
		Data: map[string]any{"product_id": id, "cart_lines_removed": cartLines},
	})
	return nil
}

// Restock adjusts stock by delta. A result below zero is rejected.
func (s *CatalogService) Restock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error) {
	if delta == 0 {
		return nil, fmt.Errorf("delta must not be zero: %w", ErrInvalidArgument)
	}
	if delta > models.MaxStock || delta < -models.MaxStock {
		return nil, fmt.Errorf("delta must be within ±%d: %w", models.MaxStock, ErrInvalidArgument)
	}

	prod, err := s.Repo.Restock(ctx, id, delta)
	if errors.Is(err, repo.ErrGuardFailed) {
		return nil, fmt.Errorf("stock must stay between 0 and %d: %w", models.MaxStock, ErrInvalidArgument)
	}
	if err != nil {
		return nil, storageErr("product", err)
	}

	events.Emit(ctx, s.Events, events.TopicProduct, id.String(), events.Event{
		Type: "product_restocked",
		Data: map[string]any{"product_id": id, "delta": delta, "stock": prod.Stock},
	})
	return prod, nil
}

func (s *CatalogService) SearchProducts(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return 0, nil, fmt.Errorf("query is required: %w", ErrInvalidArgument)
	}

	if s.Index == nil {
		total, items, err := s.Repo.SearchProducts(ctx, q, offset, limit)
		if err != nil {
			return 0, nil, storageErr("search products", err)
		}
		return total, items, nil
	}

	total, ids, err := s.Index.Search(ctx, q, offset, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("search products: %w", err)
	}

	uuids := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		if id, err := uuid.Parse(raw); err == nil {
			uuids = append(uuids, id)
		}
	}
	rows, err := s.Repo.GetProductsByIDs(ctx, uuids)
	if err != nil {
		return 0, nil, storageErr("search products", err)
	}

	// keep relevance order; ids deleted since indexing are skipped
	byID := make(map[uuid.UUID]models.Product, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	items := make([]models.Product, 0, len(rows))
	for _, id := range uuids {
		if p, ok := byID[id]; ok {
			items = append(items, p)
		}
	}
	return total, items, nil
}

// Reindex pushes every product into the search index.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, nil
	}

	const batch = 100
	n := 0
	for offset := 0; ; offset += batch {
		_, items, err := s.Repo.GetProducts(ctx, offset, batch)
		if err != nil {
			return n, storageErr("reindex", err)
		}
		for i := range items {
			if err := s.Index.Index(ctx, searchDoc(&items[i])); err != nil {
				return n, fmt.Errorf("reindex %s: %w", items[i].ID, err)
			}
			n++
		}
		if len(items) < batch {
			return n, nil
		}
	}
}

func (s *CatalogService) indexProduct(ctx context.Context, prod *models.Product) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Index(ctx, searchDoc(prod)); err != nil {
		logging.FromContext(ctx).Warn("search_index_error", "product_id", prod.ID, "error", err)
	}
}

func (s *CatalogService) emit(ctx context.Context, typ string, prod *models.Product) {
	events.Emit(ctx, s.Events, events.TopicProduct, prod.ID.String(), events.Event{
		Type: typ,
		Data: map[string]any{
			"product_id": prod.ID,
			"name":       prod.Name,
			"price":      prod.Price,
			"stock":      prod.Stock,
		},
	})
}

func searchDoc(p *models.Product) search.Document {
	return search.Document{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Brand:       p.Brand,
	}
}
