package service

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/cartify/internal/models"
	"github.com/Skotchmaster/cartify/internal/repo"
	"github.com/Skotchmaster/cartify/internal/testutil"
	"github.com/Skotchmaster/cartify/internal/transport"
	"github.com/Skotchmaster/cartify/pkg/events"
	"github.com/Skotchmaster/cartify/pkg/search"
)

// memIndex matches a query against document names.
type memIndex struct {
	mu    sync.Mutex
	docs  map[string]search.Document
	order []string
}

func newMemIndex() *memIndex {
	return &memIndex{docs: map[string]search.Document{}}
}

func (m *memIndex) Index(_ context.Context, doc search.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		m.order = append(m.order, doc.ID)
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *memIndex) Search(_ context.Context, q string, from, size int) (int64, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var hits []string
	for i := len(m.order) - 1; i >= 0; i-- {
		id := m.order[i]
		if d, ok := m.docs[id]; ok && strings.Contains(strings.ToLower(d.Name), strings.ToLower(q)) {
			hits = append(hits, id)
		}
	}
	total := int64(len(hits))
	if from > len(hits) {
		from = len(hits)
	}
	hits = hits[from:]
	if size < len(hits) {
		hits = hits[:size]
	}
	return total, hits, nil
}

func newCatalog(t *testing.T, idx search.Index) (*CatalogService, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	return &CatalogService{Repo: repo.New(testutil.OpenSQLite(t)), Events: rec, Index: idx}, rec
}

func TestCatalogService_CreateProduct(t *testing.T) {
	idx := newMemIndex()
	svc, rec := newCatalog(t, idx)
	ctx := context.Background()

	tests := []struct {
		name string
		req  transport.CreateProductRequest
	}{
		{"empty name", transport.CreateProductRequest{Name: "  ", Price: decimal.NewFromInt(1)}},
		{"zero price", transport.CreateProductRequest{Name: "Mouse", Price: decimal.Zero}},
		{"negative price", transport.CreateProductRequest{Name: "Mouse", Price: decimal.NewFromInt(-5)}},
		{"negative stock", transport.CreateProductRequest{Name: "Mouse", Price: decimal.NewFromInt(5), Stock: -1}},
		{"stock over cap", transport.CreateProductRequest{Name: "Mouse", Price: decimal.NewFromInt(5), Stock: models.MaxStock + 1}},
		{"sub-cent price", transport.CreateProductRequest{Name: "Mouse", Price: decimal.RequireFromString("0.001")}},
		{"three decimals", transport.CreateProductRequest{Name: "Mouse", Price: decimal.RequireFromString("19.999")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tt.req)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	prod, err := svc.CreateProduct(ctx, transport.CreateProductRequest{
		Name:     "Mouse",
		Category: "accessories",
		Brand:    "Logi",
		Price:    decimal.RequireFromString("25.90"),
		Stock:    7,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, prod.ID)
	assert.Contains(t, idx.docs, prod.ID.String())
	assert.Equal(t, []string{"product_created"}, rec.Types(events.TopicProduct))
}

func TestCatalogService_PatchProduct(t *testing.T) {
	svc, _ := newCatalog(t, nil)
	ctx := context.Background()
	prod, err := svc.CreateProduct(ctx, transport.CreateProductRequest{Name: "Mouse", Price: decimal.NewFromInt(10), Stock: 1})
	require.NoError(t, err)

	zero := decimal.Zero
	_, err = svc.PatchProduct(ctx, prod.ID, transport.PatchProductRequest{Price: &zero})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	subCent := decimal.RequireFromString("9.995")
	_, err = svc.PatchProduct(ctx, prod.ID, transport.PatchProductRequest{Price: &subCent})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	neg := -2
	_, err = svc.PatchProduct(ctx, prod.ID, transport.PatchProductRequest{Stock: &neg})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	huge := math.MaxInt
	_, err = svc.PatchProduct(ctx, prod.ID, transport.PatchProductRequest{Stock: &huge})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 1, testutil.Stock(t, svc.Repo.DB, prod.ID))

	_, err = svc.PatchProduct(ctx, uuid.New(), transport.PatchProductRequest{})
	assert.ErrorIs(t, err, ErrNotFound)

	brand := "Logi"
	got, err := svc.PatchProduct(ctx, prod.ID, transport.PatchProductRequest{Brand: &brand})
	require.NoError(t, err)
	assert.Equal(t, "Logi", got.Brand)
	assert.Equal(t, "Mouse", got.Name)
}

func TestCatalogService_Restock(t *testing.T) {
	svc, rec := newCatalog(t, nil)
	ctx := context.Background()
	prod, err := svc.CreateProduct(ctx, transport.CreateProductRequest{Name: "Mouse", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)

	_, err = svc.Restock(ctx, prod.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	got, err := svc.Restock(ctx, prod.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)

	_, err = svc.Restock(ctx, prod.ID, -6)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Restock(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	for _, delta := range []int{math.MaxInt, math.MinInt, models.MaxStock + 1} {
		_, err = svc.Restock(ctx, prod.ID, delta)
		assert.ErrorIs(t, err, ErrInvalidArgument, "delta %d", delta)
	}
	_, err = svc.Restock(ctx, prod.ID, models.MaxStock)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 5, testutil.Stock(t, svc.Repo.DB, prod.ID))

	assert.Equal(t, []string{"product_created", "product_restocked"}, rec.Types(events.TopicProduct))
}

func TestCatalogService_DeleteProduct(t *testing.T) {
	idx := newMemIndex()
	svc, _ := newCatalog(t, idx)
	ctx := context.Background()
	db := svc.Repo.DB
	u := testutil.CreateUser(t, db, "alice", models.RoleUser)
	sold := testutil.CreateProduct(t, db, "Laptop", "100.00", 5)
	testutil.AddCartLine(t, db, u.ID, sold.ID, 1)
	_, err := NewCheckoutEngine(svc.Repo, DefaultCheckoutConfig()).Checkout(ctx, u.ID)
	require.NoError(t, err)

	carted, err := svc.CreateProduct(ctx, transport.CreateProductRequest{Name: "Mouse", Price: decimal.NewFromInt(10), Stock: 3})
	require.NoError(t, err)
	testutil.AddCartLine(t, db, u.ID, carted.ID, 1)

	err = svc.DeleteProduct(ctx, sold.ID)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, svc.DeleteProduct(ctx, carted.ID))
	assert.Zero(t, testutil.Count(t, db, &models.CartItem{}, "product_id = ?", carted.ID))
	assert.NotContains(t, idx.docs, carted.ID.String())

	assert.ErrorIs(t, svc.DeleteProduct(ctx, carted.ID), ErrNotFound)
}

func TestCatalogService_SearchProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("database fallback", func(t *testing.T) {
		svc, _ := newCatalog(t, nil)
		_, err := svc.CreateProduct(ctx, transport.CreateProductRequest{Name: "Gaming Mouse", Price: decimal.NewFromInt(10)})
		require.NoError(t, err)
		_, err = svc.CreateProduct(ctx, transport.CreateProductRequest{Name: "Keyboard", Price: decimal.NewFromInt(10)})
		require.NoError(t, err)

		total, items, err := svc.SearchProducts(ctx, "mouse", 0, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, "Gaming Mouse", items[0].Name)

		_, _, err = svc.SearchProducts(ctx, "   ", 0, 10)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("index keeps relevance order", func(t *testing.T) {
		idx := newMemIndex()
		svc, _ := newCatalog(t, idx)
		first, err := svc.CreateProduct(ctx, transport.CreateProductRequest{Name: "Mouse One", Price: decimal.NewFromInt(10)})
		require.NoError(t, err)
		second, err := svc.CreateProduct(ctx, transport.CreateProductRequest{Name: "Mouse Two", Price: decimal.NewFromInt(10)})
		require.NoError(t, err)
		// stale document for a row that no longer exists
		require.NoError(t, idx.Index(ctx, search.Document{ID: uuid.NewString(), Name: "Mouse Ghost"}))

		total, items, err := svc.SearchProducts(ctx, "mouse", 0, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, items, 2)
		assert.Equal(t, second.ID, items[0].ID)
		assert.Equal(t, first.ID, items[1].ID)
	})
}

func TestCatalogService_Reindex(t *testing.T) {
	svc, _ := newCatalog(t, nil)
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C"} {
		testutil.CreateProduct(t, svc.Repo.DB, name, "1.00", 1)
	}

	n, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	idx := newMemIndex()
	svc.Index = idx
	n, err = svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, idx.docs, 3)
}
