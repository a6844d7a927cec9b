// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cartify/internal/models"
	"github.com/Skotchmaster/cartify/pkg/db"
	"github.com/Skotchmaster/cartify/pkg/hash"
)

// OpenSQLite returns a migrated in-memory database private to the test.
// The pool holds a single connection, so transactions run one at a time.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	gdb, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

// OpenPostgres returns a migrated database in a fresh schema on the server named by POSTGRES_DSN.
// The test is skipped when the variable is unset or the server is unreachable. The schema is dropped on cleanup.
func OpenPostgres(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx := context.Background()

	admin, err := db.Open(ctx, db.DriverPostgres, dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	schema := "cartify_test_" + uuid.NewString()[:8]
	if err := admin.Exec("CREATE SCHEMA " + schema).Error; err != nil {
		_ = db.Close(admin)
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_ = admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		_ = db.Close(admin)
	})

	gdb, err := db.Open(ctx, db.DriverPostgres, withSearchPath(dsn, schema))
	if err != nil {
		t.Fatalf("open postgres schema %s: %v", schema, err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return gdb
}

func withSearchPath(dsn, schema string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

func CreateUser(t testing.TB, gdb *gorm.DB, username, role string) *models.User {
	t.Helper()

	pw, err := hash.HashPassword("password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: pw,
		Role:         role,
	}
	if err := gdb.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func CreateProduct(t testing.TB, gdb *gorm.DB, name, price string, stock int) *models.Product {
	t.Helper()

	p := &models.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Category: "test",
	}
	if err := gdb.Create(p).Error; err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}

func AddCartLine(t testing.TB, gdb *gorm.DB, userID, productID uuid.UUID, qty int) *models.CartItem {
	t.Helper()

	item := &models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}
	if err := gdb.Create(item).Error; err != nil {
		t.Fatalf("create cart line: %v", err)
	}
	return item
}

func Stock(t testing.TB, gdb *gorm.DB, productID uuid.UUID) int {
	t.Helper()

	var p models.Product
	if err := gdb.Where("id = ?", productID).First(&p).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return p.Stock
}

func Count(t testing.TB, gdb *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()

	var n int64
	q := gdb.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
