package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/cartify/internal/models"
)

var (
	// ErrGuardFailed means a guarded UPDATE matched no row.
	ErrGuardFailed = errors.New("guarded update matched no rows")
	// ErrReferenced means a product is still referenced by order items.
	ErrReferenced = errors.New("row is referenced")
)

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

func (r *GormRepo) Migrate(ctx context.Context) error {
	return r.DB.WithContext(ctx).AutoMigrate(models.All()...)
}

// Transaction runs fn with a repo bound to one database transaction.
func (r *GormRepo) Transaction(ctx context.Context, fn func(tx *GormRepo) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}

// forUpdate adds SELECT ... FOR UPDATE. SQLite has a single writer and no row locks.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
