package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cartify/internal/models"
	"github.com/Skotchmaster/cartify/internal/repo"
	"github.com/Skotchmaster/cartify/pkg/db"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrOutOfStock        = errors.New("out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("empty cart")
	ErrConflict          = errors.New("conflict")
	ErrTimeout           = errors.New("timeout")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// InsufficientStockError is the authoritative checkout failure. It matches ErrInsufficientStock.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %d available", e.ProductID, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Retryable reports whether the caller may repeat the request unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrTimeout)
}

// storageErr translates repository errors into service sentinels. Unknown errors pass through as internal.
func storageErr(what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, models.ErrValidation):
		return fmt.Errorf("%s: %w: %v", what, ErrInvalidArgument, err)
	case errors.Is(err, repo.ErrReferenced):
		return fmt.Errorf("%s is referenced by orders: %w", what, ErrConflict)
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%s already exists: %w", what, ErrConflict)
	case db.IsRetryable(err):
		return fmt.Errorf("%s: %w: %v", what, ErrConflict, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", what, ErrTimeout)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
