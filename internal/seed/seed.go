// Package seed loads sample catalog data and accounts for local development.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cartify/internal/models"
	"github.com/Skotchmaster/cartify/internal/repo"
	"github.com/Skotchmaster/cartify/pkg/hash"
)

type account struct {
	Username string
	Email    string
	Password string
	Role     string
}

var products = []models.Product{
	{Name: "Laptop", Description: "14 inch ultrabook", Category: "computers", Brand: "Acme", Price: decimal.RequireFromString("1200.00"), Stock: 10},
	{Name: "Headphones", Description: "Over-ear, noise cancelling", Category: "audio", Brand: "Sonic", Price: decimal.RequireFromString("150.00"), Stock: 25},
	{Name: "Mouse", Description: "Wireless optical mouse", Category: "accessories", Brand: "Acme", Price: decimal.RequireFromString("50.00"), Stock: 100},
}

type Result struct {
	Users    int
	Products int
}

// Run inserts missing sample rows. Existing usernames and product names are left alone, so it can run repeatedly.
func Run(ctx context.Context, r *repo.GormRepo, adminPassword string) (Result, error) {
	accounts := []account{
		{Username: "Alice", Email: "alice@example.com", Password: "password123", Role: models.RoleUser},
		{Username: "Bob", Email: "bob@example.com", Password: "securepass", Role: models.RoleUser},
		{Username: "admin", Email: "admin@example.com", Password: adminPassword, Role: models.RoleAdmin},
	}

	var res Result
	err := r.Transaction(ctx, func(tx *repo.GormRepo) error {
		for _, a := range accounts {
			_, err := tx.GetUserByUsername(ctx, a.Username)
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("seed user %s: %w", a.Username, err)
			}

			pw, err := hash.HashPassword(a.Password)
			if err != nil {
				return err
			}
			u := &models.User{Username: a.Username, Email: a.Email, PasswordHash: pw, Role: a.Role}
			if err := tx.CreateUser(ctx, u); err != nil {
				return fmt.Errorf("seed user %s: %w", a.Username, err)
			}
			res.Users++
		}

		for _, p := range products {
			var n int64
			if err := tx.DB.WithContext(ctx).Model(&models.Product{}).Where("name = ?", p.Name).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			prod := p
			if err := tx.CreateProduct(ctx, &prod); err != nil {
				return fmt.Errorf("seed product %s: %w", p.Name, err)
			}
			res.Products++
		}
		return nil
	})
	return res, err
}
