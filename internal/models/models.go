package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	// MaxStock bounds stock and restock deltas so stock arithmetic stays inside a 32-bit column.
	MaxStock = 1_000_000_000
	// PriceScale is the number of decimal places the price column keeps.
	PriceScale = 2
)

var ErrValidation = errors.New("validation")

type Product struct {
	ID          uuid.UUID       `gorm:"type:varchar(36);primaryKey"     json:"id"`
	Name        string          `gorm:"size:100;not null"               json:"name"`
	Description string          `gorm:"type:text"                       json:"description"`
	ImageURL    string          `gorm:"size:255"                        json:"image_url"`
	Category    string          `gorm:"size:50;index"                   json:"category"`
	Brand       string          `gorm:"size:50"                         json:"brand"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"     json:"price"`
	Stock       int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product name is required: %w", ErrValidation)
	}
	if err := ValidatePrice(p.Price); err != nil {
		return err
	}
	if p.Stock < 0 {
		return fmt.Errorf("stock cannot be negative: %w", ErrValidation)
	}
	if p.Stock > MaxStock {
		return fmt.Errorf("stock cannot exceed %d: %w", MaxStock, ErrValidation)
	}
	return nil
}

// ValidatePrice accepts positive prices with at most two decimal places.
func ValidatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("price must be positive: %w", ErrValidation)
	}
	if !price.Equal(price.Round(PriceScale)) {
		return fmt.Errorf("price must have at most %d decimal places: %w", PriceScale, ErrValidation)
	}
	return nil
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// BeforeSave runs on Create and Save. Expression updates use UpdateColumns and carry their own SQL guard.
func (p *Product) BeforeSave(tx *gorm.DB) error {
	return p.Validate()
}

type User struct {
	ID           uuid.UUID `gorm:"type:varchar(36);primaryKey"  json:"id"`
	Username     string    `gorm:"size:80;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:128;not null"            json:"-"`
	Role         string    `gorm:"size:16;not null;default:user" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

type CartItem struct {
	ID        uuid.UUID `gorm:"type:varchar(36);primaryKey"                                json:"id"`
	UserID    uuid.UUID `gorm:"type:varchar(36);uniqueIndex:idx_user_product;not null"     json:"user_id"`
	ProductID uuid.UUID `gorm:"type:varchar(36);uniqueIndex:idx_user_product;index;not null" json:"product_id"`
	Quantity  int       `gorm:"not null;check:quantity>0"                                  json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string {
	return "cart_items"
}

type Order struct {
	ID        uuid.UUID   `gorm:"type:varchar(36);primaryKey"              json:"id"`
	UserID    uuid.UUID   `gorm:"type:varchar(36);index;not null"          json:"user_id"`
	CreatedAt time.Time   `gorm:"index"                                    json:"created_at"`
	Items     []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Total is always derived from the persisted line items.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for i := range o.Items {
		total = total.Add(o.Items[i].Subtotal())
	}
	return total
}

type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:varchar(36);primaryKey"         json:"id"`
	OrderID     uuid.UUID       `gorm:"type:varchar(36);index;not null"     json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:varchar(36);index;not null"     json:"product_id"`
	Line        int             `gorm:"not null"                            json:"line"`
	ProductName string          `gorm:"size:100;not null"                   json:"product_name"`
	Quantity    int             `gorm:"not null;check:quantity>0"           json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"         json:"price"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func All() []any {
	return []any{&User{}, &Product{}, &CartItem{}, &Order{}, &OrderItem{}}
}
