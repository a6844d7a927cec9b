package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/cartify/internal/models"
)

type AddCartItemRequest struct {
	// User is optional; admins may fill another user's cart.
	User      string    `json:"user"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CartLine struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
}

type CartView struct {
	UserID uuid.UUID       `json:"user_id"`
	Items  []CartLine      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

type ClearCartResponse struct {
	Removed int64 `json:"removed"`
}

type OrderItemResponse struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderResponse struct {
	ID        uuid.UUID           `json:"id"`
	UserID    uuid.UUID           `json:"user_id"`
	CreatedAt time.Time           `json:"created_at"`
	Items     []OrderItemResponse `json:"items"`
	Total     decimal.Decimal     `json:"total"`
}

func NewOrderResponse(o *models.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i := range o.Items {
		it := &o.Items[i]
		items[i] = OrderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Subtotal:    it.Subtotal(),
		}
	}
	return OrderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		CreatedAt: o.CreatedAt,
		Items:     items,
		Total:     o.Total(),
	}
}

func NewOrderResponses(orders []models.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = NewOrderResponse(&orders[i])
	}
	return out
}

type CreateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type PatchProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	ImageURL    *string          `json:"image_url"`
	Category    *string          `json:"category"`
	Brand       *string          `json:"brand"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
}

type RestockRequest struct {
	Delta int `json:"delta"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	// Login is a username or an email.
	Login    string `json:"login"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResult struct {
	AccessToken string       `json:"access_token"`
	AccessExp   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
	IsAdmin     bool         `json:"is_admin"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
