package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/cartify/pkg/metrics"
	middleware "github.com/Skotchmaster/cartify/pkg/middleware/auth"
	"github.com/Skotchmaster/cartify/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/cartify/pkg/middleware/logging"
	"github.com/Skotchmaster/cartify/pkg/tokens"
)

type Deps struct {
	Auth     *AuthHTTP
	Cart     *CartHTTP
	Checkout *CheckoutHTTP
	Orders   *OrderHTTP
	Catalog  *CatalogHTTP
	Health   *HealthHTTP

	JWTSecret []byte
	Metrics   *metrics.Metrics
}

// NewServer builds an echo instance with the shared middleware chain.
func NewServer(log *slog.Logger, m *metrics.Metrics, corsOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(
		echomw.Recover(),
		echomw.RequestID(),
		m.Middleware(),
		loggingmw.RequestLogger(log),
		echomw.Secure(),
		csrf.Middleware(csrf.Config{AuthCookie: tokens.AccessCookie}),
	)
	if len(corsOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     corsOrigins,
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, HeaderIdempotencyKey, csrf.HeaderName},
			ExposeHeaders:    []string{echo.HeaderXRequestID, HeaderReplayed, "Retry-After"},
		}))
	}
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", d.Health.Live)
	e.GET("/health/ready", d.Health.Ready)
	e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))

	authMW := middleware.NewAuthMiddleware(d.JWTSecret)

	auth := e.Group("/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/logout", d.Auth.Logout)

	products := e.Group("/products")
	products.GET("", d.Catalog.GetProducts)
	products.GET("/search", d.Catalog.SearchProducts)
	products.GET("/:id", d.Catalog.GetProduct)

	admin := products.Group("", authMW.RequireAdmin)
	admin.POST("", d.Catalog.CreateProduct)
	admin.PATCH("/:id", d.Catalog.PatchProduct)
	admin.DELETE("/:id", d.Catalog.DeleteProduct)
	admin.POST("/:id/restock", d.Catalog.Restock)

	cart := e.Group("/cart", authMW.RequireAuth)
	cart.POST("", d.Cart.AddItem)
	cart.DELETE("", d.Cart.ClearCart)
	cart.GET("/:user", d.Cart.ListCart)
	cart.PATCH("/:line", d.Cart.SetQuantity)
	cart.DELETE("/:line", d.Cart.RemoveItem)

	e.POST("/checkout/:user", d.Checkout.Checkout, authMW.RequireAuth)

	orders := e.Group("/orders", authMW.RequireAuth)
	orders.GET("/:user", d.Orders.ListOrders)
	orders.GET("/:user/:id", d.Orders.GetOrder)
	orders.DELETE("/:user/:id", d.Orders.DeleteOrder)
}
