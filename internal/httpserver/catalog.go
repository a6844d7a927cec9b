package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cartify/internal/service"
	"github.com/Skotchmaster/cartify/internal/transport"
	"github.com/Skotchmaster/cartify/internal/util"
	"github.com/Skotchmaster/cartify/pkg/logging"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_product")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "get_product", "product id is not a uuid", err)
	}

	product, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return fail(c, l, "get_product", err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *CatalogHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_products")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, items, err := h.Svc.GetProducts(ctx, offset, limit)
	if err != nil {
		return fail(c, l, "get_products", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": util.NewMeta(page, offset, limit, total),
	})
}

func (h *CatalogHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, items, err := h.Svc.SearchProducts(ctx, c.QueryParam("q"), offset, limit)
	if err != nil {
		return fail(c, l, "search_products", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": util.NewMeta(page, offset, limit, total),
	})
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_product", "invalid body", err)
	}

	product, err := h.Svc.CreateProduct(ctx, req)
	if err != nil {
		return fail(c, l, "create_product", err)
	}

	l.Info("product created", "product_id", product.ID)
	return c.JSON(http.StatusCreated, product)
}

func (h *CatalogHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.patch")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "patch_product", "product id is not a uuid", err)
	}
	var req transport.PatchProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "patch_product", "invalid body", err)
	}

	product, err := h.Svc.PatchProduct(ctx, id, req)
	if err != nil {
		return fail(c, l, "patch_product", err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *CatalogHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "delete_product", "product id is not a uuid", err)
	}

	if err := h.Svc.DeleteProduct(ctx, id); err != nil {
		return fail(c, l, "delete_product", err)
	}

	l.Info("product deleted", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHTTP) Restock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.restock")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "restock", "product id is not a uuid", err)
	}
	var req transport.RestockRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "restock", "invalid body", err)
	}

	product, err := h.Svc.Restock(ctx, id, req.Delta)
	if err != nil {
		return fail(c, l, "restock", err)
	}

	l.Info("product restocked", "product_id", id, "delta", req.Delta, "stock", product.Stock)
	return c.JSON(http.StatusOK, product)
}
