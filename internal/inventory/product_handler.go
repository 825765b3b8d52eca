// Package inventory exposes products, stock changes and the ledger over HTTP.
package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"inventory-backend/internal/audit"
	"inventory-backend/internal/auth"
	"inventory-backend/internal/models"
	"inventory-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CreateProductRequest struct {
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	Quantity     int        `json:"quantity"`
	Price        float64    `json:"price"`
	ExpiryDate   *time.Time `json:"expiry_date"`
	MinimumStock *int       `json:"minimum_stock"`
	Currency     string     `json:"currency"`
}

// UpdateProductRequest is a partial update; nil fields are left alone.
type UpdateProductRequest struct {
	Name         *string    `json:"name"`
	Category     *string    `json:"category"`
	Quantity     *int       `json:"quantity"`
	Price        *float64   `json:"price"`
	ExpiryDate   *time.Time `json:"expiry_date"`
	ClearExpiry  bool       `json:"clear_expiry"`
	MinimumStock *int       `json:"minimum_stock"`
	Currency     *string    `json:"currency"`
}

func productID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}
	return uint(id), nil
}

func validateProduct(p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))

	switch {
	case p.Name == "":
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	case p.Quantity < 0:
		return fiber.NewError(fiber.StatusBadRequest, "quantity cannot be negative")
	case p.Price < 0:
		return fiber.NewError(fiber.StatusBadRequest, "price cannot be negative")
	case p.MinimumStock < 0:
		return fiber.NewError(fiber.StatusBadRequest, "minimum_stock cannot be negative")
	case len(p.Currency) > 3:
		return fiber.NewError(fiber.StatusBadRequest, "currency must be an ISO 4217 code")
	}
	return nil
}

// GET /api/products?category=coffee&low_stock=true
func ListProductsHandler(st store.ProductStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		products, err := st.ListProducts(c.UserContext(), store.ProductFilter{
			Category:     c.Query("category"),
			LowStockOnly: c.QueryBool("low_stock"),
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list products")
		}
		return c.JSON(products)
	}
}

// GET /api/products/:id
func GetProductHandler(st store.ProductStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := productID(c)
		if err != nil {
			return err
		}

		p, err := st.GetProduct(c.UserContext(), id)
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load product")
		}
		return c.JSON(p)
	}
}

// POST /api/products
func CreateProductHandler(st store.ProductStore, auditor *audit.Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		p := models.Product{
			Name:         body.Name,
			Category:     body.Category,
			Quantity:     body.Quantity,
			Price:        body.Price,
			ExpiryDate:   body.ExpiryDate,
			MinimumStock: models.DefaultMinimumStock,
			Currency:     body.Currency,
		}
		if body.MinimumStock != nil {
			p.MinimumStock = *body.MinimumStock
		}
		if err := validateProduct(&p); err != nil {
			return err
		}

		ctx := c.UserContext()
		if err := st.CreateProduct(ctx, &p); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create product")
		}

		if err := auditor.WriteLog(ctx, audit.LogOptions{
			Actor:       auth.Actor(c),
			EntityType:  audit.EntityProduct,
			EntityID:    p.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("created %s with %d units", p.Name, p.Quantity),
			After:       p,
		}); err != nil {
			log.Warn("audit log failed", zap.Uint("product_id", p.ID), zap.Error(err))
		}

		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// PUT /api/products/:id
//
// A direct edit: quantity changes here bypass the ledger and are only recorded in
// the audit log. Detection treats the resulting gap as unexplained stock.
func UpdateProductHandler(st store.ProductStore, auditor *audit.Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := productID(c)
		if err != nil {
			return err
		}

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		ctx := c.UserContext()
		current, err := st.GetProduct(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load product")
		}

		before := *current
		p := *current
		var columns []string
		set := func(column string) { columns = append(columns, column) }
		if body.Name != nil {
			p.Name = *body.Name
			set("name")
		}
		if body.Category != nil {
			p.Category = *body.Category
			set("category")
		}
		if body.Quantity != nil {
			p.Quantity = *body.Quantity
			set("quantity")
		}
		if body.Price != nil {
			p.Price = *body.Price
			set("price")
		}
		if body.ClearExpiry {
			p.ExpiryDate = nil
			set("expiry_date")
		} else if body.ExpiryDate != nil {
			p.ExpiryDate = body.ExpiryDate
			set("expiry_date")
		}
		if body.MinimumStock != nil {
			p.MinimumStock = *body.MinimumStock
			set("minimum_stock")
		}
		if body.Currency != nil {
			p.Currency = *body.Currency
			set("currency")
		}
		if err := validateProduct(&p); err != nil {
			return err
		}

		// Only the fields in the request are written, so a stock change that lands
		// after the read above keeps its quantity.
		if err := st.UpdateProduct(ctx, &p, columns...); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "product not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not update product")
		}

		updated, err := st.GetProduct(ctx, id)
		if err != nil {
			log.Warn("reload after update failed", zap.Uint("product_id", id), zap.Error(err))
			updated = &p
		}

		desc := fmt.Sprintf("updated %s", updated.Name)
		if body.Quantity != nil && *body.Quantity != before.Quantity {
			desc = fmt.Sprintf("updated %s, quantity %d -> %d", updated.Name, before.Quantity, *body.Quantity)
		}
		if err := auditor.WriteLog(ctx, audit.LogOptions{
			Actor:       auth.Actor(c),
			EntityType:  audit.EntityProduct,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: desc,
			Before:      before,
			After:       updated,
		}); err != nil {
			log.Warn("audit log failed", zap.Uint("product_id", id), zap.Error(err))
		}

		return c.JSON(updated)
	}
}
