package inventory

import (
	"inventory-backend/internal/audit"
	"inventory-backend/internal/auth"
	"inventory-backend/internal/models"
	"inventory-backend/internal/stock"
	"inventory-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Deps struct {
	Store   store.Store
	Mutator *stock.Mutator
	Audit   *audit.Service
	Log     *zap.Logger
}

// Register mounts the product routes on an authenticated router.
func Register(r fiber.Router, d Deps) {
	admin := auth.RequireRole(models.RoleAdmin)

	products := r.Group("/products")
	products.Get("/", ListProductsHandler(d.Store))
	products.Post("/", admin, CreateProductHandler(d.Store, d.Audit, d.Log))
	products.Get("/:id", GetProductHandler(d.Store))
	products.Put("/:id", admin, UpdateProductHandler(d.Store, d.Audit, d.Log))
	products.Post("/:id/stock", ApplyStockChangeHandler(d.Mutator))
	products.Get("/:id/transactions", ListTransactionsHandler(d.Store, d.Store))

	r.Get("/reports/stock-movements", StockMovementReportHandler(d.Store, d.Store))
}
