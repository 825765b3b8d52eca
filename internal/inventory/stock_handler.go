package inventory

import (
	"errors"
	"time"

	"inventory-backend/internal/auth"
	"inventory-backend/internal/models"
	"inventory-backend/internal/stock"
	"inventory-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

type StockChangeRequest struct {
	Quantity int                    `json:"quantity"`
	Type     models.TransactionType `json:"type"`
	Reason   string                 `json:"reason"`
}

// POST /api/products/:id/stock
func ApplyStockChangeHandler(m *stock.Mutator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := productID(c)
		if err != nil {
			return err
		}

		var body StockChangeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		tx, err := m.Apply(c.UserContext(), stock.Change{
			ProductID: id,
			Quantity:  body.Quantity,
			Type:      body.Type,
			Reason:    body.Reason,
			Actor:     auth.Actor(c),
		})
		switch {
		case errors.Is(err, stock.ErrInvalidQuantity), errors.Is(err, stock.ErrInvalidType):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, "could not apply stock change")
		}

		return c.Status(fiber.StatusCreated).JSON(tx)
	}
}

func parseTime(c *fiber.Ctx, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, key+" must be RFC3339 or YYYY-MM-DD")
	}
	return t, nil
}

// GET /api/products/:id/transactions?from=2025-01-01&to=2025-02-01
func ListTransactionsHandler(products store.ProductStore, ledger store.LedgerStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := productID(c)
		if err != nil {
			return err
		}
		from, err := parseTime(c, "from")
		if err != nil {
			return err
		}
		to, err := parseTime(c, "to")
		if err != nil {
			return err
		}
		if !to.IsZero() && to.Before(from) {
			return fiber.NewError(fiber.StatusBadRequest, "to is before from")
		}

		ctx := c.UserContext()
		if _, err := products.GetProduct(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "product not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not load product")
		}

		txs, err := ledger.ListTransactions(ctx, id, from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list transactions")
		}
		return c.JSON(txs)
	}
}
