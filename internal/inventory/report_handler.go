package inventory

import (
	"time"

	"inventory-backend/internal/models"
	"inventory-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

// MovementReport summarises one product's ledger over a period. Unexplained is
// the part of the current quantity the ledger does not account for; it is only
// meaningful when the period runs up to now.
type MovementReport struct {
	ProductID   uint                           `json:"product_id"`
	Name        string                         `json:"name"`
	Opening     int                            `json:"opening"`
	Closing     int                            `json:"closing"`
	Current     int                            `json:"current"`
	Unexplained int                            `json:"unexplained"`
	ByType      map[models.TransactionType]int `json:"by_type"`
	Count       int                            `json:"transaction_count"`
}

// Summarize expects txs oldest first. Without transactions opening and closing
// fall back to the live quantity.
func Summarize(p models.Product, txs []models.Transaction) MovementReport {
	r := MovementReport{
		ProductID: p.ID,
		Name:      p.Name,
		Opening:   p.Quantity,
		Closing:   p.Quantity,
		Current:   p.Quantity,
		ByType:    map[models.TransactionType]int{},
		Count:     len(txs),
	}
	if len(txs) == 0 {
		return r
	}

	r.Opening = txs[0].PreviousQuantity
	r.Closing = txs[len(txs)-1].NewQuantity
	for _, tx := range txs {
		r.ByType[tx.Type] += tx.Quantity
	}
	r.Unexplained = r.Closing - p.Quantity
	return r
}

// GET /api/reports/stock-movements?from=2025-03-01&to=2025-04-01&category=coffee
func StockMovementReportHandler(products store.ProductStore, ledger store.LedgerStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := parseTime(c, "from")
		if err != nil {
			return err
		}
		to, err := parseTime(c, "to")
		if err != nil {
			return err
		}
		if from.IsZero() {
			from = time.Now().AddDate(0, -1, 0)
		}
		if !to.IsZero() && to.Before(from) {
			return fiber.NewError(fiber.StatusBadRequest, "to is before from")
		}

		ctx := c.UserContext()
		list, err := products.ListProducts(ctx, store.ProductFilter{Category: c.Query("category")})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list products")
		}

		res := make([]MovementReport, 0, len(list))
		for _, p := range list {
			txs, err := ledger.ListTransactions(ctx, p.ID, from, to)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "could not list transactions")
			}
			res = append(res, Summarize(p, txs))
		}
		return c.JSON(res)
	}
}
