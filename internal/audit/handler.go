package audit

import (
	"inventory-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

// GET /api/audit-logs?entity_type=product&entity_id=1&limit=50
func ListAuditLogsHandler(st store.AuditStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := store.AuditFilter{
			EntityType: c.Query("entity_type"),
			Limit:      c.QueryInt("limit", 100),
		}
		if id := c.QueryInt("entity_id", 0); id > 0 {
			f.EntityID = uint(id)
		}

		logs, err := st.ListAuditLogs(c.UserContext(), f)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list audit logs")
		}
		return c.JSON(logs)
	}
}
