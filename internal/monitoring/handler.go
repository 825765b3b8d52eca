// Package monitoring exposes anomalies, alerts and the detection trigger over HTTP.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"inventory-backend/internal/audit"
	"inventory-backend/internal/auth"
	"inventory-backend/internal/detection"
	"inventory-backend/internal/models"
	"inventory-backend/internal/scheduler"
	"inventory-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const defaultLimit = 100

type Trigger interface {
	RunNow(ctx context.Context) (*detection.Result, error)
	Stats() scheduler.Stats
}

type Deps struct {
	Anomalies store.AnomalyStore
	Alerts    store.AlertStore
	Audit     *audit.Service
	Trigger   Trigger
	Log       *zap.Logger
}

func Register(r fiber.Router, d Deps) {
	admin := auth.RequireRole(models.RoleAdmin)

	r.Get("/anomalies", ListAnomaliesHandler(d.Anomalies))
	r.Post("/anomalies/:id/resolve", admin, ResolveAnomalyHandler(d.Anomalies, d.Audit, d.Log))
	r.Get("/alerts", ListAlertsHandler(d.Alerts))
	r.Post("/alerts/:id/read", MarkAlertReadHandler(d.Alerts))
	r.Post("/detection/run", admin, RunDetectionHandler(d.Trigger, d.Log))
	r.Get("/detection/status", DetectionStatusHandler(d.Trigger))
}

func idParam(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

func optionalID(c *fiber.Ctx, key string) (*uint, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s", key))
	}
	return store.UintPtr(uint(id)), nil
}

// GET /api/anomalies?product_id=1&type=low_stock,potential_theft&resolved=false&limit=50
func ListAnomaliesHandler(st store.AnomalyStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pid, err := optionalID(c, "product_id")
		if err != nil {
			return err
		}

		f := store.AnomalyFilter{
			ProductID:  pid,
			SystemWide: c.QueryBool("system_wide"),
			Limit:      c.QueryInt("limit", defaultLimit),
		}
		if types := c.Query("type"); types != "" {
			for _, t := range strings.Split(types, ",") {
				f.Types = append(f.Types, models.AnomalyType(strings.TrimSpace(t)))
			}
		}
		switch c.Query("resolved") {
		case "":
		case "true":
			f.Resolved = store.Bool(true)
		case "false":
			f.Resolved = store.Bool(false)
		default:
			return fiber.NewError(fiber.StatusBadRequest, "resolved must be true or false")
		}

		anomalies, err := st.FindAnomalies(c.UserContext(), f)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list anomalies")
		}
		return c.JSON(anomalies)
	}
}

// POST /api/anomalies/:id/resolve
func ResolveAnomalyHandler(st store.AnomalyStore, auditor *audit.Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		a, changed, err := st.ResolveAnomaly(ctx, id, time.Now())
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "anomaly not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not resolve anomaly")
		}
		if !changed {
			return c.JSON(a)
		}

		if err := auditor.WriteLog(ctx, audit.LogOptions{
			Actor:       auth.Actor(c),
			EntityType:  audit.EntityAnomaly,
			EntityID:    a.ID,
			Action:      models.AuditActionResolve,
			Description: fmt.Sprintf("resolved %s anomaly", a.Type),
			After:       a,
		}); err != nil {
			log.Warn("audit log failed", zap.Uint("anomaly_id", a.ID), zap.Error(err))
		}

		return c.JSON(a)
	}
}

// GET /api/alerts?product_id=1&unread=true&type=security
func ListAlertsHandler(st store.AlertStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pid, err := optionalID(c, "product_id")
		if err != nil {
			return err
		}

		alerts, err := st.FindAlerts(c.UserContext(), store.AlertFilter{
			ProductID:  pid,
			Type:       c.Query("type"),
			UnreadOnly: c.QueryBool("unread"),
			Limit:      c.QueryInt("limit", defaultLimit),
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list alerts")
		}
		return c.JSON(alerts)
	}
}

// POST /api/alerts/:id/read
func MarkAlertReadHandler(st store.AlertStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}

		a, err := st.MarkAlertRead(c.UserContext(), id)
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "alert not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update alert")
		}
		return c.JSON(a)
	}
}

// POST /api/detection/run
func RunDetectionHandler(tr Trigger, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := tr.RunNow(c.UserContext())
		if err != nil {
			log.Error("manual detection run failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "detection failed")
		}
		return c.JSON(res)
	}
}

// GET /api/detection/status
func DetectionStatusHandler(tr Trigger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(tr.Stats())
	}
}
