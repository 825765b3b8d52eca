package audit

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"inventory-backend/internal/models"
	"inventory-backend/internal/store"
	"inventory-backend/internal/store/storetest"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLog(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	svc := NewService(st)

	before := models.Product{ID: 3, Name: "Tea", Quantity: 40}
	after := before
	after.Quantity = 25

	require.NoError(t, svc.WriteLog(ctx, LogOptions{
		Actor:       "ayla",
		EntityType:  EntityProduct,
		EntityID:    3,
		Action:      models.AuditActionUpdate,
		Description: "quantity 40 -> 25",
		Before:      before,
		After:       after,
	}))
	require.NoError(t, svc.WriteLog(ctx, LogOptions{EntityType: EntityAnomaly, EntityID: 9, Action: models.AuditActionResolve}))

	logs, err := st.ListAuditLogs(ctx, storeFilter(EntityProduct, 3))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "ayla", logs[0].Actor)

	var got models.Product
	require.NoError(t, json.Unmarshal(logs[0].AfterData, &got))
	assert.Equal(t, 25, got.Quantity)

	logs, err = st.ListAuditLogs(ctx, storeFilter(EntityAnomaly, 9))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SystemActor, logs[0].Actor)
	assert.JSONEq(t, "null", string(logs[0].BeforeData))
}

func TestSnapshotFallsBackToNull(t *testing.T) {
	assert.Equal(t, "null", string(snapshot(nil)))
	assert.Equal(t, "null", string(snapshot(make(chan int))))
	assert.JSONEq(t, `{"a":1}`, string(snapshot(map[string]int{"a": 1})))
}

func TestListAuditLogsHandler(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	svc := NewService(st)
	for i := uint(1); i <= 3; i++ {
		require.NoError(t, svc.WriteLog(ctx, LogOptions{EntityType: EntityProduct, EntityID: i, Action: models.AuditActionUpdate}))
	}

	app := fiber.New()
	app.Get("/api/audit-logs", ListAuditLogsHandler(st))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/audit-logs?entity_type=product&entity_id=2", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var logs []models.AuditLog
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&logs))
	require.Len(t, logs, 1)
	assert.Equal(t, uint(2), logs[0].EntityID)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/audit-logs?limit=2", nil))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&logs))
	assert.Len(t, logs, 2)
}

func storeFilter(entityType string, id uint) store.AuditFilter {
	return store.AuditFilter{EntityType: entityType, EntityID: id}
}
