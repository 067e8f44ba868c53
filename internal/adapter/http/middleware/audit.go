package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// auditedRoutes maps "METHOD route-pattern" to an action and resource type.
var auditedRoutes = map[string]struct {
	action   domain.AuditAction
	resource string
}{
	"POST /api/v1/funding/deposits":     {domain.AuditActionDeposit, "wallet"},
	"POST /api/v1/funding/refunds":      {domain.AuditActionRefund, "wallet"},
	"POST /api/v1/wallet/withdraw":      {domain.AuditActionWithdraw, "wallet"},
	"POST /api/v1/lots/:id/bids":        {domain.AuditActionPlaceBid, "lot"},
	"PUT /api/v1/lots/:id/max-bid":      {domain.AuditActionSetMaxBid, "lot"},
	"POST /api/v1/lots/:id/buy-now":     {domain.AuditActionBuyItNow, "lot"},
	"POST /api/v1/lots":                 {domain.AuditActionCreateLot, "lot"},
	"POST /api/v1/lots/:id/start":       {domain.AuditActionStartLot, "lot"},
	"POST /api/v1/lots/:id/pause":       {domain.AuditActionPauseLot, "lot"},
	"POST /api/v1/lots/:id/resume":      {domain.AuditActionResumeLot, "lot"},
	"POST /api/v1/lots/:id/close":       {domain.AuditActionCloseLot, "lot"},
	"POST /api/v1/lots/:id/cancel":      {domain.AuditActionCancelLot, "lot"},
	"POST /api/v1/lots/:id/storage-fee": {domain.AuditActionStorageFee, "order"},
}

// AuditLog creates an audit middleware that logs successful write operations.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		route, ok := auditedRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		var actorID *uuid.UUID
		if id, ok := UserID(c); ok {
			actorID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
			"actor":  c.GetString(CtxActor),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       route.action,
			ResourceType: route.resource,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
