package handler

import (
	"vehicle-auction-engine/internal/adapter/realtime"
	"vehicle-auction-engine/internal/core/ports"
	"vehicle-auction-engine/pkg/apperror"
	"vehicle-auction-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LotStream handles GET /ws?lot_id=&token=. Anonymous viewers get the public
// lot feed; a valid bidder token also delivers that bidder's outbid notices.
// Browsers cannot set headers on a websocket handshake, so the token travels
// in the query string.
func LotStream(hub *realtime.Hub, tokenSvc ports.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		lotID, err := uuid.Parse(c.Query("lot_id"))
		if err != nil {
			response.Error(c, apperror.Validation("lot_id is required"))
			return
		}

		var userID *uuid.UUID
		if token := c.Query("token"); token != "" {
			claims, err := tokenSvc.Validate(token)
			if err != nil {
				response.Error(c, apperror.ErrInvalidToken())
				return
			}
			userID = &claims.UserID
		}

		hub.Serve(c.Writer, c.Request, lotID, userID)
	}
}
