package main

import (
	"fixly/src/db"
	"fixly/src/lifecycle"
	"fixly/src/types"
	"net/http"

	"github.com/gin-gonic/gin"
)

func sosHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.POST("/bookings/sos", func(ctx *gin.Context) {
		var body types.CreateSOSBookingRequestBody
		if err := ctx.ShouldBindJSON(&body); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		callerId := ctx.GetUint("id")
		ctrl := lifecycle.NewController(db.GetDb(), getPaymentGateway())
		booking, err := ctrl.CreateSOSBooking(ctx.Request.Context(), &lifecycle.SOSRequest{
			CustomerID:           callerId,
			ProviderID:           body.ProviderID,
			CategoryID:           body.CategoryID,
			EmergencyDescription: body.EmergencyDescription,
			ServiceLocation:      body.ServiceLocation,
			UrgencyLevel:         types.UrgencyLevel(body.UrgencyLevel),
			PaymentIntentID:      body.PaymentIntentID,
		})
		if err != nil {
			respondError(ctx, err)
			return
		}
		ctx.JSON(http.StatusCreated, gin.H{
			"data":              booking,
			"estimated_arrival": booking.EstimatedArrival,
		})
	})
	return g
}
