package main

import (
	"errors"
	"fixly/src/db"
	"fixly/src/escrow"
	"fixly/src/gateway"
	"fixly/src/lifecycle"
	"fixly/src/models"
	"fixly/src/types"
	"fixly/src/utils"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// httpStatusForError maps the lifecycle/gateway error taxonomy onto response
// codes. Persistence errors after a successful money movement are the only
// case reported as a generic contact-support failure.
func httpStatusForError(err error) int {
	var invalid *lifecycle.InvalidTransitionError
	var conflict *lifecycle.ConflictingTransitionError
	var persistence *lifecycle.PersistenceError
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrNotParty):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrNoActiveSubscription):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrProviderUnavailable),
		errors.Is(err, lifecycle.ErrAlreadyCaptured),
		errors.Is(err, lifecycle.ErrEscrowNotPopulated),
		errors.Is(err, lifecycle.ErrProviderNotPayable),
		errors.Is(err, lifecycle.ErrIntentMismatch),
		errors.Is(err, lifecycle.ErrBookingClosed),
		errors.Is(err, escrow.ErrInvalidSplit):
		return http.StatusBadRequest
	// Checked before the transition errors: a persistence failure can wrap a
	// lost CAS, and money already moved takes precedence.
	case errors.As(err, &persistence):
		return http.StatusInternalServerError
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case gateway.IsTimeout(err):
		return http.StatusGatewayTimeout
	case gateway.IsCode(err, gateway.ErrDeclined):
		return http.StatusBadRequest
	case gateway.IsCode(err, gateway.ErrConfig):
		return http.StatusInternalServerError
	}
	var ge *gateway.GatewayError
	if errors.As(err, &ge) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(ctx *gin.Context, err error) {
	status := httpStatusForError(err)
	var persistence *lifecycle.PersistenceError
	if errors.As(err, &persistence) {
		ctx.JSON(status, gin.H{"error": "Processing failed, please contact support"})
		return
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/bookings", func(ctx *gin.Context) {
			callerId := ctx.GetUint("id")
			db := db.GetDb()
			var bookings []models.Booking
			err := db.
				Model(&models.Booking{}).
				Where("customer_id = ? OR provider_id = ?", callerId, callerId).
				Order("created_at DESC").
				Limit(100).
				Find(&bookings).
				Error
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			callerId := ctx.GetUint("id")
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Model(&models.Booking{}).
				Where("id = ?", params.ID).
				Preload("Service").
				First(&booking).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			if booking.CustomerID != callerId && booking.ProviderID != callerId {
				ctx.Status(http.StatusForbidden)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			callerId := ctx.GetUint("id")
			date, err := time.Parse("2006-01-02 15:04:05 -07:00", body.BookingDate)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking := models.Booking{
				CustomerID:      callerId,
				ProviderID:      body.ProviderID,
				ServiceID:       body.ServiceID,
				BookingDate:     date,
				StartTime:       body.StartTime,
				EndTime:         body.EndTime,
				BaseAmount:      body.BaseAmount,
				PlatformFee:     body.PlatformFee,
				TotalAmount:     body.BaseAmount + body.PlatformFee,
				Currency:        "gbp",
				Status:               types.BOOKING_PENDING,
				PaymentStatus:        types.PAYMENT_PENDING,
				ServiceLocation:      body.Location,
				RequiresConfirmation: true,
			}
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				return tx.Create(&booking).Error
			}); err != nil {
				log.Printf("Could not create booking: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Error while processing request"})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": booking})
		}).
		PUT("/bookings/:id/accept", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			callerId := ctx.GetUint("id")
			ctrl := lifecycle.NewController(db.GetDb(), getPaymentGateway())
			booking, err := ctrl.Accept(ctx.Request.Context(), params.ID, callerId)
			if err != nil {
				respondError(ctx, err)
				return
			}
			go notifyCustomer(booking, "Booking confirmed",
				fmt.Sprintf("Your booking #%d has been confirmed by the provider.", booking.ID))
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		PUT("/bookings/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CancelBookingRequestBody
			if ctx.Request.ContentLength > 0 {
				if err := ctx.ShouldBindJSON(&body); err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
			}
			callerId := ctx.GetUint("id")
			ctrl := lifecycle.NewController(db.GetDb(), getPaymentGateway())
			booking, refundId, err := ctrl.Cancel(ctx.Request.Context(), params.ID, callerId, body.Reason)
			if err != nil {
				respondError(ctx, err)
				return
			}
			go notifyCustomer(booking, "Booking cancelled",
				fmt.Sprintf("Booking #%d has been cancelled.", booking.ID))
			ctx.JSON(http.StatusOK, gin.H{"data": booking, "refund_id": refundId})
		}).
		PUT("/bookings/:id/start", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			callerId := ctx.GetUint("id")
			ctrl := lifecycle.NewController(db.GetDb(), getPaymentGateway())
			booking, err := ctrl.Start(ctx.Request.Context(), params.ID, callerId)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		PUT("/bookings/:id/complete", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			callerId := ctx.GetUint("id")
			ctrl := lifecycle.NewController(db.GetDb(), getPaymentGateway())
			booking, transferId, err := ctrl.Complete(ctx.Request.Context(), params.ID, callerId)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking, "transfer_id": transferId})
		})
	return g
}

func notifyCustomer(booking *models.Booking, subject string, body string) {
	utils.SendBookingNotice(booking.CustomerID, subject, body)
}
