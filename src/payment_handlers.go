package main

import (
	"context"
	"encoding/json"
	"fixly/src/db"
	"fixly/src/gateway"
	"fixly/src/lib"
	"fixly/src/lifecycle"
	"fixly/src/models"
	"fixly/src/types"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

var paymentGateway gateway.PaymentGateway

func getPaymentGateway() gateway.PaymentGateway {
	if paymentGateway == nil {
		paymentGateway = gateway.FromEnv()
	}
	return paymentGateway
}

// newPaymentGateway Replace gateway instance with custom implementation
func newPaymentGateway(gw gateway.PaymentGateway) {
	paymentGateway = gw
}

func paymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/payments/intent", func(ctx *gin.Context) {
			var body types.CreatePaymentIntentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			callerId := ctx.GetUint("id")

			// Full-escrow model: a single charge for the whole amount. The
			// deposit field is carried as metadata only, never captured
			// separately.
			metadata := map[string]string{
				"user_id":        strconv.Itoa(int(callerId)),
				"service_id":     strconv.Itoa(int(body.ServiceID)),
				"provider_id":    strconv.Itoa(int(body.ProviderID)),
				"deposit_amount": strconv.FormatInt(body.DepositAmount, 10),
			}
			key := fmt.Sprintf("intent:%s", uuid.New().String())
			if body.BookingID != nil {
				metadata["booking_id"] = strconv.Itoa(int(*body.BookingID))
				key = fmt.Sprintf("booking:%d:authorize", *body.BookingID)
			}

			var customerRef string
			db := db.GetDb()
			var profile models.Profile
			if err := db.
				Model(&models.Profile{}).
				Where("id = ?", callerId).
				First(&profile).
				Error; err == nil && profile.StripeCustomerId != nil {
				customerRef = *profile.StripeCustomerId
			}

			res, err := getPaymentGateway().Authorize(ctx.Request.Context(), &gateway.AuthorizeRequest{
				Amount:         body.Amount,
				Currency:       body.Currency,
				CustomerRef:    customerRef,
				Metadata:       metadata,
				IdempotencyKey: key,
			})
			if err != nil {
				respondError(ctx, err)
				return
			}

			if body.BookingID != nil {
				// One non-expired intent per booking: the linkage write only
				// lands while no other intent is attached.
				err := db.Transaction(func(tx *gorm.DB) error {
					return tx.
						Model(&models.Booking{}).
						Where("id = ? AND payment_intent_id IS NULL", *body.BookingID).
						Update("payment_intent_id", res.IntentID).
						Error
				})
				if err != nil {
					log.Printf("Could not attach intent %s to booking %d: %s\n", res.IntentID, *body.BookingID, err.Error())
				}
			}

			ctx.JSON(http.StatusOK, gin.H{
				"client_secret":     res.ClientSecret,
				"payment_intent_id": res.IntentID,
				"amount":            body.Amount,
				"deposit_amount":    body.DepositAmount,
				"remaining_amount":  body.Amount - body.DepositAmount,
			})
		}).
		POST("/payments/capture", func(ctx *gin.Context) {
			var body types.CaptureDepositRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctrl := lifecycle.NewController(db.GetDb(), getPaymentGateway())
			_, capture, err := ctrl.CaptureToEscrow(ctx.Request.Context(), &lifecycle.CaptureRequest{
				BookingID:       body.BookingID,
				PaymentIntentID: body.PaymentIntentID,
				TotalAmount:     body.TotalAmount,
				ProviderAmount:  body.ProviderAmount,
				PlatformFee:     body.PlatformFee,
			})
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"capture_id":      capture.CaptureID,
				"amount_captured": capture.AmountCaptured,
				"payment_status":  types.PAYMENT_ESCROWED,
			})
		})
	return g
}

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)

		// Stripe redelivers events; process each id once.
		rd := lib.GetRedisClient()
		if rd != nil {
			ok, err := rd.SetNX(context.Background(), fmt.Sprintf("stripe_event:%s", event.ID), "1", 24*time.Hour).Result()
			if err == nil && !ok {
				log.Printf("[StripeEvent] Duplicate delivery of %s, skipping\n", event.ID)
				ctx.Status(http.StatusNoContent)
				return
			}
		}

		switch event.Type {
		case "account.updated":
			var acc stripe.Account
			if err := json.Unmarshal(event.Data.Raw, &acc); err != nil {
				log.Printf("[Stripe] Error parsing Account: %s\n", err.Error())
				break
			}
			md := acc.Metadata
			profileId, err := strconv.Atoi(md["profileId"])
			if err != nil {
				log.Printf("Error reading property profileId from Metadata: %s\n", err.Error())
				break
			}
			completed := len(acc.Requirements.Errors) == 0 &&
				acc.ChargesEnabled &&
				acc.PayoutsEnabled &&
				acc.DetailsSubmitted
			if completed {
				db := db.GetDb()
				db.Transaction(func(tx *gorm.DB) error {
					return tx.
						Model(&models.Profile{}).
						Where("id = ?", profileId).
						Updates(&models.Profile{
							PaymentVerified: acc.ChargesEnabled,
						}).
						Error
				})
			}
		case "payment_intent.canceled":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				return tx.
					Model(&models.Booking{}).
					Where("payment_intent_id = ? AND payment_status = ?", pi.ID, types.PAYMENT_PENDING).
					Update("payment_status", types.PAYMENT_FAILED).
					Error
			})
			if err != nil {
				log.Printf("Error flagging failed payment for intent %s: %s\n", pi.ID, err.Error())
			}
		case "payment_intent.payment_failed":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			log.Printf("[PaymentIntent] %s failed: %v\n", pi.ID, pi.LastPaymentError)
		}
		ctx.Status(http.StatusNoContent)
	})
	return apiv1
}
