package main

import (
	"fixly/src/db"
	"fixly/src/models"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func providerHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/providers/availability", func(ctx *gin.Context) {
			callerId := ctx.GetUint("id")
			db := db.GetDb()
			var profile models.Profile
			if err := db.
				Model(&models.Profile{}).
				Where("id = ?", callerId).
				First(&profile).
				Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": profile.Availability})
		}).
		PUT("/providers/availability", func(ctx *gin.Context) {
			var schedule models.WeeklySchedule
			if err := ctx.ShouldBindJSON(&schedule); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			// Validated on write, never trusted as free-form JSON on read.
			if err := schedule.Validate(); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			callerId := ctx.GetUint("id")
			role := ctx.GetString("role")
			if role != "provider" {
				ctx.Status(http.StatusForbidden)
				return
			}
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				return tx.
					Model(&models.Profile{}).
					Where("id = ?", callerId).
					Update("availability", &schedule).
					Error
			})
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": schedule})
		})
	return g
}
