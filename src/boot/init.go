package boot

import (
	"fixly/src/config"
	"fixly/src/db"
	"fixly/src/gateway"
	"fixly/src/lifecycle"
	"fixly/src/models"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.Profile{},
		&models.Service{},
		&models.Subscription{},
		&models.Booking{},
		&models.ReconciliationLog{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

var scheduler gocron.Scheduler

// InitScheduler starts the background job that expires pending bookings
// which never captured funds within the configured TTL.
func InitScheduler() {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("Error creating scheduler: %s\n", err.Error())
		return
	}
	ctrl := lifecycle.NewController(db.GetDb(), gateway.FromEnv())
	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			n, err := ctrl.ExpireStalePending(config.GetPendingBookingTTL())
			if err != nil {
				log.Printf("Error expiring stale bookings: %s\n", err.Error())
				return
			}
			if n > 0 {
				log.Printf("Expired %d stale pending bookings\n", n)
			}
		}),
	)
	if err != nil {
		log.Printf("Error scheduling expiry job: %s\n", err.Error())
		return
	}
	scheduler = sched
	sched.Start()
}

func StopScheduler() {
	if scheduler == nil {
		return
	}
	if err := scheduler.Shutdown(); err != nil {
		log.Printf("Error stopping scheduler: %s\n", err.Error())
	}
}
