package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

// GetGatewayTimeout bounds every outbound payment-processor call.
func GetGatewayTimeout() time.Duration {
	raw := os.Getenv("GATEWAY_TIMEOUT_SECONDS")
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		secs = 15
	}
	return time.Duration(secs) * time.Second
}

// GetPlatformFeePercent is the marketplace commission applied when a price
// is quoted server-side, e.g. on the SOS path.
func GetPlatformFeePercent() int64 {
	raw := os.Getenv("PLATFORM_FEE_PERCENT")
	pct, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || pct < 0 || pct > 100 {
		pct = 10
	}
	return pct
}

// GetPendingBookingTTL is how long an unpaid pending booking may sit before
// the expiry job cancels it.
func GetPendingBookingTTL() time.Duration {
	raw := os.Getenv("PENDING_BOOKING_TTL_HOURS")
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}
