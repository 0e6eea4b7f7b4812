package utils

import (
	"fixly/src/db"
	"fixly/src/lib"
	"fixly/src/models"
	"fixly/src/types"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func IsProd() bool {
	apiEnv := os.Getenv("API_ENV")
	return apiEnv == "production"
}

// SendBookingNotice mails the booking party. A missing SMTP_HOST means
// notifications are disabled for this environment, not an error.
func SendBookingNotice(profileID uint, subject string, body string) {
	if os.Getenv("SMTP_HOST") == "" {
		return
	}
	var profile models.Profile
	db := db.GetDb()
	if err := db.
		Model(&models.Profile{}).
		Select("id", "name", "email").
		Where("id = ?", profileID).
		First(&profile).
		Error; err != nil {
		log.Printf("Could not look up profile %d for notification: %s\n", profileID, err.Error())
		return
	}
	if profile.Email == "" {
		return
	}
	if err := lib.SendMail(&lib.SendMailInput{
		From:     os.Getenv("SMTP_FROM"),
		FromName: "noreply",
		To:       []string{profile.Email},
		Subject:  subject,
		Body:     body,
	}); err != nil {
		log.Printf("Could not send notification to profile %d: %s\n", profileID, err.Error())
	}
}

func GenerateJWT(profile *models.Profile) (string, error) {
	claims := types.Claims{
		Email: profile.Email,
		Role:  string(profile.Role),
		UID:   profile.UID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(profile.ID),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}
