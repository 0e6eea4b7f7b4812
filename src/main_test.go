package main

import (
	"encoding/json"
	"fixly/src/db"
	"fixly/src/gateway"
	"fixly/src/middlewares"
	"fixly/src/models"
	"fixly/src/types"
	"fixly/src/utils"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	// The dialector must own the stub connection; a ConnPool passed to
	// gorm.Open gets replaced when the driver opens its own pool.
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

var bookingColumns = []string{
	"id", "customer_id", "provider_id", "service_id",
	"base_amount", "platform_fee", "total_amount", "currency",
	"status", "payment_status", "payment_intent_id",
	"captured_amount", "amount_held_for_provider", "platform_fee_held", "captured_at",
}

// testAuth stands in for the verified-token middleware so handler tests do
// not need a profile lookup per request.
func testAuth(id uint, role string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set("id", id)
		ctx.Set("role", role)
	}
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	registerValidators()
	os.Unsetenv("API_ENV")
	os.Unsetenv("SMTP_HOST")
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestMissingToken() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(middlewares.AuthMiddleware)
	bookingHandlers(apiv1)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/bookings", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 401, w.Code)
}

func (s *TestSuite) TestAuthRoundTrip() {
	d, mock := NewMockDB()
	db.NewDB(d)

	profile := models.Profile{
		ID:    10,
		UID:   "uid-10",
		Name:  "Test Customer",
		Email: "someone@example.com",
		Role:  types.ROLE_CUSTOMER,
	}
	token, err := utils.GenerateJWT(&profile)
	assert.Nil(s.T(), err)

	mock.ExpectQuery(`SELECT (.+) FROM "profiles"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "uid", "name", "email", "role"}).
			AddRow(10, "uid-10", "Test Customer", "someone@example.com", "customer"))

	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(middlewares.AuthMiddleware)
	apiv1.GET("/whoami", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"id":    ctx.GetUint("id"),
			"email": ctx.GetString("email"),
			"role":  ctx.GetString("role"),
		})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/whoami", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	sjson := string(rbytes)
	assert.Equal(s.T(), int64(10), gjson.Get(sjson, "id").Int())
	assert.Equal(s.T(), "someone@example.com", gjson.Get(sjson, "email").String())
	assert.Equal(s.T(), "customer", gjson.Get(sjson, "role").String())
	assert.Nil(s.T(), mock.ExpectationsWereMet())
}

func (s *TestSuite) TestListBookings() {
	d, mock := NewMockDB()
	db.NewDB(d)

	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(testAuth(10, "customer"))
	bookingHandlers(apiv1)

	rows := sqlmock.NewRows(bookingColumns).
		AddRow(1, 10, 20, 30, 9000, 900, 9900, "gbp", "pending", "pending", nil, 0, 0, 0, nil).
		AddRow(2, 10, 21, 31, 4000, 400, 4400, "gbp", "completed", "paid", "pi_2", 4400, 4000, 400, time.Now())
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(rows)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/bookings", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	sjson := string(rbytes)
	assert.Equal(s.T(), int64(2), gjson.Get(sjson, "count").Int())
	assert.Equal(s.T(), "pending", gjson.Get(sjson, "data.0.status").String())
	assert.Nil(s.T(), mock.ExpectationsWereMet())
}

func (s *TestSuite) TestGetBookingForbidden() {
	d, mock := NewMockDB()
	db.NewDB(d)

	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(testAuth(999, "customer"))
	bookingHandlers(apiv1)

	rows := sqlmock.NewRows(bookingColumns).
		AddRow(1, 10, 20, 30, 9000, 900, 9900, "gbp", "pending", "pending", nil, 0, 0, 0, nil)
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(rows)
	mock.ExpectQuery(`SELECT (.+) FROM "services"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "provider_id"}).AddRow(30, 20))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/bookings/1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 403, w.Code)
}

func (s *TestSuite) TestCreateBookingValidation() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(testAuth(10, "customer"))
	bookingHandlers(apiv1)

	s.Run("Should reject a past booking date", func() {
		body := map[string]any{
			"provider_id":  20,
			"service_id":   30,
			"booking_date": "2020-01-01 09:00:00 +00:00",
			"start_time":   "09:00",
			"base_amount":  9000,
			"platform_fee": 900,
		}
		sbody, _ := json.Marshal(&body)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.NotEmpty(s.T(), gjson.Get(string(rbytes), "error").String())
	})

	s.Run("Should reject a zero amount", func() {
		body := map[string]any{
			"provider_id":  20,
			"service_id":   30,
			"booking_date": time.Now().Add(48 * time.Hour).Format("2006-01-02 15:04:05 -07:00"),
			"start_time":   "09:00",
			"base_amount":  0,
		}
		sbody, _ := json.Marshal(&body)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestSOSValidation() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(testAuth(10, "customer"))
	sosHandlers(apiv1)

	body := map[string]any{
		"provider_id":           20,
		"category_id":           3,
		"emergency_description": "no heating",
		"service_location":      "12 High Street",
		"urgency_level":         "asap",
		"payment_intent_id":     "pi_sos",
	}
	sbody, _ := json.Marshal(&body)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/bookings/sos", strings.NewReader(string(sbody)))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	assert.Contains(s.T(), gjson.Get(string(rbytes), "error").String(), "urgency")
}

func (s *TestSuite) TestCapturePayment() {
	d, mock := NewMockDB()
	db.NewDB(d)
	gw := gateway.NewMockGateway()
	gw.SeedIntent("pi_1", 9900, "gbp", false)
	newPaymentGateway(gw)

	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(testAuth(10, "customer"))
	paymentHandlers(apiv1)

	rows := sqlmock.NewRows(bookingColumns).
		AddRow(1, 10, 20, 30, 9000, 900, 9900, "gbp", "confirmed", "pending", "pi_1", 0, 0, 0, nil)
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(rows)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := map[string]any{
		"payment_intent_id": "pi_1",
		"booking_id":        1,
		"total_amount":      9900,
		"provider_amount":   9000,
		"platform_fee":      900,
	}
	sbody, _ := json.Marshal(&body)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/payments/capture", strings.NewReader(string(sbody)))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	sjson := string(rbytes)
	assert.Equal(s.T(), "funds_held_in_escrow", gjson.Get(sjson, "payment_status").String())
	assert.Equal(s.T(), int64(9900), gjson.Get(sjson, "amount_captured").Int())
	assert.Nil(s.T(), mock.ExpectationsWereMet())
}

func (s *TestSuite) TestCancelConflict() {
	d, mock := NewMockDB()
	db.NewDB(d)
	newPaymentGateway(gateway.NewMockGateway())

	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(testAuth(10, "customer"))
	bookingHandlers(apiv1)

	rows := sqlmock.NewRows(bookingColumns).
		AddRow(1, 10, 20, 30, 9000, 900, 9900, "gbp", "pending", "pending", nil, 0, 0, 0, nil)
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(rows)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/v1/bookings/1/cancel", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 409, w.Code)
	assert.Nil(s.T(), mock.ExpectationsWereMet())
}

func (s *TestSuite) TestAvailability() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(testAuth(20, "provider"))
	providerHandlers(apiv1)

	s.Run("Should reject a malformed schedule", func() {
		schedule := []map[string]any{}
		for i := range 7 {
			schedule = append(schedule, map[string]any{
				"day": i, "start": "09:00", "end": "08:00", "enabled": true,
			})
		}
		sbody, _ := json.Marshal(&schedule)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/api/v1/providers/availability", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should store a valid schedule", func() {
		d, mock := NewMockDB()
		db.NewDB(d)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "profiles" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		schedule := []map[string]any{}
		for i := range 7 {
			schedule = append(schedule, map[string]any{
				"day": i, "start": "09:00", "end": "17:00", "enabled": i >= 1 && i <= 5,
			})
		}
		sbody, _ := json.Marshal(&schedule)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/api/v1/providers/availability", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 200, w.Code)
		assert.Nil(s.T(), mock.ExpectationsWereMet())
	})
}

func (s *TestSuite) TestCustomerCannotSetAvailability() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(testAuth(10, "customer"))
	providerHandlers(apiv1)

	schedule := []map[string]any{}
	for i := range 7 {
		schedule = append(schedule, map[string]any{
			"day": i, "start": "09:00", "end": "17:00", "enabled": false,
		})
	}
	sbody, _ := json.Marshal(&schedule)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/v1/providers/availability", strings.NewReader(string(sbody)))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 403, w.Code)
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
