package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/bondplatform/bond-backend/internal/http/middleware"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	return r
}

func TestPaymentHandler_ListMyTransactions_Unauthorized(t *testing.T) {
	r := newTestRouter()
	handler := &PaymentHandler{payments: nil}
	r.GET("/payments/transactions", handler.ListMyTransactions)

	req, _ := http.NewRequest("GET", "/payments/transactions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandler_ListContractTransactions_Unauthorized(t *testing.T) {
	r := newTestRouter()
	handler := &PaymentHandler{payments: nil}
	r.GET("/contracts/:id/transactions", handler.ListContractTransactions)

	req, _ := http.NewRequest("GET", "/contracts/1b4e28ba-2fa1-11d2-883f-0016d3cca427/transactions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandler_Confirm_InvalidBody(t *testing.T) {
	r := newTestRouter()
	handler := &PaymentHandler{payments: nil}
	r.POST("/payments/confirm", handler.Confirm)

	req, _ := http.NewRequest("POST", "/payments/confirm", strings.NewReader(`{"amount": -5}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_Confirm_InvalidContractID(t *testing.T) {
	r := newTestRouter()
	handler := &PaymentHandler{payments: nil}
	r.POST("/payments/confirm", handler.Confirm)

	body := `{"contract_id": "not-a-uuid", "amount": 100, "settlement_ref": "pay_001", "method": "fiat"}`
	req, _ := http.NewRequest("POST", "/payments/confirm", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
