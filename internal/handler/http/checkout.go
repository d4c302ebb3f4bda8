package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BeoGonzalez/gamershop/internal/service"
	"github.com/BeoGonzalez/gamershop/pkg/validator"
)

// CheckoutHandler handles HTTP requests for checkout and order endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// CheckoutRequest is the JSON request body for placing an order. The body is
// optional; an absent or empty body uses the cart currency.
type CheckoutRequest struct {
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		var valErr *validator.ValidationError
		if errors.As(err, &valErr) {
			writeJSON(w, http.StatusBadRequest, response{
				Error: &errorResponse{
					Code:    "VALIDATION_ERROR",
					Message: "request validation failed",
					Fields:  valErr.Fields(),
				},
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: err.Error()},
		})
		return
	}

	order, err := h.service.Checkout(r.Context(), session, req.Currency)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: order})
}

// ListOrders handles GET /api/v1/orders
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	orders, err := h.service.ListOrders(r.Context(), session)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: orders})
}

// GetOrder handles GET /api/v1/orders/{orderID}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "orderID is required"},
		})
		return
	}

	order, err := h.service.GetOrder(r.Context(), session, orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: order})
}
