package order_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-orders/internal/auth"
	"ms-orders/internal/logger"
	"ms-orders/internal/models"
	"ms-orders/internal/order"
	"ms-orders/internal/qrcode"
	"ms-orders/internal/utils"
	"ms-orders/internal/verify"
)

// OrderService is the slice of the lifecycle engine the handlers call.
type OrderService interface {
	PlaceOrder(ctx context.Context, req models.CreateOrderRequest, userID string) (*models.Order, error)
	TransitionStatus(ctx context.Context, code string, target string) (*models.Order, error)
	GetOrderByCode(ctx context.Context, code string) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter, page models.Pagination) (*models.PaginatedOrders, error)
	DeleteOrder(ctx context.Context, code string) error
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
}

// VerifyService performs the admission check for scanned credentials.
type VerifyService interface {
	Scan(ctx context.Context, raw string) (*verify.ScanResult, error)
}

// ImageStore reads rendered credential artifacts by filename.
type ImageStore interface {
	Image(filename string) ([]byte, error)
}

type Handler struct {
	OrderService  OrderService
	VerifyService VerifyService
	Codec         ImageStore
	Logger        *logger.Logger
}

// CreateOrder handles POST /api/orders. The route is public and orders
// are created anonymously; they are retrieved later by their order code.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	created, err := h.OrderService.PlaceOrder(r.Context(), req, auth.UserID(r.Context()))
	if err != nil {
		h.writeOrderError(w, "CreateOrder", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Order created successfully", created))
}

// ListOrders handles GET /api/orders with status/owner/search filters,
// pagination and sorting.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter models.OrderFilter
	if raw := q.Get("status"); raw != "" {
		status, ok := models.ParseOrderStatus(raw)
		if !ok {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid status filter", fmt.Sprintf("unknown status %q", raw)))
			return
		}
		filter.Status = &status
	}
	filter.UserID = q.Get("userId")
	filter.Search = q.Get("search")

	page := models.Pagination{
		Page:      intQuery(q.Get("page"), 1),
		Limit:     intQuery(q.Get("limit"), 10),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	result, err := h.OrderService.ListOrders(r.Context(), filter, page)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListOrders: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list orders", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Orders retrieved", result))
}

// GetOrder handles GET /api/orders/{code}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	found, err := h.OrderService.GetOrderByCode(r.Context(), code)
	if err != nil {
		h.writeOrderError(w, "GetOrder", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order retrieved", found))
}

// UpdateOrderStatus handles PUT /api/orders/{code}/status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req models.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	updated, err := h.OrderService.TransitionStatus(r.Context(), code, req.Status)
	if err != nil {
		h.writeOrderError(w, "UpdateOrderStatus", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order status updated", updated))
}

// DeleteOrder handles DELETE /api/orders/{code}.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.OrderService.DeleteOrder(r.Context(), code); err != nil {
		h.writeOrderError(w, "DeleteOrder", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order deleted", nil))
}

// DashboardStats handles GET /api/orders/stats.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.OrderService.DashboardStats(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("DashboardStats: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to compute stats", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Dashboard stats", stats))
}

type scanRequest struct {
	Data   string `json:"data"`
	QRData string `json:"qrData"`
}

// VerifyScan handles POST /api/orders/verify and GET
// /api/orders/verify?data=. Denials are business outcomes and always
// come back as 200.
func (h *Handler) VerifyScan(w http.ResponseWriter, r *http.Request) {
	var raw string
	if r.Method == http.MethodGet {
		raw = r.URL.Query().Get("data")
	} else {
		var req scanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
			return
		}
		raw = req.Data
		if raw == "" {
			raw = req.QRData
		}
	}

	result, err := h.VerifyService.Scan(r.Context(), raw)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("VerifyScan: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Verification failed", err.Error()))
		return
	}

	message := "Ticket admitted"
	if !result.Admit {
		message = "Admission denied"
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(message, result))
}

// QRImage handles GET /api/qr/{filename}. Artifacts never change after
// issuance, so they are served with an immutable cache header.
func (h *Handler) QRImage(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	data, err := h.Codec.Image(filename)
	if err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("QR code not found", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) writeOrderError(w http.ResponseWriter, op string, err error) {
	var validationErr *order.ValidationError
	var transitionErr *order.IllegalTransitionError
	var credentialErr *qrcode.CredentialError

	switch {
	case errors.As(err, &validationErr):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Validation failed", validationErr.Error()))
	case errors.As(err, &transitionErr):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Illegal status transition", transitionErr.Error()))
	case errors.Is(err, order.ErrNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Order not found", err.Error()))
	case errors.As(err, &credentialErr), errors.Is(err, order.ErrDuplicateOrderCode):
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Order processing failed", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal server error", err.Error()))
	}
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
