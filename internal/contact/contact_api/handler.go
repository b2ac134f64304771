package contact_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-orders/internal/contact"
	"ms-orders/internal/logger"
	"ms-orders/internal/models"
	"ms-orders/internal/utils"
)

// ContactService is the slice of the contact service the handlers call.
type ContactService interface {
	Submit(ctx context.Context, req models.ContactRequest) (*models.ContactMessage, error)
	List(ctx context.Context) ([]models.ContactMessage, error)
	MarkRead(ctx context.Context, id string) (*models.ContactMessage, error)
}

type Handler struct {
	Service ContactService
	Logger  *logger.Logger
}

// Submit handles POST /api/contact.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	msg, err := h.Service.Submit(r.Context(), req)
	if err != nil {
		var validationErr *contact.ValidationError
		if errors.As(err, &validationErr) {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Validation failed", validationErr.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Submit contact: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to send message", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Message sent successfully", msg))
}

// List handles GET /api/contact for staff.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	messages, err := h.Service.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("List contact messages: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list messages", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Messages retrieved", messages))
}

// MarkRead handles PUT /api/contact/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msg, err := h.Service.MarkRead(r.Context(), id)
	if err != nil {
		if errors.Is(err, contact.ErrMessageNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Message not found", err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("MarkRead contact: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to update message", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Message marked read", msg))
}
