package contact_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-orders/internal/contact"
	"ms-orders/internal/contact/contact_api"
	"ms-orders/internal/logger"
	"ms-orders/internal/models"
)

type stubContactService struct {
	submit   func(req models.ContactRequest) (*models.ContactMessage, error)
	list     func() ([]models.ContactMessage, error)
	markRead func(id string) (*models.ContactMessage, error)
}

func (s *stubContactService) Submit(ctx context.Context, req models.ContactRequest) (*models.ContactMessage, error) {
	return s.submit(req)
}

func (s *stubContactService) List(ctx context.Context) ([]models.ContactMessage, error) {
	return s.list()
}

func (s *stubContactService) MarkRead(ctx context.Context, id string) (*models.ContactMessage, error) {
	return s.markRead(id)
}

func newTestRouter(svc contact_api.ContactService) *chi.Mux {
	h := &contact_api.Handler{Service: svc, Logger: logger.NewLogger()}

	r := chi.NewRouter()
	r.Post("/api/contact", h.Submit)
	r.Get("/api/contact", h.List)
	r.Put("/api/contact/{id}/read", h.MarkRead)
	return r
}

func TestSubmitCreated(t *testing.T) {
	svc := &stubContactService{
		submit: func(req models.ContactRequest) (*models.ContactMessage, error) {
			return &models.ContactMessage{ID: "msg-1", Name: req.Name}, nil
		},
	}
	router := newTestRouter(svc)

	body, _ := json.Marshal(models.ContactRequest{Name: "Jane Doe", Email: "jane@example.com", Phone: "+11234567890", Message: "Where is my ticket?"})
	req := httptest.NewRequest(http.MethodPost, "/api/contact", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "msg-1")
}

func TestSubmitValidationFailure(t *testing.T) {
	svc := &stubContactService{
		submit: func(req models.ContactRequest) (*models.ContactMessage, error) {
			return nil, &contact.ValidationError{Field: "message", Reason: "must be at least 10 characters"}
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/contact", bytes.NewBufferString(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message")
}

func TestMarkReadNotFound(t *testing.T) {
	svc := &stubContactService{
		markRead: func(id string) (*models.ContactMessage, error) {
			return nil, contact.ErrMessageNotFound
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/contact/nope/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMessages(t *testing.T) {
	svc := &stubContactService{
		list: func() ([]models.ContactMessage, error) {
			return []models.ContactMessage{{ID: "msg-1"}, {ID: "msg-2"}}, nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/contact", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "msg-1")
	assert.Contains(t, rec.Body.String(), "msg-2")
}
