package contact

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-orders/internal/logger"
	"ms-orders/internal/models"
)

type DBLayer interface {
	CreateMessage(ctx context.Context, msg *models.ContactMessage) error
	ListMessages(ctx context.Context) ([]models.ContactMessage, error)
	MarkRead(ctx context.Context, id string) (*models.ContactMessage, error)
}

type AdminNotifier interface {
	SendContactNotification(msg models.ContactMessage) bool
}

// ValidationError reports a rejected contact submission.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Service records contact messages and forwards them to the admin inbox
// best-effort.
type Service struct {
	DB       DBLayer
	Notifier AdminNotifier
	Logger   *logger.Logger
}

func NewService(db DBLayer, notifier AdminNotifier, log *logger.Logger) *Service {
	return &Service{DB: db, Notifier: notifier, Logger: log}
}

func (s *Service) Submit(ctx context.Context, req models.ContactRequest) (*models.ContactMessage, error) {
	if len(strings.TrimSpace(req.Name)) < 2 {
		return nil, &ValidationError{Field: "name", Reason: "must be at least 2 characters"}
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return nil, &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if strings.TrimSpace(req.Phone) == "" {
		return nil, &ValidationError{Field: "phone", Reason: "must not be empty"}
	}
	if len(strings.TrimSpace(req.Message)) < 10 {
		return nil, &ValidationError{Field: "message", Reason: "must be at least 10 characters"}
	}

	msg := &models.ContactMessage{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
		Message:   strings.TrimSpace(req.Message),
		CreatedAt: time.Now(),
	}
	if err := s.DB.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to record contact message: %w", err)
	}

	go func() {
		if !s.Notifier.SendContactNotification(*msg) {
			s.Logger.Warn("CONTACT", fmt.Sprintf("admin notification failed for message %s", msg.ID))
		}
	}()

	return msg, nil
}

func (s *Service) List(ctx context.Context) ([]models.ContactMessage, error) {
	return s.DB.ListMessages(ctx)
}

func (s *Service) MarkRead(ctx context.Context, id string) (*models.ContactMessage, error) {
	return s.DB.MarkRead(ctx, id)
}
