package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-orders/internal/config"
	"ms-orders/internal/logger"
	"ms-orders/internal/models"
	"ms-orders/internal/notify"
	"ms-orders/internal/qrcode"
	"ms-orders/internal/utils"
)

type DBLayer interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByCode(ctx context.Context, code string) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter, page models.Pagination) ([]models.Order, int, error)
	UpdateOrder(ctx context.Context, code string, fields map[string]interface{}) (*models.Order, error)
	DeleteOrder(ctx context.Context, code string) error
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
}

type CredentialIssuer interface {
	Issue(order models.Order) (qrString string, filename string, err error)
	ListArtifacts() ([]qrcode.Artifact, error)
	Remove(filename string) error
}

// Notifier delivers lifecycle mail. Failures come back as false, never as
// an error: a failed send must not undo a committed state change.
type Notifier interface {
	Send(kind notify.Kind, order models.Order) bool
}

type KafkaPublisher interface {
	PublishOrderCreated(order models.Order) error
	PublishOrderUpdated(order models.Order) error
	PublishOrderCancelled(order models.Order) error
}

// OrderService is the order lifecycle engine: it owns validation, the
// status transition graph and the side effects around each transition.
type OrderService struct {
	DB       DBLayer
	Codec    CredentialIssuer
	Notifier Notifier
	Kafka    KafkaPublisher
	Logger   *logger.Logger

	cfg config.OrderConfig

	notifications sync.WaitGroup
}

func NewOrderService(db DBLayer, codec CredentialIssuer, notifier Notifier, kafka KafkaPublisher, log *logger.Logger, cfg config.OrderConfig) *OrderService {
	return &OrderService{
		DB:       db,
		Codec:    codec,
		Notifier: notifier,
		Kafka:    kafka,
		Logger:   log,
		cfg:      cfg,
	}
}

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,19}$`)

// PlaceOrder validates the draft, persists it with a fresh order code,
// issues the scan credential and kicks off the best-effort received
// notice. If credential issuance fails the creation fails as a whole.
func (s *OrderService) PlaceOrder(ctx context.Context, req models.CreateOrderRequest, userID string) (*models.Order, error) {
	if err := s.validateDraft(req); err != nil {
		return nil, err
	}

	now := time.Now()
	order := &models.Order{
		ID:                  uuid.NewString(),
		OrderCode:           utils.GenerateOrderCode(),
		UserID:              userID,
		FullName:            strings.TrimSpace(req.FullName),
		Phone:               strings.TrimSpace(req.Phone),
		Email:               strings.TrimSpace(req.Email),
		DateOfBirth:         req.DateOfBirth,
		Address:             req.Address,
		Requirements:        req.Requirements,
		EventParticipation:  req.EventParticipation,
		Activities:          req.Activities,
		ActivityDescription: req.ActivityDescription,
		TicketType:          req.TicketType,
		Quantity:            req.Quantity,
		PricePerTicket:      req.PricePerTicket,
		TotalAmount:         req.TotalAmount,
		PaymentMethod:       models.PaymentMethod(req.PaymentMethod),
		TransactionID:       req.TransactionID,
		PaymentProof:        req.PaymentProof,
		Status:              models.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if order.Activities == nil {
		order.Activities = []string{}
	}

	err := s.DB.CreateOrder(ctx, order)
	if errors.Is(err, ErrDuplicateOrderCode) {
		// One retry with a regenerated code; a second collision surfaces.
		order.OrderCode = utils.GenerateOrderCode()
		err = s.DB.CreateOrder(ctx, order)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	qrString, filename, err := s.Codec.Issue(*order)
	if err != nil {
		// No order may exist claiming a credential it does not have.
		if delErr := s.DB.DeleteOrder(ctx, order.OrderCode); delErr != nil {
			s.Logger.LogOrder("CREATE", order.OrderCode, fmt.Sprintf("rollback after issuance failure also failed: %v", delErr))
		}
		return nil, fmt.Errorf("credential issuance failed: %w", err)
	}

	order, err = s.DB.UpdateOrder(ctx, order.OrderCode, map[string]interface{}{
		"qr_code":          qrString,
		"qr_code_filename": filename,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach credential: %w", err)
	}

	s.Logger.LogOrder("CREATE", order.OrderCode, "order created with credential "+filename)

	if err := s.Kafka.PublishOrderCreated(*order); err != nil {
		s.Logger.LogKafka("PUBLISH", "order.created", fmt.Sprintf("publish failed for %s: %v", order.OrderCode, err))
	}
	s.notifyAsync(notify.ReceivedNotice, *order, "received_notice_sent")

	return order, nil
}

// TransitionStatus moves an order along the lifecycle graph. Any target
// outside the graph, including every direct write to VERIFIED, is
// rejected.
func (s *OrderService) TransitionStatus(ctx context.Context, code string, target string) (*models.Order, error) {
	status, ok := models.ParseOrderStatus(target)
	if !ok {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", target)}
	}

	current, err := s.DB.GetOrderByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(status) {
		return nil, &IllegalTransitionError{From: current.Status, To: status}
	}

	updated, err := s.DB.UpdateOrder(ctx, code, map[string]interface{}{"status": status})
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	s.Logger.LogOrder("STATUS", code, fmt.Sprintf("%s -> %s", current.Status, status))

	switch status {
	case models.StatusConfirmed:
		if err := s.Kafka.PublishOrderUpdated(*updated); err != nil {
			s.Logger.LogKafka("PUBLISH", "order.updated", fmt.Sprintf("publish failed for %s: %v", code, err))
		}
		s.notifyAsync(notify.ConfirmedTicket, *updated, "confirmed_ticket_sent")
	case models.StatusCancelled:
		if err := s.Kafka.PublishOrderCancelled(*updated); err != nil {
			s.Logger.LogKafka("PUBLISH", "order.cancelled", fmt.Sprintf("publish failed for %s: %v", code, err))
		}
		s.notifyAsync(notify.CancelledNotice, *updated, "cancelled_notice_sent")
	}

	return updated, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.DB.GetOrderByID(ctx, id)
}

func (s *OrderService) GetOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	return s.DB.GetOrderByCode(ctx, code)
}

func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter, page models.Pagination) (*models.PaginatedOrders, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 {
		page.Limit = 10
	}

	orders, total, err := s.DB.ListOrders(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return &models.PaginatedOrders{
		Data: orders,
		Pagination: models.PageInfo{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      total,
			TotalPages: (total + page.Limit - 1) / page.Limit,
		},
	}, nil
}

// DeleteOrder is the administrative hard delete. Credential artifacts are
// left for the periodic sweep.
func (s *OrderService) DeleteOrder(ctx context.Context, code string) error {
	if err := s.DB.DeleteOrder(ctx, code); err != nil {
		return err
	}
	s.Logger.LogOrder("DELETE", code, "order deleted")
	return nil
}

func (s *OrderService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	return s.DB.DashboardStats(ctx)
}

// notifyAsync sends a lifecycle notification detached from the caller's
// request. A successful send is recorded on the order; a failure is
// logged and dropped.
func (s *OrderService) notifyAsync(kind notify.Kind, order models.Order, sentColumn string) {
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		if !s.Notifier.Send(kind, order) {
			s.Logger.LogMail(string(kind), order.OrderCode, "notification failed, order state unaffected")
			return
		}
		if _, err := s.DB.UpdateOrder(context.Background(), order.OrderCode, map[string]interface{}{sentColumn: true}); err != nil {
			s.Logger.LogMail(string(kind), order.OrderCode, fmt.Sprintf("failed to record sent flag: %v", err))
		}
	}()
}

// WaitForNotifications blocks until all in-flight notification sends have
// finished. Used on shutdown and by tests.
func (s *OrderService) WaitForNotifications() {
	s.notifications.Wait()
}

func (s *OrderService) validateDraft(req models.CreateOrderRequest) error {
	if strings.TrimSpace(req.FullName) == "" {
		return &ValidationError{Field: "fullName", Reason: "must not be empty"}
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if !phonePattern.MatchString(strings.TrimSpace(req.Phone)) {
		return &ValidationError{Field: "phone", Reason: "must be a valid phone number"}
	}
	if strings.TrimSpace(req.TicketType) == "" {
		return &ValidationError{Field: "ticketType", Reason: "must not be empty"}
	}
	if req.Quantity < 1 {
		return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if req.PricePerTicket < 0 {
		return &ValidationError{Field: "pricePerTicket", Reason: "must not be negative"}
	}
	if math.Abs(req.TotalAmount-float64(req.Quantity)*req.PricePerTicket) > 1e-9 {
		return &ValidationError{Field: "totalAmount", Reason: "must equal pricePerTicket * quantity"}
	}
	if !models.PaymentMethod(req.PaymentMethod).Valid() {
		return &ValidationError{Field: "paymentMethod", Reason: fmt.Sprintf("unknown payment method %q", req.PaymentMethod)}
	}
	if req.EventParticipation != models.ParticipationYes && req.EventParticipation != models.ParticipationNo {
		return &ValidationError{Field: "eventParticipation", Reason: "must be YES or NO"}
	}
	if s.cfg.RequireActivityDescription &&
		req.EventParticipation == models.ParticipationYes &&
		len(req.Activities) > 0 &&
		strings.TrimSpace(req.ActivityDescription) == "" {
		return &ValidationError{Field: "activityDescription", Reason: "required when participating with selected activities"}
	}
	return nil
}
