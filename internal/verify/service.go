package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-orders/internal/logger"
	"ms-orders/internal/models"
	"ms-orders/internal/order/db"
	"ms-orders/internal/qrcode"
)

// Scan outcome reasons shown to the scanning staff.
const (
	ReasonInvalidCode     = "invalid code"
	ReasonOrderNotFound   = "order not found"
	ReasonAlreadyUsed     = "already used"
	ReasonOrderCancelled  = "order cancelled"
	ReasonNotYetConfirmed = "not yet confirmed"
	ReasonAdmitted        = "admitted"
)

// ScanResult is the business outcome of one credential scan. Denials are
// valid outcomes, not errors.
type ScanResult struct {
	Admit  bool                 `json:"admit"`
	Reason string               `json:"reason"`
	Order  *models.OrderSummary `json:"order,omitempty"`
}

type Store interface {
	GetOrderByCode(ctx context.Context, code string) (*models.Order, error)
	MarkVerified(ctx context.Context, code string, now time.Time) (bool, error)
}

type Decoder interface {
	Decode(raw string) (qrcode.Payload, error)
}

type Locker interface {
	Acquire(ctx context.Context, orderCode string) (bool, error)
	Release(ctx context.Context, orderCode string) error
}

type EventPublisher interface {
	PublishOrderVerified(order models.Order) error
}

// Service is the admission gateway. Scan is the only path that moves an
// order to VERIFIED, and each credential admits at most once.
type Service struct {
	Store  Store
	Codec  Decoder
	Lock   Locker
	Kafka  EventPublisher
	Logger *logger.Logger
}

func NewService(store Store, codec Decoder, lock Locker, kafka EventPublisher, log *logger.Logger) *Service {
	return &Service{Store: store, Codec: codec, Lock: lock, Kafka: kafka, Logger: log}
}

// Scan decodes a scanned value, resolves the order and performs the
// one-time admission check.
func (s *Service) Scan(ctx context.Context, raw string) (*ScanResult, error) {
	payload, err := s.Codec.Decode(raw)
	if err != nil {
		if errors.Is(err, qrcode.ErrMalformedCredential) {
			return &ScanResult{Admit: false, Reason: ReasonInvalidCode}, nil
		}
		return nil, fmt.Errorf("failed to decode credential: %w", err)
	}

	order, err := s.Store.GetOrderByCode(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			s.Logger.LogVerify(payload.OrderID, "denied: "+ReasonOrderNotFound)
			return &ScanResult{Admit: false, Reason: ReasonOrderNotFound}, nil
		}
		return nil, fmt.Errorf("failed to resolve order %s: %w", payload.OrderID, err)
	}

	if reason, denied := denyReason(order); denied {
		s.Logger.LogVerify(order.OrderCode, "denied: "+reason)
		summary := order.Summary()
		return &ScanResult{Admit: false, Reason: reason, Order: &summary}, nil
	}

	// Serialize a scan storm on one credential. The conditional update
	// below stays authoritative, so a lost or unavailable lock can only
	// turn into a deny, never a double admission.
	locked, lockErr := s.Lock.Acquire(ctx, order.OrderCode)
	if lockErr != nil {
		s.Logger.Warn("VERIFY", fmt.Sprintf("scan lock unavailable for %s: %v", order.OrderCode, lockErr))
	} else if !locked {
		return s.denyAfterConflict(ctx, order.OrderCode)
	} else {
		defer func() {
			if err := s.Lock.Release(context.Background(), order.OrderCode); err != nil {
				s.Logger.Warn("VERIFY", fmt.Sprintf("failed to release scan lock for %s: %v", order.OrderCode, err))
			}
		}()
	}

	admitted, err := s.Store.MarkVerified(ctx, order.OrderCode, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to mark order %s verified: %w", order.OrderCode, err)
	}
	if !admitted {
		return s.denyAfterConflict(ctx, order.OrderCode)
	}

	verified, err := s.Store.GetOrderByCode(ctx, order.OrderCode)
	if err != nil {
		// The admission committed; fall back to the pre-admission view.
		verified = order
	}

	s.Logger.LogVerify(order.OrderCode, "admitted")
	if err := s.Kafka.PublishOrderVerified(*verified); err != nil {
		s.Logger.LogKafka("PUBLISH", "order.verified", fmt.Sprintf("publish failed for %s: %v", order.OrderCode, err))
	}

	summary := verified.Summary()
	return &ScanResult{Admit: true, Reason: ReasonAdmitted, Order: &summary}, nil
}

// denyAfterConflict re-reads the order after losing the check-and-set and
// reports the most accurate denial reason.
func (s *Service) denyAfterConflict(ctx context.Context, code string) (*ScanResult, error) {
	order, err := s.Store.GetOrderByCode(ctx, code)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			return &ScanResult{Admit: false, Reason: ReasonOrderNotFound}, nil
		}
		return nil, fmt.Errorf("failed to re-read order %s: %w", code, err)
	}

	reason := ReasonAlreadyUsed
	if r, denied := denyReason(order); denied {
		reason = r
	}
	s.Logger.LogVerify(code, "denied: "+reason)
	summary := order.Summary()
	return &ScanResult{Admit: false, Reason: reason, Order: &summary}, nil
}

func denyReason(order *models.Order) (string, bool) {
	switch {
	case order.IsVerified:
		return ReasonAlreadyUsed, true
	case order.Status == models.StatusCancelled:
		return ReasonOrderCancelled, true
	case order.Status != models.StatusConfirmed:
		return ReasonNotYetConfirmed, true
	}
	return "", false
}
