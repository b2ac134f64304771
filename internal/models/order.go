package models

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderStatus is the lifecycle state of an order. Transitions only move
// forward through the graph returned by CanTransitionTo.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusVerified  OrderStatus = "VERIFIED"
)

// ParseOrderStatus maps a raw string to a known status.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusVerified:
		return OrderStatus(s), true
	}
	return "", false
}

// CanTransitionTo reports whether target is reachable from s in one step.
// VERIFIED is deliberately absent from every target set: the only way an
// order becomes VERIFIED is the admission check in the verify service.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case StatusPending:
		return target == StatusConfirmed || target == StatusCancelled
	case StatusConfirmed:
		return target == StatusCancelled
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusVerified
}

// PaymentMethod is the closed set of manually attested payment channels.
type PaymentMethod string

const (
	PaymentJSBank   PaymentMethod = "JS_BANK"
	PaymentMCB      PaymentMethod = "MCB"
	PaymentJazzCash PaymentMethod = "JAZZCASH"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentJSBank, PaymentMCB, PaymentJazzCash:
		return true
	}
	return false
}

// Participation values for the event-participation flag.
const (
	ParticipationYes = "YES"
	ParticipationNo  = "NO"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID        string `bun:"id,pk" json:"id"`
	OrderCode string `bun:"order_code,unique,notnull" json:"orderId"`
	UserID    string `bun:"user_id,nullzero" json:"userId,omitempty"`

	FullName     string `bun:"full_name,notnull" json:"fullName"`
	Phone        string `bun:"phone,notnull" json:"phone"`
	Email        string `bun:"email,notnull" json:"email"`
	DateOfBirth  string `bun:"date_of_birth,nullzero" json:"dateOfBirth,omitempty"`
	Address      string `bun:"address,nullzero" json:"address,omitempty"`
	Requirements string `bun:"requirements,nullzero" json:"requirements,omitempty"`

	EventParticipation  string   `bun:"event_participation,notnull" json:"eventParticipation"`
	Activities          []string `bun:"activities" json:"activities"`
	ActivityDescription string   `bun:"activity_description,nullzero" json:"activityDescription,omitempty"`

	TicketType     string        `bun:"ticket_type,notnull" json:"ticketType"`
	Quantity       int           `bun:"quantity,notnull" json:"quantity"`
	PricePerTicket float64       `bun:"price_per_ticket,notnull" json:"pricePerTicket"`
	TotalAmount    float64       `bun:"total_amount,notnull" json:"totalAmount"`
	PaymentMethod  PaymentMethod `bun:"payment_method,notnull" json:"paymentMethod"`
	TransactionID  string        `bun:"transaction_id,nullzero" json:"transactionId,omitempty"`
	PaymentProof   string        `bun:"payment_proof,nullzero" json:"paymentProof,omitempty"`

	Status     OrderStatus `bun:"status,notnull" json:"status"`
	IsVerified bool        `bun:"is_verified" json:"isVerified"`
	VerifiedAt time.Time   `bun:"verified_at,nullzero" json:"verifiedAt,omitempty"`

	QRCode         string `bun:"qr_code,nullzero" json:"qrCode,omitempty"`
	QRCodeFilename string `bun:"qr_code_filename,nullzero" json:"qrCodeFilename,omitempty"`

	ReceivedNoticeSent  bool `bun:"received_notice_sent" json:"receivedNoticeSent"`
	ConfirmedTicketSent bool `bun:"confirmed_ticket_sent" json:"confirmedTicketSent"`
	CancelledNoticeSent bool `bun:"cancelled_notice_sent" json:"cancelledNoticeSent"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// Summary is the slice of an order the scanning staff's UI needs for
// context, returned on every scan outcome including denials.
func (o *Order) Summary() OrderSummary {
	return OrderSummary{
		OrderCode:    o.OrderCode,
		CustomerName: o.FullName,
		TicketType:   o.TicketType,
		Quantity:     o.Quantity,
		Status:       o.Status,
		IsVerified:   o.IsVerified,
	}
}

type OrderSummary struct {
	OrderCode    string      `json:"orderId"`
	CustomerName string      `json:"customerName"`
	TicketType   string      `json:"ticketType"`
	Quantity     int         `json:"quantity"`
	Status       OrderStatus `json:"status"`
	IsVerified   bool        `json:"isVerified"`
}

type CreateOrderRequest struct {
	FullName            string   `json:"fullName"`
	Phone               string   `json:"phone"`
	Email               string   `json:"email"`
	DateOfBirth         string   `json:"dateOfBirth,omitempty"`
	Address             string   `json:"address,omitempty"`
	Requirements        string   `json:"requirements,omitempty"`
	EventParticipation  string   `json:"eventParticipation"`
	Activities          []string `json:"activities,omitempty"`
	ActivityDescription string   `json:"activityDescription,omitempty"`
	TicketType          string   `json:"ticketType"`
	Quantity            int      `json:"quantity"`
	PricePerTicket      float64  `json:"pricePerTicket"`
	TotalAmount         float64  `json:"totalAmount"`
	PaymentMethod       string   `json:"paymentMethod"`
	TransactionID       string   `json:"transactionId,omitempty"`
	PaymentProof        string   `json:"paymentProof,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// OrderFilter is the closed set of list predicates the store recognizes.
type OrderFilter struct {
	Status *OrderStatus
	UserID string
	Search string // substring match over full_name, email, order_code
}

type Pagination struct {
	Page      int    // 1-based
	Limit     int
	SortBy    string
	SortOrder string // "asc" or "desc"
}

type PageInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type PaginatedOrders struct {
	Data       []Order  `json:"data"`
	Pagination PageInfo `json:"pagination"`
}

type DashboardStats struct {
	TotalOrders      int     `json:"totalOrders"`
	PendingOrders    int     `json:"pendingOrders"`
	ConfirmedOrders  int     `json:"confirmedOrders"`
	CancelledOrders  int     `json:"cancelledOrders"`
	VerifiedOrders   int     `json:"verifiedOrders"`
	TotalRevenue     float64 `json:"totalRevenue"`
	TotalTicketsSold int     `json:"totalTicketsSold"`
}
