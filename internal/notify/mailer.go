package notify

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"ms-orders/internal/config"
	"ms-orders/internal/logger"
	"ms-orders/internal/models"
)

// Kind identifies which lifecycle notification to send.
type Kind string

const (
	ReceivedNotice  Kind = "RECEIVED_NOTICE"
	ConfirmedTicket Kind = "CONFIRMED_TICKET"
	CancelledNotice Kind = "CANCELLED_NOTICE"
)

// Mailer delivers lifecycle mail over SMTP. Send reports failure as a
// boolean and never returns an error into the caller: the order state
// change has already committed by the time mail goes out.
type Mailer struct {
	cfg     config.EmailConfig
	baseURL string
	logger  *logger.Logger
}

func NewMailer(cfg config.EmailConfig, baseURL string, log *logger.Logger) *Mailer {
	return &Mailer{cfg: cfg, baseURL: strings.TrimRight(baseURL, "/"), logger: log}
}

func (m *Mailer) Send(kind Kind, order models.Order) bool {
	var subject, body string
	switch kind {
	case ReceivedNotice:
		subject = fmt.Sprintf("Order Confirmation - %s", order.OrderCode)
		body = m.receivedBody(order)
	case ConfirmedTicket:
		subject = fmt.Sprintf("Your Final Ticket - %s", order.OrderCode)
		body = m.confirmedBody(order)
	case CancelledNotice:
		subject = fmt.Sprintf("Order Cancelled - %s", order.OrderCode)
		body = m.cancelledBody(order)
	default:
		m.logger.Error("MAIL", fmt.Sprintf("unknown notification kind %q for order %s", kind, order.OrderCode))
		return false
	}

	if err := m.sendMail(order.Email, subject, body); err != nil {
		m.logger.LogMail(string(kind), order.OrderCode, fmt.Sprintf("delivery failed: %v", err))
		return false
	}
	m.logger.LogMail(string(kind), order.OrderCode, "delivered to "+order.Email)
	return true
}

// SendContactNotification forwards a contact message to the admin inbox.
func (m *Mailer) SendContactNotification(msg models.ContactMessage) bool {
	subject := fmt.Sprintf("New Contact Message from %s", msg.Name)
	body := fmt.Sprintf(
		"<h2>New contact message</h2><p><b>Name:</b> %s<br><b>Email:</b> %s<br><b>Phone:</b> %s</p><p>%s</p>",
		msg.Name, msg.Email, msg.Phone, msg.Message,
	)
	if err := m.sendMail(m.cfg.AdminAddr, subject, body); err != nil {
		m.logger.Error("MAIL", fmt.Sprintf("contact notification failed: %v", err))
		return false
	}
	return true
}

func (m *Mailer) receivedBody(order models.Order) string {
	return fmt.Sprintf(
		"<h2>Thank you, %s!</h2>"+
			"<p>We received your order <b>%s</b> for %d x %s tickets (total %.2f, paid via %s).</p>"+
			"<p>Your order is pending review. You will receive your final ticket once payment is confirmed.</p>",
		order.FullName, order.OrderCode, order.Quantity, order.TicketType, order.TotalAmount, order.PaymentMethod,
	)
}

func (m *Mailer) confirmedBody(order models.Order) string {
	qrURL := fmt.Sprintf("%s/api/qr/%s", m.baseURL, order.QRCodeFilename)
	return fmt.Sprintf(
		"<h2>Your ticket is confirmed, %s!</h2>"+
			"<p>Order <b>%s</b>: %d x %s.</p>"+
			"<p>Present this QR code at the entrance. It admits once.</p>"+
			`<img src="%s" alt="ticket QR code" width="300" height="300">`,
		order.FullName, order.OrderCode, order.Quantity, order.TicketType, qrURL,
	)
}

func (m *Mailer) cancelledBody(order models.Order) string {
	return fmt.Sprintf(
		"<h2>Order cancelled</h2>"+
			"<p>Your order <b>%s</b> has been cancelled. If you believe this is a mistake, please contact us.</p>",
		order.OrderCode,
	)
}

// sendMail dials the SMTP server with a bounded timeout rather than using
// smtp.SendMail directly, so a stalled server fails the attempt instead
// of hanging the notification goroutine.
func (m *Mailer) sendMail(to, subject, htmlBody string) error {
	addr := net.JoinHostPort(m.cfg.SMTPHost, m.cfg.SMTPPort)

	conn, err := net.DialTimeout("tcp", addr, m.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	conn.SetDeadline(time.Now().Add(m.cfg.Timeout))

	client, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.SMTPHost}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}

	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n",
		m.cfg.From, to, subject, htmlBody,
	)
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
