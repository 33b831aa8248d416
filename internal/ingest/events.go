package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vallegrande/notification-engine/internal/domain"
	"github.com/vallegrande/notification-engine/internal/queue"
)

const (
	systemName      = "Sistema JASS"
	receiptCurrency = "PEN"
	createdBySystem = "SYSTEM"
)

// translator turns one inbound event body into the notifications it requests.
type translator func(body []byte) ([]*domain.Notification, error)

var translators = map[string]translator{
	queue.UserCreatedQueue:      translateUserCreated,
	queue.PaymentCompletedQueue: translatePaymentCompleted,
	queue.PaymentOverdueQueue:   translatePaymentOverdue,
}

type userCreatedEvent struct {
	EventID           string `json:"eventId"`
	UserID            string `json:"userId"`
	Email             string `json:"email"`
	PhoneNumber       string `json:"phoneNumber"`
	Username          string `json:"username"`
	TemporaryPassword string `json:"temporaryPassword"`
}

type paymentCompletedEvent struct {
	EventID       string `json:"eventId"`
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	PhoneNumber   string `json:"phoneNumber"`
	ReceiptNumber string `json:"receiptNumber"`
	Amount        amount `json:"amount"`
	PaymentDate   string `json:"paymentDate"`
}

type paymentOverdueEvent struct {
	EventID     string `json:"eventId"`
	UserID      string `json:"userId"`
	PhoneNumber string `json:"phoneNumber"`
	Amount      amount `json:"amount"`
	DueDate     string `json:"dueDate"`
}

// amount accepts both JSON numbers and numeric strings.
type amount struct {
	value float64
	set   bool
}

func (a *amount) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if raw == "" || raw == "null" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", raw)
	}
	a.value = value
	a.set = true
	return nil
}

// String renders the amount the way receipts print it.
func (a amount) String() string {
	return strconv.FormatFloat(a.value, 'f', 2, 64)
}

func translateUserCreated(body []byte) ([]*domain.Notification, error) {
	var event userCreatedEvent
	if err := decode(body, &event); err != nil {
		return nil, err
	}
	if err := require(map[string]string{"userId": event.UserID, "username": event.Username}); err != nil {
		return nil, err
	}

	var out []*domain.Notification
	if strings.TrimSpace(event.Email) != "" {
		if strings.TrimSpace(event.TemporaryPassword) == "" {
			return nil, fmt.Errorf("%w: temporaryPassword is required", queue.ErrMalformedMessage)
		}
		out = append(out, &domain.Notification{
			IdempotencyKey: idempotencyKey(event.EventID, "email"),
			UserID:         event.UserID,
			Channel:        domain.ChannelEmail,
			Recipient:      event.Email,
			Type:           domain.TypeUserCredentials,
			TemplateID:     string(domain.TypeUserCredentials),
			TemplateParams: map[string]string{
				"username":          event.Username,
				"temporaryPassword": event.TemporaryPassword,
				"systemName":        systemName,
			},
			Priority:  domain.PriorityHigh,
			CreatedBy: createdBySystem,
		})
	}
	if strings.TrimSpace(event.PhoneNumber) != "" {
		out = append(out, &domain.Notification{
			IdempotencyKey: idempotencyKey(event.EventID, "sms"),
			UserID:         event.UserID,
			Channel:        domain.ChannelSMS,
			Recipient:      event.PhoneNumber,
			Type:           domain.TypeUserCredentials,
			Message:        "Tu usuario es: " + event.Username + ". Revisa tu email para la contraseña temporal.",
			Priority:       domain.PriorityHigh,
			CreatedBy:      createdBySystem,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: user %s has neither email nor phone number", queue.ErrMalformedMessage, event.UserID)
	}
	return out, nil
}

func translatePaymentCompleted(body []byte) ([]*domain.Notification, error) {
	var event paymentCompletedEvent
	if err := decode(body, &event); err != nil {
		return nil, err
	}
	if err := require(map[string]string{"userId": event.UserID, "receiptNumber": event.ReceiptNumber}); err != nil {
		return nil, err
	}
	if !event.Amount.set {
		return nil, fmt.Errorf("%w: amount is required", queue.ErrMalformedMessage)
	}

	var out []*domain.Notification
	if strings.TrimSpace(event.Email) != "" {
		out = append(out, &domain.Notification{
			IdempotencyKey: idempotencyKey(event.EventID, "email"),
			UserID:         event.UserID,
			Channel:        domain.ChannelEmail,
			Recipient:      event.Email,
			Type:           domain.TypeReceiptGenerated,
			TemplateID:     string(domain.TypeReceiptGenerated),
			TemplateParams: map[string]string{
				"receiptNumber": event.ReceiptNumber,
				"amount":        event.Amount.String(),
				"paymentDate":   event.PaymentDate,
				"currency":      receiptCurrency,
			},
			Priority:  domain.PriorityNormal,
			CreatedBy: createdBySystem,
		})
	}
	if strings.TrimSpace(event.PhoneNumber) != "" {
		out = append(out, &domain.Notification{
			IdempotencyKey: idempotencyKey(event.EventID, "sms"),
			UserID:         event.UserID,
			Channel:        domain.ChannelSMS,
			Recipient:      event.PhoneNumber,
			Type:           domain.TypePaymentReceived,
			Message:        fmt.Sprintf("Pago recibido: S/ %s. Recibo: %s. Gracias!", event.Amount, event.ReceiptNumber),
			Priority:       domain.PriorityHigh,
			CreatedBy:      createdBySystem,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: payment for user %s has neither email nor phone number", queue.ErrMalformedMessage, event.UserID)
	}
	return out, nil
}

func translatePaymentOverdue(body []byte) ([]*domain.Notification, error) {
	var event paymentOverdueEvent
	if err := decode(body, &event); err != nil {
		return nil, err
	}
	if err := require(map[string]string{"userId": event.UserID, "phoneNumber": event.PhoneNumber, "dueDate": event.DueDate}); err != nil {
		return nil, err
	}
	if !event.Amount.set {
		return nil, fmt.Errorf("%w: amount is required", queue.ErrMalformedMessage)
	}

	return []*domain.Notification{{
		IdempotencyKey: idempotencyKey(event.EventID, "sms"),
		UserID:         event.UserID,
		Channel:        domain.ChannelSMS,
		Recipient:      event.PhoneNumber,
		Type:           domain.TypePaymentOverdue,
		Message:        fmt.Sprintf("URGENTE: Pago vencido desde %s. Monto: S/ %s. Evita corte de servicio.", event.DueDate, event.Amount),
		Priority:       domain.PriorityUrgent,
		CreatedBy:      createdBySystem,
	}}, nil
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrMalformedMessage, err)
	}
	return nil
}

func require(fields map[string]string) error {
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is required", queue.ErrMalformedMessage, name)
		}
	}
	return nil
}

// idempotencyKey derives one key per produced notification so a redelivered event is not sent twice.
func idempotencyKey(eventID string, suffix string) *string {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil
	}
	key := eventID + ":" + suffix
	return &key
}
