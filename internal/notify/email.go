package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/events"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// Mailer abstracts how notification mail gets delivered. The production
// implementation is Enqueuer; tests substitute a direct sender.
type Mailer interface {
	EnqueueEmail(ctx context.Context, to, subject, html string) error
}

// DirectMailer sends immediately instead of queueing.
type DirectMailer struct {
	Sender common.EmailSender
}

func (d DirectMailer) EnqueueEmail(_ context.Context, to, subject, html string) error {
	if d.Sender == nil {
		return nil
	}
	return d.Sender.Send(to, subject, html)
}

// EmailNotifier turns domain events into transactional emails. Order events
// notify the customer and the shop admin; stock alerts go to the admin only.
type EmailNotifier struct {
	Mail         Mailer
	Enabled      bool
	AdminEmail   string
	StoreName    string
	TopicToggles map[string]bool
}

// Notify implements events.Notifier.
func (n EmailNotifier) Notify(ctx context.Context, event repo.DomainEvent) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}

	switch event.Topic {
	case events.TopicOrderCreated:
		return n.orderCreated(ctx, payload)
	case events.TopicOrderPaid:
		return n.sendCustomer(ctx, payload, "Payment received", n.orderBody("Your payment has been received.", payload))
	case events.TopicOrderCanceled:
		return n.sendCustomer(ctx, payload, "Order cancelled", n.orderBody("Your order has been cancelled.", payload))
	case events.TopicPaymentFailed:
		return n.sendCustomer(ctx, payload, "Payment failed", n.orderBody("Your payment could not be completed. Please try again.", payload))
	case events.TopicStockLow:
		return n.stockLow(ctx, payload)
	default:
		return nil
	}
}

func (n EmailNotifier) orderCreated(ctx context.Context, payload map[string]any) error {
	body := n.orderBody("Thank you for your order! We are preparing it now.", payload)
	if err := n.sendCustomer(ctx, payload, "Order confirmation", body); err != nil {
		return err
	}
	if n.AdminEmail == "" {
		return nil
	}
	admin := fmt.Sprintf("<p>New order received.</p>%s", orderDetails(payload))
	return n.Mail.EnqueueEmail(ctx, n.AdminEmail, "New order", wrap(n.StoreName, admin))
}

func (n EmailNotifier) stockLow(ctx context.Context, payload map[string]any) error {
	if n.AdminEmail == "" {
		return nil
	}
	name, _ := payload["productName"].(string)
	stock, _ := payload["stock"].(float64)
	body := fmt.Sprintf("<p>Stock for <strong>%s</strong> is low: %g remaining.</p>", name, stock)
	return n.Mail.EnqueueEmail(ctx, n.AdminEmail, "Low stock alert", wrap(n.StoreName, body))
}

func (n EmailNotifier) sendCustomer(ctx context.Context, payload map[string]any, subject, body string) error {
	to := recipient(payload)
	if to == "" {
		return nil
	}
	return n.Mail.EnqueueEmail(ctx, to, subject, body)
}

func (n EmailNotifier) orderBody(lead string, payload map[string]any) string {
	return wrap(n.StoreName, fmt.Sprintf("<p>%s</p>%s", lead, orderDetails(payload)))
}

func orderDetails(payload map[string]any) string {
	var b strings.Builder
	if id, ok := payload["orderId"].(string); ok && id != "" {
		fmt.Fprintf(&b, "<p>Order ID: %s</p>", id)
	}
	if total, ok := payload["total"].(string); ok && total != "" {
		fmt.Fprintf(&b, "<p>Total: %s RWF</p>", total)
	}
	if address, ok := payload["deliveryAddress"].(string); ok && address != "" {
		fmt.Fprintf(&b, "<p>Delivery address: %s</p>", address)
	}
	return b.String()
}

func recipient(payload map[string]any) string {
	for _, key := range []string{"email", "customerEmail", "userEmail"} {
		if s, ok := payload[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func wrap(storeName, body string) string {
	if storeName == "" {
		storeName = "Butchery Shop"
	}
	return fmt.Sprintf("<html><body><h2>%s</h2>%s</body></html>", storeName, body)
}
