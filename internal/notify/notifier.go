// Package notify sends the transactional emails of the order lifecycle.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"strings"
)

const (
	purposeOrderConfirmation = "order_confirmation"
	purposePaymentConfirmed  = "payment_confirmed"
	purposePaymentRefunded   = "payment_refunded"
)

type Recipient struct {
	Email string
	Name  string
}

type EmailItem struct {
	Name     string
	Quantity int
	Subtotal float64
}

type OrderEmail struct {
	OrderNumber         string
	OrderURL            string
	CustomerName        string
	Items               []EmailItem
	Total               float64
	ShippingAddress     string
	PaymentInstructions string
}

type RefundEmail struct {
	OrderNumber  string
	OrderURL     string
	CustomerName string
	Amount       float64
	Reason       string
}

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, to Recipient, data OrderEmail) error
	SendPaymentConfirmed(ctx context.Context, to Recipient, data OrderEmail) error
	SendPaymentRefunded(ctx context.Context, to Recipient, data RefundEmail) error
}

// Mailer renders the lifecycle emails and hands them to a Sender.
type Mailer struct {
	sender    Sender
	from      string
	storeName string
	templates map[string]*template.Template
}

func NewMailer(sender Sender, from, storeName string) *Mailer {
	if sender == nil {
		sender = LogSender{}
	}
	return &Mailer{
		sender:    sender,
		from:      from,
		storeName: storeName,
		templates: parseTemplates(),
	}
}

type emailView struct {
	Title        string
	Accent       string
	StoreName    string
	CustomerName string
	OrderNumber  string
	OrderURL     string
	Items        []EmailItem
	Total        float64

	ShippingAddress     string
	PaymentInstructions string

	Amount float64
	Reason string
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, to Recipient, data OrderEmail) error {
	return m.send(ctx, to, purposeOrderConfirmation,
		fmt.Sprintf("Order %s received - awaiting payment", data.OrderNumber),
		orderView(data, "Order received", "#3b82f6"))
}

func (m *Mailer) SendPaymentConfirmed(ctx context.Context, to Recipient, data OrderEmail) error {
	return m.send(ctx, to, purposePaymentConfirmed,
		fmt.Sprintf("Payment confirmed - order %s", data.OrderNumber),
		orderView(data, "Payment confirmed", "#16a34a"))
}

func (m *Mailer) SendPaymentRefunded(ctx context.Context, to Recipient, data RefundEmail) error {
	return m.send(ctx, to, purposePaymentRefunded,
		fmt.Sprintf("Refund processed - order %s", data.OrderNumber),
		emailView{
			Title:        "Refund processed",
			Accent:       "#f97316",
			CustomerName: data.CustomerName,
			OrderNumber:  data.OrderNumber,
			OrderURL:     data.OrderURL,
			Amount:       data.Amount,
			Reason:       data.Reason,
		})
}

func orderView(data OrderEmail, title, accent string) emailView {
	return emailView{
		Title:               title,
		Accent:              accent,
		CustomerName:        data.CustomerName,
		OrderNumber:         data.OrderNumber,
		OrderURL:            data.OrderURL,
		Items:               data.Items,
		Total:               data.Total,
		ShippingAddress:     data.ShippingAddress,
		PaymentInstructions: data.PaymentInstructions,
	}
}

func (m *Mailer) send(ctx context.Context, to Recipient, purpose, subject string, view emailView) error {
	if strings.TrimSpace(to.Email) == "" {
		return fmt.Errorf("%s email: recipient address is empty", purpose)
	}
	view.StoreName = m.storeName

	var body bytes.Buffer
	if err := m.templates[purpose].ExecuteTemplate(&body, "layout", view); err != nil {
		return fmt.Errorf("render %s email: %w", purpose, err)
	}

	id, err := m.sender.Send(ctx, Email{
		From:    m.from,
		To:      to.Email,
		Subject: subject,
		HTML:    body.String(),
		Tags: map[string]string{
			"purpose":  purpose,
			"customer": to.Name,
		},
	})
	if err != nil {
		log.Printf("[EMAIL] [ERROR] %s to %s failed: %v", purpose, to.Email, err)
		return fmt.Errorf("send %s email: %w", purpose, err)
	}

	log.Printf("[EMAIL] [INFO] %s sent to %s id=%s", purpose, to.Email, id)
	return nil
}
