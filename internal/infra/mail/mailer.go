package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"

	"shop/internal/usecase"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// 実際の送信部分。テストで差し替える
type Sender interface {
	Send(e *email.Email) error
}

type smtpSender struct {
	addr string
	auth smtp.Auth
}

func (s smtpSender) Send(e *email.Email) error {
	return e.Send(s.addr, s.auth)
}

// SMTPMailer はテンプレートでHTML本文を作り、添付付きで送る
type SMTPMailer struct {
	from      string
	sender    Sender
	templates *template.Template
	log       *zap.Logger
}

func NewSMTPMailer(cfg Config, log *zap.Logger) *SMTPMailer {
	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return NewSMTPMailerWithSender(cfg.From, smtpSender{addr: addr, auth: auth}, log)
}

func NewSMTPMailerWithSender(from string, sender Sender, log *zap.Logger) *SMTPMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPMailer{
		from:      from,
		sender:    sender,
		templates: template.Must(template.New("mail").Parse(orderInvoiceTemplate)),
		log:       log,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg usecase.MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := m.templates.ExecuteTemplate(&body, msg.Template, msg.Data); err != nil {
		return fmt.Errorf("render mail template: %w", err)
	}

	e := email.NewEmail()
	e.From = m.from
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.HTML = body.Bytes()
	for _, a := range msg.Attachments {
		if _, err := e.Attach(bytes.NewReader(a.Data), a.Filename, a.ContentType); err != nil {
			return fmt.Errorf("attach %s: %w", a.Filename, err)
		}
	}

	if err := m.sender.Send(e); err != nil {
		return err
	}
	m.log.Info("mail sent",
		zap.String("template", msg.Template),
		zap.Int("attachments", len(msg.Attachments)))
	return nil
}

const orderInvoiceTemplate = `{{define "order_invoice"}}<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Order #{{.ID}}</title>
    <style>
        body { font-family: Arial, sans-serif; color: #333; }
        table { border-collapse: collapse; width: 100%; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        .total { font-weight: bold; }
    </style>
</head>
<body>
    <h2>Thank you for your order, {{.DeliveryInfo.Name}}!</h2>
    <p>Order #{{.ID}} has been placed. Payment method: {{.PaymentMethod}}.</p>
    <table>
        <tr><th>Product</th><th>Variant</th><th>Price</th><th>Qty</th><th>Total</th></tr>
        {{range .Items}}
        <tr>
            <td>{{.ProductName}}</td>
            <td>{{.Color}} {{.Size}}</td>
            <td>{{.Price.StringFixed 2}}</td>
            <td>{{.Quantity}}</td>
            <td>{{.Total.StringFixed 2}}</td>
        </tr>
        {{end}}
    </table>
    <p>Subtotal: {{.Subtotal.StringFixed 2}}</p>
    <p>Delivery charge: {{.DeliveryCharge.StringFixed 2}}</p>
    <p class="total">Total: {{.TotalAmount.StringFixed 2}}</p>
    <p>Ship to: {{.DeliveryInfo.Address}}, {{.DeliveryInfo.State}} ({{.DeliveryInfo.Phone}})</p>
    <p>The invoice is attached to this mail.</p>
</body>
</html>{{end}}`
