package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/shopspring/decimal"

	"event-ticketing/internal/config"
	"event-ticketing/internal/logger"
)

// Receipt is what a buyer gets mailed once a ticket is issued.
type Receipt struct {
	EventTitle string
	TicketType string
	TicketID   string
	QRCode     string
	Amount     decimal.Decimal
	Currency   string
	Reference  string
	Free       bool
}

type Sender struct {
	cfg  config.SMTPConfig
	log  *logger.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSender(cfg config.SMTPConfig, log *logger.Logger) *Sender {
	if cfg.Host == "" {
		log.Warn("MAIL", "SMTP_HOST not set, ticket receipts are logged only")
	}
	return &Sender{cfg: cfg, log: log, send: smtp.SendMail}
}

var receiptTemplate = template.Must(template.New("receipt").Parse(
	`<div style="font-family: Arial, sans-serif; max-width: 500px; margin: auto; border: 2px dashed #FF6600; border-radius: 10px; padding: 20px; background-color: #fff9f2;">
	<div style="text-align: center;">
		<h2 style="color: #FF6600;">🎟 {{.EventTitle}}</h2>
		<p style="font-size: 16px; color: #555;">{{.TicketType}}{{if .Free}} (free){{else}} · {{.Amount.StringFixed 2}} {{.Currency}}{{end}}</p>
		<div style="font-size: 18px; font-weight: bold; color: #000; background-color: #FFE0CC; padding: 10px; display: inline-block; border-radius: 8px; letter-spacing: 2px;">
			{{.QRCode}}
		</div>
		<p style="font-size: 14px; color: #888; margin-top: 15px;">Ticket {{.TicketID}} · Ref {{.Reference}}</p>
	</div>
</div>`))

func (s *Sender) SendTicketReceipt(to string, r *Receipt) error {
	if to == "" {
		return nil
	}

	var body bytes.Buffer
	if err := receiptTemplate.Execute(&body, r); err != nil {
		return fmt.Errorf("failed to render receipt: %w", err)
	}

	if s.cfg.Host == "" {
		s.log.Info("MAIL", fmt.Sprintf("Receipt for ticket %s to %s (not sent)", r.TicketID, to))
		return nil
	}

	message := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: 🎟 Your ticket for %s\r\n"+
			"MIME-version: 1.0;\r\n"+
			"Content-Type: text/html; charset=\"UTF-8\";\r\n\r\n", s.cfg.From, to, r.EventTitle))
	message = append(message, body.Bytes()...)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := s.send(s.cfg.Host+":"+s.cfg.Port, auth, s.cfg.From, []string{to}, message); err != nil {
		s.log.Error("MAIL", fmt.Sprintf("Failed to send receipt to %s: %v", to, err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.log.Info("MAIL", fmt.Sprintf("Receipt for ticket %s sent to %s", r.TicketID, to))
	return nil
}
