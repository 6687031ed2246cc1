package mailer

import (
	"errors"
	"io"
	"net/smtp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-ticketing/internal/config"
	"event-ticketing/internal/logger"
)

func TestSendTicketReceipt(t *testing.T) {
	s := NewSender(config.SMTPConfig{Host: "smtp.example.com", Port: "587", From: "tickets@example.com"},
		logger.NewLoggerWithWriter(io.Discard, logger.LevelError))

	var gotAddr string
	var gotMsg []byte
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Nil(t, a)
		assert.Equal(t, []string{"buyer@example.com"}, to)
		return nil
	}

	err := s.SendTicketReceipt("buyer@example.com", &Receipt{
		EventTitle: "Lagos Jazz Night", TicketType: "VIP", TicketID: "tk1", QRCode: "abc123",
		Amount: decimal.NewFromInt(5000), Currency: "NGN", Reference: "tkt_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Contains(t, string(gotMsg), "Lagos Jazz Night")
	assert.Contains(t, string(gotMsg), "5000.00 NGN")
	assert.Contains(t, string(gotMsg), "abc123")
}

func TestSendTicketReceiptWithoutHost(t *testing.T) {
	s := NewSender(config.SMTPConfig{}, logger.NewLoggerWithWriter(io.Discard, logger.LevelError))
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("should not be called")
	}
	assert.NoError(t, s.SendTicketReceipt("buyer@example.com", &Receipt{TicketID: "tk1", Free: true}))
}
