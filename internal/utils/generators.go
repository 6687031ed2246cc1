package utils

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

func GenerateUUID() string {
	return uuid.NewString()
}

// GenerateQRCode returns the opaque value encoded into a ticket's QR image.
func GenerateQRCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GeneratePaymentReference returns a gateway reference for a paid purchase.
func GeneratePaymentReference() string {
	return "tkt_" + time.Now().UTC().Format("20060102") + "_" + shortID()
}

// GenerateFreeReference gives free purchases a unique ledger reference.
func GenerateFreeReference() string {
	return "free_" + uuid.NewString()
}

func GenerateWithdrawalReference() string {
	return "wd_" + time.Now().UTC().Format("20060102") + "_" + shortID()
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
