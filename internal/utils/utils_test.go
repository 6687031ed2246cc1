package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratedReferencesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		ref := GeneratePaymentReference()
		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

func TestGeneratorPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(GeneratePaymentReference(), "tkt_"))
	assert.True(t, strings.HasPrefix(GenerateFreeReference(), "free_"))
	assert.True(t, strings.HasPrefix(GenerateWithdrawalReference(), "wd_"))
	assert.Len(t, GenerateQRCode(), 32)
}

func TestErrorResponseOmitsEmptyDetails(t *testing.T) {
	body := ErrorResponse("Tickets sold out", "")
	assert.Equal(t, "Tickets sold out", body["error"])
	assert.Equal(t, false, body["success"])
	_, ok := body["details"]
	assert.False(t, ok)
}
