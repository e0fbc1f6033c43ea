package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalStringSortsKeys(t *testing.T) {
	params := map[string]string{
		"txn_ref":       "abc",
		"amount":        "100",
		"merchant_code": "MC1",
	}
	assert.Equal(t, "amount=100&merchant_code=MC1&txn_ref=abc", CanonicalString(params))
}

func TestSignAndVerify(t *testing.T) {
	params := map[string]string{
		"merchant_code":  "MC1",
		"txn_ref":        "ref-1",
		"amount":         "10000000",
		"response_code":  "00",
		"message":        "approved",
		"transaction_no": "VNP123",
	}
	sig := Sign(params, "topsecret")
	assert.True(t, VerifySignature(params, "topsecret", sig))

	t.Run("tampered amount", func(t *testing.T) {
		tampered := map[string]string{}
		for k, v := range params {
			tampered[k] = v
		}
		tampered["amount"] = "1"
		assert.False(t, VerifySignature(tampered, "topsecret", sig))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, VerifySignature(params, "othersecret", sig))
	})

	t.Run("empty signature", func(t *testing.T) {
		assert.False(t, VerifySignature(params, "topsecret", ""))
	})

	t.Run("uppercase hex accepted", func(t *testing.T) {
		upper := ""
		for _, c := range sig {
			if c >= 'a' && c <= 'f' {
				c = c - 'a' + 'A'
			}
			upper += string(c)
		}
		assert.True(t, VerifySignature(params, "topsecret", upper))
	})
}
