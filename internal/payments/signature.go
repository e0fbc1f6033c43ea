package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// CanonicalString joins the params as key=value pairs in ascending key order.
// Both sides of the gateway exchange sign this exact form, so any field
// tampering breaks the signature.
func CanonicalString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return strings.Join(pairs, "&")
}

// Sign computes the hex HMAC-SHA256 of the canonical param string.
func Sign(params map[string]string, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalString(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature over the received params and
// compares in constant time.
func VerifySignature(params map[string]string, secret, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(params, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
