package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account","entry":[]}`)
	secret := "app-secret"
	header := Sign(body, secret)

	assert.True(t, VerifySignature(body, header, secret))
	assert.False(t, VerifySignature([]byte(`{"object":"tampered"}`), header, secret))
	assert.False(t, VerifySignature(body, header, "other-secret"))
	assert.False(t, VerifySignature(body, "", secret))
	assert.False(t, VerifySignature(body, "sha1=abcdef", secret))
	assert.False(t, VerifySignature(body, "sha256=not-hex", secret))
}
