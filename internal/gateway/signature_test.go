package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_Format(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")

	assert.Len(t, sig, 64)
	assert.Regexp(t, "^[0-9a-f]+$", sig)
	assert.Equal(t, sig, Sign("secret", "order_1", "pay_1"))
	assert.Equal(t, "52115a0d3400de9e86aade1f1b6eba9e8974604f4e267a9e9a16633a4c8dd2cb", sig)
}

func TestVerifySignature(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")

	assert.True(t, VerifySignature("secret", "order_1", "pay_1", sig))
	assert.False(t, VerifySignature("other", "order_1", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "order_2", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "order_1", "pay_2", sig))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", "not-hex"))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", ""))
}

func TestVerifySignature_AnyBitFlipRejects(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")

	for i := 0; i < len(sig); i++ {
		for k := 0; k < 8; k++ {
			flipped := []byte(sig)
			flipped[i] ^= 1 << k
			assert.False(t, VerifySignature("secret", "order_1", "pay_1", string(flipped)),
				"byte %d bit %d: %q", i, k, flipped)
		}
	}
}

func TestVerifySignature_UppercaseRejected(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")

	assert.False(t, VerifySignature("secret", "order_1", "pay_1", strings.ToUpper(sig)))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", sig+"00"))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", sig[:62]))
}
