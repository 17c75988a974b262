package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashID_Deterministic(t *testing.T) {
	a := HashID("messages", "inbox/alice/message_1.json", "0", "1700000000000", "Alice", "hi")
	b := HashID("messages", "inbox/alice/message_1.json", "0", "1700000000000", "Alice", "hi")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashID_OrderSensitive(t *testing.T) {
	a := HashID("x", "y")
	b := HashID("y", "x")
	assert.NotEqual(t, a, b)
}

func TestHashID_ContentSensitive(t *testing.T) {
	a := HashID("posts", "posts/posts_1.json", "3", "", "title", "text")
	b := HashID("posts", "posts/posts_1.json", "3", "", "title", "text changed")
	assert.NotEqual(t, a, b)
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("/exports/facebook-2024")
	assert.Len(t, fp, 8)
	assert.Equal(t, fp, Fingerprint("/exports/facebook-2024"))
	assert.NotEqual(t, fp, Fingerprint("/exports/facebook-2023"))
}
