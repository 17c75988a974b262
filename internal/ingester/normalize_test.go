package ingester

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceMillis(t *testing.T) {
	// Second-resolution values scale up.
	assert.Equal(t, int64(1700000000000), coerceMillis(1700000000))
	// Millisecond-resolution values pass through.
	assert.Equal(t, int64(1700000000123), coerceMillis(1700000000123))
	// Fractional milliseconds floor.
	assert.Equal(t, int64(1700000000123), coerceMillis(1700000000123.9))
	assert.Equal(t, int64(0), coerceMillis(0))
}

func TestNormalizeMessage_Basic(t *testing.T) {
	raw := []byte(`{"sender_name":"Alice","timestamp_ms":1690000000000,"content":"hello there"}`)
	msg := normalizeMessage("tid", "inbox/alice/message_1.json", 0, raw)

	assert.Equal(t, "tid", msg.ThreadID)
	assert.Equal(t, int64(1690000000000), msg.TimestampMs)
	require.NotNil(t, msg.SenderName)
	assert.Equal(t, "Alice", *msg.SenderName)
	require.NotNil(t, msg.Text)
	assert.Equal(t, "hello there", *msg.Text)
	assert.Equal(t, "generic", msg.MessageType)
	assert.False(t, msg.IsUnsent)
	assert.Nil(t, msg.MediaURI)
	assert.Len(t, msg.ID, 64)
}

func TestNormalizeMessage_SecondsTimestamp(t *testing.T) {
	raw := []byte(`{"sender_name":"Bob","timestamp":1690000000,"content":"hi"}`)
	msg := normalizeMessage("tid", "rel", 0, raw)
	assert.Equal(t, int64(1690000000000), msg.TimestampMs)
}

func TestNormalizeMessage_TimestampMsWinsOverTimestamp(t *testing.T) {
	raw := []byte(`{"timestamp_ms":1690000000001,"timestamp":99}`)
	msg := normalizeMessage("tid", "rel", 0, raw)
	assert.Equal(t, int64(1690000000001), msg.TimestampMs)
}

func TestNormalizeMessage_MediaOnly(t *testing.T) {
	raw := []byte(`{"sender_name":"Alice","timestamp_ms":1,"photos":[{"uri":"photos/a.jpg"},{"uri":"photos/b.jpg"}]}`)
	msg := normalizeMessage("tid", "rel", 2, raw)

	assert.Nil(t, msg.Text)
	require.NotNil(t, msg.MediaURI)
	assert.Equal(t, "photos/a.jpg", *msg.MediaURI)
}

func TestNormalizeMessage_FirstMediaArrayWins(t *testing.T) {
	// photos precedes videos even when both are present.
	raw := []byte(`{"videos":[{"uri":"v.mp4"}],"photos":[{"uri":"p.jpg"}]}`)
	msg := normalizeMessage("tid", "rel", 0, raw)
	require.NotNil(t, msg.MediaURI)
	assert.Equal(t, "p.jpg", *msg.MediaURI)
}

func TestNormalizeMessage_UnsentAndReactions(t *testing.T) {
	raw := []byte(`{"is_unsent":true,"reactions":[{"reaction":"❤","actor":"Bob"}]}`)
	msg := normalizeMessage("tid", "rel", 0, raw)

	assert.True(t, msg.IsUnsent)
	require.NotNil(t, msg.ReactionsJSON)
	assert.Contains(t, *msg.ReactionsJSON, "Bob")
}

func TestNormalizeMessage_IDChangesWithContent(t *testing.T) {
	a := normalizeMessage("tid", "rel", 0, []byte(`{"content":"one"}`))
	b := normalizeMessage("tid", "rel", 0, []byte(`{"content":"two"}`))
	c := normalizeMessage("tid", "rel", 1, []byte(`{"content":"one"}`))

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	again := normalizeMessage("tid", "rel", 0, []byte(`{"content":"one"}`))
	assert.Equal(t, a.ID, again.ID)
}

func TestNormalizePost_NestedDataShape(t *testing.T) {
	raw := []byte(`{"timestamp":1650000000,"title":"Alice shared a memory.","data":[{"post":"What a day!"}],"attachments":[{"data":[]}]}`)
	post := normalizePost("posts/your_posts_1.json", 0, raw)

	require.NotNil(t, post.TimestampMs)
	assert.Equal(t, int64(1650000000000), *post.TimestampMs)
	require.NotNil(t, post.Text)
	assert.Equal(t, "What a day!", *post.Text)
	require.NotNil(t, post.Title)
	assert.NotNil(t, post.AttachmentsJSON)
}

func TestNormalizePost_FlatShape(t *testing.T) {
	raw := []byte(`{"post":"flat text"}`)
	post := normalizePost("rel", 0, raw)

	require.NotNil(t, post.Text)
	assert.Equal(t, "flat text", *post.Text)
	assert.Nil(t, post.TimestampMs)
	assert.Nil(t, post.Title)
}

func TestNormalizeComment(t *testing.T) {
	raw := []byte(`{"timestamp":1600000000,"title":"Alice commented on a post.","data":[{"comment":{"comment":"nice one","author":"Alice"}}]}`)
	c := normalizeComment("comments.json", 4, raw)

	require.NotNil(t, c.Author)
	assert.Equal(t, "Alice", *c.Author)
	require.NotNil(t, c.Text)
	assert.Equal(t, "nice one", *c.Text)
	require.NotNil(t, c.Parent)
	assert.Equal(t, "Alice commented on a post.", *c.Parent)
	require.NotNil(t, c.TimestampMs)
	assert.Equal(t, int64(1600000000000), *c.TimestampMs)
}

func TestNormalizeReaction(t *testing.T) {
	raw := []byte(`{"timestamp":1600000001,"title":"Alice likes a photo.","data":[{"reaction":{"reaction":"LIKE","actor":"Alice"}}]}`)
	r := normalizeReaction("reactions.json", 0, raw)

	require.NotNil(t, r.Actor)
	assert.Equal(t, "Alice", *r.Actor)
	require.NotNil(t, r.Reaction)
	assert.Equal(t, "LIKE", *r.Reaction)
	require.NotNil(t, r.Target)
}

func TestTrimOrNil(t *testing.T) {
	assert.Nil(t, trimOrNil(""))
	assert.Nil(t, trimOrNil("   "))
	got := trimOrNil("  x  ")
	require.NotNil(t, got)
	assert.Equal(t, "x", *got)
}

func TestThreadIDFor_Stable(t *testing.T) {
	a := threadIDFor("inbox/alice_x1")
	assert.Equal(t, a, threadIDFor("inbox/alice_x1"))
	assert.NotEqual(t, a, threadIDFor("inbox/bob_y2"))
}
