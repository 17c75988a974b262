package docbuilder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackLines_Empty(t *testing.T) {
	assert.Empty(t, packLines(nil, 600, 2000))
}

func TestPackLines_SingleShortLine(t *testing.T) {
	chunks := packLines([]line{{text: "hello", ts: 10}}, 600, 2000)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0].text)
	assert.Equal(t, int64(10), chunks[0].firstTs)
	assert.Equal(t, int64(10), chunks[0].lastTs)
}

func TestPackLines_OversizedLineStandsAlone(t *testing.T) {
	big := strings.Repeat("x", 5000)
	chunks := packLines([]line{
		{text: "before", ts: 1},
		{text: big, ts: 2},
		{text: "after", ts: 3},
	}, 0, 2000)

	require.Len(t, chunks, 3)
	assert.Equal(t, "before", chunks[0].text)
	assert.Equal(t, big, chunks[1].text)
	assert.Equal(t, "after", chunks[2].text)
}

func TestPackLines_MaxCeiling(t *testing.T) {
	// 40 lines of 99 chars each: 99 + 1 newline = 100 chars per appended
	// line. With max 2000 and min 0, each chunk holds at most 20 lines.
	lines := make([]line, 40)
	for i := range lines {
		lines[i] = line{text: strings.Repeat("a", 99), ts: int64(i)}
	}

	chunks := packLines(lines, 0, 2000)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.text), 2000)
	}
	assert.Equal(t, int64(0), chunks[0].firstTs)
	assert.Equal(t, int64(19), chunks[0].lastTs)
	assert.Equal(t, int64(20), chunks[1].firstTs)
	assert.Equal(t, int64(39), chunks[1].lastTs)
}

func TestPackLines_MinHoldsChunkOpen(t *testing.T) {
	// Each line 50 chars. With min 600 the chunk may not close before
	// reaching 600 chars even once past would-be boundaries.
	lines := make([]line, 30)
	for i := range lines {
		lines[i] = line{text: strings.Repeat("b", 50), ts: int64(i)}
	}

	chunks := packLines(lines, 600, 700)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, len(c.text), 600, "chunk %d closed below min", i)
		}
		assert.LessOrEqual(t, len(c.text), 700+51, "chunk %d", i)
	}
}

func TestPackLines_TimestampSpan(t *testing.T) {
	chunks := packLines([]line{
		{text: "a", ts: 100},
		{text: "b", ts: 200},
		{text: "c", ts: 300},
	}, 0, 2000)

	require.Len(t, chunks, 1)
	assert.Equal(t, int64(100), chunks[0].firstTs)
	assert.Equal(t, int64(300), chunks[0].lastTs)
	assert.Equal(t, "a\nb\nc", chunks[0].text)
}

func TestJoinLines(t *testing.T) {
	assert.Equal(t, "only", joinLines([]string{"only"}))
	assert.Equal(t, "a\nb", joinLines([]string{"a", "b"}))
}
