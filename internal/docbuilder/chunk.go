package docbuilder

// line is one rendered text line with its source timestamp. Generic
// entities use a zero timestamp.
type line struct {
	text string
	ts   int64
}

// chunk is a packed run of lines with its time span.
type chunk struct {
	text    string
	firstTs int64
	lastTs  int64
}

// packLines greedily accumulates lines into chunks. A chunk closes when
// appending the next line would exceed maxChars and the chunk has already
// reached minChars. Lines are never split, so a single line longer than
// maxChars becomes a chunk on its own.
func packLines(lines []line, minChars, maxChars int) []chunk {
	chunks := make([]chunk, 0)
	var cur []string
	var curLen int
	var firstTs, lastTs int64

	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, chunk{
			text:    joinLines(cur),
			firstTs: firstTs,
			lastTs:  lastTs,
		})
		cur = cur[:0]
		curLen = 0
	}

	for _, l := range lines {
		add := len(l.text)
		if len(cur) > 0 {
			add++ // newline separator
		}
		if len(cur) > 0 && curLen+add > maxChars && curLen >= minChars {
			flush()
			add = len(l.text)
		}
		if len(cur) == 0 {
			firstTs = l.ts
		}
		cur = append(cur, l.text)
		curLen += add
		lastTs = l.ts
	}
	flush()

	return chunks
}

func joinLines(lines []string) string {
	if len(lines) == 1 {
		return lines[0]
	}
	n := len(lines) - 1
	for _, l := range lines {
		n += len(l)
	}
	buf := make([]byte, 0, n)
	for i, l := range lines {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, l...)
	}
	return string(buf)
}
