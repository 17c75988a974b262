package ingester

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// The streaming path exists for files too large to parse in memory. It
// holds no more than the current record in flight: navigation skips
// sibling values token by token instead of materializing them.

var (
	errProbeExhausted = errors.New("probe limit reached")
	errNotObject      = errors.New("document root is not an object")
)

// skipValue consumes exactly one JSON value from the decoder without
// materializing it.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); ok && (d == '{' || d == '[') {
		return skipRemainder(dec)
	}
	return nil
}

// skipRemainder consumes tokens until the container whose opening
// delimiter was already read off the decoder is closed.
func skipRemainder(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

// seekTopLevelKey positions the decoder at the value of the given
// top-level object key. Returns false when the key is absent.
func seekTopLevelKey(dec *json.Decoder, key string) (bool, error) {
	tok, err := dec.Token()
	if err != nil {
		return false, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return false, errNotObject
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return false, err
		}
		name, ok := tok.(string)
		if !ok {
			return false, fmt.Errorf("expected object key, got %v", tok)
		}
		if name == key {
			return true, nil
		}
		if err := skipValue(dec); err != nil {
			return false, err
		}
	}
	return false, nil
}

// seekCandidateArray positions the decoder just inside the '[' of the
// candidate record array. The empty candidate means the document root.
func seekCandidateArray(dec *json.Decoder, candidate string) (bool, error) {
	if candidate != "" {
		found, err := seekTopLevelKey(dec, candidate)
		if err != nil || !found {
			return false, err
		}
	}
	tok, err := dec.Token()
	if err != nil {
		return false, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return false, nil
	}
	return true, nil
}

// probeCandidate re-reads the stream far enough to learn whether the
// candidate path yields an array containing at least one object,
// examining at most probeLimit elements.
func probeCandidate(path, candidate string, probeLimit int) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(f)
	inArray, err := seekCandidateArray(dec, candidate)
	if err != nil {
		if err == io.EOF || err == errNotObject {
			return false, nil
		}
		return false, err
	}
	if !inArray {
		return false, nil
	}

	for i := 0; dec.More(); i++ {
		if i >= probeLimit {
			return false, errProbeExhausted
		}
		tok, err := dec.Token()
		if err != nil {
			return false, err
		}
		// Only top-level elements count: an object delimiter here is a
		// hit, a nested array is skipped whole, scalars are already
		// consumed by Token
		if d, ok := tok.(json.Delim); ok {
			if d == '{' {
				return true, nil
			}
			if err := skipRemainder(dec); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// streamArrayAt runs the full pass over the committed candidate array,
// decoding one record at a time into the sink.
func streamArrayAt(path, candidate string, sink recordSink) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(f)
	inArray, err := seekCandidateArray(dec, candidate)
	if err != nil {
		return err
	}
	if !inArray {
		return fmt.Errorf("candidate %q vanished between probe and pass", candidate)
	}

	for index := 0; dec.More(); index++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to decode record %d: %w", index, err)
		}
		if err := sink(index, raw); err != nil {
			return err
		}
	}
	return nil
}

// streamGenericRecords probes each candidate path in turn and streams the
// first one that yields at least one object. Returns false when no
// candidate holds a usable array.
func streamGenericRecords(path string, candidates []string, probeLimit int, sink recordSink) (bool, error) {
	for _, candidate := range candidates {
		hit, err := probeCandidate(path, candidate, probeLimit)
		if err != nil {
			if err == errProbeExhausted {
				continue
			}
			return false, err
		}
		if !hit {
			continue
		}
		if err := streamArrayAt(path, candidate, sink); err != nil {
			return true, err
		}
		return true, nil
	}
	return false, nil
}

// streamThreadFile reads a message-thread file in three passes, re-opening
// the stream per phase: title, participants, then the message array. The
// header callback fires after the scalar passes and before any message.
func streamThreadFile(path string, headerFn func(*threadHeader) error, sink recordSink) (bool, error) {
	header := &threadHeader{}

	if err := withTopLevelValue(path, "title", func(dec *json.Decoder) error {
		var title string
		if err := dec.Decode(&title); err != nil {
			return nil // non-string title, leave unset
		}
		header.Title = trimOrNil(title)
		return nil
	}); err != nil {
		return false, err
	}

	if err := withTopLevelValue(path, "participants", func(dec *json.Decoder) error {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		// Kept only when array-shaped, same as the whole-file reader
		if len(raw) > 0 && raw[0] == '[' {
			s := string(raw)
			header.ParticipantsJSON = &s
		}
		return nil
	}); err != nil {
		return false, err
	}

	if err := headerFn(header); err != nil {
		return false, err
	}

	found := false
	err := withTopLevelValue(path, "messages", func(dec *json.Decoder) error {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			return nil
		}
		found = true
		for index := 0; dec.More(); index++ {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("failed to decode message %d: %w", index, err)
			}
			if err := sink(index, raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return found, err
	}

	return found, nil
}

// withTopLevelValue opens the file, seeks the given top-level key and, if
// present, hands the positioned decoder to fn. Absent keys are not errors.
func withTopLevelValue(path, key string, fn func(dec *json.Decoder) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(f)
	found, err := seekTopLevelKey(dec, key)
	if err != nil {
		if err == io.EOF || err == errNotObject {
			return nil
		}
		return err
	}
	if !found {
		return nil
	}
	return fn(dec)
}
