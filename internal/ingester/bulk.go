package ingester

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// recordSink receives one raw record at a time, in source file order.
type recordSink func(index int, raw []byte) error

// threadHeader carries the thread-level scalars of a message file.
type threadHeader struct {
	Title            *string
	ParticipantsJSON *string
}

// bulkGenericRecords reads the whole file, locates the record array via
// the candidate paths and feeds every element to the sink in order.
// Returns false when no candidate yields an array.
func bulkGenericRecords(path string, candidates []string, sink recordSink) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return false, fmt.Errorf("invalid JSON in %s", path)
	}

	root := gjson.ParseBytes(data)
	for _, candidate := range candidates {
		arr := root
		if candidate != "" {
			arr = root.Get(candidate)
		}
		if !arr.IsArray() || !containsObject(arr) {
			continue
		}
		index := 0
		var sinkErr error
		arr.ForEach(func(_, value gjson.Result) bool {
			if sinkErr = sink(index, []byte(value.Raw)); sinkErr != nil {
				return false
			}
			index++
			return true
		})
		if sinkErr != nil {
			return true, sinkErr
		}
		return true, nil
	}
	return false, nil
}

// containsObject reports whether any element of the array is an object,
// mirroring what the streaming probe requires of a candidate.
func containsObject(arr gjson.Result) bool {
	found := false
	arr.ForEach(func(_, value gjson.Result) bool {
		if value.IsObject() {
			found = true
			return false
		}
		return true
	})
	return found
}

// bulkThreadFile reads a whole message-thread file. The header callback
// fires before the first message so the thread row can be created first;
// messages then flow to the sink in file order.
func bulkThreadFile(path string, headerFn func(*threadHeader) error, sink recordSink) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return false, fmt.Errorf("invalid JSON in %s", path)
	}

	root := gjson.ParseBytes(data)

	header := &threadHeader{}
	if title := root.Get("title"); title.Type == gjson.String {
		header.Title = trimOrNil(title.String())
	}
	if parts := root.Get("participants"); parts.IsArray() {
		raw := parts.Raw
		header.ParticipantsJSON = &raw
	}
	if err := headerFn(header); err != nil {
		return false, err
	}

	msgs := root.Get("messages")
	if !msgs.IsArray() {
		return false, nil
	}

	index := 0
	var sinkErr error
	msgs.ForEach(func(_, value gjson.Result) bool {
		if sinkErr = sink(index, []byte(value.Raw)); sinkErr != nil {
			return false
		}
		index++
		return true
	})
	if sinkErr != nil {
		return true, sinkErr
	}
	return true, nil
}
