// Package sse reads server-sent event streams as returned by the OpenAI
// and Anthropic streaming APIs.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize bounds a single event line. Provider chunks are small but
// tool and JSON payloads can exceed bufio's 64KiB default.
const maxLineSize = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	// Name is the event field, empty for unnamed events.
	Name string

	// Data is the concatenated data lines.
	Data string
}

// Reader splits a stream into events.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event, or io.EOF once the stream is exhausted.
func (r *Reader) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		pending bool
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if !pending {
				continue
			}
			ev.Data = strings.Join(data, "\n")
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	if pending {
		// Some servers omit the blank line after the final event.
		ev.Data = strings.Join(data, "\n")
		return ev, nil
	}
	return Event{}, io.EOF
}
