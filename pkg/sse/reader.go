package sse

import (
	"bufio"
	"io"
	"strings"
)

// Reader parses SSE events from a source. When a tee destination is given,
// every raw line is also copied to it verbatim, which lets callers log or
// forward the stream while inspecting events.
type Reader struct {
	scanner *bufio.Scanner
	dest    io.Writer

	current *Event
	hasData bool
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, io.Discard)
}

// NewTeeReader returns a Reader that also writes all raw bytes to dest.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	// snapshots of large trees can exceed the default token size
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	return &Reader{
		scanner: scanner,
		dest:    dest,
		current: &Event{},
	}
}

// Next blocks until a complete event is available and returns it. It
// returns nil, nil when the source is exhausted.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		// Scan strips the newline
		if _, err := io.WriteString(r.dest, raw+"\n"); err != nil {
			return nil, err
		}

		if raw == "" {
			if r.hasData {
				ev := r.current
				r.reset()
				return ev, nil
			}
			// keep-alive or leading blank line
			continue
		}

		if strings.HasPrefix(raw, ":") {
			continue
		}
		r.parseLine(raw)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// stream ended without a trailing blank line
	if r.hasData {
		ev := r.current
		r.reset()
		return ev, nil
	}
	return nil, nil
}

// parseLine accumulates one "field:value" line into the current event. A
// single space after the colon is stripped.
func (r *Reader) parseLine(line string) {
	field, value, ok := strings.Cut(line, ":")
	if ok {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// retry and unknown fields are ignored
	}
}

func (r *Reader) reset() {
	r.current = &Event{}
	r.hasData = false
}
