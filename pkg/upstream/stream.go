package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/tidwall/gjson"
)

// maxLineSize bounds one SSE line.
const maxLineSize = 4 << 20

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// StreamReader reads JSON units from an upstream SSE response.
type StreamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
	mapErr  func(error) error
	done    bool
	closed  bool
}

func newStreamReader(body io.ReadCloser, cancel context.CancelFunc, mapErr func(error) error) *StreamReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &StreamReader{
		body:    body,
		scanner: scanner,
		cancel:  cancel,
		mapErr:  mapErr,
	}
}

// Next returns the next unit of the stream. It returns io.EOF at the
// [DONE] marker or at the end of the response. An error object sent inside
// the stream is returned as *APIError.
func (s *StreamReader) Next(ctx context.Context) (json.RawMessage, error) {
	if s.closed || s.done {
		return nil, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !s.scanner.Scan() {
			s.done = true
			if err := s.scanner.Err(); err != nil {
				if errors.Is(err, bufio.ErrTooLong) {
					return nil, &ParseError{Cause: err}
				}
				return nil, s.mapErr(err)
			}
			return nil, io.EOF
		}

		line := s.scanner.Bytes()
		data, ok := bytes.CutPrefix(line, dataPrefix)
		if !ok {
			// Blank separators, comments, event and id fields.
			continue
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}

		if bytes.Equal(data, doneMarker) {
			s.done = true
			return nil, io.EOF
		}

		if !gjson.ValidBytes(data) {
			return nil, &ParseError{
				Raw:   truncate(string(data), 512),
				Cause: errors.New("stream unit is not valid JSON"),
			}
		}

		if errObj := gjson.GetBytes(data, "error"); errObj.IsObject() {
			status := 0
			if code := errObj.Get("code"); code.Type == gjson.Number {
				status = int(code.Int())
			}
			return nil, apiError(status, data, errorMessage(data, status))
		}

		// The scanner reuses its buffer.
		return json.RawMessage(bytes.Clone(data)), nil
	}
}

// Close aborts the response and releases its pool slot.
func (s *StreamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return s.body.Close()
}
