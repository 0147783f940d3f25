package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	sdk "github.com/inference-gateway/sdk"

	"github.com/chatwire/chatwire/internal/domain"
	"github.com/chatwire/chatwire/internal/logger"
)

// doneSentinel terminates a server-sent-event stream
const doneSentinel = "[DONE]"

// Decoder turns a raw byte stream of server-sent-event frames into a
// forward-only sequence of chat completion deltas. Bytes may arrive in
// arbitrary-sized reads; partial lines are buffered until a newline
// completes them. The sequence is not restartable.
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

// NewDecoder wraps a streaming response body
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	return &Decoder{scanner: scanner}
}

// Next returns the next delta record, io.EOF once the terminal sentinel or
// end of input is reached, or a transport error if the stream aborts.
//
// A line that fails to parse as JSON is logged and skipped rather than
// aborting the stream: a single upstream hiccup should not lose the whole
// response.
func (d *Decoder) Next() (*sdk.CreateChatCompletionStreamResponse, error) {
	if d.done {
		return nil, io.EOF
	}

	for d.scanner.Scan() {
		line := strings.TrimSpace(d.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == doneSentinel {
			d.done = true
			return nil, io.EOF
		}

		var resp sdk.CreateChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(payload), &resp); err != nil {
			logger.Warn("skipping malformed stream line", "error", err, "line_length", len(payload))
			continue
		}

		return &resp, nil
	}

	d.done = true
	if err := d.scanner.Err(); err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	return nil, io.EOF
}
