// Package tooldetect recognizes tool invocations encoded as free text.
//
// Some backends have no structured tool-calling mode and can only be
// instructed, through prompt injection, to emit a specific JSON convention
// when they intend to call a tool. This package decodes that convention from
// a fully assembled response.
package tooldetect

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sdk "github.com/inference-gateway/sdk"
)

// rawCall covers the per-call shapes the conventions produce: either a flat
// {name, arguments} object or a nested {function: {name, arguments}} one.
type rawCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Function  *struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type envelope struct {
	ToolCalls []rawCall `json:"tool_calls"`
	rawCall
}

// Extract attempts to recognize tool invocations embedded in visible text.
// It is invoked only when no structured tool call was seen in the stream.
// The text may be wrapped in a fenced code block. Three shapes are accepted
// in priority order: an object with a tool_calls array, a flat
// {name, arguments} object, and a {function: {name, arguments}} object.
// Anything else means no tool call was detected and the text is an ordinary
// reply.
//
// When extraction succeeds the caller must hide the original text from the
// user: it is machine-shaped JSON, not conversational prose.
func Extract(text string) ([]sdk.ChatCompletionMessageToolCall, bool) {
	candidate := StripFences(strings.TrimSpace(text))
	if candidate == "" || candidate[0] != '{' {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		return nil, false
	}

	if len(env.ToolCalls) > 0 {
		calls := make([]sdk.ChatCompletionMessageToolCall, 0, len(env.ToolCalls))
		for _, raw := range env.ToolCalls {
			call, ok := toCall(raw)
			if !ok {
				return nil, false
			}
			calls = append(calls, call)
		}
		return calls, true
	}

	if call, ok := toCall(env.rawCall); ok {
		return []sdk.ChatCompletionMessageToolCall{call}, true
	}

	return nil, false
}

func toCall(raw rawCall) (sdk.ChatCompletionMessageToolCall, bool) {
	name := raw.Name
	arguments := raw.Arguments
	if name == "" && raw.Function != nil {
		name = raw.Function.Name
		arguments = raw.Function.Arguments
	}
	if name == "" {
		return sdk.ChatCompletionMessageToolCall{}, false
	}

	id := raw.ID
	if id == "" {
		id = NewCallID()
	}

	call := sdk.ChatCompletionMessageToolCall{
		Id:   id,
		Type: sdk.Function,
	}
	call.Function.Name = name
	call.Function.Arguments = argumentsText(arguments)
	return call, true
}

// argumentsText keeps arguments as a serialized blob. A JSON string value is
// unwrapped so nested encodings collapse to one level; anything else is
// carried verbatim.
func argumentsText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// NewCallID generates a synthetic correlation identifier for a call the
// backend did not tag itself
func NewCallID() string {
	return fmt.Sprintf("call_%s", uuid.NewString())
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, returning the input unchanged when no fence wraps it
func StripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	body := strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		// drop the language tag line if one is present
		firstLine := strings.TrimSpace(body[:newline])
		if !strings.HasPrefix(firstLine, "{") {
			body = body[newline+1:]
		}
	}

	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

// IsCompleteJSON reports whether the text parses as one complete JSON value
func IsCompleteJSON(text string) bool {
	return json.Valid([]byte(strings.TrimSpace(text)))
}
