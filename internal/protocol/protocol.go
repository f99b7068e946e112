// Package protocol defines the command and envelope records exchanged with
// editor instances, and the normalization of heterogeneous editor replies
// into the canonical envelope shape.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command is one opaque instruction for an editor instance.
type Command struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Envelope is the normalized result shape returned to every caller.
// When Success is true, Error is empty and must be ignored. When Success is
// false, Data may still carry structured diagnostics but is not authoritative.
type Envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Retryable bool            `json:"retryable,omitempty"`
}

// Failure builds a terminal failure envelope.
func Failure(format string, args ...any) Envelope {
	return Envelope{Success: false, Error: fmt.Sprintf(format, args...)}
}

// RetryableFailure builds a failure envelope hinting that the caller may
// usefully retry the same logical command.
func RetryableFailure(format string, args ...any) Envelope {
	env := Failure(format, args...)
	env.Retryable = true
	return env
}

// hostReply covers the reply shapes editors are known to produce: the
// canonical success/message/error/data envelope and the older
// status/result/error variant.
type hostReply struct {
	Success *bool           `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Result  json.RawMessage `json:"result"`
}

// Normalize collapses a raw editor reply into the canonical Envelope. A bare
// non-object reply becomes a failure envelope whose message is the
// stringified reply; a malformed reply is never surfaced as a fault.
func Normalize(raw json.RawMessage) Envelope {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return Failure("empty reply from editor")
	}
	if trimmed[0] != '{' {
		env := Failure("editor returned a non-object reply")
		env.Message = stringifyScalar(trimmed)
		return env
	}

	var reply hostReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		env := Failure("editor returned a malformed reply")
		env.Message = trimmed
		return env
	}

	env := Envelope{
		Message: reply.Message,
		Error:   reply.Error,
		Data:    reply.Data,
	}
	if len(env.Data) == 0 {
		env.Data = reply.Result
	}

	switch {
	case reply.Success != nil:
		env.Success = *reply.Success
	case reply.Status != "":
		env.Success = strings.EqualFold(reply.Status, "success")
		if !env.Success && env.Error == "" {
			env.Error = "editor reported status " + reply.Status
		}
	default:
		// An object with neither framing is treated as a bare success
		// payload from the editor.
		env.Success = true
		env.Data = raw
	}

	if env.Success {
		env.Error = ""
	}
	return env
}

// Reloading reports whether a failure envelope indicates the editor is mid
// scripting-domain reload. Reload conditions are transient and retried by
// the connection pool.
func Reloading(env Envelope) bool {
	if env.Success {
		return false
	}
	text := strings.ToLower(env.Error + " " + env.Message)
	return strings.Contains(text, "reload")
}

func stringifyScalar(trimmed string) string {
	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
		return s
	}
	return trimmed
}
