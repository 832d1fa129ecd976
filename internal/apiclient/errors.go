package apiclient

import (
	"encoding/json"
	"strings"
)

// errorKeys are checked in order; the first one yielding text wins.
var errorKeys = []string{"error", "detail", "details", "msg", "message"}

// ExtractError pulls a user-facing reason out of a response body.
//
// Accepted shapes:
//   - {"error": "text"}
//   - {"detail": "text"} or {"details": "text"}
//   - {"detail": [{"msg": "a"}, {"msg": "b"}]}, joined as "a; b"
//   - {"error": "text", "details": [...]}, rendered as "text: a; b"
//
// It returns "" when the body is not JSON or names no error.
func ExtractError(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}

	for _, key := range errorKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		msg := messageFrom(raw)
		if msg == "" {
			continue
		}
		if key == "error" {
			if details := messageFrom(fields["details"]); details != "" && details != msg {
				return msg + ": " + details
			}
		}
		return msg
	}
	return ""
}

func messageFrom(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if msg := messageFrom(item); msg != "" {
				parts = append(parts, msg)
			}
		}
		return strings.Join(parts, "; ")
	}

	var obj struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		msg := obj.Msg
		if msg == "" {
			msg = obj.Message
		}
		return strings.TrimSpace(msg)
	}
	return ""
}
