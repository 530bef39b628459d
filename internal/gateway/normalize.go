package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// contentEnvelope matches the tools/call result shape where the payload is a
// list of typed content items, usually one text item carrying JSON.
type contentEnvelope struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// unwrapToolResult converts a raw tools/call result into a flat map.
// Two shapes are accepted:
//   - a plain JSON object, returned as-is
//   - a content envelope whose first text item embeds a JSON-encoded string;
//     the embedded document becomes the result, or {"text": raw} when the
//     string is not valid JSON
func unwrapToolResult(raw json.RawMessage) (map[string]any, error) {
	var envelope contentEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Content) > 0 {
		text := firstText(envelope.Content)
		if envelope.IsError {
			return nil, &RPCError{Message: text}
		}

		var embedded map[string]any
		if err := json.Unmarshal([]byte(text), &embedded); err == nil {
			return embedded, nil
		}
		return map[string]any{"text": text}, nil
	}

	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: result is neither object nor content envelope", ErrProtocol)
	}
	return result, nil
}

func firstText(items []contentItem) string {
	for _, item := range items {
		if item.Type == "" || item.Type == "text" {
			return item.Text
		}
	}
	return ""
}

// normalizeCatalog accepts the three observed tools/list result shapes (a
// bare list, a {tools:[...]} envelope, or a single object) and always
// produces a list.
func normalizeCatalog(raw json.RawMessage) ([]mcp.Tool, error) {
	var list []mcp.Tool
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var envelope struct {
		Tools json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Tools != nil {
		if err := json.Unmarshal(envelope.Tools, &list); err == nil {
			return list, nil
		}
		var single mcp.Tool
		if err := json.Unmarshal(envelope.Tools, &single); err == nil && single.Name != "" {
			return []mcp.Tool{single}, nil
		}
		return nil, fmt.Errorf("%w: unrecognized tools field in catalog", ErrProtocol)
	}

	var single mcp.Tool
	if err := json.Unmarshal(raw, &single); err == nil && single.Name != "" {
		return []mcp.Tool{single}, nil
	}

	return nil, fmt.Errorf("%w: unrecognized catalog shape", ErrProtocol)
}
