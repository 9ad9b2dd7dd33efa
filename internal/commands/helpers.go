package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/basecamp/netkit/internal/output"
)

// parseHeaders turns repeated "Name: value" flags into a header set.
func parseHeaders(raw []string) (http.Header, error) {
	h := http.Header{}
	for _, line := range raw {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, output.ErrUsageHint(fmt.Sprintf("invalid header %q", line), `Use -H "Name: value"`)
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

// parseQuery turns repeated "key=value" flags into query values.
func parseQuery(raw []string) (url.Values, error) {
	q := url.Values{}
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, output.ErrUsageHint(fmt.Sprintf("invalid query item %q", pair), "Use --query key=value")
		}
		q.Add(key, value)
	}
	return q, nil
}

// parseBody decodes --data. A value starting with @ is not supported; the
// body must be inline JSON.
func parseBody(data string) (any, error) {
	var body any
	if err := json.Unmarshal([]byte(data), &body); err != nil {
		return nil, output.ErrUsageHint("Invalid JSON data", fmt.Sprintf("JSON parse error: %v", err))
	}
	return body, nil
}

// maskToken keeps the last four characters of a token.
func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
