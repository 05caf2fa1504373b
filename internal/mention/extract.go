package mention

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedJSONPattern = regexp.MustCompile("```(?:json)?\\s*(\\{(?s:.)*?\\})\\s*```")
	wholeFencePattern = regexp.MustCompile("^```[^\\n]*\\n((?s:.)*?)```$")
)

// ExtractReplyBody recovers a plain-text reply from a runner's raw result
// text. The fallback chain is total: bare JSON object with a "body" field,
// then a fenced JSON block with a "body" field, then the inner content of a
// single fenced block, then the trimmed original text. Non-empty input never
// yields an empty result unless the input was all whitespace.
func ExtractReplyBody(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "{") {
		if body, ok := bodyField(trimmed); ok {
			return body
		}
	}
	if m := fencedJSONPattern.FindStringSubmatch(trimmed); m != nil {
		if body, ok := bodyField(m[1]); ok {
			return body
		}
	}
	if m := wholeFencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

func bodyField(s string) (string, bool) {
	var obj struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj.Body == "" {
		return "", false
	}
	return obj.Body, true
}
