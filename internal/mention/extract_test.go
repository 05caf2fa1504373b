package mention

import "testing"

func TestExtractReplyBody(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json body", `{"body": "hello"}`, "hello"},
		{"fenced json body", "Here you go:\n```json\n{\"body\": \"hi\"}\n```", "hi"},
		{"fenced plain block", "```\nplain text\n```", "plain text"},
		{"fenced block with language", "```markdown\nsome notes\n```", "some notes"},
		{"plain text trimmed", "  spaced  ", "spaced"},
		{"empty", "", ""},
		{"whitespace only", "   \n\t ", ""},
		{"bare json without body falls through", `{"answer": "42"}`, `{"answer": "42"}`},
		{"invalid json falls through", "{not json", "{not json"},
		{"multiline plain", "line one\nline two", "line one\nline two"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractReplyBody(tc.in); got != tc.want {
				t.Fatalf("ExtractReplyBody(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
