package adgen

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseHeadlines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"json array", `["A.", "B.", "C."]`, []string{"A.", "B.", "C."}},
		{"fenced json", "```json\n[\"A.\", \"B.\"]\n```", []string{"A.", "B."}},
		{"bare fence", "```\n[\"A.\"]\n```", []string{"A."}},
		{"object", `{"headlines":["X.","Y."]}`, []string{"X.", "Y."}},
		{"numbered lines", "1. First. Call Us.\n2) Second.\n- Third.", []string{"First. Call Us.", "Second.", "Third."}},
		{"quoted lines", "\"One.\"\n\n\"Two.\"", []string{"One.", "Two."}},
		{"blank entries dropped", `["A.", "  ", ""]`, []string{"A."}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parseHeadlines(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"hello world", 6, "hello"},
		{"ééééé", 3, "ééé"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func FuzzFitHeadlines(f *testing.F) {
	f.Add(`["a","b","c","d"]`)
	f.Add("1. " + strings.Repeat("ü", 300))
	f.Add("```\n```")

	f.Fuzz(func(t *testing.T, text string) {
		out := fitHeadlines(parseHeadlines(text), placeholderHeadlines("Acme"))
		if len(out) != HeadlineCount {
			t.Fatalf("got %d headlines", len(out))
		}
		for _, h := range out {
			if utf8.RuneCountInString(h) > MaxHeadlineLen {
				t.Fatalf("headline too long: %d runes", utf8.RuneCountInString(h))
			}
		}
	})
}
