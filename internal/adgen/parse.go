package adgen

import (
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"
)

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	end := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	if end <= 1 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}

// parseHeadlines extracts headline candidates from model output. It accepts a
// JSON array, an object with a "headlines" array, or one headline per line.
func parseHeadlines(text string) []string {
	text = stripFences(text)
	if text == "" {
		return nil
	}

	var arr []string
	if err := json.Unmarshal([]byte(text), &arr); err == nil {
		return cleanHeadlines(arr)
	}
	var obj struct {
		Headlines []string `json:"headlines"`
	}
	if err := json.Unmarshal([]byte(text), &obj); err == nil && len(obj.Headlines) > 0 {
		return cleanHeadlines(obj.Headlines)
	}

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = trimListMarker(l)
	}
	return cleanHeadlines(lines)
}

// trimListMarker drops "1.", "2)", "-", "*" prefixes and surrounding quotes.
func trimListMarker(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*• ")
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	return strings.Trim(s, `"`)
}

func cleanHeadlines(in []string) []string {
	out := make([]string, 0, len(in))
	for _, h := range in {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// fitHeadlines returns exactly HeadlineCount headlines, filling gaps from the
// placeholders and truncating each to MaxHeadlineLen.
func fitHeadlines(got, placeholders []string) []string {
	out := make([]string, HeadlineCount)
	for i := range out {
		if i < len(got) {
			out[i] = got[i]
		} else {
			out[i] = placeholders[i]
		}
		out[i] = truncate(out[i], MaxHeadlineLen)
	}
	return out
}

// truncate cuts s to at most n runes, trimming trailing whitespace left by
// the cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimRightFunc(string(r[:n]), unicode.IsSpace)
}
