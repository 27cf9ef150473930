package ui

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdownRenderer converts summary prose to sanitized HTML. Summary bodies
// come back from a language model, so the output is always run through a
// sanitizer before it can reach a browser.
type markdownRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func newMarkdownRenderer() *markdownRenderer {
	return &markdownRenderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

// render converts markdown to sanitized HTML.
func (r *markdownRenderer) render(source string) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return r.policy.SanitizeBytes(buf.Bytes()), nil
}

// summaryPage wraps rendered summary HTML in a minimal standalone document.
func summaryPage(title string, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>")
	buf.Write([]byte(htmlEscape(title)))
	buf.WriteString("</title></head>\n<body>\n<h1>")
	buf.Write([]byte(htmlEscape(title)))
	buf.WriteString("</h1>\n")
	buf.Write(body)
	buf.WriteString("\n</body>\n</html>\n")
	return buf.Bytes()
}

func htmlEscape(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		case '"':
			buf.WriteString("&#34;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
