package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text passes through", "hello world", "hello world"},
		{"removes tags", "<p>hello <b>world</b></p>", "hello world"},
		{"ignores attributes", `<a href="https://example.com" target="_blank">link</a>`, "link"},
		{"drops script bodies", `<p>before</p><script src="x.js">var a = "hidden";</script><p>after</p>`, "before after"},
		{"drops style bodies", "<style>body { color: red }</style>visible", "visible"},
		{"closing tags", "<div>a</div><div>b</div>", "a b"},
		{"collapses whitespace", "<p>  a   b  </p>\n\n<p>c</p>", "a b c"},
		{"unterminated tag drops remainder", "text <a href=", "text"},
		{"self closing", "line<br/>break", "line break"},
		{"case insensitive", "<SCRIPT>alert(1)</SCRIPT>ok", "ok"},
		{"empty input", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHTML(tt.in))
		})
	}
}

func TestStripHTML_FullDocument(t *testing.T) {
	doc := `<!DOCTYPE html>
<html>
<head><title>Page</title><style>h1{font-size:2em}</style></head>
<body>
<h1>Heading</h1>
<p>First paragraph with <em>emphasis</em>.</p>
<script>trackPageView();</script>
<p>Second paragraph.</p>
</body>
</html>`

	got := StripHTML(doc)
	assert.Equal(t, "Page Heading First paragraph with emphasis. Second paragraph.", got)
}
