package textutil

import "strings"

// StripHTML removes markup from an HTML document, returning the visible
// text with runs of whitespace collapsed. Script and style bodies are
// dropped entirely. This is a best-effort extraction for feeding page text
// into the tools, not a sanitizer.
func StripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s) / 2)

	i := 0
	for i < len(s) {
		if s[i] != '<' {
			b.WriteByte(s[i])
			i++
			continue
		}

		end := strings.IndexByte(s[i:], '>')
		if end < 0 {
			break // unterminated tag; drop the rest
		}
		tag := s[i+1 : i+end]
		i += end + 1

		name := strings.ToLower(tagName(tag))
		switch name {
		case "script", "style":
			// Discard everything up to the matching closing tag.
			closing := "</" + name
			rest := strings.ToLower(s[i:])
			if idx := strings.Index(rest, closing); idx >= 0 {
				i += idx
				if gt := strings.IndexByte(s[i:], '>'); gt >= 0 {
					i += gt + 1
				} else {
					i = len(s)
				}
			} else {
				i = len(s)
			}
		case "p", "br", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteByte('\n')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// tagName extracts the element name from raw tag contents, ignoring the
// closing slash and any attributes.
func tagName(tag string) string {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "/")
	for idx := 0; idx < len(tag); idx++ {
		switch tag[idx] {
		case ' ', '\t', '\n', '\r', '/':
			return tag[:idx]
		}
	}
	return tag
}
