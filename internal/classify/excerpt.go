package classify

import (
	"bytes"
	"strings"
	"unicode/utf8"

	pdfutil "github.com/dharsanguruparan/FileShelf/internal/pdf"
)

// BuildContent turns the first bytes of a file into classifier input. PDFs are
// run through the text extractor; valid UTF-8 without NUL bytes is treated as
// text; anything else is reported as binary. An empty head yields nil.
func BuildContent(name, contentType string, head []byte, limit int) *Content {
	if len(head) == 0 {
		return nil
	}
	if limit > 0 && len(head) > limit {
		head = head[:limit]
	}
	if isPDF(name, contentType, head) {
		text, err := pdfutil.ExtractExcerpt(head, limit)
		if err != nil || strings.TrimSpace(text) == "" {
			return &Content{Binary: true}
		}
		return &Content{Text: text}
	}
	if text, ok := textExcerpt(head); ok {
		return &Content{Text: text}
	}
	return &Content{Binary: true}
}

func isPDF(name, contentType string, head []byte) bool {
	if strings.HasPrefix(contentType, "application/pdf") || Extension(name) == "pdf" {
		return true
	}
	return bytes.HasPrefix(head, []byte("%PDF-"))
}

// textExcerpt accepts head as text when it is UTF-8, allowing a rune cut in
// half at the end of the buffer.
func textExcerpt(head []byte) (string, bool) {
	if bytes.IndexByte(head, 0) >= 0 {
		return "", false
	}
	for i := 0; i < utf8.UTFMax && len(head) > 0; i++ {
		if utf8.Valid(head) {
			text := strings.TrimSpace(string(head))
			return text, text != ""
		}
		head = head[:len(head)-1]
	}
	return "", false
}
