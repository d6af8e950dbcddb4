package pdfutil

import (
	"bytes"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ExtractExcerpt reads PDF bytes and returns up to limit bytes of plain text,
// stopping at the first page that fills the budget. Pages that fail to
// decode are skipped as long as at least one page yields text.
func ExtractExcerpt(data []byte, limit int) (text string, err error) {
	// The parser panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	var firstErr error
	total := doc.NumPage()
	for page := 1; page <= total && builder.Len() < limit; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", page, err)
			}
			continue
		}
		builder.WriteString(strings.TrimSpace(content))
		builder.WriteString("\n")
	}
	text = strings.TrimSpace(builder.String())
	if text == "" && firstErr != nil {
		return "", firstErr
	}
	if len(text) > limit {
		text = text[:limit]
	}
	return text, nil
}
