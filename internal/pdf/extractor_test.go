package pdfutil

import "testing"

func TestExtractExcerptRejectsGarbage(t *testing.T) {
	for _, input := range [][]byte{nil, []byte("not a pdf"), []byte("%PDF-1.7\n1 0 obj <<")} {
		if _, err := ExtractExcerpt(input, 100); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}
