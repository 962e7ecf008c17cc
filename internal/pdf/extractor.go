// Package pdfutil turns CV documents into searchable plain text.
package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// MaxTextLen caps the stored CV text.
const MaxTextLen = 64 << 10

// ErrTooLarge is returned when the document exceeds the read limit.
var ErrTooLarge = errors.New("pdf exceeds read limit")

// ExtractText parses PDF bytes page by page and returns the text with runs of
// whitespace collapsed, truncated to MaxTextLen bytes.
func ExtractText(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	for page := 1; page <= doc.NumPage(); page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return Normalize(builder.String()), nil
}

// ExtractFromReader reads at most limit bytes before passing them to
// ExtractText.
func ExtractFromReader(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if int64(len(data)) > limit {
		return "", ErrTooLarge
	}
	return ExtractText(data)
}

// Normalize collapses whitespace and cuts the text at MaxTextLen without
// splitting a UTF-8 sequence.
func Normalize(text string) string {
	out := strings.Join(strings.Fields(text), " ")
	if len(out) <= MaxTextLen {
		return out
	}
	cut := MaxTextLen
	for cut > 0 && !isRuneStart(out[cut]) {
		cut--
	}
	return out[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
