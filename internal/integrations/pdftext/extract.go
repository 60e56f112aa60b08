// Package pdftext pulls plain text out of uploaded PDF documents.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const pdfMIME = "application/pdf"

var ErrNotPDF = errors.New("pdftext: content is not a PDF document")

// IsPDF reports whether content sniffs as a PDF document.
func IsPDF(content []byte) bool {
	return mimetype.Detect(content).Is(pdfMIME)
}

// Extract returns the concatenated plain text of every page. Pages whose
// text cannot be decoded are skipped.
func Extract(content []byte) (text string, err error) {
	if !IsPDF(content) {
		return "", ErrNotPDF
	}
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdftext: malformed document: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("pdftext: open document: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		s, err := page.GetPlainText(nil)
		if err != nil || s == "" {
			continue
		}
		b.WriteString(s)
	}
	return b.String(), nil
}
