// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/verdantlabs/verdant/internal/domain"
)

var (
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// PDFExtractor extracts normalized plain text from PDF bytes.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract returns the document's text with whitespace normalized for
// segmentation. A structurally unreadable file or a PDF with no extractable
// text (scans without an OCR layer, image-only pages) is an extraction error.
func (e *PDFExtractor) Extract(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "failed to open PDF", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "failed to read PDF text", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "failed to read PDF text", err)
	}

	text := NormalizeText(buf.String())
	if text == "" {
		return "", domain.NewDomainError(domain.ErrCodeExtraction, "no text could be extracted from PDF")
	}

	return text, nil
}

// NormalizeText collapses horizontal whitespace runs, trims line edges, and
// caps blank-line runs at one so paragraph boundaries survive as exactly one
// empty line.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRunRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = newlineRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
