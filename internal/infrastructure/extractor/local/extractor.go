package local

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

// Extractor reads the embedded text layer of PDFs and plain UTF-8 files
// in-process. Scanned PDFs without a text layer yield empty text.
type Extractor struct {
	maxBytes int64
}

func NewExtractor(maxBytes int64) *Extractor {
	return &Extractor{maxBytes: maxBytes}
}

func (e *Extractor) Extract(ctx context.Context, filename, contentType string, body []byte) (domain.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExtractionResult{}, err
	}
	if e.maxBytes > 0 && int64(len(body)) > e.maxBytes {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrValidation, "local extract",
			fmt.Errorf("document exceeds %d bytes", e.maxBytes))
	}

	var (
		text string
		err  error
	)
	switch {
	case isPDF(filename, contentType, body):
		text, err = extractPDF(body)
	case utf8.Valid(body):
		text = string(body)
	default:
		err = fmt.Errorf("unsupported binary format: %s", filename)
	}
	if err != nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrExternalServiceUnavailable, "local extract", err)
	}
	return domain.ExtractionResult{Text: strings.TrimSpace(text), SourceFilename: filename}, nil
}

func isPDF(filename, contentType string, body []byte) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") || strings.Contains(contentType, "pdf") {
		return true
	}
	return bytes.HasPrefix(body, []byte("%PDF-"))
}

func extractPDF(body []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}
