// Package document handles turning source files into chunks of plain
// text ready for embedding.
package document

import (
	"bytes"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// Extractor extracts plain text from a document on disk.
type Extractor interface {
	Extract(path string) (string, error)
}

var _ Extractor = (*PDFExtractor)(nil)

// PDFExtractor extracts text from PDF files.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF text extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract reads the PDF at path and returns its plain text content.
func (e *PDFExtractor) Extract(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open PDF %s", path)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", errors.Wrapf(err, "failed to extract text from %s", path)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", errors.Wrapf(err, "failed to read text from %s", path)
	}
	if buf.Len() == 0 {
		return "", errors.Errorf("no extractable text in %s", path)
	}
	return buf.String(), nil
}
