// Package ocr is the text-acquisition stage: PDF validation, key-fact
// pre-scanning, and per-document / batch OCR through the document
// intelligence collaborator.
package ocr

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pkruk/accident-clerk/internal/domain"
)

const minPDFSize = 1024

// ValidatePDF rejects obviously broken uploads before any OCR spend:
// empty payloads, missing %PDF- magic, files under 1KB.
func ValidatePDF(b []byte) error {
	if len(b) == 0 {
		return &domain.ValidationError{Reason: "Plik jest pusty"}
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		return &domain.ValidationError{Reason: "Plik nie jest poprawnym PDF (brak nagłówka %PDF-)"}
	}
	if len(b) < minPDFSize {
		return &domain.ValidationError{Reason: "Plik PDF jest zbyt mały (< 1KB)"}
	}
	return nil
}

// localPageCount attempts a structural read for an advisory page count.
// Scanned or slightly damaged PDFs that pdfcpu rejects still go to OCR,
// so a failed read just means 0.
func localPageCount(b []byte) int {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(b), model.NewDefaultConfiguration())
	if err != nil {
		return 0
	}
	return ctx.PageCount
}
