package ocr

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkruk/accident-clerk/internal/docintel"
	"github.com/pkruk/accident-clerk/internal/domain"
	"github.com/pkruk/accident-clerk/internal/store"
)

// Analyzer is the slice of the document intelligence client this stage needs.
type Analyzer interface {
	Analyze(ctx context.Context, fileBytes []byte) docintel.Result
}

type Service struct {
	store store.Store
	intel Analyzer
}

func NewService(st store.Store, intel Analyzer) *Service {
	return &Service{store: st, intel: intel}
}

// DocumentResult is the outcome of OCR for a single document.
type DocumentResult struct {
	DocumentID string   `json:"document_id"`
	Filename   string   `json:"filename"`
	Success    bool     `json:"success"`
	Error      string   `json:"error,omitempty"`
	Confidence float64  `json:"confidence"`
	PageCount  int      `json:"page_count"`
	TextLength int      `json:"text_length"`
	KeyFacts   KeyFacts `json:"key_facts"`
}

// BatchResult is the stage-level outcome over all pending documents.
type BatchResult struct {
	Status             string           `json:"status"`
	Message            string           `json:"message,omitempty"`
	DocumentsProcessed int              `json:"documents_processed"`
	DocumentsSucceeded int              `json:"documents_succeeded"`
	Documents          []DocumentResult `json:"documents"`
}

// ProcessDocument validates, OCRs and persists one document. Validation
// failures and OCR failures come back in the result; only persistence
// problems are returned as errors.
func (s *Service) ProcessDocument(ctx context.Context, doc domain.Document, fileBytes []byte) (DocumentResult, error) {
	res := DocumentResult{DocumentID: doc.ID, Filename: doc.Filename}

	if err := ValidatePDF(fileBytes); err != nil {
		res.Error = err.Error()
		log.Printf("[case %s] document %s rejected: %v", doc.CaseID, doc.Filename, err)
		return res, nil
	}

	analysis := s.intel.Analyze(ctx, fileBytes)
	if !analysis.Success {
		res.Error = analysis.Error
		log.Printf("[case %s] OCR failed for %s: %s", doc.CaseID, doc.Filename, analysis.Error)
		return res, nil
	}

	pageCount := analysis.PageCount
	if pageCount == 0 {
		pageCount = localPageCount(fileBytes)
	}
	et := domain.ExtractedText{
		DocumentID: doc.ID,
		Text:       analysis.Content,
		Confidence: analysis.Confidence,
		PageCount:  pageCount,
	}
	if err := s.store.SaveExtractedText(ctx, &et); err != nil {
		return res, fmt.Errorf("persist extracted text for %s: %w", doc.Filename, err)
	}

	res.Success = true
	res.Confidence = analysis.Confidence
	res.PageCount = pageCount
	res.TextLength = len(analysis.Content)
	res.KeyFacts = ScanKeyFacts(analysis.Content)
	log.Printf("[case %s] OCR done for %s: %d pages, confidence %.4f", doc.CaseID, doc.Filename, pageCount, analysis.Confidence)
	return res, nil
}

// ProcessAllDocuments runs OCR over every document still missing extracted
// text. One document's failure never stops its siblings.
func (s *Service) ProcessAllDocuments(ctx context.Context, caseID string) (BatchResult, error) {
	if _, err := s.store.GetCase(ctx, caseID); err != nil {
		return BatchResult{}, err
	}

	docs, err := s.store.ListDocumentsWithoutText(ctx, caseID)
	if err != nil {
		return BatchResult{}, err
	}
	if len(docs) == 0 {
		return BatchResult{Status: domain.StageSkipped, Message: "No documents to process"}, nil
	}

	batch := BatchResult{DocumentsProcessed: len(docs)}
	for _, doc := range docs {
		fileBytes, readErr := os.ReadFile(doc.StoragePath)
		if readErr != nil {
			batch.Documents = append(batch.Documents, DocumentResult{
				DocumentID: doc.ID,
				Filename:   doc.Filename,
				Error:      fmt.Sprintf("read document: %v", readErr),
			})
			continue
		}
		res, err := s.ProcessDocument(ctx, doc, fileBytes)
		if err != nil {
			return batch, err
		}
		if res.Success {
			batch.DocumentsSucceeded++
		}
		batch.Documents = append(batch.Documents, res)
	}

	switch {
	case batch.DocumentsSucceeded == len(docs):
		batch.Status = domain.StageCompleted
	case batch.DocumentsSucceeded == 0:
		batch.Status = domain.StageFailed
		batch.Message = "OCR failed for all documents"
	default:
		batch.Status = domain.StagePartial
		batch.Message = fmt.Sprintf("OCR failed for %d of %d documents", len(docs)-batch.DocumentsSucceeded, len(docs))
	}
	return batch, nil
}
