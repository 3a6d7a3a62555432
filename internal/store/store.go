// Package store persists cases and every per-stage artifact. Stage outputs
// that support reruns are replaced destructively; the opinion is upserted.
package store

import (
	"context"

	"github.com/pkruk/accident-clerk/internal/domain"
)

// Store is the persistence contract the pipeline stages run against.
type Store interface {
	CreateCase(ctx context.Context, c *domain.Case) error
	GetCase(ctx context.Context, id string) (domain.Case, error)
	SetCaseStatus(ctx context.Context, id string, status domain.CaseStatus, errMsg string) error

	EnsureDocumentType(ctx context.Context, name, description string) error
	AddDocument(ctx context.Context, d *domain.Document) error
	ListDocuments(ctx context.Context, caseID string) ([]domain.Document, error)
	// ListDocumentsWithoutText returns the documents still awaiting OCR.
	ListDocumentsWithoutText(ctx context.Context, caseID string) ([]domain.Document, error)
	// SaveExtractedText replaces any prior OCR result for the same document.
	SaveExtractedText(ctx context.Context, et *domain.ExtractedText) error
	ListDocumentTexts(ctx context.Context, caseID string) ([]domain.DocumentText, error)

	ReplaceDiscrepancies(ctx context.Context, caseID string, items []domain.Discrepancy) error
	ListDiscrepancies(ctx context.Context, caseID string) ([]domain.Discrepancy, error)

	ReplaceFormalAnalysis(ctx context.Context, fa *domain.FormalAnalysis) error
	GetFormalAnalysis(ctx context.Context, caseID string) (domain.FormalAnalysis, error)

	ReplaceRecommendations(ctx context.Context, caseID string, recs []domain.Recommendation) error
	ListRecommendations(ctx context.Context, caseID string) ([]domain.Recommendation, error)

	UpsertOpinion(ctx context.Context, op *domain.Opinion) error
	GetOpinion(ctx context.Context, caseID string) (domain.Opinion, error)

	Close() error
}
