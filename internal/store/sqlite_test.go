package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pkruk/accident-clerk/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "clerk.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedCase(t *testing.T, s *SQLiteStore) domain.Case {
	t.Helper()
	c := domain.Case{NIP: "1234567890", PKDCode: "62.01.Z", BusinessDescription: "IT services"}
	if err := s.CreateCase(context.Background(), &c); err != nil {
		t.Fatalf("create case: %v", err)
	}
	return c
}

func TestCaseLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := seedCase(t, s)
	got, err := s.GetCase(ctx, c.ID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if got.Status != domain.CasePending {
		t.Fatalf("new case status = %q, want pending", got.Status)
	}
	if got.NIP != "1234567890" {
		t.Fatalf("nip = %q", got.NIP)
	}

	if err := s.SetCaseStatus(ctx, c.ID, domain.CaseFailed, "ocr failed: boom"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ = s.GetCase(ctx, c.ID)
	if got.Status != domain.CaseFailed || got.ErrorMessage != "ocr failed: boom" {
		t.Fatalf("got %q / %q", got.Status, got.ErrorMessage)
	}

	if _, err := s.GetCase(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing case: got %v, want ErrNotFound", err)
	}
	if err := s.SetCaseStatus(ctx, "missing", domain.CaseCompleted, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("set status on missing case: got %v, want ErrNotFound", err)
	}
}

func TestDocumentsAndExtractedTexts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedCase(t, s)

	d1 := domain.Document{CaseID: c.ID, Filename: "zgloszenie.pdf", TypeName: "Zgłoszenie wypadku"}
	d2 := domain.Document{CaseID: c.ID, Filename: "protokol.pdf"}
	for _, d := range []*domain.Document{&d1, &d2} {
		if err := s.AddDocument(ctx, d); err != nil {
			t.Fatalf("add document: %v", err)
		}
	}

	pending, err := s.ListDocumentsWithoutText(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	et := domain.ExtractedText{DocumentID: d1.ID, Text: "treść", Confidence: 0.97, PageCount: 2}
	if err := s.SaveExtractedText(ctx, &et); err != nil {
		t.Fatalf("save text: %v", err)
	}

	pending, _ = s.ListDocumentsWithoutText(ctx, c.ID)
	if len(pending) != 1 || pending[0].ID != d2.ID {
		t.Fatalf("pending after OCR = %+v", pending)
	}

	// A rerun replaces the old row instead of violating the 1:1 constraint.
	rerun := domain.ExtractedText{DocumentID: d1.ID, Text: "treść v2", Confidence: 0.99, PageCount: 2}
	if err := s.SaveExtractedText(ctx, &rerun); err != nil {
		t.Fatalf("rerun save: %v", err)
	}
	texts, err := s.ListDocumentTexts(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(texts) != 1 || texts[0].Text != "treść v2" {
		t.Fatalf("texts = %+v", texts)
	}
	if texts[0].TypeName != "Zgłoszenie wypadku" {
		t.Fatalf("type name = %q", texts[0].TypeName)
	}
}

func TestReplaceDiscrepanciesIsDestructive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedCase(t, s)

	first := []domain.Discrepancy{
		{FieldName: "accident_date", Description: "[KRYTYCZNA] różne daty", Severity: domain.SeverityCritical,
			DocumentRefs: []string{"zgloszenie.pdf", "protokol.pdf"}, ConflictingValues: []string{"15.09.2023", "16.09.2023"}},
		{FieldName: "accident_location", Description: "[DROBNA] różne adresy", Severity: domain.SeverityMinor},
	}
	if err := s.ReplaceDiscrepancies(ctx, c.ID, first); err != nil {
		t.Fatal(err)
	}

	second := []domain.Discrepancy{
		{FieldName: "victim_name", Description: "[ISTOTNA] różne nazwiska", Severity: domain.SeverityMajor},
	}
	if err := s.ReplaceDiscrepancies(ctx, c.ID, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListDiscrepancies(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].FieldName != "victim_name" {
		t.Fatalf("rerun must replace, not append: %+v", got)
	}
}

func TestDiscrepancyRoundTripsRefsAndValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedCase(t, s)

	items := []domain.Discrepancy{{
		FieldName:         "accident_date",
		Description:       "[KRYTYCZNA] rozbieżne daty wypadku",
		Severity:          domain.SeverityCritical,
		DocumentRefs:      []string{"zgloszenie.pdf", "protokol.pdf"},
		ConflictingValues: []string{"15.09.2023", "16.09.2023"},
	}}
	if err := s.ReplaceDiscrepancies(ctx, c.ID, items); err != nil {
		t.Fatal(err)
	}
	got, err := s.ListDiscrepancies(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows", len(got))
	}
	if len(got[0].DocumentRefs) != 2 || got[0].ConflictingValues[1] != "16.09.2023" {
		t.Fatalf("round trip lost data: %+v", got[0])
	}
}

func TestFormalAnalysisReplaceAndTriState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedCase(t, s)

	yes := true
	fa := domain.FormalAnalysis{
		CaseID:                c.ID,
		IsSudden:              &yes,
		SuddennessExplanation: "Ocena: TAK",
		// HasExternalCause left nil: no data.
		OverallConclusion: "wstępna",
	}
	if err := s.ReplaceFormalAnalysis(ctx, &fa); err != nil {
		t.Fatal(err)
	}

	no := false
	fa2 := domain.FormalAnalysis{CaseID: c.ID, IsSudden: &no, OverallConclusion: "ostateczna"}
	if err := s.ReplaceFormalAnalysis(ctx, &fa2); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetFormalAnalysis(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.OverallConclusion != "ostateczna" {
		t.Fatalf("rerun must replace: %+v", got)
	}
	if got.IsSudden == nil || *got.IsSudden {
		t.Fatalf("is_sudden = %v, want false", got.IsSudden)
	}
	if got.HasExternalCause != nil {
		t.Fatalf("no-data criterion must stay nil, got %v", *got.HasExternalCause)
	}

	if _, err := s.GetFormalAnalysis(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRecommendationsReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedCase(t, s)

	if err := s.ReplaceRecommendations(ctx, c.ID, []domain.Recommendation{
		{DocumentType: "Opinia lekarska", Reason: "[OBOWIĄZKOWE] brak opisu urazu"},
		{DocumentType: "Zeznania świadków", Reason: "[DODATKOWE] potwierdzenie przebiegu"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceRecommendations(ctx, c.ID, []domain.Recommendation{
		{DocumentType: "Karta leczenia", Reason: "[OBOWIĄZKOWE] dokumentacja medyczna"},
	}); err != nil {
		t.Fatal(err)
	}
	got, err := s.ListRecommendations(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DocumentType != "Karta leczenia" {
		t.Fatalf("rerun must replace: %+v", got)
	}
}

func TestOpinionUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedCase(t, s)

	op := domain.Opinion{CaseID: c.ID, Summary: "wersja 1", OverallAssessment: "work_accident"}
	if err := s.UpsertOpinion(ctx, &op); err != nil {
		t.Fatal(err)
	}
	first, err := s.GetOpinion(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}

	op2 := domain.Opinion{CaseID: c.ID, Summary: "wersja 2", OverallAssessment: "clarification_required"}
	if err := s.UpsertOpinion(ctx, &op2); err != nil {
		t.Fatal(err)
	}
	second, err := s.GetOpinion(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if second.Summary != "wersja 2" {
		t.Fatalf("upsert did not update: %+v", second)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert must keep the row identity: %s vs %s", second.ID, first.ID)
	}
}
