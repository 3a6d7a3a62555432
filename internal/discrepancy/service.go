package discrepancy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/pkruk/accident-clerk/internal/coerce"
	"github.com/pkruk/accident-clerk/internal/corpus"
	"github.com/pkruk/accident-clerk/internal/domain"
	"github.com/pkruk/accident-clerk/internal/llm"
	"github.com/pkruk/accident-clerk/internal/store"
)

const extractionSystemPrompt = `Jesteś asystentem prawnym specjalizującym się w analizie dokumentów powypadkowych. Wydobywasz fakty z pojedynczego dokumentu. Odpowiadasz wyłącznie w formacie JSON.`

const extractionPromptTemplate = `Wydobądź kluczowe fakty z poniższego dokumentu dotyczącego wypadku przy pracy.

DOKUMENT: %s
TYP: %s

TREŚĆ:
%s

Zwróć JSON o strukturze:
{
  "document_name": "nazwa dokumentu",
  "accident_date": "data wypadku lub null",
  "accident_time": "godzina wypadku lub null",
  "accident_location": "miejsce wypadku lub null",
  "workplace_name": "nazwa zakładu pracy lub null",
  "victim_name": "imię i nazwisko poszkodowanego lub null",
  "victim_pesel": "PESEL lub null",
  "victim_address": "adres lub null",
  "victim_position": "stanowisko lub null",
  "witnesses": ["lista świadków"],
  "circumstances": "okoliczności wypadku lub null",
  "causes": "przyczyny wypadku lub null",
  "injuries": "opis obrażeń lub null",
  "employer_name": "nazwa pracodawcy lub null",
  "employer_nip": "NIP pracodawcy lub null"
}

Wpisuj wartości dokładnie tak, jak występują w dokumencie. Jeśli informacji brak, użyj null.`

const comparisonSystemPrompt = `Jesteś asystentem prawnym porównującym dokumenty powypadkowe. Wskazujesz sprzeczności między dokumentami dotyczącymi tego samego wypadku. Odpowiadasz wyłącznie w formacie JSON.`

const comparisonPromptTemplate = `Porównaj fakty wydobyte z dokumentów dotyczących jednego wypadku przy pracy i wskaż sprzeczności.

FAKTY Z DOKUMENTÓW:
%s

Porównuj wyłącznie pola, które występują w co najmniej dwóch dokumentach. Różnice w formacie zapisu (np. "15.09.2023" i "2023-09-15") NIE są sprzecznością. Sprzecznością jest różna treść: inna data, inne miejsce, inne nazwisko, sprzeczny opis przebiegu zdarzenia.

Zwróć JSON o strukturze:
{
  "discrepancies": [
    {
      "field_name": "nazwa pola (np. accident_date)",
      "description": "opis sprzeczności po polsku",
      "document_references": ["nazwy dokumentów"],
      "severity": "critical | major | minor",
      "conflicting_values": ["wartość z dokumentu 1", "wartość z dokumentu 2"]
    }
  ],
  "analysis_summary": "krótkie podsumowanie analizy po polsku",
  "documents_analyzed": %d
}

Wagi: critical — sprzeczność podważająca kwalifikację wypadku (data, miejsce, osoba poszkodowanego); major — istotna różnica w przebiegu lub skutkach; minor — drobna rozbieżność opisowa.`

// Result is the stage-level outcome.
type Result struct {
	Status             string               `json:"status"`
	Message            string               `json:"message,omitempty"`
	DiscrepanciesFound int                  `json:"discrepancies_found"`
	DocumentsAnalyzed  int                  `json:"documents_analyzed"`
	AnalysisSummary    string               `json:"analysis_summary,omitempty"`
	Discrepancies      []domain.Discrepancy `json:"discrepancies,omitempty"`
}

type Service struct {
	store store.Store
	exec  *llm.Executor
}

func NewService(st store.Store, exec *llm.Executor) *Service {
	return &Service{store: st, exec: exec}
}

// ExtractFacts pulls structured facts from one document. Any failure
// degrades to name-only facts so the comparison can still run.
func (s *Service) ExtractFacts(ctx context.Context, dt domain.DocumentText) DocumentFacts {
	prompt := fmt.Sprintf(extractionPromptTemplate, dt.Filename, typeOrUnknown(dt.TypeName), dt.Text)

	var facts DocumentFacts
	_, err := s.exec.Run(ctx, "fact_extraction", llm.Request{
		System:      extractionSystemPrompt,
		User:        prompt,
		Temperature: 0.1,
	}, func(raw string) error {
		return decodeFacts(raw, &facts)
	})
	if err != nil {
		log.Printf("fact extraction failed for %s, degrading to name-only: %v", dt.Filename, err)
		return DocumentFacts{DocumentName: coerce.Text(dt.Filename)}
	}
	if facts.DocumentName == "" {
		facts.DocumentName = coerce.Text(dt.Filename)
	}
	return facts
}

// Detect runs the full stage for one case: extract facts per document,
// compare them, persist the conflicts destructively.
func (s *Service) Detect(ctx context.Context, caseID string) (Result, error) {
	if _, err := s.store.GetCase(ctx, caseID); err != nil {
		return Result{}, err
	}
	texts, err := s.store.ListDocumentTexts(ctx, caseID)
	if err != nil {
		return Result{}, err
	}
	if len(texts) == 0 {
		return Result{Status: domain.StageSkipped, Message: "No OCR results available for analysis"}, nil
	}
	if len(texts) < 2 {
		return Result{Status: domain.StageSkipped, Message: "At least 2 documents required for discrepancy analysis"}, nil
	}

	facts := make([]DocumentFacts, 0, len(texts))
	for _, dt := range texts {
		facts = append(facts, s.ExtractFacts(ctx, dt))
	}

	factsJSON, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("encode extracted facts: %w", err)
	}

	var report Report
	if _, err := s.exec.Run(ctx, "discrepancy_analysis", llm.Request{
		System:      comparisonSystemPrompt,
		User:        fmt.Sprintf(comparisonPromptTemplate, factsJSON, len(texts)),
		Temperature: 0.1,
	}, func(raw string) error {
		return decodeReport(raw, &report)
	}); err != nil {
		// Extraction degrades, comparison does not: without it the stage
		// has nothing trustworthy to persist.
		return Result{}, err
	}

	rows := make([]domain.Discrepancy, 0, len(report.Discrepancies))
	for _, it := range report.Discrepancies {
		sev, tag := normalizeSeverity(it.Severity)
		rows = append(rows, domain.Discrepancy{
			FieldName:         coerce.NormalizeKey(string(it.FieldName)),
			Description:       formatDescription(it, tag),
			Severity:          sev,
			DocumentRefs:      it.DocumentReferences,
			ConflictingValues: it.ConflictingValues,
		})
	}
	if err := s.store.ReplaceDiscrepancies(ctx, caseID, rows); err != nil {
		return Result{}, err
	}

	log.Printf("[case %s] discrepancy analysis done: %d conflicts across %d documents", caseID, len(rows), len(texts))
	return Result{
		Status:             domain.StageCompleted,
		DiscrepanciesFound: len(rows),
		DocumentsAnalyzed:  len(texts),
		AnalysisSummary:    string(report.AnalysisSummary),
		Discrepancies:      rows,
	}, nil
}

func decodeFacts(raw string, out *DocumentFacts) error {
	return coerce.Decode(raw, extractionOpts, out)
}

func decodeReport(raw string, out *Report) error {
	return coerce.Decode(raw, comparisonOpts, out)
}

func typeOrUnknown(t string) string {
	if t == "" {
		return corpus.UnknownDocType
	}
	return t
}
