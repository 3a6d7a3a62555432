package opinion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/pkruk/accident-clerk/internal/coerce"
	"github.com/pkruk/accident-clerk/internal/corpus"
	"github.com/pkruk/accident-clerk/internal/domain"
	"github.com/pkruk/accident-clerk/internal/llm"
	"github.com/pkruk/accident-clerk/internal/store"
)

const systemPrompt = `Jesteś ekspertem prawa pracy przygotowującym końcową opinię prawną w sprawie kwalifikacji zdarzenia jako wypadku przy pracy. Opinia ma być rzeczowa, oparta wyłącznie na dostarczonych materiałach i gotowa do przedstawienia pracodawcy. Odpowiadasz wyłącznie w formacie JSON.`

const promptTemplate = `Przygotuj końcową opinię prawną w sprawie wypadku.

%sDOKUMENTY:
%s
%s%s%s
Zwróć JSON o strukturze:
{
  "standpoint": {
    "legal_position": "work_accident | not_accident | clarification_required",
    "confidence_level": "wysoki | średni | niski",
    "summary": "zwięzłe streszczenie stanowiska po polsku"
  },
  "criteria": [
    {"criterion": "Nagłość", "status": true | false | null, "comment": "komentarz"}
  ],
  "issues": [
    {"issue": "opis problemu", "recommendation": "co zrobić", "impact": "wpływ na kwalifikację"}
  ],
  "conclusions": "wnioski końcowe po polsku",
  "confidence_level": "wysoki | średni | niski"
}`

// Result is the stage-level outcome.
type Result struct {
	Status             string `json:"status"`
	Message            string `json:"message,omitempty"`
	Standpoint         string `json:"standpoint,omitempty"`
	Summary            string `json:"summary,omitempty"`
	CriteriaAssessed   int    `json:"criteria_assessed"`
	IssuesIdentified   int    `json:"issues_identified"`
	ConfidenceLevel    string `json:"confidence_level,omitempty"`
	ConclusionsPreview string `json:"conclusions_preview,omitempty"`
}

type Service struct {
	store store.Store
	exec  *llm.Executor
}

func NewService(st store.Store, exec *llm.Executor) *Service {
	return &Service{store: st, exec: exec}
}

// Synthesize builds the final opinion and upserts it; reruns overwrite the
// content but keep the opinion row.
func (s *Service) Synthesize(ctx context.Context, caseID string) (Result, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return Result{}, err
	}
	texts, err := s.store.ListDocumentTexts(ctx, caseID)
	if err != nil {
		return Result{}, err
	}
	if len(texts) == 0 {
		return Result{Status: domain.StageSkipped, Message: "No OCR results available for analysis"}, nil
	}

	business := corpus.BusinessContext(c)
	if business != "" {
		business += "\n\n"
	}
	prompt := fmt.Sprintf(promptTemplate,
		business,
		corpus.Combined(texts),
		s.formalSection(ctx, caseID),
		s.discrepancySection(ctx, caseID),
		s.recommendationSection(ctx, caseID),
	)

	var structure Structure
	if _, err := s.exec.Run(ctx, "opinion", llm.Request{
		System:      systemPrompt,
		User:        prompt,
		Temperature: 0.15,
	}, func(raw string) error {
		return coerce.Decode(raw, structureOpts, &structure)
	}); err != nil {
		return Result{}, err
	}

	canonical := canonicalStandpoint(string(structure.Standpoint.LegalPosition))
	narrative := buildNarrative(structure, canonical)

	op := domain.Opinion{
		CaseID:            caseID,
		Summary:           string(structure.Standpoint.Summary),
		DetailedAnalysis:  narrative,
		OverallAssessment: canonical,
	}
	if err := s.store.UpsertOpinion(ctx, &op); err != nil {
		return Result{}, err
	}

	confidence := string(structure.Standpoint.ConfidenceLevel.Or(structure.ConfidenceLevel.Or("medium")))
	log.Printf("[case %s] opinion synthesized: %s", caseID, canonical)
	return Result{
		Status:             domain.StageCompleted,
		Standpoint:         canonical,
		Summary:            string(structure.Standpoint.Summary),
		CriteriaAssessed:   len(structure.Criteria),
		IssuesIdentified:   len(structure.Issues),
		ConfidenceLevel:    confidence,
		ConclusionsPreview: preview(string(structure.Conclusions), 200),
	}, nil
}

// formalSection renders the persisted legal verdict; its absence is
// tolerated and logged, not fatal.
func (s *Service) formalSection(ctx context.Context, caseID string) string {
	fa, err := s.store.GetFormalAnalysis(ctx, caseID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Printf("[case %s] formal analysis unavailable for opinion: %v", caseID, err)
		}
		return ""
	}
	var b strings.Builder
	b.WriteString("\nANALIZA FORMALNA:\n")
	b.WriteString("Nagłość:\n" + fa.SuddennessExplanation + "\n\n")
	b.WriteString("Przyczyna zewnętrzna:\n" + fa.ExternalCauseExplanation + "\n\n")
	b.WriteString("Uraz:\n" + fa.InjuryExplanation + "\n\n")
	b.WriteString("Związek z pracą:\n" + fa.WorkRelationExplanation + "\n")
	if fa.OverallConclusion != "" {
		b.WriteString("Wniosek: " + fa.OverallConclusion + "\n")
	}
	return b.String()
}

func (s *Service) discrepancySection(ctx context.Context, caseID string) string {
	items, err := s.store.ListDiscrepancies(ctx, caseID)
	if err != nil || len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nWYKRYTE SPRZECZNOŚCI:\n")
	for _, d := range items {
		b.WriteString(d.Description + "\n\n")
	}
	return b.String()
}

func (s *Service) recommendationSection(ctx context.Context, caseID string) string {
	recs, err := s.store.ListRecommendations(ctx, caseID)
	if err != nil || len(recs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nREKOMENDOWANE UZUPEŁNIENIA DOKUMENTACJI:\n")
	for _, r := range recs {
		b.WriteString("- " + r.DocumentType + ": " + r.Reason + "\n")
	}
	return b.String()
}
