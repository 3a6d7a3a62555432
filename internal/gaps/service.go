package gaps

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

const systemPrompt = `Jesteś asystentem prawnym oceniającym kompletność dokumentacji wypadku przy pracy. Wskazujesz dokumenty, których brakuje do rzetelnej kwalifikacji zdarzenia, oraz oceniasz potrzebę opinii lekarskiej. Odpowiadasz wyłącznie w formacie JSON.`

const promptTemplate = `Oceń kompletność dokumentacji poniższej sprawy i wskaż braki.

%sDOKUMENTY W SPRAWIE:
%s
%s
Zwróć JSON o strukturze:
{
  "mandatory_documents": [
    {"document_type": "nazwa typu dokumentu", "reason": "dlaczego jest niezbędny", "priority": "high | medium | low", "context": "dodatkowy kontekst lub null"}
  ],
  "additional_documents": [
    {"document_type": "...", "reason": "...", "priority": "...", "context": "..."}
  ],
  "criterion_uncertainties": [
    {"criterion": "suddenness | external_cause | injury | work_connection", "is_uncertain": true, "reason": "czego brakuje"}
  ],
  "medical_opinion": {
    "requires_medical_opinion": true | false,
    "reasoning": "uzasadnienie",
    "urgency": "immediate | standard | optional",
    "injury_description": "opis urazu z dokumentów lub null"
  },
  "summary": "podsumowanie po polsku",
  "next_steps": ["kolejne kroki"]
}

Dokumenty obowiązkowe to te, bez których kwalifikacja prawna jest niemożliwa. Dokumenty dodatkowe wzmacniają ustalenia, ale ich brak nie blokuje kwalifikacji.`

// Result is the stage-level outcome.
type Result struct {
	Status            string                  `json:"status"`
	Message           string                  `json:"message,omitempty"`
	MandatoryCount    int                     `json:"mandatory_count"`
	AdditionalCount   int                     `json:"additional_count"`
	Recommendations   []domain.Recommendation `json:"recommendations,omitempty"`
	UncertainCriteria []CriterionDoubt        `json:"uncertain_criteria,omitempty"`
	MedicalOpinion    MedicalOpinion          `json:"medical_opinion"`
	Summary           string                  `json:"summary,omitempty"`
	NextSteps         []string                `json:"next_steps,omitempty"`
}

type Service struct {
	store store.Store
	exec  *llm.Executor
}

func NewService(st store.Store, exec *llm.Executor) *Service {
	return &Service{store: st, exec: exec}
}

// Advise analyzes documentation completeness and destructively replaces the
// persisted recommendations.
func (s *Service) Advise(ctx context.Context, caseID string) (Result, error) {
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
	prompt := fmt.Sprintf(promptTemplate, business, corpus.Combined(texts), formalContext(ctx, s.store, caseID))

	var advice Advice
	if _, err := s.exec.Run(ctx, "documentation_gaps", llm.Request{
		System:      systemPrompt,
		User:        prompt,
		Temperature: 0.1,
	}, func(raw string) error {
		return coerce.Decode(raw, adviceOpts, &advice)
	}); err != nil {
		return Result{}, err
	}

	recs := make([]domain.Recommendation, 0, len(advice.MandatoryDocuments)+len(advice.AdditionalDocuments))
	for _, it := range advice.MandatoryDocuments {
		recs = append(recs, buildRecommendation(it, true))
	}
	for _, it := range advice.AdditionalDocuments {
		recs = append(recs, buildRecommendation(it, false))
	}
	for _, r := range recs {
		if err := s.store.EnsureDocumentType(ctx, r.DocumentType, ""); err != nil {
			return Result{}, err
		}
	}
	if err := s.store.ReplaceRecommendations(ctx, caseID, recs); err != nil {
		return Result{}, err
	}

	log.Printf("[case %s] documentation gaps done: %d mandatory, %d additional", caseID, len(advice.MandatoryDocuments), len(advice.AdditionalDocuments))
	return Result{
		Status:            domain.StageCompleted,
		MandatoryCount:    len(advice.MandatoryDocuments),
		AdditionalCount:   len(advice.AdditionalDocuments),
		Recommendations:   recs,
		UncertainCriteria: uncertainOnly(advice.CriterionUncertainties),
		MedicalOpinion:    resolveMedicalOpinion(advice.MedicalOpinion),
		Summary:           string(advice.Summary),
		NextSteps:         advice.NextSteps,
	}, nil
}

func buildRecommendation(it DocumentItem, mandatory bool) domain.Recommendation {
	prefix := "[DODATKOWE]"
	if mandatory {
		prefix = "[OBOWIĄZKOWE]"
	}
	reason := prefix + " " + string(it.Reason)
	if it.Context != "" {
		reason += "\n\nKontekst: " + string(it.Context)
	}
	docType := strings.TrimSpace(string(it.DocumentType))
	if docType == "" {
		docType = "Inny dokument"
	}
	return domain.Recommendation{DocumentType: docType, Reason: reason}
}

// formalContext folds the earlier legal verdict into the prompt when one
// exists; its absence is tolerated.
func formalContext(ctx context.Context, st store.Store, caseID string) string {
	fa, err := st.GetFormalAnalysis(ctx, caseID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Printf("[case %s] formal analysis unavailable for gap advice: %v", caseID, err)
		}
		return ""
	}
	var b strings.Builder
	b.WriteString("\nWYNIK ANALIZY FORMALNEJ:\n")
	b.WriteString("Nagłość:\n" + fa.SuddennessExplanation + "\n\n")
	b.WriteString("Przyczyna zewnętrzna:\n" + fa.ExternalCauseExplanation + "\n\n")
	b.WriteString("Uraz:\n" + fa.InjuryExplanation + "\n\n")
	b.WriteString("Związek z pracą:\n" + fa.WorkRelationExplanation + "\n")
	return b.String()
}
