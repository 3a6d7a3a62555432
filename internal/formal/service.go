package formal

import (
	"context"
	"fmt"
	"log"

	"github.com/pkruk/accident-clerk/internal/coerce"
	"github.com/pkruk/accident-clerk/internal/corpus"
	"github.com/pkruk/accident-clerk/internal/domain"
	"github.com/pkruk/accident-clerk/internal/llm"
	"github.com/pkruk/accident-clerk/internal/store"
)

const systemPrompt = `Jesteś ekspertem prawa pracy specjalizującym się w kwalifikacji wypadków przy pracy zgodnie z art. 3 ustawy z dnia 30 października 2002 r. o ubezpieczeniu społecznym z tytułu wypadków przy pracy i chorób zawodowych.

Za wypadek przy pracy uważa się nagłe zdarzenie wywołane przyczyną zewnętrzną powodujące uraz lub śmierć, które nastąpiło w związku z pracą. Oceniasz CZTERY kryteria:

1. NAGŁOŚĆ — zdarzenie jednorazowe, ograniczone w czasie (nie dłużej niż dniówka robocza). Procesy długotrwałe (choroby zawodowe, przeciążenia kumulujące się miesiącami) NIE spełniają tego kryterium.
2. PRZYCZYNA ZEWNĘTRZNA — czynnik pochodzący spoza organizmu poszkodowanego (maszyna, narzędzie, upadek, działanie osoby trzeciej, warunki atmosferyczne). Wyłącznie wewnętrzna przyczyna (np. samoistny zawał bez czynnika zewnętrznego) NIE spełnia kryterium.
3. URAZ — uszkodzenie tkanek ciała lub narządów wskutek zdarzenia (albo śmierć). Sam stres lub dyskomfort bez uszkodzenia ciała NIE wystarcza.
4. ZWIĄZEK Z PRACĄ — zdarzenie nastąpiło podczas lub w związku z wykonywaniem zwykłych czynności albo poleceń przełożonych, czynności na rzecz pracodawcy, albo w drodze między siedzibą a miejscem wykonywania obowiązków.

Oceniasz wyłącznie na podstawie dostarczonych dokumentów. Gdy dokumenty nie pozwalają ocenić kryterium, zwróć null zamiast zgadywać. Odpowiadasz wyłącznie w formacie JSON.`

const promptTemplate = `Przeanalizuj dokumenty powypadkowe i oceń cztery kryteria wypadku przy pracy.

%sDOKUMENTY:
%s

Zwróć JSON o strukturze:
{
  "suddenness": {
    "is_fulfilled": true | false | null,
    "confidence": "high | medium | low",
    "evidence": ["dosłowne cytaty z dokumentów"],
    "explanation": "uzasadnienie po polsku",
    "missing_information": "czego brakuje do pełnej oceny lub null"
  },
  "external_cause": { ... },
  "injury": { ... },
  "work_connection": { ... },
  "qualifies_as_work_accident": true | false | null,
  "overall_conclusion": "wniosek końcowy po polsku",
  "recommendations": ["zalecenia dalszych kroków"]
}

Kwalifikacja całościowa: true tylko gdy wszystkie cztery kryteria są spełnione; false gdy którekolwiek jest jednoznacznie niespełnione; null gdy danych nie wystarcza.`

// Result is the stage-level outcome.
type Result struct {
	Status            string            `json:"status"`
	Message           string            `json:"message,omitempty"`
	Criteria          map[string]string `json:"criteria,omitempty"`
	Qualifies         *bool             `json:"qualifies_as_work_accident"`
	OverallConclusion string            `json:"overall_conclusion,omitempty"`
	Recommendations   []string          `json:"recommendations,omitempty"`
}

type Service struct {
	store store.Store
	exec  *llm.Executor
}

func NewService(st store.Store, exec *llm.Executor) *Service {
	return &Service{store: st, exec: exec}
}

// Evaluate runs the four-criterion legal analysis over the case corpus and
// destructively replaces the persisted verdict.
func (s *Service) Evaluate(ctx context.Context, caseID string) (Result, error) {
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
	prompt := fmt.Sprintf(promptTemplate, business, corpus.Combined(texts))

	var analysis Analysis
	if _, err := s.exec.Run(ctx, "formal_analysis", llm.Request{
		System:      systemPrompt,
		User:        prompt,
		Temperature: 0.1,
	}, func(raw string) error {
		return coerce.Decode(raw, analysisOpts, &analysis)
	}); err != nil {
		return Result{}, err
	}

	suddenness := withNoDataSentinel(analysis.Suddenness)
	externalCause := withNoDataSentinel(analysis.ExternalCause)
	injury := withNoDataSentinel(analysis.Injury)
	workConnection := withNoDataSentinel(analysis.WorkConnection)

	fa := domain.FormalAnalysis{
		CaseID:                   caseID,
		IsSudden:                 suddenness.IsFulfilled.Bool(),
		SuddennessExplanation:    formatExplanation(suddenness),
		HasExternalCause:         externalCause.IsFulfilled.Bool(),
		ExternalCauseExplanation: formatExplanation(externalCause),
		HasInjury:                injury.IsFulfilled.Bool(),
		InjuryExplanation:        formatExplanation(injury),
		IsWorkRelated:            workConnection.IsFulfilled.Bool(),
		WorkRelationExplanation:  formatExplanation(workConnection),
		QualifiesAsWorkAccident:  analysis.Qualifies.Bool(),
		OverallConclusion:        string(analysis.OverallConclusion),
	}
	if err := s.store.ReplaceFormalAnalysis(ctx, &fa); err != nil {
		return Result{}, err
	}

	log.Printf("[case %s] formal analysis done: qualifies=%s", caseID, verdictLabel(analysis.Qualifies))
	return Result{
		Status: domain.StageCompleted,
		Criteria: map[string]string{
			"suddenness":      verdictLabel(suddenness.IsFulfilled),
			"external_cause":  verdictLabel(externalCause.IsFulfilled),
			"injury":          verdictLabel(injury.IsFulfilled),
			"work_connection": verdictLabel(workConnection.IsFulfilled),
		},
		Qualifies:         analysis.Qualifies.Bool(),
		OverallConclusion: string(analysis.OverallConclusion),
		Recommendations:   analysis.Recommendations,
	}, nil
}
