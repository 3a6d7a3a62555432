package formal

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkruk/accident-clerk/internal/coerce"
	"github.com/pkruk/accident-clerk/internal/domain"
	"github.com/pkruk/accident-clerk/internal/llm"
	"github.com/pkruk/accident-clerk/internal/store"
)

type queueCaller struct {
	responses []string
	prompts   []string
}

func (q *queueCaller) GenerateJSON(_ context.Context, req llm.Request) (string, error) {
	q.prompts = append(q.prompts, req.User)
	i := len(q.prompts) - 1
	if i < len(q.responses) {
		return q.responses[i], nil
	}
	return "", nil
}

func newFixture(t *testing.T, withText bool) (*store.SQLiteStore, domain.Case) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "clerk.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	c := domain.Case{NIP: "1234567890", PKDCode: "62.01.Z", BusinessDescription: "IT services"}
	if err := st.CreateCase(ctx, &c); err != nil {
		t.Fatal(err)
	}
	if withText {
		d := domain.Document{CaseID: c.ID, Filename: "protokol.pdf", TypeName: "Protokół powypadkowy"}
		if err := st.AddDocument(ctx, &d); err != nil {
			t.Fatal(err)
		}
		et := domain.ExtractedText{DocumentID: d.ID, Text: "Pracownik upadł z drabiny i złamał rękę.", Confidence: 0.96, PageCount: 1}
		if err := st.SaveExtractedText(ctx, &et); err != nil {
			t.Fatal(err)
		}
	}
	return st, c
}

func TestEvaluateSkipsWithoutText(t *testing.T) {
	st, c := newFixture(t, false)
	q := &queueCaller{}
	svc := NewService(st, llm.NewExecutor(q))

	res, err := svc.Evaluate(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StageSkipped {
		t.Fatalf("status = %q", res.Status)
	}
	if len(q.prompts) != 0 {
		t.Fatal("no model call expected")
	}
}

func TestEvaluateAcceptsPolishWrappedResponse(t *testing.T) {
	st, c := newFixture(t, true)
	q := &queueCaller{responses: []string{`{"analiza": {
		"naglosc": {"spelnione": true, "pewnosc": "wysoka", "dowody": ["upadł z drabiny"], "uzasadnienie": "zdarzenie jednorazowe"},
		"przyczyna_zewnetrzna": {"spelnione": true, "uzasadnienie": "upadek z wysokości"},
		"uraz": {"spelnione": true, "uzasadnienie": "złamanie ręki"},
		"zwiazek_z_praca": {"spelnione": null, "brakujace_informacje": "brak zakresu obowiązków"},
		"kwalifikacja": null,
		"wniosek_koncowy": "Wymagane uzupełnienie dokumentacji",
		"zalecenia": ["dostarczyć zakres obowiązków"]
	}}`}}
	svc := NewService(st, llm.NewExecutor(q))

	res, err := svc.Evaluate(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StageCompleted {
		t.Fatalf("status = %q", res.Status)
	}
	if res.Criteria["suddenness"] != "TAK" || res.Criteria["work_connection"] != "BRAK DANYCH" {
		t.Fatalf("criteria = %v", res.Criteria)
	}
	if res.Qualifies != nil {
		t.Fatalf("qualifies = %v, want no data", *res.Qualifies)
	}

	fa, err := st.GetFormalAnalysis(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fa.IsSudden == nil || !*fa.IsSudden {
		t.Fatalf("is_sudden = %v", fa.IsSudden)
	}
	if fa.IsWorkRelated != nil {
		t.Fatalf("work relation must stay no-data, got %v", *fa.IsWorkRelated)
	}
	for _, want := range []string{"Ocena: TAK", "Pewność: wysoka", `1. "upadł z drabiny"`} {
		if !strings.Contains(fa.SuddennessExplanation, want) {
			t.Fatalf("suddenness explanation missing %q:\n%s", want, fa.SuddennessExplanation)
		}
	}
	if !strings.Contains(fa.WorkRelationExplanation, "Brakujące informacje") {
		t.Fatalf("work relation explanation:\n%s", fa.WorkRelationExplanation)
	}

	// The prompt carries the business context and document boundaries.
	prompt := q.prompts[0]
	for _, want := range []string{"NIP: 1234567890", "Kod PKD: 62.01.Z", "Opis działalności: IT services", "=== DOKUMENT 1: protokol.pdf ==="} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestEvaluateMissingCriterionGetsSentinel(t *testing.T) {
	st, c := newFixture(t, true)
	q := &queueCaller{responses: []string{`{
		"suddenness": {"is_fulfilled": true, "explanation": "ok"},
		"qualifies_as_work_accident": false,
		"overall_conclusion": "niekompletne dane"
	}`}}
	svc := NewService(st, llm.NewExecutor(q))

	if _, err := svc.Evaluate(context.Background(), c.ID); err != nil {
		t.Fatal(err)
	}
	fa, err := st.GetFormalAnalysis(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fa.HasInjury != nil {
		t.Fatalf("missing criterion must be no-data, got %v", *fa.HasInjury)
	}
	for _, want := range []string{"Ocena: BRAK DANYCH", "Brak danych do oceny kryterium", "Pewność: niska"} {
		if !strings.Contains(fa.InjuryExplanation, want) {
			t.Fatalf("sentinel explanation missing %q:\n%s", want, fa.InjuryExplanation)
		}
	}
}

func TestEvaluateRerunReplaces(t *testing.T) {
	st, c := newFixture(t, true)

	run := func(conclusion string) {
		t.Helper()
		q := &queueCaller{responses: []string{`{"suddenness": {"is_fulfilled": true}, "overall_conclusion": "` + conclusion + `"}`}}
		if _, err := NewService(st, llm.NewExecutor(q)).Evaluate(context.Background(), c.ID); err != nil {
			t.Fatal(err)
		}
	}
	run("pierwsza")
	run("druga")

	fa, err := st.GetFormalAnalysis(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fa.OverallConclusion != "druga" {
		t.Fatalf("conclusion = %q, want replaced value", fa.OverallConclusion)
	}
}

func TestVerdictAndConfidenceLabels(t *testing.T) {
	if got := verdictLabel(coerce.TriState{Known: true, Value: false}); got != "NIE" {
		t.Fatalf("got %q", got)
	}
	if got := confidenceLabel("high"); got != "wysoka" {
		t.Fatalf("got %q", got)
	}
	if got := confidenceLabel(""); got != "średnia" {
		t.Fatalf("default: got %q", got)
	}
}
