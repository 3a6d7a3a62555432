package opinion

import (
	"context"
	"errors"
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

	c := domain.Case{}
	if err := st.CreateCase(ctx, &c); err != nil {
		t.Fatal(err)
	}
	if withText {
		d := domain.Document{CaseID: c.ID, Filename: "protokol.pdf"}
		if err := st.AddDocument(ctx, &d); err != nil {
			t.Fatal(err)
		}
		et := domain.ExtractedText{DocumentID: d.ID, Text: "Protokół powypadkowy", Confidence: 0.95, PageCount: 1}
		if err := st.SaveExtractedText(ctx, &et); err != nil {
			t.Fatal(err)
		}
	}
	return st, c
}

const fullResponse = `{"opinia": {
	"stanowisko": {
		"pozycja_prawna": "wypadek_przy_pracy",
		"poziom_pewnosci": "wysoki",
		"podsumowanie": "Zdarzenie spełnia wszystkie cztery kryteria ustawowe."
	},
	"kryteria": [
		{"kryterium": "Nagłość", "ocena": true, "komentarz": "zdarzenie jednorazowe"},
		{"kryterium": "Związek z pracą", "ocena": null, "komentarz": "wymaga potwierdzenia"}
	],
	"problemy": [
		{"problem": "Brak zakresu obowiązków", "rekomendacja": "uzyskać od pracodawcy", "wplyw": "opóźnia kwalifikację"}
	],
	"wnioski": "Rekomenduje się uznanie zdarzenia za wypadek przy pracy po uzupełnieniu dokumentacji."
}}`

func TestSynthesizeSkipsWithoutText(t *testing.T) {
	st, c := newFixture(t, false)
	svc := NewService(st, llm.NewExecutor(&queueCaller{}))

	res, err := svc.Synthesize(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StageSkipped {
		t.Fatalf("status = %q", res.Status)
	}
}

func TestSynthesizeBuildsNarrativeAndUpserts(t *testing.T) {
	st, c := newFixture(t, true)
	q := &queueCaller{responses: []string{fullResponse}}
	svc := NewService(st, llm.NewExecutor(q))

	res, err := svc.Synthesize(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StageCompleted || res.Standpoint != StandpointWorkAccident {
		t.Fatalf("result = %+v", res)
	}
	if res.CriteriaAssessed != 2 || res.IssuesIdentified != 1 {
		t.Fatalf("result = %+v", res)
	}

	op, err := st.GetOpinion(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if op.OverallAssessment != StandpointWorkAccident {
		t.Fatalf("assessment = %q", op.OverallAssessment)
	}
	for _, want := range []string{
		"=== STANOWISKO ===",
		"Zdarzenie kwalifikuje się jako wypadek przy pracy",
		"=== OCENA KRYTERIÓW ===",
		"- Nagłość: SPEŁNIONE",
		"- Związek z pracą: NIEOKREŚLONE",
		"=== ZIDENTYFIKOWANE PROBLEMY ===",
		"• Brak zakresu obowiązków",
		"Rekomendacja: uzyskać od pracodawcy",
		"Wpływ: opóźnia kwalifikację",
		"=== WNIOSKI ===",
	} {
		if !strings.Contains(op.DetailedAnalysis, want) {
			t.Fatalf("narrative missing %q:\n%s", want, op.DetailedAnalysis)
		}
	}

	// Rerun with a different verdict updates the same row.
	q2 := &queueCaller{responses: []string{`{"standpoint": {"legal_position": "clarification_required", "summary": "niejasne"}, "conclusions": "wymagane wyjaśnienia"}`}}
	if _, err := NewService(st, llm.NewExecutor(q2)).Synthesize(context.Background(), c.ID); err != nil {
		t.Fatal(err)
	}
	op2, err := st.GetOpinion(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if op2.ID != op.ID {
		t.Fatal("rerun must upsert the same opinion row")
	}
	if op2.OverallAssessment != StandpointClarificationRequired {
		t.Fatalf("assessment = %q", op2.OverallAssessment)
	}
}

func TestSynthesizePromptCarriesPriorStages(t *testing.T) {
	st, c := newFixture(t, true)
	ctx := context.Background()

	yes := true
	if err := st.ReplaceFormalAnalysis(ctx, &domain.FormalAnalysis{
		CaseID: c.ID, IsSudden: &yes, SuddennessExplanation: "Ocena: TAK", OverallConclusion: "spełnia kryteria",
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.ReplaceDiscrepancies(ctx, c.ID, []domain.Discrepancy{
		{FieldName: "accident_date", Description: "[KRYTYCZNA] różne daty", Severity: domain.SeverityCritical},
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.ReplaceRecommendations(ctx, c.ID, []domain.Recommendation{
		{DocumentType: "Opinia lekarska", Reason: "[OBOWIĄZKOWE] brak opisu urazu"},
	}); err != nil {
		t.Fatal(err)
	}

	q := &queueCaller{responses: []string{`{"standpoint": {"legal_position": "not_accident", "summary": "x"}}`}}
	if _, err := NewService(st, llm.NewExecutor(q)).Synthesize(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	prompt := q.prompts[0]
	for _, want := range []string{"ANALIZA FORMALNA", "WYKRYTE SPRZECZNOŚCI", "[KRYTYCZNA] różne daty", "REKOMENDOWANE UZUPEŁNIENIA", "Opinia lekarska"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestSynthesizeToleratesMissingFormalAnalysis(t *testing.T) {
	st, c := newFixture(t, true)
	q := &queueCaller{responses: []string{`{"standpoint": {"legal_position": "clarification_required", "summary": "brak analizy"}}`}}

	res, err := NewService(st, llm.NewExecutor(q)).Synthesize(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StageCompleted {
		t.Fatalf("status = %q", res.Status)
	}
	if strings.Contains(q.prompts[0], "ANALIZA FORMALNA") {
		t.Fatal("prompt must omit the formal section when none exists")
	}
}

// brokenFormalStore fails every formal-analysis read with a non-NotFound error.
type brokenFormalStore struct {
	store.Store
}

func (b *brokenFormalStore) GetFormalAnalysis(context.Context, string) (domain.FormalAnalysis, error) {
	return domain.FormalAnalysis{}, errors.New("disk read failed")
}

func TestSynthesizeToleratesFormalAnalysisReadFailure(t *testing.T) {
	st, c := newFixture(t, true)
	q := &queueCaller{responses: []string{`{"standpoint": {"legal_position": "clarification_required", "summary": "brak analizy"}}`}}

	res, err := NewService(&brokenFormalStore{Store: st}, llm.NewExecutor(q)).Synthesize(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StageCompleted {
		t.Fatalf("status = %q", res.Status)
	}
	if strings.Contains(q.prompts[0], "ANALIZA FORMALNA") {
		t.Fatal("prompt must omit the formal section when the read fails")
	}
}

func TestCanonicalStandpointFolding(t *testing.T) {
	cases := map[string]string{
		"wypadek_przy_pracy":     StandpointWorkAccident,
		"Wypadek przy pracy":     StandpointWorkAccident,
		"not_accident":           StandpointNotAccident,
		"brak wypadku":           StandpointNotAccident,
		"wymagane_wyjaśnienia":   StandpointClarificationRequired,
		"cokolwiek nieznanego":   StandpointClarificationRequired,
		"clarification_required": StandpointClarificationRequired,
	}
	for in, want := range cases {
		if got := canonicalStandpoint(in); got != want {
			t.Fatalf("canonicalStandpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConclusionsPreviewTruncation(t *testing.T) {
	long := strings.Repeat("ś", 250)
	got := preview(long, 200)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("missing ellipsis: %q", got[len(got)-10:])
	}
	if n := len([]rune(strings.TrimSuffix(got, "..."))); n != 200 {
		t.Fatalf("preview length = %d runes", n)
	}
	if preview("krótkie", 200) != "krótkie" {
		t.Fatal("short conclusions must not be truncated")
	}
}

func TestCriterionStatusLabels(t *testing.T) {
	if criterionStatusLabel(coerce.TriState{Known: true, Value: false}) != "NIE SPEŁNIONE" {
		t.Fatal("false status")
	}
	if criterionStatusLabel(coerce.TriState{}) != "NIEOKREŚLONE" {
		t.Fatal("unknown status")
	}
}
