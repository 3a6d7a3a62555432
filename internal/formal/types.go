// Package formal evaluates the four statutory criteria of a workplace
// accident (nagłość, przyczyna zewnętrzna, uraz, związek z pracą) over the
// whole document corpus.
package formal

import (
	"fmt"
	"strings"

	"github.com/pkruk/accident-clerk/internal/coerce"
)

// CriterionAnalysis is the model's verdict on a single statutory criterion.
type CriterionAnalysis struct {
	IsFulfilled        coerce.TriState   `json:"is_fulfilled"`
	Confidence         coerce.Level      `json:"confidence"`
	Evidence           coerce.StringList `json:"evidence"`
	Explanation        coerce.Text       `json:"explanation"`
	MissingInformation coerce.Text       `json:"missing_information"`
}

// Analysis is the full formal-analysis output.
type Analysis struct {
	Suddenness        CriterionAnalysis `json:"suddenness"`
	ExternalCause     CriterionAnalysis `json:"external_cause"`
	Injury            CriterionAnalysis `json:"injury"`
	WorkConnection    CriterionAnalysis `json:"work_connection"`
	Qualifies         coerce.TriState   `json:"qualifies_as_work_accident"`
	OverallConclusion coerce.Text       `json:"overall_conclusion"`
	Recommendations   coerce.StringList `json:"recommendations"`
}

var analysisOpts = coerce.Options{
	WrapperKeys: []string{"analiza", "analysis", "analiza_formalna", "formal_analysis", "wynik", "result"},
	Aliases: coerce.AliasTable{
		"suddenness":                 {"nagłość", "naglosc", "kryterium_naglosci"},
		"external_cause":             {"przyczyna_zewnętrzna", "przyczyna_zewnetrzna", "kryterium_przyczyny_zewnetrznej"},
		"injury":                     {"uraz", "obrażenia", "skutek_w_postaci_urazu", "kryterium_urazu"},
		"work_connection":            {"związek_z_pracą", "zwiazek_z_praca", "kryterium_zwiazku_z_praca"},
		"is_fulfilled":               {"spełnione", "spelnione", "czy_spelnione", "fulfilled"},
		"confidence":                 {"pewność", "pewnosc", "poziom_pewnosci"},
		"evidence":                   {"dowody", "cytaty", "dowody_z_dokumentow"},
		"explanation":                {"uzasadnienie", "wyjaśnienie", "wyjasnienie"},
		"missing_information":        {"brakujące_informacje", "brakujace_informacje", "braki"},
		"qualifies_as_work_accident": {"kwalifikacja", "czy_wypadek_przy_pracy", "wypadek_przy_pracy"},
		"overall_conclusion":         {"wniosek_końcowy", "wniosek_koncowy", "podsumowanie", "konkluzja"},
		"recommendations":            {"zalecenia", "rekomendacje"},
	},
}

// withNoDataSentinel fills a criterion the model skipped entirely, so the
// persisted record always carries all four criteria.
func withNoDataSentinel(c CriterionAnalysis) CriterionAnalysis {
	if c.Explanation == "" && len(c.Evidence) == 0 && !c.IsFulfilled.Known {
		c.Explanation = "Brak danych do oceny kryterium"
		c.Confidence = "low"
	}
	return c
}

func verdictLabel(t coerce.TriState) string {
	switch {
	case !t.Known:
		return "BRAK DANYCH"
	case t.Value:
		return "TAK"
	default:
		return "NIE"
	}
}

func confidenceLabel(l coerce.Level) string {
	switch l.Or("medium") {
	case "high", "wysoka", "wysoki":
		return "wysoka"
	case "low", "niska", "niski":
		return "niska"
	default:
		return "średnia"
	}
}

// formatExplanation renders the persisted, human-readable criterion record.
func formatExplanation(c CriterionAnalysis) string {
	var b strings.Builder
	b.WriteString("Ocena: " + verdictLabel(c.IsFulfilled))
	b.WriteString("\nPewność: " + confidenceLabel(c.Confidence))
	if c.Explanation != "" {
		b.WriteString("\nUzasadnienie: " + string(c.Explanation))
	}
	if len(c.Evidence) > 0 {
		b.WriteString("\nDowody z dokumentów:")
		for i, ev := range c.Evidence {
			b.WriteString(fmt.Sprintf("\n%d. %q", i+1, ev))
		}
	}
	if c.MissingInformation != "" {
		b.WriteString("\nBrakujące informacje: " + string(c.MissingInformation))
	}
	return b.String()
}
