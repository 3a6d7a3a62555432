// Package opinion synthesizes the terminal legal opinion for a case from the
// document corpus and every earlier stage's persisted output.
package opinion

import (
	"strings"

	"github.com/pkruk/accident-clerk/internal/coerce"
)

// Canonical standpoints stored in Opinion.OverallAssessment.
const (
	StandpointWorkAccident          = "work_accident"
	StandpointNotAccident           = "not_accident"
	StandpointClarificationRequired = "clarification_required"
)

type Standpoint struct {
	LegalPosition   coerce.Text  `json:"legal_position"`
	ConfidenceLevel coerce.Level `json:"confidence_level"`
	Summary         coerce.Text  `json:"summary"`
}

type CriterionAssessment struct {
	Criterion coerce.Text     `json:"criterion"`
	Status    coerce.TriState `json:"status"`
	Comment   coerce.Text     `json:"comment"`
}

type Issue struct {
	Issue          coerce.Text `json:"issue"`
	Recommendation coerce.Text `json:"recommendation"`
	Impact         coerce.Text `json:"impact"`
}

// Structure is the synthesis call's output.
type Structure struct {
	Standpoint      Standpoint            `json:"standpoint"`
	Criteria        []CriterionAssessment `json:"criteria"`
	Issues          []Issue               `json:"issues"`
	Conclusions     coerce.Text           `json:"conclusions"`
	ConfidenceLevel coerce.Level          `json:"confidence_level"`
}

var structureOpts = coerce.Options{
	WrapperKeys: []string{"opinia", "opinion", "wynik", "result"},
	Aliases: coerce.AliasTable{
		"standpoint":       {"stanowisko"},
		"legal_position":   {"pozycja_prawna", "stanowisko_prawne", "kwalifikacja"},
		"confidence_level": {"poziom_pewnosci", "pewnosc"},
		"summary":          {"podsumowanie", "streszczenie"},
		"criteria":         {"kryteria", "ocena_kryteriow"},
		"criterion":        {"kryterium", "nazwa"},
		"status":           {"ocena", "spelnione", "czy_spelnione"},
		"comment":          {"komentarz", "uzasadnienie"},
		"issues":           {"problemy", "kwestie", "zidentyfikowane_problemy"},
		"issue":            {"problem", "opis_problemu"},
		"recommendation":   {"rekomendacja", "zalecenie"},
		"impact":           {"wplyw"},
		"conclusions":      {"wnioski", "konkluzje"},
	},
}

// canonicalStandpoint folds the model's free-text legal position into the
// stored enum. Anything unrecognized is treated as unresolved.
func canonicalStandpoint(position string) string {
	switch coerce.NormalizeKey(position) {
	case StandpointWorkAccident, "wypadek_przy_pracy", "wypadek", "uznac_za_wypadek", "uznanie":
		return StandpointWorkAccident
	case StandpointNotAccident, "nie_wypadek", "brak_wypadku", "nie_jest_wypadkiem", "odmowa":
		return StandpointNotAccident
	case StandpointClarificationRequired, "wymagane_wyjasnienia", "do_wyjasnienia", "wyjasnienia":
		return StandpointClarificationRequired
	default:
		return StandpointClarificationRequired
	}
}

func standpointLabel(canonical string) string {
	switch canonical {
	case StandpointWorkAccident:
		return "Zdarzenie kwalifikuje się jako wypadek przy pracy"
	case StandpointNotAccident:
		return "Zdarzenie nie kwalifikuje się jako wypadek przy pracy"
	default:
		return "Kwalifikacja wymaga dodatkowych wyjaśnień"
	}
}

func criterionStatusLabel(t coerce.TriState) string {
	switch {
	case !t.Known:
		return "NIEOKREŚLONE"
	case t.Value:
		return "SPEŁNIONE"
	default:
		return "NIE SPEŁNIONE"
	}
}

// buildNarrative renders the persisted detailed analysis.
func buildNarrative(s Structure, canonical string) string {
	var b strings.Builder

	b.WriteString("=== STANOWISKO ===\n")
	b.WriteString(standpointLabel(canonical))
	if s.Standpoint.Summary != "" {
		b.WriteString("\n\n" + string(s.Standpoint.Summary))
	}

	if len(s.Criteria) > 0 {
		b.WriteString("\n\n=== OCENA KRYTERIÓW ===")
		for _, c := range s.Criteria {
			b.WriteString("\n- " + string(c.Criterion) + ": " + criterionStatusLabel(c.Status))
			if c.Comment != "" {
				b.WriteString(" — " + string(c.Comment))
			}
		}
	}

	if len(s.Issues) > 0 {
		b.WriteString("\n\n=== ZIDENTYFIKOWANE PROBLEMY ===")
		for _, is := range s.Issues {
			b.WriteString("\n• " + string(is.Issue))
			if is.Recommendation != "" {
				b.WriteString("\n  Rekomendacja: " + string(is.Recommendation))
			}
			if is.Impact != "" {
				b.WriteString("\n  Wpływ: " + string(is.Impact))
			}
		}
	}

	if s.Conclusions != "" {
		b.WriteString("\n\n=== WNIOSKI ===\n" + string(s.Conclusions))
	}
	return b.String()
}

// preview truncates conclusions for stage results.
func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
