// Package gaps advises which documents are still missing from a case:
// mandatory ones blocking qualification, useful additional ones, and whether
// a medical opinion is needed.
package gaps

import "github.com/pkruk/accident-clerk/internal/coerce"

// DocumentItem is one recommended document.
type DocumentItem struct {
	DocumentType coerce.Text  `json:"document_type"`
	Reason       coerce.Text  `json:"reason"`
	Priority     coerce.Level `json:"priority"`
	Context      coerce.Text  `json:"context"`
}

// CriterionDoubt marks a statutory criterion the formal analysis could not
// settle, plus what would settle it.
type CriterionDoubt struct {
	Criterion   coerce.Text     `json:"criterion"`
	IsUncertain coerce.TriState `json:"is_uncertain"`
	Reason      coerce.Text     `json:"reason"`
}

// MedicalOpinion is the advisor's verdict on whether an occupational-medicine
// opinion is required.
type MedicalOpinion struct {
	Required          bool   `json:"requires_medical_opinion"`
	Reasoning         string `json:"reasoning"`
	Urgency           string `json:"urgency"`
	InjuryDescription string `json:"injury_description,omitempty"`
}

// rawMedicalOpinion is the tolerant decode target; nil means the model
// omitted the block entirely.
type rawMedicalOpinion struct {
	Required          coerce.TriState `json:"requires_medical_opinion"`
	Reasoning         coerce.Text     `json:"reasoning"`
	Reason            coerce.Text     `json:"reason"` // "uzasadnienie" remaps here
	Urgency           coerce.Level    `json:"urgency"`
	InjuryDescription coerce.Text     `json:"injury_description"`
}

// Advice is the full advisor output.
type Advice struct {
	MandatoryDocuments     []DocumentItem     `json:"mandatory_documents"`
	AdditionalDocuments    []DocumentItem     `json:"additional_documents"`
	CriterionUncertainties []CriterionDoubt   `json:"criterion_uncertainties"`
	MedicalOpinion         *rawMedicalOpinion `json:"medical_opinion"`
	Summary                coerce.Text        `json:"summary"`
	NextSteps              coerce.StringList  `json:"next_steps"`
}

var adviceOpts = coerce.Options{
	WrapperKeys: []string{"rekomendacje", "recommendations", "analiza", "wynik", "result"},
	Aliases: coerce.AliasTable{
		"mandatory_documents":      {"dokumenty_obowiazkowe", "obowiazkowe", "wymagane_dokumenty"},
		"additional_documents":     {"dokumenty_dodatkowe", "dodatkowe", "zalecane_dokumenty"},
		"criterion_uncertainties":  {"watpliwosci", "niepewnosci", "watpliwosci_kryteriow"},
		"medical_opinion":          {"opinia_medyczna", "opinia_lekarska"},
		"summary":                  {"podsumowanie", "wnioski"},
		"next_steps":               {"nastepne_kroki", "kroki", "zalecenia"},
		"document_type":            {"typ_dokumentu", "typ", "dokument", "rodzaj_dokumentu"},
		"reason":                   {"uzasadnienie", "powod", "przyczyna"},
		"priority":                 {"priorytet"},
		"context":                  {"kontekst"},
		"requires_medical_opinion": {"wymagana", "konieczna", "wymaga_opinii"},
		"reasoning":                {"uzasadnienie_opinii"},
		"urgency":                  {"pilnosc"},
		"injury_description":       {"opis_urazu"},
		"criterion":                {"kryterium"},
		"is_uncertain":             {"niepewne", "watpliwe"},
	},
}

// resolveMedicalOpinion applies the documented defaults: an omitted block
// means no opinion is required and the urgency is "optional"; a present
// block without urgency defaults to "standard".
func resolveMedicalOpinion(raw *rawMedicalOpinion) MedicalOpinion {
	if raw == nil {
		return MedicalOpinion{Required: false, Reasoning: "Brak danych", Urgency: "optional"}
	}
	reasoning := string(raw.Reasoning)
	if reasoning == "" {
		reasoning = string(raw.Reason)
	}
	if reasoning == "" {
		reasoning = "Brak danych"
	}
	required := raw.Required.Known && raw.Required.Value
	return MedicalOpinion{
		Required:          required,
		Reasoning:         reasoning,
		Urgency:           canonicalUrgency(raw.Urgency),
		InjuryDescription: string(raw.InjuryDescription),
	}
}

// canonicalUrgency folds synonym spellings onto the bounded
// immediate/standard/optional enum; anything unrecognized becomes "standard".
func canonicalUrgency(l coerce.Level) string {
	switch l.Or("standard") {
	case "immediate", "urgent", "pilna", "pilne", "natychmiastowa", "niezwloczna":
		return "immediate"
	case "optional", "opcjonalna", "opcjonalne":
		return "optional"
	default:
		return "standard"
	}
}

// uncertainOnly keeps the doubts the model actually flagged.
func uncertainOnly(doubts []CriterionDoubt) []CriterionDoubt {
	var out []CriterionDoubt
	for _, d := range doubts {
		if d.IsUncertain.Known && d.IsUncertain.Value {
			out = append(out, d)
		}
	}
	return out
}
