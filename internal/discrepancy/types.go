// Package discrepancy extracts structured facts from every document and
// compares them across the case, persisting severity-tagged conflicts.
package discrepancy

import (
	"strings"

	"github.com/pkruk/accident-clerk/internal/coerce"
	"github.com/pkruk/accident-clerk/internal/domain"
)

// DocumentFacts is the per-document extraction target. Everything except the
// document name is optional; absent facts stay empty.
type DocumentFacts struct {
	DocumentName     coerce.Text       `json:"document_name"`
	AccidentDate     coerce.Text       `json:"accident_date,omitempty"`
	AccidentTime     coerce.Text       `json:"accident_time,omitempty"`
	AccidentLocation coerce.Text       `json:"accident_location,omitempty"`
	WorkplaceName    coerce.Text       `json:"workplace_name,omitempty"`
	VictimName       coerce.Text       `json:"victim_name,omitempty"`
	VictimPESEL      coerce.Text       `json:"victim_pesel,omitempty"`
	VictimAddress    coerce.Text       `json:"victim_address,omitempty"`
	VictimPosition   coerce.Text       `json:"victim_position,omitempty"`
	Witnesses        coerce.StringList `json:"witnesses,omitempty"`
	Circumstances    coerce.Text       `json:"circumstances,omitempty"`
	Causes           coerce.Text       `json:"causes,omitempty"`
	Injuries         coerce.Text       `json:"injuries,omitempty"`
	EmployerName     coerce.Text       `json:"employer_name,omitempty"`
	EmployerNIP      coerce.Text       `json:"employer_nip,omitempty"`
}

// Item is one conflict reported by the comparison call.
type Item struct {
	FieldName          coerce.Text       `json:"field_name"`
	Description        coerce.Text       `json:"description"`
	DocumentReferences coerce.StringList `json:"document_references"`
	Severity           coerce.Level      `json:"severity"`
	ConflictingValues  coerce.StringList `json:"conflicting_values"`
}

// Report is the comparison call's full output.
type Report struct {
	Discrepancies     []Item       `json:"discrepancies"`
	AnalysisSummary   coerce.Text  `json:"analysis_summary"`
	DocumentsAnalyzed coerce.Count `json:"documents_analyzed"`
}

var extractionOpts = coerce.Options{
	WrapperKeys: []string{"dane", "dokument", "ekstrakcja", "extraction", "wynik", "result"},
	Aliases: coerce.AliasTable{
		"document_name":     {"nazwa_dokumentu", "dokument", "nazwa"},
		"accident_date":     {"data_wypadku", "data_zdarzenia", "data"},
		"accident_time":     {"godzina_wypadku", "godzina_zdarzenia", "godzina", "czas_wypadku"},
		"accident_location": {"miejsce_wypadku", "miejsce_zdarzenia", "miejsce"},
		"workplace_name":    {"nazwa_zakladu_pracy", "nazwa_zakladu", "zaklad_pracy"},
		"victim_name":       {"imie_i_nazwisko_poszkodowanego", "imie_i_nazwisko", "poszkodowany"},
		"victim_pesel":      {"pesel_poszkodowanego", "pesel"},
		"victim_address":    {"adres_poszkodowanego", "adres"},
		"victim_position":   {"stanowisko_poszkodowanego", "stanowisko"},
		"witnesses":         {"swiadkowie", "lista_swiadkow"},
		"circumstances":     {"okolicznosci", "okolicznosci_wypadku", "przebieg_zdarzenia"},
		"causes":            {"przyczyny", "przyczyny_wypadku"},
		"injuries":          {"obrazenia", "urazy", "opis_urazu", "skutki"},
		"employer_name":     {"nazwa_pracodawcy", "pracodawca"},
		"employer_nip":      {"nip_pracodawcy", "nip"},
	},
}

var comparisonOpts = coerce.Options{
	WrapperKeys: []string{"analiza", "analysis", "wynik", "result", "porownanie"},
	Aliases: coerce.AliasTable{
		"discrepancies":       {"rozbieznosci", "sprzecznosci", "niezgodnosci"},
		"field_name":          {"pole", "nazwa_pola"},
		"description":         {"opis"},
		"document_references": {"dokumenty", "zrodla", "referencje"},
		"severity":            {"waga", "powaga", "istotnosc"},
		"conflicting_values":  {"sprzeczne_wartosci", "wartosci", "rozne_wartosci"},
		"analysis_summary":    {"podsumowanie", "podsumowanie_analizy"},
		"documents_analyzed":  {"liczba_dokumentow", "przeanalizowane_dokumenty"},
	},
}

// fieldLabels maps canonical field names to the Polish labels used in
// persisted descriptions.
var fieldLabels = map[string]string{
	"accident_date":     "Data wypadku",
	"accident_time":     "Godzina wypadku",
	"accident_location": "Miejsce wypadku",
	"workplace_name":    "Nazwa zakładu pracy",
	"victim_name":       "Imię i nazwisko poszkodowanego",
	"victim_pesel":      "PESEL poszkodowanego",
	"victim_address":    "Adres poszkodowanego",
	"victim_position":   "Stanowisko poszkodowanego",
	"witnesses":         "Świadkowie",
	"circumstances":     "Okoliczności wypadku",
	"causes":            "Przyczyny wypadku",
	"injuries":          "Obrażenia",
	"employer_name":     "Nazwa pracodawcy",
	"employer_nip":      "NIP pracodawcy",
}

func fieldLabel(name string) string {
	if l, ok := fieldLabels[coerce.NormalizeKey(name)]; ok {
		return l
	}
	return name
}

// normalizeSeverity folds Polish and English labels into the persisted enum
// and produces the uppercase tag for the description. Labels outside the
// vocabulary keep their verbatim uppercase tag and persist as "major".
func normalizeSeverity(label coerce.Level) (domain.Severity, string) {
	switch label {
	case "critical", "krytyczna", "krytyczny", "wysoka":
		return domain.SeverityCritical, "KRYTYCZNA"
	case "major", "istotna", "istotny", "srednia", "znaczaca":
		return domain.SeverityMajor, "ISTOTNA"
	case "minor", "drobna", "drobny", "niska":
		return domain.SeverityMinor, "DROBNA"
	case "":
		return domain.SeverityMajor, "ISTOTNA"
	default:
		return domain.SeverityMajor, strings.ToUpper(string(label))
	}
}

// formatDescription renders the persisted, human-readable conflict record.
func formatDescription(it Item, tag string) string {
	var b strings.Builder
	b.WriteString("[" + tag + "] " + string(it.Description))
	b.WriteString("\nPole: " + fieldLabel(string(it.FieldName)))
	if len(it.DocumentReferences) > 0 {
		b.WriteString("\nDokumenty: " + strings.Join(it.DocumentReferences, ", "))
	}
	if len(it.ConflictingValues) > 0 {
		b.WriteString("\nSprzeczne wartości: " + strings.Join(it.ConflictingValues, " ↔ "))
	}
	return b.String()
}
