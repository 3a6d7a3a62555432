// Package corpus builds the Polish prompt fragments shared by the analysis
// stages: the combined multi-document text block and the employer business
// context block.
package corpus

import (
	"fmt"
	"strings"

	"github.com/pkruk/accident-clerk/internal/domain"
)

// UnknownDocType labels documents whose type was never classified.
const UnknownDocType = "Nieznany typ"

// Combined renders every extracted document into one corpus with numbered
// boundaries, the shape the comparison and legal stages are prompted on.
func Combined(texts []domain.DocumentText) string {
	var b strings.Builder
	for i, dt := range texts {
		typeName := dt.TypeName
		if typeName == "" {
			typeName = UnknownDocType
		}
		fmt.Fprintf(&b, "=== DOKUMENT %d: %s ===\n", i+1, dt.Filename)
		fmt.Fprintf(&b, "Typ: %s\n\n", typeName)
		b.WriteString(dt.Text)
		fmt.Fprintf(&b, "\n--- Koniec dokumentu %d ---\n\n", i+1)
	}
	return strings.TrimRight(b.String(), "\n")
}

// BusinessContext renders the employer's registration data, omitting absent
// fields. Returns "" when the case carries no business data at all.
func BusinessContext(c domain.Case) string {
	var lines []string
	if c.NIP != "" {
		lines = append(lines, "NIP: "+c.NIP)
	}
	if c.REGON != "" {
		lines = append(lines, "REGON: "+c.REGON)
	}
	if c.PKDCode != "" {
		lines = append(lines, "Kod PKD: "+c.PKDCode)
	}
	if c.BusinessDescription != "" {
		lines = append(lines, "Opis działalności: "+c.BusinessDescription)
	}
	if len(lines) == 0 {
		return ""
	}
	return "KONTEKST DZIAŁALNOŚCI PRACODAWCY:\n" + strings.Join(lines, "\n")
}
