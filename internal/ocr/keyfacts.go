package ocr

import "regexp"

var (
	dateDMY = regexp.MustCompile(`\b\d{2}[-./]\d{2}[-./]\d{4}\b`)
	dateYMD = regexp.MustCompile(`\b\d{4}[-./]\d{2}[-./]\d{2}\b`)
	pesel   = regexp.MustCompile(`\b\d{11}\b`)
	nip     = regexp.MustCompile(`\b\d{3}[-\s]?\d{3}[-\s]?\d{2}[-\s]?\d{2}\b`)
)

// KeyFacts is an advisory pre-scan of OCR text for identifiers the later
// stages care about. It gates nothing; it only feeds logs and stage results.
type KeyFacts struct {
	Dates  []string `json:"dates"`
	PESELs []string `json:"pesels"`
	NIPs   []string `json:"nips"`

	HasDate  bool `json:"has_date"`
	HasPESEL bool `json:"has_pesel"`
	HasNIP   bool `json:"has_nip"`
}

// ScanKeyFacts extracts date, PESEL and NIP candidates from raw text.
func ScanKeyFacts(text string) KeyFacts {
	kf := KeyFacts{
		Dates:  append(dateDMY.FindAllString(text, -1), dateYMD.FindAllString(text, -1)...),
		PESELs: pesel.FindAllString(text, -1),
		NIPs:   nip.FindAllString(text, -1),
	}
	kf.HasDate = len(kf.Dates) > 0
	kf.HasPESEL = len(kf.PESELs) > 0
	kf.HasNIP = len(kf.NIPs) > 0
	return kf
}
