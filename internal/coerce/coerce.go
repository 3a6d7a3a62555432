// Package coerce repairs near-miss JSON produced by generation models into
// typed stage structures. Every stage shares the same repair ladder: strip
// code fences, unwrap a known wrapper key, remap Polish/aliased keys onto
// canonical snake_case names, then decode through tolerant field types.
// A SchemaViolation is returned only when no repair applies.
package coerce

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaViolation reports model output that could not be repaired into the
// expected structure. Its message is fed back to the model on content retries.
type SchemaViolation struct {
	Reason string
	Err    error
}

func (e *SchemaViolation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema violation: %s: %v", e.Reason, e.Err)
	}
	return "schema violation: " + e.Reason
}

func (e *SchemaViolation) Unwrap() error {
	return e.Err
}

// AliasTable maps a canonical field name to the variant spellings a model may
// emit for it. Variants are matched after NormalizeKey, so diacritics and
// case never matter.
type AliasTable map[string][]string

func (t AliasTable) compile() map[string]string {
	m := make(map[string]string, len(t)*3)
	for canonical, variants := range t {
		m[NormalizeKey(canonical)] = canonical
		for _, v := range variants {
			m[NormalizeKey(v)] = canonical
		}
	}
	return m
}

// Options configures one stage's repair pass.
type Options struct {
	// WrapperKeys are top-level envelope keys ("analiza", "result") whose
	// object value replaces the envelope when present.
	WrapperKeys []string
	// Aliases remaps keys at every depth.
	Aliases AliasTable
}

var polishFold = strings.NewReplacer(
	"ą", "a", "ć", "c", "ę", "e", "ł", "l", "ń", "n",
	"ó", "o", "ś", "s", "ź", "z", "ż", "z",
)

// NormalizeKey lowercases, folds Polish diacritics and collapses separators
// to underscores. It is idempotent: NormalizeKey(NormalizeKey(k)) == NormalizeKey(k).
func NormalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = polishFold.Replace(k)
	k = strings.ReplaceAll(k, " ", "_")
	k = strings.ReplaceAll(k, "-", "_")
	return k
}

// StripFences removes a markdown code fence wrapped around a JSON payload.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Decode runs the full repair ladder over raw model output and unmarshals the
// repaired document into out.
func Decode(raw string, opts Options, out any) error {
	clean := StripFences(raw)

	var doc any
	if err := json.Unmarshal([]byte(clean), &doc); err != nil {
		// Models occasionally prepend prose; retry on the outermost object.
		start := strings.Index(clean, "{")
		end := strings.LastIndex(clean, "}")
		if start < 0 || end <= start {
			return &SchemaViolation{Reason: "response is not valid JSON", Err: err}
		}
		if err2 := json.Unmarshal([]byte(clean[start:end+1]), &doc); err2 != nil {
			return &SchemaViolation{Reason: "response is not valid JSON", Err: err}
		}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return &SchemaViolation{Reason: "top-level JSON value must be an object"}
	}

	obj = unwrap(obj, opts.WrapperKeys)
	repaired := remapValue(obj, opts.Aliases.compile())

	buf, err := json.Marshal(repaired)
	if err != nil {
		return &SchemaViolation{Reason: "could not re-encode repaired document", Err: err}
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return &SchemaViolation{Reason: "repaired document does not match the expected schema", Err: err}
	}
	return nil
}

// unwrap peels envelope keys until none match, so nested wrapping like
// {"result": {"analiza": {...}}} fully unwraps.
func unwrap(m map[string]any, wrappers []string) map[string]any {
	want := make(map[string]bool, len(wrappers))
	for _, w := range wrappers {
		want[NormalizeKey(w)] = true
	}
	for {
		peeled := false
		for k, v := range m {
			if !want[NormalizeKey(k)] {
				continue
			}
			if inner, ok := v.(map[string]any); ok {
				m = inner
				peeled = true
				break
			}
		}
		if !peeled {
			return m
		}
	}
}

func remapValue(v any, lookup map[string]string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			key := NormalizeKey(k)
			if canonical, ok := lookup[key]; ok {
				key = canonical
			}
			out[key] = remapValue(val, lookup)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = remapValue(val, lookup)
		}
		return out
	default:
		return v
	}
}
