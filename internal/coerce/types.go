package coerce

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Text is a string field tolerant of non-string JSON shapes: objects are
// reduced to a known text sub-key or flattened to "key: value" lines, lists
// are joined, scalars are stringified, null becomes "".
type Text string

var textSubKeys = []string{"tekst", "text", "opis", "description", "summary", "tresc", "value", "wartosc"}

func (t *Text) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*t = Text(anyToText(v))
	return nil
}

func (t Text) String() string { return string(t) }

func anyToText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return fmt.Sprintf("%t", x)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := anyToText(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		for _, sub := range textSubKeys {
			if inner, ok := x[NormalizeKey(sub)]; ok {
				if s := anyToText(inner); s != "" {
					return s
				}
			}
			if inner, ok := x[sub]; ok {
				if s := anyToText(inner); s != "" {
					return s
				}
			}
		}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, k+": "+anyToText(x[k]))
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprintf("%v", x)
	}
}

// StringList is a []string field tolerant of null, a bare scalar, a list of
// mixed scalars, or a list of objects (each flattened like Text).
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*l = nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s := anyToText(e); s != "" {
				out = append(out, s)
			}
		}
		*l = out
	default:
		if s := anyToText(x); s != "" {
			*l = []string{s}
		} else {
			*l = nil
		}
	}
	return nil
}

// TriState is a three-valued verdict: fulfilled, not fulfilled, or no data.
// It tolerates booleans, null and the usual Polish/English spellings.
type TriState struct {
	Known bool
	Value bool
}

func (t *TriState) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*t = TriState{}
	case bool:
		*t = TriState{Known: true, Value: x}
	case float64:
		*t = TriState{Known: true, Value: x != 0}
	case string:
		switch NormalizeKey(x) {
		case "true", "tak", "yes", "spelnione", "1":
			*t = TriState{Known: true, Value: true}
		case "false", "nie", "no", "niespelnione", "nie_spelnione", "0":
			*t = TriState{Known: true, Value: false}
		default:
			// "brak danych", "unknown", "null" and anything else.
			*t = TriState{}
		}
	default:
		*t = TriState{}
	}
	return nil
}

func (t TriState) MarshalJSON() ([]byte, error) {
	if !t.Known {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

// Bool returns nil for "no data".
func (t TriState) Bool() *bool {
	if !t.Known {
		return nil
	}
	v := t.Value
	return &v
}

// Level is a bounded free-text enum (confidence, priority, urgency).
// Values are normalized on decode; Or supplies the documented neutral default
// when the field was absent or empty.
type Level string

func (l *Level) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*l = Level(NormalizeKey(anyToText(v)))
	return nil
}

func (l Level) Or(def Level) Level {
	if l == "" {
		return def
	}
	return l
}

func (l Level) String() string { return string(l) }

// Count is an int tolerant of numeric strings.
type Count int

func (c *Count) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*c = Count(int(x))
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(x), "%d", &n); err == nil {
			*c = Count(n)
		} else {
			*c = 0
		}
	default:
		*c = 0
	}
	return nil
}
