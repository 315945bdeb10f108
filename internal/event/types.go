package event

import (
	"encoding/json"
	"sort"
)

type Type string

const (
	TypeDailyRoutine Type = "DAILY_ROUTINE"
	TypeCrisis       Type = "CRISIS"
	TypeOpportunity  Type = "OPPORTUNITY"
	TypeStory        Type = "STORY"
	TypeThreshold    Type = "THRESHOLD"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDailyRoutine, TypeCrisis, TypeOpportunity, TypeStory, TypeThreshold:
		return true
	}
	return false
}

type Severity string

const (
	SeverityTrivial  Severity = "TRIVIAL"
	SeverityNormal   Severity = "NORMAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) Valid() bool { return s.Rank() > 0 }

// Rank orders severities; 0 means unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityTrivial:
		return 1
	case SeverityNormal:
		return 2
	case SeverityMajor:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Weight maps a severity onto the [0,1] scale story patterns use.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityTrivial:
		return 0.1
	case SeverityNormal:
		return 0.4
	case SeverityMajor:
		return 0.7
	case SeverityCritical:
		return 1.0
	}
	return 0
}

// Text maps a language code ("ko", "en") to a string.
type Text map[string]string

// Get returns the string for lang, falling back to English, then Korean,
// then any language in key order.
func (t Text) Get(lang string) string {
	if s, ok := t[lang]; ok {
		return s
	}
	for _, fallback := range []string{"en", "ko"} {
		if s, ok := t[fallback]; ok {
			return s
		}
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return t[keys[0]]
}

func (t Text) Clone() Text {
	if t == nil {
		return nil
	}
	out := make(Text, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// UnmarshalJSON also accepts a bare string, read as Korean.
func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text{"ko": s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*t = m
	return nil
}
