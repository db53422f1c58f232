package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RepsKind tags which variant a RepsTarget holds.
type RepsKind string

const (
	RepsNone   RepsKind = ""
	RepsScalar RepsKind = "scalar"
	RepsRange  RepsKind = "range"
	RepsToken  RepsKind = "token"
)

var (
	// repsScalarRe matches "10".
	repsScalarRe = regexp.MustCompile(`^(\d+)$`)

	// repsRangeRe matches "8-12" and "8 - 12".
	repsRangeRe = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)
)

// RepsTarget is a planned reps prescription: a number, a numeric range, or a
// free-text token such as "max" or "30s". It is parsed once when the plan item
// enters the system and stored in this form.
type RepsTarget struct {
	Kind  RepsKind
	Min   int
	Max   int
	Token string
}

// ScalarReps returns a plain integer target.
func ScalarReps(n int) RepsTarget {
	return RepsTarget{Kind: RepsScalar, Min: n, Max: n}
}

// RangeReps returns an inclusive "lo-hi" target. The bounds are kept as given.
func RangeReps(lo, hi int) RepsTarget {
	return RepsTarget{Kind: RepsRange, Min: lo, Max: hi}
}

// TokenReps returns a non-numeric target.
func TokenReps(token string) RepsTarget {
	return RepsTarget{Kind: RepsToken, Token: token}
}

// ParseRepsTarget classifies a raw prescription string. Empty input yields
// the zero value (no target); anything that is neither an integer nor an
// integer range becomes a token.
func ParseRepsTarget(raw string) RepsTarget {
	s := strings.TrimSpace(raw)
	if s == "" {
		return RepsTarget{}
	}
	if m := repsScalarRe.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return ScalarReps(n)
		}
	}
	if m := repsRangeRe.FindStringSubmatch(s); m != nil {
		lo, errLo := strconv.Atoi(m[1])
		hi, errHi := strconv.Atoi(m[2])
		if errLo == nil && errHi == nil {
			return RangeReps(lo, hi)
		}
	}
	return TokenReps(s)
}

// IsZero reports whether no target was prescribed.
func (r RepsTarget) IsZero() bool {
	return r.Kind == RepsNone
}

// String renders the canonical text form ("10", "8-12", "max").
func (r RepsTarget) String() string {
	switch r.Kind {
	case RepsScalar:
		return strconv.Itoa(r.Min)
	case RepsRange:
		return fmt.Sprintf("%d-%d", r.Min, r.Max)
	case RepsToken:
		return r.Token
	default:
		return ""
	}
}

// MarshalJSON encodes scalars as numbers and everything else as strings.
func (r RepsTarget) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RepsNone:
		return []byte("null"), nil
	case RepsScalar:
		return []byte(strconv.Itoa(r.Min)), nil
	default:
		return json.Marshal(r.String())
	}
}

// UnmarshalJSON accepts a number, a string, or null.
func (r *RepsTarget) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*r = RepsTarget{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("decoding reps target: %w", err)
		}
		*r = ParseRepsTarget(text)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding reps target: %w", err)
	}
	*r = ParseRepsTarget(n.String())
	return nil
}
