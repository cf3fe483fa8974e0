package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Filter narrows the visible benches. A nil field accepts every bench.
// Rating thresholds are minimums; Fireplace must match exactly.
type Filter struct {
	MinAmbiente      *int  `json:"ambiente,omitempty"`
	MinView          *int  `json:"view,omitempty"`
	MinAccessibility *int  `json:"accessibility,omitempty"`
	Fireplace        *bool `json:"fireplace,omitempty"`
}

// IsZero reports whether no filter is set.
func (f Filter) IsZero() bool {
	return f.MinAmbiente == nil && f.MinView == nil && f.MinAccessibility == nil && f.Fireplace == nil
}

// Matches reports whether b passes every set filter.
func (f Filter) Matches(b Bench) bool {
	if f.MinAmbiente != nil && b.AmbienteRating < *f.MinAmbiente {
		return false
	}
	if f.MinView != nil && b.ViewRating < *f.MinView {
		return false
	}
	if f.MinAccessibility != nil && b.AccessibilityRating < *f.MinAccessibility {
		return false
	}
	if f.Fireplace != nil && b.Fireplace != *f.Fireplace {
		return false
	}
	return true
}

// Apply returns the benches that match, preserving order.
// A zero filter returns benches unchanged.
func (f Filter) Apply(benches []Bench) []Bench {
	if f.IsZero() {
		return benches
	}
	out := make([]Bench, 0, len(benches))
	for _, b := range benches {
		if f.Matches(b) {
			out = append(out, b)
		}
	}
	return out
}

// ParseFilter builds a Filter from raw query values. Empty strings leave a
// field unset.
func ParseFilter(ambiente, view, accessibility, fireplace string) (Filter, error) {
	var f Filter
	var err error
	if f.MinAmbiente, err = parseThreshold("ambiente", ambiente); err != nil {
		return Filter{}, err
	}
	if f.MinView, err = parseThreshold("view", view); err != nil {
		return Filter{}, err
	}
	if f.MinAccessibility, err = parseThreshold("accessibility", accessibility); err != nil {
		return Filter{}, err
	}
	switch strings.ToLower(strings.TrimSpace(fireplace)) {
	case "":
	case "true":
		v := true
		f.Fireplace = &v
	case "false":
		v := false
		f.Fireplace = &v
	default:
		return Filter{}, &ValidationError{Field: "fireplace", Message: fmt.Sprintf("must be true or false, got %q", fireplace)}
	}
	return f, nil
}

func parseThreshold(field, raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &ValidationError{Field: field, Message: fmt.Sprintf("not a number: %q", raw)}
	}
	if err := ValidateRating(field, n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Validate checks that every set threshold is a valid rating.
func (f Filter) Validate() error {
	for _, t := range []struct {
		field string
		v     *int
	}{
		{"ambiente", f.MinAmbiente},
		{"view", f.MinView},
		{"accessibility", f.MinAccessibility},
	} {
		if t.v == nil {
			continue
		}
		if err := ValidateRating(t.field, *t.v); err != nil {
			return err
		}
	}
	return nil
}
