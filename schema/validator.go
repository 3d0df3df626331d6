// Package schema tracks the shape of JSON responses coming back through the
// fetch op and flags structural drift.
//
// A remote endpoint can change its response shape without notice: fields get
// renamed, a required field disappears, or a field's type changes (a number
// becomes a string). Any of these can silently corrupt a guest script that
// assumes the old shape.
//
// The package works by schema snapshot:
//
//  1. The first JSON body seen for a given host becomes the baseline:
//     Validator.Learn records each field's dot-separated path and its JSON
//     type.
//
//  2. Every later body is compared against that baseline with
//     Validator.Validate, which returns a Mismatch for each field that
//     disappeared, appeared, or changed type.
//
//  3. Callers surface the mismatches however they like — the fetch op
//     attaches them to its reply so the guest can see drift as it happens
//     instead of after something downstream breaks.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MismatchKind classifies the type of schema difference detected.
type MismatchKind string

const (
	// MismatchKindMissing indicates a field present in the baseline is absent
	// in the current response.
	MismatchKindMissing MismatchKind = "MISSING_FIELD"

	// MismatchKindAdded indicates a field not present in the baseline was
	// added to the current response.
	MismatchKindAdded MismatchKind = "ADDED_FIELD"

	// MismatchKindTypeChange indicates a field exists in both but its JSON
	// type changed (e.g. "number" → "string").
	MismatchKindTypeChange MismatchKind = "TYPE_CHANGE"
)

// Mismatch describes a single structural difference between the baseline
// schema and a current response.
type Mismatch struct {
	Kind MismatchKind

	// Field is the dot-separated path to the affected field.
	Field string

	// BaselineType is the JSON type recorded in the baseline ("string",
	// "number", "bool", "array", "object", "null"). Empty for MismatchKindAdded.
	BaselineType string

	// CurrentType is the JSON type in the current response. Empty for
	// MismatchKindMissing.
	CurrentType string
}

// String returns a human-readable description suitable for a log line.
func (m Mismatch) String() string {
	switch m.Kind {
	case MismatchKindMissing:
		return fmt.Sprintf("schema drift [%s] field %q missing (was %s)", m.Kind, m.Field, m.BaselineType)
	case MismatchKindAdded:
		return fmt.Sprintf("schema drift [%s] field %q added (type %s)", m.Kind, m.Field, m.CurrentType)
	case MismatchKindTypeChange:
		return fmt.Sprintf("schema drift [%s] field %q type changed %s → %s", m.Kind, m.Field, m.BaselineType, m.CurrentType)
	default:
		return fmt.Sprintf("schema drift [%s] field %q", m.Kind, m.Field)
	}
}

// fields maps dot-separated field paths to their JSON type names.
type fields map[string]string

// Validator learns the structure of a JSON response and detects subsequent
// changes. Safe for concurrent use.
type Validator struct {
	baseline fields
	mu       sync.RWMutex
}

// NewValidator creates a Validator with no baseline. The first call to Learn
// or Validate establishes the reference schema.
func NewValidator() *Validator {
	return &Validator{}
}

// Learn parses data as a JSON object and stores its field schema as the new
// baseline, replacing any previous one.
func (v *Validator) Learn(data []byte) error {
	s, err := extractFields(data)
	if err != nil {
		return fmt.Errorf("schema: learn: %w", err)
	}
	v.mu.Lock()
	v.baseline = s
	v.mu.Unlock()
	return nil
}

// HasBaseline reports whether a baseline schema has been established.
func (v *Validator) HasBaseline() bool {
	v.mu.RLock()
	ok := v.baseline != nil
	v.mu.RUnlock()
	return ok
}

// Validate compares data against the baseline schema and returns any
// mismatches. If no baseline has been set yet, it learns data as the
// baseline and returns no mismatches.
func (v *Validator) Validate(data []byte) ([]Mismatch, error) {
	current, err := extractFields(data)
	if err != nil {
		return nil, fmt.Errorf("schema: validate: %w", err)
	}

	v.mu.Lock()
	if v.baseline == nil {
		v.baseline = current
		v.mu.Unlock()
		return nil, nil
	}
	baseline := copyFields(v.baseline)
	v.mu.Unlock()

	return diffFields(baseline, current), nil
}

// BaselineFields returns a sorted list of dot-separated field paths recorded
// in the baseline.
func (v *Validator) BaselineFields() []string {
	v.mu.RLock()
	b := copyFields(v.baseline)
	v.mu.RUnlock()

	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Reset clears the baseline.
func (v *Validator) Reset() {
	v.mu.Lock()
	v.baseline = nil
	v.mu.Unlock()
}

func extractFields(data []byte) (fields, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", raw)
	}
	s := make(fields)
	flatten(obj, "", s)
	return s, nil
}

func flatten(obj map[string]interface{}, prefix string, s fields) {
	for k, v := range obj {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			s[path] = "object"
			flatten(val, path, s)
		case []interface{}:
			s[path] = "array"
		case string:
			s[path] = "string"
		case float64:
			s[path] = "number"
		case bool:
			s[path] = "bool"
		case nil:
			s[path] = "null"
		default:
			s[path] = "unknown"
		}
	}
}

func diffFields(baseline, current fields) []Mismatch {
	var mismatches []Mismatch

	for field, bType := range baseline {
		cType, ok := current[field]
		if !ok {
			mismatches = append(mismatches, Mismatch{Kind: MismatchKindMissing, Field: field, BaselineType: bType})
			continue
		}
		if cType != bType {
			mismatches = append(mismatches, Mismatch{Kind: MismatchKindTypeChange, Field: field, BaselineType: bType, CurrentType: cType})
		}
	}

	for field, cType := range current {
		if _, ok := baseline[field]; !ok {
			mismatches = append(mismatches, Mismatch{Kind: MismatchKindAdded, Field: field, CurrentType: cType})
		}
	}

	sort.Slice(mismatches, func(i, j int) bool {
		if mismatches[i].Field != mismatches[j].Field {
			return mismatches[i].Field < mismatches[j].Field
		}
		return string(mismatches[i].Kind) < string(mismatches[j].Kind)
	})
	return mismatches
}

func copyFields(s fields) fields {
	if s == nil {
		return nil
	}
	out := make(fields, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// FormatMismatches produces a multi-line log-ready string from a list of
// mismatches. Returns an empty string if mismatches is empty.
func FormatMismatches(mismatches []Mismatch) string {
	if len(mismatches) == 0 {
		return ""
	}
	lines := make([]string, len(mismatches))
	for i, m := range mismatches {
		lines[i] = m.String()
	}
	return strings.Join(lines, "\n")
}

// Registry keys a Validator per host so fetch can track drift independently
// for every remote the guest talks to.
type Registry struct {
	mu         sync.Mutex
	validators map[string]*Validator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]*Validator)}
}

// For returns the Validator for host, creating one on first use.
func (r *Registry) For(host string) *Validator {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[host]
	if !ok {
		v = NewValidator()
		r.validators[host] = v
	}
	return v
}
