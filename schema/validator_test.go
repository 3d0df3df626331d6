package schema_test

import (
	"strings"
	"testing"

	"github.com/arfaz/opbus/schema"
)

var baseline = []byte(`{
	"status": "ok",
	"count": 42,
	"items": [1, 2, 3],
	"meta": {
		"page": 1,
		"total": 100
	},
	"active": true,
	"note": null
}`)

func TestLearnThenHasBaseline(t *testing.T) {
	v := schema.NewValidator()
	if v.HasBaseline() {
		t.Error("expected no baseline before Learn")
	}
	if err := v.Learn(baseline); err != nil {
		t.Fatalf("Learn error: %v", err)
	}
	if !v.HasBaseline() {
		t.Error("expected baseline after Learn")
	}
}

func TestLearnInvalidJSON(t *testing.T) {
	v := schema.NewValidator()
	if err := v.Learn([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLearnNonObject(t *testing.T) {
	v := schema.NewValidator()
	if err := v.Learn([]byte(`[1,2,3]`)); err == nil {
		t.Error("expected error for JSON array (non-object)")
	}
}

func TestValidateNoMismatches(t *testing.T) {
	v := schema.NewValidator()
	if err := v.Learn(baseline); err != nil {
		t.Fatal(err)
	}
	mismatches, err := v.Validate(baseline)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if len(mismatches) != 0 {
		t.Errorf("expected 0 mismatches, got %d: %v", len(mismatches), mismatches)
	}
}

func TestValidateMissingField(t *testing.T) {
	v := schema.NewValidator()
	if err := v.Learn(baseline); err != nil {
		t.Fatal(err)
	}

	current := []byte(`{
		"count": 42,
		"items": [1, 2, 3],
		"meta": {"page": 1, "total": 100},
		"active": true,
		"note": null
	}`)
	mismatches, err := v.Validate(current)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	found := false
	for _, m := range mismatches {
		if m.Field == "status" && m.Kind == schema.MismatchKindMissing {
			found = true
		}
	}
	if !found {
		t.Errorf("expected MISSING_FIELD for 'status', got: %v", mismatches)
	}
}

func TestValidateAddedField(t *testing.T) {
	v := schema.NewValidator()
	if err := v.Learn(baseline); err != nil {
		t.Fatal(err)
	}

	current := []byte(`{
		"status": "ok",
		"count": 42,
		"items": [1, 2, 3],
		"meta": {"page": 1, "total": 100},
		"active": true,
		"note": null,
		"new_field": "surprise"
	}`)
	mismatches, err := v.Validate(current)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	found := false
	for _, m := range mismatches {
		if m.Field == "new_field" && m.Kind == schema.MismatchKindAdded {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ADDED_FIELD for 'new_field', got: %v", mismatches)
	}
}

func TestValidateTypeChange(t *testing.T) {
	v := schema.NewValidator()
	if err := v.Learn(baseline); err != nil {
		t.Fatal(err)
	}

	current := []byte(`{
		"status": "ok",
		"count": "forty-two",
		"items": [1, 2, 3],
		"meta": {"page": 1, "total": 100},
		"active": true,
		"note": null
	}`)
	mismatches, err := v.Validate(current)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	found := false
	for _, m := range mismatches {
		if m.Field == "count" && m.Kind == schema.MismatchKindTypeChange {
			if m.BaselineType != "number" || m.CurrentType != "string" {
				t.Errorf("TypeChange baseline=%q current=%q, want number→string", m.BaselineType, m.CurrentType)
			}
			found = true
		}
	}
	if !found {
		t.Errorf("expected TYPE_CHANGE for 'count', got: %v", mismatches)
	}
}

func TestValidateNestedField(t *testing.T) {
	v := schema.NewValidator()
	if err := v.Learn(baseline); err != nil {
		t.Fatal(err)
	}

	current := []byte(`{
		"status": "ok",
		"count": 42,
		"items": [1, 2, 3],
		"meta": {"page": 1},
		"active": true,
		"note": null
	}`)
	mismatches, err := v.Validate(current)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	found := false
	for _, m := range mismatches {
		if m.Field == "meta.total" && m.Kind == schema.MismatchKindMissing {
			found = true
		}
	}
	if !found {
		t.Errorf("expected MISSING_FIELD for 'meta.total', got: %v", mismatches)
	}
}

func TestValidateAutoLearnOnFirstCall(t *testing.T) {
	v := schema.NewValidator()
	mismatches, err := v.Validate(baseline)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if len(mismatches) != 0 {
		t.Errorf("auto-learn should produce 0 mismatches on first call, got %d", len(mismatches))
	}
	if !v.HasBaseline() {
		t.Error("expected baseline to be set after auto-learn")
	}
}

func TestReset(t *testing.T) {
	v := schema.NewValidator()
	if err := v.Learn(baseline); err != nil {
		t.Fatal(err)
	}
	v.Reset()
	if v.HasBaseline() {
		t.Error("expected no baseline after Reset")
	}
}

func TestBaselineFields(t *testing.T) {
	v := schema.NewValidator()
	if err := v.Learn(baseline); err != nil {
		t.Fatal(err)
	}
	fields := v.BaselineFields()
	if len(fields) == 0 {
		t.Error("expected non-empty baseline fields")
	}
	for i := 1; i < len(fields); i++ {
		if fields[i] < fields[i-1] {
			t.Errorf("fields not sorted: %v", fields)
			break
		}
	}
}

func TestFormatMismatchesEmpty(t *testing.T) {
	if s := schema.FormatMismatches(nil); s != "" {
		t.Errorf("expected empty string for nil mismatches, got %q", s)
	}
}

func TestFormatMismatchesNonEmpty(t *testing.T) {
	mismatches := []schema.Mismatch{
		{Kind: schema.MismatchKindMissing, Field: "status", BaselineType: "string"},
		{Kind: schema.MismatchKindAdded, Field: "extra", CurrentType: "number"},
	}
	out := schema.FormatMismatches(mismatches)
	if !strings.Contains(out, "schema drift") {
		t.Errorf("expected 'schema drift' in output, got: %q", out)
	}
	if !strings.Contains(out, "status") {
		t.Errorf("expected 'status' in output, got: %q", out)
	}
	if !strings.Contains(out, "extra") {
		t.Errorf("expected 'extra' in output, got: %q", out)
	}
}

func TestRegistryPerHostIsolation(t *testing.T) {
	r := schema.NewRegistry()
	a := r.For("api.example.com")
	b := r.For("other.example.com")
	if a == b {
		t.Fatal("expected distinct validators per host")
	}
	if r.For("api.example.com") != a {
		t.Error("expected For to return the same validator on repeat calls for the same host")
	}
}
