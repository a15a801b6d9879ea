package services

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"
)

func schemasDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "schemas")
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(schemasDir(t))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidate_Screenplay_Valid(t *testing.T) {
	v := newTestValidator(t)

	payload := []byte(`{
		"format": "short",
		"genre": "noir",
		"scenes": [
			{"heading": "INT. STUDIO - NIGHT", "body": "A single lamp hums.", "characters": ["MARA"]}
		],
		"estimated_runtime_minutes": 8
	}`)
	if err := v.Validate(PayloadScreenplay, payload); err != nil {
		t.Fatalf("expected valid screenplay payload, got: %v", err)
	}
}

func TestValidate_Screenplay_Invalid(t *testing.T) {
	v := newTestValidator(t)

	cases := []struct {
		name    string
		payload string
	}{
		{
			name:    "missing scenes",
			payload: `{"format":"short"}`,
		},
		{
			name:    "empty scenes (minItems 1)",
			payload: `{"format":"short","scenes":[]}`,
		},
		{
			name:    "unknown format",
			payload: `{"format":"telenovela","scenes":[{"heading":"INT.","body":"x"}]}`,
		},
		{
			name:    "unknown field (additionalProperties false)",
			payload: `{"format":"short","scenes":[{"heading":"INT.","body":"x"}],"director":"me"}`,
		},
		{
			name:    "not JSON at all",
			payload: `{{{`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(PayloadScreenplay, []byte(tc.payload))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got: %v", err)
			}
		})
	}
}

func TestValidate_OrderBrief(t *testing.T) {
	v := newTestValidator(t)

	valid := []byte(`{
		"summary": "90-second moody teaser for an indie sci-fi short",
		"deliverable": "edit",
		"duration_seconds": 90
	}`)
	if err := v.Validate(PayloadOrderBrief, valid); err != nil {
		t.Fatalf("expected valid order brief, got: %v", err)
	}

	short := []byte(`{"summary":"too short","deliverable":"edit"}`)
	if err := v.Validate(PayloadOrderBrief, short); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for short summary, got: %v", err)
	}
}

func TestValidate_UnknownKind(t *testing.T) {
	v := newTestValidator(t)
	if err := v.Validate("poster_art", []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown payload kind")
	}
}
