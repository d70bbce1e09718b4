package tutor

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ashureev/tutor-labs/internal/domain"
)

func TestParseAssessment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		status AssessmentStatus
		want   map[string]map[string]int
	}{
		{
			name:   "absent",
			text:   "MATH:\n1. x = 2",
			status: AssessmentAbsent,
		},
		{
			name:   "label without object",
			text:   "PROFICIENCY_ASSESSMENT: none this time",
			status: AssessmentAbsent,
		},
		{
			name:   "plain",
			text:   `PROFICIENCY_ASSESSMENT: {"algebra": {"linear equations": 6}}` + "\n\nMATH:\n1. 2x = 4",
			status: AssessmentParsed,
			want:   map[string]map[string]int{"algebra": {"linear equations": 6}},
		},
		{
			name:   "fenced block",
			text:   "PROFICIENCY_ASSESSMENT:\n```json\n{\"geometry\": {\"angles\": 4, \"triangles\": 7}}\n```",
			status: AssessmentParsed,
			want:   map[string]map[string]int{"geometry": {"angles": 4, "triangles": 7}},
		},
		{
			name:   "quoted label",
			text:   `{"PROFICIENCY_ASSESSMENT": {"geometry": {"angles": 4}}}`,
			status: AssessmentParsed,
			want:   map[string]map[string]int{"geometry": {"angles": 4}},
		},
		{
			name:   "bold label",
			text:   `**PROFICIENCY_ASSESSMENT**: {"geometry": {"angles": 4}}`,
			status: AssessmentParsed,
			want:   map[string]map[string]int{"geometry": {"angles": 4}},
		},
		{
			name:   "bold label with colon inside",
			text:   `**PROFICIENCY_ASSESSMENT:** {"geometry": {"angles": 4}}`,
			status: AssessmentParsed,
			want:   map[string]map[string]int{"geometry": {"angles": 4}},
		},
		{
			name:   "uppercase fence tag",
			text:   "PROFICIENCY_ASSESSMENT:\n```JSON\n{\"algebra\": {\"linear\": 6}}\n```",
			status: AssessmentParsed,
			want:   map[string]map[string]int{"algebra": {"linear": 6}},
		},
		{
			name:   "scores beyond int range",
			text:   `PROFICIENCY_ASSESSMENT: {"algebra": {"huge": 9223372036854775807, "tiny": -1e300, "big": 1e300}}`,
			status: AssessmentParsed,
			want:   map[string]map[string]int{"algebra": {"huge": 10, "tiny": 1, "big": 10}},
		},
		{
			name:   "clamped and truncated",
			text:   `PROFICIENCY_ASSESSMENT : { "algebra": {"quadratics": 15, "factoring": -3, "surds": 7.9, "indices": "8"} }`,
			status: AssessmentParsed,
			want:   map[string]map[string]int{"algebra": {"quadratics": 10, "factoring": 1, "surds": 7, "indices": 8}},
		},
		{
			name:   "braces inside strings",
			text:   `PROFICIENCY_ASSESSMENT: {"sets {A}": {"union}": 5}} trailing }`,
			status: AssessmentParsed,
			want:   map[string]map[string]int{"sets {A}": {"union}": 5}},
		},
		{
			name:   "truncated json",
			text:   `PROFICIENCY_ASSESSMENT: {"algebra": {"linear": 5}`,
			status: AssessmentMalformed,
		},
		{
			name:   "non numeric score",
			text:   `PROFICIENCY_ASSESSMENT: {"algebra": {"linear": "high"}}`,
			status: AssessmentMalformed,
		},
		{
			name:   "flat object",
			text:   `PROFICIENCY_ASSESSMENT: {"algebra": 5}`,
			status: AssessmentMalformed,
		},
		{
			name:   "boolean score",
			text:   `PROFICIENCY_ASSESSMENT: {"algebra": {"linear": true}}`,
			status: AssessmentMalformed,
		},
		{
			name:   "empty object",
			text:   `PROFICIENCY_ASSESSMENT: {}`,
			status: AssessmentParsed,
			want:   map[string]map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ParseAssessment(tt.text)
			if got.Status != tt.status {
				t.Fatalf("status = %s, want %s (err %v)", got.Status, tt.status, got.Err)
			}
			if tt.status == AssessmentMalformed && got.Err == nil {
				t.Fatal("malformed result must carry an error")
			}
			if tt.status != AssessmentParsed {
				return
			}
			if diff := cmp.Diff(tt.want, got.Scores); diff != "" {
				t.Fatalf("unexpected scores (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractAndPersist(t *testing.T) {
	t.Parallel()

	s := newMemStore()
	e := NewExtractor(s, slog.Default())

	a := e.ExtractAndPersist(context.Background(), "anon_1",
		`PROFICIENCY_ASSESSMENT: {"algebra": {"quadratics": 15, "factoring": -3}}`)
	if a.Status != AssessmentParsed {
		t.Fatalf("expected parsed, got %s", a.Status)
	}

	want := map[domain.ProficiencyKey]int{
		{Topic: "algebra", SubTopic: "quadratics"}: 10,
		{Topic: "algebra", SubTopic: "factoring"}:  1,
	}
	if diff := cmp.Diff(want, s.scores("anon_1")); diff != "" {
		t.Fatalf("unexpected proficiency (-want +got):\n%s", diff)
	}
}

func TestExtractAndPersistMalformedWritesNothing(t *testing.T) {
	t.Parallel()

	s := newMemStore()
	e := NewExtractor(s, nil)

	a := e.ExtractAndPersist(context.Background(), "anon_1",
		`PROFICIENCY_ASSESSMENT: {"algebra": {"linear": 4, "quadratic": "n/a"}}`)
	if a.Status != AssessmentMalformed {
		t.Fatalf("expected malformed, got %s", a.Status)
	}
	if s.upsertCalls != 0 {
		t.Fatalf("expected no upserts, got %d", s.upsertCalls)
	}
}

func TestExtractAndPersistContinuesAfterStoreError(t *testing.T) {
	t.Parallel()

	s := newMemStore()
	s.upsertErr = errors.New("disk full")
	e := NewExtractor(s, nil)

	a := e.ExtractAndPersist(context.Background(), "anon_1",
		`PROFICIENCY_ASSESSMENT: {"algebra": {"a": 2, "b": 3}, "geometry": {"c": 4}}`)
	if a.Status != AssessmentParsed {
		t.Fatalf("expected parsed, got %s", a.Status)
	}
	if s.upsertCalls != 3 {
		t.Fatalf("expected every triple to be attempted, got %d", s.upsertCalls)
	}
}
