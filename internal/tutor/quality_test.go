package tutor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPhraseQualityCheck(t *testing.T) {
	t.Parallel()

	check := PhraseQualityCheck(DefaultRejectPhrases)
	tests := []struct {
		reply  string
		reject bool
	}{
		{"MATH:\n1. 2x = 4\n---\nEXPLANATION:\n1. Subtract 3.", false},
		{"i'm UNABLE to help with that, sorry.", true},
		{"As an AI language model, I cannot do homework.", true},
		{"", false},
	}
	for _, tt := range tests {
		err := check(tt.reply)
		if tt.reject != (err != nil) {
			t.Errorf("check(%q) = %v, reject=%v", tt.reply, err, tt.reject)
		}
		if err != nil && !errors.Is(err, ErrQualityRejected) {
			t.Errorf("expected ErrQualityRejected, got %v", err)
		}
	}
}

func TestPhraseQualityCheckIgnoresBlankPhrases(t *testing.T) {
	t.Parallel()

	if err := PhraseQualityCheck([]string{"", "  "})("anything"); err != nil {
		t.Fatalf("blank phrases must not reject: %v", err)
	}
}

func TestLoadRejectPhrases(t *testing.T) {
	t.Parallel()

	got, err := LoadRejectPhrases("")
	if err != nil {
		t.Fatalf("LoadRejectPhrases default failed: %v", err)
	}
	if diff := cmp.Diff(DefaultRejectPhrases, got); diff != "" {
		t.Fatalf("unexpected defaults (-want +got):\n%s", diff)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "phrases.yaml")
	if err := os.WriteFile(path, []byte("phrases:\n  - \"I don't know\"\n  - Let me think about that\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err = LoadRejectPhrases(path)
	if err != nil {
		t.Fatalf("LoadRejectPhrases failed: %v", err)
	}
	if diff := cmp.Diff([]string{"I don't know", "Let me think about that"}, got); diff != "" {
		t.Fatalf("unexpected phrases (-want +got):\n%s", diff)
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("phrases: []\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRejectPhrases(empty); err == nil {
		t.Fatal("expected error for empty phrase list")
	}
	if _, err := LoadRejectPhrases(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
