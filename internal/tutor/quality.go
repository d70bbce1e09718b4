package tutor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// QualityCheck inspects a model reply. A non-nil error rejects it.
type QualityCheck func(reply string) error

// DefaultRejectPhrases mark replies where the model refused or deflected.
var DefaultRejectPhrases = []string{
	"I'm unable to help with that",
	"As an AI language model",
}

// AcceptAll is a QualityCheck that never rejects.
func AcceptAll(string) error { return nil }

// PhraseQualityCheck rejects replies containing any of phrases, ignoring case.
func PhraseQualityCheck(phrases []string) QualityCheck {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return func(reply string) error {
		lower := strings.ToLower(reply)
		for _, p := range lowered {
			if strings.Contains(lower, p) {
				return fmt.Errorf("%w: contains %q", ErrQualityRejected, p)
			}
		}
		return nil
	}
}

type phraseFile struct {
	Phrases []string `yaml:"phrases"`
}

// LoadRejectPhrases reads a YAML file of the form `phrases: [...]`.
// An empty path returns DefaultRejectPhrases.
func LoadRejectPhrases(path string) ([]string, error) {
	if path == "" {
		return DefaultRejectPhrases, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quality phrases: %w", err)
	}
	var f phraseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse quality phrases %s: %w", path, err)
	}
	if len(f.Phrases) == 0 {
		return nil, fmt.Errorf("quality phrases %s: no phrases defined", path)
	}
	return f.Phrases, nil
}
