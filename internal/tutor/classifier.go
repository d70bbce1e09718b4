// Package tutor implements the conversation engine of the math tutor.
package tutor

import (
	"regexp"
	"strings"
)

// Mode selects the prompt template for a turn.
type Mode int

const (
	// ModeStandard solves a new problem and asks for a proficiency assessment.
	ModeStandard Mode = iota
	// ModeClarification re-explains a step from an earlier reply.
	ModeClarification
)

func (m Mode) String() string {
	if m == ModeClarification {
		return "clarification"
	}
	return "standard"
}

var explainStepPattern = regexp.MustCompile(`explain step \d+`)

// IsClarification reports whether message asks to re-explain a prior step.
func IsClarification(message string) bool {
	lower := strings.ToLower(message)
	return explainStepPattern.MatchString(lower) ||
		strings.HasPrefix(lower, "why") ||
		strings.Contains(lower, "clarify step")
}

// ClassifyMode maps a message to the Mode of its turn.
func ClassifyMode(message string) Mode {
	if IsClarification(message) {
		return ModeClarification
	}
	return ModeStandard
}
