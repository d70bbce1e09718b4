package tutor

import (
	"strings"

	"github.com/ashureev/tutor-labs/internal/domain"
)

const clarificationInstructions = "You are an AI math tutor. The user is asking for clarification on one of your previous math steps. " +
	"Find the referenced step from the conversation above and explain it in clear, student-friendly language. " +
	"Do NOT emit any PROFICIENCY_ASSESSMENT JSON or repeat the MATH/EXPLANATION template.\n\n"

const standardInstructions = "You are an AI math tutor. " +
	"First, analyze the user's past messages to infer their competence (1–10) in each topic and sub-topic mentioned. " +
	"Return a JSON object labelled \"PROFICIENCY_ASSESSMENT\" mapping topics to sub-topics with scores.\n\n" +
	"Then, answer the user's question, tailoring the difficulty exactly to their level.\n\n" +
	"Return a response strictly formatted as follows:\n\n" +
	"MATH:\n" +
	"1. First math step (maths only - in text)\n" +
	"2. Second math step (maths only - in text)\n" +
	"3. Third math step (maths only - in text) etc.\n\n" +
	"---\n\n" +
	"EXPLANATION:\n" +
	"1. Explanation of First math step (in text)\n" +
	"2. Explanation of second math step (in text)\n" +
	"etc.\n\n" +
	"Always wrap any {text:} items in braces if they appear in MATH. " +
	"Always end with a question to check understanding. Make sure your response is short enough and understandable for a year 10 maths student. " +
	"Always give an explanation even if the student is repeating themselves. \n\n"

// BuildPrompt renders the model prompt for a turn. A nil history renders an
// empty transcript, which is how the fallback attempt drops context.
func BuildPrompt(message string, history []domain.Message, mode Mode) string {
	var b strings.Builder
	if mode == ModeClarification {
		b.WriteString(clarificationInstructions)
	} else {
		b.WriteString(standardInstructions)
	}

	writeTranscript(&b, history)

	b.WriteString("USER: ")
	b.WriteString(message)
	b.WriteString("\n")
	if mode == ModeStandard {
		b.WriteString("\n")
	}
	return b.String()
}

func writeTranscript(b *strings.Builder, history []domain.Message) {
	for _, m := range history {
		b.WriteString(m.Role.Upper())
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
}
