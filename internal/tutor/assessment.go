package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/ashureev/tutor-labs/internal/domain"
	"github.com/ashureev/tutor-labs/internal/store"
)

// AssessmentStatus tags the outcome of ParseAssessment.
type AssessmentStatus int

const (
	// AssessmentAbsent means the reply carried no assessment block.
	AssessmentAbsent AssessmentStatus = iota
	// AssessmentMalformed means a block was found but could not be read.
	AssessmentMalformed
	// AssessmentParsed means Scores holds the clamped scores.
	AssessmentParsed
)

func (s AssessmentStatus) String() string {
	switch s {
	case AssessmentMalformed:
		return "malformed"
	case AssessmentParsed:
		return "parsed"
	default:
		return "absent"
	}
}

// Assessment is the proficiency signal embedded in a model reply.
type Assessment struct {
	Status AssessmentStatus
	// Scores maps topic to sub-topic to a score clamped to [1,10].
	Scores map[string]map[string]int
	// Err describes why a block was malformed.
	Err error
}

// The label may be quoted or bold, with the closing bold marker on either side
// of the colon, and the object may sit inside a markdown fence of any case.
var assessmentLabel = regexp.MustCompile("PROFICIENCY_ASSESSMENT[\"*]*\\s*:\\s*\\**\\s*(?:```(?i:json)?\\s*)?\\{")

// ParseAssessment extracts the PROFICIENCY_ASSESSMENT object from text.
func ParseAssessment(text string) Assessment {
	loc := assessmentLabel.FindStringIndex(text)
	if loc == nil {
		return Assessment{Status: AssessmentAbsent}
	}
	// loc[1] is just past the opening brace.
	body := text[loc[1]-1:]

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var raw map[string]map[string]any
	if err := dec.Decode(&raw); err != nil {
		return malformed(fmt.Errorf("decode assessment: %w", err))
	}

	scores := make(map[string]map[string]int, len(raw))
	for topic, subs := range raw {
		if subs == nil {
			return malformed(fmt.Errorf("topic %q: expected object", topic))
		}
		scores[topic] = make(map[string]int, len(subs))
		for sub, v := range subs {
			score, err := coerceScore(v)
			if err != nil {
				return malformed(fmt.Errorf("%s/%s: %w", topic, sub, err))
			}
			scores[topic][sub] = score
		}
	}
	return Assessment{Status: AssessmentParsed, Scores: scores}
}

func malformed(err error) Assessment {
	return Assessment{Status: AssessmentMalformed, Err: err}
}

var errNotAScore = errors.New("score is not a number")

// coerceScore converts a decoded JSON value to a clamped integer score.
// Fractions are truncated toward zero; integer strings are accepted.
func coerceScore(v any) (int, error) {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return clampInt64(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s", errNotAScore, val)
		}
		return clampFloat(f), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errNotAScore, val)
		}
		return clampInt64(n), nil
	default:
		return 0, fmt.Errorf("%w: %T", errNotAScore, v)
	}
}

func clampInt64(n int64) int {
	return domain.ClampScore(int(min(max(n, math.MinInt32), math.MaxInt32)))
}

func clampFloat(f float64) int {
	if math.IsNaN(f) {
		return domain.MinScore
	}
	return clampInt64(int64(max(min(math.Trunc(f), math.MaxInt32), math.MinInt32)))
}

// Extractor persists assessments found in model replies.
type Extractor struct {
	store  store.ProficiencyStore
	logger *slog.Logger
}

// NewExtractor creates an Extractor writing to s.
func NewExtractor(s store.ProficiencyStore, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{store: s, logger: logger}
}

// ExtractAndPersist parses text and upserts every score for learnerID.
// Failures are logged and never returned.
func (e *Extractor) ExtractAndPersist(ctx context.Context, learnerID, text string) Assessment {
	a := ParseAssessment(text)
	switch a.Status {
	case AssessmentAbsent:
		e.logger.Debug("no proficiency assessment in reply", "learner_id", learnerID)
		return a
	case AssessmentMalformed:
		e.logger.Warn("ignoring malformed proficiency assessment",
			"learner_id", learnerID,
			"error", a.Err,
			"snippet", snippet(text),
		)
		return a
	}

	topics := lo.Keys(a.Scores)
	slices.Sort(topics)
	for _, topic := range topics {
		subs := lo.Keys(a.Scores[topic])
		slices.Sort(subs)
		for _, sub := range subs {
			score := a.Scores[topic][sub]
			if err := e.store.UpsertProficiency(ctx, learnerID, topic, sub, score); err != nil {
				e.logger.Error("failed to persist proficiency",
					"learner_id", learnerID,
					"topic", topic,
					"sub_topic", sub,
					"error", err,
				)
			}
		}
	}
	return a
}

func snippet(text string) string {
	const limit = 120
	i := strings.Index(text, "PROFICIENCY_ASSESSMENT")
	if i < 0 {
		i = 0
	}
	s := text[i:]
	if len(s) > limit {
		s = s[:limit]
	}
	return string(bytes.ToValidUTF8([]byte(s), nil))
}
