package domain

import (
	"time"
)

const (
	// MinScore is the lowest proficiency score that can be stored.
	MinScore = 1
	// MaxScore is the highest proficiency score that can be stored.
	MaxScore = 10
)

// ProficiencyEntry is the latest competence estimate for a topic/sub-topic pair.
type ProficiencyEntry struct {
	LearnerID   string    `json:"-"`
	Topic       string    `json:"topic"`
	SubTopic    string    `json:"sub_topic"`
	Score       int       `json:"score"`
	LastUpdated time.Time `json:"last_updated"`
}

// ProficiencyKey is the unique key of a proficiency entry within a learner.
type ProficiencyKey struct {
	Topic    string
	SubTopic string
}

// ClampScore bounds a raw score to [MinScore, MaxScore].
func ClampScore(raw int) int {
	if raw < MinScore {
		return MinScore
	}
	if raw > MaxScore {
		return MaxScore
	}
	return raw
}
