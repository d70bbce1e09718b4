package tutor

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/tutor-labs/internal/convlog"
	"github.com/ashureev/tutor-labs/internal/domain"
	"github.com/ashureev/tutor-labs/internal/store"
)

// memStore is an in-memory MessageStore and ProficiencyStore with fault injection.
type memStore struct {
	mu          sync.Mutex
	messages    []domain.Message
	proficiency map[string]map[domain.ProficiencyKey]int
	writes      int

	appendErr   error
	failOnRole  domain.Role
	recentErr   error
	upsertErr   error
	upsertCalls int
}

func newMemStore() *memStore {
	return &memStore{proficiency: make(map[string]map[domain.ProficiencyKey]int)}
}

func (s *memStore) AppendMessage(_ context.Context, conversationID string, role domain.Role, content string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil && (s.failOnRole == "" || s.failOnRole == role) {
		return nil, s.appendErr
	}
	s.writes++
	msg := domain.Message{
		ID:             int64(len(s.messages) + 1),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *memStore) RecentMessages(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	var out []domain.Message
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if s.messages[i].ConversationID == conversationID {
			out = append(out, s.messages[i])
		}
	}
	slices.Reverse(out)
	return out, nil
}

func (s *memStore) DeleteMessagesBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("not implemented")
}

func (s *memStore) ListProficiency(_ context.Context, learnerID string) ([]domain.ProficiencyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ProficiencyEntry
	for k, score := range s.proficiency[learnerID] {
		out = append(out, domain.ProficiencyEntry{LearnerID: learnerID, Topic: k.Topic, SubTopic: k.SubTopic, Score: score})
	}
	return out, nil
}

func (s *memStore) UpsertProficiency(_ context.Context, learnerID, topic, subTopic string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if score < domain.MinScore || score > domain.MaxScore {
		return store.ErrScoreOutOfRange
	}
	if s.proficiency[learnerID] == nil {
		s.proficiency[learnerID] = make(map[domain.ProficiencyKey]int)
	}
	s.proficiency[learnerID][domain.ProficiencyKey{Topic: topic, SubTopic: subTopic}] = score
	s.writes++
	return nil
}

func (s *memStore) scores(learnerID string) map[domain.ProficiencyKey]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.ProficiencyKey]int)
	for k, v := range s.proficiency[learnerID] {
		out[k] = v
	}
	return out
}

func (s *memStore) roles(conversationID string) []domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Role
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m.Role)
		}
	}
	return out
}

type completion struct {
	text string
	err  error
}

// scriptedCompleter replays completions in order and records every prompt.
type scriptedCompleter struct {
	mu      sync.Mutex
	script  []completion
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if len(c.script) == 0 {
		return "", errors.New("unexpected model call")
	}
	next := c.script[0]
	c.script = c.script[1:]
	return next.text, next.err
}

// stubTransport satisfies llm.Transport.
type stubTransport struct {
	text string
	err  error
}

func (s stubTransport) Complete(context.Context, string) (string, error) {
	return s.text, s.err
}

type recordingConvLog struct {
	mu     sync.Mutex
	events []convlog.Event
}

func (r *recordingConvLog) Log(e convlog.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingConvLog) Close() error { return nil }

func (r *recordingConvLog) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}
