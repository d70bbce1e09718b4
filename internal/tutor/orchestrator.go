package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ashureev/tutor-labs/internal/convlog"
	"github.com/ashureev/tutor-labs/internal/domain"
	"github.com/ashureev/tutor-labs/internal/store"
)

// DefaultHistoryLimit is the number of recent messages injected into a prompt.
const DefaultHistoryLimit = 20

// Reply is the result of a successful turn.
type Reply struct {
	Text     string
	Mode     Mode
	Attempts int
	TurnID   string
}

// Options configures an Orchestrator.
type Options struct {
	HistoryLimit int
	ConvLog      convlog.Logger
	Logger       *slog.Logger
}

// Orchestrator runs one tutoring turn per Submit call. It holds no
// conversation state; everything lives in the stores.
type Orchestrator struct {
	messages     store.MessageStore
	gateway      Completer
	extractor    *Extractor
	convLog      convlog.Logger
	logger       *slog.Logger
	historyLimit int
	newTurnID    func() string
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(messages store.MessageStore, gateway Completer, extractor *Extractor, opts Options) *Orchestrator {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.ConvLog == nil {
		opts.ConvLog = convlog.Noop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		messages:     messages,
		gateway:      gateway,
		extractor:    extractor,
		convLog:      opts.ConvLog,
		logger:       opts.Logger,
		historyLimit: opts.HistoryLimit,
		newTurnID:    uuid.NewString,
	}
}

// Submit handles a student message and returns the model reply verbatim.
func (o *Orchestrator) Submit(ctx context.Context, conv domain.Conversation, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrMessageRequired
	}

	turn := turnLog{o: o, conv: conv, id: o.newTurnID()}
	mode := ClassifyMode(message)
	turn.log("inbound", convlog.EventUserMessage, message, map[string]any{"mode": mode.String()})

	if _, err := o.messages.AppendMessage(ctx, conv.Key(), domain.RoleUser, message); err != nil {
		err = fmt.Errorf("%w: save user message: %w", ErrPersistence, err)
		turn.failed(err)
		return nil, err
	}

	history, err := o.messages.RecentMessages(ctx, conv.Key(), o.historyLimit)
	if err != nil {
		err = fmt.Errorf("%w: load history: %w", ErrPersistence, err)
		turn.failed(err)
		return nil, err
	}

	text, attempts, err := o.complete(ctx, turn, message, history, mode)
	if err != nil {
		turn.failed(err)
		return nil, err
	}

	// The reply exists now; a client disconnect must not lose it.
	persistCtx := context.WithoutCancel(ctx)
	if _, err := o.messages.AppendMessage(persistCtx, conv.Key(), domain.RoleAI, text); err != nil {
		err = fmt.Errorf("%w: save reply: %w", ErrPersistence, err)
		turn.failed(err)
		return nil, err
	}

	if mode == ModeStandard && o.extractor != nil {
		a := o.extractor.ExtractAndPersist(persistCtx, conv.LearnerID, text)
		o.logger.Debug("proficiency extraction finished",
			"turn_id", turn.id,
			"status", a.Status.String(),
		)
	}

	turn.log("outbound", convlog.EventAssistantMessage, text, map[string]any{
		"mode":     mode.String(),
		"attempts": attempts,
	})
	o.logger.Info("tutor turn completed",
		"learner_id", conv.LearnerID,
		"session_id", conv.SessionID,
		"turn_id", turn.id,
		"mode", mode.String(),
		"attempts", attempts,
	)

	return &Reply{Text: text, Mode: mode, Attempts: attempts, TurnID: turn.id}, nil
}

type attemptState int

const (
	attemptPrimary attemptState = iota
	attemptFallback
	attemptSucceeded
	attemptFailed
)

// nextAttempt is the fallback policy: one retry after any primary failure.
func nextAttempt(s attemptState, err error) attemptState {
	switch {
	case err == nil:
		return attemptSucceeded
	case s == attemptPrimary:
		return attemptFallback
	default:
		return attemptFailed
	}
}

// complete drives the primary attempt and, when it fails, the fallback
// attempt with the history dropped from the prompt.
func (o *Orchestrator) complete(ctx context.Context, turn turnLog, message string, history []domain.Message, mode Mode) (string, int, error) {
	var (
		state      = attemptPrimary
		attempts   int
		primaryErr error
	)
	for {
		var prompt string
		switch state {
		case attemptPrimary:
			prompt = BuildPrompt(message, history, mode)
		case attemptFallback:
			prompt = BuildPrompt(message, nil, mode)
		}

		attempts++
		text, err := o.gateway.Complete(withAttempt(ctx, attempts), prompt)
		next := nextAttempt(state, err)

		switch next {
		case attemptSucceeded:
			return text, attempts, nil
		case attemptFallback:
			primaryErr = err
			o.logger.Warn("model call failed, retrying without history",
				"turn_id", turn.id,
				"error", err,
			)
			turn.log("internal", convlog.EventFallbackAttempt, "", map[string]any{"cause": err.Error()})
		case attemptFailed:
			return "", attempts, &TurnError{Primary: primaryErr, Fallback: err}
		}
		state = next
	}
}

type turnLog struct {
	o    *Orchestrator
	conv domain.Conversation
	id   string
}

func (t turnLog) log(direction, eventType, content string, meta map[string]any) {
	t.o.convLog.Log(convlog.Event{
		LearnerID:  t.conv.LearnerID,
		SessionID:  t.conv.SessionID,
		TurnID:     t.id,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Meta:       meta,
	})
}

func (t turnLog) failed(err error) {
	t.o.logger.Error("tutor turn failed",
		"learner_id", t.conv.LearnerID,
		"session_id", t.conv.SessionID,
		"turn_id", t.id,
		"error", err,
	)
	t.log("internal", convlog.EventTurnFailed, "", map[string]any{"error": err.Error()})
}
