package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/ashureev/tutor-labs/internal/api"
	"github.com/ashureev/tutor-labs/internal/domain"
	"github.com/ashureev/tutor-labs/internal/identity"
)

const (
	defaultMaxRequestBodySize = 1 << 20
	maxHistoryPageSize        = 200
)

// Submitter runs a tutoring turn.
type Submitter interface {
	Submit(ctx context.Context, conv domain.Conversation, message string) (*Reply, error)
}

// Reader is the read side of the stores exposed over HTTP.
type Reader interface {
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	ListProficiency(ctx context.Context, learnerID string) ([]domain.ProficiencyEntry, error)
}

// HandlerConfig holds HTTP limits.
type HandlerConfig struct {
	MaxRequestBodyBytes int64
	HistoryLimit        int
}

// Handler serves the tutor HTTP API.
type Handler struct {
	turns  Submitter
	reader Reader
	cfg    HandlerConfig
}

// NewHandler creates a Handler.
func NewHandler(turns Submitter, reader Reader, cfg HandlerConfig) *Handler {
	if cfg.MaxRequestBodyBytes <= 0 {
		cfg.MaxRequestBodyBytes = defaultMaxRequestBodySize
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &Handler{turns: turns, reader: reader, cfg: cfg}
}

// RegisterRoutes registers the tutor routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
	r.Get("/api/proficiency", h.HandleProficiency)
	r.Get("/api/history", h.HandleHistory)
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// HandleChat runs one turn and writes the raw reply as text/plain.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	conv := identity.ConversationFromContext(r.Context())
	if conv.LearnerID == "" {
		http.Error(w, "Error: unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestBodyBytes)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Error: request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Error: invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Error: "+ErrMessageRequired.Error(), http.StatusBadRequest)
		return
	}

	if err := identity.RecordLearner(r.Context()); err != nil {
		slog.Error("Failed to record learner", "learner_id", conv.LearnerID, "error", err)
		http.Error(w, "Error: failed to initialize anonymous learner", http.StatusInternalServerError)
		return
	}

	slog.Info("Tutor chat request",
		"learner_id", conv.LearnerID,
		"session_id", conv.SessionID,
		"message_length", len(req.Message),
	)

	reply, err := h.turns.Submit(r.Context(), conv, req.Message)
	if err != nil {
		if errors.Is(err, ErrMessageRequired) {
			http.Error(w, "Error: "+err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Tutor-Turn-ID", reply.TurnID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(reply.Text)); err != nil {
		slog.Warn("Failed to write chat reply", "turn_id", reply.TurnID, "error", err)
	}
}

// ProficiencyResponse is one entry of GET /api/proficiency.
type ProficiencyResponse struct {
	Topic       string    `json:"topic"`
	SubTopic    string    `json:"sub_topic"`
	Score       int       `json:"score"`
	LastUpdated time.Time `json:"last_updated"`
}

// HandleProficiency lists the calling learner's proficiency entries.
func (h *Handler) HandleProficiency(w http.ResponseWriter, r *http.Request) {
	learnerID := identity.LearnerIDFromContext(r.Context())
	if learnerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entries, err := h.reader.ListProficiency(r.Context(), learnerID)
	if err != nil {
		slog.Error("Failed to list proficiency", "learner_id", learnerID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to load proficiency")
		return
	}

	api.JSON(w, http.StatusOK, lo.Map(entries, func(e domain.ProficiencyEntry, _ int) ProficiencyResponse {
		return ProficiencyResponse{
			Topic:       e.Topic,
			SubTopic:    e.SubTopic,
			Score:       e.Score,
			LastUpdated: e.LastUpdated.UTC(),
		}
	}))
}

// MessageResponse is one entry of GET /api/history.
type MessageResponse struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HandleHistory lists the recent messages of the calling conversation, oldest first.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	conv := identity.ConversationFromContext(r.Context())
	if conv.LearnerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := h.cfg.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryPageSize)
	}

	messages, err := h.reader.RecentMessages(r.Context(), conv.Key(), limit)
	if err != nil {
		slog.Error("Failed to load history", "learner_id", conv.LearnerID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	api.JSON(w, http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) MessageResponse {
		return MessageResponse{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt.UTC(),
		}
	}))
}
