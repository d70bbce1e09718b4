// Package identity provides anonymous per-device learner identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/tutor-labs/internal/domain"
	"github.com/ashureev/tutor-labs/internal/store"
)

const (
	AnonCookieName        = "tutor_anon_id"
	SessionHeaderName     = "X-Tutor-Session-ID"
	DefaultSessionIDValue = "default"
	anonCookieMaxAge      = 30 * 24 * time.Hour
	// lastSeenGranularity limits learner row writes to one per window.
	lastSeenGranularity = time.Hour
)

type contextKey int

const (
	learnerIDKey contextKey = iota
	sessionIDKey
	recorderKey
)

var (
	anonIDPattern    = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)
)

// LearnerIDFromContext extracts the learner ID from the request context.
func LearnerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(learnerIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the conversation session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

// ConversationFromContext returns the conversation addressed by the request.
func ConversationFromContext(ctx context.Context) domain.Conversation {
	return domain.Conversation{
		LearnerID: LearnerIDFromContext(ctx),
		SessionID: SessionIDFromContext(ctx),
	}
}

// WithConversation returns ctx addressing conv. The session ID is sanitized.
func WithConversation(ctx context.Context, conv domain.Conversation) context.Context {
	ctx = context.WithValue(ctx, learnerIDKey, conv.LearnerID)
	return context.WithValue(ctx, sessionIDKey, sanitizeSessionID(conv.SessionID))
}

// RecordLearner creates or refreshes the learner row for the request. The
// middleware defers the write so handlers can reject invalid input first.
// It is a no-op when ctx did not pass through Middleware.
func RecordLearner(ctx context.Context) error {
	record, ok := ctx.Value(recorderKey).(func(context.Context) error)
	if !ok {
		return nil
	}
	return record(ctx)
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

// sanitizeSessionID rejects ':' so a conversation key splits unambiguously.
func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

func deriveDisplayName(learnerID string) string {
	if len(learnerID) > 13 {
		return "anon-" + learnerID[len(learnerID)-8:]
	}
	return "anon-learner"
}

func touchLearner(ctx context.Context, repo store.LearnerStore, learnerID string, now time.Time) error {
	learner, err := repo.GetLearner(ctx, learnerID)
	if err != nil {
		return err
	}
	if learner != nil && now.Sub(learner.LastSeenAt) < lastSeenGranularity {
		return nil
	}

	if learner == nil {
		learner = &domain.Learner{
			LearnerID:   learnerID,
			DisplayName: deriveDisplayName(learnerID),
			CreatedAt:   now,
		}
	}
	learner.LastSeenAt = now
	return repo.UpsertLearner(ctx, learner)
}

func setAnonCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		setAnonCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateAnonID()
	if err != nil {
		return "", err
	}
	setAnonCookie(w, id, isDev)
	return id, nil
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return sanitizeSessionID(sid)
}

// Middleware injects the anonymous learner identity and the conversation
// session ID. The learner row is written only when a handler calls RecordLearner.
func Middleware(repo store.LearnerStore, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			learnerID, err := getOrCreateAnonID(w, r, isDev)
			if err != nil {
				slog.Error("Failed to generate anonymous id", "error", err)
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}

			ctx := WithConversation(r.Context(), domain.Conversation{
				LearnerID: learnerID,
				SessionID: sessionIDFromRequest(r),
			})
			ctx = context.WithValue(ctx, recorderKey, func(ctx context.Context) error {
				if err := touchLearner(ctx, repo, learnerID, time.Now()); err != nil {
					return fmt.Errorf("record learner %s: %w", learnerID, err)
				}
				return nil
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
