package model

import "time"

type SessionMode string

const (
	SessionModeInteractive SessionMode = "interactive" // multi-turn, time-budgeted exchange
	SessionModeOneShot     SessionMode = "one_shot"    // single-output generation
)

type SessionStatus string

const (
	SessionCreated   SessionStatus = "created"
	SessionActive    SessionStatus = "active"
	SessionExhausted SessionStatus = "exhausted" // budget reached zero
	SessionExpired   SessionStatus = "expired"   // wall clock passed ExpiresAt
	SessionCancelled SessionStatus = "cancelled" // explicit, or cascaded from payment cancel
)

// Terminal reports whether the session can never tick again. Terminal rows
// are kept for history; they are deactivated, never deleted.
func (s SessionStatus) Terminal() bool {
	return s == SessionExhausted || s == SessionExpired || s == SessionCancelled
}

// SellableMinutes are the only durations a paid interactive session or a
// credit purchase may carry. The free tier is fixed and not client-settable.
var SellableMinutes = map[int]bool{5: true, 10: true, 30: true}

// FreeAllowanceSeconds is the fixed daily free budget.
const FreeAllowanceSeconds = 120

// Session is a bounded-duration interactive engagement or a single-shot
// generation request. Created only after payment confirmation or a
// successful credit debit.
type Session struct {
	ID         string // UUID
	UserID     string // UUID
	Category   string
	FormType   string // client form variant captured for regeneration
	Mode       SessionMode
	Status     SessionStatus
	BudgetSecs int  // remaining time; 0 for one-shot
	Active     bool // cleared by every terminal transition
	ExpiresAt  *time.Time
	Input      string // captured user input, needed for later regeneration
	UserData   string // captured user data handed to the generator
	ArtifactID *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Messages   []SessionMessage
}

// SessionMessage is one exchange within an interactive session.
type SessionMessage struct {
	SessionID string
	Role      string // "user" | "assistant"
	Content   string
	Timestamp time.Time
}

func NewSession(id, userID, category string, mode SessionMode, budgetSecs int, expiresAt *time.Time) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		UserID:     userID,
		Category:   category,
		Mode:       mode,
		Status:     SessionActive,
		BudgetSecs: budgetSecs,
		Active:     true,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Expired reports whether the wall clock has passed the session's expiry.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

func (s *Session) AddMessage(role, content string) {
	s.Messages = append(s.Messages, SessionMessage{
		SessionID: s.ID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	s.UpdatedAt = time.Now()
}

func (s *Session) RecentMessages(n int) []SessionMessage {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
