// File: internal/usecase/session_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"paysession/internal/domain"
	"paysession/internal/domain/model"
	"paysession/internal/domain/ports/adapter"
	"paysession/internal/domain/ports/repository"
	"paysession/internal/infra/logging"
	"paysession/internal/infra/metrics"
	"paysession/internal/infra/token"
)

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

// Locker serializes session creation per (user, category) across processes.
// The payment transition does not rely on it; it only trims duplicate
// create attempts before they reach the database.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// sessionWallClock is how long an interactive session may linger before the
// expiry sweeper finishes it regardless of remaining budget.
const sessionWallClock = 6 * time.Hour

type StartOneShotInput struct {
	UserID     string
	Category   string
	FormType   string
	Input      string
	UserData   string
	PaymentID  string
	GatewayRef string // drives polling when the payment is still pending
}

type StartInteractiveInput struct {
	UserID           string
	Category         string
	FormType         string
	PaymentID        string
	GatewayRef       string
	DurationMinutes  int  // required on the paid path; ignored on the free path
	UseFreeAllowance bool // exactly one of PaymentID / UseFreeAllowance
}

// ResultView is what a capability token unlocks: one session's metadata,
// its one-shot artifact, and recent interaction history.
type ResultView struct {
	Session  *model.Session
	Artifact string
	Messages []model.SessionMessage
}

type SessionUseCase interface {
	StartOneShot(ctx context.Context, in StartOneShotInput) (*model.Session, string, error)
	StartInteractive(ctx context.Context, in StartInteractiveInput) (*model.Session, string, error)
	// SendMessage runs one interactive exchange against the generator.
	SendMessage(ctx context.Context, sessionID, userID, message string) (string, error)
	// ConsumeTime is the consumption path's billing tick.
	ConsumeTime(ctx context.Context, sessionID, userID string, seconds int) (int, error)
	Cancel(ctx context.Context, sessionID, userID string) error
	// Result redeems a capability token. Regenerates the one-shot artifact
	// on demand when payment is confirmed but generation previously failed.
	Result(ctx context.Context, tokenString string) (*ResultView, error)
	// RegenerateArtifact retries generation for an empty paid session
	// without re-charging.
	RegenerateArtifact(ctx context.Context, sessionID string) error
}

type sessionUC struct {
	sessions  repository.SessionRepository
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	credits   repository.TimeCreditRepository
	confirm   ConfirmUseCase
	generator adapter.ContentGenerator
	tokens    *token.Issuer
	tm        repository.TransactionManager
	locker    Locker
	log       *zerolog.Logger
}

func NewSessionUseCase(
	sessions repository.SessionRepository,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	credits repository.TimeCreditRepository,
	confirm ConfirmUseCase,
	generator adapter.ContentGenerator,
	tokens *token.Issuer,
	tm repository.TransactionManager,
	locker Locker,
	logger *zerolog.Logger,
) *sessionUC {
	l := logger.With().Str("component", "SessionUC").Logger()
	return &sessionUC{
		sessions:  sessions,
		orders:    orders,
		payments:  payments,
		credits:   credits,
		confirm:   confirm,
		generator: generator,
		tokens:    tokens,
		tm:        tm,
		locker:    locker,
		log:       &l,
	}
}

// resolvePaidPayment settles the payment (polling if needed) and verifies
// the order behind it belongs to the requester.
func (u *sessionUC) resolvePaidPayment(ctx context.Context, userID, paymentID, gatewayRef string) (*model.Payment, *model.Order, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, nil, err
	}
	o, err := u.orders.FindByID(ctx, nil, p.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if o.UserID != userID {
		return nil, nil, domain.ErrAccessDenied
	}
	if p.Status == model.PaymentStatusCompleted {
		return p, o, nil
	}
	p, err = u.confirm.ResolvePayment(ctx, paymentID, gatewayRef)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != model.PaymentStatusCompleted {
		return nil, nil, domain.ErrPaymentNotConfirmed
	}
	return p, o, nil
}

func (u *sessionUC) StartOneShot(ctx context.Context, in StartOneShotInput) (*model.Session, string, error) {
	defer logging.TraceDuration(u.log, "SessionUC.StartOneShot")()
	if in.UserID == "" || in.Category == "" || in.PaymentID == "" {
		return nil, "", domain.ErrInvalidArgument
	}
	p, o, err := u.resolvePaidPayment(ctx, in.UserID, in.PaymentID, in.GatewayRef)
	if err != nil {
		return nil, "", err
	}

	s := model.NewSession(uuid.NewString(), in.UserID, in.Category, model.SessionModeOneShot, 0, nil)
	s.FormType = in.FormType
	s.Input = in.Input
	s.UserData = in.UserData

	// The session row, the payment join, and the order back-reference commit
	// together; generation happens after, outside the transaction.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.sessions.Save(ctx, tx, s); err != nil {
			return err
		}
		if err := u.payments.SaveSessionPayment(ctx, tx, &model.SessionPayment{
			SessionID: s.ID, PaymentID: p.ID, OrderID: o.ID, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return u.orders.SetMeta(ctx, tx, o.ID, model.OrderMetaSessionID, s.ID)
	})
	if err != nil {
		return nil, "", err
	}
	metrics.IncSessionCreated(string(model.SessionModeOneShot), "paid")

	// Generation failure never rolls the session back; the result endpoint
	// and the worker can retry without re-charging.
	if err := u.generateArtifact(ctx, s, o.ID); err != nil {
		u.log.Warn().Err(err).Str("session_id", s.ID).Msg("artifact generation failed; session persists for regeneration")
	}

	tok, err := u.mintToken(s)
	if err != nil {
		return nil, "", err
	}
	return s, tok, nil
}

func (u *sessionUC) StartInteractive(ctx context.Context, in StartInteractiveInput) (*model.Session, string, error) {
	defer logging.TraceDuration(u.log, "SessionUC.StartInteractive")()
	if in.UserID == "" || in.Category == "" {
		return nil, "", domain.ErrInvalidArgument
	}
	// Exactly one funding source, never both.
	if in.PaymentID != "" && in.UseFreeAllowance {
		return nil, "", domain.ErrInvalidArgument
	}
	if in.PaymentID == "" && !in.UseFreeAllowance {
		return nil, "", domain.ErrPriceQuoteRequired
	}

	if u.locker != nil {
		lockKey := "session_start:" + in.UserID + ":" + in.Category
		lockTok, err := u.locker.TryLock(ctx, lockKey, 10*time.Second)
		if err != nil {
			return nil, "", err
		}
		defer func() { _ = u.locker.Unlock(ctx, lockKey, lockTok) }()
	}

	// Idempotent re-entry: an active, unexpired session comes back unchanged
	// and nothing is charged.
	if existing, err := u.sessions.FindActiveByUserAndCategory(ctx, nil, in.UserID, in.Category); err == nil && existing != nil && !existing.Expired(time.Now()) {
		tok, err := u.mintToken(existing)
		if err != nil {
			return nil, "", err
		}
		return existing, tok, nil
	}

	if in.PaymentID != "" {
		return u.startInteractivePaid(ctx, in)
	}
	return u.startInteractiveFree(ctx, in)
}

func (u *sessionUC) startInteractivePaid(ctx context.Context, in StartInteractiveInput) (*model.Session, string, error) {
	if !model.SellableMinutes[in.DurationMinutes] {
		return nil, "", domain.ErrInvalidDuration
	}
	p, o, err := u.resolvePaidPayment(ctx, in.UserID, in.PaymentID, in.GatewayRef)
	if err != nil {
		return nil, "", err
	}

	expires := time.Now().Add(sessionWallClock)
	s := model.NewSession(uuid.NewString(), in.UserID, in.Category, model.SessionModeInteractive, in.DurationMinutes*60, &expires)
	s.FormType = in.FormType

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.sessions.Save(ctx, tx, s); err != nil {
			return err
		}
		if err := u.payments.SaveSessionPayment(ctx, tx, &model.SessionPayment{
			SessionID: s.ID, PaymentID: p.ID, OrderID: o.ID, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return u.orders.SetMeta(ctx, tx, o.ID, model.OrderMetaSessionID, s.ID)
	})
	if err != nil {
		return nil, "", err
	}
	metrics.IncSessionCreated(string(model.SessionModeInteractive), "paid")

	tok, err := u.mintToken(s)
	if err != nil {
		return nil, "", err
	}
	return s, tok, nil
}

func (u *sessionUC) startInteractiveFree(ctx context.Context, in StartInteractiveInput) (*model.Session, string, error) {
	// The free tier is not client-configurable: budget is fixed at 120s no
	// matter what duration the request carried.
	expires := time.Now().Add(sessionWallClock)
	s := model.NewSession(uuid.NewString(), in.UserID, in.Category, model.SessionModeInteractive, model.FreeAllowanceSeconds, &expires)
	s.FormType = in.FormType

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		flipped, err := u.credits.MarkFreeUsed(ctx, tx, in.UserID, time.Now())
		if err != nil {
			return err
		}
		if !flipped {
			return domain.ErrFreeAllowanceUsed
		}
		return u.sessions.Save(ctx, tx, s)
	})
	if err != nil {
		return nil, "", err
	}
	metrics.IncSessionCreated(string(model.SessionModeInteractive), "free")

	tok, err := u.mintToken(s)
	if err != nil {
		return nil, "", err
	}
	return s, tok, nil
}

func (u *sessionUC) SendMessage(ctx context.Context, sessionID, userID, message string) (string, error) {
	defer logging.TraceDuration(u.log, "SessionUC.SendMessage")()
	s, err := u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return "", err
	}
	if s.UserID != userID {
		return "", domain.ErrAccessDenied
	}
	if !s.Active || s.Status != model.SessionActive {
		return "", domain.ErrSessionNotActive
	}
	if s.Expired(time.Now()) {
		_ = u.sessions.Finish(ctx, nil, s.ID, model.SessionExpired)
		return "", domain.ErrSessionNotActive
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", domain.ErrInvalidArgument
	}

	// Prior turns ride along so the generator keeps conversational context.
	prior, err := u.sessions.ListMessages(ctx, nil, s.ID, 20)
	if err != nil {
		return "", err
	}
	s.Messages = prior

	s.AddMessage("user", message)
	if err := u.sessions.SaveMessage(ctx, nil, &s.Messages[len(s.Messages)-1]); err != nil {
		return "", err
	}

	recent := s.RecentMessages(11)
	recent = recent[:len(recent)-1] // the new turn travels as Input, not History
	history := make([]adapter.Turn, 0, len(recent))
	for _, m := range recent {
		history = append(history, adapter.Turn{Role: m.Role, Content: m.Content})
	}

	reply, err := u.generator.Generate(ctx, adapter.GenerateRequest{
		Category: s.Category,
		Input:    message,
		UserData: s.UserData,
		History:  history,
	})
	if err != nil {
		metrics.IncGeneration(u.generator.Name(), "error")
		return "", domain.ErrGenerationFailed
	}
	metrics.IncGeneration(u.generator.Name(), "ok")

	s.AddMessage("assistant", reply)
	if err := u.sessions.SaveMessage(ctx, nil, &s.Messages[len(s.Messages)-1]); err != nil {
		return "", err
	}
	return reply, nil
}

// ConsumeTime applies a billing tick with the same atomic-update
// discipline as the confirmation transition; a budget reaching zero
// finishes the session.
func (u *sessionUC) ConsumeTime(ctx context.Context, sessionID, userID string, seconds int) (int, error) {
	if seconds <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	s, err := u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return 0, err
	}
	if s.UserID != userID {
		return 0, domain.ErrAccessDenied
	}
	remaining, err := u.sessions.ConsumeBudget(ctx, nil, sessionID, seconds)
	if err != nil {
		return 0, err
	}
	if remaining == 0 {
		if err := u.sessions.Finish(ctx, nil, sessionID, model.SessionExhausted); err != nil {
			return 0, err
		}
		metrics.IncSessionFinished(string(model.SessionExhausted))
	}
	return remaining, nil
}

func (u *sessionUC) Cancel(ctx context.Context, sessionID, userID string) error {
	s, err := u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return err
	}
	if s.UserID != userID {
		return domain.ErrAccessDenied
	}
	if s.Status.Terminal() {
		return nil
	}
	if err := u.sessions.Finish(ctx, nil, sessionID, model.SessionCancelled); err != nil {
		return err
	}
	metrics.IncSessionFinished(string(model.SessionCancelled))
	return nil
}

func (u *sessionUC) Result(ctx context.Context, tokenString string) (*ResultView, error) {
	defer logging.TraceDuration(u.log, "SessionUC.Result")()
	claims, err := u.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	s, err := u.sessions.FindByID(ctx, nil, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != claims.UserID {
		return nil, domain.ErrAccessDenied
	}

	// Paid one-shot with no artifact yet: generate on demand.
	if s.Mode == model.SessionModeOneShot && s.ArtifactID == nil {
		if sp, err := u.payments.FindSessionPaymentBySession(ctx, nil, s.ID); err == nil {
			if p, err := u.payments.FindByID(ctx, nil, sp.PaymentID); err == nil && p.Status == model.PaymentStatusCompleted {
				if err := u.generateArtifact(ctx, s, sp.OrderID); err != nil {
					u.log.Warn().Err(err).Str("session_id", s.ID).Msg("on-demand regeneration failed")
				}
			}
		}
	}

	msgs, err := u.sessions.ListMessages(ctx, nil, s.ID, 20)
	if err != nil {
		return nil, err
	}
	view := &ResultView{Session: s, Messages: msgs}
	if s.ArtifactID != nil {
		// The artifact is the newest assistant message of a one-shot session.
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == "assistant" {
				view.Artifact = msgs[i].Content
				break
			}
		}
	}
	return view, nil
}

func (u *sessionUC) RegenerateArtifact(ctx context.Context, sessionID string) error {
	s, err := u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return err
	}
	if s.Mode != model.SessionModeOneShot || s.ArtifactID != nil {
		return nil
	}
	sp, err := u.payments.FindSessionPaymentBySession(ctx, nil, s.ID)
	if err != nil {
		return err
	}
	p, err := u.payments.FindByID(ctx, nil, sp.PaymentID)
	if err != nil {
		return err
	}
	if p.Status != model.PaymentStatusCompleted {
		return domain.ErrPaymentNotConfirmed
	}
	return u.generateArtifact(ctx, s, sp.OrderID)
}

// generateArtifact runs the collaborator and links the result from both
// sides (session row and order metadata). Failures propagate to the caller
// but never undo committed state.
func (u *sessionUC) generateArtifact(ctx context.Context, s *model.Session, orderID string) error {
	content, err := u.generator.Generate(ctx, adapter.GenerateRequest{
		Category: s.Category,
		Input:    s.Input,
		UserData: s.UserData,
	})
	if err != nil {
		metrics.IncGeneration(u.generator.Name(), "error")
		return domain.ErrGenerationFailed
	}
	metrics.IncGeneration(u.generator.Name(), "ok")

	artifactID := uuid.NewString()
	if err := u.sessions.SaveMessage(ctx, nil, &model.SessionMessage{
		SessionID: s.ID, Role: "assistant", Content: content, Timestamp: time.Now(),
	}); err != nil {
		return err
	}
	if err := u.sessions.SetArtifact(ctx, nil, s.ID, artifactID); err != nil {
		return err
	}
	s.ArtifactID = &artifactID
	return u.orders.SetMeta(ctx, nil, orderID, model.OrderMetaArtifactID, artifactID)
}

func (u *sessionUC) mintToken(s *model.Session) (string, error) {
	return u.tokens.Sign(token.ResultClaims{
		SessionID: s.ID,
		UserID:    s.UserID,
		Category:  s.Category,
		FormType:  s.FormType,
		Mode:      string(s.Mode),
	})
}
