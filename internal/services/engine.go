package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/estoque-backend/internal/inventory"
	"github.com/Ananth-NQI/estoque-backend/internal/logging"
	"github.com/Ananth-NQI/estoque-backend/internal/models"
	"github.com/Ananth-NQI/estoque-backend/internal/storage"
	"github.com/Ananth-NQI/estoque-backend/internal/utils"
)

// Engine turns stored inbound messages into stock mutations and replies.
// Each message is handled once: the handler's writes and the processed flag
// commit in the same transaction.
type Engine struct {
	store      storage.Store
	sessions   *SessionManager
	dispatcher Dispatcher
	locks      *keyedMutex
	logger     *zap.Logger
	now        func() time.Time
	handle     map[Intent]commandHandler
}

// Option customizes an Engine
type Option func(*engineOptions)

type engineOptions struct {
	now        func() time.Time
	sessionTTL time.Duration
}

// WithClock replaces the wall clock, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// WithSessionTTL sets how long a dialogue waits for its next answer
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *engineOptions) { o.sessionTTL = ttl }
}

// NewEngine creates the message processing engine
func NewEngine(store storage.Store, dispatcher Dispatcher, logger *zap.Logger, opts ...Option) *Engine {
	o := engineOptions{
		now:        func() time.Time { return time.Now().UTC() },
		sessionTTL: DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger = logging.Component(logger, "engine")

	sessions := NewSessionManager(store, o.sessionTTL, logger)
	sessions.now = o.now

	e := &Engine{
		store:      store,
		sessions:   sessions,
		dispatcher: dispatcher,
		locks:      newKeyedMutex(),
		logger:     logger,
		now:        o.now,
	}
	e.handle = e.handlers()
	return e
}

// Sessions exposes the session manager bound to the engine's store
func (e *Engine) Sessions() *SessionManager { return e.sessions }

// Process handles one stored inbound message: classify, run the owning
// handler, record the reply and send it. A message that is already
// processed is a no-op. Only persistence failures are returned; the user
// still receives a generic failure reply in that case.
func (e *Engine) Process(ctx context.Context, messageID string) error {
	msg, err := e.store.GetMessage(ctx, messageID)
	if err != nil {
		return persistenceError("load message", err)
	}
	if msg.Processed {
		e.logger.Debug("message already processed", zap.String("message_id", messageID))
		return nil
	}

	held := []string{pairKey(msg.UserID, msg.Sender)}
	for round := 1; ; round++ {
		more, err := e.processHolding(ctx, messageID, held, round == maxLockRounds)
		if more == "" {
			return err
		}
		held = append(held, more)
	}
}

// maxLockRounds bounds how often a pass restarts to take another pair lock
const maxLockRounds = 3

func pairKey(userID, sender string) string {
	return userID + "|" + sender
}

// lockNeededError aborts a pass that would touch a session of a pair whose
// lock it does not hold
type lockNeededError struct {
	key string
}

func (e *lockNeededError) Error() string {
	return "engine: pass needs the lock of " + e.key
}

// processHolding runs one pass with the given pair locks held. It returns
// the key of a missing lock when the pass must restart holding it too.
func (e *Engine) processHolding(ctx context.Context, messageID string, held []string, lastRound bool) (string, error) {
	unlock := e.locks.LockAll(held...)
	defer unlock()

	// another invocation may have finished while we waited
	msg, err := e.store.GetMessage(ctx, messageID)
	if err != nil {
		return "", persistenceError("load message", err)
	}
	if msg.Processed {
		return "", nil
	}

	log := e.logger.With(
		zap.String("message_id", msg.ID),
		zap.String("user_id", msg.UserID),
		zap.String("sender", utils.MaskPhone(msg.Sender)))

	reply, err := e.execute(ctx, msg, held, log)
	var needed *lockNeededError
	if errors.As(err, &needed) {
		if !lastRound {
			log.Debug("restarting to lock the session owner", zap.String("lock", needed.key))
			return needed.key, nil
		}
		err = newError(CodePersistence, "session owner kept changing", err)
	}

	switch {
	case errors.Is(err, storage.ErrAlreadyProcessed):
		log.Info("duplicate invocation lost the processed flag, mutation rolled back")
		return "", nil
	case err != nil:
		log.Error("message processing failed", zap.Error(err))
		if markErr := e.store.MarkMessageProcessed(ctx, msg.ID, GenericFailureMessage, e.now()); markErr != nil && !errors.Is(markErr, storage.ErrAlreadyProcessed) {
			log.Error("could not record failure reply", zap.Error(markErr))
		}
		e.deliver(ctx, msg, GenericFailureMessage, log)
		return "", err
	}

	e.deliver(ctx, msg, reply, log)
	return "", nil
}

// execute runs the handler and marks the message processed in one transaction
func (e *Engine) execute(ctx context.Context, msg *models.InboundMessage, held []string, log *zap.Logger) (string, error) {
	var reply string
	err := e.store.Transaction(ctx, func(tx storage.Store) error {
		cc := &commandContext{
			store:    tx,
			sessions: e.sessions.WithStore(tx),
			msg:      msg,
			logger:   log,
		}

		cmd, err := e.classify(ctx, cc)
		if err != nil {
			return err
		}
		// a fallback continuation writes another sender's session
		if cmd.Intent == IntentFallbackContinue {
			if key := pairKey(cmd.Session.UserID, cmd.Session.Sender); !slices.Contains(held, key) {
				return &lockNeededError{key: key}
			}
		}
		cc.cmd = cmd
		cc.logger = log.With(zap.String("intent", string(cmd.Intent)))

		r, err := e.handle[cmd.Intent](ctx, cc)
		if err != nil {
			text, ok := userReply(err)
			if !ok {
				return err
			}
			cc.logger.Info("command rejected", zap.Error(err))
			r = text
		}
		reply = r

		if err := tx.MarkMessageProcessed(ctx, msg.ID, reply, e.now()); err != nil {
			if errors.Is(err, storage.ErrAlreadyProcessed) {
				return err
			}
			return persistenceError("mark processed", err)
		}
		return nil
	})
	if err != nil {
		var needed *lockNeededError
		if errors.Is(err, storage.ErrAlreadyProcessed) || errors.As(err, &needed) {
			return "", err
		}
		var engineErr *Error
		if !errors.As(err, &engineErr) {
			err = persistenceError("transaction", err)
		}
		return "", err
	}
	return reply, nil
}

// classify loads the session state the classifier needs and runs it
func (e *Engine) classify(ctx context.Context, cc *commandContext) (Command, error) {
	in := ClassifierInput{Raw: cc.msg.Content}

	session, err := cc.sessions.GetActive(ctx, cc.msg.UserID, cc.msg.Sender)
	if err != nil {
		return Command{}, persistenceError("load session", err)
	}
	in.Session = session

	if session == nil && inventory.IsNumericOnly(cc.msg.Content) {
		if in.UserSessions, err = cc.sessions.ActiveForUser(ctx, cc.msg.UserID); err != nil {
			return Command{}, persistenceError("load user sessions", err)
		}
		if len(in.UserSessions) > 1 {
			cc.logger.Info("numeric reply matches several open sessions, not routing", zap.Int("sessions", len(in.UserSessions)))
		}
	}

	cmd := Classify(in)
	if cmd.Intent == IntentFallbackContinue {
		cc.logger.Info("numeric reply routed to a session of another sender",
			zap.String("session_id", cmd.Session.ID),
			zap.String("session_sender", utils.MaskPhone(cmd.Session.Sender)))
	}
	return cmd, nil
}

// deliver sends the reply and records the outcome. Failures are logged and
// never retried.
func (e *Engine) deliver(ctx context.Context, msg *models.InboundMessage, reply string, log *zap.Logger) {
	delivered := true
	if err := e.dispatcher.Send(ctx, msg.Sender, reply); err != nil {
		delivered = false
		log.Warn("reply not delivered", zap.Error(newError(CodeDelivery, "send reply", err)))
	}
	if err := e.store.RecordDelivery(ctx, msg.ID, delivered, e.now()); err != nil {
		log.Warn("could not record delivery outcome", zap.Error(err))
	}
}

// ProcessText stores a message and processes it synchronously, returning
// the recorded reply. Used by the development endpoint.
func (e *Engine) ProcessText(ctx context.Context, userID, sender, text string) (string, error) {
	msg := &models.InboundMessage{
		ID:         "local-" + uuid.NewString(),
		UserID:     userID,
		Sender:     sender,
		Content:    text,
		ReceivedAt: e.now(),
	}
	if _, err := e.store.CreateMessage(ctx, msg); err != nil {
		return "", persistenceError("store message", err)
	}
	if err := e.Process(ctx, msg.ID); err != nil {
		return GenericFailureMessage, err
	}

	stored, err := e.store.GetMessage(ctx, msg.ID)
	if err != nil {
		return "", persistenceError("load message", err)
	}
	return stored.ResponseText, nil
}

// SweepUnprocessed returns messages received before the cutoff that were
// never processed, oldest first
func (e *Engine) SweepUnprocessed(ctx context.Context, minAge time.Duration, limit int) ([]*models.InboundMessage, error) {
	msgs, err := e.store.GetUnprocessedMessages(ctx, e.now().Add(-minAge), limit)
	if err != nil {
		return nil, fmt.Errorf("load unprocessed messages: %w", err)
	}
	return msgs, nil
}
