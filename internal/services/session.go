package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/estoque-backend/internal/models"
	"github.com/Ananth-NQI/estoque-backend/internal/storage"
)

// DefaultSessionTTL is how long a dialogue waits for the next answer
const DefaultSessionTTL = time.Hour

// SessionManager manages multi-turn dialogues on top of the store.
// Expired sessions are never returned; they are purged on the next write
// for the same user and by the maintenance job.
type SessionManager struct {
	store      storage.Store
	sessionTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewSessionManager creates a new session manager
func NewSessionManager(store storage.Store, sessionTTL time.Duration, logger *zap.Logger) *SessionManager {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		store:      store,
		sessionTTL: sessionTTL,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// WithStore returns a copy bound to another store, typically a transaction
func (sm *SessionManager) WithStore(store storage.Store) *SessionManager {
	c := *sm
	c.store = store
	return &c
}

// GetActive returns the newest unexpired session of the pair, or nil
func (sm *SessionManager) GetActive(ctx context.Context, userID, sender string) (*models.ChatSession, error) {
	session, err := sm.store.GetActiveSession(ctx, userID, sender, sm.now())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ActiveForUser returns every unexpired session of the user, across senders
func (sm *SessionManager) ActiveForUser(ctx context.Context, userID string) ([]*models.ChatSession, error) {
	return sm.store.GetActiveSessionsForUser(ctx, userID, sm.now())
}

// Start opens a dialogue, replacing whatever the pair had before
func (sm *SessionManager) Start(ctx context.Context, userID, sender, state, itemID string, dialogue map[string]string) (*models.ChatSession, error) {
	now := sm.now()
	session := &models.ChatSession{
		UserID:    userID,
		Sender:    sender,
		State:     state,
		ItemID:    itemID,
		Context:   copyContext(dialogue),
		CreatedAt: now,
		ExpiresAt: now.Add(sm.sessionTTL),
	}
	if err := sm.store.ReplaceSession(ctx, session, now); err != nil {
		return nil, err
	}

	sm.logger.Info("session started",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("state", state),
		zap.Time("expires_at", session.ExpiresAt))
	return session, nil
}

// Advance moves the session to a new state and merges values into its
// context. The expiry is left unchanged.
func (sm *SessionManager) Advance(ctx context.Context, session *models.ChatSession, state string, merge map[string]string) error {
	session.State = state
	if session.Context == nil {
		session.Context = map[string]string{}
	}
	for k, v := range merge {
		session.Context[k] = v
	}
	if err := sm.store.UpdateSession(ctx, session); err != nil {
		return err
	}

	sm.logger.Debug("session advanced", zap.String("session_id", session.ID), zap.String("state", state))
	return nil
}

// End deletes the session
func (sm *SessionManager) End(ctx context.Context, sessionID string) error {
	if err := sm.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	sm.logger.Debug("session ended", zap.String("session_id", sessionID))
	return nil
}

// PurgeExpired removes sessions whose expiry has passed
func (sm *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := sm.store.DeleteExpiredSessions(ctx, sm.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		sm.logger.Info("expired sessions purged", zap.Int64("count", n))
	}
	return n, nil
}

func copyContext(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
