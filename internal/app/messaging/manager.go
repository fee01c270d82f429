package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	domain "github.com/Bonshal/swapspot/internal/domain/messaging"
)

// Manager owns the per-viewer store lifecycle: a store plus its badge poller
// come up at sign-in and are torn down unconditionally at sign-out, so pollers
// never accumulate across sign-in/sign-out cycles.
type Manager struct {
	Gateway      domain.Gateway
	Notifier     Notifier
	Logger       *slog.Logger
	PollInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*viewerSession
}

type viewerSession struct {
	store *Store
	stop  context.CancelFunc
	refs  int
}

// Acquire returns the viewer's store, creating it and starting its poller on
// first use. Concurrent sign-ins of the same viewer share one store and are
// reference-counted.
func (m *Manager) Acquire(viewerID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = make(map[string]*viewerSession)
	}
	if session, ok := m.sessions[viewerID]; ok {
		session.refs++
		return session.store
	}

	store := NewStore(m.Gateway, viewerID, m.Notifier, m.Logger)
	ctx, stop := context.WithCancel(context.Background())
	poller := &Poller{
		Store:    store,
		Interval: m.PollInterval,
		Authenticated: func() bool {
			return m.active(viewerID)
		},
		Logger: m.Logger,
	}
	go poller.Run(ctx)

	m.sessions[viewerID] = &viewerSession{store: store, stop: stop, refs: 1}
	if m.Logger != nil {
		m.Logger.Info("messaging session started", "viewer_id", viewerID)
	}
	return store
}

// Release drops one reference; the last release cancels the poller and
// forgets the store.
func (m *Manager) Release(viewerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[viewerID]
	if !ok {
		return
	}
	session.refs--
	if session.refs > 0 {
		return
	}
	session.stop()
	delete(m.sessions, viewerID)
	if m.Logger != nil {
		m.Logger.Info("messaging session ended", "viewer_id", viewerID)
	}
}

// Ensure returns the viewer's store like Acquire but without taking an extra
// reference when one already exists. Request handlers use it so a session that
// outlived a process restart gets its store back without skewing the refcount.
func (m *Manager) Ensure(viewerID string) *Store {
	m.mu.Lock()
	if session, ok := m.sessions[viewerID]; ok {
		m.mu.Unlock()
		return session.store
	}
	m.mu.Unlock()
	return m.Acquire(viewerID)
}

// SessionStarted and SessionEnded adapt the manager to the auth service's
// session hook, tying store lifetime to sign-in and sign-out.
func (m *Manager) SessionStarted(userID string) { m.Acquire(userID) }

func (m *Manager) SessionEnded(userID string) { m.Release(userID) }

// Store looks up an already-acquired store without creating one.
func (m *Manager) Store(viewerID string) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[viewerID]
	if !ok {
		return nil, false
	}
	return session.store, true
}

// RefreshViewer nudges an active viewer's unread refresh, used when a push
// event arrives ahead of the next poll tick. Viewers without a live session
// are ignored.
func (m *Manager) RefreshViewer(ctx context.Context, viewerID string) {
	store, ok := m.Store(viewerID)
	if !ok {
		return
	}
	if err := store.RefreshUnread(ctx); err != nil && m.Logger != nil {
		m.Logger.Debug("pushed unread refresh failed", "viewer_id", viewerID, "error", err)
	}
}

// Shutdown cancels every live poller.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for viewerID, session := range m.sessions {
		session.stop()
		delete(m.sessions, viewerID)
	}
}

func (m *Manager) active(viewerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[viewerID]
	return ok
}
