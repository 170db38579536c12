package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
)

// SessionState is the lifecycle of session discovery on an instance. It moves
// UNINITIALIZED -> INITIALIZING -> READY and never leaves READY.
type SessionState int32

const (
	SessionStateUninitialized SessionState = iota
	SessionStateInitializing
	SessionStateReady
)

func (s SessionState) String() string {
	switch s {
	case SessionStateInitializing:
		return "INITIALIZING"
	case SessionStateReady:
		return "READY"
	default:
		return "UNINITIALIZED"
	}
}

// Session is the resolved identity of a caller.
type Session struct {
	UserID       uuid.UUID
	AccessToken  string
	RefreshToken string
}

// SessionSource is one way of discovering an existing session. Sources are
// consulted in registration order; the first non-nil session wins. A source
// error never fails resolution, it just falls through to the next source.
type SessionSource struct {
	Name     string
	Discover func(ctx context.Context) (*Session, error)
}

type BootstrapOptions struct {
	// StorageRestricted marks client classes without durable local storage.
	// Their discovery deadline is much shorter since stored-token paths
	// cannot succeed anyway.
	StorageRestricted bool
	Timeout           time.Duration
}

const (
	bootstrapTimeout           = 5 * time.Second
	bootstrapTimeoutRestricted = 1500 * time.Millisecond
)

// SessionBootstrapper resolves at most one session per instance. Concurrent
// Resolve calls collapse onto a single discovery pass, and the pass always
// terminates: either a source produces a session, every source is exhausted,
// or the hard deadline forces READY with no session.
type SessionBootstrapper interface {
	Resolve(ctx context.Context) (*Session, error)
	State() SessionState
	Current() *Session
	SignOut()
	OnChange(fn func(state SessionState, s *Session))
	Close()
}

type sessionBootstrapper struct {
	log     *logger.Logger
	sources []SessionSource
	timeout time.Duration

	sf singleflight.Group

	mu       sync.Mutex
	state    SessionState
	session  *Session
	listener func(state SessionState, s *Session)
	closed   bool

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func NewSessionBootstrapper(log *logger.Logger, sources []SessionSource, opts BootstrapOptions) SessionBootstrapper {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = bootstrapTimeout
		if opts.StorageRestricted {
			timeout = bootstrapTimeoutRestricted
		}
	}
	return &sessionBootstrapper{
		log:     log.With("service", "SessionBootstrapper"),
		sources: sources,
		timeout: timeout,
		state:   SessionStateUninitialized,
	}
}

func (b *sessionBootstrapper) State() SessionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *sessionBootstrapper) Current() *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

func (b *sessionBootstrapper) OnChange(fn func(state SessionState, s *Session)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = fn
}

func (b *sessionBootstrapper) Resolve(ctx context.Context) (*Session, error) {
	b.mu.Lock()
	if b.state == SessionStateReady {
		s := b.session
		b.mu.Unlock()
		return s, nil
	}
	b.mu.Unlock()

	v, err, _ := b.sf.Do("resolve", func() (any, error) {
		b.mu.Lock()
		if b.state == SessionStateReady {
			s := b.session
			b.mu.Unlock()
			return s, nil
		}
		b.mu.Unlock()

		b.transition(SessionStateInitializing, nil)

		tctx, cancel := context.WithTimeout(ctx, b.timeout)
		b.cancelMu.Lock()
		b.cancel = cancel
		b.cancelMu.Unlock()
		defer cancel()

		resCh := make(chan *Session, 1)
		go func() {
			resCh <- b.discover(tctx)
		}()

		var resolved *Session
		select {
		case resolved = <-resCh:
		case <-tctx.Done():
			b.log.Warn("Session discovery hit hard deadline, settling with no session",
				"timeout", b.timeout.String())
		}

		b.transition(SessionStateReady, resolved)
		return b.Current(), nil
	})
	if err != nil {
		return nil, err
	}
	s, _ := v.(*Session)
	return s, nil
}

func (b *sessionBootstrapper) discover(ctx context.Context) *Session {
	for _, src := range b.sources {
		if ctx.Err() != nil {
			return nil
		}
		s, err := src.Discover(ctx)
		if err != nil {
			b.log.Warn("Session source failed, trying next", "source", src.Name, "error", err)
			continue
		}
		if s != nil {
			b.log.Info("Session discovered", "source", src.Name, "user_id", s.UserID)
			return s
		}
	}
	return nil
}

// transition moves to the given state and notifies the listener. READY is
// sticky: once reached, only the session payload may change (SignOut).
func (b *sessionBootstrapper) transition(state SessionState, s *Session) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if b.state == SessionStateReady {
		// READY is terminal. The only payload change allowed afterwards is
		// SignOut clearing the session; a late discovery result must not
		// resurrect one.
		if state != SessionStateReady || s != nil {
			b.mu.Unlock()
			return
		}
		if b.session == nil {
			b.mu.Unlock()
			return
		}
	}
	b.state = state
	b.session = s
	listener := b.listener
	b.mu.Unlock()

	if listener != nil {
		listener(state, s)
	}
}

// SignOut forces READY with no session and cancels any in-flight discovery.
func (b *sessionBootstrapper) SignOut() {
	b.cancelMu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.cancelMu.Unlock()

	b.transition(SessionStateReady, nil)
}

func (b *sessionBootstrapper) Close() {
	b.cancelMu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.cancelMu.Unlock()

	b.mu.Lock()
	b.closed = true
	b.listener = nil
	b.mu.Unlock()
}
