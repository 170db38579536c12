package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
)

func staticSource(name string, s *Session, err error) SessionSource {
	return SessionSource{
		Name: name,
		Discover: func(ctx context.Context) (*Session, error) {
			return s, err
		},
	}
}

func blockingSource(name string) SessionSource {
	return SessionSource{
		Name: name,
		Discover: func(ctx context.Context) (*Session, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

func TestBootstrapFirstNonNilSourceWins(t *testing.T) {
	want := &Session{UserID: uuid.New(), AccessToken: "tok"}
	b := NewSessionBootstrapper(logger.NewNop(), []SessionSource{
		staticSource("oauth_code", nil, fmt.Errorf("no code present")),
		staticSource("stored_refresh", want, nil),
		staticSource("legacy_cookie", &Session{UserID: uuid.New()}, nil),
	}, BootstrapOptions{})
	defer b.Close()

	got, err := b.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got == nil || got.UserID != want.UserID {
		t.Fatalf("Resolve = %+v, want session from stored_refresh", got)
	}
	if b.State() != SessionStateReady {
		t.Fatalf("state = %v, want READY", b.State())
	}
}

func TestBootstrapAllSourcesFailSettlesNil(t *testing.T) {
	b := NewSessionBootstrapper(logger.NewNop(), []SessionSource{
		staticSource("oauth_code", nil, fmt.Errorf("exchange failed")),
		staticSource("stored_refresh", nil, nil),
	}, BootstrapOptions{})
	defer b.Close()

	got, err := b.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("Resolve = %+v, want nil session", got)
	}
	if b.State() != SessionStateReady {
		t.Fatalf("state = %v, want READY", b.State())
	}
}

func TestBootstrapHardDeadlineForcesReady(t *testing.T) {
	b := NewSessionBootstrapper(logger.NewNop(), []SessionSource{
		blockingSource("hung_exchange"),
	}, BootstrapOptions{Timeout: 50 * time.Millisecond})
	defer b.Close()

	start := time.Now()
	got, err := b.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("Resolve = %+v, want nil session after deadline", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Resolve took %v, should terminate near the 50ms deadline", elapsed)
	}
	if b.State() != SessionStateReady {
		t.Fatalf("state = %v, want READY", b.State())
	}
}

func TestBootstrapConcurrentResolveCollapses(t *testing.T) {
	var discoveries int32
	src := SessionSource{
		Name: "counting",
		Discover: func(ctx context.Context) (*Session, error) {
			atomic.AddInt32(&discoveries, 1)
			time.Sleep(20 * time.Millisecond)
			return &Session{UserID: uuid.New()}, nil
		},
	}
	b := NewSessionBootstrapper(logger.NewNop(), []SessionSource{src}, BootstrapOptions{})
	defer b.Close()

	var readyCount int32
	b.OnChange(func(state SessionState, s *Session) {
		if state == SessionStateReady {
			atomic.AddInt32(&readyCount, 1)
		}
	})

	var wg sync.WaitGroup
	results := make([]*Session, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := b.Resolve(context.Background())
			if err != nil {
				t.Errorf("Resolve returned error: %v", err)
			}
			results[i] = s
		}(i)
	}
	wg.Wait()

	if n := atomic.LoadInt32(&discoveries); n != 1 {
		t.Fatalf("discovery ran %d times, want 1", n)
	}
	if n := atomic.LoadInt32(&readyCount); n != 1 {
		t.Fatalf("READY notified %d times, want 1", n)
	}
	for i, s := range results {
		if s == nil || s.UserID != results[0].UserID {
			t.Fatalf("result %d = %+v, want the single resolved session", i, s)
		}
	}
}

func TestBootstrapSignOutForcesReadyNil(t *testing.T) {
	b := NewSessionBootstrapper(logger.NewNop(), []SessionSource{
		blockingSource("hung_exchange"),
	}, BootstrapOptions{Timeout: 5 * time.Second})
	defer b.Close()

	done := make(chan *Session, 1)
	go func() {
		s, _ := b.Resolve(context.Background())
		done <- s
	}()

	// Let discovery start before signing out.
	time.Sleep(20 * time.Millisecond)
	b.SignOut()

	select {
	case s := <-done:
		if s != nil {
			t.Fatalf("Resolve = %+v, want nil after SignOut", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Resolve did not return promptly after SignOut")
	}
	if b.State() != SessionStateReady {
		t.Fatalf("state = %v, want READY", b.State())
	}
	if b.Current() != nil {
		t.Fatalf("Current = %+v, want nil", b.Current())
	}
}

func TestBootstrapListenerNotCalledAfterClose(t *testing.T) {
	b := NewSessionBootstrapper(logger.NewNop(), []SessionSource{
		staticSource("stored_refresh", &Session{UserID: uuid.New()}, nil),
	}, BootstrapOptions{})

	var calls int32
	b.OnChange(func(state SessionState, s *Session) {
		atomic.AddInt32(&calls, 1)
	})
	b.Close()

	if _, err := b.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("listener called %d times after Close, want 0", n)
	}
}
