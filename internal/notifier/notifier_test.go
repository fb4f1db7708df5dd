package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubNotifier is a controllable Notifier for dispatcher tests.
type stubNotifier struct {
	name    string
	results []RecipientResult
	err     error

	mu    sync.Mutex
	calls int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Send(ctx context.Context, n *Notification) ([]RecipientResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *stubNotifier) Close() error { return nil }

func (s *stubNotifier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(DispatcherOptions{
		Timeout:   time.Second,
		RateLimit: RateLimitConfig{Enabled: false},
	})
}

func TestDispatchNoNotifiers(t *testing.T) {
	d := newTestDispatcher()

	result := d.Dispatch(context.Background(), &Notification{Title: "test"})
	if result.AnySucceeded() {
		t.Error("AnySucceeded = true with no notifiers")
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %d, want 1", len(result.Errors))
	}
}

func TestDispatchAggregatesResults(t *testing.T) {
	d := newTestDispatcher()
	d.Register(&stubNotifier{
		name: "stub",
		results: []RecipientResult{
			{Recipient: "r1"},
			{Recipient: "r2", Err: errors.New("unreachable")},
		},
	})

	result := d.Dispatch(context.Background(), &Notification{
		Title:      "test",
		Recipients: []string{"r1", "r2"},
	})

	if result.Attempted != 2 {
		t.Errorf("Attempted = %d, want 2", result.Attempted)
	}
	if result.Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1", result.Succeeded)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
	if !result.AnySucceeded() {
		t.Error("AnySucceeded = false, want true")
	}
}

func TestDispatchWholeSendFailure(t *testing.T) {
	d := newTestDispatcher()
	d.Register(&stubNotifier{name: "stub", err: errors.New("downstream unavailable")})

	result := d.Dispatch(context.Background(), &Notification{
		Title:      "test",
		Recipients: []string{"r1", "r2", "r3"},
	})

	if result.Succeeded != 0 {
		t.Errorf("Succeeded = %d, want 0", result.Succeeded)
	}
	if result.Failed != 3 {
		t.Errorf("Failed = %d, want 3 (all intended recipients)", result.Failed)
	}
	if result.AnySucceeded() {
		t.Error("AnySucceeded = true after whole-send failure")
	}
}

func TestDispatchFansOutToAllNotifiers(t *testing.T) {
	d := newTestDispatcher()
	a := &stubNotifier{name: "a", results: []RecipientResult{{}}}
	b := &stubNotifier{name: "b", results: []RecipientResult{{}}}
	d.Register(a)
	d.Register(b)

	result := d.Dispatch(context.Background(), &Notification{Title: "test"})

	if a.callCount() != 1 || b.callCount() != 1 {
		t.Errorf("call counts = %d/%d, want 1/1", a.callCount(), b.callCount())
	}
	if result.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", result.Succeeded)
	}
}

func TestDispatchOneFailingNotifierDoesNotBlockOthers(t *testing.T) {
	d := newTestDispatcher()
	d.Register(&stubNotifier{name: "bad", err: errors.New("broken")})
	d.Register(&stubNotifier{name: "good", results: []RecipientResult{{}}})

	result := d.Dispatch(context.Background(), &Notification{Title: "test"})

	if !result.AnySucceeded() {
		t.Error("AnySucceeded = false, want true via the good notifier")
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %d, want 1", len(result.Errors))
	}
}

func TestDispatchRateLimited(t *testing.T) {
	d := NewDispatcher(DispatcherOptions{
		Timeout:   time.Second,
		RateLimit: RateLimitConfig{MaxPerWindow: 1, Window: time.Minute, Enabled: true},
	})
	stub := &stubNotifier{name: "stub", results: []RecipientResult{{}}}
	d.Register(stub)

	first := d.Dispatch(context.Background(), &Notification{Title: "one"})
	if !first.AnySucceeded() {
		t.Fatal("first dispatch should succeed")
	}

	second := d.Dispatch(context.Background(), &Notification{Title: "two"})
	if second.AnySucceeded() {
		t.Error("second dispatch should be rate limited")
	}
	if len(second.Errors) != 1 || !errors.Is(second.Errors[0], ErrRateLimited) {
		t.Errorf("Errors = %v, want ErrRateLimited", second.Errors)
	}
	if stub.callCount() != 1 {
		t.Errorf("notifier called %d times, want 1", stub.callCount())
	}

	if stats := d.RateLimitStats(); stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
}

func TestDispatcherUnregister(t *testing.T) {
	d := newTestDispatcher()
	d.Register(&stubNotifier{name: "stub", results: []RecipientResult{{}}})

	if _, ok := d.Get("stub"); !ok {
		t.Fatal("notifier not registered")
	}

	d.Unregister("stub")
	if _, ok := d.Get("stub"); ok {
		t.Error("notifier still registered after Unregister")
	}
}
