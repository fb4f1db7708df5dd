// Package notifier provides outbound notification dispatching for delivery
// alerts. Channel fan-out (email/sms/in_app) happens in the downstream
// admin-notification function, not here: a Notifier delivers one structured
// notification and reports success per recipient.
package notifier

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Notification priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Notification is the payload handed to the downstream dispatcher.
type Notification struct {
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Priority   string         `json:"priority"`
	Recipients []string       `json:"recipient_ids,omitempty"`
	Channels   []string       `json:"channels,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RecipientResult reports the outcome for one recipient.
type RecipientResult struct {
	Recipient string
	Err       error
}

// Notifier is the interface for notification backends.
type Notifier interface {
	// Name returns the notifier name (e.g., "webhook", "log").
	Name() string
	// Send delivers a notification and returns per-recipient results. A
	// non-nil error means the whole send failed and no recipient was
	// reached.
	Send(ctx context.Context, n *Notification) ([]RecipientResult, error)
	// Close releases any resources.
	Close() error
}

// ErrRateLimited is returned when a notification is dropped due to rate limiting.
var ErrRateLimited = fmt.Errorf("notification rate limited")

// DispatchResult aggregates a dispatch across notifiers and recipients.
type DispatchResult struct {
	Attempted int
	Succeeded int
	Failed    int
	Errors    []error
}

// AnySucceeded reports whether at least one recipient was notified. A
// dispatch with no explicit recipients counts as succeeded when any notifier
// accepted it.
func (r *DispatchResult) AnySucceeded() bool {
	return r.Succeeded > 0
}

// Dispatcher fans a notification out to the registered notifiers with a
// bounded timeout, so one unresponsive downstream cannot stall a batch.
type Dispatcher struct {
	mu          sync.RWMutex
	notifiers   map[string]Notifier
	rateLimiter *RateLimiter
	timeout     time.Duration
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Timeout bounds a single Dispatch call. Default 15s.
	Timeout time.Duration
	// RateLimit configures notification rate limiting.
	RateLimit RateLimitConfig
}

// DefaultDispatcherOptions returns default dispatcher options.
func DefaultDispatcherOptions() DispatcherOptions {
	return DispatcherOptions{
		Timeout:   15 * time.Second,
		RateLimit: DefaultRateLimitConfig(),
	}
}

// NewDispatcher creates a dispatcher with the given options.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Dispatcher{
		notifiers:   make(map[string]Notifier),
		rateLimiter: NewRateLimiter(opts.RateLimit),
		timeout:     opts.Timeout,
	}
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Name()] = n
}

// Unregister removes a notifier from the dispatcher.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.notifiers, name)
}

// Get returns a notifier by name.
func (d *Dispatcher) Get(name string) (Notifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notifiers[name]
	return n, ok
}

// Dispatch sends a notification to all registered notifiers and waits for
// the results within the dispatcher timeout. Per-notifier sends run
// concurrently; the returned result aggregates recipient outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) *DispatchResult {
	result := &DispatchResult{}

	if d.rateLimiter != nil && !d.rateLimiter.Allow() {
		result.Errors = append(result.Errors, ErrRateLimited)
		return result
	}

	d.mu.RLock()
	notifiers := make([]Notifier, 0, len(d.notifiers))
	for _, nf := range d.notifiers {
		notifiers = append(notifiers, nf)
	}
	d.mu.RUnlock()

	if len(notifiers) == 0 {
		result.Errors = append(result.Errors, fmt.Errorf("no notifiers registered"))
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var resMu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for _, nf := range notifiers {
		g.Go(func() error {
			results, err := nf.Send(ctx, n)

			resMu.Lock()
			defer resMu.Unlock()

			if err != nil {
				// Whole send failed: every intended recipient counts failed.
				count := len(n.Recipients)
				if count == 0 {
					count = 1
				}
				result.Attempted += count
				result.Failed += count
				result.Errors = append(result.Errors, fmt.Errorf("%s: %w", nf.Name(), err))
				return nil
			}

			for _, rr := range results {
				result.Attempted++
				if rr.Err != nil {
					result.Failed++
					result.Errors = append(result.Errors, fmt.Errorf("%s: recipient %s: %w", nf.Name(), rr.Recipient, rr.Err))
				} else {
					result.Succeeded++
				}
			}
			return nil
		})
	}

	// Send errors are collected in the result, never propagated.
	if err := g.Wait(); err != nil {
		log.Printf("notification dispatch: %v", err)
	}

	return result
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// Close closes all registered notifiers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	d.notifiers = make(map[string]Notifier)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
