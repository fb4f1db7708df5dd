package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/voice2fire/pulsewatch/internal/models"
	"github.com/voice2fire/pulsewatch/internal/notifier"
	"github.com/voice2fire/pulsewatch/internal/storage"
)

func setupTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

// fakeNotifier records sent notifications and can be told to fail.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []*notifier.Notification
	fail bool
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Send(ctx context.Context, n *notifier.Notification) ([]notifier.RecipientResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("downstream unavailable")
	}
	f.sent = append(f.sent, n)
	if len(n.Recipients) == 0 {
		return []notifier.RecipientResult{{}}, nil
	}
	results := make([]notifier.RecipientResult, len(n.Recipients))
	for i, r := range n.Recipients {
		results[i] = notifier.RecipientResult{Recipient: r}
	}
	return results, nil
}

func (f *fakeNotifier) Close() error { return nil }

func (f *fakeNotifier) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testDispatcher(fake *fakeNotifier) *notifier.Dispatcher {
	d := notifier.NewDispatcher(notifier.DispatcherOptions{
		Timeout:   time.Second,
		RateLimit: notifier.RateLimitConfig{Enabled: false},
	})
	d.Register(fake)
	return d
}

// seedWindow inserts count delivery log records spread inside [start, end),
// the first `failed` of them as failures.
func seedWindow(t *testing.T, store storage.Storage, start, end time.Time, count, failed int) {
	t.Helper()

	span := end.Sub(start)
	records := make([]*models.DeliveryLogRecord, count)
	for i := range records {
		rec := &models.DeliveryLogRecord{
			Channel:   models.ChannelSMS,
			Status:    models.SendStatusSent,
			CreatedAt: start.Add(time.Duration(i) * span / time.Duration(count+1)),
		}
		if i < failed {
			rec.Status = models.SendStatusFailed
			rec.FailedReason = "carrier rejected"
		} else {
			rec.DeliveryStatus = models.DeliveryStatusDelivered
		}
		records[i] = rec
	}

	if err := store.DeliveryLogs().Insert(context.Background(), records); err != nil {
		t.Fatalf("seed delivery logs: %v", err)
	}
}

func TestRunAtInsufficientData(t *testing.T) {
	store := setupTestStorage(t)
	fake := &fakeNotifier{}

	now := time.Now()
	seedWindow(t, store, now.Add(-time.Hour), now, 5, 5)

	mon := New(store, nil, testDispatcher(fake), Config{})
	result, err := mon.RunAt(context.Background(), now)
	if err != nil {
		t.Fatalf("RunAt: %v", err)
	}

	if !result.InsufficientData {
		t.Error("InsufficientData = false, want true")
	}
	if result.Candidates != 0 || len(result.Created) != 0 {
		t.Errorf("classification ran on insufficient data: %+v", result)
	}
	if fake.sentCount() != 0 {
		t.Errorf("notifications sent on insufficient data: %d", fake.sentCount())
	}
}

func TestRunAtCreatesAlerts(t *testing.T) {
	store := setupTestStorage(t)
	fake := &fakeNotifier{}

	now := time.Now()
	// 40% failure rate: low_delivery_rate + high_failure_rate + error_pattern.
	seedWindow(t, store, now.Add(-time.Hour), now, 50, 20)

	mon := New(store, nil, testDispatcher(fake), Config{})
	result, err := mon.RunAt(context.Background(), now)
	if err != nil {
		t.Fatalf("RunAt: %v", err)
	}

	if len(result.Errors) != 0 {
		t.Fatalf("cycle errors: %v", result.Errors)
	}
	if len(result.Created) != 3 {
		t.Fatalf("created %d alerts, want 3", len(result.Created))
	}
	if result.NotifyFailures != 0 {
		t.Errorf("NotifyFailures = %d, want 0", result.NotifyFailures)
	}
	if fake.sentCount() != 3 {
		t.Errorf("sent %d notifications, want 3", fake.sentCount())
	}

	// Alerts are persisted with notify stamps.
	for _, created := range result.Created {
		got, err := store.Alerts().GetByID(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("reload alert: %v", err)
		}
		if got == nil {
			t.Fatalf("alert %s not persisted", created.ID)
		}
		if got.Resolved {
			t.Errorf("new alert %s is resolved", got.ID)
		}
		if got.EscalationLevel != 0 {
			t.Errorf("new alert %s at level %d, want 0", got.ID, got.EscalationLevel)
		}
		if !got.NotifySent {
			t.Errorf("alert %s missing notify stamp", got.ID)
		}
	}
}

func TestRunAtSuppressesDuplicates(t *testing.T) {
	store := setupTestStorage(t)
	fake := &fakeNotifier{}

	now := time.Now()
	seedWindow(t, store, now.Add(-time.Hour), now, 50, 20)

	mon := New(store, nil, testDispatcher(fake), Config{})

	first, err := mon.RunAt(context.Background(), now)
	if err != nil {
		t.Fatalf("first RunAt: %v", err)
	}
	if len(first.Created) == 0 {
		t.Fatal("first cycle created no alerts")
	}

	// Second cycle inside the cooldown: same anomalies, all suppressed.
	second, err := mon.RunAt(context.Background(), now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("second RunAt: %v", err)
	}
	if len(second.Created) != 0 {
		t.Errorf("second cycle created %d alerts, want 0", len(second.Created))
	}
	if second.Suppressed != second.Candidates {
		t.Errorf("Suppressed = %d, want %d", second.Suppressed, second.Candidates)
	}
}

func TestRunAtDedupIgnoresResolvedAlerts(t *testing.T) {
	store := setupTestStorage(t)
	fake := &fakeNotifier{}

	now := time.Now()
	seedWindow(t, store, now.Add(-time.Hour), now, 50, 20)

	mon := New(store, nil, testDispatcher(fake), Config{})

	first, err := mon.RunAt(context.Background(), now)
	if err != nil {
		t.Fatalf("first RunAt: %v", err)
	}

	for _, a := range first.Created {
		if err := store.Alerts().Resolve(context.Background(), a.ID, now); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}

	second, err := mon.RunAt(context.Background(), now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("second RunAt: %v", err)
	}
	if len(second.Created) != len(first.Created) {
		t.Errorf("second cycle created %d alerts, want %d", len(second.Created), len(first.Created))
	}
}

func TestRunAtNotifyFailureKeepsAlert(t *testing.T) {
	store := setupTestStorage(t)
	fake := &fakeNotifier{fail: true}

	now := time.Now()
	seedWindow(t, store, now.Add(-time.Hour), now, 50, 20)

	mon := New(store, nil, testDispatcher(fake), Config{})
	result, err := mon.RunAt(context.Background(), now)
	if err != nil {
		t.Fatalf("RunAt: %v", err)
	}

	if len(result.Created) == 0 {
		t.Fatal("no alerts created")
	}
	if result.NotifyFailures != len(result.Created) {
		t.Errorf("NotifyFailures = %d, want %d", result.NotifyFailures, len(result.Created))
	}

	// Alerts persist without the notify stamp.
	for _, created := range result.Created {
		got, err := store.Alerts().GetByID(context.Background(), created.ID)
		if err != nil || got == nil {
			t.Fatalf("reload alert: %v", err)
		}
		if got.NotifySent {
			t.Errorf("alert %s has notify stamp despite failed dispatch", got.ID)
		}
	}
}

func TestSetThresholds(t *testing.T) {
	store := setupTestStorage(t)
	mon := New(store, nil, testDispatcher(&fakeNotifier{}), Config{})

	custom := DefaultThresholds()
	custom.MinSampleSize = 100
	mon.SetThresholds(custom)

	if got := mon.Thresholds(); got.MinSampleSize != 100 {
		t.Errorf("MinSampleSize = %d, want 100", got.MinSampleSize)
	}
}

func TestThresholdsWatcherReload(t *testing.T) {
	store := setupTestStorage(t)
	mon := New(store, nil, testDispatcher(&fakeNotifier{}), Config{})

	path := writeThresholdsFile(t, "min_sample_size: 20\n")

	watcher, err := NewThresholdsWatcher(path, mon)
	if err != nil {
		t.Fatalf("NewThresholdsWatcher: %v", err)
	}
	defer watcher.Close()

	if got := mon.Thresholds(); got.MinSampleSize != 20 {
		t.Fatalf("initial MinSampleSize = %d, want 20", got.MinSampleSize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)

	if err := writeFile(path, "min_sample_size: 40\n"); err != nil {
		t.Fatalf("rewrite thresholds: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return mon.Thresholds().MinSampleSize == 40
	})

	// A broken rewrite keeps the last good thresholds.
	if err := writeFile(path, "delivery_rate_warn: [broken\n"); err != nil {
		t.Fatalf("rewrite thresholds: %v", err)
	}
	time.Sleep(500 * time.Millisecond)
	if got := mon.Thresholds(); got.MinSampleSize != 40 {
		t.Errorf("MinSampleSize after broken reload = %d, want 40", got.MinSampleSize)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
