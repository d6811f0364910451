package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSweeper struct {
	mu         sync.Mutex
	calls      int
	retentions []time.Duration
	err        error
	swept      chan struct{}
}

func newFakeSweeper() *fakeSweeper {
	return &fakeSweeper{swept: make(chan struct{}, 16)}
}

func (f *fakeSweeper) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	f.mu.Lock()
	f.calls++
	f.retentions = append(f.retentions, retention)
	f.mu.Unlock()

	select {
	case f.swept <- struct{}{}:
	default:
	}
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}

func (f *fakeSweeper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func waitForSweep(t *testing.T, f *fakeSweeper) {
	t.Helper()
	select {
	case <-f.swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run")
	}
}

func TestCleanupManager_SweepsOnStartAndInterval(t *testing.T) {
	sweeper := newFakeSweeper()
	cm := NewCleanupManager(sweeper, testLogger(), 10*time.Millisecond, 720*time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	waitForSweep(t, sweeper)
	waitForSweep(t, sweeper)

	cm.Stop()
	<-done

	assert.GreaterOrEqual(t, sweeper.callCount(), 2)
	sweeper.mu.Lock()
	assert.Equal(t, 720*time.Hour, sweeper.retentions[0])
	sweeper.mu.Unlock()
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	sweeper := newFakeSweeper()
	sweeper.err = errors.New("db down")
	cm := NewCleanupManager(sweeper, testLogger(), time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	waitForSweep(t, sweeper)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup manager did not stop")
	}
	assert.Equal(t, 1, sweeper.callCount())
}

func TestCleanupManager_StopIsIdempotent(t *testing.T) {
	cm := NewCleanupManager(newFakeSweeper(), testLogger(), time.Hour, time.Hour)
	cm.Stop()
	assert.NotPanics(t, cm.Stop)
}
