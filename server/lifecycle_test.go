package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type blockingService struct {
	started atomic.Bool
	stop    chan struct{}
	once    sync.Once
	onStop  func()
}

func newBlockingService(onStop func()) *blockingService {
	return &blockingService{stop: make(chan struct{}), onStop: onStop}
}

func (s *blockingService) Start() error {
	s.started.Store(true)
	<-s.stop
	return nil
}

func (s *blockingService) Stop() {
	s.once.Do(func() {
		if s.onStop != nil {
			s.onStop()
		}
		close(s.stop)
	})
}

func TestLifecycle_StopsInReverseOrder(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))

	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
		}
	}
	first := newBlockingService(record("first"))
	second := newBlockingService(record("second"))
	lc.Add("first", first)
	lc.Add("second", second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return first.started.Load() && second.started.Load()
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestLifecycle_ServiceErrorShutsDown(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	healthy := newBlockingService(nil)
	lc.Add("healthy", healthy)
	lc.Add("broken", &FuncService{
		StartFn: func() error { return errors.New("bind: address in use") },
		StopFn:  func() {},
	})

	err := lc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service broken")
	select {
	case <-healthy.stop:
	default:
		t.Fatal("healthy service was not stopped")
	}
}
