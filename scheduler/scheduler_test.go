package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTickerFires(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count atomic.Int32
	s.AddTicker("tick", 10*time.Millisecond, func() {
		count.Add(1)
	})

	assert.Eventually(t, func() bool {
		return count.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRemoveStopsTicker(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count atomic.Int32
	s.AddTicker("tick", 10*time.Millisecond, func() {
		count.Add(1)
	})
	assert.Eventually(t, func() bool {
		return count.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	s.Remove("tick")
	after := count.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, count.Load(), after+1, "at most one in-flight tick after Remove")
	assert.Empty(t, s.ListTickers())
}

func TestReplaceTickerByName(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var first, second atomic.Int32
	s.AddTicker("job", time.Hour, func() { first.Add(1) })
	s.AddTicker("job", 10*time.Millisecond, func() { second.Add(1) })

	assert.Eventually(t, func() bool {
		return second.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, first.Load())
	assert.Equal(t, []string{"job"}, s.ListTickers())
}

func TestPanickingTaskKeepsTicking(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count atomic.Int32
	s.AddTicker("flaky", 10*time.Millisecond, func() {
		count.Add(1)
		panic("boom")
	})

	assert.Eventually(t, func() bool {
		return count.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestListTickersSorted(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	s.AddTicker("zebra", time.Hour, func() {})
	s.AddTicker("alpha", time.Hour, func() {})
	assert.Equal(t, []string{"alpha", "zebra"}, s.ListTickers())
}

func TestStopIdempotent(t *testing.T) {
	s := New(zap.NewNop())
	s.AddTicker("tick", time.Hour, func() {})
	s.Stop()
	s.Stop()
}
