package netwatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialCheckSetsState(t *testing.T) {
	m := NewWithProbe(func(ctx context.Context) error { return nil }, time.Hour)
	m.Start(context.Background())
	defer m.Stop()
	assert.False(t, m.Offline())

	down := NewWithProbe(func(ctx context.Context) error { return fmt.Errorf("unreachable") }, time.Hour)
	down.Start(context.Background())
	defer down.Stop()
	assert.True(t, down.Offline())
}

func TestSetOfflineNotifiesOnTransitionOnly(t *testing.T) {
	m := NewWithProbe(func(ctx context.Context) error { return nil }, time.Hour)

	var mu sync.Mutex
	var transitions []bool
	m.OnChange(func(offline bool) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, offline)
	})

	m.SetOffline(false)
	m.SetOffline(false) // no change, no notification
	m.SetOffline(true)
	m.SetOffline(true)
	m.SetOffline(false)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []bool{false, true, false}, transitions)
}

func TestProbeFlipRecovers(t *testing.T) {
	var mu sync.Mutex
	healthy := false
	probe := func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if healthy {
			return nil
		}
		return fmt.Errorf("still down")
	}

	m := NewWithProbe(probe, 10*time.Millisecond)
	m.Start(context.Background())
	defer m.Stop()
	assert.True(t, m.Offline())

	mu.Lock()
	healthy = true
	mu.Unlock()

	deadline := time.After(3 * time.Second)
	for m.Offline() {
		select {
		case <-deadline:
			t.Fatal("monitor never recovered")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
