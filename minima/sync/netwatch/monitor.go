// Package netwatch tracks whether the backend is reachable. It stands in for
// the browser's online/offline events: a periodic probe against the health
// endpoint, plus explicit transitions reported by callers whose requests fail
// at the transport level.
package netwatch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"minima/minima/utils/logging"

	"go.uber.org/zap"
)

type Monitor struct {
	probe    func(ctx context.Context) error
	interval time.Duration

	mu        sync.Mutex
	offline   bool
	checked   bool
	listeners []func(offline bool)

	stopOnce sync.Once
	stop     chan struct{}
}

// New builds a monitor probing healthURL.
func New(healthURL string, interval time.Duration) *Monitor {
	client := &http.Client{Timeout: 3 * time.Second}
	return NewWithProbe(func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, "GET", healthURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("health probe: %s", resp.Status)
		}
		return nil
	}, interval)
}

// NewWithProbe builds a monitor with a custom probe; tests use this.
func NewWithProbe(probe func(ctx context.Context) error, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start runs the initial check synchronously, then keeps probing in the
// background until ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.check(ctx)
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) check(ctx context.Context) {
	err := m.probe(ctx)
	m.SetOffline(err != nil)
}

// Offline reports the last observed reachability. Before the first check
// completes the monitor assumes online, matching a browser's default.
func (m *Monitor) Offline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offline
}

// SetOffline records a transition and notifies listeners when the value
// actually changed. Callers report transport failures through this so a dead
// network is noticed before the next scheduled probe.
func (m *Monitor) SetOffline(offline bool) {
	m.mu.Lock()
	changed := !m.checked || m.offline != offline
	m.offline = offline
	m.checked = true
	listeners := make([]func(bool), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if !changed {
		return
	}
	logging.AppLogger.Info("network reachability changed", zap.Bool("offline", offline))
	for _, fn := range listeners {
		fn(offline)
	}
}

// OnChange registers a listener invoked on every reachability transition.
func (m *Monitor) OnChange(fn func(offline bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}
