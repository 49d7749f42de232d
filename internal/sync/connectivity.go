package sync

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor reports platform reachability and announces edge-triggered
// transitions between online and offline.
type Monitor interface {
	IsOnline() bool
	// OnConnectionChange registers a callback invoked on every transition.
	// The returned function unregisters it.
	OnConnectionChange(fn func(online bool)) (unsubscribe func())
}

// ProbeMonitor implements Monitor by periodically issuing a HEAD request
// against the remote endpoint. Any HTTP response counts as reachable; only
// transport errors flip the state to offline.
type ProbeMonitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *zap.Logger

	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int

	stopCh  chan struct{}
	done    chan struct{}
	started bool
}

// NewProbeMonitor creates a monitor probing the given URL. The monitor
// starts optimistic (online) until the first probe says otherwise.
func NewProbeMonitor(url string, interval time.Duration, logger *zap.Logger) *ProbeMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProbeMonitor{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger.Named("connectivity"),
		online:   true,
		subs:     make(map[int]func(bool)),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the probe loop.
func (m *ProbeMonitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		m.setOnline(m.probe())
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.setOnline(m.probe())
			}
		}
	}()
}

// Stop terminates the probe loop and waits for it to exit.
func (m *ProbeMonitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	close(m.stopCh)
	<-m.done
}

// IsOnline returns the last observed reachability state.
func (m *ProbeMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnConnectionChange registers an edge-triggered transition callback.
func (m *ProbeMonitor) OnConnectionChange(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *ProbeMonitor) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// setOnline records the new state and fires callbacks on a transition.
func (m *ProbeMonitor) setOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	callbacks := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		callbacks = append(callbacks, fn)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed", zap.Bool("online", online))
	for _, fn := range callbacks {
		fn(online)
	}
}
