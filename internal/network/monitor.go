// Package network tracks whether the sync server is reachable.
package network

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/logging"
)

// Prober answers whether the device can currently reach the server.
type Prober interface {
	Probe(ctx context.Context) (bool, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (bool, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) (bool, error) {
	return f(ctx)
}

// NetProber reports online when a non-loopback interface is up and the
// reachability URL answers with any HTTP response.
type NetProber struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client

	// Interfaces lists network interfaces; nil means net.Interfaces.
	Interfaces func() ([]net.Interface, error)
}

// NewNetProber creates a NetProber for url.
func NewNetProber(url string, timeout time.Duration) *NetProber {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &NetProber{
		URL:     url,
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Probe implements Prober.
func (p *NetProber) Probe(ctx context.Context) (bool, error) {
	up, err := p.interfaceUp()
	if err != nil || !up {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return true, nil
}

func (p *NetProber) interfaceUp() (bool, error) {
	list := p.Interfaces
	if list == nil {
		list = net.Interfaces
	}
	ifaces, err := list()
	if err != nil {
		return false, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0 {
			return true, nil
		}
	}
	return false, nil
}

// Monitor caches the connectivity state and notifies listeners on change.
// The state starts online so the first check that fails is a transition.
type Monitor struct {
	prober Prober

	mu       sync.Mutex
	online   bool
	nextID   int
	onOnline map[int]func()
	onChange map[int]func(bool)
}

// NewMonitor creates a Monitor using prober.
func NewMonitor(prober Prober) *Monitor {
	return &Monitor{
		prober:   prober,
		online:   true,
		onOnline: make(map[int]func()),
		onChange: make(map[int]func(bool)),
	}
}

// CheckOnlineStatus probes now, records the result and returns it. A probe
// error counts as offline.
func (m *Monitor) CheckOnlineStatus(ctx context.Context) bool {
	online, err := m.prober.Probe(ctx)
	if err != nil {
		logging.Debug("Connectivity probe failed", map[string]interface{}{"error": err.Error()})
		online = false
	}
	m.Observe(online)
	return online
}

// Observe records a connectivity notification. OnOnline listeners run once
// per offline to online transition; repeated online reports do nothing.
func (m *Monitor) Observe(online bool) {
	m.mu.Lock()
	was := m.online
	m.online = online
	if was == online {
		m.mu.Unlock()
		return
	}
	changed := make([]func(bool), 0, len(m.onChange))
	for _, fn := range m.onChange {
		changed = append(changed, fn)
	}
	var cameOnline []func()
	if online {
		cameOnline = make([]func(), 0, len(m.onOnline))
		for _, fn := range m.onOnline {
			cameOnline = append(cameOnline, fn)
		}
	}
	m.mu.Unlock()

	logging.Info("Connectivity changed", map[string]interface{}{
		"was_online": was,
		"is_online":  online,
	})
	for _, fn := range changed {
		fn(online)
	}
	for _, fn := range cameOnline {
		fn()
	}
}

// IsOnline returns the cached state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnOnline registers fn for offline to online transitions. The returned
// function unregisters it.
func (m *Monitor) OnOnline(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.onOnline[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.onOnline, id)
		m.mu.Unlock()
	}
}

// OnChange registers fn for every transition in either direction.
func (m *Monitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.onChange[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.onChange, id)
		m.mu.Unlock()
	}
}
