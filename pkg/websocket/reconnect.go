package websocket

import (
	"sync"
	"time"
)

// ReconnectConfig holds the exponential backoff policy for reconnects.
// The delay actually waited is capped at FirstWaitCap; the stored delay
// doubles per failure up to MaxDelay.
type ReconnectConfig struct {
	InitialDelay time.Duration
	FirstWaitCap time.Duration
	MaxDelay     time.Duration
}

// ReconnectManager tracks backoff state for one connection.
type ReconnectManager struct {
	cfg     ReconnectConfig
	current time.Duration
	mu      sync.Mutex
}

// NewReconnectManager creates a reconnection manager with the given policy.
func NewReconnectManager(cfg ReconnectConfig) *ReconnectManager {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.FirstWaitCap <= 0 {
		cfg.FirstWaitCap = 30 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}

	return &ReconnectManager{
		cfg:     cfg,
		current: cfg.InitialDelay,
	}
}

// NextDelay returns how long to wait before the next attempt and advances
// the backoff: waited = min(current, FirstWaitCap), next = min(waited*2, MaxDelay).
func (rm *ReconnectManager) NextDelay() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	delay := rm.current
	if delay > rm.cfg.FirstWaitCap {
		delay = rm.cfg.FirstWaitCap
	}

	next := delay * 2
	if next > rm.cfg.MaxDelay {
		next = rm.cfg.MaxDelay
	}
	rm.current = next

	return delay
}

// Reset restores the backoff to the initial delay after a healthy connection.
func (rm *ReconnectManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.current = rm.cfg.InitialDelay
}
