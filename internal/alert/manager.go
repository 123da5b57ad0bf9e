// Package alert manages the lifecycle of trading alerts: creation with
// cooldown-based deduplication, time-based expiry, and handoff to external
// sinks.
package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tickflow/internal/series"
)

// Status of an alert. Active alerts transition to Expired via SweepExpired
// and are never reopened.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

// Alert is a persisted, time-bounded notification derived from a
// high-confidence signal.
type Alert struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Direction   string    `json:"direction"`
	Price       float64   `json:"price"`
	Confidence  float64   `json:"confidence"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Status      Status    `json:"status"`
}

// DefaultCooldown is the minimum time between two alerts of the same
// (type, direction).
const DefaultCooldown = 30 * time.Second

// Manager owns the active alert set and a bounded history.
// Linear-scan dedup is fine at this alert volume.
type Manager struct {
	mu       sync.Mutex
	active   []Alert
	history  *series.Buffer[Alert]
	cooldown time.Duration
	now      func() time.Time

	// OnAlert is invoked fire-and-forget for every created alert (optional).
	OnAlert func(Alert)
	// OnExpired is invoked for every alert removed by SweepExpired (optional).
	OnExpired func(Alert)
	// OnSuppressed is invoked when a duplicate alert is rejected (optional).
	OnSuppressed func()
}

// NewManager creates a Manager keeping historyCap alerts of history.
func NewManager(historyCap int) (*Manager, error) {
	hist, err := series.New[Alert](historyCap)
	if err != nil {
		return nil, fmt.Errorf("alert: %w", err)
	}
	return &Manager{
		history:  hist,
		cooldown: DefaultCooldown,
		now:      time.Now,
	}, nil
}

// SetClock overrides the time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// AddAlert creates a new alert expiring after expiryMinutes. If an active
// alert with the same (type, direction) was created within the cooldown, the
// new alert is rejected and nil is returned with no mutation.
func (m *Manager) AddAlert(alertType, direction string, price, confidence float64, description string, expiryMinutes int) *Alert {
	m.mu.Lock()
	now := m.now()

	if m.isDuplicate(alertType, direction, now) {
		suppressed := m.OnSuppressed
		m.mu.Unlock()
		if suppressed != nil {
			suppressed()
		}
		return nil
	}

	a := Alert{
		ID:          uuid.NewString()[:8],
		Type:        alertType,
		Direction:   direction,
		Price:       price,
		Confidence:  confidence,
		Description: description,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(expiryMinutes) * time.Minute),
		Status:      StatusActive,
	}
	m.active = append(m.active, a)
	m.history.Append(a)
	onAlert := m.OnAlert
	m.mu.Unlock()

	if onAlert != nil {
		onAlert(a)
	}
	return &a
}

// isDuplicate reports whether an active alert with the same type and
// direction was created within the cooldown window. Caller holds m.mu.
func (m *Manager) isDuplicate(alertType, direction string, now time.Time) bool {
	cutoff := now.Add(-m.cooldown)
	for i := range m.active {
		a := &m.active[i]
		if a.CreatedAt.After(cutoff) && a.Type == alertType && a.Direction == direction {
			return true
		}
	}
	return false
}

// ListActive returns alerts that have not yet expired. Pure query: expired
// entries are filtered from the result but state is not mutated; removal
// happens only in SweepExpired.
func (m *Manager) ListActive() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]Alert, 0, len(m.active))
	for _, a := range m.active {
		if now.Before(a.ExpiresAt) {
			out = append(out, a)
		}
	}
	return out
}

// SweepExpired transitions alerts past their expiry to Expired, removes them
// from the active set, and returns them. Invoked by a periodic scheduler.
func (m *Manager) SweepExpired() []Alert {
	m.mu.Lock()

	now := m.now()
	var expired []Alert
	remaining := m.active[:0]
	for _, a := range m.active {
		if now.Before(a.ExpiresAt) {
			remaining = append(remaining, a)
			continue
		}
		a.Status = StatusExpired
		expired = append(expired, a)
	}
	m.active = remaining
	onExpired := m.OnExpired
	m.mu.Unlock()

	if onExpired != nil {
		for _, a := range expired {
			onExpired(a)
		}
	}
	return expired
}

// History returns the most recent n alerts ever created (active or expired).
func (m *Manager) History(n int) []Alert {
	return m.history.LastN(n)
}
