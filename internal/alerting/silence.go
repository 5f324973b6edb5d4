// internal/alerting/silence.go
package alerting

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SilenceConfig configures a silence window
type SilenceConfig struct {
	RuleName  string    `json:"rule_name"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedBy string    `json:"created_by"`
	Comment   string    `json:"comment"`
}

// Silence suppresses announcements for a rule during a time window.
// The rule state machine still runs; only fan-out is muted.
type Silence struct {
	ID        string    `json:"id"`
	RuleName  string    `json:"rule_name"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedBy string    `json:"created_by"`
	Comment   string    `json:"comment"`
}

// CreateSilence creates a silence
func (m *Manager) CreateSilence(config SilenceConfig) (*Silence, error) {
	if config.RuleName == "" {
		return nil, errors.New("alerting: silence rule name is required")
	}
	if !config.EndsAt.After(config.StartsAt) {
		return nil, errors.New("alerting: silence must end after it starts")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	silence := &Silence{
		ID:        uuid.New().String(),
		RuleName:  config.RuleName,
		StartsAt:  config.StartsAt,
		EndsAt:    config.EndsAt,
		CreatedBy: config.CreatedBy,
		Comment:   config.Comment,
	}
	m.silences = append(m.silences, silence)
	return silence, nil
}

// ListSilences returns currently active silences
func (m *Manager) ListSilences() []*Silence {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var active []*Silence
	for _, s := range m.silences {
		if now.Before(s.StartsAt) || now.After(s.EndsAt) {
			continue
		}
		c := *s
		active = append(active, &c)
	}
	return active
}

func (m *Manager) isSilencedLocked(ruleName string) bool {
	now := time.Now()
	for _, s := range m.silences {
		if s.RuleName != ruleName {
			continue
		}
		if !now.Before(s.StartsAt) && !now.After(s.EndsAt) {
			return true
		}
	}
	return false
}
