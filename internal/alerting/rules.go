// internal/alerting/rules.go
package alerting

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/warden/internal/events"
)

// Severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Rule states
const (
	StateInactive = "inactive"
	StatePending  = "pending"
	StateFiring   = "firing"
)

// RuleConfig configures an alert rule. Condition is a single comparison
// over a metric name, e.g. "db_failed_nodes >= 1" or "db_has_primary == 0".
type RuleConfig struct {
	Name        string            `json:"name" yaml:"name"`
	Condition   string            `json:"condition" yaml:"condition"`
	Severity    string            `json:"severity" yaml:"severity"`
	Duration    time.Duration     `json:"duration" yaml:"duration"`
	Labels      map[string]string `json:"labels" yaml:"labels"`
	Annotations map[string]string `json:"annotations" yaml:"annotations"`
}

// Validate checks the rule configuration
func (c *RuleConfig) Validate() error {
	if c.Name == "" {
		return errors.New("alerting: rule name is required")
	}
	if c.Condition == "" {
		return errors.New("alerting: rule condition is required")
	}
	if _, _, _, err := parseCondition(c.Condition); err != nil {
		return err
	}
	switch c.Severity {
	case "", SeverityInfo, SeverityWarning, SeverityCritical:
	default:
		return fmt.Errorf("alerting: unknown severity %q", c.Severity)
	}
	return nil
}

// Alert is one fired instance of a rule
type Alert struct {
	ID         string            `json:"id"`
	RuleName   string            `json:"rule_name"`
	Severity   string            `json:"severity"`
	State      string            `json:"state"`
	Message    string            `json:"message"`
	FiredAt    time.Time         `json:"fired_at"`
	ResolvedAt time.Time         `json:"resolved_at,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
	Silenced   bool              `json:"silenced"`
}

// Rule tracks one rule's state machine across evaluations
type Rule struct {
	config       RuleConfig
	state        string
	pendingSince time.Time
	firedAt      time.Time
	activeID     string
}

// Name returns the rule name
func (r *Rule) Name() string { return r.config.Name }

// State returns the current state
func (r *Rule) State() string { return r.state }

// Config returns a copy of the rule configuration
func (r *Rule) Config() RuleConfig { return r.config }

// conditionPatterns are tried longest-operator-first so ">=" never
// matches as ">"
var conditionPatterns = []struct {
	regex *regexp.Regexp
	eval  func(actual, threshold float64) bool
}{
	{regexp.MustCompile(`^\s*(\w+)\s*>=\s*([\d.]+)\s*$`), func(a, t float64) bool { return a >= t }},
	{regexp.MustCompile(`^\s*(\w+)\s*<=\s*([\d.]+)\s*$`), func(a, t float64) bool { return a <= t }},
	{regexp.MustCompile(`^\s*(\w+)\s*==\s*([\d.]+)\s*$`), func(a, t float64) bool { return a == t }},
	{regexp.MustCompile(`^\s*(\w+)\s*!=\s*([\d.]+)\s*$`), func(a, t float64) bool { return a != t }},
	{regexp.MustCompile(`^\s*(\w+)\s*>\s*([\d.]+)\s*$`), func(a, t float64) bool { return a > t }},
	{regexp.MustCompile(`^\s*(\w+)\s*<\s*([\d.]+)\s*$`), func(a, t float64) bool { return a < t }},
}

func parseCondition(condition string) (metric string, threshold float64, eval func(a, t float64) bool, err error) {
	for _, p := range conditionPatterns {
		if matches := p.regex.FindStringSubmatch(condition); len(matches) == 3 {
			threshold, err = strconv.ParseFloat(matches[2], 64)
			if err != nil {
				return "", 0, nil, fmt.Errorf("alerting: bad threshold in %q: %w", condition, err)
			}
			return matches[1], threshold, p.eval, nil
		}
	}
	return "", 0, nil, fmt.Errorf("alerting: unparseable condition %q", condition)
}

// MetricsProvider supplies the snapshot rules are evaluated against
type MetricsProvider func() map[string]float64

// ManagerConfig configures the alert manager
type ManagerConfig struct {
	EvaluationInterval time.Duration `json:"evaluation_interval" yaml:"evaluation_interval"`
}

// Manager evaluates rules and tracks alerts. Fired and resolved alerts
// are published to the event bus and handed to registered callbacks.
type Manager struct {
	mu        sync.RWMutex
	config    ManagerConfig
	rules     map[string]*Rule
	ruleOrder []string
	alerts    map[string]*Alert
	silences  []*Silence
	callbacks []func(*Alert)
	provider  MetricsProvider
	bus       events.EventBus
	logger    *zap.Logger
}

// NewManager creates an alert manager. Bus may be nil if events are
// not wanted.
func NewManager(config ManagerConfig, logger *zap.Logger, bus events.EventBus) *Manager {
	if config.EvaluationInterval <= 0 {
		config.EvaluationInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config: config,
		rules:  make(map[string]*Rule),
		alerts: make(map[string]*Alert),
		bus:    bus,
		logger: logger,
	}
}

// SetMetricsProvider sets the snapshot source for periodic evaluation
func (m *Manager) SetMetricsProvider(provider MetricsProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provider = provider
}

// OnAlert registers a callback invoked for every fired or resolved alert
func (m *Manager) OnAlert(callback func(*Alert)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// AddRule registers a rule
func (m *Manager) AddRule(config RuleConfig) (*Rule, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[config.Name]; exists {
		return nil, fmt.Errorf("alerting: rule %q already exists", config.Name)
	}

	rule := &Rule{config: config, state: StateInactive}
	m.rules[config.Name] = rule
	m.ruleOrder = append(m.ruleOrder, config.Name)
	return rule, nil
}

// RemoveRule drops a rule. Its active alert, if any, stays in history.
func (m *Manager) RemoveRule(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[name]; !exists {
		return fmt.Errorf("alerting: rule %q not found", name)
	}
	delete(m.rules, name)
	for i, n := range m.ruleOrder {
		if n == name {
			m.ruleOrder = append(m.ruleOrder[:i], m.ruleOrder[i+1:]...)
			break
		}
	}
	return nil
}

// GetRule returns a rule by name, or nil
func (m *Manager) GetRule(name string) *Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rules[name]
}

// ListRules returns all rules sorted by name
func (m *Manager) ListRules() []*Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := make([]*Rule, 0, len(m.rules))
	for _, rule := range m.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].config.Name < rules[j].config.Name })
	return rules
}

// RuleStatus is a point-in-time snapshot of one rule
type RuleStatus struct {
	RuleConfig
	State string `json:"state"`
}

// ListRuleStatuses returns consistent snapshots sorted by name, safe
// to use while evaluation runs concurrently
func (m *Manager) ListRuleStatuses() []RuleStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]RuleStatus, 0, len(m.rules))
	for _, rule := range m.rules {
		statuses = append(statuses, RuleStatus{RuleConfig: rule.config, State: rule.state})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// GetAlerts returns copies of alerts in the given state; empty state
// means all
func (m *Manager) GetAlerts(state string) []*Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Alert
	for _, alert := range m.alerts {
		if state != "" && alert.State != state {
			continue
		}
		c := *alert
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FiredAt.Before(result[j].FiredAt) })
	return result
}

// EvaluateAll runs every rule against the given snapshot
func (m *Manager) EvaluateAll(ctx context.Context, metrics map[string]float64) {
	m.mu.Lock()
	var fired, resolved []*Alert
	for _, name := range m.ruleOrder {
		rule := m.rules[name]
		if f, r := m.evaluateLocked(rule, metrics); f != nil {
			fired = append(fired, f)
		} else if r != nil {
			resolved = append(resolved, r)
		}
	}
	callbacks := make([]func(*Alert), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	for _, alert := range fired {
		m.announce(ctx, alert, events.AlertFired, callbacks)
	}
	for _, alert := range resolved {
		m.announce(ctx, alert, events.AlertResolved, callbacks)
	}
}

// evaluateLocked advances one rule's state machine. It returns a fired
// alert, a resolved alert, or neither.
func (m *Manager) evaluateLocked(rule *Rule, metrics map[string]float64) (fired, resolved *Alert) {
	metric, threshold, eval, err := parseCondition(rule.config.Condition)
	if err != nil {
		return nil, nil
	}
	actual, ok := metrics[metric]
	breached := ok && eval(actual, threshold)

	switch {
	case breached && rule.state == StateInactive && rule.config.Duration > 0:
		rule.state = StatePending
		rule.pendingSince = time.Now()

	case breached && rule.state == StatePending:
		if time.Since(rule.pendingSince) >= rule.config.Duration {
			fired = m.fireLocked(rule, actual)
		}

	case breached && rule.state == StateInactive:
		fired = m.fireLocked(rule, actual)

	case !breached && rule.state != StateInactive:
		wasFiring := rule.state == StateFiring
		rule.state = StateInactive
		rule.pendingSince = time.Time{}
		if wasFiring {
			if alert, ok := m.alerts[rule.activeID]; ok {
				alert.State = StateInactive
				alert.ResolvedAt = time.Now()
				c := *alert
				resolved = &c
			}
			rule.activeID = ""
		}
	}
	return fired, resolved
}

func (m *Manager) fireLocked(rule *Rule, actual float64) *Alert {
	rule.state = StateFiring
	rule.firedAt = time.Now()

	severity := rule.config.Severity
	if severity == "" {
		severity = SeverityWarning
	}
	alert := &Alert{
		ID:       uuid.New().String(),
		RuleName: rule.config.Name,
		Severity: severity,
		State:    StateFiring,
		Message:  fmt.Sprintf("%s: condition %q met (value %g)", rule.config.Name, rule.config.Condition, actual),
		FiredAt:  rule.firedAt,
		Labels:   rule.config.Labels,
		Silenced: m.isSilencedLocked(rule.config.Name),
	}
	rule.activeID = alert.ID
	m.alerts[alert.ID] = alert
	c := *alert
	return &c
}

func (m *Manager) announce(ctx context.Context, alert *Alert, eventType events.EventType, callbacks []func(*Alert)) {
	if alert.Silenced {
		m.logger.Debug("alert silenced", zap.String("rule", alert.RuleName))
		return
	}
	for _, cb := range callbacks {
		cb(alert)
	}
	if m.bus != nil {
		e := events.NewEvent(eventType, alert.Labels["service"], "")
		e.Message = alert.Message
		e.Details = map[string]string{
			"rule":     alert.RuleName,
			"severity": alert.Severity,
			"alert_id": alert.ID,
		}
		if err := m.bus.Publish(ctx, e); err != nil {
			m.logger.Warn("alert event publish failed", zap.Error(err))
		}
	}
}

// Start runs periodic evaluation until the context is cancelled
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.config.EvaluationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			provider := m.provider
			m.mu.RUnlock()
			if provider != nil {
				m.EvaluateAll(ctx, provider())
			}
		}
	}
}
