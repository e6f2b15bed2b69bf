// Package alerts evaluates threshold rules over computed metric values.
// Alert delivery (email, webhooks) is out of scope here; fired alerts are
// persisted and exposed through the query API.
package alerts

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/espressojuice/dealereye/internal/metrics"
	"github.com/espressojuice/dealereye/internal/models"
	"github.com/espressojuice/dealereye/internal/store"
)

const defaultCooldown = 5 * time.Minute

// Severity grades a fired alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Operator compares a metric value against a rule threshold.
type Operator string

const (
	OperatorGreaterThan Operator = "gt"
	OperatorLessThan    Operator = "lt"
)

// Rule is a single threshold rule from the rule pack.
type Rule struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Metric    models.MetricName `yaml:"metric"`
	Operator  Operator          `yaml:"operator"`
	Threshold float64           `yaml:"threshold"`
	Severity  Severity          `yaml:"severity"`
	Cooldown  time.Duration     `yaml:"cooldown"`
}

// RuleConfigFile is the YAML root structure of the rule pack.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

type cooldownKey struct {
	ruleID string
	siteID uuid.UUID
}

// RuleEngine matches metric values against the loaded rules, with a
// per-(rule, site) cooldown so a sustained breach fires once per window
// instead of once per value.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger

	mu        sync.Mutex
	lastFired map[cooldownKey]time.Time
}

// NewRuleEngine loads the rule pack from path. An empty or missing path
// returns a nil engine; Evaluate on a nil engine is a no-op.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{
		rules:     cfg.Rules,
		logger:    logger,
		lastFired: make(map[cooldownKey]time.Time),
	}, nil
}

// Evaluate checks one metric value against every rule and returns the alerts
// that fired.
func (e *RuleEngine) Evaluate(mv models.MetricValue) []store.StoredAlert {
	if e == nil {
		return nil
	}

	var fired []store.StoredAlert
	for _, rule := range e.rules {
		if rule.Metric != mv.Name {
			continue
		}
		if !breached(rule.Operator, mv.Value, rule.Threshold) {
			continue
		}
		if !e.armed(rule, mv.SiteID, mv.WindowStart) {
			continue
		}

		severity := rule.Severity
		if severity == "" {
			severity = SeverityWarning
		}
		metrics.ObserveAlertFired(string(severity))
		e.logger.Info("alert fired",
			slog.String("rule_id", rule.ID),
			slog.String("metric", string(mv.Name)),
			slog.String("site_id", mv.SiteID.String()),
			slog.Float64("value", mv.Value),
			slog.Float64("threshold", rule.Threshold))

		fired = append(fired, store.StoredAlert{
			AlertID:   uuid.New(),
			RuleID:    rule.ID,
			SiteID:    mv.SiteID,
			Metric:    string(mv.Name),
			Severity:  string(severity),
			Value:     mv.Value,
			Threshold: rule.Threshold,
			FiredAt:   mv.WindowStart,
		})
	}
	return fired
}

// armed reports whether the cooldown for (rule, site) has elapsed at the
// given instant, and records the firing if so.
func (e *RuleEngine) armed(rule Rule, siteID uuid.UUID, at time.Time) bool {
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	key := cooldownKey{ruleID: rule.ID, siteID: siteID}
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastFired[key]; ok && at.Sub(last) < cooldown {
		return false
	}
	e.lastFired[key] = at
	return true
}

func breached(op Operator, value, threshold float64) bool {
	switch op {
	case OperatorLessThan:
		return value < threshold
	default:
		return value > threshold
	}
}
