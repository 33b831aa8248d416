package dispatch

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vallegrande/notification-engine/internal/domain"
	"gopkg.in/yaml.v3"
)

// RetryPolicy maps a priority to its retry budget and flat delay.
type RetryPolicy struct {
	rules map[domain.Priority]domain.RetryRule
}

// RetryDecision is the outcome of consulting the policy after a transient failure.
type RetryDecision struct {
	Retry bool
	At    time.Time
}

type retryPolicyFile struct {
	Priorities map[string]domain.RetryRule `yaml:"priorities"`
}

// DefaultRetryPolicy is the built-in table: URGENT 5/1m, HIGH 3/5m, NORMAL 2/15m, LOW 1/60m.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{rules: domain.DefaultRetryRules()}
}

// NewRetryPolicy applies overrides on top of the default table.
func NewRetryPolicy(overrides map[domain.Priority]domain.RetryRule) (*RetryPolicy, error) {
	rules := domain.DefaultRetryRules()
	for priority, rule := range overrides {
		if !priority.IsValid() {
			return nil, fmt.Errorf("%w: invalid priority %q in retry policy", domain.ErrValidation, priority)
		}
		if rule.MaxRetries < 1 {
			return nil, fmt.Errorf("%w: %s maxRetries must be >= 1", domain.ErrValidation, priority)
		}
		if rule.RetryDelay <= 0 {
			return nil, fmt.Errorf("%w: %s retryDelay must be positive", domain.ErrValidation, priority)
		}
		rules[priority] = rule
	}
	return &RetryPolicy{rules: rules}, nil
}

// LoadRetryPolicy reads overrides from a YAML file of the form
//
//	priorities:
//	  URGENT: {maxRetries: 5, retryDelay: 1m}
//
// An empty path yields the default policy.
func LoadRetryPolicy(path string) (*RetryPolicy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRetryPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read retry policy file: %w", err)
	}
	return ParseRetryPolicy(data)
}

// ParseRetryPolicy decodes YAML retry overrides.
func ParseRetryPolicy(data []byte) (*RetryPolicy, error) {
	var file retryPolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse retry policy: %w", err)
	}

	overrides := make(map[domain.Priority]domain.RetryRule, len(file.Priorities))
	for raw, rule := range file.Priorities {
		priority, err := domain.ParsePriorityFromString(raw)
		if err != nil {
			return nil, err
		}
		overrides[priority] = rule
	}
	return NewRetryPolicy(overrides)
}

// Rule returns the retry rule of priority, falling back to NORMAL for unknown values.
func (p *RetryPolicy) Rule(priority domain.Priority) domain.RetryRule {
	if rule, ok := p.rules[priority]; ok {
		return rule
	}
	return p.rules[domain.PriorityNormal]
}

// Next decides what follows a transient failure of attempt retryCount+1.
// maxRetries bounds the attempts made on one channel, so the retry is granted only while
// another attempt fits in that budget.
func (p *RetryPolicy) Next(priority domain.Priority, retryCount int, now time.Time) RetryDecision {
	rule := p.Rule(priority)
	if retryCount+1 >= rule.MaxRetries {
		return RetryDecision{}
	}
	return RetryDecision{Retry: true, At: now.Add(rule.RetryDelay)}
}
