package domain

import (
	"fmt"
	"strings"
	"time"
)

// Priority represents the message priority level.
type Priority string

const (
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

// RetryRule is the retry budget and flat delay applied to one priority.
type RetryRule struct {
	MaxRetries int           `yaml:"maxRetries"`
	RetryDelay time.Duration `yaml:"retryDelay"`
}

var defaultRetryRules = map[Priority]RetryRule{
	PriorityUrgent: {MaxRetries: 5, RetryDelay: time.Minute},
	PriorityHigh:   {MaxRetries: 3, RetryDelay: 5 * time.Minute},
	PriorityNormal: {MaxRetries: 2, RetryDelay: 15 * time.Minute},
	PriorityLow:    {MaxRetries: 1, RetryDelay: 60 * time.Minute},
}

// DefaultRetryRules returns a copy of the built-in priority retry table.
func DefaultRetryRules() map[Priority]RetryRule {
	rules := make(map[Priority]RetryRule, len(defaultRetryRules))
	for priority, rule := range defaultRetryRules {
		rules[priority] = rule
	}
	return rules
}

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	_, ok := defaultRetryRules[p]
	return ok
}

func (p Priority) MaxRetries() int { return defaultRetryRules[p].MaxRetries }

func (p Priority) RetryDelay() time.Duration { return defaultRetryRules[p].RetryDelay }

// Rank orders priorities for queue placement; higher is more urgent.
func (p Priority) Rank() uint8 {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func ParsePriorityFromString(s string) (Priority, error) {
	pr := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !pr.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return pr, nil
}
