package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRollEvaluated     EventType = "roll_evaluated"
	EventRollFailed        EventType = "roll_failed"
	EventUnmatchedModifier EventType = "unmatched_modifier"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// RollEvent describes one evaluation, successful or not.
type RollEvent struct {
	EventBase
	Formula  string        `json:"formula"`
	Mode     string        `json:"mode"`
	Total    float64       `json:"total,omitempty"`
	Dice     int           `json:"dice"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// ModifierEvent reports a modifier that was accepted in lenient mode but
// matched no handler.
type ModifierEvent struct {
	EventBase
	Formula  string `json:"formula"`
	Term     string `json:"term"`
	Modifier string `json:"modifier"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnRollEvaluated     func(context.Context, *RollEvent)
	OnRollFailed        func(context.Context, *RollEvent)
	OnUnmatchedModifier func(context.Context, *ModifierEvent)
}
