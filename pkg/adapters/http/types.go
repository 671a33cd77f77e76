package http

import (
	"encoding/json"
	"time"

	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/domain"
)

// RollRequest is the body of POST /rolls. Exactly one of Formula and Macro
// is expected; Formula wins when both are set.
type RollRequest struct {
	Formula  string            `json:"formula" validate:"required_without=Macro,formula"`
	Macro    string            `json:"macro,omitempty"`
	Mode     string            `json:"mode,omitempty" validate:"omitempty,oneof=random minimize maximize min max"`
	Channel  string            `json:"channel,omitempty" validate:"omitempty,max=128"`
	Metadata map[string]string `json:"metadata,omitempty" validate:"max=32"`
}

// ReplayRequest is the body of POST /replay.
type ReplayRequest struct {
	Roll json.RawMessage `json:"roll" validate:"required"`
	Mode string          `json:"mode,omitempty" validate:"omitempty,oneof=random minimize maximize min max"`
}

// ParseRequest is the body of POST /parse.
type ParseRequest struct {
	Formula string `json:"formula" validate:"required,formula"`
}

// RollResult describes an evaluated roll, recorded or not.
type RollResult struct {
	ID         string            `json:"id,omitempty"`
	Channel    string            `json:"channel,omitempty"`
	Formula    string            `json:"formula"`
	Mode       string            `json:"mode"`
	Total      float64           `json:"total"`
	Expression string            `json:"expression,omitempty"`
	Warnings   []dice.Warning    `json:"warnings,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	TraceID    string            `json:"trace_id,omitempty"`
	CreatedAt  *time.Time        `json:"created_at,omitempty"`
	Roll       json.RawMessage   `json:"roll"`
}

// ParseResult describes a parsed, unevaluated formula.
type ParseResult struct {
	Formula    string          `json:"formula"`
	Normalized string          `json:"normalized"`
	Warnings   []dice.Warning  `json:"warnings,omitempty"`
	Roll       json.RawMessage `json:"roll"`
}

// ErrorResponse is written for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func resultFromRoll(r *dice.Roll, mode dice.Mode) (RollResult, error) {
	total, err := r.Total()
	if err != nil {
		return RollResult{}, err
	}
	data, err := r.ToJSON()
	if err != nil {
		return RollResult{}, err
	}
	return RollResult{
		Formula:    r.Formula(),
		Mode:       mode.String(),
		Total:      total,
		Expression: r.Expression(),
		Warnings:   r.Warnings(),
		Roll:       data,
	}, nil
}

func resultFromRecord(rec *domain.RollRecord) RollResult {
	res := RollResult{
		ID:       rec.ID,
		Channel:  rec.Channel,
		Formula:  rec.Formula,
		Mode:     rec.Mode,
		Metadata: rec.Metadata,
		TraceID:  rec.TraceID,
		Roll:     rec.Roll,
	}
	if rec.Total != nil {
		res.Total = *rec.Total
	}
	if !rec.CreatedAt.IsZero() {
		created := rec.CreatedAt
		res.CreatedAt = &created
	}
	return res
}
