package domain

import (
	"encoding/json"
	"time"
)

// RollRecord is an evaluated roll as persisted by a host. Roll holds the
// serialized term tree so the roll can be restored and audited later.
type RollRecord struct {
	ID        string            `json:"id"`
	Channel   string            `json:"channel"`
	Formula   string            `json:"formula"`
	Mode      string            `json:"mode"`
	Total     *float64          `json:"total"`
	Roll      json.RawMessage   `json:"roll"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (r *RollRecord) Clone() *RollRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Total != nil {
		t := *r.Total
		c.Total = &t
	}
	if r.Roll != nil {
		c.Roll = append(json.RawMessage(nil), r.Roll...)
	}
	if r.Metadata != nil {
		c.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Macro is a named formula kept in a library.
type Macro struct {
	Name        string   `json:"name" yaml:"name" mapstructure:"name"`
	Formula     string   `json:"formula" yaml:"formula" mapstructure:"formula"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty" mapstructure:"tags"`
}
