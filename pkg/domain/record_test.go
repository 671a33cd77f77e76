package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestRollRecord_Clone(t *testing.T) {
	total := 12.0
	orig := &domain.RollRecord{
		ID:        "r1",
		Formula:   "2d6",
		Total:     &total,
		Roll:      json.RawMessage(`{"formula":"2d6"}`),
		Metadata:  map[string]string{"who": "gm"},
		CreatedAt: time.Now(),
	}

	c := orig.Clone()
	assert.Equal(t, orig, c)

	*c.Total = 3
	c.Roll[2] = 'X'
	c.Metadata["who"] = "player"

	assert.Equal(t, 12.0, *orig.Total)
	assert.Equal(t, `{"formula":"2d6"}`, string(orig.Roll))
	assert.Equal(t, "gm", orig.Metadata["who"])

	var nilRecord *domain.RollRecord
	assert.Nil(t, nilRecord.Clone())
}
