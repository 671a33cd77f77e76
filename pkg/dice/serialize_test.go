package dice_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const richFormula = "{2d20kh, 1d12 + 1}kh1[adv] + (1d4 * 2)[fire] - 3 + 4d6r1x>=6cs>=5"

func TestSerialization_RoundTripEvaluated(t *testing.T) {
	r, err := dice.New(richFormula)
	require.NoError(t, err)
	require.NoError(t, r.Evaluate(context.Background(), dice.EvaluateOptions{Source: random.NewSeeded(99)}))

	data, err := r.ToJSON()
	require.NoError(t, err)

	back, err := dice.FromJSON(data)
	require.NoError(t, err)

	assert.True(t, back.Evaluated())
	assert.Equal(t, total(t, r), total(t, back))
	assert.Equal(t, r.Formula(), back.Formula())
	assert.Equal(t, r.Expression(), back.Expression())

	again, err := back.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
	assert.Equal(t, string(data), string(again))

	// evaluating a restored roll is a no-op
	require.NoError(t, back.Evaluate(context.Background(), dice.EvaluateOptions{Source: random.NewSequence()}))
	assert.Equal(t, total(t, r), total(t, back))
}

func TestSerialization_RoundTripUnevaluated(t *testing.T) {
	r, err := dice.New(richFormula)
	require.NoError(t, err)

	data, err := r.ToJSON()
	require.NoError(t, err)

	back, err := dice.FromJSON(data)
	require.NoError(t, err)
	assert.False(t, back.Evaluated())

	again, err := back.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))

	// both evaluate identically against identical sources
	require.NoError(t, r.Evaluate(context.Background(), dice.EvaluateOptions{Source: random.NewSeeded(5)}))
	require.NoError(t, back.Evaluate(context.Background(), dice.EvaluateOptions{Source: random.NewSeeded(5)}))
	assert.Equal(t, total(t, r), total(t, back))
}

func TestSerialization_Shape(t *testing.T) {
	r := roll(t, "2d6kh[fire] + 1", 2, 5)
	data, err := r.ToJSON()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "2d6kh[fire] + 1", got["formula"])
	assert.Equal(t, 6.0, got["total"])
	assert.Equal(t, true, got["evaluated"])

	terms := got["terms"].([]any)
	require.Len(t, terms, 3)

	d := terms[0].(map[string]any)
	assert.Equal(t, "DiceTerm", d["class"])
	assert.Equal(t, map[string]any{"flavor": "fire"}, d["options"])
	assert.Equal(t, 2.0, d["number"])
	assert.Equal(t, 6.0, d["faces"])
	assert.Equal(t, []any{"kh"}, d["modifiers"])
	assert.Equal(t, []any{
		map[string]any{"value": 2.0, "active": false, "discarded": true},
		map[string]any{"value": 5.0, "active": true},
	}, d["results"])

	op := terms[1].(map[string]any)
	assert.Equal(t, "OperatorTerm", op["class"])
	assert.Equal(t, "+", op["operator"])

	n := terms[2].(map[string]any)
	assert.Equal(t, "NumericTerm", n["class"])
	assert.Equal(t, 1.0, n["number"])
}

func TestSerialization_FromDataMatchesFromJSON(t *testing.T) {
	r := roll(t, "{1d6, 1d8}kl + 2", 4, 7)
	data, err := r.ToJSON()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	fromData, err := dice.FromData(m)
	require.NoError(t, err)
	fromJSON, err := dice.FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, total(t, fromJSON), total(t, fromData))
	assert.Equal(t, 6.0, total(t, fromData))

	a, _ := fromData.ToJSON()
	b, _ := fromJSON.ToJSON()
	assert.Equal(t, string(a), string(b))
}

func TestSerialization_BareFormula(t *testing.T) {
	r, err := dice.FromData(map[string]any{"formula": "2d6 + 1"})
	require.NoError(t, err)
	assert.False(t, r.Evaluated())
	assert.Len(t, r.Terms(), 3)
}

func TestSerialization_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"formula":`},
		{"missing formula", `{"terms":[]}`},
		{"evaluated without total", `{"formula":"1","terms":[{"class":"NumericTerm","number":1}],"evaluated":true}`},
		{"unknown class", `{"formula":"1","terms":[{"class":"FateTerm"}]}`},
		{"missing class", `{"formula":"1","terms":[{"number":1}]}`},
		{"dice without faces", `{"formula":"1d6","terms":[{"class":"DiceTerm","number":1}]}`},
		{"numeric without number", `{"formula":"1","terms":[{"class":"NumericTerm"}]}`},
		{"bad operator", `{"formula":"1","terms":[{"class":"OperatorTerm","operator":"%"}]}`},
		{"invalid dice", `{"formula":"1d0","terms":[{"class":"DiceTerm","number":1,"faces":0}]}`},
		{"short results", `{"formula":"2d6","terms":[{"class":"DiceTerm","number":2,"faces":6,"evaluated":true,"results":[{"value":3,"active":true}]}]}`},
		{"unmatched modifier", `{"formula":"1d6qq","terms":[{"class":"DiceTerm","number":1,"faces":6,"modifiers":["qq"]}]}`},
		{"pool without terms", `{"formula":"{1}","terms":[{"class":"PoolTerm"}]}`},
		{"wrong type", `{"formula":"1","terms":[{"class":"DiceTerm","number":"many","faces":6}]}`},
		{"bad bare formula", `{"formula":"1d"}`},
		{"fractional dice count", `{"formula":"2d6","terms":[{"class":"DiceTerm","number":2.7,"faces":6}]}`},
		{"huge dice count", `{"formula":"1d6","terms":[{"class":"DiceTerm","number":1e20,"faces":6}]}`},
		{"dice count over limit", `{"formula":"1d6","terms":[{"class":"DiceTerm","number":20000,"faces":6}]}`},
		{"fractional faces", `{"formula":"1d6","terms":[{"class":"DiceTerm","number":1,"faces":6.5}]}`},
		{"modifier without target", `{"formula":"{1,2}cs","terms":[{"class":"PoolTerm","terms":["1","2"],"modifiers":["cs"]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := dice.FromJSON([]byte(tt.data))
			assert.Nil(t, r)
			assert.ErrorIs(t, err, dice.ErrSerialization)
		})
	}
}

func TestSerialization_LenientRestoresWarnings(t *testing.T) {
	data := `{"formula":"1d6qq","terms":[{"class":"DiceTerm","number":1,"faces":6,"modifiers":["qq"]}]}`
	r, err := dice.FromJSON([]byte(data), dice.WithLenientModifiers(true))
	require.NoError(t, err)
	require.Len(t, r.Warnings(), 1)
	assert.Equal(t, "qq", r.Warnings()[0].Modifier)
}

func TestRoll_Verify(t *testing.T) {
	r := roll(t, "2d6 + 1", 3, 4)
	require.NoError(t, r.Verify())

	data, err := r.ToJSON()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	m["total"] = 12.0

	edited, err := dice.FromData(m)
	require.NoError(t, err)
	assert.ErrorIs(t, edited.Verify(), dice.ErrTotalMismatch)

	unevaluated, err := dice.New("1d6")
	require.NoError(t, err)
	assert.ErrorIs(t, unevaluated.Verify(), dice.ErrNotEvaluated)
}
