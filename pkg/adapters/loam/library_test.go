package loam

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/aretw0/rollkit/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.MacroLibrary = (*Library)(nil)

func seed(t *testing.T, files map[string]string) *Library {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	lib, err := Open(dir, loam.WithVersioning(false))
	require.NoError(t, err)
	return lib
}

func TestLibrary_GetAndList(t *testing.T) {
	lib := seed(t, map[string]string{
		"fireball.md": `---
formula: 8d6[fire]
tags: [spell]
---
Deals fire damage in a 20-foot radius.`,
		"attack.json": `{"name": "attack", "formula": "1d20 + 5", "description": "Longsword"}`,
		"stats.yaml":  "name: stats\nformula: 4d6kh3\n",
	})
	ctx := context.Background()

	m, err := lib.Get(ctx, "fireball")
	require.NoError(t, err)
	assert.Equal(t, "8d6[fire]", m.Formula)
	assert.Equal(t, "Deals fire damage in a 20-foot radius.", m.Description, "body is the fallback description")
	assert.Equal(t, []string{"spell"}, m.Tags)

	m, err = lib.Get(ctx, "attack.json")
	require.NoError(t, err)
	assert.Equal(t, "Longsword", m.Description)

	all, err := lib.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "attack", all[0].Name)
	assert.Equal(t, "fireball", all[1].Name)
	assert.Equal(t, "stats", all[2].Name)
}

func TestLibrary_NotFound(t *testing.T) {
	lib := seed(t, map[string]string{"a.yaml": "formula: 1d4\n"})

	_, err := lib.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrMacroNotFound)
}

func TestLibrary_DetectsCollisions(t *testing.T) {
	lib := seed(t, map[string]string{
		"foo.md":   "---\nname: foo\nformula: 1d6\n---\n",
		"foo.json": `{"name": "foo", "formula": "1d8"}`,
	})

	_, err := lib.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestLibrary_RequiresFormula(t *testing.T) {
	lib := seed(t, map[string]string{"empty.md": "---\nname: empty\n---\nNothing to roll."})

	_, err := lib.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no formula")
}

func TestLibrary_Save(t *testing.T) {
	lib := seed(t, nil)
	ctx := context.Background()

	require.NoError(t, lib.Save(ctx, domain.Macro{
		Name:        "sneak",
		Formula:     "3d6",
		Description: "Sneak attack",
		Tags:        []string{"rogue"},
	}))

	m, err := lib.Get(ctx, "sneak")
	require.NoError(t, err)
	assert.Equal(t, "3d6", m.Formula)
	assert.Equal(t, "Sneak attack", m.Description)

	assert.Error(t, lib.Save(ctx, domain.Macro{Name: "../escape", Formula: "1d6"}))
	assert.Error(t, lib.Save(ctx, domain.Macro{Name: "blank"}))
}
