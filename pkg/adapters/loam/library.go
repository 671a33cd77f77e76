package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/rollkit/pkg/domain"
)

// Library adapts a Loam repository of markdown, JSON or YAML documents to the
// ports.MacroLibrary interface.
type Library struct {
	Repo *loam.TypedRepository[MacroMetadata]
}

// New creates a new Loam macro library.
func New(repo *loam.TypedRepository[MacroMetadata]) *Library {
	return &Library{
		Repo: repo,
	}
}

// Open initializes a Loam repository at path in strict mode and wraps it.
// Extra options are appended, so callers can pass loam.WithReadOnly(true).
func Open(path string, opts ...loam.Option) (*Library, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	repo, err := loam.Init(absPath, append([]loam.Option{loam.WithStrict(true)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[MacroMetadata](repo)), nil
}

// Get returns the macro named name. Names are matched after stripping any
// file extension, so "fireball" finds fireball.md.
func (l *Library) Get(ctx context.Context, name string) (*domain.Macro, error) {
	macros, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := macros[trimExtension(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMacroNotFound, name)
	}
	return &m, nil
}

// List returns every macro sorted by name.
func (l *Library) List(ctx context.Context) ([]domain.Macro, error) {
	macros, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Macro, 0, len(macros))
	for _, m := range macros {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Save writes m as a markdown document named after the macro.
func (l *Library) Save(ctx context.Context, m domain.Macro) error {
	if m.Name == "" || strings.ContainsAny(m.Name, `/\`) {
		return fmt.Errorf("invalid macro name %q", m.Name)
	}
	if strings.TrimSpace(m.Formula) == "" {
		return fmt.Errorf("macro %s: formula is required", m.Name)
	}
	err := l.Repo.Save(ctx, &loam.DocumentModel[MacroMetadata]{
		ID:      m.Name,
		Content: m.Description,
		Data: MacroMetadata{
			Name:    m.Name,
			Formula: m.Formula,
			Tags:    m.Tags,
		},
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", m.Name, err)
	}
	return nil
}

// load reads every document and indexes it by macro name.
func (l *Library) load(ctx context.Context) (map[string]domain.Macro, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	macros := make(map[string]domain.Macro, len(docs))
	for _, doc := range docs {
		rawName := doc.Data.Name
		if rawName == "" {
			rawName = doc.ID
		}
		name := trimExtension(rawName)

		if existing, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: macro '%s' is defined in both '%s' and '%s'", name, existing, doc.ID)
		}
		seen[name] = doc.ID

		formula := strings.TrimSpace(doc.Data.Formula)
		if formula == "" {
			return nil, fmt.Errorf("macro '%s' (%s) has no formula", name, doc.ID)
		}

		description := doc.Data.Description
		if description == "" {
			description = strings.TrimSpace(doc.Content)
		}

		macros[name] = domain.Macro{
			Name:        name,
			Formula:     formula,
			Description: description,
			Tags:        doc.Data.Tags,
		}
	}
	return macros, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
