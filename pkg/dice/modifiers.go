package dice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// DefaultMaxIterations bounds recursive rerolls and explosions. It counts
// consecutive draws descending from one original result.
const DefaultMaxIterations = 100

// DefaultMaxDice bounds the draws of a single dice term, initial dice,
// rerolls and explosions together.
const DefaultMaxDice = 10000

// Handler applies one modifier command to a result set.
type Handler func(ctx context.Context, set *ResultSet, call ModifierCall) error

// Check validates the arguments of a matched command. Checks run when the
// term is built, before anything is rolled.
type Check func(call ModifierCall) error

// ModifierCall is a modifier command matched against the registry. Args holds
// the pattern's capture groups.
type ModifierCall struct {
	Raw     string
	Name    string
	Args    []string
	handler Handler
	checks  []Check
}

// Validate runs the checks registered with the command's handler.
func (c ModifierCall) Validate() error {
	for _, check := range c.checks {
		if err := check(c); err != nil {
			return err
		}
	}
	return nil
}

type modifierEntry struct {
	kind    Kind
	name    string
	pattern *regexp.Regexp
	handler Handler
	checks  []Check
}

// Registry maps modifier syntax to handlers, per term kind. Later
// registrations shadow earlier ones with an overlapping pattern.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries []modifierEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handler. The pattern must match the whole modifier command;
// anchors are added automatically. Checks reject unusable arguments at parse
// time.
func (r *Registry) Register(kind Kind, name, pattern string, h Handler, checks ...Check) error {
	if kind != KindDice && kind != KindPool {
		return fmt.Errorf("modifiers apply to %s or %s, not %s", KindDice, KindPool, kind)
	}
	if h == nil {
		return errors.New("modifier handler is nil")
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return fmt.Errorf("compile modifier %q: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, modifierEntry{kind: kind, name: name, pattern: re, handler: h, checks: checks})
	return nil
}

func (r *Registry) mustRegister(kind Kind, name, pattern string, h Handler, checks ...Check) {
	if err := r.Register(kind, name, pattern, h, checks...); err != nil {
		panic(err)
	}
}

// Match finds the handler for a single modifier command.
func (r *Registry) Match(kind Kind, raw string) (ModifierCall, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.kind != kind {
			continue
		}
		m := e.pattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		return ModifierCall{Raw: raw, Name: e.name, Args: m[1:], handler: e.handler, checks: e.checks}, true
	}
	return ModifierCall{}, false
}

// Names lists the registered modifier names for kind in registration order.
func (r *Registry) Names(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, e := range r.entries {
		if e.kind == kind {
			names = append(names, e.name)
		}
	}
	return names
}

var modifierChunk = regexp.MustCompile(`[A-Za-z]+[^A-Za-z]*`)

// SplitModifiers breaks a raw modifier run such as "r1kh3" into chunks, one
// per run of letters and its trailing arguments. Codes chained without
// arguments in between, as in "xkh3", stay in one chunk; Registry.Split
// separates those.
func SplitModifiers(s string) []string {
	return modifierChunk.FindAllString(s, -1)
}

// Split breaks a raw modifier run into the commands the registry knows for
// kind. A chunk that matches no command as a whole is cut after the longest
// leading code that does match, so "xkh3" gives "x" and "kh3". Text no
// command matches is returned unchanged for the caller to report.
func (r *Registry) Split(kind Kind, s string) []string {
	var out []string
	for _, chunk := range SplitModifiers(s) {
		out = append(out, r.splitChunk(kind, chunk)...)
	}
	return out
}

func (r *Registry) splitChunk(kind Kind, chunk string) []string {
	var out []string
	for chunk != "" {
		if _, ok := r.Match(kind, chunk); ok {
			return append(out, chunk)
		}
		cut := 0
		for i := leadingLetters(chunk) - 1; i > 0; i-- {
			if _, ok := r.Match(kind, chunk[:i]); ok {
				cut = i
				break
			}
		}
		if cut == 0 {
			return append(out, chunk)
		}
		out = append(out, chunk[:cut])
		chunk = chunk[cut:]
	}
	return out
}

func leadingLetters(s string) int {
	n := 0
	for n < len(s) && (s[n] >= 'a' && s[n] <= 'z' || s[n] >= 'A' && s[n] <= 'Z') {
		n++
	}
	return n
}

// ResultSet is the state a modifier handler works on.
type ResultSet struct {
	Kind    Kind
	Results []Result
	// Min and Max are the lowest and highest single draw. They are only
	// meaningful when Bounded is true (dice terms).
	Min, Max float64
	Bounded  bool
	Margin   *Margin
	// MaxIterations bounds recursive handlers.
	MaxIterations int
	// MaxDice bounds the number of draws, initial dice included.
	MaxDice int

	mode  Mode
	draw  func(ctx context.Context) (float64, error)
	drawn int
}

// Deterministic reports whether draws are fixed (minimize or maximize).
// Recursive handlers run a single pass in that case.
func (s *ResultSet) Deterministic() bool {
	return s.mode != ModeRandom
}

// Draw rolls one additional result.
func (s *ResultSet) Draw(ctx context.Context) (Result, error) {
	if s.draw == nil {
		return Result{}, fmt.Errorf("%s cannot draw new results", s.Kind)
	}
	if s.MaxDice > 0 && s.drawn >= s.MaxDice {
		return Result{}, &TooManyDiceError{Limit: s.MaxDice}
	}
	s.drawn++
	v, err := s.draw(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: v, Active: true}, nil
}

// Sum adds up the contribution of every result.
func (s *ResultSet) Sum() float64 {
	var total float64
	for _, r := range s.Results {
		total += r.Contribution()
	}
	return total
}

func (s *ResultSet) lowBound() *float64 {
	if !s.Bounded {
		return nil
	}
	v := s.Min
	return &v
}

func (s *ResultSet) highBound() *float64 {
	if !s.Bounded {
		return nil
	}
	v := s.Max
	return &v
}

const cmpPattern = `(<=|>=|<|>|=)?(\d+)?`

// DefaultRegistry returns a fresh registry holding the standard modifiers.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.mustRegister(KindDice, "reroll", `(rr?)`+cmpPattern, reroll, targetCheck(true))
	r.mustRegister(KindDice, "explode", `([xX]o?)`+cmpPattern, explode, targetCheck(true))
	r.mustRegister(KindDice, "minimum", `min(\d+)`, clamp(false), boundCheck)
	r.mustRegister(KindDice, "maximum", `max(\d+)`, clamp(true), boundCheck)
	r.mustRegister(KindDice, "even", `even`, countParity(0))
	r.mustRegister(KindDice, "odd", `odd`, countParity(1))

	for _, kind := range []Kind{KindDice, KindPool} {
		bounded := kind == KindDice
		r.mustRegister(kind, "keep", `k([hl])?(\d+)?`, keep, countCheck)
		r.mustRegister(kind, "drop", `d([hl])?(\d+)?`, drop, countCheck)
		r.mustRegister(kind, "countSuccess", `cs`+cmpPattern, countSuccess, targetCheck(bounded))
		r.mustRegister(kind, "countFailures", `cf`+cmpPattern, countFailures, targetCheck(bounded))
		r.mustRegister(kind, "deductFailures", `df`+cmpPattern, deductFailures, targetCheck(bounded))
		r.mustRegister(kind, "subtractFailures", `sf`+cmpPattern, subtractFailures, targetCheck(bounded))
		r.mustRegister(kind, "marginSuccess", `ms`+cmpPattern, marginSuccess, marginCheck)
	}
	return r
}

// targetCheck validates the trailing operator and number of a comparison
// pattern. Unbounded terms have no default target.
func targetCheck(bounded bool) Check {
	var fallback *float64
	if bounded {
		fallback = ptr(0.0)
	}
	return func(call ModifierCall) error {
		n := len(call.Args)
		_, err := comparison(call.Raw, call.Args[n-2], call.Args[n-1], fallback)
		return err
	}
}

func countCheck(call ModifierCall) error {
	_, err := parseCount(call.Raw, call.Args[1])
	return err
}

func marginCheck(call ModifierCall) error {
	_, err := margin(call)
	return err
}

func boundCheck(call ModifierCall) error {
	_, err := clampBound(call)
	return err
}

func ptr[T any](v T) *T { return &v }

func reroll(ctx context.Context, set *ResultSet, call ModifierCall) error {
	cmp, err := comparison(call.Raw, call.Args[1], call.Args[2], set.lowBound())
	if err != nil {
		return err
	}
	recursive := call.Args[0] == "rr" && !set.Deterministic()
	return redraw(ctx, set, call, cmp, recursive, func(orig *Result, next *Result) {
		orig.Active = false
		orig.Rerolled = true
	})
}

func explode(ctx context.Context, set *ResultSet, call ModifierCall) error {
	cmp, err := comparison(call.Raw, call.Args[1], call.Args[2], set.highBound())
	if err != nil {
		return err
	}
	recursive := !strings.HasSuffix(call.Args[0], "o") && !set.Deterministic()
	return redraw(ctx, set, call, cmp, recursive, func(_ *Result, next *Result) {
		next.Exploded = true
	})
}

// redraw appends one new draw for every active result matching cmp. When
// recursive, appended results are checked too; each chain of draws is bounded
// by MaxIterations.
func redraw(ctx context.Context, set *ResultSet, call ModifierCall, cmp Comparison, recursive bool, mark func(orig, next *Result)) error {
	limit := set.MaxIterations
	if limit <= 0 {
		limit = DefaultMaxIterations
	}
	initial := len(set.Results)
	depth := make([]int, initial)

	for i := 0; i < len(set.Results); i++ {
		if !recursive && i >= initial {
			break
		}
		if !set.Results[i].Active || !cmp.Matches(set.Results[i].Value) {
			continue
		}
		if depth[i] >= limit {
			return &NonTerminatingModifierError{Modifier: call.Raw, Limit: limit}
		}
		next, err := set.Draw(ctx)
		if err != nil {
			return err
		}
		mark(&set.Results[i], &next)
		set.Results = append(set.Results, next)
		depth = append(depth, depth[i]+1)
	}
	return nil
}

func parseCount(raw, s string) (int, error) {
	if s == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ModifierError{Modifier: raw, Reason: "invalid count " + strconv.Quote(s)}
	}
	return n, nil
}

// ranked returns the indices of active results ordered by value. Ties keep
// their original order.
func ranked(results []Result, descending bool) []int {
	var idx []int
	for i, r := range results {
		if r.Active {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := results[idx[a]].Value, results[idx[b]].Value
		if descending {
			return va > vb
		}
		return va < vb
	})
	return idx
}

func discard(results []Result, idx []int) {
	for _, i := range idx {
		results[i].Active = false
		results[i].Discarded = true
	}
}

func keep(_ context.Context, set *ResultSet, call ModifierCall) error {
	n, err := parseCount(call.Raw, call.Args[1])
	if err != nil {
		return err
	}
	order := ranked(set.Results, call.Args[0] != "l")
	if n < len(order) {
		discard(set.Results, order[n:])
	}
	return nil
}

func drop(_ context.Context, set *ResultSet, call ModifierCall) error {
	n, err := parseCount(call.Raw, call.Args[1])
	if err != nil {
		return err
	}
	order := ranked(set.Results, call.Args[0] == "h")
	if n > len(order) {
		n = len(order)
	}
	discard(set.Results, order[:n])
	return nil
}

func markSuccesses(set *ResultSet, match func(float64) bool) {
	for i := range set.Results {
		r := &set.Results[i]
		if !r.Active {
			continue
		}
		if match(r.Value) {
			r.Success = ptr(true)
			r.Count = ptr(1.0)
			continue
		}
		r.Success = ptr(false)
		if r.Count == nil {
			r.Count = ptr(0.0)
		}
	}
}

func countSuccess(_ context.Context, set *ResultSet, call ModifierCall) error {
	cmp, err := comparison(call.Raw, call.Args[0], call.Args[1], set.highBound())
	if err != nil {
		return err
	}
	markSuccesses(set, cmp.Matches)
	return nil
}

func countParity(remainder int) Handler {
	return func(_ context.Context, set *ResultSet, _ ModifierCall) error {
		markSuccesses(set, func(v float64) bool {
			return int(v)%2 == remainder
		})
		return nil
	}
}

func countFailures(_ context.Context, set *ResultSet, call ModifierCall) error {
	cmp, err := comparison(call.Raw, call.Args[0], call.Args[1], set.lowBound())
	if err != nil {
		return err
	}
	counting := false
	for _, r := range set.Results {
		if r.Active && r.Count != nil {
			counting = true
			break
		}
	}
	for i := range set.Results {
		r := &set.Results[i]
		if !r.Active {
			continue
		}
		switch {
		case cmp.Matches(r.Value) && counting:
			r.Success = ptr(false)
			r.Count = ptr(-1.0)
		case cmp.Matches(r.Value):
			r.Success = ptr(false)
			r.Count = ptr(1.0)
		case r.Count == nil:
			r.Count = ptr(0.0)
		}
	}
	return nil
}

func deductFailures(_ context.Context, set *ResultSet, call ModifierCall) error {
	return markFailures(set, call, func(float64) float64 { return -1 })
}

func subtractFailures(_ context.Context, set *ResultSet, call ModifierCall) error {
	return markFailures(set, call, func(v float64) float64 { return -v })
}

func markFailures(set *ResultSet, call ModifierCall, contribution func(float64) float64) error {
	cmp, err := comparison(call.Raw, call.Args[0], call.Args[1], set.lowBound())
	if err != nil {
		return err
	}
	for i := range set.Results {
		r := &set.Results[i]
		if r.Active && cmp.Matches(r.Value) {
			r.Success = ptr(false)
			r.Count = ptr(contribution(r.Value))
		}
	}
	return nil
}

func margin(call ModifierCall) (*Margin, error) {
	op, num := call.Args[0], call.Args[1]
	if num == "" {
		return nil, &ModifierError{Modifier: call.Raw, Reason: "missing margin target"}
	}
	target, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return nil, &ModifierError{Modifier: call.Raw, Reason: "invalid target " + strconv.Quote(num)}
	}
	if op == "" {
		op = ">="
	}
	return &Margin{Operator: op, Target: target}, nil
}

func marginSuccess(_ context.Context, set *ResultSet, call ModifierCall) error {
	m, err := margin(call)
	if err != nil {
		return err
	}
	set.Margin = m
	return nil
}

func clampBound(call ModifierCall) (float64, error) {
	bound, err := strconv.ParseFloat(call.Args[0], 64)
	if err != nil {
		return 0, &ModifierError{Modifier: call.Raw, Reason: "invalid bound"}
	}
	return bound, nil
}

func clamp(upper bool) Handler {
	return func(_ context.Context, set *ResultSet, call ModifierCall) error {
		bound, err := clampBound(call)
		if err != nil {
			return err
		}
		for i := range set.Results {
			r := &set.Results[i]
			if !r.Active {
				continue
			}
			if upper && r.Value > bound || !upper && r.Value < bound {
				r.Value = bound
			}
		}
		return nil
	}
}
