// Package dice parses and evaluates dice formulas such as "4d6kh3" or
// "{2d20,1d12}kh1 + 3".
//
// A formula is parsed by [New] into a [Roll] holding a flat infix list of
// [Term] values. [Roll.Evaluate] draws the dice, applies modifiers and folds
// the arithmetic into a total.
//
// # Terms
//
// The term set is closed: [NumericTerm], [OperatorTerm], [ParentheticalTerm],
// [DiceTerm] and [PoolTerm]. Parenthetical and pool terms own nested Rolls and
// are resolved before folding.
//
// # Modifiers
//
// Modifier commands are matched once at parse time against a [Registry]
// passed through [WithRegistry]; chained codes such as "4d6xkh3" are split by
// [Registry.Split]. A command no entry accepts fails the parse with
// [*UnmatchedModifierError], or is recorded as a [Warning] when
// [WithLenientModifiers] is set. Arguments are checked at parse time too.
// Recursive rerolls and explosions are bounded by [WithMaxIterations], and
// every dice term by [WithMaxDice].
//
// # Determinism
//
// Evaluation is deterministic with respect to the [random.Source] in
// [EvaluateOptions]: the same formula and the same sequence of draws always
// produce the same results and total. Minimize and maximize replace every
// draw with 1 or the face count and never consult the source.
//
// # Serialization
//
// [Roll.ToJSON] and [FromJSON] round-trip a Roll exactly, evaluated or not.
// [FromData] accepts the same shape already decoded into a map.
package dice
