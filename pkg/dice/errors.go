package dice

import (
	"errors"
	"fmt"
)

var (
	// ErrParse matches every *ParseError.
	ErrParse = errors.New("parse error")
	// ErrInvalidDiceSpec matches every *InvalidDiceSpecError.
	ErrInvalidDiceSpec = errors.New("invalid dice specification")
	// ErrUnmatchedModifier matches every *UnmatchedModifierError.
	ErrUnmatchedModifier = errors.New("unmatched modifier")
	// ErrTooManyDice matches every *TooManyDiceError.
	ErrTooManyDice = errors.New("too many dice")
	// ErrNonTerminatingModifier matches every *NonTerminatingModifierError.
	ErrNonTerminatingModifier = errors.New("modifier did not terminate")
	// ErrModifier matches every *ModifierError.
	ErrModifier = errors.New("invalid modifier")
	// ErrSerialization matches every *SerializationError.
	ErrSerialization = errors.New("serialization error")

	ErrDivisionByZero   = errors.New("division by zero")
	ErrNotEvaluated     = errors.New("term has not been evaluated")
	ErrAlreadyEvaluated = errors.New("term has already been evaluated")
	ErrConflictingModes = errors.New("minimize and maximize are mutually exclusive")
	// ErrTotalMismatch is returned by Roll.Verify.
	ErrTotalMismatch = errors.New("total does not match terms")
)

// ParseError reports a formula the grammar could not consume.
type ParseError struct {
	Formula string
	Offset  int
	Near    string
	Reason  string
}

func (e *ParseError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("parse %q: %s at offset %d", e.Formula, e.Reason, e.Offset)
	}
	return fmt.Sprintf("parse %q: %s near %q at offset %d", e.Formula, e.Reason, e.Near, e.Offset)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// InvalidDiceSpecError reports a dice term with a negative count or
// non-positive faces.
type InvalidDiceSpecError struct {
	Number int
	Faces  int
}

func (e *InvalidDiceSpecError) Error() string {
	return fmt.Sprintf("invalid dice %dd%d: count must be >= 0 and faces > 0", e.Number, e.Faces)
}

func (e *InvalidDiceSpecError) Is(target error) bool { return target == ErrInvalidDiceSpec }

// TooManyDiceError reports a dice term that asks for, or draws through
// rerolls and explosions, more dice than the configured limit. Count is zero
// when the limit was hit while evaluating.
type TooManyDiceError struct {
	Count int
	Limit int
}

func (e *TooManyDiceError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("dice term drew more than %d dice", e.Limit)
	}
	return fmt.Sprintf("%d dice exceed the limit of %d", e.Count, e.Limit)
}

func (e *TooManyDiceError) Is(target error) bool { return target == ErrTooManyDice }

// UnmatchedModifierError reports a modifier command no registry entry
// accepts for the term kind.
type UnmatchedModifierError struct {
	Term     string
	Kind     Kind
	Modifier string
}

func (e *UnmatchedModifierError) Error() string {
	return fmt.Sprintf("unmatched modifier %q on %s %q", e.Modifier, e.Kind, e.Term)
}

func (e *UnmatchedModifierError) Is(target error) bool { return target == ErrUnmatchedModifier }

// NonTerminatingModifierError reports a recursive reroll or explode chain
// that exceeded the iteration limit.
type NonTerminatingModifierError struct {
	Modifier string
	Limit    int
}

func (e *NonTerminatingModifierError) Error() string {
	return fmt.Sprintf("modifier %q exceeded %d iterations", e.Modifier, e.Limit)
}

func (e *NonTerminatingModifierError) Is(target error) bool {
	return target == ErrNonTerminatingModifier
}

// ModifierError reports a modifier whose arguments are unusable.
type ModifierError struct {
	Modifier string
	Reason   string
}

func (e *ModifierError) Error() string {
	return fmt.Sprintf("modifier %q: %s", e.Modifier, e.Reason)
}

func (e *ModifierError) Is(target error) bool { return target == ErrModifier }

// SerializationError reports serialized data that cannot be turned back into
// a roll.
type SerializationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	msg := e.Reason
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "deserialize roll: " + msg
}

func (e *SerializationError) Unwrap() error { return e.Err }

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }
