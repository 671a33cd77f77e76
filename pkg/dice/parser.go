package dice

import (
	"strconv"
	"strings"

	"github.com/aretw0/rollkit/internal/lexer"
)

// parser is a recursive-descent parser over the token stream:
//
//	Expression := Term (('+'|'-') Term)*
//	Term       := Factor (('*'|'/') Factor)*
//	Factor     := ('+'|'-')* (Numeric | Dice | Pool | '(' Expression ')') Flavor?
//
// The result is a flat infix term list; nesting survives only inside
// ParentheticalTerm and PoolTerm, which own their sub-rolls.
type parser struct {
	input    string
	cfg      *Config
	tokens   []lexer.Token
	pos      int
	warnings []Warning
}

func newParser(input string, cfg *Config) *parser {
	return &parser{input: input, cfg: cfg}
}

func (p *parser) parse() ([]Term, error) {
	p.tokens = lexer.Tokenize(p.input)
	if last := p.tokens[len(p.tokens)-1]; last.Type == lexer.ILLEGAL {
		return nil, p.errorAt(last, "unexpected character")
	}
	if p.cur().Type == lexer.EOF {
		return nil, p.errorAt(p.cur(), "empty formula")
	}
	terms, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.cur().Type != lexer.EOF {
		return nil, p.errorAt(p.cur(), "unexpected token")
	}
	return terms, nil
}

func (p *parser) cur() lexer.Token {
	return p.tokens[p.pos]
}

func (p *parser) prev() lexer.Token {
	if p.pos == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.pos-1]
}

func (p *parser) advance() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Type != lexer.EOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorAt(tok lexer.Token, reason string) *ParseError {
	if tok.Type == lexer.EOF {
		reason = "unexpected end of formula"
		if len(p.tokens) == 1 {
			reason = "empty formula"
		}
	}
	return &ParseError{Formula: p.input, Offset: tok.Offset, Near: tok.Literal, Reason: reason}
}

func (p *parser) parseExpression() ([]Term, error) {
	terms, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == lexer.PLUS || p.cur().Type == lexer.MINUS {
		terms = append(terms, NewOperatorTerm(p.advance().Literal))
		next, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next...)
	}
	return terms, nil
}

func (p *parser) parseTerm() ([]Term, error) {
	terms, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == lexer.ASTERISK || p.cur().Type == lexer.SLASH {
		terms = append(terms, NewOperatorTerm(p.advance().Literal))
		next, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next...)
	}
	return terms, nil
}

func (p *parser) parseFactor() ([]Term, error) {
	var terms []Term
	for p.cur().Type == lexer.PLUS || p.cur().Type == lexer.MINUS {
		terms = append(terms, NewOperatorTerm(p.advance().Literal))
	}

	var (
		term Term
		err  error
	)
	switch tok := p.cur(); tok.Type {
	case lexer.NUMBER:
		term, err = p.parseNumber()
	case lexer.DICE:
		term, err = p.parseDice()
	case lexer.LBRACE:
		term, err = p.parsePool()
	case lexer.LPAREN:
		term, err = p.parseParenthetical()
	default:
		return nil, p.errorAt(tok, "unexpected token")
	}
	if err != nil {
		return nil, err
	}
	return append(terms, term), nil
}

func (p *parser) parseFlavor() Options {
	if p.cur().Type != lexer.FLAVOR {
		return Options{}
	}
	return Options{Flavor: p.advance().Literal}
}

func (p *parser) parseModifiers(kind Kind) []string {
	if p.cur().Type != lexer.MODIFIERS {
		return nil
	}
	return p.cfg.Registry.Split(kind, p.advance().Literal)
}

func (p *parser) parseNumber() (Term, error) {
	tok := p.advance()
	n, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		return nil, p.errorAt(tok, "invalid number")
	}
	return NewNumericTerm(n, p.parseFlavor()), nil
}

func (p *parser) parseDice() (Term, error) {
	tok := p.advance()
	split := strings.IndexAny(tok.Literal, "dD")
	number := 1
	if split > 0 {
		n, err := strconv.Atoi(tok.Literal[:split])
		if err != nil {
			return nil, p.errorAt(tok, "invalid dice count")
		}
		number = n
	}
	faces := 100
	if f := tok.Literal[split+1:]; f != "%" {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, p.errorAt(tok, "invalid dice faces")
		}
		faces = n
	}

	modifiers := p.parseModifiers(KindDice)
	text := p.input[tok.Offset:p.prev().End]
	opts := p.parseFlavor()

	t, unmatched, err := NewDiceTerm(number, faces, modifiers, opts, p.cfg)
	if err != nil {
		return nil, err
	}
	if err := p.unmatched(KindDice, text, unmatched); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) unmatched(kind Kind, text string, modifiers []string) error {
	for _, m := range modifiers {
		if !p.cfg.Lenient {
			return &UnmatchedModifierError{Term: text, Kind: kind, Modifier: m}
		}
		p.warnings = append(p.warnings, Warning{Kind: kind, Term: text, Modifier: m})
	}
	return nil
}

// parseSubRoll parses one Expression into a nested Roll whose formula is the
// verbatim source text of the expression.
func (p *parser) parseSubRoll() (*Roll, error) {
	start := p.cur().Offset
	mark := len(p.warnings)
	terms, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	formula := strings.TrimSpace(p.input[start:p.prev().End])
	warnings := append([]Warning(nil), p.warnings[mark:]...)
	return &Roll{formula: formula, terms: terms, warnings: warnings, cfg: p.cfg}, nil
}

func (p *parser) parsePool() (Term, error) {
	open := p.advance()
	var rolls []*Roll
	for {
		r, err := p.parseSubRoll()
		if err != nil {
			return nil, err
		}
		rolls = append(rolls, r)

		tok := p.advance()
		if tok.Type == lexer.RBRACE {
			break
		}
		if tok.Type != lexer.COMMA {
			return nil, p.errorAt(tok, "expected ',' or '}' in pool")
		}
	}

	modifiers := p.parseModifiers(KindPool)
	text := p.input[open.Offset:p.prev().End]
	t, unmatched, err := newPoolTerm(rolls, modifiers, p.parseFlavor(), p.cfg.Registry)
	if err != nil {
		return nil, err
	}
	if err := p.unmatched(KindPool, text, unmatched); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) parseParenthetical() (Term, error) {
	p.advance()
	r, err := p.parseSubRoll()
	if err != nil {
		return nil, err
	}
	if tok := p.advance(); tok.Type != lexer.RPAREN {
		return nil, p.errorAt(tok, "expected ')'")
	}
	return &ParentheticalTerm{Term: r.formula, Roll: r, opts: p.parseFlavor()}, nil
}
