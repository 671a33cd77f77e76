// Package lexer tokenizes dice formulas.
//
// The lexer walks the formula byte by byte and emits a flat stream of [Token]
// values until [EOF]. Modifier runs (kh3, r<=2, cs>=5df) are only recognized
// when they immediately follow a dice token or a closing pool brace; anywhere
// else a letter is [ILLEGAL].
package lexer

import "fmt"

// Type identifies the lexical class of a token.
type Type int

const (
	ILLEGAL Type = iota
	EOF

	NUMBER    // 3, 2.5
	DICE      // d6, 4d6, 1d%
	MODIFIERS // kh3, r<=2, cs>=5df

	PLUS     // +
	MINUS    // -
	ASTERISK // *
	SLASH    // /

	LPAREN // (
	RPAREN // )
	LBRACE // {
	RBRACE // }
	COMMA  // ,

	FLAVOR // [text]
)

var typeNames = map[Type]string{
	ILLEGAL:   "ILLEGAL",
	EOF:       "EOF",
	NUMBER:    "NUMBER",
	DICE:      "DICE",
	MODIFIERS: "MODIFIERS",
	PLUS:      "+",
	MINUS:     "-",
	ASTERISK:  "*",
	SLASH:     "/",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACE:    "{",
	RBRACE:    "}",
	COMMA:     ",",
	FLAVOR:    "FLAVOR",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Token is a single lexeme. Offset and End are byte positions in the source,
// End exclusive. For FLAVOR the literal is the bracket content only.
type Token struct {
	Type    Type
	Literal string
	Offset  int
	End     int
}

// Lexer holds the scanning state for one formula. It is not safe for
// concurrent use.
type Lexer struct {
	input   string
	pos     int
	readPos int
	ch      byte

	// set after DICE or RBRACE so a directly attached letter run is read as
	// modifiers
	modifiable bool
}

// New creates a Lexer positioned at the start of input.
func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Tokenize scans the whole input. The final token is always EOF unless an
// ILLEGAL token was produced, in which case scanning stops there.
func Tokenize(input string) []Token {
	l := New(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF || tok.Type == ILLEGAL {
			return tokens
		}
	}
}

// NextToken returns the next token. After the input is exhausted every call
// returns EOF.
func (l *Lexer) NextToken() Token {
	if l.modifiable {
		l.modifiable = false
		if isLetter(l.ch) {
			return l.readModifiers()
		}
	}

	l.skipWhitespace()

	var tok Token
	switch l.ch {
	case 0:
		return Token{Type: EOF, Offset: len(l.input), End: len(l.input)}
	case '+':
		tok = l.makeToken(PLUS)
	case '-':
		tok = l.makeToken(MINUS)
	case '*':
		tok = l.makeToken(ASTERISK)
	case '/':
		tok = l.makeToken(SLASH)
	case '(':
		tok = l.makeToken(LPAREN)
	case ')':
		tok = l.makeToken(RPAREN)
	case '{':
		tok = l.makeToken(LBRACE)
	case '}':
		tok = l.makeToken(RBRACE)
		l.modifiable = true
	case ',':
		tok = l.makeToken(COMMA)
	case '[':
		return l.readFlavor()
	default:
		switch {
		case isDigit(l.ch):
			return l.readNumberOrDice()
		case isDieLetter(l.ch) && (isDigit(l.peekChar()) || l.peekChar() == '%'):
			return l.readDice(l.pos)
		default:
			tok = l.makeToken(ILLEGAL)
		}
	}

	l.readChar()
	return tok
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// makeToken builds a one-byte token at the cursor without advancing.
func (l *Lexer) makeToken(t Type) Token {
	end := l.pos + 1
	if end > len(l.input) {
		end = len(l.input)
	}
	return Token{Type: t, Literal: l.input[l.pos:end], Offset: l.pos, End: end}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) readDigits() {
	for isDigit(l.ch) {
		l.readChar()
	}
}

// readNumberOrDice reads an integer or decimal, or a dice token when the
// integer is directly followed by a die letter.
func (l *Lexer) readNumberOrDice() Token {
	start := l.pos
	l.readDigits()

	if isDieLetter(l.ch) && (isDigit(l.peekChar()) || l.peekChar() == '%') {
		return l.readDice(start)
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		l.readDigits()
	}
	return Token{Type: NUMBER, Literal: l.input[start:l.pos], Offset: start, End: l.pos}
}

// readDice expects the cursor on the die letter.
func (l *Lexer) readDice(start int) Token {
	l.readChar() // d
	if l.ch == '%' {
		l.readChar()
	} else {
		l.readDigits()
	}
	l.modifiable = true
	return Token{Type: DICE, Literal: l.input[start:l.pos], Offset: start, End: l.pos}
}

func (l *Lexer) readModifiers() Token {
	start := l.pos
	for isModifierChar(l.ch) {
		l.readChar()
	}
	return Token{Type: MODIFIERS, Literal: l.input[start:l.pos], Offset: start, End: l.pos}
}

func (l *Lexer) readFlavor() Token {
	start := l.pos
	for {
		l.readChar()
		if l.ch == 0 {
			return Token{Type: ILLEGAL, Literal: l.input[start:], Offset: start, End: len(l.input)}
		}
		if l.ch == ']' {
			break
		}
	}
	tok := Token{Type: FLAVOR, Literal: l.input[start+1 : l.pos], Offset: start, End: l.pos + 1}
	l.readChar()
	return tok
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

func isDieLetter(ch byte) bool {
	return ch == 'd' || ch == 'D'
}

func isModifierChar(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '<' || ch == '>' || ch == '='
}
