package lexer

import (
	"fmt"
	"strings"
)

// TokenType represents different types of tokens
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	// Identifiers and literals
	IDENT  // Board, next, seq/Int, `set`
	NUMBER // 42
	STRING // "foobar"
	BOOL   // #t, #f

	// Relational operators
	PLUS     // +
	MINUS    // -
	AMP      // &
	ARROW    // ->
	DOT      // .
	TILDE    // ~
	CARET    // ^
	STAR     // *
	HASH     // #
	PRIME    // '
	PLUSPLUS // ++
	DOMRES   // <:
	RANRES   // :>

	// Comparison and logic
	EQ      // = or ==
	NOT_EQ  // !=
	LT      // <
	GT      // >
	LTE     // <=
	GTE     // >=
	BANG    // !
	AND_SYM // &&
	OR_SYM  // ||
	IMP_SYM // =>
	IFF_SYM // <=>

	// Label operators
	LABEL      // @:
	LABEL_STR  // @str:
	LABEL_BOOL // @bool:
	LABEL_NUM  // @num:
	AT         // @

	// Delimiters
	COMMA    // ,
	COLON    // :
	BAR      // |
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	LBRACE   // {
	RBRACE   // }

	// Keywords
	ALL          // "all"
	NO           // "no"
	SOME         // "some"
	ONE          // "one"
	LONE         // "lone"
	TWO          // "two"
	SET          // "set"
	SUM          // "sum"
	DISJ         // "disj"
	AND          // "and"
	OR           // "or"
	XOR          // "xor"
	IFF          // "iff"
	IMPLIES      // "implies"
	ELSE         // "else"
	NOT          // "not"
	IN           // "in"
	IS           // "is"
	NI           // "ni"
	LET          // "let"
	BIND         // "bind"
	NONE         // "none"
	UNIV         // "univ"
	IDEN         // "iden"
	THIS         // "this"
	SEXPR        // "sexpr"
	UNTIL        // "until"
	RELEASE      // "release"
	SINCE        // "since"
	TRIGGERED    // "triggered"
	ALWAYS       // "always"
	EVENTUALLY   // "eventually"
	AFTER        // "after"
	BEFORE       // "before"
	ONCE         // "once"
	HISTORICALLY // "historically"
)

// Token represents a single token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %s, Line: %d, Column: %d}",
		t.Type.String(), t.Literal, t.Line, t.Column)
}

var tokenNames = map[TokenType]string{
	ILLEGAL:    "ILLEGAL",
	EOF:        "EOF",
	IDENT:      "IDENT",
	NUMBER:     "NUMBER",
	STRING:     "STRING",
	BOOL:       "BOOL",
	PLUS:       "+",
	MINUS:      "-",
	AMP:        "&",
	ARROW:      "->",
	DOT:        ".",
	TILDE:      "~",
	CARET:      "^",
	STAR:       "*",
	HASH:       "#",
	PRIME:      "'",
	PLUSPLUS:   "++",
	DOMRES:     "<:",
	RANRES:     ":>",
	EQ:         "=",
	NOT_EQ:     "!=",
	LT:         "<",
	GT:         ">",
	LTE:        "<=",
	GTE:        ">=",
	BANG:       "!",
	AND_SYM:    "&&",
	OR_SYM:     "||",
	IMP_SYM:    "=>",
	IFF_SYM:    "<=>",
	LABEL:      "@:",
	LABEL_STR:  "@str:",
	LABEL_BOOL: "@bool:",
	LABEL_NUM:  "@num:",
	AT:         "@",
	COMMA:      ",",
	COLON:      ":",
	BAR:        "|",
	LPAREN:     "(",
	RPAREN:     ")",
	LBRACKET:   "[",
	RBRACKET:   "]",
	LBRACE:     "{",
	RBRACE:     "}",
}

// String returns a string representation of the token type. Keywords render
// as the keyword itself.
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	for word, t := range keywords {
		if t == tt {
			return word
		}
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

var keywords = map[string]TokenType{
	"all":          ALL,
	"no":           NO,
	"some":         SOME,
	"one":          ONE,
	"lone":         LONE,
	"two":          TWO,
	"set":          SET,
	"sum":          SUM,
	"disj":         DISJ,
	"and":          AND,
	"or":           OR,
	"xor":          XOR,
	"iff":          IFF,
	"implies":      IMPLIES,
	"else":         ELSE,
	"not":          NOT,
	"in":           IN,
	"is":           IS,
	"ni":           NI,
	"let":          LET,
	"bind":         BIND,
	"none":         NONE,
	"univ":         UNIV,
	"iden":         IDEN,
	"this":         THIS,
	"sexpr":        SEXPR,
	"until":        UNTIL,
	"release":      RELEASE,
	"since":        SINCE,
	"triggered":    TRIGGERED,
	"always":       ALWAYS,
	"eventually":   EVENTUALLY,
	"after":        AFTER,
	"before":       BEFORE,
	"once":         ONCE,
	"historically": HISTORICALLY,
}

// LookupIdent checks if an identifier is a keyword
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword reports whether word is reserved.
func IsKeyword(word string) bool {
	_, ok := keywords[word]
	return ok
}

// Lexer represents the lexical analyzer
type Lexer struct {
	filename     string
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
	column       int
}

// New creates a new lexer instance
func New(input string) *Lexer {
	return NewWithFilename(input, "<input>")
}

// NewWithFilename creates a new lexer instance with a specific filename
func NewWithFilename(input string, filename string) *Lexer {
	l := &Lexer{
		filename: filename,
		input:    input,
		line:     1,
	}
	l.readChar()
	return l
}

// Filename returns the name the lexer reports positions against.
func (l *Lexer) Filename() string {
	return l.filename
}

// LexerState holds the state of a lexer for save/restore
type LexerState struct {
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
}

// SaveState saves the current lexer state for potential restoration
func (l *Lexer) SaveState() LexerState {
	return LexerState{l.position, l.readPosition, l.ch, l.line, l.column}
}

// RestoreState restores the lexer to a previously saved state
func (l *Lexer) RestoreState(state LexerState) {
	l.position = state.position
	l.readPosition = state.readPosition
	l.ch = state.ch
	l.line = state.line
	l.column = state.column
}

// PeekToken returns the next token without consuming it. The parser uses it
// to tell a quantifier (`some x: S | ...`) from a multiplicity test
// (`some S`).
func (l *Lexer) PeekToken() Token {
	state := l.SaveState()
	tok := l.NextToken()
	l.RestoreState(state)
	return tok
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		return
	}
	l.ch = l.input[l.readPosition]
	l.position = l.readPosition
	l.readPosition++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// peekCharN returns the character n positions ahead without advancing position
func (l *Lexer) peekCharN(n int) byte {
	pos := l.readPosition + n - 1
	if pos >= len(l.input) {
		return 0
	}
	return l.input[pos]
}

// NextToken scans the input and returns the next token
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	line, col := l.line, l.column
	var tok Token

	switch l.ch {
	case '=':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = Token{Type: EQ, Literal: "==", Line: line, Column: col}
		case '>':
			l.readChar()
			tok = Token{Type: IMP_SYM, Literal: "=>", Line: line, Column: col}
		default:
			tok = newToken(EQ, l.ch, line, col)
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: NOT_EQ, Literal: "!=", Line: line, Column: col}
		} else {
			tok = newToken(BANG, l.ch, line, col)
		}
	case '<':
		switch {
		case l.peekChar() == '=' && l.peekCharN(2) == '>':
			l.readChar()
			l.readChar()
			tok = Token{Type: IFF_SYM, Literal: "<=>", Line: line, Column: col}
		case l.peekChar() == '=':
			l.readChar()
			tok = Token{Type: LTE, Literal: "<=", Line: line, Column: col}
		case l.peekChar() == ':':
			l.readChar()
			tok = Token{Type: DOMRES, Literal: "<:", Line: line, Column: col}
		default:
			tok = newToken(LT, l.ch, line, col)
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: GTE, Literal: ">=", Line: line, Column: col}
		} else {
			tok = newToken(GT, l.ch, line, col)
		}
	case ':':
		if l.peekChar() == '>' {
			l.readChar()
			tok = Token{Type: RANRES, Literal: ":>", Line: line, Column: col}
		} else {
			tok = newToken(COLON, l.ch, line, col)
		}
	case '+':
		if l.peekChar() == '+' {
			l.readChar()
			tok = Token{Type: PLUSPLUS, Literal: "++", Line: line, Column: col}
		} else {
			tok = newToken(PLUS, l.ch, line, col)
		}
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			tok = Token{Type: ARROW, Literal: "->", Line: line, Column: col}
		} else {
			tok = newToken(MINUS, l.ch, line, col)
		}
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			tok = Token{Type: AND_SYM, Literal: "&&", Line: line, Column: col}
		} else {
			tok = newToken(AMP, l.ch, line, col)
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = Token{Type: OR_SYM, Literal: "||", Line: line, Column: col}
		} else {
			tok = newToken(BAR, l.ch, line, col)
		}
	case '#':
		if (l.peekChar() == 't' || l.peekChar() == 'f') && !isIdentChar(l.peekCharN(2)) {
			l.readChar()
			tok = Token{Type: BOOL, Literal: "#" + string(l.ch), Line: line, Column: col}
		} else {
			tok = newToken(HASH, l.ch, line, col)
		}
	case '@':
		return l.readAtOperator(line, col)
	case '.':
		tok = newToken(DOT, l.ch, line, col)
	case '~':
		tok = newToken(TILDE, l.ch, line, col)
	case '^':
		tok = newToken(CARET, l.ch, line, col)
	case '*':
		tok = newToken(STAR, l.ch, line, col)
	case '\'':
		tok = newToken(PRIME, l.ch, line, col)
	case ',':
		tok = newToken(COMMA, l.ch, line, col)
	case '(':
		tok = newToken(LPAREN, l.ch, line, col)
	case ')':
		tok = newToken(RPAREN, l.ch, line, col)
	case '[':
		tok = newToken(LBRACKET, l.ch, line, col)
	case ']':
		tok = newToken(RBRACKET, l.ch, line, col)
	case '{':
		tok = newToken(LBRACE, l.ch, line, col)
	case '}':
		tok = newToken(RBRACE, l.ch, line, col)
	case '"':
		str, ok := l.readString()
		if !ok {
			return Token{Type: ILLEGAL, Literal: "unterminated string", Line: line, Column: col}
		}
		tok = Token{Type: STRING, Literal: str, Line: line, Column: col}
	case '`':
		name, ok := l.readQuotedIdentifier()
		if !ok {
			return Token{Type: ILLEGAL, Literal: "unterminated quoted identifier", Line: line, Column: col}
		}
		tok = Token{Type: IDENT, Literal: name, Line: line, Column: col}
	case 0:
		return Token{Type: EOF, Literal: "", Line: line, Column: col}
	default:
		if isLetter(l.ch) {
			ident := l.readIdentifier()
			return Token{Type: LookupIdent(ident), Literal: ident, Line: line, Column: col}
		}
		if isDigit(l.ch) {
			return Token{Type: NUMBER, Literal: l.readNumber(), Line: line, Column: col}
		}
		tok = newToken(ILLEGAL, l.ch, line, col)
	}

	l.readChar()
	return tok
}

// newToken creates a new token with the given parameters
func newToken(tokenType TokenType, ch byte, line, column int) Token {
	return Token{Type: tokenType, Literal: string(ch), Line: line, Column: column}
}

var labelOperators = []struct {
	text string
	typ  TokenType
}{
	{"@str:", LABEL_STR},
	{"@bool:", LABEL_BOOL},
	{"@num:", LABEL_NUM},
	{"@:", LABEL},
}

func (l *Lexer) readAtOperator(line, col int) Token {
	rest := l.input[l.position:]
	for _, op := range labelOperators {
		if strings.HasPrefix(rest, op.text) {
			for range op.text {
				l.readChar()
			}
			return Token{Type: op.typ, Literal: op.text, Line: line, Column: col}
		}
	}
	l.readChar()
	return Token{Type: AT, Literal: "@", Line: line, Column: col}
}

// readIdentifier reads a name; `/` joins the segments of a qualified name
// such as seq/Int.
func (l *Lexer) readIdentifier() string {
	position := l.position
	for {
		for isIdentChar(l.ch) {
			l.readChar()
		}
		if l.ch == '/' && isLetter(l.peekChar()) {
			l.readChar()
			continue
		}
		break
	}
	return l.input[position:l.position]
}

func (l *Lexer) readNumber() string {
	position := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) readString() (string, bool) {
	var result []byte
	l.readChar() // skip opening quote

	for l.ch != '"' && l.ch != 0 && l.ch != '\n' {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case '\\', '"':
				result = append(result, l.ch)
			default:
				result = append(result, '\\', l.ch)
			}
		} else {
			result = append(result, l.ch)
		}
		l.readChar()
	}

	return string(result), l.ch == '"'
}

// readQuotedIdentifier reads a backquoted name, which may be a reserved word.
// A backslash escapes the following character.
func (l *Lexer) readQuotedIdentifier() (string, bool) {
	var result []byte
	l.readChar() // skip opening backquote

	for l.ch != '`' && l.ch != 0 && l.ch != '\n' {
		if l.ch == '\\' && l.peekChar() != 0 {
			l.readChar()
		}
		result = append(result, l.ch)
		l.readChar()
	}

	return string(result), l.ch == '`'
}

// skipWhitespaceAndComments skips blanks and `--`, `//` and `/* */` comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case (l.ch == '-' && l.peekChar() == '-') || (l.ch == '/' && l.peekChar() == '/'):
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for l.ch != 0 && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar()
				l.readChar()
			}
		default:
			return
		}
	}
}

func isLetter(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isIdentChar(ch byte) bool {
	return isLetter(ch) || isDigit(ch)
}
