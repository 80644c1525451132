package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sambeau/forgeval/pkg/forge/ast"
	ferrors "github.com/sambeau/forgeval/pkg/forge/errors"
	"github.com/sambeau/forgeval/pkg/forge/lexer"
)

// Precedence levels for operators, loosest first
const (
	_ int = iota
	LOWEST
	LOGIC_OR      // or, ||
	LOGIC_XOR     // xor
	LOGIC_IFF     // iff, <=>
	LOGIC_IMPLIES // implies, =>
	LOGIC_AND     // and, &&
	TEMPORAL      // until, release, since, triggered
	NEGATION      // not X, always X
	COMPARE       // = < > <= >= in is ni
	MULTIPLICITY  // some X, no X
	SUM           // + -
	CARDINALITY   // #X
	OVERRIDE      // ++
	INTERSECT     // &
	ARROW         // ->
	RESTRICT      // <: :>
	BOX           // e[args]
	DOT           // a.b
	PRIME         // e'
	UNARY         // ~X ^X *X @:X
)

// precedences maps infix tokens to their precedence
var precedences = map[lexer.TokenType]int{
	lexer.OR:        LOGIC_OR,
	lexer.OR_SYM:    LOGIC_OR,
	lexer.XOR:       LOGIC_XOR,
	lexer.IFF:       LOGIC_IFF,
	lexer.IFF_SYM:   LOGIC_IFF,
	lexer.IMPLIES:   LOGIC_IMPLIES,
	lexer.IMP_SYM:   LOGIC_IMPLIES,
	lexer.AND:       LOGIC_AND,
	lexer.AND_SYM:   LOGIC_AND,
	lexer.UNTIL:     TEMPORAL,
	lexer.RELEASE:   TEMPORAL,
	lexer.SINCE:     TEMPORAL,
	lexer.TRIGGERED: TEMPORAL,
	lexer.EQ:        COMPARE,
	lexer.NOT_EQ:    COMPARE,
	lexer.LT:        COMPARE,
	lexer.GT:        COMPARE,
	lexer.LTE:       COMPARE,
	lexer.GTE:       COMPARE,
	lexer.IN:        COMPARE,
	lexer.IS:        COMPARE,
	lexer.NI:        COMPARE,
	lexer.PLUS:      SUM,
	lexer.MINUS:     SUM,
	lexer.PLUSPLUS:  OVERRIDE,
	lexer.AMP:       INTERSECT,
	lexer.ARROW:     ARROW,
	lexer.DOMRES:    RESTRICT,
	lexer.RANRES:    RESTRICT,
	lexer.LBRACKET:  BOX,
	lexer.DOT:       DOT,
	lexer.PRIME:     PRIME,
}

// compareOperators maps comparison tokens to their normalized operator.
var compareOperators = map[lexer.TokenType]string{
	lexer.EQ:  "=",
	lexer.LT:  "<",
	lexer.GT:  ">",
	lexer.LTE: "<=",
	lexer.GTE: ">=",
	lexer.IN:  "in",
	lexer.IS:  "is",
	lexer.NI:  "ni",
}

// operatorNames normalizes symbolic spellings of word operators.
var operatorNames = map[lexer.TokenType]string{
	lexer.AND_SYM: "and",
	lexer.OR_SYM:  "or",
	lexer.IFF_SYM: "iff",
	lexer.IMP_SYM: "implies",
	lexer.BANG:    "not",
}

// Parser represents the parser
type Parser struct {
	l *lexer.Lexer

	structuredErrors []*ferrors.ForgeError

	prevToken lexer.Token
	curToken  lexer.Token
	peekToken lexer.Token

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// New creates a new parser instance
func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l: l,
	}

	p.prefixParseFns = make(map[lexer.TokenType]prefixParseFn)
	p.registerPrefix(lexer.IDENT, p.parseIdentifier)
	p.registerPrefix(lexer.NUMBER, p.parseNumberLiteral)
	p.registerPrefix(lexer.STRING, p.parseStringLiteral)
	p.registerPrefix(lexer.BOOL, p.parseBoolean)
	p.registerPrefix(lexer.NONE, p.parseConstant)
	p.registerPrefix(lexer.UNIV, p.parseConstant)
	p.registerPrefix(lexer.IDEN, p.parseConstant)
	p.registerPrefix(lexer.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(lexer.LBRACE, p.parseBraceExpression)
	p.registerPrefix(lexer.MINUS, p.parseNegativeNumber)
	p.registerPrefix(lexer.ILLEGAL, p.parseIllegal)

	for _, t := range []lexer.TokenType{lexer.NOT, lexer.BANG, lexer.ALWAYS, lexer.EVENTUALLY,
		lexer.AFTER, lexer.BEFORE, lexer.ONCE, lexer.HISTORICALLY} {
		p.registerPrefix(t, p.parseNegationLevelPrefix)
	}
	for _, t := range []lexer.TokenType{lexer.TILDE, lexer.CARET, lexer.STAR,
		lexer.LABEL, lexer.LABEL_STR, lexer.LABEL_BOOL, lexer.LABEL_NUM} {
		p.registerPrefix(t, p.parseUnaryPrefix)
	}
	p.registerPrefix(lexer.HASH, p.parseCardinality)
	for _, t := range []lexer.TokenType{lexer.ALL, lexer.NO, lexer.SOME, lexer.ONE,
		lexer.LONE, lexer.TWO, lexer.SUM, lexer.SET} {
		p.registerPrefix(t, p.parseQuantifierOrMultiplicity)
	}
	p.registerPrefix(lexer.LET, p.parseLetExpression)
	p.registerPrefix(lexer.BIND, p.parseLetExpression)
	p.registerPrefix(lexer.THIS, p.parseThis)
	p.registerPrefix(lexer.AT, p.parseAtName)
	p.registerPrefix(lexer.SEXPR, p.parseSexpr)

	p.infixParseFns = make(map[lexer.TokenType]infixParseFn)
	for _, t := range []lexer.TokenType{lexer.OR, lexer.OR_SYM, lexer.XOR, lexer.IFF, lexer.IFF_SYM,
		lexer.AND, lexer.AND_SYM, lexer.UNTIL, lexer.RELEASE, lexer.SINCE, lexer.TRIGGERED,
		lexer.PLUS, lexer.MINUS, lexer.PLUSPLUS, lexer.AMP, lexer.ARROW, lexer.DOMRES,
		lexer.RANRES, lexer.DOT} {
		p.registerInfix(t, p.parseInfixExpression)
	}
	p.registerInfix(lexer.IMPLIES, p.parseImpliesExpression)
	p.registerInfix(lexer.IMP_SYM, p.parseImpliesExpression)
	for t := range compareOperators {
		p.registerInfix(t, p.parseCompareExpression)
	}
	p.registerInfix(lexer.NOT_EQ, p.parseCompareExpression)
	p.registerInfix(lexer.NOT, p.parseNegatedCompare) // for 'not in', 'not ='
	p.registerInfix(lexer.BANG, p.parseNegatedCompare)
	p.registerInfix(lexer.LBRACKET, p.parseBoxJoin)
	p.registerInfix(lexer.PRIME, p.parsePrime)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

// ParseExpression parses input as a single expression. The returned error is
// a *ferrors.ForgeError describing the first problem found.
func ParseExpression(input string) (ast.Expression, error) {
	p := New(lexer.New(input))
	expr := p.Parse()
	if errs := p.StructuredErrors(); len(errs) > 0 {
		return nil, errs[0]
	}
	return expr, nil
}

// Parse parses one complete expression; anything left over is an error.
func (p *Parser) Parse() ast.Expression {
	expr := p.parseExpression(LOWEST)
	if len(p.structuredErrors) > 0 {
		return nil
	}
	if !p.peekTokenIs(lexer.EOF) {
		p.addStructuredError("PARSE-0009", p.peekToken.Line, p.peekToken.Column,
			map[string]any{"Token": tokenText(p.peekToken)})
		return nil
	}
	return expr
}

// Errors returns parser errors as strings (convenience method for tests).
// Prefer StructuredErrors() for production code.
func (p *Parser) Errors() []string {
	result := make([]string, len(p.structuredErrors))
	for i, err := range p.structuredErrors {
		if err.Line > 0 {
			result[i] = fmt.Sprintf("line %d, column %d: %s", err.Line, err.Column, err.Message)
		} else {
			result[i] = err.Message
		}
	}
	return result
}

// StructuredErrors returns parser errors as structured ForgeError objects.
func (p *Parser) StructuredErrors() []*ferrors.ForgeError {
	return p.structuredErrors
}

// addStructuredError adds a structured error from the catalog.
// Only the first error is recorded - subsequent errors are usually cascading noise.
func (p *Parser) addStructuredError(code string, line, column int, data map[string]any) {
	if len(p.structuredErrors) > 0 {
		return
	}
	perr := ferrors.NewWithPosition(code, line, column, data)
	if name := p.l.Filename(); name != "<input>" {
		perr = perr.WithFile(name)
	}
	p.structuredErrors = append(p.structuredErrors, perr)
}

func (p *Parser) registerPrefix(tokenType lexer.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType lexer.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

// nextToken advances prevToken, curToken, and peekToken
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// parseExpression parses expressions using Pratt parsing
func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError()
		return nil
	}

	leftExp := prefix()
	if leftExp == nil {
		return nil
	}

	for precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}

		p.nextToken()

		leftExp = infix(leftExp)
		if leftExp == nil {
			return nil
		}
	}

	return leftExp
}

// peekPrecedence returns the binding power of the next token. 'not' and '!'
// only bind as infix operators when a comparison follows them; otherwise they
// start the next member of a block.
func (p *Parser) peekPrecedence() int {
	if p.peekTokenIs(lexer.NOT) || p.peekTokenIs(lexer.BANG) {
		if _, ok := compareOperators[p.l.PeekToken().Type]; ok {
			return COMPARE
		}
		return LOWEST
	}
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

// ---------------------------------------------------------------------------
// Prefix parse functions
// ---------------------------------------------------------------------------

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.addStructuredError("PARSE-0004", p.curToken.Line, p.curToken.Column,
			map[string]any{"Literal": p.curToken.Literal})
		return nil
	}
	return &ast.NumberLiteral{Token: p.curToken, Value: value}
}

// parseNegativeNumber folds '-' into the number that must follow it.
func (p *Parser) parseNegativeNumber() ast.Expression {
	minus := p.curToken
	if !p.peekTokenIs(lexer.NUMBER) {
		p.addStructuredError("PARSE-0008", p.peekToken.Line, p.peekToken.Column,
			map[string]any{"Got": tokenText(p.peekToken)})
		return nil
	}
	p.nextToken()
	lit, ok := p.parseNumberLiteral().(*ast.NumberLiteral)
	if !ok {
		return nil
	}
	minus.Literal = "-" + p.curToken.Literal
	return &ast.NumberLiteral{Token: minus, Value: -lit.Value}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curToken.Literal == "#t"}
}

func (p *Parser) parseConstant() ast.Expression {
	return &ast.ConstantExpression{Token: p.curToken, Name: p.curToken.Literal}
}

func (p *Parser) parseIllegal() ast.Expression {
	tok := p.curToken
	switch tok.Literal {
	case "unterminated string":
		p.addStructuredError("PARSE-0003", tok.Line, tok.Column, nil)
	case "unterminated quoted identifier":
		p.addStructuredError("PARSE-0005", tok.Line, tok.Column, nil)
	default:
		p.addStructuredError("PARSE-0007", tok.Line, tok.Column, map[string]any{"Char": tok.Literal})
	}
	return nil
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil
	}
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return exp
}

// parseNegationLevelPrefix handles not, ! and the unary temporal operators.
// Their operand stops before the logical connectives, so `not a = b` negates
// the comparison and `not a and b` negates only a.
func (p *Parser) parseNegationLevelPrefix() ast.Expression {
	expression := &ast.PrefixExpression{Token: p.curToken, Operator: normalizeOperator(p.curToken)}
	p.nextToken()
	expression.Right = p.parseExpression(NEGATION)
	if expression.Right == nil {
		return nil
	}
	return expression
}

// parseUnaryPrefix handles ~, ^, * and the label operators, which bind
// tighter than any infix operator.
func (p *Parser) parseUnaryPrefix() ast.Expression {
	expression := &ast.PrefixExpression{Token: p.curToken, Operator: p.curToken.Literal}
	p.nextToken()
	expression.Right = p.parseExpression(UNARY)
	if expression.Right == nil {
		return nil
	}
	return expression
}

func (p *Parser) parseCardinality() ast.Expression {
	expression := &ast.PrefixExpression{Token: p.curToken, Operator: "#"}
	p.nextToken()
	expression.Right = p.parseExpression(CARDINALITY)
	if expression.Right == nil {
		return nil
	}
	return expression
}

// parseQuantifierOrMultiplicity decides between `some x: S | body` and
// `some S` by looking at the two tokens after the keyword.
func (p *Parser) parseQuantifierOrMultiplicity() ast.Expression {
	if p.peekTokenIs(lexer.DISJ) || p.startsDecls() {
		if p.curTokenIs(lexer.SET) {
			p.addStructuredError("PARSE-0002", p.curToken.Line, p.curToken.Column,
				map[string]any{"Token": p.curToken.Literal})
			return nil
		}
		return p.parseQuantifiedExpression()
	}
	if p.curTokenIs(lexer.ALL) || p.curTokenIs(lexer.SUM) {
		p.addStructuredError("PARSE-0001", p.peekToken.Line, p.peekToken.Column,
			map[string]any{"Expected": "a declaration after '" + p.curToken.Literal + "'", "Got": tokenText(p.peekToken)})
		return nil
	}

	expression := &ast.MultiplicityExpression{Token: p.curToken, Multiplicity: p.curToken.Literal}
	p.nextToken()
	expression.Right = p.parseExpression(COMPARE)
	if expression.Right == nil {
		return nil
	}
	return expression
}

// startsDecls reports whether the peek token begins `x:` or `x,`.
func (p *Parser) startsDecls() bool {
	if !p.peekTokenIs(lexer.IDENT) {
		return false
	}
	after := p.l.PeekToken().Type
	return after == lexer.COLON || after == lexer.COMMA
}

func (p *Parser) parseQuantifiedExpression() ast.Expression {
	expression := &ast.QuantifiedExpression{Token: p.curToken, Quantifier: p.curToken.Literal}

	if p.peekTokenIs(lexer.DISJ) {
		p.nextToken()
		expression.Disjoint = true
	}

	expression.Decls = p.parseDecls()
	if expression.Decls == nil {
		return nil
	}

	switch {
	case p.peekTokenIs(lexer.BAR):
		p.nextToken()
		p.nextToken()
		expression.Body = p.parseExpression(LOWEST)
	case p.peekTokenIs(lexer.LBRACE):
		p.nextToken()
		expression.Body = p.parseBlock()
	default:
		p.peekError("'|'")
		return nil
	}
	if expression.Body == nil {
		return nil
	}
	return expression
}

// parseDecls parses `a, b: D1, c: D2` leaving the last domain token current.
func (p *Parser) parseDecls() []*ast.Decl {
	var decls []*ast.Decl
	for {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		decl := &ast.Decl{Names: []*ast.Identifier{{Token: p.curToken, Value: p.curToken.Literal}}}
		for p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
			if !p.expectPeek(lexer.IDENT) {
				return nil
			}
			decl.Names = append(decl.Names, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})
		}
		if !p.expectPeek(lexer.COLON) {
			return nil
		}
		p.nextToken()
		decl.Domain = p.parseExpression(LOWEST)
		if decl.Domain == nil {
			return nil
		}
		decls = append(decls, decl)

		if !p.peekTokenIs(lexer.COMMA) {
			return decls
		}
		p.nextToken()
	}
}

// parseBraceExpression parses `{` as a comprehension when a declaration
// follows and as a block otherwise.
func (p *Parser) parseBraceExpression() ast.Expression {
	if !p.startsDecls() {
		return p.parseBlock()
	}

	expression := &ast.ComprehensionExpression{Token: p.curToken}
	expression.Decls = p.parseDecls()
	if expression.Decls == nil {
		return nil
	}
	if !p.expectPeek(lexer.BAR) {
		return nil
	}
	p.nextToken()
	expression.Body = p.parseExpression(LOWEST)
	if expression.Body == nil {
		return nil
	}
	if !p.expectPeek(lexer.RBRACE) {
		return nil
	}
	return expression
}

// parseBlock parses `{ e1 e2 ... }` with curToken on the opening brace.
func (p *Parser) parseBlock() ast.Expression {
	block := &ast.BlockExpression{Token: p.curToken}
	if p.peekTokenIs(lexer.RBRACE) {
		p.addStructuredError("PARSE-0006", p.curToken.Line, p.curToken.Column, nil)
		return nil
	}

	for !p.peekTokenIs(lexer.RBRACE) {
		if p.peekTokenIs(lexer.EOF) {
			p.peekError("'}'")
			return nil
		}
		p.nextToken()
		exp := p.parseExpression(LOWEST)
		if exp == nil {
			return nil
		}
		block.Expressions = append(block.Expressions, exp)
	}
	p.nextToken()
	return block
}

// parseLetExpression parses `let x = e, y = f | body` and the bind form.
func (p *Parser) parseLetExpression() ast.Expression {
	expression := &ast.LetExpression{Token: p.curToken, Keyword: p.curToken.Literal}
	for {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		binding := &ast.LetBinding{Name: &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}}
		if !p.expectPeek(lexer.EQ) {
			return nil
		}
		p.nextToken()
		binding.Value = p.parseExpression(LOWEST)
		if binding.Value == nil {
			return nil
		}
		expression.Bindings = append(expression.Bindings, binding)
		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
	}

	switch {
	case p.peekTokenIs(lexer.BAR):
		p.nextToken()
		p.nextToken()
		expression.Body = p.parseExpression(LOWEST)
	case p.peekTokenIs(lexer.LBRACE):
		p.nextToken()
		expression.Body = p.parseBlock()
	default:
		p.peekError("'|'")
		return nil
	}
	if expression.Body == nil {
		return nil
	}
	return expression
}

func (p *Parser) parseThis() ast.Expression {
	return &ast.UnsupportedExpression{Token: p.curToken, Feature: "this", Text: "this"}
}

// parseAtName parses the unlabeled-field form @name.
func (p *Parser) parseAtName() ast.Expression {
	tok := p.curToken
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	return &ast.UnsupportedExpression{Token: tok, Feature: "@name", Text: "@" + p.curToken.Literal}
}

// parseSexpr skips a balanced sexpr{...} body.
func (p *Parser) parseSexpr() ast.Expression {
	tok := p.curToken
	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	var text strings.Builder
	text.WriteString("sexpr{")
	depth := 1
	for depth > 0 {
		p.nextToken()
		switch p.curToken.Type {
		case lexer.EOF:
			p.addStructuredError("PARSE-0001", p.curToken.Line, p.curToken.Column,
				map[string]any{"Expected": "'}'", "Got": "end of input"})
			return nil
		case lexer.LBRACE:
			depth++
		case lexer.RBRACE:
			depth--
		}
		if depth > 0 && text.Len() > len("sexpr{") {
			text.WriteString(" ")
		}
		if depth > 0 {
			text.WriteString(p.curToken.Literal)
		}
	}
	text.WriteString("}")
	return &ast.UnsupportedExpression{Token: tok, Feature: "sexpr", Text: text.String()}
}

// ---------------------------------------------------------------------------
// Infix parse functions
// ---------------------------------------------------------------------------

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Left:     left,
		Operator: normalizeOperator(p.curToken),
	}

	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)
	if expression.Right == nil {
		return nil
	}
	return expression
}

// parseImpliesExpression is right associative and takes an optional else
// branch, which turns it into an IfExpression.
func (p *Parser) parseImpliesExpression(left ast.Expression) ast.Expression {
	tok := p.curToken
	p.nextToken()
	right := p.parseExpression(LOGIC_IMPLIES - 1)
	if right == nil {
		return nil
	}

	if !p.peekTokenIs(lexer.ELSE) {
		return &ast.InfixExpression{Token: tok, Left: left, Operator: "implies", Right: right}
	}

	p.nextToken()
	p.nextToken()
	alternative := p.parseExpression(LOGIC_IMPLIES - 1)
	if alternative == nil {
		return nil
	}
	return &ast.IfExpression{Token: tok, Condition: left, Consequence: right, Alternative: alternative}
}

func (p *Parser) parseCompareExpression(left ast.Expression) ast.Expression {
	expression := &ast.CompareExpression{Token: p.curToken, Left: left}
	if p.curTokenIs(lexer.NOT_EQ) {
		expression.Operator = "="
		expression.Negated = true
	} else {
		expression.Operator = compareOperators[p.curToken.Type]
	}

	p.nextToken()
	expression.Right = p.parseExpression(COMPARE)
	if expression.Right == nil {
		return nil
	}
	return expression
}

// parseNegatedCompare handles the compound forms 'not in', '!=' spelled
// 'not =', '! <' and so on. peekPrecedence only routes here when a
// comparison operator follows.
func (p *Parser) parseNegatedCompare(left ast.Expression) ast.Expression {
	notToken := p.curToken
	p.nextToken()
	op, ok := compareOperators[p.curToken.Type]
	if !ok {
		p.addStructuredError("PARSE-0001", p.curToken.Line, p.curToken.Column,
			map[string]any{"Expected": "a comparison after '" + notToken.Literal + "'", "Got": tokenText(p.curToken)})
		return nil
	}

	expression := &ast.CompareExpression{Token: notToken, Left: left, Operator: op, Negated: true}
	p.nextToken()
	expression.Right = p.parseExpression(COMPARE)
	if expression.Right == nil {
		return nil
	}
	return expression
}

// parseBoxJoin parses e[a, b, ...].
func (p *Parser) parseBoxJoin(base ast.Expression) ast.Expression {
	expression := &ast.BoxJoinExpression{Token: p.curToken, Base: base}
	args := p.parseExpressionList(lexer.RBRACKET)
	if args == nil {
		return nil
	}
	expression.Args = args
	return expression
}

func (p *Parser) parsePrime(left ast.Expression) ast.Expression {
	return &ast.PrimeExpression{Token: p.curToken, Left: left}
}

// parseExpressionList parses comma separated expressions up to end. A nil
// result means an error was recorded; an empty list is non-nil.
func (p *Parser) parseExpressionList(end lexer.TokenType) []ast.Expression {
	list := []ast.Expression{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil
	}
	list = append(list, exp)

	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		exp := p.parseExpression(LOWEST)
		if exp == nil {
			return nil
		}
		list = append(list, exp)
	}

	if !p.expectPeek(end) {
		return nil
	}

	return list
}

// Helper functions
func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(tokenTypeToReadableName(t))
	return false
}

func (p *Parser) peekError(expected string) {
	p.addStructuredError("PARSE-0001", p.peekToken.Line, p.peekToken.Column,
		map[string]any{"Expected": expected, "Got": tokenText(p.peekToken)})
}

func (p *Parser) noPrefixParseFnError() {
	tok := p.curToken
	p.addStructuredError("PARSE-0002", tok.Line, tok.Column, map[string]any{"Token": tokenText(tok)})
}

func normalizeOperator(tok lexer.Token) string {
	if name, ok := operatorNames[tok.Type]; ok {
		return name
	}
	return tok.Literal
}

func tokenText(tok lexer.Token) string {
	if tok.Type == lexer.EOF {
		return "end of input"
	}
	return tok.Literal
}

func tokenTypeToReadableName(t lexer.TokenType) string {
	switch t {
	case lexer.IDENT:
		return "a name"
	case lexer.NUMBER:
		return "a number"
	case lexer.EOF:
		return "end of input"
	default:
		return "'" + t.String() + "'"
	}
}
