package ast

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/sambeau/forgeval/pkg/forge/lexer"
)

// Node represents any node in the AST
type Node interface {
	TokenLiteral() string
	String() string
}

// Expression represents expression nodes. Every expression kind is one of
// the concrete types in this file; the evaluator and the free-variable
// analyzer switch over them exhaustively.
type Expression interface {
	Node
	expressionNode()
}

// Identifier is a bare or qualified name: a variable, type, atom, relation,
// builtin function or label.
type Identifier struct {
	Token lexer.Token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }

// NumberLiteral is an integer constant; a leading '-' is folded in.
type NumberLiteral struct {
	Token lexer.Token
	Value float64
}

func (n *NumberLiteral) expressionNode()      {}
func (n *NumberLiteral) TokenLiteral() string { return n.Token.Literal }
func (n *NumberLiteral) String() string {
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// StringLiteral is a double-quoted string.
type StringLiteral struct {
	Token lexer.Token
	Value string
}

func (s *StringLiteral) expressionNode()      {}
func (s *StringLiteral) TokenLiteral() string { return s.Token.Literal }
func (s *StringLiteral) String() string       { return strconv.Quote(s.Value) }

// BooleanLiteral is #t or #f. The names true and false are identifiers.
type BooleanLiteral struct {
	Token lexer.Token
	Value bool
}

func (b *BooleanLiteral) expressionNode()      {}
func (b *BooleanLiteral) TokenLiteral() string { return b.Token.Literal }
func (b *BooleanLiteral) String() string       { return b.Token.Literal }

// ConstantExpression is one of none, univ or iden.
type ConstantExpression struct {
	Token lexer.Token
	Name  string
}

func (c *ConstantExpression) expressionNode()      {}
func (c *ConstantExpression) TokenLiteral() string { return c.Token.Literal }
func (c *ConstantExpression) String() string       { return c.Name }

// PrefixExpression is a unary operator: not, ~, ^, *, #, a label operator or
// a temporal operator. Operator is normalized ("!" becomes "not").
type PrefixExpression struct {
	Token    lexer.Token
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	out.WriteString(pe.Operator)
	if isWordOperator(pe.Operator) {
		out.WriteString(" ")
	}
	out.WriteString(pe.Right.String())
	out.WriteString(")")
	return out.String()
}

// MultiplicityExpression tests the size of a set: some e, no e, lone e,
// one e, and the unsupported set e and two e.
type MultiplicityExpression struct {
	Token        lexer.Token
	Multiplicity string
	Right        Expression
}

func (me *MultiplicityExpression) expressionNode()      {}
func (me *MultiplicityExpression) TokenLiteral() string { return me.Token.Literal }
func (me *MultiplicityExpression) String() string {
	return "(" + me.Multiplicity + " " + me.Right.String() + ")"
}

// InfixExpression is a binary operator other than a comparison. Operator is
// normalized ("&&" becomes "and", "=>" becomes "implies").
type InfixExpression struct {
	Token    lexer.Token
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *InfixExpression) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	out.WriteString(ie.Left.String())
	if ie.Operator == "." {
		out.WriteString(".")
	} else {
		out.WriteString(" " + ie.Operator + " ")
	}
	out.WriteString(ie.Right.String())
	out.WriteString(")")
	return out.String()
}

// CompareExpression is a comparison (=, <, >, <=, >=, in, is, ni), possibly
// negated with "!" or "not". "!=" is "=" negated.
type CompareExpression struct {
	Token    lexer.Token
	Left     Expression
	Operator string
	Negated  bool
	Right    Expression
}

func (ce *CompareExpression) expressionNode()      {}
func (ce *CompareExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CompareExpression) String() string {
	op := ce.Operator
	if ce.Negated {
		if op == "=" {
			op = "!="
		} else {
			op = "not " + op
		}
	}
	return "(" + ce.Left.String() + " " + op + " " + ce.Right.String() + ")"
}

// IfExpression is `cond implies then else otherwise`.
type IfExpression struct {
	Token       lexer.Token
	Condition   Expression
	Consequence Expression
	Alternative Expression
}

func (ie *IfExpression) expressionNode()      {}
func (ie *IfExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *IfExpression) String() string {
	return "(" + ie.Condition.String() + " implies " + ie.Consequence.String() +
		" else " + ie.Alternative.String() + ")"
}

// BoxJoinExpression is e[a, b, ...]: a builtin call when Base names one,
// otherwise a join of the arguments onto Base.
type BoxJoinExpression struct {
	Token lexer.Token // the '[' token
	Base  Expression
	Args  []Expression
}

func (bj *BoxJoinExpression) expressionNode()      {}
func (bj *BoxJoinExpression) TokenLiteral() string { return bj.Token.Literal }
func (bj *BoxJoinExpression) String() string {
	args := make([]string, len(bj.Args))
	for i, a := range bj.Args {
		args[i] = a.String()
	}
	return bj.Base.String() + "[" + strings.Join(args, ", ") + "]"
}

// PrimeExpression is the temporal next-state form e'.
type PrimeExpression struct {
	Token lexer.Token
	Left  Expression
}

func (pe *PrimeExpression) expressionNode()      {}
func (pe *PrimeExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrimeExpression) String() string       { return pe.Left.String() + "'" }

// Decl binds one or more names to a domain: `x, y: Domain`.
type Decl struct {
	Names  []*Identifier
	Domain Expression
}

func (d *Decl) String() string {
	names := make([]string, len(d.Names))
	for i, n := range d.Names {
		names[i] = n.Value
	}
	return strings.Join(names, ", ") + ": " + d.Domain.String()
}

// VarNames flattens the names declared by decls, in declaration order,
// keeping the first position of a repeated name.
func VarNames(decls []*Decl) []string {
	var names []string
	seen := map[string]bool{}
	for _, d := range decls {
		for _, n := range d.Names {
			if !seen[n.Value] {
				seen[n.Value] = true
				names = append(names, n.Value)
			}
		}
	}
	return names
}

func declsString(decls []*Decl) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}

// QuantifiedExpression is `Q [disj] decls | body` for Q in all, no, some,
// one, lone, two and sum.
type QuantifiedExpression struct {
	Token      lexer.Token
	Quantifier string
	Disjoint   bool
	Decls      []*Decl
	Body       Expression
}

func (qe *QuantifiedExpression) expressionNode()      {}
func (qe *QuantifiedExpression) TokenLiteral() string { return qe.Token.Literal }
func (qe *QuantifiedExpression) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	out.WriteString(qe.Quantifier)
	if qe.Disjoint {
		out.WriteString(" disj")
	}
	out.WriteString(" ")
	out.WriteString(declsString(qe.Decls))
	out.WriteString(" | ")
	out.WriteString(qe.Body.String())
	out.WriteString(")")
	return out.String()
}

// ComprehensionExpression is a set comprehension `{decls | body}`.
type ComprehensionExpression struct {
	Token lexer.Token
	Decls []*Decl
	Body  Expression
}

func (ce *ComprehensionExpression) expressionNode()      {}
func (ce *ComprehensionExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *ComprehensionExpression) String() string {
	return "{" + declsString(ce.Decls) + " | " + ce.Body.String() + "}"
}

// BlockExpression is `{ e1 e2 ... }`, the conjunction of its members.
type BlockExpression struct {
	Token       lexer.Token
	Expressions []Expression
}

func (be *BlockExpression) expressionNode()      {}
func (be *BlockExpression) TokenLiteral() string { return be.Token.Literal }
func (be *BlockExpression) String() string {
	parts := make([]string, len(be.Expressions))
	for i, e := range be.Expressions {
		parts[i] = e.String()
	}
	return "{ " + strings.Join(parts, " ") + " }"
}

// LetBinding is one `name = value` inside a let or bind.
type LetBinding struct {
	Name  *Identifier
	Value Expression
}

// LetExpression is `let x = e, ... | body` (Keyword "let") or the same shape
// introduced by bind.
type LetExpression struct {
	Token    lexer.Token
	Keyword  string
	Bindings []*LetBinding
	Body     Expression
}

func (le *LetExpression) expressionNode()      {}
func (le *LetExpression) TokenLiteral() string { return le.Token.Literal }
func (le *LetExpression) String() string {
	parts := make([]string, len(le.Bindings))
	for i, b := range le.Bindings {
		parts[i] = b.Name.Value + " = " + b.Value.String()
	}
	return "(" + le.Keyword + " " + strings.Join(parts, ", ") + " | " + le.Body.String() + ")"
}

// UnsupportedExpression records syntax that parses but has no evaluation
// rule: this, @name and sexpr{...}.
type UnsupportedExpression struct {
	Token   lexer.Token
	Feature string
	Text    string
}

func (ue *UnsupportedExpression) expressionNode()      {}
func (ue *UnsupportedExpression) TokenLiteral() string { return ue.Token.Literal }
func (ue *UnsupportedExpression) String() string       { return ue.Text }

func isWordOperator(op string) bool {
	if op == "" {
		return false
	}
	c := op[0]
	return c >= 'a' && c <= 'z'
}

// Walk calls fn for node and each of its descendants, parents first.
// Returning false from fn skips the node's children.
func Walk(node Expression, fn func(Expression) bool) {
	if node == nil || !fn(node) {
		return
	}
	for _, child := range Children(node) {
		Walk(child, fn)
	}
}

// Children returns the direct subexpressions of node, domains before bodies.
func Children(node Expression) []Expression {
	switch n := node.(type) {
	case *PrefixExpression:
		return []Expression{n.Right}
	case *MultiplicityExpression:
		return []Expression{n.Right}
	case *InfixExpression:
		return []Expression{n.Left, n.Right}
	case *CompareExpression:
		return []Expression{n.Left, n.Right}
	case *IfExpression:
		return []Expression{n.Condition, n.Consequence, n.Alternative}
	case *BoxJoinExpression:
		return append([]Expression{n.Base}, n.Args...)
	case *PrimeExpression:
		return []Expression{n.Left}
	case *QuantifiedExpression:
		return append(declDomains(n.Decls), n.Body)
	case *ComprehensionExpression:
		return append(declDomains(n.Decls), n.Body)
	case *BlockExpression:
		return n.Expressions
	case *LetExpression:
		out := make([]Expression, 0, len(n.Bindings)+1)
		for _, b := range n.Bindings {
			out = append(out, b.Value)
		}
		return append(out, n.Body)
	default:
		return nil
	}
}

func declDomains(decls []*Decl) []Expression {
	out := make([]Expression, 0, len(decls)+1)
	for _, d := range decls {
		out = append(out, d.Domain)
	}
	return out
}
