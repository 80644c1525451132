package synth

// kind names a node of the synthesis grammar. The values double as the
// Kind reported in a WhyNode.
type kind string

const (
	kindIdentifier       kind = "identifier"
	kindClosure          kind = "closure"
	kindReflexiveClosure kind = "reflexive-closure"
	kindTranspose        kind = "transpose"
	kindUnion            kind = "union"
	kindIntersection     kind = "intersection"
	kindDifference       kind = "difference"
	kindJoin             kind = "join"
	kindComprehension    kind = "comprehension"
	kindIn               kind = "in"
)

// expr is a candidate expression. Which fields are used depends on kind:
// identifiers use name, prefix operators use left, binary operators use
// left and right, and comprehensions bind name over left with body right.
type expr struct {
	kind        kind
	name        string
	left, right *expr
}

func ident(name string) *expr {
	return &expr{kind: kindIdentifier, name: name}
}

func prefix(k kind, child *expr) *expr {
	return &expr{kind: k, left: child}
}

func binary(k kind, left, right *expr) *expr {
	return &expr{kind: k, left: left, right: right}
}

func comprehension(v string, domain, body *expr) *expr {
	return &expr{kind: kindComprehension, name: v, left: domain, right: body}
}

// children returns the subexpressions in source order.
func (e *expr) children() []*expr {
	switch e.kind {
	case kindIdentifier:
		return nil
	case kindClosure, kindReflexiveClosure, kindTranspose:
		return []*expr{e.left}
	}
	return []*expr{e.left, e.right}
}

// String renders e in a form the parser reads back as the same tree.
func (e *expr) String() string {
	switch e.kind {
	case kindIdentifier:
		return e.name
	case kindClosure:
		return "^" + wrapForPrefix(e.left)
	case kindReflexiveClosure:
		return "*" + wrapForPrefix(e.left)
	case kindTranspose:
		return "~" + wrapForPrefix(e.left)
	case kindJoin:
		return wrapForJoin(e.left) + "." + wrapForJoin(e.right)
	case kindUnion:
		return "(" + e.left.String() + " + " + e.right.String() + ")"
	case kindIntersection:
		return "(" + e.left.String() + " & " + e.right.String() + ")"
	case kindDifference:
		return "(" + e.left.String() + " - " + e.right.String() + ")"
	case kindComprehension:
		return "{" + e.name + ": " + e.left.String() + " | " + e.right.String() + "}"
	case kindIn:
		return "(" + e.left.String() + " in " + e.right.String() + ")"
	}
	return ""
}

func wrapForJoin(e *expr) string {
	switch e.kind {
	case kindIdentifier, kindClosure, kindReflexiveClosure, kindTranspose:
		return e.String()
	}
	return "(" + e.String() + ")"
}

// wrapForPrefix parenthesizes the operand of ^, * and ~ unless it already
// reads as a single unit.
func wrapForPrefix(e *expr) string {
	if e.kind == kindJoin {
		return "(" + e.String() + ")"
	}
	return e.String()
}
