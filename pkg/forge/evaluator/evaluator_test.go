package evaluator

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/kylelemons/godebug/pretty"

	ferrors "github.com/sambeau/forgeval/pkg/forge/errors"
	"github.com/sambeau/forgeval/pkg/forge/instance"
)

func loadTTT(t *testing.T) *instance.Instance {
	t.Helper()
	inst, err := instance.Load(filepath.Join("..", "instance", "testdata", "ttt.json"))
	if err != nil {
		t.Fatalf("loading ttt.json: %v", err)
	}
	return inst
}

func testEval(t *testing.T, e *Evaluator, src string) Value {
	t.Helper()
	v, err := e.EvaluateString(src)
	if err != nil {
		t.Fatalf("EvaluateString(%q): %v", src, err)
	}
	return v
}

func TestEvaluateTicTacToe(t *testing.T) {
	e := New(loadTTT(t))

	tests := []struct {
		expr string
		want string
	}{
		// literals and builtins
		{"add[1,1]", "2"},
		{"subtract[1, 3]", "-2"},
		{"multiply[@num:(-2), 2]", "-4"},
		{"divide[7, 2]", "3"},
		{"divide[-7, 2]", "-4"},
		{"remainder[7, 3]", "1"},
		{"abs[-3]", "3"},
		{"sign[-3]", "-1"},
		{"true", "true"},
		{"#t", "true"},
		{`"hello"`, "hello"},

		// names
		{"Foo", "[]"},
		{"Board0", "[[Board0]]"},
		{"Player", "[[X0], [O0]]"},
		{"Game", "[[Game0]]"},
		{"#Int", "16"},
		{"#univ", "26"},
		{"none", "[]"},
		{"initialState", "[[Game0, Board0]]"},

		// joins
		{"Board6.board[0][0]", "[[O0]]"},
		{"Board6.board[1]", "[[0, X0], [1, X0]]"},
		{"board[Board6][2]", "[[0, O0]]"},
		{"Game0.initialState", "[[Board0]]"},
		{"(Game0.next).Board1", "[[Board0]]"},
		{"Board0.(Game0.next)", "[[Board1]]"},
		{"Game.next.Board1", "[[Board0]]"},

		// set operators
		{"Board0 + Board1", "[[Board0], [Board1]]"},
		{"Board0 + none", "[[Board0]]"},
		{"#(Board - Board0)", "6"},
		{"Board0 & Board", "[[Board0]]"},
		{"#(Board & Board)", "7"},
		{"Board0 -> Board1", "[[Board0, Board1]]"},
		{"#(Board -> Board)", "49"},

		// closures
		{"#^(Game0.next)", "21"},
		{"Board0.^(Game0.next)", "[[Board1], [Board2], [Board3], [Board4], [Board5], [Board6]]"},
		{"#*(Game0.next)", "47"},
		{"#~(Game0.next)", "6"},
		{"Board1.~(Game0.next)", "[[Board0]]"},

		// comparisons and logic
		{"Board6.board[0][0] = O0", "true"},
		{"Board0 in Board", "true"},
		{"Board in Board0", "false"},
		{"Board0 not in Board", "false"},
		{"1 < 2 and 2 < 3", "true"},
		{"1 < 2 implies 3 < 2 else true", "false"},
		{"1 > 2 implies 3 < 2 else true", "true"},
		{"1 > 2 implies 3 < 2", "true"},
		{"1 < 2 or Foo", "true"},
		{"true xor false", "true"},
		{"true iff false", "false"},
		{"!(1 = 1)", "false"},
		{"1 != 2", "true"},
		{"#Board >= 7", "true"},

		// multiplicities
		{"some Board6.board", "true"},
		{"no Board0.board", "true"},
		{"one Game", "true"},
		{"lone Board", "false"},
		{"some 3", "false"},

		// quantifiers and comprehensions
		{"all disj i, j: Int | i != j", "true"},
		{"some disj i, j: Int | i = j", "false"},
		{"some b: Board | no b.board", "true"},
		{"one b: Board | no b.board", "true"},
		{"lone b: Board | some b.board", "false"},
		{"no b: Board | b in Game0.initialState", "false"},
		{"all b: Board | { b in Board  some Game }", "true"},
		{"{i, j: Int | some Board6.board[i][j]}", "[[0, 0], [0, 1], [0, 2], [1, 0], [1, 1], [2, 0]]"},
		{"#{a, b: Int | a < b}", "120"},
		{"#{a, b: Int | a <= b}", "136"},
		{"#{a, b: Int | a != b}", "240"},
		{"#{a, b: Int | a < b and true}", "120"},
		{"{a, b: Int | a < b} & (6 -> 7)", "[[6, 7]]"},

		// labels
		{"@:X0", "red"},
		{"@str:O0", "blue"},
		{"@:Board0", "Board0"},
		{"@:Foo", "Foo"},
		{"@num:Foo", "Foo"},
		{"@bool:X0", "true"},
		{"@:(Board6.board[0][0]) = blue", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := testEval(t, e, tt.expr)
			if got.String() != tt.want {
				t.Errorf("%s = %s, want %s\n%s", tt.expr, got, tt.want, spew.Sdump(got))
			}
		})
	}
}

func TestComprehensionContents(t *testing.T) {
	e := New(loadTTT(t))

	got := testEval(t, e, "{a, b: Int | a < b}").(TupleSet)
	have := keySet(got)
	for _, pair := range []Tuple{{-8.0, -7.0}, {0.0, 1.0}, {6.0, 7.0}} {
		if !have[tupleKey(pair)] {
			t.Errorf("missing %v", pair)
		}
	}
	for _, pair := range []Tuple{{5.0, 5.0}, {7.0, 6.0}} {
		if have[tupleKey(pair)] {
			t.Errorf("unexpected %v", pair)
		}
	}
}

func TestOptimizedQuantifiersAgreeWithEvaluation(t *testing.T) {
	e := New(loadTTT(t))

	for _, q := range []string{"all", "no", "some", "one", "lone"} {
		for _, body := range []string{"a < b", "a >= b", "a != b", "not a = b", "a not <= b"} {
			t.Run(q+" "+body, func(t *testing.T) {
				fast := testEval(t, e, q+" a, b: Int | "+body)
				slow := testEval(t, e, q+" a, b: Int | "+body+" and true")
				if fast.String() != slow.String() {
					t.Errorf("optimized %s, evaluated %s", fast, slow)
				}
			})
		}
	}

	// single element domains, where one and lone can hold
	for _, expr := range []string{
		"one a, b: 1 + 2 | a < b",
		"lone a, b: 1 + 2 | a < b",
		"all a, b: 1 | a <= b",
		"no a, b: 1 | a < b",
	} {
		fast := testEval(t, e, expr)
		slow := testEval(t, e, strings.Replace(expr, "| ", "| true and ", 1))
		if fast.String() != "true" || slow.String() != "true" {
			t.Errorf("%s: optimized %s, evaluated %s", expr, fast, slow)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	e := New(loadTTT(t))

	tests := []struct {
		expr    string
		code    string
		message string
	}{
		{"divide[5, 0]", "OP-0002", `Error evaluating expression "divide[5, 0]": Division by zero is not allowed`},
		{"remainder[5, 0]", "OP-0002", "Division by zero"},
		{"add[1]", "ARITY-0004", "add expects 2 argument(s), got 1"},
		{"add[Board0, 1]", "TYPE-0006", "add expects numeric arguments"},
		{"^board", "ARITY-0002", "transitive closure ^ expected a relation of arity 2, got arity 4"},
		{"~board", "ARITY-0002", "expected a relation of arity 2"},
		{"Board0.Board0", "ARITY-0001", "Join would create a relation of arity 0"},
		{"Board + initialState", "ARITY-0003", "arity mismatch in set union"},
		{"Board & initialState", "ARITY-0003", "arity mismatch in set intersection"},
		{"initialState - Board", "ARITY-0003", "arity mismatch in set difference"},
		{"Board < 3", "TYPE-0002", "< expects numeric operands"},
		{"1 and true", "TYPE-0001", "and expects boolean operands"},
		{"#3", "TYPE-0003", "# expects a set of tuples"},
		{"@num:X0", "TYPE-0004", `Cannot convert label "red" to number`},
		{"all b: Board | b", "TYPE-0005", "the body of 'all' must evaluate to a boolean"},
		{"always true", "OP-0001", "**UNIMPLEMENTED** Temporal Operator (`always`)"},
		{"Board ++ Board", "OP-0001", "pplus (`++`)"},
		{"Game <: next", "OP-0001", "Subtype Operator (`<:`)"},
		{"Board0 is Board", "OP-0001", "Type Check (`is`)"},
		{"Board0'", "OP-0001", "Primed Expression"},
		{"two Board", "OP-0001", "Two (`two`)"},
		{"let x = 1 | x", "OP-0001", "Let Binding"},
		{"this", "OP-0001", "**UNIMPLEMENTED**"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := e.EvaluateString(tt.expr)
			if err == nil {
				t.Fatalf("expected an error for %q", tt.expr)
			}

			var exprErr *ExpressionError
			if !errors.As(err, &exprErr) || exprErr.Parse {
				t.Fatalf("expected an evaluation ExpressionError, got %T: %v", err, err)
			}
			if !strings.HasPrefix(err.Error(), `Error evaluating expression "`+tt.expr+`": `) {
				t.Errorf("unexpected message prefix: %q", err.Error())
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("message %q does not contain %q", err.Error(), tt.message)
			}

			var ferr *ferrors.ForgeError
			if !errors.As(err, &ferr) {
				t.Fatalf("expected a ForgeError cause, got %s", spew.Sdump(err))
			}
			if ferr.Code != tt.code {
				t.Errorf("code = %s, want %s", ferr.Code, tt.code)
			}
		})
	}
}

func TestParseFailureIsReported(t *testing.T) {
	e := New(loadTTT(t))

	_, err := e.EvaluateString("1 +")
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if err.Error() != `Error parsing expression "1 +"` {
		t.Errorf("message = %q", err.Error())
	}
	var exprErr *ExpressionError
	if !errors.As(err, &exprErr) || !exprErr.Parse {
		t.Errorf("expected a parse ExpressionError, got %T", err)
	}
}

func TestEvaluateWithBindings(t *testing.T) {
	e := New(loadTTT(t))

	expr := mustParse(t, "add[x, 1]")
	for _, x := range []float64{1, 5, -3} {
		got, err := e.EvaluateWith(expr, map[string]Value{"x": Number(x)})
		if err != nil {
			t.Fatal(err)
		}
		if n, ok := extractNumber(got); !ok || n != x+1 {
			t.Errorf("x=%v: got %v", x, got)
		}
	}

	_, err := e.EvaluateWith(mustParse(t, "divide[x, 0]"), map[string]Value{"x": Number(4)})
	if ferr, ok := err.(*ferrors.ForgeError); !ok || ferr.Code != "OP-0002" {
		t.Errorf("expected division by zero, got %v", err)
	}

	// A binding shadows the relation of the same name.
	got, err := e.EvaluateWith(mustParse(t, "Board6.board"), map[string]Value{"board": TupleSet{{"Board6", "here"}}})
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "[[here]]" {
		t.Errorf("shadowed join = %s", got)
	}
}

func TestBindingHidesCachedGlobal(t *testing.T) {
	e := New(loadTTT(t))
	expr := mustParse(t, "Board6.board")

	global, err := e.EvaluateWith(expr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(global.String(), "[[0, 0, O0]") {
		t.Fatalf("global join = %s", global)
	}

	for _, target := range []string{"here", "there"} {
		got, err := e.EvaluateWith(expr, map[string]Value{"board": TupleSet{{"Board6", target}}})
		if err != nil {
			t.Fatal(err)
		}
		if want := "[[" + target + "]]"; got.String() != want {
			t.Errorf("with board bound to %s: got %s, want %s", target, got, want)
		}
	}

	again, err := e.EvaluateWith(expr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.String() != global.String() {
		t.Errorf("global join after bindings = %s, want %s", again, global)
	}
}

func TestShadowingKey(t *testing.T) {
	isGlobal := func(name string) bool { return name == "board" || name == "next" }

	env := &environment{}
	if got := env.shadowing(isGlobal); got != "" {
		t.Errorf("empty environment: %q", got)
	}
	env.push(&frame{kind: quantifierFrame, vars: map[string]Value{"next": Number(1)}})
	env.push(&frame{kind: boundaryFrame, vars: map[string]Value{"x": Number(2), "board": Number(3)}})
	if got := env.shadowing(isGlobal); got != "board" {
		t.Errorf("names behind a boundary must not count: %q", got)
	}
	env.push(&frame{kind: quantifierFrame, vars: map[string]Value{"next": Number(4)}})
	if got := env.shadowing(isGlobal); got != "board\x00next" {
		t.Errorf("got %q", got)
	}
}

func TestBoundaryFrameStopsLookup(t *testing.T) {
	env := &environment{}
	env.push(&frame{kind: quantifierFrame, vars: map[string]Value{"outer": Number(1)}})
	env.push(&frame{kind: boundaryFrame, vars: map[string]Value{"arg": Number(2)}})
	env.push(&frame{kind: quantifierFrame, vars: map[string]Value{"inner": Number(3)}})

	for _, name := range []string{"inner", "arg"} {
		if _, ok := env.lookup(name); !ok {
			t.Errorf("%s should be visible", name)
		}
	}
	if _, ok := env.lookup("outer"); ok {
		t.Error("lookup must not cross the boundary frame")
	}

	want := map[string]bool{"inner": true, "arg": true}
	if diff := pretty.Compare(env.visibleNames(), want); diff != "" {
		t.Errorf("visibleNames (-got +want):\n%s", diff)
	}
}

func TestCacheCapacityDoesNotChangeResults(t *testing.T) {
	inst := loadTTT(t)
	cached := New(inst)
	uncached := New(inst, WithCacheCapacity(0))
	tiny := New(inst, WithCacheCapacity(2))

	exprs := []string{
		"{i, j: Int | some Board6.board[i][j]}",
		"all b: Board | some b.^(Game0.next) or b = Board6",
		"{b: Board | some x: Int | some b.board[x]}",
		"some disj i, j: Int | add[i, j] = 0",
		"{a, b, c: 0 + 1 + 2 | a < b and b < c}",
		"#*(Game0.next)",
	}

	for _, src := range exprs {
		t.Run(src, func(t *testing.T) {
			want := testEval(t, uncached, src).String()
			for i := 0; i < 2; i++ {
				if got := testEval(t, cached, src).String(); got != want {
					t.Errorf("cached evaluation #%d = %s, want %s", i, got, want)
				}
				if got := testEval(t, tiny, src).String(); got != want {
					t.Errorf("tiny cache evaluation #%d = %s, want %s", i, got, want)
				}
			}
		})
	}

	if stats := uncached.Stats(); stats.Entries != 0 || stats.Hits != 0 {
		t.Errorf("disabled cache should stay empty: %+v", stats)
	}
	if stats := cached.Stats(); stats.Hits == 0 || stats.Entries == 0 {
		t.Errorf("expected cache hits: %+v", stats)
	}
}

func TestMemoizationHitsInsideQuantifier(t *testing.T) {
	e := New(loadTTT(t))

	// Board6.board has no free variables, so it is computed once and then
	// served from the cache for every i.
	testEval(t, e, "all i: Int | some Board6.board or i = i")
	if e.Stats().Hits < 15 {
		t.Errorf("expected at least 15 hits, got %+v", e.Stats())
	}

	e.Reset()
	if stats := e.Stats(); stats.Entries != 0 || stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Reset should clear the cache: %+v", stats)
	}
}

func TestIsNameNotFound(t *testing.T) {
	e := New(loadTTT(t))

	_, err := e.resolveName("no-such-name")
	if !IsNameNotFound(err) {
		t.Fatalf("expected NameNotFoundError, got %v", err)
	}
	if err.Error() != "name 'no-such-name' not found" {
		t.Errorf("message = %q", err.Error())
	}

	v, err := e.resolveName("Black")
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := v.(Scalar); !ok || !s.IsLabel() || s.Value != "Black" {
		t.Errorf("Black should resolve to a label, got %s", spew.Sdump(v))
	}
}

func TestEmptyLabelIsKept(t *testing.T) {
	inst := instance.NewBuilder().
		AddType("Node", nil, "n1").
		AddLabeledAtom("Node", "n0", "").
		Build()
	e := New(inst)

	tests := []struct {
		input string
		want  string
	}{
		{"@:n0", ""},
		{"@:n1", "n1"},
		{"@:nowhere", "nowhere"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v := testEval(t, e, tt.input)
			if s, ok := v.(Scalar); !ok || s.Value != tt.want {
				t.Errorf("got %s, want %q", spew.Sdump(v), tt.want)
			}
		})
	}
}

func TestRelationIndex(t *testing.T) {
	ri := newRelationIndex(loadTTT(t))

	board, ok := ri.lookup("board")
	if !ok || len(board) != 21 {
		t.Fatalf("board: ok=%v len=%d", ok, len(board))
	}
	if _, isNum := board[0][1].(float64); !isNum {
		t.Errorf("numeric atoms should be coerced: %s", spew.Sdump(board[0]))
	}

	idx, ok := ri.joinIndex("board")
	if !ok {
		t.Fatal("no join index for board")
	}
	if n := len(idx["Board6"]); n != 6 {
		t.Errorf("Board6 has %d tuples, want 6", n)
	}
	if n := len(idx["Board0"]); n != 0 {
		t.Errorf("Board0 has %d tuples, want 0", n)
	}

	if _, ok := ri.lookup("Game<:next"); ok {
		t.Error("relations are looked up by name, not id")
	}
}
