package instance

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/hashicorp/go-multierror"
	"github.com/kylelemons/godebug/pretty"

	ferrors "github.com/sambeau/forgeval/pkg/forge/errors"
)

func loadTTT(t *testing.T) *Instance {
	t.Helper()
	inst, err := Load(filepath.Join("testdata", "ttt.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return inst
}

func TestLoadObjectKeyedDocument(t *testing.T) {
	inst := loadTTT(t)

	wantTypes := []string{"seq/Int", "Int", "univ", "Board", "Player", "X", "Game", "O"}
	if diff := pretty.Compare(inst.TypeIDs(), wantTypes); diff != "" {
		t.Errorf("type order mismatch (-got +want):\n%s", diff)
	}

	wantRelations := []string{"no-field-guard", "next", "initialState", "board"}
	if diff := pretty.Compare(inst.RelationNames(), wantRelations); diff != "" {
		t.Errorf("relation order mismatch (-got +want):\n%s", diff)
	}

	if n := len(inst.Atoms()); n != 16+7+3 {
		t.Errorf("expected 26 atoms, got %d", n)
	}

	intType, ok := inst.Type("Int")
	if !ok || !intType.IsBuiltin {
		t.Errorf("Int should be a builtin type: %s", spew.Sdump(intType))
	}

	owner, ok := inst.AtomType("X0")
	if !ok || owner.ID != "X" {
		t.Errorf("AtomType(X0) = %v, %v", owner, ok)
	}
	if _, ok := inst.AtomType("Nobody"); ok {
		t.Error("AtomType should fail for an unknown atom")
	}

	x0, _ := inst.Atom("X0")
	if x0.Label != "red" {
		t.Errorf("X0 label = %q, want red", x0.Label)
	}
	b0, _ := inst.Atom("Board0")
	if b0.Label != "Board0" {
		t.Errorf("Board0 label should default to its id, got %q", b0.Label)
	}

	next, ok := inst.Relation("next")
	if !ok {
		t.Fatal("relation next not found")
	}
	if next.ID != "Game<:next" || next.Arity() != 3 || len(next.Tuples) != 6 {
		t.Errorf("unexpected next relation: %s", spew.Sdump(next))
	}

	if err := inst.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadListFormYAML(t *testing.T) {
	inst, err := Load(filepath.Join("testdata", "family.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	bob, ok := inst.Atom("Bob")
	if !ok {
		t.Fatal("Bob not found")
	}
	if bob.Type != "Person" || bob.Label != "Bob" {
		t.Errorf("Bob defaults not applied: %+v", *bob)
	}

	age, _ := inst.Relation("age")
	if age.ID != "age" {
		t.Errorf("relation id should default to its name, got %q", age.ID)
	}
	want := []Tuple{
		{Atoms: []string{"Alice", "2"}, Types: []string{"Person", "Int"}},
		{Atoms: []string{"Bob", "1"}, Types: []string{"Person", "Int"}},
	}
	if diff := pretty.Compare(age.Tuples, want); diff != "" {
		t.Errorf("age tuples (-got +want):\n%s", diff)
	}

	parent, _ := inst.Relation("parent")
	if len(parent.Tuples) != 2 || parent.Tuples[1].Atoms[1] != "Carol" {
		t.Errorf("unexpected parent tuples: %s", spew.Sdump(parent.Tuples))
	}

	if err := inst.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	inst := loadTTT(t)
	dir := t.TempDir()

	for _, name := range []string{"out.json", "out.yaml", "out.json.gz", "out.yml.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Save(inst, path); err != nil {
				t.Fatalf("Save: %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded.Fingerprint() != inst.Fingerprint() {
				t.Errorf("fingerprint changed after round trip through %s", name)
			}
		})
	}
}

func TestFingerprintTracksContent(t *testing.T) {
	a := NewBuilder().AddType("A", nil, "a0").Build()
	b := NewBuilder().AddType("A", nil, "a0").Build()
	c := NewBuilder().AddType("A", nil, "a0", "a1").Build()

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("equal instances should have equal fingerprints")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different instances should have different fingerprints")
	}
	if len(a.Fingerprint()) != 64 {
		t.Errorf("expected a 256-bit hex digest, got %q", a.Fingerprint())
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := LoadBytes([]byte("<x/>"), "inst.xml"); err == nil {
		t.Error("expected an error for .xml")
	} else if ferr, ok := err.(*ferrors.ForgeError); !ok || ferr.Code != "INST-0006" {
		t.Errorf("expected INST-0006, got %v", err)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if ferr, ok := err.(*ferrors.ForgeError); !ok || ferr.Code != "IO-0001" {
		t.Errorf("expected IO-0001, got %v", err)
	}

	if _, err := LoadBytes([]byte("types: 7"), "bad.yaml"); err == nil {
		t.Error("expected a decode error for a scalar types entry")
	}

	inst, err := LoadBytes(nil, "empty.json")
	if err != nil || len(inst.Types()) != 0 {
		t.Errorf("empty document should load as an empty instance, got %v", err)
	}
}

func TestValidateAggregatesProblems(t *testing.T) {
	inst := NewBuilder().
		AddType("A", nil, "a0").
		AddType("A", nil).
		AddType("B", []string{"A", "B"}).
		AddRelation("r", []string{"A", "A"}, []string{"a0"}, []string{"a0", "zz"}, []string{"a0", "3"}).
		AddRelation("r", []string{"A"}).
		Build()

	err := inst.Validate()
	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Fatalf("expected *multierror.Error, got %T: %v", err, err)
	}

	var codes []string
	for _, e := range merr.Errors {
		codes = append(codes, e.(*ferrors.ForgeError).Code)
	}
	want := []string{"INST-0001", "INST-0005", "INST-0003", "INST-0004", "INST-0002"}
	if diff := pretty.Compare(codes, want); diff != "" {
		t.Errorf("codes (-got +want):\n%s", diff)
	}
}

func TestLabelDefaults(t *testing.T) {
	doc := `{"types": [{"id": "Node", "types": ["Node"], "atoms": [
		{"id": "n0", "label": ""},
		{"id": "n1"},
		{"id": "n2", "label": null},
		{"id": "n3", "label": "three"}
	]}], "relations": []}`
	inst, err := LoadBytes([]byte(doc), "nodes.json")
	if err != nil {
		t.Fatal(err)
	}

	got := map[string]string{}
	for _, a := range inst.Atoms() {
		got[a.ID] = a.Label
	}
	want := map[string]string{"n0": "", "n1": "n1", "n2": "n2", "n3": "three"}
	if diff := pretty.Compare(got, want); diff != "" {
		t.Errorf("labels (-got +want):\n%s", diff)
	}

	// An explicit empty label survives a round trip.
	data, err := inst.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	again, err := LoadBytes(data, "again.json")
	if err != nil {
		t.Fatal(err)
	}
	if n0, ok := again.Atom("n0"); !ok || n0.Label != "" {
		t.Errorf("n0 after round trip = %s", spew.Sdump(n0))
	}
}

func TestBuilderLabeledAtoms(t *testing.T) {
	inst := NewBuilder().
		AddBuiltinType("Int", nil, "0", "1").
		AddLabeledAtom("Node", "n0", "start").
		Build()

	n0, ok := inst.Atom("n0")
	if !ok || n0.Label != "start" || n0.Type != "Node" {
		t.Errorf("unexpected atom %s", spew.Sdump(n0))
	}
	if typ, _ := inst.Type("Int"); !typ.IsBuiltin {
		t.Error("Int should be builtin")
	}
}

func TestSQLRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	inst := loadTTT(t)
	if err := StoreSQL(ctx, db, "sqlite", "ttt_", inst); err != nil {
		t.Fatalf("StoreSQL: %v", err)
	}

	loaded, err := LoadSQL(ctx, db, "ttt_")
	if err != nil {
		t.Fatalf("LoadSQL: %v", err)
	}

	if len(loaded.Types()) != len(inst.Types()) {
		t.Errorf("expected %d types, got %d", len(inst.Types()), len(loaded.Types()))
	}
	if len(loaded.Atoms()) != len(inst.Atoms()) {
		t.Errorf("expected %d atoms, got %d", len(inst.Atoms()), len(loaded.Atoms()))
	}

	x, _ := loaded.Type("X")
	if diff := pretty.Compare(x.Ancestry, []string{"X", "Player"}); diff != "" {
		t.Errorf("X ancestry (-got +want):\n%s", diff)
	}
	intType, _ := loaded.Type("Int")
	if !intType.IsBuiltin {
		t.Error("Int should stay builtin")
	}

	x0, _ := loaded.Atom("X0")
	if x0.Label != "red" {
		t.Errorf("X0 label = %q", x0.Label)
	}

	next, ok := loaded.Relation("next")
	if !ok {
		t.Fatal("next missing")
	}
	orig, _ := inst.Relation("next")
	if diff := pretty.Compare(next.Tuples, orig.Tuples); diff != "" {
		t.Errorf("next tuples (-got +want):\n%s", diff)
	}
	if next.ID != "Game<:next" {
		t.Errorf("next id = %q", next.ID)
	}

	if err := loaded.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestSQLPrefixIsChecked(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := LoadSQL(context.Background(), db, "x; DROP TABLE y; --"); err == nil {
		t.Error("expected an invalid prefix error")
	}
	if _, err := LoadSQL(context.Background(), db, "missing_"); err == nil {
		t.Error("expected an error for missing tables")
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inst.yaml")
	write := func(atoms string) {
		t.Helper()
		doc := "types:\n  - id: A\n    types: [A]\n    atoms: [" + atoms + "]\n"
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("{id: a0}")

	reloaded := make(chan *Instance, 4)
	var stdout, stderr bytes.Buffer
	w, err := NewWatcher(path, func(inst *Instance) { reloaded <- inst }, &stdout, &stderr)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	write("{id: a0}, {id: a1}")

	select {
	case inst := <-reloaded:
		if len(inst.Atoms()) != 2 {
			t.Errorf("expected 2 atoms after reload, got %d", len(inst.Atoms()))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	if !strings.Contains(stdout.String(), "[WATCH] watching instance") {
		t.Errorf("missing watch log line: %q", stdout.String())
	}
}
