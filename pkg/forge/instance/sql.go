package instance

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	ferrors "github.com/sambeau/forgeval/pkg/forge/errors"
)

// Schema lists the tables LoadSQL reads, without the prefix.
//
//	types(id, builtin)
//	type_ancestry(type_id, position, ancestor)
//	atoms(id, type, label)
//	relations(name, id)
//	relation_types(relation, position, type)
//	tuples(relation, tuple_index, position, atom)
const Schema = `
CREATE TABLE IF NOT EXISTS {{p}}types (id TEXT PRIMARY KEY, builtin BOOLEAN NOT NULL DEFAULT FALSE);
CREATE TABLE IF NOT EXISTS {{p}}type_ancestry (type_id TEXT NOT NULL, position INTEGER NOT NULL, ancestor TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS {{p}}atoms (id TEXT NOT NULL, type TEXT NOT NULL, label TEXT);
CREATE TABLE IF NOT EXISTS {{p}}relations (name TEXT PRIMARY KEY, id TEXT);
CREATE TABLE IF NOT EXISTS {{p}}relation_types (relation TEXT NOT NULL, position INTEGER NOT NULL, type TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS {{p}}tuples (relation TEXT NOT NULL, tuple_index INTEGER NOT NULL, position INTEGER NOT NULL, atom TEXT NOT NULL);
`

var validPrefix = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// OpenSQL connects with database/sql and loads the instance stored under
// prefix. driver is one of "sqlite", "postgres" or "mysql".
func OpenSQL(ctx context.Context, driver, dsn, prefix string) (*Instance, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, ferrors.New("IO-0002", map[string]any{"Error": err.Error()})
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, ferrors.New("IO-0002", map[string]any{"Error": err.Error()})
	}

	return LoadSQL(ctx, db, prefix)
}

// LoadSQL reads an instance from the tables described by Schema. Table names
// are prefix followed by the base name; the prefix may only contain letters,
// digits and underscores.
func LoadSQL(ctx context.Context, db *sql.DB, prefix string) (*Instance, error) {
	if !validPrefix.MatchString(prefix) {
		return nil, errors.Errorf("invalid table prefix %q", prefix)
	}

	var (
		types    []*Type
		typeByID = map[string]*Type{}
	)

	err := queryRows(ctx, db, "SELECT id, builtin FROM "+prefix+"types ORDER BY id", func(rows *sql.Rows) error {
		t := &Type{}
		if err := rows.Scan(&t.ID, &t.IsBuiltin); err != nil {
			return err
		}
		types = append(types, t)
		typeByID[t.ID] = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = queryRows(ctx, db, "SELECT type_id, ancestor FROM "+prefix+"type_ancestry ORDER BY type_id, position", func(rows *sql.Rows) error {
		var typeID, ancestor string
		if err := rows.Scan(&typeID, &ancestor); err != nil {
			return err
		}
		if t, ok := typeByID[typeID]; ok {
			t.Ancestry = append(t.Ancestry, ancestor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = queryRows(ctx, db, "SELECT id, type, label FROM "+prefix+"atoms ORDER BY type, id", func(rows *sql.Rows) error {
		var (
			a     Atom
			label sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Type, &label); err != nil {
			return err
		}
		a.Label = a.ID
		if label.Valid {
			a.Label = label.String
		}
		t, ok := typeByID[a.Type]
		if !ok {
			t = &Type{ID: a.Type, Ancestry: []string{a.Type}}
			types = append(types, t)
			typeByID[a.Type] = t
		}
		t.Atoms = append(t.Atoms, a)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		relations []*Relation
		relByName = map[string]*Relation{}
	)

	err = queryRows(ctx, db, "SELECT name, id FROM "+prefix+"relations ORDER BY name", func(rows *sql.Rows) error {
		var (
			r  Relation
			id sql.NullString
		)
		if err := rows.Scan(&r.Name, &id); err != nil {
			return err
		}
		r.ID = id.String
		relations = append(relations, &r)
		relByName[r.Name] = &r
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = queryRows(ctx, db, "SELECT relation, type FROM "+prefix+"relation_types ORDER BY relation, position", func(rows *sql.Rows) error {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return err
		}
		if r, ok := relByName[name]; ok {
			r.Types = append(r.Types, typ)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	type tupleKey struct {
		relation string
		index    int
	}
	tupleAt := map[tupleKey]int{}

	err = queryRows(ctx, db, "SELECT relation, tuple_index, atom FROM "+prefix+"tuples ORDER BY relation, tuple_index, position", func(rows *sql.Rows) error {
		var (
			name  string
			index int
			atom  string
		)
		if err := rows.Scan(&name, &index, &atom); err != nil {
			return err
		}
		r, ok := relByName[name]
		if !ok {
			return nil
		}
		key := tupleKey{name, index}
		pos, ok := tupleAt[key]
		if !ok {
			r.Tuples = append(r.Tuples, Tuple{})
			pos = len(r.Tuples) - 1
			tupleAt[key] = pos
		}
		r.Tuples[pos].Atoms = append(r.Tuples[pos].Atoms, atom)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return New(types, relations), nil
}

func queryRows(ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return ferrors.New("IO-0002", map[string]any{"Error": err.Error()})
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return errors.Wrapf(err, "scanning %q", query)
		}
	}
	if err := rows.Err(); err != nil {
		return ferrors.New("IO-0002", map[string]any{"Error": err.Error()})
	}
	return nil
}

// SchemaFor returns the CREATE TABLE statements for prefix.
func SchemaFor(prefix string) string {
	return strings.ReplaceAll(Schema, "{{p}}", prefix)
}

// StoreSQL creates the schema under prefix and writes inst into it inside
// one transaction. driver selects the placeholder style.
func StoreSQL(ctx context.Context, db *sql.DB, driver, prefix string, inst *Instance) error {
	if !validPrefix.MatchString(prefix) {
		return errors.Errorf("invalid table prefix %q", prefix)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range strings.Split(SchemaFor(prefix), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "creating schema")
		}
	}

	insert := func(table string, args ...any) error {
		marks := make([]string, len(args))
		for i := range args {
			if driver == "postgres" {
				marks[i] = fmt.Sprintf("$%d", i+1)
			} else {
				marks[i] = "?"
			}
		}
		query := "INSERT INTO " + prefix + table + " VALUES (" + strings.Join(marks, ", ") + ")"
		_, err := tx.ExecContext(ctx, query, args...)
		return errors.Wrapf(err, "inserting into %s", prefix+table)
	}

	for _, t := range inst.Types() {
		if err := insert("types", t.ID, t.IsBuiltin); err != nil {
			return err
		}
		for i, ancestor := range t.Ancestry {
			if err := insert("type_ancestry", t.ID, i, ancestor); err != nil {
				return err
			}
		}
		for _, a := range t.Atoms {
			if err := insert("atoms", a.ID, a.Type, a.Label); err != nil {
				return err
			}
		}
	}

	for _, r := range inst.Relations() {
		if err := insert("relations", r.Name, r.ID); err != nil {
			return err
		}
		for i, typ := range r.Types {
			if err := insert("relation_types", r.Name, i, typ); err != nil {
				return err
			}
		}
		for ti, tuple := range r.Tuples {
			for pos, atom := range tuple.Atoms {
				if err := insert("tuples", r.Name, ti, pos, atom); err != nil {
					return err
				}
			}
		}
	}

	return errors.Wrap(tx.Commit(), "committing instance")
}
