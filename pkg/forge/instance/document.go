package instance

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	ferrors "github.com/sambeau/forgeval/pkg/forge/errors"
)

// Document is the serialized form of an instance. Types and relations may be
// written as lists or as objects keyed by id; object order is preserved.
type Document struct {
	Types     TypeList     `json:"types" yaml:"types"`
	Relations RelationList `json:"relations" yaml:"relations"`
}

// TypeList decodes from a list of types or an object keyed by type id.
type TypeList []Type

// RelationList decodes from a list of relations or an object keyed by
// relation id.
type RelationList []Relation

// typeDoc accepts both `builtin: true` and the `meta: {builtin: true}` form.
type typeDoc struct {
	ID      string   `yaml:"id"`
	Types   []string `yaml:"types"`
	Atoms   []Atom   `yaml:"atoms"`
	Builtin bool     `yaml:"builtin"`
	Meta    struct {
		Builtin bool `yaml:"builtin"`
	} `yaml:"meta"`
}

func (tl *TypeList) UnmarshalYAML(value *yaml.Node) error {
	return decodeListOrMap(value, func(key string, item *yaml.Node) error {
		var doc typeDoc
		if err := item.Decode(&doc); err != nil {
			return err
		}
		if doc.ID == "" {
			doc.ID = key
		}
		*tl = append(*tl, Type{
			ID:        doc.ID,
			Ancestry:  doc.Types,
			Atoms:     doc.Atoms,
			IsBuiltin: doc.Builtin || doc.Meta.Builtin,
		})
		return nil
	})
}

func (rl *RelationList) UnmarshalYAML(value *yaml.Node) error {
	return decodeListOrMap(value, func(key string, item *yaml.Node) error {
		var r Relation
		if err := item.Decode(&r); err != nil {
			return err
		}
		if r.Name == "" {
			r.Name = key
		}
		*rl = append(*rl, r)
		return nil
	})
}

// UnmarshalYAML keeps an explicit label, even an empty one, and falls back
// to the id only when the label is missing or null.
func (a *Atom) UnmarshalYAML(value *yaml.Node) error {
	var doc struct {
		ID    string  `yaml:"id"`
		Type  string  `yaml:"type"`
		Label *string `yaml:"label"`
	}
	if err := value.Decode(&doc); err != nil {
		return err
	}
	a.ID, a.Type, a.Label = doc.ID, doc.Type, doc.ID
	if doc.Label != nil {
		a.Label = *doc.Label
	}
	return nil
}

// UnmarshalYAML accepts a bare list of atom ids as well as the
// {atoms, types} mapping.
func (t *Tuple) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		return value.Decode(&t.Atoms)
	}
	type plain Tuple
	return value.Decode((*plain)(t))
}

func decodeListOrMap(value *yaml.Node, add func(key string, item *yaml.Node) error) error {
	switch value.Kind {
	case yaml.SequenceNode:
		for _, item := range value.Content {
			if err := add("", item); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			if err := add(value.Content[i].Value, value.Content[i+1]); err != nil {
				return err
			}
		}
	default:
		if value.Tag == "!!null" {
			return nil
		}
		return errors.Errorf("line %d: expected a list or an object", value.Line)
	}
	return nil
}

// Decode reads a JSON or YAML document. JSON is read by the YAML decoder,
// which keeps the key order of object-keyed types and relations.
func Decode(r io.Reader) (*Instance, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return New(nil, nil), nil
		}
		return nil, errors.Wrap(err, "decoding instance document")
	}
	return doc.Instance(), nil
}

// Instance converts the document into an Instance.
func (doc *Document) Instance() *Instance {
	types := make([]*Type, len(doc.Types))
	for i := range doc.Types {
		types[i] = &doc.Types[i]
	}
	relations := make([]*Relation, len(doc.Relations))
	for i := range doc.Relations {
		relations[i] = &doc.Relations[i]
	}
	return New(types, relations)
}

// Load reads an instance file. The format comes from the extension: .json,
// .yaml or .yml, optionally followed by .gz or .zst.
func Load(path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.New("IO-0001", map[string]any{"Path": path, "Error": err.Error()})
	}
	inst, err := LoadBytes(data, path)
	if err != nil {
		if ferr, ok := err.(*ferrors.ForgeError); ok {
			return nil, ferr.WithFile(path)
		}
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return inst, nil
}

// LoadBytes decodes data as if it had been read from a file called name.
func LoadBytes(data []byte, name string) (*Instance, error) {
	base := strings.ToLower(filepath.Base(name))

	var r io.Reader = bytes.NewReader(data)
	switch {
	case strings.HasSuffix(base, ".gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "opening gzip stream")
		}
		defer zr.Close()
		r = zr
		base = strings.TrimSuffix(base, ".gz")
	case strings.HasSuffix(base, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "opening zstd stream")
		}
		defer zr.Close()
		r = zr
		base = strings.TrimSuffix(base, ".zst")
	}

	switch ext := filepath.Ext(base); ext {
	case ".json", ".yaml", ".yml":
		return Decode(r)
	default:
		return nil, ferrors.New("INST-0006", map[string]any{"Format": ext})
	}
}

// Save writes the instance as JSON or YAML according to the extension of
// path, compressing when it ends in .gz or .zst.
func Save(inst *Instance, path string) error {
	base := strings.ToLower(filepath.Base(path))
	compress := ""
	for _, suffix := range []string{".gz", ".zst"} {
		if strings.HasSuffix(base, suffix) {
			compress = suffix
			base = strings.TrimSuffix(base, suffix)
		}
	}

	var buf bytes.Buffer
	switch filepath.Ext(base) {
	case ".json":
		data, err := inst.MarshalJSON()
		if err != nil {
			return errors.Wrap(err, "encoding instance")
		}
		buf.Write(data)
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(inst.document()); err != nil {
			return errors.Wrap(err, "encoding instance")
		}
		enc.Close()
	default:
		return ferrors.New("INST-0006", map[string]any{"Format": filepath.Ext(base)})
	}

	out := buf.Bytes()
	switch compress {
	case ".gz":
		var zbuf bytes.Buffer
		zw := gzip.NewWriter(&zbuf)
		if _, err := zw.Write(out); err != nil {
			return errors.Wrap(err, "compressing instance")
		}
		if err := zw.Close(); err != nil {
			return errors.Wrap(err, "compressing instance")
		}
		out = zbuf.Bytes()
	case ".zst":
		zw, err := zstd.NewWriter(nil)
		if err != nil {
			return errors.Wrap(err, "compressing instance")
		}
		out = zw.EncodeAll(out, nil)
		zw.Close()
	}

	return errors.Wrapf(os.WriteFile(path, out, 0o644), "writing %s", path)
}
