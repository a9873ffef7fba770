package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/graknol/declarative-sqlite/internal/schema"
)

// columnSpec is the JSON-declarable subset of schema.ColumnBuilder: enough
// to describe a logical column without writing Go code, for the CLI's
// convenience (the library itself is always driven by a Go-declared
// schema.Builder; this loader exists only so reactorctl has something to
// migrate/query against).
type columnSpec struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"` // guid|text|integer|real|date|fileset
	NotNull   bool     `json:"notNull"`
	LWW       bool     `json:"lww"`
	Parent    bool     `json:"parent"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

type keySpec struct {
	Columns []string `json:"columns"`
	Kind    string   `json:"kind"` // primary|unique|indexed
}

type tableSpec struct {
	Columns []columnSpec `json:"columns"`
	Keys    []keySpec    `json:"keys"`
}

type schemaSpec struct {
	Version int                  `json:"version"`
	Tables  map[string]tableSpec `json:"tables"`
}

// LoadSchemaFile reads a JSON schema declaration and builds it through
// schema.Builder, exercising the same construction path a Go-embedded
// caller would use.
func LoadSchemaFile(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied CLI flag
	if err != nil {
		return nil, fmt.Errorf("reactorctl: read schema file %q: %w", path, err)
	}

	var spec schemaSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("reactorctl: parse schema file %q: %w", path, err)
	}

	b := schema.NewBuilder().Version(spec.Version)
	for name, ts := range spec.Tables {
		name, ts := name, ts
		b = b.Table(name, func(tb *schema.TableBuilder) {
			for _, cs := range ts.Columns {
				declareColumn(tb, cs)
			}
			for _, ks := range ts.Keys {
				declareKey(tb, ks)
			}
		})
	}
	return b.Build()
}

func declareColumn(tb *schema.TableBuilder, cs columnSpec) {
	var cb *schema.ColumnBuilder
	switch cs.Kind {
	case "guid":
		cb = tb.Guid(cs.Name)
	case "integer":
		cb = tb.Integer(cs.Name)
	case "real":
		cb = tb.Real(cs.Name)
	case "date":
		cb = tb.Date(cs.Name)
	case "fileset":
		cb = tb.Fileset(cs.Name)
	default:
		cb = tb.Text(cs.Name)
	}
	if cs.NotNull {
		cb.NotNull()
	}
	if cs.LWW {
		cb.LWW()
	}
	if cs.Parent {
		cb.Parent()
	}
	if cs.MaxLength != nil {
		cb.MaxLength(*cs.MaxLength)
	}
	if cs.Min != nil {
		cb.Min(*cs.Min)
	}
	if cs.Max != nil {
		cb.Max(*cs.Max)
	}
}

func declareKey(tb *schema.TableBuilder, ks keySpec) {
	kb := tb.Key(ks.Columns...)
	switch ks.Kind {
	case "unique":
		kb.Unique()
	case "indexed":
		kb.Indexed()
	default:
		kb.Primary()
	}
}
