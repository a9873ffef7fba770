package query

import (
	"fmt"
	"strings"
)

// Predicate is one node of a WHERE/ON/HAVING expression tree. Implementations
// render themselves to parameterized SQL, appending any bind values to
// params in left-to-right order.
type Predicate interface {
	render(params *[]any) (string, error)
}

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "="
	OpNeq Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLike Op = "LIKE"
)

// Comparison compares a column against a bound value.
type Comparison struct {
	Column string
	Op     Op
	Value  any
}

func (c Comparison) render(params *[]any) (string, error) {
	*params = append(*params, c.Value)
	return fmt.Sprintf("%s %s ?", c.Column, c.Op), nil
}

// IsNull / IsNotNull render as IS (NOT) NULL with no bound parameter.
type IsNull struct{ Column string }

func (n IsNull) render(params *[]any) (string, error) {
	return n.Column + " IS NULL", nil
}

type IsNotNull struct{ Column string }

func (n IsNotNull) render(params *[]any) (string, error) {
	return n.Column + " IS NOT NULL", nil
}

// InList renders "col IN (?, ?, ...)" over a fixed value set.
type InList struct {
	Column string
	Values []any
}

func (l InList) render(params *[]any) (string, error) {
	if len(l.Values) == 0 {
		return "1 = 0", nil // empty IN-list matches nothing
	}
	placeholders := make([]string, len(l.Values))
	for i, v := range l.Values {
		placeholders[i] = "?"
		*params = append(*params, v)
	}
	return fmt.Sprintf("%s IN (%s)", l.Column, strings.Join(placeholders, ", ")), nil
}

// InSubquery renders "col IN (<subquery>)".
type InSubquery struct {
	Column string
	Sub    *Select
}

func (l InSubquery) render(params *[]any) (string, error) {
	sub, subParams, err := l.Sub.Build()
	if err != nil {
		return "", err
	}
	*params = append(*params, subParams...)
	return fmt.Sprintf("%s IN (%s)", l.Column, sub), nil
}

// Exists / NotExists render correlated or uncorrelated EXISTS clauses.
type Exists struct{ Sub *Select }

func (e Exists) render(params *[]any) (string, error) {
	sub, subParams, err := e.Sub.Build()
	if err != nil {
		return "", err
	}
	*params = append(*params, subParams...)
	return "EXISTS (" + sub + ")", nil
}

type NotExists struct{ Sub *Select }

func (e NotExists) render(params *[]any) (string, error) {
	sub, subParams, err := e.Sub.Build()
	if err != nil {
		return "", err
	}
	*params = append(*params, subParams...)
	return "NOT EXISTS (" + sub + ")", nil
}

// And / Or combine child predicates.
type And struct{ Children []Predicate }

func (a And) render(params *[]any) (string, error) {
	return joinLogical(a.Children, "AND", params)
}

type Or struct{ Children []Predicate }

func (o Or) render(params *[]any) (string, error) {
	return joinLogical(o.Children, "OR", params)
}

func joinLogical(children []Predicate, op string, params *[]any) (string, error) {
	if len(children) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, len(children))
	for i, c := range children {
		sql, err := c.render(params)
		if err != nil {
			return "", err
		}
		parts[i] = "(" + sql + ")"
	}
	return strings.Join(parts, " "+op+" "), nil
}

// Not negates a child predicate.
type Not struct{ Child Predicate }

func (n Not) render(params *[]any) (string, error) {
	sql, err := n.Child.render(params)
	if err != nil {
		return "", err
	}
	return "NOT (" + sql + ")", nil
}

// RawSQL is an opaque, unparsed SQL fragment with its own bind values. The
// dependency analyzer treats any query containing a RawSQL node
// conservatively, watching every named table in full.
type RawSQL struct {
	SQL    string
	Params []any
}

func (r RawSQL) render(params *[]any) (string, error) {
	*params = append(*params, r.Params...)
	return r.SQL, nil
}
